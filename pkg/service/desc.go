package service

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages are google.protobuf.Struct, so no generated stubs are needed.
const (
	ServiceName   = "lastmodified.v1.HistoryService"
	ResolveMethod = "/" + ServiceName + "/Resolve"
	LogMethod     = "/" + ServiceName + "/Log"
)

// HistoryServer is the server API of lastmodified.v1.HistoryService.
type HistoryServer interface {
	// Resolve takes {path, rev?} and returns one commit.
	Resolve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Log takes {path, rev?, limit?} and returns {commits: [...]}.
	Log(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var HistoryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Resolve", Handler: resolveHandler},
		{MethodName: "Log", Handler: logHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lastmodified/v1/history.proto",
}

func RegisterHistoryServer(s grpc.ServiceRegistrar, srv HistoryServer) {
	s.RegisterService(&HistoryServiceDesc, srv)
}

func resolveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HistoryServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ResolveMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HistoryServer).Resolve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func logHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HistoryServer).Log(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LogMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HistoryServer).Log(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
