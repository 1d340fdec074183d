// Package server hosts the history service over gRPC.
package server

import (
	"lastmodified/pkg/app"
	"lastmodified/pkg/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// New builds a gRPC server with logging and recovery on every call.
// Logging is outermost so recovered panics are logged with their status.
func New(application *app.App, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryLoggingInterceptor, UnaryRecoveryInterceptor),
		grpc.ChainStreamInterceptor(StreamLoggingInterceptor, StreamRecoveryInterceptor),
	}, opts...)

	s := grpc.NewServer(opts...)
	service.RegisterHistoryServer(s, service.NewHistoryService(application))

	// grpcurl and friends
	reflection.Register(s)
	return s
}
