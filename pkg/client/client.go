package client

import (
	"context"
	"fmt"
	"time"

	"lastmodified/pkg/history"
	"lastmodified/pkg/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client talks to a remote lastmodified.v1.HistoryService.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient does not wait for the connection; dial errors surface on the
// first call.
func NewClient(addr string, extra ...grpc.DialOption) (*Client, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: false,
		}),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Resolve asks the server for the commit that last changed path at rev
// ("" means the server's HEAD).
func (c *Client) Resolve(ctx context.Context, path, rev string) (*history.Commit, error) {
	req, err := structpb.NewStruct(map[string]any{"path": path, "rev": rev})
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, service.ResolveMethod, req, resp); err != nil {
		return nil, err
	}
	return service.DecodeCommit(resp)
}

// Log lists up to limit commits that changed path, newest first.
func (c *Client) Log(ctx context.Context, path, rev string, limit int) ([]*history.Commit, error) {
	req, err := structpb.NewStruct(map[string]any{"path": path, "rev": rev, "limit": limit})
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, service.LogMethod, req, resp); err != nil {
		return nil, err
	}
	return service.DecodeLog(resp)
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
