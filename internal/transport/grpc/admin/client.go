package admingrpc

import (
	"fmt"

	"google.golang.org/grpc"

	"github.com/i-melnichenko/consensus-lab/internal/transport/grpc/codec"
)

// Client is a thin wrapper around the generated AdminServiceClient.
type Client struct {
	conn   *grpc.ClientConn
	client AdminServiceClient
}

// Dial connects to an admin gRPC server at target.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	codec.Register()
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("admin client: dial %s: %w", target, err)
	}
	return &Client{conn: conn, client: NewAdminServiceClient(conn)}, nil
}

// Raw exposes the generated client for callers that need direct RPC access
// (e.g. the admin monitor TUI, which issues GetNodeInfo with its own timeout
// per poll cycle).
func (c *Client) Raw() AdminServiceClient { return c.client }

// Close closes the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
