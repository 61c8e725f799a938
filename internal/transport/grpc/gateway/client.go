package gatewaygrpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/i-melnichenko/consensus-lab/internal/transport/grpc/codec"
)

// ErrNotLeader is returned when the targeted node is not the Raft leader.
var ErrNotLeader = errors.New("gateway: node is not the leader")

// ErrNoLeader is returned by ClusterClient when no node in the cluster
// accepted a publish — either no leader is elected yet or all nodes are down.
var ErrNoLeader = errors.New("gateway: no leader found in cluster")

// Client is a thin wrapper around the generated GatewayServiceClient.
type Client struct {
	conn   *grpc.ClientConn
	client GatewayServiceClient
}

// Dial connects to a gateway gRPC server at target.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	codec.Register()
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("gateway client: dial %s: %w", target, err)
	}
	return &Client{
		conn:   conn,
		client: NewGatewayServiceClient(conn),
	}, nil
}

// Close closes the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Publish forwards a FIX message to a gateway node for replication.
func (c *Client) Publish(ctx context.Context, sessionID, seqNo int64, payload []byte) error {
	_, err := c.client.Publish(ctx, &PublishRequest{SessionID: sessionID, SeqNo: seqNo, Payload: payload})
	if err != nil {
		return fromGRPCStatus(err)
	}
	return nil
}

// ClusterClient connects to multiple gateway nodes and routes Publish calls
// to whichever one currently believes itself the Raft leader, retrying other
// nodes as the leader hint goes stale.
type ClusterClient struct {
	clients []*Client

	mu         sync.RWMutex
	leaderHint int // -1 means unknown
}

// DialCluster connects to all provided addresses and returns a ClusterClient.
// Connections are lazy (gRPC dials on first use), so this succeeds even if
// nodes are temporarily unavailable.
func DialCluster(addrs []string, opts ...grpc.DialOption) (*ClusterClient, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("gateway cluster client: no addresses provided")
	}
	clients := make([]*Client, 0, len(addrs))
	for _, addr := range addrs {
		c, err := Dial(addr, opts...)
		if err != nil {
			for _, cc := range clients {
				_ = cc.Close()
			}
			return nil, err
		}
		clients = append(clients, c)
	}
	return &ClusterClient{
		clients:    clients,
		leaderHint: -1,
	}, nil
}

// Close closes all underlying node client connections.
func (c *ClusterClient) Close() error {
	var errs []error
	for _, client := range c.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publish forwards the message to the cluster leader, trying all nodes
// until one accepts.
func (c *ClusterClient) Publish(ctx context.Context, sessionID, seqNo int64, payload []byte) error {
	for _, i := range c.writeOrder() {
		err := c.clients[i].Publish(ctx, sessionID, seqNo, payload)
		if err == nil {
			c.setLeaderHint(i)
			return nil
		}
		if errors.Is(err, ErrNotLeader) {
			c.clearLeaderHintIf(i)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Network or server error -- try next node.
	}
	return ErrNoLeader
}

func (c *ClusterClient) writeOrder() []int {
	n := len(c.clients)
	order := make([]int, 0, n)

	hint := c.getLeaderHint()
	if hint >= 0 && hint < n {
		order = append(order, hint)
	}

	for _, i := range rand.Perm(n) {
		if i == hint {
			continue
		}
		order = append(order, i)
	}
	return order
}

func (c *ClusterClient) getLeaderHint() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.leaderHint
}

func (c *ClusterClient) setLeaderHint(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaderHint = i
}

func (c *ClusterClient) clearLeaderHintIf(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.leaderHint == i {
		c.leaderHint = -1
	}
}

func fromGRPCStatus(err error) error {
	if st, ok := status.FromError(err); ok && st.Code() == codes.FailedPrecondition {
		return ErrNotLeader
	}
	return err
}
