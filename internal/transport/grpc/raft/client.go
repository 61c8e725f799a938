// Package raftgrpc contains the Raft gRPC transport adapters.
package raftgrpc

import (
	"context"

	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/i-melnichenko/consensus-lab/internal/consensus/raft"
	"github.com/i-melnichenko/consensus-lab/internal/transport/grpc/codec"
)

// PeerClient implements raft.PeerClient over a gRPC connection using the
// hand-rolled JSON codec in place of protoc-generated stubs.
type PeerClient struct {
	target string
	conn   *grpc.ClientConn
	client RaftServiceClient
	tracer oteltrace.Tracer
}

// Dial connects to a remote Raft peer and returns a PeerClient.
// The connection is established lazily on the first RPC call.
func Dial(target string, tracer oteltrace.Tracer, opts ...grpc.DialOption) (*PeerClient, error) {
	codec.Register()
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &PeerClient{
		target: target,
		conn:   conn,
		client: NewRaftServiceClient(conn),
		tracer: tracer,
	}, nil
}

// RequestVote calls the remote Raft RequestVote RPC.
func (c *PeerClient) RequestVote(ctx context.Context, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error) {
	ctx, span := c.tracer.Start(ctx, "raftgrpc.client.RequestVote", oteltrace.WithAttributes(clientRequestVoteAttrs(c.target, req)...))
	defer span.End()

	wireResp, err := c.client.RequestVote(ctx, requestVoteRequestToWire(req))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return requestVoteResponseFromWire(wireResp), nil
}

// AppendEntries calls the remote Raft AppendEntries RPC.
func (c *PeerClient) AppendEntries(ctx context.Context, req *raft.AppendEntriesRequest) (*raft.AppendEntriesResponse, error) {
	ctx, span := c.tracer.Start(ctx, "raftgrpc.client.AppendEntries", oteltrace.WithAttributes(clientAppendEntriesAttrs(c.target, req)...))
	defer span.End()

	wireResp, err := c.client.AppendEntries(ctx, appendEntriesRequestToWire(req))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return appendEntriesResponseFromWire(wireResp), nil
}

// InstallSnapshot calls the remote Raft InstallSnapshot RPC.
func (c *PeerClient) InstallSnapshot(ctx context.Context, req *raft.InstallSnapshotRequest) (*raft.InstallSnapshotResponse, error) {
	ctx, span := c.tracer.Start(ctx, "raftgrpc.client.InstallSnapshot", oteltrace.WithAttributes(clientInstallSnapshotAttrs(c.target, req)...))
	defer span.End()

	wireResp, err := c.client.InstallSnapshot(ctx, installSnapshotRequestToWire(req))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return installSnapshotResponseFromWire(wireResp), nil
}

// Close closes the underlying gRPC connection to the peer.
func (c *PeerClient) Close() error {
	return c.conn.Close()
}
