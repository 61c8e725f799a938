// Package raftgrpc contains the Raft gRPC transport adapters.
package raftgrpc

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/i-melnichenko/consensus-lab/internal/consensus/raft"
)

// Handler is the subset of *raft.Node required by the gRPC server.
// *raft.Node satisfies this interface.
type Handler interface {
	HandleRequestVote(ctx context.Context, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error)
	HandleAppendEntries(ctx context.Context, req *raft.AppendEntriesRequest) (*raft.AppendEntriesResponse, error)
	HandleInstallSnapshot(ctx context.Context, req *raft.InstallSnapshotRequest) (*raft.InstallSnapshotResponse, error)
}

// Server implements RaftServiceServer by delegating RPCs to a Raft node.
type Server struct {
	handler Handler
	tracer  oteltrace.Tracer
}

// NewServer creates a Raft gRPC server adapter for the provided handler.
func NewServer(handler Handler, tracer oteltrace.Tracer) *Server {
	return &Server{handler: handler, tracer: tracer}
}

// RequestVote handles a Raft RequestVote RPC.
func (s *Server) RequestVote(ctx context.Context, wireReq *RequestVoteRequest) (*RequestVoteResponse, error) {
	ctx, span := s.tracer.Start(ctx, "raftgrpc.server.RequestVote", oteltrace.WithAttributes(serverRequestVoteAttrs(wireReq)...))
	defer span.End()

	resp, err := s.handler.HandleRequestVote(ctx, requestVoteRequestFromWire(wireReq))
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	span.SetAttributes(
		attribute.Int64("raft.response_term", resp.Term),
		attribute.Bool("raft.vote_granted", resp.VoteGranted),
	)
	return requestVoteResponseToWire(resp), nil
}

// AppendEntries handles a Raft AppendEntries RPC.
func (s *Server) AppendEntries(ctx context.Context, wireReq *AppendEntriesRequest) (*AppendEntriesResponse, error) {
	ctx, span := s.tracer.Start(ctx, "raftgrpc.server.AppendEntries", oteltrace.WithAttributes(serverAppendEntriesAttrs(wireReq)...))
	defer span.End()

	resp, err := s.handler.HandleAppendEntries(ctx, appendEntriesRequestFromWire(wireReq))
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	span.SetAttributes(
		attribute.Int64("raft.response_term", resp.Term),
		attribute.Bool("raft.append.success", resp.Success),
		attribute.Int64("raft.conflict_term", resp.ConflictTerm),
		attribute.Int64("raft.conflict_index", resp.ConflictIndex),
	)
	return appendEntriesResponseToWire(resp), nil
}

// InstallSnapshot handles a Raft InstallSnapshot RPC.
func (s *Server) InstallSnapshot(ctx context.Context, wireReq *InstallSnapshotRequest) (*InstallSnapshotResponse, error) {
	ctx, span := s.tracer.Start(ctx, "raftgrpc.server.InstallSnapshot", oteltrace.WithAttributes(serverInstallSnapshotAttrs(wireReq)...))
	defer span.End()

	resp, err := s.handler.HandleInstallSnapshot(ctx, installSnapshotRequestFromWire(wireReq))
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	span.SetAttributes(attribute.Int64("raft.response_term", resp.Term))
	return installSnapshotResponseToWire(resp), nil
}

func toGRPCStatus(err error) error {
	if errors.Is(err, raft.ErrNodeDegraded) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
