package gatewaygrpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/i-melnichenko/consensus-lab/internal/gateway"
)

// Handler is the subset of *gateway.Publication required by the gRPC server.
// *gateway.Publication satisfies this interface.
type Handler interface {
	Publish(sessionID int64, seqNo int64, payload []byte) error
}

// Server implements GatewayServiceServer by delegating to a Publication.
type Server struct {
	handler Handler
}

// NewServer creates a gateway gRPC server adapter for the provided handler.
func NewServer(handler Handler) *Server {
	return &Server{handler: handler}
}

// Publish handles a Publish RPC, replicating an inbound FIX message through
// the cluster and blocking until the underlying write is committed.
func (s *Server) Publish(_ context.Context, req *PublishRequest) (*PublishResponse, error) {
	if err := s.handler.Publish(req.SessionID, req.SeqNo, req.Payload); err != nil {
		return nil, toGRPCStatus(err)
	}
	return &PublishResponse{Accepted: true}, nil
}

func toGRPCStatus(err error) error {
	if errors.Is(err, gateway.ErrNotLeader) {
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	if errors.Is(err, gateway.ErrCommitTimeout) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
