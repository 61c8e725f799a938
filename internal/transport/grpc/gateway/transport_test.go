package gatewaygrpc_test

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/i-melnichenko/consensus-lab/internal/gateway"
	gatewaygrpc "github.com/i-melnichenko/consensus-lab/internal/transport/grpc/gateway"
)

const bufSize = 1 << 20 // 1 MB

// startServer spins up an in-process gRPC server backed by handler.
// Returns a connected Client and a cleanup function.
func startServer(t *testing.T, handler gatewaygrpc.Handler) (*gatewaygrpc.Client, func()) {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer()
	gatewaygrpc.RegisterGatewayServiceServer(srv, gatewaygrpc.NewServer(handler))
	go func() { _ = srv.Serve(lis) }()

	dialOpts := []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	client, err := gatewaygrpc.Dial("passthrough:///bufconn", dialOpts...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	cleanup := func() {
		_ = client.Close()
		srv.GracefulStop()
	}
	return client, cleanup
}

// stubHandler is a test double for *gateway.Publication.
type stubHandler struct {
	err error

	lastSessionID int64
	lastSeqNo     int64
	lastPayload   []byte
}

func (s *stubHandler) Publish(sessionID, seqNo int64, payload []byte) error {
	s.lastSessionID = sessionID
	s.lastSeqNo = seqNo
	s.lastPayload = payload
	return s.err
}

func TestPublish_RoundTrip(t *testing.T) {
	handler := &stubHandler{}
	client, cleanup := startServer(t, handler)
	defer cleanup()

	err := client.Publish(context.Background(), 42, 7, []byte("8=FIXT.1.1|..."))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if handler.lastSessionID != 42 {
		t.Errorf("SessionID: want 42, got %d", handler.lastSessionID)
	}
	if handler.lastSeqNo != 7 {
		t.Errorf("SeqNo: want 7, got %d", handler.lastSeqNo)
	}
	if string(handler.lastPayload) != "8=FIXT.1.1|..." {
		t.Errorf("Payload mismatch: %s", handler.lastPayload)
	}
}

func TestPublish_NotLeaderMapsToFailedPrecondition(t *testing.T) {
	handler := &stubHandler{err: gateway.ErrNotLeader}
	client, cleanup := startServer(t, handler)
	defer cleanup()

	err := client.Publish(context.Background(), 1, 1, []byte("x"))
	if err != gatewaygrpc.ErrNotLeader {
		t.Fatalf("want ErrNotLeader, got %v", err)
	}
}
