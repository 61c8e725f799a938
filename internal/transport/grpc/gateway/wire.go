// Package gatewaygrpc exposes internal/gateway.Publication over gRPC, using
// the same hand-authored JSON wire codec established for the Raft RPC
// service in internal/transport/grpc/raft: no protoc toolchain is available
// here, so these types mirror what protoc-gen-go would have produced from a
// gateway.proto definition.
package gatewaygrpc

// PublishRequest is the wire representation of a gateway.Publication.Publish call.
type PublishRequest struct {
	SessionID int64  `json:"session_id"`
	SeqNo     int64  `json:"seq_no"`
	Payload   []byte `json:"payload"`
}

// PublishResponse acknowledges a committed publish.
type PublishResponse struct {
	Accepted bool `json:"accepted"`
}
