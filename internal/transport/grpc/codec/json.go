// Package codec registers a JSON wire codec for gRPC.
//
// The reference build normally pairs google.golang.org/grpc with
// protoc-generated message types (encoding/proto). No .proto sources or
// generated stubs travel with this build, and the protoc toolchain is not
// available here, so every message on the wire is a plain JSON-tagged Go
// struct instead of a proto.Message. Registering a named codec and
// requesting it per-call via grpc.CallContentSubtype lets grpc-go's real
// transport, interceptor, and service-registration machinery run unchanged;
// only the marshaling strategy differs from what protoc would have emitted.
package codec

import (
	"encoding/json"
	"fmt"
	"sync"

	"google.golang.org/grpc/encoding"
)

// Name is the codec name negotiated via grpc.CallContentSubtype and is
// registered with encoding.RegisterCodec so both client and server resolve
// the same marshaler.
const Name = "json"

var registerOnce sync.Once

// Register installs the JSON codec globally. Safe to call multiple times
// and from multiple packages; registration happens exactly once.
func Register() {
	registerOnce.Do(func() {
		encoding.RegisterCodec(jsonCodec{})
	})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: unmarshal into %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return Name }
