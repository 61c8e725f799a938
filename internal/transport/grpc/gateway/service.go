package gatewaygrpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/i-melnichenko/consensus-lab/internal/transport/grpc/codec"
)

// serviceName is the fully-qualified gRPC service name, as protoc would have
// derived it from a "package gateway.v1; service GatewayService" definition.
const serviceName = "gateway.v1.GatewayService"

// GatewayServiceServer is the server API, shaped the way protoc-gen-go-grpc
// would generate it from gateway.proto.
type GatewayServiceServer interface {
	Publish(context.Context, *PublishRequest) (*PublishResponse, error)
}

// GatewayServiceClient is the client API, shaped the way protoc-gen-go-grpc
// would generate it from gateway.proto.
type GatewayServiceClient interface {
	Publish(ctx context.Context, in *PublishRequest, opts ...grpc.CallOption) (*PublishResponse, error)
}

type gatewayServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewGatewayServiceClient wraps a client connection with the GatewayService stub.
func NewGatewayServiceClient(cc grpc.ClientConnInterface) GatewayServiceClient {
	return &gatewayServiceClient{cc: cc}
}

func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
}

func (c *gatewayServiceClient) Publish(ctx context.Context, in *PublishRequest, opts ...grpc.CallOption) (*PublishResponse, error) {
	out := new(PublishResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Publish", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func _GatewayService_Publish_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PublishRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GatewayServiceServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Publish"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GatewayServiceServer).Publish(ctx, req.(*PublishRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc that protoc-gen-go-grpc would have
// emitted for GatewayService. Registered by RegisterGatewayServiceServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*GatewayServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: _GatewayService_Publish_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/transport/grpc/gateway/service.go",
}

// RegisterGatewayServiceServer registers srv as the GatewayService
// implementation on s, mirroring the generated
// RegisterGatewayServiceServer function.
func RegisterGatewayServiceServer(s grpc.ServiceRegistrar, srv GatewayServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
