package admingrpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/i-melnichenko/consensus-lab/internal/transport/grpc/codec"
)

// serviceName is the fully-qualified gRPC service name, as protoc would have
// derived it from a "package admin.v1; service AdminService" definition.
const serviceName = "admin.v1.AdminService"

// AdminServiceServer is the server API, shaped the way protoc-gen-go-grpc
// would generate it from admin.proto.
type AdminServiceServer interface {
	GetNodeInfo(context.Context, *GetNodeInfoRequest) (*GetNodeInfoResponse, error)
}

// AdminServiceClient is the client API, shaped the way protoc-gen-go-grpc
// would generate it from admin.proto.
type AdminServiceClient interface {
	GetNodeInfo(ctx context.Context, in *GetNodeInfoRequest, opts ...grpc.CallOption) (*GetNodeInfoResponse, error)
}

type adminServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAdminServiceClient wraps a client connection with the AdminService stub.
func NewAdminServiceClient(cc grpc.ClientConnInterface) AdminServiceClient {
	return &adminServiceClient{cc: cc}
}

func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
}

func (c *adminServiceClient) GetNodeInfo(ctx context.Context, in *GetNodeInfoRequest, opts ...grpc.CallOption) (*GetNodeInfoResponse, error) {
	out := new(GetNodeInfoResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/GetNodeInfo", in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func _AdminService_GetNodeInfo_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetNodeInfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).GetNodeInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetNodeInfo"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServiceServer).GetNodeInfo(ctx, req.(*GetNodeInfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc that protoc-gen-go-grpc would have
// emitted for AdminService. Registered by RegisterAdminServiceServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetNodeInfo", Handler: _AdminService_GetNodeInfo_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/transport/grpc/admin/service.go",
}

// RegisterAdminServiceServer registers srv as the AdminService implementation
// on s, mirroring the generated RegisterAdminServiceServer function.
func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
