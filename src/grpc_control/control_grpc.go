package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name of the control plane.
const ServiceName = "volatility_observer.Control"

const (
	methodNormalize        = "/" + ServiceName + "/Normalize"
	methodListSources      = "/" + ServiceName + "/ListSources"
	methodUpdateCurrencies = "/" + ServiceName + "/UpdateCurrencies"
)

// -----------------------------------------------------------------------------
// Server side
// -----------------------------------------------------------------------------

// ControlServer is the control plane API. Messages are structpb.Struct so no
// generated code is needed.
type ControlServer interface {
	Normalize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSources(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCurrencies(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// -----------------------------------------------------------------------------

// unaryHandler adapts one ControlServer method to a grpc.MethodDesc handler.
func unaryHandler(
	fullMethod string,
	call func(ControlServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ControlServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ControlServiceDesc describes the Control service for grpc.Server.RegisterService.
var ControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Normalize",
			Handler:    unaryHandler(methodNormalize, ControlServer.Normalize),
		},
		{
			MethodName: "ListSources",
			Handler:    unaryHandler(methodListSources, ControlServer.ListSources),
		},
		{
			MethodName: "UpdateCurrencies",
			Handler:    unaryHandler(methodUpdateCurrencies, ControlServer.UpdateCurrencies),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "volatility_observer/control",
}

// RegisterControlServer registers srv on s.
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ControlServiceDesc, srv)
}

// -----------------------------------------------------------------------------
// Client side
// -----------------------------------------------------------------------------

type ControlClient struct {
	cc grpc.ClientConnInterface
}

func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

func (c *ControlClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ControlClient) Normalize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodNormalize, in, opts...)
}

func (c *ControlClient) ListSources(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListSources, in, opts...)
}

func (c *ControlClient) UpdateCurrencies(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodUpdateCurrencies, in, opts...)
}
