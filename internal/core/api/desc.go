package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ruletree.v1.RuleService"

// Full method names.
const (
	MethodValidate     = "/" + ServiceName + "/Validate"
	MethodValidateKind = "/" + ServiceName + "/ValidateKind"
	MethodGetRule      = "/" + ServiceName + "/GetRule"
	MethodPutRule      = "/" + ServiceName + "/PutRule"
)

// RuleServiceServer is the server API for ruletree.v1.RuleService.
// Every message is a google.protobuf.Struct; field layouts are documented on
// the RuleServer methods.
type RuleServiceServer interface {
	Validate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateKind(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PutRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRuleServiceServer registers srv on s.
func RegisterRuleServiceServer(s grpc.ServiceRegistrar, srv RuleServiceServer) {
	s.RegisterService(&RuleServiceDesc, srv)
}

// RuleServiceDesc is the grpc.ServiceDesc for ruletree.v1.RuleService.
var RuleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RuleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Validate", Handler: unaryHandler(MethodValidate, RuleServiceServer.Validate)},
		{MethodName: "ValidateKind", Handler: unaryHandler(MethodValidateKind, RuleServiceServer.ValidateKind)},
		{MethodName: "GetRule", Handler: unaryHandler(MethodGetRule, RuleServiceServer.GetRule)},
		{MethodName: "PutRule", Handler: unaryHandler(MethodPutRule, RuleServiceServer.PutRule)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ruletree/v1/rule_service.proto",
}

type structMethod func(RuleServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RuleServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RuleServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RuleServiceClient is the client API for ruletree.v1.RuleService.
type RuleServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRuleServiceClient returns a client over cc.
func NewRuleServiceClient(cc grpc.ClientConnInterface) *RuleServiceClient {
	return &RuleServiceClient{cc: cc}
}

func (c *RuleServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RuleServiceClient) Validate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodValidate, in, opts...)
}

func (c *RuleServiceClient) ValidateKind(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodValidateKind, in, opts...)
}

func (c *RuleServiceClient) GetRule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetRule, in, opts...)
}

func (c *RuleServiceClient) PutRule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPutRule, in, opts...)
}
