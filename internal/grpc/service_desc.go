package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name. Messages are
// protobuf well-known types, so no generated stubs are needed.
const ServiceName = "insighter.v1.Insights"

const (
	methodListGroups          = "ListGroups"
	methodGetRecordScores     = "GetRecordScores"
	methodGetGroupReport      = "GetGroupReport"
	methodGetDimensionSummary = "GetDimensionSummary"
)

// InsightsServer is the server side of insighter.v1.Insights.
type InsightsServer interface {
	ListGroups(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
	GetRecordScores(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	GetGroupReport(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	GetDimensionSummary(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unaryHandler[Req any, Resp any, PReq interface {
	*Req
	proto.Message
}](name string, call func(InsightsServer, context.Context, PReq) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InsightsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(InsightsServer), ctx, req.(PReq))
		})
	}
}

var InsightsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InsightsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodListGroups, Handler: unaryHandler(methodListGroups, InsightsServer.ListGroups)},
		{MethodName: methodGetRecordScores, Handler: unaryHandler(methodGetRecordScores, InsightsServer.GetRecordScores)},
		{MethodName: methodGetGroupReport, Handler: unaryHandler(methodGetGroupReport, InsightsServer.GetGroupReport)},
		{MethodName: methodGetDimensionSummary, Handler: unaryHandler(methodGetDimensionSummary, InsightsServer.GetDimensionSummary)},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterInsightsServer(s grpc.ServiceRegistrar, srv InsightsServer) {
	s.RegisterService(&InsightsServiceDesc, srv)
}

// InsightsClient calls insighter.v1.Insights over an existing connection.
type InsightsClient struct {
	cc grpc.ClientConnInterface
}

func NewInsightsClient(cc grpc.ClientConnInterface) *InsightsClient {
	return &InsightsClient{cc: cc}
}

func (c *InsightsClient) ListGroups(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, fullMethod(methodListGroups), &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InsightsClient) GetRecordScores(ctx context.Context, group string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invokeGroup(ctx, methodGetRecordScores, group, opts...)
}

func (c *InsightsClient) GetGroupReport(ctx context.Context, group string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invokeGroup(ctx, methodGetGroupReport, group, opts...)
}

func (c *InsightsClient) GetDimensionSummary(ctx context.Context, group string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invokeGroup(ctx, methodGetDimensionSummary, group, opts...)
}

func (c *InsightsClient) invokeGroup(ctx context.Context, method, group string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), wrapperspb.String(group), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
