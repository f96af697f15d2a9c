// Package api exposes the trajectory engine over gRPC. Messages are
// google.protobuf.Struct values so renderers in any language can consume them
// without generated stubs.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "maneuverlab.v1.TrajectoryService"

// Method names on ServiceName.
const (
	MethodGetFrame        = "GetFrame"
	MethodUpdateState     = "UpdateState"
	MethodComputeElements = "ComputeElements"
	MethodPropagate       = "Propagate"
	MethodClassify        = "Classify"
	MethodEvaluateBurn    = "EvaluateBurn"
	MethodControlClock    = "ControlClock"
	MethodListBodies      = "ListBodies"
)

// FullMethod returns the "/service/method" path used on the wire.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// TrajectoryServiceServer is the server API for ServiceName.
type TrajectoryServiceServer interface {
	GetFrame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ComputeElements(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Propagate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Classify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EvaluateBurn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ControlClock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListBodies(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterTrajectoryServiceServer registers srv on s.
func RegisterTrajectoryServiceServer(s grpc.ServiceRegistrar, srv TrajectoryServiceServer) {
	s.RegisterService(&TrajectoryServiceDesc, srv)
}

// TrajectoryServiceDesc is the grpc.ServiceDesc for ServiceName.
var TrajectoryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrajectoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodGetFrame, Handler: unaryHandler(MethodGetFrame, TrajectoryServiceServer.GetFrame)},
		{MethodName: MethodUpdateState, Handler: unaryHandler(MethodUpdateState, TrajectoryServiceServer.UpdateState)},
		{MethodName: MethodComputeElements, Handler: unaryHandler(MethodComputeElements, TrajectoryServiceServer.ComputeElements)},
		{MethodName: MethodPropagate, Handler: unaryHandler(MethodPropagate, TrajectoryServiceServer.Propagate)},
		{MethodName: MethodClassify, Handler: unaryHandler(MethodClassify, TrajectoryServiceServer.Classify)},
		{MethodName: MethodEvaluateBurn, Handler: unaryHandler(MethodEvaluateBurn, TrajectoryServiceServer.EvaluateBurn)},
		{MethodName: MethodControlClock, Handler: unaryHandler(MethodControlClock, TrajectoryServiceServer.ControlClock)},
		{MethodName: MethodListBodies, Handler: unaryHandler(MethodListBodies, TrajectoryServiceServer.ListBodies)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "maneuverlab/v1/trajectory.proto",
}

type unaryMethod func(TrajectoryServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TrajectoryServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(name),
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TrajectoryServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
