package mlclient

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/WessleyAI/homeprice/engine/artifact"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "homeprice.ml.v1.FeatureService"

const (
	transformMethod = "/" + ServiceName + "/Transform"
	predictMethod   = "/" + ServiceName + "/Predict"
)

// Server is implemented by anything that can scale and predict.
type Server interface {
	Transform(ctx context.Context, features []float64) ([]float64, error)
	Predict(ctx context.Context, scaled []float64) (float64, error)
}

// LocalServer serves a scaler and predictor held in process.
type LocalServer struct {
	Scaler    artifact.Scaler
	Predictor artifact.Predictor
}

func (l LocalServer) Transform(ctx context.Context, features []float64) ([]float64, error) {
	return l.Scaler.Transform(ctx, features)
}

func (l LocalServer) Predict(ctx context.Context, scaled []float64) (float64, error) {
	return l.Predictor.Predict(ctx, scaled)
}

// ServiceDesc describes FeatureService. Messages are google.protobuf.Struct.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transform", Handler: transformHandler},
		{MethodName: "Predict", Handler: predictHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "homeprice/ml/v1/feature.proto",
}

// RegisterServer binds srv to the gRPC registrar.
func RegisterServer(r grpc.ServiceRegistrar, srv Server) {
	r.RegisterService(&ServiceDesc, srv)
}

func transformHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		features, err := numbersFrom(req.(*structpb.Struct), fieldFeatures)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		out, err := srv.(Server).Transform(ctx, features)
		if err != nil {
			return nil, toStatus(err)
		}
		return numbersStruct(fieldValues, out)
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: transformMethod}, call)
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		scaled, err := numbersFrom(req.(*structpb.Struct), fieldFeatures)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		v, err := srv.(Server).Predict(ctx, scaled)
		if err != nil {
			return nil, toStatus(err)
		}
		return structpb.NewStruct(map[string]any{fieldPrediction: v})
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: predictMethod}, call)
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, artifact.ErrDimension):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
