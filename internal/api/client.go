package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls TrajectoryService over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with a request built from fields. A nil map sends an
// empty request.
func (c *Client) Call(ctx context.Context, method string, fields map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetFrame fetches the current frame with pathSamples orbit points.
func (c *Client) GetFrame(ctx context.Context, pathSamples int, opts ...grpc.CallOption) (*structpb.Struct, error) {
	var fields map[string]interface{}
	if pathSamples > 0 {
		fields = map[string]interface{}{"path_samples": pathSamples}
	}
	return c.Call(ctx, MethodGetFrame, fields, opts...)
}

// UpdateState sends a controls update.
func (c *Client) UpdateState(ctx context.Context, altitudeKm, deltaV float64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodUpdateState, map[string]interface{}{
		"altitude_km": altitudeKm,
		"delta_v":     deltaV,
	}, opts...)
}

// ControlClock applies a clock action.
func (c *Client) ControlClock(ctx context.Context, action string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodControlClock, map[string]interface{}{"action": action}, opts...)
}

// Number reads a numeric field from a nested response path such as
// ("frame", "eccentricity"). Missing paths report ok=false.
func Number(s *structpb.Struct, path ...string) (float64, bool) {
	v := lookup(s, path...)
	if v == nil {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return n.NumberValue, true
}

// String reads a string field from a nested response path.
func String(s *structpb.Struct, path ...string) (string, bool) {
	v := lookup(s, path...)
	if v == nil {
		return "", false
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return str.StringValue, true
}

func lookup(s *structpb.Struct, path ...string) *structpb.Value {
	if s == nil || len(path) == 0 {
		return nil
	}
	cur := s
	for i, key := range path {
		v, ok := cur.GetFields()[key]
		if !ok {
			return nil
		}
		if i == len(path)-1 {
			return v
		}
		cur = v.GetStructValue()
		if cur == nil {
			return nil
		}
	}
	return nil
}
