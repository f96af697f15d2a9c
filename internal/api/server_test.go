package api

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/maneuver-lab/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func startServer(t *testing.T, svc TrajectoryServiceServer, opts ...grpc.ServerOption) *Client {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	srv := grpc.NewServer(opts...)
	RegisterTrajectoryServiceServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestServiceDescOverTheWire(t *testing.T) {
	svc := newTestService(t)

	var seenMethod, seenRequestID string
	capture := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		seenMethod = info.FullMethod
		seenRequestID = logging.RequestIDFromContext(ctx)
		return handler(ctx, req)
	}
	client := startServer(t, svc, grpc.ChainUnaryInterceptor(
		RequestLoggingUnaryServerInterceptor(logging.Noop(), SessionFields(svc.session)),
		TracingUnaryServerInterceptor(SessionAttributes(svc.session)),
		capture,
	))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, RequestIDMetadataKey, "req-42")

	var header metadata.MD
	resp, err := client.UpdateState(ctx, 400, 1000, grpc.Header(&header))
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	if regime, _ := String(resp, "summary", "regime"); regime != "elliptical" {
		t.Fatalf("regime = %q, want elliptical", regime)
	}
	if seenMethod != FullMethod(MethodUpdateState) {
		t.Fatalf("FullMethod = %q", seenMethod)
	}
	if seenRequestID != "req-42" {
		t.Fatalf("request id = %q, want req-42", seenRequestID)
	}
	if echoed := header.Get(RequestIDMetadataKey); len(echoed) != 1 || echoed[0] != "req-42" {
		t.Fatalf("response header %s = %v, want [req-42]", RequestIDMetadataKey, echoed)
	}

	frame, err := client.GetFrame(ctx, 8)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	if has := frame.GetFields()["frame"].GetStructValue().GetFields()["has_position"].GetBoolValue(); !has {
		t.Fatalf("bound frame should carry a position")
	}

	_, err = client.ControlClock(ctx, "rewind")
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("ControlClock(rewind) code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestRequestLoggingGeneratesIDAndAnnotates(t *testing.T) {
	var buf bytes.Buffer
	base := logging.New(logging.Config{Format: "json", Output: &buf})
	annotate := func() []logging.Field { return []logging.Field{logging.Body("mars")} }
	interceptor := RequestLoggingUnaryServerInterceptor(base, annotate)
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodClassify)}

	var got string
	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		got = logging.RequestIDFromContext(ctx)
		return nil, status.Error(codes.InvalidArgument, "eccentricity is required")
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("interceptor error = %v", err)
	}
	if got == "" {
		t.Fatalf("expected a generated request id")
	}

	line := buf.String()
	for _, want := range []string{`"msg":"rpc failed"`, `"code":"InvalidArgument"`, `"body":"mars"`, got, MethodClassify} {
		if !strings.Contains(line, want) {
			t.Fatalf("log %q missing %q", line, want)
		}
	}
}

func TestTracingInterceptorRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	svc := newTestService(t)
	interceptor := TracingUnaryServerInterceptor(SessionAttributes(svc.session))
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodPropagate)}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.FailedPrecondition, "trajectory is not bound")
	})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("interceptor error = %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "Engine/"+MethodPropagate {
		t.Fatalf("span name = %q", span.Name())
	}
	if span.Status().Code != otelcodes.Error {
		t.Fatalf("span status = %v, want Error", span.Status())
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["maneuver.body"].AsString() != "earth" || attrs["maneuver.regime"].AsString() != "circular" {
		t.Fatalf("session attributes = %v", attrs)
	}
	if attrs["rpc.grpc.status_code"].AsInt64() != int64(codes.FailedPrecondition) {
		t.Fatalf("status code attribute = %v", attrs["rpc.grpc.status_code"])
	}
}
