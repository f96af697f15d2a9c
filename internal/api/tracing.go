package api

import (
	"context"

	"github.com/signalsfoundry/maneuver-lab/core"
	"github.com/signalsfoundry/maneuver-lab/internal/engine"
	"github.com/signalsfoundry/maneuver-lab/internal/logging"
	"github.com/signalsfoundry/maneuver-lab/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const tracerName = "github.com/signalsfoundry/maneuver-lab/internal/api"

// SessionAttributes tags spans with the session's active body and the
// current burn so traces can be grouped by scenario.
func SessionAttributes(session *engine.Session) func() []attribute.KeyValue {
	return func() []attribute.KeyValue {
		st := session.State()
		return []attribute.KeyValue{
			attribute.String("maneuver.body", session.Body().Name),
			attribute.String("maneuver.regime", core.Classify(session.Elements().Eccentricity).String()),
			attribute.Float64("maneuver.altitude_km", st.AltitudeKm),
			attribute.Float64("maneuver.delta_v", st.DeltaV),
		}
	}
}

// TracingUnaryServerInterceptor names the server span "Engine/<method>" and
// records the request id, the gRPC status and the attributes from attrs,
// read after the handler so they reflect any state the call changed. It
// opens its own span when no stats handler has.
func TracingUnaryServerInterceptor(attrs func() []attribute.KeyValue) grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		name := "Engine/" + method

		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.SetName(name)
		} else {
			ctx, span = tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
		}
		span.SetAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
		)
		if id := logging.RequestIDFromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		resp, err := handler(ctx, req)

		st := status.Convert(err)
		span.SetAttributes(attribute.Int("rpc.grpc.status_code", int(st.Code())))
		if attrs != nil {
			span.SetAttributes(attrs()...)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, st.Message())
		}
		return resp, err
	}
}
