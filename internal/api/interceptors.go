package api

import (
	"context"
	"time"

	"github.com/signalsfoundry/maneuver-lab/core"
	"github.com/signalsfoundry/maneuver-lab/internal/engine"
	"github.com/signalsfoundry/maneuver-lab/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDMetadataKey carries a caller-supplied request id. The server
// echoes the id it used in the response header under the same key.
const RequestIDMetadataKey = "x-request-id"

// SessionFields reports the active body and regime of session at call time.
// It is used to annotate request logs.
func SessionFields(session *engine.Session) func() []logging.Field {
	return func() []logging.Field {
		return []logging.Field{
			logging.Body(session.Body().Name),
			logging.Regime(core.Classify(session.Elements().Eccentricity)),
		}
	}
}

// RequestLoggingUnaryServerInterceptor gives every call a scoped logger
// carrying the request id, the method and whatever annotate returns. It
// logs failed calls with their status code.
func RequestLoggingUnaryServerInterceptor(base logging.Logger, annotate func() []logging.Field) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		fields := []logging.Field{logging.Method(info.FullMethod)}
		if annotate != nil {
			fields = append(fields, annotate()...)
		}
		ctx, reqLog := logging.ForRequest(ctx, base, incomingRequestID(ctx), fields...)

		// Fails only outside a real server transport, e.g. direct calls in tests.
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, logging.RequestIDFromContext(ctx)))

		start := time.Now()
		resp, err := handler(ctx, req)
		took := logging.Float("duration_ms", float64(time.Since(start).Microseconds())/1000)
		if err != nil {
			reqLog.Warn(ctx, "rpc failed", took,
				logging.String("code", status.Code(err).String()),
				logging.Err(err),
			)
			return resp, err
		}
		reqLog.Debug(ctx, "rpc served", took)
		return resp, nil
	}
}

func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
