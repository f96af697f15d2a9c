// Package logging is the engine's structured logger: a narrow interface over
// log/slog, field helpers for the values the engine reports, and a
// per-request scope carried on the context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Field is a structured logging attribute.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field        { return Field{Key: key, Value: value} }
func Int(key string, value int) Field       { return Field{Key: key, Value: value} }
func Float(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field     { return Field{Key: key, Value: value} }

// Err records err under "error"; nil logs as empty.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Keys shared by the session, the RPC layer and the binaries, so log
// queries work the same across all of them.
const (
	KeyBody       = "body"
	KeyRegime     = "regime"
	KeyAltitudeKm = "altitude_km"
	KeyDeltaV     = "delta_v"
	KeyElapsed    = "elapsed_seconds"
	KeyRequestID  = "request_id"
	KeyMethod     = "method"
)

func Body(name string) Field         { return String(KeyBody, name) }
func Regime(r fmt.Stringer) Field    { return String(KeyRegime, r.String()) }
func AltitudeKm(km float64) Field    { return Float(KeyAltitudeKm, km) }
func DeltaV(mps float64) Field       { return Float(KeyDeltaV, mps) }
func Elapsed(seconds float64) Field  { return Float(KeyElapsed, seconds) }
func Method(fullMethod string) Field { return String(KeyMethod, fullMethod) }

// Logger is what engine components log through.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config selects level and encoding. It is decoded from the "log" section of
// the engine configuration.
type Config struct {
	Level     string    `mapstructure:"level"`  // debug, info, warn, error
	Format    string    `mapstructure:"format"` // text or json
	AddSource bool      `mapstructure:"add_source"`
	Output    io.Writer `mapstructure:"-"` // stdout when nil
}

func (c Config) handler() slog.Handler {
	out := c.Output
	if out == nil {
		out = os.Stdout
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: c.AddSource}
	if strings.EqualFold(c.Format, "json") {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

// New builds a slog-backed Logger. Unknown levels fall back to info and
// unknown formats to text.
func New(cfg Config) Logger {
	return &slogger{l: slog.New(cfg.handler())}
}

// Noop drops everything.
func Noop() Logger { return noopLogger{} }

type slogger struct {
	l *slog.Logger
}

func (s *slogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return s
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, slog.Any(f.Key, f.Value))
	}
	return &slogger{l: s.l.With(args...)}
}

func (s *slogger) Debug(ctx context.Context, msg string, fields ...Field) {
	s.emit(ctx, slog.LevelDebug, msg, fields)
}

func (s *slogger) Info(ctx context.Context, msg string, fields ...Field) {
	s.emit(ctx, slog.LevelInfo, msg, fields)
}

func (s *slogger) Warn(ctx context.Context, msg string, fields ...Field) {
	s.emit(ctx, slog.LevelWarn, msg, fields)
}

func (s *slogger) Error(ctx context.Context, msg string, fields ...Field) {
	s.emit(ctx, slog.LevelError, msg, fields)
}

func (s *slogger) emit(ctx context.Context, level slog.Level, msg string, fields []Field) {
	// Frame logging runs at tick rate; skip building attributes nobody reads.
	if !s.l.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	s.l.LogAttrs(ctx, level, msg, attrs...)
}

type noopLogger struct{}

func (noopLogger) With(...Field) Logger                    { return noopLogger{} }
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}

type scopeKey struct{}

// requestScope is everything the context carries for one RPC.
type requestScope struct {
	id  string
	log Logger
}

// ForRequest scopes base to one request. A non-empty id is kept (callers may
// supply their own); otherwise a random UUID is assigned. The id and fields
// are attached to the returned logger, which FromContext then yields.
func ForRequest(ctx context.Context, base Logger, id string, fields ...Field) (context.Context, Logger) {
	if base == nil {
		base = Noop()
	}
	if id == "" {
		id = uuid.NewString()
	}
	l := base.With(append([]Field{String(KeyRequestID, id)}, fields...)...)
	return context.WithValue(ctx, scopeKey{}, requestScope{id: id, log: l}), l
}

// RequestIDFromContext returns the id set by ForRequest, or "".
func RequestIDFromContext(ctx context.Context) string {
	if sc, ok := ctx.Value(scopeKey{}).(requestScope); ok {
		return sc.id
	}
	return ""
}

// FromContext returns the request logger on ctx, else fallback, else Noop.
func FromContext(ctx context.Context, fallback Logger) Logger {
	if sc, ok := ctx.Value(scopeKey{}).(requestScope); ok {
		return sc.log
	}
	if fallback == nil {
		return Noop()
	}
	return fallback
}
