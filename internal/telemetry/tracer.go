// Package telemetry provides request-scoped spans that feed both OpenTelemetry
// and the structured logger.
//
// A span opened with Tracer.Start stores a derived *slog.Logger in the returned
// context. The derived logger carries every field of every enclosing span, so
// code further down only needs the context to log with the full request scope:
//
//	ctx, span := tracer.Start(ctx, "Saving new subscriber details in the database")
//	defer span.End()
//	telemetry.Logger(ctx, fallback).Error("failed to execute query", "error", err)
package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/newsletter/newsletter"

type loggerKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the request-scoped logger stored in ctx, or fallback when
// no span has been opened on ctx.
func Logger(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}

// Tracer opens spans. It is created once at startup and injected.
type Tracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	logger     *slog.Logger
}

// NewTracer creates a Tracer backed by tp that emits span events to logger.
// A nil tp or logger falls back to a no-op provider or a discarding logger.
func NewTracer(tp trace.TracerProvider, logger *slog.Logger) *Tracer {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracer{
		tracer:     tp.Tracer(instrumentationName),
		propagator: propagation.TraceContext{},
		logger:     logger,
	}
}

// NewNoopTracer returns a Tracer that records nothing. Useful in tests.
func NewNoopTracer() *Tracer {
	return NewTracer(nil, nil)
}

// Logger returns the logger for ctx, falling back to the tracer's process logger.
func (t *Tracer) Logger(ctx context.Context) *slog.Logger {
	return Logger(ctx, t.logger)
}

// Extract continues a remote trace from W3C traceparent headers, if present.
func (t *Tracer) Extract(ctx context.Context, header http.Header) context.Context {
	return t.propagator.Extract(ctx, propagation.HeaderCarrier(header))
}

// Start opens a span named name carrying fields. The returned context holds
// the span and a logger with fields added to those of the enclosing spans.
// The caller must call End, normally with defer.
func (t *Tracer) Start(ctx context.Context, name string, fields ...slog.Attr) (context.Context, *Span) {
	ctx, otelSpan := t.tracer.Start(ctx, name, trace.WithAttributes(attributes(fields)...))

	logger := t.Logger(ctx)
	if len(fields) > 0 {
		args := make([]any, 0, len(fields))
		for _, f := range fields {
			args = append(args, f)
		}
		logger = logger.With(args...)
	}
	ctx = WithLogger(ctx, logger)

	s := &Span{
		name:   name,
		span:   otelSpan,
		logger: logger,
		ctx:    ctx,
		start:  time.Now(),
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "span opened", s.eventAttrs()...)

	return ctx, s
}

// Span is one open unit of work.
type Span struct {
	name   string
	span   trace.Span
	logger *slog.Logger
	ctx    context.Context
	start  time.Time
	once   sync.Once
}

// End closes the span and emits the close event. Only the first call has an effect.
func (s *Span) End() {
	s.once.Do(func() {
		elapsed := time.Since(s.start)
		s.span.End()

		attrs := append(s.eventAttrs(), slog.Float64("elapsed_ms", float64(elapsed.Microseconds())/1000))
		s.logger.LogAttrs(s.ctx, slog.LevelInfo, "span closed", attrs...)
	})
}

// RecordError marks the span as failed. It does not log; callers log with
// Logger so the error line nests under the span.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SetAttributes adds fields to the OpenTelemetry span only.
func (s *Span) SetAttributes(fields ...slog.Attr) {
	s.span.SetAttributes(attributes(fields)...)
}

// Logger returns the logger scoped to this span.
func (s *Span) Logger() *slog.Logger {
	return s.logger
}

// TraceID returns the hex trace id, or "" when the span is not recording.
func (s *Span) TraceID() string {
	sc := s.span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func (s *Span) eventAttrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("span", s.name)}
	sc := s.span.SpanContext()
	if sc.HasTraceID() {
		attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
	}
	if sc.HasSpanID() {
		attrs = append(attrs, slog.String("span_id", sc.SpanID().String()))
	}
	return attrs
}

// attributes converts slog fields to OpenTelemetry attributes.
func attributes(fields []slog.Attr) []attribute.KeyValue {
	if len(fields) == 0 {
		return nil
	}
	kvs := make([]attribute.KeyValue, 0, len(fields))
	for _, f := range fields {
		v := f.Value.Resolve()
		switch v.Kind() {
		case slog.KindString:
			kvs = append(kvs, attribute.String(f.Key, v.String()))
		case slog.KindInt64:
			kvs = append(kvs, attribute.Int64(f.Key, v.Int64()))
		case slog.KindUint64:
			kvs = append(kvs, attribute.Int64(f.Key, int64(v.Uint64())))
		case slog.KindBool:
			kvs = append(kvs, attribute.Bool(f.Key, v.Bool()))
		case slog.KindFloat64:
			kvs = append(kvs, attribute.Float64(f.Key, v.Float64()))
		case slog.KindDuration:
			kvs = append(kvs, attribute.Int64(f.Key, v.Duration().Milliseconds()))
		default:
			kvs = append(kvs, attribute.String(f.Key, v.String()))
		}
	}
	return kvs
}
