package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/newsletter/newsletter/internal/telemetry"
)

func newRecordingTracer(t *testing.T) (*telemetry.Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })
	return telemetry.NewTracer(tp, nil), recorder
}

func TestTrace_RootSpan(t *testing.T) {
	t.Parallel()

	tracer, recorder := newRecordingTracer(t)

	handler := RequestID(false)(Trace(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodPost, "/subscriptions?x=1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "HTTP request", span.Name())
	assert.Equal(t, span.SpanContext().TraceID().String(), rec.Header().Get(TraceIDHeader))

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, rec.Header().Get(RequestIDHeader), attrs["request_id"].AsString())
	assert.Equal(t, http.MethodPost, attrs["http.method"].AsString())
	assert.Equal(t, "/subscriptions?x=1", attrs["http.url"].AsString())
	assert.Equal(t, int64(http.StatusTeapot), attrs["http.status_code"].AsInt64())
}

func TestTrace_ContinuesInboundTraceparent(t *testing.T) {
	t.Parallel()

	tracer, recorder := newRecordingTracer(t)

	handler := Trace(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health_check", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec.Header().Get(TraceIDHeader))
}

func TestTrace_NoopTracerOmitsTraceHeader(t *testing.T) {
	t.Parallel()

	handler := Trace(telemetry.NewNoopTracer())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, rec.Header().Get(TraceIDHeader))
}
