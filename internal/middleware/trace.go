package middleware

import (
	"log/slog"
	"net/http"

	"github.com/newsletter/newsletter/internal/telemetry"
)

// Trace opens the root "HTTP request" span for every request. The span
// carries the request ID, so every log line emitted below it is correlated.
// An inbound W3C traceparent header is honored as the parent span.
func Trace(tracer *telemetry.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := tracer.Extract(r.Context(), r.Header)
			ctx, span := tracer.Start(ctx, "HTTP request",
				slog.String("request_id", GetRequestID(ctx)),
				slog.String("http.method", r.Method),
				slog.String("http.url", r.URL.RequestURI()),
			)
			defer span.End()

			if traceID := span.TraceID(); traceID != "" {
				w.Header().Set(TraceIDHeader, traceID)
			}

			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			span.SetAttributes(slog.Int("http.status_code", wrapped.status))
		})
	}
}
