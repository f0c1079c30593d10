// Package middleware provides HTTP middleware components.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

// RequestIDKey is the context key for request ID.
const RequestIDKey contextKey = "request_id"

// RequestIDHeader is the HTTP header for request ID.
const RequestIDHeader = "X-Request-ID"

// TraceIDHeader is the HTTP header carrying the trace id of the request span.
const TraceIDHeader = "X-Trace-ID"

// RequestID assigns a correlation ID to each request, stores it in the context
// and writes it to the response header before the rest of the chain runs.
//
// A new UUID is generated for every request. When trustInbound is set, an
// inbound X-Request-ID that parses as a UUID is reused instead; anything else
// is discarded.
func RequestID(trustInbound bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := ""
			if trustInbound {
				requestID = inboundRequestID(r.Header.Get(RequestIDHeader))
			}
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			w.Header().Set(RequestIDHeader, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func inboundRequestID(value string) string {
	if value == "" {
		return ""
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return ""
	}
	return id.String()
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
