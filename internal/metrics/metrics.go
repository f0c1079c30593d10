// Package metrics provides lightweight hooks for instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Subscription metrics
	IncSubscriptionCreated()
	IncSubscriptionRejected()
	IncSubscriptionFailed(kind string)
	ObserveInsertDuration(duration time.Duration)

	// HTTP metrics
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

// HTTPMiddleware records one observation per request, labelled with the
// matched chi route pattern. Scrapes of /metrics are not recorded.
func HTTPMiddleware(rec Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			if route == "/metrics" {
				return
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rec.ObserveHTTPRequest(r.Method, route, status, time.Since(start))
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
