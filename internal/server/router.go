package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/newsletter/newsletter/internal/handler"
	"github.com/newsletter/newsletter/internal/metrics"
	"github.com/newsletter/newsletter/internal/middleware"
	"github.com/newsletter/newsletter/internal/telemetry"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Logger *slog.Logger
	Tracer *telemetry.Tracer
	Store  handler.SubscriberStore
	// Health is pinged by /readyz. Nil reports the database as not configured.
	Health  handler.HealthChecker
	Metrics metrics.Recorder
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	TrustInboundRequestID bool
	Security              middleware.SecurityConfig
	CORSAllowedOrigins    []string
}

// NewRouter builds the chi router with the global middleware chain and all routes.
//
// Middleware order, outermost first: RealIP, RequestID, Trace, Logger,
// metrics, Security, CORS, Recoverer. Any unmatched method or path is a 404.
func NewRouter(deps Dependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = telemetry.NewTracer(nil, logger)
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	h := handler.New()
	healthHandler := handler.NewHealthHandler(deps.Health)
	subscriptionHandler := handler.NewSubscriptionHandler(deps.Store, tracer, recorder)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID(deps.TrustInboundRequestID))
	r.Use(middleware.Trace(tracer))
	r.Use(middleware.Logger(logger))
	r.Use(metrics.HTTPMiddleware(recorder))
	r.Use(middleware.Security(deps.Security))
	if len(deps.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader, "traceparent"},
			ExposedHeaders: []string{middleware.RequestIDHeader, middleware.TraceIDHeader},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.Recoverer(logger))

	r.Get("/", h.Hello)
	r.Get("/health_check", healthHandler.HealthCheck)
	r.Get("/readyz", healthHandler.Readyz)
	r.Post("/subscriptions", subscriptionHandler.Subscribe)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.NotFound)

	return r
}
