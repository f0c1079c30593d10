package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/newsletter/newsletter/internal/repository"
)

const namespace = "newsletter"

// PoolStatter reports connection pool usage.
type PoolStatter interface {
	Stats() repository.PoolStats
}

// PrometheusRecorder exposes Recorder events as Prometheus collectors on a
// private registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	subscriptionsCreated  prometheus.Counter
	subscriptionsRejected prometheus.Counter
	subscriptionsFailed   *prometheus.CounterVec
	insertDuration        prometheus.Histogram
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
}

// NewPrometheus creates a recorder with Go runtime and process collectors registered.
func NewPrometheus() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	m := &PrometheusRecorder{
		registry: registry,
		subscriptionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_created_total",
			Help:      "Total number of subscriptions stored.",
		}),
		subscriptionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_rejected_total",
			Help:      "Total number of subscription submissions rejected as malformed.",
		}),
		subscriptionsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscriptions_failed_total",
				Help:      "Total number of subscriptions that could not be stored, by error kind.",
			},
			[]string{"kind"},
		),
		insertDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "subscription_insert_duration_seconds",
			Help:      "Duration of subscriber inserts in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.subscriptionsCreated,
		m.subscriptionsRejected,
		m.subscriptionsFailed,
		m.insertDuration,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterPoolStats exports pool usage as gauges sampled at scrape time.
func (m *PrometheusRecorder) RegisterPoolStats(pool PoolStatter) error {
	gauge := func(name, help string, value func(repository.PoolStats) int32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(value(pool.Stats()))
		})
	}

	var errs []error
	for _, c := range []prometheus.Collector{
		gauge("max_connections", "Maximum number of pooled connections.",
			func(s repository.PoolStats) int32 { return s.MaxConns }),
		gauge("total_connections", "Connections currently open.",
			func(s repository.PoolStats) int32 { return s.TotalConns }),
		gauge("acquired_connections", "Connections currently in use.",
			func(s repository.PoolStats) int32 { return s.AcquiredConns }),
		gauge("idle_connections", "Connections currently idle.",
			func(s repository.PoolStats) int32 { return s.IdleConns }),
	} {
		if err := m.registry.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IncSubscriptionCreated increments the created counter.
func (m *PrometheusRecorder) IncSubscriptionCreated() {
	m.subscriptionsCreated.Inc()
}

// IncSubscriptionRejected increments the rejected counter.
func (m *PrometheusRecorder) IncSubscriptionRejected() {
	m.subscriptionsRejected.Inc()
}

// IncSubscriptionFailed increments the failure counter for kind.
func (m *PrometheusRecorder) IncSubscriptionFailed(kind string) {
	label := strings.TrimSpace(kind)
	if label == "" {
		label = "unknown"
	}
	m.subscriptionsFailed.WithLabelValues(label).Inc()
}

// ObserveInsertDuration records insert duration.
func (m *PrometheusRecorder) ObserveInsertDuration(duration time.Duration) {
	m.insertDuration.Observe(max(duration.Seconds(), 0))
}

// ObserveHTTPRequest records one served request.
func (m *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	routeLabel := strings.TrimSpace(route)
	if routeLabel == "" {
		routeLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, routeLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, routeLabel).Observe(duration.Seconds())
}
