package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures span export.
type ProviderConfig struct {
	// Endpoint is the OTLP gRPC collector (e.g. http://localhost:4317).
	// Empty disables export; spans are still created so ids reach the logs.
	Endpoint    string
	ServiceName string
	// Insecure forces plaintext even for https endpoints.
	Insecure bool
}

// Provider owns the SDK TracerProvider for the process.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
}

// NewProvider builds the process TracerProvider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return &Provider{
			TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithResource(res)),
		}, nil
	}

	target, insecure, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target)}
	if insecure || cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}

	return &Provider{
		TracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		),
	}, nil
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.TracerProvider == nil {
		return nil
	}
	return p.TracerProvider.Shutdown(ctx)
}

// parseEndpoint reduces an endpoint URL to the host:port gRPC dials.
// Only https endpoints use TLS.
func parseEndpoint(endpoint string) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, u.Scheme != "https", nil
}
