package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Registry defaults to a fresh registry so tests can initialise metrics
	// more than once in a process.
	Registry    *prometheus.Registry
	ServiceName string
}

// InitMetrics initializes the Prometheus metrics exporter.
// Returns the MeterProvider and an HTTP handler for /metrics endpoint.
func InitMetrics(cfg MetricsConfig) (*sdkmetric.MeterProvider, http.Handler, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
		promexporter.WithNamespace(namespace(cfg.ServiceName)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})

	return provider, handler, nil
}

// namespace turns a service name such as "loan-servicing" into a valid
// Prometheus namespace.
func namespace(service string) string {
	out := make([]rune, 0, len(service))
	for _, r := range service {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
