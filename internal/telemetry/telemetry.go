// Package telemetry sets up OpenTelemetry metrics exported in the Prometheus
// format, and the tracer used for publish spans.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName scopes every meter and tracer of the service.
const InstrumentationName = "github.com/abdulachik/crosspost"

// ExporterStdout writes finished spans as JSON.
const ExporterStdout = "stdout"

// Config holds telemetry settings.
type Config struct {
	// Enabled turns on the Prometheus metrics exporter.
	Enabled     bool
	ServiceName string
	Version     string

	// TraceExporter picks where spans go. Anything but ExporterStdout leaves
	// spans unexported unless SpanProcessors are given.
	TraceExporter string
	// TraceOutput receives stdout spans; defaults to stderr.
	TraceOutput io.Writer
	// SpanProcessors are registered on the tracer provider as is.
	SpanProcessors []sdktrace.SpanProcessor
}

func (c Config) tracing() bool {
	return c.TraceExporter == ExporterStdout || len(c.SpanProcessors) > 0
}

// Telemetry owns the meter and tracer providers and the registry /metrics
// reads from.
type Telemetry struct {
	registry *promclient.Registry
	provider *sdkmetric.MeterProvider
	tracer   *sdktrace.TracerProvider
}

// Init installs a global meter provider backed by a Prometheus exporter and,
// when tracing is configured, a global tracer provider. Whatever is disabled
// keeps the global no-op provider, and a disabled metrics exporter makes the
// handler serve 404.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled && !cfg.tracing() {
		slog.Info("telemetry disabled")
		return &Telemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	t := &Telemetry{}

	if cfg.Enabled {
		registry := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		t.registry = registry
		t.provider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(t.provider)
		slog.Info("prometheus exporter initialized", "service", cfg.ServiceName)
	}

	if cfg.tracing() {
		opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

		if cfg.TraceExporter == ExporterStdout {
			out := cfg.TraceOutput
			if out == nil {
				out = os.Stderr
			}
			exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
			if err != nil {
				t.Shutdown(ctx)
				return nil, fmt.Errorf("create stdout trace exporter: %w", err)
			}
			opts = append(opts, sdktrace.WithBatcher(exporter))
		}
		for _, sp := range cfg.SpanProcessors {
			opts = append(opts, sdktrace.WithSpanProcessor(sp))
		}

		t.tracer = sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(t.tracer)
		slog.Info("tracer provider initialized", "exporter", cfg.TraceExporter)
	}

	return t, nil
}

// Handler serves the collected metrics.
func (t *Telemetry) Handler() http.Handler {
	if t == nil || t.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tracer != nil {
		errs = append(errs, t.tracer.Shutdown(ctx))
	}
	if t.provider != nil {
		errs = append(errs, t.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Meter returns the service meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(InstrumentationName)
}

// StartSpan starts a new span on the global tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, name, opts...)
}
