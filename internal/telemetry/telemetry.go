// Package telemetry installs the global OpenTelemetry trace and meter
// providers and exposes collected metrics in Prometheus format.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/example/go-pdf2audio/internal/config"
)

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Telemetry holds the installed providers.
type Telemetry struct {
	handler  http.Handler
	shutdown func(context.Context) error
}

// Handler serves /metrics.
func (t *Telemetry) Handler() http.Handler { return t.handler }

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error { return t.shutdown(ctx) }

// Setup installs global providers according to cfg. Metrics are always
// collected for /metrics; traces are exported only when an exporter is set.
func Setup(ctx context.Context, cfg config.TelemetryConfig, version string, log *slog.Logger) (*Telemetry, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "pdf2audio"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	tp, err := initTracer(ctx, cfg, res, log)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)

	mp, handler, err := initMetrics(res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}

	return &Telemetry{handler: handler, shutdown: shutdown}, nil
}

func initTracer(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource, log *slog.Logger) (*sdktrace.TracerProvider, error) {
	exporter := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	switch exporter {
	case "", ExporterNone:
		return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		log.Info("telemetry initialized", slog.String("exporter", ExporterStdout))
		return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res)), nil
	case ExporterOTLP:
		endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		if endpoint == "" {
			return nil, errors.New("telemetry.otlp_endpoint is required for the otlp exporter")
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		log.Info("telemetry initialized", slog.String("exporter", ExporterOTLP), slog.String("endpoint", endpoint))
		return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res)), nil
	default:
		return nil, fmt.Errorf("invalid telemetry exporter %q (expected %s|%s|%s)", cfg.Exporter, ExporterNone, ExporterStdout, ExporterOTLP)
	}
}

// initMetrics uses a private registry so repeated Setup calls (tests) do not
// collide on the default one.
func initMetrics(res *resource.Resource) (*sdkmetric.MeterProvider, http.Handler, error) {
	reg := prometheus.NewRegistry()
	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exp),
		sdkmetric.WithResource(res),
	)
	return mp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
