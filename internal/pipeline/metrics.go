package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/example/go-pdf2audio/internal/pipeline"

type metrics struct {
	synthesized metric.Int64Counter
	failed      metric.Int64Counter
	chunkTime   metric.Float64Histogram
	conversions metric.Int64Counter
}

func newMetrics(log *slog.Logger) *metrics {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}
	var err error

	if m.synthesized, err = meter.Int64Counter("pdf2audio.chunks.synthesized",
		metric.WithDescription("Chunks synthesized successfully")); err != nil {
		log.Warn("failed to create metric", slog.String("error", err.Error()))
	}
	if m.failed, err = meter.Int64Counter("pdf2audio.chunks.failed",
		metric.WithDescription("Chunks that failed synthesis and were skipped")); err != nil {
		log.Warn("failed to create metric", slog.String("error", err.Error()))
	}
	if m.chunkTime, err = meter.Float64Histogram("pdf2audio.chunk.duration",
		metric.WithDescription("Wall time per chunk synthesis"),
		metric.WithUnit("s")); err != nil {
		log.Warn("failed to create metric", slog.String("error", err.Error()))
	}
	if m.conversions, err = meter.Int64Counter("pdf2audio.conversions",
		metric.WithDescription("Completed conversions by outcome")); err != nil {
		log.Warn("failed to create metric", slog.String("error", err.Error()))
	}

	return m
}

func (m *metrics) chunk(ctx context.Context, ok bool, elapsed time.Duration) {
	if m.chunkTime != nil {
		m.chunkTime.Record(ctx, elapsed.Seconds())
	}
	if ok && m.synthesized != nil {
		m.synthesized.Add(ctx, 1)
	} else if !ok && m.failed != nil {
		m.failed.Add(ctx, 1)
	}
}

func (m *metrics) conversion(ctx context.Context, outcome string) {
	if m.conversions != nil {
		m.conversions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
