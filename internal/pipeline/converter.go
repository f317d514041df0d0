package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/go-pdf2audio/internal/audio"
	"github.com/example/go-pdf2audio/internal/pdf"
	"github.com/example/go-pdf2audio/internal/text"
)

// FinalSuffix ends every artifact name written by ConvertToFile.
const FinalSuffix = "_final.wav"

// Converter runs extraction, cleaning, segmentation, the chunk pipeline and
// stitching for one PDF. Sync, file and streaming outputs share this path.
type Converter struct {
	extractor     pdf.Extractor
	pipeline      *Pipeline
	maxPages      int
	maxChunkChars int
	log           *slog.Logger
}

// ConverterOptions configures a Converter.
type ConverterOptions struct {
	// MaxPages limits extraction to the leading pages.
	MaxPages int
	// MaxChunkChars re-splits long paragraphs for length-limited backends.
	// Zero keeps paragraphs whole.
	MaxChunkChars int
	Logger        *slog.Logger
}

func NewConverter(extractor pdf.Extractor, p *Pipeline, opts ConverterOptions) *Converter {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Converter{
		extractor:     extractor,
		pipeline:      p,
		maxPages:      opts.MaxPages,
		maxChunkChars: opts.MaxChunkChars,
		log:           log.With(slog.String("component", "converter")),
	}
}

// Prepare extracts, cleans and segments the PDF. Nothing is synthesized.
func (c *Converter) Prepare(data []byte) ([]text.Chunk, error) {
	start := time.Now()
	raw, err := c.extractor.ExtractLeadingPages(data, c.maxPages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	c.log.Debug("text extracted",
		slog.Int("chars", len(raw)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	start = time.Now()
	cleaned := text.Clean(raw)
	if cleaned == "" {
		return nil, ErrNoTextFound
	}
	chunks := text.SplitLong(text.Segment(cleaned), c.maxChunkChars)
	if len(chunks) == 0 {
		return nil, ErrNoTextFound
	}
	c.log.Debug("text segmented",
		slog.Int("chunks", len(chunks)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return chunks, nil
}

// Convert returns the stitched audio for the PDF.
func (c *Converter) Convert(ctx context.Context, data []byte) (buf audio.Buffer, report Report, err error) {
	ctx, span := c.startSpan(ctx, "convert")
	defer func() { c.finish(ctx, span, report, err) }()

	chunks, err := c.Prepare(data)
	if err != nil {
		return audio.Buffer{}, report, err
	}

	buffers, report, err := c.pipeline.Run(ctx, chunks)
	if err != nil {
		return audio.Buffer{}, report, err
	}

	start := time.Now()
	buf, err = audio.Stitch(buffers, report.SampleRate)
	if err != nil {
		return audio.Buffer{}, report, fmt.Errorf("%w: %w", ErrStitch, err)
	}
	c.log.Debug("audio stitched",
		slog.Int("buffers", len(buffers)),
		slog.Int64("audio_ms", buf.Duration().Milliseconds()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return buf, report, nil
}

// ConvertToFile writes the stitched audio to a new uniquely named WAV under
// outputDir and returns its path. Nothing is written when conversion fails.
func (c *Converter) ConvertToFile(ctx context.Context, data []byte, outputDir string) (string, Report, error) {
	buf, report, err := c.Convert(ctx, data)
	if err != nil {
		return "", report, err
	}

	start := time.Now()
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", report, fmt.Errorf("%w: create output dir: %w", ErrStitch, err)
	}

	path := filepath.Join(outputDir, uuid.NewString()+FinalSuffix)
	if err := audio.WriteWAVFile(path, buf); err != nil {
		return "", report, fmt.Errorf("%w: %w", ErrStitch, err)
	}
	c.log.Info("audio saved",
		slog.String("path", path),
		slog.Int("chunks_total", report.Total),
		slog.Int("chunks_failed", report.Failed()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return path, report, nil
}

// ConvertStream writes a streaming WAV to w while chunks complete. The header
// is written with the first successful chunk, so a failure before that leaves
// w untouched and the caller can still send an error response.
func (c *Converter) ConvertStream(ctx context.Context, data []byte, w io.Writer) (report Report, err error) {
	ctx, span := c.startSpan(ctx, "convert.stream")
	defer func() { c.finish(ctx, span, report, err) }()

	chunks, err := c.Prepare(data)
	if err != nil {
		return report, err
	}

	sw := audio.NewStreamWriter(w)
	report, err = c.pipeline.Each(ctx, chunks, func(_ int, buf audio.Buffer) error {
		if err := sw.Write(buf); err != nil {
			return fmt.Errorf("%w: %w", ErrStitch, err)
		}
		return nil
	})
	return report, err
}

func (c *Converter) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.pipeline.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int("pdf.max_pages", c.maxPages)))
}

func (c *Converter) finish(ctx context.Context, span trace.Span, report Report, err error) {
	defer span.End()
	span.SetAttributes(
		attribute.Int("chunks.total", report.Total),
		attribute.Int("chunks.failed", report.Failed()),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.pipeline.metrics.conversion(ctx, Outcome(err))
		return
	}
	c.pipeline.metrics.conversion(ctx, "succeeded")
}

// Outcome classifies a conversion error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, ErrExtraction):
		return "extraction_failed"
	case errors.Is(err, ErrNoTextFound):
		return "no_text"
	case errors.Is(err, ErrNoAudioGenerated):
		return "no_audio"
	case errors.Is(err, ErrStitch):
		return "stitch_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "failed"
	}
}
