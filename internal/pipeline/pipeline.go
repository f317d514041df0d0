// Package pipeline turns text chunks into audio through a Synthesizer,
// tolerating per-chunk failures, and composes the full PDF to WAV conversion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/go-pdf2audio/internal/audio"
	"github.com/example/go-pdf2audio/internal/text"
	"github.com/example/go-pdf2audio/internal/tts"
)

// Options configures a Pipeline.
type Options struct {
	// ScratchDir holds per-chunk audio while it is decoded. Empty means os.TempDir().
	ScratchDir string
	// ChunkTimeout bounds one synthesis call. Zero means no limit.
	ChunkTimeout time.Duration
	Logger       *slog.Logger
}

// Pipeline synthesizes chunks sequentially, in order.
type Pipeline struct {
	synth        tts.Synthesizer
	scratchDir   string
	chunkTimeout time.Duration
	log          *slog.Logger
	tracer       trace.Tracer
	metrics      *metrics
}

// ChunkResult is the outcome of one chunk: a Buffer or an Err, never both.
type ChunkResult struct {
	Index  int
	Buffer audio.Buffer
	Err    error
}

// ChunkFailure records why a chunk was skipped.
type ChunkFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Report summarizes a run. SampleRate and Channels are the reference format
// fixed by the first successful chunk.
type Report struct {
	Total      int            `json:"total"`
	Succeeded  int            `json:"succeeded"`
	Failures   []ChunkFailure `json:"failures,omitempty"`
	SampleRate int            `json:"sample_rate"`
	Channels   int            `json:"channels"`
}

// Failed returns the number of skipped chunks.
func (r Report) Failed() int { return len(r.Failures) }

func New(synth tts.Synthesizer, opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "pipeline"))

	dir := opts.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}

	return &Pipeline{
		synth:        synth,
		scratchDir:   dir,
		chunkTimeout: opts.ChunkTimeout,
		log:          log,
		tracer:       otel.Tracer(instrumentationName),
		metrics:      newMetrics(log),
	}
}

// Run synthesizes every chunk and returns the successful buffers in chunk
// order. It fails with ErrNoAudioGenerated only when no chunk succeeded.
func (p *Pipeline) Run(ctx context.Context, chunks []text.Chunk) ([]audio.Buffer, Report, error) {
	buffers := make([]audio.Buffer, 0, len(chunks))
	report, err := p.Each(ctx, chunks, func(_ int, buf audio.Buffer) error {
		buffers = append(buffers, buf)
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return buffers, report, nil
}

// Each synthesizes chunks in order and hands every successful buffer to emit
// as soon as it is decoded. Failed chunks are logged, recorded in the Report
// and skipped. An error from emit or from ctx stops the run.
func (p *Pipeline) Each(ctx context.Context, chunks []text.Chunk, emit func(index int, buf audio.Buffer) error) (Report, error) {
	var report Report
	var ref audio.Buffer

	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Total++

		res := p.process(ctx, chunk, ref)
		if res.Err != nil {
			// A cancelled job is not a chunk failure.
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Failures = append(report.Failures, ChunkFailure{Index: res.Index, Reason: res.Err.Error()})
			p.log.Warn("chunk synthesis failed",
				slog.Int("chunk", res.Index),
				slog.String("error", res.Err.Error()))
			continue
		}

		if report.Succeeded == 0 {
			ref = audio.Buffer{SampleRate: res.Buffer.SampleRate, Channels: res.Buffer.Channels}
			report.SampleRate = ref.SampleRate
			report.Channels = ref.Channels
		}
		report.Succeeded++

		if err := emit(res.Index, res.Buffer); err != nil {
			return report, err
		}
	}

	if report.Succeeded == 0 {
		return report, ErrNoAudioGenerated
	}
	return report, nil
}

// process runs one chunk and validates it against the reference format.
func (p *Pipeline) process(ctx context.Context, chunk text.Chunk, ref audio.Buffer) ChunkResult {
	ctx, span := p.tracer.Start(ctx, "pipeline.chunk",
		trace.WithAttributes(attribute.Int("chunk.index", chunk.Index), attribute.Int("chunk.chars", len(chunk.Text))))
	defer span.End()

	start := time.Now()
	res := p.synthesize(ctx, chunk)
	if res.Err == nil && ref.SampleRate != 0 && !ref.SameFormat(res.Buffer) {
		res = ChunkResult{Index: chunk.Index, Err: &SynthesisError{
			Index: chunk.Index,
			Err: fmt.Errorf("%w: got %d Hz/%d ch, want %d Hz/%d ch", audio.ErrSampleRateMismatch,
				res.Buffer.SampleRate, res.Buffer.Channels, ref.SampleRate, ref.Channels),
		}}
	}
	elapsed := time.Since(start)
	p.metrics.chunk(ctx, res.Err == nil, elapsed)

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		return res
	}

	span.SetAttributes(attribute.Int("audio.sample_rate", res.Buffer.SampleRate))
	p.log.Debug("chunk synthesized",
		slog.Int("chunk", chunk.Index),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
		slog.Int64("audio_ms", res.Buffer.Duration().Milliseconds()))
	return res
}

// synthesize owns the chunk's scratch file: it is removed on every path,
// including a panicking backend or decoder.
func (p *Pipeline) synthesize(ctx context.Context, chunk text.Chunk) (res ChunkResult) {
	res.Index = chunk.Index
	path := filepath.Join(p.scratchDir, "pdf2audio-"+uuid.NewString()+".wav")

	defer func() {
		if r := recover(); r != nil {
			res = ChunkResult{Index: chunk.Index, Err: &SynthesisError{Index: chunk.Index, Err: fmt.Errorf("panic: %v", r)}}
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.log.Warn("failed to remove scratch file",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}()

	if p.chunkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.chunkTimeout)
		defer cancel()
	}

	if err := p.synth.SynthesizeToFile(ctx, chunk.Text, path); err != nil {
		res.Err = &SynthesisError{Index: chunk.Index, Err: err}
		return res
	}

	buf, err := audio.DecodeWAVFile(path)
	if err != nil {
		res.Err = &SynthesisError{Index: chunk.Index, Err: fmt.Errorf("decode chunk audio: %w", err)}
		return res
	}
	if len(buf.Samples) == 0 {
		res.Err = &SynthesisError{Index: chunk.Index, Err: tts.ErrEmptyOutput}
		return res
	}

	res.Buffer = buf
	return res
}
