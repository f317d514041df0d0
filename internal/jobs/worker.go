package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/example/go-pdf2audio/internal/pipeline"
)

// Converter produces the final artifact for one PDF.
type Converter interface {
	ConvertToFile(ctx context.Context, pdf []byte, outputDir string) (string, pipeline.Report, error)
}

// Worker executes tasks: it moves the job to running, converts, and records
// the terminal outcome.
type Worker struct {
	store      Store
	conv       Converter
	jobTimeout time.Duration
	log        *slog.Logger
}

func NewWorker(store Store, conv Converter, jobTimeout time.Duration, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{store: store, conv: conv, jobTimeout: jobTimeout, log: log.With(slog.String("component", "worker"))}
}

// Handle runs one task to completion. A task whose job is not pending (a
// redelivery of work already started) is skipped.
func (w *Worker) Handle(ctx context.Context, task Task) error {
	if task.PDFPath != "" {
		defer func() {
			if err := os.Remove(task.PDFPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				w.log.Warn("failed to remove upload", slog.String("path", task.PDFPath), slog.String("error", err.Error()))
			}
		}()
	}

	if err := w.store.Start(ctx, task.JobID); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			w.log.Info("skipping task for job not pending", slog.String("job_id", task.JobID))
			return nil
		}
		return fmt.Errorf("start job %s: %w", task.JobID, err)
	}

	start := time.Now()
	log := w.log.With(slog.String("job_id", task.JobID))
	log.Info("job started")

	path, report, err := w.run(ctx, task)
	out := Outcome{
		Status:       StatusSucceeded,
		Result:       path,
		ChunksTotal:  report.Total,
		ChunksFailed: report.Failed(),
	}
	if err != nil {
		out.Status = StatusFailed
		out.Result = ""
		out.Error = err.Error()
	}

	// Record the outcome even when the job's context has expired.
	if ferr := w.store.Finish(context.WithoutCancel(ctx), task.JobID, out); ferr != nil {
		return fmt.Errorf("finish job %s: %w", task.JobID, ferr)
	}

	attrs := []any{
		slog.String("status", string(out.Status)),
		slog.Int("chunks_total", out.ChunksTotal),
		slog.Int("chunks_failed", out.ChunksFailed),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		log.Warn("job failed", append(attrs, slog.String("error", err.Error()))...)
		return nil
	}
	log.Info("job succeeded", append(attrs, slog.String("result", path))...)
	return nil
}

func (w *Worker) run(ctx context.Context, task Task) (string, pipeline.Report, error) {
	data := task.PDF
	if data == nil && task.PDFPath != "" {
		var err error
		data, err = os.ReadFile(task.PDFPath)
		if err != nil {
			return "", pipeline.Report{}, fmt.Errorf("read upload: %w", err)
		}
	}

	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	return w.conv.ConvertToFile(ctx, data, task.OutputDir)
}
