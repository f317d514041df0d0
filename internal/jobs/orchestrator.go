package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Orchestrator is the submit/poll surface used by request handlers. It never
// runs a conversion itself.
type Orchestrator struct {
	store Store
	queue Queue
	log   *slog.Logger
}

func NewOrchestrator(store Store, queue Queue, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{store: store, queue: queue, log: log.With(slog.String("component", "orchestrator"))}
}

// Submit records a pending job and enqueues it, returning its id without
// waiting for the conversion.
func (o *Orchestrator) Submit(ctx context.Context, pdf []byte, outputDir string) (string, error) {
	if len(pdf) == 0 {
		return "", errors.New("empty PDF upload")
	}

	id := uuid.NewString()
	if err := o.store.Create(ctx, Job{ID: id, Status: StatusPending}); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	if err := o.queue.Enqueue(ctx, Task{JobID: id, PDF: pdf, OutputDir: outputDir}); err != nil {
		reason := fmt.Sprintf("enqueue failed: %v", err)
		if ferr := o.store.Finish(context.WithoutCancel(ctx), id, Outcome{Status: StatusFailed, Error: reason}); ferr != nil {
			o.log.Warn("failed to record enqueue failure",
				slog.String("job_id", id),
				slog.String("error", ferr.Error()))
		}
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	o.log.Info("job submitted", slog.String("job_id", id), slog.Int("pdf_bytes", len(pdf)))
	return id, nil
}

// Poll returns the current state of a job.
func (o *Orchestrator) Poll(ctx context.Context, id string) (Job, error) {
	return o.store.Get(ctx, id)
}
