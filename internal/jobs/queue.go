package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("queue closed")

// Task is one unit of background work. Exactly one of PDF and PDFPath is set:
// in-process queues carry the bytes, brokers carry a path on shared storage.
type Task struct {
	JobID     string `json:"job_id"`
	PDF       []byte `json:"-"`
	PDFPath   string `json:"pdf_path,omitempty"`
	OutputDir string `json:"output_dir"`
}

// Queue accepts tasks for asynchronous execution.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
}

// Handler executes a task.
type Handler interface {
	Handle(ctx context.Context, task Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task Task) error

func (f HandlerFunc) Handle(ctx context.Context, task Task) error { return f(ctx, task) }

// LocalQueue runs tasks on a fixed pool of goroutines in this process.
type LocalQueue struct {
	tasks   chan Task
	handler Handler
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewLocalQueue starts workers goroutines that run handler. Tasks are buffered
// up to capacity; Enqueue blocks when the buffer is full.
func NewLocalQueue(ctx context.Context, handler Handler, workers, capacity int, log *slog.Logger) *LocalQueue {
	if workers < 1 {
		workers = 1
	}
	if capacity < 0 {
		capacity = 0
	}
	if log == nil {
		log = slog.Default()
	}

	q := &LocalQueue{
		tasks:   make(chan Task, capacity),
		handler: handler,
		log:     log.With(slog.String("component", "local-queue")),
	}

	for range workers {
		q.wg.Add(1)
		go q.run(ctx)
	}
	return q
}

func (q *LocalQueue) run(ctx context.Context) {
	defer q.wg.Done()
	for task := range q.tasks {
		if err := q.handler.Handle(ctx, task); err != nil {
			q.log.Warn("task failed",
				slog.String("job_id", task.JobID),
				slog.String("error", err.Error()))
		}
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for queued and running tasks to finish.
func (q *LocalQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
