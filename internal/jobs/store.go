package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store persists jobs. Implementations must be safe for concurrent use.
type Store interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	// Start moves a pending job to running.
	Start(ctx context.Context, id string) error
	// Finish records a terminal outcome.
	Finish(ctx context.Context, id string, out Outcome) error
	// Prune deletes terminal jobs completed before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// MemoryStore keeps jobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[string]Job
	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job), clock: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = m.clock().UTC()
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, nil
}

func (m *MemoryStore) Start(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, job.Status)
	}
	job.Status = StatusRunning
	job.StartedAt = m.clock().UTC()
	m.jobs[id] = job
	return nil
}

func (m *MemoryStore) Finish(_ context.Context, id string, out Outcome) error {
	if err := out.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !canFinish(job.Status, out.Status) {
		return fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, id, job.Status, out.Status)
	}
	job.Status = out.Status
	job.Result = out.Result
	job.Error = out.Error
	job.ChunksTotal = out.ChunksTotal
	job.ChunksFailed = out.ChunksFailed
	job.CompletedAt = m.clock().UTC()
	m.jobs[id] = job
	return nil
}

func (m *MemoryStore) Prune(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, job := range m.jobs {
		if job.Status.Terminal() && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
