// Package jobs runs PDF conversions as background work: a job store, a task
// queue abstraction with an in-process worker pool, the orchestrator used by
// request handlers, and the worker that executes a conversion.
package jobs

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a Job:
// pending -> running -> succeeded | failed. There is no cancellation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// Job is the externally visible record of one conversion.
type Job struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	Result       string    `json:"result,omitempty"`
	Error        string    `json:"error,omitempty"`
	ChunksTotal  int       `json:"chunks_total"`
	ChunksFailed int       `json:"chunks_failed"`
	CreatedAt    time.Time `json:"created_at"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
}

// Outcome is the terminal state written by Finish.
type Outcome struct {
	Status       Status
	Result       string
	Error        string
	ChunksTotal  int
	ChunksFailed int
}

func (o Outcome) validate() error {
	if !o.Status.Terminal() {
		return fmt.Errorf("%w: outcome status %q is not terminal", ErrInvalidTransition, o.Status)
	}
	return nil
}

// canFinish reports whether a job in state from may move to outcome to.
// A pending job may fail (the task never started) but not succeed.
func canFinish(from, to Status) bool {
	switch from {
	case StatusRunning:
		return to.Terminal()
	case StatusPending:
		return to == StatusFailed
	default:
		return false
	}
}
