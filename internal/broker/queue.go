package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nats-io/nats.go"

	"github.com/example/go-pdf2audio/internal/jobs"
)

// Options names the stream, subject and consumer group tasks travel on.
type Options struct {
	Stream     string
	Subject    string
	QueueGroup string
	// UploadDir must be shared by producers and workers.
	UploadDir string
}

// EnsureStream creates the work-queue stream if it does not exist.
func EnsureStream(c *Client, opts Options) error {
	js := c.JetStream()
	_, err := js.StreamInfo(opts.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", opts.Stream, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      opts.Stream,
		Subjects:  []string{opts.Subject},
		Storage:   nats.FileStorage,
		Retention: nats.WorkQueuePolicy,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", opts.Stream, err)
	}
	c.log.Info("created task stream", slog.String("stream", opts.Stream), slog.String("subject", opts.Subject))
	return nil
}

// Queue publishes tasks to JetStream. PDF bytes are written to UploadDir and
// only the path travels in the message.
type Queue struct {
	client *Client
	opts   Options
}

func NewQueue(c *Client, opts Options) (*Queue, error) {
	if err := os.MkdirAll(opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if err := EnsureStream(c, opts); err != nil {
		return nil, err
	}
	return &Queue{client: c, opts: opts}, nil
}

func (q *Queue) Enqueue(ctx context.Context, task jobs.Task) error {
	var written string
	if task.PDFPath == "" {
		written = filepath.Join(q.opts.UploadDir, task.JobID+".pdf")
		if err := os.WriteFile(written, task.PDF, 0o644); err != nil {
			return fmt.Errorf("store upload: %w", err)
		}
		task.PDFPath = written
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	if _, err := q.client.JetStream().Publish(q.opts.Subject, data, nats.Context(ctx)); err != nil {
		if written != "" {
			_ = os.Remove(written)
		}
		return fmt.Errorf("publish task: %w", err)
	}
	return nil
}
