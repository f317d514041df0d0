package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/example/go-pdf2audio/internal/jobs"
)

// Consumer delivers tasks from the stream to a handler. Each subscription
// runs its handler calls one at a time, so workers bounds concurrency.
type Consumer struct {
	subs []*nats.Subscription
	log  *slog.Logger
}

// Consume joins the durable queue group with workers subscriptions. Messages
// are acknowledged on receipt: a conversion that fails or is interrupted is
// recorded as failed and never redelivered.
func Consume(ctx context.Context, c *Client, opts Options, workers int, handler jobs.Handler, log *slog.Logger) (*Consumer, error) {
	if err := EnsureStream(c, opts); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "consumer"))

	cons := &Consumer{log: log}
	cb := func(msg *nats.Msg) {
		var task jobs.Task
		if err := json.Unmarshal(msg.Data, &task); err != nil {
			log.Warn("dropping malformed task", slog.String("error", err.Error()))
			_ = msg.Term()
			return
		}
		if err := msg.Ack(); err != nil {
			log.Warn("failed to ack task", slog.String("job_id", task.JobID), slog.String("error", err.Error()))
		}
		if err := handler.Handle(ctx, task); err != nil {
			log.Warn("task failed", slog.String("job_id", task.JobID), slog.String("error", err.Error()))
		}
	}

	for range workers {
		sub, err := c.JetStream().QueueSubscribe(opts.Subject, opts.QueueGroup, cb,
			nats.Durable(opts.QueueGroup),
			nats.ManualAck(),
			nats.AckExplicit(),
			nats.BindStream(opts.Stream),
		)
		if err != nil {
			cons.Close()
			return nil, fmt.Errorf("subscribe %s: %w", opts.Subject, err)
		}
		cons.subs = append(cons.subs, sub)
	}

	log.Info("consuming tasks",
		slog.String("subject", opts.Subject),
		slog.String("queue_group", opts.QueueGroup),
		slog.Int("workers", workers))
	return cons, nil
}

// Close stops delivery and waits for in-flight handlers.
func (c *Consumer) Close() {
	for _, sub := range c.subs {
		_ = sub.Drain()
	}
}
