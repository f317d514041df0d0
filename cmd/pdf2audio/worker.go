package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-pdf2audio/internal/broker"
	"github.com/example/go-pdf2audio/internal/jobs"
	"github.com/example/go-pdf2audio/internal/telemetry"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume conversion tasks from NATS",
		Long: "Runs queue.workers consumers on the NATS task stream. Jobs are recorded in the\n" +
			"shared SQLite store, so the API process polls the results this worker writes.",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if err := requireSharedStore(cfg); err != nil {
				return err
			}
			log := slog.Default()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tel, err := telemetry.Setup(ctx, cfg.Telemetry, buildVersion(), log)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tel.Shutdown(shutdownCtx)
			}()

			conv, err := buildConverter(cfg, log)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			client, closeBroker, err := connectBroker(cfg, "pdf2audio-worker", log)
			if err != nil {
				return err
			}
			defer closeBroker()

			worker := jobs.NewWorker(store, conv, seconds(cfg.Queue.JobTimeout), log)
			consumer, err := broker.Consume(ctx, client, brokerOptions(cfg), cfg.Queue.Workers, worker, log)
			if err != nil {
				return err
			}
			defer consumer.Close()

			<-ctx.Done()
			log.Info("worker shutting down")
			return nil
		},
	}

	return cmd
}
