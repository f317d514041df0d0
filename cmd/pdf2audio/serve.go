package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-pdf2audio/internal/server"
	"github.com/example/go-pdf2audio/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pdf2audio HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
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
				if err := tel.Shutdown(shutdownCtx); err != nil {
					log.Warn("telemetry shutdown", slog.String("error", err.Error()))
				}
			}()

			conv, err := buildConverter(cfg, log)
			if err != nil {
				return err
			}

			rt, err := startJobs(ctx, cfg, conv, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			srv := server.New(cfg, conv, rt.orchestrator).
				WithMetrics(tel.Handler()).
				WithLogger(log)

			return srv.Start(ctx)
		},
	}

	return cmd
}
