package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/go-pdf2audio/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve submit_pdf and job_status as MCP tools over stdio",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs stay on stderr.
			log := slog.Default()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conv, err := buildConverter(cfg, log)
			if err != nil {
				return err
			}

			rt, err := startJobs(ctx, cfg, conv, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			srv := mcp.NewServer(mcp.Config{
				ServerName:    "pdf2audio",
				ServerVersion: buildVersion(),
				OutputDir:     cfg.Paths.OutputDir,
				MaxPDFBytes:   cfg.Server.MaxUploadBytes,
				Logger:        log,
			}, rt.orchestrator)

			return srv.Run(ctx)
		},
	}

	return cmd
}
