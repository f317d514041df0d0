package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/go-pdf2audio/internal/audio"
	"github.com/example/go-pdf2audio/internal/pipeline"
)

type convertOptions struct {
	out string
}

func newConvertCmd() *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert <file.pdf>",
		Short: "Convert a PDF to a WAV file",
		Long: "Reads the leading pages of a PDF, synthesizes each paragraph and writes the\n" +
			"stitched WAV. Without --out the file is written to the output directory.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			conv, err := buildConverter(cfg, slog.Default())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if d := seconds(cfg.Queue.JobTimeout); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			return runConvert(ctx, conv, args[0], opts.out, cfg.Paths.OutputDir, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output WAV path (overwritten if it exists)")

	return cmd
}

type fileConverter interface {
	Convert(ctx context.Context, data []byte) (audio.Buffer, pipeline.Report, error)
	ConvertToFile(ctx context.Context, data []byte, outputDir string) (string, pipeline.Report, error)
}

func runConvert(ctx context.Context, conv fileConverter, input, out, outputDir string, stdout io.Writer) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var (
		path   string
		report pipeline.Report
	)
	if out == "" {
		path, report, err = conv.ConvertToFile(ctx, data, outputDir)
		if err != nil {
			return err
		}
	} else {
		var buf audio.Buffer
		buf, report, err = conv.Convert(ctx, data)
		if err != nil {
			return err
		}
		if dir := filepath.Dir(out); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}
		if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("replace %s: %w", out, err)
		}
		if err := audio.WriteWAVFile(out, buf); err != nil {
			return err
		}
		path = out
	}

	_, _ = fmt.Fprintf(stdout, "wrote %s (%d of %d chunks)\n", path, report.Succeeded, report.Total)
	for _, f := range report.Failures {
		_, _ = fmt.Fprintf(stdout, "  skipped %s\n", f.Reason)
	}
	return nil
}
