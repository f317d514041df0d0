package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-pdf2audio/internal/broker"
	"github.com/example/go-pdf2audio/internal/config"
	"github.com/example/go-pdf2audio/internal/doctor"
	"github.com/example/go-pdf2audio/internal/jobs"
	"github.com/example/go-pdf2audio/internal/tts"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run backend, directory and store checks",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dcfg, err := doctorConfig(cfg)
			if err != nil {
				return err
			}

			result := doctor.Run(dcfg, os.Stdout)
			if result.Failed() {
				for _, f := range result.Failures() {
					// #nosec G705 -- Writes plain diagnostic text to stderr for CLI output, not HTML rendering.
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")

			return nil
		},
	}

	return cmd
}

func doctorConfig(cfg config.Config) (doctor.Config, error) {
	backend, err := config.NormalizeBackend(cfg.TTS.Backend)
	if err != nil {
		return doctor.Config{}, err
	}

	dcfg := doctor.Config{
		Backend:      backend,
		WritableDirs: []string{cfg.Paths.OutputDir},
	}
	if cfg.Paths.ScratchDir != "" {
		dcfg.WritableDirs = append(dcfg.WritableDirs, cfg.Paths.ScratchDir)
	}

	switch backend {
	case config.BackendCLI:
		synth, err := tts.NewCLISynth(cfg.TTS.Command, cfg.TTS.ExtraArgs)
		if err != nil {
			return doctor.Config{}, err
		}
		exe := synth.Executable()
		dcfg.TTSVersion = func() (string, error) { return probeTTSVersion(exe) }
		dcfg.PythonVersion = probePythonVersion
	case config.BackendOpenAI:
		dcfg.RequireAPIKey = true
		dcfg.APIKey = cfg.OpenAI.APIKey
	}

	if driver, _ := config.NormalizeStoreDriver(cfg.Store.Driver); driver == config.StoreSQLite {
		dcfg.Probes = append(dcfg.Probes, doctor.Probe{
			Name:  "job store",
			Check: func() error { return probeSQLite(cfg.Store.Path) },
		})
	}
	if transport, _ := config.NormalizeTransport(cfg.Queue.Transport); transport == config.TransportNATS && !cfg.NATS.Embedded {
		dcfg.WritableDirs = append(dcfg.WritableDirs, cfg.Paths.UploadDir)
		dcfg.Probes = append(dcfg.Probes, doctor.Probe{
			Name:  "nats",
			Check: func() error { return probeNATS(cfg.NATS.URL) },
		})
	}

	return dcfg, nil
}

// probeTTSVersion resolves exe on PATH and reports its --version output.
func probeTTSVersion(exe string) (string, error) {
	path, err := exec.LookPath(exe)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		// Some TTS front-ends have no --version; being on PATH is enough.
		return path, nil
	}

	ver := strings.TrimSpace(string(out))
	if i := strings.IndexByte(ver, '\n'); i >= 0 {
		ver = ver[:i]
	}
	if ver == "" {
		return path, nil
	}
	return ver, nil
}

// probePythonVersion tries python3 then python and returns the version string.
func probePythonVersion() (string, error) {
	for _, bin := range []string{"python3", "python"} {
		out, err := exec.CommandContext(context.Background(), bin, "--version").Output()
		if err != nil {
			continue
		}
		// Output is e.g. "Python 3.11.4\n"
		raw := strings.TrimPrefix(strings.TrimSpace(string(out)), "Python ")
		if raw != "" {
			return raw, nil
		}
	}

	return "", errors.New("python3/python not found on PATH")
}

func probeSQLite(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := jobs.OpenSQLite(ctx, path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return store.Ping(ctx)
}

func probeNATS(url string) error {
	client, err := broker.Connect(url, "pdf2audio-doctor", nil)
	if err != nil {
		return err
	}
	defer client.Close()
	if !client.Healthy() {
		return errors.New("connection not established")
	}
	return nil
}
