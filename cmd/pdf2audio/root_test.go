package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-pdf2audio/internal/config"
)

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"serve", "worker", "convert", "health", "doctor", "mcp"}
	for _, name := range want {
		found := false

		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("expected subcommand %q not found in root", name)
		}
	}
}

func TestNewRootCmd_HasPersistentFlags(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"config", "env-file", "backend", "log-level"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected --%s persistent flag to be registered", name)
		}
	}
}

func TestSetupLogger_DoesNotPanic(_ *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "not-a-level"} {
		setupLogger(level)
	}
}

func TestRequireConfig(t *testing.T) {
	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{}
	if _, err := requireConfig(); err == nil {
		t.Fatal("expected error when config is not loaded")
	}

	activeCfg = config.DefaultConfig()
	got, err := requireConfig()
	if err != nil {
		t.Fatalf("requireConfig: %v", err)
	}
	if got.Paths.OutputDir != "static/audio" {
		t.Errorf("OutputDir = %q", got.Paths.OutputDir)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PDF2AUDIO_DOTENV_TEST=from-file\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("PDF2AUDIO_DOTENV_TEST", "")
	os.Unsetenv("PDF2AUDIO_DOTENV_TEST")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if got := os.Getenv("PDF2AUDIO_DOTENV_TEST"); got != "from-file" {
		t.Errorf("PDF2AUDIO_DOTENV_TEST = %q; want from-file", got)
	}
}

func TestRootCmd_LoadsConfigBeforeRunning(t *testing.T) {
	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })
	t.Setenv("PDF2AUDIO_PDF_MAX_PAGES", "2")

	root := NewRootCmd()
	root.SetArgs([]string{"--env-file", "", "--backend", "tone", "health", "--addr", "127.0.0.1:1"})
	root.SetOut(&discard{})
	root.SetErr(&discard{})

	// The probe fails, but configuration must be loaded first.
	_ = root.Execute()

	if activeCfg.TTS.Backend != "tone" || activeCfg.PDF.MaxPages != 2 {
		t.Errorf("active config = backend %q, max_pages %d", activeCfg.TTS.Backend, activeCfg.PDF.MaxPages)
	}
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }
