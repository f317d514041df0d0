package doctor_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-pdf2audio/internal/doctor"
)

var errBinaryNotFound = errors.New("executable file not found in $PATH")

func hasFailureContaining(failures []string, substr string) bool {
	for _, f := range failures {
		if strings.Contains(strings.ToLower(f), substr) {
			return true
		}
	}
	return false
}

func cliConfig(t *testing.T) doctor.Config {
	t.Helper()
	return doctor.Config{
		Backend:       "cli",
		TTSVersion:    func() (string, error) { return "TTS 0.22.0", nil },
		PythonVersion: func() (string, error) { return "3.11.4", nil },
		WritableDirs:  []string{t.TempDir()},
	}
}

// ---------------------------------------------------------------------------
// all-pass scenario
// ---------------------------------------------------------------------------

func TestRun_AllChecksPass(t *testing.T) {
	var out strings.Builder
	result := doctor.Run(cliConfig(t), &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}
	if !strings.Contains(out.String(), "tts command: TTS 0.22.0") {
		t.Errorf("output should report the tts command version:\n%s", out.String())
	}
}

// ---------------------------------------------------------------------------
// local backend prerequisites
// ---------------------------------------------------------------------------

func TestRun_TTSCommandMissingFails(t *testing.T) {
	cfg := cliConfig(t)
	cfg.TTSVersion = func() (string, error) { return "", errBinaryNotFound }

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure when the tts command is not found")
	}
	if !hasFailureContaining(result.Failures(), "tts command") {
		t.Errorf("expected failure mentioning the tts command, got: %v", result.Failures())
	}
}

func TestRun_PythonOutOfRangeFails(t *testing.T) {
	for _, ver := range []string{"3.8.10", "3.12.1"} {
		t.Run(ver, func(t *testing.T) {
			cfg := cliConfig(t)
			cfg.PythonVersion = func() (string, error) { return ver, nil }

			var out strings.Builder
			result := doctor.Run(cfg, &out)

			if !hasFailureContaining(result.Failures(), "python") {
				t.Errorf("expected failure mentioning python, got: %v", result.Failures())
			}
		})
	}
}

// ---------------------------------------------------------------------------
// remote backend prerequisites
// ---------------------------------------------------------------------------

func TestRun_APIKey(t *testing.T) {
	cfg := doctor.Config{Backend: "openai", RequireAPIKey: true}

	var out strings.Builder
	result := doctor.Run(cfg, &out)
	if !hasFailureContaining(result.Failures(), "api key") {
		t.Errorf("expected api key failure, got: %v", result.Failures())
	}

	cfg.APIKey = "sk-test"
	out.Reset()
	result = doctor.Run(cfg, &out)
	if result.Failed() {
		t.Errorf("expected pass with key set; failures: %v", result.Failures())
	}
	if strings.Contains(out.String(), "sk-test") {
		t.Error("output must not print the key")
	}
}

// ---------------------------------------------------------------------------
// directories and probes
// ---------------------------------------------------------------------------

func TestRun_UnwritableDirFails(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := doctor.Config{Backend: "tone", WritableDirs: []string{file}}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !hasFailureContaining(result.Failures(), "directory") {
		t.Errorf("expected directory failure, got: %v", result.Failures())
	}
}

func TestRun_Probes(t *testing.T) {
	cfg := doctor.Config{
		Backend: "tone",
		Probes: []doctor.Probe{
			{Name: "job store", Check: func() error { return nil }},
			{Name: "nats", Check: func() error { return errors.New("connection refused") }},
		},
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	failures := result.Failures()
	if len(failures) != 1 || !strings.HasPrefix(failures[0], "nats:") {
		t.Fatalf("failures = %v; want only the nats probe", failures)
	}
	if !strings.Contains(out.String(), "job store: ok") {
		t.Errorf("output missing passing probe:\n%s", out.String())
	}
}

// ---------------------------------------------------------------------------
// output
// ---------------------------------------------------------------------------

func TestRun_OutputContainsPassAndFailMarkers(t *testing.T) {
	cfg := cliConfig(t)
	cfg.TTSVersion = func() (string, error) { return "", errBinaryNotFound }

	var out strings.Builder
	doctor.Run(cfg, &out)

	body := out.String()
	if !strings.Contains(body, doctor.PassMark) {
		t.Errorf("output missing pass marker %q:\n%s", doctor.PassMark, body)
	}
	if !strings.Contains(body, doctor.FailMark) {
		t.Errorf("output missing fail marker %q:\n%s", doctor.FailMark, body)
	}
}

func TestRun_SkippedChecks(t *testing.T) {
	var out strings.Builder

	result := doctor.Run(doctor.Config{Backend: "tone"}, &out)
	if result.Failed() {
		t.Fatalf("expected no failures when checks are skipped, got: %v", result.Failures())
	}

	body := out.String()
	if !strings.Contains(body, "tts command: skipped") || !strings.Contains(body, "python version: skipped") {
		t.Fatalf("expected skipped output, got:\n%s", body)
	}
}

func TestResult_FailuresIsACopy(t *testing.T) {
	result := doctor.Run(doctor.Config{
		Backend: "tone",
		Probes:  []doctor.Probe{{Name: "nats", Check: func() error { return errors.New("unreachable") }}},
	}, io.Discard)

	got := result.Failures()
	if len(got) != 1 {
		t.Fatalf("Failures() = %v; want one", got)
	}
	got[0] = "changed"
	if result.Failures()[0] == "changed" {
		t.Error("Failures() exposes internal state")
	}
}
