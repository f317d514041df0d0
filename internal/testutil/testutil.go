// Package testutil provides shared helpers for tests: skip helpers for
// optional prerequisites, WAV fixtures and a scriptable fake synthesizer.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequireExecutable(t, "tts")
//	    ...
//	}
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// RequireExecutable skips the test if name cannot be found in PATH.
func RequireExecutable(tb testing.TB, name string) {
	tb.Helper()

	if _, err := exec.LookPath(name); err != nil {
		tb.Skipf("%s not available in PATH", name)
	}
}

// RequireEnv skips the test unless the environment variable is set and returns
// its value.
func RequireEnv(tb testing.TB, key string) string {
	tb.Helper()

	v := os.Getenv(key)
	if v == "" {
		tb.Skipf("%s not set", key)
	}
	return v
}

// AssertDirEmpty fails if dir contains any entry matching pattern.
func AssertDirEmpty(tb testing.TB, dir, pattern string) {
	tb.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		tb.Fatalf("glob %q: %v", pattern, err)
	}
	if len(matches) != 0 {
		tb.Fatalf("expected no %q files in %s, found %v", pattern, dir, matches)
	}
}
