// Package doctor provides environment preflight checks for pdf2audio.
package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Probe is a named reachability check such as a store ping.
type Probe struct {
	Name  string
	Check func() error
}

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Backend is the normalized synthesis backend name.
	Backend string
	// TTSVersion reports the local TTS command's version. Nil skips the check.
	TTSVersion VersionFunc
	// PythonVersion returns the interpreter version behind the local TTS
	// command. Nil skips the check.
	PythonVersion VersionFunc
	// RequireAPIKey demands a non-empty APIKey (remote backend).
	RequireAPIKey bool
	APIKey        string
	// WritableDirs must exist (or be creatable) and accept new files.
	WritableDirs []string
	// Probes run after the local checks.
	Probes []Probe
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	fmt.Fprintf(w, "%s backend: %s\n", PassMark, cfg.Backend)

	// ---- local TTS command ------------------------------------------------
	if cfg.TTSVersion == nil {
		fmt.Fprintf(w, "%s tts command: skipped\n", PassMark)
	} else {
		ver, err := cfg.TTSVersion()
		if err != nil {
			res.fail(fmt.Sprintf("tts command: %v", err))
			fmt.Fprintf(w, "%s tts command: not found (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s tts command: %s\n", PassMark, ver)
		}
	}

	// ---- Python version ---------------------------------------------------
	if cfg.PythonVersion == nil {
		fmt.Fprintf(w, "%s python version: skipped\n", PassMark)
	} else {
		pyVer, err := cfg.PythonVersion()
		if err != nil {
			res.fail(fmt.Sprintf("python version: %v", err))
			fmt.Fprintf(w, "%s python version: not found (%v)\n", FailMark, err)
		} else if pyErr := checkPythonVersion(pyVer); pyErr != nil {
			res.fail(fmt.Sprintf("python version: %v", pyErr))
			fmt.Fprintf(w, "%s python version %s: %v\n", FailMark, pyVer, pyErr)
		} else {
			fmt.Fprintf(w, "%s python version: %s\n", PassMark, pyVer)
		}
	}

	// ---- API key ----------------------------------------------------------
	if cfg.RequireAPIKey {
		if strings.TrimSpace(cfg.APIKey) == "" {
			res.fail("api key: OPENAI_API_KEY is not set")
			fmt.Fprintf(w, "%s api key: not set\n", FailMark)
		} else {
			fmt.Fprintf(w, "%s api key: set\n", PassMark)
		}
	}

	// ---- directories ------------------------------------------------------
	for _, dir := range cfg.WritableDirs {
		if err := checkWritable(dir); err != nil {
			res.fail(fmt.Sprintf("directory %q: %v", dir, err))
			fmt.Fprintf(w, "%s directory %s: %v\n", FailMark, dir, err)
		} else {
			fmt.Fprintf(w, "%s directory writable: %s\n", PassMark, dir)
		}
	}

	// ---- probes -----------------------------------------------------------
	for _, p := range cfg.Probes {
		if err := p.Check(); err != nil {
			res.fail(fmt.Sprintf("%s: %v", p.Name, err))
			fmt.Fprintf(w, "%s %s: %v\n", FailMark, p.Name, err)
		} else {
			fmt.Fprintf(w, "%s %s: ok\n", PassMark, p.Name)
		}
	}

	return res
}

// checkWritable creates dir if needed and proves a file can be created in it.
func checkWritable(dir string) error {
	if dir == "" {
		return fmt.Errorf("path is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}

// checkPythonVersion returns an error if ver is outside [3.9, 3.12), the
// range the Coqui TTS command line supports. ver looks like "3.11.4".
func checkPythonVersion(ver string) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 3 {
		return fmt.Errorf("requires Python 3, got %d", major)
	}
	if minor < 9 {
		return fmt.Errorf("requires Python >=3.9, got 3.%d", minor)
	}
	if minor >= 12 {
		return fmt.Errorf("requires Python <3.12, got 3.%d", minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	ver = strings.TrimPrefix(strings.TrimSpace(ver), "Python ")
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
