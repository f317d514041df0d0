package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

const maxStderrTail = 2048

// CLISynth runs a local text-to-speech command once per chunk. The command
// line is parsed shell-style and extended with
// "--text <chunk> --out_path <path>" followed by pass-through arguments.
type CLISynth struct {
	cmd   []string
	extra []string
}

// NewCLISynth parses command and extraArgs (key=value items).
func NewCLISynth(command string, extraArgs []string) (*CLISynth, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("tts command empty")
	}

	extra, err := buildPassthroughArgs(extraArgs)
	if err != nil {
		return nil, err
	}

	return &CLISynth{cmd: args, extra: extra}, nil
}

// Executable returns the program the synthesizer runs.
func (c *CLISynth) Executable() string { return c.cmd[0] }

func (c *CLISynth) SynthesizeToFile(ctx context.Context, text, path string) error {
	if err := checkText(text); err != nil {
		return err
	}

	args := append([]string{}, c.cmd[1:]...)
	args = append(args, "--text", text, "--out_path", path)
	args = append(args, c.extra...)

	cmd := exec.CommandContext(ctx, c.cmd[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(path)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("tts command: %w", ctxErr)
		}
		return mapCLIError(c.cmd[0], err, stderr.Bytes())
	}

	return checkOutput(path)
}

func mapCLIError(exe string, err error, stderr []byte) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s executable not found; set tts.command or PDF2AUDIO_TTS_COMMAND: %w",
			ErrBackendUnavailable, exe, err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		tail := strings.TrimSpace(string(stderr))
		if len(tail) > maxStderrTail {
			tail = tail[len(tail)-maxStderrTail:]
		}
		if tail == "" {
			return fmt.Errorf("tts command exited with code %d: %w", exitErr.ExitCode(), err)
		}
		return fmt.Errorf("tts command exited with code %d: %s: %w", exitErr.ExitCode(), tail, err)
	}

	return fmt.Errorf("tts command: %w", err)
}

func buildPassthroughArgs(items []string) ([]string, error) {
	args := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, val, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --tts-arg %q: expected key=value", item)
		}
		key = strings.TrimLeft(strings.TrimSpace(key), "-")
		if key == "" {
			return nil, fmt.Errorf("invalid --tts-arg %q: empty key", item)
		}
		args = append(args, "--"+key, strings.TrimSpace(val))
	}
	return args, nil
}
