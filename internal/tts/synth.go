// Package tts adapts speech backends to one contract: synthesize a text chunk
// into a WAV file at a caller-chosen path.
package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/example/go-pdf2audio/internal/config"
)

var (
	// ErrBackendUnavailable means the backend cannot be reached or started at
	// all (missing executable, missing API key).
	ErrBackendUnavailable = errors.New("tts backend unavailable")
	// ErrEmptyOutput means the backend reported success but wrote no audio.
	ErrEmptyOutput = errors.New("tts backend produced no audio")
	// ErrEmptyText is returned for blank input; backends are never called with it.
	ErrEmptyText = errors.New("empty text")
)

// Synthesizer turns one chunk of text into a WAV file at path. Implementations
// must not leave a partial file behind on error. The caller owns path and
// removes it once the audio has been read.
type Synthesizer interface {
	SynthesizeToFile(ctx context.Context, text, path string) error
}

// New builds the Synthesizer selected by cfg.TTS.Backend.
func New(cfg config.Config) (Synthesizer, error) {
	backend, err := config.NormalizeBackend(cfg.TTS.Backend)
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendCLI:
		return NewCLISynth(cfg.TTS.Command, cfg.TTS.ExtraArgs)
	case config.BackendOpenAI:
		return NewOpenAISynth(OpenAIOptions{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Voice:   cfg.OpenAI.Voice,
			Speed:   cfg.OpenAI.Speed,
			Timeout: time.Duration(cfg.OpenAI.Timeout) * time.Second,
		})
	case config.BackendTone:
		return NewToneSynth(cfg.TTS.ToneSampleRate), nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", backend)
	}
}

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}

// checkOutput verifies the backend left a non-empty file at path.
func checkOutput(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmptyOutput, err)
	}
	if st.Size() == 0 {
		_ = os.Remove(path)
		return ErrEmptyOutput
	}
	return nil
}
