package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OpenAIOptions configures the remote speech API backend.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
	Speed   float64
	Timeout time.Duration
	Client  *http.Client
}

// OpenAISynth requests WAV audio from an OpenAI-compatible /audio/speech endpoint.
type OpenAISynth struct {
	opts   OpenAIOptions
	client *http.Client
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

func NewOpenAISynth(opts OpenAIOptions) (*OpenAISynth, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%w: openai api key is required (set OPENAI_API_KEY)", ErrBackendUnavailable)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	return &OpenAISynth{opts: opts, client: client}, nil
}

func (s *OpenAISynth) SynthesizeToFile(ctx context.Context, text, path string) error {
	if err := checkText(text); err != nil {
		return err
	}

	body, err := json.Marshal(speechRequest{
		Model:          s.opts.Model,
		Input:          text,
		Voice:          s.opts.Voice,
		Speed:          s.opts.Speed,
		ResponseFormat: "wav",
	})
	if err != nil {
		return fmt.Errorf("encode speech request: %w", err)
	}

	// Use the caller's deadline when it has one.
	reqCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.opts.BaseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("speech request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxStderrTail))
		return fmt.Errorf("openai error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if err := writeBody(path, resp.Body); err != nil {
		return err
	}

	return checkOutput(path)
}

func writeBody(path string, r io.Reader) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close audio file: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("read speech response: %w", err)
	}
	return nil
}
