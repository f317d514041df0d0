package tts_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/go-pdf2audio/internal/audio"
	"github.com/example/go-pdf2audio/internal/testutil"
	"github.com/example/go-pdf2audio/internal/tts"
)

// These tests talk to real backends and skip unless they are available.

func TestIntegration_CLISynth(t *testing.T) {
	testutil.RequireEnv(t, "PDF2AUDIO_INTEGRATION")
	testutil.RequireExecutable(t, "tts")

	synth, err := tts.NewCLISynth("tts --model_name tts_models/en/ljspeech/vits", nil)
	if err != nil {
		t.Fatalf("NewCLISynth: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	path := filepath.Join(t.TempDir(), "chunk.wav")
	if err := synth.SynthesizeToFile(ctx, "Hello from the integration test.", path); err != nil {
		t.Fatalf("SynthesizeToFile: %v", err)
	}
	buf, err := audio.DecodeWAVFile(path)
	if err != nil {
		t.Fatalf("DecodeWAVFile: %v", err)
	}
	if buf.Frames() == 0 {
		t.Error("synthesized audio is empty")
	}
}

func TestIntegration_OpenAISynth(t *testing.T) {
	key := testutil.RequireEnv(t, "OPENAI_API_KEY")
	testutil.RequireEnv(t, "PDF2AUDIO_INTEGRATION")

	synth, err := tts.NewOpenAISynth(tts.OpenAIOptions{
		APIKey: key,
		Model:  "tts-1",
		Voice:  "alloy",
	})
	if err != nil {
		t.Fatalf("NewOpenAISynth: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	path := filepath.Join(t.TempDir(), "chunk.wav")
	if err := synth.SynthesizeToFile(ctx, "Hello from the integration test.", path); err != nil {
		t.Fatalf("SynthesizeToFile: %v", err)
	}
	if _, err := audio.DecodeWAVFile(path); err != nil {
		t.Fatalf("DecodeWAVFile: %v", err)
	}
}
