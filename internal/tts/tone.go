package tts

import (
	"context"
	"math"
	"unicode/utf8"

	"github.com/example/go-pdf2audio/internal/audio"
)

const (
	toneFrequency = 440.0
	toneAmplitude = 0.2
	// Each rune of input becomes this much audio.
	toneSecondsPerRune = 0.01
	toneMinSeconds     = 0.1
)

// ToneSynth renders a sine tone whose length is proportional to the text.
// It needs no model and is used for local development and tests.
type ToneSynth struct {
	sampleRate int
}

func NewToneSynth(sampleRate int) *ToneSynth {
	if sampleRate < 1 {
		sampleRate = 22050
	}
	return &ToneSynth{sampleRate: sampleRate}
}

// Frames returns how many sample frames text renders to.
func (t *ToneSynth) Frames(text string) int {
	seconds := math.Max(toneMinSeconds, float64(utf8.RuneCountInString(text))*toneSecondsPerRune)
	return int(seconds * float64(t.sampleRate))
}

func (t *ToneSynth) SynthesizeToFile(ctx context.Context, text, path string) error {
	if err := checkText(text); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n := t.Frames(text)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = toneAmplitude * float32(math.Sin(2*math.Pi*toneFrequency*float64(i)/float64(t.sampleRate)))
	}

	return audio.WriteWAVFile(path, audio.Buffer{Samples: samples, SampleRate: t.sampleRate, Channels: 1})
}
