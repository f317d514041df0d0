package testutil

import (
	"context"
	"os"
	"sync"
	"unicode/utf8"
)

// FakeSynth is a scriptable synthesizer. It writes silent 16-bit WAV files
// whose length is FramesPerRune frames per rune of input.
type FakeSynth struct {
	SampleRate    int
	Channels      int
	FramesPerRune int
	// Fail maps chunk text to the error returned for it.
	Fail map[string]error
	// Rates overrides the sample rate for specific chunk text.
	Rates map[string]int
	// Garbage lists chunk text for which an undecodable file is written.
	Garbage map[string]bool
	// Panic lists chunk text for which the call panics after writing output.
	Panic map[string]bool

	mu    sync.Mutex
	calls []string
	paths []string
}

func (f *FakeSynth) SynthesizeToFile(ctx context.Context, text, path string) error {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.paths = append(f.paths, path)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := f.Fail[text]; ok {
		// Leave a partial file behind to prove the caller cleans up.
		_ = os.WriteFile(path, []byte("partial"), 0o644)
		return err
	}
	if f.Garbage[text] {
		return os.WriteFile(path, []byte("this is not a wav file at all, not even close"), 0o644)
	}

	rate := f.SampleRate
	if r, ok := f.Rates[text]; ok {
		rate = r
	}
	if err := os.WriteFile(path, MakeWAV(rate, f.channels(), f.Frames(text)), 0o644); err != nil {
		return err
	}
	if f.Panic[text] {
		panic("fake synth panic")
	}
	return nil
}

// Frames returns the frame count written for text.
func (f *FakeSynth) Frames(text string) int {
	n := f.FramesPerRune
	if n == 0 {
		n = 10
	}
	return utf8.RuneCountInString(text) * n
}

func (f *FakeSynth) channels() int {
	if f.Channels == 0 {
		return 1
	}
	return f.Channels
}

// Calls returns the texts passed to SynthesizeToFile, in call order.
func (f *FakeSynth) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Paths returns the scratch paths passed to SynthesizeToFile.
func (f *FakeSynth) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}
