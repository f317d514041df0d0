package testutil_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-pdf2audio/internal/testutil"
)

func TestRequireExecutable_SkipsWhenAbsent(t *testing.T) {
	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireExecutable(fakeT, "/nonexistent/tts-binary")
	if !skipped {
		t.Error("expected RequireExecutable to skip when binary is absent")
	}
}

func TestRequireEnv_SkipsWhenUnset(t *testing.T) {
	t.Setenv("PDF2AUDIO_TESTUTIL_UNSET", "")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireEnv(fakeT, "PDF2AUDIO_TESTUTIL_UNSET")
	if !skipped {
		t.Error("expected RequireEnv to skip when variable is empty")
	}
}

func TestMakeWAV(t *testing.T) {
	data := testutil.MakeWAV(22050, 2, 2205)
	info := testutil.AssertValidWAV(t, data, 22050, 2)
	if info.Frames != 2205 {
		t.Errorf("Frames = %d; want 2205", info.Frames)
	}
	testutil.AssertWAVDurationApprox(t, data, 0.099, 0.101)
	testutil.AssertWAVDurationApprox(t, testutil.ToneWAV(8000, 1, 8000), 0.999, 1.001)
}

func TestFakeSynth(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")
	f := &testutil.FakeSynth{SampleRate: 16000, Fail: map[string]error{"bad": boom}}

	ok := filepath.Join(dir, "ok.wav")
	if err := f.SynthesizeToFile(context.Background(), "hello", ok); err != nil {
		t.Fatalf("SynthesizeToFile: %v", err)
	}
	data, err := os.ReadFile(ok)
	if err != nil {
		t.Fatal(err)
	}
	if info := testutil.AssertValidWAV(t, data, 16000, 1); info.Frames != f.Frames("hello") {
		t.Errorf("Frames = %d; want %d", info.Frames, f.Frames("hello"))
	}

	if err := f.SynthesizeToFile(context.Background(), "bad", filepath.Join(dir, "bad.wav")); !errors.Is(err, boom) {
		t.Errorf("err = %v; want boom", err)
	}

	if got := f.Calls(); len(got) != 2 || got[0] != "hello" || got[1] != "bad" {
		t.Errorf("Calls() = %v", got)
	}
}

func TestAssertDirEmpty(t *testing.T) {
	dir := t.TempDir()
	testutil.AssertDirEmpty(t, dir, "*.wav")

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	testutil.AssertDirEmpty(t, dir, "*.wav")
}

// skipTracker is a minimal testing.TB implementation that intercepts Skip calls.
type skipTracker struct {
	testing.TB
	onSkip func()
}

func (s *skipTracker) Helper() {}

func (s *skipTracker) Skipf(_ string, _ ...any) {
	s.onSkip()
	// Do NOT call s.TB.Skip, that would actually skip the outer test.
}
