package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/go-pdf2audio/internal/audio"
	"github.com/example/go-pdf2audio/internal/testutil"
	"github.com/example/go-pdf2audio/internal/text"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T, synth *testutil.FakeSynth) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	return New(synth, Options{ScratchDir: dir, Logger: discardLogger()}), dir
}

func chunksOf(texts ...string) []text.Chunk {
	out := make([]text.Chunk, len(texts))
	for i, s := range texts {
		out[i] = text.Chunk{Index: i, Text: s}
	}
	return out
}

func TestRun_AllSucceed(t *testing.T) {
	synth := &testutil.FakeSynth{SampleRate: 16000}
	p, scratch := newTestPipeline(t, synth)

	bufs, report, err := p.Run(context.Background(), chunksOf("one", "three", "fivefive"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(bufs) != 3 {
		t.Fatalf("got %d buffers; want 3", len(bufs))
	}
	for i, want := range []string{"one", "three", "fivefive"} {
		if bufs[i].Frames() != synth.Frames(want) {
			t.Errorf("buffer %d frames = %d; want %d (order broken?)", i, bufs[i].Frames(), synth.Frames(want))
		}
	}
	if report.Total != 3 || report.Succeeded != 3 || report.Failed() != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.SampleRate != 16000 || report.Channels != 1 {
		t.Errorf("reference format = %d/%d; want 16000/1", report.SampleRate, report.Channels)
	}
	testutil.AssertDirEmpty(t, scratch, "*")
}

func TestRun_PartialFailure(t *testing.T) {
	synth := &testutil.FakeSynth{
		SampleRate: 16000,
		Fail:       map[string]error{"bb": errors.New("model exploded")},
		Garbage:    map[string]bool{"dddd": true},
	}
	p, scratch := newTestPipeline(t, synth)

	bufs, report, err := p.Run(context.Background(), chunksOf("a", "bb", "ccc", "dddd", "eeeee"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"a", "ccc", "eeeee"}
	if len(bufs) != len(want) {
		t.Fatalf("got %d buffers; want %d", len(bufs), len(want))
	}
	for i, w := range want {
		if bufs[i].Frames() != synth.Frames(w) {
			t.Errorf("buffer %d frames = %d; want %d", i, bufs[i].Frames(), synth.Frames(w))
		}
	}

	if report.Total != 5 || report.Succeeded != 3 || report.Failed() != 2 {
		t.Errorf("report = %+v", report)
	}
	if report.Failures[0].Index != 1 || report.Failures[1].Index != 3 {
		t.Errorf("failure indices = %+v; want 1 and 3", report.Failures)
	}
	testutil.AssertDirEmpty(t, scratch, "*")
}

func TestRun_AllFail(t *testing.T) {
	boom := errors.New("unreachable backend")
	synth := &testutil.FakeSynth{
		SampleRate: 16000,
		Fail:       map[string]error{"x": boom, "y": boom},
	}
	p, scratch := newTestPipeline(t, synth)

	bufs, report, err := p.Run(context.Background(), chunksOf("x", "y"))
	if !errors.Is(err, ErrNoAudioGenerated) {
		t.Fatalf("err = %v; want ErrNoAudioGenerated", err)
	}
	if bufs != nil {
		t.Errorf("buffers = %v; want nil", bufs)
	}
	if report.Failed() != 2 {
		t.Errorf("Failed() = %d; want 2", report.Failed())
	}
	testutil.AssertDirEmpty(t, scratch, "*")
}

func TestRun_SkipsBlankChunks(t *testing.T) {
	synth := &testutil.FakeSynth{SampleRate: 8000}
	p, _ := newTestPipeline(t, synth)

	_, report, err := p.Run(context.Background(), chunksOf("  ", "real", "\n"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Total != 1 {
		t.Errorf("Total = %d; want 1", report.Total)
	}
	if calls := synth.Calls(); len(calls) != 1 || calls[0] != "real" {
		t.Errorf("synth calls = %q; want [real]", calls)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	p, _ := newTestPipeline(t, &testutil.FakeSynth{SampleRate: 8000})

	if _, _, err := p.Run(context.Background(), nil); !errors.Is(err, ErrNoAudioGenerated) {
		t.Errorf("err = %v; want ErrNoAudioGenerated", err)
	}
}

func TestRun_RejectsSampleRateMismatch(t *testing.T) {
	synth := &testutil.FakeSynth{
		SampleRate: 22050,
		Rates:      map[string]int{"odd": 44100},
	}
	p, _ := newTestPipeline(t, synth)

	bufs, report, err := p.Run(context.Background(), chunksOf("first", "odd", "last"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(bufs) != 2 {
		t.Fatalf("got %d buffers; want 2", len(bufs))
	}
	if report.Failed() != 1 || report.Failures[0].Index != 1 {
		t.Fatalf("failures = %+v; want chunk 1", report.Failures)
	}

	if _, err := audio.Stitch(bufs, report.SampleRate); err != nil {
		t.Errorf("Stitch after rejection: %v", err)
	}
}

func TestRun_FirstSuccessSetsReference(t *testing.T) {
	synth := &testutil.FakeSynth{
		SampleRate: 22050,
		Fail:       map[string]error{"first": errors.New("nope")},
		Rates:      map[string]int{"second": 16000},
	}
	p, _ := newTestPipeline(t, synth)

	_, report, err := p.Run(context.Background(), chunksOf("first", "second", "third"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.SampleRate != 16000 {
		t.Errorf("SampleRate = %d; want 16000 from the first successful chunk", report.SampleRate)
	}
	if report.Succeeded != 1 || report.Failed() != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestRun_PanicIsChunkFailure(t *testing.T) {
	synth := &testutil.FakeSynth{SampleRate: 8000, Panic: map[string]bool{"kaboom": true}}
	p, scratch := newTestPipeline(t, synth)

	bufs, report, err := p.Run(context.Background(), chunksOf("kaboom", "fine"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(bufs) != 1 || report.Failed() != 1 {
		t.Errorf("bufs=%d failed=%d; want 1 and 1", len(bufs), report.Failed())
	}
	testutil.AssertDirEmpty(t, scratch, "*")
}

func TestRun_UniqueScratchPaths(t *testing.T) {
	synth := &testutil.FakeSynth{SampleRate: 8000}
	p, _ := newTestPipeline(t, synth)

	if _, _, err := p.Run(context.Background(), chunksOf("a", "b", "c", "d")); err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, path := range synth.Paths() {
		if seen[path] {
			t.Errorf("scratch path reused: %s", path)
		}
		seen[path] = true
	}
}

func TestRun_CancelledContext(t *testing.T) {
	synth := &testutil.FakeSynth{SampleRate: 8000}
	p, _ := newTestPipeline(t, synth)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := p.Run(ctx, chunksOf("a", "b"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v; want context.Canceled", err)
	}
	if len(synth.Calls()) != 0 {
		t.Errorf("synth called %d times after cancellation", len(synth.Calls()))
	}
}

// slowSynth blocks until its context ends.
type slowSynth struct{}

func (slowSynth) SynthesizeToFile(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRun_ChunkTimeoutIsChunkFailure(t *testing.T) {
	p := New(slowSynth{}, Options{ScratchDir: t.TempDir(), ChunkTimeout: 10 * time.Millisecond, Logger: discardLogger()})

	_, report, err := p.Run(context.Background(), chunksOf("a", "b"))
	if !errors.Is(err, ErrNoAudioGenerated) {
		t.Fatalf("err = %v; want ErrNoAudioGenerated", err)
	}
	if report.Failed() != 2 {
		t.Errorf("Failed() = %d; want 2", report.Failed())
	}
	if report.Failures[0].Reason == "" {
		t.Error("empty failure reason")
	}
}

func TestEach_EmitErrorStops(t *testing.T) {
	synth := &testutil.FakeSynth{SampleRate: 8000}
	p, _ := newTestPipeline(t, synth)

	stop := errors.New("client went away")
	_, err := p.Each(context.Background(), chunksOf("a", "b", "c"), func(int, audio.Buffer) error {
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v; want emit error", err)
	}
	if len(synth.Calls()) != 1 {
		t.Errorf("synth called %d times; want 1", len(synth.Calls()))
	}
}

func TestSynthesisError(t *testing.T) {
	inner := errors.New("timeout")
	err := error(&SynthesisError{Index: 4, Err: inner})

	if !errors.Is(err, inner) {
		t.Error("SynthesisError does not unwrap")
	}
	var se *SynthesisError
	if !errors.As(err, &se) || se.Index != 4 {
		t.Errorf("errors.As = %+v", se)
	}
	if err.Error() != "chunk 4: timeout" {
		t.Errorf("Error() = %q", err.Error())
	}
}
