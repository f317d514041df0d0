package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/go-pdf2audio/internal/jobs"
	"github.com/example/go-pdf2audio/internal/pdf"
	"github.com/example/go-pdf2audio/internal/pipeline"
	"github.com/example/go-pdf2audio/internal/server"
	"github.com/example/go-pdf2audio/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func realConverter(t *testing.T, text string, synth *testutil.FakeSynth) (*pipeline.Converter, string) {
	t.Helper()
	scratch := t.TempDir()
	p := pipeline.New(synth, pipeline.Options{ScratchDir: scratch, Logger: quietLogger()})
	return pipeline.NewConverter(pdf.Stub{Text: text}, p, pipeline.ConverterOptions{MaxPages: 5, Logger: quietLogger()}), scratch
}

func TestEndToEnd_SyncWithPartialFailure(t *testing.T) {
	synth := &testutil.FakeSynth{
		SampleRate: 16000,
		Fail:       map[string]error{"Second paragraph.": errors.New("model crashed")},
	}
	conv, scratch := realConverter(t, "First paragraph.\n\nSecond paragraph.\n\nThird one.", synth)
	h := server.NewHandler(conv, server.WithLogger(quietLogger()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/pdf/pdf-to-audio", []byte("%PDF")))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	info := testutil.AssertValidWAV(t, rec.Body.Bytes(), 16000, 1)
	if want := synth.Frames("First paragraph.") + synth.Frames("Third one."); info.Frames != want {
		t.Errorf("frames = %d; want %d", info.Frames, want)
	}
	if rec.Header().Get("X-Chunks-Failed") != "1" {
		t.Errorf("X-Chunks-Failed = %q; want 1", rec.Header().Get("X-Chunks-Failed"))
	}
	testutil.AssertDirEmpty(t, scratch, "*")
}

func TestEndToEnd_SyncStream(t *testing.T) {
	synth := &testutil.FakeSynth{SampleRate: 16000}
	conv, _ := realConverter(t, "One.\n\nTwo.", synth)
	h := server.NewHandler(conv, server.WithLogger(quietLogger()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/pdf/pdf-to-audio?stream=true", []byte("%PDF")))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.Bytes()
	if !strings.HasPrefix(string(body), "RIFF") {
		t.Fatalf("stream does not start with a WAV header")
	}
	wantPCM := 2 * (synth.Frames("One.") + synth.Frames("Two."))
	if got := len(body) - 44; got != wantPCM {
		t.Errorf("PCM bytes = %d; want %d", got, wantPCM)
	}
}

func TestEndToEnd_SyncAllChunksFail(t *testing.T) {
	synth := &testutil.FakeSynth{
		SampleRate: 16000,
		Fail:       map[string]error{"Only.": errors.New("model crashed")},
	}
	conv, _ := realConverter(t, "Only.", synth)
	h := server.NewHandler(conv, server.WithLogger(quietLogger()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/pdf/pdf-to-audio", []byte("%PDF")))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %d", rec.Code)
	}
}

func TestEndToEnd_AsyncSubmitPollAndDownload(t *testing.T) {
	ctx := context.Background()
	outDir := t.TempDir()

	synth := &testutil.FakeSynth{SampleRate: 16000}
	conv, scratch := realConverter(t, "Hello World\n\nAnother paragraph.", synth)

	store := jobs.NewMemoryStore()
	queue := jobs.NewLocalQueue(ctx, jobs.NewWorker(store, conv, time.Minute, quietLogger()), 1, 4, quietLogger())
	defer queue.Close()
	orch := jobs.NewOrchestrator(store, queue, quietLogger())

	h := server.NewHandler(conv,
		server.WithJobs(orch),
		server.WithOutputDir(outDir),
		server.WithAudioURLPrefix("/audio/"),
		server.WithServeAudio(true),
		server.WithLogger(quietLogger()))
	srv := httptest.NewServer(h)
	defer srv.Close()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/submit_pdf_to_audio_task", []byte("%PDF")))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit: want 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var submitted struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode submit: %v", err)
	}

	var status struct {
		Status string `json:"status"`
		Result string `json:"result"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL + "/api/task-status/" + submitted.TaskID)
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if status.Status == "SUCCESS" || status.Status == "FAILURE" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if status.Status != "SUCCESS" {
		t.Fatalf("status = %q; want SUCCESS", status.Status)
	}
	if !strings.HasPrefix(status.Result, "/audio/") || !strings.HasSuffix(status.Result, pipeline.FinalSuffix) {
		t.Fatalf("result = %q; want /audio/<id>%s", status.Result, pipeline.FinalSuffix)
	}

	resp, err := http.Get(srv.URL + status.Result)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", resp.StatusCode)
	}
	testutil.AssertValidWAV(t, data, 16000, 1)
	testutil.AssertDirEmpty(t, scratch, "*")
}
