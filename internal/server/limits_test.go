package server_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/go-pdf2audio/internal/audio"
	"github.com/example/go-pdf2audio/internal/pipeline"
	"github.com/example/go-pdf2audio/internal/server"
)

// blockingConverter blocks until released or until its context ends.
type blockingConverter struct {
	release chan struct{}
	onEnter func()
	onExit  func()
}

func (b *blockingConverter) Convert(ctx context.Context, _ []byte) (audio.Buffer, pipeline.Report, error) {
	if b.onEnter != nil {
		b.onEnter()
	}
	if b.onExit != nil {
		defer b.onExit()
	}
	select {
	case <-b.release:
		return oneSecond(), pipeline.Report{Total: 1, Succeeded: 1}, nil
	case <-ctx.Done():
		return audio.Buffer{}, pipeline.Report{}, ctx.Err()
	}
}

func (b *blockingConverter) ConvertStream(ctx context.Context, data []byte, w io.Writer) (pipeline.Report, error) {
	_, report, err := b.Convert(ctx, data)
	return report, err
}

func TestConvert_OversizedUploadRejectedAs413(t *testing.T) {
	h := server.NewHandler(&stubConverter{buf: oneSecond()}, server.WithMaxUploadBytes(64))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/pdf/pdf-to-audio", bytes.Repeat([]byte("x"), 4096)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", rec.Code)
	}
	decodeError(t, rec)
}

func TestSubmit_OversizedUploadRejectedAs413(t *testing.T) {
	js := &stubJobs{}
	h := server.NewHandler(&stubConverter{}, server.WithJobs(js), server.WithMaxUploadBytes(64))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/submit_pdf_to_audio_task", bytes.Repeat([]byte("x"), 4096)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", rec.Code)
	}
	if js.submitted != nil {
		t.Error("oversized upload must not be submitted")
	}
}

func TestConvert_RequestTimeout(t *testing.T) {
	conv := &blockingConverter{release: make(chan struct{})}
	h := server.NewHandler(conv, server.WithRequestTimeout(20*time.Millisecond))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/pdf/pdf-to-audio", []byte("%PDF")))

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("want 504 on timeout, got %d", rec.Code)
	}
	decodeError(t, rec)
}

// deadlineConverter reports whether the request context carried a deadline.
type deadlineConverter struct {
	hadDeadline bool
}

func (d *deadlineConverter) Convert(ctx context.Context, _ []byte) (audio.Buffer, pipeline.Report, error) {
	_, d.hadDeadline = ctx.Deadline()
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, pipeline.Report{}, err
	}
	return oneSecond(), pipeline.Report{Total: 1, Succeeded: 1}, nil
}

func (d *deadlineConverter) ConvertStream(ctx context.Context, data []byte, _ io.Writer) (pipeline.Report, error) {
	_, report, err := d.Convert(ctx, data)
	return report, err
}

func TestConvert_ZeroRequestTimeoutMeansNoDeadline(t *testing.T) {
	for _, path := range []string{"/pdf/pdf-to-audio", "/pdf/pdf-to-audio?stream=true"} {
		t.Run(path, func(t *testing.T) {
			conv := &deadlineConverter{}
			h := server.NewHandler(conv, server.WithRequestTimeout(0))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, uploadRequest(t, path, []byte("%PDF")))

			if rec.Code != http.StatusOK {
				t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if conv.hadDeadline {
				t.Error("conversion context has a deadline with request timeout 0")
			}
		})
	}
}

func TestConvert_ConcurrencyThrottling(t *testing.T) {
	const workers = 2
	const totalRequests = 5

	var (
		mu      sync.Mutex
		peak    int
		current int32
	)
	conv := &blockingConverter{
		release: make(chan struct{}),
		onEnter: func() {
			n := int(atomic.AddInt32(&current, 1))
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
		},
		onExit: func() { atomic.AddInt32(&current, -1) },
	}

	h := server.NewHandler(conv, server.WithWorkers(workers))

	reqs := make([]*http.Request, totalRequests)
	for i := range reqs {
		reqs[i] = uploadRequest(t, "/pdf/pdf-to-audio", []byte("%PDF"))
	}

	var wg sync.WaitGroup
	codes := make([]int, totalRequests)
	for i := range totalRequests {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, reqs[idx])
			codes[idx] = rec.Code
		}(i)
	}

	// Give goroutines time to enter the converter.
	time.Sleep(50 * time.Millisecond)
	close(conv.release)
	wg.Wait()

	mu.Lock()
	got := peak
	mu.Unlock()

	if got > workers {
		t.Errorf("peak concurrency %d exceeded worker limit %d", got, workers)
	}
	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d: want 200, got %d", i, code)
		}
	}
}

func TestConvert_WaiterCancelledWhileThrottled(t *testing.T) {
	conv := &blockingConverter{release: make(chan struct{})}
	defer close(conv.release)

	h := server.NewHandler(conv, server.WithWorkers(1))

	// First request occupies the single worker slot.
	first := uploadRequest(t, "/pdf/pdf-to-audio", []byte("%PDF"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(httptest.NewRecorder(), first)
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/pdf/pdf-to-audio", []byte("%PDF")).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503 for cancelled waiter, got %d", rec.Code)
	}
}
