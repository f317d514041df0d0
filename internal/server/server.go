package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/example/go-pdf2audio/internal/audio"
	"github.com/example/go-pdf2audio/internal/config"
	"github.com/example/go-pdf2audio/internal/jobs"
	"github.com/example/go-pdf2audio/internal/pipeline"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Converter turns an uploaded PDF into audio in the request path.
type Converter interface {
	Convert(ctx context.Context, data []byte) (audio.Buffer, pipeline.Report, error)
	ConvertStream(ctx context.Context, data []byte, w io.Writer) (pipeline.Report, error)
}

// JobService is the async submit/poll surface.
type JobService interface {
	Submit(ctx context.Context, pdf []byte, outputDir string) (string, error)
	Poll(ctx context.Context, id string) (jobs.Job, error)
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxUploadBytes int64
	workers        int
	requestTimeout time.Duration
	outputDir      string
	audioURLPrefix string
	serveAudio     bool
	jobs           JobService
	metrics        http.Handler
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxUploadBytes: 32 << 20,
		workers:        2,
		requestTimeout: 10 * time.Minute,
		outputDir:      "static/audio",
		audioURLPrefix: "/audio/",
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxUploadBytes caps the size of an uploaded PDF.
func WithMaxUploadBytes(n int64) Option {
	return func(o *options) { o.maxUploadBytes = n }
}

// WithWorkers sets the maximum number of concurrent sync conversions.
// Zero disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the deadline for one sync conversion. Zero means no
// deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithOutputDir sets where async jobs write their artifacts.
func WithOutputDir(dir string) Option {
	return func(o *options) { o.outputDir = dir }
}

// WithAudioURLPrefix sets the public prefix joined with an artifact's file name.
func WithAudioURLPrefix(prefix string) Option {
	return func(o *options) { o.audioURLPrefix = prefix }
}

// WithServeAudio exposes the output directory under the audio URL prefix.
func WithServeAudio(on bool) Option {
	return func(o *options) { o.serveAudio = on }
}

// WithJobs enables the async submit and poll endpoints.
func WithJobs(js JobService) Option {
	return func(o *options) { o.jobs = js }
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *options) { o.metrics = h }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	conv Converter
	opts options
	sem  chan struct{} // bounds concurrent sync conversions
	log  *slog.Logger
}

// NewHandler returns an http.Handler serving the conversion API.
func NewHandler(conv Converter, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	opts.audioURLPrefix = publicAudioPrefix(opts.audioURLPrefix)

	h := &handler{
		conv: conv,
		opts: opts,
		log:  opts.logger.With(slog.String("component", "http")),
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /pdf/pdf-to-audio", h.handleConvert)
	mux.HandleFunc("POST /api/submit_pdf_to_audio_task", h.handleSubmit)
	mux.HandleFunc("GET /api/task-status/{id}", h.handleStatus)
	if opts.metrics != nil {
		mux.Handle("GET /metrics", opts.metrics)
	}
	if opts.serveAudio {
		prefix := audioPrefix(opts.audioURLPrefix)
		mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(opts.outputDir))))
	}
	return mux
}

// audioPrefix turns a public URL prefix into a mux subtree pattern.
// Absolute URLs are reduced to their path.
func audioPrefix(p string) string {
	if i := strings.Index(p, "://"); i >= 0 {
		rest := p[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			p = rest[j:]
		} else {
			p = "/"
		}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// publicAudioPrefix makes p safe to join with a file name: full URLs get a
// trailing slash, bare paths a leading and trailing one.
func publicAudioPrefix(p string) string {
	p = strings.TrimSpace(p)
	if strings.Contains(p, "://") {
		if !strings.HasSuffix(p, "/") {
			p += "/"
		}
		return p
	}
	return audioPrefix(p)
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

func (h *handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	data, name, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	// Acquire a worker slot, honouring cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	ctx := r.Context()
	if h.opts.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.requestTimeout)
		defer cancel()
	}

	if stream, _ := strconv.ParseBool(r.URL.Query().Get("stream")); stream {
		h.convertStream(ctx, w, r, data, name)
		return
	}

	start := time.Now()
	buf, report, err := h.conv.Convert(ctx, data)
	if err != nil {
		h.logFailure(r.Context(), name, report, start, err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	wav, err := audio.EncodeWAV(buf)
	if err != nil {
		h.logFailure(r.Context(), name, report, start, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.InfoContext(r.Context(), "conversion complete",
		slog.String("file", name),
		slog.Int("chunks_total", report.Total),
		slog.Int("chunks_failed", report.Failed()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.Int("wav_bytes", len(wav)),
	)

	setReportHeaders(w, report)
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

func (h *handler) convertStream(ctx context.Context, w http.ResponseWriter, r *http.Request, data []byte, name string) {
	start := time.Now()
	sw := &streamResponse{w: w}
	report, err := h.conv.ConvertStream(ctx, data, sw)
	if err != nil {
		h.logFailure(r.Context(), name, report, start, err)
		if !sw.started {
			writeError(w, statusFor(err), err.Error())
		}
		// Once audio is on the wire the status cannot change; the client
		// sees a truncated stream.
		return
	}

	h.log.InfoContext(r.Context(), "stream complete",
		slog.String("file", name),
		slog.Int("chunks_total", report.Total),
		slog.Int("chunks_failed", report.Failed()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

func (h *handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if h.opts.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "async jobs are not enabled")
		return
	}

	data, name, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	id, err := h.opts.jobs.Submit(r.Context(), data, h.opts.outputDir)
	if err != nil {
		h.log.ErrorContext(r.Context(), "submit failed",
			slog.String("file", name),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		TaskID:  id,
		Message: "PDF to audio conversion task submitted successfully.",
	})
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.opts.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "async jobs are not enabled")
		return
	}

	id := r.PathValue("id")
	job, err := h.opts.jobs.Poll(r.Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown task id")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := statusResponse{
		TaskID:       job.ID,
		Status:       taskStatus(job.Status),
		ChunksTotal:  job.ChunksTotal,
		ChunksFailed: job.ChunksFailed,
	}
	switch job.Status {
	case jobs.StatusSucceeded:
		resp.Result = h.audioURL(job.Result)
	case jobs.StatusFailed:
		resp.ErrorInfo = job.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

// readUpload reads the multipart "file" field. On failure it has already
// written the error response.
func (h *handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds maximum size of %d bytes", h.opts.maxUploadBytes))
			return nil, "", false
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return nil, "", false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded file is empty")
		return nil, "", false
	}
	return data, header.Filename, true
}

func (h *handler) audioURL(path string) string {
	if path == "" {
		return ""
	}
	return h.opts.audioURLPrefix + filepath.Base(path)
}

func (h *handler) logFailure(ctx context.Context, name string, report pipeline.Report, start time.Time, err error) {
	level := slog.LevelError
	if statusFor(err) < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	h.log.Log(ctx, level, "conversion failed",
		slog.String("file", name),
		slog.String("outcome", pipeline.Outcome(err)),
		slog.Int("chunks_total", report.Total),
		slog.Int("chunks_failed", report.Failed()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.String("error", err.Error()),
	)
}

// statusFor maps a conversion error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrExtraction), errors.Is(err, pipeline.ErrNoTextFound):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNoAudioGenerated):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// taskStatus renders a job status in the PENDING|STARTED|SUCCESS|FAILURE
// vocabulary of the task API.
func taskStatus(s jobs.Status) string {
	switch s {
	case jobs.StatusRunning:
		return "STARTED"
	case jobs.StatusSucceeded:
		return "SUCCESS"
	case jobs.StatusFailed:
		return "FAILURE"
	default:
		return "PENDING"
	}
}

type submitResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

type statusResponse struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	Result       string `json:"result,omitempty"`
	ErrorInfo    string `json:"error_info,omitempty"`
	ChunksTotal  int    `json:"chunks_total"`
	ChunksFailed int    `json:"chunks_failed"`
}

func setReportHeaders(w http.ResponseWriter, report pipeline.Report) {
	w.Header().Set("X-Chunks-Total", strconv.Itoa(report.Total))
	w.Header().Set("X-Chunks-Failed", strconv.Itoa(report.Failed()))
}

// streamResponse commits the 200 audio/wav response on the first write, so
// errors before any audio can still be reported as JSON.
type streamResponse struct {
	w       http.ResponseWriter
	started bool
}

func (s *streamResponse) Write(p []byte) (int, error) {
	if !s.started {
		s.started = true
		s.w.Header().Set("Content-Type", "audio/wav")
		s.w.WriteHeader(http.StatusOK)
	}
	return s.w.Write(p)
}

func (s *streamResponse) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	conv            Converter
	jobs            JobService
	metrics         http.Handler
	log             *slog.Logger
	shutdownTimeout time.Duration
}

// New builds a Server. jobs may be nil, which disables the async endpoints.
func New(cfg config.Config, conv Converter, js JobService) *Server {
	shutdown := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}
	return &Server{
		cfg:             cfg,
		conv:            conv,
		jobs:            js,
		log:             slog.Default(),
		shutdownTimeout: shutdown,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithMetrics mounts the metrics handler on /metrics.
func (s *Server) WithMetrics(h http.Handler) *Server {
	s.metrics = h
	return s
}

func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.log = l
	return s
}

// Handler builds the request handler from the server configuration.
func (s *Server) Handler() http.Handler {
	opts := []Option{
		WithWorkers(s.cfg.Server.Workers),
		WithMaxUploadBytes(s.cfg.Server.MaxUploadBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second),
		WithOutputDir(s.cfg.Paths.OutputDir),
		WithAudioURLPrefix(s.cfg.Server.AudioURLPrefix),
		WithServeAudio(s.cfg.Server.ServeAudio),
		WithLogger(s.log),
	}
	if s.jobs != nil {
		opts = append(opts, WithJobs(s.jobs))
	}
	if s.metrics != nil {
		opts = append(opts, WithMetricsHandler(s.metrics))
	}
	return NewHandler(s.conv, opts...)
}

func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.log.Info("http server listening", slog.String("addr", s.cfg.Server.ListenAddr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

// ProbeHTTP checks GET /health on addr.
func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
