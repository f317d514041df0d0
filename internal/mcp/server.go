// Package mcp exposes job submission and polling as MCP tools over stdio so
// agent clients can convert PDFs without the HTTP API.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/example/go-pdf2audio/internal/jobs"
)

// JobService is the submit/poll surface the tools call.
type JobService interface {
	Submit(ctx context.Context, pdf []byte, outputDir string) (string, error)
	Poll(ctx context.Context, id string) (jobs.Job, error)
}

type Config struct {
	ServerName    string
	ServerVersion string
	OutputDir     string
	// MaxPDFBytes caps the size of a PDF read from disk. Zero means no cap.
	MaxPDFBytes int64
	Logger      *slog.Logger
}

type Server struct {
	config    Config
	jobs      JobService
	mcpServer *sdk.Server
	log       *slog.Logger
}

func NewServer(cfg Config, js JobService) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		config: cfg,
		jobs:   js,
		log:    log.With(slog.String("component", "mcp")),
	}

	s.mcpServer = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)
	s.registerTools()

	return s
}

// Run serves MCP over stdin/stdout until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &sdk.StdioTransport{})
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "submit_pdf",
		Description: "Queue a PDF on local disk for conversion to speech and return a task id",
	}, s.handleSubmit)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "job_status",
		Description: "Report the status of a conversion task and the audio file once it succeeded",
	}, s.handleStatus)
}

type SubmitArgs struct {
	Path string `json:"path" jsonschema:"absolute path of the PDF file to convert"`
}

type StatusArgs struct {
	TaskID string `json:"task_id" jsonschema:"task id returned by submit_pdf"`
}

func (s *Server) handleSubmit(ctx context.Context, _ *sdk.CallToolRequest, args SubmitArgs) (*sdk.CallToolResult, any, error) {
	path := strings.TrimSpace(args.Path)
	if path == "" {
		return errorResult("path is required"), nil, nil
	}

	data, err := s.readPDF(filepath.Clean(path))
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	id, err := s.jobs.Submit(ctx, data, s.config.OutputDir)
	if err != nil {
		s.log.Error("submit failed", slog.String("path", path), slog.String("error", err.Error()))
		return errorResult(fmt.Sprintf("submit failed: %v", err)), nil, nil
	}

	return &sdk.CallToolResult{
		Content: []sdk.Content{
			&sdk.TextContent{Text: fmt.Sprintf("task_id: %s", id)},
		},
	}, nil, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *sdk.CallToolRequest, args StatusArgs) (*sdk.CallToolResult, any, error) {
	job, err := s.jobs.Poll(ctx, strings.TrimSpace(args.TaskID))
	if errors.Is(err, jobs.ErrNotFound) {
		return errorResult(fmt.Sprintf("unknown task id %q", args.TaskID)), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	content := []sdk.Content{
		&sdk.TextContent{Text: fmt.Sprintf("status: %s", job.Status)},
		&sdk.TextContent{Text: fmt.Sprintf("chunks: %d total, %d failed", job.ChunksTotal, job.ChunksFailed)},
	}
	switch job.Status {
	case jobs.StatusSucceeded:
		content = append(content, &sdk.TextContent{Text: fmt.Sprintf("audio: %s", job.Result)})
	case jobs.StatusFailed:
		content = append(content, &sdk.TextContent{Text: fmt.Sprintf("error: %s", job.Error)})
	}
	return &sdk.CallToolResult{Content: content}, nil, nil
}

func (s *Server) readPDF(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("read PDF: %s is a directory", path)
	}
	if s.config.MaxPDFBytes > 0 && info.Size() > s.config.MaxPDFBytes {
		return nil, fmt.Errorf("PDF exceeds maximum size of %d bytes", s.config.MaxPDFBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("PDF file is empty")
	}
	return data, nil
}

func errorResult(msg string) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		IsError: true,
		Content: []sdk.Content{&sdk.TextContent{Text: msg}},
	}
}
