package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/mathscan/mathscan/internal/imaging"
	"github.com/mathscan/mathscan/internal/logger"
	"github.com/mathscan/mathscan/internal/ocr"
	"github.com/mathscan/mathscan/internal/worker"
)

// OCR is the part of *ocr.Session the server exposes as tools.
type OCR interface {
	worker.Recognizer
	Config() ocr.Config
	SetConfig(cfg ocr.Config) error
	IsInitialized() bool
	AvailableLanguages() []string
	Version() string
}

// Options configures a Server.
type Options struct {
	// Version is reported in serverInfo.
	Version string

	// Workers and QueueSize size the background job runner.
	Workers   int
	QueueSize int

	Logger *zerolog.Logger
}

// Server handles MCP protocol communication
type Server struct {
	ocr     OCR
	runner  *worker.Runner
	cache   *imaging.ImageCache
	version string
	log     zerolog.Logger

	// out is set for the duration of Serve so that tool handlers can emit
	// progress notifications.
	out *json.Encoder
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a new MCP server backed by svc.
func New(svc OCR, opts Options) *Server {
	log := logger.WithComponent("server")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		ocr:     svc,
		runner:  worker.New(svc, worker.Options{Workers: opts.Workers, QueueSize: opts.QueueSize, Logger: &log}),
		cache:   imaging.NewImageCache(),
		version: version,
		log:     log,
	}
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC message per line from in and writes responses to
// out until in is exhausted or ctx is canceled. It closes the job runner on
// return.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	defer s.runner.Close()

	scanner := bufio.NewScanner(in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	s.out = json.NewEncoder(out)
	defer func() { s.out = nil }()

	s.log.Info().Str("version", s.version).Msg("MCP server listening on stdio")

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn().Err(err).Msg("failed to parse request")
			s.write(s.errorResponse(nil, -32700, "Parse error", err.Error()))
			continue
		}

		if resp := s.handleRequest(ctx, &req); resp != nil {
			s.write(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

func (s *Server) write(v interface{}) {
	if s.out == nil {
		return
	}
	if err := s.out.Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode message")
	}
}

// notify sends a notification on the active stream, if any.
func (s *Server) notify(method string, params interface{}) {
	s.write(&MCPNotification{JSONRPC: "2.0", Method: method, Params: params})
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	s.log.Debug().Str("method", req.Method).Interface("id", req.ID).Msg("request")

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "mathscan",
				"version": s.version,
			},
		},
	}
}
