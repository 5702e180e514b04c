package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/mathscan/mathscan/internal/export"
	"github.com/mathscan/mathscan/internal/imaging"
	"github.com/mathscan/mathscan/internal/ocr"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "ocr_perform", "image_load").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`

	Meta *struct {
		// ProgressToken, when present, asks for notifications/progress
		// messages tagged with this token.
		ProgressToken interface{} `json:"progressToken"`
	} `json:"_meta,omitempty"`
}

// failable is implemented by tool results that can report a failure
// without being a protocol error.
type failable interface {
	failed() bool
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// A recognition that ran but failed is a normal result with isError set.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	var token interface{}
	if params.Meta != nil {
		token = params.Meta.ProgressToken
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments, token)
	if err != nil {
		s.log.Warn().Str("tool", params.Name).Err(err).Msg("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	body := map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": mustMarshalJSON(result),
			},
		},
	}
	if f, ok := result.(failable); ok && f.failed() {
		body["isError"] = true
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  body,
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage, token interface{}) (interface{}, error) {
	switch name {
	// Recognition
	case "ocr_perform":
		return s.handleOCRPerform(ctx, args, token)
	case "ocr_validate_image":
		return s.handleOCRValidateImage(args)
	case "ocr_supported_formats":
		return map[string]interface{}{"formats": ocr.SupportedFormats()}, nil

	// Configuration
	case "ocr_get_config":
		return s.ocr.Config(), nil
	case "ocr_set_config":
		return s.handleOCRSetConfig(args)

	// Engine
	case "ocr_languages":
		return map[string]interface{}{"languages": s.ocr.AvailableLanguages()}, nil
	case "ocr_version":
		return map[string]interface{}{
			"version":     s.ocr.Version(),
			"initialized": s.ocr.IsInitialized(),
		}, nil

	// Image information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dominant_colors":
		return s.handleImageDominantColors(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Recognition Handlers ===

type ocrPerformArgs struct {
	Path       string          `json:"path"`
	Mode       string          `json:"mode,omitempty"`
	OutputPath string          `json:"output_path,omitempty"`
	Region     *imaging.Region `json:"region,omitempty"`
	Area       string          `json:"area,omitempty"`
}

type ocrPerformResult struct {
	JobID      string     `json:"job_id"`
	Result     ocr.Result `json:"result"`
	OutputPath string     `json:"output_path,omitempty"`
}

func (r ocrPerformResult) failed() bool { return !r.Result.Success }

// handleOCRPerform runs one recognition through the job runner and relays
// its progress events as notifications/progress while waiting.
func (s *Server) handleOCRPerform(ctx context.Context, args json.RawMessage, token interface{}) (interface{}, error) {
	var a ocrPerformArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}

	req := ocr.Request{Path: a.Path}
	if a.Region != nil || a.Area != "" {
		img, err := s.loadSelection(a.Path, a.Region, a.Area)
		if err != nil {
			return nil, err
		}
		req = ocr.Request{Image: img}
	}
	if a.Mode != "" {
		mode, err := ocr.ParseMode(a.Mode)
		if err != nil {
			return nil, err
		}
		req.Mode = &mode
	}

	job, err := s.runner.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.runner.Forget(job.ID)

	for p := range job.Progress() {
		if token == nil {
			continue
		}
		s.notify("notifications/progress", map[string]interface{}{
			"progressToken": token,
			"progress":      p.Percent,
			"total":         100,
			"message":       string(p.Stage),
		})
	}

	res, err := job.Wait(ctx)
	if err != nil {
		job.Cancel()
		return nil, err
	}

	out := ocrPerformResult{JobID: job.ID, Result: res}
	if a.OutputPath != "" && res.Success {
		if err := export.WriteText(a.OutputPath, res.Text); err != nil {
			return nil, err
		}
		out.OutputPath = a.OutputPath
	}
	return out, nil
}

// loadSelection loads path through the cache and crops it to region or
// area.
func (s *Server) loadSelection(path string, region *imaging.Region, area string) (image.Image, error) {
	if !ocr.ValidateImage(path) {
		return nil, fmt.Errorf("invalid or unsupported image file: %s", path)
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	return imaging.Select(img, region, area)
}

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleOCRValidateImage(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"path":   a.Path,
		"valid":  ocr.ValidateImage(a.Path),
		"format": imaging.FormatFromPath(a.Path),
	}, nil
}

// === Configuration Handlers ===

// ocrSetConfigArgs uses pointers so omitted fields keep their current value.
type ocrSetConfigArgs struct {
	Mode                    *ocr.Mode `json:"mode"`
	Language                *string   `json:"language"`
	DPI                     *int      `json:"dpi"`
	PreprocessImage         *bool     `json:"preprocess_image"`
	EnableConfidenceScoring *bool     `json:"enable_confidence_scoring"`
	MinimumConfidence       *int      `json:"minimum_confidence"`
	AutoInvert              *bool     `json:"auto_invert"`
}

func (a ocrSetConfigArgs) apply(cfg ocr.Config) ocr.Config {
	if a.Mode != nil {
		cfg.Mode = *a.Mode
	}
	if a.Language != nil {
		cfg.Language = *a.Language
	}
	if a.DPI != nil {
		cfg.DPI = *a.DPI
	}
	if a.PreprocessImage != nil {
		cfg.PreprocessImage = *a.PreprocessImage
	}
	if a.EnableConfidenceScoring != nil {
		cfg.EnableConfidenceScoring = *a.EnableConfidenceScoring
	}
	if a.MinimumConfidence != nil {
		cfg.MinimumConfidence = *a.MinimumConfidence
	}
	if a.AutoInvert != nil {
		cfg.AutoInvert = *a.AutoInvert
	}
	return cfg
}

func (s *Server) handleOCRSetConfig(args json.RawMessage) (interface{}, error) {
	var a ocrSetConfigArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
	}
	if err := s.ocr.SetConfig(a.apply(s.ocr.Config())); err != nil {
		return nil, err
	}
	return s.ocr.Config(), nil
}

// === Image Information Handlers ===

type imageLoadResult struct {
	*imaging.ImageInfo
	Background     imaging.ColorFrequency `json:"background"`
	DarkBackground bool                   `json:"dark_background"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	info, err := imaging.LoadImageInfo(s.cache, a.Path)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imageLoadResult{
		ImageInfo:      info,
		Background:     imaging.BackgroundColor(img),
		DarkBackground: imaging.IsDarkBackground(img),
	}, nil
}

type imageDominantColorsArgs struct {
	Path   string          `json:"path"`
	Count  int             `json:"count"`
	Region *imaging.Region `json:"region,omitempty"`
}

func (s *Server) handleImageDominantColors(args json.RawMessage) (interface{}, error) {
	var a imageDominantColorsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Count == 0 {
		a.Count = 5
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.DominantColors(img, a.Count, a.Region)
}
