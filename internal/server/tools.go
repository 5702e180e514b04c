package server

import "github.com/mathscan/mathscan/internal/imaging"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathSchema = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the image file",
}

var regionSchema = map[string]interface{}{
	"type":        "object",
	"description": "Optional region {x1, y1, x2, y2} in pixels; x2 and y2 are exclusive",
	"properties": map[string]interface{}{
		"x1": map[string]interface{}{"type": "integer"},
		"y1": map[string]interface{}{"type": "integer"},
		"x2": map[string]interface{}{"type": "integer"},
		"y2": map[string]interface{}{"type": "integer"},
	},
}

var modeEnum = []string{"auto", "text", "equations", "mixed"}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Recognition
		{
			Name:        "ocr_perform",
			Description: "Recognize text in an image file. Returns the text, mean confidence, success flag, error message and processing time. Sends notifications/progress when the request carries a progressToken.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathSchema,
					"mode": map[string]interface{}{
						"type":        "string",
						"enum":        modeEnum,
						"description": "Optional mode for this call only. Defaults to the configured mode",
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional file to save the recognized text to",
					},
					"region": regionSchema,
					"area": map[string]interface{}{
						"type":        "string",
						"enum":        imaging.AreaNames(),
						"description": "Optional named area to recognize instead of the whole image. Ignored when region is set",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_validate_image",
			Description: "Check whether an image file exists and has a supported format.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathSchema,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_supported_formats",
			Description: "List the image file extensions accepted for recognition.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Configuration
		{
			Name:        "ocr_get_config",
			Description: "Return the current recognition settings.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "ocr_set_config",
			Description: "Change recognition settings. Omitted fields keep their current value. On failure the previous settings stay in effect.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"mode": map[string]interface{}{
						"type": "string",
						"enum": modeEnum,
					},
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language code, several joined with '+' (e.g. eng+deu)",
					},
					"dpi": map[string]interface{}{
						"type":        "integer",
						"description": "Source resolution; images are rescaled by dpi/300. 0 disables rescaling",
					},
					"preprocess_image": map[string]interface{}{
						"type": "boolean",
					},
					"enable_confidence_scoring": map[string]interface{}{
						"type": "boolean",
					},
					"minimum_confidence": map[string]interface{}{
						"type":        "integer",
						"description": "Pass mark 0-100 applied when confidence scoring is enabled",
					},
					"auto_invert": map[string]interface{}{
						"type":        "boolean",
						"description": "Invert light-on-dark images during preprocessing",
					},
				},
			},
		},

		// Engine
		{
			Name:        "ocr_languages",
			Description: "List the languages the engine can load.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "ocr_version",
			Description: "Return the Tesseract version and whether the engine is initialized.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Image information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format, background color and whether it looks light-on-dark.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathSchema,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dominant_colors",
			Description: "Extract the most common colors in an image or region.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathSchema,
					"count": map[string]interface{}{
						"type":        "integer",
						"description": "Number of colors to return. Default 5",
						"default":     5,
					},
					"region": regionSchema,
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
