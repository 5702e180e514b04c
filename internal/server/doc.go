// Package server implements the MCP (Model Context Protocol) server for mathscan.
//
// This package provides a JSON-RPC 2.0 server that exposes text recognition
// through the MCP protocol, so MCP-compatible clients can run OCR on local
// image files and adjust recognition settings.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Recognition:
//   - ocr_perform: Recognize text in an image, optionally with a one-off mode
//     and an output file for the text
//   - ocr_validate_image: Check that a file exists and has a supported format
//   - ocr_supported_formats: List accepted extensions
//
// Configuration:
//   - ocr_get_config: Current settings
//   - ocr_set_config: Change settings (partial update)
//
// Engine:
//   - ocr_languages: Installed languages
//   - ocr_version: Engine version and initialization state
//
// Image information:
//   - image_load: Dimensions, format and background color
//   - image_dominant_colors: Color palette of an image or region
//
// # Progress
//
// ocr_perform runs through the worker package. When the tools/call request
// carries params._meta.progressToken, each pipeline stage is sent as a
// notifications/progress message (progress 0-100, total 100, message = stage
// name) before the response.
//
// # Error Handling
//
// Invalid arguments and internal failures are returned as JSON-RPC error
// responses with code -32000 (tool execution failure) or standard JSON-RPC
// codes. A recognition that ran but did not succeed is a normal tool result
// with isError set; its JSON carries error_message and error_kind.
//
// # Usage
//
//	session, err := ocr.NewSession(cfg)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//	srv := server.New(session, server.Options{Version: version})
//	return srv.Run(ctx)
package server
