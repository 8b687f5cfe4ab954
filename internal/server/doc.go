// Package server implements the MCP (Model Context Protocol) server for the
// pixelfly engine.
//
// This package provides a JSON-RPC 2.0 server that exposes image enhancement
// and watermarking through the MCP protocol, so MCP-compatible clients can
// drive the engine directly.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_enhance: Analyze and apply an automatic enhancement plan
//   - image_watermark: Place a styled text watermark
//   - image_watermark_batch: Watermark up to the batch limit of images in parallel
//   - image_analyze: Report metrics, zone ranking and a suggested plan
//   - image_capabilities: List accepted categories, styles, positions and limits
//
// Every image argument accepts exactly one of path, image_base64 or url.
// Tools that produce an image write it to output_path when given and
// otherwise attach it as an MCP image content block.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32602 for invalid arguments, -32000 for images that cannot be decoded
//   - message: Human-readable error description
//   - data: The underlying error string
//
// Problems the engine recovers from on its own (a failed enhancement step,
// an unreachable advisory service) never produce an error; they show up as
// skipped effects in the result.
//
// # Usage
//
//	srv := server.New(orch, version)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal().Err(err).Msg("server error")
//	}
package server
