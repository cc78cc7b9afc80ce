// Package server implements the MCP (Model Context Protocol) server that
// exposes cellular-automaton image segmentation as tools.
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
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//   - image_segment: Segment into regions and return their outlines,
//     optionally with a rendered overlay
//   - image_region_at: Identify the region that owns a pixel
//
// Segmentation arguments that are omitted fall back to the server's
// default segment.Options.
//
// # Caching
//
// Decoded images are cached by path. Segmentation results are cached by
// path, max_dimension and the effective options, so image_region_at after
// image_segment with the same settings does not segment again. Both caches
// live as long as the server.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// Cells whose rules failed during a segmentation do not fail the tool call;
// they are summarised in the "failures" field of the result.
//
// # Usage
//
//	srv := server.New()
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
