// Package server implements an MCP (Model Context Protocol) server that
// exposes slide alignment as tools.
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
//   - cosmx_list_slides: List slides under the data directory
//   - cosmx_align_slide: Align one slide and write its transform record
//   - cosmx_classify_coverage: Report the full/partial coverage verdict
//   - cosmx_get_transform: Read a written record, or the identity
//
// # Response Format
//
// Tool results are returned as MCP content with JSON-encoded text:
//
//	{
//	  "content": [
//	    {
//	      "type": "text",
//	      "text": "{\"slide_id\": \"S1\", \"status\": \"processed\", ...}"
//	    }
//	  ]
//	}
//
// # Error Handling
//
// Errors follow JSON-RPC 2.0 conventions:
//   - -32601: Method not found
//   - -32602: Invalid params
//   - -32000: Tool execution failed
//
// A slide whose input images are missing is not an error: cosmx_align_slide
// reports it with status "skipped" and the reason.
//
// # Caching
//
// Decoded images are cached by the underlying pipeline.Runner for the life of
// the server, so repeated calls on one slide decode it once.
package server
