// Package server implements the MCP (Model Context Protocol) server for the
// pattern vectorizing tools.
//
// The server speaks JSON-RPC 2.0 over stdio so that Claude and other MCP
// clients can turn a photo of a paper pattern into a printable vector sheet.
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
// Image Input:
//   - pattern_load: Load a photo and get metadata
//   - pattern_crop: Extract a region of interest
//
// Processing Stages:
//   - pattern_rectify: Perspective correction from four sheet corners
//   - pattern_edge_detect: Preprocessing and Canny edge mask
//   - pattern_vectorize: Full pipeline to simplified polygons
//
// Measurement:
//   - pattern_calibrate: Set the session scale from a known distance
//   - pattern_measure: Distance between two points in px and cm
//
// Output:
//   - pattern_export: Write a 1:1 A4 sheet as SVG, DXF or PNG
//
// # State
//
// Decoded images are cached by path for the lifetime of the process. The
// session calibration set by pattern_calibrate applies to later measure,
// vectorize and export calls unless a call passes its own calibration.
//
// # Error Handling
//
// Tool failures are JSON-RPC errors whose code tells the client what went
// wrong:
//   - -32001: no contours found; retry with other thresholds or a new ROI
//   - -32002: invalid geometry such as bad corners or calibration points
//   - -32003: the image could not be opened or decoded
//   - -32000: any other failure
//
// The data field carries the Go error string.
//
// # Usage
//
//	srv := server.New(cfg, logger)
//	if err := srv.Run(ctx); err != nil {
//	    logger.Fatal(err)
//	}
package server
