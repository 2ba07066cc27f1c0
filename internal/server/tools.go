package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// pathProperty is the schema shared by every tool that reads a photo.
func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the pattern photo",
	}
}

func pointProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties": map[string]interface{}{
			"x": map[string]interface{}{"type": "number"},
			"y": map[string]interface{}{"type": "number"},
		},
		"required": []string{"x", "y"},
	}
}

func regionProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties": map[string]interface{}{
			"x1": map[string]interface{}{"type": "integer", "description": "Left edge X coordinate (0-based)"},
			"y1": map[string]interface{}{"type": "integer", "description": "Top edge Y coordinate (0-based)"},
			"x2": map[string]interface{}{"type": "integer", "description": "Right edge X coordinate (exclusive)"},
			"y2": map[string]interface{}{"type": "integer", "description": "Bottom edge Y coordinate (exclusive)"},
		},
		"required": []string{"x1", "y1", "x2", "y2"},
	}
}

func cornersProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": "Four corners of the pattern sheet in photo pixels, ordered top-left, top-right, bottom-right, bottom-left. Omit to skip perspective correction.",
		"items":       pointProperty("Corner"),
		"minItems":    4,
		"maxItems":    4,
	}
}

// processedCoordinates names the pixel space of calibration points and
// polygons.
const processedCoordinates = "Points are in processed-raster pixels: the image after the roi crop and corner rectification, i.e. the rectified_width x rectified_height output of pattern_rectify when corners are used, the roi otherwise. Polygons from pattern_vectorize use the same coordinates."

func calibrationProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Optional reference segment of known length. Overrides the session calibration set by pattern_calibrate. " + processedCoordinates,
		"properties": map[string]interface{}{
			"point1":           pointProperty("First reference point in processed-raster pixels"),
			"point2":           pointProperty("Second reference point in processed-raster pixels"),
			"real_distance_cm": map[string]interface{}{"type": "number", "description": "Real length of the segment in centimetres"},
		},
		"required": []string{"point1", "point2", "real_distance_cm"},
	}
}

// edgeProperties are the tuning knobs for the edge detector. Omitted
// values fall back to the server configuration.
func edgeProperties() map[string]interface{} {
	return map[string]interface{}{
		"low_threshold": map[string]interface{}{
			"type":        "number",
			"description": "Hysteresis low threshold on gradient magnitude. Default 50",
		},
		"high_threshold": map[string]interface{}{
			"type":        "number",
			"description": "Hysteresis high threshold on gradient magnitude. Default 150",
		},
		"blur_sigma": map[string]interface{}{
			"type":        "number",
			"description": "Gaussian blur sigma; 0 disables the blur. Default 1.0",
		},
		"contrast": map[string]interface{}{
			"type":        "number",
			"description": "Contrast factor around mid-grey; 1 leaves contrast unchanged. Default 1.5",
		},
		"block_size": map[string]interface{}{
			"type":        "integer",
			"description": "Adaptive threshold neighbourhood size in pixels; 0 disables thresholding. Default 15",
		},
		"c": map[string]interface{}{
			"type":        "number",
			"description": "Adaptive threshold offset subtracted from the local mean. Default 10",
		},
	}
}

// pipelineProperties are the arguments shared by pattern_vectorize and
// pattern_export.
func pipelineProperties() map[string]interface{} {
	props := map[string]interface{}{
		"path":    pathProperty(),
		"corners": cornersProperty(),
		"roi":     regionProperty("Optional region of interest, applied before perspective correction"),
		"rectify_width": map[string]interface{}{
			"type":        "integer",
			"description": "Rectified output width in pixels. Default 800",
		},
		"rectify_height": map[string]interface{}{
			"type":        "integer",
			"description": "Rectified output height in pixels. Default 600",
		},
		"epsilon": map[string]interface{}{
			"type":        "number",
			"description": "Douglas-Peucker tolerance in pixels. Default 3",
		},
		"smooth_window": map[string]interface{}{
			"type":        "integer",
			"description": "Moving-average window applied to traced contours; 0 or 1 disables smoothing",
		},
		"min_points": map[string]interface{}{
			"type":        "integer",
			"description": "Drop simplified polygons with fewer points. Minimum and default 3",
		},
		"calibration": calibrationProperty(),
	}
	for k, v := range edgeProperties() {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	edgeProps := edgeProperties()
	edgeProps["path"] = pathProperty()
	edgeProps["corners"] = cornersProperty()
	edgeProps["roi"] = regionProperty("Optional region of interest, applied before perspective correction")
	edgeProps["scale"] = map[string]interface{}{
		"type":        "number",
		"description": "Optional preview scale factor for the returned mask. Default 1.0",
		"default":     1.0,
	}

	exportProps := pipelineProperties()
	exportProps["output"] = map[string]interface{}{
		"type":        "string",
		"description": "Absolute path of the file to write",
	}
	exportProps["format"] = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"svg", "dxf", "png"},
		"description": "Output format. Defaults to the output file extension",
	}
	exportProps["customer_name"] = map[string]interface{}{
		"type":        "string",
		"description": "Customer name printed in the title block",
	}
	exportProps["date"] = map[string]interface{}{
		"type":        "string",
		"description": "Date printed in the footer. Defaults to today",
	}
	exportProps["grid"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Draw the 1 cm / 5 cm grid. Default true",
	}
	exportProps["labels"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Draw title, footer and dimensions. Default true",
	}

	vectorizeProps := pipelineProperties()
	vectorizeProps["include_edges"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Also return the edge mask as base64 PNG",
	}

	return []Tool{
		// Image Input
		{
			Name:        "pattern_load",
			Description: "Load a pattern photo and return its dimensions and format. The decoded image is cached for later calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "pattern_crop",
			Description: "Crop a region of interest from the photo and return it as base64-encoded PNG. Use it to check what the vectorizer will see.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"x1":   map[string]interface{}{"type": "integer", "description": "Left edge X coordinate (0-based)"},
					"y1":   map[string]interface{}{"type": "integer", "description": "Top edge Y coordinate (0-based)"},
					"x2":   map[string]interface{}{"type": "integer", "description": "Right edge X coordinate (exclusive)"},
					"y2":   map[string]interface{}{"type": "integer", "description": "Bottom edge Y coordinate (exclusive)"},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},

		// Processing Stages
		{
			Name:        "pattern_rectify",
			Description: "Correct camera perspective: map the four sheet corners onto an upright rectangle and return it as base64-encoded PNG. rectified_width and rectified_height give the raster size that calibration points and polygons refer to.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"corners": cornersProperty(),
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Output width in pixels. Default 800",
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Output height in pixels. Default 600",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional preview scale factor. Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path", "corners"},
			},
		},
		{
			Name:        "pattern_edge_detect",
			Description: "Run preprocessing and Canny edge detection and return the binary edge mask as base64-encoded PNG. Use it to tune thresholds before vectorizing.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": edgeProps,
				"required":   []string{"path"},
			},
		},
		{
			Name:        "pattern_vectorize",
			Description: "Run the full pipeline (crop, rectify, edges, contour tracing, simplification) and return the pattern outlines as polygons with areas. Sizes in cm are included when a calibration is available.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": vectorizeProps,
				"required":   []string{"path"},
			},
		},

		// Measurement
		{
			Name:        "pattern_calibrate",
			Description: "Set the session scale from two points a known real distance apart. Later measure, vectorize and export calls use it. " + processedCoordinates,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"point1":           pointProperty("First reference point in processed-raster pixels"),
					"point2":           pointProperty("Second reference point in processed-raster pixels"),
					"real_distance_cm": map[string]interface{}{"type": "number", "description": "Real length of the segment in centimetres"},
					"clear": map[string]interface{}{
						"type":        "boolean",
						"description": "Clear the session calibration instead of setting it",
					},
				},
			},
		},
		{
			Name:        "pattern_measure",
			Description: "Measure the distance between two points in pixels, and in centimetres when a calibration is available. Use processed-raster coordinates when converting to centimetres.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"point1":      pointProperty("Start point in pixels"),
					"point2":      pointProperty("End point in pixels"),
					"calibration": calibrationProperty(),
				},
				"required": []string{"point1", "point2"},
			},
		},

		// Output
		{
			Name:        "pattern_export",
			Description: "Vectorize the photo and write a 1:1 A4 pattern sheet as SVG, DXF or PNG.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": exportProps,
				"required":   []string{"path", "output"},
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
