package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/pattern-tools-mcp/internal/detection"
	"github.com/ironsheep/pattern-tools-mcp/internal/export"
	"github.com/ironsheep/pattern-tools-mcp/internal/geometry"
	"github.com/ironsheep/pattern-tools-mcp/internal/imaging"
	"github.com/ironsheep/pattern-tools-mcp/internal/pipeline"
)

// JSON-RPC error codes for tool failures.
const (
	codeToolFailed  = -32000
	codeEmptyResult = -32001
	codeGeometry    = -32002
	codeImageLoad   = -32003
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "pattern_load", "pattern_vectorize").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response; see toolErrorCode
// for the codes.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		code, message := toolErrorCode(err)
		s.logger.WithFields(logrus.Fields{
			"tool": params.Name,
			"code": code,
		}).WithError(err).Warn("tool failed")
		return s.errorResponse(req.ID, code, message, err.Error())
	}
	s.logger.WithFields(logrus.Fields{
		"tool":     params.Name,
		"duration": time.Since(start),
	}).Info("tool completed")

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// toolErrorCode maps typed pipeline errors to JSON-RPC codes so clients can
// react to them, e.g. suggest new thresholds on an empty result.
func toolErrorCode(err error) (int, string) {
	var loadErr *imaging.ImageLoadError
	switch {
	case errors.Is(err, detection.ErrEmptyResult):
		return codeEmptyResult, "No contours found"
	case errors.Is(err, geometry.ErrGeometry):
		return codeGeometry, "Invalid geometry"
	case errors.As(err, &loadErr):
		return codeImageLoad, "Image load failed"
	default:
		return codeToolFailed, "Tool execution failed"
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies server configuration for omitted parameters
//  3. Loads images from cache as needed
//  4. Calls the appropriate imaging/pipeline/export function
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Image Input
	case "pattern_load":
		return s.handlePatternLoad(args)
	case "pattern_crop":
		return s.handlePatternCrop(args)

	// Processing Stages
	case "pattern_rectify":
		return s.handlePatternRectify(args)
	case "pattern_edge_detect":
		return s.handlePatternEdgeDetect(args)
	case "pattern_vectorize":
		return s.handlePatternVectorize(ctx, args)

	// Measurement
	case "pattern_calibrate":
		return s.handlePatternCalibrate(args)
	case "pattern_measure":
		return s.handlePatternMeasure(args)

	// Output
	case "pattern_export":
		return s.handlePatternExport(ctx, args)

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

// unmarshalArgs decodes tool arguments. Tools without required arguments
// accept a missing arguments object.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Shared Argument Types ===

type regionArgs struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// rect keeps the corners as given so that x1 >= x2 stays an empty region
// instead of being swapped.
func (r regionArgs) rect() image.Rectangle {
	return image.Rectangle{Min: image.Pt(r.X1, r.Y1), Max: image.Pt(r.X2, r.Y2)}
}

type calibrationArgs struct {
	Point1         geometry.Point `json:"point1"`
	Point2         geometry.Point `json:"point2"`
	RealDistanceCm float64        `json:"real_distance_cm"`
}

// resolveCalibration prefers a calibration passed with the call over the
// session calibration. Both may be absent.
func (s *Server) resolveCalibration(a *calibrationArgs) (*geometry.CalibrationData, error) {
	if a == nil {
		return s.Calibration(), nil
	}
	cal, err := geometry.Calibrate(a.Point1, a.Point2, a.RealDistanceCm)
	if err != nil {
		return nil, err
	}
	return &cal, nil
}

type edgeArgs struct {
	LowThreshold  *float64 `json:"low_threshold"`
	HighThreshold *float64 `json:"high_threshold"`
	BlurSigma     *float64 `json:"blur_sigma"`
	Contrast      *float64 `json:"contrast"`
	BlockSize     *int     `json:"block_size"`
	C             *float64 `json:"c"`
}

func (a edgeArgs) apply(opts *imaging.EdgeOptions) {
	if a.LowThreshold != nil {
		opts.LowThreshold = *a.LowThreshold
	}
	if a.HighThreshold != nil {
		opts.HighThreshold = *a.HighThreshold
	}
	if a.BlurSigma != nil {
		opts.BlurSigma = *a.BlurSigma
	}
	if a.Contrast != nil {
		opts.ContrastFactor = *a.Contrast
	}
	if a.BlockSize != nil {
		opts.BlockSize = *a.BlockSize
	}
	if a.C != nil {
		opts.C = *a.C
	}
}

type pipelineArgs struct {
	edgeArgs

	Path          string           `json:"path"`
	Corners       []geometry.Point `json:"corners"`
	ROI           *regionArgs      `json:"roi"`
	RectifyWidth  int              `json:"rectify_width"`
	RectifyHeight int              `json:"rectify_height"`
	Epsilon       *float64         `json:"epsilon"`
	SmoothWindow  *int             `json:"smooth_window"`
	MinPoints     *int             `json:"min_points"`
	Calibration   *calibrationArgs `json:"calibration"`
}

// pipelineOptions layers call arguments over the configured defaults.
func (s *Server) pipelineOptions(a pipelineArgs) pipeline.Options {
	opts := s.config.PipelineOptions()
	opts.Corners = a.Corners
	if a.ROI != nil {
		roi := a.ROI.rect()
		opts.ROI = &roi
	}
	if a.RectifyWidth > 0 {
		opts.RectifyWidth = a.RectifyWidth
	}
	if a.RectifyHeight > 0 {
		opts.RectifyHeight = a.RectifyHeight
	}
	if a.Epsilon != nil {
		opts.Epsilon = *a.Epsilon
	}
	if a.SmoothWindow != nil {
		opts.SmoothWindow = *a.SmoothWindow
	}
	if a.MinPoints != nil {
		opts.MinPolygonPoints = *a.MinPoints
	}
	a.edgeArgs.apply(&opts.Edges)
	opts.Logger = s.logger.WithField("path", a.Path)
	return opts
}

// === Image Input Handlers ===

type patternLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handlePatternLoad(args json.RawMessage) (interface{}, error) {
	var a patternLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type patternCropArgs struct {
	regionArgs
	Path  string  `json:"path"`
	Scale float64 `json:"scale"`
}

func (s *Server) handlePatternCrop(args json.RawMessage) (interface{}, error) {
	var a patternCropArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	cropped, err := imaging.Crop(img, a.rect())
	if err != nil {
		return nil, err
	}
	return imaging.EncodeImage(cropped, a.Scale)
}

// === Processing Stage Handlers ===

type patternRectifyArgs struct {
	Path    string           `json:"path"`
	Corners []geometry.Point `json:"corners"`
	Width   int              `json:"width"`
	Height  int              `json:"height"`
	Scale   float64          `json:"scale"`
}

func (s *Server) handlePatternRectify(args json.RawMessage) (interface{}, error) {
	var a patternRectifyArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Width == 0 {
		a.Width = s.config.Pipeline.RectifyWidth
	}
	if a.Height == 0 {
		a.Height = s.config.Pipeline.RectifyHeight
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	rectified, err := imaging.Rectify(img, a.Corners, a.Width, a.Height)
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodeImage(rectified, a.Scale)
	if err != nil {
		return nil, err
	}
	return &rectifyResult{
		ImageResult:     encoded,
		RectifiedWidth:  rectified.Bounds().Dx(),
		RectifiedHeight: rectified.Bounds().Dy(),
	}, nil
}

// rectifyResult reports the rectified raster size separately from the
// preview size, which differs when scale != 1.
type rectifyResult struct {
	*imaging.ImageResult
	RectifiedWidth  int `json:"rectified_width"`
	RectifiedHeight int `json:"rectified_height"`
}

type patternEdgeDetectArgs struct {
	edgeArgs
	Path    string           `json:"path"`
	Corners []geometry.Point `json:"corners"`
	ROI     *regionArgs      `json:"roi"`
	Scale   float64          `json:"scale"`
}

type edgeDetectResult struct {
	*imaging.ImageResult
	EdgePixels int `json:"edge_pixels"`
}

func (s *Server) handlePatternEdgeDetect(args json.RawMessage) (interface{}, error) {
	var a patternEdgeDetectArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	opts := s.config.Edges
	a.edgeArgs.apply(&opts)

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var offset image.Point
	if a.ROI != nil {
		if img, err = imaging.Crop(img, a.ROI.rect()); err != nil {
			return nil, err
		}
		offset = a.ROI.rect().Min
	}
	if len(a.Corners) > 0 {
		corners := make([]geometry.Point, len(a.Corners))
		for i, c := range a.Corners {
			corners[i] = geometry.Pt(c.X-float64(offset.X), c.Y-float64(offset.Y))
		}
		img, err = imaging.Rectify(img, corners, s.config.Pipeline.RectifyWidth, s.config.Pipeline.RectifyHeight)
		if err != nil {
			return nil, err
		}
	}

	mask, err := imaging.DetectEdges(img, opts)
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodeImage(mask, a.Scale)
	if err != nil {
		return nil, err
	}
	return &edgeDetectResult{ImageResult: encoded, EdgePixels: countEdgePixels(mask)}, nil
}

func countEdgePixels(mask *image.RGBA) int {
	n := 0
	for i := 0; i < len(mask.Pix); i += 4 {
		if mask.Pix[i] == 255 {
			n++
		}
	}
	return n
}

type polygonResult struct {
	Points      geometry.Polygon `json:"points"`
	PointCount  int              `json:"point_count"`
	AreaPx      float64          `json:"area_px"`
	PerimeterPx float64          `json:"perimeter_px"`
	Bounds      geometry.Bounds  `json:"bounds"`

	// Set only with a calibration.
	WidthCm  *float64 `json:"width_cm,omitempty"`
	HeightCm *float64 `json:"height_cm,omitempty"`
	AreaCm2  *float64 `json:"area_cm2,omitempty"`
}

type vectorizeResult struct {
	Width       int                       `json:"width"`
	Height      int                       `json:"height"`
	Traced      int                       `json:"traced"`
	Count       int                       `json:"count"`
	Polygons    []polygonResult           `json:"polygons"`
	Calibration *geometry.CalibrationData `json:"calibration,omitempty"`
	Edges       *imaging.ImageResult      `json:"edges,omitempty"`
}

type patternVectorizeArgs struct {
	pipelineArgs
	IncludeEdges bool `json:"include_edges"`
}

func (s *Server) handlePatternVectorize(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a patternVectorizeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	cal, err := s.resolveCalibration(a.Calibration)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Run(ctx, img, s.pipelineOptions(a.pipelineArgs))
	if err != nil {
		return nil, err
	}

	out := &vectorizeResult{
		Width:       res.Width,
		Height:      res.Height,
		Traced:      res.Traced,
		Count:       len(res.Polygons),
		Polygons:    make([]polygonResult, len(res.Polygons)),
		Calibration: cal,
	}
	for i, p := range res.Polygons {
		out.Polygons[i] = describePolygon(p, cal)
	}
	if a.IncludeEdges {
		if out.Edges, err = imaging.EncodeImage(res.Edges, 1); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func describePolygon(p geometry.Polygon, cal *geometry.CalibrationData) polygonResult {
	b := p.Bounds()
	r := polygonResult{
		Points:      p,
		PointCount:  len(p),
		AreaPx:      round(p.Area(), 2),
		PerimeterPx: round(p.Perimeter(), 2),
		Bounds:      b,
	}
	if cal != nil {
		w := round(cal.ToCm(b.Width()), 2)
		h := round(cal.ToCm(b.Height()), 2)
		area := round(p.Area()/(cal.PixelsPerCm*cal.PixelsPerCm), 2)
		r.WidthCm, r.HeightCm, r.AreaCm2 = &w, &h, &area
	}
	return r
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

// === Measurement Handlers ===

type patternCalibrateArgs struct {
	calibrationArgs
	Clear bool `json:"clear"`
}

type calibrateResult struct {
	Calibrated  bool                      `json:"calibrated"`
	Calibration *geometry.CalibrationData `json:"calibration,omitempty"`
}

func (s *Server) handlePatternCalibrate(args json.RawMessage) (interface{}, error) {
	var a patternCalibrateArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Clear {
		s.setCalibration(nil)
		return &calibrateResult{Calibrated: false}, nil
	}

	cal, err := geometry.Calibrate(a.Point1, a.Point2, a.RealDistanceCm)
	if err != nil {
		return nil, err
	}
	s.setCalibration(&cal)
	s.logger.WithField("pixels_per_cm", cal.PixelsPerCm).Info("calibration set")
	return &calibrateResult{Calibrated: true, Calibration: &cal}, nil
}

type patternMeasureArgs struct {
	Point1      geometry.Point   `json:"point1"`
	Point2      geometry.Point   `json:"point2"`
	Calibration *calibrationArgs `json:"calibration"`
}

func (s *Server) handlePatternMeasure(args json.RawMessage) (interface{}, error) {
	var a patternMeasureArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	cal, err := s.resolveCalibration(a.Calibration)
	if err != nil {
		return nil, err
	}
	return imaging.MeasureDistance(cal, a.Point1, a.Point2), nil
}

// === Output Handlers ===

type patternExportArgs struct {
	pipelineArgs
	Output       string `json:"output"`
	Format       string `json:"format"`
	CustomerName string `json:"customer_name"`
	Date         string `json:"date"`
	Grid         *bool  `json:"grid"`
	Labels       *bool  `json:"labels"`
}

type exportResult struct {
	Output   string              `json:"output"`
	Format   string              `json:"format"`
	Polygons int                 `json:"polygons"`
	Layout   export.LayoutResult `json:"layout"`
}

func (s *Server) handlePatternExport(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a patternExportArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}
	format := strings.ToLower(a.Format)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(a.Output)), ".")
	}
	if format != "svg" && format != "dxf" && format != "png" {
		return nil, fmt.Errorf("unsupported export format %q: use svg, dxf or png", format)
	}

	opts := s.config.ExportOptions()
	if a.CustomerName != "" {
		opts.CustomerName = a.CustomerName
	}
	opts.Date = a.Date
	if opts.Date == "" {
		opts.Date = time.Now().Format("2006-01-02")
	}
	if a.Grid != nil {
		opts.Grid = *a.Grid
	}
	if a.Labels != nil {
		opts.Labels = *a.Labels
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cal, err := s.resolveCalibration(a.Calibration)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := pipeline.Run(ctx, img, s.pipelineOptions(a.pipelineArgs))
	if err != nil {
		return nil, err
	}
	layout, err := export.Layout(res.Polygons, cal, export.A4())
	if err != nil {
		return nil, err
	}

	switch {
	case format == "svg":
		err = writeFile(a.Output, func(w io.Writer) error { return export.WriteSVG(w, layout, opts) })
	case format == "dxf":
		err = writeFile(a.Output, func(w io.Writer) error { return export.WriteDXF(w, layout) })
	case strings.EqualFold(filepath.Ext(a.Output), ".png"):
		err = export.SavePNG(a.Output, layout, opts)
	default:
		err = writeFile(a.Output, func(w io.Writer) error { return export.WritePNG(w, layout, opts) })
	}
	if err != nil {
		return nil, err
	}

	if !layout.FitsPage {
		s.logger.WithFields(logrus.Fields{
			"output":    a.Output,
			"width_cm":  layout.WidthCm,
			"height_cm": layout.HeightCm,
		}).Warn("pattern does not fit the page")
	}

	return &exportResult{
		Output:   a.Output,
		Format:   format,
		Polygons: len(res.Polygons),
		Layout:   layout,
	}, nil
}

// writeFile creates path and streams fn's output into it. A failed close is
// reported because it can hide a short write.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return fn(f)
}
