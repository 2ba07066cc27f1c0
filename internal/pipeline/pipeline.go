package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/pattern-tools-mcp/internal/detection"
	"github.com/ironsheep/pattern-tools-mcp/internal/geometry"
	"github.com/ironsheep/pattern-tools-mcp/internal/imaging"
)

// Defaults for the vectorization stages that follow tracing.
const (
	DefaultSmoothWindow     = 5
	DefaultMinPolygonPoints = 3
)

// Options configures one pipeline run.
type Options struct {
	// Corners are the four pattern corners (TL, TR, BR, BL) in source image
	// coordinates. Empty skips rectification.
	Corners []geometry.Point

	// RectifyWidth and RectifyHeight size the rectified image. Non-positive
	// values use imaging.DefaultRectifiedWidth/Height.
	RectifyWidth  int
	RectifyHeight int

	// ROI crops the source before anything else. Nil processes the whole image.
	ROI *image.Rectangle

	// Edges holds preprocessing and Canny parameters.
	Edges imaging.EdgeOptions

	// Epsilon is the Douglas-Peucker tolerance in pixels.
	Epsilon float64

	// SmoothWindow applies a circular moving average before simplification
	// when greater than 1.
	SmoothWindow int

	// MinPolygonPoints drops simplified polygons with fewer points.
	// Values below 3 are raised to 3.
	MinPolygonPoints int

	// Logger receives one debug entry per stage. Nil disables logging.
	Logger logrus.FieldLogger
}

// DefaultOptions returns the options used when a caller supplies none.
func DefaultOptions() Options {
	return Options{
		RectifyWidth:     imaging.DefaultRectifiedWidth,
		RectifyHeight:    imaging.DefaultRectifiedHeight,
		Edges:            imaging.DefaultEdgeOptions(),
		Epsilon:          detection.DefaultEpsilon,
		MinPolygonPoints: DefaultMinPolygonPoints,
	}
}

// Result is the output of a successful run.
type Result struct {
	// Edges is the binary edge mask the polygons were traced from.
	Edges *image.RGBA

	// Polygons are the simplified outlines, largest area first.
	Polygons []geometry.Polygon

	// Width and Height are the size of the processed raster, after ROI crop
	// and rectification. Polygon coordinates are in this space.
	Width  int
	Height int

	// Traced is the number of contours before smoothing and filtering.
	Traced int
}

// Run executes the pipeline: ROI crop, rectify, detect edges, trace,
// smooth, simplify, filter.
//
// Run is synchronous. It checks ctx before every stage and returns the
// context error wrapped with the stage name when cancelled. src is never
// modified.
//
// Errors:
//   - *geometry.GeometryError: 1 to 3 corners, or a degenerate quadrilateral.
//   - *detection.EmptyResultError: no contour survived tracing or filtering.
//   - anything else is wrapped with the failing stage.
func Run(ctx context.Context, src image.Image, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	if n := len(opts.Corners); n != 0 && n != 4 {
		return nil, geometry.NewGeometryError("rectify", "need exactly 4 corner points, got %d", n)
	}

	r := &runner{ctx: ctx, log: log}

	var img *image.RGBA
	if opts.ROI != nil {
		roi := *opts.ROI
		err := r.stage("crop", func() (err error) {
			img, err = imaging.Crop(src, roi)
			return err
		})
		if err != nil {
			return nil, err
		}
	} else {
		img = imaging.ToRGBA(src)
	}

	if len(opts.Corners) == 4 {
		corners := opts.Corners
		if opts.ROI != nil {
			corners = make([]geometry.Point, 4)
			offset := geometry.Point{X: float64(opts.ROI.Min.X), Y: float64(opts.ROI.Min.Y)}
			for i, c := range opts.Corners {
				corners[i] = c.Sub(offset)
			}
		}
		w, h := opts.RectifyWidth, opts.RectifyHeight
		if w <= 0 {
			w = imaging.DefaultRectifiedWidth
		}
		if h <= 0 {
			h = imaging.DefaultRectifiedHeight
		}
		err := r.stage("rectify", func() (err error) {
			img, err = imaging.Rectify(img, corners, w, h)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	var edges *image.RGBA
	err := r.stage("edges", func() (err error) {
		edges, err = imaging.DetectEdges(img, opts.Edges)
		return err
	})
	if err != nil {
		return nil, err
	}

	var contours []geometry.Polygon
	if err := r.stage("trace", func() error {
		contours = detection.TraceContours(edges)
		return nil
	}); err != nil {
		return nil, err
	}
	traced := len(contours)
	if traced == 0 {
		return nil, &detection.EmptyResultError{}
	}

	if opts.SmoothWindow > 1 {
		if err := r.stage("smooth", func() error {
			for i, c := range contours {
				contours[i] = c.Smooth(opts.SmoothWindow)
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	var simplified []geometry.Polygon
	if err := r.stage("simplify", func() (err error) {
		simplified, err = detection.SimplifyAll(ctx, contours, opts.Epsilon)
		return err
	}); err != nil {
		return nil, err
	}

	minPoints := opts.MinPolygonPoints
	if minPoints < DefaultMinPolygonPoints {
		minPoints = DefaultMinPolygonPoints
	}
	kept := make([]geometry.Polygon, 0, len(simplified))
	for _, p := range simplified {
		if len(p) >= minPoints {
			kept = append(kept, p)
		}
	}
	log.WithFields(logrus.Fields{
		"traced": traced,
		"kept":   len(kept),
	}).Debug("pipeline filtered polygons")
	if len(kept) == 0 {
		return nil, &detection.EmptyResultError{Traced: traced}
	}

	return &Result{
		Edges:    edges,
		Polygons: kept,
		Width:    edges.Bounds().Dx(),
		Height:   edges.Bounds().Dy(),
		Traced:   traced,
	}, nil
}

type runner struct {
	ctx context.Context
	log logrus.FieldLogger
}

// stage runs fn unless the context is already done, and logs its duration.
// Errors from fn are returned unchanged when they are typed pipeline errors
// and wrapped with the stage name otherwise.
func (r *runner) stage(name string, fn func() error) error {
	if err := r.ctx.Err(); err != nil {
		return fmt.Errorf("pipeline cancelled before %s: %w", name, err)
	}
	start := time.Now()
	err := fn()
	entry := r.log.WithFields(logrus.Fields{
		"stage":    name,
		"duration": time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Debug("pipeline stage failed")
		return wrapStageError(name, err)
	}
	entry.Debug("pipeline stage done")
	return nil
}

func wrapStageError(stage string, err error) error {
	switch err.(type) {
	case *geometry.GeometryError, *detection.EmptyResultError, *imaging.ImageLoadError:
		return err
	}
	return fmt.Errorf("failed to run %s stage: %w", stage, err)
}
