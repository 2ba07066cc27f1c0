package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ironsheep/pattern-tools-mcp/internal/detection"
	"github.com/ironsheep/pattern-tools-mcp/internal/geometry"
	"github.com/ironsheep/pattern-tools-mcp/internal/imaging"
)

// createSquareImage draws a white filled square [a,b]x[a,b] on black.
func createSquareImage(size, a, b int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.RGBA{0, 0, 0, 255}
			if x >= a && x <= b && y >= a && y <= b {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// createCircleImage draws a white filled disc of radius r centered in a
// size x size black image.
func createCircleImage(size, r int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := size / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			px := color.RGBA{0, 0, 0, 255}
			if (x-c)*(x-c)+(y-c)*(y-c) <= r*r {
				px = color.RGBA{255, 255, 255, 255}
			}
			img.SetRGBA(x, y, px)
		}
	}
	return img
}

// binaryOptions skips blur, contrast and adaptive threshold, which suits
// synthetic 0/255 inputs.
func binaryOptions() Options {
	opts := DefaultOptions()
	opts.Edges = imaging.EdgeOptions{
		LowThreshold:   imaging.DefaultLowThreshold,
		HighThreshold:  imaging.DefaultHighThreshold,
		ContrastFactor: 1,
	}
	return opts
}

func TestRun_Square(t *testing.T) {
	src := createSquareImage(40, 10, 29)

	result, err := Run(context.Background(), src, binaryOptions())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Width != 40 || result.Height != 40 {
		t.Errorf("dimensions: got %dx%d, want 40x40", result.Width, result.Height)
	}
	if result.Traced != 1 {
		t.Errorf("Traced: got %d, want 1", result.Traced)
	}
	if len(result.Polygons) != 1 {
		t.Fatalf("expected 1 polygon, got %d", len(result.Polygons))
	}

	poly := result.Polygons[0]
	if len(poly) < 4 || len(poly) > 8 {
		t.Errorf("square simplified to %d points, want 4-8", len(poly))
	}
	b := poly.Bounds()
	if math.Abs(b.MinX-10) > 1 || math.Abs(b.MaxX-29) > 1 || math.Abs(b.MinY-10) > 1 || math.Abs(b.MaxY-29) > 1 {
		t.Errorf("bounds %+v do not match square [10,29] ±1", b)
	}
	if src.RGBAAt(15, 15) != (color.RGBA{255, 255, 255, 255}) {
		t.Error("Run modified its input")
	}
}

func TestRun_Circle(t *testing.T) {
	const size = 120
	src := createCircleImage(size, 40)

	tests := []struct {
		name     string
		opts     Options
		polygons int
	}{
		{"binary", binaryOptions(), 1},
		{"default preprocessing", DefaultOptions(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(context.Background(), src, tt.opts)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if tt.polygons > 0 && len(result.Polygons) != tt.polygons {
				t.Errorf("expected %d polygon(s), got %d", tt.polygons, len(result.Polygons))
			}
			for i, p := range result.Polygons {
				if area := p.Area(); area > size*size {
					t.Errorf("polygon %d: area %v exceeds image area %d", i, area, size*size)
				}
				seen := make(map[geometry.Point]bool)
				for _, q := range p {
					if seen[q] {
						t.Errorf("polygon %d: point %v repeated", i, q)
						break
					}
					seen[q] = true
				}
			}

			// The disc covers about 5027 pixels.
			largest := result.Polygons[0].Area()
			if largest < 4000 {
				t.Errorf("largest polygon area %v, want near the disc", largest)
			}
		})
	}
}

func TestRun_Empty(t *testing.T) {
	src := createSquareImage(30, 100, 100) // all black

	_, err := Run(context.Background(), src, binaryOptions())
	if !errors.Is(err, detection.ErrEmptyResult) {
		t.Fatalf("expected EmptyResultError, got %v", err)
	}
	var empty *detection.EmptyResultError
	if errors.As(err, &empty) && empty.Traced != 0 {
		t.Errorf("Traced: got %d, want 0", empty.Traced)
	}
}

func TestRun_FilteredToEmpty(t *testing.T) {
	opts := binaryOptions()
	opts.MinPolygonPoints = 100

	_, err := Run(context.Background(), createSquareImage(40, 10, 29), opts)
	var empty *detection.EmptyResultError
	if !errors.As(err, &empty) {
		t.Fatalf("expected *EmptyResultError, got %v", err)
	}
	if empty.Traced != 1 {
		t.Errorf("Traced: got %d, want 1", empty.Traced)
	}
}

func TestRun_CornerCount(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		opts := binaryOptions()
		opts.Corners = make([]geometry.Point, n)
		for i := range opts.Corners {
			opts.Corners[i] = geometry.Pt(float64(i*10), float64(i*7%3))
		}

		_, err := Run(context.Background(), createSquareImage(40, 10, 29), opts)
		if !errors.Is(err, geometry.ErrGeometry) {
			t.Errorf("%d corners: expected geometry error, got %v", n, err)
		}
	}
}

func TestRun_DegenerateCorners(t *testing.T) {
	opts := binaryOptions()
	opts.Corners = []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}}

	_, err := Run(context.Background(), createSquareImage(40, 10, 29), opts)
	var ge *geometry.GeometryError
	if !errors.As(err, &ge) {
		t.Fatalf("expected *GeometryError, got %v", err)
	}
}

func TestRun_IdentityRectify(t *testing.T) {
	opts := binaryOptions()
	opts.Corners = []geometry.Point{{X: 0, Y: 0}, {X: 40, Y: 0}, {X: 40, Y: 40}, {X: 0, Y: 40}}
	opts.RectifyWidth, opts.RectifyHeight = 40, 40

	withRectify, err := Run(context.Background(), createSquareImage(40, 10, 29), opts)
	if err != nil {
		t.Fatalf("Run with rectify failed: %v", err)
	}
	without, err := Run(context.Background(), createSquareImage(40, 10, 29), binaryOptions())
	if err != nil {
		t.Fatalf("Run without rectify failed: %v", err)
	}

	if len(withRectify.Polygons) != len(without.Polygons) {
		t.Fatalf("polygon count differs: %d vs %d", len(withRectify.Polygons), len(without.Polygons))
	}
	for i := range without.Polygons[0] {
		if withRectify.Polygons[0][i] != without.Polygons[0][i] {
			t.Errorf("point %d: %v vs %v", i, withRectify.Polygons[0][i], without.Polygons[0][i])
		}
	}
}

func TestRun_ROI(t *testing.T) {
	opts := binaryOptions()
	roi := image.Rect(5, 5, 35, 35)
	opts.ROI = &roi

	result, err := Run(context.Background(), createSquareImage(40, 10, 29), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Width != 30 || result.Height != 30 {
		t.Errorf("dimensions: got %dx%d, want 30x30", result.Width, result.Height)
	}
	b := result.Polygons[0].Bounds()
	if math.Abs(b.MinX-5) > 1 || math.Abs(b.MinY-5) > 1 {
		t.Errorf("polygon should be in ROI coordinates, bounds %+v", b)
	}
}

func TestRun_InvalidROI(t *testing.T) {
	opts := binaryOptions()
	roi := image.Rect(30, 30, 80, 80)
	opts.ROI = &roi

	if _, err := Run(context.Background(), createSquareImage(40, 10, 29), opts); err == nil {
		t.Error("expected error for ROI outside the image")
	}
}

func TestRun_Smoothing(t *testing.T) {
	opts := binaryOptions()
	opts.SmoothWindow = DefaultSmoothWindow

	result, err := Run(context.Background(), createSquareImage(40, 10, 29), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, p := range result.Polygons {
		if len(p) < DefaultMinPolygonPoints {
			t.Errorf("polygon with %d points passed the filter", len(p))
		}
	}
}

func TestRun_InvalidEdgeOptions(t *testing.T) {
	opts := binaryOptions()
	opts.Edges.LowThreshold = 300

	_, err := Run(context.Background(), createSquareImage(40, 10, 29), opts)
	if err == nil {
		t.Fatal("expected error for low > high")
	}
	if errors.Is(err, detection.ErrEmptyResult) || errors.Is(err, geometry.ErrGeometry) {
		t.Errorf("unexpected typed error: %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, createSquareImage(40, 10, 29), binaryOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRun_LogsStages(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	opts := binaryOptions()
	opts.Logger = logger
	if _, err := Run(context.Background(), createSquareImage(40, 10, 29), opts); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stages := make(map[string]bool)
	for _, entry := range hook.AllEntries() {
		if s, ok := entry.Data["stage"].(string); ok {
			stages[s] = true
			if _, ok := entry.Data["duration"]; !ok {
				t.Errorf("stage %s logged without duration", s)
			}
		}
	}
	for _, want := range []string{"edges", "trace", "simplify"} {
		if !stages[want] {
			t.Errorf("stage %q was not logged", want)
		}
	}
	if stages["rectify"] || stages["crop"] {
		t.Error("skipped stages should not be logged")
	}
}
