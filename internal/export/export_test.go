package export

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/pattern-tools-mcp/internal/detection"
	"github.com/ironsheep/pattern-tools-mcp/internal/geometry"
)

// createSquare returns a clockwise square polygon with side length s at (x, y).
func createSquare(x, y, s float64) geometry.Polygon {
	return geometry.Polygon{{X: x, Y: y}, {X: x + s, Y: y}, {X: x + s, Y: y + s}, {X: x, Y: y + s}}
}

func TestLayout_Calibrated(t *testing.T) {
	// 100 px per cm, a 500 px square is 5 cm and prints at 5 cm.
	cal, err := geometry.Calibrate(geometry.Pt(0, 0), geometry.Pt(1000, 0), 10)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	layout, err := Layout([]geometry.Polygon{createSquare(200, 300, 500)}, &cal, A4())
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}

	wantScale := PixelsPerMM * 10 / 100
	if math.Abs(layout.Transform.Scale-wantScale) > 1e-12 {
		t.Errorf("Scale: got %v, want %v", layout.Transform.Scale, wantScale)
	}
	if math.Abs(layout.WidthCm-5) > 1e-9 || math.Abs(layout.HeightCm-5) > 1e-9 {
		t.Errorf("size: got %.3fx%.3f cm, want 5x5", layout.WidthCm, layout.HeightCm)
	}
	if !layout.Calibrated || !layout.FitsPage {
		t.Errorf("Calibrated=%v FitsPage=%v, want true/true", layout.Calibrated, layout.FitsPage)
	}

	// Centred horizontally between the margins.
	page := A4()
	left := layout.Placed.MinX - page.MarginPx
	right := page.WidthPx() - page.MarginPx - layout.Placed.MaxX
	if math.Abs(left-right) > 1e-9 {
		t.Errorf("not centred: left gap %v, right gap %v", left, right)
	}
	// Centred vertically below the header.
	top := layout.Placed.MinY - page.HeaderPx
	bottom := page.HeightPx() - page.MarginPx - layout.Placed.MaxY
	if math.Abs(top-bottom) > 1e-9 {
		t.Errorf("not centred: top gap %v, bottom gap %v", top, bottom)
	}

	// The transform reproduces the placed polygon.
	got := layout.Transform.Apply(geometry.Pt(200, 300))
	if got != layout.Polygons[0][0] {
		t.Errorf("Transform.Apply = %v, polygon has %v", got, layout.Polygons[0][0])
	}
}

func TestLayout_Uncalibrated(t *testing.T) {
	layout, err := Layout([]geometry.Polygon{createSquare(0, 0, 100)}, nil, A4())
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	if layout.Transform.Scale != 1 {
		t.Errorf("Scale: got %v, want 1", layout.Transform.Scale)
	}
	if layout.Calibrated {
		t.Error("Calibrated should be false")
	}
	if math.Abs(layout.Placed.Width()-100) > 1e-9 {
		t.Errorf("placed width: got %v, want 100", layout.Placed.Width())
	}
}

func TestLayout_WindingIndependent(t *testing.T) {
	cw := createSquare(10, 10, 50)
	ccw := cw.Reversed()

	a, err := Layout([]geometry.Polygon{cw}, nil, A4())
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	b, err := Layout([]geometry.Polygon{ccw}, nil, A4())
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	if a.Transform != b.Transform || a.Placed != b.Placed {
		t.Errorf("winding changed the layout: %+v vs %+v", a, b)
	}
}

func TestLayout_TooLarge(t *testing.T) {
	layout, err := Layout([]geometry.Polygon{createSquare(0, 0, 2000)}, nil, A4())
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	if layout.FitsPage {
		t.Error("a 2000 px pattern cannot fit an A4 page at 1:1")
	}
}

func TestLayout_Errors(t *testing.T) {
	_, err := Layout(nil, nil, A4())
	if !errors.Is(err, detection.ErrEmptyResult) {
		t.Errorf("empty input: expected EmptyResultError, got %v", err)
	}

	stale := geometry.CalibrationData{Point1: geometry.Pt(0, 0), Point2: geometry.Pt(10, 0), RealDistanceCm: 0}
	_, err = Layout([]geometry.Polygon{createSquare(0, 0, 10)}, &stale, A4())
	if !errors.Is(err, geometry.ErrGeometry) {
		t.Errorf("bad calibration: expected geometry error, got %v", err)
	}
}

func TestPathData(t *testing.T) {
	got := PathData(geometry.Polygon{{X: 1, Y: 2}, {X: 3.5, Y: 4}, {X: 0, Y: 10.125}})
	want := "M 1.00 2.00 L 3.50 4.00 L 0.00 10.13 Z"
	if got != want {
		t.Errorf("PathData() = %q, want %q", got, want)
	}
	if PathData(nil) != "" {
		t.Error("empty polygon should produce empty path data")
	}
}

func TestWriteSVG(t *testing.T) {
	layout, err := Layout([]geometry.Polygon{createSquare(0, 0, 100), createSquare(20, 20, 10)}, nil, A4())
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.CustomerName = "Ana & Co <test>"
	opts.Date = "2026-10-18"
	if err := WriteSVG(&buf, layout, opts); err != nil {
		t.Fatalf("WriteSVG failed: %v", err)
	}
	svg := buf.String()

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`width="210mm" height="297mm"`,
		`viewBox="0 0 793.80 1122.66"`,
		`id="grid" width="37.80"`,
		`id="majorgrid" width="189.00"`,
		Title,
		"Customer: Ana &amp; Co &lt;test&gt;",
		"Date: 2026-10-18",
		"Uncalibrated",
		`stroke="#dc2626"`,
		"</svg>",
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("SVG missing %q", want)
		}
	}
	if n := strings.Count(svg, "<path d=\"M "); n != 2+2 {
		t.Errorf("expected 2 grid paths and 2 pattern paths, got %d", n)
	}
	if strings.Count(svg, " Z\"") != 2 {
		t.Error("pattern paths should be closed with Z")
	}
}

func TestWriteSVG_NoDecoration(t *testing.T) {
	layout, _ := Layout([]geometry.Polygon{createSquare(0, 0, 100)}, nil, A4())

	var buf bytes.Buffer
	if err := WriteSVG(&buf, layout, Options{StrokeColor: "#0000ff"}); err != nil {
		t.Fatalf("WriteSVG failed: %v", err)
	}
	svg := buf.String()
	if strings.Contains(svg, "majorgrid") || strings.Contains(svg, Title) {
		t.Error("grid and labels should be omitted")
	}
	if !strings.Contains(svg, `stroke="#0000ff"`) {
		t.Error("custom stroke color not used")
	}
}

func TestWriteSVG_InvalidColor(t *testing.T) {
	layout, _ := Layout([]geometry.Polygon{createSquare(0, 0, 100)}, nil, A4())
	if err := WriteSVG(&bytes.Buffer{}, layout, Options{StrokeColor: "red"}); err == nil {
		t.Error("expected error for non-hex stroke color")
	}
}

func TestWriteDXF(t *testing.T) {
	layout := LayoutResult{
		Page:     A4(),
		Polygons: []geometry.Polygon{{{X: 0, Y: 0}, {X: 37.8, Y: 0}, {X: 37.8, Y: 37.8}}},
	}

	var buf bytes.Buffer
	if err := WriteDXF(&buf, layout); err != nil {
		t.Fatalf("WriteDXF failed: %v", err)
	}
	dxf := buf.String()

	if !strings.HasPrefix(dxf, "0\nSECTION\n2\nENTITIES\n") {
		t.Errorf("unexpected header: %q", dxf[:30])
	}
	if !strings.HasSuffix(dxf, "0\nENDSEC\n0\nEOF\n") {
		t.Error("missing ENDSEC/EOF trailer")
	}
	if n := strings.Count(dxf, "0\nLINE\n"); n != 3 {
		t.Errorf("expected 3 LINE entities for a closed triangle, got %d", n)
	}
	if !strings.Contains(dxf, "8\nPATTERN\n") {
		t.Error("entities should be on layer PATTERN")
	}
	// 37.8 page px is 10 mm; the closing edge runs from (10,10) back to (0,0).
	if !strings.Contains(dxf, "10\n10.0000\n20\n10.0000\n11\n0.0000\n21\n0.0000\n") {
		t.Errorf("closing edge not found in:\n%s", dxf)
	}
}

func TestRenderPNG(t *testing.T) {
	cal, _ := geometry.Calibrate(geometry.Pt(0, 0), geometry.Pt(100, 0), 10)
	layout, err := Layout([]geometry.Polygon{createSquare(0, 0, 100)}, &cal, A4())
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}

	page, err := RenderPNG(layout, DefaultOptions())
	if err != nil {
		t.Fatalf("RenderPNG failed: %v", err)
	}
	if page.Bounds().Dx() != 794 || page.Bounds().Dy() != 1123 {
		t.Errorf("page size: got %v, want 794x1123", page.Bounds())
	}

	// The middle of the top edge is stroked in the default red.
	x := int(math.Round((layout.Placed.MinX + layout.Placed.MaxX) / 2))
	y := int(math.Floor(layout.Placed.MinY))
	if c := page.RGBAAt(x, y); c.R < 200 || c.G > 100 {
		t.Errorf("stroke pixel at (%d,%d) = %v, want red", x, y, c)
	}

	// The centre of the square is not stroked.
	cy := int(math.Round((layout.Placed.MinY + layout.Placed.MaxY) / 2))
	if c := page.RGBAAt(x+3, cy+3); c.R == 0xdc && c.G == 0x26 {
		t.Errorf("interior pixel is stroked: %v", c)
	}

	// Frame.
	if c := page.RGBAAt(0, 500); c.R != 0x37 || c.G != 0x41 || c.B != 0x51 {
		t.Errorf("frame pixel = %v, want #374151", c)
	}
}

func TestWritePNG_And_SavePNG(t *testing.T) {
	layout, _ := Layout([]geometry.Polygon{createSquare(0, 0, 50)}, nil, A4())

	var buf bytes.Buffer
	if err := WritePNG(&buf, layout, DefaultOptions()); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 794 {
		t.Errorf("width: got %d, want 794", img.Bounds().Dx())
	}

	path := filepath.Join(t.TempDir(), "page.png")
	if err := SavePNG(path, layout, DefaultOptions()); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}
	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		t.Errorf("saved file missing or empty: %v", err)
	}
}
