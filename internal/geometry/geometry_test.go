package geometry

import (
	"errors"
	"math"
	"testing"
)

func TestSignedArea(t *testing.T) {
	tests := []struct {
		name string
		poly Polygon
		want float64
	}{
		{"unit triangle clockwise", Polygon{{0, 0}, {1, 0}, {0, 1}}, 0.5},
		{"unit triangle counter-clockwise", Polygon{{0, 0}, {0, 1}, {1, 0}}, -0.5},
		{"square", Polygon{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, 100},
		{"two points", Polygon{{0, 0}, {5, 5}}, 0},
		{"empty", nil, 0},
		{"collinear", Polygon{{0, 0}, {1, 1}, {2, 2}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.poly.SignedArea()
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("SignedArea() = %v, want %v", got, tt.want)
			}
			if math.Abs(tt.poly.Area()-math.Abs(tt.want)) > 1e-12 {
				t.Errorf("Area() = %v, want %v", tt.poly.Area(), math.Abs(tt.want))
			}
		})
	}
}

func TestClockwise(t *testing.T) {
	ccw := Polygon{{0, 0}, {0, 10}, {10, 10}, {10, 0}}
	if ccw.IsClockwise() {
		t.Fatal("expected counter-clockwise input")
	}

	cw := ccw.Clockwise()
	if !cw.IsClockwise() {
		t.Errorf("Clockwise() returned a polygon with area %v", cw.SignedArea())
	}
	if ccw[1] != (Point{0, 10}) {
		t.Error("Clockwise() modified its receiver")
	}
	if math.Abs(cw.Area()-ccw.Area()) > 1e-12 {
		t.Errorf("area changed: %v != %v", cw.Area(), ccw.Area())
	}
}

func TestPolygonBounds(t *testing.T) {
	poly := Polygon{{3, 4}, {-1, 8}, {6, -2}}
	b := poly.Bounds()
	want := Bounds{MinX: -1, MinY: -2, MaxX: 6, MaxY: 8}
	if b != want {
		t.Errorf("Bounds() = %+v, want %+v", b, want)
	}
	if b.Width() != 7 || b.Height() != 10 {
		t.Errorf("Width/Height = %v/%v, want 7/10", b.Width(), b.Height())
	}

	all, ok := BoundsOf([]Polygon{nil, {{10, 10}, {12, 20}}, poly})
	if !ok {
		t.Fatal("BoundsOf() reported no points")
	}
	if all != (Bounds{MinX: -1, MinY: -2, MaxX: 12, MaxY: 20}) {
		t.Errorf("BoundsOf() = %+v", all)
	}

	if _, ok := BoundsOf([]Polygon{nil, {}}); ok {
		t.Error("BoundsOf() of empty polygons should report false")
	}
}

func TestSmooth(t *testing.T) {
	// A constant polygon stays constant under averaging.
	flat := Polygon{{2, 3}, {2, 3}, {2, 3}, {2, 3}, {2, 3}, {2, 3}}
	for i, p := range flat.Smooth(5) {
		if p != (Point{2, 3}) {
			t.Errorf("point %d = %v, want (2,3)", i, p)
		}
	}

	// Window wraps around the closed outline.
	line := Polygon{{0, 0}, {3, 0}, {6, 0}}
	got := line.Smooth(3)
	if got[0].X != 3 {
		t.Errorf("wrapped mean = %v, want 3", got[0].X)
	}

	short := Polygon{{0, 0}, {1, 1}}
	if s := short.Smooth(5); len(s) != 2 || s[1] != (Point{1, 1}) {
		t.Errorf("short polygon should be copied, got %v", s)
	}
}

func TestPerpendicularDistance(t *testing.T) {
	a, b := Pt(0, 0), Pt(10, 0)
	if d := PerpendicularDistance(Pt(5, 3), a, b); math.Abs(d-3) > 1e-12 {
		t.Errorf("distance = %v, want 3", d)
	}
	if d := PerpendicularDistance(Pt(3, 4), a, a); math.Abs(d-5) > 1e-12 {
		t.Errorf("degenerate chord distance = %v, want 5", d)
	}
	if d := SegmentDistance(Pt(13, 4), a, b); math.Abs(d-5) > 1e-12 {
		t.Errorf("segment distance = %v, want 5", d)
	}
}

func TestTransform(t *testing.T) {
	tr := Transform{Scale: 2, OffsetX: 10, OffsetY: -5}
	if got := tr.Apply(Pt(3, 4)); got != Pt(16, 3) {
		t.Errorf("Apply() = %v, want (16,3)", got)
	}
	if got := Identity().Apply(Pt(7, 9)); got != Pt(7, 9) {
		t.Errorf("Identity().Apply() = %v", got)
	}

	poly := Polygon{{0, 0}, {1, 1}}
	out := tr.ApplyPolygon(poly)
	if out[1] != Pt(12, -3) || poly[1] != Pt(1, 1) {
		t.Errorf("ApplyPolygon() = %v (input %v)", out, poly)
	}
}

func TestCalibrate(t *testing.T) {
	cal, err := Calibrate(Pt(0, 0), Pt(100, 0), 10)
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	if cal.PixelsPerCm != 10 {
		t.Errorf("PixelsPerCm = %v, want 10", cal.PixelsPerCm)
	}
	if cal.ToCm(250) != 25 {
		t.Errorf("ToCm(250) = %v, want 25", cal.ToCm(250))
	}
	if err := cal.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	moved, err := cal.WithPoint2(Pt(0, 50))
	if err != nil {
		t.Fatalf("WithPoint2() error = %v", err)
	}
	if moved.PixelsPerCm != 5 {
		t.Errorf("recomputed PixelsPerCm = %v, want 5", moved.PixelsPerCm)
	}
	if cal.PixelsPerCm != 10 {
		t.Error("WithPoint2() modified its receiver")
	}

	longer, _ := cal.WithRealDistance(20)
	if longer.PixelsPerCm != 5 {
		t.Errorf("WithRealDistance PixelsPerCm = %v, want 5", longer.PixelsPerCm)
	}
	shifted, _ := cal.WithPoint1(Pt(50, 0))
	if shifted.PixelsPerCm != 5 {
		t.Errorf("WithPoint1 PixelsPerCm = %v, want 5", shifted.PixelsPerCm)
	}
}

func TestCalibrateErrors(t *testing.T) {
	tests := []struct {
		name   string
		p1, p2 Point
		d      float64
	}{
		{"zero distance", Pt(0, 0), Pt(10, 0), 0},
		{"negative distance", Pt(0, 0), Pt(10, 0), -2},
		{"NaN distance", Pt(0, 0), Pt(10, 0), math.NaN()},
		{"infinite distance", Pt(0, 0), Pt(10, 0), math.Inf(1)},
		{"coincident points", Pt(4, 4), Pt(4, 4), 5},
		{"NaN point", Pt(math.NaN(), 0), Pt(4, 4), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calibrate(tt.p1, tt.p2, tt.d)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrGeometry) {
				t.Errorf("errors.Is(err, ErrGeometry) = false for %v", err)
			}
			var ge *GeometryError
			if !errors.As(err, &ge) || ge.Op != "calibrate" {
				t.Errorf("expected *GeometryError with Op calibrate, got %#v", err)
			}
		})
	}
}

func TestCalibrationValidateStale(t *testing.T) {
	cal := CalibrationData{Point1: Pt(0, 0), Point2: Pt(30, 40), RealDistanceCm: 5, PixelsPerCm: 3}
	if err := cal.Validate(); err == nil {
		t.Error("expected stale scale to be rejected")
	}
}
