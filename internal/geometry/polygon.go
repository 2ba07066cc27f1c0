package geometry

import "math"

// Polygon is an ordered, implicitly closed sequence of points.
type Polygon []Point

// SignedArea returns the shoelace area of the polygon. With Y pointing down,
// a clockwise polygon (as seen on screen) has a positive signed area.
// Polygons with fewer than 3 points have zero area.
func (p Polygon) SignedArea() float64 {
	n := len(p)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	return sum / 2
}

// Area returns the absolute shoelace area of the polygon.
func (p Polygon) Area() float64 {
	return math.Abs(p.SignedArea())
}

// IsClockwise reports whether the polygon winds clockwise in image
// coordinates. Degenerate polygons (zero area) report false.
func (p Polygon) IsClockwise() bool {
	return p.SignedArea() > 0
}

// Reversed returns a copy of the polygon with its point order reversed.
func (p Polygon) Reversed() Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[len(p)-1-i] = pt
	}
	return out
}

// Clockwise returns the polygon in clockwise order, reversing a copy if
// needed. Zero-area polygons are returned as a copy in their original order.
func (p Polygon) Clockwise() Polygon {
	if p.SignedArea() < 0 {
		return p.Reversed()
	}
	return p.Clone()
}

// Clone returns an independent copy of the polygon.
func (p Polygon) Clone() Polygon {
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Perimeter returns the length of the closed outline.
func (p Polygon) Perimeter() float64 {
	n := len(p)
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += p[i].Distance(p[(i+1)%n])
	}
	return sum
}

// Bounds returns the bounding box of the polygon. An empty polygon yields
// the zero Bounds.
func (p Polygon) Bounds() Bounds {
	if len(p) == 0 {
		return Bounds{}
	}
	b := Bounds{MinX: p[0].X, MinY: p[0].Y, MaxX: p[0].X, MaxY: p[0].Y}
	for _, pt := range p[1:] {
		b.MinX = math.Min(b.MinX, pt.X)
		b.MinY = math.Min(b.MinY, pt.Y)
		b.MaxX = math.Max(b.MaxX, pt.X)
		b.MaxY = math.Max(b.MaxY, pt.Y)
	}
	return b
}

// BoundsOf returns the union bounding box of all non-empty polygons.
// The second result is false when no polygon has any points.
func BoundsOf(polys []Polygon) (Bounds, bool) {
	var (
		out   Bounds
		found bool
	)
	for _, poly := range polys {
		if len(poly) == 0 {
			continue
		}
		if !found {
			out = poly.Bounds()
			found = true
			continue
		}
		out = out.Union(poly.Bounds())
	}
	return out, found
}

// Smooth applies a circular moving average of the given window size.
//
// Each output point is the mean of the window centred on the input point,
// wrapping around the closed outline. Polygons shorter than the window, and
// windows smaller than 2, are returned as a copy.
func (p Polygon) Smooth(window int) Polygon {
	n := len(p)
	if window < 2 || n < window {
		return p.Clone()
	}
	half := window / 2
	out := make(Polygon, n)
	for i := 0; i < n; i++ {
		var sx, sy float64
		count := 0
		for j := -half; j <= half; j++ {
			idx := ((i+j)%n + n) % n
			sx += p[idx].X
			sy += p[idx].Y
			count++
		}
		out[i] = Point{X: sx / float64(count), Y: sy / float64(count)}
	}
	return out
}

// PerpendicularDistance returns the distance from pt to the infinite line
// through a and b. When a and b coincide it falls back to the Euclidean
// distance from pt to a.
func PerpendicularDistance(pt, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if dx == 0 && dy == 0 {
		return pt.Distance(a)
	}
	return math.Abs(dy*pt.X-dx*pt.Y+b.X*a.Y-b.Y*a.X) / math.Hypot(dx, dy)
}

// SegmentDistance returns the distance from pt to the closed segment a-b.
func SegmentDistance(pt, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return pt.Distance(a)
	}
	t := ((pt.X-a.X)*dx + (pt.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return pt.Distance(Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// TriangleArea returns the signed area of triangle abc.
func TriangleArea(a, b, c Point) float64 {
	return ((b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y)) / 2
}
