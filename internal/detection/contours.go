package detection

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/ironsheep/pattern-tools-mcp/internal/geometry"
	"github.com/ironsheep/pattern-tools-mcp/internal/imaging"
)

// Tracing limits used by TraceContours.
const (
	// MinTracePoints is the smallest trace kept as a contour. Shorter traces
	// are speckle noise left over from edge detection.
	MinTracePoints = 20

	// MaxTracePoints caps a single trace.
	MaxTracePoints = 10000
)

// ErrEmptyResult matches every *EmptyResultError via errors.Is.
var ErrEmptyResult = errors.New("no contours found")

// EmptyResultError reports that tracing or filtering left no polygon. It is
// a normal outcome for a blank or badly thresholded photo, and callers are
// expected to suggest different thresholds.
type EmptyResultError struct {
	// Traced is the number of contours found by the tracer.
	Traced int

	// Kept is the number that survived later filtering (always 0).
	Kept int
}

func (e *EmptyResultError) Error() string {
	if e.Traced == 0 {
		return "no contours found in edge mask"
	}
	return fmt.Sprintf("no contours left after filtering (%d traced)", e.Traced)
}

// Is reports whether target is ErrEmptyResult.
func (e *EmptyResultError) Is(target error) bool {
	return target == ErrEmptyResult
}

// TraceOptions tunes the contour tracer.
type TraceOptions struct {
	// MinPoints discards traces with fewer points. Default MinTracePoints.
	MinPoints int

	// MaxPoints stops a trace once it has this many points. Default MaxTracePoints.
	MaxPoints int
}

// DefaultTraceOptions returns the limits used by TraceContours.
func DefaultTraceOptions() TraceOptions {
	return TraceOptions{MinPoints: MinTracePoints, MaxPoints: MaxTracePoints}
}

// mooreOffsets lists the 8 neighbors clockwise starting at north-west.
var mooreOffsets = [8]image.Point{
	{-1, -1}, // NW
	{0, -1},  // N
	{1, -1},  // NE
	{1, 0},   // E
	{1, 1},   // SE
	{0, 1},   // S
	{-1, 1},  // SW
	{-1, 0},  // W
}

// TraceContours extracts closed boundaries from a binary edge mask using
// the default limits. See TraceContoursWithOptions.
func TraceContours(mask image.Image) []geometry.Polygon {
	return TraceContoursWithOptions(mask, DefaultTraceOptions())
}

// TraceContoursWithOptions extracts boundaries from a binary edge mask.
//
// Parameters:
//   - mask: Edge mask where foreground pixels have red == 255.
//   - opts: Trace limits. Non-positive fields fall back to the defaults.
//
// Returns:
//   - []geometry.Polygon: One contour per 8-connected edge component, in
//     clockwise order (positive signed area with Y down), sorted by absolute
//     area, largest first. The slice is empty, never nil, when nothing
//     qualifies.
//
// # Algorithm
//
// The mask is scanned in raster order. The first unlabeled foreground pixel
// of each component is its top-left pixel, so its west and northern
// neighbors are background. The whole component is labeled with a flood
// fill, then a Moore neighborhood trace follows its outer boundary from
// that pixel:
//
//  1. Search the 8 neighbors clockwise, starting one step past the
//     backtrack direction, for the next foreground pixel.
//  2. Move there and set the backtrack direction to (found+6) mod 8.
//  3. Stop when a (pixel, backtrack) state repeats, on reaching MaxPoints,
//     or when the pixel has no foreground neighbor at all.
//
// The walk is deterministic in its state, so a repeated state means the
// boundary is closed. Points before the first occurrence of that state are
// dropped, and the loop is rotated to begin at the start pixel. Open edges
// trace out and back, which gives them zero area.
func TraceContoursWithOptions(mask image.Image, opts TraceOptions) []geometry.Polygon {
	if opts.MinPoints <= 0 {
		opts.MinPoints = MinTracePoints
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = MaxTracePoints
	}

	rgba := imaging.ToRGBA(mask)
	w, h := rgba.Bounds().Dx(), rgba.Bounds().Dy()

	foreground := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			foreground[y*w+x] = rgba.Pix[y*rgba.Stride+x*4] == 255
		}
	}
	isForeground := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && foreground[y*w+x]
	}

	labeled := make([]bool, w*h)
	contours := make([]geometry.Polygon, 0)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !foreground[y*w+x] || labeled[y*w+x] {
				continue
			}

			start := image.Pt(x, y)
			labelComponent(start, isForeground, labeled, w)
			trace := traceBoundary(start, isForeground, w, opts.MaxPoints)
			if len(trace) < opts.MinPoints {
				continue
			}
			contours = append(contours, trace.Clockwise())
		}
	}

	sort.SliceStable(contours, func(i, j int) bool {
		return contours[i].Area() > contours[j].Area()
	})
	return contours
}

// labelComponent marks every foreground pixel 8-connected to start.
func labelComponent(start image.Point, isForeground func(x, y int) bool, labeled []bool, width int) {
	labeled[start.Y*width+start.X] = true
	stack := []image.Point{start}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, off := range mooreOffsets {
			n := p.Add(off)
			if isForeground(n.X, n.Y) && !labeled[n.Y*width+n.X] {
				labeled[n.Y*width+n.X] = true
				stack = append(stack, n)
			}
		}
	}
}

// traceBoundary follows the outer boundary of the component whose top-left
// pixel is start and returns its pixels in trace order.
func traceBoundary(start image.Point, isForeground func(x, y int) bool, width, maxPoints int) geometry.Polygon {
	var trace geometry.Polygon
	seen := make(map[int]int)
	cur := start
	dir := 7 // backtrack west: the pixel left of a top-left pixel is background

	for {
		state := (cur.Y*width+cur.X)*8 + dir
		if first, ok := seen[state]; ok {
			trace = trace[first:]
			break
		}
		seen[state] = len(trace)
		trace = append(trace, geometry.Point{X: float64(cur.X), Y: float64(cur.Y)})
		if len(trace) >= maxPoints {
			break
		}

		found := false
		for i := 0; i < 8; i++ {
			d := (dir + 1 + i) % 8
			next := cur.Add(mooreOffsets[d])
			if isForeground(next.X, next.Y) {
				cur = next
				dir = (d + 6) % 8
				found = true
				break
			}
		}
		if !found {
			break
		}
	}

	return rotateTo(trace, geometry.Point{X: float64(start.X), Y: float64(start.Y)})
}

// rotateTo returns the closed loop p starting at its first occurrence of
// q, or p unchanged when q is not on it.
func rotateTo(p geometry.Polygon, q geometry.Point) geometry.Polygon {
	for i, pt := range p {
		if pt == q {
			if i == 0 {
				return p
			}
			out := make(geometry.Polygon, 0, len(p))
			out = append(out, p[i:]...)
			return append(out, p[:i]...)
		}
	}
	return p
}
