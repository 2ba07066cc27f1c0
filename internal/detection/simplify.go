package detection

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/pattern-tools-mcp/internal/geometry"
)

// DefaultEpsilon is the simplification tolerance in pixels.
const DefaultEpsilon = 3.0

// Simplify reduces a polygon with the Douglas-Peucker algorithm.
//
// The point sequence is treated as an open chain from the first point to the
// last; both endpoints are always kept. A point is kept when it lies more
// than epsilon pixels from the chord of the range it belongs to. When the
// chord endpoints coincide, the distance to that endpoint is used instead.
//
// Ranges are processed from an explicit stack, so long traces cannot
// exhaust the goroutine stack. The result is a new polygon whose points are
// a subsequence of p. Inputs with 2 or fewer points are copied unchanged.
// Negative and NaN epsilons are treated as 0.
//
// Simplify is idempotent: Simplify(Simplify(p, e), e) equals Simplify(p, e).
func Simplify(p geometry.Polygon, epsilon float64) geometry.Polygon {
	n := len(p)
	if n <= 2 {
		return p.Clone()
	}
	if epsilon < 0 || math.IsNaN(epsilon) {
		epsilon = 0
	}

	keep := make([]bool, n)
	keep[0], keep[n-1] = true, true

	type span struct{ first, last int }
	stack := []span{{0, n - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.last-s.first < 2 {
			continue
		}

		maxDist := -1.0
		index := s.first
		for i := s.first + 1; i < s.last; i++ {
			d := geometry.PerpendicularDistance(p[i], p[s.first], p[s.last])
			if d > maxDist {
				maxDist = d
				index = i
			}
		}

		if maxDist > epsilon {
			keep[index] = true
			stack = append(stack, span{s.first, index}, span{index, s.last})
		}
	}

	out := make(geometry.Polygon, 0, n)
	for i, k := range keep {
		if k {
			out = append(out, p[i])
		}
	}
	return out
}

// SimplifyAll simplifies every polygon concurrently, bounded by GOMAXPROCS.
// Output order matches input order. It returns ctx.Err() if the context is
// cancelled before all polygons are done.
func SimplifyAll(ctx context.Context, polys []geometry.Polygon, epsilon float64) ([]geometry.Polygon, error) {
	out := make([]geometry.Polygon, len(polys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, poly := range polys {
		i, poly := i, poly
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Simplify(poly, epsilon)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
