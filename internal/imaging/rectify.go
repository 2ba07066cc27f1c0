package imaging

import (
	"errors"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/pattern-tools-mcp/internal/geometry"
)

// Default size of a rectified pattern when the caller does not choose one.
const (
	DefaultRectifiedWidth  = 800
	DefaultRectifiedHeight = 600
)

// minQuadArea is the smallest corner quadrilateral, in square pixels, that
// still yields a usable homography.
const minQuadArea = 1.0

// Homography is a 3x3 projective transform in row-major order, normalized
// so that the last element is 1.
type Homography [9]float64

// ComputeHomography solves for the projective transform that maps each
// src[i] onto dst[i].
//
// With h33 fixed to 1, every correspondence (x,y) -> (u,v) contributes two
// linear equations:
//
//	h11*x + h12*y + h13 - h31*x*u - h32*y*u = u
//	h21*x + h22*y + h23 - h31*x*v - h32*y*v = v
//
// The resulting 8x8 system is solved with LU decomposition. A singular
// system (three collinear points on either side) is a *geometry.GeometryError.
func ComputeHomography(src, dst [4]geometry.Point) (Homography, error) {
	A := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		A.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		A.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var h mat.VecDense
	if err := h.SolveVec(A, b); err != nil && !wellConditioned(err) {
		return Homography{}, geometry.NewGeometryError("rectify", "corner points do not define a homography: %v", err)
	}

	var out Homography
	for i := 0; i < 8; i++ {
		out[i] = h.AtVec(i)
	}
	out[8] = 1
	if !out.finite() {
		return Homography{}, geometry.NewGeometryError("rectify", "homography has non-finite coefficients")
	}
	return out, nil
}

// wellConditioned reports whether a gonum solve error is only a condition
// number warning on a matrix that is still invertible.
func wellConditioned(err error) bool {
	var cond mat.Condition
	if errors.As(err, &cond) {
		return !math.IsInf(float64(cond), 0)
	}
	return false
}

// Inverse returns the transform that undoes h.
func (h Homography) Inverse() (Homography, error) {
	m := mat.NewDense(3, 3, h[:])
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil && !wellConditioned(err) {
		return Homography{}, geometry.NewGeometryError("rectify", "homography is not invertible: %v", err)
	}

	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = inv.At(r, c)
		}
	}
	if out[8] != 0 {
		s := out[8]
		for i := range out {
			out[i] /= s
		}
	}
	if !out.finite() {
		return Homography{}, geometry.NewGeometryError("rectify", "homography inverse has non-finite coefficients")
	}
	return out, nil
}

// Apply maps a point through the projective transform. Points on the line
// at infinity map to non-finite coordinates.
func (h Homography) Apply(p geometry.Point) geometry.Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	return geometry.Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

func (h Homography) finite() bool {
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Rectify warps the quadrilateral outlined by corners onto an upright
// width x height rectangle.
//
// Parameters:
//   - src: Source photo. It is never modified.
//   - corners: Exactly four points in TL, TR, BR, BL order (either winding
//     works, as long as the order matches the destination rectangle).
//   - width, height: Output size in pixels. Both must be positive.
//
// Returns:
//   - *image.RGBA: The rectified image.
//   - error: *geometry.GeometryError for a wrong corner count, a degenerate
//     quadrilateral, a non-positive output size or a singular solve.
//
// Each output pixel is mapped through the inverse homography and sampled
// bilinearly from src, with source coordinates clamped to the raster.
func Rectify(src image.Image, corners []geometry.Point, width, height int) (*image.RGBA, error) {
	if len(corners) != 4 {
		return nil, geometry.NewGeometryError("rectify", "need exactly 4 corner points, got %d", len(corners))
	}
	if width <= 0 || height <= 0 {
		return nil, geometry.NewGeometryError("rectify", "output size %dx%d must be positive", width, height)
	}
	if err := checkQuad(corners); err != nil {
		return nil, err
	}

	var quad [4]geometry.Point
	copy(quad[:], corners)
	rect := [4]geometry.Point{
		{X: 0, Y: 0},
		{X: float64(width), Y: 0},
		{X: float64(width), Y: float64(height)},
		{X: 0, Y: float64(height)},
	}

	forward, err := ComputeHomography(quad, rect)
	if err != nil {
		return nil, err
	}
	inverse, err := forward.Inverse()
	if err != nil {
		return nil, err
	}

	in := ToRGBA(src)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				sp := inverse.Apply(geometry.Point{X: float64(x), Y: float64(y)})
				o := y*dst.Stride + x*4
				bilinearSample(in, sp.X, sp.Y, dst.Pix[o:o+4])
			}
		}
	})
	return dst, nil
}

// checkQuad rejects corner sets that cannot define a perspective mapping.
func checkQuad(corners []geometry.Point) error {
	for i, c := range corners {
		if !c.IsFinite() {
			return geometry.NewGeometryError("rectify", "corner %d is not finite", i)
		}
	}
	for i := 0; i < 4; i++ {
		a, b, c := corners[i], corners[(i+1)%4], corners[(i+2)%4]
		if math.Abs(geometry.TriangleArea(a, b, c)) < 1e-9 {
			return geometry.NewGeometryError("rectify", "corners %d, %d and %d are collinear", i, (i+1)%4, (i+2)%4)
		}
	}
	if area := geometry.Polygon(corners).Area(); area < minQuadArea {
		return geometry.NewGeometryError("rectify", "corner quadrilateral area %.3f is too small", area)
	}
	return nil
}

// bilinearSample writes the RGBA value at fractional (sx, sy) into out.
// Coordinates outside the raster are clamped to the nearest edge pixel.
func bilinearSample(img *image.RGBA, sx, sy float64, out []uint8) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if math.IsNaN(sx) || math.IsNaN(sy) {
		sx, sy = 0, 0
	}
	sx = math.Max(0, math.Min(float64(w-1), sx))
	sy = math.Max(0, math.Min(float64(h-1), sy))

	x0 := int(math.Floor(sx))
	y0 := int(math.Floor(sy))
	x1 := minInt(x0+1, w-1)
	y1 := minInt(y0+1, h-1)
	fx := sx - float64(x0)
	fy := sy - float64(y0)

	i00 := y0*img.Stride + x0*4
	i10 := y0*img.Stride + x1*4
	i01 := y1*img.Stride + x0*4
	i11 := y1*img.Stride + x1*4
	for c := 0; c < 4; c++ {
		top := float64(img.Pix[i00+c])*(1-fx) + float64(img.Pix[i10+c])*fx
		bottom := float64(img.Pix[i01+c])*(1-fx) + float64(img.Pix[i11+c])*fx
		out[c] = clampByte(math.Floor(top*(1-fy) + bottom*fy + 0.5))
	}
}
