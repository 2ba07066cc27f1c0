package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
)

// Default Canny and preprocessing parameters, tuned for phone photos of
// paper patterns on a contrasting background.
const (
	DefaultLowThreshold   = 50
	DefaultHighThreshold  = 150
	DefaultBlurSigma      = 1.0
	DefaultContrastFactor = 1.5
	DefaultBlockSize      = 15
	DefaultThresholdC     = 10
)

// EdgeOptions controls preprocessing and Canny thresholds.
//
// Zero values for BlurSigma and BlockSize skip the blur and the adaptive
// threshold respectively. A ContrastFactor of 1 leaves contrast unchanged.
type EdgeOptions struct {
	// LowThreshold is the hysteresis weak-edge threshold on gradient magnitude.
	// Weak pixels must also have non-zero magnitude, so 0 behaves like the
	// smallest positive threshold and never promotes suppressed pixels.
	LowThreshold float64 `json:"low_threshold"`

	// HighThreshold is the hysteresis strong-edge threshold. Must be >= LowThreshold.
	HighThreshold float64 `json:"high_threshold"`

	// BlurSigma is the Gaussian standard deviation in pixels.
	BlurSigma float64 `json:"blur_sigma"`

	// ContrastFactor stretches gray levels around 128 before thresholding.
	ContrastFactor float64 `json:"contrast_factor"`

	// BlockSize is the half-width of the adaptive threshold window.
	BlockSize int `json:"block_size"`

	// C is subtracted from the local mean before comparison.
	C float64 `json:"c"`
}

// DefaultEdgeOptions returns the parameters used when a caller supplies none.
func DefaultEdgeOptions() EdgeOptions {
	return EdgeOptions{
		LowThreshold:   DefaultLowThreshold,
		HighThreshold:  DefaultHighThreshold,
		BlurSigma:      DefaultBlurSigma,
		ContrastFactor: DefaultContrastFactor,
		BlockSize:      DefaultBlockSize,
		C:              DefaultThresholdC,
	}
}

// Validate checks that the thresholds are ordered and every value is a
// finite, non-negative number.
func (o EdgeOptions) Validate() error {
	for name, v := range map[string]float64{
		"low_threshold":   o.LowThreshold,
		"high_threshold":  o.HighThreshold,
		"blur_sigma":      o.BlurSigma,
		"contrast_factor": o.ContrastFactor,
		"c":               o.C,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid edge options: %s must be finite", name)
		}
	}
	if o.LowThreshold < 0 || o.HighThreshold < 0 {
		return fmt.Errorf("invalid edge options: thresholds must be >= 0")
	}
	if o.LowThreshold > o.HighThreshold {
		return fmt.Errorf("invalid edge options: low threshold %.1f exceeds high threshold %.1f",
			o.LowThreshold, o.HighThreshold)
	}
	if o.BlurSigma < 0 || o.ContrastFactor < 0 || o.BlockSize < 0 {
		return fmt.Errorf("invalid edge options: blur_sigma, contrast_factor and block_size must be >= 0")
	}
	return nil
}

// GradientField holds per-pixel Sobel gradients in row-major order.
type GradientField struct {
	Width  int
	Height int

	// Magnitude is sqrt(gx² + gy²).
	Magnitude []float64

	// Direction is atan2(gy, gx) in radians, with Y pointing down.
	Direction []float64
}

// ComputeGradients applies the 3x3 Sobel operators to the red channel of a
// grayscale image. The outermost 1-pixel ring is left at zero magnitude.
func ComputeGradients(gray *image.RGBA) GradientField {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	g := GradientField{
		Width:     w,
		Height:    h,
		Magnitude: make([]float64, w*h),
		Direction: make([]float64, w*h),
	}
	if w < 3 || h < 3 {
		return g
	}

	px := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x*4])
	}

	parallel.Line(h-2, func(start, end int) {
		for y := start + 1; y < end+1; y++ {
			for x := 1; x < w-1; x++ {
				gx := -px(x-1, y-1) + px(x+1, y-1) -
					2*px(x-1, y) + 2*px(x+1, y) -
					px(x-1, y+1) + px(x+1, y+1)
				gy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) +
					px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)
				i := y*w + x
				g.Magnitude[i] = math.Sqrt(gx*gx + gy*gy)
				g.Direction[i] = math.Atan2(gy, gx)
			}
		}
	})
	return g
}

// suppressionStep returns the unit step along the gradient for a direction
// in radians, quantized to 0, 45, 90 or 135 degrees.
func suppressionStep(theta float64) (dx, dy int) {
	angle := theta * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	if angle >= 180 {
		angle -= 180
	}

	switch {
	case angle < 22.5 || angle >= 157.5:
		return 1, 0
	case angle < 67.5:
		return 1, 1
	case angle < 112.5:
		return 0, 1
	default:
		return -1, 1
	}
}

// SuppressNonMaxima thins gradient ridges to one pixel.
//
// A pixel survives when its magnitude is >= the neighbor one step back along
// the gradient and strictly > the neighbor one step forward. This departs
// from the textbook rule of >= both neighbors: on the plateau of a step edge
// two adjacent pixels carry the same magnitude, and the symmetric rule keeps
// both, leaving a 2-pixel ridge. The asymmetric comparison keeps exactly one.
//
// The returned field shares Direction with g and has a new Magnitude slice.
func SuppressNonMaxima(g GradientField) GradientField {
	out := GradientField{
		Width:     g.Width,
		Height:    g.Height,
		Magnitude: make([]float64, len(g.Magnitude)),
		Direction: g.Direction,
	}
	w, h := g.Width, g.Height
	if w < 3 || h < 3 {
		return out
	}

	parallel.Line(h-2, func(start, end int) {
		for y := start + 1; y < end+1; y++ {
			for x := 1; x < w-1; x++ {
				i := y*w + x
				mag := g.Magnitude[i]
				if mag == 0 {
					continue
				}
				dx, dy := suppressionStep(g.Direction[i])
				back := g.Magnitude[(y-dy)*w+(x-dx)]
				fwd := g.Magnitude[(y+dy)*w+(x+dx)]
				if mag >= back && mag > fwd {
					out.Magnitude[i] = mag
				}
			}
		}
	})
	return out
}

// Hysteresis classifies suppressed magnitudes into a binary edge mask.
//
// Pixels >= high are strong edges. Pixels >= low with non-zero magnitude
// are weak edges and are kept only when one of their 8 neighbors is strong.
// The non-zero guard matters when low is 0: every suppressed pixel has
// magnitude 0 and would otherwise be promoted next to a strong edge. Promotion is a single
// pass against the strong set; promoted pixels do not promote others.
// Kept pixels are 255 in RGB, everything else 0, alpha is always 255.
func Hysteresis(g GradientField, low, high float64) *image.RGBA {
	w, h := g.Width, g.Height
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	strong := make([]bool, w*h)
	for i, m := range g.Magnitude {
		strong[i] = m >= high
	}

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				keep := strong[i]
				if !keep && g.Magnitude[i] >= low && g.Magnitude[i] > 0 {
				neighbors:
					for ny := y - 1; ny <= y+1; ny++ {
						for nx := x - 1; nx <= x+1; nx++ {
							if nx < 0 || ny < 0 || nx >= w || ny >= h || (nx == x && ny == y) {
								continue
							}
							if strong[ny*w+nx] {
								keep = true
								break neighbors
							}
						}
					}
				}
				var v uint8
				if keep {
					v = 255
				}
				o := y*dst.Stride + x*4
				dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2], dst.Pix[o+3] = v, v, v, 255
			}
		}
	})
	return dst
}

// DetectEdges runs the preprocessor and the Canny edge detector.
//
// Parameters:
//   - src: Source image (color or grayscale). It is never modified.
//   - opts: Preprocessing and hysteresis parameters. See DefaultEdgeOptions.
//
// Returns:
//   - *image.RGBA: Binary edge mask, same size as src. Edge pixels are 255.
//   - error: Non-nil if opts fails validation.
//
// # Algorithm
//
//  1. Preprocess: grayscale, Gaussian blur, contrast stretch, adaptive
//     threshold.
//
//  2. Gradients: 3x3 Sobel operators.
//     magnitude = sqrt(Gx² + Gy²)
//     direction = atan2(Gy, Gx)
//
//  3. Non-maximum suppression: keep only local maxima along the gradient,
//     quantized to 0, 45, 90 or 135 degrees.
//
//  4. Hysteresis: strong pixels (>= high) are kept, weak pixels (>= low)
//     are kept when 8-connected to a strong pixel.
//
// On a binarized input every boundary has magnitude 1020 (4*255), so any
// high threshold up to that value keeps the full boundary.
func DetectEdges(src image.Image, opts EdgeOptions) (*image.RGBA, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	pre := Preprocess(src, opts)
	grad := ComputeGradients(pre)
	thin := SuppressNonMaxima(grad)
	return Hysteresis(thin, opts.LowThreshold, opts.HighThreshold), nil
}
