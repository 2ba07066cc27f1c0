package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
)

// Grayscale converts an image to luminance, written into all three color
// channels of a fresh RGBA buffer. Alpha is preserved.
//
// Luminance uses ITU-R BT.601 weights: 0.299*R + 0.587*G + 0.114*B, rounded
// to the nearest integer.
func Grayscale(src image.Image) *image.RGBA {
	dst := ToRGBA(src)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
			for x := 0; x < w*4; x += 4 {
				lum := 0.299*float64(row[x]) + 0.587*float64(row[x+1]) + 0.114*float64(row[x+2])
				v := clampByte(math.Round(lum))
				row[x], row[x+1], row[x+2] = v, v, v
			}
		}
	})
	return dst
}

// GaussianKernel returns a normalized one-dimensional Gaussian kernel of
// radius ceil(3*sigma). The full 2D kernel is the outer product of this
// kernel with itself. A non-positive sigma yields the identity kernel [1].
func GaussianKernel(sigma float64) []float64 {
	if sigma <= 0 || math.IsNaN(sigma) {
		return []float64{1}
	}
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// GaussianBlur convolves the RGB channels with a Gaussian of the given sigma.
//
// Pixels closer than the kernel radius to any border are copied unchanged.
// A non-positive sigma returns an unchanged copy.
func GaussianBlur(src image.Image, sigma float64) *image.RGBA {
	in := ToRGBA(src)
	kernel := GaussianKernel(sigma)
	radius := len(kernel) / 2
	w, h := in.Bounds().Dx(), in.Bounds().Dy()
	if radius == 0 || w <= 2*radius || h <= 2*radius {
		return in
	}

	// Horizontal pass over interior columns of every row. The 2D kernel is
	// separable, so a vertical pass over this gives the full product kernel.
	horiz := make([]float64, w*h*3)
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := radius; x < w-radius; x++ {
				var r, g, b float64
				for k := -radius; k <= radius; k++ {
					i := y*in.Stride + (x+k)*4
					kv := kernel[k+radius]
					r += kv * float64(in.Pix[i])
					g += kv * float64(in.Pix[i+1])
					b += kv * float64(in.Pix[i+2])
				}
				o := (y*w + x) * 3
				horiz[o], horiz[o+1], horiz[o+2] = r, g, b
			}
		}
	})

	dst := ToRGBA(in)
	parallel.Line(h-2*radius, func(start, end int) {
		for y := start + radius; y < end+radius; y++ {
			for x := radius; x < w-radius; x++ {
				var r, g, b float64
				for k := -radius; k <= radius; k++ {
					o := ((y+k)*w + x) * 3
					kv := kernel[k+radius]
					r += kv * horiz[o]
					g += kv * horiz[o+1]
					b += kv * horiz[o+2]
				}
				i := y*dst.Stride + x*4
				dst.Pix[i] = clampByte(math.Round(r))
				dst.Pix[i+1] = clampByte(math.Round(g))
				dst.Pix[i+2] = clampByte(math.Round(b))
			}
		}
	})
	return dst
}

// AdjustContrast stretches the RGB channels around mid-gray:
// v' = clamp((v-128)*factor + 128, 0, 255).
func AdjustContrast(src image.Image, factor float64) *image.RGBA {
	dst := ToRGBA(src)
	if factor == 1 {
		return dst
	}
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()

	var lut [256]uint8
	for v := range lut {
		lut[v] = clampByte(math.Round((float64(v)-128)*factor + 128))
	}

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
			for x := 0; x < w*4; x += 4 {
				row[x], row[x+1], row[x+2] = lut[row[x]], lut[row[x+1]], lut[row[x+2]]
			}
		}
	})
	return dst
}

// AdaptiveThreshold binarizes a grayscale image against its local mean.
//
// Each pixel is compared with the mean of the square window of half-width
// blockSize around it, clipped at the image borders. The output is 255 where
// v > mean - c and 0 elsewhere, written to RGB with alpha 255. Only the red
// channel is read, so the input is expected to be grayscale.
//
// Window sums come from a summed-area table, so the cost per pixel does not
// depend on blockSize. A non-positive blockSize skips binarization and
// returns an unchanged copy.
func AdaptiveThreshold(src image.Image, blockSize int, c float64) *image.RGBA {
	in := ToRGBA(src)
	if blockSize <= 0 {
		return in
	}
	w, h := in.Bounds().Dx(), in.Bounds().Dy()

	// integral[(y+1)*(w+1)+(x+1)] is the sum of all pixels above and left of
	// (x,y), inclusive.
	stride := w + 1
	integral := make([]int64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(in.Pix[y*in.Stride+x*4])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			y0 := maxInt(0, y-blockSize)
			y1 := minInt(h-1, y+blockSize)
			for x := 0; x < w; x++ {
				x0 := maxInt(0, x-blockSize)
				x1 := minInt(w-1, x+blockSize)
				sum := integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] -
					integral[(y1+1)*stride+x0] + integral[y0*stride+x0]
				count := (x1 - x0 + 1) * (y1 - y0 + 1)
				mean := float64(sum) / float64(count)

				var v uint8
				if float64(in.Pix[y*in.Stride+x*4]) > mean-c {
					v = 255
				}
				i := y*dst.Stride + x*4
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = v, v, v, 255
			}
		}
	})
	return dst
}

// Preprocess runs grayscale, blur, contrast and adaptive threshold in order,
// using the preprocessing fields of opts.
func Preprocess(src image.Image, opts EdgeOptions) *image.RGBA {
	out := Grayscale(src)
	out = GaussianBlur(out, opts.BlurSigma)
	out = AdjustContrast(out, opts.ContrastFactor)
	return AdaptiveThreshold(out, opts.BlockSize, opts.C)
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
