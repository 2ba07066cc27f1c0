package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/ironsheep/pattern-tools-mcp/internal/geometry"
)

// strokeWidthPx is the outline width on rendered pages.
const strokeWidthPx = 2.0

// RenderPNG rasterizes the laid-out page at 96 DPI.
//
// The page is white with an optional 1 cm / 5 cm grid, a border, the
// pattern outlines and optional labels. Outlines are filled as one
// rectangle per edge, extended by half the stroke width at both ends, with
// a consistent winding so overlaps merge under the non-zero rule.
func RenderPNG(layout LayoutResult, opts Options) (*image.RGBA, error) {
	stroke, err := opts.strokeColor()
	if err != nil {
		return nil, err
	}

	w := int(math.Round(layout.Page.WidthPx()))
	h := int(math.Round(layout.Page.HeightPx()))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid page size %dx%d", w, h)
	}
	page := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(page, page.Bounds(), image.White, image.Point{}, draw.Src)

	if opts.Grid {
		drawGrid(page, mustHex(minorGridColor), mustHex(majorGridColor))
	}
	drawFrame(page, mustHex(borderColor))

	z := vector.NewRasterizer(w, h)
	for _, p := range layout.Polygons {
		strokePolygon(z, p, strokeWidthPx)
	}
	z.Draw(page, page.Bounds(), image.NewUniform(toRGBA(stroke)), image.Point{})

	if opts.Labels {
		ink := toRGBA(mustHex(textColor))
		cx := w / 2
		drawText(page, Title, cx, 40, ink, true)
		if opts.CustomerName != "" {
			drawText(page, "Customer: "+opts.CustomerName, cx, 70, ink, true)
		}
		footerY := h - 40
		if opts.Date != "" {
			drawText(page, "Date: "+opts.Date, 20, footerY, ink, false)
		}
		note := scaleNote(layout)
		drawText(page, note, w-20-font.MeasureString(basicfont.Face7x13, note).Ceil(), footerY, ink, false)
		drawText(page, dimensionLabel(layout),
			int(math.Round((layout.Placed.MinX+layout.Placed.MaxX)/2)), int(math.Round(layout.Placed.MaxY))+20, ink, true)
	}
	return page, nil
}

// WritePNG renders the page and encodes it as PNG.
func WritePNG(w io.Writer, layout LayoutResult, opts Options) error {
	page, err := RenderPNG(layout, opts)
	if err != nil {
		return err
	}
	if err := png.Encode(w, page); err != nil {
		return fmt.Errorf("failed to encode page: %w", err)
	}
	return nil
}

// SavePNG renders the page and saves it to path. The format follows the
// file extension.
func SavePNG(path string, layout LayoutResult, opts Options) error {
	page, err := RenderPNG(layout, opts)
	if err != nil {
		return err
	}
	if err := imaging.Save(page, path); err != nil {
		return fmt.Errorf("failed to save page: %w", err)
	}
	return nil
}

// strokePolygon adds one rectangle per closed-polygon edge to z.
func strokePolygon(z *vector.Rasterizer, p geometry.Polygon, width float64) {
	if len(p) == 1 {
		strokeSegment(z, p[0], p[0], width)
		return
	}
	for i := range p {
		strokeSegment(z, p[i], p[(i+1)%len(p)], width)
	}
}

func strokeSegment(z *vector.Rasterizer, a, b geometry.Point, width float64) {
	half := width / 2
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		dx, dy, length = 1, 0, 1
	}
	ux, uy := dx/length*half, dy/length*half
	nx, ny := -uy, ux

	a = geometry.Point{X: a.X - ux, Y: a.Y - uy}
	b = geometry.Point{X: b.X + ux, Y: b.Y + uy}

	z.MoveTo(float32(a.X+nx), float32(a.Y+ny))
	z.LineTo(float32(b.X+nx), float32(b.Y+ny))
	z.LineTo(float32(b.X-nx), float32(b.Y-ny))
	z.LineTo(float32(a.X-nx), float32(a.Y-ny))
	z.ClosePath()
}

// drawGrid draws a 1 px line every centimetre and a heavier one every 5 cm.
func drawGrid(img *image.RGBA, minor, major colorful.Color) {
	b := img.Bounds()
	minorC, majorC := toRGBA(minor), toRGBA(major)
	for i := 0; ; i++ {
		pos := int(math.Round(float64(i) * pixelsPerCm))
		if pos >= b.Dx() && pos >= b.Dy() {
			break
		}
		c := minorC
		if i%5 == 0 {
			c = majorC
		}
		if pos < b.Dx() {
			for y := 0; y < b.Dy(); y++ {
				img.SetRGBA(pos, y, c)
			}
		}
		if pos < b.Dy() {
			for x := 0; x < b.Dx(); x++ {
				img.SetRGBA(x, pos, c)
			}
		}
	}
}

// drawFrame draws a 2 px border around the page.
func drawFrame(img *image.RGBA, c colorful.Color) {
	b := img.Bounds()
	rc := toRGBA(c)
	for t := 0; t < 2; t++ {
		for x := 0; x < b.Dx(); x++ {
			img.SetRGBA(x, t, rc)
			img.SetRGBA(x, b.Dy()-1-t, rc)
		}
		for y := 0; y < b.Dy(); y++ {
			img.SetRGBA(t, y, rc)
			img.SetRGBA(b.Dx()-1-t, y, rc)
		}
	}
}

// drawText draws s with its baseline at y. When centered, x is the middle
// of the text, otherwise its left edge.
func drawText(img *image.RGBA, s string, x, y int, c color.RGBA, centered bool) {
	face := basicfont.Face7x13
	if centered {
		x -= font.MeasureString(face, s).Ceil() / 2
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// mustHex parses one of the package's color constants.
func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}
