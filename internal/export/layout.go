package export

import (
	"github.com/ironsheep/pattern-tools-mcp/internal/detection"
	"github.com/ironsheep/pattern-tools-mcp/internal/geometry"
)

// PixelsPerMM is the page resolution: 96 DPI.
const PixelsPerMM = 3.78

// pixelsPerCm is the page resolution per centimetre.
const pixelsPerCm = PixelsPerMM * 10

// Page describes the printable sheet. Margins are in page pixels.
type Page struct {
	WidthMM  float64 `json:"width_mm"`
	HeightMM float64 `json:"height_mm"`

	// MarginPx is kept clear on the left, right and bottom edges.
	MarginPx float64 `json:"margin_px"`

	// HeaderPx is kept clear at the top for the title block.
	HeaderPx float64 `json:"header_px"`
}

// A4 returns a portrait A4 page with the default title block.
func A4() Page {
	return Page{WidthMM: 210, HeightMM: 297, MarginPx: 20, HeaderPx: 100}
}

// WidthPx returns the page width in page pixels.
func (p Page) WidthPx() float64 { return p.WidthMM * PixelsPerMM }

// HeightPx returns the page height in page pixels.
func (p Page) HeightPx() float64 { return p.HeightMM * PixelsPerMM }

// LayoutResult places a pattern on a page.
type LayoutResult struct {
	Page Page `json:"page"`

	// Transform maps pattern pixels to page pixels.
	Transform geometry.Transform `json:"transform"`

	// Polygons are the input polygons in page pixels.
	Polygons []geometry.Polygon `json:"-"`

	// Placed is the bounding box of Polygons on the page.
	Placed geometry.Bounds `json:"placed"`

	// WidthCm and HeightCm are the printed size of the pattern. With a
	// calibration this is the real-world size.
	WidthCm  float64 `json:"width_cm"`
	HeightCm float64 `json:"height_cm"`

	// Calibrated reports whether a calibration set the scale.
	Calibrated bool `json:"calibrated"`

	// FitsPage is false when the pattern spills outside the printable area.
	FitsPage bool `json:"fits_page"`
}

// Layout scales and centres polygons on a page.
//
// With a calibration, one real centimetre becomes one printed centimetre:
// the scale is PixelsPerMM*10 / cal.PixelsPerCm. Without one, pattern
// pixels map 1:1 to page pixels. The pattern's bounding box is moved to the
// centre of the area left by the margins and the header.
//
// Either polygon winding is accepted. An input without any points is a
// *detection.EmptyResultError; an inconsistent calibration is a
// *geometry.GeometryError.
func Layout(polys []geometry.Polygon, cal *geometry.CalibrationData, page Page) (LayoutResult, error) {
	src, ok := geometry.BoundsOf(polys)
	if !ok {
		return LayoutResult{}, &detection.EmptyResultError{}
	}

	scale := 1.0
	if cal != nil {
		if err := cal.Validate(); err != nil {
			return LayoutResult{}, err
		}
		scale = pixelsPerCm / cal.PixelsPerCm
	}

	w := src.Width() * scale
	h := src.Height() * scale
	availW := page.WidthPx() - 2*page.MarginPx
	availH := page.HeightPx() - page.HeaderPx - page.MarginPx

	tr := geometry.Transform{
		Scale:   scale,
		OffsetX: page.MarginPx + (availW-w)/2 - src.MinX*scale,
		OffsetY: page.HeaderPx + (availH-h)/2 - src.MinY*scale,
	}

	placed := make([]geometry.Polygon, 0, len(polys))
	for _, p := range polys {
		if len(p) == 0 {
			continue
		}
		placed = append(placed, tr.ApplyPolygon(p))
	}
	bounds, _ := geometry.BoundsOf(placed)

	return LayoutResult{
		Page:       page,
		Transform:  tr,
		Polygons:   placed,
		Placed:     bounds,
		WidthCm:    w / pixelsPerCm,
		HeightCm:   h / pixelsPerCm,
		Calibrated: cal != nil,
		FitsPage:   w <= availW && h <= availH,
	}, nil
}
