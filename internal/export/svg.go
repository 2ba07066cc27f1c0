package export

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/pattern-tools-mcp/internal/geometry"
)

// Default page styling.
const (
	DefaultStrokeColor = "#dc2626"
	minorGridColor     = "#e5e7eb"
	majorGridColor     = "#9ca3af"
	borderColor        = "#374151"
	textColor          = "#1f2937"
)

// Title printed at the top of every exported page.
const Title = "VECTORIZED PATTERN - SCALE 1:1"

// Options controls the decoration shared by the SVG and PNG writers.
type Options struct {
	// CustomerName is printed under the title when Labels is set.
	CustomerName string `json:"customer_name"`

	// Date is printed in the footer when Labels is set. Callers format it.
	Date string `json:"date"`

	// StrokeColor is a hex color for pattern outlines. Empty uses DefaultStrokeColor.
	StrokeColor string `json:"stroke_color"`

	// Grid draws a 1 cm grid with a heavier line every 5 cm.
	Grid bool `json:"grid"`

	// Labels draws the title block, footer and dimensions.
	Labels bool `json:"labels"`
}

// DefaultOptions returns grid and labels enabled with the default stroke.
func DefaultOptions() Options {
	return Options{StrokeColor: DefaultStrokeColor, Grid: true, Labels: true}
}

// strokeColor parses the configured stroke color.
func (o Options) strokeColor() (colorful.Color, error) {
	s := o.StrokeColor
	if s == "" {
		s = DefaultStrokeColor
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid stroke color %q: %w", s, err)
	}
	return c, nil
}

// Validate reports an unparseable stroke color.
func (o Options) Validate() error {
	_, err := o.strokeColor()
	return err
}

// PathData returns an SVG path "M x y L x y ... Z" for a closed polygon.
func PathData(p geometry.Polygon) string {
	var b strings.Builder
	for i, pt := range p {
		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(formatCoord(pt.X))
		b.WriteByte(' ')
		b.WriteString(formatCoord(pt.Y))
	}
	if len(p) > 0 {
		b.WriteString(" Z")
	}
	return b.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// WriteSVG writes the laid-out pattern as an A4 SVG document.
func WriteSVG(w io.Writer, layout LayoutResult, opts Options) error {
	stroke, err := opts.strokeColor()
	if err != nil {
		return err
	}

	pw := formatCoord(layout.Page.WidthPx())
	ph := formatCoord(layout.Page.HeightPx())
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	fmt.Fprintf(bw, "<svg xmlns=\"http://www.w3.org/2000/svg\" width=\"%smm\" height=\"%smm\" viewBox=\"0 0 %s %s\">\n",
		strconv.FormatFloat(layout.Page.WidthMM, 'f', -1, 64),
		strconv.FormatFloat(layout.Page.HeightMM, 'f', -1, 64), pw, ph)
	fmt.Fprintf(bw, "<rect width=\"100%%\" height=\"100%%\" fill=\"#ffffff\"/>\n")

	if opts.Grid {
		minor := formatCoord(pixelsPerCm)
		major := formatCoord(pixelsPerCm * 5)
		fmt.Fprintf(bw, "<defs>\n")
		fmt.Fprintf(bw, "<pattern id=\"grid\" width=\"%s\" height=\"%s\" patternUnits=\"userSpaceOnUse\">", minor, minor)
		fmt.Fprintf(bw, "<path d=\"M %s 0 L 0 0 0 %s\" fill=\"none\" stroke=\"%s\" stroke-width=\"0.5\"/></pattern>\n", minor, minor, minorGridColor)
		fmt.Fprintf(bw, "<pattern id=\"majorgrid\" width=\"%s\" height=\"%s\" patternUnits=\"userSpaceOnUse\">", major, major)
		fmt.Fprintf(bw, "<path d=\"M %s 0 L 0 0 0 %s\" fill=\"none\" stroke=\"%s\" stroke-width=\"1\"/></pattern>\n", major, major, majorGridColor)
		fmt.Fprintf(bw, "</defs>\n")
		fmt.Fprintf(bw, "<rect width=\"100%%\" height=\"100%%\" fill=\"url(#grid)\"/>\n")
		fmt.Fprintf(bw, "<rect width=\"100%%\" height=\"100%%\" fill=\"url(#majorgrid)\"/>\n")
	}

	fmt.Fprintf(bw, "<rect x=\"0\" y=\"0\" width=\"%s\" height=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"2\"/>\n", pw, ph, borderColor)

	if opts.Labels {
		cx := formatCoord(layout.Page.WidthPx() / 2)
		fmt.Fprintf(bw, "<text x=\"%s\" y=\"40\" text-anchor=\"middle\" font-family=\"sans-serif\" font-size=\"24\" font-weight=\"bold\" fill=\"%s\">%s</text>\n",
			cx, textColor, escape(Title))
		if opts.CustomerName != "" {
			fmt.Fprintf(bw, "<text x=\"%s\" y=\"70\" text-anchor=\"middle\" font-family=\"sans-serif\" font-size=\"18\" fill=\"%s\">Customer: %s</text>\n",
				cx, textColor, escape(opts.CustomerName))
		}
	}

	for _, p := range layout.Polygons {
		if len(p) < 2 {
			continue
		}
		fmt.Fprintf(bw, "<path d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"2\" stroke-linecap=\"round\" stroke-linejoin=\"round\"/>\n",
			PathData(p), stroke.Hex())
	}

	if opts.Labels {
		footerY := formatCoord(layout.Page.HeightPx() - 40)
		if opts.Date != "" {
			fmt.Fprintf(bw, "<text x=\"20\" y=\"%s\" font-family=\"sans-serif\" font-size=\"14\" fill=\"%s\">Date: %s</text>\n",
				footerY, textColor, escape(opts.Date))
		}
		fmt.Fprintf(bw, "<text x=\"%s\" y=\"%s\" text-anchor=\"end\" font-family=\"sans-serif\" font-size=\"14\" fill=\"%s\">%s</text>\n",
			formatCoord(layout.Page.WidthPx()-20), footerY, textColor, escape(scaleNote(layout)))
		fmt.Fprintf(bw, "<text x=\"%s\" y=\"%s\" text-anchor=\"middle\" font-family=\"sans-serif\" font-size=\"12\" fill=\"%s\">%s</text>\n",
			formatCoord((layout.Placed.MinX+layout.Placed.MaxX)/2), formatCoord(layout.Placed.MaxY+20), textColor, escape(dimensionLabel(layout)))
	}

	fmt.Fprintf(bw, "</svg>\n")
	return bw.Flush()
}

// scaleNote describes how page size relates to the photographed pattern.
func scaleNote(layout LayoutResult) string {
	if layout.Calibrated {
		return "Scale 1:1"
	}
	return "Uncalibrated: 1 image px = 1 page px"
}

// dimensionLabel renders the printed pattern size, e.g. "12.3 x 4.5 cm".
func dimensionLabel(layout LayoutResult) string {
	return fmt.Sprintf("%.1f x %.1f cm", layout.WidthCm, layout.HeightCm)
}
