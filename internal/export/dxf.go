package export

import (
	"bufio"
	"io"
	"strconv"
)

// DXFLayer is the layer every exported entity is placed on.
const DXFLayer = "PATTERN"

// WriteDXF writes the laid-out polygons as a minimal DXF ENTITIES section.
//
// Each polygon becomes one LINE entity per edge, including the closing edge
// from the last point back to the first. Coordinates are page millimetres
// (page pixels divided by PixelsPerMM).
func WriteDXF(w io.Writer, layout LayoutResult) error {
	bw := bufio.NewWriter(w)
	pair := func(code int, value string) {
		bw.WriteString(strconv.Itoa(code))
		bw.WriteByte('\n')
		bw.WriteString(value)
		bw.WriteByte('\n')
	}
	mm := func(v float64) string {
		return strconv.FormatFloat(v/PixelsPerMM, 'f', 4, 64)
	}

	pair(0, "SECTION")
	pair(2, "ENTITIES")
	for _, p := range layout.Polygons {
		if len(p) < 2 {
			continue
		}
		for i := range p {
			cur, next := p[i], p[(i+1)%len(p)]
			pair(0, "LINE")
			pair(8, DXFLayer)
			pair(10, mm(cur.X))
			pair(20, mm(cur.Y))
			pair(11, mm(next.X))
			pair(21, mm(next.Y))
		}
	}
	pair(0, "ENDSEC")
	pair(0, "EOF")
	return bw.Flush()
}
