// Package export lays traced patterns out on a printable page and writes
// them as SVG, DXF or PNG.
//
// Layout computes an explicit geometry.Transform from pattern pixels to
// page pixels at 96 DPI (PixelsPerMM = 3.78). With a calibration the page
// prints at 1:1 real-world scale. Every writer works from the same
// LayoutResult, so the three formats always agree.
package export
