// Package geometry provides the value types shared by every pipeline stage.
//
// Points are pixel-space coordinates with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Polygons are ordered point
// sequences that are implicitly closed: the last point connects to the first.
//
// # Winding Order
//
// Polygons produced by the contour tracer are normalized to clockwise order
// as seen on screen (Y down), which is a positive SignedArea. Every consumer
// in this module (simplifier, layout, exporters) accepts either winding.
//
// # Calibration
//
// CalibrationData converts pixel distances to centimetres. It is recomputed
// whenever one of its inputs changes and never holds a stale scale factor.
package geometry
