// Package detection turns binary edge masks into simplified polygons.
//
// TraceContours walks the outer boundary of every 8-connected edge component
// with Moore neighborhood tracing and returns one polygon per component. Simplify reduces each
// polygon with the Douglas-Peucker algorithm so that straight pattern edges
// collapse to a handful of vertices.
//
// # Coordinate System
//
// Polygon points are pixel centers in the mask's coordinate system:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// Traced polygons are normalized to clockwise order in these coordinates,
// which is a positive geometry.Polygon.SignedArea.
//
// # Empty Results
//
// A blank mask produces an empty slice, never a placeholder shape. Callers
// that need at least one polygon report *EmptyResultError so that the user
// can retry with different thresholds.
//
// # Limitations
//
// Tracing works best on thin, closed edges as produced by the Canny detector
// in package imaging. Edges with gaps produce open traces that double back
// on themselves; the tracer keeps them if they are long enough.
package detection
