// Package pipeline composes the raster and vector stages into a single
// photo-to-polygons run.
//
// The stages run strictly left to right, each on a fresh buffer produced by
// the previous one:
//
//  1. crop to the region of interest (optional)
//  2. perspective rectification (when four corners are given)
//  3. preprocessing and Canny edge detection
//  4. Moore contour tracing
//  5. moving-average smoothing (optional)
//  6. Douglas-Peucker simplification
//  7. minimum point filter
//
// Nothing is cached between runs. Cancellation is cooperative: the context
// is checked between stages and inside the parallel simplifier.
package pipeline
