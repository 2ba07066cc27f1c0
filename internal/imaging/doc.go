// Package imaging provides the raster stages of the pattern pipeline.
//
// The package covers loading and caching photos, cropping a region of
// interest, perspective rectification, preprocessing (grayscale, blur,
// contrast, adaptive threshold) and Canny edge detection. Coordinates follow
// the usual image convention: (0,0) is the top-left pixel, X increases
// rightward and Y increases downward.
//
// # Buffers
//
// Every stage returns a freshly allocated *image.RGBA with bounds starting at
// (0,0). Inputs are never written to, so a decoded photo held in ImageCache
// can be fed to any number of pipeline runs. Grayscale intermediates keep
// R=G=B; binary masks hold 0 or 255 with alpha 255.
//
// # Parallelism
//
// Row loops are split across goroutines with bild's parallel.Line. Each
// worker writes only its own rows, so results are identical to a sequential
// run.
//
// # Error Handling
//
// Decode failures are returned as *ImageLoadError. Invalid corner sets for
// Rectify are returned as *geometry.GeometryError. Invalid options and
// crop regions are plain wrapped errors.
package imaging
