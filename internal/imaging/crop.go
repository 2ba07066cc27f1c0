package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// ImageResult is a raster encoded for transport as a base64 PNG.
type ImageResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodeImage encodes img as PNG, optionally scaled by scale first.
// A scale of 1 (or anything <= 0) keeps the original size.
func EncodeImage(img image.Image, scale float64) (*ImageResult, error) {
	out := Preview(img, scale)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &ImageResult{
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// Preview resizes img by scale using Lanczos resampling. Binary masks come
// back slightly soft; previews are for display only and never re-enter the
// pipeline.
func Preview(img image.Image, scale float64) image.Image {
	if scale == 1.0 || scale <= 0 {
		return img
	}
	w := int(float64(img.Bounds().Dx()) * scale)
	h := int(float64(img.Bounds().Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// Crop extracts the region of interest from img as a fresh RGBA buffer
// whose bounds start at (0,0).
//
// The region is given in the image's own coordinates, with Min inclusive
// and Max exclusive. It must be non-empty and lie inside the image.
func Crop(img image.Image, roi image.Rectangle) (*image.RGBA, error) {
	bounds := img.Bounds()

	if roi.Empty() {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}
	if !roi.In(bounds) {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			roi.Min.X, roi.Min.Y, roi.Max.X, roi.Max.Y,
			bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}

	return ToRGBA(imaging.Crop(img, roi)), nil
}
