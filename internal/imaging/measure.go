package imaging

import (
	"math"

	"github.com/ironsheep/pattern-tools-mcp/internal/geometry"
)

// DistanceResult describes a measured segment in pixels and, when a
// calibration is available, in centimetres.
type DistanceResult struct {
	DistancePixels float64 `json:"distance_pixels"`
	DeltaX         float64 `json:"delta_x"`
	DeltaY         float64 `json:"delta_y"`
	AngleDegrees   float64 `json:"angle_degrees"`

	// DistanceCm is nil when no calibration was given.
	DistanceCm *float64 `json:"distance_cm,omitempty"`
}

// MeasureDistance measures the segment p1-p2.
//
// Parameters:
//   - cal: Optional calibration. When nil only pixel values are reported.
//   - p1, p2: Segment endpoints in pixel coordinates.
//
// The angle is 0 for a segment pointing right and 90 for one pointing down.
// Pixel values are rounded to 2 decimals, the angle to 1 and centimetres to 2.
func MeasureDistance(cal *geometry.CalibrationData, p1, p2 geometry.Point) *DistanceResult {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	distance := p1.Distance(p2)
	angle := math.Atan2(dy, dx) * 180 / math.Pi

	result := &DistanceResult{
		DistancePixels: round(distance, 2),
		DeltaX:         dx,
		DeltaY:         dy,
		AngleDegrees:   round(angle, 1),
	}
	if cal != nil && cal.PixelsPerCm > 0 {
		cm := round(cal.ToCm(distance), 2)
		result.DistanceCm = &cm
	}
	return result
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
