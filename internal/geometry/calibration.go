package geometry

import "math"

// CalibrationData relates a reference segment in pixel space to its known
// real-world length. PixelsPerCm always equals
// Point1.Distance(Point2) / RealDistanceCm.
type CalibrationData struct {
	Point1         Point   `json:"point1"`
	Point2         Point   `json:"point2"`
	RealDistanceCm float64 `json:"real_distance_cm"`
	PixelsPerCm    float64 `json:"pixels_per_cm"`
}

// Calibrate computes the pixels-per-centimetre factor for a reference
// segment of known length.
//
// Parameters:
//   - p1, p2: Endpoints of the reference segment in pixel coordinates.
//   - realDistanceCm: The segment's real length in centimetres. Must be > 0.
//
// Returns:
//   - CalibrationData: The inputs plus the derived PixelsPerCm.
//   - error: *GeometryError when the distance is not a positive finite
//     number, or when the points coincide (the scale would be zero).
func Calibrate(p1, p2 Point, realDistanceCm float64) (CalibrationData, error) {
	if math.IsNaN(realDistanceCm) || math.IsInf(realDistanceCm, 0) || realDistanceCm <= 0 {
		return CalibrationData{}, NewGeometryError("calibrate", "real distance must be a positive number of centimetres, got %v", realDistanceCm)
	}
	if !p1.IsFinite() || !p2.IsFinite() {
		return CalibrationData{}, NewGeometryError("calibrate", "reference points must be finite")
	}
	pixelDistance := p1.Distance(p2)
	if pixelDistance == 0 {
		return CalibrationData{}, NewGeometryError("calibrate", "reference points coincide at (%g,%g)", p1.X, p1.Y)
	}
	return CalibrationData{
		Point1:         p1,
		Point2:         p2,
		RealDistanceCm: realDistanceCm,
		PixelsPerCm:    pixelDistance / realDistanceCm,
	}, nil
}

// PixelDistance returns the length of the reference segment in pixels.
func (c CalibrationData) PixelDistance() float64 {
	return c.Point1.Distance(c.Point2)
}

// WithPoint1 returns a recomputed calibration with a new first point.
func (c CalibrationData) WithPoint1(p Point) (CalibrationData, error) {
	return Calibrate(p, c.Point2, c.RealDistanceCm)
}

// WithPoint2 returns a recomputed calibration with a new second point.
func (c CalibrationData) WithPoint2(p Point) (CalibrationData, error) {
	return Calibrate(c.Point1, p, c.RealDistanceCm)
}

// WithRealDistance returns a recomputed calibration with a new real length.
func (c CalibrationData) WithRealDistance(cm float64) (CalibrationData, error) {
	return Calibrate(c.Point1, c.Point2, cm)
}

// ToCm converts a pixel length to centimetres.
func (c CalibrationData) ToCm(pixels float64) float64 {
	return pixels / c.PixelsPerCm
}

// Validate re-checks the invariant of a calibration that was built outside
// Calibrate, e.g. decoded from JSON.
func (c CalibrationData) Validate() error {
	fresh, err := Calibrate(c.Point1, c.Point2, c.RealDistanceCm)
	if err != nil {
		return err
	}
	if c.PixelsPerCm != 0 && math.Abs(fresh.PixelsPerCm-c.PixelsPerCm) > 1e-9*fresh.PixelsPerCm {
		return NewGeometryError("calibrate", "stale pixels_per_cm %g, expected %g", c.PixelsPerCm, fresh.PixelsPerCm)
	}
	return nil
}
