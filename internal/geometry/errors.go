package geometry

import (
	"errors"
	"fmt"
)

// ErrGeometry matches every *GeometryError via errors.Is.
var ErrGeometry = errors.New("geometry error")

// GeometryError reports degenerate or insufficient points given to the
// rectifier or the calibrator.
type GeometryError struct {
	// Op is the operation that rejected its input ("rectify", "calibrate", ...).
	Op string

	// Reason describes what was wrong with the points.
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Is reports whether target is ErrGeometry.
func (e *GeometryError) Is(target error) bool {
	return target == ErrGeometry
}

// NewGeometryError builds a GeometryError with a formatted reason.
func NewGeometryError(op, format string, args ...interface{}) *GeometryError {
	return &GeometryError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
