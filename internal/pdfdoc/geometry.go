package pdfdoc

import (
	"errors"
	"fmt"
)

// ErrGeometry is returned for crop boxes or rectangles that fall outside their page or
// image, or whose corners are inverted. Geometry is never clamped or corrected.
var ErrGeometry = errors.New("invalid geometry")

// GeometryError carries the operation and the offending coordinates.
type GeometryError struct {
	// Op is the operation that rejected the geometry (e.g., "Crop", "ValidateRect").
	Op string

	// Details describes the violated bound.
	Details string
}

// Error implements the error interface.
func (e *GeometryError) Error() string {
	return fmt.Sprintf("pdfdoc: %s: %v: %s", e.Op, ErrGeometry, e.Details)
}

// Unwrap returns ErrGeometry so callers can match with errors.Is.
func (e *GeometryError) Unwrap() error {
	return ErrGeometry
}

// NewGeometryError creates a GeometryError with a formatted detail message.
func NewGeometryError(op, format string, args ...interface{}) *GeometryError {
	return &GeometryError{Op: op, Details: fmt.Sprintf(format, args...)}
}

// Point is a position in page space: points, origin at the top-left corner.
type Point struct {
	X float64
	Y float64
}

// Size is a width/height pair in points.
type Size struct {
	Width  float64
	Height float64
}

// Rect is an axis-aligned rectangle in page space (points, origin top-left).
type Rect struct {
	X0, Y0 float64
	X1, Y1 float64
}

// RectAt builds the rectangle with top-left corner p and the given size.
func RectAt(p Point, s Size) Rect {
	return Rect{X0: p.X, Y0: p.Y, X1: p.X + s.Width, Y1: p.Y + s.Height}
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Inverted reports whether a corner pair is swapped.
func (r Rect) Inverted() bool { return r.X0 > r.X1 || r.Y0 > r.Y1 }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f, %.2f)", r.X0, r.Y0, r.X1, r.Y1)
}

// CheckBounds verifies that r is well-formed and lies within a width x height page.
func (r Rect) CheckBounds(width, height float64) error {
	const op = "CheckBounds"

	if r.Inverted() {
		return NewGeometryError(op, "rectangle %s has inverted corners", r)
	}
	if r.X0 < 0 || r.X1 > width {
		return NewGeometryError(op, "rectangle %s exceeds page width %.2f", r, width)
	}
	if r.Y0 < 0 || r.Y1 > height {
		return NewGeometryError(op, "rectangle %s exceeds page height %.2f", r, height)
	}
	return nil
}
