package geom

import "fmt"

// IntPoint is an integer position, typically in device pixels.
type IntPoint struct {
	X, Y int32
}

// IntSize is an integer extent.
type IntSize struct {
	Width, Height int32
}

// IsEmpty reports whether either dimension is zero or negative.
func (s IntSize) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Area returns Width*Height, or zero for empty sizes.
func (s IntSize) Area() int64 {
	if s.IsEmpty() {
		return 0
	}
	return int64(s.Width) * int64(s.Height)
}

// IntRect is an integer box. Max is exclusive.
type IntRect struct {
	Min, Max IntPoint
}

// NewIntRect creates an integer rect from origin and size.
func NewIntRect(x, y, w, h int32) IntRect {
	return IntRect{Min: IntPoint{X: x, Y: y}, Max: IntPoint{X: x + w, Y: y + h}}
}

// IntRectFromSize creates a rect at the origin with the given size.
func IntRectFromSize(s IntSize) IntRect {
	return IntRect{Max: IntPoint{X: s.Width, Y: s.Height}}
}

// Width returns the horizontal extent.
func (r IntRect) Width() int32 { return r.Max.X - r.Min.X }

// Height returns the vertical extent.
func (r IntRect) Height() int32 { return r.Max.Y - r.Min.Y }

// Size returns the extent of r.
func (r IntRect) Size() IntSize { return IntSize{Width: r.Width(), Height: r.Height()} }

// IsEmpty reports whether r has no area.
func (r IntRect) IsEmpty() bool {
	return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y
}

// Intersection returns the overlap of r and o, false when they do not overlap.
func (r IntRect) Intersection(o IntRect) (IntRect, bool) {
	out := IntRect{
		Min: IntPoint{X: max(r.Min.X, o.Min.X), Y: max(r.Min.Y, o.Min.Y)},
		Max: IntPoint{X: min(r.Max.X, o.Max.X), Y: min(r.Max.Y, o.Max.Y)},
	}
	if out.IsEmpty() {
		return IntRect{}, false
	}
	return out, true
}

// Union returns the smallest rect containing both. Empty operands are ignored.
func (r IntRect) Union(o IntRect) IntRect {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	return IntRect{
		Min: IntPoint{X: min(r.Min.X, o.Min.X), Y: min(r.Min.Y, o.Min.Y)},
		Max: IntPoint{X: max(r.Max.X, o.Max.X), Y: max(r.Max.Y, o.Max.Y)},
	}
}

// Translate moves r by (dx, dy).
func (r IntRect) Translate(dx, dy int32) IntRect {
	return IntRect{
		Min: IntPoint{X: r.Min.X + dx, Y: r.Min.Y + dy},
		Max: IntPoint{X: r.Max.X + dx, Y: r.Max.Y + dy},
	}
}

// ToRect converts r to float coordinates.
func (r IntRect) ToRect() Rect {
	return Rect{
		Min: Point{X: float32(r.Min.X), Y: float32(r.Min.Y)},
		Max: Point{X: float32(r.Max.X), Y: float32(r.Max.Y)},
	}
}

// String returns a compact representation of r.
func (r IntRect) String() string {
	return fmt.Sprintf("[%d,%d %d,%d]", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}
