package geom

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
)

// Point is a position in some 2D coordinate space.
type Point struct {
	X, Y float32
}

// Pt is a shorthand for Point{X: x, Y: y}.
func Pt(x, y float32) Point {
	return Point{X: x, Y: y}
}

// Add returns p translated by v.
func (p Point) Add(v Vector) Point {
	return Point{X: p.X + v.X, Y: p.Y + v.Y}
}

// Sub returns the vector from o to p.
func (p Point) Sub(o Point) Vector {
	return Vector{X: p.X - o.X, Y: p.Y - o.Y}
}

// Vector is a 2D displacement.
type Vector struct {
	X, Y float32
}

// Vec is a shorthand for Vector{X: x, Y: y}.
func Vec(x, y float32) Vector {
	return Vector{X: x, Y: y}
}

// Size is a 2D extent.
type Size struct {
	Width, Height float32
}

// Sz is a shorthand for Size{Width: w, Height: h}.
func Sz(w, h float32) Size {
	return Size{Width: w, Height: h}
}

// IsEmpty reports whether either dimension is zero or negative.
func (s Size) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect is an axis-aligned box given by its minimum and maximum corners.
//
// A Rect is empty when Max is not strictly greater than Min on either axis.
// Intersection tests are strict: two boxes that only share an edge do not
// intersect.
type Rect struct {
	Min, Max Point
}

// NewRect creates a rect from an origin and a size.
func NewRect(x, y, w, h float32) Rect {
	return Rect{Min: Point{X: x, Y: y}, Max: Point{X: x + w, Y: y + h}}
}

// RectFromPoints creates a rect from its two corners.
func RectFromPoints(x0, y0, x1, y1 float32) Rect {
	return Rect{Min: Point{X: x0, Y: y0}, Max: Point{X: x1, Y: y1}}
}

// RectFromOriginSize creates a rect at origin with the given size.
func RectFromOriginSize(origin Point, size Size) Rect {
	return Rect{Min: origin, Max: Point{X: origin.X + size.Width, Y: origin.Y + size.Height}}
}

// RectFromSize creates a rect at the origin with the given size.
func RectFromSize(size Size) Rect {
	return Rect{Max: Point{X: size.Width, Y: size.Height}}
}

// MaxRect returns a rect large enough to contain any practical content.
func MaxRect() Rect {
	const half = math.MaxFloat32 / 4
	return Rect{Min: Point{X: -half, Y: -half}, Max: Point{X: half, Y: half}}
}

// Width returns the horizontal extent.
func (r Rect) Width() float32 { return r.Max.X - r.Min.X }

// Height returns the vertical extent.
func (r Rect) Height() float32 { return r.Max.Y - r.Min.Y }

// Size returns the extent of r.
func (r Rect) Size() Size { return Size{Width: r.Width(), Height: r.Height()} }

// Area returns the area of r, or zero when r is empty.
func (r Rect) Area() float32 {
	if r.IsEmpty() {
		return 0
	}
	return r.Width() * r.Height()
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: (r.Min.X + r.Max.X) * 0.5, Y: (r.Min.Y + r.Max.Y) * 0.5}
}

// IsEmpty reports whether r has no area. NaN coordinates count as empty.
func (r Rect) IsEmpty() bool {
	return !(r.Max.X > r.Min.X && r.Max.Y > r.Min.Y)
}

// Intersects reports whether r and o overlap with positive area.
func (r Rect) Intersects(o Rect) bool {
	return r.Min.X < o.Max.X && r.Max.X > o.Min.X &&
		r.Min.Y < o.Max.Y && r.Max.Y > o.Min.Y
}

// IntersectionUnchecked returns the overlap of r and o without checking
// whether it is empty.
func (r Rect) IntersectionUnchecked(o Rect) Rect {
	return Rect{
		Min: Point{X: max(r.Min.X, o.Min.X), Y: max(r.Min.Y, o.Min.Y)},
		Max: Point{X: min(r.Max.X, o.Max.X), Y: min(r.Max.Y, o.Max.Y)},
	}
}

// Intersection returns the overlap of r and o. The boolean is false when
// the rects do not intersect.
func (r Rect) Intersection(o Rect) (Rect, bool) {
	if !r.Intersects(o) {
		return Rect{}, false
	}
	return r.IntersectionUnchecked(o), true
}

// Union returns the smallest rect containing r and o. Empty operands are
// ignored.
func (r Rect) Union(o Rect) Rect {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	return Rect{
		Min: Point{X: min(r.Min.X, o.Min.X), Y: min(r.Min.Y, o.Min.Y)},
		Max: Point{X: max(r.Max.X, o.Max.X), Y: max(r.Max.Y, o.Max.Y)},
	}
}

// Contains reports whether p lies inside r. The max edges are exclusive.
func (r Rect) Contains(p Point) bool {
	return r.Min.X <= p.X && p.X < r.Max.X && r.Min.Y <= p.Y && p.Y < r.Max.Y
}

// ContainsBox reports whether o lies entirely inside r, edges included.
// An empty o is contained by every rect.
func (r Rect) ContainsBox(o Rect) bool {
	return o.IsEmpty() ||
		(r.Min.X <= o.Min.X && o.Max.X <= r.Max.X &&
			r.Min.Y <= o.Min.Y && o.Max.Y <= r.Max.Y)
}

// Inflate grows r by w horizontally and h vertically on each side.
func (r Rect) Inflate(w, h float32) Rect {
	return Rect{
		Min: Point{X: r.Min.X - w, Y: r.Min.Y - h},
		Max: Point{X: r.Max.X + w, Y: r.Max.Y + h},
	}
}

// Translate moves r by v.
func (r Rect) Translate(v Vector) Rect {
	return Rect{Min: r.Min.Add(v), Max: r.Max.Add(v)}
}

// Scale multiplies every coordinate by the given factors.
func (r Rect) Scale(sx, sy float32) Rect {
	return Rect{
		Min: Point{X: r.Min.X * sx, Y: r.Min.Y * sy},
		Max: Point{X: r.Max.X * sx, Y: r.Max.Y * sy},
	}
}

// RoundOut returns the smallest rect with integer coordinates containing r.
func (r Rect) RoundOut() Rect {
	return Rect{
		Min: Point{X: math32.Floor(r.Min.X), Y: math32.Floor(r.Min.Y)},
		Max: Point{X: math32.Ceil(r.Max.X), Y: math32.Ceil(r.Max.Y)},
	}
}

// Round rounds each coordinate to the nearest integer.
func (r Rect) Round() Rect {
	return Rect{
		Min: Point{X: math32.Round(r.Min.X), Y: math32.Round(r.Min.Y)},
		Max: Point{X: math32.Round(r.Max.X), Y: math32.Round(r.Max.Y)},
	}
}

// ToIntRect truncates r to integer coordinates. Callers round first.
func (r Rect) ToIntRect() IntRect {
	return IntRect{
		Min: IntPoint{X: int32(r.Min.X), Y: int32(r.Min.Y)},
		Max: IntPoint{X: int32(r.Max.X), Y: int32(r.Max.Y)},
	}
}

// Corners returns the four corners in clockwise order starting at Min.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		r.Min,
		{X: r.Max.X, Y: r.Min.Y},
		r.Max,
		{X: r.Min.X, Y: r.Max.Y},
	}
}

// String returns a compact representation of r.
func (r Rect) String() string {
	return fmt.Sprintf("[%g,%g %g,%g]", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}
