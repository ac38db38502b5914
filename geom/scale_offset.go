package geom

// ScaleOffset is a 2D transform limited to per-axis scale followed by a
// translation. It is the fast path for mapping between spaces that share a
// coordinate system.
type ScaleOffset struct {
	Scale  Vector
	Offset Vector
}

// IdentityScaleOffset returns the identity mapping.
func IdentityScaleOffset() ScaleOffset {
	return ScaleOffset{Scale: Vector{X: 1, Y: 1}}
}

// ScaleOffsetFromOffset returns a pure translation.
func ScaleOffsetFromOffset(v Vector) ScaleOffset {
	return ScaleOffset{Scale: Vector{X: 1, Y: 1}, Offset: v}
}

// ScaleOffsetFromScale returns a pure scale.
func ScaleOffsetFromScale(s Vector) ScaleOffset {
	return ScaleOffset{Scale: s}
}

// IsIdentity reports whether s maps every point to itself.
func (s ScaleOffset) IsIdentity() bool {
	return s.Scale.X == 1 && s.Scale.Y == 1 && s.Offset.X == 0 && s.Offset.Y == 0
}

// Inverse returns the mapping that undoes s. Zero scales yield a
// non-finite result; callers check IsInvertible first.
func (s ScaleOffset) Inverse() ScaleOffset {
	return ScaleOffset{
		Scale:  Vector{X: 1 / s.Scale.X, Y: 1 / s.Scale.Y},
		Offset: Vector{X: -s.Offset.X / s.Scale.X, Y: -s.Offset.Y / s.Scale.Y},
	}
}

// IsInvertible reports whether both scales are non-zero.
func (s ScaleOffset) IsInvertible() bool {
	return s.Scale.X != 0 && s.Scale.Y != 0
}

// Then returns the mapping that applies s first and then o.
func (s ScaleOffset) Then(o ScaleOffset) ScaleOffset {
	return ScaleOffset{
		Scale: Vector{X: s.Scale.X * o.Scale.X, Y: s.Scale.Y * o.Scale.Y},
		Offset: Vector{
			X: s.Offset.X*o.Scale.X + o.Offset.X,
			Y: s.Offset.Y*o.Scale.Y + o.Offset.Y,
		},
	}
}

// MapPoint applies s to p.
func (s ScaleOffset) MapPoint(p Point) Point {
	return Point{X: p.X*s.Scale.X + s.Offset.X, Y: p.Y*s.Scale.Y + s.Offset.Y}
}

// UnmapPoint applies the inverse of s to p.
func (s ScaleOffset) UnmapPoint(p Point) Point {
	return Point{X: (p.X - s.Offset.X) / s.Scale.X, Y: (p.Y - s.Offset.Y) / s.Scale.Y}
}

// MapRect applies s to r. Negative scales flip the rect, so the result is
// normalized to keep Min below Max.
func (s ScaleOffset) MapRect(r Rect) Rect {
	return normalized(s.MapPoint(r.Min), s.MapPoint(r.Max))
}

// UnmapRect applies the inverse of s to r.
func (s ScaleOffset) UnmapRect(r Rect) Rect {
	return normalized(s.UnmapPoint(r.Min), s.UnmapPoint(r.Max))
}

// ToTransform converts s to a full transform.
func (s ScaleOffset) ToTransform() Transform {
	return Scale(s.Scale.X, s.Scale.Y).Then(Translation(s.Offset.X, s.Offset.Y))
}

// GPUBlock returns the scale and offset packed as four floats.
func (s ScaleOffset) GPUBlock() [4]float32 {
	return [4]float32{s.Scale.X, s.Scale.Y, s.Offset.X, s.Offset.Y}
}

func normalized(a, b Point) Rect {
	return Rect{
		Min: Point{X: min(a.X, b.X), Y: min(a.Y, b.Y)},
		Max: Point{X: max(a.X, b.X), Y: max(a.Y, b.Y)},
	}
}
