package geom

import (
	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"
)

// Transform is a 4x4 matrix acting on column vectors (x, y, z, w).
//
// Elements are stored row-major as in [f32.Mat4], so the 2D translation
// lives in M[3] and M[7] and the projective row is M[12..15].
type Transform struct {
	M f32.Mat4
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{M: f32.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}}
}

// Translation returns a 2D translation.
func Translation(x, y float32) Transform {
	t := Identity()
	t.M[3] = x
	t.M[7] = y
	return t
}

// Scale returns a 2D scale.
func Scale(sx, sy float32) Transform {
	t := Identity()
	t.M[0] = sx
	t.M[5] = sy
	return t
}

// Rotation returns a rotation by angle radians around the z axis.
func Rotation(angle float32) Transform {
	s, c := math32.Sin(angle), math32.Cos(angle)
	t := Identity()
	t.M[0], t.M[1] = c, -s
	t.M[4], t.M[5] = s, c
	return t
}

// Then returns the transform applying t first and then o.
func (t Transform) Then(o Transform) Transform {
	return Transform{M: mul(o.M, t.M)}
}

func mul(a, b f32.Mat4) f32.Mat4 {
	var out f32.Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[r*4+k] * b[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// IsIdentity reports whether t is exactly the identity.
func (t Transform) IsIdentity() bool {
	return t == Identity()
}

// Is2D reports whether t leaves the z axis alone.
func (t Transform) Is2D() bool {
	m := &t.M
	return m[2] == 0 && m[6] == 0 && m[8] == 0 && m[9] == 0 &&
		m[10] == 1 && m[11] == 0 && m[14] == 0
}

// HasPerspective reports whether the projective row is non-trivial.
func (t Transform) HasPerspective() bool {
	m := &t.M
	return m[12] != 0 || m[13] != 0 || m[15] != 1
}

// Is2DScaleTranslation reports whether t is a 2D per-axis scale plus
// translation, with no rotation, skew or projection.
func (t Transform) Is2DScaleTranslation() bool {
	return t.Is2D() && !t.HasPerspective() && t.M[1] == 0 && t.M[4] == 0
}

// IsAxisAligned2D reports whether t maps axis-aligned rects to axis-aligned
// rects: a scale-translation optionally combined with a multiple of 90
// degrees of rotation.
func (t Transform) IsAxisAligned2D() bool {
	if !t.Is2D() || t.HasPerspective() {
		return false
	}
	m := &t.M
	return (approxEq(m[1], 0) && approxEq(m[4], 0)) ||
		(approxEq(m[0], 0) && approxEq(m[5], 0))
}

// As2DScaleOffset extracts the scale-offset form of t. The boolean is false
// when t is not a 2D scale-translation.
func (t Transform) As2DScaleOffset() (ScaleOffset, bool) {
	if !t.Is2DScaleTranslation() {
		return ScaleOffset{}, false
	}
	return ScaleOffset{
		Scale:  Vector{X: t.M[0], Y: t.M[5]},
		Offset: Vector{X: t.M[3], Y: t.M[7]},
	}, true
}

// Determinant returns the determinant of the 4x4 matrix.
func (t Transform) Determinant() float32 {
	inv := cofactors(&t.M)
	m := &t.M
	return m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
}

// IsInvertible reports whether t has a usable inverse.
func (t Transform) IsInvertible() bool {
	d := t.Determinant()
	return d != 0 && !math32.IsNaN(d) && !math32.IsInf(d, 0)
}

// Inverse returns the inverse of t. The boolean is false for singular
// matrices.
func (t Transform) Inverse() (Transform, bool) {
	inv := cofactors(&t.M)
	m := &t.M
	det := m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
	if det == 0 || math32.IsNaN(det) || math32.IsInf(det, 0) {
		return Transform{}, false
	}
	invDet := 1 / det
	for i := range inv {
		inv[i] *= invDet
	}
	return Transform{M: inv}, true
}

// cofactors returns the adjugate of m (the inverse before division by the
// determinant).
func cofactors(m *f32.Mat4) f32.Mat4 {
	var inv f32.Mat4
	inv[0] = m[5]*m[10]*m[15] - m[5]*m[11]*m[14] - m[9]*m[6]*m[15] +
		m[9]*m[7]*m[14] + m[13]*m[6]*m[11] - m[13]*m[7]*m[10]
	inv[4] = -m[4]*m[10]*m[15] + m[4]*m[11]*m[14] + m[8]*m[6]*m[15] -
		m[8]*m[7]*m[14] - m[12]*m[6]*m[11] + m[12]*m[7]*m[10]
	inv[8] = m[4]*m[9]*m[15] - m[4]*m[11]*m[13] - m[8]*m[5]*m[15] +
		m[8]*m[7]*m[13] + m[12]*m[5]*m[11] - m[12]*m[7]*m[9]
	inv[12] = -m[4]*m[9]*m[14] + m[4]*m[10]*m[13] + m[8]*m[5]*m[14] -
		m[8]*m[6]*m[13] - m[12]*m[5]*m[10] + m[12]*m[6]*m[9]
	inv[1] = -m[1]*m[10]*m[15] + m[1]*m[11]*m[14] + m[9]*m[2]*m[15] -
		m[9]*m[3]*m[14] - m[13]*m[2]*m[11] + m[13]*m[3]*m[10]
	inv[5] = m[0]*m[10]*m[15] - m[0]*m[11]*m[14] - m[8]*m[2]*m[15] +
		m[8]*m[3]*m[14] + m[12]*m[2]*m[11] - m[12]*m[3]*m[10]
	inv[9] = -m[0]*m[9]*m[15] + m[0]*m[11]*m[13] + m[8]*m[1]*m[15] -
		m[8]*m[3]*m[13] - m[12]*m[1]*m[11] + m[12]*m[3]*m[9]
	inv[13] = m[0]*m[9]*m[14] - m[0]*m[10]*m[13] - m[8]*m[1]*m[14] +
		m[8]*m[2]*m[13] + m[12]*m[1]*m[10] - m[12]*m[2]*m[9]
	inv[2] = m[1]*m[6]*m[15] - m[1]*m[7]*m[14] - m[5]*m[2]*m[15] +
		m[5]*m[3]*m[14] + m[13]*m[2]*m[7] - m[13]*m[3]*m[6]
	inv[6] = -m[0]*m[6]*m[15] + m[0]*m[7]*m[14] + m[4]*m[2]*m[15] -
		m[4]*m[3]*m[14] - m[12]*m[2]*m[7] + m[12]*m[3]*m[6]
	inv[10] = m[0]*m[5]*m[15] - m[0]*m[7]*m[13] - m[4]*m[1]*m[15] +
		m[4]*m[3]*m[13] + m[12]*m[1]*m[7] - m[12]*m[3]*m[5]
	inv[14] = -m[0]*m[5]*m[14] + m[0]*m[6]*m[13] + m[4]*m[1]*m[14] -
		m[4]*m[2]*m[13] - m[12]*m[1]*m[6] + m[12]*m[2]*m[5]
	inv[3] = -m[1]*m[6]*m[11] + m[1]*m[7]*m[10] + m[5]*m[2]*m[11] -
		m[5]*m[3]*m[10] - m[9]*m[2]*m[7] + m[9]*m[3]*m[6]
	inv[7] = m[0]*m[6]*m[11] - m[0]*m[7]*m[10] - m[4]*m[2]*m[11] +
		m[4]*m[3]*m[10] + m[8]*m[2]*m[7] - m[8]*m[3]*m[6]
	inv[11] = -m[0]*m[5]*m[11] + m[0]*m[7]*m[9] + m[4]*m[1]*m[11] -
		m[4]*m[3]*m[9] - m[8]*m[1]*m[7] + m[8]*m[3]*m[5]
	inv[15] = m[0]*m[5]*m[10] - m[0]*m[6]*m[9] - m[4]*m[1]*m[10] +
		m[4]*m[2]*m[9] + m[8]*m[1]*m[6] - m[8]*m[2]*m[5]
	return inv
}

// TransformPoint maps a point on the z=0 plane. The boolean is false when
// the point projects behind the viewer.
func (t Transform) TransformPoint(p Point) (Point, bool) {
	m := &t.M
	x := m[0]*p.X + m[1]*p.Y + m[3]
	y := m[4]*p.X + m[5]*p.Y + m[7]
	w := m[12]*p.X + m[13]*p.Y + m[15]
	if w <= 0 || math32.IsNaN(w) {
		return Point{}, false
	}
	return Point{X: x / w, Y: y / w}, true
}

// OuterTransformedRect returns the bounding box of r after mapping its
// corners through t. The boolean is false if any corner fails to project.
func (t Transform) OuterTransformedRect(r Rect) (Rect, bool) {
	var out Rect
	for i, c := range r.Corners() {
		p, ok := t.TransformPoint(c)
		if !ok {
			return Rect{}, false
		}
		if i == 0 {
			out = Rect{Min: p, Max: p}
			continue
		}
		out.Min.X = min(out.Min.X, p.X)
		out.Min.Y = min(out.Min.Y, p.Y)
		out.Max.X = max(out.Max.X, p.X)
		out.Max.Y = max(out.Max.Y, p.Y)
	}
	return out, true
}

// GPUBlocks returns the matrix in column-major order for upload.
func (t Transform) GPUBlocks() [16]float32 {
	var out [16]float32
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[c*4+r] = t.M[r*4+c]
		}
	}
	return out
}
