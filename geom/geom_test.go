package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectIntersectsIsStrict(t *testing.T) {
	a := RectFromPoints(0, 0, 10, 10)
	b := RectFromPoints(10, 0, 20, 10)

	assert.False(t, a.Intersects(b), "touching edges must not intersect")
	_, ok := a.Intersection(b)
	assert.False(t, ok)

	c := RectFromPoints(5, 5, 15, 15)
	got, ok := a.Intersection(c)
	require.True(t, ok)
	assert.Equal(t, RectFromPoints(5, 5, 10, 10), got)
}

func TestRectContainsBox(t *testing.T) {
	outer := RectFromPoints(0, 0, 100, 100)

	tests := []struct {
		name  string
		inner Rect
		want  bool
	}{
		{"equal", outer, true},
		{"inside", RectFromPoints(10, 10, 20, 20), true},
		{"crossing", RectFromPoints(90, 90, 110, 110), false},
		{"empty", Rect{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outer.ContainsBox(tt.inner))
		})
	}
}

func TestRectUnionIgnoresEmpty(t *testing.T) {
	r := RectFromPoints(1, 2, 3, 4)
	assert.Equal(t, r, Rect{}.Union(r))
	assert.Equal(t, r, r.Union(Rect{}))
	assert.Equal(t, RectFromPoints(0, 0, 3, 4), r.Union(RectFromPoints(0, 0, 1, 1)))
}

func TestRectRoundOut(t *testing.T) {
	r := RectFromPoints(0.5, -0.5, 10.1, 9.9)
	assert.Equal(t, RectFromPoints(0, -1, 11, 10), r.RoundOut())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(1), Clamp(float32(0.2), 1, 4))
	assert.Equal(t, float32(4), Clamp(float32(9), 1, 4))
	assert.Equal(t, 3, Clamp(3, 1, 4))
}

func TestScaleOffsetRoundTrip(t *testing.T) {
	s := ScaleOffset{Scale: Vec(2, -0.5), Offset: Vec(10, 20)}
	r := RectFromPoints(1, 2, 5, 8)

	mapped := s.MapRect(r)
	assert.False(t, mapped.IsEmpty(), "negative scale must be normalized")
	assert.Equal(t, r, s.UnmapRect(mapped))
	assert.Equal(t, r, s.Inverse().MapRect(mapped))
}

func TestScaleOffsetThen(t *testing.T) {
	a := ScaleOffset{Scale: Vec(2, 2), Offset: Vec(1, 1)}
	b := ScaleOffset{Scale: Vec(3, 3), Offset: Vec(5, 0)}
	p := Pt(4, 7)

	assert.Equal(t, b.MapPoint(a.MapPoint(p)), a.Then(b).MapPoint(p))
}

func TestTransformClassification(t *testing.T) {
	tests := []struct {
		name        string
		t           Transform
		scaleTrans  bool
		axisAligned bool
	}{
		{"identity", Identity(), true, true},
		{"translate scale", Scale(2, 3).Then(Translation(4, 5)), true, true},
		{"rotate 90", Rotation(1.5707964), false, true},
		{"rotate 30", Rotation(0.5235988), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.scaleTrans, tt.t.Is2DScaleTranslation())
			assert.Equal(t, tt.axisAligned, tt.t.IsAxisAligned2D())
		})
	}
}

func TestTransformInverse(t *testing.T) {
	tr := Scale(2, 4).Then(Translation(10, -6))
	inv, ok := tr.Inverse()
	require.True(t, ok)

	p, ok := inv.TransformPoint(Pt(30, 10))
	require.True(t, ok)
	assert.InDelta(t, 10, p.X, 1e-4)
	assert.InDelta(t, 4, p.Y, 1e-4)

	_, ok = Scale(0, 1).Inverse()
	assert.False(t, ok, "singular matrix must not invert")
}

func TestTransformOuterRect(t *testing.T) {
	r := RectFromPoints(0, 0, 10, 20)
	got, ok := Rotation(1.5707964).OuterTransformedRect(r)
	require.True(t, ok)
	assert.InDelta(t, -20, got.Min.X, 1e-3)
	assert.InDelta(t, 0, got.Min.Y, 1e-3)
	assert.InDelta(t, 0, got.Max.X, 1e-3)
	assert.InDelta(t, 10, got.Max.Y, 1e-3)
}

func TestAs2DScaleOffset(t *testing.T) {
	so, ok := Scale(2, 3).Then(Translation(4, 5)).As2DScaleOffset()
	require.True(t, ok)
	assert.Equal(t, ScaleOffset{Scale: Vec(2, 3), Offset: Vec(4, 5)}, so)

	_, ok = Rotation(0.3).As2DScaleOffset()
	assert.False(t, ok)
}

func TestEdgeMaskString(t *testing.T) {
	assert.Equal(t, "None", EdgeNone.String())
	assert.Equal(t, "Left|Bottom", (EdgeLeft | EdgeBottom).String())
	assert.True(t, EdgeAll.Has(EdgeTop|EdgeRight))
}
