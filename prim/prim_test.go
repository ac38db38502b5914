package prim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/spatial"
)

func TestVisibilityResetIdempotent(t *testing.T) {
	v := NewVisibility()
	v.State = Detailed(AllVisible)
	v.ClipTaskIndex = 3
	v.Flags = IsBackdrop

	v.Reset()
	first := v
	v.Reset()

	assert.Equal(t, first, v)
	assert.Equal(t, VisibilityCulled, v.State.Kind)
	assert.Equal(t, InvalidClipTaskIndex, v.ClipTaskIndex)
	assert.Zero(t, v.Flags)
	assert.False(t, v.IsVisible())
}

func TestVisibilityMask(t *testing.T) {
	var m VisibilityMask
	assert.True(t, m.IsEmpty())

	m.SetVisible(0)
	m.SetVisible(15)
	assert.Equal(t, 2, m.Count())
	assert.True(t, m.Intersects(1))
	assert.False(t, m.Intersects(2))

	var o VisibilityMask
	o.Include(m)
	assert.Equal(t, m, o)
	assert.Equal(t, MaxDirtyRegions, AllVisible.Count())

	assert.Panics(t, func() { m.SetVisible(MaxDirtyRegions) })
}

func TestVisibilityStates(t *testing.T) {
	v := NewVisibility()
	assert.Equal(t, VisibilityUnset, v.State.Kind)
	assert.False(t, v.IsVisible())

	v.State = Coarse(geom.NewRect(0, 0, 10, 10))
	assert.True(t, v.IsVisible())
	v.State = Detailed(NotVisible)
	assert.True(t, v.IsVisible())
	assert.Equal(t, "Detailed", v.State.Kind.String())
}

func TestListClusters(t *testing.T) {
	var l List
	r := geom.NewRect(0, 0, 10, 10)
	l.Add(Instance{Kind: KindRectangle}, r, spatial.RootNode, true)
	l.Add(Instance{Kind: KindRectangle}, geom.NewRect(20, 0, 10, 10), spatial.RootNode, true)
	l.Add(Instance{Kind: KindImage}, r, 1, true)
	l.Add(Instance{Kind: KindRectangle}, r, 1, false)

	require.Len(t, l.Clusters, 3)
	assert.Equal(t, 2, l.Clusters[0].Count)
	assert.Equal(t, geom.NewRect(0, 0, 30, 10), l.Clusters[0].BoundingRect)
	assert.Equal(t, 2, l.Clusters[1].First)
	assert.Equal(t, ClusterIsVisible, l.Clusters[2].Flags)
	assert.Len(t, l.ClusterInstances(&l.Clusters[0]), 2)
	assert.Equal(t, VisibilityUnset, l.Instances[3].Vis.State.Kind)
}

func TestCompositeModeInflation(t *testing.T) {
	blur := FilterMode(Filter{Kind: FilterBlur, StdDeviation: 2})
	assert.Equal(t, float32(6), blur.InflationFactor())
	r := blur.InflatePictureRect(geom.NewRect(0, 0, 10, 10), [2]float32{1, 1})
	assert.Equal(t, geom.RectFromPoints(-6, -6, 16, 16), r)

	shadows := FilterMode(Filter{Kind: FilterDropShadows, Shadows: []Shadow{
		{Offset: geom.Vec(5, 0), BlurRadius: 1},
	}})
	assert.Equal(t, float32(3), shadows.InflationFactor())
	r = shadows.InflatePictureRect(geom.NewRect(0, 0, 10, 10), [2]float32{1, 1})
	assert.Equal(t, geom.RectFromPoints(0, -3, 18, 13), r)

	assert.Zero(t, TileCacheMode(1).InflationFactor())
	assert.Equal(t, geom.NewRect(1, 2, 3, 4), BlitMode().InflatePictureRect(geom.NewRect(1, 2, 3, 4), [2]float32{1, 1}))
}

func TestPictureVisibility(t *testing.T) {
	p := Picture{RequestedCompositeMode: FilterMode(Filter{Kind: FilterOpacity, Opacity: 0})}
	assert.False(t, p.IsVisible())
	p.RequestedCompositeMode.Filter.Opacity = 0.5
	assert.True(t, p.IsVisible())
	assert.True(t, p.IsPassthrough())

	p.RasterConfig = &RasterConfig{CompositeMode: *TileCacheMode(4)}
	slice, ok := p.TileCacheSlice()
	assert.True(t, ok)
	assert.Equal(t, SliceID(4), slice)
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "ConicGradient", KindConicGradient.String())
	assert.Equal(t, "Unknown(200)", Kind(200).String())
	assert.Zero(t, KindPicture.DebugColor().A)
	assert.True(t, KindYuvImage.IsImage())
}
