package wr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/spatial"
)

func TestSceneBuilderDefaultsRoot(t *testing.T) {
	sb := NewSceneBuilder(testOutputRect(), 0)
	root := sb.AddPicture(spatial.RootNode, nil)
	id := sb.PushRect(root, spatial.RootNode, geom.NewRect(0, 0, 10, 10), red, clip.NoChain)
	scene, err := sb.Build()
	require.NoError(t, err)

	assert.Equal(t, root, scene.RootPicture)
	assert.Equal(t, float32(1), scene.DevicePixelScale, "non-positive scales fall back to 1")
	insts := scene.Store.Picture(root).List.Instances
	require.Len(t, insts, 1)
	assert.Equal(t, id, insts[0].ID)
}

func TestSceneBuilderTileCache(t *testing.T) {
	sb := NewSceneBuilder(testOutputRect(), 1)
	shared := sb.Clips().AddClipChain(clip.NoChain,
		clip.NewRectangle(spatial.RootNode, geom.NewRect(0, 0, 400, 400), clip.ModeClip))
	slice := sb.AddTileCache(3, spatial.RootNode, shared, &blue)

	tc, ok := sb.scene.TileCaches[3]
	require.True(t, ok)
	assert.Len(t, tc.SharedClips, 1)
	assert.Equal(t, &blue, tc.BackgroundColor)

	mode := sb.scene.Store.Picture(slice).RequestedCompositeMode
	require.NotNil(t, mode)
	assert.Equal(t, prim.CompositeTileCache, mode.Kind)
}

func TestSceneBuilderPushPicturePanics(t *testing.T) {
	sb := NewSceneBuilder(testOutputRect(), 1)
	root := sb.AddPicture(spatial.RootNode, nil)
	assert.Panics(t, func() {
		sb.PushPrimitive(root, spatial.RootNode, prim.Template{Kind: prim.KindPicture}, clip.NoChain)
	})
}

func TestBuiltSceneValidate(t *testing.T) {
	assert.ErrorIs(t, (&BuiltScene{}).Validate(), ErrEmptyScene)

	scene := newCachedScene(t)
	require.NoError(t, scene.Validate())

	scene.RootPicture = 99
	assert.ErrorIs(t, scene.Validate(), ErrInvalidPictureIndex)
	scene.RootPicture = 0

	scene.Store.Picture(1).SpatialNode = 42
	assert.ErrorIs(t, scene.Validate(), ErrInvalidSpatialNode)
	scene.Store.Picture(1).SpatialNode = spatial.RootNode

	delete(scene.TileCaches, 0)
	assert.ErrorIs(t, scene.Validate(), ErrInvalidPictureIndex, "a slice without its tile cache")
}

func TestBuiltSceneValidateChildPicture(t *testing.T) {
	sb := NewSceneBuilder(testOutputRect(), 1)
	root := sb.AddPicture(spatial.RootNode, nil)
	child := sb.AddPicture(spatial.RootNode, nil)
	sb.PushPicture(root, child, clip.NoChain)
	scene, err := sb.Build()
	require.NoError(t, err)

	scene.Store.Picture(root).List.Instances[0].Picture = 7
	assert.ErrorIs(t, scene.Validate(), ErrInvalidPictureIndex)
}
