package wr

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/wr/batch"
	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/resource"
	"github.com/gogpu/wr/spatial"
)

var (
	red  = gputypes.Color{R: 1, A: 1}
	blue = gputypes.Color{B: 1, A: 1}
)

func testOutputRect() geom.IntRect {
	return geom.IntRectFromSize(geom.IntSize{Width: 800, Height: 600})
}

// newCachedScene builds a pass-through root holding one picture cache
// slice with two rectangles.
func newCachedScene(t *testing.T) *BuiltScene {
	t.Helper()
	sb := NewSceneBuilder(testOutputRect(), 1)
	root := sb.AddPicture(spatial.RootNode, nil)
	slice := sb.AddTileCache(0, spatial.RootNode, clip.NoChain, nil)
	sb.PushPicture(root, slice, clip.NoChain)
	sb.PushRect(slice, spatial.RootNode, geom.NewRect(10, 10, 100, 100), red, clip.NoChain)
	sb.PushRect(slice, spatial.RootNode, geom.NewRect(300, 200, 50, 50), blue, clip.NoChain)
	sb.SetRoot(root)
	scene, err := sb.Build()
	require.NoError(t, err)
	return scene
}

func TestBuildEmptyScene(t *testing.T) {
	fb := NewFrameBuilder(WithTesting())
	_, err := fb.Build(&BuiltScene{Store: prim.NewStore()}, resource.New(), gpucache.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyScene))
	assert.Zero(t, fb.Stamp(), "a rejected scene must not advance the frame stamp")
}

func TestBuildPictureCacheFrames(t *testing.T) {
	scene := newCachedScene(t)
	fb := NewFrameBuilder(WithTesting())
	resources := resource.New()
	gpu := gpucache.New()

	first, err := fb.Build(scene, resources, gpu)
	require.NoError(t, err)
	require.Len(t, first.Passes, 2, "tiles are drawn offscreen before the main pass")
	assert.Equal(t, rendertask.PassOffScreen, first.Passes[0].Kind)
	assert.Equal(t, rendertask.PassMainFramebuffer, first.Passes[1].Kind)
	assert.NotEmpty(t, first.Passes[0].PictureCache)
	assert.False(t, first.IsNop())
	assert.True(t, first.HasTextureCacheTasks)
	assert.True(t, first.MustBeDrawn())
	assert.Equal(t, 3, first.Stats.VisiblePrimitives, "both rects and the slice picture")
	assert.Positive(t, first.Stats.DirtyTiles)
	assert.Positive(t, first.Stats.CompositeTiles)
	assert.Equal(t, gpucache.FrameID(1), first.GPUCacheFrameID)

	first.MarkRendered()
	assert.False(t, first.MustBeDrawn())

	second, err := fb.Build(scene, resources, gpu)
	require.NoError(t, err)
	assert.False(t, second.RootDrawsContent)
	assert.True(t, second.IsNop(), "unchanged content only composites cached tiles")
	assert.Zero(t, second.Stats.DirtyTiles)
	assert.Positive(t, second.Stats.CompositeTiles)
	assert.False(t, second.MustBeDrawn())
	assert.Equal(t, uint64(2), fb.Stamp())
}

func TestBuildInvalidatesChangedTiles(t *testing.T) {
	scene := newCachedScene(t)
	fb := NewFrameBuilder(WithTesting(), WithTileSizeOverride(geom.IntSize{Width: 100, Height: 100}))
	resources := resource.New()
	gpu := gpucache.New()

	_, err := fb.Build(scene, resources, gpu)
	require.NoError(t, err)

	// Recolor the first rectangle in place.
	slice := scene.Store.Picture(1)
	tmpl := scene.Store.Template(slice.List.Instances[0].Template)
	tmpl.Color = blue
	gpu.Invalidate(&tmpl.GPUHandle)

	frame, err := fb.Build(scene, resources, gpu)
	require.NoError(t, err)
	require.Len(t, frame.Passes, 2)
	assert.Positive(t, frame.Stats.DirtyTiles)
	assert.Less(t, frame.Stats.DirtyTiles, frame.Stats.CompositeTiles, "only the tiles under the change redraw")
}

func TestBuildPassThroughScene(t *testing.T) {
	sb := NewSceneBuilder(testOutputRect(), 1)
	root := sb.AddPicture(spatial.RootNode, nil)
	sb.PushRect(root, spatial.RootNode, geom.NewRect(0, 0, 100, 100), red, clip.NoChain)
	sb.PushRect(root, spatial.RootNode, geom.NewRect(50, 50, 100, 100), blue, clip.NoChain)
	sb.PushRect(root, spatial.RootNode, geom.NewRect(5000, 5000, 10, 10), blue, clip.NoChain)
	scene, err := sb.Build()
	require.NoError(t, err)

	fb := NewFrameBuilder(WithTesting())
	frame, err := fb.Build(scene, resource.New(), gpucache.New())
	require.NoError(t, err)

	assert.Equal(t, 2, frame.Stats.VisiblePrimitives, "the offscreen rect is culled")
	require.Len(t, frame.Passes, 1)
	assert.True(t, frame.RootDrawsContent)
	assert.False(t, frame.IsNop(), "the single pass draws the root's rects")
	assert.False(t, frame.MustBeDrawn())
	require.Len(t, frame.Passes[0].Main, 1)
	assert.Positive(t, frame.Stats.Batches)
	assert.Nil(t, frame.ResourceErr)

	insts := scene.Store.Picture(root).List.Instances
	assert.Equal(t, prim.VisibilityDetailed, insts[0].Vis.State.Kind)
	assert.Equal(t, prim.VisibilityCulled, insts[2].Vis.State.Kind)
}

func TestBuildResetsInvisibleClusters(t *testing.T) {
	sb := NewSceneBuilder(testOutputRect(), 1)
	const binding spatial.PropertyBindingID = 7
	node := sb.Tree().AddReferenceFrame(spatial.RootNode, spatial.ReferenceFrameInfo{
		Transform: geom.Identity(),
		Binding:   binding,
	})
	root := sb.AddPicture(spatial.RootNode, nil)
	sb.PushRect(root, node, geom.NewRect(0, 0, 100, 100), red, clip.NoChain)
	scene, err := sb.Build()
	require.NoError(t, err)

	fb := NewFrameBuilder(WithTesting())
	resources := resource.New()
	gpu := gpucache.New()

	_, err = fb.Build(scene, resources, gpu)
	require.NoError(t, err)
	inst := &scene.Store.Picture(root).List.Instances[0]
	require.Equal(t, prim.VisibilityDetailed, inst.Vis.State.Kind)

	// A singular transform makes the cluster undrawable. Its primitive
	// must not keep last frame's visible state.
	scene.Properties.SetTransform(binding, geom.Scale(0, 0))
	frame, err := fb.Build(scene, resources, gpu)
	require.NoError(t, err)
	assert.Equal(t, prim.VisibilityCulled, inst.Vis.State.Kind)
	assert.Zero(t, frame.Stats.VisiblePrimitives)
}

func TestBuildRequestsImages(t *testing.T) {
	resources := resource.New()
	require.NoError(t, resources.AddImage(1, resource.ImageTemplate{
		Descriptor: resource.ImageDescriptor{Size: geom.IntSize{Width: 4, Height: 4}, Format: gputypes.TextureFormatRGBA8Unorm},
		Data:       make([]byte, 4*4*4),
	}))

	sb := NewSceneBuilder(testOutputRect(), 1)
	root := sb.AddPicture(spatial.RootNode, nil)
	sb.PushImage(root, spatial.RootNode, geom.NewRect(0, 0, 64, 64), 1, prim.ImageData{}, clip.NoChain)
	scene, err := sb.Build()
	require.NoError(t, err)

	fb := NewFrameBuilder(WithTesting())
	frame, err := fb.Build(scene, resources, gpucache.New())
	require.NoError(t, err)
	assert.Nil(t, frame.ResourceErr)
	assert.NotEmpty(t, frame.TextureUpdates)
	assert.True(t, frame.MustBeDrawn(), "uploads into the texture cache must reach the GPU")
}

func TestBuildDebugPrimitives(t *testing.T) {
	sb := NewSceneBuilder(testOutputRect(), 1)
	root := sb.AddPicture(spatial.RootNode, nil)
	sb.PushRect(root, spatial.RootNode, geom.NewRect(0, 0, 100, 100), red, clip.NoChain)
	scene, err := sb.Build()
	require.NoError(t, err)

	fb := NewFrameBuilder(WithTesting(), WithDebugFlags(DebugPrimitives))
	frame, err := fb.Build(scene, resource.New(), gpucache.New())
	require.NoError(t, err)
	assert.Len(t, frame.DebugItems, 1)
}

func TestFrameFlags(t *testing.T) {
	f := &Frame{}
	assert.True(t, f.IsNop())
	assert.False(t, f.MustBeDrawn())

	f.Passes = []*RenderPass{{}}
	f.RootDrawsContent = true
	assert.False(t, f.IsNop(), "a single pass with root content still draws")
	f.RootDrawsContent = false

	f.Passes = []*RenderPass{{}, {}}
	f.HasTextureCacheTasks = true
	assert.False(t, f.IsNop())
	assert.True(t, f.MustBeDrawn())
	f.MarkRendered()
	assert.False(t, f.MustBeDrawn())
}

// countTasks returns the number of tasks of kind in the frame's graph.
func countTasks(frame *Frame, kind rendertask.Kind) int {
	n := 0
	for i := range frame.RenderTasks.Len() {
		if frame.RenderTasks.Get(rendertask.ID(i)).Kind == kind {
			n++
		}
	}
	return n
}

// countMainInstances returns the number of instances drawn into the
// framebuffer with a batch of kind.
func countMainInstances(frame *Frame, kind batch.Kind) int {
	n := 0
	for _, p := range frame.Passes {
		for _, c := range p.Main {
			for _, batches := range [][]*batch.Batch{c.OpaqueBatches, c.AlphaBatches} {
				for _, b := range batches {
					if b.Key.Kind == kind {
						n += len(b.Instances)
					}
				}
			}
		}
	}
	return n
}

// buildSingleRect builds a frame for a pass-through root holding one
// rectangle clipped by items.
func buildSingleRect(t *testing.T, rect geom.Rect, items ...clip.Item) *Frame {
	t.Helper()
	sb := NewSceneBuilder(testOutputRect(), 1)
	root := sb.AddPicture(spatial.RootNode, nil)
	sb.PushRect(root, spatial.RootNode, rect, red, sb.Clips().AddClipChain(clip.NoChain, items...))
	scene, err := sb.Build()
	require.NoError(t, err)

	frame, err := NewFrameBuilder(WithTesting()).Build(scene, resource.New(), gpucache.New())
	require.NoError(t, err)
	return frame
}

func TestBuildClipOutRectMasksInterior(t *testing.T) {
	// 800x600 splits into a 4x3 grid of 200x200 cells. The hole touches
	// the two center cells of the middle row.
	frame := buildSingleRect(t, geom.NewRect(0, 0, 800, 600),
		clip.NewRectangle(spatial.RootNode, geom.NewRect(300, 200, 200, 200), clip.ModeClipOut))

	assert.Equal(t, 2, countTasks(frame, rendertask.KindPrim), "only cells under the hole are masked")
	for i := range frame.RenderTasks.Len() {
		task := frame.RenderTasks.Get(rendertask.ID(i))
		if task.Kind == rendertask.KindPrim {
			assert.Len(t, task.SubPasses, 1)
		}
	}
	require.Len(t, frame.Passes, 2, "masked cells render offscreen first")
	assert.False(t, frame.IsNop())
}

func TestBuildQuadStrategies(t *testing.T) {
	tests := []struct {
		name      string
		rect      geom.Rect
		item      clip.Item
		wantTasks int
	}{
		{
			name:      "indirect",
			rect:      geom.NewRect(0, 0, 200, 200),
			item:      clip.NewRoundedRectangle(spatial.RootNode, geom.NewRect(0, 0, 200, 200), clip.UniformRadius(20), clip.ModeClip),
			wantTasks: 1,
		},
		{
			name:      "nine patch masks the corners",
			rect:      geom.NewRect(0, 0, 600, 600),
			item:      clip.NewRoundedRectangle(spatial.RootNode, geom.NewRect(0, 0, 600, 600), clip.UniformRadius(20), clip.ModeClip),
			wantTasks: 4,
		},
		{
			// The interior of the 4x3 grid lies inside the hole and is
			// culled. Every other cell crosses the hole's edge.
			name:      "tiled clip out culls cells",
			rect:      geom.NewRect(0, 0, 800, 600),
			item:      clip.NewRoundedRectangle(spatial.RootNode, geom.NewRect(0, 0, 800, 600), clip.UniformRadius(20), clip.ModeClipOut),
			wantTasks: 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := buildSingleRect(t, tt.rect, tt.item)
			assert.Equal(t, tt.wantTasks, countTasks(frame, rendertask.KindPrim))
			for i := range frame.RenderTasks.Len() {
				task := frame.RenderTasks.Get(rendertask.ID(i))
				if task.Kind == rendertask.KindPrim {
					assert.Len(t, task.SubPasses, 1, "every masked cell carries its mask")
				}
			}
			assert.Len(t, frame.Passes, 2)
		})
	}
}

func TestBuildUnmaskedRectIsDirect(t *testing.T) {
	frame := buildSingleRect(t, geom.NewRect(0, 0, 800, 600),
		clip.NewRectangle(spatial.RootNode, geom.NewRect(100, 100, 200, 200), clip.ModeClip))
	assert.Zero(t, countTasks(frame, rendertask.KindPrim))
	assert.Len(t, frame.Passes, 1)
}

func TestBuildTiledImage(t *testing.T) {
	resources := resource.New()
	require.NoError(t, resources.AddImage(1, resource.ImageTemplate{
		Descriptor: resource.ImageDescriptor{Size: geom.IntSize{Width: 512, Height: 512}, Format: gputypes.TextureFormatRGBA8Unorm},
		Data:       make([]byte, 512*512*4),
		TileSize:   256,
	}))

	sb := NewSceneBuilder(testOutputRect(), 1)
	root := sb.AddPicture(spatial.RootNode, nil)
	sb.PushImage(root, spatial.RootNode, geom.NewRect(0, 0, 512, 512), 1, prim.ImageData{}, clip.NoChain)
	scene, err := sb.Build()
	require.NoError(t, err)

	frame, err := NewFrameBuilder(WithTesting()).Build(scene, resources, gpucache.New())
	require.NoError(t, err)
	require.Nil(t, frame.ResourceErr)

	inst := &scene.Store.Picture(root).List.Instances[0]
	tiles := scene.Store.Image(inst.Image).VisibleTiles
	require.Len(t, tiles, 4)
	assert.Equal(t, 1, frame.Stats.VisiblePrimitives)
	assert.NotEmpty(t, frame.TextureUpdates)

	// One instance per tile, each covering its own tile.
	require.Equal(t, 4, frame.PrimHeaders.Len())
	var got []geom.Rect
	for _, h := range frame.PrimHeaders.F {
		got = append(got, h.LocalRect)
	}
	assert.ElementsMatch(t, []geom.Rect{
		geom.NewRect(0, 0, 256, 256),
		geom.NewRect(256, 0, 256, 256),
		geom.NewRect(0, 256, 256, 256),
		geom.NewRect(256, 256, 256, 256),
	}, got)
	assert.Equal(t, 4, countMainInstances(frame, batch.KindImage))
}

func TestBuildTiledImageWithoutVisibleTiles(t *testing.T) {
	resources := resource.New()
	require.NoError(t, resources.AddImage(1, resource.ImageTemplate{
		Descriptor: resource.ImageDescriptor{Size: geom.IntSize{Width: 100, Height: 100}, Format: gputypes.TextureFormatRGBA8Unorm},
		Data:       make([]byte, 100*100*4),
		TileSize:   64,
	}))

	// Repetitions sit every 500 pixels, so the clip only sees spacing.
	sb := NewSceneBuilder(testOutputRect(), 1)
	root := sb.AddPicture(spatial.RootNode, nil)
	chain := sb.Clips().AddClipChain(clip.NoChain,
		clip.NewRectangle(spatial.RootNode, geom.NewRect(150, 150, 200, 200), clip.ModeClip))
	sb.PushImage(root, spatial.RootNode, geom.NewRect(0, 0, 1000, 1000), 1, prim.ImageData{
		StretchSize: geom.Sz(100, 100),
		TileSpacing: geom.Sz(400, 400),
	}, chain)
	scene, err := sb.Build()
	require.NoError(t, err)

	frame, err := NewFrameBuilder(WithTesting()).Build(scene, resources, gpucache.New())
	require.NoError(t, err)

	inst := &scene.Store.Picture(root).List.Instances[0]
	assert.Empty(t, scene.Store.Image(inst.Image).VisibleTiles)
	assert.Equal(t, prim.VisibilityCulled, inst.Vis.State.Kind)
	assert.Zero(t, frame.Stats.VisiblePrimitives)
	assert.Zero(t, frame.PrimHeaders.Len())
}

// newDropShadowScene builds a root holding one picture with a single drop
// shadow offset 200 pixels to the right of its 100x100 content.
func newDropShadowScene(t *testing.T, chain func(*SceneBuilder) clip.ChainID) (*BuiltScene, prim.PictureIndex) {
	t.Helper()
	sb := NewSceneBuilder(testOutputRect(), 1)
	root := sb.AddPicture(spatial.RootNode, nil)
	shadowed := sb.AddPicture(spatial.RootNode, prim.FilterMode(prim.Filter{
		Kind:    prim.FilterDropShadows,
		Shadows: []prim.Shadow{{Offset: geom.Vec(200, 0), Color: blue, BlurRadius: 2}},
	}))
	sb.PushRect(shadowed, spatial.RootNode, geom.NewRect(0, 0, 100, 100), red, clip.NoChain)
	sb.PushPicture(root, shadowed, chain(sb))
	sb.SetRoot(root)
	scene, err := sb.Build()
	require.NoError(t, err)
	return scene, shadowed
}

func TestBuildDropShadowVisibleThroughShadow(t *testing.T) {
	// The clip only overlaps the shadow.
	scene, _ := newDropShadowScene(t, func(sb *SceneBuilder) clip.ChainID {
		return sb.Clips().AddClipChain(clip.NoChain,
			clip.NewRectangle(spatial.RootNode, geom.NewRect(250, 0, 50, 100), clip.ModeClip))
	})
	frame, err := NewFrameBuilder(WithTesting()).Build(scene, resource.New(), gpucache.New())
	require.NoError(t, err)

	inst := &scene.Store.Picture(scene.RootPicture).List.Instances[0]
	assert.Equal(t, prim.VisibilityDetailed, inst.Vis.State.Kind)
	assert.Positive(t, countTasks(frame, rendertask.KindBlur))
	assert.Equal(t, 2, countMainInstances(frame, batch.KindBlend), "the shadow and the content are both composited")
}

func TestBuildDropShadowInvalidatesShadowData(t *testing.T) {
	scene, shadowed := newDropShadowScene(t, func(*SceneBuilder) clip.ChainID { return clip.NoChain })
	fb := NewFrameBuilder(WithTesting())
	resources := resource.New()
	gpu := gpucache.New()

	shadowBlock := func(pic *prim.Picture) gpucache.Block {
		r := pic.PreciseLocalRect.Translate(geom.Vec(200, 0))
		return gpucache.Block{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y}
	}

	_, err := fb.Build(scene, resources, gpu)
	require.NoError(t, err)
	pic := scene.Store.Picture(shadowed)
	require.Len(t, pic.ExtraGPUHandles, 1)
	first := pic.PreciseLocalRect
	assert.Equal(t, shadowBlock(pic), gpu.Block(gpu.GetAddress(&pic.ExtraGPUHandles[0]), 1))

	// Move the content. The precise rect follows and the shadow data is
	// rebuilt from it.
	tmpl := scene.Store.Template(pic.List.Instances[0].Template)
	tmpl.PrimRect = geom.NewRect(50, 20, 100, 100)
	gpu.Invalidate(&tmpl.GPUHandle)

	_, err = fb.Build(scene, resources, gpu)
	require.NoError(t, err)
	assert.NotEqual(t, first, pic.PreciseLocalRect)
	assert.Equal(t, pic.PreciseLocalRect, pic.PrevPreciseLocalRect)
	assert.Equal(t, shadowBlock(pic), gpu.Block(gpu.GetAddress(&pic.ExtraGPUHandles[0]), 1))
}

func TestBuildClampsOversizedTasks(t *testing.T) {
	sb := NewSceneBuilder(testOutputRect(), 1)
	root := sb.AddPicture(spatial.RootNode, nil)
	blurred := sb.AddPicture(spatial.RootNode, prim.FilterMode(prim.Filter{Kind: prim.FilterBlur, StdDeviation: 2}))
	sb.PushRect(blurred, spatial.RootNode, geom.NewRect(0, 0, 400, 400), red, clip.NoChain)
	sb.PushPicture(root, blurred, clip.NoChain)
	sb.SetRoot(root)
	scene, err := sb.Build()
	require.NoError(t, err)

	frame, err := NewFrameBuilder(WithTesting(), WithMaxTargetSize(256)).Build(scene, resource.New(), gpucache.New())
	require.NoError(t, err)

	clamped := 0
	for i := range frame.RenderTasks.Len() {
		loc := frame.RenderTasks.Get(rendertask.ID(i)).Location
		if loc.Kind != rendertask.LocationDynamic {
			continue
		}
		assert.Equal(t, loc.Rect.Size(), loc.Size, "task %d records its allocated size", i)
		assert.LessOrEqual(t, loc.Size.Width, int32(256))
		if loc.Size.Width == 256 {
			clamped++
		}
	}
	assert.Positive(t, clamped)
}
