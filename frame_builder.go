package wr

import (
	"fmt"
	"slices"

	"github.com/gogpu/wr/batch"
	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/spatial"
	"github.com/gogpu/wr/tilecache"
)

// FrameGlobalResources are GPU cache entries every frame may refer to.
type FrameGlobalResources struct {
	// DefaultImageHandle stands in for images whose texture is missing.
	DefaultImageHandle gpucache.Handle
	// TransparentRectHandle is a fully transparent rect.
	TransparentRectHandle gpucache.Handle
}

func (g *FrameGlobalResources) update(gpu *gpucache.Cache) {
	if req := gpu.Request(&g.DefaultImageHandle); req != nil {
		req.Push(gpucache.Block{0, 0, 0, 0})
		req.Push(gpucache.Block{-1, 0, 0, 0})
		req.Close()
	}
	if req := gpu.Request(&g.TransparentRectHandle); req != nil {
		req.Push(gpucache.Block{0, 0, 0, 0})
		req.Close()
	}
}

// FrameScratchBuffer holds allocations reused from frame to frame.
type FrameScratchBuffer struct {
	classifier   *QuadTileClassifier
	directSegs   []batch.QuadSegment
	indirectSegs []batch.QuadSegment
	dirtyRegions []dirtyRegionEntry
}

func newFrameScratchBuffer() *FrameScratchBuffer {
	return &FrameScratchBuffer{classifier: NewQuadTileClassifier()}
}

func (s *FrameScratchBuffer) beginFrame() {
	s.directSegs = s.directSegs[:0]
	s.indirectSegs = s.indirectSegs[:0]
	s.dirtyRegions = s.dirtyRegions[:0]
}

// FrameBuilder turns a BuiltScene into Frames.
//
// A FrameBuilder keeps state between frames (the frame stamp, scratch
// buffers and global GPU cache entries) and must not be used
// concurrently.
type FrameBuilder struct {
	config  Config
	globals FrameGlobalResources
	scratch *FrameScratchBuffer
	stamp   uint64
	last    *Frame
}

// NewFrameBuilder creates a frame builder configured by opts.
//
// Example:
//
//	fb := wr.NewFrameBuilder(wr.WithDebugFlags(wr.DebugPrimitives))
//	frame, err := fb.Build(scene, resources, gpuCache)
func NewFrameBuilder(opts ...Option) *FrameBuilder {
	return &FrameBuilder{
		config:  NewConfig(opts...),
		scratch: newFrameScratchBuffer(),
	}
}

// Config returns the configuration of the builder.
func (b *FrameBuilder) Config() Config { return b.config }

// Stamp returns the number of frames built so far.
func (b *FrameBuilder) Stamp() uint64 { return b.stamp }

// Build runs visibility, prepare and batching over scene and returns the
// frame to render.
//
// The returned error is non-nil only when scene is malformed. Resource
// requests that fail are reported in Frame.ResourceErr instead.
func (b *FrameBuilder) Build(scene *BuiltScene, resources ResourceCache, gpu *gpucache.Cache) (*Frame, error) {
	if err := scene.Validate(); err != nil {
		return nil, fmt.Errorf("wr: build frame: %w", err)
	}
	cfg := &b.config
	b.stamp++
	resources.BeginFrame(b.stamp)
	gpu.BeginFrame()
	b.globals.update(gpu)

	dps := scene.DevicePixelScale
	scene.Tree.Update(scene.Pan, dps, scene.Properties)
	scene.Clips.ClearOldInstances()
	b.applyTileCacheConfig(scene.TileCaches)

	graph := rendertask.New()
	transforms := spatial.NewTransformPalette()
	gpuBuf := gpucache.NewBufferBuilder()
	cmdBuffers := &batch.CommandBufferList{}

	outputRect := scene.OutputRect
	screenWorld := outputRect.ToRect().Scale(1/dps, 1/dps).RoundOut()
	dirtyValid := b.last != nil && b.last.HasBeenRendered && b.last.OutputRect == outputRect
	compositeState := composite.NewState(cfg.Compositor, dps, cfg.MaxDepthIDs, dirtyValid)

	b.scratch.beginFrame()

	root := scene.RootPicture
	surfaces := []SurfaceInfo{newSurfaceInfo(spatial.RootNode, spatial.RootNode, 0, screenWorld, scene.Tree, dps, [2]float32{1, 1})}
	updatePictures(&pictureUpdateContext{store: scene.Store, tree: scene.Tree, screenWorld: screenWorld}, &surfaces, root)

	vis := &visibilityPass{
		store:            scene.Store,
		tree:             scene.Tree,
		surfaces:         surfaces,
		screenWorld:      screenWorld,
		devicePixelScale: dps,
		frame:            b.stamp,
		debug:            cfg.Debug,
		chase:            cfg.ChasePrimitive,
		clips:            scene.Clips,
		clipStack:        clip.NewChainStack(),
		tileCaches:       scene.TileCaches,
		resources:        resources,
		gpu:              gpu,
	}
	vis.updatePicture(root, prim.RootSurfaceIndex, screenWorld)

	mainCB := cmdBuffers.Create()
	main := graph.Add(rendertask.NewPictureTask(rendertask.Fixed(outputRect), rendertask.PictureTask{
		Picture:            root,
		ContentOrigin:      intPointF(outputRect.Min),
		SurfaceSpatialNode: spatial.RootNode,
		RasterSpatialNode:  spatial.RootNode,
		DevicePixelScale:   dps,
		VisMask:            prim.AllVisible,
		CommandBuffer:      mainCB,
	}))
	surfaces[prim.RootSurfaceIndex].RenderTasks = &SurfaceRenderTasks{Root: main, Port: main, Backdrop: rendertask.InvalidID}

	state := &frameState{
		store:       scene.Store,
		tree:        scene.Tree,
		clips:       scene.Clips,
		graph:       graph,
		transforms:  transforms,
		gpuBuf:      gpuBuf,
		gpu:         gpu,
		resources:   resources,
		cmdBuffers:  cmdBuffers,
		surfaces:    surfaces,
		composite:   compositeState,
		tileCaches:  scene.TileCaches,
		config:      cfg,
		scratch:     b.scratch,
		screenWorld: screenWorld,
	}
	state.builder.reset()
	state.builder.push(main)

	defaultDirty := tilecache.NewDirtyRegion(spatial.RootNode)
	defaultDirty.Add(screenWorld)
	state.pushDirtyRegion(defaultDirty, spatial.RootNode)
	b.prepareRoot(state, root, mainCB)
	state.popDirtyRegion()
	state.builder.pop()

	var resourceErr error
	if err := resources.BlockUntilAllResourcesAdded(gpu); err != nil {
		Logger().Warn("wr: resources failed to resolve", "frame", b.stamp, "err", err)
		resourceErr = err
	}

	passes := graph.GeneratePasses(main, outputRect.Size(), cfg.GPUSupportsFastClears)

	var headers batch.PrimitiveHeaders
	pc := &passContext{
		graph:         graph,
		store:         scene.Store,
		tree:          scene.Tree,
		cmdBuffers:    cmdBuffers,
		gpuBuf:        gpuBuf,
		headers:       &headers,
		transforms:    transforms,
		resources:     resources,
		gpu:           gpu,
		globals:       &b.globals,
		tileCaches:    scene.TileCaches,
		surfaces:      surfaces,
		config:        cfg,
		zGen:          composite.NewZBufferIDGenerator(cfg.MaxDepthIDs),
		screen:        outputRect.Size(),
		useDualSource: cfg.DualSourceBlendingIsSupported && cfg.DualSourceBlendingIsEnabled,
	}

	frame := &Frame{
		OutputRect:  outputRect,
		RenderTasks: graph,
		Composite:   compositeState,
		DebugItems:  vis.debugItems,
		ResourceErr: resourceErr,

		RootDrawsContent: cmdBuffers.Get(mainCB).DrawCount() > 0,
	}
	for _, p := range passes {
		rp := pc.buildRenderPass(p)
		frame.Passes = append(frame.Passes, rp)
		frame.HasTextureCacheTasks = frame.HasTextureCacheTasks || rp.HasTextureCacheTasks()
		frame.Stats.Batches += rp.BatchCount()
		frame.Stats.Targets += len(rp.Color) + len(rp.Alpha) + len(rp.TextureCache) + len(rp.PictureCache)
		frame.Stats.PictureCacheTiles += len(rp.PictureCache)
	}

	frame.Stats.GPUCacheUploads = gpu.UploadedBlocks()
	frame.GPUCacheFrameID = gpu.EndFrame()
	frame.Transforms = transforms.Finish()
	graph.WriteTaskData(gpuBuf)
	frame.GPUBuffers = gpuBuf
	frame.PrimHeaders = headers

	frame.DeferredResolves = resources.TakeDeferredResolves()
	frame.TextureUpdates = slices.Clone(resources.TextureUpdates())
	frame.HasTextureCacheTasks = frame.HasTextureCacheTasks || len(frame.TextureUpdates) > 0
	resources.EndFrame()

	if cfg.GPUSupportsRenderTargetPartialUpdate {
		frame.PartialPresentRects = compositeState.PartialPresentRects(outputRect.ToRect())
	}

	frame.Stats.VisiblePrimitives = vis.visible
	frame.Stats.PreparedPrimitives = state.prepared
	frame.Stats.RenderTasks = graph.Len()
	frame.Stats.Passes = len(frame.Passes)
	frame.Stats.CompositeTiles = compositeState.TileCount()
	frame.Stats.DirtyTiles = compositeState.DirtyTileCount()
	Logger().Debug("wr: frame built", "frame", b.stamp, "stats", frame.Stats)

	b.last = frame
	return frame, nil
}

// prepareRoot records the root picture into the main task. A root with
// a picture cache draws into tiles; other composite modes cannot apply
// to the framebuffer and are ignored.
func (b *FrameBuilder) prepareRoot(s *frameState, root prim.PictureIndex, cb int) {
	pic := s.store.Picture(root)
	pc := &pictureContext{
		picture:      root,
		surfaceIndex: prim.RootSurfaceIndex,
		rasterNode:   spatial.RootNode,
		dps:          s.surfaces[prim.RootSurfaceIndex].DevicePixelScale,
		cmdBuffer:    cb,
	}
	rc := pic.RasterConfig
	if rc == nil {
		s.preparePrimitives(root, pc)
		return
	}
	switch rc.CompositeMode.Kind {
	case prim.CompositeTileCache:
		s.prepareTileCache(root)
	default:
		Logger().Warn("wr: composite mode on the root picture is ignored", "mode", rc.CompositeMode.Kind)
		pc.surfaceIndex = rc.Surface
		s.preparePrimitives(root, pc)
	}
}

// applyTileCacheConfig applies the tile size override and the
// background color to the tile caches of the scene.
func (b *FrameBuilder) applyTileCacheConfig(caches map[prim.SliceID]*tilecache.Instance) {
	for slice, tc := range caches {
		tc.SetTileSize(b.config.TileSizeOverride)
		if slice == 0 && tc.BackgroundColor == nil && b.config.BackgroundColor != nil {
			bg := *b.config.BackgroundColor
			tc.BackgroundColor = &bg
		}
	}
}
