package wr

import (
	"github.com/gogpu/wr/batch"
	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/spatial"
	"github.com/gogpu/wr/tilecache"
)

// frameState is the mutable state of the prepare pass.
type frameState struct {
	store      *prim.Store
	tree       *spatial.Tree
	clips      *clip.Store
	graph      *rendertask.Graph
	transforms *spatial.TransformPalette
	gpuBuf     *gpucache.BufferBuilder
	gpu        *gpucache.Cache
	resources  ResourceCache
	cmdBuffers *batch.CommandBufferList
	surfaces   []SurfaceInfo
	builder    surfaceBuilder
	composite  *composite.State
	tileCaches map[prim.SliceID]*tilecache.Instance
	config     *Config
	scratch    *FrameScratchBuffer

	screenWorld geom.Rect
	prepared    int
}

// pictureContext is the target of the primitives of one picture: the
// surface they land on and the command buffer they are recorded into.
type pictureContext struct {
	picture      prim.PictureIndex
	surfaceIndex prim.SurfaceIndex
	rasterNode   spatial.NodeIndex
	dps          float32
	cmdBuffer    int
}

// dirtyRegionEntry is a dirty region with the mapping from the picture
// space of its tile cache into world space.
type dirtyRegionEntry struct {
	region  *tilecache.DirtyRegion
	toWorld spatial.SpaceMapper
}

func (s *frameState) pushDirtyRegion(region *tilecache.DirtyRegion, node spatial.NodeIndex) {
	s.scratch.dirtyRegions = append(s.scratch.dirtyRegions, dirtyRegionEntry{
		region:  region,
		toWorld: spatial.NewSpaceMapperWithTarget(spatial.RootNode, node, s.screenWorld, s.tree),
	})
}

func (s *frameState) popDirtyRegion() {
	stack := s.scratch.dirtyRegions
	if len(stack) == 0 {
		panic("bug: dirty region stack underflow")
	}
	s.scratch.dirtyRegions = stack[:len(stack)-1]
}

func (s *frameState) currentDirtyRegion() *dirtyRegionEntry {
	stack := s.scratch.dirtyRegions
	if len(stack) == 0 {
		panic("bug: no dirty region pushed")
	}
	return &stack[len(stack)-1]
}

// preparePrimitives records the draw commands of the visible primitives
// of a picture into pc's command buffer, descending into child pictures.
func (s *frameState) preparePrimitives(index prim.PictureIndex, pc *pictureContext) {
	list := &s.store.Picture(index).List
	for ci := range list.Clusters {
		c := &list.Clusters[ci]
		if c.Flags&prim.ClusterIsVisible == 0 {
			continue
		}
		for i := c.First; i < c.First+c.Count; i++ {
			inst := &list.Instances[i]
			if !s.updateDetailedVisibility(inst) {
				continue
			}
			ref := batch.PrimRef{Picture: index, Index: uint32(i)}
			s.preparePrimitive(inst, ref, c.SpatialNode, pc)
		}
	}
}

// updateDetailedVisibility resolves a coarse visibility against the
// current dirty region. It reports whether the primitive is drawn.
func (s *frameState) updateDetailedVisibility(inst *prim.Instance) bool {
	switch inst.Vis.State.Kind {
	case prim.VisibilityUnset:
		panic("bug: primitive visibility was not updated")
	case prim.VisibilityCulled:
		return false
	case prim.VisibilityCoarse:
		dirty := s.currentDirtyRegion()
		world, ok := dirty.toWorld.Map(inst.Vis.State.RectInPicSpace)
		if !ok {
			inst.Vis.State = prim.Culled()
			return false
		}
		mask := dirty.region.VisibilityMask(world)
		if mask.IsEmpty() {
			inst.Vis.State = prim.Culled()
			return false
		}
		inst.Vis.State = prim.Detailed(mask)
		return true
	case prim.VisibilityDetailed:
		return true
	default:
		panic("bug: unknown visibility state " + inst.Vis.State.Kind.String())
	}
}

func (s *frameState) preparePrimitive(inst *prim.Instance, ref batch.PrimRef, node spatial.NodeIndex, pc *pictureContext) {
	s.prepared++
	if s.config.ChasePrimitive.Matches(inst, s.store.LocalRect(inst)) {
		Logger().Debug("chase: prepare", "prim", inst.ID, "kind", inst.Kind, "mask", uint16(inst.Vis.State.Mask))
	}

	switch inst.Kind {
	case prim.KindPicture:
		s.preparePicture(inst, ref, node, pc)

	case prim.KindRectangle:
		t := s.store.Template(inst.Template)
		pat := Pattern{Kind: PatternColor, BaseColor: t.PremultipliedColor(), IsOpaque: t.IsOpaque()}
		s.prepareQuad(pat, t.PrimRect, &inst.Vis.ClipChain, quadTarget{
			pic:      pc,
			ref:      ref,
			visMask:  inst.Vis.State.Mask,
			primNode: node,
		})

	case prim.KindImage, prim.KindYuvImage, prim.KindImageBorder, prim.KindTextRun,
		prim.KindLineDecoration, prim.KindNormalBorder, prim.KindLinearGradient,
		prim.KindRadialGradient, prim.KindConicGradient, prim.KindClear, prim.KindBackdrop:
		t := s.store.Template(inst.Template)
		t.WriteGPUBlocks(s.gpu)
		s.cmdBuffers.Get(pc.cmdBuffer).Add(batch.Command{
			Kind:       batch.CommandSimple,
			Prim:       ref,
			VisMask:    inst.Vis.State.Mask,
			GPUAddress: s.gpu.GetAddress(&t.GPUHandle),
		}, node)

	default:
		panic("bug: unknown primitive kind " + inst.Kind.String())
	}
}

// preparePicture prepares a child picture. Pass-through pictures draw
// into the parent's command buffer; pictures with a surface get their
// own render tasks.
func (s *frameState) preparePicture(inst *prim.Instance, ref batch.PrimRef, node spatial.NodeIndex, pc *pictureContext) {
	child := s.store.Picture(inst.Picture)
	rc := child.RasterConfig
	if rc == nil {
		s.preparePrimitives(inst.Picture, pc)
		return
	}
	switch rc.CompositeMode.Kind {
	case prim.CompositeTileCache:
		// Tiles are drawn by the compositor, not into the parent.
		s.prepareTileCache(inst.Picture)
	case prim.CompositeFilter, prim.CompositeMixBlend, prim.CompositeBlit:
		s.prepareSurfacePicture(inst.Picture, ref, node, pc)
	default:
		panic("bug: unknown composite mode " + rc.CompositeMode.Kind.String())
	}
}

// prepareSurfacePicture renders a picture into an offscreen task and
// records a command compositing the result into the parent.
func (s *frameState) prepareSurfacePicture(index prim.PictureIndex, ref batch.PrimRef, node spatial.NodeIndex, pc *pictureContext) {
	pic := s.store.Picture(index)
	rc := pic.RasterConfig
	if rc.ClippedBoundingRect.IsEmpty() {
		return
	}
	surface := &s.surfaces[rc.Surface]
	dev, ok := surface.GetSurfaceRect(pic.PreciseLocalRect)
	if !ok {
		return
	}

	cb := s.cmdBuffers.Create()
	task := s.graph.Add(rendertask.NewPictureTask(rendertask.Unallocated(dev.Size()), rendertask.PictureTask{
		Picture:            index,
		ContentOrigin:      intPointF(dev.Min),
		SurfaceSpatialNode: surface.SurfaceSpatialNode,
		RasterSpatialNode:  surface.RasterSpatialNode,
		DevicePixelScale:   surface.DevicePixelScale,
		VisMask:            prim.AllVisible,
		CommandBuffer:      cb,
	}))

	root := task
	var shadows []rendertask.ID
	backdrop := rendertask.InvalidID
	mode := &rc.CompositeMode
	switch mode.Kind {
	case prim.CompositeFilter:
		switch mode.Filter.Kind {
		case prim.FilterBlur:
			root = s.addBlurTasks(task, dev.Size(), mode.Filter.StdDeviation*surface.DevicePixelScale)
		case prim.FilterDropShadows:
			for _, sh := range mode.Filter.Shadows {
				shadows = append(shadows, s.addBlurTasks(task, dev.Size(), sh.BlurRadius*surface.DevicePixelScale))
			}
		case prim.FilterOpacity:
		default:
			panic("bug: unknown filter " + mode.Filter.Kind.String())
		}
	case prim.CompositeMixBlend:
		if !s.config.GPUSupportsAdvancedBlend {
			backdrop = s.graph.Add(rendertask.NewReadbackTask(dev.Size()))
		}
	case prim.CompositeBlit:
	case prim.CompositeTileCache:
		panic("bug: tile cache picture prepared as a surface")
	default:
		panic("bug: unknown composite mode " + mode.Kind.String())
	}

	surface.RenderTasks = &SurfaceRenderTasks{Root: root, Port: task, Shadows: shadows, Backdrop: backdrop}
	for _, r := range surface.RenderTasks.All() {
		s.builder.addChildRenderTask(r, s.graph)
	}

	s.builder.push(task)
	s.preparePrimitives(index, &pictureContext{
		picture:      index,
		surfaceIndex: rc.Surface,
		rasterNode:   surface.RasterSpatialNode,
		dps:          surface.DevicePixelScale,
		cmdBuffer:    cb,
	})
	s.builder.pop()

	// Shadows are composited first, each offset in the parent's device
	// space, then the content on top. Each quad covers its task.
	transformID := s.transforms.GetID(node, pc.rasterNode, s.tree)
	rect := dev.ToRect()
	if len(shadows) > 0 {
		s.writeShadowBlocks(pic, mode.Filter.Shadows)
	}
	for i, id := range shadows {
		sh := mode.Filter.Shadows[i]
		dps := surface.DevicePixelScale
		r := rect.Translate(geom.Vector{X: sh.Offset.X * dps, Y: sh.Offset.Y * dps})
		addr := writePrimBlocks(&s.gpuBuf.F, r, r, prim.Premultiply(sh.Color), nil, geom.IdentityScaleOffset())
		s.addCompositeCommand(pc, ref, node, addr, s.gpu.GetAddress(&pic.ExtraGPUHandles[i]), transformID, id)
	}
	addr := writePrimBlocks(&s.gpuBuf.F, rect, rect, compositeParams(mode), nil, geom.IdentityScaleOffset())
	s.addCompositeCommand(pc, ref, node, addr, gpucache.InvalidAddress, transformID, root)
}

// writeShadowBlocks uploads the color and local rect of every shadow of
// pic. The blocks stay cached until the precise rect of pic changes.
func (s *frameState) writeShadowBlocks(pic *prim.Picture, shadows []prim.Shadow) {
	if len(pic.ExtraGPUHandles) != len(shadows) {
		pic.ExtraGPUHandles = make([]gpucache.Handle, len(shadows))
	}
	for i, sh := range shadows {
		req := s.gpu.Request(&pic.ExtraGPUHandles[i])
		if req == nil {
			continue
		}
		r := pic.PreciseLocalRect.Translate(sh.Offset)
		req.Push(prim.Premultiply(sh.Color))
		req.PushRect(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
		req.Close()
	}
}

// addCompositeCommand records a quad sampling src into the parent's
// command buffer.
func (s *frameState) addCompositeCommand(pc *pictureContext, ref batch.PrimRef, node spatial.NodeIndex,
	addr gpucache.BufferAddress, gpuAddr gpucache.Address, transformID spatial.TransformPaletteID, src rendertask.ID) {
	s.cmdBuffers.Get(pc.cmdBuffer).Add(batch.Command{
		Kind:       batch.CommandComplex,
		Prim:       ref,
		VisMask:    prim.AllVisible,
		GPUAddress: gpuAddr,
		Quad: batch.QuadCommand{
			PrimAddressF: addr,
			TransformID:  transformID,
			QuadFlags:    batch.QuadIgnoreDevicePixelScale | batch.QuadApplyRenderTaskClip,
			EdgeFlags:    geom.EdgeNone,
			SrcTask:      src,
		},
	}, node)
}

// compositeParams packs the parameters of a composite mode into one
// block: opacity, mix blend mode and shadow count.
func compositeParams(m *prim.CompositeMode) gpucache.Block {
	b := gpucache.Block{1, 0, 0, 0}
	switch m.Kind {
	case prim.CompositeFilter:
		switch m.Filter.Kind {
		case prim.FilterOpacity:
			b[0] = m.Filter.Opacity
		case prim.FilterDropShadows:
			b[2] = float32(len(m.Filter.Shadows))
		case prim.FilterBlur:
		}
	case prim.CompositeMixBlend:
		b[1] = float32(m.MixBlend)
	case prim.CompositeBlit, prim.CompositeTileCache:
	}
	return b
}

// addBlurTasks adds a separable blur of src: a vertical pass followed
// by a horizontal one. It returns the horizontal pass.
func (s *frameState) addBlurTasks(src rendertask.ID, size geom.IntSize, stdDev float32) rendertask.ID {
	v := s.graph.Add(rendertask.NewBlurTask(size, rendertask.TargetColor, rendertask.BlurTask{
		StdDeviation: stdDev,
		Direction:    rendertask.BlurVertical,
		Source:       src,
	}))
	s.graph.AddDependency(v, src)
	h := s.graph.Add(rendertask.NewBlurTask(size, rendertask.TargetColor, rendertask.BlurTask{
		StdDeviation: stdDev,
		Direction:    rendertask.BlurHorizontal,
		Source:       v,
	}))
	s.graph.AddDependency(h, v)
	return h
}

// prepareTileCache adds a picture cache task for every dirty tile of a
// slice and records the slice's primitives once for all of them. Each
// task only draws the primitives of its dirty rect.
func (s *frameState) prepareTileCache(index prim.PictureIndex) {
	pic := s.store.Picture(index)
	rc := pic.RasterConfig
	tc, ok := s.tileCaches[rc.CompositeMode.SliceID]
	if !ok {
		panic("bug: non-existent tile cache")
	}
	surface := &s.surfaces[rc.Surface]

	tc.AddCompositeTiles(s.composite)

	cb := s.cmdBuffers.Create()
	tileSize := tc.TileSize()
	tileBounds := geom.IntRectFromSize(tileSize)
	visible := tc.LocalVisibleRect()

	var tasks []rendertask.ID
	for _, t := range tc.DirtyTiles() {
		if !t.IsVisible {
			continue
		}
		device := surface.MapToDeviceRect(t.LocalRect).Round()
		origin := device.Min

		scissor := tileRectIn(surface.MapToDeviceRect(t.DirtyRect).RoundOut(), origin, tileBounds)
		var valid geom.IntRect
		if v, ok := t.LocalRect.Intersection(visible); ok {
			valid = tileRectIn(surface.MapToDeviceRect(v).RoundOut(), origin, tileBounds)
		}

		id := s.graph.Add(rendertask.NewPictureTask(
			rendertask.PictureCacheLocation(tc.TileSurfaceID(t), tileSize),
			rendertask.PictureTask{
				Picture:            index,
				ContentOrigin:      origin,
				SurfaceSpatialNode: surface.SurfaceSpatialNode,
				RasterSpatialNode:  surface.RasterSpatialNode,
				DevicePixelScale:   surface.DevicePixelScale,
				VisMask:            tc.TileVisibilityMask(t),
				ScissorRect:        scissor,
				ValidRect:          valid,
				CommandBuffer:      cb,
			}))
		s.builder.addChildRenderTask(id, s.graph)
		tasks = append(tasks, id)
	}
	Logger().Debug("prepare: tile cache", "slice", rc.CompositeMode.SliceID, "tasks", len(tasks))
	if len(tasks) == 0 {
		return
	}

	surface.RenderTasks = &SurfaceRenderTasks{Root: tasks[0], Port: tasks[0], Backdrop: rendertask.InvalidID}
	s.builder.push(tasks...)
	s.pushDirtyRegion(tc.DirtyRegion, tc.SpatialNode)
	s.preparePrimitives(index, &pictureContext{
		picture:      index,
		surfaceIndex: rc.Surface,
		rasterNode:   surface.RasterSpatialNode,
		dps:          surface.DevicePixelScale,
		cmdBuffer:    cb,
	})
	s.popDirtyRegion()
	s.builder.pop()
}

// tileRectIn returns r relative to origin, clipped to bounds.
func tileRectIn(r geom.Rect, origin geom.Point, bounds geom.IntRect) geom.IntRect {
	rel := r.Translate(geom.Vec(-origin.X, -origin.Y)).ToIntRect()
	out, ok := rel.Intersection(bounds)
	if !ok {
		return geom.IntRect{}
	}
	return out
}
