package wr

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/batch"
	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/resource"
	"github.com/gogpu/wr/spatial"
	"github.com/gogpu/wr/tilecache"
)

// RenderTarget is one color or alpha atlas of an offscreen pass.
type RenderTarget struct {
	Kind       rendertask.TargetKind
	Descriptor resource.TextureDescriptor
	UsedRect   geom.IntRect
	Tasks      []rendertask.ID
	// Batches holds the content of the picture tasks of the target.
	Batches []batch.Container
	// Quads holds the masked quad tasks of the target.
	Quads batch.Container
}

// TextureCacheTarget lists the tasks writing into one texture cache
// layer.
type TextureCacheTarget struct {
	Texture resource.TextureID
	Layer   int32
	Tasks   []rendertask.ID
}

// PictureCacheTarget is the redrawn part of one picture cache tile.
type PictureCacheTarget struct {
	Surface    composite.NativeTileID
	ClearColor gputypes.Color
	LoadOp     gputypes.LoadOp
	StoreOp    gputypes.StoreOp
	Alpha      batch.Container
	// DirtyRect and ValidRect are in tile pixels.
	DirtyRect geom.IntRect
	ValidRect geom.IntRect
}

// RenderPass is the GPU work of one pass of the render task graph.
type RenderPass struct {
	Kind rendertask.PassKind
	// Main holds the batches drawn into the framebuffer. Only set for the
	// main framebuffer pass.
	Main []batch.Container

	Color      []RenderTarget
	Alpha      []RenderTarget
	SavedColor rendertask.SavedTargetIndex
	SavedAlpha rendertask.SavedTargetIndex

	TextureCache []TextureCacheTarget
	PictureCache []PictureCacheTarget
	// Fixed lists offscreen tasks drawing at a fixed location.
	Fixed []rendertask.ID
}

// HasTextureCacheTasks reports whether the pass writes into a cache that
// outlives the frame.
func (p *RenderPass) HasTextureCacheTasks() bool {
	return len(p.TextureCache) > 0 || len(p.PictureCache) > 0
}

// BatchCount returns the number of batches of the pass.
func (p *RenderPass) BatchCount() int {
	n := 0
	count := func(c *batch.Container) { n += len(c.OpaqueBatches) + len(c.AlphaBatches) }
	for i := range p.Main {
		count(&p.Main[i])
	}
	for _, list := range [][]RenderTarget{p.Color, p.Alpha} {
		for i := range list {
			for j := range list[i].Batches {
				count(&list[i].Batches[j])
			}
			count(&list[i].Quads)
		}
	}
	for i := range p.PictureCache {
		count(&p.PictureCache[i].Alpha)
	}
	return n
}

// passContext is what building a render pass reads and appends to.
type passContext struct {
	graph      *rendertask.Graph
	store      *prim.Store
	tree       *spatial.Tree
	cmdBuffers *batch.CommandBufferList
	gpuBuf     *gpucache.BufferBuilder
	headers    *batch.PrimitiveHeaders
	transforms *spatial.TransformPalette
	resources  ResourceCache
	gpu        *gpucache.Cache
	globals    *FrameGlobalResources
	tileCaches map[prim.SliceID]*tilecache.Instance
	surfaces   []SurfaceInfo
	config     *Config
	zGen       *composite.ZBufferIDGenerator

	screen        geom.IntSize
	useDualSource bool
	// nextSaved is the next free saved target index of the frame.
	nextSaved rendertask.SavedTargetIndex
}

func (c *passContext) saveTarget() rendertask.SavedTargetIndex {
	i := c.nextSaved
	c.nextSaved++
	return i
}

type textureLayer struct {
	texture resource.TextureID
	layer   int32
}

// buildRenderPass allocates the targets of pass p and batches the tasks
// drawn into them.
func (c *passContext) buildRenderPass(p *rendertask.Pass) *RenderPass {
	rp := &RenderPass{Kind: p.Kind, SavedColor: rendertask.NotSaved, SavedAlpha: rendertask.NotSaved}
	switch p.Kind {
	case rendertask.PassMainFramebuffer:
		for _, id := range p.Tasks {
			t := c.graph.Get(id)
			if t.TargetKind != rendertask.TargetColor {
				panic(fmt.Sprintf("bug: main framebuffer task %d is not a color task", id))
			}
			if t.Kind != rendertask.KindPicture {
				panic(fmt.Sprintf("bug: main framebuffer task %d is a %v task", id, t.Kind))
			}
			r := t.TargetRect()
			rp.Main = append(rp.Main, c.batchPictureTasks(t.Picture.CommandBuffer, []rendertask.ID{id}, r, false)[0])
		}
	case rendertask.PassOffScreen:
		c.buildOffscreenPass(p, rp)
	default:
		panic(fmt.Sprintf("bug: unknown pass kind %v", p.Kind))
	}
	return rp
}

func (c *passContext) buildOffscreenPass(p *rendertask.Pass, rp *RenderPass) {
	for _, id := range p.Tasks {
		t := c.graph.Get(id)
		if t.SavedIndex == rendertask.NotSaved {
			continue
		}
		switch t.TargetKind {
		case rendertask.TargetColor:
			if rp.SavedColor == rendertask.NotSaved {
				rp.SavedColor = c.saveTarget()
			}
		case rendertask.TargetAlpha:
			if rp.SavedAlpha == rendertask.NotSaved {
				rp.SavedAlpha = c.saveTarget()
			}
		default:
			panic(fmt.Sprintf("bug: unknown target kind %v", t.TargetKind))
		}
	}

	maxSize := c.config.MaxTargetSize
	color := rendertask.NewTargetList(rendertask.TargetColor, c.screen, maxSize)
	alpha := rendertask.NewTargetList(rendertask.TargetAlpha, c.screen, maxSize)
	textureCache := make(map[textureLayer][]rendertask.ID)
	pictureCache := make(map[prim.PictureIndex][]rendertask.ID)

	for _, id := range p.Tasks {
		t := c.graph.Get(id)
		list := color
		if t.TargetKind == rendertask.TargetAlpha {
			list = alpha
		}

		switch t.Location.Kind {
		case rendertask.LocationTextureCache:
			key := textureLayer{texture: t.Location.Texture, layer: t.Location.Layer}
			textureCache[key] = append(textureCache[key], id)
		case rendertask.LocationPictureCache:
			if t.Kind != rendertask.KindPicture {
				panic(fmt.Sprintf("bug: picture cache task %d is a %v task", id, t.Kind))
			}
			pic := t.Picture.Picture
			pictureCache[pic] = append(pictureCache[pic], id)
		case rendertask.LocationFixed:
			rp.Fixed = append(rp.Fixed, id)
		case rendertask.LocationUnallocated:
			index, rect := list.Allocate(t.Size())
			c.graph.SetLocation(id, rendertask.Location{
				Kind:        rendertask.LocationDynamic,
				Size:        rect.Size(),
				Rect:        rect,
				TargetIndex: index,
			})
			list.Add(index, id)
		case rendertask.LocationDynamic:
			panic(fmt.Sprintf("bug: render task %d allocated before its pass", id))
		default:
			panic(fmt.Sprintf("bug: unknown location %v", t.Location.Kind))
		}

		if t.SavedIndex == rendertask.SavedPending {
			saved := rp.SavedColor
			if t.TargetKind == rendertask.TargetAlpha {
				saved = rp.SavedAlpha
			}
			c.graph.ResolveSavedIndex(id, saved)
		}
	}
	if rp.SavedColor != rendertask.NotSaved {
		color.SaveTarget(rp.SavedColor)
	}
	if rp.SavedAlpha != rendertask.NotSaved {
		alpha.SaveTarget(rp.SavedAlpha)
	}

	pics := make([]prim.PictureIndex, 0, len(pictureCache))
	for pic := range pictureCache {
		pics = append(pics, pic)
	}
	slices.Sort(pics)
	for _, pic := range pics {
		rp.PictureCache = append(rp.PictureCache, c.buildPictureCacheTargets(pic, pictureCache[pic])...)
	}

	keys := make([]textureLayer, 0, len(textureCache))
	for k := range textureCache {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b textureLayer) int {
		if a.texture != b.texture {
			return int(a.texture) - int(b.texture)
		}
		return int(a.layer - b.layer)
	})
	for _, k := range keys {
		rp.TextureCache = append(rp.TextureCache, TextureCacheTarget{Texture: k.texture, Layer: k.layer, Tasks: textureCache[k]})
	}

	rp.Color = c.buildTargets(color, "color target")
	rp.Alpha = c.buildTargets(alpha, "alpha target")
}

// buildPictureCacheTargets batches the tiles of one picture cache slice.
// The slice's commands are walked once and every command goes to the
// tiles whose dirty rect it touches.
func (c *passContext) buildPictureCacheTargets(index prim.PictureIndex, tasks []rendertask.ID) []PictureCacheTarget {
	pic := c.store.Picture(index)
	slice, ok := pic.TileCacheSlice()
	if !ok {
		panic(fmt.Sprintf("bug: picture cache task for picture %d without a tile cache", index))
	}
	tc, ok := c.tileCaches[slice]
	if !ok {
		panic("bug: non-existent tile cache")
	}

	opaqueBackground := tc.BackgroundColor != nil && tc.BackgroundColor.A >= 1
	var backdrop *gputypes.Color
	if tc.Backdrop.Kind == tilecache.BackdropColor {
		backdrop = &tc.Backdrop.Color
	}
	clearColor := composite.ClearColor(opaqueBackground, backdrop)

	first := c.graph.Get(tasks[0]).Picture
	containers := c.batchPictureTasks(first.CommandBuffer, tasks, geom.IntRect{}, true)

	out := make([]PictureCacheTarget, 0, len(tasks))
	for i, id := range tasks {
		t := c.graph.Get(id)
		load := gputypes.LoadOpClear
		if t.Picture.ScissorRect != t.TargetRect() {
			load = gputypes.LoadOpLoad
		}
		out = append(out, PictureCacheTarget{
			Surface:    t.Location.Tile,
			ClearColor: clearColor,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			Alpha:      containers[i],
			DirtyRect:  t.Picture.ScissorRect,
			ValidRect:  t.Picture.ValidRect,
		})
	}
	return out
}

func (c *passContext) buildTargets(list *rendertask.TargetList, label string) []RenderTarget {
	out := make([]RenderTarget, 0, len(list.Targets))
	for i, t := range list.Targets {
		rt := RenderTarget{
			Kind:       t.Kind,
			Descriptor: t.Descriptor(fmt.Sprintf("%s %d", label, i)),
			UsedRect:   t.UsedRect(),
			Tasks:      t.Tasks,
		}
		quads := batch.NewBuilder(rendertask.InvalidID, c.screen, c.config.BatchLookbackCount, prim.AllVisible,
			geom.IntRectFromSize(t.Size()), geom.IntRectFromSize(t.Size()))
		hasQuads := false
		for _, id := range t.Tasks {
			task := c.graph.Get(id)
			switch task.Kind {
			case rendertask.KindPicture:
				r := task.TargetRect()
				rt.Batches = append(rt.Batches, c.batchPictureTasks(task.Picture.CommandBuffer, []rendertask.ID{id}, r, false)[0])
			case rendertask.KindPrim:
				c.addPrimTaskToBatch(quads, id, task)
				hasQuads = true
			case rendertask.KindCacheMask, rendertask.KindBlur, rendertask.KindReadback,
				rendertask.KindScaling, rendertask.KindBlit:
			default:
				panic(fmt.Sprintf("bug: unknown render task kind %v", task.Kind))
			}
		}
		if hasQuads {
			rt.Quads = quads.Build()
		}
		out = append(out, rt)
	}
	return out
}

// addPrimTaskToBatch draws the pattern of a masked quad task. The mask
// sub passes are applied by the renderer on top.
func (c *passContext) addPrimTaskToBatch(b *batch.Builder, id rendertask.ID, t *rendertask.Task) {
	p := t.Prim
	q := batch.QuadCommand{
		PrimAddressF: p.PrimAddress,
		TransformID:  p.TransformID,
		QuadFlags:    batch.QuadFlags(p.QuadFlags),
		EdgeFlags:    p.EdgeFlags,
		SrcTask:      rendertask.InvalidID,
	}
	zID := c.zGen.Next()
	addQuadToBatch(b, &q, &c.gpuBuf.I, zID, id, 0xff, batch.TextureInvalid, t.TargetRect().ToRect())
}

// batchPictureTasks walks a command buffer once and batches it into one
// container per task. taskRect is used for tasks without a target rect of
// their own.
func (c *passContext) batchPictureTasks(cb int, tasks []rendertask.ID, taskRect geom.IntRect, pictureCache bool) []batch.Container {
	builders := make([]*batch.Builder, len(tasks))
	var dps float32 = 1
	raster := spatial.RootNode
	for i, id := range tasks {
		t := c.graph.Get(id)
		r := t.TargetRect()
		if r.IsEmpty() {
			r = taskRect
		}
		scissor := r
		if pictureCache {
			scissor = t.Picture.ScissorRect
		}
		builders[i] = batch.NewBuilder(id, c.screen, c.config.BatchLookbackCount, t.Picture.VisMask, r, scissor)
		dps = t.Picture.DevicePixelScale
		raster = t.Picture.RasterSpatialNode
	}

	buf := c.cmdBuffers.Get(cb)
	node := spatial.RootNode
	for i := range buf.Commands {
		cmd := &buf.Commands[i]
		switch cmd.Kind {
		case batch.CommandSetSpatialNode:
			node = cmd.SpatialNode
		case batch.CommandSimple:
			c.addSimpleToBatch(builders, cmd, node, raster, dps, pictureCache)
		case batch.CommandQuad:
			c.addQuadCommandToBatch(builders, cmd, dps)
		case batch.CommandComplex:
			c.addCompositeToBatch(builders, cmd)
		default:
			panic(fmt.Sprintf("bug: unknown command kind %v", cmd.Kind))
		}
	}

	out := make([]batch.Container, len(builders))
	for i, b := range builders {
		out[i] = b.Build()
	}
	return out
}

func (c *passContext) instance(ref batch.PrimRef) *prim.Instance {
	return &c.store.Picture(ref.Picture).List.Instances[ref.Index]
}

func (c *passContext) addSimpleToBatch(builders []*batch.Builder, cmd *batch.Command, node, raster spatial.NodeIndex,
	dps float32, pictureCache bool) {
	inst := c.instance(cmd.Prim)
	if pictureCache && inst.Vis.Flags&prim.IsBackdrop != 0 {
		// Tiles are cleared to the backdrop color instead.
		return
	}
	t := c.store.Template(inst.Template)
	chain := &inst.Vis.ClipChain
	bounds := chain.PicClipRect.Scale(dps, dps)

	if inst.Kind == prim.KindImage {
		if props, ok := c.resources.GetImageProperties(t.Image.Key); ok && props.IsTiled() {
			c.addImageTilesToBatch(builders, cmd, inst, t, c.transforms.GetID(node, raster, c.tree), bounds)
			return
		}
	}

	key := batch.Key{Kind: batch.KindForPrimitive(inst.Kind), Blend: batch.BlendPremultipliedAlpha}
	specific := cmd.GPUAddress
	switch inst.Kind {
	case prim.KindRectangle, prim.KindBackdrop:
		if t.IsOpaque() && !chain.NeedsMask {
			key.Blend = batch.BlendNone
		}
	case prim.KindClear:
		key.Blend = batch.BlendPremultipliedDestOut
	case prim.KindTextRun:
		if c.useDualSource && c.config.DefaultFontRenderMode == FontRenderSubpixel {
			key.Blend = batch.BlendSubpixelDualSource
		}
	case prim.KindImage, prim.KindYuvImage, prim.KindImageBorder:
		item, ok := c.resources.GetCachedImage(resource.ImageRequest{Key: t.Image.Key, Rendering: t.Image.Rendering})
		if ok {
			key.Textures[0] = cacheTextureSource(item.Texture)
		} else {
			specific = c.gpu.GetAddress(&c.globals.DefaultImageHandle)
		}
	case prim.KindLineDecoration, prim.KindNormalBorder, prim.KindLinearGradient,
		prim.KindRadialGradient, prim.KindConicGradient:
	case prim.KindPicture:
		panic("bug: picture recorded as a simple command")
	default:
		panic("bug: unknown primitive kind " + inst.Kind.String())
	}

	zID := c.zGen.Next()
	header := c.headers.Push(
		batch.PrimitiveHeaderF{LocalRect: t.PrimRect, LocalClipRect: inst.Vis.CombinedLocalClipRect},
		batch.PrimitiveHeaderI{
			ZID:             zID,
			SpecificAddress: specific,
			TransformID:     c.transforms.GetID(node, raster, c.tree),
			RenderTask:      gpucache.InvalidBufferAddress,
		},
	)
	data := batch.PrimitiveInstance{PrimHeader: header, ZID: zID, SegmentIndex: 0xffff}.Encode()
	for _, b := range builders {
		if b.Accepts(cmd.VisMask) {
			b.Add(key, bounds, zID, data)
		}
	}
}

// addImageTilesToBatch draws every visible tile of a tiled image from the
// texture its tile was uploaded to. Tiles that did not resolve are
// skipped.
func (c *passContext) addImageTilesToBatch(builders []*batch.Builder, cmd *batch.Command, inst *prim.Instance,
	t *prim.Template, transformID spatial.TransformPaletteID, bounds geom.Rect) {
	img := c.store.Image(inst.Image)
	req := resource.ImageRequest{Key: t.Image.Key, Rendering: t.Image.Rendering}
	zID := c.zGen.Next()
	for _, tile := range img.VisibleTiles {
		item, ok := c.resources.GetCachedImage(req.WithTile(tile.TileOffset))
		if !ok {
			continue
		}
		key := batch.Key{Kind: batch.KindForPrimitive(inst.Kind), Blend: batch.BlendPremultipliedAlpha}
		key.Textures[0] = cacheTextureSource(item.Texture)
		header := c.headers.Push(
			batch.PrimitiveHeaderF{LocalRect: tile.LocalRect, LocalClipRect: tile.LocalClipRect},
			batch.PrimitiveHeaderI{
				ZID:             zID,
				SpecificAddress: c.gpu.GetAddress(&item.Handle),
				TransformID:     transformID,
				RenderTask:      gpucache.InvalidBufferAddress,
			},
		)
		data := batch.PrimitiveInstance{
			PrimHeader:   header,
			ZID:          zID,
			SegmentIndex: 0xffff,
			Flags:        int32(tile.EdgeFlags),
		}.Encode()
		for _, b := range builders {
			if b.Accepts(cmd.VisMask) {
				b.Add(key, bounds, zID, data)
			}
		}
	}
}

func (c *passContext) addQuadCommandToBatch(builders []*batch.Builder, cmd *batch.Command, dps float32) {
	q := &cmd.Quad
	zID := c.zGen.Next()
	bounds := c.quadBounds(q, dps)
	for _, b := range builders {
		if !b.Accepts(cmd.VisMask) {
			continue
		}
		if len(q.Segments) == 0 {
			addQuadToBatch(b, q, &c.gpuBuf.I, zID, b.Task, 0xff, c.taskTextureSource(q.SrcTask), bounds)
			continue
		}
		for i, seg := range q.Segments {
			addQuadToBatch(b, q, &c.gpuBuf.I, zID, b.Task, uint8(i), c.taskTextureSource(seg.Task), seg.Rect)
		}
	}
}

// addCompositeToBatch draws a picture task into its parent.
func (c *passContext) addCompositeToBatch(builders []*batch.Builder, cmd *batch.Command) {
	q := &cmd.Quad
	pic := c.store.Picture(c.instance(cmd.Prim).Picture)
	mode := &pic.RasterConfig.CompositeMode

	key := batch.Key{Kind: batch.KindBlend, Blend: batch.BlendPremultipliedAlpha}
	key.Textures[0] = c.taskTextureSource(q.SrcTask)
	if mode.Kind == prim.CompositeMixBlend {
		key.Kind = batch.KindMixBlend
		if c.config.GPUSupportsAdvancedBlend {
			key.Blend = batch.BlendAdvanced
		} else if tasks := c.surfaces[pic.RasterConfig.Surface].RenderTasks; tasks != nil {
			key.Textures[1] = c.taskTextureSource(tasks.Backdrop)
		}
	}

	zID := c.zGen.Next()
	bounds := c.quadBounds(q, 1)
	w := c.gpuBuf.I.WriteBlocks(1)
	w.Push([4]int32{int32(q.TransformID), int32(zID), int32(q.SrcTask), 0})
	inst := batch.QuadInstance{
		PrimAddressI: w.Finish(),
		PrimAddressF: q.PrimAddressF,
		ZID:          zID,
		QuadFlags:    q.QuadFlags,
		Part:         batch.PartAll,
		SegmentIndex: 0xff,
	}
	for _, b := range builders {
		if b.Accepts(cmd.VisMask) {
			b.Add(key, bounds, zID, inst.Encode())
		}
	}
}

// quadBounds returns the device rect a quad covers, read back from its
// float blocks.
func (c *passContext) quadBounds(q *batch.QuadCommand, dps float32) geom.Rect {
	b := c.gpuBuf.F.Block(q.PrimAddressF)
	r := geom.RectFromPoints(b[0], b[1], b[2], b[3])
	if q.QuadFlags&batch.QuadIgnoreDevicePixelScale != 0 {
		return r
	}
	if q.TransformID != spatial.IdentityTransformID {
		mapped, ok := c.transforms.Transform(q.TransformID).Transform.OuterTransformedRect(r)
		if !ok {
			return geom.MaxRect()
		}
		r = mapped
	}
	return r.Scale(dps, dps)
}

// Render task textures are tagged with the high bit so they never
// collide with texture cache sources.
const taskTextureBit = 1 << 31

func cacheTextureSource(t resource.TextureID) batch.TextureSource {
	return batch.TextureSource(t + 1)
}

// taskTextureSource names the target a task was drawn into: the pass and
// the target index within the pass.
func (c *passContext) taskTextureSource(id rendertask.ID) batch.TextureSource {
	if id == rendertask.InvalidID {
		return batch.TextureInvalid
	}
	t := c.graph.Get(id)
	return batch.TextureSource(taskTextureBit | uint32(t.Pass)<<8 | uint32(t.Location.TargetIndex+1)&0xff)
}
