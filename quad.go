package wr

import (
	"fmt"
	"slices"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/batch"
	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/spatial"
)

const (
	// MinAASegmentsSize is the size below which a quad draws its
	// anti-aliased edges in the same instance as its center.
	MinAASegmentsSize = 4
	// MinQuadSplitSize is the device size of one cell when a masked quad
	// is split into tiles.
	MinQuadSplitSize = 256
	// MaxTilesPerQuad bounds the number of cells per axis.
	MaxTilesPerQuad = 4
)

// PatternKind selects the shader that fills a quad.
type PatternKind uint8

const (
	// PatternColor fills with a solid color.
	PatternColor PatternKind = iota
	// PatternColorOrTexture samples a render task, tinted by a color.
	PatternColorOrTexture
)

// String returns the pattern name.
func (k PatternKind) String() string {
	switch k {
	case PatternColor:
		return "Color"
	case PatternColorOrTexture:
		return "ColorOrTexture"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Pattern is what a quad is filled with.
type Pattern struct {
	Kind PatternKind
	// BaseColor is premultiplied.
	BaseColor gpucache.Block
	IsOpaque  bool
}

// ColorPattern returns a solid color pattern.
func ColorPattern(c gputypes.Color) Pattern {
	return Pattern{Kind: PatternColor, BaseColor: prim.Premultiply(c), IsOpaque: c.A >= 1}
}

// quadStrategyKind tags a quadStrategy.
type quadStrategyKind uint8

const (
	quadDirect quadStrategyKind = iota
	quadIndirect
	quadNinePatch
	quadTiled
)

func (k quadStrategyKind) String() string {
	switch k {
	case quadDirect:
		return "Direct"
	case quadIndirect:
		return "Indirect"
	case quadNinePatch:
		return "NinePatch"
	case quadTiled:
		return "Tiled"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// quadStrategy is how a quad primitive is decomposed into draws.
// Radius and ClipRect are set for nine-patch, the tile counts for tiled.
type quadStrategy struct {
	Kind     quadStrategyKind
	Radius   geom.Vector
	ClipRect geom.Rect
	XTiles   int
	YTiles   int
}

func (s quadStrategy) String() string {
	switch s.Kind {
	case quadNinePatch:
		return fmt.Sprintf("NinePatch(radius=%g,%g clip=%v)", s.Radius.X, s.Radius.Y, s.ClipRect)
	case quadTiled:
		return fmt.Sprintf("Tiled(%dx%d)", s.XTiles, s.YTiles)
	default:
		return s.Kind.String()
	}
}

func tileCountForSize(size float32) int {
	return int(math32.Ceil(geom.Clamp(size/MinQuadSplitSize, 1, MaxTilesPerQuad)))
}

// getPrimRenderStrategy picks the cheapest decomposition of a quad with
// the given clip chain. The choice only depends on its arguments.
func getPrimRenderStrategy(primNode spatial.NodeIndex, chain *clip.ChainInstance, clips *clip.Store,
	canUseNinePatch bool, tree *spatial.Tree) quadStrategy {
	if !chain.NeedsMask {
		return quadStrategy{Kind: quadDirect}
	}

	coverage := chain.PicCoverageRect.Size()
	xTiles := tileCountForSize(coverage.Width)
	yTiles := tileCountForSize(coverage.Height)
	if xTiles == 1 && yTiles == 1 {
		return quadStrategy{Kind: quadIndirect}
	}

	if canUseNinePatch && chain.ClipsRange.Count == 1 {
		inst := clips.GetInstanceFromRange(chain.ClipsRange, 0)
		item := clips.Data.Get(inst.Handle)
		if item.Kind == clip.KindRoundedRectangle && item.Mode == clip.ModeClip {
			maxW, maxH := item.Radius.MaxWidth(), item.Radius.MaxHeight()
			if maxW <= 0.5*item.Rect.Width() && maxH <= 0.5*item.Rect.Height() &&
				tree.IsMatchingCoordSystem(primNode, item.SpatialNode) {
				toPrim := spatial.NewSpaceMapperWithTarget(primNode, item.SpatialNode, geom.MaxRect(), tree)
				if r, ok := toPrim.Map(item.Rect); ok {
					return quadStrategy{Kind: quadNinePatch, Radius: geom.Vec(maxW, maxH), ClipRect: r}
				}
			}
		}
	}

	return quadStrategy{Kind: quadTiled, XTiles: xTiles, YTiles: yTiles}
}

// quadTarget is where the commands of a quad go.
type quadTarget struct {
	pic       *pictureContext
	ref       batch.PrimRef
	visMask   prim.VisibilityMask
	primNode  spatial.NodeIndex
	transform spatial.TransformPaletteID
}

// prepareQuad emits the commands and render tasks that draw a quad
// primitive filled with pat.
func (s *frameState) prepareQuad(pat Pattern, localRect geom.Rect, chain *clip.ChainInstance, t quadTarget) {
	pc := t.pic
	mapPrimToRaster := s.tree.RelativeTransform(t.primNode, pc.rasterNode)
	is2DScaleTranslation := mapPrimToRaster.IsScaleTranslation()
	strategy := getPrimRenderStrategy(t.primNode, chain, s.clips, is2DScaleTranslation, s.tree)

	var flags batch.QuadFlags
	if localRect.Width() > MinAASegmentsSize && localRect.Height() > MinAASegmentsSize {
		flags |= batch.QuadUseAASegments
	}
	if pat.IsOpaque {
		flags |= batch.QuadIsOpaque
	}
	needsScissor := !is2DScaleTranslation
	if !needsScissor {
		flags |= batch.QuadApplyRenderTaskClip
	}

	aa := geom.EdgeAll
	if isAxisAligned(mapPrimToRaster) {
		aa = geom.EdgeNone
	}

	t.transform = s.transforms.GetID(t.primNode, pc.rasterNode, s.tree)
	mainAddr := writePrimBlocks(&s.gpuBuf.F, localRect, chain.LocalClipRect, pat.BaseColor, nil, geom.IdentityScaleOffset())

	if strategy.Kind == quadDirect {
		s.pushQuad(t, batch.QuadCommand{
			PrimAddressF: mainAddr,
			TransformID:  t.transform,
			QuadFlags:    flags,
			EdgeFlags:    aa,
			SrcTask:      rendertask.InvalidID,
		})
		return
	}

	surface := &s.surfaces[pc.surfaceIndex]
	clipped, ok := surface.GetSurfaceRect(chain.PicCoverageRect)
	if !ok {
		return
	}

	mask := maskTask{
		pat:          pat,
		chain:        chain,
		primNode:     t.primNode,
		rasterNode:   pc.rasterNode,
		address:      mainAddr,
		transform:    t.transform,
		aa:           aa,
		flags:        flags,
		dps:          surface.DevicePixelScale,
		needsScissor: needsScissor,
	}

	switch strategy.Kind {
	case quadIndirect:
		task := s.addRenderTaskWithMask(mask, clipped.Size(), intPointF(clipped.Min))
		rect := clipped.ToRect()
		s.addCompositePrim(pat, true, t, rect, []batch.QuadSegment{{Rect: rect, Task: task}})

	case quadTiled:
		s.prepareTiledQuad(strategy, localRect, clipped.ToRect(), surface, mapPrimToRaster, is2DScaleTranslation, mask, t)

	case quadNinePatch:
		s.prepareNinePatchQuad(strategy, localRect, clipped, surface, mapPrimToRaster, mask, t)

	case quadDirect:
		panic("bug: direct quad handled above")
	default:
		panic(fmt.Sprintf("bug: unknown quad strategy %v", strategy.Kind))
	}
}

func (s *frameState) prepareTiledQuad(strategy quadStrategy, localRect, clipped geom.Rect, surface *SurfaceInfo,
	mapPrimToRaster spatial.Mapping, is2DScaleTranslation bool, mask maskTask, t quadTarget) {
	chain := mask.chain
	clipCoverage := surface.MapToDeviceRect(chain.PicCoverageRect)

	toPic := surface.MapLocalToSurface
	toPic.SetTargetSpatialNode(t.primNode, s.tree)
	picRect, ok := toPic.Map(localRect)
	if !ok {
		return
	}
	unclipped := surface.MapToDeviceRect(picRect).RoundOut()

	classifier := s.scratch.classifier
	classifier.Reset(strategy.XTiles, strategy.YTiles, localRect)
	for i := range chain.ClipsRange.Count {
		inst := s.clips.GetInstanceFromRange(chain.ClipsRange, i)
		item := s.clips.Data.Get(inst.Handle)
		if !item.LocalMaskRects(t.primNode, s.tree, classifier.AddMaskRegion) {
			classifier.AddMaskRegion(localRect)
		}
		// A tile outside the kept region of a clip needs no drawing at all.
		if r, mode, ok := item.LocalClipRegion(t.primNode, s.tree); ok {
			switch mode {
			case clip.ModeClip:
				classifier.AddClipRect(r, clip.ModeClipOut)
			case clip.ModeClipOut:
				classifier.AddClipRect(r, clip.ModeClip)
			}
		}
	}
	tiles := classifier.Classify()

	xs := gridCoords(unclipped.Min.X, unclipped.Max.X, strategy.XTiles)
	ys := gridCoords(unclipped.Min.Y, unclipped.Max.Y, strategy.YTiles)

	direct := s.scratch.directSegs[:0]
	indirect := s.scratch.indirectSegs[:0]
	for y := 0; y < len(ys)-1; y++ {
		y0, y1 := ys[y], ys[y+1]
		if y1 <= y0 {
			continue
		}
		for x := 0; x < len(xs)-1; x++ {
			x0, x1 := xs[x], xs[x+1]
			if x1 <= x0 {
				continue
			}

			var isDirect bool
			switch tiles[y*strategy.XTiles+x].Kind {
			case QuadTileCulled:
				continue
			case QuadTilePattern:
				isDirect = is2DScaleTranslation
			case QuadTilePatternWithMask:
				isDirect = false
			}

			r, ok := geom.RectFromPoints(x0, y0, x1, y1).Intersection(clipped)
			if !ok {
				continue
			}
			if isDirect {
				direct = append(direct, batch.QuadSegment{Rect: r, Task: rendertask.InvalidID})
				continue
			}
			task := s.addRenderTaskWithMask(mask, r.Round().ToIntRect().Size(), r.Min)
			indirect = append(indirect, batch.QuadSegment{Rect: r, Task: task})
		}
	}

	if len(direct) > 0 {
		localToDevice := s.localToDevice(mapPrimToRaster, surface.DevicePixelScale)
		s.addPatternPrim(mask.pat, localToDevice.Inverse(), t, localToDevice.MapRect(localRect), clipCoverage,
			mask.pat.IsOpaque, direct)
	}
	if len(indirect) > 0 {
		s.addCompositePrim(mask.pat, true, t, clipCoverage, indirect)
	}
	s.scratch.directSegs, s.scratch.indirectSegs = direct, indirect
}

func (s *frameState) prepareNinePatchQuad(strategy quadStrategy, localRect geom.Rect, clipped geom.IntRect,
	surface *SurfaceInfo, mapPrimToRaster spatial.Mapping, mask maskTask, t quadTarget) {
	clipCoverage := surface.MapToDeviceRect(mask.chain.PicCoverageRect)
	localToDevice := s.localToDevice(mapPrimToRaster, surface.DevicePixelScale)
	devicePrimRect := localToDevice.MapRect(localRect)

	cr, radius := strategy.ClipRect, strategy.Radius
	corner0 := geom.RectFromPoints(cr.Min.X, cr.Min.Y, cr.Min.X+radius.X, cr.Min.Y+radius.Y)
	corner1 := geom.RectFromPoints(cr.Max.X-radius.X, cr.Max.Y-radius.Y, cr.Max.X, cr.Max.Y)

	toPic := surface.MapLocalToSurface
	toPic.SetTargetSpatialNode(t.primNode, s.tree)
	pic0, ok0 := toPic.Map(corner0)
	pic1, ok1 := toPic.Map(corner1)
	if !ok0 || !ok1 {
		return
	}
	s0 := surface.MapToDeviceRect(pic0).RoundOut().ToIntRect()
	s1 := surface.MapToDeviceRect(pic1).RoundOut().ToIntRect()

	xs := [4]int32{s0.Min.X, s0.Max.X, s1.Min.X, s1.Max.X}
	ys := [4]int32{s0.Min.Y, s0.Max.Y, s1.Min.Y, s1.Max.Y}
	slices.Sort(xs[:])
	slices.Sort(ys[:])

	// ClipOut nine-patches are not produced yet, see getPrimRenderStrategy.
	mode := clip.ModeClip

	direct := s.scratch.directSegs[:0]
	indirect := s.scratch.indirectSegs[:0]
	for y := range 3 {
		y0, y1 := ys[y], ys[y+1]
		if y1 <= y0 {
			continue
		}
		for x := range 3 {
			x0, x1 := xs[x], xs[x+1]
			if x1 <= x0 {
				continue
			}
			cell := geom.IntRect{Min: geom.IntPoint{X: x0, Y: y0}, Max: geom.IntPoint{X: x1, Y: y1}}
			r, ok := cell.Intersection(clipped)
			if !ok {
				continue
			}
			if !ninePatchCellNeedsTask(mode, x, y) {
				direct = append(direct, batch.QuadSegment{Rect: r.ToRect(), Task: rendertask.InvalidID})
				continue
			}
			cellMask := mask
			cellMask.needsScissor = false
			task := s.addRenderTaskWithMask(cellMask, r.Size(), intPointF(r.Min))
			indirect = append(indirect, batch.QuadSegment{Rect: r.ToRect(), Task: task})
		}
	}

	if len(direct) > 0 {
		s.addPatternPrim(mask.pat, localToDevice.Inverse(), t, devicePrimRect, clipCoverage, mask.pat.IsOpaque, direct)
	}
	if len(indirect) > 0 {
		s.addCompositePrim(mask.pat, true, t, clipCoverage, indirect)
	}
	s.scratch.directSegs, s.scratch.indirectSegs = direct, indirect
}

// ninePatchCellNeedsTask reports whether cell (x, y) of a 3x3 nine-patch
// grid is touched by the rounded corners. With ClipOut every cell but the
// center may be.
func ninePatchCellNeedsTask(mode clip.Mode, x, y int) bool {
	switch mode {
	case clip.ModeClip:
		return x != 1 && y != 1
	case clip.ModeClipOut:
		return x != 1 || y != 1
	default:
		panic(fmt.Sprintf("bug: unknown clip mode %v", mode))
	}
}

// gridCoords splits [lo, hi] into n cells with rounded inner edges.
func gridCoords(lo, hi float32, n int) []float32 {
	out := make([]float32, 0, n+1)
	out = append(out, lo)
	step := (hi - lo) / float32(n)
	for i := 1; i < n; i++ {
		out = append(out, math32.Round(lo+float32(i)*step))
	}
	return append(out, hi)
}

// localToDevice returns the mapping from a primitive's local space into
// device pixels. Only scale-translation mappings are split into direct
// cells, so anything else is a bug.
func (s *frameState) localToDevice(m spatial.Mapping, dps float32) geom.ScaleOffset {
	so, ok := mappingScaleOffset(m)
	if !ok {
		panic("bug: direct quad cells need a scale-translation mapping")
	}
	return so.Then(geom.ScaleOffsetFromScale(geom.Vec(dps, dps)))
}

func mappingScaleOffset(m spatial.Mapping) (geom.ScaleOffset, bool) {
	switch m.Kind {
	case spatial.MappingLocal:
		return geom.IdentityScaleOffset(), true
	case spatial.MappingScaleOffset:
		return m.ScaleOffset, true
	case spatial.MappingTransform:
		return m.Transform.As2DScaleOffset()
	default:
		panic(fmt.Sprintf("bug: unknown mapping kind %v", m.Kind))
	}
}

func isAxisAligned(m spatial.Mapping) bool {
	switch m.Kind {
	case spatial.MappingLocal, spatial.MappingScaleOffset:
		return true
	case spatial.MappingTransform:
		return m.Transform.IsAxisAligned2D()
	default:
		panic(fmt.Sprintf("bug: unknown mapping kind %v", m.Kind))
	}
}

func intPointF(p geom.IntPoint) geom.Point {
	return geom.Pt(float32(p.X), float32(p.Y))
}

// maskTask holds what every masked render task of one quad shares.
type maskTask struct {
	pat          Pattern
	chain        *clip.ChainInstance
	primNode     spatial.NodeIndex
	rasterNode   spatial.NodeIndex
	address      gpucache.BufferAddress
	transform    spatial.TransformPaletteID
	aa           geom.EdgeMask
	flags        batch.QuadFlags
	dps          float32
	needsScissor bool
}

// addRenderTaskWithMask adds a task drawing the quad into an offscreen
// target of size at origin, followed by its clip mask.
func (s *frameState) addRenderTaskWithMask(m maskTask, size geom.IntSize, origin geom.Point) rendertask.ID {
	id := s.graph.Add(rendertask.NewPrimTask(rendertask.Unallocated(size), rendertask.PrimTask{
		PrimAddress:      m.address,
		TransformID:      m.transform,
		EdgeFlags:        m.aa,
		QuadFlags:        uint8(m.flags),
		PrimSpatialNode:  m.primNode,
		RasterNode:       m.rasterNode,
		ContentOrigin:    origin,
		DevicePixelScale: m.dps,
		ClipRange:        m.chain.ClipsRange,
		NeedsScissorRect: m.needsScissor,
	}))
	s.graph.Get(id).AddSubPass(rendertask.MaskSubPass{
		ClipRange:       m.chain.ClipsRange,
		PrimSpatialNode: m.primNode,
		PrimAddress:     m.address,
	})
	s.builder.addChildRenderTask(id, s.graph)
	return id
}

// addPatternPrim draws the unmasked cells of a split quad in device space.
func (s *frameState) addPatternPrim(pat Pattern, patternTransform geom.ScaleOffset, t quadTarget,
	rect, clipRect geom.Rect, opaque bool, segs []batch.QuadSegment) {
	addr := writePrimBlocks(&s.gpuBuf.F, rect, clipRect, pat.BaseColor, segs, patternTransform)
	flags := batch.QuadIgnoreDevicePixelScale | batch.QuadApplyRenderTaskClip
	if opaque {
		flags |= batch.QuadIsOpaque
	}
	s.pushQuad(t, batch.QuadCommand{
		PrimAddressF: addr,
		TransformID:  spatial.IdentityTransformID,
		QuadFlags:    flags,
		EdgeFlags:    geom.EdgeNone,
		SrcTask:      rendertask.InvalidID,
		Segments:     slices.Clone(segs),
	})
}

// addCompositePrim draws the cells rendered into tasks back into the
// surface.
func (s *frameState) addCompositePrim(pat Pattern, masked bool, t quadTarget, rect geom.Rect, segs []batch.QuadSegment) {
	white := prim.Premultiply(gputypes.Color{R: 1, G: 1, B: 1, A: 1})
	addr := writePrimBlocks(&s.gpuBuf.F, rect, rect, white, segs, geom.IdentityScaleOffset())
	flags := batch.QuadIgnoreDevicePixelScale | batch.QuadApplyRenderTaskClip
	if pat.IsOpaque && !masked {
		flags |= batch.QuadIsOpaque
	}
	s.pushQuad(t, batch.QuadCommand{
		PrimAddressF: addr,
		TransformID:  spatial.IdentityTransformID,
		QuadFlags:    flags,
		EdgeFlags:    geom.EdgeNone,
		SrcTask:      rendertask.InvalidID,
		Segments:     slices.Clone(segs),
	})
}

func (s *frameState) pushQuad(t quadTarget, q batch.QuadCommand) {
	s.cmdBuffers.Get(t.pic.cmdBuffer).Add(batch.Command{
		Kind:       batch.CommandQuad,
		Prim:       t.ref,
		VisMask:    t.visMask,
		GPUAddress: gpucache.InvalidAddress,
		Quad:       q,
	}, t.primNode)
}

// writePrimBlocks writes the float blocks of a quad: its rect, clip rect,
// pattern transform and color, then a rect and task address per segment.
func writePrimBlocks(buf *gpucache.Buffer[float32], primRect, clipRect geom.Rect, color gpucache.Block,
	segs []batch.QuadSegment, patternTransform geom.ScaleOffset) gpucache.BufferAddress {
	w := buf.WriteBlocks(4 + 2*len(segs))
	w.Push(rectBlock(primRect))
	w.Push(rectBlock(clipRect))
	w.Push(patternTransform.GPUBlock())
	w.Push(color)
	for _, seg := range segs {
		w.Push(rectBlock(seg.Rect))
		if seg.Task == rendertask.InvalidID {
			w.Push([4]float32{})
		} else {
			w.Push([4]float32{float32(seg.Task), 0, 0, 0})
		}
	}
	return w.Finish()
}

func rectBlock(r geom.Rect) [4]float32 {
	return [4]float32{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y}
}

// addQuadToBatch turns one quad, or one segment of it, into batch
// instances. Quads with anti-aliased edges large enough to split draw
// each edge as its own instance around an opaque-capable center.
func addQuadToBatch(b *batch.Builder, q *batch.QuadCommand, ibuf *gpucache.Buffer[int32], zID composite.ZBufferID,
	dstTask rendertask.ID, segmentIndex uint8, srcTexture batch.TextureSource, bounds geom.Rect) {
	w := ibuf.WriteBlocks(1)
	w.Push([4]int32{int32(q.TransformID), int32(zID), int32(dstTask), 0})
	addrI := w.Finish()

	textures := batch.Textures{srcTexture, batch.TextureInvalid, batch.TextureInvalid}
	primKey := batch.Key{Kind: batch.KindQuad, Blend: batch.BlendPremultipliedAlpha, Textures: textures}
	if q.QuadFlags&batch.QuadIsOpaque != 0 {
		primKey.Blend = batch.BlendNone
	}
	aaKey := batch.Key{Kind: batch.KindQuad, Blend: batch.BlendPremultipliedAlpha, Textures: textures}

	inst := batch.QuadInstance{
		PrimAddressI: addrI,
		PrimAddressF: q.PrimAddressF,
		ZID:          zID,
		EdgeFlags:    q.EdgeFlags,
		QuadFlags:    q.QuadFlags,
		Part:         batch.PartAll,
		SegmentIndex: segmentIndex,
	}

	switch {
	case q.EdgeFlags == geom.EdgeNone:
		b.Add(primKey, bounds, zID, inst.Encode())
	case q.QuadFlags&batch.QuadUseAASegments != 0:
		// The part order matches the shader's edge table, where the right
		// and top entries are swapped.
		for _, e := range [...]struct {
			edge geom.EdgeMask
			part batch.QuadPart
		}{
			{geom.EdgeLeft, batch.PartLeft},
			{geom.EdgeRight, batch.PartTop},
			{geom.EdgeTop, batch.PartRight},
			{geom.EdgeBottom, batch.PartBottom},
		} {
			if q.EdgeFlags&e.edge != 0 {
				inst.Part = e.part
				b.Add(aaKey, bounds, zID, inst.Encode())
			}
		}
		inst.Part = batch.PartCenter
		b.Add(primKey, bounds, zID, inst.Encode())
	default:
		b.Add(aaKey, bounds, zID, inst.Encode())
	}
}
