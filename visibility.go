package wr

import (
	"log/slog"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/internal/imagetiling"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/resource"
	"github.com/gogpu/wr/spatial"
	"github.com/gogpu/wr/tilecache"
)

// DebugItem is a rect of a debug overlay in device pixels.
type DebugItem struct {
	Rect   geom.Rect
	Color  gputypes.Color
	Border gputypes.Color
}

// obscureImageMinSize is the device size above which DebugObscureImages
// covers an image. Smaller images are usually UI elements.
const obscureImageMinSize = 70

// visibilityPass walks the picture tree once per frame and decides which
// primitive instances are visible.
type visibilityPass struct {
	store    *prim.Store
	tree     *spatial.Tree
	surfaces []SurfaceInfo

	screenWorld      geom.Rect
	devicePixelScale float32
	frame            uint64
	debug            DebugFlags
	chase            ChasePrimitive

	clips        *clip.Store
	clipStack    *clip.ChainStack
	surfaceStack []prim.SurfaceIndex
	tileCache    *tilecache.Instance
	tileCaches   map[prim.SliceID]*tilecache.Instance
	resources    ResourceCache
	gpu          *gpucache.Cache

	debugItems []DebugItem
	visible    int
}

// pictureScope is the per-picture state shared by the picture's
// primitives.
type pictureScope struct {
	surfaceIndex       prim.SurfaceIndex
	surface            *SurfaceInfo
	mapLocalToSurface  spatial.SpaceMapper
	mapSurfaceToWorld  spatial.SpaceMapper
	worldCulling       geom.Rect
	applyLocalClipRect bool
	// surfaceRect accumulates the visible area of the picture in surface
	// space.
	surfaceRect geom.Rect
}

func (v *visibilityPass) pushSurface(index prim.SurfaceIndex, shared []clip.DataHandle) {
	v.clipStack.PushSurface(shared)
	v.surfaceStack = append(v.surfaceStack, index)
}

func (v *visibilityPass) popSurface() {
	v.clipStack.PopSurface()
	v.surfaceStack = v.surfaceStack[:len(v.surfaceStack)-1]
}

// updatePicture updates the visibility of every primitive of a picture
// and its children. It returns the picture's visible rect in the parent
// surface, or false when the picture has its own surface or nothing of
// it is visible.
func (v *visibilityPass) updatePicture(index prim.PictureIndex, parentSurface prim.SurfaceIndex, worldCulling geom.Rect) (geom.Rect, bool) {
	pic := v.store.Picture(index)
	surfaceIndex := parentSurface
	isComposite := pic.RasterConfig != nil
	if isComposite {
		surfaceIndex = pic.RasterConfig.Surface
	}

	outerTileCache := v.tileCache
	if slice, ok := pic.TileCacheSlice(); ok {
		tc, ok := v.tileCaches[slice]
		if !ok {
			panic("bug: non-existent tile cache")
		}
		delete(v.tileCaches, slice)
		worldCulling = tc.PreUpdate(pic.EstimatedLocalRect, surfaceIndex, &tilecache.PreUpdateContext{
			Tree:             v.tree,
			ScreenWorldRect:  v.screenWorld,
			DevicePixelScale: v.devicePixelScale,
			Frame:            v.frame,
		})
		v.pushSurface(surfaceIndex, tc.SharedClips)
		v.tileCache = tc
	} else if isComposite {
		v.pushSurface(surfaceIndex, nil)
	}

	surface := &v.surfaces[surfaceIndex]
	scope := &pictureScope{
		surfaceIndex:       surfaceIndex,
		surface:            surface,
		mapLocalToSurface:  surface.MapLocalToSurface,
		mapSurfaceToWorld:  spatial.NewSpaceMapperWithTarget(spatial.RootNode, surface.SurfaceSpatialNode, v.screenWorld, v.tree),
		worldCulling:       worldCulling,
		applyLocalClipRect: pic.ApplyLocalClipRect,
	}

	list := &pic.List
	for ci := range list.Clusters {
		c := &list.Clusters[ci]
		insts := list.ClusterInstances(c)
		if c.Flags&prim.ClusterIsVisible == 0 {
			// Stale state from an earlier frame must not survive a cluster
			// turning invisible.
			for i := range insts {
				insts[i].Reset()
			}
			continue
		}
		scope.mapLocalToSurface.SetTargetSpatialNode(c.SpatialNode, v.tree)
		for i := range insts {
			v.updatePrimitive(scope, c, index, &insts[i])
		}
	}

	if isComposite {
		v.popSurface()
	}

	rc := pic.RasterConfig
	if rc == nil {
		parent := &v.surfaces[parentSurface]
		toParent := spatial.NewSpaceMapperWithTarget(parent.SurfaceSpatialNode, surface.SurfaceSpatialNode, geom.MaxRect(), v.tree)
		return toParent.Map(scope.surfaceRect)
	}

	surfaceRect := scope.surfaceRect
	if pic.Options.InflateIfRequired {
		snap := spatial.NewSpaceSnapperWithTarget(surface.RasterSpatialNode, pic.SpatialNode, surface.DevicePixelScale, v.tree)
		surfaceRect = rc.CompositeMode.InflatePictureRect(surfaceRect, surface.ScaleFactors)
		surfaceRect = snap.Snap(surfaceRect)
	}
	pic.PreciseLocalRect = surfaceRect
	if pic.PreciseLocalRect != pic.PrevPreciseLocalRect {
		// Drop shadow data is derived from the precise rect.
		if isDropShadow(&rc.CompositeMode) {
			for i := range pic.ExtraGPUHandles {
				v.gpu.Invalidate(&pic.ExtraGPUHandles[i])
			}
		}
		pic.SegmentsAreValid = false
		pic.PrevPreciseLocalRect = pic.PreciseLocalRect
	}

	if rc.CompositeMode.Kind == prim.CompositeTileCache {
		tc := v.tileCache
		v.tileCache = outerTileCache
		tc.PostUpdate()
		v.tileCaches[tc.Slice] = tc
	}
	return geom.Rect{}, false
}

func isDropShadow(m *prim.CompositeMode) bool {
	return m.Kind == prim.CompositeFilter && m.Filter.Kind == prim.FilterDropShadows
}

// updatePrimitive decides the visibility of one instance of picture pic.
func (v *visibilityPass) updatePrimitive(scope *pictureScope, c *prim.Cluster, pic prim.PictureIndex, inst *prim.Instance) {
	inst.Reset()

	chased := v.chase.Matches(inst, v.store.LocalRect(inst))
	if chased {
		Logger().Debug("chase: preparing", "prim", inst.ID, "picture", pic, "kind", inst.Kind)
	}

	var (
		passthrough  bool
		localRect    geom.Rect
		shadowedRect geom.Rect
	)
	if inst.Kind == prim.KindPicture {
		child := v.store.Picture(inst.Picture)
		if !child.IsVisible() {
			return
		}
		passthrough = child.IsPassthrough()
		if passthrough {
			v.clipStack.PushClip(inst.ClipSet.ClipChain, v.clips)
		}
		childRect, ok := v.updatePicture(inst.Picture, scope.surfaceIndex, scope.worldCulling)
		if passthrough {
			v.clipStack.PopClip()
		}

		if chased && child.EstimatedLocalRect != child.PreciseLocalRect {
			Logger().Debug("chase: estimate adjusted", "prim", inst.ID,
				"estimated", child.EstimatedLocalRect.String(), "precise", child.PreciseLocalRect.String())
		}

		shadowedRect = child.PreciseLocalRect
		if rc := child.RasterConfig; rc != nil {
			if isDropShadow(&rc.CompositeMode) {
				for _, s := range rc.CompositeMode.Filter.Shadows {
					shadowedRect = shadowedRect.Union(child.PreciseLocalRect.Translate(s.Offset))
				}
			}
		} else if ok {
			scope.surfaceRect = scope.surfaceRect.Union(childRect)
		}
		localRect = child.PreciseLocalRect
	} else {
		t := v.store.Template(inst.Template)
		localRect, shadowedRect = t.PrimRect, t.PrimRect
	}

	if passthrough {
		// The children of a pass-through picture carry their own masks.
		inst.Vis.State = prim.Detailed(prim.AllVisible)
		return
	}

	if localRect.Width() <= 0 || localRect.Height() <= 0 {
		v.chaseLog(chased, inst, "culled for zero local rectangle")
		return
	}

	inflation := scope.surface.InflationFactor
	local, ok := shadowedRect.Inflate(inflation, inflation).Intersection(inst.ClipSet.LocalClipRect)
	if !ok {
		v.chaseLog(chased, inst, "culled for being out of the local clip rectangle",
			"local_clip", inst.ClipSet.LocalClipRect.String())
		return
	}

	v.clipStack.PushClip(inst.ClipSet.ClipChain, v.clips)
	v.clips.SetActiveClips(inst.ClipSet.LocalClipRect, c.SpatialNode, scope.surface.SurfaceSpatialNode,
		v.clipStack.CurrentClips(), v.tree)
	chain, ok := v.clips.BuildClipChainInstance(local, &scope.mapLocalToSurface, &scope.mapSurfaceToWorld, scope.worldCulling)
	v.clipStack.PopClip()
	if !ok {
		v.chaseLog(chased, inst, "unable to build the clip chain, skipping")
		return
	}
	inst.Vis.ClipChain = chain

	if chased {
		Logger().Debug("chase: clip chain", "prim", inst.ID,
			"clips", chain.ClipsRange.Count, "applied", scope.applyLocalClipRect,
			"pic_clip_rect", chain.PicClipRect.String(), "pic_node", chain.PicSpatialNode)
	}

	if scope.applyLocalClipRect {
		inst.Vis.CombinedLocalClipRect = chain.LocalClipRect
	} else {
		inst.Vis.CombinedLocalClipRect = inst.ClipSet.LocalClipRect
	}
	if inst.Vis.CombinedLocalClipRect.IsEmpty() {
		v.chaseLog(chased, inst, "culled for zero local clip rectangle")
		return
	}

	visibleRect, ok := inst.Vis.CombinedLocalClipRect.Intersection(local)
	if !ok {
		v.chaseLog(chased, inst, "culled for zero visible rectangle")
		return
	}
	if r, ok := scope.mapLocalToSurface.Map(visibleRect); ok {
		scope.surfaceRect = scope.surfaceRect.Union(r)
	}

	if v.tileCache != nil {
		v.updateTileCacheDependencies(scope, c, inst, localRect)
	} else if _, ok := clippedWorldRect(chain.PicClipRect, scope.worldCulling, &scope.mapSurfaceToWorld); ok {
		inst.Vis.State = prim.Detailed(prim.AllVisible)
	} else {
		inst.Vis.State = prim.Culled()
	}

	switch inst.Vis.State.Kind {
	case prim.VisibilityUnset:
		panic("bug: invalid visibility state")
	case prim.VisibilityCulled:
		v.chaseLog(chased, inst, "culled by the world culling rect")
		return
	case prim.VisibilityCoarse, prim.VisibilityDetailed:
	}

	v.addDebugRects(scope, inst)
	if chased {
		Logger().Debug("chase: visible", "prim", inst.ID, "combined_local_clip", inst.Vis.CombinedLocalClipRect.String())
	}

	v.updatePostVisibility(scope, inst, c.SpatialNode)
	if inst.Vis.IsVisible() {
		v.visible++
	}
}

func (v *visibilityPass) chaseLog(chased bool, inst *prim.Instance, msg string, args ...any) {
	if !chased {
		return
	}
	Logger().Debug("chase: "+msg, append([]any{slog.Any("prim", inst.ID)}, args...)...)
}

// updateTileCacheDependencies records the primitive in the active tile
// cache, which decides its coarse visibility. Rects are moved into the
// tile cache's picture space first when the primitive draws into a
// nested surface.
func (v *visibilityPass) updateTileCacheDependencies(scope *pictureScope, c *prim.Cluster, inst *prim.Instance, localRect geom.Rect) {
	tc := v.tileCache
	clipRect := inst.Vis.ClipChain.PicClipRect
	if scope.surface.SurfaceSpatialNode != tc.SpatialNode {
		toCache := spatial.NewSpaceMapperWithTarget(tc.SpatialNode, scope.surface.SurfaceSpatialNode, geom.MaxRect(), v.tree)
		r, ok := toCache.Map(clipRect)
		if !ok {
			inst.Vis.State = prim.Culled()
			return
		}
		clipRect = r
	}

	dep := tilecache.PrimDependency{
		Kind:        inst.Kind,
		Template:    inst.Template,
		Rect:        localRect,
		ClipRect:    clipRect,
		SpatialNode: c.SpatialNode,
	}
	opaque := false
	if inst.Kind != prim.KindPicture {
		t := v.store.Template(inst.Template)
		dep.Color = t.Color
		dep.Image = t.Image.Key
		opaque = t.IsOpaque() && !inst.Vis.ClipChain.NeedsMask &&
			scope.surfaceIndex == tc.Surface
	}
	res := tc.UpdatePrimDependencies(dep, opaque)
	inst.Vis.State = res.State
	inst.Vis.Flags |= res.Flags
}

// clippedWorldRect maps a picture-space rect to world space and clips it
// to the culling rect.
func clippedWorldRect(picClipRect, worldCulling geom.Rect, toWorld *spatial.SpaceMapper) (geom.Rect, bool) {
	r, ok := toWorld.Map(picClipRect)
	if !ok {
		return geom.Rect{}, false
	}
	return r.Intersection(worldCulling)
}

func (v *visibilityPass) addDebugRects(scope *pictureScope, inst *prim.Instance) {
	switch {
	case v.debug&DebugPrimitives != 0:
		color := inst.Kind.DebugColor()
		if color.A == 0 {
			return
		}
		r, ok := clippedWorldRect(inst.Vis.ClipChain.PicClipRect, scope.worldCulling, &scope.mapSurfaceToWorld)
		if !ok {
			return
		}
		border := color
		border.A *= 0.5
		v.debugItems = append(v.debugItems, DebugItem{
			Rect:   r.Scale(v.devicePixelScale, v.devicePixelScale),
			Color:  color,
			Border: border,
		})
	case v.debug&DebugObscureImages != 0:
		if !inst.Kind.IsImage() {
			return
		}
		r, ok := clippedWorldRect(inst.Vis.ClipChain.PicClipRect, scope.worldCulling, &scope.mapSurfaceToWorld)
		if !ok {
			return
		}
		r = r.Scale(v.devicePixelScale, v.devicePixelScale)
		if r.Width() > obscureImageMinSize && r.Height() > obscureImageMinSize {
			purple := prim.DebugPurple()
			v.debugItems = append(v.debugItems, DebugItem{Rect: r, Color: purple, Border: purple})
		}
	}
}

// updatePostVisibility requests the resources of a visible primitive.
func (v *visibilityPass) updatePostVisibility(scope *pictureScope, inst *prim.Instance, primNode spatial.NodeIndex) {
	switch inst.Kind {
	case prim.KindPicture:
		pic := v.store.Picture(inst.Picture)
		if rc := pic.RasterConfig; rc != nil {
			rc.ClippedBoundingRect, _ = clippedWorldRect(inst.Vis.ClipChain.PicClipRect, scope.worldCulling, &scope.mapSurfaceToWorld)
		}
	case prim.KindImage:
		v.requestImage(scope, inst, primNode)
	case prim.KindYuvImage, prim.KindImageBorder:
		t := v.store.Template(inst.Template)
		if _, ok := v.resources.GetImageProperties(t.Image.Key); ok {
			v.resources.RequestImage(resource.ImageRequest{Key: t.Image.Key, Rendering: t.Image.Rendering}, v.gpu)
		}
	case prim.KindTextRun:
		// Glyphs are requested during prepare, once the tile cache knows
		// whether the text lands on an opaque surface.
	case prim.KindRectangle, prim.KindLineDecoration, prim.KindNormalBorder,
		prim.KindLinearGradient, prim.KindRadialGradient, prim.KindConicGradient,
		prim.KindClear, prim.KindBackdrop:
	default:
		panic("bug: unknown primitive kind " + inst.Kind.String())
	}
}

// requestImage requests an image, or the visible tiles of a tiled image.
// A tiled image without visible tiles is made invisible.
func (v *visibilityPass) requestImage(scope *pictureScope, inst *prim.Instance, primNode spatial.NodeIndex) {
	t := v.store.Template(inst.Template)
	props, ok := v.resources.GetImageProperties(t.Image.Key)
	if !ok {
		return
	}
	req := resource.ImageRequest{Key: t.Image.Key, Rendering: t.Image.Rendering}
	if !props.IsTiled() {
		v.resources.RequestImage(req, v.gpu)
		return
	}

	img := v.store.Image(inst.Image)
	img.VisibleTiles = img.VisibleTiles[:0]
	// Repetitions can reach past the primitive rect.
	tight, _ := inst.Vis.CombinedLocalClipRect.Intersection(t.PrimRect)
	img.TightLocalClipRect = tight

	visible := computeConservativeVisibleRect(&inst.Vis.ClipChain, scope.worldCulling, primNode, v.tree)
	baseEdges := imagetiling.EdgeFlagsForSpacing(t.Image.TileSpacing)
	t.MayNeedRepetition = false

	for _, rep := range imagetiling.Repetitions(t.PrimRect, visible, t.Image.Stride()) {
		edges := baseEdges | rep.EdgeFlags
		imageRect := geom.RectFromOriginSize(rep.Origin, t.Image.StretchSize)
		for _, tile := range imagetiling.Tiles(imageRect, visible, props.VisibleRect, props.Tiling) {
			v.resources.RequestImage(req.WithTile(tile.Offset), v.gpu)
			img.VisibleTiles = append(img.VisibleTiles, prim.VisibleImageTile{
				TileOffset:    tile.Offset,
				EdgeFlags:     tile.EdgeFlags & edges,
				LocalRect:     tile.Rect,
				LocalClipRect: tight,
			})
		}
	}

	if len(img.VisibleTiles) == 0 {
		inst.ClearVisibility()
	}
}

// computeConservativeVisibleRect returns the part of a primitive's local
// space that can be seen through worldCulling. It falls back to the clip
// chain's local clip rect when a transform cannot be inverted.
func computeConservativeVisibleRect(chain *clip.ChainInstance, worldCulling geom.Rect, primNode spatial.NodeIndex, tree *spatial.Tree) geom.Rect {
	picToWorld := spatial.NewSpaceMapperWithTarget(spatial.RootNode, chain.PicSpatialNode, worldCulling, tree)
	localToPic := spatial.NewSpaceMapperWithTarget(chain.PicSpatialNode, primNode, geom.MaxRect(), tree)

	picCulling, ok := picToWorld.Unmap(worldCulling)
	if !ok {
		return chain.LocalClipRect
	}
	picCulling, ok = picCulling.Intersection(chain.PicClipRect)
	if !ok {
		return geom.Rect{}
	}
	local, ok := localToPic.Unmap(picCulling)
	if !ok {
		return chain.LocalClipRect
	}
	return local
}
