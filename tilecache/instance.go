// Package tilecache implements picture caching. A picture cache slice is
// split into fixed-size tiles; each tile records which primitives it
// depends on so that unchanged tiles are composited from their cached
// texture instead of being redrawn.
package tilecache

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/spatial"
)

// DefaultTileSize is the tile size in device pixels.
var DefaultTileSize = geom.IntSize{Width: 1024, Height: 512}

// BackdropKind says how a slice background is produced.
type BackdropKind uint8

const (
	BackdropNone BackdropKind = iota
	// BackdropColor is a solid color covering the whole slice.
	BackdropColor
	// BackdropClear is a clear primitive covering the whole slice.
	BackdropClear
)

// String returns the backdrop kind name.
func (k BackdropKind) String() string {
	switch k {
	case BackdropNone:
		return "None"
	case BackdropColor:
		return "Color"
	case BackdropClear:
		return "Clear"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Backdrop describes an opaque primitive under all content of a slice.
type Backdrop struct {
	Kind  BackdropKind
	Color gputypes.Color
	// Rect is the picture-space rect the backdrop covers.
	Rect geom.Rect
}

// Params configures a new tile cache.
type Params struct {
	Slice       prim.SliceID
	SpatialNode spatial.NodeIndex
	// BackgroundColor, if set, is known to be drawn under the slice.
	BackgroundColor *gputypes.Color
	SharedClips     []clip.DataHandle
	// TileSize overrides DefaultTileSize when non-empty.
	TileSize geom.IntSize
}

// PreUpdateContext is the frame state PreUpdate reads.
type PreUpdateContext struct {
	Tree             *spatial.Tree
	ScreenWorldRect  geom.Rect
	DevicePixelScale float32
	Frame            uint64
}

// UpdateResult is what UpdatePrimDependencies decided for a primitive.
type UpdateResult struct {
	State prim.VisibilityState
	Flags prim.VisibilityFlags
}

// Instance is the picture cache of one slice.
type Instance struct {
	Slice           prim.SliceID
	SpatialNode     spatial.NodeIndex
	BackgroundColor *gputypes.Color
	SharedClips     []clip.DataHandle
	Backdrop        Backdrop

	// Tiles holds every tile of the current grid.
	Tiles map[TileOffset]*Tile

	// DirtyRegion lists the world rects of the tiles redrawn this frame.
	DirtyRegion *DirtyRegion

	// Surface is the surface of the picture that owns the cache.
	Surface prim.SurfaceIndex

	tileSize      geom.IntSize
	localTileSize geom.Size
	localRect     geom.Rect
	// localVisibleRect is the visible part of localRect.
	localVisibleRect geom.Rect
	tileRect         [2]TileOffset // inclusive min, exclusive max
	invalidated      *Bitmap
	forceInvalidate  bool
	frame            uint64
	devicePixelScale float32
	mapLocalToWorld  spatial.SpaceMapper
}

// New creates an empty tile cache. Every tile is invalid until its
// first PostUpdate.
func New(p Params) *Instance {
	size := p.TileSize
	if size.IsEmpty() {
		size = DefaultTileSize
	}
	slogger().Info("tilecache: new slice", "slice", p.Slice, "tile_size", size)
	return &Instance{
		Slice:           p.Slice,
		SpatialNode:     p.SpatialNode,
		BackgroundColor: p.BackgroundColor,
		SharedClips:     p.SharedClips,
		Tiles:           make(map[TileOffset]*Tile),
		DirtyRegion:     NewDirtyRegion(spatial.RootNode),
		tileSize:        size,
	}
}

// TileSize returns the tile size in device pixels.
func (c *Instance) TileSize() geom.IntSize { return c.tileSize }

// SetTileSize changes the tile size and invalidates every tile.
func (c *Instance) SetTileSize(size geom.IntSize) {
	if size.IsEmpty() || size == c.tileSize {
		return
	}
	c.tileSize = size
	c.Tiles = make(map[TileOffset]*Tile)
}

// Invalidate forces every visible tile to be redrawn next frame.
func (c *Instance) Invalidate() { c.forceInvalidate = true }

// LocalVisibleRect returns the visible part of the slice in picture
// space, as computed by the last PreUpdate.
func (c *Instance) LocalVisibleRect() geom.Rect { return c.localVisibleRect }

// PreUpdate prepares the tile grid for picRect and returns the world
// culling rect primitives of the slice are tested against. It returns
// an empty rect when the slice is off screen.
func (c *Instance) PreUpdate(picRect geom.Rect, surface prim.SurfaceIndex, ctx *PreUpdateContext) geom.Rect {
	c.Surface = surface
	c.frame = ctx.Frame
	c.localRect = picRect
	c.Backdrop = Backdrop{}
	c.DirtyRegion.Clear()

	if c.devicePixelScale != ctx.DevicePixelScale {
		if c.devicePixelScale != 0 {
			c.forceInvalidate = true
		}
		c.devicePixelScale = ctx.DevicePixelScale
	}
	dps := ctx.DevicePixelScale
	if dps <= 0 {
		dps = 1
	}
	c.localTileSize = geom.Sz(float32(c.tileSize.Width)/dps, float32(c.tileSize.Height)/dps)
	c.mapLocalToWorld = spatial.NewSpaceMapperWithTarget(spatial.RootNode, c.SpatialNode, ctx.ScreenWorldRect, ctx.Tree)

	worldRect, ok := c.mapLocalToWorld.Map(picRect)
	if !ok {
		return c.markOffscreen()
	}
	worldVisible, ok := worldRect.Intersection(ctx.ScreenWorldRect)
	if !ok {
		return c.markOffscreen()
	}
	localVisible, ok := c.mapLocalToWorld.Unmap(worldVisible)
	if !ok {
		localVisible = picRect
	}
	localVisible, ok = localVisible.Intersection(picRect)
	if !ok {
		return c.markOffscreen()
	}
	c.localVisibleRect = localVisible

	c.tileRect = c.tileRange(localVisible)
	for off := range c.Tiles {
		if !c.inTileRect(off) {
			delete(c.Tiles, off)
		}
	}
	for y := c.tileRect[0].Y; y < c.tileRect[1].Y; y++ {
		for x := c.tileRect[0].X; x < c.tileRect[1].X; x++ {
			off := TileOffset{X: x, Y: y}
			t, ok := c.Tiles[off]
			if !ok {
				t = newTile(off)
				c.Tiles[off] = t
			}
			local := c.tileLocalRect(off)
			world, ok := c.mapLocalToWorld.Map(local)
			if !ok {
				world = geom.Rect{}
			}
			t.preUpdate(local, world, ctx.ScreenWorldRect, c.frame)
		}
	}
	w := int(c.tileRect[1].X - c.tileRect[0].X)
	h := int(c.tileRect[1].Y - c.tileRect[0].Y)
	c.invalidated = NewBitmap(w, h)

	slogger().Debug("tilecache: pre-update",
		"slice", c.Slice, "tiles", len(c.Tiles), "local_visible", localVisible.String())
	return worldVisible
}

func (c *Instance) markOffscreen() geom.Rect {
	c.localVisibleRect = geom.Rect{}
	c.tileRect = [2]TileOffset{}
	c.invalidated = nil
	for _, t := range c.Tiles {
		t.IsVisible = false
	}
	return geom.Rect{}
}

func (c *Instance) tileRange(r geom.Rect) [2]TileOffset {
	return [2]TileOffset{
		{X: int32(math32.Floor(r.Min.X / c.localTileSize.Width)), Y: int32(math32.Floor(r.Min.Y / c.localTileSize.Height))},
		{X: int32(math32.Ceil(r.Max.X / c.localTileSize.Width)), Y: int32(math32.Ceil(r.Max.Y / c.localTileSize.Height))},
	}
}

func (c *Instance) inTileRect(off TileOffset) bool {
	return off.X >= c.tileRect[0].X && off.X < c.tileRect[1].X &&
		off.Y >= c.tileRect[0].Y && off.Y < c.tileRect[1].Y
}

func (c *Instance) tileLocalRect(off TileOffset) geom.Rect {
	return geom.NewRect(
		float32(off.X)*c.localTileSize.Width,
		float32(off.Y)*c.localTileSize.Height,
		c.localTileSize.Width,
		c.localTileSize.Height,
	)
}

// UpdatePrimDependencies records a visible primitive in every tile its
// picture-space clip rect touches. The primitive is Coarse if it touches
// a tile, Culled otherwise. A primitive that is opaque and covers the
// whole visible slice becomes the backdrop.
func (c *Instance) UpdatePrimDependencies(dep PrimDependency, opaque bool) UpdateResult {
	rect, ok := dep.ClipRect.Intersection(c.localVisibleRect)
	if !ok {
		return UpdateResult{State: prim.Culled()}
	}

	var flags prim.VisibilityFlags
	if opaque && rect.ContainsBox(c.localVisibleRect) {
		kind := BackdropColor
		if dep.Kind == prim.KindClear {
			kind = BackdropClear
		}
		c.Backdrop = Backdrop{Kind: kind, Color: dep.Color, Rect: dep.ClipRect}
		flags |= prim.IsBackdrop
	}

	r := c.tileRange(rect)
	touched := false
	for y := max(r[0].Y, c.tileRect[0].Y); y < min(r[1].Y, c.tileRect[1].Y); y++ {
		for x := max(r[0].X, c.tileRect[0].X); x < min(r[1].X, c.tileRect[1].X); x++ {
			t := c.Tiles[TileOffset{X: x, Y: y}]
			if t == nil || !t.IsVisible || !t.LocalRect.Intersects(rect) {
				continue
			}
			if flags&prim.IsBackdrop != 0 {
				// Everything under the backdrop is hidden.
				t.Current.clear()
			}
			t.Current.Prims = append(t.Current.Prims, dep)
			if opaque && rect.ContainsBox(t.LocalRect) {
				t.IsOpaque = true
			}
			touched = true
		}
	}
	if !touched {
		return UpdateResult{State: prim.Culled()}
	}
	return UpdateResult{State: prim.Coarse(rect), Flags: flags}
}

// PostUpdate decides which tiles are redrawn and fills the dirty region
// with their world rects.
func (c *Instance) PostUpdate() {
	force := c.forceInvalidate
	c.forceInvalidate = false

	dirty := c.sortedTiles()
	n := 0
	for _, t := range dirty {
		if t.postUpdate(force) {
			c.invalidated.Mark(int(t.Offset.X-c.tileRect[0].X), int(t.Offset.Y-c.tileRect[0].Y))
			dirty[n] = t
			n++
		}
	}
	dirty = dirty[:n]
	for i, t := range dirty {
		c.DirtyRegion.Add(t.WorldRect)
		t.DirtyIndex = i
	}
	if c.DirtyRegion.IsCollapsed() {
		for _, t := range dirty {
			t.DirtyIndex = 0
		}
	}

	slogger().Debug("tilecache: post-update",
		"slice", c.Slice, "dirty_tiles", len(dirty), "collapsed", c.DirtyRegion.IsCollapsed())
}

// DirtyTiles returns the tiles redrawn this frame in row-major order.
func (c *Instance) DirtyTiles() []*Tile {
	var out []*Tile
	if c.invalidated == nil {
		return nil
	}
	c.invalidated.ForEach(func(tx, ty int) {
		off := TileOffset{X: c.tileRect[0].X + int32(tx), Y: c.tileRect[0].Y + int32(ty)}
		out = append(out, c.Tiles[off])
	})
	return out
}

// TileVisibilityMask returns the dirty region bit a tile renders.
func (c *Instance) TileVisibilityMask(t *Tile) prim.VisibilityMask {
	if t.DirtyIndex < 0 {
		return prim.NotVisible
	}
	return c.DirtyRegion.Rects[t.DirtyIndex].Visibility
}

// sortedTiles returns the visible-range tiles in row-major order.
func (c *Instance) sortedTiles() []*Tile {
	out := make([]*Tile, 0, len(c.Tiles))
	for _, t := range c.Tiles {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Tile) int {
		if a.Offset.Y != b.Offset.Y {
			return int(a.Offset.Y - b.Offset.Y)
		}
		return int(a.Offset.X - b.Offset.X)
	})
	return out
}

// TileSurfaceID returns the native surface id of a tile.
func (c *Instance) TileSurfaceID(t *Tile) composite.NativeTileID {
	return composite.NativeTileID{Surface: uint64(c.Slice), X: t.Offset.X, Y: t.Offset.Y}
}

// DeviceRect maps a picture-space rect of the slice to device pixels.
func (c *Instance) DeviceRect(local geom.Rect) (geom.Rect, bool) {
	world, ok := c.mapLocalToWorld.Map(local)
	if !ok {
		return geom.Rect{}, false
	}
	return world.Scale(c.devicePixelScale, c.devicePixelScale).Round(), true
}

// AddCompositeTiles appends the visible tiles to state. Tiles fully
// covered by a color backdrop are composited as that color.
func (c *Instance) AddCompositeTiles(state *composite.State) {
	opaqueBackground := c.BackgroundColor != nil && float32(c.BackgroundColor.A) >= 1
	for _, t := range c.sortedTiles() {
		if !t.IsVisible {
			continue
		}
		device, ok := c.DeviceRect(t.LocalRect)
		if !ok {
			continue
		}
		ct := composite.Tile{
			Rect:      device,
			ClipRect:  device,
			ValidRect: device,
			Surface: composite.TileSurface{
				Kind:    composite.SurfaceTexture,
				Texture: c.TileSurfaceID(t),
			},
			Kind: composite.TileAlpha,
		}
		if t.IsDirty() {
			if dirty, ok := c.DeviceRect(t.DirtyRect); ok {
				ct.DirtyRect = dirty
			}
		}
		if vr, ok := c.DeviceRect(c.localVisibleRect); ok {
			if clipped, ok := device.Intersection(vr); ok {
				ct.ClipRect = clipped
			}
		}
		switch {
		case c.Backdrop.Kind == BackdropColor && len(t.Current.Prims) == 1 && c.Backdrop.Rect.ContainsBox(t.LocalRect):
			ct.Surface = composite.TileSurface{Kind: composite.SurfaceColor, Color: c.Backdrop.Color}
			ct.Kind = composite.TileOpaque
		case c.Backdrop.Kind == BackdropClear && len(t.Current.Prims) == 1:
			ct.Surface = composite.TileSurface{Kind: composite.SurfaceClear}
			ct.Kind = composite.TileClear
		case t.IsOpaque || opaqueBackground:
			ct.Kind = composite.TileOpaque
		}
		state.PushTile(ct)
	}
}

// LogValue implements slog.LogValuer.
func (c *Instance) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("slice", uint64(c.Slice)),
		slog.Int("tiles", len(c.Tiles)),
		slog.Int("dirty", len(c.DirtyRegion.Rects)),
	)
}
