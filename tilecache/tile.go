package tilecache

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/resource"
	"github.com/gogpu/wr/spatial"
)

// TileOffset is the grid position of a tile. Tile (x, y) covers the
// picture-space rect starting at (x*width, y*height).
type TileOffset struct {
	X, Y int32
}

// PrimDependency is everything a primitive contributes to the content of
// a tile. Two frames produce the same tile content iff the tile sees the
// same dependencies in the same order.
type PrimDependency struct {
	Kind        prim.Kind
	Template    prim.TemplateHandle
	Rect        geom.Rect
	ClipRect    geom.Rect
	SpatialNode spatial.NodeIndex
	Color       gputypes.Color
	Image       resource.ImageKey
}

// Descriptor lists the dependencies of a tile for one frame.
type Descriptor struct {
	Prims []PrimDependency
}

func (d *Descriptor) clear() { d.Prims = d.Prims[:0] }

// Equal reports whether d and o describe the same content.
func (d *Descriptor) Equal(o *Descriptor) bool {
	return slices.Equal(d.Prims, o.Prims)
}

// InvalidationReason says why a tile is redrawn.
type InvalidationReason uint8

const (
	NotInvalidated InvalidationReason = iota
	InvalidatedNew
	InvalidatedContent
	InvalidatedForced
)

// String returns the reason name.
func (r InvalidationReason) String() string {
	switch r {
	case NotInvalidated:
		return "None"
	case InvalidatedNew:
		return "New"
	case InvalidatedContent:
		return "Content"
	case InvalidatedForced:
		return "Forced"
	default:
		return fmt.Sprintf("Unknown(%d)", r)
	}
}

// Tile is one cached region of a picture cache slice.
type Tile struct {
	Offset TileOffset
	// LocalRect is the tile rect in picture space.
	LocalRect geom.Rect
	// WorldRect is LocalRect mapped to world space this frame.
	WorldRect geom.Rect
	// Current collects dependencies during this frame; Prev holds the
	// ones the cached content was rendered from.
	Current Descriptor
	Prev    Descriptor
	// IsValid is false until the tile has been rendered once.
	IsValid   bool
	IsVisible bool
	// DirtyRect is the part of LocalRect redrawn this frame.
	DirtyRect geom.Rect
	// DirtyIndex is the tile's rect in the slice's DirtyRegion, or -1.
	DirtyIndex   int
	Invalidation InvalidationReason
	// IsOpaque is set when an opaque primitive covers the whole tile.
	IsOpaque bool
	// LastUsedFrame is the frame in which the tile was last in range.
	LastUsedFrame uint64
}

func newTile(off TileOffset) *Tile {
	return &Tile{Offset: off, DirtyIndex: -1}
}

// IsDirty reports whether the tile is redrawn this frame.
func (t *Tile) IsDirty() bool { return !t.DirtyRect.IsEmpty() }

func (t *Tile) preUpdate(localRect, worldRect, screen geom.Rect, frame uint64) {
	t.LocalRect = localRect
	t.WorldRect = worldRect
	t.IsVisible = worldRect.Intersects(screen)
	t.DirtyRect = geom.Rect{}
	t.DirtyIndex = -1
	t.Invalidation = NotInvalidated
	t.IsOpaque = false
	t.LastUsedFrame = frame
	t.Prev, t.Current = t.Current, t.Prev
	t.Current.clear()
}

// postUpdate compares the frame's dependencies against the cached ones
// and reports whether the tile must be redrawn.
func (t *Tile) postUpdate(force bool) bool {
	if !t.IsVisible {
		// Keep the previous descriptor so an off-screen tile that
		// scrolls back in does not need a redraw.
		t.Prev, t.Current = t.Current, t.Prev
		return false
	}
	switch {
	case !t.IsValid:
		t.Invalidation = InvalidatedNew
	case force:
		t.Invalidation = InvalidatedForced
	case !t.Current.Equal(&t.Prev):
		t.Invalidation = InvalidatedContent
	default:
		return false
	}
	t.DirtyRect = t.LocalRect
	t.IsValid = true
	return true
}
