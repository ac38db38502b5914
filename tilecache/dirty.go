package tilecache

import (
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/spatial"
)

// DirtyRect is one world-space region that is redrawn this frame.
type DirtyRect struct {
	WorldRect geom.Rect
	// Visibility is the mask bit primitives must carry to be drawn
	// into this rect.
	Visibility prim.VisibilityMask
}

// DirtyRegion is the list of rects redrawn in a frame. It holds at most
// prim.MaxDirtyRegions rects; adding more collapses the list into a
// single rect visible to every primitive.
type DirtyRegion struct {
	Rects        []DirtyRect
	CombinedRect geom.Rect
	SpatialNode  spatial.NodeIndex
	collapsed    bool
}

// NewDirtyRegion creates an empty region.
func NewDirtyRegion(node spatial.NodeIndex) *DirtyRegion {
	return &DirtyRegion{SpatialNode: node}
}

// Clear removes every rect.
func (d *DirtyRegion) Clear() {
	d.Rects = d.Rects[:0]
	d.CombinedRect = geom.Rect{}
	d.collapsed = false
}

// Add appends a world rect.
func (d *DirtyRegion) Add(worldRect geom.Rect) {
	if worldRect.IsEmpty() {
		return
	}
	d.CombinedRect = d.CombinedRect.Union(worldRect)
	if d.collapsed {
		d.Rects[0].WorldRect = d.CombinedRect
		return
	}
	if len(d.Rects) == prim.MaxDirtyRegions {
		d.Collapse()
		d.Rects[0].WorldRect = d.CombinedRect
		return
	}
	var mask prim.VisibilityMask
	mask.SetVisible(len(d.Rects))
	d.Rects = append(d.Rects, DirtyRect{WorldRect: worldRect, Visibility: mask})
}

// Collapse merges all rects into CombinedRect.
func (d *DirtyRegion) Collapse() {
	if len(d.Rects) == 0 {
		return
	}
	d.Rects = append(d.Rects[:0], DirtyRect{WorldRect: d.CombinedRect, Visibility: prim.AllVisible})
	d.collapsed = true
}

// IsCollapsed reports whether the region was merged into one rect.
func (d *DirtyRegion) IsCollapsed() bool { return d.collapsed }

// IsEmpty reports whether nothing is dirty.
func (d *DirtyRegion) IsEmpty() bool { return len(d.Rects) == 0 }

// VisibilityMask returns the mask of dirty rects intersecting worldRect.
func (d *DirtyRegion) VisibilityMask(worldRect geom.Rect) prim.VisibilityMask {
	var mask prim.VisibilityMask
	for i := range d.Rects {
		if d.Rects[i].WorldRect.Intersects(worldRect) {
			mask.Include(d.Rects[i].Visibility)
		}
	}
	return mask
}
