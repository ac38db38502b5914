package clip

import (
	"fmt"

	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/spatial"
)

// Mode selects which side of a clip shape is kept.
type Mode uint8

const (
	// ModeClip keeps content inside the shape.
	ModeClip Mode = iota
	// ModeClipOut keeps content outside the shape.
	ModeClipOut
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeClip:
		return "Clip"
	case ModeClipOut:
		return "ClipOut"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ItemKind is the shape of a clip item.
type ItemKind uint8

const (
	// KindRectangle is an axis-aligned rectangle in the clip's space.
	KindRectangle ItemKind = iota
	// KindRoundedRectangle is a rectangle with elliptical corners.
	KindRoundedRectangle
	// KindImage is an image mask covering Rect.
	KindImage
)

// String returns the kind name.
func (k ItemKind) String() string {
	switch k {
	case KindRectangle:
		return "Rectangle"
	case KindRoundedRectangle:
		return "RoundedRectangle"
	case KindImage:
		return "Image"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// BorderRadius holds the four corner radii of a rounded rectangle.
type BorderRadius struct {
	TopLeft, TopRight, BottomLeft, BottomRight geom.Size
}

// UniformRadius returns a radius with all corners equal to r.
func UniformRadius(r float32) BorderRadius {
	s := geom.Sz(r, r)
	return BorderRadius{TopLeft: s, TopRight: s, BottomLeft: s, BottomRight: s}
}

// IsZero reports whether every corner is square.
func (b BorderRadius) IsZero() bool {
	return b.TopLeft.IsEmpty() && b.TopRight.IsEmpty() &&
		b.BottomLeft.IsEmpty() && b.BottomRight.IsEmpty()
}

// MaxWidth returns the widest corner.
func (b BorderRadius) MaxWidth() float32 {
	return max(b.TopLeft.Width, b.TopRight.Width, b.BottomLeft.Width, b.BottomRight.Width)
}

// MaxHeight returns the tallest corner.
func (b BorderRadius) MaxHeight() float32 {
	return max(b.TopLeft.Height, b.TopRight.Height, b.BottomLeft.Height, b.BottomRight.Height)
}

// Item is one clip shape positioned at a spatial node. Items are interned,
// so equal items share a DataHandle.
type Item struct {
	Kind        ItemKind
	Mode        Mode
	Rect        geom.Rect
	Radius      BorderRadius
	ImageKey    uint64
	SpatialNode spatial.NodeIndex
}

// NewRectangle creates a rectangle clip item.
func NewRectangle(node spatial.NodeIndex, r geom.Rect, mode Mode) Item {
	return Item{Kind: KindRectangle, Mode: mode, Rect: r, SpatialNode: node}
}

// NewRoundedRectangle creates a rounded rectangle clip item. A zero radius
// degrades to a plain rectangle.
func NewRoundedRectangle(node spatial.NodeIndex, r geom.Rect, radius BorderRadius, mode Mode) Item {
	if radius.IsZero() {
		return NewRectangle(node, r, mode)
	}
	return Item{Kind: KindRoundedRectangle, Mode: mode, Rect: r, Radius: radius, SpatialNode: node}
}

// NewImageMask creates an image mask clip item.
func NewImageMask(node spatial.NodeIndex, r geom.Rect, key uint64) Item {
	return Item{Kind: KindImage, Mode: ModeClip, Rect: r, ImageKey: key, SpatialNode: node}
}

// LocalClipRect returns the rect outside of which nothing survives the
// clip. ClipOut items do not bound their content.
func (it *Item) LocalClipRect() (geom.Rect, bool) {
	if it.Mode == ModeClipOut {
		return geom.Rect{}, false
	}
	return it.Rect, true
}

// innerRect returns a rect inside the shape that is unaffected by rounded
// corners.
func (it *Item) innerRect() (geom.Rect, bool) {
	switch it.Kind {
	case KindRectangle:
		return it.Rect, true
	case KindRoundedRectangle:
		r, rad := it.Rect, it.Radius
		inner := geom.RectFromPoints(
			r.Min.X+max(rad.TopLeft.Width, rad.BottomLeft.Width),
			r.Min.Y+max(rad.TopLeft.Height, rad.TopRight.Height),
			r.Max.X-max(rad.TopRight.Width, rad.BottomRight.Width),
			r.Max.Y-max(rad.BottomLeft.Height, rad.BottomRight.Height),
		)
		if inner.IsEmpty() {
			return geom.Rect{}, false
		}
		return inner, true
	case KindImage:
		return geom.Rect{}, false
	default:
		panic("bug: unknown clip item kind")
	}
}

// result is how a clip affects a primitive region.
type result uint8

const (
	// resultAccept: the clip does not affect the region.
	resultAccept result = iota
	// resultReject: the clip removes the whole region.
	resultReject
	// resultPartial: the clip affects part of the region.
	resultPartial
)

// clipResult classifies a region expressed in the clip's own space.
func (it *Item) clipResult(r geom.Rect) result {
	inner, hasInner := it.innerRect()
	switch it.Mode {
	case ModeClip:
		if hasInner && inner.ContainsBox(r) {
			return resultAccept
		}
		if !it.Rect.Intersects(r) {
			return resultReject
		}
		return resultPartial
	case ModeClipOut:
		if hasInner && inner.ContainsBox(r) {
			return resultReject
		}
		if !it.Rect.Intersects(r) {
			return resultAccept
		}
		return resultPartial
	default:
		panic("bug: unknown clip mode")
	}
}

// clipResultComplex classifies a world space region against a clip whose
// space maps to world through toWorld.
func (it *Item) clipResultComplex(toWorld geom.Transform, primWorld, worldCulling geom.Rect) result {
	visible, ok := primWorld.Intersection(worldCulling)
	if !ok {
		return resultReject
	}
	if inner, ok := it.innerRect(); ok && projectedContains(inner, toWorld, visible) {
		if it.Mode == ModeClip {
			return resultAccept
		}
		return resultReject
	}
	if it.Mode == ModeClipOut {
		return resultPartial
	}
	outer, ok := toWorld.OuterTransformedRect(it.Rect)
	if !ok {
		return resultPartial
	}
	if outer.Intersects(primWorld) {
		return resultPartial
	}
	return resultReject
}

// projectedContains reports whether the world rect r lies inside inner
// once inner is projected to world space. The corners of r are unprojected
// into the clip's space, which is exact for affine transforms since inner
// is convex.
func projectedContains(inner geom.Rect, toWorld geom.Transform, r geom.Rect) bool {
	inv, ok := toWorld.Inverse()
	if !ok {
		return false
	}
	for _, c := range r.Corners() {
		p, ok := inv.TransformPoint(c)
		if !ok {
			return false
		}
		if p.X < inner.Min.X || p.X > inner.Max.X || p.Y < inner.Min.Y || p.Y > inner.Max.Y {
			return false
		}
	}
	return true
}

// clipToPrim returns the scale-offset mapping the clip's space into the
// primitive's space, when both share a coordinate system.
func (it *Item) clipToPrim(primNode spatial.NodeIndex, tree *spatial.Tree) (geom.ScaleOffset, bool) {
	if !tree.IsMatchingCoordSystem(primNode, it.SpatialNode) {
		return geom.ScaleOffset{}, false
	}
	m := tree.RelativeTransform(it.SpatialNode, primNode)
	switch m.Kind {
	case spatial.MappingLocal:
		return geom.IdentityScaleOffset(), true
	case spatial.MappingScaleOffset:
		return m.ScaleOffset, true
	case spatial.MappingTransform:
		return m.Transform.As2DScaleOffset()
	default:
		panic("bug: unknown mapping kind")
	}
}

// LocalMaskRects reports the regions of the primitive's local space that
// need a mask to apply this clip. It returns false when the regions cannot
// be expressed in the primitive's space; callers then treat the whole
// primitive as masked.
func (it *Item) LocalMaskRects(primNode spatial.NodeIndex, tree *spatial.Tree, add func(geom.Rect)) bool {
	so, ok := it.clipToPrim(primNode, tree)
	if !ok {
		return false
	}
	switch it.Kind {
	case KindRectangle:
		// Hard edges of a ModeClip rect in a shared coordinate system are
		// handled by the local clip rect and scissoring. A removed
		// interior is not.
		if it.Mode == ModeClipOut {
			add(so.MapRect(it.Rect))
		}
		return true
	case KindRoundedRectangle:
		if it.Mode == ModeClipOut {
			add(so.MapRect(it.Rect))
			return true
		}
		r, rad := it.Rect, it.Radius
		corners := [4]geom.Rect{
			geom.RectFromPoints(r.Min.X, r.Min.Y, r.Min.X+rad.TopLeft.Width, r.Min.Y+rad.TopLeft.Height),
			geom.RectFromPoints(r.Max.X-rad.TopRight.Width, r.Min.Y, r.Max.X, r.Min.Y+rad.TopRight.Height),
			geom.RectFromPoints(r.Min.X, r.Max.Y-rad.BottomLeft.Height, r.Min.X+rad.BottomLeft.Width, r.Max.Y),
			geom.RectFromPoints(r.Max.X-rad.BottomRight.Width, r.Max.Y-rad.BottomRight.Height, r.Max.X, r.Max.Y),
		}
		for _, c := range corners {
			if !c.IsEmpty() {
				add(so.MapRect(c))
			}
		}
		return true
	case KindImage:
		add(so.MapRect(it.Rect))
		return true
	default:
		panic("bug: unknown clip item kind")
	}
}

// LocalClipRegion returns the rect, in the primitive's space, whose
// interior or exterior this clip removes without a mask: for ModeClip
// everything outside the returned rect is removed, for ModeClipOut
// everything inside it.
func (it *Item) LocalClipRegion(primNode spatial.NodeIndex, tree *spatial.Tree) (geom.Rect, Mode, bool) {
	so, ok := it.clipToPrim(primNode, tree)
	if !ok {
		return geom.Rect{}, ModeClip, false
	}
	switch it.Mode {
	case ModeClip:
		return so.MapRect(it.Rect), ModeClip, true
	case ModeClipOut:
		inner, ok := it.innerRect()
		if !ok {
			return geom.Rect{}, ModeClipOut, false
		}
		return so.MapRect(inner), ModeClipOut, true
	default:
		panic("bug: unknown clip mode")
	}
}
