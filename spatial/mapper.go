package spatial

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/gogpu/wr/geom"
)

// MappingKind classifies how two spaces relate.
type MappingKind uint8

const (
	// MappingLocal means both spaces are the same.
	MappingLocal MappingKind = iota
	// MappingScaleOffset means the spaces share a coordinate system.
	MappingScaleOffset
	// MappingTransform means a full transform is required.
	MappingTransform
)

// String returns the mapping kind name.
func (k MappingKind) String() string {
	switch k {
	case MappingLocal:
		return "Local"
	case MappingScaleOffset:
		return "ScaleOffset"
	case MappingTransform:
		return "Transform"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Mapping is a coordinate space mapping in its cheapest form.
type Mapping struct {
	Kind        MappingKind
	ScaleOffset geom.ScaleOffset
	Transform   geom.Transform
}

// ToTransform returns the mapping as a full transform.
func (m Mapping) ToTransform() geom.Transform {
	switch m.Kind {
	case MappingLocal:
		return geom.Identity()
	case MappingScaleOffset:
		return m.ScaleOffset.ToTransform()
	case MappingTransform:
		return m.Transform
	default:
		panic("bug: unknown mapping kind")
	}
}

// IsScaleTranslation reports whether the mapping has no rotation, skew or
// projection.
func (m Mapping) IsScaleTranslation() bool {
	switch m.Kind {
	case MappingLocal, MappingScaleOffset:
		return true
	case MappingTransform:
		return m.Transform.Is2DScaleTranslation()
	default:
		panic("bug: unknown mapping kind")
	}
}

// SpaceMapper maps rects from the space of a target node into the space of
// a fixed reference node. The target is retargeted per primitive cluster,
// and recomputing the mapping is skipped when the target does not change.
type SpaceMapper struct {
	mapping  Mapping
	inverse  geom.Transform
	invValid bool

	RefNode    NodeIndex
	TargetNode NodeIndex
	// Bounds is the reference space rect content is clipped against when
	// projecting.
	Bounds geom.Rect
}

// NewSpaceMapper creates a mapper whose target is the reference node.
func NewSpaceMapper(ref NodeIndex, bounds geom.Rect) SpaceMapper {
	return SpaceMapper{
		mapping:    Mapping{Kind: MappingLocal},
		RefNode:    ref,
		TargetNode: ref,
		Bounds:     bounds,
	}
}

// NewSpaceMapperWithTarget creates a mapper already pointed at target.
func NewSpaceMapperWithTarget(ref, target NodeIndex, bounds geom.Rect, tree *Tree) SpaceMapper {
	m := NewSpaceMapper(ref, bounds)
	m.SetTargetSpatialNode(target, tree)
	return m
}

// SetTargetSpatialNode points the mapper at a new target node.
func (m *SpaceMapper) SetTargetSpatialNode(target NodeIndex, tree *Tree) {
	if target == m.TargetNode {
		return
	}
	m.TargetNode = target
	m.mapping = tree.RelativeTransform(target, m.RefNode)
	m.invValid = false
	if m.mapping.Kind == MappingTransform {
		m.inverse, m.invValid = m.mapping.Transform.Inverse()
	}
}

// Mapping returns the current mapping.
func (m *SpaceMapper) Mapping() Mapping { return m.mapping }

// Transform returns the current mapping as a full transform.
func (m *SpaceMapper) Transform() geom.Transform { return m.mapping.ToTransform() }

// Map maps r from target space into reference space. The boolean is false
// when r cannot be projected, which callers treat as culled.
func (m *SpaceMapper) Map(r geom.Rect) (geom.Rect, bool) {
	switch m.mapping.Kind {
	case MappingLocal:
		return r, true
	case MappingScaleOffset:
		return m.mapping.ScaleOffset.MapRect(r), true
	case MappingTransform:
		out, ok := m.mapping.Transform.OuterTransformedRect(r)
		if !ok || !finite(out) {
			return geom.Rect{}, false
		}
		return out, true
	default:
		panic("bug: unknown mapping kind")
	}
}

// Unmap maps r from reference space back into target space.
func (m *SpaceMapper) Unmap(r geom.Rect) (geom.Rect, bool) {
	switch m.mapping.Kind {
	case MappingLocal:
		return r, true
	case MappingScaleOffset:
		if !m.mapping.ScaleOffset.IsInvertible() {
			return geom.Rect{}, false
		}
		return m.mapping.ScaleOffset.UnmapRect(r), true
	case MappingTransform:
		if !m.invValid {
			return geom.Rect{}, false
		}
		out, ok := m.inverse.OuterTransformedRect(r)
		if !ok || !finite(out) {
			return geom.Rect{}, false
		}
		return out, true
	default:
		panic("bug: unknown mapping kind")
	}
}

func finite(r geom.Rect) bool {
	for _, v := range [4]float32{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y} {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// SpaceSnapper snaps rects to device pixels when the target space maps
// into the reference space by scale and offset alone.
type SpaceSnapper struct {
	RefNode          NodeIndex
	TargetNode       NodeIndex
	DevicePixelScale float32

	snapping *geom.ScaleOffset
}

// NewSpaceSnapperWithTarget creates a snapper pointed at target.
func NewSpaceSnapperWithTarget(ref, target NodeIndex, devicePixelScale float32, tree *Tree) SpaceSnapper {
	s := SpaceSnapper{RefNode: ref, TargetNode: InvalidNode, DevicePixelScale: devicePixelScale}
	s.SetTargetSpatialNode(target, tree)
	return s
}

// SetTargetSpatialNode points the snapper at a new target node.
func (s *SpaceSnapper) SetTargetSpatialNode(target NodeIndex, tree *Tree) {
	if target == s.TargetNode {
		return
	}
	s.TargetNode = target
	s.snapping = nil
	m := tree.RelativeTransform(target, s.RefNode)
	var so geom.ScaleOffset
	switch m.Kind {
	case MappingLocal:
		so = geom.IdentityScaleOffset()
	case MappingScaleOffset:
		so = m.ScaleOffset
	case MappingTransform:
		var ok bool
		if so, ok = m.Transform.As2DScaleOffset(); !ok {
			return
		}
	}
	so = so.Then(geom.ScaleOffsetFromScale(geom.Vec(s.DevicePixelScale, s.DevicePixelScale)))
	if so.IsInvertible() {
		s.snapping = &so
	}
}

// Snap rounds r to device pixel boundaries. Rects in spaces with complex
// transforms are returned unchanged.
func (s *SpaceSnapper) Snap(r geom.Rect) geom.Rect {
	if s.snapping == nil {
		return r
	}
	return s.snapping.UnmapRect(s.snapping.MapRect(r).Round())
}
