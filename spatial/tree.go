package spatial

import (
	"github.com/gogpu/wr/geom"
)

// Tree is the tree of coordinate frames. Nodes are stored in creation
// order, so a parent always precedes its children and a single forward
// sweep updates the whole tree.
type Tree struct {
	nodes   []Node
	systems []coordinateSystem

	pan              geom.Vector
	devicePixelScale float32
}

// NewTree creates a tree holding only the root reference frame.
func NewTree() *Tree {
	t := &Tree{devicePixelScale: 1}
	t.nodes = append(t.nodes, Node{
		Parent:           InvalidNode,
		Kind:             ReferenceFrameNode,
		ReferenceFrame:   ReferenceFrameInfo{Transform: geom.Identity()},
		ContentTransform: geom.IdentityScaleOffset(),
		Invertible:       true,
	})
	t.systems = append(t.systems, coordinateSystem{
		parent:    RootCoordinateSystem,
		transform: geom.Identity(),
		world:     geom.Identity(),
	})
	return t
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node at i.
func (t *Tree) Node(i NodeIndex) *Node { return &t.nodes[i] }

// DevicePixelScale returns the scale passed to the last Update.
func (t *Tree) DevicePixelScale() float32 { return t.devicePixelScale }

func (t *Tree) add(n Node) NodeIndex {
	if int(n.Parent) >= len(t.nodes) {
		panic("bug: spatial node parent does not exist")
	}
	n.ContentTransform = geom.IdentityScaleOffset()
	n.Invertible = true
	t.nodes = append(t.nodes, n)
	return NodeIndex(len(t.nodes) - 1)
}

// AddReferenceFrame adds a reference frame under parent.
func (t *Tree) AddReferenceFrame(parent NodeIndex, info ReferenceFrameInfo) NodeIndex {
	return t.add(Node{Parent: parent, Kind: ReferenceFrameNode, ReferenceFrame: info})
}

// AddScrollFrame adds a scroll frame under parent.
func (t *Tree) AddScrollFrame(parent NodeIndex, info ScrollFrameInfo) NodeIndex {
	return t.add(Node{Parent: parent, Kind: ScrollFrameNode, ScrollFrame: info})
}

// AddStickyFrame adds a sticky frame under parent.
func (t *Tree) AddStickyFrame(parent NodeIndex, info StickyFrameInfo) NodeIndex {
	return t.add(Node{Parent: parent, Kind: StickyFrameNode, StickyFrame: info})
}

// SetScrollOffset changes the offset of a scroll frame. It returns false
// if i is not a scroll frame.
func (t *Tree) SetScrollOffset(i NodeIndex, offset geom.Vector) bool {
	n := &t.nodes[i]
	if n.Kind != ScrollFrameNode {
		return false
	}
	n.ScrollFrame.Offset = offset
	return true
}

// Update recomputes every node's transform for this frame. pan is a world
// space offset applied to the whole tree.
func (t *Tree) Update(pan geom.Vector, devicePixelScale float32, props *SceneProperties) {
	t.pan = pan
	t.devicePixelScale = devicePixelScale
	t.systems = t.systems[:1]
	t.systems[0].world = geom.Translation(pan.X, pan.Y)

	for i := range t.nodes {
		t.updateNode(NodeIndex(i), props)
	}
}

func (t *Tree) updateNode(i NodeIndex, props *SceneProperties) {
	n := &t.nodes[i]
	if n.Parent == InvalidNode {
		n.ContentTransform = geom.IdentityScaleOffset()
		n.CoordinateSystem = RootCoordinateSystem
		n.Invertible = true
		return
	}
	parent := &t.nodes[n.Parent]
	n.Invertible = parent.Invertible

	switch n.Kind {
	case ReferenceFrameNode:
		source := props.ResolveTransform(n.ReferenceFrame.Binding, n.ReferenceFrame.Transform)
		local := source.Then(geom.Translation(n.ReferenceFrame.Origin.X, n.ReferenceFrame.Origin.Y))
		if !local.IsInvertible() {
			n.Invertible = false
		}
		if so, ok := local.As2DScaleOffset(); ok {
			n.ContentTransform = so.Then(parent.ContentTransform)
			n.CoordinateSystem = parent.CoordinateSystem
			return
		}
		// Non scale-offset transforms start a new coordinate system whose
		// transform includes the parent's content transform.
		relative := local.Then(parent.ContentTransform.ToTransform())
		parentSys := t.systems[parent.CoordinateSystem]
		t.systems = append(t.systems, coordinateSystem{
			parent:    parent.CoordinateSystem,
			transform: relative,
			world:     relative.Then(parentSys.world),
		})
		n.CoordinateSystem = CoordinateSystemID(len(t.systems) - 1)
		n.ContentTransform = geom.IdentityScaleOffset()

	case ScrollFrameNode:
		off := n.ScrollFrame.ExternalOffset
		off.X -= n.ScrollFrame.Offset.X
		off.Y -= n.ScrollFrame.Offset.Y
		n.ContentTransform = geom.ScaleOffsetFromOffset(off).Then(parent.ContentTransform)
		n.CoordinateSystem = parent.CoordinateSystem

	case StickyFrameNode:
		n.StickyOffset = t.stickyOffset(n)
		n.ContentTransform = geom.ScaleOffsetFromOffset(n.StickyOffset).Then(parent.ContentTransform)
		n.CoordinateSystem = parent.CoordinateSystem

	default:
		panic("bug: unknown spatial node kind")
	}
}

// stickyOffset keeps FrameRect within the margins of the nearest enclosing
// scroll viewport.
func (t *Tree) stickyOffset(n *Node) geom.Vector {
	var viewport geom.Rect
	found := false
	var scroll geom.Vector
	for p := n.Parent; p != InvalidNode; p = t.nodes[p].Parent {
		if t.nodes[p].Kind == ScrollFrameNode {
			sf := t.nodes[p].ScrollFrame
			viewport = sf.Viewport
			scroll = sf.Offset
			found = true
			break
		}
	}
	if !found {
		return geom.Vector{}
	}

	info := n.StickyFrame
	// Frame rect as it currently appears relative to the viewport.
	frame := info.FrameRect.Translate(geom.Vec(-scroll.X, -scroll.Y))
	var off geom.Vector

	if top := info.Margins[0]; top != nil {
		if d := viewport.Min.Y + *top - frame.Min.Y; d > 0 {
			off.Y = d
		}
	}
	if bottom := info.Margins[2]; bottom != nil && off.Y == 0 {
		if d := viewport.Max.Y - *bottom - frame.Max.Y; d < 0 {
			off.Y = d
		}
	}
	if left := info.Margins[3]; left != nil {
		if d := viewport.Min.X + *left - frame.Min.X; d > 0 {
			off.X = d
		}
	}
	if right := info.Margins[1]; right != nil && off.X == 0 {
		if d := viewport.Max.X - *right - frame.Max.X; d < 0 {
			off.X = d
		}
	}

	off.X = geom.Clamp(off.X, info.HorizontalBounds.Min, info.HorizontalBounds.Max)
	off.Y = geom.Clamp(off.Y, info.VerticalBounds.Min, info.VerticalBounds.Max)
	return off
}

// IsMatchingCoordSystem reports whether a and b share a coordinate system.
func (t *Tree) IsMatchingCoordSystem(a, b NodeIndex) bool {
	return t.nodes[a].CoordinateSystem == t.nodes[b].CoordinateSystem
}

// WorldTransform maps node i's space into world space.
func (t *Tree) WorldTransform(i NodeIndex) geom.Transform {
	n := &t.nodes[i]
	return n.ContentTransform.ToTransform().Then(t.systems[n.CoordinateSystem].world)
}

// IsAncestor reports whether ancestor is on the parent chain of i (or is i).
func (t *Tree) IsAncestor(ancestor, i NodeIndex) bool {
	for p := i; p != InvalidNode; p = t.nodes[p].Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// RelativeTransform returns the mapping from child's space into parent's
// space. The two nodes need not be related.
func (t *Tree) RelativeTransform(child, parent NodeIndex) Mapping {
	if child == parent {
		return Mapping{Kind: MappingLocal}
	}
	c, p := &t.nodes[child], &t.nodes[parent]
	if c.CoordinateSystem == p.CoordinateSystem {
		return Mapping{
			Kind:        MappingScaleOffset,
			ScaleOffset: c.ContentTransform.Then(p.ContentTransform.Inverse()),
		}
	}
	inv, ok := t.WorldTransform(parent).Inverse()
	if !ok {
		// A zero matrix fails every projection, so content is culled.
		return Mapping{Kind: MappingTransform}
	}
	return Mapping{Kind: MappingTransform, Transform: t.WorldTransform(child).Then(inv)}
}
