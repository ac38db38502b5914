package spatial

import (
	"fmt"

	"github.com/gogpu/wr/geom"
)

// NodeIndex identifies a node of the spatial tree.
type NodeIndex uint32

// RootNode is the index of the root reference frame.
const RootNode NodeIndex = 0

// InvalidNode marks the absence of a node (the root's parent).
const InvalidNode NodeIndex = ^NodeIndex(0)

// CoordinateSystemID identifies a coordinate system. Nodes that share a
// coordinate system relate to each other through a scale and offset only.
type CoordinateSystemID uint32

// RootCoordinateSystem is the coordinate system of the root node.
const RootCoordinateSystem CoordinateSystemID = 0

// NodeKind distinguishes the kinds of spatial node.
type NodeKind uint8

const (
	// ReferenceFrameNode establishes a new reference frame with an
	// arbitrary transform.
	ReferenceFrameNode NodeKind = iota
	// ScrollFrameNode offsets its children by a scroll offset.
	ScrollFrameNode
	// StickyFrameNode offsets its children to keep a rect inside the
	// nearest scroll viewport.
	StickyFrameNode
)

// String returns the node kind name.
func (k NodeKind) String() string {
	switch k {
	case ReferenceFrameNode:
		return "ReferenceFrame"
	case ScrollFrameNode:
		return "ScrollFrame"
	case StickyFrameNode:
		return "StickyFrame"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// ReferenceFrameInfo describes a reference frame.
type ReferenceFrameInfo struct {
	// Transform is the static transform, used when Binding is zero or has
	// no value in the scene properties.
	Transform geom.Transform
	// Binding names an animated transform in SceneProperties.
	Binding PropertyBindingID
	// Origin is the offset of the frame in its parent.
	Origin geom.Vector
}

// ScrollFrameInfo describes a scroll frame.
type ScrollFrameInfo struct {
	// Viewport is the scrollport rect in the parent's space.
	Viewport geom.Rect
	// Offset is the current scroll offset. Content moves by -Offset.
	Offset geom.Vector
	// ExternalOffset is an offset applied by the embedder.
	ExternalOffset geom.Vector
}

// StickyOffsetBounds bounds a sticky offset on one axis.
type StickyOffsetBounds struct {
	Min, Max float32
}

// StickyFrameInfo describes a sticky frame.
type StickyFrameInfo struct {
	// FrameRect is the sticky item's rect in the parent's space.
	FrameRect geom.Rect
	// Margins from the viewport edges (top, right, bottom, left). A nil
	// entry disables stickiness on that edge.
	Margins [4]*float32
	// VerticalBounds and HorizontalBounds limit the applied offset.
	VerticalBounds   StickyOffsetBounds
	HorizontalBounds StickyOffsetBounds
}

// Node is one spatial node. The computed fields are refreshed by
// Tree.Update once per frame.
type Node struct {
	Parent NodeIndex
	Kind   NodeKind

	ReferenceFrame ReferenceFrameInfo
	ScrollFrame    ScrollFrameInfo
	StickyFrame    StickyFrameInfo

	// ContentTransform maps this node's space into its coordinate system.
	ContentTransform geom.ScaleOffset
	// CoordinateSystem is the coordinate system this node belongs to.
	CoordinateSystem CoordinateSystemID
	// Invertible is false when this node or an ancestor has a singular
	// transform. Content on such nodes is never visible.
	Invertible bool
	// StickyOffset is the offset applied by a sticky frame this frame.
	StickyOffset geom.Vector
}

type coordinateSystem struct {
	parent CoordinateSystemID
	// transform maps this system into the parent system.
	transform geom.Transform
	// world maps this system into world space.
	world geom.Transform
}
