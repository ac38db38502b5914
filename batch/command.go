package batch

import (
	"fmt"

	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/spatial"
)

// CommandKind tags a Command.
type CommandKind uint8

const (
	// CommandSimple draws a primitive from its template data.
	CommandSimple CommandKind = iota
	// CommandComplex composites the render task of a picture. The task
	// is Quad.SrcTask and the composite data lives at Quad.PrimAddressF.
	CommandComplex
	// CommandQuad draws a quad primitive, directly or from a task.
	CommandQuad
	// CommandSetSpatialNode changes the spatial node of the following
	// commands.
	CommandSetSpatialNode
)

// String returns the command kind name.
func (k CommandKind) String() string {
	switch k {
	case CommandSimple:
		return "Simple"
	case CommandComplex:
		return "Complex"
	case CommandQuad:
		return "Quad"
	case CommandSetSpatialNode:
		return "SetSpatialNode"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// PrimRef addresses a primitive instance of a picture.
type PrimRef struct {
	Picture prim.PictureIndex
	Index   uint32
}

// QuadFlags control how a quad is drawn.
type QuadFlags uint8

const (
	QuadIsOpaque QuadFlags = 1 << iota
	// QuadApplyRenderTaskClip clips the quad to its task rect in the
	// shader, so no scissor is needed.
	QuadApplyRenderTaskClip
	// QuadIgnoreDevicePixelScale marks quads already in device space.
	QuadIgnoreDevicePixelScale
	// QuadUseAASegments draws anti-aliased edges as separate instances.
	QuadUseAASegments
)

// QuadCommand is the payload of CommandQuad.
type QuadCommand struct {
	PrimAddressF gpucache.BufferAddress
	TransformID  spatial.TransformPaletteID
	QuadFlags    QuadFlags
	EdgeFlags    geom.EdgeMask
	// SrcTask is the task holding the masked pattern, or InvalidID when
	// the quad is drawn directly.
	SrcTask rendertask.ID
	// Segments are drawn one instance each, sampling from their own task.
	// Empty draws the whole quad.
	Segments []QuadSegment
}

// QuadSegment is one sub-rect of a composite quad and the task its
// content was rendered to.
type QuadSegment struct {
	Rect geom.Rect
	Task rendertask.ID
}

// Command is one entry of a command buffer.
type Command struct {
	Kind        CommandKind
	Prim        PrimRef
	VisMask     prim.VisibilityMask
	GPUAddress  gpucache.Address
	Quad        QuadCommand
	SpatialNode spatial.NodeIndex
}

// CommandBuffer lists the draw commands of one picture surface in paint
// order.
type CommandBuffer struct {
	Commands    []Command
	currentNode spatial.NodeIndex
}

// NewCommandBuffer creates an empty buffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{currentNode: spatial.InvalidNode}
}

// Add appends cmd, preceded by a spatial node change if node differs
// from the previous command's.
func (b *CommandBuffer) Add(cmd Command, node spatial.NodeIndex) {
	if node != b.currentNode {
		b.Commands = append(b.Commands, Command{Kind: CommandSetSpatialNode, SpatialNode: node})
		b.currentNode = node
	}
	b.Commands = append(b.Commands, cmd)
}

// Len returns the number of commands including markers.
func (b *CommandBuffer) Len() int { return len(b.Commands) }

// DrawCount returns the number of draw commands.
func (b *CommandBuffer) DrawCount() int {
	n := 0
	for i := range b.Commands {
		if b.Commands[i].Kind != CommandSetSpatialNode {
			n++
		}
	}
	return n
}

// CommandBufferList owns the command buffers of a frame.
type CommandBufferList struct {
	buffers []*CommandBuffer
}

// Create adds a buffer and returns its index.
func (l *CommandBufferList) Create() int {
	l.buffers = append(l.buffers, NewCommandBuffer())
	return len(l.buffers) - 1
}

// Get returns buffer i.
func (l *CommandBufferList) Get(i int) *CommandBuffer { return l.buffers[i] }

// Len returns the number of buffers.
func (l *CommandBufferList) Len() int { return len(l.buffers) }
