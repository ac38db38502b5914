package batch

import (
	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/rendertask"
)

// Builder batches the primitives drawn into one render task. Only
// commands whose visibility mask intersects VisMask are added.
type Builder struct {
	Task        rendertask.ID
	VisMask     prim.VisibilityMask
	TaskRect    geom.IntRect
	ScissorRect geom.IntRect
	alpha       *AlphaList
	opaque      *OpaqueList
}

// NewBuilder creates a builder for task. Large opaque primitives look
// back for compatible batches when they cover more than a quarter of
// the screen.
func NewBuilder(task rendertask.ID, screen geom.IntSize, lookback int, visMask prim.VisibilityMask,
	taskRect, scissor geom.IntRect) *Builder {
	threshold := float32(screen.Width) * float32(screen.Height) / 4
	return &Builder{
		Task:        task,
		VisMask:     visMask,
		TaskRect:    taskRect,
		ScissorRect: scissor,
		alpha:       NewAlphaList(lookback),
		opaque:      NewOpaqueList(lookback, threshold),
	}
}

// Accepts reports whether a command with mask is drawn by the builder.
func (b *Builder) Accepts(mask prim.VisibilityMask) bool {
	return b.VisMask.Intersects(mask)
}

// Add appends an instance to the batch matching key.
func (b *Builder) Add(key Key, rect geom.Rect, zID composite.ZBufferID, inst InstanceData) {
	var batch *Batch
	if key.Blend == BlendNone {
		batch = b.opaque.Get(key, rect)
	} else {
		batch = b.alpha.Get(key, rect, int32(zID))
	}
	batch.Instances = append(batch.Instances, inst)
}

// Build finalizes the batches into a container.
func (b *Builder) Build() Container {
	b.opaque.finalize()
	return Container{
		OpaqueBatches:   b.opaque.Batches,
		AlphaBatches:    b.alpha.Batches,
		TaskScissorRect: b.ScissorRect,
		TaskRect:        b.TaskRect,
	}
}
