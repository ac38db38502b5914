package wr

import (
	"log/slog"

	"github.com/gogpu/wr/batch"
	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/resource"
	"github.com/gogpu/wr/spatial"
)

// FrameStats are counters of one built frame.
type FrameStats struct {
	VisiblePrimitives  int
	PreparedPrimitives int
	RenderTasks        int
	Passes             int
	Batches            int
	Targets            int
	PictureCacheTiles  int
	CompositeTiles     int
	DirtyTiles         int
	GPUCacheUploads    int
}

// LogValue implements slog.LogValuer.
func (s FrameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("visible", s.VisiblePrimitives),
		slog.Int("prepared", s.PreparedPrimitives),
		slog.Int("tasks", s.RenderTasks),
		slog.Int("passes", s.Passes),
		slog.Int("batches", s.Batches),
		slog.Int("targets", s.Targets),
		slog.Int("dirty_tiles", s.DirtyTiles),
	)
}

// Frame is everything the renderer needs to draw one frame.
type Frame struct {
	OutputRect geom.IntRect
	// Passes run in order. The last one draws into the framebuffer.
	Passes      []*RenderPass
	RenderTasks *rendertask.Graph
	Transforms  []spatial.TransformData
	PrimHeaders batch.PrimitiveHeaders
	// GPUBuffers holds the frame-local float and integer blocks.
	GPUBuffers      *gpucache.BufferBuilder
	GPUCacheFrameID gpucache.FrameID
	Composite       *composite.State

	// DeferredResolves are GPU cache blocks the renderer patches with the
	// UVs of external images after upload.
	DeferredResolves []resource.DeferredResolve
	TextureUpdates   []resource.TextureUpdate
	// ResourceErr reports resource requests that failed. The frame is
	// complete without them.
	ResourceErr error

	DebugItems          []DebugItem
	PartialPresentRects []geom.Rect

	HasTextureCacheTasks bool
	HasBeenRendered      bool
	// RootDrawsContent is set when the root picture draws primitives into
	// the framebuffer pass itself instead of only through picture cache
	// tiles.
	RootDrawsContent bool

	Stats FrameStats
}

// MustBeDrawn reports whether the frame wrote into the texture cache and
// has not been rendered yet. Such a frame cannot be dropped in favour of
// a newer one.
func (f *Frame) MustBeDrawn() bool {
	return f.HasTextureCacheTasks && !f.HasBeenRendered
}

// IsNop reports whether the frame only composites existing content, so
// submitting it to the GPU can be skipped. A root that is not tile cached
// redraws its content every frame and is never a no-op.
func (f *Frame) IsNop() bool {
	return len(f.Passes) <= 1 && !f.RootDrawsContent
}

// MarkRendered records that the renderer drew the frame.
func (f *Frame) MarkRendered() { f.HasBeenRendered = true }
