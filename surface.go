package wr

import (
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/rendertask"
	"github.com/gogpu/wr/spatial"
)

// SurfaceRenderTasks pairs the task a surface is drawn into with the
// task children of the surface attach to. For plain surfaces both are
// the same task.
type SurfaceRenderTasks struct {
	// Root is the task the parent composites as the surface content.
	Root rendertask.ID
	Port rendertask.ID
	// Shadows are the blurred drop shadow tasks, composited under Root in
	// filter order.
	Shadows []rendertask.ID
	// Backdrop is the readback of the parent for a mix blend without
	// advanced blending, or InvalidID.
	Backdrop rendertask.ID
}

// All returns every task the parent depends on.
func (t *SurfaceRenderTasks) All() []rendertask.ID {
	ids := make([]rendertask.ID, 0, len(t.Shadows)+2)
	ids = append(ids, t.Shadows...)
	ids = append(ids, t.Root)
	if t.Backdrop != rendertask.InvalidID {
		ids = append(ids, t.Backdrop)
	}
	return ids
}

// SurfaceInfo is one rendering surface of the frame: the main
// framebuffer or the offscreen target of a picture with a composite mode.
type SurfaceInfo struct {
	RasterSpatialNode  spatial.NodeIndex
	SurfaceSpatialNode spatial.NodeIndex
	DevicePixelScale   float32
	// InflationFactor is how far a blur on this surface reaches, in local
	// pixels.
	InflationFactor float32
	ScaleFactors    [2]float32

	// MapLocalToSurface is retargeted once per cluster during visibility.
	MapLocalToSurface spatial.SpaceMapper
	// ClippingRect bounds what can be seen of the surface, in surface
	// space. It is the screen unmapped into the surface.
	ClippingRect geom.Rect

	// RenderTasks is set by the prepare pass.
	RenderTasks *SurfaceRenderTasks
}

func newSurfaceInfo(surfaceNode, rasterNode spatial.NodeIndex, inflation float32, worldRect geom.Rect,
	tree *spatial.Tree, devicePixelScale float32, scale [2]float32) SurfaceInfo {
	toWorld := spatial.NewSpaceMapperWithTarget(spatial.RootNode, surfaceNode, worldRect, tree)
	clipping, ok := toWorld.Unmap(worldRect)
	if ok {
		clipping = clipping.Inflate(inflation, inflation)
	} else {
		clipping = geom.MaxRect()
	}
	return SurfaceInfo{
		RasterSpatialNode:  rasterNode,
		SurfaceSpatialNode: surfaceNode,
		DevicePixelScale:   devicePixelScale,
		InflationFactor:    inflation,
		ScaleFactors:       scale,
		MapLocalToSurface:  spatial.NewSpaceMapper(surfaceNode, clipping),
		ClippingRect:       clipping,
	}
}

// GetSurfaceRect clips a surface-space rect to the visible part of the
// surface and returns it in device pixels. It fails when nothing is left.
func (s *SurfaceInfo) GetSurfaceRect(local geom.Rect) (geom.IntRect, bool) {
	r, ok := local.Intersection(s.ClippingRect)
	if !ok {
		return geom.IntRect{}, false
	}
	dev := s.MapToDeviceRect(r).RoundOut().ToIntRect()
	if dev.IsEmpty() {
		return geom.IntRect{}, false
	}
	return dev, true
}

// MapToDeviceRect scales a surface-space rect into device pixels. The
// raster root of a surface is its own spatial node.
func (s *SurfaceInfo) MapToDeviceRect(r geom.Rect) geom.Rect {
	return r.Scale(s.DevicePixelScale, s.DevicePixelScale)
}

// surfaceBuilder tracks the render tasks that new child tasks depend on
// while the prepare pass descends into surfaces.
type surfaceBuilder struct {
	stack [][]rendertask.ID
}

func (b *surfaceBuilder) reset() { b.stack = b.stack[:0] }

func (b *surfaceBuilder) push(ports ...rendertask.ID) {
	b.stack = append(b.stack, ports)
}

func (b *surfaceBuilder) pop() {
	if len(b.stack) == 0 {
		panic("bug: surface builder popped more than pushed")
	}
	b.stack = b.stack[:len(b.stack)-1]
}

// addChildRenderTask makes every task of the current surface depend on
// child.
func (b *surfaceBuilder) addChildRenderTask(child rendertask.ID, g *rendertask.Graph) {
	if len(b.stack) == 0 {
		panic("bug: render task added outside of a surface")
	}
	for _, parent := range b.stack[len(b.stack)-1] {
		g.AddDependency(parent, child)
	}
}
