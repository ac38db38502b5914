// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package rendertask holds the render task graph: the off-screen work a
// frame needs, the passes it is split into and the render targets the
// passes allocate.
package rendertask

import (
	"fmt"

	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/prim"
	"github.com/gogpu/wr/resource"
	"github.com/gogpu/wr/spatial"
)

// ID identifies a task in a Graph.
type ID uint32

// InvalidID is the zero-value sentinel for "no task".
const InvalidID ID = ^ID(0)

// Kind tags the payload of a Task.
type Kind uint8

const (
	KindPicture Kind = iota
	KindPrim
	KindCacheMask
	KindBlur
	KindReadback
	KindScaling
	KindBlit
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPicture:
		return "Picture"
	case KindPrim:
		return "Prim"
	case KindCacheMask:
		return "CacheMask"
	case KindBlur:
		return "Blur"
	case KindReadback:
		return "Readback"
	case KindScaling:
		return "Scaling"
	case KindBlit:
		return "Blit"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// LocationKind tags a Location.
type LocationKind uint8

const (
	// LocationUnallocated tasks get a Dynamic location when their pass
	// is built.
	LocationUnallocated LocationKind = iota
	// LocationFixed tasks draw into a known rect of the framebuffer.
	LocationFixed
	// LocationDynamic tasks live in a shared render target atlas.
	LocationDynamic
	// LocationTextureCache tasks write into the texture cache.
	LocationTextureCache
	// LocationPictureCache tasks draw into a picture cache tile.
	LocationPictureCache
)

// String returns the location kind name.
func (k LocationKind) String() string {
	switch k {
	case LocationUnallocated:
		return "Unallocated"
	case LocationFixed:
		return "Fixed"
	case LocationDynamic:
		return "Dynamic"
	case LocationTextureCache:
		return "TextureCache"
	case LocationPictureCache:
		return "PictureCache"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Location says where a task writes its output.
type Location struct {
	Kind LocationKind
	// Size is the requested size of an unallocated task. Once allocated it
	// is the size of Rect, which is smaller than requested when the task
	// did not fit the maximum target size.
	Size geom.IntSize
	// Rect is the allocated rect inside the target.
	Rect geom.IntRect
	// TargetIndex is the atlas index of a Dynamic task.
	TargetIndex int
	// Texture and Layer address a texture cache target.
	Texture resource.TextureID
	Layer   int32
	// Tile identifies a picture cache target.
	Tile composite.NativeTileID
}

// Unallocated returns a location to be allocated in a target of size.
func Unallocated(size geom.IntSize) Location {
	return Location{Kind: LocationUnallocated, Size: size}
}

// Fixed returns a location at rect of the framebuffer.
func Fixed(rect geom.IntRect) Location {
	return Location{Kind: LocationFixed, Rect: rect, Size: rect.Size()}
}

// TextureCacheLocation returns a location inside a texture cache layer.
func TextureCacheLocation(tex resource.TextureID, layer int32, rect geom.IntRect) Location {
	return Location{Kind: LocationTextureCache, Texture: tex, Layer: layer, Rect: rect, Size: rect.Size()}
}

// PictureCacheLocation returns a location covering a picture cache tile.
func PictureCacheLocation(tile composite.NativeTileID, size geom.IntSize) Location {
	return Location{Kind: LocationPictureCache, Tile: tile, Size: size, Rect: geom.IntRectFromSize(size)}
}

// TargetKind is the pixel format family of a target.
type TargetKind uint8

const (
	TargetColor TargetKind = iota
	TargetAlpha
)

// String returns the target kind name.
func (k TargetKind) String() string {
	switch k {
	case TargetColor:
		return "Color"
	case TargetAlpha:
		return "Alpha"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// SavedTargetIndex refers to a target kept alive for a later pass.
type SavedTargetIndex int32

const (
	// NotSaved marks a task whose target is only read by the next pass.
	NotSaved SavedTargetIndex = -1
	// SavedPending marks a task whose target must be saved. It is
	// resolved when the pass holding the task is built.
	SavedPending SavedTargetIndex = -2
)

// PictureTask renders the content of a picture.
type PictureTask struct {
	Picture            prim.PictureIndex
	ContentOrigin      geom.Point
	SurfaceSpatialNode spatial.NodeIndex
	RasterSpatialNode  spatial.NodeIndex
	DevicePixelScale   float32
	VisMask            prim.VisibilityMask
	// ScissorRect and ValidRect are set for picture cache tiles, in
	// target pixels.
	ScissorRect geom.IntRect
	ValidRect   geom.IntRect
	// CommandBuffer is the index of the command buffer holding the
	// picture's primitives.
	CommandBuffer int
}

// PrimTask renders one masked quad primitive or quad segment.
type PrimTask struct {
	PrimAddress      gpucache.BufferAddress
	TransformID      spatial.TransformPaletteID
	EdgeFlags        geom.EdgeMask
	QuadFlags        uint8
	PrimSpatialNode  spatial.NodeIndex
	RasterNode       spatial.NodeIndex
	ContentOrigin    geom.Point
	DevicePixelScale float32
	ClipRange        clip.NodeRange
	// NeedsScissorRect is set when the quad is not clipped to the task
	// rect in the shader.
	NeedsScissorRect bool
}

// CacheMaskTask renders a clip mask.
type CacheMaskTask struct {
	ActualRect       geom.Rect
	ClipRange        clip.NodeRange
	RootSpatialNode  spatial.NodeIndex
	DevicePixelScale float32
}

// BlurDirection is the axis of one blur pass.
type BlurDirection uint8

const (
	BlurHorizontal BlurDirection = iota
	BlurVertical
)

// BlurTask runs one separable blur pass over Source.
type BlurTask struct {
	StdDeviation float32
	Direction    BlurDirection
	Source       ID
}

// MaskSubPass draws the clip mask of a primitive task after its pattern.
type MaskSubPass struct {
	ClipRange       clip.NodeRange
	PrimSpatialNode spatial.NodeIndex
	PrimAddress     gpucache.BufferAddress
}

// Task is one node of the graph. Exactly one payload matching Kind is
// set; Readback, Scaling and Blit tasks only use Source.
type Task struct {
	Kind       Kind
	Location   Location
	TargetKind TargetKind
	Children   []ID
	SubPasses  []MaskSubPass
	SavedIndex SavedTargetIndex
	// Pass is the index of the pass the task runs in.
	Pass int
	// DataAddress is the task's entry in the task data buffer.
	DataAddress gpucache.BufferAddress

	Picture *PictureTask
	Prim    *PrimTask
	Mask    *CacheMaskTask
	Blur    *BlurTask
	Source  ID
}

// NewPictureTask creates a color task drawing a picture.
func NewPictureTask(loc Location, p PictureTask) Task {
	return Task{Kind: KindPicture, Location: loc, TargetKind: TargetColor, Picture: &p}
}

// NewPrimTask creates a color task drawing a quad primitive.
func NewPrimTask(loc Location, p PrimTask) Task {
	return Task{Kind: KindPrim, Location: loc, TargetKind: TargetColor, Prim: &p}
}

// NewCacheMaskTask creates an alpha task drawing a clip mask.
func NewCacheMaskTask(size geom.IntSize, m CacheMaskTask) Task {
	return Task{Kind: KindCacheMask, Location: Unallocated(size), TargetKind: TargetAlpha, Mask: &m}
}

// NewBlurTask creates a blur pass over source.
func NewBlurTask(size geom.IntSize, kind TargetKind, b BlurTask) Task {
	return Task{Kind: KindBlur, Location: Unallocated(size), TargetKind: kind, Blur: &b, Source: b.Source}
}

// NewBlitTask copies source into a new task.
func NewBlitTask(size geom.IntSize, source ID) Task {
	return Task{Kind: KindBlit, Location: Unallocated(size), TargetKind: TargetColor, Source: source}
}

// NewReadbackTask reads back the framebuffer under a mix-blend picture.
func NewReadbackTask(size geom.IntSize) Task {
	return Task{Kind: KindReadback, Location: Unallocated(size), TargetKind: TargetColor, Source: InvalidID}
}

// NewScalingTask downscales source for large blurs.
func NewScalingTask(size geom.IntSize, kind TargetKind, source ID) Task {
	return Task{Kind: KindScaling, Location: Unallocated(size), TargetKind: kind, Source: source}
}

// AddSubPass attaches a mask sub pass.
func (t *Task) AddSubPass(sp MaskSubPass) { t.SubPasses = append(t.SubPasses, sp) }

// Size returns the size of the task's output.
func (t *Task) Size() geom.IntSize { return t.Location.Size }

// TargetRect returns the rect of the task in its target.
func (t *Task) TargetRect() geom.IntRect { return t.Location.Rect }
