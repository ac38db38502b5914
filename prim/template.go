package prim

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/internal/imagetiling"
	"github.com/gogpu/wr/resource"
)

// TemplateHandle addresses an interned primitive template.
type TemplateHandle uint32

// ImageData is the payload of an image template.
type ImageData struct {
	Key       resource.ImageKey
	Rendering resource.ImageRendering
	// StretchSize is the size one repetition of the image is drawn at.
	StretchSize geom.Size
	// TileSpacing is the gap between repetitions.
	TileSpacing geom.Size
	Color       gputypes.Color
}

// Stride returns the distance between repetitions.
func (d *ImageData) Stride() geom.Size {
	return geom.Sz(d.StretchSize.Width+d.TileSpacing.Width, d.StretchSize.Height+d.TileSpacing.Height)
}

// Template is interned primitive data shared by every instance of the
// same primitive.
type Template struct {
	Kind     Kind
	PrimRect geom.Rect
	// Color is the fill of rectangles, clears and backdrops, and the
	// tint of everything else.
	Color gputypes.Color
	Image ImageData
	// MayNeedRepetition is cleared once repetitions are decomposed on
	// the CPU.
	MayNeedRepetition bool

	GPUHandle gpucache.Handle
}

// IsOpaque reports whether the primitive covers its rect with opaque
// pixels regardless of what is underneath.
func (t *Template) IsOpaque() bool {
	switch t.Kind {
	case KindRectangle, KindBackdrop:
		return t.Color.A >= 1
	default:
		return false
	}
}

// PremultipliedColor returns Color premultiplied by its alpha.
func (t *Template) PremultipliedColor() gpucache.Block {
	return Premultiply(t.Color)
}

// Premultiply converts c into a premultiplied GPU block.
func Premultiply(c gputypes.Color) gpucache.Block {
	a := float32(c.A)
	return gpucache.Block{float32(c.R) * a, float32(c.G) * a, float32(c.B) * a, a}
}

// WriteGPUBlocks uploads the template to the GPU cache unless it is
// already current.
func (t *Template) WriteGPUBlocks(gpu *gpucache.Cache) {
	req := gpu.Request(&t.GPUHandle)
	if req == nil {
		return
	}
	req.Push(t.PremultipliedColor())
	if t.Kind == KindImage {
		req.Push(gpucache.Block{t.Image.StretchSize.Width, t.Image.StretchSize.Height,
			t.Image.TileSpacing.Width, t.Image.TileSpacing.Height})
	}
	req.PushRect(t.PrimRect.Min.X, t.PrimRect.Min.Y, t.PrimRect.Max.X, t.PrimRect.Max.Y)
	req.Close()
}

// ImageInstanceIndex addresses the per-instance state of an image.
type ImageInstanceIndex uint32

// VisibleImageTile is a tile of a tiled image that survived culling.
type VisibleImageTile struct {
	TileOffset    imagetiling.TileOffset
	EdgeFlags     geom.EdgeMask
	LocalRect     geom.Rect
	LocalClipRect geom.Rect
}

// ImageInstance is per-instance image state rebuilt every frame.
type ImageInstance struct {
	TightLocalClipRect geom.Rect
	VisibleTiles       []VisibleImageTile
}
