package resource

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/internal/imagetiling"
)

// ImageKey identifies an image registered with the cache.
type ImageKey uint64

// ImageRendering is the sampling mode requested for an image.
type ImageRendering uint8

const (
	RenderingAuto ImageRendering = iota
	RenderingCrispEdges
	RenderingPixelated
)

// String returns the rendering mode name.
func (r ImageRendering) String() string {
	switch r {
	case RenderingAuto:
		return "Auto"
	case RenderingCrispEdges:
		return "CrispEdges"
	case RenderingPixelated:
		return "Pixelated"
	default:
		return fmt.Sprintf("Unknown(%d)", r)
	}
}

// ImageDescriptor describes the pixels of an image.
type ImageDescriptor struct {
	Size     geom.IntSize
	Format   gputypes.TextureFormat
	IsOpaque bool
}

// BytesPerPixel returns the size of one texel of d.Format.
func (d ImageDescriptor) BytesPerPixel() int {
	return bytesPerPixel(d.Format)
}

func bytesPerPixel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	default:
		return 4
	}
}

// Rasterizer produces the pixels of a region of a generated image. It
// may be called from several goroutines at once.
type Rasterizer interface {
	Rasterize(rect geom.IntRect) ([]byte, error)
}

// RasterizerFunc adapts a function to Rasterizer.
type RasterizerFunc func(rect geom.IntRect) ([]byte, error)

// Rasterize calls f.
func (f RasterizerFunc) Rasterize(rect geom.IntRect) ([]byte, error) { return f(rect) }

// ImageTemplate is the source of an image. Exactly one of Data, External
// and Rasterizer is used, in that order of preference.
type ImageTemplate struct {
	Descriptor ImageDescriptor
	// Data holds tightly packed pixels.
	Data []byte
	// External images are owned by the embedder and resolved by the
	// renderer after the frame is built.
	External bool
	// Rasterizer generates pixels on demand.
	Rasterizer Rasterizer
	// TileSize splits the image into square tiles when non-zero.
	TileSize int32
	// VisibleRect is the valid area of the image. Empty means all of it.
	VisibleRect geom.IntRect
}

// ImageProperties is what the frame builder needs to know about an image
// without touching its pixels.
type ImageProperties struct {
	Descriptor ImageDescriptor
	External   bool
	// Tiling is the tile size of a tiled image, zero otherwise.
	Tiling      int32
	VisibleRect geom.IntRect
}

// IsTiled reports whether the image must be requested tile by tile.
func (p ImageProperties) IsTiled() bool { return p.Tiling > 0 }

// ImageRequest asks for an image, or a tile of a tiled image, to be
// resident in the texture cache.
type ImageRequest struct {
	Key       ImageKey
	Rendering ImageRendering
	Tile      imagetiling.TileOffset
	HasTile   bool
}

// WithTile returns a copy of r addressing one tile.
func (r ImageRequest) WithTile(off imagetiling.TileOffset) ImageRequest {
	r.Tile = off
	r.HasTile = true
	return r
}

func hashRequest(r ImageRequest) uint64 {
	h := uint64(r.Key)*0x9e3779b97f4a7c15 ^ uint64(r.Rendering)<<60
	if r.HasTile {
		h ^= uint64(uint32(r.Tile.X))<<32 | uint64(uint32(r.Tile.Y))
		h ^= 1 << 59
	}
	return h
}

// tileRect returns the pixel rect a request covers.
func tileRect(props ImageProperties, r ImageRequest) geom.IntRect {
	if !r.HasTile || props.Tiling <= 0 {
		return props.VisibleRect
	}
	ts := props.Tiling
	rect := geom.NewIntRect(r.Tile.X*ts, r.Tile.Y*ts, ts, ts)
	out, ok := rect.Intersection(props.VisibleRect)
	if !ok {
		return geom.IntRect{}
	}
	return out
}
