package prim

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/spatial"
)

// PictureIndex addresses a picture in the store.
type PictureIndex uint32

// SurfaceIndex addresses a surface built for the current frame.
type SurfaceIndex uint32

// RootSurfaceIndex is the surface of the main framebuffer.
const RootSurfaceIndex SurfaceIndex = 0

// SliceID identifies a picture cache slice.
type SliceID uint64

// BlurSigmaScale converts a blur standard deviation into the distance
// the blur spreads content.
const BlurSigmaScale = 3

// FilterKind selects a picture filter.
type FilterKind uint8

const (
	FilterOpacity FilterKind = iota
	FilterBlur
	FilterDropShadows
)

// String returns the filter name.
func (k FilterKind) String() string {
	switch k {
	case FilterOpacity:
		return "Opacity"
	case FilterBlur:
		return "Blur"
	case FilterDropShadows:
		return "DropShadows"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Shadow is one drop shadow.
type Shadow struct {
	Offset     geom.Vector
	Color      gputypes.Color
	BlurRadius float32
}

// Filter is a picture filter. Only the fields of Kind are used.
type Filter struct {
	Kind    FilterKind
	Opacity float32
	// StdDeviation is the blur standard deviation in local pixels.
	StdDeviation float32
	Shadows      []Shadow
}

// IsVisible reports whether content drawn through f can be seen.
func (f *Filter) IsVisible() bool {
	return f.Kind != FilterOpacity || f.Opacity > 0
}

// MixBlendMode is a separable blend mode applied when compositing a
// picture onto its backdrop.
type MixBlendMode uint8

const (
	MixBlendMultiply MixBlendMode = iota
	MixBlendScreen
	MixBlendOverlay
	MixBlendDarken
	MixBlendLighten
	MixBlendDifference
	MixBlendExclusion
)

// String returns the blend mode name.
func (m MixBlendMode) String() string {
	switch m {
	case MixBlendMultiply:
		return "Multiply"
	case MixBlendScreen:
		return "Screen"
	case MixBlendOverlay:
		return "Overlay"
	case MixBlendDarken:
		return "Darken"
	case MixBlendLighten:
		return "Lighten"
	case MixBlendDifference:
		return "Difference"
	case MixBlendExclusion:
		return "Exclusion"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// CompositeModeKind tags a CompositeMode.
type CompositeModeKind uint8

const (
	// CompositeTileCache renders the picture into cached tiles.
	CompositeTileCache CompositeModeKind = iota
	// CompositeFilter applies Filter when compositing.
	CompositeFilter
	// CompositeMixBlend blends with the backdrop.
	CompositeMixBlend
	// CompositeBlit isolates the picture without an effect.
	CompositeBlit
)

// String returns the mode name.
func (k CompositeModeKind) String() string {
	switch k {
	case CompositeTileCache:
		return "TileCache"
	case CompositeFilter:
		return "Filter"
	case CompositeMixBlend:
		return "MixBlend"
	case CompositeBlit:
		return "Blit"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// CompositeMode describes how a picture with its own surface is drawn
// into its parent.
type CompositeMode struct {
	Kind     CompositeModeKind
	SliceID  SliceID
	Filter   Filter
	MixBlend MixBlendMode
}

// TileCacheMode returns a picture cache mode for slice.
func TileCacheMode(slice SliceID) *CompositeMode {
	return &CompositeMode{Kind: CompositeTileCache, SliceID: slice}
}

// FilterMode returns a filter mode.
func FilterMode(f Filter) *CompositeMode {
	return &CompositeMode{Kind: CompositeFilter, Filter: f}
}

// MixBlendModeOf returns a mix blend mode.
func MixBlendModeOf(m MixBlendMode) *CompositeMode {
	return &CompositeMode{Kind: CompositeMixBlend, MixBlend: m}
}

// BlitMode returns an isolating blit mode.
func BlitMode() *CompositeMode {
	return &CompositeMode{Kind: CompositeBlit}
}

// InflationFactor returns how far content drawn with m can spread
// outside its local rect.
func (m *CompositeMode) InflationFactor() float32 {
	if m.Kind != CompositeFilter {
		return 0
	}
	switch m.Filter.Kind {
	case FilterBlur:
		return math32.Ceil(m.Filter.StdDeviation * BlurSigmaScale)
	case FilterDropShadows:
		var f float32
		for _, s := range m.Filter.Shadows {
			f = max(f, math32.Ceil(s.BlurRadius*BlurSigmaScale))
		}
		return f
	case FilterOpacity:
		return 0
	default:
		panic(fmt.Sprintf("bug: unhandled filter %v", m.Filter.Kind))
	}
}

// InflatePictureRect grows a picture rect by the area a blur or drop
// shadow reaches. scale holds the raster scale factors of the surface.
func (m *CompositeMode) InflatePictureRect(r geom.Rect, scale [2]float32) geom.Rect {
	if m.Kind != CompositeFilter {
		return r
	}
	switch m.Filter.Kind {
	case FilterBlur:
		return r.Inflate(inflate(m.Filter.StdDeviation, scale[0]), inflate(m.Filter.StdDeviation, scale[1]))
	case FilterDropShadows:
		out := r
		for _, s := range m.Filter.Shadows {
			shadow := r.Inflate(inflate(s.BlurRadius, scale[0]), inflate(s.BlurRadius, scale[1]))
			out = out.Union(shadow.Translate(s.Offset))
		}
		return out
	case FilterOpacity:
		return r
	default:
		panic(fmt.Sprintf("bug: unhandled filter %v", m.Filter.Kind))
	}
}

func inflate(stdDev, scale float32) float32 {
	if scale <= 0 {
		scale = 1
	}
	return math32.Ceil(stdDev*scale*BlurSigmaScale) / scale
}

// RasterConfig is set on pictures drawn into their own surface.
type RasterConfig struct {
	CompositeMode CompositeMode
	Surface       SurfaceIndex
	// ClippedBoundingRect is the world rect the surface has to cover,
	// computed after visibility.
	ClippedBoundingRect geom.Rect
}

// PictureOptions are scene-building options of a picture.
type PictureOptions struct {
	// InflateIfRequired grows the precise rect by the filter's reach.
	InflateIfRequired bool
}

// Picture is a node of the picture tree.
type Picture struct {
	List        List
	SpatialNode spatial.NodeIndex
	// RequestedCompositeMode is nil for pass-through pictures.
	RequestedCompositeMode *CompositeMode
	// RasterConfig is set by the picture update pass when the picture
	// gets a surface this frame.
	RasterConfig       *RasterConfig
	Options            PictureOptions
	ApplyLocalClipRect bool

	EstimatedLocalRect   geom.Rect
	PreciseLocalRect     geom.Rect
	PrevPreciseLocalRect geom.Rect

	SegmentsAreValid bool
	// ExtraGPUHandles hold per-shadow data that depends on the precise
	// local rect.
	ExtraGPUHandles []gpucache.Handle
}

// IsVisible reports whether the picture can produce any pixels.
func (p *Picture) IsVisible() bool {
	if p.RequestedCompositeMode != nil && p.RequestedCompositeMode.Kind == CompositeFilter {
		return p.RequestedCompositeMode.Filter.IsVisible()
	}
	return true
}

// IsPassthrough reports whether the picture draws straight into its
// parent's surface this frame.
func (p *Picture) IsPassthrough() bool { return p.RasterConfig == nil }

// TileCacheSlice returns the slice of a picture cache picture.
func (p *Picture) TileCacheSlice() (SliceID, bool) {
	if p.RasterConfig == nil || p.RasterConfig.CompositeMode.Kind != CompositeTileCache {
		return 0, false
	}
	return p.RasterConfig.CompositeMode.SliceID, true
}
