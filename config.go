package wr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/prim"
)

// FontRenderMode is the default glyph rasterization mode.
type FontRenderMode uint8

const (
	FontRenderMono FontRenderMode = iota
	FontRenderAlpha
	FontRenderSubpixel
)

// String returns the mode name.
func (m FontRenderMode) String() string {
	switch m {
	case FontRenderMono:
		return "Mono"
	case FontRenderAlpha:
		return "Alpha"
	case FontRenderSubpixel:
		return "Subpixel"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

func parseFontRenderMode(s string) (FontRenderMode, error) {
	switch strings.ToLower(s) {
	case "mono":
		return FontRenderMono, nil
	case "alpha":
		return FontRenderAlpha, nil
	case "subpixel":
		return FontRenderSubpixel, nil
	default:
		return 0, fmt.Errorf("wr: unknown font render mode %q", s)
	}
}

// ChaseKind selects what ChasePrimitive follows.
type ChaseKind uint8

const (
	ChaseNothing ChaseKind = iota
	ChaseID
	ChaseLocalRect
)

// ChasePrimitive names a primitive whose path through the pipeline is
// logged at debug level. It never changes the output.
type ChasePrimitive struct {
	Kind ChaseKind
	ID   prim.InstanceID
	Rect geom.Rect
}

// Matches reports whether inst with localRect is the chased primitive.
func (c ChasePrimitive) Matches(inst *prim.Instance, localRect geom.Rect) bool {
	switch c.Kind {
	case ChaseNothing:
		return false
	case ChaseID:
		return inst.ID == c.ID
	case ChaseLocalRect:
		return localRect == c.Rect
	default:
		panic(fmt.Sprintf("bug: unknown chase kind %d", c.Kind))
	}
}

// DebugFlags enable debug overlays. They only add Frame.DebugItems.
type DebugFlags uint8

const (
	// DebugPrimitives outlines every visible primitive.
	DebugPrimitives DebugFlags = 1 << iota
	// DebugObscureImages covers large images with opaque rects.
	DebugObscureImages
)

// Config is the frame builder configuration.
type Config struct {
	DefaultFontRenderMode         FontRenderMode
	DualSourceBlendingIsSupported bool
	DualSourceBlendingIsEnabled   bool
	ChasePrimitive                ChasePrimitive
	Testing                       bool

	GPUSupportsFastClears                bool
	GPUSupportsAdvancedBlend             bool
	AdvancedBlendIsCoherent              bool
	GPUSupportsRenderTargetPartialUpdate bool

	// BatchLookbackCount is how many earlier batches a primitive may be
	// merged into.
	BatchLookbackCount int
	// BackgroundColor, if set, is drawn under the root picture cache.
	BackgroundColor *gputypes.Color
	Compositor      composite.CompositorKind
	// TileSizeOverride replaces the picture cache tile size when set.
	TileSizeOverride geom.IntSize
	MaxDepthIDs      int32
	MaxTargetSize    int32

	Debug DebugFlags
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultFontRenderMode:                FontRenderSubpixel,
		GPUSupportsFastClears:                true,
		GPUSupportsRenderTargetPartialUpdate: true,
		BatchLookbackCount:                   10,
		Compositor:                           composite.DrawCompositor(1),
		MaxDepthIDs:                          1 << 22,
		MaxTargetSize:                        2048,
	}
}

// NewConfig returns DefaultConfig with opts applied.
func NewConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// fileConfig is the on-disk form of Config. Absent keys keep their
// defaults.
type fileConfig struct {
	DefaultFontRenderMode                *string    `toml:"default_font_render_mode" yaml:"default_font_render_mode"`
	DualSourceBlendingIsSupported        *bool      `toml:"dual_source_blending_is_supported" yaml:"dual_source_blending_is_supported"`
	DualSourceBlendingIsEnabled          *bool      `toml:"dual_source_blending_is_enabled" yaml:"dual_source_blending_is_enabled"`
	ChasePrimitiveID                     *uint32    `toml:"chase_primitive_id" yaml:"chase_primitive_id"`
	ChasePrimitiveRect                   []float32  `toml:"chase_primitive_rect" yaml:"chase_primitive_rect"`
	Testing                              *bool      `toml:"testing" yaml:"testing"`
	GPUSupportsFastClears                *bool      `toml:"gpu_supports_fast_clears" yaml:"gpu_supports_fast_clears"`
	GPUSupportsAdvancedBlend             *bool      `toml:"gpu_supports_advanced_blend" yaml:"gpu_supports_advanced_blend"`
	AdvancedBlendIsCoherent              *bool      `toml:"advanced_blend_is_coherent" yaml:"advanced_blend_is_coherent"`
	GPUSupportsRenderTargetPartialUpdate *bool      `toml:"gpu_supports_render_target_partial_update" yaml:"gpu_supports_render_target_partial_update"`
	BatchLookbackCount                   *int       `toml:"batch_lookback_count" yaml:"batch_lookback_count"`
	BackgroundColor                      []float32  `toml:"background_color" yaml:"background_color"`
	Compositor                           *string    `toml:"compositor" yaml:"compositor"`
	MaxPartialPresentRects               *int       `toml:"max_partial_present_rects" yaml:"max_partial_present_rects"`
	TileSizeOverride                     []int32    `toml:"tile_size_override" yaml:"tile_size_override"`
	MaxDepthIDs                          *int32     `toml:"max_depth_ids" yaml:"max_depth_ids"`
	MaxTargetSize                        *int32     `toml:"max_target_size" yaml:"max_target_size"`
	Debug                                *debugFile `toml:"debug" yaml:"debug"`
}

type debugFile struct {
	Primitives    bool `toml:"primitives" yaml:"primitives"`
	ObscureImages bool `toml:"obscure_images" yaml:"obscure_images"`
}

// LoadConfig reads a TOML (.toml) or YAML (.yaml, .yml) file on top of
// DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("wr: read config: %w", err)
	}
	return ParseConfig(data, filepath.Ext(path))
}

// ParseConfig decodes data in the format named by ext (".toml", ".yaml"
// or ".yml") on top of DefaultConfig.
func ParseConfig(data []byte, ext string) (Config, error) {
	var fc fileConfig
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("wr: decode toml config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("wr: decode yaml config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownConfigFormat, ext)
	}
	c := DefaultConfig()
	if err := fc.apply(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (fc *fileConfig) apply(c *Config) error {
	if fc.DefaultFontRenderMode != nil {
		m, err := parseFontRenderMode(*fc.DefaultFontRenderMode)
		if err != nil {
			return err
		}
		c.DefaultFontRenderMode = m
	}
	setBool(&c.DualSourceBlendingIsSupported, fc.DualSourceBlendingIsSupported)
	setBool(&c.DualSourceBlendingIsEnabled, fc.DualSourceBlendingIsEnabled)
	setBool(&c.Testing, fc.Testing)
	setBool(&c.GPUSupportsFastClears, fc.GPUSupportsFastClears)
	setBool(&c.GPUSupportsAdvancedBlend, fc.GPUSupportsAdvancedBlend)
	setBool(&c.AdvancedBlendIsCoherent, fc.AdvancedBlendIsCoherent)
	setBool(&c.GPUSupportsRenderTargetPartialUpdate, fc.GPUSupportsRenderTargetPartialUpdate)

	switch {
	case fc.ChasePrimitiveID != nil:
		c.ChasePrimitive = ChasePrimitive{Kind: ChaseID, ID: prim.InstanceID(*fc.ChasePrimitiveID)}
	case fc.ChasePrimitiveRect != nil:
		if len(fc.ChasePrimitiveRect) != 4 {
			return fmt.Errorf("wr: chase_primitive_rect needs 4 values, got %d", len(fc.ChasePrimitiveRect))
		}
		r := fc.ChasePrimitiveRect
		c.ChasePrimitive = ChasePrimitive{Kind: ChaseLocalRect, Rect: geom.NewRect(r[0], r[1], r[2], r[3])}
	}

	if fc.BatchLookbackCount != nil {
		c.BatchLookbackCount = *fc.BatchLookbackCount
	}
	if fc.BackgroundColor != nil {
		if len(fc.BackgroundColor) != 4 {
			return fmt.Errorf("wr: background_color needs 4 values, got %d", len(fc.BackgroundColor))
		}
		bg := gputypes.Color{}
		bg.R, bg.G, bg.B, bg.A = float64(fc.BackgroundColor[0]), float64(fc.BackgroundColor[1]), float64(fc.BackgroundColor[2]), float64(fc.BackgroundColor[3])
		c.BackgroundColor = &bg
	}
	if fc.Compositor != nil {
		switch strings.ToLower(*fc.Compositor) {
		case "draw":
			c.Compositor = composite.DrawCompositor(c.Compositor.MaxPartialPresentRects)
		case "native":
			c.Compositor = composite.NativeCompositor(1)
		default:
			return fmt.Errorf("wr: unknown compositor %q", *fc.Compositor)
		}
	}
	if fc.MaxPartialPresentRects != nil {
		c.Compositor.MaxPartialPresentRects = *fc.MaxPartialPresentRects
	}
	if fc.TileSizeOverride != nil {
		if len(fc.TileSizeOverride) != 2 {
			return fmt.Errorf("wr: tile_size_override needs 2 values, got %d", len(fc.TileSizeOverride))
		}
		c.TileSizeOverride = geom.IntSize{Width: fc.TileSizeOverride[0], Height: fc.TileSizeOverride[1]}
	}
	if fc.MaxDepthIDs != nil {
		c.MaxDepthIDs = *fc.MaxDepthIDs
	}
	if fc.MaxTargetSize != nil {
		c.MaxTargetSize = *fc.MaxTargetSize
	}
	if fc.Debug != nil {
		c.Debug = 0
		if fc.Debug.Primitives {
			c.Debug |= DebugPrimitives
		}
		if fc.Debug.ObscureImages {
			c.Debug |= DebugObscureImages
		}
	}
	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
