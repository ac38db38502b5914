package wr

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/prim"
)

// Option configures a FrameBuilder during creation.
//
// Example:
//
//	fb := wr.NewFrameBuilder(
//	    wr.WithBatchLookback(4),
//	    wr.WithCompositor(composite.NativeCompositor(1)),
//	)
type Option func(*Config)

// WithConfig replaces the whole configuration, for example with one read
// by LoadConfig. Options after it still apply.
func WithConfig(c Config) Option {
	return func(dst *Config) {
		*dst = c
	}
}

// WithBatchLookback sets how many earlier batches a primitive may be
// merged into. Values below 1 are clamped to 1.
func WithBatchLookback(n int) Option {
	return func(c *Config) {
		c.BatchLookbackCount = max(n, 1)
	}
}

// WithMaxTargetSize sets the edge length of offscreen render targets.
func WithMaxTargetSize(size int32) Option {
	return func(c *Config) {
		c.MaxTargetSize = size
	}
}

// WithChasePrimitiveID logs the path of the primitive with id.
func WithChasePrimitiveID(id prim.InstanceID) Option {
	return func(c *Config) {
		c.ChasePrimitive = ChasePrimitive{Kind: ChaseID, ID: id}
	}
}

// WithChasePrimitiveRect logs the path of primitives whose local rect is r.
func WithChasePrimitiveRect(r geom.Rect) Option {
	return func(c *Config) {
		c.ChasePrimitive = ChasePrimitive{Kind: ChaseLocalRect, Rect: r}
	}
}

// WithCompositor selects the compositor the frame is prepared for.
func WithCompositor(kind composite.CompositorKind) Option {
	return func(c *Config) {
		c.Compositor = kind
	}
}

// WithTileSizeOverride forces the picture cache tile size.
func WithTileSizeOverride(size geom.IntSize) Option {
	return func(c *Config) {
		c.TileSizeOverride = size
	}
}

// WithBackgroundColor sets a color drawn under the root picture cache.
func WithBackgroundColor(color gputypes.Color) Option {
	return func(c *Config) {
		c.BackgroundColor = &color
	}
}

// WithDebugFlags enables debug overlays.
func WithDebugFlags(flags DebugFlags) Option {
	return func(c *Config) {
		c.Debug = flags
	}
}

// WithAdvancedBlend declares GPU support for advanced blend equations.
// Mix-blend pictures then skip the backdrop readback.
func WithAdvancedBlend(supported, coherent bool) Option {
	return func(c *Config) {
		c.GPUSupportsAdvancedBlend = supported
		c.AdvancedBlendIsCoherent = coherent
	}
}

// WithDualSourceBlending declares GPU support for dual source blending
// and whether subpixel text may use it.
func WithDualSourceBlending(supported, enabled bool) Option {
	return func(c *Config) {
		c.DualSourceBlendingIsSupported = supported
		c.DualSourceBlendingIsEnabled = enabled
	}
}

// WithTesting marks the builder as running under tests.
func WithTesting() Option {
	return func(c *Config) {
		c.Testing = true
	}
}
