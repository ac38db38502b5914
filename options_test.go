package wr

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/geom"
)

func TestNewFrameBuilderDefault(t *testing.T) {
	fb := NewFrameBuilder()
	if fb == nil {
		t.Fatal("NewFrameBuilder returned nil")
	}
	got := fb.Config()
	want := DefaultConfig()
	if got.BatchLookbackCount != want.BatchLookbackCount {
		t.Errorf("BatchLookbackCount = %d, want %d", got.BatchLookbackCount, want.BatchLookbackCount)
	}
	if got.MaxTargetSize != want.MaxTargetSize {
		t.Errorf("MaxTargetSize = %d, want %d", got.MaxTargetSize, want.MaxTargetSize)
	}
	if got.BackgroundColor != nil {
		t.Error("BackgroundColor should be unset by default")
	}
	if fb.Stamp() != 0 {
		t.Errorf("Stamp() = %d, want 0", fb.Stamp())
	}
}

func TestWithBatchLookbackClamps(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{4, 4},
		{1, 1},
		{0, 1},
		{-3, 1},
	}
	for _, tt := range tests {
		c := NewConfig(WithBatchLookback(tt.in))
		if c.BatchLookbackCount != tt.want {
			t.Errorf("WithBatchLookback(%d) = %d, want %d", tt.in, c.BatchLookbackCount, tt.want)
		}
	}
}

func TestWithChasePrimitive(t *testing.T) {
	c := NewConfig(WithChasePrimitiveID(42))
	if c.ChasePrimitive.Kind != ChaseID || c.ChasePrimitive.ID != 42 {
		t.Errorf("WithChasePrimitiveID: got %+v", c.ChasePrimitive)
	}

	r := geom.NewRect(1, 2, 3, 4)
	c = NewConfig(WithChasePrimitiveRect(r))
	if c.ChasePrimitive.Kind != ChaseLocalRect || c.ChasePrimitive.Rect != r {
		t.Errorf("WithChasePrimitiveRect: got %+v", c.ChasePrimitive)
	}
}

func TestWithBackgroundColorCopies(t *testing.T) {
	color := gputypes.Color{R: 1, A: 1}
	c := NewConfig(WithBackgroundColor(color))
	color.G = 1
	if c.BackgroundColor == nil {
		t.Fatal("BackgroundColor not set")
	}
	if c.BackgroundColor.G != 0 {
		t.Error("BackgroundColor must not alias the caller's value")
	}
}

func TestWithConfigThenOptions(t *testing.T) {
	base := DefaultConfig()
	base.MaxTargetSize = 512
	c := NewConfig(WithConfig(base), WithMaxTargetSize(1024), WithTesting())
	if c.MaxTargetSize != 1024 {
		t.Errorf("MaxTargetSize = %d, want 1024", c.MaxTargetSize)
	}
	if !c.Testing {
		t.Error("WithTesting after WithConfig was lost")
	}
}

func TestGPUFeatureOptions(t *testing.T) {
	c := NewConfig(
		WithAdvancedBlend(true, false),
		WithDualSourceBlending(true, true),
		WithCompositor(composite.NativeCompositor(1)),
		WithTileSizeOverride(geom.IntSize{Width: 256, Height: 256}),
		WithDebugFlags(DebugPrimitives|DebugObscureImages),
	)
	if !c.GPUSupportsAdvancedBlend || c.AdvancedBlendIsCoherent {
		t.Errorf("advanced blend = %v/%v, want true/false", c.GPUSupportsAdvancedBlend, c.AdvancedBlendIsCoherent)
	}
	if !c.DualSourceBlendingIsSupported || !c.DualSourceBlendingIsEnabled {
		t.Error("dual source blending not enabled")
	}
	if c.Compositor != composite.NativeCompositor(1) {
		t.Errorf("Compositor = %+v", c.Compositor)
	}
	if c.TileSizeOverride != (geom.IntSize{Width: 256, Height: 256}) {
		t.Errorf("TileSizeOverride = %v", c.TileSizeOverride)
	}
	if c.Debug&DebugObscureImages == 0 {
		t.Error("DebugObscureImages not set")
	}
}
