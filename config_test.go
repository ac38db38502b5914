package wr

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/geom"
)

const tomlConfig = `
default_font_render_mode = "alpha"
batch_lookback_count = 4
background_color = [1.0, 1.0, 1.0, 1.0]
compositor = "draw"
max_partial_present_rects = 2
tile_size_override = [256, 128]
chase_primitive_rect = [0.0, 0.0, 10.0, 20.0]

[debug]
primitives = true
`

const yamlConfig = `
default_font_render_mode: mono
gpu_supports_fast_clears: false
compositor: native
max_target_size: 4096
chase_primitive_id: 7
debug:
  obscure_images: true
`

func TestParseConfigTOML(t *testing.T) {
	c, err := ParseConfig([]byte(tomlConfig), ".toml")
	require.NoError(t, err)

	assert.Equal(t, FontRenderAlpha, c.DefaultFontRenderMode)
	assert.Equal(t, 4, c.BatchLookbackCount)
	require.NotNil(t, c.BackgroundColor)
	assert.InDelta(t, 1.0, c.BackgroundColor.A, 1e-9)
	assert.Equal(t, composite.KindDraw, c.Compositor.Kind)
	assert.Equal(t, 2, c.Compositor.MaxPartialPresentRects)
	assert.Equal(t, geom.IntSize{Width: 256, Height: 128}, c.TileSizeOverride)
	assert.Equal(t, ChaseLocalRect, c.ChasePrimitive.Kind)
	assert.Equal(t, geom.NewRect(0, 0, 10, 20), c.ChasePrimitive.Rect)
	assert.Equal(t, DebugPrimitives, c.Debug)

	// Absent keys keep their defaults.
	def := DefaultConfig()
	assert.Equal(t, def.MaxTargetSize, c.MaxTargetSize)
	assert.Equal(t, def.GPUSupportsFastClears, c.GPUSupportsFastClears)
}

func TestParseConfigYAML(t *testing.T) {
	for _, ext := range []string{".yaml", ".yml", ".YAML"} {
		c, err := ParseConfig([]byte(yamlConfig), ext)
		require.NoError(t, err, ext)

		assert.Equal(t, FontRenderMono, c.DefaultFontRenderMode)
		assert.False(t, c.GPUSupportsFastClears)
		assert.Equal(t, composite.KindNative, c.Compositor.Kind)
		assert.Equal(t, int32(4096), c.MaxTargetSize)
		assert.Equal(t, ChaseID, c.ChasePrimitive.Kind)
		assert.EqualValues(t, 7, c.ChasePrimitive.ID)
		assert.Equal(t, DebugObscureImages, c.Debug)
	}
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte("{}"), ".json")
	assert.True(t, errors.Is(err, ErrUnknownConfigFormat))

	tests := []struct {
		name string
		data string
	}{
		{"bad syntax", "batch_lookback_count = "},
		{"font mode", `default_font_render_mode = "lcd"`},
		{"compositor", `compositor = "metal"`},
		{"color arity", `background_color = [1.0, 0.0]`},
		{"tile size arity", `tile_size_override = [256]`},
		{"chase rect arity", `chase_primitive_rect = [1.0]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data), ".toml")
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wr.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlConfig), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, c.BatchLookbackCount)

	fb := NewFrameBuilder(WithConfig(c))
	assert.Equal(t, c.TileSizeOverride, fb.Config().TileSizeOverride)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestChasePrimitiveMatches(t *testing.T) {
	assert.False(t, ChasePrimitive{}.Matches(nil, geom.Rect{}))
	r := geom.NewRect(0, 0, 5, 5)
	assert.True(t, ChasePrimitive{Kind: ChaseLocalRect, Rect: r}.Matches(nil, r))
	assert.Panics(t, func() { ChasePrimitive{Kind: 9}.Matches(nil, r) })
}

func TestFontRenderModeString(t *testing.T) {
	assert.Equal(t, "Subpixel", FontRenderSubpixel.String())
	assert.Equal(t, "Unknown(7)", FontRenderMode(7).String())
}
