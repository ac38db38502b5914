// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendertask

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
)

func TestGeneratePasses(t *testing.T) {
	g := New()
	screen := geom.IntSize{Width: 800, Height: 600}
	root := g.Add(NewPictureTask(Fixed(geom.IntRectFromSize(screen)), PictureTask{DevicePixelScale: 1}))
	pic := g.Add(NewPictureTask(Unallocated(geom.IntSize{Width: 100, Height: 100}), PictureTask{DevicePixelScale: 1}))
	mask := g.Add(NewCacheMaskTask(geom.IntSize{Width: 50, Height: 50}, CacheMaskTask{DevicePixelScale: 1}))
	g.AddDependency(root, pic)
	g.AddDependency(pic, mask)
	// The root reads the mask directly too, two passes later.
	g.AddDependency(root, mask)

	passes := g.GeneratePasses(root, screen, true)
	require.Len(t, passes, 3)
	assert.Equal(t, PassOffScreen, passes[0].Kind)
	assert.Equal(t, []ID{mask}, passes[0].Tasks)
	assert.Equal(t, []ID{pic}, passes[1].Tasks)
	assert.Equal(t, PassMainFramebuffer, passes[2].Kind)
	assert.Equal(t, []ID{root}, passes[2].Tasks)

	assert.Equal(t, SavedPending, g.Get(mask).SavedIndex)
	assert.Equal(t, NotSaved, g.Get(pic).SavedIndex)

	g.ResolveSavedIndex(mask, 0)
	assert.Equal(t, SavedTargetIndex(0), g.Get(mask).SavedIndex)
	assert.Panics(t, func() { g.ResolveSavedIndex(mask, 1) })
}

func TestSingleTaskIsOnePass(t *testing.T) {
	g := New()
	root := g.Add(NewPictureTask(Fixed(geom.NewIntRect(0, 0, 10, 10)), PictureTask{}))
	passes := g.GeneratePasses(root, geom.IntSize{Width: 10, Height: 10}, false)
	require.Len(t, passes, 1)
	assert.Equal(t, PassMainFramebuffer, passes[0].Kind)
}

func TestSetLocationOnce(t *testing.T) {
	g := New()
	id := g.Add(NewBlitTask(geom.IntSize{Width: 4, Height: 4}, InvalidID))
	loc := Location{Kind: LocationDynamic, Rect: geom.NewIntRect(0, 0, 4, 4), Size: geom.IntSize{Width: 4, Height: 4}}
	g.SetLocation(id, loc)
	assert.Equal(t, LocationDynamic, g.Get(id).Location.Kind)
	assert.Panics(t, func() { g.SetLocation(id, loc) })
}

func TestTargetList(t *testing.T) {
	l := NewTargetList(TargetAlpha, geom.IntSize{Width: 100, Height: 100}, 128)
	assert.True(t, l.IsEmpty())

	i, r := l.Allocate(geom.IntSize{Width: 60, Height: 60})
	assert.Equal(t, 0, i)
	assert.Equal(t, geom.IntSize{Width: 60, Height: 60}, r.Size())

	// Does not fit next to the first one.
	i, _ = l.Allocate(geom.IntSize{Width: 60, Height: 60})
	assert.Equal(t, 1, i)

	// Larger than the atlas: dedicated target clamped to the max size.
	i, r = l.Allocate(geom.IntSize{Width: 200, Height: 20})
	assert.Equal(t, 2, i)
	assert.Equal(t, int32(128), r.Width())
	assert.Equal(t, int32(128), l.Targets[2].Size().Width)

	desc := l.Targets[0].Descriptor("alpha-0")
	assert.Equal(t, gputypes.TextureFormatR8Unorm, desc.Format)
	assert.Equal(t, uint32(100), desc.Size.Width)
	assert.NotZero(t, desc.Usage&gputypes.TextureUsageRenderAttachment)

	assert.Equal(t, NotSaved, l.Saved)
	l.SaveTarget(3)
	assert.Equal(t, SavedTargetIndex(3), l.Saved)
}

func TestTargetListClampLogs(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(nil)

	l := NewTargetList(TargetColor, geom.IntSize{Width: 100, Height: 100}, 128)

	// Larger than the atlas but within the max size: not clamped.
	_, r := l.Allocate(geom.IntSize{Width: 120, Height: 20})
	assert.Equal(t, geom.IntSize{Width: 120, Height: 20}, r.Size())
	assert.NotContains(t, buf.String(), "clamped")

	_, r = l.Allocate(geom.IntSize{Width: 300, Height: 20})
	assert.Equal(t, geom.IntSize{Width: 128, Height: 20}, r.Size())
	assert.Contains(t, buf.String(), "clamped")
}

func TestWriteTaskData(t *testing.T) {
	g := New()
	a := g.Add(NewPictureTask(Fixed(geom.NewIntRect(0, 0, 10, 20)), PictureTask{
		ContentOrigin:    geom.Pt(5, 6),
		DevicePixelScale: 2,
	}))
	b := g.Add(NewCacheMaskTask(geom.IntSize{Width: 4, Height: 4}, CacheMaskTask{}))

	buf := gpucache.NewBufferBuilder()
	g.WriteTaskData(buf)

	addr := g.Get(a).DataAddress
	assert.Equal(t, gpucache.BufferAddress(0), addr)
	assert.Equal(t, [4]float32{0, 0, 10, 20}, buf.F.Block(addr))
	assert.Equal(t, [4]float32{5, 6, 2, 0}, buf.F.Block(addr+1))
	assert.Equal(t, gpucache.InvalidBufferAddress, g.Get(b).DataAddress, "unallocated tasks have no data")
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "CacheMask", KindCacheMask.String())
	assert.Equal(t, "PictureCache", LocationPictureCache.String())
	assert.Equal(t, "Unknown(99)", Kind(99).String())
	assert.Equal(t, gputypes.TextureFormatRGBA8Unorm, TargetColor.Format())
}
