package resource

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/internal/imagetiling"
)

func rgba(w, h int32) ImageDescriptor {
	return ImageDescriptor{Size: geom.IntSize{Width: w, Height: h}, Format: gputypes.TextureFormatRGBA8Unorm}
}

func TestAddImageDuplicate(t *testing.T) {
	c := New()
	if err := c.AddImage(1, ImageTemplate{Descriptor: rgba(4, 4)}); err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	if err := c.AddImage(1, ImageTemplate{Descriptor: rgba(4, 4)}); !errors.Is(err, ErrDuplicateImage) {
		t.Errorf("second AddImage err = %v, want ErrDuplicateImage", err)
	}
	if err := c.UpdateImage(2, ImageTemplate{}); !errors.Is(err, ErrUnknownImage) {
		t.Errorf("UpdateImage err = %v, want ErrUnknownImage", err)
	}
}

func TestImageProperties(t *testing.T) {
	c := New()
	_ = c.AddImage(7, ImageTemplate{Descriptor: rgba(1000, 300), TileSize: 256})

	props, ok := c.GetImageProperties(7)
	if !ok {
		t.Fatal("GetImageProperties: missing image")
	}
	if !props.IsTiled() || props.Tiling != 256 {
		t.Errorf("Tiling = %d, want 256", props.Tiling)
	}
	if props.VisibleRect != geom.NewIntRect(0, 0, 1000, 300) {
		t.Errorf("VisibleRect = %v", props.VisibleRect)
	}
	if _, ok := c.GetImageProperties(8); ok {
		t.Error("unknown key must not have properties")
	}
}

func TestRequestAndResolve(t *testing.T) {
	c := New(WithTextureSize(256))
	gpu := gpucache.New()
	_ = c.AddImage(1, ImageTemplate{Descriptor: rgba(2, 2), Data: make([]byte, 16)})
	_ = c.AddImage(2, ImageTemplate{Descriptor: rgba(8, 8), External: true})

	var calls atomic.Int32
	_ = c.AddImage(3, ImageTemplate{
		Descriptor: rgba(64, 64),
		TileSize:   32,
		Rasterizer: RasterizerFunc(func(r geom.IntRect) ([]byte, error) {
			calls.Add(1)
			return make([]byte, r.Size().Area()*4), nil
		}),
	})

	c.BeginFrame(1)
	gpu.BeginFrame()
	c.RequestImage(ImageRequest{Key: 1}, gpu)
	c.RequestImage(ImageRequest{Key: 1}, gpu)
	c.RequestImage(ImageRequest{Key: 2}, gpu)
	c.RequestImage(ImageRequest{Key: 3}.WithTile(imagetiling.TileOffset{X: 1, Y: 0}), gpu)
	c.RequestImage(ImageRequest{Key: 3}.WithTile(imagetiling.TileOffset{X: 0, Y: 1}), gpu)
	c.RequestImage(ImageRequest{Key: 99}, gpu)

	if c.PendingCount() != 4 {
		t.Fatalf("PendingCount() = %d, want 4", c.PendingCount())
	}
	if err := c.BlockUntilAllResourcesAdded(gpu); err != nil {
		t.Fatalf("BlockUntilAllResourcesAdded: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("rasterizer called %d times, want 2", calls.Load())
	}
	if len(c.TextureUpdates()) != 3 {
		t.Errorf("TextureUpdates() = %d, want 3", len(c.TextureUpdates()))
	}
	resolves := c.TakeDeferredResolves()
	if len(resolves) != 1 || resolves[0].Key != 2 {
		t.Errorf("deferred resolves = %+v", resolves)
	}

	item, ok := c.GetCachedImage(ImageRequest{Key: 3}.WithTile(imagetiling.TileOffset{X: 1, Y: 0}))
	if !ok {
		t.Fatal("tile must be cached")
	}
	if item.UVRect.Size() != (geom.IntSize{Width: 32, Height: 32}) {
		t.Errorf("tile UV size = %v", item.UVRect.Size())
	}
	if len(c.Textures()) != 1 {
		t.Errorf("Textures() = %d, want 1", len(c.Textures()))
	}
	gpu.EndFrame()
	c.EndFrame()
}

func TestRasterizeFailureDoesNotBlockOthers(t *testing.T) {
	c := New()
	gpu := gpucache.New()
	boom := errors.New("boom")
	_ = c.AddImage(1, ImageTemplate{
		Descriptor: rgba(4, 4),
		Rasterizer: RasterizerFunc(func(geom.IntRect) ([]byte, error) { return nil, boom }),
	})
	_ = c.AddImage(2, ImageTemplate{Descriptor: rgba(4, 4), Data: make([]byte, 64)})

	c.BeginFrame(1)
	gpu.BeginFrame()
	c.RequestImage(ImageRequest{Key: 1}, gpu)
	c.RequestImage(ImageRequest{Key: 2}, gpu)
	err := c.BlockUntilAllResourcesAdded(gpu)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
	if _, ok := c.GetCachedImage(ImageRequest{Key: 2}); !ok {
		t.Error("image 2 must resolve despite image 1 failing")
	}
	if _, ok := c.GetCachedImage(ImageRequest{Key: 1}); ok {
		t.Error("failed image must not be cached")
	}
}

func TestEndFrameExpiresUnused(t *testing.T) {
	c := New(WithMaxAge(2))
	gpu := gpucache.New()
	_ = c.AddImage(1, ImageTemplate{Descriptor: rgba(4, 4), Data: make([]byte, 64)})

	c.BeginFrame(1)
	gpu.BeginFrame()
	c.RequestImage(ImageRequest{Key: 1}, gpu)
	_ = c.BlockUntilAllResourcesAdded(gpu)
	gpu.EndFrame()
	c.EndFrame()

	for f := uint64(2); f <= 5; f++ {
		c.BeginFrame(f)
		c.EndFrame()
	}
	if c.Stats().Len != 0 {
		t.Errorf("Len = %d, want 0 after expiry", c.Stats().Len)
	}
}
