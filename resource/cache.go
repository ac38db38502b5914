// Package resource implements the resource cache the frame builder
// requests images from. Image pixels are uploaded into shared texture
// atlases; external images are resolved by the renderer after the frame
// is built.
package resource

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/gogpu/gputypes"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/wr/cache"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/internal/atlas"
)

// Resource cache errors.
var (
	// ErrDuplicateImage is returned when a key is registered twice.
	ErrDuplicateImage = errors.New("resource: image key already registered")

	// ErrUnknownImage is returned for keys that were never registered.
	ErrUnknownImage = errors.New("resource: unknown image key")

	// ErrImageTooLarge is returned when an image or tile exceeds the
	// texture size. Such images must be registered with a TileSize.
	ErrImageTooLarge = errors.New("resource: image does not fit in a texture")
)

const (
	// DefaultTextureSize is the side of a texture cache atlas.
	DefaultTextureSize = 2048

	// DefaultMaxAge is the number of frames an unused entry survives.
	DefaultMaxAge = 60
)

// TextureID identifies a texture cache atlas.
type TextureID uint32

// TextureDescriptor describes a texture the renderer has to create for
// the cache.
type TextureDescriptor struct {
	Label         string
	Size          gputypes.Extent3D
	MipLevelCount uint32
	SampleCount   uint32
	Dimension     gputypes.TextureDimension
	Format        gputypes.TextureFormat
	Usage         gputypes.TextureUsage
}

type texture struct {
	id    TextureID
	desc  TextureDescriptor
	alloc *atlas.Allocator
}

// CacheItem is a resolved image or image tile.
type CacheItem struct {
	Texture TextureID
	UVRect  geom.IntRect
	// External is set for images the renderer resolves itself.
	External bool
	// Handle addresses the UV rect in the GPU cache.
	Handle gpucache.Handle
}

// TextureUpdate uploads pixels into a texture cache atlas.
type TextureUpdate struct {
	Texture TextureID
	Rect    geom.IntRect
	Data    []byte
}

// DeferredResolve asks the renderer to patch the GPU cache block at
// Address with the UV rect of an external image.
type DeferredResolve struct {
	Address   gpucache.Address
	Key       ImageKey
	Rendering ImageRendering
}

// Option configures a Cache.
type Option func(*Cache)

// WithTextureSize sets the atlas side length.
func WithTextureSize(size int32) Option {
	return func(c *Cache) {
		if size > 0 {
			c.textureSize = size
		}
	}
}

// WithWorkers bounds the goroutines rasterizing generated images.
func WithWorkers(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMaxAge sets how many frames an unused entry is kept.
func WithMaxAge(frames uint64) Option {
	return func(c *Cache) {
		c.maxAge = frames
	}
}

// Cache is the in-process resource cache. It is used from the frame
// building goroutine only; rasterization fans out internally.
type Cache struct {
	templates map[ImageKey]*ImageTemplate
	items     *cache.Sharded[ImageRequest, *CacheItem]
	textures  []*texture

	textureSize int32
	workers     int
	maxAge      uint64

	pending    []ImageRequest
	pendingSet map[ImageRequest]struct{}
	updates    []TextureUpdate
	deferred   []DeferredResolve

	frame   uint64
	inFrame bool
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		templates:   make(map[ImageKey]*ImageTemplate),
		items:       cache.NewSharded[ImageRequest, *CacheItem](4096, hashRequest),
		textureSize: DefaultTextureSize,
		workers:     runtime.GOMAXPROCS(0),
		maxAge:      DefaultMaxAge,
		pendingSet:  make(map[ImageRequest]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddImage registers an image.
func (c *Cache) AddImage(key ImageKey, tmpl ImageTemplate) error {
	if _, ok := c.templates[key]; ok {
		return fmt.Errorf("add image %d: %w", key, ErrDuplicateImage)
	}
	c.templates[key] = normalize(tmpl)
	return nil
}

// UpdateImage replaces the source of a registered image and drops every
// cached copy of it.
func (c *Cache) UpdateImage(key ImageKey, tmpl ImageTemplate) error {
	if _, ok := c.templates[key]; !ok {
		return fmt.Errorf("update image %d: %w", key, ErrUnknownImage)
	}
	c.templates[key] = normalize(tmpl)
	c.dropItems(key)
	return nil
}

// DeleteImage forgets an image.
func (c *Cache) DeleteImage(key ImageKey) {
	delete(c.templates, key)
	c.dropItems(key)
}

func (c *Cache) dropItems(key ImageKey) {
	var stale []ImageRequest
	c.items.Range(func(r ImageRequest, _ *CacheItem) bool {
		if r.Key == key {
			stale = append(stale, r)
		}
		return true
	})
	for _, r := range stale {
		c.items.Delete(r)
	}
}

func normalize(tmpl ImageTemplate) *ImageTemplate {
	if tmpl.VisibleRect.IsEmpty() {
		tmpl.VisibleRect = geom.IntRectFromSize(tmpl.Descriptor.Size)
	}
	return &tmpl
}

// BeginFrame starts a frame with the given stamp. Reads and requests of
// the frame must come after it.
func (c *Cache) BeginFrame(stamp uint64) {
	if c.inFrame {
		panic("bug: resource cache frame begun twice")
	}
	c.inFrame = true
	c.frame = stamp
	c.updates = c.updates[:0]
	c.deferred = c.deferred[:0]
}

// EndFrame expires entries unused for the configured number of frames
// and recycles atlases nothing lives in anymore.
func (c *Cache) EndFrame() {
	if !c.inFrame {
		panic("bug: resource cache frame ended without begin")
	}
	c.inFrame = false
	if c.frame > c.maxAge {
		c.items.ExpireBefore(c.frame - c.maxAge)
	}

	live := make(map[TextureID]bool, len(c.textures))
	c.items.Range(func(_ ImageRequest, it *CacheItem) bool {
		if !it.External {
			live[it.Texture] = true
		}
		return true
	})
	for _, t := range c.textures {
		if !live[t.id] && !t.alloc.IsEmpty() {
			t.alloc.Reset()
		}
	}
}

// GetImageProperties returns the properties of a registered image.
func (c *Cache) GetImageProperties(key ImageKey) (ImageProperties, bool) {
	t, ok := c.templates[key]
	if !ok {
		return ImageProperties{}, false
	}
	return ImageProperties{
		Descriptor:  t.Descriptor,
		External:    t.External,
		Tiling:      t.TileSize,
		VisibleRect: t.VisibleRect,
	}, true
}

// RequestImage asks for req to be resident by the end of
// BlockUntilAllResourcesAdded. Requests for unknown keys are ignored;
// such primitives are dropped at batching time.
func (c *Cache) RequestImage(req ImageRequest, gpu *gpucache.Cache) {
	if _, ok := c.templates[req.Key]; !ok {
		return
	}
	if item, ok := c.items.Get(req, c.frame); ok {
		c.writeUV(item, gpu)
		return
	}
	if _, ok := c.pendingSet[req]; ok {
		return
	}
	c.pendingSet[req] = struct{}{}
	c.pending = append(c.pending, req)
}

// GetCachedImage returns the resolved item for req.
func (c *Cache) GetCachedImage(req ImageRequest) (CacheItem, bool) {
	item, ok := c.items.Get(req, c.frame)
	if !ok {
		return CacheItem{}, false
	}
	return *item, true
}

// PendingCount returns the number of unresolved requests.
func (c *Cache) PendingCount() int { return len(c.pending) }

// BlockUntilAllResourcesAdded resolves every pending request. Generated
// images are rasterized concurrently, then packed in request order.
// Requests that fail are left unresolved and reported in the returned
// error; the rest of the frame is unaffected.
func (c *Cache) BlockUntilAllResourcesAdded(gpu *gpucache.Cache) error {
	if len(c.pending) == 0 {
		return nil
	}
	pixels, errs := c.rasterizePending()

	for i, req := range c.pending {
		if errs[i] != nil {
			continue
		}
		tmpl := c.templates[req.Key]
		item := &CacheItem{External: tmpl.External}
		if !tmpl.External {
			props, _ := c.GetImageProperties(req.Key)
			rect := tileRect(props, req)
			tex, uv, err := c.allocate(rect.Size(), tmpl.Descriptor.Format)
			if err != nil {
				errs[i] = fmt.Errorf("image %d: %w", req.Key, err)
				continue
			}
			item.Texture = tex
			item.UVRect = uv
			c.updates = append(c.updates, TextureUpdate{Texture: tex, Rect: uv, Data: pixels[i]})
		}
		c.items.Set(req, item, c.frame)
		c.writeUV(item, gpu)
		if item.External {
			c.deferred = append(c.deferred, DeferredResolve{
				Address:   gpu.GetAddress(&item.Handle),
				Key:       req.Key,
				Rendering: req.Rendering,
			})
		}
	}

	c.pending = c.pending[:0]
	clear(c.pendingSet)
	return errors.Join(errs...)
}

func (c *Cache) rasterizePending() ([][]byte, []error) {
	pixels := make([][]byte, len(c.pending))
	errs := make([]error, len(c.pending))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, req := range c.pending {
		tmpl := c.templates[req.Key]
		if tmpl.External {
			continue
		}
		props, _ := c.GetImageProperties(req.Key)
		rect := tileRect(props, req)
		if rect.IsEmpty() {
			errs[i] = fmt.Errorf("image %d tile %v: %w", req.Key, req.Tile, ErrUnknownImage)
			continue
		}
		if tmpl.Rasterizer == nil {
			pixels[i] = extract(tmpl, rect)
			continue
		}
		g.Go(func() error {
			data, err := tmpl.Rasterizer.Rasterize(rect)
			if err != nil {
				errs[i] = fmt.Errorf("rasterize image %d: %w", req.Key, err)
				return nil
			}
			pixels[i] = data
			return nil
		})
	}
	_ = g.Wait()
	return pixels, errs
}

// extract copies rect out of the template's packed pixel data.
func extract(tmpl *ImageTemplate, rect geom.IntRect) []byte {
	bpp := tmpl.Descriptor.BytesPerPixel()
	stride := int(tmpl.Descriptor.Size.Width) * bpp
	if rect == geom.IntRectFromSize(tmpl.Descriptor.Size) {
		return tmpl.Data
	}
	row := int(rect.Width()) * bpp
	out := make([]byte, 0, row*int(rect.Height()))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		start := int(y)*stride + int(rect.Min.X)*bpp
		if start+row > len(tmpl.Data) {
			break
		}
		out = append(out, tmpl.Data[start:start+row]...)
	}
	return out
}

func (c *Cache) allocate(size geom.IntSize, format gputypes.TextureFormat) (TextureID, geom.IntRect, error) {
	if size.Width > c.textureSize || size.Height > c.textureSize {
		return 0, geom.IntRect{}, ErrImageTooLarge
	}
	for _, t := range c.textures {
		if t.desc.Format != format {
			continue
		}
		if r, err := t.alloc.Allocate(size); err == nil {
			return t.id, r, nil
		}
	}
	t := c.newTexture(format)
	r, err := t.alloc.Allocate(size)
	if err != nil {
		return 0, geom.IntRect{}, err
	}
	return t.id, r, nil
}

func (c *Cache) newTexture(format gputypes.TextureFormat) *texture {
	id := TextureID(len(c.textures))
	t := &texture{
		id: id,
		desc: TextureDescriptor{
			Label: fmt.Sprintf("texture-cache-%d", id),
			Size: gputypes.Extent3D{
				Width:              uint32(c.textureSize),
				Height:             uint32(c.textureSize),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        format,
			Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		},
		alloc: atlas.New(geom.IntSize{Width: c.textureSize, Height: c.textureSize}, 0),
	}
	c.textures = append(c.textures, t)
	return t
}

func (c *Cache) writeUV(item *CacheItem, gpu *gpucache.Cache) {
	req := gpu.Request(&item.Handle)
	if req == nil {
		return
	}
	uv := item.UVRect
	req.PushRect(float32(uv.Min.X), float32(uv.Min.Y), float32(uv.Max.X), float32(uv.Max.Y))
	req.Close()
}

// Textures returns the descriptors of the texture cache atlases.
func (c *Cache) Textures() []TextureDescriptor {
	out := make([]TextureDescriptor, len(c.textures))
	for i, t := range c.textures {
		out[i] = t.desc
	}
	return out
}

// TextureUpdates returns the uploads produced this frame.
func (c *Cache) TextureUpdates() []TextureUpdate { return c.updates }

// TakeDeferredResolves returns and clears the deferred resolves of the
// frame.
func (c *Cache) TakeDeferredResolves() []DeferredResolve {
	out := c.deferred
	c.deferred = nil
	return out
}

// Stats returns the counters of the item cache.
func (c *Cache) Stats() cache.Stats { return c.items.Stats() }
