package wr

import (
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/resource"
)

// ResourceCache is the image store the frame builder requests textures
// from. resource.Cache is the in-process implementation.
//
// BeginFrame must be called before any other method of the frame and
// EndFrame after the last one. Requests issued during visibility and
// prepare are only guaranteed to resolve after BlockUntilAllResourcesAdded.
type ResourceCache interface {
	BeginFrame(stamp uint64)
	EndFrame()
	GetImageProperties(key resource.ImageKey) (resource.ImageProperties, bool)
	RequestImage(req resource.ImageRequest, gpu *gpucache.Cache)
	GetCachedImage(req resource.ImageRequest) (resource.CacheItem, bool)
	// BlockUntilAllResourcesAdded resolves every pending request. A
	// non-nil error names requests that failed; the frame continues
	// without them.
	BlockUntilAllResourcesAdded(gpu *gpucache.Cache) error
	// TakeDeferredResolves returns the GPU cache blocks the renderer has
	// to patch with external image UVs, and forgets them.
	TakeDeferredResolves() []resource.DeferredResolve
	TextureUpdates() []resource.TextureUpdate
}

var _ ResourceCache = (*resource.Cache)(nil)
