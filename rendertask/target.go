// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendertask

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/internal/atlas"
	"github.com/gogpu/wr/resource"
)

// Format returns the texture format of targets of kind k.
func (k TargetKind) Format() gputypes.TextureFormat {
	switch k {
	case TargetColor:
		return gputypes.TextureFormatRGBA8Unorm
	case TargetAlpha:
		return gputypes.TextureFormatR8Unorm
	default:
		panic(fmt.Sprintf("bug: unknown target kind %d", k))
	}
}

// Target is one render target atlas of a pass.
type Target struct {
	Kind  TargetKind
	Tasks []ID
	alloc *atlas.Allocator
}

// UsedRect returns the bounds of everything allocated in the target.
func (t *Target) UsedRect() geom.IntRect { return t.alloc.UsedRect() }

// Size returns the size of the target.
func (t *Target) Size() geom.IntSize { return t.alloc.Size() }

// Descriptor describes the texture backing the target.
func (t *Target) Descriptor(label string) resource.TextureDescriptor {
	size := t.alloc.Size()
	return resource.TextureDescriptor{
		Label: label,
		Size: gputypes.Extent3D{
			Width:              uint32(size.Width),
			Height:             uint32(size.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        t.Kind.Format(),
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	}
}

// TargetList is the set of same-kind target atlases of one pass.
type TargetList struct {
	Kind    TargetKind
	Targets []*Target
	// Saved is the index later passes use to read the list, or NotSaved.
	Saved   SavedTargetIndex
	size    geom.IntSize
	maxSize int32
}

// NewTargetList creates a list whose atlases are size pixels, clamped to
// maxSize on each axis.
func NewTargetList(kind TargetKind, size geom.IntSize, maxSize int32) *TargetList {
	size.Width = geom.Clamp(size.Width, atlas.MinSize, maxSize)
	size.Height = geom.Clamp(size.Height, atlas.MinSize, maxSize)
	return &TargetList{Kind: kind, Saved: NotSaved, size: size, maxSize: maxSize}
}

// Allocate reserves size pixels and returns the target index and the
// allocated rect. Tasks larger than the atlas get a dedicated target.
// Tasks larger than the maximum target size are clamped, so the returned
// rect can be smaller than size.
func (l *TargetList) Allocate(size geom.IntSize) (int, geom.IntRect) {
	for i, t := range l.Targets {
		if r, err := t.alloc.Allocate(size); err == nil {
			return i, r
		}
	}
	atlasSize := l.size
	if size.Width > atlasSize.Width || size.Height > atlasSize.Height {
		slogger().Warn("rendertask: task exceeds target size, using a dedicated target",
			"kind", l.Kind, "size", size, "target", atlasSize)
		atlasSize.Width = min(max(atlasSize.Width, size.Width), l.maxSize)
		atlasSize.Height = min(max(atlasSize.Height, size.Height), l.maxSize)
		if size.Width > atlasSize.Width || size.Height > atlasSize.Height {
			slogger().Warn("rendertask: task clamped to the maximum target size",
				"kind", l.Kind, "size", size, "max", l.maxSize)
			size.Width = min(size.Width, atlasSize.Width)
			size.Height = min(size.Height, atlasSize.Height)
		}
	}
	t := &Target{Kind: l.Kind, alloc: atlas.New(atlasSize, atlas.DefaultPadding)}
	l.Targets = append(l.Targets, t)
	r, err := t.alloc.Allocate(size)
	if err != nil {
		panic(fmt.Sprintf("bug: empty target cannot hold %v: %v", size, err))
	}
	slogger().Debug("rendertask: new target", "kind", l.Kind, "index", len(l.Targets)-1, "size", atlasSize)
	return len(l.Targets) - 1, r
}

// Add records that task id draws into target index.
func (l *TargetList) Add(index int, id ID) {
	l.Targets[index].Tasks = append(l.Targets[index].Tasks, id)
}

// IsEmpty reports whether no target was allocated.
func (l *TargetList) IsEmpty() bool { return len(l.Targets) == 0 }

// SaveTarget keeps the list alive for later passes under index.
func (l *TargetList) SaveTarget(index SavedTargetIndex) SavedTargetIndex {
	if index < 0 {
		panic(fmt.Sprintf("bug: invalid saved target index %d", index))
	}
	l.Saved = index
	return index
}
