package prim

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/geom"
)

// MaxDirtyRegions is the number of dirty regions a VisibilityMask can
// address.
const MaxDirtyRegions = 16

// VisibilityMask has bit i set when a primitive is visible in dirty
// region i. Pass-through pictures and frames without picture caching use
// AllVisible.
type VisibilityMask uint16

const (
	// NotVisible is the empty mask.
	NotVisible VisibilityMask = 0
	// AllVisible marks every region as visible.
	AllVisible VisibilityMask = ^VisibilityMask(0)
)

// Include adds the regions of o to m.
func (m *VisibilityMask) Include(o VisibilityMask) { *m |= o }

// Intersects reports whether m and o share a region.
func (m VisibilityMask) Intersects(o VisibilityMask) bool { return m&o != 0 }

// SetVisible marks region i as visible.
func (m *VisibilityMask) SetVisible(i int) {
	if i < 0 || i >= MaxDirtyRegions {
		panic(fmt.Sprintf("bug: dirty region index %d out of range", i))
	}
	*m |= 1 << uint(i)
}

// IsEmpty reports whether no region is visible.
func (m VisibilityMask) IsEmpty() bool { return m == 0 }

// Count returns the number of visible regions.
func (m VisibilityMask) Count() int { return bits.OnesCount16(uint16(m)) }

// VisibilityFlags control how a visible primitive is batched.
type VisibilityFlags uint16

const (
	// IsBackdrop marks a primitive covering its whole picture cache
	// slice. It is drawn as the tile clear color instead of a batch.
	IsBackdrop VisibilityFlags = 1 << iota
)

// VisibilityStateKind tags a VisibilityState.
type VisibilityStateKind uint8

const (
	// VisibilityUnset must never be seen after a reset.
	VisibilityUnset VisibilityStateKind = iota
	// VisibilityCulled means off screen or not renderable this frame.
	VisibilityCulled
	// VisibilityCoarse means the primitive touches at least one dirty
	// tile. The exact region mask is computed during prepare.
	VisibilityCoarse
	// VisibilityDetailed carries the final dirty region mask.
	VisibilityDetailed
)

// String returns the state name.
func (k VisibilityStateKind) String() string {
	switch k {
	case VisibilityUnset:
		return "Unset"
	case VisibilityCulled:
		return "Culled"
	case VisibilityCoarse:
		return "Coarse"
	case VisibilityDetailed:
		return "Detailed"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// VisibilityState is the per-frame visibility of a primitive instance.
// RectInPicSpace is only meaningful for Coarse and Mask only for Detailed.
type VisibilityState struct {
	Kind           VisibilityStateKind
	RectInPicSpace geom.Rect
	Mask           VisibilityMask
}

// Culled returns the culled state.
func Culled() VisibilityState { return VisibilityState{Kind: VisibilityCulled} }

// Coarse returns a coarse state for a primitive covering rect in picture
// cache space.
func Coarse(rect geom.Rect) VisibilityState {
	return VisibilityState{Kind: VisibilityCoarse, RectInPicSpace: rect}
}

// Detailed returns a detailed state with the given region mask.
func Detailed(mask VisibilityMask) VisibilityState {
	return VisibilityState{Kind: VisibilityDetailed, Mask: mask}
}

// ClipTaskIndex addresses the clip mask tasks of a primitive.
type ClipTaskIndex uint32

// InvalidClipTaskIndex means the primitive has no clip mask.
const InvalidClipTaskIndex ClipTaskIndex = ^ClipTaskIndex(0)

// Visibility is the visibility record of one primitive instance.
type Visibility struct {
	// ClipChain is the clip chain built for the primitive.
	ClipChain clip.ChainInstance
	State     VisibilityState
	// ClipTaskIndex is InvalidClipTaskIndex when the primitive has no
	// clip mask.
	ClipTaskIndex ClipTaskIndex
	Flags         VisibilityFlags
	// CombinedLocalClipRect merges the primitive's local clip with the
	// clip chain.
	CombinedLocalClipRect geom.Rect
}

// NewVisibility returns an Unset record.
func NewVisibility() Visibility {
	return Visibility{
		State:         VisibilityState{Kind: VisibilityUnset},
		ClipTaskIndex: InvalidClipTaskIndex,
	}
}

// Reset prepares the record for a new visibility pass. Every instance is
// reset each frame, including instances of invisible clusters, so stale
// visible state cannot leak into later passes.
func (v *Visibility) Reset() {
	v.State = Culled()
	v.ClipTaskIndex = InvalidClipTaskIndex
	v.Flags = 0
}

// IsVisible reports whether the state is Coarse or Detailed.
func (v *Visibility) IsVisible() bool {
	switch v.State.Kind {
	case VisibilityCoarse, VisibilityDetailed:
		return true
	case VisibilityUnset, VisibilityCulled:
		return false
	default:
		panic(fmt.Sprintf("bug: invalid visibility state %v", v.State.Kind))
	}
}
