package batch

import (
	"slices"

	"github.com/gogpu/wr/geom"
)

// Batch is one draw call.
type Batch struct {
	Key       Key
	Instances []InstanceData
}

// AlphaList collects blended batches in paint order. A primitive may
// join an earlier compatible batch only if no primitive in between
// overlaps it.
type AlphaList struct {
	Batches   []*Batch
	itemRects [][]geom.Rect
	lookback  int
	current   int
	currentZ  int32
}

// NewAlphaList creates a list scanning up to lookback batches back.
func NewAlphaList(lookback int) *AlphaList {
	return &AlphaList{lookback: lookback, current: -1, currentZ: -1}
}

// Get returns the batch a primitive with key, bounding rect and z id
// is added to.
func (l *AlphaList) Get(key Key, rect geom.Rect, zID int32) *Batch {
	if l.current < 0 || zID != l.currentZ || !l.Batches[l.current].Key.IsCompatibleWith(key) {
		selected := -1
	outer:
		for i := len(l.Batches) - 1; i >= 0 && len(l.Batches)-i <= l.lookback; i-- {
			if l.Batches[i].Key.IsCompatibleWith(key) {
				selected = i
				break
			}
			for _, r := range l.itemRects[i] {
				if r.Intersects(rect) {
					break outer
				}
			}
		}
		if selected < 0 {
			l.Batches = append(l.Batches, &Batch{Key: key})
			l.itemRects = append(l.itemRects, nil)
			selected = len(l.Batches) - 1
		}
		l.current = selected
		l.currentZ = zID
		l.itemRects[selected] = append(l.itemRects[selected], rect)
	}
	b := l.Batches[l.current]
	b.Key.Textures = b.Key.Textures.Combine(key.Textures)
	return b
}

// OpaqueList collects opaque batches. Opaque primitives are depth
// tested, so order between batches does not matter and large
// primitives may join any recent compatible batch.
type OpaqueList struct {
	Batches       []*Batch
	lookback      int
	areaThreshold float32
	current       int
}

// NewOpaqueList creates a list. Primitives larger than areaThreshold
// look back for a compatible batch instead of starting a new one.
func NewOpaqueList(lookback int, areaThreshold float32) *OpaqueList {
	return &OpaqueList{lookback: lookback, areaThreshold: areaThreshold, current: -1}
}

// Get returns the batch an opaque primitive is added to.
func (l *OpaqueList) Get(key Key, rect geom.Rect) *Batch {
	if l.current < 0 || !l.Batches[l.current].Key.IsCompatibleWith(key) {
		selected := -1
		if rect.Area() > l.areaThreshold {
			for i := len(l.Batches) - 1; i >= 0 && len(l.Batches)-i <= l.lookback; i-- {
				if l.Batches[i].Key.IsCompatibleWith(key) {
					selected = i
					break
				}
			}
		}
		if selected < 0 {
			l.Batches = append(l.Batches, &Batch{Key: key})
			selected = len(l.Batches) - 1
		}
		l.current = selected
	}
	b := l.Batches[l.current]
	b.Key.Textures = b.Key.Textures.Combine(key.Textures)
	return b
}

// finalize reverses instances so opaque content draws front to back.
func (l *OpaqueList) finalize() {
	for _, b := range l.Batches {
		slices.Reverse(b.Instances)
	}
}

// Container is the batched content of one render task.
type Container struct {
	OpaqueBatches []*Batch
	AlphaBatches  []*Batch
	// TaskScissorRect limits drawing for picture cache tiles.
	TaskScissorRect geom.IntRect
	TaskRect        geom.IntRect
}

// IsEmpty reports whether the container draws nothing.
func (c *Container) IsEmpty() bool {
	return len(c.OpaqueBatches) == 0 && len(c.AlphaBatches) == 0
}

// InstanceCount returns the number of instances of all batches.
func (c *Container) InstanceCount() int {
	n := 0
	for _, b := range c.OpaqueBatches {
		n += len(b.Instances)
	}
	for _, b := range c.AlphaBatches {
		n += len(b.Instances)
	}
	return n
}
