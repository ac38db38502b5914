// Package atlas packs rectangles into fixed-size 2D surfaces. Render task
// targets and the texture cache both allocate through it.
package atlas

import (
	"errors"

	"github.com/gogpu/wr/geom"
)

// ErrFull is returned when the allocator cannot fit the requested size.
var ErrFull = errors.New("atlas: allocator is full")

const (
	// MinSize is the smallest allocator dimension.
	MinSize = 16

	// DefaultPadding is the spacing between shelves and items.
	DefaultPadding = 0
)

// shelf is a horizontal strip; items are placed left to right.
type shelf struct {
	y      int32
	height int32
	nextX  int32
}

// Allocator implements shelf packing over a fixed-size area.
//
// Each new rectangle is placed on the first shelf with room for it, or on
// a new shelf below the last one. Allocator is not safe for concurrent
// use; a frame builds its targets on one goroutine.
type Allocator struct {
	size    geom.IntSize
	padding int32
	shelves []shelf

	allocCount int
	usedArea   int64
}

// New creates an allocator for an area of the given size.
func New(size geom.IntSize, padding int32) *Allocator {
	size.Width = max(size.Width, MinSize)
	size.Height = max(size.Height, MinSize)
	return &Allocator{
		size:    size,
		padding: max(padding, 0),
		shelves: make([]shelf, 0, 16),
	}
}

// Size returns the dimensions of the packed area.
func (a *Allocator) Size() geom.IntSize { return a.size }

// Allocate reserves space for size and returns its origin rect.
func (a *Allocator) Allocate(size geom.IntSize) (geom.IntRect, error) {
	if size.IsEmpty() {
		return geom.IntRect{}, nil
	}
	pw := size.Width + a.padding
	ph := size.Height + a.padding
	if pw > a.size.Width+a.padding || ph > a.size.Height+a.padding {
		return geom.IntRect{}, ErrFull
	}

	for i := range a.shelves {
		s := &a.shelves[i]
		if s.nextX+size.Width > a.size.Width {
			continue
		}
		// A shelf only grows while it is still empty.
		if ph > s.height && s.nextX > 0 {
			continue
		}
		if s.nextX == 0 && ph > s.height {
			if !a.canGrow(i, ph) {
				continue
			}
			s.height = ph
		}
		r := geom.NewIntRect(s.nextX, s.y, size.Width, size.Height)
		s.nextX += pw
		a.record(size)
		return r, nil
	}

	y := int32(0)
	if n := len(a.shelves); n > 0 {
		last := a.shelves[n-1]
		y = last.y + last.height
	}
	if y+size.Height > a.size.Height {
		return geom.IntRect{}, ErrFull
	}
	a.shelves = append(a.shelves, shelf{y: y, height: ph, nextX: pw})
	a.record(size)
	return geom.NewIntRect(0, y, size.Width, size.Height), nil
}

// canGrow reports whether shelf i may take height h without overlapping
// the shelf below it.
func (a *Allocator) canGrow(i int, h int32) bool {
	if i+1 < len(a.shelves) {
		return a.shelves[i].y+h <= a.shelves[i+1].y
	}
	return a.shelves[i].y+h <= a.size.Height+a.padding
}

func (a *Allocator) record(size geom.IntSize) {
	a.allocCount++
	a.usedArea += size.Area()
}

// Reset clears every allocation.
func (a *Allocator) Reset() {
	a.shelves = a.shelves[:0]
	a.allocCount = 0
	a.usedArea = 0
}

// IsEmpty reports whether nothing has been allocated since the last Reset.
func (a *Allocator) IsEmpty() bool { return a.allocCount == 0 }

// AllocCount returns the number of successful allocations.
func (a *Allocator) AllocCount() int { return a.allocCount }

// UsedArea returns the total area of allocated rectangles.
func (a *Allocator) UsedArea() int64 { return a.usedArea }

// Utilization returns the fraction of area used, from 0 to 1.
func (a *Allocator) Utilization() float64 {
	total := a.size.Area()
	if total == 0 {
		return 0
	}
	return float64(a.usedArea) / float64(total)
}

// UsedRect returns the bounding rect of all shelves, the part of the area
// a renderer actually has to touch.
func (a *Allocator) UsedRect() geom.IntRect {
	var r geom.IntRect
	for _, s := range a.shelves {
		r = r.Union(geom.NewIntRect(0, s.y, min(s.nextX, a.size.Width), min(s.height, a.size.Height-s.y)))
	}
	return r
}
