// Package imagetiling decomposes repeated and tiled images into the
// repetitions and tiles that intersect a visible area.
package imagetiling

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/wr/geom"
)

// MaxRepetitions bounds the number of repetitions one primitive can
// produce along an axis.
const MaxRepetitions = 4096

// Repetition is one copy of a repeated image.
type Repetition struct {
	Origin geom.Point
	// EdgeFlags holds the edges of the primitive this copy touches.
	EdgeFlags geom.EdgeMask
}

// Repetitions returns the copies of an image repeated every stride inside
// primRect that intersect visibleRect. A non-positive stride component
// disables repetition on that axis.
func Repetitions(primRect, visibleRect geom.Rect, stride geom.Size) []Repetition {
	visible, ok := primRect.Intersection(visibleRect)
	if !ok {
		return nil
	}

	x0, nx := axisRange(primRect.Min.X, primRect.Max.X, visible.Min.X, visible.Max.X, stride.Width)
	y0, ny := axisRange(primRect.Min.Y, primRect.Max.Y, visible.Min.Y, visible.Max.Y, stride.Height)

	out := make([]Repetition, 0, nx*ny)
	for j := 0; j < ny; j++ {
		y := primRect.Min.Y + float32(y0+j)*stride.Height
		if stride.Height <= 0 {
			y = primRect.Min.Y
		}
		for i := 0; i < nx; i++ {
			x := primRect.Min.X + float32(x0+i)*stride.Width
			if stride.Width <= 0 {
				x = primRect.Min.X
			}
			var edges geom.EdgeMask
			if x <= primRect.Min.X {
				edges |= geom.EdgeLeft
			}
			if stride.Width <= 0 || x+stride.Width >= primRect.Max.X {
				edges |= geom.EdgeRight
			}
			if y <= primRect.Min.Y {
				edges |= geom.EdgeTop
			}
			if stride.Height <= 0 || y+stride.Height >= primRect.Max.Y {
				edges |= geom.EdgeBottom
			}
			out = append(out, Repetition{Origin: geom.Pt(x, y), EdgeFlags: edges})
		}
	}
	return out
}

// axisRange returns the index of the first repetition touching
// [visMin, visMax) and the number of repetitions to emit.
func axisRange(primMin, primMax, visMin, visMax, stride float32) (int, int) {
	if stride <= 0 {
		return 0, 1
	}
	first := int(math32.Floor((visMin - primMin) / stride))
	last := int(math32.Ceil((visMax - primMin) / stride))
	total := int(math32.Ceil((primMax - primMin) / stride))
	first = max(first, 0)
	last = min(last, total, first+MaxRepetitions)
	if last <= first {
		return first, 0
	}
	return first, last - first
}

// TileOffset is the position of a tile in the image's tile grid.
type TileOffset struct {
	X, Y int32
}

// Tile is one tile of a tiled image in layout space.
type Tile struct {
	Rect   geom.Rect
	Offset TileOffset
	// EdgeFlags holds the image edges the tile lies on.
	EdgeFlags geom.EdgeMask
}

// Tiles returns the tiles of an image drawn into imageRect that intersect
// visibleRect. activeRect is the valid area of the image in image pixels
// and tileSize the side of a tile in image pixels.
func Tiles(imageRect, visibleRect geom.Rect, activeRect geom.IntRect, tileSize int32) []Tile {
	if tileSize <= 0 || activeRect.IsEmpty() || imageRect.IsEmpty() {
		return nil
	}
	visible, ok := imageRect.Intersection(visibleRect)
	if !ok {
		return nil
	}

	// Layout units per image pixel.
	sx := imageRect.Width() / float32(activeRect.Width())
	sy := imageRect.Height() / float32(activeRect.Height())

	ts := float32(tileSize)
	firstX := int32(math32.Floor(float32(activeRect.Min.X) / ts))
	firstY := int32(math32.Floor(float32(activeRect.Min.Y) / ts))
	endX := int32(math32.Ceil(float32(activeRect.Max.X) / ts))
	endY := int32(math32.Ceil(float32(activeRect.Max.Y) / ts))

	// Visible area in image pixels.
	vx0 := float32(activeRect.Min.X) + (visible.Min.X-imageRect.Min.X)/sx
	vx1 := float32(activeRect.Min.X) + (visible.Max.X-imageRect.Min.X)/sx
	vy0 := float32(activeRect.Min.Y) + (visible.Min.Y-imageRect.Min.Y)/sy
	vy1 := float32(activeRect.Min.Y) + (visible.Max.Y-imageRect.Min.Y)/sy

	x0 := max(firstX, int32(math32.Floor(vx0/ts)))
	x1 := min(endX, int32(math32.Ceil(vx1/ts)))
	y0 := max(firstY, int32(math32.Floor(vy0/ts)))
	y1 := min(endY, int32(math32.Ceil(vy1/ts)))

	var out []Tile
	for ty := y0; ty < y1; ty++ {
		for tx := x0; tx < x1; tx++ {
			dev, ok := geom.NewIntRect(tx*tileSize, ty*tileSize, tileSize, tileSize).Intersection(activeRect)
			if !ok {
				continue
			}
			rect := geom.RectFromPoints(
				imageRect.Min.X+float32(dev.Min.X-activeRect.Min.X)*sx,
				imageRect.Min.Y+float32(dev.Min.Y-activeRect.Min.Y)*sy,
				imageRect.Min.X+float32(dev.Max.X-activeRect.Min.X)*sx,
				imageRect.Min.Y+float32(dev.Max.Y-activeRect.Min.Y)*sy,
			)
			var edges geom.EdgeMask
			if tx == firstX {
				edges |= geom.EdgeLeft
			}
			if tx == endX-1 {
				edges |= geom.EdgeRight
			}
			if ty == firstY {
				edges |= geom.EdgeTop
			}
			if ty == endY-1 {
				edges |= geom.EdgeBottom
			}
			out = append(out, Tile{Rect: rect, Offset: TileOffset{X: tx, Y: ty}, EdgeFlags: edges})
		}
	}
	return out
}

// EdgeFlagsForSpacing returns the edges that need anti-aliasing when
// repetitions are separated by spacing.
func EdgeFlagsForSpacing(spacing geom.Size) geom.EdgeMask {
	var flags geom.EdgeMask
	if spacing.Width > 0 {
		flags |= geom.EdgeLeft | geom.EdgeRight
	}
	if spacing.Height > 0 {
		flags |= geom.EdgeTop | geom.EdgeBottom
	}
	return flags
}
