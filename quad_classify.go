package wr

import (
	"fmt"

	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/geom"
)

// QuadTileKind says how a cell of a tiled quad is drawn.
type QuadTileKind uint8

const (
	// QuadTilePattern cells are drawn directly without a mask.
	QuadTilePattern QuadTileKind = iota
	// QuadTilePatternWithMask cells are drawn through a masked render task.
	QuadTilePatternWithMask
	// QuadTileCulled cells are skipped.
	QuadTileCulled
)

// String returns the tile kind name.
func (k QuadTileKind) String() string {
	switch k {
	case QuadTilePattern:
		return "Pattern"
	case QuadTilePatternWithMask:
		return "PatternWithMask"
	case QuadTileCulled:
		return "Culled"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// QuadTileInfo is one classified cell.
type QuadTileInfo struct {
	Rect geom.Rect
	Kind QuadTileKind
}

// QuadTileClassifier sorts the cells of a quad split into a grid by how
// they must be drawn. It is reused across primitives: every Reset must
// be followed by exactly one Classify.
type QuadTileClassifier struct {
	buffer        [MaxTilesPerQuad * MaxTilesPerQuad]QuadTileInfo
	maskRegions   []geom.Rect
	clipInRegions []geom.Rect
	clipOutRegion []geom.Rect
	rect          geom.Rect
	xTiles        int
	yTiles        int
}

// NewQuadTileClassifier returns an idle classifier.
func NewQuadTileClassifier() *QuadTileClassifier {
	return &QuadTileClassifier{}
}

// Reset splits rect into xTiles by yTiles cells, all Pattern, and drops
// the regions of the previous primitive.
func (q *QuadTileClassifier) Reset(xTiles, yTiles int, rect geom.Rect) {
	if q.xTiles != 0 || q.yTiles != 0 {
		panic("bug: quad tile classifier reset before classify")
	}
	if xTiles < 1 || yTiles < 1 || xTiles > MaxTilesPerQuad || yTiles > MaxTilesPerQuad {
		panic(fmt.Sprintf("bug: quad tile grid %dx%d out of range", xTiles, yTiles))
	}

	q.xTiles = xTiles
	q.yTiles = yTiles
	q.rect = rect
	q.maskRegions = q.maskRegions[:0]
	q.clipInRegions = q.clipInRegions[:0]
	q.clipOutRegion = q.clipOutRegion[:0]

	tw := rect.Width() / float32(xTiles)
	th := rect.Height() / float32(yTiles)
	for y := range yTiles {
		for x := range xTiles {
			// Explicit conversions keep the products from being fused.
			p0 := geom.Pt(rect.Min.X+float32(float32(x)*tw), rect.Min.Y+float32(float32(y)*th))
			q.buffer[y*xTiles+x] = QuadTileInfo{
				Rect: geom.RectFromPoints(p0.X, p0.Y, p0.X+tw, p0.Y+th),
				Kind: QuadTilePattern,
			}
		}
	}
}

// AddMaskRegion adds an area that needs a clip mask.
func (q *QuadTileClassifier) AddMaskRegion(r geom.Rect) {
	q.maskRegions = append(q.maskRegions, r)
}

// AddClipRect adds a region that culls cells. With ModeClip a cell lying
// entirely inside r is culled; with ModeClipOut a cell not touching r is
// culled.
func (q *QuadTileClassifier) AddClipRect(r geom.Rect, mode clip.Mode) {
	switch mode {
	case clip.ModeClip:
		q.clipInRegions = append(q.clipInRegions, r)
	case clip.ModeClipOut:
		q.clipOutRegion = append(q.clipOutRegion, r)
	default:
		panic(fmt.Sprintf("bug: unknown clip mode %v", mode))
	}
}

// Classify assigns a kind to every cell and returns them in row-major
// order. Culling takes precedence over masking, so the result does not
// depend on the order regions were added in. The returned slice is only
// valid until the next Reset.
func (q *QuadTileClassifier) Classify() []QuadTileInfo {
	if q.xTiles == 0 || q.yTiles == 0 {
		panic("bug: quad tile classifier classify without reset")
	}

	tiles := q.buffer[:q.xTiles*q.yTiles]
	for i := range tiles {
		info := &tiles[i]
		for _, r := range q.clipInRegions {
			if info.Kind != QuadTileCulled && r.ContainsBox(info.Rect) {
				info.Kind = QuadTileCulled
			}
		}
		for _, r := range q.clipOutRegion {
			if info.Kind != QuadTileCulled && !r.Intersects(info.Rect) {
				info.Kind = QuadTileCulled
			}
		}
		for _, r := range q.maskRegions {
			if info.Kind == QuadTilePattern && r.Intersects(info.Rect) {
				info.Kind = QuadTilePatternWithMask
			}
		}
	}

	q.xTiles = 0
	q.yTiles = 0
	return tiles
}
