package wr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/wr/clip"
	"github.com/gogpu/wr/geom"
)

const (
	p = QuadTilePattern
	m = QuadTilePatternWithMask
	c = QuadTileCulled
)

func newClassifier(xTiles, yTiles int, x0, y0, w, h float32) *QuadTileClassifier {
	q := NewQuadTileClassifier()
	q.Reset(xTiles, yTiles, geom.NewRect(x0, y0, w, h))
	return q
}

func verifyTiles(t *testing.T, q *QuadTileClassifier, want []QuadTileKind) {
	t.Helper()
	tiles := q.Classify()
	require.Len(t, tiles, len(want))
	for i, tile := range tiles {
		assert.Equal(t, want[i], tile.Kind, "tile %d at %v", i, tile.Rect)
	}
}

func TestQuadClassifyNoRegions(t *testing.T) {
	q := newClassifier(3, 3, 0, 0, 100, 100)
	verifyTiles(t, q, []QuadTileKind{
		p, p, p,
		p, p, p,
		p, p, p,
	})
}

func TestQuadClassifyClipCoversGrid(t *testing.T) {
	q := newClassifier(3, 3, 0, 0, 100, 100)
	q.AddClipRect(geom.RectFromPoints(0, 0, 100, 100), clip.ModeClip)
	verifyTiles(t, q, []QuadTileKind{
		c, c, c,
		c, c, c,
		c, c, c,
	})
}

func TestQuadClassifyClipSmallerThanCell(t *testing.T) {
	q := newClassifier(3, 3, 0, 0, 100, 100)
	q.AddClipRect(geom.RectFromPoints(40, 40, 60, 60), clip.ModeClip)
	verifyTiles(t, q, []QuadTileKind{
		p, p, p,
		p, p, p,
		p, p, p,
	})
}

func TestQuadClassifyClipCoversCenter(t *testing.T) {
	q := newClassifier(3, 3, 0, 0, 100, 100)
	q.AddClipRect(geom.RectFromPoints(30, 30, 70, 70), clip.ModeClip)
	verifyTiles(t, q, []QuadTileKind{
		p, p, p,
		p, c, p,
		p, p, p,
	})
}

func TestQuadClassifyClipOutTouchesAll(t *testing.T) {
	q := newClassifier(3, 3, 0, 0, 100, 100)
	q.AddClipRect(geom.RectFromPoints(30, 30, 70, 70), clip.ModeClipOut)
	verifyTiles(t, q, []QuadTileKind{
		p, p, p,
		p, p, p,
		p, p, p,
	})
}

func TestQuadClassifyClipOutCenter(t *testing.T) {
	q := newClassifier(3, 3, 0, 0, 100, 100)
	q.AddClipRect(geom.RectFromPoints(40, 40, 60, 60), clip.ModeClipOut)
	verifyTiles(t, q, []QuadTileKind{
		c, c, c,
		c, p, c,
		c, c, c,
	})
}

func TestQuadClassifyMaskCoversAll(t *testing.T) {
	q := newClassifier(3, 3, 0, 0, 100, 100)
	q.AddMaskRegion(geom.RectFromPoints(20, 10, 90, 80))
	verifyTiles(t, q, []QuadTileKind{
		m, m, m,
		m, m, m,
		m, m, m,
	})
}

func TestQuadClassifyMaskCenter(t *testing.T) {
	q := newClassifier(3, 3, 0, 0, 100, 100)
	q.AddMaskRegion(geom.RectFromPoints(40, 40, 60, 60))
	verifyTiles(t, q, []QuadTileKind{
		p, p, p,
		p, m, p,
		p, p, p,
	})
}

func TestQuadClassifyMaskCorner(t *testing.T) {
	q := newClassifier(4, 4, 100, 200, 100, 100)
	q.AddMaskRegion(geom.RectFromPoints(90, 180, 140, 240))
	verifyTiles(t, q, []QuadTileKind{
		m, m, p, p,
		m, m, p, p,
		p, p, p, p,
		p, p, p, p,
	})
}

func TestQuadClassifyClipOverridesMask(t *testing.T) {
	q := newClassifier(4, 4, 100, 200, 100, 100)
	q.AddMaskRegion(geom.RectFromPoints(90, 180, 140, 240))
	q.AddClipRect(geom.RectFromPoints(120, 220, 160, 280), clip.ModeClip)
	verifyTiles(t, q, []QuadTileKind{
		m, m, p, p,
		m, c, p, p,
		p, c, p, p,
		p, p, p, p,
	})
}

func TestQuadClassifyOrderIndependent(t *testing.T) {
	mask := geom.RectFromPoints(90, 180, 140, 240)
	clipIn := geom.RectFromPoints(120, 220, 160, 280)
	clipOut := geom.RectFromPoints(130, 200, 160, 240)
	want := []QuadTileKind{
		c, m, p, c,
		c, c, p, c,
		c, c, c, c,
		c, c, c, c,
	}

	t.Run("mask first", func(t *testing.T) {
		q := newClassifier(4, 4, 100, 200, 100, 100)
		q.AddMaskRegion(mask)
		q.AddClipRect(clipIn, clip.ModeClip)
		q.AddClipRect(clipOut, clip.ModeClipOut)
		verifyTiles(t, q, want)
	})
	t.Run("clips first", func(t *testing.T) {
		q := newClassifier(4, 4, 100, 200, 100, 100)
		q.AddClipRect(clipOut, clip.ModeClipOut)
		q.AddClipRect(clipIn, clip.ModeClip)
		q.AddMaskRegion(mask)
		verifyTiles(t, q, want)
	})
}

func TestQuadClassifyDisjointClipCullsNothing(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4} {
		t.Run(fmt.Sprintf("%dx%d", n, n), func(t *testing.T) {
			q := newClassifier(n, n, 0, 0, 100, 100)
			q.AddClipRect(geom.RectFromPoints(200, 200, 300, 300), clip.ModeClip)
			for _, tile := range q.Classify() {
				assert.Equal(t, QuadTilePattern, tile.Kind)
			}
		})
	}
}

func TestQuadClassifyMaskLocality(t *testing.T) {
	q := newClassifier(4, 4, 0, 0, 400, 400)
	region := geom.RectFromPoints(110, 110, 190, 290)
	q.AddMaskRegion(region)
	for _, tile := range q.Classify() {
		want := QuadTilePattern
		if region.Intersects(tile.Rect) {
			want = QuadTilePatternWithMask
		}
		assert.Equal(t, want, tile.Kind, "tile %v", tile.Rect)
	}
}

func TestQuadClassifyCulledStaysCulled(t *testing.T) {
	q := newClassifier(2, 2, 0, 0, 100, 100)
	q.AddClipRect(geom.RectFromPoints(0, 0, 50, 50), clip.ModeClip)
	q.AddMaskRegion(geom.RectFromPoints(0, 0, 100, 100))
	verifyTiles(t, q, []QuadTileKind{
		c, m,
		m, m,
	})
}

func TestQuadClassifierResetContract(t *testing.T) {
	q := NewQuadTileClassifier()
	assert.Panics(t, func() { q.Classify() }, "classify before reset")

	q.Reset(2, 2, geom.NewRect(0, 0, 10, 10))
	assert.Panics(t, func() { q.Reset(2, 2, geom.NewRect(0, 0, 10, 10)) }, "reset twice")

	q = NewQuadTileClassifier()
	assert.Panics(t, func() { q.Reset(MaxTilesPerQuad+1, 1, geom.NewRect(0, 0, 10, 10)) })

	q = newClassifier(2, 1, 0, 0, 10, 10)
	q.AddMaskRegion(geom.NewRect(0, 0, 1, 1))
	q.Classify()
	// A classified grid can be reused, and regions of the previous
	// primitive are gone.
	q.Reset(2, 1, geom.NewRect(0, 0, 10, 10))
	verifyTiles(t, q, []QuadTileKind{p, p})
}

func TestQuadTileKindString(t *testing.T) {
	assert.Equal(t, "Pattern", QuadTilePattern.String())
	assert.Equal(t, "PatternWithMask", QuadTilePatternWithMask.String())
	assert.Equal(t, "Culled", QuadTileCulled.String())
	assert.Equal(t, "Unknown(9)", QuadTileKind(9).String())
}
