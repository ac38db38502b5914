package tilecache

import "math/bits"

// Bitmap records one bit per tile of a grid, packed 64 tiles per word.
// Bit index = ty*tilesX + tx.
//
// The frame pipeline is single-threaded, so words are plain integers.
type Bitmap struct {
	words  []uint64
	tilesX int
	tilesY int
}

// NewBitmap creates a cleared bitmap for a tilesX × tilesY grid.
// Returns nil if a dimension is not positive.
func NewBitmap(tilesX, tilesY int) *Bitmap {
	if tilesX <= 0 || tilesY <= 0 {
		return nil
	}
	return &Bitmap{
		words:  make([]uint64, (tilesX*tilesY+63)/64),
		tilesX: tilesX,
		tilesY: tilesY,
	}
}

// Mark sets the bit of tile (tx, ty). Out-of-range tiles are ignored.
func (b *Bitmap) Mark(tx, ty int) {
	if tx < 0 || tx >= b.tilesX || ty < 0 || ty >= b.tilesY {
		return
	}
	idx := ty*b.tilesX + tx
	b.words[idx/64] |= 1 << (idx & 63)
}

// IsSet reports whether tile (tx, ty) is marked.
func (b *Bitmap) IsSet(tx, ty int) bool {
	if tx < 0 || tx >= b.tilesX || ty < 0 || ty >= b.tilesY {
		return false
	}
	idx := ty*b.tilesX + tx
	return b.words[idx/64]&(1<<(idx&63)) != 0
}

// MarkAll sets every tile.
func (b *Bitmap) MarkAll() {
	total := b.tilesX * b.tilesY
	full := total / 64
	for i := 0; i < full; i++ {
		b.words[i] = ^uint64(0)
	}
	if rem := total % 64; rem > 0 {
		b.words[full] = (uint64(1) << rem) - 1
	}
}

// Clear resets every tile.
func (b *Bitmap) Clear() {
	clear(b.words)
}

// IsEmpty reports whether no tile is marked.
func (b *Bitmap) IsEmpty() bool {
	for _, w := range b.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of marked tiles.
func (b *Bitmap) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// ForEach calls fn for each marked tile in row-major order.
func (b *Bitmap) ForEach(fn func(tx, ty int)) {
	total := b.tilesX * b.tilesY
	for wi, w := range b.words {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			idx := wi*64 + bit
			if idx >= total {
				break
			}
			fn(idx%b.tilesX, idx/b.tilesX)
			w &^= 1 << bit
		}
	}
}

// TilesX returns the grid width.
func (b *Bitmap) TilesX() int { return b.tilesX }

// TilesY returns the grid height.
func (b *Bitmap) TilesY() int { return b.tilesY }
