package spatial

import "github.com/gogpu/wr/geom"

// TransformPaletteID addresses a transform in the per-frame palette. The
// top bit records that the transform is not axis-aligned, so shaders can
// pick a cheaper path without fetching the matrix.
type TransformPaletteID uint32

const complexTransformBit TransformPaletteID = 1 << 31

// IdentityTransformID refers to the identity entry every palette starts with.
const IdentityTransformID TransformPaletteID = 0

// Index returns the palette slot.
func (id TransformPaletteID) Index() uint32 { return uint32(id &^ complexTransformBit) }

// IsAxisAligned reports whether the transform keeps rects axis-aligned.
func (id TransformPaletteID) IsAxisAligned() bool { return id&complexTransformBit == 0 }

// TransformData is one palette entry.
type TransformData struct {
	Transform    geom.Transform
	InvTransform geom.Transform
}

type paletteKey struct {
	from, to NodeIndex
}

// TransformPalette collects the transforms referenced by primitive headers
// during one frame.
type TransformPalette struct {
	entries []TransformData
	ids     map[paletteKey]TransformPaletteID
}

// NewTransformPalette creates a palette holding the identity entry.
func NewTransformPalette() *TransformPalette {
	p := &TransformPalette{ids: make(map[paletteKey]TransformPaletteID)}
	p.entries = append(p.entries, TransformData{Transform: geom.Identity(), InvTransform: geom.Identity()})
	return p
}

// GetID returns the palette id of the transform mapping from's space into
// to's space, adding it on first use.
func (p *TransformPalette) GetID(from, to NodeIndex, tree *Tree) TransformPaletteID {
	if from == to {
		return IdentityTransformID
	}
	key := paletteKey{from: from, to: to}
	if id, ok := p.ids[key]; ok {
		return id
	}
	t := tree.RelativeTransform(from, to).ToTransform()
	inv, ok := t.Inverse()
	if !ok {
		inv = geom.Transform{}
	}
	p.entries = append(p.entries, TransformData{Transform: t, InvTransform: inv})
	id := TransformPaletteID(len(p.entries) - 1)
	if !t.IsAxisAligned2D() {
		id |= complexTransformBit
	}
	p.ids[key] = id
	return id
}

// Len returns the number of entries.
func (p *TransformPalette) Len() int { return len(p.entries) }

// Finish returns the entries for upload.
func (p *TransformPalette) Finish() []TransformData { return p.entries }

// Transform returns the entry of id.
func (p *TransformPalette) Transform(id TransformPaletteID) TransformData {
	return p.entries[id.Index()]
}
