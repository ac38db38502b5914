// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package composite describes how picture cache tiles are put on screen.
// The frame builder fills a State; the renderer or an OS compositor
// consumes it.
package composite

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/geom"
)

// Kind selects who composites the tiles.
type Kind uint8

const (
	// KindDraw composites tiles by drawing them into the framebuffer.
	KindDraw Kind = iota
	// KindNative hands tiles to the OS compositor.
	KindNative
)

// String returns the compositor name.
func (k Kind) String() string {
	switch k {
	case KindDraw:
		return "Draw"
	case KindNative:
		return "Native"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// CompositorKind configures the compositor.
type CompositorKind struct {
	Kind Kind
	// MaxPartialPresentRects bounds the dirty rects reported to a draw
	// compositor. Zero disables partial present.
	MaxPartialPresentRects int
	// DrawPreviousPartialPresentRegions also redraws the regions that
	// were dirty in the previous frame.
	DrawPreviousPartialPresentRegions bool
	// MaxUpdateRects bounds the dirty rects per native surface.
	MaxUpdateRects int
}

// DrawCompositor returns a draw compositor with partial present.
func DrawCompositor(maxPartialPresentRects int) CompositorKind {
	return CompositorKind{Kind: KindDraw, MaxPartialPresentRects: maxPartialPresentRects}
}

// NativeCompositor returns a native compositor configuration.
func NativeCompositor(maxUpdateRects int) CompositorKind {
	return CompositorKind{Kind: KindNative, MaxUpdateRects: maxUpdateRects}
}

// ZBufferID is a per-primitive depth value.
type ZBufferID int32

// ZBufferIDGenerator hands out increasing depth ids.
type ZBufferIDGenerator struct {
	next int32
	max  int32
}

// NewZBufferIDGenerator creates a generator for at most maxDepthIDs ids.
func NewZBufferIDGenerator(maxDepthIDs int32) *ZBufferIDGenerator {
	return &ZBufferIDGenerator{max: maxDepthIDs}
}

// Next returns the next id.
func (g *ZBufferIDGenerator) Next() ZBufferID {
	if g.next >= g.max {
		panic(fmt.Sprintf("bug: more than %d depth ids in one frame", g.max))
	}
	id := ZBufferID(g.next)
	g.next++
	return id
}

// Count returns the number of ids handed out.
func (g *ZBufferIDGenerator) Count() int32 { return g.next }

// SurfaceKind tags the content of a tile.
type SurfaceKind uint8

const (
	// SurfaceTexture tiles sample their cached texture.
	SurfaceTexture SurfaceKind = iota
	// SurfaceColor tiles are a solid color and need no texture.
	SurfaceColor
	// SurfaceClear tiles punch a transparent hole.
	SurfaceClear
)

// String returns the surface kind name.
func (k SurfaceKind) String() string {
	switch k {
	case SurfaceTexture:
		return "Texture"
	case SurfaceColor:
		return "Color"
	case SurfaceClear:
		return "Clear"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// NativeTileID identifies a tile of a native compositor surface.
type NativeTileID struct {
	Surface uint64
	X, Y    int32
}

// TileSurface is what a tile draws.
type TileSurface struct {
	Kind  SurfaceKind
	Color gputypes.Color
	// Texture identifies the cached texture of SurfaceTexture tiles.
	Texture NativeTileID
}

// TileKind routes a tile into a draw list.
type TileKind uint8

const (
	TileOpaque TileKind = iota
	TileAlpha
	TileClear
)

// Tile is one picture cache tile to composite.
type Tile struct {
	Surface TileSurface
	// Rect is the tile rect in device space.
	Rect geom.Rect
	// ClipRect clips the tile when drawn.
	ClipRect geom.Rect
	// DirtyRect is the part of the tile redrawn this frame, in device
	// space. Empty when the tile is valid.
	DirtyRect geom.Rect
	// ValidRect is the part of the tile holding content.
	ValidRect geom.Rect
	ZID       ZBufferID
	Kind      TileKind
}

// State collects the tiles to composite for one frame.
type State struct {
	OpaqueTiles []Tile
	AlphaTiles  []Tile
	ClearTiles  []Tile

	Compositor       CompositorKind
	DevicePixelScale float32
	// DirtyRectsAreValid is false when the previous frame was not
	// presented, in which case the whole screen counts as dirty.
	DirtyRectsAreValid bool

	zGen *ZBufferIDGenerator
}

// NewState creates an empty composite state.
func NewState(kind CompositorKind, devicePixelScale float32, maxDepthIDs int32, dirtyRectsAreValid bool) *State {
	return &State{
		Compositor:         kind,
		DevicePixelScale:   devicePixelScale,
		DirtyRectsAreValid: dirtyRectsAreValid,
		zGen:               NewZBufferIDGenerator(maxDepthIDs),
	}
}

// PushTile assigns a depth id to t and appends it to its draw list.
func (s *State) PushTile(t Tile) {
	t.ZID = s.zGen.Next()
	switch t.Kind {
	case TileOpaque:
		s.OpaqueTiles = append(s.OpaqueTiles, t)
	case TileAlpha:
		s.AlphaTiles = append(s.AlphaTiles, t)
	case TileClear:
		s.ClearTiles = append(s.ClearTiles, t)
	default:
		panic(fmt.Sprintf("bug: unknown tile kind %d", t.Kind))
	}
}

// TileCount returns the number of tiles in all lists.
func (s *State) TileCount() int {
	return len(s.OpaqueTiles) + len(s.AlphaTiles) + len(s.ClearTiles)
}

// DirtyTileCount returns the number of tiles redrawn this frame.
func (s *State) DirtyTileCount() int {
	n := 0
	for _, list := range [][]Tile{s.OpaqueTiles, s.AlphaTiles, s.ClearTiles} {
		for i := range list {
			if !list[i].DirtyRect.IsEmpty() {
				n++
			}
		}
	}
	return n
}

// PartialPresentRects returns the device rects that changed this frame,
// merged down to the compositor's partial present limit. It returns
// nil when partial present is disabled or the whole screen must be
// presented.
func (s *State) PartialPresentRects(screen geom.Rect) []geom.Rect {
	limit := s.Compositor.MaxPartialPresentRects
	if s.Compositor.Kind != KindDraw || limit <= 0 {
		return nil
	}
	if !s.DirtyRectsAreValid {
		return []geom.Rect{screen}
	}
	var rects []geom.Rect
	for _, list := range [][]Tile{s.OpaqueTiles, s.AlphaTiles, s.ClearTiles} {
		for i := range list {
			r, ok := list[i].DirtyRect.Intersection(screen)
			if ok {
				rects = append(rects, r)
			}
		}
	}
	if len(rects) > limit {
		var u geom.Rect
		for _, r := range rects {
			u = u.Union(r)
		}
		rects = []geom.Rect{u}
	}
	return rects
}

// ClearColor returns the color a tile target is cleared to before
// drawing.
func ClearColor(opaqueBackground bool, backdrop *gputypes.Color) gputypes.Color {
	if backdrop != nil {
		return *backdrop
	}
	if opaqueBackground {
		return gputypes.Color{R: 1, G: 1, B: 1, A: 1}
	}
	return gputypes.Color{}
}
