// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package composite

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/wr/geom"
)

func TestPushTileRoutesAndNumbers(t *testing.T) {
	s := NewState(DrawCompositor(1), 1, 100, true)
	s.PushTile(Tile{Kind: TileOpaque})
	s.PushTile(Tile{Kind: TileAlpha, DirtyRect: geom.NewRect(0, 0, 10, 10)})
	s.PushTile(Tile{Kind: TileClear})

	if s.TileCount() != 3 {
		t.Fatalf("TileCount() = %d, want 3", s.TileCount())
	}
	if s.AlphaTiles[0].ZID != 1 || s.ClearTiles[0].ZID != 2 {
		t.Errorf("z ids = %d, %d; want 1, 2", s.AlphaTiles[0].ZID, s.ClearTiles[0].ZID)
	}
	if s.DirtyTileCount() != 1 {
		t.Errorf("DirtyTileCount() = %d, want 1", s.DirtyTileCount())
	}
}

func TestZBufferIDOverflowPanics(t *testing.T) {
	g := NewZBufferIDGenerator(1)
	g.Next()
	defer func() {
		if recover() == nil {
			t.Error("Next past the limit must panic")
		}
	}()
	g.Next()
}

func TestPartialPresentRects(t *testing.T) {
	screen := geom.NewRect(0, 0, 100, 100)
	tests := []struct {
		name  string
		kind  CompositorKind
		valid bool
		want  []geom.Rect
	}{
		{"disabled", DrawCompositor(0), true, nil},
		{"native", NativeCompositor(1), true, nil},
		{"invalid dirty rects", DrawCompositor(1), false, []geom.Rect{screen}},
		{"merged", DrawCompositor(1), true, []geom.Rect{geom.RectFromPoints(0, 0, 50, 60)}},
		{"separate", DrawCompositor(4), true, []geom.Rect{geom.NewRect(0, 0, 10, 10), geom.NewRect(40, 50, 10, 10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(tt.kind, 1, 10, tt.valid)
			s.PushTile(Tile{Kind: TileOpaque, DirtyRect: geom.NewRect(0, 0, 10, 10)})
			s.PushTile(Tile{Kind: TileAlpha, DirtyRect: geom.NewRect(40, 50, 10, 10)})
			got := s.PartialPresentRects(screen)
			if len(got) != len(tt.want) {
				t.Fatalf("PartialPresentRects() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("rect %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestClearColor(t *testing.T) {
	if c := ClearColor(true, nil); c.A != 1 || c.R != 1 {
		t.Errorf("opaque background clear = %+v, want white", c)
	}
	if c := ClearColor(false, nil); c != (gputypes.Color{}) {
		t.Errorf("transparent clear = %+v", c)
	}
	red := gputypes.Color{R: 1, A: 1}
	if c := ClearColor(true, &red); c != red {
		t.Errorf("backdrop clear = %+v, want red", c)
	}
}
