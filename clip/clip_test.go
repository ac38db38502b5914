package clip

import (
	"testing"

	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/spatial"
)

func newTree() *spatial.Tree {
	tree := spatial.NewTree()
	tree.Update(geom.Vector{}, 1, nil)
	return tree
}

func mapperPair(tree *spatial.Tree) (spatial.SpaceMapper, spatial.SpaceMapper) {
	return spatial.NewSpaceMapper(spatial.RootNode, geom.MaxRect()),
		spatial.NewSpaceMapper(spatial.RootNode, geom.MaxRect())
}

func TestDataStoreInterns(t *testing.T) {
	d := NewDataStore()
	a := d.Intern(NewRectangle(spatial.RootNode, geom.NewRect(0, 0, 10, 10), ModeClip))
	b := d.Intern(NewRectangle(spatial.RootNode, geom.NewRect(0, 0, 10, 10), ModeClip))
	c := d.Intern(NewRectangle(spatial.RootNode, geom.NewRect(0, 0, 10, 10), ModeClipOut))

	if a != b {
		t.Errorf("equal items got handles %d and %d", a, b)
	}
	if a == c {
		t.Error("different modes must not share a handle")
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
}

func TestBuildClipChainInstance(t *testing.T) {
	tree := newTree()
	prim := geom.NewRect(0, 0, 100, 100)

	tests := []struct {
		name      string
		items     []Item
		wantOK    bool
		wantMask  bool
		wantCount uint32
		wantLocal geom.Rect
	}{
		{
			name:      "no clips",
			wantOK:    true,
			wantLocal: geom.MaxRect(),
		},
		{
			name:      "enclosing rect accepts",
			items:     []Item{NewRectangle(spatial.RootNode, geom.NewRect(-10, -10, 200, 200), ModeClip)},
			wantOK:    true,
			wantLocal: geom.NewRect(-10, -10, 200, 200),
		},
		{
			// The rect folds into the local clip rect and then accepts.
			name:      "partial rect folds into local clip",
			items:     []Item{NewRectangle(spatial.RootNode, geom.NewRect(50, 0, 100, 100), ModeClip)},
			wantOK:    true,
			wantLocal: geom.NewRect(50, 0, 100, 100),
		},
		{
			name:   "disjoint rect rejects",
			items:  []Item{NewRectangle(spatial.RootNode, geom.NewRect(200, 200, 10, 10), ModeClip)},
			wantOK: false,
		},
		{
			name: "rounded rect needs mask",
			items: []Item{NewRoundedRectangle(spatial.RootNode, geom.NewRect(0, 0, 100, 100),
				UniformRadius(10), ModeClip)},
			wantOK:    true,
			wantMask:  true,
			wantCount: 1,
			wantLocal: geom.NewRect(0, 0, 100, 100),
		},
		{
			name:   "clip out covering rejects",
			items:  []Item{NewRectangle(spatial.RootNode, geom.NewRect(-1, -1, 102, 102), ModeClipOut)},
			wantOK: false,
		},
		{
			name:      "clip out partial needs mask",
			items:     []Item{NewRectangle(spatial.RootNode, geom.NewRect(40, 40, 20, 20), ModeClipOut)},
			wantOK:    true,
			wantMask:  true,
			wantCount: 1,
			wantLocal: geom.MaxRect(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(nil)
			id := store.AddClipChain(NoChain, tt.items...)
			stack := NewChainStack()
			stack.PushClip(id, store)

			toPic, toWorld := mapperPair(tree)
			store.SetActiveClips(geom.MaxRect(), spatial.RootNode, spatial.RootNode, stack.CurrentClips(), tree)
			inst, ok := store.BuildClipChainInstance(prim, &toPic, &toWorld, geom.MaxRect())
			stack.PopClip()

			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if inst.NeedsMask != tt.wantMask {
				t.Errorf("NeedsMask = %v, want %v", inst.NeedsMask, tt.wantMask)
			}
			if inst.ClipsRange.Count != tt.wantCount {
				t.Errorf("ClipsRange.Count = %d, want %d", inst.ClipsRange.Count, tt.wantCount)
			}
			if inst.LocalClipRect != tt.wantLocal {
				t.Errorf("LocalClipRect = %v, want %v", inst.LocalClipRect, tt.wantLocal)
			}
		})
	}
}

func TestBuildClipChainInstanceTransformedClip(t *testing.T) {
	tree := spatial.NewTree()
	rotated := tree.AddReferenceFrame(spatial.RootNode, spatial.ReferenceFrameInfo{
		Transform: geom.Rotation(0.3),
	})
	tree.Update(geom.Vector{}, 1, nil)

	store := NewStore(nil)
	id := store.AddClipChain(NoChain, NewRectangle(rotated, geom.NewRect(0, 0, 50, 50), ModeClip))
	stack := NewChainStack()
	stack.PushClip(id, store)

	toPic, toWorld := mapperPair(tree)
	store.SetActiveClips(geom.MaxRect(), spatial.RootNode, spatial.RootNode, stack.CurrentClips(), tree)
	inst, ok := store.BuildClipChainInstance(geom.NewRect(0, 0, 100, 100), &toPic, &toWorld, geom.MaxRect())
	if !ok {
		t.Fatal("primitive overlapping a rotated clip must stay visible")
	}
	if !inst.NeedsMask {
		t.Error("rect clip in another coordinate system needs a mask")
	}
	if got := store.GetInstanceFromRange(inst.ClipsRange, 0); got.Flags&SameCoordSystem != 0 {
		t.Errorf("Flags = %b, must not include SameCoordSystem", got.Flags)
	}
}

func TestChainStackSharedClips(t *testing.T) {
	store := NewStore(nil)
	shared := store.Data.Intern(NewRectangle(spatial.RootNode, geom.NewRect(0, 0, 10, 10), ModeClip))
	parent := store.AddClipChainNode(shared, NoChain)
	child := store.AddClipChain(parent, NewRectangle(spatial.RootNode, geom.NewRect(0, 0, 5, 5), ModeClip))

	stack := NewChainStack()
	stack.PushClip(child, store)
	if got := len(stack.CurrentClips()); got != 2 {
		t.Fatalf("len(CurrentClips()) = %d, want 2", got)
	}

	stack.PushSurface([]DataHandle{shared})
	if got := len(stack.CurrentClips()); got != 0 {
		t.Errorf("new surface starts with %d clips, want 0", got)
	}
	stack.PushClip(child, store)
	if got := len(stack.CurrentClips()); got != 1 {
		t.Errorf("shared clip must be skipped, got %d clips", got)
	}
	stack.PopClip()
	stack.PopSurface()
	stack.PopClip()

	if stack.Depth() != 1 || len(stack.CurrentClips()) != 0 {
		t.Errorf("stack not balanced: depth %d, clips %d", stack.Depth(), len(stack.CurrentClips()))
	}
}

func TestChainStackUnderflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("PopClip on empty stack must panic")
		}
	}()
	NewChainStack().PopClip()
}

func TestLocalMaskRects(t *testing.T) {
	tree := spatial.NewTree()
	offset := tree.AddReferenceFrame(spatial.RootNode, spatial.ReferenceFrameInfo{
		Transform: geom.Translation(10, 0),
	})
	tree.Update(geom.Vector{}, 1, nil)

	item := NewRoundedRectangle(offset, geom.NewRect(0, 0, 100, 100), UniformRadius(8), ModeClip)
	var rects []geom.Rect
	if !item.LocalMaskRects(spatial.RootNode, tree, func(r geom.Rect) { rects = append(rects, r) }) {
		t.Fatal("rounded rect in the same coordinate system must expose mask rects")
	}
	if len(rects) != 4 {
		t.Fatalf("got %d mask rects, want 4", len(rects))
	}
	if want := geom.NewRect(10, 0, 8, 8); rects[0] != want {
		t.Errorf("top-left corner = %v, want %v", rects[0], want)
	}

	region, mode, ok := item.LocalClipRegion(spatial.RootNode, tree)
	if !ok || mode != ModeClip || region != geom.NewRect(10, 0, 100, 100) {
		t.Errorf("LocalClipRegion() = %v, %v, %v", region, mode, ok)
	}
}

func TestLocalMaskRectsRectangle(t *testing.T) {
	tree := newTree()
	r := geom.NewRect(300, 200, 200, 200)

	var rects []geom.Rect
	collect := func(m geom.Rect) { rects = append(rects, m) }

	keep := NewRectangle(spatial.RootNode, r, ModeClip)
	if !keep.LocalMaskRects(spatial.RootNode, tree, collect) {
		t.Fatal("rect clip in the same coordinate system must be expressible")
	}
	if len(rects) != 0 {
		t.Errorf("ModeClip rect produced mask rects %v, want none", rects)
	}

	out := NewRectangle(spatial.RootNode, r, ModeClipOut)
	if !out.LocalMaskRects(spatial.RootNode, tree, collect) {
		t.Fatal("rect clip in the same coordinate system must be expressible")
	}
	if len(rects) != 1 || rects[0] != r {
		t.Errorf("ModeClipOut mask rects = %v, want [%v]", rects, r)
	}
}

func TestLocalMaskRectsRoundedRectangle(t *testing.T) {
	tree := newTree()
	r := geom.NewRect(0, 0, 200, 100)

	var rects []geom.Rect
	collect := func(m geom.Rect) { rects = append(rects, m) }

	keep := NewRoundedRectangle(spatial.RootNode, r, UniformRadius(10), ModeClip)
	keep.LocalMaskRects(spatial.RootNode, tree, collect)
	if len(rects) != 4 {
		t.Fatalf("ModeClip rounded rect produced %d mask rects, want the 4 corners", len(rects))
	}
	if want := geom.NewRect(0, 0, 10, 10); rects[0] != want {
		t.Errorf("top left corner = %v, want %v", rects[0], want)
	}

	rects = rects[:0]
	out := NewRoundedRectangle(spatial.RootNode, r, UniformRadius(10), ModeClipOut)
	out.LocalMaskRects(spatial.RootNode, tree, collect)
	if len(rects) != 1 || rects[0] != r {
		t.Errorf("ModeClipOut rounded mask rects = %v, want [%v]", rects, r)
	}
}
