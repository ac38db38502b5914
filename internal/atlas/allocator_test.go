package atlas

import (
	"errors"
	"testing"

	"github.com/gogpu/wr/geom"
)

func TestAllocatorShelves(t *testing.T) {
	a := New(geom.IntSize{Width: 100, Height: 100}, 0)

	r1, err := a.Allocate(geom.IntSize{Width: 60, Height: 20})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	r2, err := a.Allocate(geom.IntSize{Width: 40, Height: 10})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	r3, err := a.Allocate(geom.IntSize{Width: 50, Height: 30})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if r1 != geom.NewIntRect(0, 0, 60, 20) {
		t.Errorf("r1 = %v", r1)
	}
	if r2 != geom.NewIntRect(60, 0, 40, 10) {
		t.Errorf("r2 = %v", r2)
	}
	if r3 != geom.NewIntRect(0, 20, 50, 30) {
		t.Errorf("r3 = %v", r3)
	}
	if _, ok := r1.Intersection(r3); ok {
		t.Error("allocations overlap")
	}
	if a.AllocCount() != 3 {
		t.Errorf("AllocCount() = %d", a.AllocCount())
	}
	if got := a.UsedRect(); got != geom.NewIntRect(0, 0, 100, 50) {
		t.Errorf("UsedRect() = %v", got)
	}
}

func TestAllocatorFull(t *testing.T) {
	a := New(geom.IntSize{Width: 32, Height: 32}, 0)
	if _, err := a.Allocate(geom.IntSize{Width: 64, Height: 8}); !errors.Is(err, ErrFull) {
		t.Errorf("oversized allocation err = %v, want ErrFull", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := a.Allocate(geom.IntSize{Width: 32, Height: 8}); err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
	}
	if _, err := a.Allocate(geom.IntSize{Width: 1, Height: 1}); !errors.Is(err, ErrFull) {
		t.Errorf("allocation into a full area err = %v, want ErrFull", err)
	}
	if a.Utilization() != 1 {
		t.Errorf("Utilization() = %v, want 1", a.Utilization())
	}

	a.Reset()
	if !a.IsEmpty() || a.UsedArea() != 0 {
		t.Error("Reset must clear allocations")
	}
}

func TestAllocatorEmptySize(t *testing.T) {
	a := New(geom.IntSize{Width: 32, Height: 32}, 0)
	r, err := a.Allocate(geom.IntSize{})
	if err != nil || !r.IsEmpty() {
		t.Errorf("Allocate(empty) = %v, %v", r, err)
	}
	if !a.IsEmpty() {
		t.Error("empty allocation must not count")
	}
}
