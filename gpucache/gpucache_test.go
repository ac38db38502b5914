package gpucache

import "testing"

func TestRequestAtMostOncePerHandle(t *testing.T) {
	c := New()
	var h Handle

	c.BeginFrame()
	req := c.Request(&h)
	if req == nil {
		t.Fatal("first request must be granted")
	}
	req.PushRect(0, 0, 10, 10)
	req.Close()

	if c.Request(&h) != nil {
		t.Error("second request in the same frame must be refused")
	}
	c.EndFrame()

	c.BeginFrame()
	if c.Request(&h) != nil {
		t.Error("request on an up-to-date handle must be refused in later frames")
	}
	c.Invalidate(&h)
	req = c.Request(&h)
	if req == nil {
		t.Fatal("request after Invalidate must be granted")
	}
	req.PushRect(1, 1, 2, 2)
	req.Close()
	if got := c.Block(c.GetAddress(&h), 0); got != (Block{1, 1, 2, 2}) {
		t.Errorf("Block() = %v, want updated data", got)
	}
	if c.UploadedBlocks() != 1 {
		t.Errorf("UploadedBlocks() = %d, want 1", c.UploadedBlocks())
	}
	if id := c.EndFrame(); id != 2 {
		t.Errorf("EndFrame() = %d, want 2", id)
	}
}

func TestAddressWrapsRows(t *testing.T) {
	if got := addressOf(TextureWidth + 3); got != (Address{U: 3, V: 1}) {
		t.Errorf("addressOf() = %+v", got)
	}
	var h Handle
	if New().GetAddress(&h) != InvalidAddress {
		t.Error("unallocated handle must have the invalid address")
	}
}

func TestBufferWriter(t *testing.T) {
	b := NewBufferBuilder()
	w := b.F.WriteBlocks(2)
	w.Push([4]float32{1, 2, 3, 4})
	w.Push([4]float32{5, 6, 7, 8})
	if addr := w.Finish(); addr != 0 {
		t.Errorf("first address = %d, want 0", addr)
	}

	w = b.F.WriteBlocks(1)
	w.Push([4]float32{9})
	if addr := w.Finish(); addr != 2 {
		t.Errorf("second address = %d, want 2", addr)
	}
	if b.F.Block(1)[0] != 5 {
		t.Errorf("Block(1) = %v", b.F.Block(1))
	}

	defer func() {
		if recover() == nil {
			t.Error("short write must panic")
		}
	}()
	b.I.WriteBlocks(2).Finish()
}
