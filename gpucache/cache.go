package gpucache

import "fmt"

// FrameID identifies the frame the cache was last ended in.
type FrameID uint64

// Block is the unit of GPU cache storage: four floats.
type Block [4]float32

// TextureWidth is the width, in blocks, of the cache texture. Addresses
// wrap into rows of this width.
const TextureWidth = 1024

// Address is the texel position of a block run in the cache texture.
type Address struct {
	U, V uint16
}

// InvalidAddress is returned for handles with no allocation.
var InvalidAddress = Address{U: ^uint16(0), V: ^uint16(0)}

func addressOf(block int) Address {
	return Address{U: uint16(block % TextureWidth), V: uint16(block / TextureWidth)}
}

// Handle is owned by whoever uploads data; the cache never reads the
// payload behind it. The zero Handle has no allocation.
type Handle struct {
	slot  int // 1-based index into entries, 0 means none
	epoch uint32
}

// IsValid reports whether h has ever been allocated.
func (h Handle) IsValid() bool { return h.slot != 0 }

type entry struct {
	start, count int
	epoch        uint32
	lastAccess   FrameID
}

// Update records a run of blocks written this frame.
type Update struct {
	Address Address
	Blocks  int
}

// Cache is the persistent GPU cache. Data is uploaded at most once per
// handle until the handle is invalidated; requests on an up-to-date
// handle are refused so callers skip rebuilding the payload.
type Cache struct {
	frameID  FrameID
	inFrame  bool
	blocks   []Block
	entries  []entry
	updates  []Update
	uploaded int
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{}
}

// BeginFrame opens a new frame. Every read or write of the frame must
// come after it.
func (c *Cache) BeginFrame() {
	if c.inFrame {
		panic("bug: gpu cache frame begun twice")
	}
	c.inFrame = true
	c.updates = c.updates[:0]
	c.uploaded = 0
}

// EndFrame closes the frame and returns its id.
func (c *Cache) EndFrame() FrameID {
	if !c.inFrame {
		panic("bug: gpu cache frame ended without begin")
	}
	c.inFrame = false
	c.frameID++
	return c.frameID
}

// FrameID returns the id of the last ended frame.
func (c *Cache) FrameID() FrameID { return c.frameID }

// Request starts an upload for h. It returns nil when the data behind h
// is already current, in which case the caller must not rebuild it.
func (c *Cache) Request(h *Handle) *Request {
	if !c.inFrame {
		panic("bug: gpu cache request outside of a frame")
	}
	if h.slot != 0 {
		e := &c.entries[h.slot-1]
		if e.epoch == h.epoch {
			e.lastAccess = c.frameID
			return nil
		}
	}
	return &Request{cache: c, handle: h}
}

// Invalidate marks the data behind h as stale so the next Request
// re-uploads it.
func (c *Cache) Invalidate(h *Handle) {
	if h.slot == 0 {
		return
	}
	c.entries[h.slot-1].epoch++
}

// GetAddress returns the address of the data behind h.
func (c *Cache) GetAddress(h *Handle) Address {
	if h.slot == 0 {
		return InvalidAddress
	}
	return addressOf(c.entries[h.slot-1].start)
}

// Updates returns the block runs written this frame.
func (c *Cache) Updates() []Update { return c.updates }

// UploadedBlocks returns the number of blocks written this frame.
func (c *Cache) UploadedBlocks() int { return c.uploaded }

// Block returns the block at address a, for inspection.
func (c *Cache) Block(a Address, offset int) Block {
	return c.blocks[int(a.V)*TextureWidth+int(a.U)+offset]
}

func (c *Cache) commit(h *Handle, data []Block) {
	var e *entry
	if h.slot != 0 {
		e = &c.entries[h.slot-1]
		if e.count != len(data) {
			e = nil
		}
	}
	if e == nil {
		c.entries = append(c.entries, entry{start: len(c.blocks), count: len(data)})
		c.blocks = append(c.blocks, make([]Block, len(data))...)
		h.slot = len(c.entries)
		e = &c.entries[h.slot-1]
	}
	copy(c.blocks[e.start:e.start+e.count], data)
	e.lastAccess = c.frameID
	h.epoch = e.epoch
	c.updates = append(c.updates, Update{Address: addressOf(e.start), Blocks: len(data)})
	c.uploaded += len(data)
}

// Request collects the blocks of one upload.
type Request struct {
	cache  *Cache
	handle *Handle
	data   []Block
}

// Push appends one block.
func (r *Request) Push(b Block) {
	r.data = append(r.data, b)
}

// PushRect appends a rect as (min.x, min.y, max.x, max.y).
func (r *Request) PushRect(x0, y0, x1, y1 float32) {
	r.Push(Block{x0, y0, x1, y1})
}

// Close writes the collected blocks to the cache.
func (r *Request) Close() {
	if len(r.data) == 0 {
		panic(fmt.Sprintf("bug: empty gpu cache request for handle %+v", *r.handle))
	}
	r.cache.commit(r.handle, r.data)
}
