package batch

import (
	"github.com/gogpu/wr/composite"
	"github.com/gogpu/wr/geom"
	"github.com/gogpu/wr/gpucache"
	"github.com/gogpu/wr/spatial"
)

// InstanceData is the raw per-instance vertex attribute block.
type InstanceData struct {
	Data [4]int32
}

// PrimitiveInstance describes one brush instance.
type PrimitiveInstance struct {
	PrimHeader   int32
	ZID          composite.ZBufferID
	ClipTask     int32
	SegmentIndex int32
	Flags        int32
	UserData     int32
}

// Encode packs the instance into InstanceData.
func (p PrimitiveInstance) Encode() InstanceData {
	return InstanceData{Data: [4]int32{
		p.PrimHeader,
		int32(p.ZID),
		p.ClipTask<<16 | p.SegmentIndex&0xffff,
		p.Flags<<16 | p.UserData&0xffff,
	}}
}

// QuadPart names the piece of an anti-aliased quad an instance draws.
type QuadPart uint8

const (
	PartCenter QuadPart = iota
	PartLeft
	PartTop
	PartRight
	PartBottom
	PartAll
)

// QuadInstance describes one quad instance. The transform id and the
// destination task address live in the integer prim blocks.
type QuadInstance struct {
	PrimAddressI gpucache.BufferAddress
	PrimAddressF gpucache.BufferAddress
	ZID          composite.ZBufferID
	EdgeFlags    geom.EdgeMask
	QuadFlags    QuadFlags
	Part         QuadPart
	SegmentIndex uint8
}

// Encode packs the instance into InstanceData.
func (q QuadInstance) Encode() InstanceData {
	return InstanceData{Data: [4]int32{
		int32(q.PrimAddressI),
		int32(q.PrimAddressF),
		int32(q.Flags()),
		int32(q.ZID),
	}}
}

// Flags returns the packed part, segment and flag byte.
func (q QuadInstance) Flags() uint32 {
	return uint32(q.Part)<<24 | uint32(q.SegmentIndex)<<16 | uint32(q.QuadFlags)<<8 | uint32(q.EdgeFlags)
}

// PrimitiveHeaderF holds the float part of a primitive header.
type PrimitiveHeaderF struct {
	LocalRect     geom.Rect
	LocalClipRect geom.Rect
}

// PrimitiveHeaderI holds the integer part of a primitive header.
type PrimitiveHeaderI struct {
	ZID             composite.ZBufferID
	SpecificAddress gpucache.Address
	TransformID     spatial.TransformPaletteID
	RenderTask      gpucache.BufferAddress
	UserData        [4]int32
}

// PrimitiveHeaders collects the headers of all batched primitives of a
// frame.
type PrimitiveHeaders struct {
	F []PrimitiveHeaderF
	I []PrimitiveHeaderI
}

// Push appends a header and returns its index.
func (h *PrimitiveHeaders) Push(f PrimitiveHeaderF, i PrimitiveHeaderI) int32 {
	h.F = append(h.F, f)
	h.I = append(h.I, i)
	return int32(len(h.F) - 1)
}

// Len returns the number of headers.
func (h *PrimitiveHeaders) Len() int { return len(h.F) }
