package gpucache

import "fmt"

// BufferAddress is a block index into a frame-local GPU buffer.
type BufferAddress int32

// InvalidBufferAddress marks a missing address.
const InvalidBufferAddress BufferAddress = -1

// Scalar is the element type of a GPU buffer.
type Scalar interface {
	~float32 | ~int32
}

// Buffer is a frame-local GPU buffer of four-component blocks. Unlike the
// persistent cache it is rebuilt from scratch every frame.
type Buffer[T Scalar] struct {
	data [][4]T
}

// Len returns the number of blocks written.
func (b *Buffer[T]) Len() int { return len(b.data) }

// Reset empties the buffer, keeping its storage.
func (b *Buffer[T]) Reset() { b.data = b.data[:0] }

// Block returns the block at a.
func (b *Buffer[T]) Block(a BufferAddress) [4]T { return b.data[a] }

// WriteBlocks starts writing exactly n blocks.
func (b *Buffer[T]) WriteBlocks(n int) *Writer[T] {
	return &Writer[T]{buf: b, start: len(b.data), want: n}
}

// Writer appends a fixed number of blocks to a Buffer.
type Writer[T Scalar] struct {
	buf   *Buffer[T]
	start int
	want  int
}

// Push appends one block.
func (w *Writer[T]) Push(block [4]T) {
	w.buf.data = append(w.buf.data, block)
}

// Finish checks the block count and returns the address of the first block.
func (w *Writer[T]) Finish() BufferAddress {
	if got := len(w.buf.data) - w.start; got != w.want {
		panic(fmt.Sprintf("bug: wrote %d gpu buffer blocks, expected %d", got, w.want))
	}
	return BufferAddress(w.start)
}

// BufferBuilder groups the float and integer frame buffers.
type BufferBuilder struct {
	F Buffer[float32]
	I Buffer[int32]
}

// NewBufferBuilder creates empty buffers.
func NewBufferBuilder() *BufferBuilder {
	return &BufferBuilder{}
}

// Reset empties both buffers.
func (b *BufferBuilder) Reset() {
	b.F.Reset()
	b.I.Reset()
}
