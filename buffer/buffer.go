// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package buffer provides the growable little-endian code buffer that the
// assembler emits into. The buffer keeps a write cursor, supports alignment
// padding, rewinding speculative emissions, and retroactive patching at
// arbitrary offsets.
package buffer

import (
	"encoding/binary"
)

const (
	DEFAULT_CAPACITY = 4096 // Initial allocation when none is given.
)

// CodeBuffer is an append-only byte store with a cursor.
type CodeBuffer struct {
	data   []byte
	cursor int
}

// New creates a CodeBuffer with the default initial capacity.
func New() *CodeBuffer {
	return NewSized(DEFAULT_CAPACITY)
}

// NewSized creates a CodeBuffer with an initial capacity of size bytes.
func NewSized(size int) *CodeBuffer {
	if size <= 0 {
		size = DEFAULT_CAPACITY
	}
	return &CodeBuffer{data: make([]byte, 0, size)}
}

// CursorOffset returns the current write position.
func (cb *CodeBuffer) CursorOffset() int {
	return cb.cursor
}

// Size returns the number of valid bytes written so far.
func (cb *CodeBuffer) Size() int {
	return len(cb.data)
}

// Bytes returns the assembled bytes up to the cursor.
func (cb *CodeBuffer) Bytes() []byte {
	return cb.data[:cb.cursor]
}

// EnsureCapacity grows the backing store so that at least size more bytes
// can be written without reallocation.
func (cb *CodeBuffer) EnsureCapacity(size int) {
	need := cb.cursor + size
	if need <= cap(cb.data) {
		return
	}
	grown := make([]byte, len(cb.data), max(need, cap(cb.data)*2))
	copy(grown, cb.data)
	cb.data = grown
}

// extend makes room for size bytes at the cursor and advances it.
func (cb *CodeBuffer) extend(size int) (at int) {
	cb.EnsureCapacity(size)
	at = cb.cursor
	cb.cursor += size
	if cb.cursor > len(cb.data) {
		cb.data = cb.data[:cb.cursor]
	}
	return
}

// EmitByte writes one byte at the cursor.
func (cb *CodeBuffer) EmitByte(v byte) {
	at := cb.extend(1)
	cb.data[at] = v
}

// Emit16 writes a little-endian 16-bit value at the cursor.
func (cb *CodeBuffer) Emit16(v uint16) {
	at := cb.extend(2)
	binary.LittleEndian.PutUint16(cb.data[at:], v)
}

// Emit32 writes a little-endian 32-bit value at the cursor.
func (cb *CodeBuffer) Emit32(v uint32) {
	at := cb.extend(4)
	binary.LittleEndian.PutUint32(cb.data[at:], v)
}

// Emit64 writes a little-endian 64-bit value at the cursor.
func (cb *CodeBuffer) Emit64(v uint64) {
	at := cb.extend(8)
	binary.LittleEndian.PutUint64(cb.data[at:], v)
}

// EmitBytes writes raw bytes at the cursor.
func (cb *CodeBuffer) EmitBytes(raw []byte) {
	at := cb.extend(len(raw))
	copy(cb.data[at:], raw)
}

// EmitZeroes writes size zero bytes at the cursor. Rewound regions are
// re-zeroed on the next pass through here.
func (cb *CodeBuffer) EmitZeroes(size int) {
	at := cb.extend(size)
	clear(cb.data[at : at+size])
}

// Align pads the cursor with zeroes to a 4-byte boundary.
func (cb *CodeBuffer) Align() {
	cb.AlignTo(4)
}

// AlignTo pads the cursor with zeroes to an alignment-byte boundary.
func (cb *CodeBuffer) AlignTo(alignment int) {
	rem := cb.cursor % alignment
	if rem != 0 {
		cb.EmitZeroes(alignment - rem)
	}
}

// Rewind moves the cursor back to offset, discarding speculative bytes.
// The discarded region stays allocated and is overwritten by later emissions.
func (cb *CodeBuffer) Rewind(offset int) {
	if offset < 0 || offset > cb.cursor {
		panic(ErrRewindRange)
	}
	cb.cursor = offset
	cb.data = cb.data[:offset]
}

// SetByte patches one byte at an already-emitted offset.
func (cb *CodeBuffer) SetByte(offset int, v byte) {
	cb.data[offset] = v
}

// SetUint16 patches a little-endian 16-bit value at an already-emitted offset.
func (cb *CodeBuffer) SetUint16(offset int, v uint16) {
	binary.LittleEndian.PutUint16(cb.data[offset:], v)
}

// SetUint32 patches a little-endian 32-bit value at an already-emitted offset.
func (cb *CodeBuffer) SetUint32(offset int, v uint32) {
	binary.LittleEndian.PutUint32(cb.data[offset:], v)
}

// GetByte reads one already-emitted byte.
func (cb *CodeBuffer) GetByte(offset int) byte {
	return cb.data[offset]
}

// GetUint16 reads an already-emitted little-endian 16-bit value.
func (cb *CodeBuffer) GetUint16(offset int) uint16 {
	return binary.LittleEndian.Uint16(cb.data[offset:])
}

// GetUint32 reads an already-emitted little-endian 32-bit value.
func (cb *CodeBuffer) GetUint32(offset int) uint32 {
	return binary.LittleEndian.Uint32(cb.data[offset:])
}
