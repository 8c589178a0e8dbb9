package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeBuffer(t *testing.T) {
	assert := assert.New(t)

	cb := New()
	assert.Equal(0, cb.CursorOffset())

	cb.EmitByte(0x12)
	cb.Emit16(0x3456)
	cb.Emit32(0x789abcde)
	assert.Equal(7, cb.CursorOffset())
	assert.Equal([]byte{0x12, 0x56, 0x34, 0xde, 0xbc, 0x9a, 0x78}, cb.Bytes())

	cb.Align()
	assert.Equal(8, cb.CursorOffset())
	assert.Equal(byte(0), cb.GetByte(7))

	cb.Emit64(0x1122334455667788)
	assert.Equal(16, cb.CursorOffset())
	assert.Equal(uint32(0x55667788), cb.GetUint32(8))
}

func TestCodeBufferRewind(t *testing.T) {
	assert := assert.New(t)

	cb := NewSized(8)
	cb.Emit32(0xdeadbeef)
	mark := cb.CursorOffset()
	cb.Emit32(0x0bad0bad)
	cb.Emit32(0x0bad0bad)

	cb.Rewind(mark)
	assert.Equal(mark, cb.CursorOffset())
	assert.Equal(4, len(cb.Bytes()))

	cb.Emit32(0xcafef00d)
	assert.Equal(uint32(0xcafef00d), cb.GetUint32(4))

	assert.Panics(func() { cb.Rewind(100) })
	assert.Panics(func() { cb.Rewind(-1) })
}

func TestCodeBufferPatch(t *testing.T) {
	assert := assert.New(t)

	cb := New()
	cb.EmitZeroes(12)
	cb.SetByte(0, 0xff)
	cb.SetUint16(2, 0xbeef)
	cb.SetUint32(4, 0x12345678)

	assert.Equal(byte(0xff), cb.GetByte(0))
	assert.Equal(uint16(0xbeef), cb.GetUint16(2))
	assert.Equal(uint32(0x12345678), cb.GetUint32(4))
	assert.Equal(12, cb.CursorOffset())
}

func TestCodeBufferGrow(t *testing.T) {
	assert := assert.New(t)

	cb := NewSized(2)
	for n := 0; n < 1000; n++ {
		cb.Emit32(uint32(n))
	}
	assert.Equal(4000, cb.CursorOffset())
	for n := 0; n < 1000; n++ {
		assert.Equal(uint32(n), cb.GetUint32(n*4))
	}

	cb.AlignTo(16)
	assert.Equal(4000, cb.CursorOffset()) // already aligned
	cb.EmitByte(1)
	cb.AlignTo(16)
	assert.Equal(4016, cb.CursorOffset())
}
