// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package aarch32

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestT32Encodings(t *testing.T) {
	assert := assert.New(t)

	for _, tc := range []struct {
		name string
		emit func(a *Assembler)
		want []byte
	}{
		{"nop", func(a *Assembler) { a.Nop() }, []byte{0x00, 0xbf}},
		{"bkpt", func(a *Assembler) { a.Bkpt(0x42) }, []byte{0x42, 0xbe}},
		{"mov narrow imm", func(a *Assembler) {
			a.Mov(AL, Best, R3, Imm(0x2a))
		}, []byte{0x2a, 0x23}},
		{"mov wide imm high reg", func(a *Assembler) {
			a.Mov(AL, Best, R9, Imm(0xff))
		}, []byte{0x4f, 0xf0, 0xff, 0x09}},
		{"mov reg", func(a *Assembler) {
			a.Mov(AL, Best, R8, Rm(R1))
		}, []byte{0x88, 0x46}},
		{"movw", func(a *Assembler) {
			a.Movw(AL, R1, 0xabcd)
		}, []byte{0x4a, 0xf6, 0xcd, 0x31}},
		{"movt", func(a *Assembler) {
			a.Movt(AL, R0, 1)
		}, []byte{0xc0, 0xf2, 0x01, 0x00}},
		{"add narrow reg", func(a *Assembler) {
			a.Add(AL, Best, R0, R0, Rm(R1))
		}, []byte{0x08, 0x44}},
		{"add wide imm", func(a *Assembler) {
			a.Add(AL, Best, R0, R1, Imm(0x11))
		}, []byte{0x01, 0xf1, 0x11, 0x00}},
		{"sub wide imm", func(a *Assembler) {
			a.Sub(AL, Best, R1, R1, Imm(1))
		}, []byte{0xa1, 0xf1, 0x01, 0x01}},
		{"cmp narrow imm", func(a *Assembler) {
			a.Cmp(AL, Best, R2, Imm(5))
		}, []byte{0x05, 0x2a}},
		{"cmp narrow reg", func(a *Assembler) {
			a.Cmp(AL, Best, R1, Rm(R2))
		}, []byte{0x91, 0x42}},
		{"ldr sp relative", func(a *Assembler) {
			a.Ldr(AL, Best, R1, Mem(SP, 8))
		}, []byte{0x02, 0x99}},
		{"str low reg", func(a *Assembler) {
			a.Str(AL, Best, R2, Mem(R3, 4))
		}, []byte{0x5a, 0x60}},
		{"it eq then mov", func(a *Assembler) {
			a.It(EQ)
			a.Mov(EQ, Best, R0, Imm(1))
		}, []byte{0x08, 0xbf, 0x01, 0x20}},
		{"b.n backward", func(a *Assembler) {
			var l Label
			a.Bind(&l)
			a.Nop()
			a.B(AL, Best, &l)
		}, []byte{0x00, 0xbf, 0xfd, 0xe7}},
		{"b.w forward patched", func(a *Assembler) {
			var l Label
			a.B(AL, Best, &l)
			a.Nop()
			a.Bind(&l)
		}, []byte{0x00, 0xf0, 0x01, 0xb8, 0x00, 0xbf}},
		{"cbz forward patched", func(a *Assembler) {
			var l Label
			a.Cbz(R3, &l)
			a.Nop()
			a.Bind(&l)
		}, []byte{0x03, 0xb1, 0x00, 0xbf}},
		{"tbb", func(a *Assembler) {
			a.Tbb(PC, R2)
		}, []byte{0xdf, 0xe8, 0x02, 0xf0}},
		{"tbh", func(a *Assembler) {
			a.Tbh(PC, R4)
		}, []byte{0xdf, 0xe8, 0x14, 0xf0}},
	} {
		a := NewAssembler(T32)
		tc.emit(a)
		assert.Equal(tc.want, a.Bytes(), tc.name)
	}
}

func TestA32Encodings(t *testing.T) {
	assert := assert.New(t)

	for _, tc := range []struct {
		name string
		emit func(a *Assembler)
		want []byte
	}{
		{"nop", func(a *Assembler) { a.Nop() }, []byte{0x00, 0xf0, 0x20, 0xe3}},
		{"bkpt", func(a *Assembler) { a.Bkpt(0x1234) }, []byte{0x74, 0x23, 0x21, 0xe1}},
		{"mov imm", func(a *Assembler) {
			a.Mov(AL, Best, R0, Imm(1))
		}, []byte{0x01, 0x00, 0xa0, 0xe3}},
		{"mov rotated imm", func(a *Assembler) {
			a.Mov(AL, Best, R0, Imm(0xff00))
		}, []byte{0xff, 0x0c, 0xa0, 0xe3}},
		{"mvn imm", func(a *Assembler) {
			a.Mvn(AL, Best, R2, Imm(0xf))
		}, []byte{0x0f, 0x20, 0xe0, 0xe3}},
		{"movw", func(a *Assembler) {
			a.Movw(NE, R1, 0x2345)
		}, []byte{0x45, 0x13, 0x02, 0x13}},
		{"movt", func(a *Assembler) {
			a.Movt(NE, R1, 1)
		}, []byte{0x01, 0x10, 0x40, 0x13}},
		{"add reg", func(a *Assembler) {
			a.Add(AL, Best, R0, R1, Rm(R2))
		}, []byte{0x02, 0x00, 0x81, 0xe0}},
		{"cmp imm", func(a *Assembler) {
			a.Cmp(AL, Best, R3, Imm(5))
		}, []byte{0x05, 0x00, 0x53, 0xe3}},
		{"ldr positive offset", func(a *Assembler) {
			a.Ldr(AL, Best, R0, Mem(R1, 16))
		}, []byte{0x10, 0x00, 0x91, 0xe5}},
		{"str negative offset", func(a *Assembler) {
			a.Str(AL, Best, R0, Mem(R1, -4))
		}, []byte{0x04, 0x00, 0x01, 0xe5}},
		{"b self", func(a *Assembler) {
			var l Label
			a.Bind(&l)
			a.B(AL, Best, &l)
		}, []byte{0xfe, 0xff, 0xff, 0xea}},
		{"bl forward patched", func(a *Assembler) {
			var l Label
			a.Bl(AL, &l)
			a.Nop()
			a.Bind(&l)
		}, []byte{0x00, 0x00, 0x00, 0xeb, 0x00, 0xf0, 0x20, 0xe3}},
		{"conditional b forward", func(a *Assembler) {
			var l Label
			a.B(EQ, Best, &l)
			a.Nop()
			a.Bind(&l)
		}, []byte{0x00, 0x00, 0x00, 0x0a, 0x00, 0xf0, 0x20, 0xe3}},
	} {
		a := NewAssembler(A32)
		tc.emit(a)
		assert.Equal(tc.want, a.Bytes(), tc.name)
	}
}

func TestLiteralPlacement(t *testing.T) {
	assert := assert.New(t)

	// A32: forward literal reference patched when the pool places it.
	a := NewAssembler(A32)
	lit := NewLiteral32(0x11223344, ManuallyDeleted)
	a.LdrLiteral(AL, Best, R0, lit)
	a.Place(lit)
	assert.Equal([]byte{
		0x04, 0x00, 0x1f, 0xe5, // ldr r0, [pc, #-4]
		0x44, 0x33, 0x22, 0x11,
	}, a.Bytes())

	// T32: narrow encoding against an already placed literal.
	b := NewAssembler(T32)
	lit2 := NewLiteral32(0xcafebabe, ManuallyDeleted)
	b.Nop()
	b.Nop()
	b.Place(lit2)
	b.LdrLiteral(AL, Best, R1, lit2)
	assert.True(lit2.IsPlaced())
	assert.Equal(Offset(4), lit2.Location())

	// Placing twice is a programming error.
	assert.PanicsWithValue(ErrLiteralPlaced, func() { b.Place(lit2) })
}

func TestT32ModifiedImmediates(t *testing.T) {
	assert := assert.New(t)

	for imm, want := range map[uint32]uint32{
		0x000000ab: 0x0ab,
		0x00ff00ff: 0x1ff,
		0xff00ff00: 0x2ff,
		0xabababab: 0x3ab,
		0x000001fe: 0xfff, // 0xff ror 31
	} {
		enc, ok := encodeT32ModifiedImmediate(imm)
		assert.True(ok, "%#x", imm)
		assert.Equal(want, enc, "%#x", imm)
	}

	for _, imm := range []uint32{0x00012345, 0x00ff00fe, 0x101} {
		assert.False(isT32ModifiedImmediate(imm), "%#x", imm)
	}
}

func TestA32ModifiedImmediates(t *testing.T) {
	assert := assert.New(t)

	for imm, want := range map[uint32]uint32{
		0x000000ff: 0x0ff,
		0x0000ff00: 0xcff,
		0xff000000: 0x4ff,
		0x000003fc: 0xfff,
	} {
		enc, ok := encodeA32ModifiedImmediate(imm)
		assert.True(ok, "%#x", imm)
		assert.Equal(want, enc, "%#x", imm)
	}

	assert.False(isA32ModifiedImmediate(0x101))
	assert.False(isA32ModifiedImmediate(0x12345678))
}

func TestConditionNegate(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(NE, EQ.Negate())
	assert.Equal(EQ, NE.Negate())
	assert.Equal(LT, GE.Negate())
	assert.PanicsWithValue(ErrConditionInvalid, func() { AL.Negate() })
}

func TestT32ConditionOutsideIT(t *testing.T) {
	assert := assert.New(t)

	a := NewAssembler(T32)
	assert.PanicsWithValue(ErrOutsideITBlock, func() {
		a.Mov(EQ, Best, R0, Imm(1))
	})
}
