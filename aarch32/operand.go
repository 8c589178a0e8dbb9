package aarch32

import (
	"fmt"
	"math/bits"
)

// EncodingSize is a hint for the T32 encoding selection. A32 ignores it.
type EncodingSize int

//go:generate go tool stringer -linecomment -type=EncodingSize
const (
	Best   = EncodingSize(0) // best
	Narrow = EncodingSize(1) // narrow
	Wide   = EncodingSize(2) // wide
)

// Operand is either an immediate or a plain register.
type Operand struct {
	imm   uint32
	reg   Register
	isImm bool
}

// Imm builds an immediate operand.
func Imm(imm uint32) Operand {
	return Operand{imm: imm, reg: NoReg, isImm: true}
}

// Rm builds a plain register operand.
func Rm(reg Register) Operand {
	return Operand{reg: reg}
}

func (op Operand) IsImmediate() bool     { return op.isImm }
func (op Operand) IsPlainRegister() bool { return !op.isImm }

// Immediate returns the immediate payload.
func (op Operand) Immediate() uint32 {
	if !op.isImm {
		panic(ErrOperandInvalid)
	}
	return op.imm
}

// BaseRegister returns the register payload.
func (op Operand) BaseRegister() Register {
	if op.isImm {
		panic(ErrOperandInvalid)
	}
	return op.reg
}

func (op Operand) String() string {
	if op.isImm {
		return fmt.Sprintf("#%#x", op.imm)
	}
	return op.reg.String()
}

// MemOperand is a base register plus byte offset addressing mode.
type MemOperand struct {
	base   Register
	offset int32
}

// Mem builds a [base, #offset] memory operand.
func Mem(base Register, offset int32) MemOperand {
	return MemOperand{base: base, offset: offset}
}

func (m MemOperand) Base() Register { return m.base }
func (m MemOperand) Offset() int32  { return m.offset }

func (m MemOperand) String() string {
	return fmt.Sprintf("[%v, #%d]", m.base, m.offset)
}

// isA32ModifiedImmediate reports whether imm can be encoded as an 8-bit
// value rotated right by an even amount.
func isA32ModifiedImmediate(imm uint32) bool {
	for rot := 0; rot < 32; rot += 2 {
		if bits.RotateLeft32(imm, rot)&^0xff == 0 {
			return true
		}
	}
	return false
}

// encodeA32ModifiedImmediate returns the imm12 field for a representable
// immediate, or ok=false.
func encodeA32ModifiedImmediate(imm uint32) (imm12 uint32, ok bool) {
	for rot := 0; rot < 32; rot += 2 {
		if v := bits.RotateLeft32(imm, rot); v&^0xff == 0 {
			return uint32(rot/2)<<8 | v, true
		}
	}
	return 0, false
}

// isT32ModifiedImmediate reports whether imm fits the T32 modified
// immediate scheme: a byte splatted as 00XY00XY, XY00XY00 or XYXYXYXY,
// or an 8-bit value with its top bit set, rotated into place.
func isT32ModifiedImmediate(imm uint32) bool {
	_, ok := encodeT32ModifiedImmediate(imm)
	return ok
}

// encodeT32ModifiedImmediate returns the i:imm3:imm8 fields packed as
// i<<11 | imm3<<8 | imm8, or ok=false.
func encodeT32ModifiedImmediate(imm uint32) (enc uint32, ok bool) {
	b := imm & 0xff
	hb := imm >> 8 & 0xff
	switch {
	case imm&^0xff == 0:
		return imm, true
	case imm == b<<16|b:
		return 1<<8 | b, true
	case imm == hb<<24|hb<<8:
		return 2<<8 | hb, true
	case imm == b<<24|b<<16|b<<8|b:
		return 3<<8 | b, true
	}
	// Rotated form: 1bcdefgh rotated right by 8..31.
	lead := bits.LeadingZeros32(imm)
	if lead > 23 {
		return 0, false
	}
	rot := uint32(lead + 8) // rotation that brings the leading 1 to bit 7
	v := bits.RotateLeft32(imm, int(rot))
	if v&^0xff != 0 {
		return 0, false
	}
	return (rot&0x10)<<7 | (rot&0xe)<<7 | (rot&1)<<7 | v&0x7f, true
}
