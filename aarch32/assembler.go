// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package aarch32

import (
	"github.com/mmc28a/vixl/buffer"
)

// InstructionSet selects between the two AArch32 encodings.
type InstructionSet int

//go:generate go tool stringer -linecomment -type=InstructionSet
const (
	A32 = InstructionSet(0) // a32
	T32 = InstructionSet(1) // t32
)

const (
	MAX_INSTRUCTION_SIZE    = Offset(4) // Widest single instruction, both ISAs.
	NARROW_INSTRUCTION_SIZE = Offset(2) // A 16-bit T32 instruction.
)

// Assembler is the raw one-call-per-encoding layer. It owns the code buffer
// and resolves label and literal references, but performs no reachability
// planning; that is the macro layer's job.
type Assembler struct {
	buf *buffer.CodeBuffer
	isa InstructionSet

	// IT block state: condition applied to the next itRemaining
	// instructions.
	itCond      Condition
	itRemaining int
}

// NewAssembler creates a raw assembler for the given instruction set.
func NewAssembler(isa InstructionSet) *Assembler {
	return &Assembler{
		buf:    buffer.New(),
		isa:    isa,
		itCond: AL,
	}
}

// Buffer exposes the underlying code buffer.
func (a *Assembler) Buffer() *buffer.CodeBuffer { return a.buf }

// CursorOffset returns the current emission offset.
func (a *Assembler) CursorOffset() Offset { return Offset(a.buf.CursorOffset()) }

// Bytes returns the emitted code.
func (a *Assembler) Bytes() []byte { return a.buf.Bytes() }

func (a *Assembler) InstructionSet() InstructionSet { return a.isa }
func (a *Assembler) IsT32() bool                    { return a.isa == T32 }

// ArchitectureStatePCOffset is the distance between an instruction and the
// PC value it observes.
func (a *Assembler) ArchitectureStatePCOffset() Offset {
	if a.IsT32() {
		return 4
	}
	return 8
}

func (a *Assembler) InITBlock() bool      { return a.itRemaining > 0 }
func (a *Assembler) OutsideITBlock() bool { return a.itRemaining == 0 }

func (a *Assembler) emit16(hw uint16) { a.buf.Emit16(hw) }

// emitT32 writes a 32-bit T32 encoding as two little-endian halfwords.
func (a *Assembler) emitT32(hw1, hw2 uint16) {
	a.buf.Emit16(hw1)
	a.buf.Emit16(hw2)
}

// emitA32 writes one A32 word with the condition field filled in.
func (a *Assembler) emitA32(cond Condition, w uint32) {
	if !cond.IsValid() {
		panic(ErrConditionInvalid)
	}
	a.buf.Emit32(uint32(cond)<<28 | w)
}

// advanceIT consumes one slot of an open IT block.
func (a *Assembler) advanceIT() {
	if a.itRemaining > 0 {
		a.itRemaining--
		if a.itRemaining == 0 {
			a.itCond = AL
		}
	}
}

// checkT32Cond validates the condition of a non-branch T32 instruction:
// conditions come from an enclosing IT block, never from the encoding.
func (a *Assembler) checkT32Cond(cond Condition) {
	if a.InITBlock() {
		if !cond.Is(a.itCond) && !cond.IsAlways() {
			panic(ErrConditionInvalid)
		}
	} else if !cond.IsAlways() {
		panic(ErrOutsideITBlock)
	}
}

// Bind fixes label to the current cursor and patches every forward
// reference recorded against it. Binding is irreversible.
func (a *Assembler) Bind(label *Label) {
	label.bind(a.CursorOffset())
	for _, ref := range label.takeRefs() {
		a.patchRef(&ref, label.location)
	}
}

// resolveRefsHere patches all of the label's outstanding references to the
// current cursor without binding the label. The veneer pool uses this to
// retarget short branches at a relay site.
func (a *Assembler) resolveRefsHere(label *Label) {
	here := a.CursorOffset()
	for _, ref := range label.takeRefs() {
		a.patchRef(&ref, here)
	}
}

// Place writes the literal's payload at the cursor (aligned as requested)
// and resolves every instruction that referenced it.
func (a *Assembler) Place(lit *RawLiteral) {
	if lit.IsPlaced() {
		panic(ErrLiteralPlaced)
	}
	a.buf.AlignTo(int(lit.alignment))
	a.Bind(&lit.Label)
	a.buf.EmitBytes(lit.data)
}

// It emits an IT prefix making the next instruction conditional on cond.
func (a *Assembler) It(cond Condition) {
	if !a.IsT32() {
		panic(ErrInstructionSet)
	}
	if !cond.IsValid() {
		panic(ErrConditionInvalid)
	}
	a.emit16(0xbf08 | uint16(cond)<<4)
	a.itCond = cond
	a.itRemaining = 1
}

// Nop emits a no-operation.
func (a *Assembler) Nop() {
	if a.IsT32() {
		a.emit16(0xbf00)
	} else {
		a.emitA32(AL, 0x0320f000)
	}
	a.advanceIT()
}

// Bkpt emits a breakpoint with an 8-bit (T32) or 16-bit (A32) comment.
func (a *Assembler) Bkpt(imm uint32) {
	if a.IsT32() {
		if imm > 0xff {
			panic(ErrImmediateOutOfRange)
		}
		a.emit16(0xbe00 | uint16(imm))
	} else {
		if imm > 0xffff {
			panic(ErrImmediateOutOfRange)
		}
		a.emitA32(AL, 0x01200070|(imm&0xfff0)<<4|imm&0xf)
	}
	a.advanceIT()
}

// B emits a branch to label, conditionally when cond is not AL. In T32 the
// size hint selects the 16-bit or 32-bit form; Best prefers the widest
// form for unbound labels so the reach matches the recorded checkpoint.
func (a *Assembler) B(cond Condition, size EncodingSize, label *Label) {
	loc := a.CursorOffset()

	if !a.IsT32() {
		if label.IsBound() {
			a.emitA32(cond, encBranchA32(label.Location()-(loc+8), false))
		} else {
			a.emitA32(cond, encBranchA32(0, false))
			label.AddForwardRef(loc, refA32Branch)
		}
		a.advanceIT()
		return
	}

	if label.IsBound() {
		off := label.Location() - (loc + 4)
		switch {
		case cond.IsAlways() && size != Wide && fits(off, -2048, 2046):
			a.emit16(encBT2(off))
		case cond.IsAlways():
			a.emitT32(encBT4(off, false))
		case size != Wide && fits(off, -256, 254):
			a.emit16(encBT1(cond, off))
		default:
			a.emitT32(encBT3(cond, off))
		}
		a.advanceIT()
		return
	}

	switch {
	case cond.IsAlways() && size == Narrow:
		a.emit16(encBT2(0))
		label.AddForwardRef(loc, refT32UncondNarrow)
	case cond.IsAlways():
		hw1, hw2 := encBT4(0, false)
		a.emitT32(hw1, hw2)
		label.AddForwardRef(loc, refT32UncondWide)
	case size == Narrow:
		a.emit16(encBT1(cond, 0))
		label.AddForwardRef(loc, refT32CondNarrow)
	default:
		a.emitT32(encBT3(cond, 0))
		label.AddForwardRef(loc, refT32CondWide)
	}
	a.advanceIT()
}

// Bl emits a branch-with-link. In T32 any condition must come from an IT
// block.
func (a *Assembler) Bl(cond Condition, label *Label) {
	loc := a.CursorOffset()

	if !a.IsT32() {
		if label.IsBound() {
			a.emitA32(cond, encBranchA32(label.Location()-(loc+8), true))
		} else {
			a.emitA32(cond, encBranchA32(0, true))
			label.AddForwardRef(loc, refA32Branch)
		}
		a.advanceIT()
		return
	}

	a.checkT32Cond(cond)
	if label.IsBound() {
		a.emitT32(encBT4(label.Location()-(loc+4), true))
	} else {
		hw1, hw2 := encBT4(0, true)
		a.emitT32(hw1, hw2)
		label.AddForwardRef(loc, refT32Bl)
	}
	a.advanceIT()
}

// Cbz emits a compare-and-branch-if-zero; T32 only, forward only.
func (a *Assembler) Cbz(rn Register, label *Label) {
	a.cbzCbnz(false, rn, label)
}

// Cbnz emits a compare-and-branch-if-not-zero; T32 only, forward only.
func (a *Assembler) Cbnz(rn Register, label *Label) {
	a.cbzCbnz(true, rn, label)
}

func (a *Assembler) cbzCbnz(nz bool, rn Register, label *Label) {
	if !a.IsT32() {
		panic(ErrInstructionSet)
	}
	if !rn.IsLow() {
		panic(ErrRegisterInvalid)
	}
	loc := a.CursorOffset()
	if label.IsBound() {
		a.emit16(encCbz(nz, rn, label.Location()-(loc+4)))
	} else {
		a.emit16(encCbz(nz, rn, 0))
		label.AddForwardRef(loc, refT32Cbz)
	}
	a.advanceIT()
}

// Mov emits a register or immediate move without setting flags (except for
// the T32 narrow immediate form, which is flag-setting outside an IT
// block).
func (a *Assembler) Mov(cond Condition, size EncodingSize, rd Register, op Operand) {
	if a.IsT32() {
		a.checkT32Cond(cond)
		if op.IsPlainRegister() {
			rm := op.BaseRegister()
			if size != Wide {
				// MOV (register) T1: any registers, no flags.
				a.emit16(0x4600 | uint16(rd&8)<<4 | uint16(rm)<<3 | uint16(rd&7))
				a.advanceIT()
				return
			}
			// MOV (register) T3.
			a.emitT32(0xea4f, 0x0000|uint16(rd)<<8|uint16(rm))
			a.advanceIT()
			return
		}
		imm := op.Immediate()
		if size != Wide && rd.IsLow() && imm <= 0xff {
			// MOV (immediate) T1.
			a.emit16(0x2000 | uint16(rd)<<8 | uint16(imm))
			a.advanceIT()
			return
		}
		enc, ok := encodeT32ModifiedImmediate(imm)
		if !ok {
			panic(ErrImmediateOutOfRange)
		}
		a.emitT32(splitT32Imm(0xf04f, 0, enc, rd))
		a.advanceIT()
		return
	}

	if op.IsPlainRegister() {
		a.emitA32(cond, 0x01a00000|uint32(rd)<<12|uint32(op.BaseRegister()))
	} else {
		imm12, ok := encodeA32ModifiedImmediate(op.Immediate())
		if !ok {
			panic(ErrImmediateOutOfRange)
		}
		a.emitA32(cond, 0x03a00000|uint32(rd)<<12|imm12)
	}
	a.advanceIT()
}

// Mvn emits a bitwise-NOT move.
func (a *Assembler) Mvn(cond Condition, size EncodingSize, rd Register, op Operand) {
	if a.IsT32() {
		a.checkT32Cond(cond)
		if op.IsPlainRegister() {
			rm := op.BaseRegister()
			if size != Wide && rd.IsLow() && rm.IsLow() {
				a.emit16(0x43c0 | uint16(rm)<<3 | uint16(rd))
				a.advanceIT()
				return
			}
			a.emitT32(0xea6f, 0x0000|uint16(rd)<<8|uint16(rm))
			a.advanceIT()
			return
		}
		enc, ok := encodeT32ModifiedImmediate(op.Immediate())
		if !ok {
			panic(ErrImmediateOutOfRange)
		}
		a.emitT32(splitT32Imm(0xf06f, 0, enc, rd))
		a.advanceIT()
		return
	}

	if op.IsPlainRegister() {
		a.emitA32(cond, 0x01e00000|uint32(rd)<<12|uint32(op.BaseRegister()))
	} else {
		imm12, ok := encodeA32ModifiedImmediate(op.Immediate())
		if !ok {
			panic(ErrImmediateOutOfRange)
		}
		a.emitA32(cond, 0x03e00000|uint32(rd)<<12|imm12)
	}
	a.advanceIT()
}

// Movw loads a 16-bit immediate, zero-extended.
func (a *Assembler) Movw(cond Condition, rd Register, imm uint32) {
	if imm > 0xffff {
		panic(ErrImmediateOutOfRange)
	}
	if a.IsT32() {
		a.checkT32Cond(cond)
		hw1 := 0xf240 | uint16(imm>>1)&0x400 | uint16(imm>>12)&0xf
		hw2 := uint16(imm<<4)&0x7000 | uint16(rd)<<8 | uint16(imm)&0xff
		a.emitT32(hw1, hw2)
	} else {
		a.emitA32(cond, 0x03000000|(imm&0xf000)<<4|uint32(rd)<<12|imm&0xfff)
	}
	a.advanceIT()
}

// Movt loads a 16-bit immediate into the top half, keeping the bottom.
func (a *Assembler) Movt(cond Condition, rd Register, imm uint32) {
	if imm > 0xffff {
		panic(ErrImmediateOutOfRange)
	}
	if a.IsT32() {
		a.checkT32Cond(cond)
		hw1 := 0xf2c0 | uint16(imm>>1)&0x400 | uint16(imm>>12)&0xf
		hw2 := uint16(imm<<4)&0x7000 | uint16(rd)<<8 | uint16(imm)&0xff
		a.emitT32(hw1, hw2)
	} else {
		a.emitA32(cond, 0x03400000|(imm&0xf000)<<4|uint32(rd)<<12|imm&0xfff)
	}
	a.advanceIT()
}

// dataProcT32 holds the opcode fields of a T32 three-operand ALU form.
type dataProcT32 struct {
	immBase uint16 // hw1 base of the modified-immediate form
	regBase uint16 // hw1 base of the register form
	narrow  uint16 // 16-bit two-register form, 0 if none
}

// dataProcA32 holds the opcode fields of an A32 three-operand ALU form.
type dataProcA32 struct {
	immBase uint32
	regBase uint32
}

var (
	dpAddT32 = dataProcT32{immBase: 0xf100, regBase: 0xeb00}
	dpSubT32 = dataProcT32{immBase: 0xf1a0, regBase: 0xeba0}
	dpAndT32 = dataProcT32{immBase: 0xf000, regBase: 0xea00, narrow: 0x4000}
	dpOrrT32 = dataProcT32{immBase: 0xf040, regBase: 0xea40, narrow: 0x4300}
	dpEorT32 = dataProcT32{immBase: 0xf080, regBase: 0xea80, narrow: 0x4040}

	dpAddA32 = dataProcA32{immBase: 0x02800000, regBase: 0x00800000}
	dpSubA32 = dataProcA32{immBase: 0x02400000, regBase: 0x00400000}
	dpAndA32 = dataProcA32{immBase: 0x02000000, regBase: 0x00000000}
	dpOrrA32 = dataProcA32{immBase: 0x03800000, regBase: 0x01800000}
	dpEorA32 = dataProcA32{immBase: 0x02200000, regBase: 0x00200000}
)

func (a *Assembler) dataProc(cond Condition, size EncodingSize, t32 dataProcT32, a32 dataProcA32, rd, rn Register, op Operand) {
	if a.IsT32() {
		a.checkT32Cond(cond)
		if op.IsPlainRegister() {
			rm := op.BaseRegister()
			if t32.narrow != 0 && size != Wide && rd.Is(rn) && rd.IsLow() && rm.IsLow() {
				a.emit16(t32.narrow | uint16(rm)<<3 | uint16(rd))
				a.advanceIT()
				return
			}
			a.emitT32(t32.regBase|uint16(rn), uint16(rd)<<8|uint16(rm))
			a.advanceIT()
			return
		}
		enc, ok := encodeT32ModifiedImmediate(op.Immediate())
		if !ok {
			panic(ErrImmediateOutOfRange)
		}
		a.emitT32(splitT32Imm(t32.immBase, rn, enc, rd))
		a.advanceIT()
		return
	}

	if op.IsPlainRegister() {
		a.emitA32(cond, a32.regBase|uint32(rn)<<16|uint32(rd)<<12|uint32(op.BaseRegister()))
	} else {
		imm12, ok := encodeA32ModifiedImmediate(op.Immediate())
		if !ok {
			panic(ErrImmediateOutOfRange)
		}
		a.emitA32(cond, a32.immBase|uint32(rn)<<16|uint32(rd)<<12|imm12)
	}
	a.advanceIT()
}

// Add emits rd = rn + operand.
func (a *Assembler) Add(cond Condition, size EncodingSize, rd, rn Register, op Operand) {
	if a.IsT32() && op.IsPlainRegister() && size != Wide && rd.Is(rn) && !rd.IsPC() {
		// ADD (register) T2: any registers, no flags.
		a.checkT32Cond(cond)
		rm := op.BaseRegister()
		a.emit16(0x4400 | uint16(rd&8)<<4 | uint16(rm)<<3 | uint16(rd&7))
		a.advanceIT()
		return
	}
	a.dataProc(cond, size, dpAddT32, dpAddA32, rd, rn, op)
}

// Sub emits rd = rn - operand.
func (a *Assembler) Sub(cond Condition, size EncodingSize, rd, rn Register, op Operand) {
	a.dataProc(cond, size, dpSubT32, dpSubA32, rd, rn, op)
}

// And emits rd = rn & operand.
func (a *Assembler) And(cond Condition, size EncodingSize, rd, rn Register, op Operand) {
	a.dataProc(cond, size, dpAndT32, dpAndA32, rd, rn, op)
}

// Orr emits rd = rn | operand.
func (a *Assembler) Orr(cond Condition, size EncodingSize, rd, rn Register, op Operand) {
	a.dataProc(cond, size, dpOrrT32, dpOrrA32, rd, rn, op)
}

// Eor emits rd = rn ^ operand.
func (a *Assembler) Eor(cond Condition, size EncodingSize, rd, rn Register, op Operand) {
	a.dataProc(cond, size, dpEorT32, dpEorA32, rd, rn, op)
}

// Cmp compares and sets NZCV.
func (a *Assembler) Cmp(cond Condition, size EncodingSize, rn Register, op Operand) {
	if a.IsT32() {
		a.checkT32Cond(cond)
		if op.IsPlainRegister() {
			rm := op.BaseRegister()
			if size != Wide && rn.IsLow() && rm.IsLow() {
				a.emit16(0x4280 | uint16(rm)<<3 | uint16(rn))
			} else {
				// CMP (register) T2.
				a.emit16(0x4500 | uint16(rn&8)<<4 | uint16(rm)<<3 | uint16(rn&7))
			}
			a.advanceIT()
			return
		}
		imm := op.Immediate()
		if size != Wide && rn.IsLow() && imm <= 0xff {
			a.emit16(0x2800 | uint16(rn)<<8 | uint16(imm))
			a.advanceIT()
			return
		}
		enc, ok := encodeT32ModifiedImmediate(imm)
		if !ok {
			panic(ErrImmediateOutOfRange)
		}
		// CMP (immediate) T2: rd field holds 1111, S is set.
		a.emitT32(splitT32Imm(0xf1b0, rn, enc, Register(0xf)))
		a.advanceIT()
		return
	}

	if op.IsPlainRegister() {
		a.emitA32(cond, 0x01500000|uint32(rn)<<16|uint32(op.BaseRegister()))
	} else {
		imm12, ok := encodeA32ModifiedImmediate(op.Immediate())
		if !ok {
			panic(ErrImmediateOutOfRange)
		}
		a.emitA32(cond, 0x03500000|uint32(rn)<<16|imm12)
	}
	a.advanceIT()
}

// Ldr emits a load from [base, #offset]. Negative offsets are A32 only.
func (a *Assembler) Ldr(cond Condition, size EncodingSize, rt Register, mem MemOperand) {
	a.loadStore(cond, size, true, rt, mem)
}

// Str emits a store to [base, #offset]. Negative offsets are A32 only.
func (a *Assembler) Str(cond Condition, size EncodingSize, rt Register, mem MemOperand) {
	a.loadStore(cond, size, false, rt, mem)
}

func (a *Assembler) loadStore(cond Condition, size EncodingSize, load bool, rt Register, mem MemOperand) {
	rn, off := mem.Base(), mem.Offset()

	if a.IsT32() {
		a.checkT32Cond(cond)
		if off < 0 {
			panic(ErrImmediateOutOfRange)
		}
		switch {
		case size != Wide && rn.IsSP() && rt.IsLow() && off <= 1020 && off%4 == 0:
			base := uint16(0x9000)
			if load {
				base = 0x9800
			}
			a.emit16(base | uint16(rt)<<8 | uint16(off/4))
		case size != Wide && rn.IsLow() && rt.IsLow() && off <= 124 && off%4 == 0:
			base := uint16(0x6000)
			if load {
				base = 0x6800
			}
			a.emit16(base | uint16(off/4)<<6 | uint16(rn)<<3 | uint16(rt))
		case off <= 4095:
			base := uint16(0xf8c0)
			if load {
				base = 0xf8d0
			}
			a.emitT32(base|uint16(rn), uint16(rt)<<12|uint16(off))
		default:
			panic(ErrImmediateOutOfRange)
		}
		a.advanceIT()
		return
	}

	u := uint32(1)
	if off < 0 {
		u, off = 0, -off
	}
	if off > 4095 {
		panic(ErrImmediateOutOfRange)
	}
	base := uint32(0x05000000)
	if load {
		base = 0x05100000
	}
	a.emitA32(cond, base|u<<23|uint32(rn)<<16|uint32(rt)<<12|uint32(off))
	a.advanceIT()
}

// LdrLiteral emits a PC-relative load of a pooled constant. For unplaced
// literals a forward reference is recorded; the Best size prefers the
// narrow form when the target register allows it.
func (a *Assembler) LdrLiteral(cond Condition, size EncodingSize, rt Register, lit *RawLiteral) {
	loc := a.CursorOffset()

	if a.IsT32() {
		a.checkT32Cond(cond)
		if lit.IsPlaced() {
			pc := alignDown(loc+4, 4)
			off := lit.Location() - pc
			if size != Wide && rt.IsLow() && off >= 0 && off <= 1020 && off%4 == 0 {
				a.emit16(0x4800 | uint16(rt)<<8 | uint16(off/4))
			} else if fits(off, -4095, 4095) {
				a.emitT32(encLdrLitT2(rt, off))
			} else {
				panic(ErrTargetOutOfRange)
			}
			a.advanceIT()
			return
		}
		if size != Wide && rt.IsLow() {
			a.emit16(0x4800 | uint16(rt)<<8)
			lit.AddForwardRef(loc, refT32LdrLitNarrow)
			lit.lastInsertDistance = refT32LdrLitNarrow.maxForwardDistance()
		} else {
			a.emitT32(encLdrLitT2(rt, 0))
			lit.AddForwardRef(loc, refT32LdrLitWide)
			lit.lastInsertDistance = refT32LdrLitWide.maxForwardDistance()
		}
		a.advanceIT()
		return
	}

	if lit.IsPlaced() {
		off := lit.Location() - (loc + 8)
		a.emitA32(cond, encLdrLitA32(rt, off))
	} else {
		a.emitA32(cond, encLdrLitA32(rt, 0))
		lit.AddForwardRef(loc, refA32LdrLit)
		lit.lastInsertDistance = refA32LdrLit.maxForwardDistance()
	}
	a.advanceIT()
}

// LdrdLiteral emits a PC-relative load of a 64-bit pooled constant into a
// register pair.
func (a *Assembler) LdrdLiteral(cond Condition, rt, rt2 Register, lit *RawLiteral) {
	loc := a.CursorOffset()

	if a.IsT32() {
		a.checkT32Cond(cond)
		if lit.IsPlaced() {
			pc := alignDown(loc+4, 4)
			a.emitT32(encLdrdLitT32(rt, rt2, lit.Location()-pc))
		} else {
			a.emitT32(encLdrdLitT32(rt, rt2, 0))
			lit.AddForwardRef(loc, refT32LdrdLit)
			lit.lastInsertDistance = refT32LdrdLit.maxForwardDistance()
		}
		a.advanceIT()
		return
	}

	if rt2 != rt+1 || rt&1 != 0 {
		panic(ErrRegisterInvalid)
	}
	if lit.IsPlaced() {
		a.emitA32(cond, encLdrdLitA32(rt, lit.Location()-(loc+8)))
	} else {
		a.emitA32(cond, encLdrdLitA32(rt, 0))
		lit.AddForwardRef(loc, refA32LdrdLit)
		lit.lastInsertDistance = refA32LdrdLit.maxForwardDistance()
	}
	a.advanceIT()
}

// Tbb emits a table-branch-byte dispatch; T32 only.
func (a *Assembler) Tbb(rn, rm Register) {
	if !a.IsT32() {
		panic(ErrInstructionSet)
	}
	a.emitT32(0xe8d0|uint16(rn), 0xf000|uint16(rm))
	a.advanceIT()
}

// Tbh emits a table-branch-halfword dispatch; T32 only.
func (a *Assembler) Tbh(rn, rm Register) {
	if !a.IsT32() {
		panic(ErrInstructionSet)
	}
	a.emitT32(0xe8d0|uint16(rn), 0xf010|uint16(rm))
	a.advanceIT()
}
