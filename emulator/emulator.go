// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package emulator interprets the A32 and T32 instruction subset the
// assembler produces. It exists to run generated code and observe the
// architectural state, so assembled sequences can be validated end to end
// without target hardware.
package emulator

import (
	"encoding/binary"
	"log"

	"github.com/mmc28a/vixl/aarch32"
)

const (
	MEM_SIZE  = 1 << 16 // Flat address space, code mapped at zero.
	MAX_STEPS = 1 << 20 // Default Run budget.
)

// Emulator holds the architectural state of one core.
type Emulator struct {
	Verbose bool // If set, enables verbose logging.

	ISA aarch32.InstructionSet
	R   [16]uint32 // R[15] is the PC, as the address of the current instruction.
	N   bool
	Z   bool
	C   bool
	V   bool

	Mem   []byte // Code at offset zero, stack growing down from the top.
	Steps int    // Instructions executed since New.

	// Last executed breakpoint comment; breakpoints halt execution.
	BkptImm uint32

	itCond      aarch32.Condition
	itRemaining int

	halted bool
}

// New maps code at address zero and points SP at the top of memory.
func New(isa aarch32.InstructionSet, code []byte) *Emulator {
	emu := &Emulator{
		ISA:    isa,
		Mem:    make([]byte, MEM_SIZE),
		itCond: aarch32.AL,
	}
	copy(emu.Mem, code)
	emu.R[aarch32.SP] = MEM_SIZE
	return emu
}

func (emu *Emulator) Halted() bool { return emu.halted }

// PC returns the address of the next instruction to execute.
func (emu *Emulator) PC() uint32 { return emu.R[15] }

// Run steps until a breakpoint halts execution, up to maxSteps
// instructions (MAX_STEPS when zero or negative).
func (emu *Emulator) Run(maxSteps int) (err error) {
	if maxSteps <= 0 {
		maxSteps = MAX_STEPS
	}
	for range maxSteps {
		var done bool
		done, err = emu.Step()
		if done || err != nil {
			return
		}
	}
	return ErrStepLimit
}

// Step executes one instruction. done is true once a breakpoint was hit.
func (emu *Emulator) Step() (done bool, err error) {
	pc := emu.R[15]
	defer func() {
		if err != nil {
			err = &ErrRuntime{PC: pc, Err: err}
		}
	}()

	emu.Steps++
	if emu.ISA == aarch32.T32 {
		done, err = emu.stepT32()
	} else {
		done, err = emu.stepA32()
	}
	if emu.halted {
		done = true
	}
	return
}

func (emu *Emulator) condPassed(cond aarch32.Condition) bool {
	switch cond {
	case aarch32.EQ:
		return emu.Z
	case aarch32.NE:
		return !emu.Z
	case aarch32.CS:
		return emu.C
	case aarch32.CC:
		return !emu.C
	case aarch32.MI:
		return emu.N
	case aarch32.PL:
		return !emu.N
	case aarch32.VS:
		return emu.V
	case aarch32.VC:
		return !emu.V
	case aarch32.HI:
		return emu.C && !emu.Z
	case aarch32.LS:
		return !emu.C || emu.Z
	case aarch32.GE:
		return emu.N == emu.V
	case aarch32.LT:
		return emu.N != emu.V
	case aarch32.GT:
		return !emu.Z && emu.N == emu.V
	case aarch32.LE:
		return emu.Z || emu.N != emu.V
	}
	return true
}

// reg reads a register as an instruction operand. The PC operand is the
// address of the current instruction plus the architectural offset, so it
// is computed from pc rather than the already advanced R[15].
func (emu *Emulator) reg(pc uint32, r int) uint32 {
	if r == 15 {
		if emu.ISA == aarch32.T32 {
			return pc + 4
		}
		return pc + 8
	}
	return emu.R[r]
}

func (emu *Emulator) setFlagsCmp(lhs, rhs uint32) {
	res := lhs - rhs
	emu.N = res>>31 != 0
	emu.Z = res == 0
	emu.C = lhs >= rhs
	emu.V = (lhs^rhs)&(lhs^res)>>31 != 0
}

func (emu *Emulator) load32(addr uint32) (uint32, error) {
	if addr+4 > uint32(len(emu.Mem)) {
		return 0, ErrMemRange
	}
	return binary.LittleEndian.Uint32(emu.Mem[addr:]), nil
}

func (emu *Emulator) load16(addr uint32) (uint32, error) {
	if addr+2 > uint32(len(emu.Mem)) {
		return 0, ErrMemRange
	}
	return uint32(binary.LittleEndian.Uint16(emu.Mem[addr:])), nil
}

func (emu *Emulator) load8(addr uint32) (uint32, error) {
	if addr >= uint32(len(emu.Mem)) {
		return 0, ErrMemRange
	}
	return uint32(emu.Mem[addr]), nil
}

func (emu *Emulator) store32(addr, v uint32) error {
	if addr+4 > uint32(len(emu.Mem)) {
		return ErrMemRange
	}
	binary.LittleEndian.PutUint32(emu.Mem[addr:], v)
	return nil
}

func signExtend(v uint32, bits int) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// enterIT opens a single-slot conditional block. Only the one-instruction
// mask the assembler emits is interpreted.
func (emu *Emulator) enterIT(cond aarch32.Condition, mask uint32) error {
	if mask != 0x8 {
		return ErrITMask
	}
	emu.itCond = cond
	emu.itRemaining = 1
	return nil
}

// itSkip consumes an IT slot and reports whether the current instruction
// is to be skipped.
func (emu *Emulator) itSkip() bool {
	if emu.itRemaining == 0 {
		return false
	}
	emu.itRemaining--
	passed := emu.condPassed(emu.itCond)
	if emu.itRemaining == 0 {
		emu.itCond = aarch32.AL
	}
	return !passed
}

func (emu *Emulator) stepT32() (done bool, err error) {
	pc := emu.R[15]
	hw1, err := emu.load16(pc)
	if err != nil {
		return
	}
	wide := hw1&0xf800 >= 0xe800
	size := uint32(2)
	var hw2 uint32
	if wide {
		size = 4
		hw2, err = emu.load16(pc + 2)
		if err != nil {
			return
		}
	}
	if emu.Verbose {
		log.Printf("t32 %#06x: %04x %04x", pc, hw1, hw2)
	}

	// IT prefix is never itself conditional.
	if !wide && hw1&0xff00 == 0xbf00 && hw1&0xf != 0 {
		emu.R[15] = pc + size
		return false, emu.enterIT(aarch32.Condition(hw1>>4&0xf), hw1&0xf)
	}
	if emu.itSkip() {
		emu.R[15] = pc + size
		return false, nil
	}

	emu.R[15] = pc + size
	if wide {
		err = emu.execT32Wide(pc, hw1, hw2)
	} else {
		err = emu.execT32Narrow(pc, hw1)
	}
	return false, err
}

func (emu *Emulator) execT32Narrow(pc, hw uint32) error {
	switch {
	case hw == 0xbf00: // nop
		return nil

	case hw&0xff00 == 0xbe00: // bkpt
		emu.BkptImm = hw & 0xff
		emu.halted = true
		return nil

	case hw&0xf800 == 0xe000: // b.n
		emu.R[15] = uint32(int32(pc+4) + signExtend(hw&0x7ff, 11)<<1)
		return nil

	case hw&0xf000 == 0xd000 && hw>>8&0xf < 0xe: // b<c>.n
		if emu.condPassed(aarch32.Condition(hw >> 8 & 0xf)) {
			emu.R[15] = uint32(int32(pc+4) + signExtend(hw&0xff, 8)<<1)
		}
		return nil

	case hw&0xf500 == 0xb100: // cbz/cbnz
		rn := hw & 7
		off := (hw>>9&1)<<6 | (hw>>3&0x1f)<<1
		nz := hw&0x0800 != 0
		if (emu.R[rn] != 0) == nz {
			emu.R[15] = pc + 4 + off
		}
		return nil

	case hw&0xf800 == 0x4800: // ldr.n rt, [pc, #imm8*4]
		addr := (pc+4)&^3 + hw&0xff*4
		v, err := emu.load32(addr)
		emu.R[hw>>8&7] = v
		return err

	case hw&0xf800 == 0x2000: // mov rd, #imm8
		emu.R[hw>>8&7] = hw & 0xff
		return nil

	case hw&0xf800 == 0x2800: // cmp rn, #imm8
		emu.setFlagsCmp(emu.R[hw>>8&7], hw&0xff)
		return nil

	case hw&0xff00 == 0x4600: // mov rd, rm
		rd := hw>>4&8 | hw&7
		v := emu.reg(pc, int(hw>>3&0xf))
		if rd == 15 {
			// Interworking return address; the low bit selects T32.
			emu.R[15] = v &^ 1
		} else {
			emu.R[rd] = v
		}
		return nil

	case hw&0xff00 == 0x4400: // add rdn, rm
		rd := hw>>4&8 | hw&7
		v := emu.reg(pc, int(rd)) + emu.reg(pc, int(hw>>3&0xf))
		if rd == 15 {
			emu.R[15] = v &^ 1
		} else {
			emu.R[rd] = v
		}
		return nil

	case hw&0xff00 == 0x4500: // cmp rn, rm
		rn := hw>>4&8 | hw&7
		emu.setFlagsCmp(emu.reg(pc, int(rn)), emu.reg(pc, int(hw>>3&0xf)))
		return nil

	case hw&0xffc0 == 0x4000: // and rdn, rm
		emu.R[hw&7] &= emu.R[hw>>3&7]
		return nil

	case hw&0xffc0 == 0x4040: // eor rdn, rm
		emu.R[hw&7] ^= emu.R[hw>>3&7]
		return nil

	case hw&0xffc0 == 0x4300: // orr rdn, rm
		emu.R[hw&7] |= emu.R[hw>>3&7]
		return nil

	case hw&0xffc0 == 0x43c0: // mvn rd, rm
		emu.R[hw&7] = ^emu.R[hw>>3&7]
		return nil

	case hw&0xffc0 == 0x4280: // cmp rn, rm
		emu.setFlagsCmp(emu.R[hw&7], emu.R[hw>>3&7])
		return nil

	case hw&0xf800 == 0x9800: // ldr rt, [sp, #imm8*4]
		v, err := emu.load32(emu.R[13] + hw&0xff*4)
		emu.R[hw>>8&7] = v
		return err

	case hw&0xf800 == 0x9000: // str rt, [sp, #imm8*4]
		return emu.store32(emu.R[13]+hw&0xff*4, emu.R[hw>>8&7])

	case hw&0xf800 == 0x6800: // ldr rt, [rn, #imm5*4]
		v, err := emu.load32(emu.R[hw>>3&7] + hw>>6&0x1f*4)
		emu.R[hw&7] = v
		return err

	case hw&0xf800 == 0x6000: // str rt, [rn, #imm5*4]
		return emu.store32(emu.R[hw>>3&7]+hw>>6&0x1f*4, emu.R[hw&7])
	}
	return ErrUndefined
}

// expandT32Imm reverses the i:imm3:imm8 modified immediate packing.
func expandT32Imm(enc uint32) uint32 {
	b := enc & 0xff
	switch enc >> 8 & 0xf {
	case 0:
		return b
	case 1:
		return b<<16 | b
	case 2:
		return b<<24 | b<<8
	case 3:
		return b<<24 | b<<16 | b<<8 | b
	}
	rot := enc >> 7 & 0x1f
	v := b | 0x80
	return v>>rot | v<<(32-rot)
}

func (emu *Emulator) execT32Wide(pc, hw1, hw2 uint32) error {
	switch {
	case hw1&0xf800 == 0xf000 && hw2&0x8000 != 0:
		return emu.execT32Branch(pc, hw1, hw2)

	case hw1&0xfff0 == 0xe8d0 && hw2&0xffe0 == 0xf000: // tbb/tbh
		rn, rm := hw1&0xf, hw2&0xf
		base := emu.reg(pc, int(rn))
		var entry uint32
		var err error
		if hw2&0x10 != 0 {
			entry, err = emu.load16(base + emu.R[rm]*2)
		} else {
			entry, err = emu.load8(base + emu.R[rm])
		}
		if err != nil {
			return err
		}
		emu.R[15] = pc + 4 + entry*2
		return nil

	case hw1&0xff7f == 0xf85f: // ldr.w rt, [pc, #+/-imm12]
		addr := (pc + 4) &^ 3
		if hw1&0x80 != 0 {
			addr += hw2 & 0xfff
		} else {
			addr -= hw2 & 0xfff
		}
		v, err := emu.load32(addr)
		emu.R[hw2>>12] = v
		return err

	case hw1&0xff7f == 0xe95f: // ldrd rt, rt2, [pc, #+/-imm8*4]
		addr := (pc + 4) &^ 3
		if hw1&0x80 != 0 {
			addr += hw2 & 0xff * 4
		} else {
			addr -= hw2 & 0xff * 4
		}
		lo, err := emu.load32(addr)
		if err != nil {
			return err
		}
		hi, err := emu.load32(addr + 4)
		emu.R[hw2>>12] = lo
		emu.R[hw2>>8&0xf] = hi
		return err

	case hw1&0xfff0 == 0xf8d0: // ldr.w rt, [rn, #imm12]
		v, err := emu.load32(emu.reg(pc, int(hw1&0xf)) + hw2&0xfff)
		emu.R[hw2>>12] = v
		return err

	case hw1&0xfff0 == 0xf8c0: // str.w rt, [rn, #imm12]
		return emu.store32(emu.reg(pc, int(hw1&0xf))+hw2&0xfff, emu.R[hw2>>12])

	case hw1&0xfbf0 == 0xf240: // movw
		imm := hw1&0xf<<12 | hw1>>10&1<<11 | hw2>>12&7<<8 | hw2&0xff
		emu.R[hw2>>8&0xf] = imm
		return nil

	case hw1&0xfbf0 == 0xf2c0: // movt
		imm := hw1&0xf<<12 | hw1>>10&1<<11 | hw2>>12&7<<8 | hw2&0xff
		rd := hw2 >> 8 & 0xf
		emu.R[rd] = emu.R[rd]&0xffff | imm<<16
		return nil

	case hw1&0xfe00 == 0xea00 || hw1&0xfe00 == 0xeb00: // dataproc, register
		rn := hw1 & 0xf
		rd := hw2 >> 8 & 0xf
		rm := hw2 & 0xf
		return emu.dataProcT32(pc, hw1>>4&0x1f, rn, rd, emu.reg(pc, int(rm)))

	case hw1&0xf800 == 0xf000: // dataproc, modified immediate
		enc := hw1>>10&1<<11 | hw2>>12&7<<8 | hw2&0xff
		rn := hw1 & 0xf
		rd := hw2 >> 8 & 0xf
		return emu.dataProcT32(pc, hw1>>4&0x1f, rn, rd, expandT32Imm(enc))
	}
	return ErrUndefined
}

// dataProcT32 executes the shared ALU forms. The op selector packs hw1
// bits 8:5, distinguishing the and/orr/eor/add/sub families of both the
// register and modified-immediate encodings.
func (emu *Emulator) dataProcT32(pc, op, rn, rd, val uint32) error {
	switch op >> 1 { // hw1 bits 8:5, ignoring S
	case 0b0000: // and
		emu.R[rd] = emu.reg(pc, int(rn)) & val
	case 0b0010: // orr family; rn=1111 is mov
		if rn == 0xf {
			emu.R[rd] = val
		} else {
			emu.R[rd] = emu.reg(pc, int(rn)) | val
		}
	case 0b0011: // orn family; rn=1111 is mvn
		emu.R[rd] = ^val
	case 0b0100: // eor
		emu.R[rd] = emu.reg(pc, int(rn)) ^ val
	case 0b1000: // add
		emu.R[rd] = emu.reg(pc, int(rn)) + val
	case 0b1101: // sub family; rd=1111 with S is cmp
		if rd == 0xf && op&1 != 0 {
			emu.setFlagsCmp(emu.reg(pc, int(rn)), val)
		} else {
			emu.R[rd] = emu.reg(pc, int(rn)) - val
		}
	default:
		return ErrUndefined
	}
	return nil
}

func (emu *Emulator) execT32Branch(pc, hw1, hw2 uint32) error {
	switch {
	case hw2&0xd000 == 0x8000: // b<c>.w (T3)
		cond := aarch32.Condition(hw1 >> 6 & 0xf)
		off := (hw1>>10&1)<<20 | (hw2>>11&1)<<19 | (hw2>>13&1)<<18 |
			(hw1&0x3f)<<12 | hw2&0x7ff<<1
		if emu.condPassed(cond) {
			emu.R[15] = uint32(int32(pc+4) + signExtend(off, 21))
		}
		return nil

	case hw2&0xd000 == 0x9000, hw2&0xd000 == 0xd000: // b.w (T4) / bl
		s := hw1 >> 10 & 1
		i1 := ^(hw2 >> 13 ^ s) & 1
		i2 := ^(hw2 >> 11 ^ s) & 1
		off := s<<24 | i1<<23 | i2<<22 | (hw1&0x3ff)<<12 | hw2&0x7ff<<1
		if hw2&0xd000 == 0xd000 {
			emu.R[14] = (pc + 4) | 1
		}
		emu.R[15] = uint32(int32(pc+4) + signExtend(off, 25))
		return nil
	}
	return ErrUndefined
}

func (emu *Emulator) stepA32() (done bool, err error) {
	pc := emu.R[15]
	w, err := emu.load32(pc)
	if err != nil {
		return
	}
	if emu.Verbose {
		log.Printf("a32 %#06x: %08x", pc, w)
	}
	emu.R[15] = pc + 4

	cond := aarch32.Condition(w >> 28)
	if !cond.IsAlways() && !emu.condPassed(cond) {
		return false, nil
	}
	return false, emu.execA32(pc, w)
}

func (emu *Emulator) execA32(pc, w uint32) error {
	switch {
	case w&0x0e000000 == 0x0a000000: // b / bl
		if w&0x01000000 != 0 {
			emu.R[14] = pc + 4
		}
		emu.R[15] = uint32(int32(pc+8) + signExtend(w&0xffffff, 24)<<2)
		return nil

	case w&0x0fffffff == 0x0320f000: // nop
		return nil

	case w&0x0ff000f0 == 0x01200070: // bkpt
		emu.BkptImm = w&0xfff00>>4 | w&0xf
		emu.halted = true
		return nil

	case w&0x0ff00000 == 0x03000000: // movw
		emu.R[w>>12&0xf] = w&0xf0000>>4 | w&0xfff
		return nil

	case w&0x0ff00000 == 0x03400000: // movt
		rd := w >> 12 & 0xf
		emu.R[rd] = emu.R[rd]&0xffff | (w&0xf0000>>4|w&0xfff)<<16
		return nil

	case w&0x0e1000f0 == 0x000000d0 && w&0x0c000000 == 0: // ldrd
		rn := w >> 16 & 0xf
		imm := w & 0xf00 >> 4 | w & 0xf
		addr := emu.reg(pc, int(rn))
		if w&(1<<23) != 0 {
			addr += imm
		} else {
			addr -= imm
		}
		rt := w >> 12 & 0xf
		lo, err := emu.load32(addr)
		if err != nil {
			return err
		}
		hi, err := emu.load32(addr + 4)
		emu.R[rt] = lo
		emu.R[rt+1] = hi
		return err

	case w&0x0c000000 == 0x04000000: // ldr/str/ldrb, immediate or register
		rn := w >> 16 & 0xf
		rt := w >> 12 & 0xf
		var off uint32
		if w&0x02000000 != 0 {
			off = emu.R[w&0xf] << (w >> 7 & 0x1f)
		} else {
			off = w & 0xfff
		}
		addr := emu.reg(pc, int(rn))
		if w&(1<<23) != 0 {
			addr += off
		} else {
			addr -= off
		}
		switch {
		case w&(1<<20) == 0: // str
			return emu.store32(addr, emu.R[rt])
		case w&(1<<22) != 0: // ldrb
			v, err := emu.load8(addr)
			emu.R[rt] = v
			return err
		default:
			v, err := emu.load32(addr)
			if rt == 15 {
				emu.R[15] = v &^ 3
			} else {
				emu.R[rt] = v
			}
			return err
		}

	case w&0x0e1000f0 == 0x001000b0: // ldrh, immediate
		rn := w >> 16 & 0xf
		imm := w & 0xf00 >> 4 | w & 0xf
		addr := emu.reg(pc, int(rn))
		if w&(1<<23) != 0 {
			addr += imm
		} else {
			addr -= imm
		}
		v, err := emu.load16(addr)
		emu.R[w>>12&0xf] = v
		return err

	case w&0x0c000000 == 0x00000000 || w&0x0e000000 == 0x02000000: // dataproc
		var val uint32
		if w&0x02000000 != 0 {
			rot := w >> 8 & 0xf * 2
			b := w & 0xff
			val = b>>rot | b<<(32-rot)
		} else {
			val = emu.reg(pc, int(w&0xf)) << (w >> 7 & 0x1f)
		}
		rn := w >> 16 & 0xf
		rd := w >> 12 & 0xf
		var res uint32
		switch w >> 21 & 0xf {
		case 0b0000: // and
			res = emu.reg(pc, int(rn)) & val
		case 0b0001: // eor
			res = emu.reg(pc, int(rn)) ^ val
		case 0b0010: // sub
			res = emu.reg(pc, int(rn)) - val
		case 0b0100: // add
			res = emu.reg(pc, int(rn)) + val
		case 0b1010: // cmp
			emu.setFlagsCmp(emu.reg(pc, int(rn)), val)
			return nil
		case 0b1100: // orr
			res = emu.reg(pc, int(rn)) | val
		case 0b1101: // mov
			res = val
		case 0b1111: // mvn
			res = ^val
		default:
			return ErrUndefined
		}
		if rd == 15 {
			emu.R[15] = res &^ 3
		} else {
			emu.R[rd] = res
		}
		return nil
	}
	return ErrUndefined
}
