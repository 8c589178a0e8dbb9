package aarch32

import (
	"fmt"
	"math/bits"
)

// Register is a core (R) register index.
type Register int

const (
	R0  = Register(0)
	R1  = Register(1)
	R2  = Register(2)
	R3  = Register(3)
	R4  = Register(4)
	R5  = Register(5)
	R6  = Register(6)
	R7  = Register(7)
	R8  = Register(8)
	R9  = Register(9)
	R10 = Register(10)
	R11 = Register(11)
	R12 = Register(12)
	SP  = Register(13)
	LR  = Register(14)
	PC  = Register(15)

	NoReg = Register(-1)
)

// IsValid returns true for R0..PC.
func (r Register) IsValid() bool {
	return r >= R0 && r <= PC
}

// IsLow returns true for R0..R7, the registers reachable by most narrow
// T32 encodings.
func (r Register) IsLow() bool {
	return r >= R0 && r <= R7
}

func (r Register) IsSP() bool { return r == SP }
func (r Register) IsPC() bool { return r == PC }
func (r Register) Is(other Register) bool { return r == other }

func (r Register) String() string {
	switch r {
	case SP:
		return "sp"
	case LR:
		return "lr"
	case PC:
		return "pc"
	default:
		return fmt.Sprintf("r%d", int(r))
	}
}

// RegisterList is a bitmask of core registers.
type RegisterList uint32

// MakeRegisterList builds a list from individual registers.
func MakeRegisterList(regs ...Register) (rl RegisterList) {
	for _, r := range regs {
		rl.Combine(r)
	}
	return
}

func (rl *RegisterList) Combine(r Register) {
	if r.IsValid() {
		*rl |= 1 << uint(r)
	}
}

func (rl *RegisterList) CombineList(other RegisterList) {
	*rl |= other
}

func (rl *RegisterList) Remove(r Register) {
	if r.IsValid() {
		*rl &^= 1 << uint(r)
	}
}

func (rl *RegisterList) RemoveList(other RegisterList) {
	*rl &^= other
}

func (rl RegisterList) Includes(r Register) bool {
	return r.IsValid() && (rl&(1<<uint(r))) != 0
}

func (rl RegisterList) IsEmpty() bool {
	return rl == 0
}

// First returns the lowest-numbered register in the list, or NoReg.
func (rl RegisterList) First() Register {
	if rl == 0 {
		return NoReg
	}
	return Register(bits.TrailingZeros32(uint32(rl)))
}

// VRegister is a VFP S register index.
type VRegister int

const NoVReg = VRegister(-1)

// S returns the n'th S register.
func S(n int) VRegister { return VRegister(n) }

func (v VRegister) IsValid() bool { return v >= 0 && v < 32 }

func (v VRegister) String() string {
	return fmt.Sprintf("s%d", int(v))
}

// VRegisterList is a bitmask of VFP S registers.
type VRegisterList uint64

func MakeVRegisterList(regs ...VRegister) (vl VRegisterList) {
	for _, v := range regs {
		vl.Combine(v)
	}
	return
}

func (vl *VRegisterList) Combine(v VRegister) {
	if v.IsValid() {
		*vl |= 1 << uint(v)
	}
}

func (vl *VRegisterList) CombineList(other VRegisterList) {
	*vl |= other
}

func (vl *VRegisterList) Remove(v VRegister) {
	if v.IsValid() {
		*vl &^= 1 << uint(v)
	}
}

func (vl *VRegisterList) RemoveList(other VRegisterList) {
	*vl &^= other
}

func (vl VRegisterList) Includes(v VRegister) bool {
	return v.IsValid() && (vl&(1<<uint(v))) != 0
}

func (vl VRegisterList) IsEmpty() bool { return vl == 0 }

func (vl VRegisterList) First() VRegister {
	if vl == 0 {
		return NoVReg
	}
	return VRegister(bits.TrailingZeros64(uint64(vl)))
}
