// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmc28a/vixl/aarch32"
)

// run assembles build for isa, appends a halting breakpoint, and executes
// the result to completion.
func run(t *testing.T, isa aarch32.InstructionSet, build func(m *aarch32.MacroAssembler)) *Emulator {
	t.Helper()

	m := aarch32.NewMacroAssembler(isa)
	build(m)
	m.Bkpt(0)
	emu := New(isa, m.FinalizeCode())
	assert.NoError(t, emu.Run(0))
	assert.True(t, emu.Halted())
	return emu
}

var bothSets = []aarch32.InstructionSet{aarch32.T32, aarch32.A32}

func TestSumLoop(t *testing.T) {
	build := func(m *aarch32.MacroAssembler) {
		var loop aarch32.Label
		m.Mov(aarch32.AL, aarch32.R0, aarch32.Imm(0))
		m.Mov(aarch32.AL, aarch32.R1, aarch32.Imm(10))
		m.Bind(&loop)
		m.Add(aarch32.AL, aarch32.R0, aarch32.R0, aarch32.Rm(aarch32.R1))
		m.Sub(aarch32.AL, aarch32.R1, aarch32.R1, aarch32.Imm(1))
		m.Cmp(aarch32.AL, aarch32.R1, aarch32.Imm(0))
		m.B(aarch32.NE, &loop)
	}

	for _, isa := range bothSets {
		emu := run(t, isa, build)
		assert.Equal(t, uint32(55), emu.R[0], isa.String())
		assert.Equal(t, uint32(0), emu.R[1], isa.String())
	}
}

func TestConditionalExecution(t *testing.T) {
	build := func(m *aarch32.MacroAssembler) {
		m.Mov(aarch32.AL, aarch32.R0, aarch32.Imm(5))
		m.Cmp(aarch32.AL, aarch32.R0, aarch32.Imm(5))
		// Narrow forms condition through an IT prefix on T32.
		m.Mov(aarch32.EQ, aarch32.R1, aarch32.Imm(1))
		m.Mov(aarch32.NE, aarch32.R2, aarch32.Imm(2))
		// Synthesized sequences branch over themselves instead.
		m.Mov(aarch32.EQ, aarch32.R3, aarch32.Imm(0x12345))
		m.Mov(aarch32.NE, aarch32.R4, aarch32.Imm(0x54321))
	}

	for _, isa := range bothSets {
		emu := run(t, isa, build)
		assert.Equal(t, uint32(1), emu.R[1], isa.String())
		assert.Equal(t, uint32(0), emu.R[2], isa.String())
		assert.Equal(t, uint32(0x12345), emu.R[3], isa.String())
		assert.Equal(t, uint32(0), emu.R[4], isa.String())
	}
}

func TestLiteralRoundTrip(t *testing.T) {
	build := func(m *aarch32.MacroAssembler) {
		m.Ldr32(aarch32.AL, aarch32.R0, 0xdeadbeef)
		m.Ldr32(aarch32.AL, aarch32.R1, 0x01020304)
	}

	for _, isa := range bothSets {
		emu := run(t, isa, build)
		assert.Equal(t, uint32(0xdeadbeef), emu.R[0], isa.String())
		assert.Equal(t, uint32(0x01020304), emu.R[1], isa.String())
	}
}

func TestLdrdLiteralRoundTrip(t *testing.T) {
	build := func(m *aarch32.MacroAssembler) {
		m.Ldrd64(aarch32.AL, aarch32.R2, aarch32.R3, 0x1122334455667788)
	}

	for _, isa := range bothSets {
		emu := run(t, isa, build)
		assert.Equal(t, uint32(0x55667788), emu.R[2], isa.String())
		assert.Equal(t, uint32(0x11223344), emu.R[3], isa.String())
	}
}

func TestLiteralPoolFlushMidStream(t *testing.T) {
	// Enough loads that the pool has to be emitted, branched over, several
	// times mid-stream. Summing every loaded value checks each load against
	// whichever pool emission its literal landed in.
	const loads = 1000
	build := func(m *aarch32.MacroAssembler) {
		for n := range loads {
			m.Ldr32(aarch32.AL, aarch32.R0, 0x1000+uint32(n))
			m.Add(aarch32.AL, aarch32.R1, aarch32.R1, aarch32.Rm(aarch32.R0))
		}
	}

	var want uint32
	for n := range loads {
		want += 0x1000 + uint32(n)
	}

	for _, isa := range bothSets {
		emu := run(t, isa, build)
		assert.Equal(t, uint32(0x1000+loads-1), emu.R[0], isa.String())
		assert.Equal(t, want, emu.R[1], isa.String())
	}
}

func TestPCRelativeOperand(t *testing.T) {
	// The PC operand observes the current instruction address plus the
	// architectural offset, 8 on A32 and 4 on T32, not the address of the
	// following instruction.
	build := func(m *aarch32.MacroAssembler) {
		m.Add(aarch32.AL, aarch32.R1, aarch32.PC, aarch32.Imm(0))
	}

	emu := run(t, aarch32.A32, build)
	assert.Equal(t, uint32(8), emu.R[1])

	emu = run(t, aarch32.T32, build)
	assert.Equal(t, uint32(4), emu.R[1])
}

func TestVeneerExecution(t *testing.T) {
	build := func(taken bool) func(m *aarch32.MacroAssembler) {
		return func(m *aarch32.MacroAssembler) {
			var target aarch32.Label
			seed := uint32(1)
			if taken {
				seed = 0
			}
			m.Mov(aarch32.AL, aarch32.R0, aarch32.Imm(seed))
			m.Cbz(aarch32.R0, &target)
			for range 200 {
				m.Add(aarch32.AL, aarch32.R2, aarch32.R2, aarch32.Imm(1))
			}
			m.Bind(&target)
			m.Mov(aarch32.AL, aarch32.R1, aarch32.Imm(7))
		}
	}

	// Taken: the short branch dispatches through its veneer to the target.
	emu := run(t, aarch32.T32, build(true))
	assert.Equal(t, uint32(7), emu.R[1])
	assert.Equal(t, uint32(0), emu.R[2])

	// Not taken: fall through the whole run, skipping the serviced pool.
	emu = run(t, aarch32.T32, build(false))
	assert.Equal(t, uint32(7), emu.R[1])
	assert.Equal(t, uint32(200), emu.R[2])
}

func TestSwitchDispatch(t *testing.T) {
	build := func(index uint32, entrySize int) func(m *aarch32.MacroAssembler) {
		return func(m *aarch32.MacroAssembler) {
			var table *aarch32.JumpTable
			if entrySize == 1 {
				table = aarch32.NewJumpTable8(5)
			} else {
				table = aarch32.NewJumpTable16(5)
			}
			m.Mov(aarch32.AL, aarch32.R0, aarch32.Imm(index))
			m.Switch(aarch32.R0, table)
			for _, n := range []int{0, 1, 2, 4} {
				m.Case(table, n)
				m.Mov(aarch32.AL, aarch32.R1, aarch32.Imm(uint32(10+n)))
				m.Break(table)
			}
			m.Default(table)
			m.Mov(aarch32.AL, aarch32.R1, aarch32.Imm(99))
			m.EndSwitch(table)
		}
	}

	for _, isa := range bothSets {
		for _, entrySize := range []int{1, 2} {
			for index, want := range map[uint32]uint32{
				0: 10,
				1: 11,
				2: 12,
				3: 99, // never linked, falls back to the default
				4: 14,
				7: 99, // out of range
			} {
				emu := run(t, isa, build(index, entrySize))
				assert.Equal(t, want, emu.R[1],
					"%v entry size %d index %d", isa, entrySize, index)
			}
		}
	}
}

func TestStackRoundTrip(t *testing.T) {
	build := func(m *aarch32.MacroAssembler) {
		m.Mov(aarch32.AL, aarch32.R0, aarch32.Imm(0xab))
		m.Claim(16)
		m.Poke(aarch32.R0, 8)
		m.Peek(aarch32.R1, 8)
		m.Drop(16)
	}

	for _, isa := range bothSets {
		emu := run(t, isa, build)
		assert.Equal(t, uint32(0xab), emu.R[1], isa.String())
		assert.Equal(t, uint32(MEM_SIZE), emu.R[aarch32.SP], isa.String())
	}
}

func TestCallAndReturn(t *testing.T) {
	// bl records the return address; the callee returns by moving the link
	// register into the PC.
	build := func(m *aarch32.MacroAssembler) {
		var fn, over aarch32.Label
		m.Mov(aarch32.AL, aarch32.R0, aarch32.Imm(1))
		m.Bl(aarch32.AL, &fn)
		m.Mov(aarch32.AL, aarch32.R2, aarch32.Imm(3))
		m.B(aarch32.AL, &over)
		m.Bind(&fn)
		m.Mov(aarch32.AL, aarch32.R1, aarch32.Imm(2))
		m.Mov(aarch32.AL, aarch32.PC, aarch32.Rm(aarch32.LR))
		m.Bind(&over)
	}

	for _, isa := range bothSets {
		emu := run(t, isa, build)
		assert.Equal(t, uint32(1), emu.R[0], isa.String())
		assert.Equal(t, uint32(2), emu.R[1], isa.String())
		assert.Equal(t, uint32(3), emu.R[2], isa.String())
	}
}

func TestRuntimeErrorWrapsPC(t *testing.T) {
	assert := assert.New(t)

	// Zeroed memory is not a valid T32 instruction.
	emu := New(aarch32.T32, nil)
	_, err := emu.Step()
	assert.ErrorIs(err, ErrUndefined)

	var rt *ErrRuntime
	assert.ErrorAs(err, &rt)
	assert.Equal(uint32(0), rt.PC)
}

func TestStepLimit(t *testing.T) {
	assert := assert.New(t)

	m := aarch32.NewMacroAssembler(aarch32.A32)
	var loop aarch32.Label
	m.Bind(&loop)
	m.B(aarch32.AL, &loop)
	emu := New(aarch32.A32, m.FinalizeCode())
	assert.ErrorIs(emu.Run(100), ErrStepLimit)
}
