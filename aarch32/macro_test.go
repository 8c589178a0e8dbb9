// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package aarch32

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMacroConditionalMovT32(t *testing.T) {
	assert := assert.New(t)

	// Narrow conditional form: an IT prefix is enough.
	m := NewMacroAssembler(T32)
	m.Mov(EQ, R0, Imm(1))
	assert.Equal([]byte{0x08, 0xbf, 0x01, 0x20}, m.FinalizeCode())

	// No conditional form fits: branch over the synthesized sequence on
	// the inverted condition.
	m = NewMacroAssembler(T32)
	m.Mov(EQ, R0, Imm(0x12345))
	assert.Equal([]byte{
		0x03, 0xd1, // bne.n past the pair
		0x42, 0xf2, 0x45, 0x30, // movw r0, #0x2345
		0xc0, 0xf2, 0x01, 0x00, // movt r0, #1
	}, m.FinalizeCode())
}

func TestMacroMaterializeA32(t *testing.T) {
	assert := assert.New(t)

	// A32 keeps the condition on each synthesized instruction.
	m := NewMacroAssembler(A32)
	m.Mov(NE, R1, Imm(0x12345))
	assert.Equal([]byte{
		0x45, 0x13, 0x02, 0x13, // movwne r1, #0x2345
		0x01, 0x10, 0x40, 0x13, // movtne r1, #1
	}, m.FinalizeCode())

	// An immediate whose complement is encodable becomes mvn.
	m = NewMacroAssembler(A32)
	m.Mov(AL, R0, Imm(0xfffffffe))
	assert.Equal([]byte{0x01, 0x00, 0xe0, 0xe3}, m.FinalizeCode())
}

func TestMacroAluImmediateSynthesis(t *testing.T) {
	assert := assert.New(t)

	// Unencodable ALU immediates go through the scratch register.
	m := NewMacroAssembler(A32)
	m.Add(AL, R0, R1, Imm(0x12345))
	assert.Equal([]byte{
		0x45, 0xc3, 0x02, 0xe3, // movw r12, #0x2345
		0x01, 0xc0, 0x40, 0xe3, // movt r12, #1
		0x0c, 0x00, 0x81, 0xe0, // add r0, r1, r12
	}, m.FinalizeCode())
}

func TestLiteralPoolFinalize(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(T32)
	m.Ldr32(AL, R0, 0xcafebabe)
	code := m.FinalizeCode()
	assert.Equal([]byte{
		0x00, 0x48, // ldr.n r0, [pc, #0]
		0x00, 0x00, // alignment padding
		0xbe, 0xba, 0xfe, 0xca,
	}, code)
	assert.Equal(Offset(0), m.LiteralPoolSize())
}

func TestLiteralPoolAutoFlush(t *testing.T) {
	assert := assert.New(t)

	// Narrow PC-relative loads reach only 1KB ahead; a long run of them
	// must force intermediate pool emissions.
	const loads = 1000
	m := NewMacroAssembler(T32)
	for n := range loads {
		m.Ldr32(AL, R0, uint32(n))
	}
	sizeBefore := m.CursorOffset()
	code := m.FinalizeCode()

	// All loads (2 bytes each) plus all literals (4 bytes each) plus at
	// least one branch around an intermediate pool.
	assert.Greater(len(code), loads*2+loads*4)
	assert.Greater(sizeBefore, Offset(loads*2))
	assert.Equal(Offset(0), m.LiteralPoolSize())
}

func TestLiteralCheckpointReset(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(T32)
	m.Ldr32(AL, R0, 123)
	assert.Less(m.Checkpoint(), OFFSET_MAX)

	m.EmitLiteralPool()
	assert.Equal(OFFSET_MAX, m.Checkpoint())
	assert.Equal(Offset(0), m.LiteralPoolSize())

	// A fresh literal starts a fresh deadline.
	m.Ldr32(AL, R1, 456)
	assert.Less(m.Checkpoint(), OFFSET_MAX)
	m.FinalizeCode()
}

func TestVeneerServicing(t *testing.T) {
	assert := assert.New(t)

	// cbz reaches 126 bytes; the nop run forces a veneer before expiry.
	m := NewMacroAssembler(T32)
	var target Label
	m.Cbz(R0, &target)
	assert.False(m.VeneerPoolIsEmpty())
	for range 200 {
		m.Nop()
	}
	m.Bind(&target)
	assert.True(m.VeneerPoolIsEmpty())
	m.Bkpt(0)
	code := m.FinalizeCode()

	// cbz + 200 nops + bkpt, plus the branch-around and the veneer.
	assert.Greater(len(code), 2+200*2+2)
}

func TestBindReleasesVeneerWatch(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(T32)
	var l Label
	m.B(NE, &l)
	assert.False(m.VeneerPoolIsEmpty())
	m.Nop()
	m.Bind(&l)
	assert.True(m.VeneerPoolIsEmpty())

	// Binding a label that was never watched works the same way.
	var other Label
	m.Bind(&other)
	m.FinalizeCode()
}

func TestFinalizeWithUnboundBranch(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(T32)
	var l Label
	m.B(AL, &l)
	assert.PanicsWithValue(ErrLabelUnresolved, func() { m.FinalizeCode() })
}

func TestDoubleBind(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(A32)
	var l Label
	m.Bind(&l)
	assert.PanicsWithValue(ErrLabelBound, func() { m.Bind(&l) })
}

func TestExactAssemblyScope(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(T32)
	scope := NewExactAssemblyScope(m, 4)
	m.Assembler.Nop()
	m.Assembler.Nop()
	scope.Close()

	// Macro instructions are forbidden while the scope is open.
	scope = NewExactAssemblyScope(m, 2)
	assert.PanicsWithValue(ErrMacroForbidden, func() { m.Nop() })
	m.Assembler.Nop()
	scope.Close()

	// Emitting the wrong number of bytes trips on Close.
	scope = NewExactAssemblyScope(m, 4)
	m.Assembler.Nop()
	assert.PanicsWithValue(ErrScopeSize, func() { scope.Close() })
}

func TestCodeBufferCheckScope(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(A32)
	scope := NewCodeBufferCheckScope(m, 8)
	m.Nop()
	scope.Close()

	scope = NewCodeBufferCheckScope(m, 4)
	m.Nop()
	m.Nop()
	assert.PanicsWithValue(ErrScopeSize, func() { scope.Close() })
}

func TestScratchRegisterScope(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(T32)
	temps := NewUseScratchRegisterScope(m)
	assert.Equal(R12, temps.Acquire())
	assert.PanicsWithValue(ErrScratchExhausted, func() { temps.Acquire() })

	temps.Include(R4, R5)
	assert.Equal(R4, temps.Acquire())
	temps.Release(R4)
	assert.Equal(R4, temps.Acquire())
	temps.Close()

	// The outer list is restored on Close.
	again := NewUseScratchRegisterScope(m)
	assert.Equal(R12, again.Acquire())
	again.Close()
}

func TestMacroStackHelpers(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(A32)
	m.Claim(16)
	m.Poke(R0, 4)
	m.Peek(R1, 4)
	m.Drop(16)
	assert.Equal([]byte{
		0x10, 0xd0, 0x4d, 0xe2, // sub sp, sp, #16
		0x04, 0x00, 0x8d, 0xe5, // str r0, [sp, #4]
		0x04, 0x10, 0x9d, 0xe5, // ldr r1, [sp, #4]
		0x10, 0xd0, 0x8d, 0xe2, // add sp, sp, #16
	}, m.FinalizeCode())
}

func TestJumpTableWidthT32(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(T32)
	table := NewJumpTable32(4)
	assert.PanicsWithValue(ErrTableWidth, func() { m.Switch(R0, table) })
}

func TestJumpTableLinkBeforeSwitch(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(T32)
	table := NewJumpTable8(4)
	assert.PanicsWithValue(ErrTableNotPlaced, func() { m.Case(table, 0) })
}

func TestJumpTableCaseIndex(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(T32)
	table := NewJumpTable8(3)
	m.Switch(R0, table)
	assert.PanicsWithValue(ErrCaseIndex, func() { m.Case(table, 3) })
	m.EndSwitch(table)
	m.Bkpt(0)
	m.FinalizeCode()
}

func TestJumpTableLayoutT32(t *testing.T) {
	assert := assert.New(t)

	m := NewMacroAssembler(T32)
	table := NewJumpTable8(2)
	m.Switch(R1, table)
	m.Case(table, 0)
	m.Nop()
	m.Break(table)
	m.Case(table, 1)
	m.Nop()
	m.EndSwitch(table)
	code := m.FinalizeCode()

	loc := table.Location()
	// Entry 0 lands right past the table, entry 1 three halfwords later
	// (nop, b.w to the end).
	assert.Equal(byte(1), code[loc])
	assert.Equal(code[loc]+3, code[loc+1])
}
