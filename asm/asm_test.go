// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package asm

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmc28a/vixl/aarch32"
	"github.com/mmc28a/vixl/emulator"
)

func TestAssembler(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	prog, err := asm.Parse(strings.NewReader(""))
	assert.NoError(err)
	assert.Equal(0, len(prog.Code))
	assert.Equal(0, len(prog.Statements))

	assert.Equal("0", asm.Equate["LINENO"])
}

// execute assembles program and runs it to the first breakpoint.
func execute(t *testing.T, isa aarch32.InstructionSet, program []string) (*Program, *emulator.Emulator) {
	assert := assert.New(t)

	asm := &Assembler{ISA: isa}
	prog, err := asm.Parse(strings.NewReader(strings.Join(program, "\n")))
	assert.NoError(err)
	if err != nil {
		t.Fatal(err)
	}

	emu := emulator.New(isa, prog.Code)
	assert.NoError(emu.Run(0))
	assert.True(emu.Halted())
	return prog, emu
}

func TestAssemblerSumLoop(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"	mov r0, #0",
		"	mov r1, #10",
		"loop:",
		"	add r0, r0, r1",
		"	sub r1, r1, #1",
		"	cmp r1, #0",
		"	bne loop",
		"	bkpt ; all done",
	}

	for _, isa := range []aarch32.InstructionSet{aarch32.A32, aarch32.T32} {
		prog, emu := execute(t, isa, program)
		assert.Equal(uint32(55), emu.R[0], isa.String())

		// The loop label resolves past the first two moves.
		offset, ok := prog.Labels["loop"]
		assert.True(ok)
		assert.Greater(offset, aarch32.Offset(0))

		// The source map attributes the loop body to its line.
		stmt := prog.Debug(offset)
		assert.NotNil(stmt)
		assert.Equal(4, stmt.LineNo)
	}
}

func TestAssemblerConditionSuffix(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"	mov r0, #7",
		"	cmp r0, #7",
		"	moveq r1, #1",
		"	movne r2, #2",
		"	addls r3, r0, #1",
		"	bkpt",
	}

	for _, isa := range []aarch32.InstructionSet{aarch32.A32, aarch32.T32} {
		_, emu := execute(t, isa, program)
		assert.Equal(uint32(1), emu.R[1], isa.String())
		assert.Equal(uint32(0), emu.R[2], isa.String())
		assert.Equal(uint32(8), emu.R[3], isa.String())
	}
}

func TestAssemblerEqu(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		".equ TEN 10",
		".equ TWENTY $(TEN + TEN)",
		"	mov r0, TEN",
		"	mov r1, TWENTY",
		"	mov r2, $(TEN * 4)",
		"	mov r3, ~0",
		"	bkpt",
	}

	_, emu := execute(t, aarch32.A32, program)
	assert.Equal(uint32(10), emu.R[0])
	assert.Equal(uint32(20), emu.R[1])
	assert.Equal(uint32(40), emu.R[2])
	assert.Equal(uint32(0xffffffff), emu.R[3])
}

func TestAssemblerMacro(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		".macro DOUBLE rd",
		"	add rd, rd, rd",
		".endm",
		".macro COUNTDOWN rn",
		"@loop:",
		"	sub rn, rn, #1",
		"	cmp rn, #0",
		"	bne @loop",
		".endm",
		"	mov r2, #3",
		"	DOUBLE r2",
		"	DOUBLE r2",
		"	mov r3, #5",
		"	COUNTDOWN r3",
		"	bkpt",
	}

	for _, isa := range []aarch32.InstructionSet{aarch32.A32, aarch32.T32} {
		_, emu := execute(t, isa, program)
		assert.Equal(uint32(12), emu.R[2], isa.String())
		assert.Equal(uint32(0), emu.R[3], isa.String())
	}
}

func TestAssemblerLiterals(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"	ldr r0, =0xdeadbeef",
		"	ldr r1, =0x01020304",
		"	ldrd r2, r3, =0x1122334455667788",
		"	bkpt",
		".ltorg",
	}

	for _, isa := range []aarch32.InstructionSet{aarch32.A32, aarch32.T32} {
		_, emu := execute(t, isa, program)
		assert.Equal(uint32(0xdeadbeef), emu.R[0], isa.String())
		assert.Equal(uint32(0x01020304), emu.R[1], isa.String())
		assert.Equal(uint32(0x55667788), emu.R[2], isa.String())
		assert.Equal(uint32(0x11223344), emu.R[3], isa.String())
	}
}

func TestAssemblerMemory(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"	mov r0, #0x42",
		"	sub sp, sp, #8",
		"	str r0, [sp, #4]",
		"	ldr r1, [sp, #4]",
		"	add sp, sp, #8",
		"	bkpt",
	}

	for _, isa := range []aarch32.InstructionSet{aarch32.A32, aarch32.T32} {
		_, emu := execute(t, isa, program)
		assert.Equal(uint32(0x42), emu.R[1], isa.String())
	}
}

func TestAssemblerWord(t *testing.T) {
	assert := assert.New(t)

	program := []string{
		"	b over",
		"data:",
		".word 0x11223344 0x55667788",
		"over:",
		"	bkpt",
	}

	asm := &Assembler{ISA: aarch32.A32}
	prog, err := asm.Parse(strings.NewReader(strings.Join(program, "\n")))
	assert.NoError(err)

	data := prog.Labels["data"]
	assert.Equal([]byte{0x44, 0x33, 0x22, 0x11}, prog.Code[data:data+4])
	assert.Equal([]byte{0x88, 0x77, 0x66, 0x55}, prog.Code[data+4:data+8])

	emu := emulator.New(aarch32.A32, prog.Code)
	assert.NoError(emu.Run(0))
	assert.True(emu.Halted())
}

func TestAssemblerPredefine(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	asm.Predefine("SEED", "0x30")

	prog, err := asm.Parse(strings.NewReader("mov r0, SEED\nbkpt\n"))
	assert.NoError(err)

	emu := emulator.New(aarch32.A32, prog.Code)
	assert.NoError(emu.Run(0))
	assert.Equal(uint32(0x30), emu.R[0])
}

func TestAssemblerErrSyntax(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	// Various syntax errors
	table := [](struct {
		prog string
		line int
	}){
		{"DUP:\nDUP:\n", 2},
		{"frob r0\n", 1},
		{"mov r0\n", 1},
		{"mov r0, r1, r2\n", 1},
		{"mov r99, #1\n", 1},
		{"mov r0, #junk\n", 1},
		{"mov r0, $(\"aaa\")\n", 1},
		{"mov r0, $(more(\"aaa\"))\n", 1},
		{"b\n", 1},
		{"b nowhere\n", 1},
		{"cbz r0\n", 1},
		{"nopeq\n", 1},
		{"nop extra\n", 1},
		{"ldr r0, 5\n", 1},
		{"ldr r0, [r1, bad]\n", 1},
		{"ldrd r2, r3, #1\n", 1},
		{".word\n", 1},
		{".ltorg now\n", 1},
		{".equ\n", 1},
		{".equ A\n", 1},
		{".equ A 1\n.equ A 2\n", 2},
		{".macro\n", 1},
		{".macro A B\n.macro C\n.endm\n.endm\n", 2},
		{".macro A\n.endm\n.macro A\n.endm\n", 3},
		{".macro A\n.endm\n.endm\n", 3},
		{".macro A\nmov r0, #1\n", 2},
		{".macro A B\n.endm\nA 1 2\n", 3},
		{".macro A B\nmov B, #junk\n.endm\nA r0\n", 4},
	}

	for _, entry := range table {
		_, err := asm.Parse(strings.NewReader(entry.prog))
		var se *ErrSyntax
		assert.NotNil(err, entry.prog)
		if err != nil {
			assert.True(errors.As(err, &se), entry.prog)
			assert.Equal(entry.line, se.LineNo, entry.prog)
		}
	}
}
