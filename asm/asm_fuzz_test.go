// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package asm

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmc28a/vixl/aarch32"
)

func FuzzParse(f *testing.F) {
	seeds := []string{
		"",
		"	mov r0, #1\n	bkpt\n",
		"loop:\n	add r0, r0, #1\n	cmp r0, #10\n	bne loop\n	bkpt\n",
		".equ TEN 10\n	mov r1, $(TEN * 2)\n",
		".macro DOUBLE rd\n	add rd, rd, rd\n.endm\n	DOUBLE r2\n",
		"	ldr r0, =0xdeadbeef\n.ltorg\n",
		".word 0x11223344 0x55667788\n",
		"	str r1, [sp, #4]\n	ldr r2, [sp, #4]\n",
		"	cmp r0, #0\n	moveq r1, #1\n	bkpt #0xff\n",
		"	mov r3, ~0 ; invert\n",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, program string) {
		assert := assert.New(t)

		for _, isa := range []aarch32.InstructionSet{aarch32.A32, aarch32.T32} {
			asm := &Assembler{ISA: isa}
			prog, err := asm.Parse(strings.NewReader(program))
			if err != nil {
				// Every rejection surfaces as a source-located
				// syntax error.
				var se *ErrSyntax
				assert.True(errors.As(err, &se), program)
				continue
			}
			assert.NotNil(prog)
			assert.Equal(isa, prog.ISA)
		}
	})
}
