package asm

import (
	"github.com/mmc28a/vixl/aarch32"
)

// Statement maps one assembled source line to the code offset its first
// byte was emitted at.
type Statement struct {
	LineNo int
	Line   string
	Offset aarch32.Offset
}

// Program is the result of one Parse: the final machine code, a
// source-mapped listing, and the resolved label offsets.
type Program struct {
	ISA        aarch32.InstructionSet
	Code       []byte
	Statements []Statement
	Labels     map[string]aarch32.Offset
}

// Debug returns the statement whose emission covers offset, or nil when
// the offset falls outside the assembled code (pool data, padding).
func (prog *Program) Debug(offset aarch32.Offset) (stmt *Statement) {
	for n := range prog.Statements {
		if prog.Statements[n].Offset > offset {
			break
		}
		stmt = &prog.Statements[n]
	}
	return
}
