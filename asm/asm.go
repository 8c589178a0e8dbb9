// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package asm is a single pass textual front end over the aarch32 macro
// assembler. It supports labels, .equ, .macro/.endm with @-localized
// labels, .word, .ltorg, ldr =constant literal syntax, condition-suffixed
// mnemonics, and compile-time $() expressions evaluated with Starlark
// over the current equates.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/mmc28a/vixl/aarch32"
)

// Macro represents a macro definition in the assembly text.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Assembler is a single pass macro assembler over the aarch32 core.
type Assembler struct {
	Verbose bool                   // If set, verbosely logs the assembler actions.
	ISA     aarch32.InstructionSet // Target instruction set.

	predefine map[string]string   // Predefines
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.

	masm       *aarch32.MacroAssembler
	labels     map[string]*aarch32.Label
	statements []Statement
	expansion  int
	depth      int
}

// Macros invoking macros deeper than this is taken as a cycle.
const maxMacroDepth = 16

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

var regMap = map[string]aarch32.Register{
	"r0": aarch32.R0, "r1": aarch32.R1, "r2": aarch32.R2, "r3": aarch32.R3,
	"r4": aarch32.R4, "r5": aarch32.R5, "r6": aarch32.R6, "r7": aarch32.R7,
	"r8": aarch32.R8, "r9": aarch32.R9, "r10": aarch32.R10, "r11": aarch32.R11,
	"r12": aarch32.R12, "r13": aarch32.SP, "r14": aarch32.LR, "r15": aarch32.PC,
	"sl": aarch32.R10, "fp": aarch32.R11, "ip": aarch32.R12,
	"sp": aarch32.SP, "lr": aarch32.LR, "pc": aarch32.PC,
}

var condMap = map[string]aarch32.Condition{
	"eq": aarch32.EQ, "ne": aarch32.NE,
	"cs": aarch32.CS, "hs": aarch32.CS,
	"cc": aarch32.CC, "lo": aarch32.CC,
	"mi": aarch32.MI, "pl": aarch32.PL,
	"vs": aarch32.VS, "vc": aarch32.VC,
	"hi": aarch32.HI, "ls": aarch32.LS,
	"ge": aarch32.GE, "lt": aarch32.LT,
	"gt": aarch32.GT, "le": aarch32.LE,
	"al": aarch32.AL,
}

var mnemonics = map[string]bool{
	"mov": true, "mvn": true, "movw": true, "movt": true,
	"add": true, "sub": true, "and": true, "orr": true, "eor": true,
	"cmp": true, "ldr": true, "ldrd": true, "str": true,
	"b": true, "bl": true, "cbz": true, "cbnz": true,
	"nop": true, "bkpt": true,
}

// splitMnemonic resolves a word into a base mnemonic and an optional
// two-letter condition suffix. Exact mnemonics win over suffixed reads,
// so "bl" is branch-with-link and "bls" is b with the ls condition.
func splitMnemonic(word string) (base string, cond aarch32.Condition, err error) {
	cond = aarch32.AL
	if mnemonics[word] {
		base = word
		return
	}
	if len(word) > 2 {
		if c, ok := condMap[word[len(word)-2:]]; ok && mnemonics[word[:len(word)-2]] {
			base = word[:len(word)-2]
			cond = c
			return
		}
	}
	err = ErrMnemonicInvalid
	return
}

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value uint32, err error) {
	if len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}
	invert := false
	if word[0] == '~' {
		invert = true
		word = word[1:]
	}
	if len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}
	if word[0] == '\'' {
		// Character quotes should have been expanded into
		// values in parseLine()
		err = ErrParseCharacter(word)
		return
	}
	v64, err := strconv.ParseInt(word, 0, 64)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	if v64 > 0xffffffff || v64 < -0x80000000 {
		err = ErrParseNumber(word)
		return
	}
	value = uint32(v64)

	if invert {
		value = ^value
	}

	return
}

// immOf parses an immediate with an optional leading '#'.
func (asm *Assembler) immOf(word string) (uint32, error) {
	return asm.valueOf(strings.TrimPrefix(word, "#"))
}

// operand parses a register or immediate operand.
func (asm *Assembler) operand(word string) (op aarch32.Operand, err error) {
	if reg, ok := regMap[word]; ok {
		op = aarch32.Rm(reg)
		return
	}
	value, err := asm.immOf(word)
	if err != nil {
		return
	}
	op = aarch32.Imm(value)
	return
}

// memOperand parses a "[base]" or "[base #offset]" operand. Commas were
// already folded to spaces by the line splitter.
func (asm *Assembler) memOperand(word string) (mem aarch32.MemOperand, err error) {
	if !strings.HasPrefix(word, "[") || !strings.HasSuffix(word, "]") {
		err = ErrMemorySyntax
		return
	}
	fields := strings.Fields(word[1 : len(word)-1])
	if len(fields) == 0 || len(fields) > 2 {
		err = ErrMemorySyntax
		return
	}
	base, ok := regMap[fields[0]]
	if !ok {
		err = ErrRegisterInvalid
		return
	}
	var offset int64
	if len(fields) == 2 {
		offset, err = strconv.ParseInt(strings.TrimPrefix(fields[1], "#"), 0, 32)
		if err != nil {
			err = ErrParseNumber(fields[1])
			return
		}
	}
	mem = aarch32.Mem(base, int32(offset))
	return
}

// getLabel returns the aarch32 label for name, creating it on first use.
func (asm *Assembler) getLabel(name string) *aarch32.Label {
	label, ok := asm.labels[name]
	if !ok {
		label = &aarch32.Label{}
		asm.labels[name] = label
	}
	return label
}

// defineLabel binds name at the current cursor.
func (asm *Assembler) defineLabel(name string) error {
	label := asm.getLabel(name)
	if label.IsBound() {
		return ErrLabelDuplicate
	}
	asm.masm.Bind(label)
	return nil
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value uint32, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var value32 uint32
		value32, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt(int(value32))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = uint32(st_int64)
	return
}

// parseLine expands one line into instruction words.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	re := regexp.MustCompile(`'\\?[^']'`)
	line = re.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	re = regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#v", value)
	})
	if err != nil {
		return
	}

	// Operand commas are decoration; bracketed memory operands are
	// re-joined into a single word.
	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	for n := 0; n < len(fields); n++ {
		word := fields[n]
		for strings.HasPrefix(word, "[") && !strings.HasSuffix(word, "]") && n+1 < len(fields) {
			n++
			word += " " + fields[n]
		}
		words = append(words, word)
	}

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		err = asm.defineLabel(words[0][:len(words[0])-1])
		if err != nil {
			return
		}
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		if asm.depth >= maxMacroDepth {
			err = ErrMacroRecursion
			return
		}
		asm.depth++
		defer func() { asm.depth-- }()
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = words[1+n]
		}
		defer func() { asm.Equate = old_equate }()

		// Labels marked with @ are local to this expansion.
		asm.expansion++
		local := fmt.Sprintf("%v_%v_", name, asm.expansion)

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", local)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// parseWords assembles the words of one expanded line.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	if len(words) == 0 {
		return
	}

	asm.statements = append(asm.statements, Statement{
		LineNo: lineno,
		Line:   strings.Join(words, " "),
		Offset: asm.masm.CursorOffset(),
	})

	switch words[0] {
	case ".word":
		if len(words) < 2 {
			return ErrOperandMissing
		}
		asm.masm.EnsureEmitFor(aarch32.Offset(4*(len(words)-1) + 2))
		asm.masm.Buffer().AlignTo(4)
		for _, word := range words[1:] {
			var value uint32
			value, err = asm.valueOf(word)
			if err != nil {
				return
			}
			asm.masm.Buffer().Emit32(value)
		}
		return

	case ".ltorg":
		if len(words) > 1 {
			return ErrOperandExtra
		}
		asm.masm.EmitLiteralPool()
		return
	}

	return asm.instruction(words)
}

// argRange checks the operand count of an instruction.
func argRange(args []string, min, max int) error {
	if len(args) < min {
		return ErrOperandMissing
	}
	if len(args) > max {
		return ErrOperandExtra
	}
	return nil
}

// register parses a mandatory register operand.
func (asm *Assembler) register(word string) (aarch32.Register, error) {
	reg, ok := regMap[word]
	if !ok {
		return aarch32.NoReg, ErrRegisterInvalid
	}
	return reg, nil
}

// instruction dispatches one mnemonic to the macro assembler.
func (asm *Assembler) instruction(words []string) (err error) {
	base, cond, err := splitMnemonic(words[0])
	if err != nil {
		return
	}
	args := words[1:]
	m := asm.masm

	switch base {
	case "nop":
		if !cond.IsAlways() {
			return ErrConditionUnused
		}
		if err = argRange(args, 0, 0); err != nil {
			return
		}
		m.Nop()

	case "bkpt":
		if !cond.IsAlways() {
			return ErrConditionUnused
		}
		if err = argRange(args, 0, 1); err != nil {
			return
		}
		var imm uint32
		if len(args) == 1 {
			if imm, err = asm.immOf(args[0]); err != nil {
				return
			}
		}
		limit := uint32(0xffff)
		if asm.ISA == aarch32.T32 {
			limit = 0xff
		}
		if imm > limit {
			return ErrOperandInvalid
		}
		m.Bkpt(imm)

	case "b":
		if err = argRange(args, 1, 1); err != nil {
			return
		}
		m.B(cond, asm.getLabel(args[0]))

	case "bl":
		if err = argRange(args, 1, 1); err != nil {
			return
		}
		m.Bl(cond, asm.getLabel(args[0]))

	case "cbz", "cbnz":
		if !cond.IsAlways() {
			return ErrConditionUnused
		}
		if err = argRange(args, 2, 2); err != nil {
			return
		}
		var rn aarch32.Register
		if rn, err = asm.register(args[0]); err != nil {
			return
		}
		if asm.ISA != aarch32.T32 || !rn.IsLow() {
			return ErrOperandInvalid
		}
		label := asm.getLabel(args[1])
		if label.IsBound() {
			// Compare-and-branch only reaches forward.
			return ErrOperandInvalid
		}
		if base == "cbz" {
			m.Cbz(rn, label)
		} else {
			m.Cbnz(rn, label)
		}

	case "mov", "mvn":
		if err = argRange(args, 2, 2); err != nil {
			return
		}
		var rd aarch32.Register
		var op aarch32.Operand
		if rd, err = asm.register(args[0]); err != nil {
			return
		}
		if op, err = asm.operand(args[1]); err != nil {
			return
		}
		if base == "mov" {
			m.Mov(cond, rd, op)
		} else {
			m.Mvn(cond, rd, op)
		}

	case "movw", "movt":
		if err = argRange(args, 2, 2); err != nil {
			return
		}
		var rd aarch32.Register
		var imm uint32
		if rd, err = asm.register(args[0]); err != nil {
			return
		}
		if imm, err = asm.immOf(args[1]); err != nil {
			return
		}
		if imm > 0xffff {
			return ErrOperandInvalid
		}
		if base == "movw" {
			m.Movw(cond, rd, imm)
		} else {
			m.Movt(cond, rd, imm)
		}

	case "add", "sub", "and", "orr", "eor":
		// Two-operand form reuses the destination as first source.
		if err = argRange(args, 2, 3); err != nil {
			return
		}
		var rd aarch32.Register
		if rd, err = asm.register(args[0]); err != nil {
			return
		}
		rn := rd
		if len(args) == 3 {
			if rn, err = asm.register(args[1]); err != nil {
				return
			}
			args = args[1:]
		}
		var op aarch32.Operand
		if op, err = asm.operand(args[1]); err != nil {
			return
		}
		switch base {
		case "add":
			m.Add(cond, rd, rn, op)
		case "sub":
			m.Sub(cond, rd, rn, op)
		case "and":
			m.And(cond, rd, rn, op)
		case "orr":
			m.Orr(cond, rd, rn, op)
		case "eor":
			m.Eor(cond, rd, rn, op)
		}

	case "cmp":
		if err = argRange(args, 2, 2); err != nil {
			return
		}
		var rn aarch32.Register
		var op aarch32.Operand
		if rn, err = asm.register(args[0]); err != nil {
			return
		}
		if op, err = asm.operand(args[1]); err != nil {
			return
		}
		m.Cmp(cond, rn, op)

	case "ldr":
		if err = argRange(args, 2, 2); err != nil {
			return
		}
		var rt aarch32.Register
		if rt, err = asm.register(args[0]); err != nil {
			return
		}
		if imm, ok := strings.CutPrefix(args[1], "="); ok {
			var value uint32
			if value, err = asm.valueOf(imm); err != nil {
				return
			}
			m.Ldr32(cond, rt, value)
			return
		}
		var mem aarch32.MemOperand
		if mem, err = asm.memOperand(args[1]); err != nil {
			return
		}
		m.Ldr(cond, rt, mem)

	case "ldrd":
		if err = argRange(args, 3, 3); err != nil {
			return
		}
		var rt, rt2 aarch32.Register
		if rt, err = asm.register(args[0]); err != nil {
			return
		}
		if rt2, err = asm.register(args[1]); err != nil {
			return
		}
		imm, ok := strings.CutPrefix(args[2], "=")
		if !ok {
			return ErrOperandInvalid
		}
		v64, perr := strconv.ParseUint(imm, 0, 64)
		if perr != nil {
			return ErrParseNumber(imm)
		}
		if asm.ISA != aarch32.T32 && (rt&1 != 0 || rt2 != rt+1) {
			// The doubleword load needs an even register pair.
			return ErrOperandInvalid
		}
		m.Ldrd64(cond, rt, rt2, v64)

	case "str":
		if err = argRange(args, 2, 2); err != nil {
			return
		}
		var rt aarch32.Register
		var mem aarch32.MemOperand
		if rt, err = asm.register(args[0]); err != nil {
			return
		}
		if mem, err = asm.memOperand(args[1]); err != nil {
			return
		}
		m.Str(cond, rt, mem)

	default:
		return ErrMnemonicInvalid
	}

	return
}

// Parse assembles an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.masm = aarch32.NewMacroAssembler(asm.ISA)
	asm.labels = make(map[string]*aarch32.Label, 16)
	asm.statements = nil
	asm.expansion = 0
	asm.depth = 0
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])

		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Every referenced label must be defined by now.
	for _, name := range slices.Sorted(maps.Keys(asm.labels)) {
		if !asm.labels[name].IsBound() {
			err = ErrLabelMissing(name)
			return
		}
	}

	labels := make(map[string]aarch32.Offset, len(asm.labels))
	for name, label := range asm.labels {
		labels[name] = label.Location()
	}

	prog = &Program{
		ISA:        asm.ISA,
		Code:       asm.masm.FinalizeCode(),
		Statements: asm.statements,
		Labels:     labels,
	}

	return
}
