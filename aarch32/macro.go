// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package aarch32

const (
	// Upper bound on the expansion of one macro instruction, including any
	// branch-over for conditional synthesis.
	MAX_MACRO_INSTRUCTION_SIZE = Offset(32)

	// Macro instructions delegating back into other macro instructions
	// deeper than this indicates a synthesis cycle.
	MAX_RECURSION = 5
)

// DelegateFunc is called for operand combinations no synthesis path
// covers, before the macro assembler gives up.
type DelegateFunc func(mnemonic string)

// MacroAssembler layers reachability planning over the raw Assembler:
// every emission is guarded so that pooled literals and short branches are
// flushed before any of them goes out of range, and conditional execution
// is synthesized on T32 where the instruction has no conditional encoding.
type MacroAssembler struct {
	*Assembler

	litMgr    literalPoolManager
	veneerMgr veneerPoolManager

	// Cached min of the two managers' checkpoints.
	checkpoint Offset

	allowMacros     bool
	generatingPools bool
	depth           int

	scratch  RegisterList
	scratchV VRegisterList

	// Delegate, when set, observes unhandled operand combinations instead
	// of an ErrUnhandledInstruction panic.
	Delegate DelegateFunc
}

// NewMacroAssembler creates a macro assembler targeting the given
// instruction set.
func NewMacroAssembler(isa InstructionSet) *MacroAssembler {
	m := &MacroAssembler{
		Assembler:   NewAssembler(isa),
		checkpoint:  OFFSET_MAX,
		allowMacros: true,
		scratch:     MakeRegisterList(R12),
	}
	m.litMgr.resetCheckpoint()
	m.veneerMgr.recomputeCheckpoint()
	return m
}

// LiteralPoolSize returns the aggregate size of the pending literal pool.
func (m *MacroAssembler) LiteralPoolSize() Offset { return m.litMgr.pool.Size() }

// VeneerPoolIsEmpty reports whether any branch target is being watched.
func (m *MacroAssembler) VeneerPoolIsEmpty() bool { return m.veneerMgr.isEmpty() }

// Checkpoint returns the buffer offset at which emission next has to stop
// and service the pools.
func (m *MacroAssembler) Checkpoint() Offset { return m.checkpoint }

func (m *MacroAssembler) recomputeCheckpoint() {
	m.checkpoint = min(m.litMgr.Checkpoint(), m.veneerMgr.Checkpoint())
}

func (m *MacroAssembler) macroAssert() {
	if !m.allowMacros {
		panic(ErrMacroForbidden)
	}
	if m.InITBlock() {
		panic(ErrInsideITBlock)
	}
}

func (m *MacroAssembler) enter() func() {
	m.depth++
	if m.depth > MAX_RECURSION {
		panic(ErrRecursionLimit)
	}
	return func() { m.depth-- }
}

func (m *MacroAssembler) delegate(mnemonic string) {
	if m.Delegate != nil {
		m.Delegate(mnemonic)
		return
	}
	panic(ErrUnhandledInstruction)
}

// EnsureEmitFor guarantees that size bytes can be emitted without any
// pooled literal or branch target going out of range.
func (m *MacroAssembler) EnsureEmitFor(size Offset) {
	target := alignUp(m.CursorOffset()+size, 4)
	if target < m.checkpoint {
		return
	}
	m.performEnsureEmit(target)
}

func (m *MacroAssembler) performEnsureEmit(target Offset) {
	if m.generatingPools {
		return
	}
	m.generatingPools = true
	defer func() { m.generatingPools = false }()

	branched := false
	var after Label
	if target >= m.veneerMgr.Checkpoint() {
		m.Assembler.B(AL, Best, &after)
		branched = true
		m.veneerMgr.emit(m.Assembler, target)
	}
	if !m.litMgr.pool.IsEmpty() && target >= m.litMgr.Checkpoint() {
		m.flushLiteralPool(!branched)
	}
	if branched {
		m.Assembler.Bind(&after)
	}
	m.recomputeCheckpoint()
}

// flushLiteralPool places every pooled literal at the cursor, optionally
// branching over the data first, and resets the pool's checkpoint.
func (m *MacroAssembler) flushLiteralPool(branch bool) {
	pool := m.litMgr.Pool()
	if pool.IsEmpty() {
		m.litMgr.resetCheckpoint()
		m.recomputeCheckpoint()
		return
	}
	var over Label
	if branch {
		m.Assembler.B(AL, Best, &over)
	}
	m.buf.AlignTo(4)
	for lit := range pool.Literals() {
		m.Assembler.Place(lit)
	}
	pool.Clear()
	m.litMgr.resetCheckpoint()
	if branch {
		m.Assembler.Bind(&over)
	}
	m.recomputeCheckpoint()
}

// EmitLiteralPool flushes the pending literal pool immediately, branching
// around the emitted data.
func (m *MacroAssembler) EmitLiteralPool() {
	m.macroAssert()
	m.flushLiteralPool(true)
}

// AddLiteral pools a literal ahead of any referencing instruction.
func (m *MacroAssembler) AddLiteral(lit *RawLiteral) {
	m.litMgr.AddLiteral(lit)
}

// FinalizeCode flushes the literal pool without a branch around it and
// returns the generated code. Unbound watched branch targets are a
// programming error at this point.
func (m *MacroAssembler) FinalizeCode() []byte {
	m.macroAssert()
	m.flushLiteralPool(false)
	if !m.veneerMgr.isEmpty() {
		panic(ErrLabelUnresolved)
	}
	m.litMgr.pool.Close()
	return m.buf.Bytes()
}

// generateInstruction reserves room, runs emit, and handles the case
// where the emitted reference to lit cannot survive the pool landing
// behind it: the bytes are rewound, the pool is flushed, and emit runs a
// second time against the now-placed literal.
func (m *MacroAssembler) generateInstruction(size Offset, lit *RawLiteral, emit func()) {
	m.EnsureEmitFor(size)
	cursor := m.CursorOffset()
	emit()

	if lit == nil || lit.IsPlaced() {
		return
	}
	m.litMgr.AddLiteral(lit)
	if m.litMgr.IsInsertTooFar(lit, m.CursorOffset()) {
		m.buf.Rewind(int(cursor))
		lit.InvalidateLastForwardReference()
		m.flushLiteralPool(true)
		emit()
	}
	if !lit.IsPlaced() {
		m.litMgr.UpdateCheckpoint(lit)
	}
	m.recomputeCheckpoint()
}

// enterITScope makes the next instruction conditional on T32. When the
// instruction has a usable conditional form an IT prefix is emitted and
// cond passes through; otherwise a narrow branch over the instruction on
// the inverted condition is emitted and AL is returned. The closer binds
// the skip target and checks the skipped run stayed within reach.
func (m *MacroAssembler) enterITScope(cond Condition, canUseIT bool) (Condition, func()) {
	if cond.IsAlways() || !m.IsT32() {
		return cond, func() {}
	}
	if canUseIT {
		m.Assembler.It(cond)
		return cond, func() {}
	}
	skip := &Label{}
	start := m.CursorOffset()
	m.Assembler.B(cond.Negate(), Narrow, skip)
	return AL, func() {
		if m.CursorOffset()-start > MAX_MACRO_INSTRUCTION_SIZE {
			panic(ErrScopeSize)
		}
		m.Assembler.Bind(skip)
	}
}

// materialize loads an arbitrary 32-bit immediate with the shortest raw
// sequence: plain move, inverted move, or a movw/movt pair.
func (m *MacroAssembler) materialize(cond Condition, rd Register, imm uint32) {
	encodable := isA32ModifiedImmediate
	if m.IsT32() {
		encodable = isT32ModifiedImmediate
	}
	switch {
	case encodable(imm):
		m.Assembler.Mov(cond, Best, rd, Imm(imm))
	case encodable(^imm):
		m.Assembler.Mvn(cond, Best, rd, Imm(^imm))
	default:
		m.Assembler.Movw(cond, rd, imm&0xffff)
		if imm>>16 != 0 {
			m.Assembler.Movt(cond, rd, imm>>16)
		}
	}
}

// immEncodable reports whether imm fits the current ISA's modified
// immediate scheme.
func (m *MacroAssembler) immEncodable(imm uint32) bool {
	if m.IsT32() {
		return isT32ModifiedImmediate(imm)
	}
	return isA32ModifiedImmediate(imm)
}

// Bind fixes label at the cursor and releases it from the veneer pool.
func (m *MacroAssembler) Bind(label *Label) {
	m.macroAssert()
	m.Assembler.Bind(label)
	if label.IsInVeneerPool() {
		m.veneerMgr.RemoveLabel(label)
		m.recomputeCheckpoint()
	}
}

// Place writes a literal's payload at the cursor. Pool-managed literals
// cannot also be placed by hand.
func (m *MacroAssembler) Place(lit *RawLiteral) {
	m.macroAssert()
	if lit.PositionInPool() != OFFSET_MAX {
		panic(ErrLiteralPlaced)
	}
	m.EnsureEmitFor(lit.AlignedSize())
	m.Assembler.Place(lit)
	m.recomputeCheckpoint()
}

// B branches to label, watching unbound targets for veneer servicing.
func (m *MacroAssembler) B(cond Condition, label *Label) {
	m.macroAssert()
	defer m.enter()()
	m.generateInstruction(MAX_INSTRUCTION_SIZE, nil, func() {
		m.Assembler.B(cond, Best, label)
	})
	if !label.IsBound() {
		m.veneerMgr.AddLabel(label)
		m.recomputeCheckpoint()
	}
}

// Bl branches with link. On T32 a condition is applied with an IT prefix.
func (m *MacroAssembler) Bl(cond Condition, label *Label) {
	m.macroAssert()
	defer m.enter()()
	m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
		c, close := m.enterITScope(cond, true)
		m.Assembler.Bl(c, label)
		close()
	})
	if !label.IsBound() {
		m.veneerMgr.AddLabel(label)
		m.recomputeCheckpoint()
	}
}

// Cbz compares against zero and branches forward; T32 only.
func (m *MacroAssembler) Cbz(rn Register, label *Label) {
	m.cbzCbnz(false, rn, label)
}

// Cbnz compares against non-zero and branches forward; T32 only.
func (m *MacroAssembler) Cbnz(rn Register, label *Label) {
	m.cbzCbnz(true, rn, label)
}

func (m *MacroAssembler) cbzCbnz(nz bool, rn Register, label *Label) {
	m.macroAssert()
	defer m.enter()()
	if !m.IsT32() || !rn.IsLow() {
		m.delegate("cbz")
		return
	}
	m.generateInstruction(NARROW_INSTRUCTION_SIZE, nil, func() {
		if nz {
			m.Assembler.Cbnz(rn, label)
		} else {
			m.Assembler.Cbz(rn, label)
		}
	})
	if !label.IsBound() {
		m.veneerMgr.AddLabel(label)
		m.recomputeCheckpoint()
	}
}

// Mov moves a register or immediate into rd, synthesizing wide immediates
// with movw/movt.
func (m *MacroAssembler) Mov(cond Condition, rd Register, op Operand) {
	m.macroAssert()
	defer m.enter()()
	if op.IsImmediate() && !m.immEncodable(op.Immediate()) &&
		!(m.IsT32() && rd.IsLow() && op.Immediate() <= 0xff) {
		m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
			c, close := m.enterITScope(cond, false)
			m.materialize(c, rd, op.Immediate())
			close()
		})
		return
	}
	canUseIT := op.IsPlainRegister() || (rd.IsLow() && op.Immediate() <= 0xff)
	m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
		c, close := m.enterITScope(cond, canUseIT)
		m.Assembler.Mov(c, Best, rd, op)
		close()
	})
}

// Mvn moves the bitwise complement of the operand into rd.
func (m *MacroAssembler) Mvn(cond Condition, rd Register, op Operand) {
	m.macroAssert()
	defer m.enter()()
	if op.IsImmediate() && !m.immEncodable(op.Immediate()) {
		m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
			c, close := m.enterITScope(cond, false)
			m.materialize(c, rd, ^op.Immediate())
			close()
		})
		return
	}
	canUseIT := op.IsPlainRegister() && rd.IsLow() && op.BaseRegister().IsLow()
	m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
		c, close := m.enterITScope(cond, canUseIT)
		m.Assembler.Mvn(c, Best, rd, op)
		close()
	})
}

// Movw loads a 16-bit immediate, zero-extended.
func (m *MacroAssembler) Movw(cond Condition, rd Register, imm uint32) {
	m.macroAssert()
	defer m.enter()()
	m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
		c, close := m.enterITScope(cond, true)
		m.Assembler.Movw(c, rd, imm)
		close()
	})
}

// Movt loads a 16-bit immediate into the top half of rd.
func (m *MacroAssembler) Movt(cond Condition, rd Register, imm uint32) {
	m.macroAssert()
	defer m.enter()()
	m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
		c, close := m.enterITScope(cond, true)
		m.Assembler.Movt(c, rd, imm)
		close()
	})
}

// aluOp routes the shared synthesis of the three-operand ALU macros:
// unencodable immediates are materialized into a scratch register first.
func (m *MacroAssembler) aluOp(cond Condition, rd, rn Register, op Operand, narrowOK bool,
	raw func(Condition, EncodingSize, Register, Register, Operand)) {
	m.macroAssert()
	defer m.enter()()
	if op.IsImmediate() && !m.immEncodable(op.Immediate()) {
		temps := NewUseScratchRegisterScope(m)
		defer temps.Close()
		tmp := temps.Acquire()
		m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
			c, close := m.enterITScope(cond, false)
			m.materialize(c, tmp, op.Immediate())
			raw(c, Best, rd, rn, Rm(tmp))
			close()
		})
		return
	}
	canUseIT := narrowOK && rd.Is(rn) && rd.IsLow() &&
		op.IsPlainRegister() && op.BaseRegister().IsLow()
	m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
		c, close := m.enterITScope(cond, canUseIT)
		raw(c, Best, rd, rn, op)
		close()
	})
}

// Add emits rd = rn + operand.
func (m *MacroAssembler) Add(cond Condition, rd, rn Register, op Operand) {
	m.aluOp(cond, rd, rn, op, true, m.Assembler.Add)
}

// Sub emits rd = rn - operand.
func (m *MacroAssembler) Sub(cond Condition, rd, rn Register, op Operand) {
	m.aluOp(cond, rd, rn, op, false, m.Assembler.Sub)
}

// And emits rd = rn & operand.
func (m *MacroAssembler) And(cond Condition, rd, rn Register, op Operand) {
	m.aluOp(cond, rd, rn, op, true, m.Assembler.And)
}

// Orr emits rd = rn | operand.
func (m *MacroAssembler) Orr(cond Condition, rd, rn Register, op Operand) {
	m.aluOp(cond, rd, rn, op, true, m.Assembler.Orr)
}

// Eor emits rd = rn ^ operand.
func (m *MacroAssembler) Eor(cond Condition, rd, rn Register, op Operand) {
	m.aluOp(cond, rd, rn, op, true, m.Assembler.Eor)
}

// Cmp compares rn with the operand and sets NZCV.
func (m *MacroAssembler) Cmp(cond Condition, rn Register, op Operand) {
	m.macroAssert()
	defer m.enter()()
	if op.IsImmediate() && !m.immEncodable(op.Immediate()) &&
		!(m.IsT32() && rn.IsLow() && op.Immediate() <= 0xff) {
		temps := NewUseScratchRegisterScope(m)
		defer temps.Close()
		tmp := temps.Acquire()
		m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
			c, close := m.enterITScope(cond, false)
			m.materialize(c, tmp, op.Immediate())
			m.Assembler.Cmp(c, Best, rn, Rm(tmp))
			close()
		})
		return
	}
	canUseIT := rn.IsLow() &&
		(op.IsImmediate() && op.Immediate() <= 0xff ||
			op.IsPlainRegister() && op.BaseRegister().IsLow())
	m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
		c, close := m.enterITScope(cond, canUseIT)
		m.Assembler.Cmp(c, Best, rn, op)
		close()
	})
}

// Ldr loads rt from memory, synthesizing out-of-range offsets through a
// scratch base.
func (m *MacroAssembler) Ldr(cond Condition, rt Register, mem MemOperand) {
	m.loadStore(cond, true, rt, mem)
}

// Str stores rt to memory, synthesizing out-of-range offsets through a
// scratch base.
func (m *MacroAssembler) Str(cond Condition, rt Register, mem MemOperand) {
	m.loadStore(cond, false, rt, mem)
}

func (m *MacroAssembler) loadStore(cond Condition, load bool, rt Register, mem MemOperand) {
	m.macroAssert()
	defer m.enter()()
	raw := m.Assembler.Str
	if load {
		raw = m.Assembler.Ldr
	}
	off := mem.Offset()
	inRange := off >= 0 && off <= 4095 || !m.IsT32() && off >= -4095
	if !inRange {
		temps := NewUseScratchRegisterScope(m)
		defer temps.Close()
		tmp := temps.Acquire()
		m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
			c, close := m.enterITScope(cond, false)
			m.materialize(c, tmp, uint32(off))
			m.Assembler.Add(c, Best, tmp, mem.Base(), Rm(tmp))
			raw(c, Best, rt, Mem(tmp, 0))
			close()
		})
		return
	}
	canUseIT := rt.IsLow() && off >= 0 && off%4 == 0 &&
		(mem.Base().IsSP() && off <= 1020 || mem.Base().IsLow() && off <= 124)
	m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, nil, func() {
		c, close := m.enterITScope(cond, canUseIT)
		raw(c, Best, rt, mem)
		close()
	})
}

// LdrLiteral loads a pooled 32-bit constant PC-relative.
func (m *MacroAssembler) LdrLiteral(cond Condition, rt Register, lit *RawLiteral) {
	m.macroAssert()
	defer m.enter()()
	m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, lit, func() {
		c, close := m.enterITScope(cond, rt.IsLow())
		m.Assembler.LdrLiteral(c, Best, rt, lit)
		close()
	})
}

// LdrdLiteral loads a pooled 64-bit constant into a register pair.
func (m *MacroAssembler) LdrdLiteral(cond Condition, rt, rt2 Register, lit *RawLiteral) {
	m.macroAssert()
	defer m.enter()()
	m.generateInstruction(MAX_MACRO_INSTRUCTION_SIZE, lit, func() {
		c, close := m.enterITScope(cond, false)
		m.Assembler.LdrdLiteral(c, rt, rt2, lit)
		close()
	})
}

// Ldr32 pools v as a placement-managed literal and loads it.
func (m *MacroAssembler) Ldr32(cond Condition, rt Register, v uint32) {
	m.LdrLiteral(cond, rt, NewLiteral32(v, DeletedOnPlacementByPool))
}

// Ldrd64 pools v as a placement-managed literal and loads it as a pair.
func (m *MacroAssembler) Ldrd64(cond Condition, rt, rt2 Register, v uint64) {
	m.LdrdLiteral(cond, rt, rt2, NewLiteral64(v, DeletedOnPlacementByPool))
}

// Nop emits a no-operation.
func (m *MacroAssembler) Nop() {
	m.macroAssert()
	m.generateInstruction(MAX_INSTRUCTION_SIZE, nil, m.Assembler.Nop)
}

// Bkpt emits a breakpoint.
func (m *MacroAssembler) Bkpt(imm uint32) {
	m.macroAssert()
	m.generateInstruction(MAX_INSTRUCTION_SIZE, nil, func() {
		m.Assembler.Bkpt(imm)
	})
}

// Claim reserves size bytes of stack.
func (m *MacroAssembler) Claim(size Offset) {
	if size == 0 {
		return
	}
	m.Sub(AL, SP, SP, Imm(uint32(size)))
}

// Drop releases size bytes of stack.
func (m *MacroAssembler) Drop(size Offset) {
	if size == 0 {
		return
	}
	m.Add(AL, SP, SP, Imm(uint32(size)))
}

// Peek loads rt from the stack at offset bytes above SP.
func (m *MacroAssembler) Peek(rt Register, offset Offset) {
	m.Ldr(AL, rt, Mem(SP, offset))
}

// Poke stores rt to the stack at offset bytes above SP.
func (m *MacroAssembler) Poke(rt Register, offset Offset) {
	m.Str(AL, rt, Mem(SP, offset))
}
