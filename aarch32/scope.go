package aarch32

// CodeBufferCheckScope checks on Close that no more than size bytes were
// emitted while it was open.
type CodeBufferCheckScope struct {
	masm  *MacroAssembler
	start Offset
	size  Offset
}

// NewCodeBufferCheckScope opens a maximum-size emission check.
func NewCodeBufferCheckScope(m *MacroAssembler, size Offset) *CodeBufferCheckScope {
	return &CodeBufferCheckScope{masm: m, start: m.CursorOffset(), size: size}
}

func (s *CodeBufferCheckScope) Close() {
	if s.masm.CursorOffset()-s.start > s.size {
		panic(ErrScopeSize)
	}
}

// ExactAssemblyScope reserves size bytes up front, forbids macro
// instructions while open, and checks on Close that exactly size bytes
// were emitted. Raw emissions inside the scope cannot trip a pool flush,
// so pool-sensitive sequences stay contiguous.
type ExactAssemblyScope struct {
	masm      *MacroAssembler
	start     Offset
	size      Offset
	wasMacros bool
}

// NewExactAssemblyScope opens an exact-size raw emission region.
func NewExactAssemblyScope(m *MacroAssembler, size Offset) *ExactAssemblyScope {
	m.EnsureEmitFor(size)
	s := &ExactAssemblyScope{
		masm:      m,
		start:     m.CursorOffset(),
		size:      size,
		wasMacros: m.allowMacros,
	}
	m.allowMacros = false
	return s
}

func (s *ExactAssemblyScope) Close() {
	s.masm.allowMacros = s.wasMacros
	if s.masm.CursorOffset()-s.start != s.size {
		panic(ErrScopeSize)
	}
}

// UseScratchRegisterScope hands out registers from the macro assembler's
// scratch list and restores the list on Close. The initial list holds only
// r12; callers widen it with Include when they can spare more.
type UseScratchRegisterScope struct {
	masm   *MacroAssembler
	saved  RegisterList
	savedV VRegisterList
}

func NewUseScratchRegisterScope(m *MacroAssembler) *UseScratchRegisterScope {
	return &UseScratchRegisterScope{masm: m, saved: m.scratch, savedV: m.scratchV}
}

// Acquire takes the lowest available scratch register.
func (s *UseScratchRegisterScope) Acquire() Register {
	if s.masm.scratch.IsEmpty() {
		panic(ErrScratchExhausted)
	}
	reg := s.masm.scratch.First()
	s.masm.scratch.Remove(reg)
	return reg
}

// AcquireV takes the lowest available scratch vector register.
func (s *UseScratchRegisterScope) AcquireV() VRegister {
	if s.masm.scratchV.IsEmpty() {
		panic(ErrScratchExhausted)
	}
	reg := s.masm.scratchV.First()
	s.masm.scratchV.Remove(reg)
	return reg
}

// Include adds registers to the available scratch list for the duration of
// the scope.
func (s *UseScratchRegisterScope) Include(regs ...Register) {
	for _, reg := range regs {
		s.masm.scratch.Combine(reg)
	}
}

// Exclude removes registers from the available scratch list, typically
// because the caller's operands live there.
func (s *UseScratchRegisterScope) Exclude(regs ...Register) {
	for _, reg := range regs {
		s.masm.scratch.Remove(reg)
	}
}

// Release returns a previously acquired register to the list.
func (s *UseScratchRegisterScope) Release(reg Register) {
	if s.masm.scratch.Includes(reg) {
		panic(ErrScratchNotHeld)
	}
	s.masm.scratch.Combine(reg)
}

// Close restores the scratch lists as they were when the scope opened.
func (s *UseScratchRegisterScope) Close() {
	s.masm.scratch = s.saved
	s.masm.scratchV = s.savedV
}
