// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package aarch32

// JumpTable is an in-code dispatch table of unsigned entry offsets, scaled
// by the instruction granularity (2 bytes on T32, 4 on A32). Cases are
// linked as their code is emitted; indices never linked fall through to
// the default target when the switch is closed.
type JumpTable struct {
	entrySize Offset
	length    int
	marked    []uint32 // presence bitfield, one bit per case

	defaultL Label
	end      Label

	table  Offset // first table entry
	branch Offset // offset the entries are relative to
	placed bool
}

func newJumpTable(length int, entrySize Offset) *JumpTable {
	if length <= 0 {
		panic(ErrCaseIndex)
	}
	return &JumpTable{
		entrySize: entrySize,
		length:    length,
		marked:    make([]uint32, (length+31)/32),
	}
}

// NewJumpTable8 sizes entries as bytes; cases must land within 255
// scaled units of the dispatch point.
func NewJumpTable8(length int) *JumpTable { return newJumpTable(length, 1) }

// NewJumpTable16 sizes entries as halfwords.
func NewJumpTable16(length int) *JumpTable { return newJumpTable(length, 2) }

// NewJumpTable32 sizes entries as words; unsupported on T32.
func NewJumpTable32(length int) *JumpTable { return newJumpTable(length, 4) }

func (t *JumpTable) Length() int          { return t.length }
func (t *JumpTable) EntrySize() Offset    { return t.entrySize }
func (t *JumpTable) DefaultLabel() *Label { return &t.defaultL }
func (t *JumpTable) EndLabel() *Label     { return &t.end }

// Location returns the offset of the first table entry.
func (t *JumpTable) Location() Offset {
	if !t.placed {
		panic(ErrTableNotPlaced)
	}
	return t.table
}

// TableSizeInBytes is the raw entry payload before alignment padding.
func (t *JumpTable) TableSizeInBytes() Offset {
	return Offset(t.length) * t.entrySize
}

func (t *JumpTable) mark(index int) { t.marked[index/32] |= 1 << (index % 32) }

func (t *JumpTable) isMarked(index int) bool {
	return t.marked[index/32]&(1<<(index%32)) != 0
}

// link writes the scaled offset of loc into entry index.
func (t *JumpTable) link(m *MacroAssembler, index int, loc Offset) {
	if !t.placed {
		panic(ErrTableNotPlaced)
	}
	shift := Offset(2)
	if m.IsT32() {
		shift = 1
	}
	delta := loc - t.branch
	if delta < 0 || delta%(1<<shift) != 0 {
		panic(ErrTargetOutOfRange)
	}
	entry := delta >> shift
	pos := int(t.table) + index*int(t.entrySize)
	switch t.entrySize {
	case 1:
		if entry > 0xff {
			panic(ErrTargetOutOfRange)
		}
		m.buf.SetByte(pos, byte(entry))
	case 2:
		if entry > 0xffff {
			panic(ErrTargetOutOfRange)
		}
		m.buf.SetUint16(pos, uint16(entry))
	default:
		m.buf.SetUint32(pos, uint32(entry))
	}
}

// Switch emits the bounds check and dispatch sequence for table, indexed
// by rn, followed by the zeroed table itself. Out-of-range indices branch
// to the default target. Word-wide tables have no T32 dispatch encoding.
func (m *MacroAssembler) Switch(rn Register, table *JumpTable) {
	m.macroAssert()
	if table.placed {
		panic(ErrLabelBound)
	}
	m.Cmp(AL, rn, Imm(uint32(table.length)))
	m.B(CS, &table.defaultL)

	if m.IsT32() {
		if table.entrySize == 4 {
			panic(ErrTableWidth)
		}
		size := alignUp(table.TableSizeInBytes(), 2)
		scope := NewExactAssemblyScope(m, 4+size)
		if table.entrySize == 1 {
			m.Assembler.Tbb(PC, rn)
		} else {
			m.Assembler.Tbh(PC, rn)
		}
		// The table starts at the PC the dispatch observes.
		table.table = m.CursorOffset()
		table.branch = table.table
		table.placed = true
		m.buf.EmitZeroes(int(size))
		scope.Close()
		return
	}

	temps := NewUseScratchRegisterScope(m)
	defer temps.Close()
	temps.Exclude(rn)
	tmp := temps.Acquire()

	size := alignUp(table.TableSizeInBytes(), 4)
	preamble := Offset(8)
	if table.entrySize == 2 {
		// The halfword load has no register shift; index separately.
		preamble = 12
	}
	scope := NewExactAssemblyScope(m, preamble+size)
	start := m.CursorOffset()
	switch table.entrySize {
	case 1:
		// ldrb tmp, [pc, rn]
		m.emitA32(AL, 0x07d00000|uint32(PC)<<16|uint32(tmp)<<12|uint32(rn))
	case 2:
		// add tmp, pc, rn, lsl #1 ; ldrh tmp, [tmp, #4]
		// The add observes a PC 4 bytes short of the table, which sits
		// past the dispatch branch below.
		m.emitA32(AL, 0x00800000|uint32(PC)<<16|uint32(tmp)<<12|1<<7|uint32(rn))
		m.emitA32(AL, 0x01d000b4|uint32(tmp)<<16|uint32(tmp)<<12)
	default:
		// ldr tmp, [pc, rn, lsl #2]
		m.emitA32(AL, 0x07900000|uint32(PC)<<16|uint32(tmp)<<12|2<<7|uint32(rn))
	}
	// add pc, pc, tmp, lsl #2
	m.emitA32(AL, 0x00800000|uint32(PC)<<16|uint32(PC)<<12|2<<7|uint32(tmp))
	table.table = start + preamble
	table.branch = start + preamble + 4
	table.placed = true
	m.buf.EmitZeroes(int(size))
	scope.Close()
}

// Case links entry index to the current cursor.
func (m *MacroAssembler) Case(table *JumpTable, index int) {
	m.macroAssert()
	if index < 0 || index >= table.length {
		panic(ErrCaseIndex)
	}
	table.link(m, index, m.CursorOffset())
	table.mark(index)
}

// Break branches to the end of the switch.
func (m *MacroAssembler) Break(table *JumpTable) {
	m.B(AL, &table.end)
}

// Default marks the current cursor as the fall-through target.
func (m *MacroAssembler) Default(table *JumpTable) {
	m.Bind(&table.defaultL)
}

// EndSwitch closes the construct: the end label lands here, an unbound
// default follows it, and every never-linked case is pointed at the
// default target.
func (m *MacroAssembler) EndSwitch(table *JumpTable) {
	m.macroAssert()
	if !table.defaultL.IsBound() {
		m.Bind(&table.defaultL)
	}
	m.Bind(&table.end)
	for index := 0; index < table.length; index++ {
		if !table.isMarked(index) {
			table.link(m, index, table.defaultL.Location())
		}
	}
}
