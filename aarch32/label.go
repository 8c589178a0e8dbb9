package aarch32

// Offset is an absolute byte offset into the code buffer.
type Offset = int32

const (
	OFFSET_MAX = Offset(0x7fffffff) // Unconstrained checkpoint sentinel.
)

// refKind selects the patch strategy and addressing range of a forward
// reference.
type refKind int

const (
	refA32Branch       = refKind(iota) // b/bl, imm24 << 2, pc = loc+8
	refT32CondNarrow                   // b<c>.n, imm8 << 1
	refT32UncondNarrow                 // b.n, imm11 << 1
	refT32CondWide                     // b<c>.w, 21-bit
	refT32UncondWide                   // b.w, 25-bit
	refT32Bl                           // bl, 25-bit
	refT32Cbz                          // cbz/cbnz, forward only
	refT32LdrLitNarrow                 // ldr.n rt, [pc, #imm8*4], forward only
	refT32LdrLitWide                   // ldr.w rt, [pc, #+/-imm12]
	refA32LdrLit                       // ldr rt, [pc, #+/-imm12]
	refT32LdrdLit                      // ldrd rt, rt2, [pc, #+/-imm8*4]
	refA32LdrdLit                      // ldrd rt, rt2, [pc, #+/-imm8]
)

// pcOffset is the distance between an instruction's location and the PC
// value it observes.
func (k refKind) pcOffset() Offset {
	switch k {
	case refA32Branch, refA32LdrLit, refA32LdrdLit:
		return 8
	default:
		return 4
	}
}

// alignPC reports whether the observed PC is aligned down to 4 before the
// offset is applied (T32 literal loads).
func (k refKind) alignPC() bool {
	switch k {
	case refT32LdrLitNarrow, refT32LdrLitWide, refT32LdrdLit:
		return true
	default:
		return false
	}
}

// ranges returns the minimum and maximum target displacement from the
// observed PC.
func (k refKind) ranges() (minOff, maxOff Offset) {
	switch k {
	case refA32Branch:
		return -0x02000000, 0x01fffffc
	case refT32CondNarrow:
		return -256, 254
	case refT32UncondNarrow:
		return -2048, 2046
	case refT32CondWide:
		return -1048576, 1048574
	case refT32UncondWide, refT32Bl:
		return -16777216, 16777214
	case refT32Cbz:
		return 0, 126
	case refT32LdrLitNarrow:
		return 0, 1020
	case refT32LdrLitWide:
		return -4095, 4095
	case refA32LdrLit:
		return -4095, 4095
	case refT32LdrdLit:
		return -1020, 1020
	case refA32LdrdLit:
		return -255, 255
	}
	panic(ErrOperandInvalid)
}

// pcFrom returns the PC value observed by an instruction of this kind at
// location loc.
func (k refKind) pcFrom(loc Offset) Offset {
	pc := loc + k.pcOffset()
	if k.alignPC() {
		pc = alignDown(pc, 4)
	}
	return pc
}

// maxForwardDistance is the furthest a target can sit beyond the observed PC.
func (k refKind) maxForwardDistance() Offset {
	_, maxOff := k.ranges()
	return maxOff
}

// ForwardReference records one not-yet-resolvable use of a label.
type ForwardReference struct {
	location   Offset  // First byte of the referencing instruction.
	kind       refKind // Encoding to patch once the target is known.
	checkpoint Offset  // Latest offset at which the target is still reachable.
	isBranch   bool    // Control reference (veneer-eligible) vs data.
}

// Checkpoint returns the latest buffer offset by which this reference's
// target must be resolved.
func (ref *ForwardReference) Checkpoint() Offset {
	return ref.checkpoint
}

// SetIsBranch marks the reference as a control-flow use.
func (ref *ForwardReference) SetIsBranch() {
	ref.isBranch = true
}

// Label is a position in the code buffer: either bound to a fixed offset,
// or unbound and accumulating forward references. Binding is irreversible.
type Label struct {
	bound        bool
	location     Offset
	refs         []ForwardReference
	inVeneerPool bool
	checkpoint   Offset
}

func (l *Label) IsBound() bool { return l.bound }

// Location returns the bound offset.
func (l *Label) Location() Offset {
	if !l.bound {
		panic(ErrLabelUnbound)
	}
	return l.location
}

func (l *Label) IsReferenced() bool { return len(l.refs) > 0 }

func (l *Label) IsInVeneerPool() bool { return l.inVeneerPool }
func (l *Label) SetInVeneerPool()     { l.inVeneerPool = true }
func (l *Label) clearInVeneerPool()   { l.inVeneerPool = false }

// AddForwardRef records a use of the unbound label at location loc.
func (l *Label) AddForwardRef(loc Offset, kind refKind) {
	if l.bound {
		panic(ErrLabelBound)
	}
	l.refs = append(l.refs, ForwardReference{
		location:   loc,
		kind:       kind,
		checkpoint: kind.pcFrom(loc) + kind.maxForwardDistance(),
	})
	l.UpdateCheckpoint()
}

// GetBackForwardRef returns the most recently added reference.
func (l *Label) GetBackForwardRef() *ForwardReference {
	return &l.refs[len(l.refs)-1]
}

// UpdateCheckpoint recomputes the cached checkpoint as the tightest of all
// outstanding forward references.
func (l *Label) UpdateCheckpoint() {
	l.checkpoint = OFFSET_MAX
	for n := range l.refs {
		l.checkpoint = min(l.checkpoint, l.refs[n].checkpoint)
	}
}

// Checkpoint returns the cached checkpoint. Call UpdateCheckpoint first if
// references may have been added since.
func (l *Label) Checkpoint() Offset { return l.checkpoint }

// bind fixes the label's location. The caller patches and clears the
// forward references.
func (l *Label) bind(loc Offset) {
	if l.bound {
		panic(ErrLabelBound)
	}
	l.bound = true
	l.location = loc
}

// takeRefs removes and returns all outstanding forward references.
func (l *Label) takeRefs() (refs []ForwardReference) {
	refs = l.refs
	l.refs = nil
	return
}

// dropBackForwardRef discards the most recent reference, used when a
// speculative emission is rewound.
func (l *Label) dropBackForwardRef() {
	l.refs = l.refs[:len(l.refs)-1]
}

func alignUp(v, align Offset) Offset {
	return (v + align - 1) &^ (align - 1)
}

func alignDown(v, align Offset) Offset {
	return v &^ (align - 1)
}
