package aarch32

// Branch and literal-load offset field encoders, shared between initial
// emission (bound targets) and forward-reference patching.

func fits(off, minOff, maxOff Offset) bool {
	return off >= minOff && off <= maxOff
}

// mustRange panics unless off is a multiple of mult inside [minOff, maxOff].
func mustRange(off, minOff, maxOff, mult Offset) {
	if off < minOff || off > maxOff || off%mult != 0 {
		panic(ErrTargetOutOfRange)
	}
}

// splitT32Imm packs a T32 modified-immediate data-processing instruction:
// base carries the opcode and S bit, enc the i:imm3:imm8 fields.
func splitT32Imm(base uint16, rn Register, enc uint32, rd Register) (hw1, hw2 uint16) {
	hw1 = base | uint16(enc>>11&1)<<10 | uint16(rn)
	hw2 = uint16(enc>>8&7)<<12 | uint16(rd)<<8 | uint16(enc)&0xff
	return
}

// encBT1 encodes B<c>.N (encoding T1).
func encBT1(cond Condition, off Offset) uint16 {
	mustRange(off, -256, 254, 2)
	return 0xd000 | uint16(cond)<<8 | uint16(off>>1)&0xff
}

// encBT2 encodes B.N (encoding T2).
func encBT2(off Offset) uint16 {
	mustRange(off, -2048, 2046, 2)
	return 0xe000 | uint16(off>>1)&0x7ff
}

// encBT3 encodes B<c>.W (encoding T3, 21-bit range).
func encBT3(cond Condition, off Offset) (hw1, hw2 uint16) {
	mustRange(off, -1048576, 1048574, 2)
	u := uint32(off)
	hw1 = 0xf000 | uint16(u>>20&1)<<10 | uint16(cond)<<6 | uint16(u>>12)&0x3f
	hw2 = 0x8000 | uint16(u>>18&1)<<13 | uint16(u>>19&1)<<11 | uint16(u>>1)&0x7ff
	return
}

// encBT4 encodes B.W (encoding T4) or, with link, BL (encoding T1);
// 25-bit range with the J1/J2 bits folded against the sign.
func encBT4(off Offset, link bool) (hw1, hw2 uint16) {
	mustRange(off, -16777216, 16777214, 2)
	u := uint32(off)
	s := u >> 24 & 1
	j1 := ^(u>>23 ^ s) & 1
	j2 := ^(u>>22 ^ s) & 1
	hw1 = uint16(0xf000 | s<<10 | u>>12&0x3ff)
	base := uint16(0x9000)
	if link {
		base = 0xd000
	}
	hw2 = base | uint16(j1)<<13 | uint16(j2)<<11 | uint16(u>>1)&0x7ff
	return
}

// encBranchA32 encodes B or BL without the condition field.
func encBranchA32(off Offset, link bool) uint32 {
	mustRange(off, -0x02000000, 0x01fffffc, 4)
	base := uint32(0x0a000000)
	if link {
		base = 0x0b000000
	}
	return base | uint32(off>>2)&0xffffff
}

// encCbz encodes CBZ or CBNZ (forward only).
func encCbz(nz bool, rn Register, off Offset) uint16 {
	mustRange(off, 0, 126, 2)
	base := uint16(0xb100)
	if nz {
		base = 0xb900
	}
	return base | uint16(off>>6&1)<<9 | uint16(off>>1&0x1f)<<3 | uint16(rn)
}

// encLdrLitT2 encodes LDR (literal) T2 with a signed 12-bit offset.
func encLdrLitT2(rt Register, off Offset) (hw1, hw2 uint16) {
	mustRange(off, -4095, 4095, 1)
	hw1 = 0xf85f
	if off >= 0 {
		hw1 |= 1 << 7
	} else {
		off = -off
	}
	hw2 = uint16(rt)<<12 | uint16(off)
	return
}

// encLdrLitA32 encodes LDR (literal) without the condition field.
func encLdrLitA32(rt Register, off Offset) uint32 {
	mustRange(off, -4095, 4095, 1)
	u := uint32(1 << 23)
	if off < 0 {
		u, off = 0, -off
	}
	return 0x051f0000 | u | uint32(rt)<<12 | uint32(off)
}

// encLdrdLitT32 encodes LDRD (literal) T1.
func encLdrdLitT32(rt, rt2 Register, off Offset) (hw1, hw2 uint16) {
	mustRange(off, -1020, 1020, 4)
	hw1 = 0xe95f
	if off >= 0 {
		hw1 |= 1 << 7
	} else {
		off = -off
	}
	hw2 = uint16(rt)<<12 | uint16(rt2)<<8 | uint16(off/4)
	return
}

// encLdrdLitA32 encodes LDRD (literal) without the condition field.
func encLdrdLitA32(rt Register, off Offset) uint32 {
	mustRange(off, -255, 255, 1)
	u := uint32(1 << 23)
	if off < 0 {
		u, off = 0, -off
	}
	imm8 := uint32(off)
	return 0x014f00d0 | u | uint32(rt)<<12 | imm8&0xf0<<4 | imm8&0xf
}

// patchRef rewrites the offset fields of the instruction at ref.location so
// that it targets the given offset. Panics when the target is out of the
// encoding's reach.
func (a *Assembler) patchRef(ref *ForwardReference, target Offset) {
	off := target - ref.kind.pcFrom(ref.location)
	loc := int(ref.location)

	switch ref.kind {
	case refA32Branch:
		w := a.buf.GetUint32(loc)
		mustRange(off, -0x02000000, 0x01fffffc, 4)
		a.buf.SetUint32(loc, w&0xff000000|uint32(off>>2)&0xffffff)

	case refT32CondNarrow:
		hw := a.buf.GetUint16(loc)
		mustRange(off, -256, 254, 2)
		a.buf.SetUint16(loc, hw&0xff00|uint16(off>>1)&0xff)

	case refT32UncondNarrow:
		hw := a.buf.GetUint16(loc)
		mustRange(off, -2048, 2046, 2)
		a.buf.SetUint16(loc, hw&0xf800|uint16(off>>1)&0x7ff)

	case refT32CondWide:
		cond := Condition(a.buf.GetUint16(loc) >> 6 & 0xf)
		hw1, hw2 := encBT3(cond, off)
		a.buf.SetUint16(loc, hw1)
		a.buf.SetUint16(loc+2, hw2)

	case refT32UncondWide, refT32Bl:
		hw1, hw2 := encBT4(off, ref.kind == refT32Bl)
		a.buf.SetUint16(loc, hw1)
		a.buf.SetUint16(loc+2, hw2)

	case refT32Cbz:
		hw := a.buf.GetUint16(loc)
		mustRange(off, 0, 126, 2)
		a.buf.SetUint16(loc, hw&0xfd07|uint16(off>>6&1)<<9|uint16(off>>1&0x1f)<<3)

	case refT32LdrLitNarrow:
		hw := a.buf.GetUint16(loc)
		mustRange(off, 0, 1020, 4)
		a.buf.SetUint16(loc, hw&0xff00|uint16(off/4))

	case refT32LdrLitWide:
		rt := Register(a.buf.GetUint16(loc+2) >> 12)
		hw1, hw2 := encLdrLitT2(rt, off)
		a.buf.SetUint16(loc, hw1)
		a.buf.SetUint16(loc+2, hw2)

	case refA32LdrLit:
		w := a.buf.GetUint32(loc)
		rt := Register(w >> 12 & 0xf)
		a.buf.SetUint32(loc, w&0xff7ff000|encLdrLitA32(rt, off)&0x00800fff)

	case refT32LdrdLit:
		old := a.buf.GetUint16(loc + 2)
		rt := Register(old >> 12)
		rt2 := Register(old >> 8 & 0xf)
		hw1, hw2 := encLdrdLitT32(rt, rt2, off)
		a.buf.SetUint16(loc, hw1)
		a.buf.SetUint16(loc+2, hw2)

	case refA32LdrdLit:
		w := a.buf.GetUint32(loc)
		rt := Register(w >> 12 & 0xf)
		a.buf.SetUint32(loc, w&0xff7ff0f0|encLdrdLitA32(rt, off)&0x00800f0f)

	default:
		panic(ErrOperandInvalid)
	}
}
