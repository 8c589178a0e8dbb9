// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package aarch32

import (
	"encoding/binary"
	"iter"
)

// DeletionPolicy says who releases a literal once it has been placed.
type DeletionPolicy int

//go:generate go tool stringer -linecomment -type=DeletionPolicy
const (
	DeletedOnPlacementByPool = DeletionPolicy(0) // placement
	DeletedOnPoolDestruction = DeletionPolicy(1) // teardown
	ManuallyDeleted          = DeletionPolicy(2) // manual
)

// RawLiteral is a constant waiting to be placed into the code stream. It is
// a Label over its eventual location, plus the payload and pool bookkeeping.
type RawLiteral struct {
	Label

	data      []byte
	alignment Offset
	policy    DeletionPolicy

	// Position of the literal within the pool, OFFSET_MAX until pooled.
	positionInPool Offset
	// Forward reach of the most recent referencing instruction.
	lastInsertDistance Offset
}

// NewRawLiteral wraps an arbitrary byte payload. Alignment must be a power
// of two no larger than 4.
func NewRawLiteral(data []byte, alignment Offset, policy DeletionPolicy) *RawLiteral {
	if alignment <= 0 || alignment > 4 || alignment&(alignment-1) != 0 {
		panic(ErrOperandInvalid)
	}
	return &RawLiteral{
		data:               data,
		alignment:          alignment,
		policy:             policy,
		positionInPool:     OFFSET_MAX,
		lastInsertDistance: OFFSET_MAX,
	}
}

// NewLiteral32 wraps a 32-bit constant.
func NewLiteral32(v uint32, policy DeletionPolicy) *RawLiteral {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, v)
	return NewRawLiteral(data, 4, policy)
}

// NewLiteral64 wraps a 64-bit constant.
func NewLiteral64(v uint64, policy DeletionPolicy) *RawLiteral {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, v)
	return NewRawLiteral(data, 4, policy)
}

func (lit *RawLiteral) Data() []byte           { return lit.data }
func (lit *RawLiteral) Size() Offset           { return Offset(len(lit.data)) }
func (lit *RawLiteral) Alignment() Offset      { return lit.alignment }
func (lit *RawLiteral) Policy() DeletionPolicy { return lit.policy }
func (lit *RawLiteral) PositionInPool() Offset { return lit.positionInPool }
func (lit *RawLiteral) IsPlaced() bool         { return lit.IsBound() }

// AlignedSize is the size rounded up to the pool granularity.
func (lit *RawLiteral) AlignedSize() Offset {
	return alignUp(lit.Size(), 4)
}

// AlignedCheckpoint rounds the literal's checkpoint down to align bytes.
func (lit *RawLiteral) AlignedCheckpoint(align Offset) Offset {
	return alignDown(lit.checkpoint, align)
}

// LastInsertForwardDistance is the forward reach of the most recent
// referencing instruction, from its observed PC.
func (lit *RawLiteral) LastInsertForwardDistance() Offset {
	return lit.lastInsertDistance
}

// InvalidateLastForwardReference drops the bookkeeping of the most recent
// referencing instruction after its speculative bytes were rewound.
func (lit *RawLiteral) InvalidateLastForwardReference() {
	lit.dropBackForwardRef()
	lit.lastInsertDistance = OFFSET_MAX
	lit.UpdateCheckpoint()
}

// setPositionInPool stamps the literal's slot; only the pool calls this.
func (lit *RawLiteral) setPositionInPool(position Offset) {
	lit.positionInPool = position
}

// LiteralPool is the insertion-ordered collection of not-yet-placed
// literals.
type LiteralPool struct {
	size     Offset
	literals []*RawLiteral

	// Placed literals the pool must keep alive until Close.
	keepUntilDelete []*RawLiteral
}

// Size returns the aggregate aligned size of the pooled literals.
func (pool *LiteralPool) Size() Offset { return pool.size }

// IsEmpty returns true when no literal awaits placement.
func (pool *LiteralPool) IsEmpty() bool { return len(pool.literals) == 0 }

// AddLiteral appends at the tail, stamping the literal's position as the
// pool's current size.
func (pool *LiteralPool) AddLiteral(lit *RawLiteral) (position Offset) {
	position = pool.size
	lit.setPositionInPool(position)
	pool.literals = append(pool.literals, lit)
	pool.size += lit.AlignedSize()
	return
}

// Literals iterates the pool in insertion order.
func (pool *LiteralPool) Literals() iter.Seq[*RawLiteral] {
	return func(yield func(*RawLiteral) bool) {
		for _, lit := range pool.literals {
			if !yield(lit) {
				return
			}
		}
	}
}

// Clear empties the pool, applying each literal's deletion policy.
// Teardown-policy literals are parked until Close.
func (pool *LiteralPool) Clear() {
	for _, lit := range pool.literals {
		switch lit.policy {
		case DeletedOnPlacementByPool:
			// Dropped; the pool held the only reference.
		case DeletedOnPoolDestruction:
			pool.keepUntilDelete = append(pool.keepUntilDelete, lit)
		case ManuallyDeleted:
			// Caller-owned.
		}
	}
	pool.literals = nil
	pool.size = 0
}

// Close tears the pool down. Destroying a pool with unplaced literals is a
// programming error.
func (pool *LiteralPool) Close() {
	if len(pool.literals) != 0 || pool.size != 0 {
		panic(ErrPoolNotEmpty)
	}
	pool.keepUntilDelete = nil
}
