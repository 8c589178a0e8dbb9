// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package aarch32

// literalPoolManager tracks how long the pending literal pool can be
// deferred. Its checkpoint is the buffer offset by which the pool must be
// emitted so that every referencing instruction still reaches its literal,
// assuming the pool lands in insertion order.
type literalPoolManager struct {
	pool       LiteralPool
	checkpoint Offset
}

func (m *literalPoolManager) Pool() *LiteralPool { return &m.pool }

func (m *literalPoolManager) resetCheckpoint() { m.checkpoint = OFFSET_MAX }

// Checkpoint leaves a margin for the instruction that trips the check.
func (m *literalPoolManager) Checkpoint() Offset {
	if m.pool.IsEmpty() {
		return OFFSET_MAX
	}
	return m.checkpoint - MAX_INSTRUCTION_SIZE
}

// AddLiteral pools an unplaced literal, once.
func (m *literalPoolManager) AddLiteral(lit *RawLiteral) {
	if !lit.IsPlaced() && lit.PositionInPool() == OFFSET_MAX {
		m.pool.AddLiteral(lit)
	}
}

// UpdateCheckpoint folds lit's tightest reference into the manager's
// checkpoint, discounted by the literal's slot within the pool.
func (m *literalPoolManager) UpdateCheckpoint(lit *RawLiteral) {
	lit.Label.UpdateCheckpoint()
	m.checkpoint = min(m.checkpoint, lit.AlignedCheckpoint(4)-lit.PositionInPool())
}

// IsInsertTooFar reports whether the reference just emitted at from could
// leave lit unreachable once the whole pool sits behind the current code.
// The estimate is pessimistic on purpose: a false positive costs one early
// flush, a false negative an unencodable offset.
func (m *literalPoolManager) IsInsertTooFar(lit *RawLiteral, from Offset) bool {
	checkpoint := from + lit.LastInsertForwardDistance()
	checkpoint = min(checkpoint, lit.Checkpoint())
	return alignDown(checkpoint, 4) < from+m.pool.Size()+MAX_INSTRUCTION_SIZE
}
