// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package aarch32

// veneerPoolManager tracks unbound branch targets whose short encodings
// may run out of reach. When a label's tightest reference nears expiry, an
// unconditional full-range branch (the veneer) is emitted and the short
// branches are retargeted at it; the label stays pooled with the veneer's
// far more relaxed checkpoint.
type veneerPoolManager struct {
	labels     []*Label
	checkpoint Offset
}

func (m *veneerPoolManager) isEmpty() bool { return len(m.labels) == 0 }

// Checkpoint reserves room for one veneer per pooled label, so the pool
// can always be emitted in full at the trip point.
func (m *veneerPoolManager) Checkpoint() Offset {
	if len(m.labels) == 0 {
		return OFFSET_MAX
	}
	return m.checkpoint - Offset(len(m.labels))*MAX_INSTRUCTION_SIZE
}

// AddLabel registers the unbound target of the branch just emitted. Adding
// a label twice only folds the new reference's checkpoint.
func (m *veneerPoolManager) AddLabel(label *Label) {
	label.GetBackForwardRef().SetIsBranch()
	if !label.IsInVeneerPool() {
		label.SetInVeneerPool()
		m.labels = append(m.labels, label)
	}
	label.UpdateCheckpoint()
	m.checkpoint = min(m.checkpoint, label.Checkpoint())
}

// RemoveLabel forgets a label, typically because it was bound. Removing a
// label that is not pooled is a no-op.
func (m *veneerPoolManager) RemoveLabel(label *Label) {
	if !label.IsInVeneerPool() {
		return
	}
	label.clearInVeneerPool()
	for n, l := range m.labels {
		if l == label {
			m.labels = append(m.labels[:n], m.labels[n+1:]...)
			break
		}
	}
	m.recomputeCheckpoint()
}

// emit writes veneers for every pooled label whose references could expire
// by target, counting the veneers themselves against the distance. The
// caller has already branched around the pool.
func (m *veneerPoolManager) emit(a *Assembler, target Offset) {
	margin := Offset(len(m.labels)+1) * MAX_INSTRUCTION_SIZE
	for _, label := range m.labels {
		label.UpdateCheckpoint()
		if label.Checkpoint() >= target+margin {
			continue
		}
		a.resolveRefsHere(label)
		a.B(AL, Best, label)
		label.GetBackForwardRef().SetIsBranch()
		label.UpdateCheckpoint()
	}
	m.recomputeCheckpoint()
}

func (m *veneerPoolManager) recomputeCheckpoint() {
	m.checkpoint = OFFSET_MAX
	for _, label := range m.labels {
		m.checkpoint = min(m.checkpoint, label.Checkpoint())
	}
}
