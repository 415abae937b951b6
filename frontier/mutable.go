package frontier

// Delta is a single change to the multiset of outstanding times: Diff
// copies of Time appear (+) or are retired (-).
type Delta[T Time[T]] struct {
	Time T
	Diff int64
}

// MutableAntichain accumulates (time, count) deltas from any number of
// producers and maintains the implied frontier: the minimal times whose
// accumulated count is positive. Counts for a fully retired time sum to
// zero, at which point the time leaves the frontier and can never return
// as long as producers only report deltas for times they still hold.
type MutableAntichain[T Time[T]] struct {
	counts   map[T]int64
	frontier Antichain[T]
}

// NewMutableAntichain creates an empty MutableAntichain. Its frontier is
// empty until the first positive delta arrives.
func NewMutableAntichain[T Time[T]]() *MutableAntichain[T] {
	return &MutableAntichain[T]{counts: make(map[T]int64)}
}

// Frontier returns the current implied frontier.
func (m *MutableAntichain[T]) Frontier() *Antichain[T] {
	return &m.frontier
}

// LessEqual reports whether the current frontier has an element <= t.
func (m *MutableAntichain[T]) LessEqual(t T) bool {
	return m.frontier.LessEqual(t)
}

// UpdateAll applies a batch of deltas and recomputes the frontier.
// Returns true if the frontier changed.
func (m *MutableAntichain[T]) UpdateAll(deltas []Delta[T]) bool {
	if len(deltas) == 0 {
		return false
	}
	for _, d := range deltas {
		n := m.counts[d.Time] + d.Diff
		if n == 0 {
			delete(m.counts, d.Time)
		} else {
			m.counts[d.Time] = n
		}
	}
	return m.rebuild()
}

// Update applies a single delta. Returns true if the frontier changed.
func (m *MutableAntichain[T]) Update(t T, diff int64) bool {
	return m.UpdateAll([]Delta[T]{{Time: t, Diff: diff}})
}

func (m *MutableAntichain[T]) rebuild() bool {
	next := Antichain[T]{}
	for t, n := range m.counts {
		if n > 0 {
			next.Insert(t)
		}
	}
	if next.Equal(&m.frontier) {
		return false
	}
	m.frontier = next
	return true
}
