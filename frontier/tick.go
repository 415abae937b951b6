package frontier

// Tick is the standard totally ordered time. Computations that do not need
// a custom partial order should use it.
type Tick uint64

// Less reports whether t precedes other.
func (t Tick) Less(other Tick) bool {
	return t < other
}

// Join returns the later of the two ticks.
func (t Tick) Join(other Tick) Tick {
	if t < other {
		return other
	}
	return t
}
