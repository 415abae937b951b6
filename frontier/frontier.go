// Package frontier implements the logical time and frontier model used by
// the dataflow runtime. A frontier is an antichain of times: the minimal
// set of times that have not yet fully passed on an input or output. All
// progress reasoning in the runtime reduces to operations on antichains.
package frontier

// Time is the constraint for logical timestamps. Less is a strict partial
// order; Join returns the least upper bound of two times. The zero value of
// a Time type is its minimum and is used as the initial capability of every
// producer.
type Time[T any] interface {
	comparable
	Less(other T) bool
	Join(other T) T
}

// LessEqual reports whether a <= b under the partial order.
func LessEqual[T Time[T]](a, b T) bool {
	return a == b || a.Less(b)
}

// Antichain is a set of mutually incomparable times. The zero value is an
// empty antichain, which represents a fully closed frontier (no time can
// ever arrive).
type Antichain[T Time[T]] struct {
	elements []T
}

// NewAntichain creates an antichain from the given times, keeping only the
// minimal ones.
func NewAntichain[T Time[T]](times ...T) *Antichain[T] {
	a := &Antichain[T]{}
	for _, t := range times {
		a.Insert(t)
	}
	return a
}

// Insert adds t to the antichain unless some element is already <= t.
// Elements strictly greater than t are discarded. Returns true if t was
// added.
func (a *Antichain[T]) Insert(t T) bool {
	for _, e := range a.elements {
		if LessEqual(e, t) {
			return false
		}
	}
	kept := a.elements[:0]
	for _, e := range a.elements {
		if !t.Less(e) {
			kept = append(kept, e)
		}
	}
	a.elements = append(kept, t)
	return true
}

// LessEqual reports whether some element of the antichain is <= t. A true
// result means t has not passed the frontier: more data at t may still
// arrive.
func (a *Antichain[T]) LessEqual(t T) bool {
	for _, e := range a.elements {
		if LessEqual(e, t) {
			return true
		}
	}
	return false
}

// LessThan reports whether some element of the antichain is strictly < t.
func (a *Antichain[T]) LessThan(t T) bool {
	for _, e := range a.elements {
		if e.Less(t) {
			return true
		}
	}
	return false
}

// Elements returns the members of the antichain. The slice is owned by the
// antichain and must not be mutated.
func (a *Antichain[T]) Elements() []T {
	return a.elements
}

// Len returns the number of elements in the antichain.
func (a *Antichain[T]) Len() int {
	return len(a.elements)
}

// Equal reports whether two antichains contain the same elements.
func (a *Antichain[T]) Equal(b *Antichain[T]) bool {
	if len(a.elements) != len(b.elements) {
		return false
	}
	for _, e := range a.elements {
		found := false
		for _, f := range b.elements {
			if e == f {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Clone returns a copy of the antichain.
func (a *Antichain[T]) Clone() *Antichain[T] {
	c := &Antichain[T]{elements: make([]T, len(a.elements))}
	copy(c.elements, a.elements)
	return c
}

// Join merges two frontiers to their least upper bound: the frontier that
// has passed a time only when both a and b have passed it.
func Join[T Time[T]](a, b *Antichain[T]) *Antichain[T] {
	out := &Antichain[T]{}
	for _, x := range a.elements {
		for _, y := range b.elements {
			out.Insert(x.Join(y))
		}
	}
	return out
}

// Diff returns the unit deltas that transform frontier old into frontier
// next: -1 for each element leaving, +1 for each element entering.
func Diff[T Time[T]](old, next *Antichain[T]) []Delta[T] {
	var deltas []Delta[T]
	for _, t := range old.elements {
		if !contains(next.elements, t) {
			deltas = append(deltas, Delta[T]{Time: t, Diff: -1})
		}
	}
	for _, t := range next.elements {
		if !contains(old.elements, t) {
			deltas = append(deltas, Delta[T]{Time: t, Diff: 1})
		}
	}
	return deltas
}

func contains[T comparable](s []T, t T) bool {
	for _, e := range s {
		if e == t {
			return true
		}
	}
	return false
}

// Advances reports whether frontier a has moved past every element of b:
// no element of b is still at or beyond a. A notification request for time
// t is satisfied exactly when Advances(frontier, antichain{t}).
func Advances[T Time[T]](a, b *Antichain[T]) bool {
	for _, t := range b.elements {
		if a.LessEqual(t) {
			return false
		}
	}
	return true
}
