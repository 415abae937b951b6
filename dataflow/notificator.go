package dataflow

import (
	"sort"

	"github.com/tarungka/loom/frontier"
)

// Notificator tracks, per operator, the times the operator asked to be
// told about. A requested time fires exactly once, and only after the
// input frontier no longer has any element at or below it: at that point
// no future batch can carry the time or an earlier one.
type Notificator[T frontier.Time[T]] struct {
	fr         *frontier.MutableAntichain[T]
	pending    []T
	pendingSet map[T]struct{}
	sources    int
}

func newNotificator[T frontier.Time[T]](fr *frontier.MutableAntichain[T], sources int) *Notificator[T] {
	return &Notificator[T]{
		fr:         fr,
		pendingSet: make(map[T]struct{}),
		sources:    sources,
	}
}

// NotifyAt registers interest in time t. Repeated calls for the same time
// coalesce: the time fires once no matter how many requests were made.
func (n *Notificator[T]) NotifyAt(t T) {
	if _, ok := n.pendingSet[t]; ok {
		return
	}
	n.pendingSet[t] = struct{}{}
	n.pending = append(n.pending, t)
}

// ready reports whether any pending request is satisfied by the current
// frontier.
func (n *Notificator[T]) ready() bool {
	for _, t := range n.pending {
		if !n.fr.LessEqual(t) {
			return true
		}
	}
	return false
}

// pendingTimes returns the not-yet-fired requests. The slice is owned by
// the notificator.
func (n *Notificator[T]) pendingTimes() []T {
	return n.pending
}

// ForEach delivers every newly satisfied request exactly once, ordered by
// time with arrival order breaking ties between incomparable times. count
// is the number of upstream producer instances whose completion of the
// time was observed; it is diagnostic only. Requests registered during a
// callback are evaluated in the same pass.
func (n *Notificator[T]) ForEach(fn func(t T, count int)) {
	fired := make(map[T]struct{})
	for {
		var fire []T
		kept := n.pending[:0]
		for _, t := range n.pending {
			_, already := fired[t]
			if !already && !n.fr.LessEqual(t) {
				fire = append(fire, t)
			} else {
				kept = append(kept, t)
			}
		}
		if len(fire) == 0 {
			return
		}
		n.pending = kept
		for _, t := range fire {
			delete(n.pendingSet, t)
		}
		sort.SliceStable(fire, func(i, j int) bool { return fire[i].Less(fire[j]) })
		for _, t := range fire {
			fired[t] = struct{}{}
			fn(t, n.sources)
		}
	}
}
