// Package event defines the stream of things an operator observes: data
// messages and progress updates. Captured computations are persisted as a
// sequence of encoded events, and replayed computations are reconstructed
// from them, so the encoding must round-trip exactly.
package event

import "github.com/tarungka/loom/frontier"

// Event is either a Message or a Progress update.
type Event[T frontier.Time[T], D any] interface {
	isEvent()
}

// Message carries a batch of records sharing one time.
type Message[T frontier.Time[T], D any] struct {
	Time T
	Data []D
}

func (Message[T, D]) isEvent() {}

// Progress carries a batch of frontier deltas. Over the lifetime of a
// capture the deltas for any time sum to zero once the time is fully
// retired.
type Progress[T frontier.Time[T], D any] struct {
	Deltas []frontier.Delta[T]
}

func (Progress[T, D]) isEvent() {}
