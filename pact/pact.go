// Package pact defines the partitioning contracts that decide, per record,
// which worker receives it.
package pact

import "github.com/tarungka/loom/frontier"

// Pact routes a single record to a destination worker index in [0, peers).
// Route must be deterministic: the same record with the same peer count
// always yields the same destination. The runtime does not validate this; a
// non-deterministic routing function silently produces duplicate or missing
// aggregation results downstream.
type Pact[T frontier.Time[T], D any] interface {
	Route(peers int, worker int, t T, d D) int
}

// Pipeline keeps every record on the worker that produced it. No hashing,
// no cross-worker traffic.
type Pipeline[T frontier.Time[T], D any] struct{}

func (Pipeline[T, D]) Route(peers int, worker int, t T, d D) int {
	return worker
}

// Exchange routes each record to worker KeyFn(d) mod peers. KeyFn must be
// pure: the same logical key must always map to the same worker for
// downstream aggregation to be correct.
type Exchange[T frontier.Time[T], D any] struct {
	KeyFn func(D) uint64
}

// NewExchange creates an Exchange pact from a key function.
func NewExchange[T frontier.Time[T], D any](keyFn func(D) uint64) Exchange[T, D] {
	return Exchange[T, D]{KeyFn: keyFn}
}

func (e Exchange[T, D]) Route(peers int, worker int, t T, d D) int {
	return int(e.KeyFn(d) % uint64(peers))
}
