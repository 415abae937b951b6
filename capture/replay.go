package capture

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tarungka/loom/dataflow"
	"github.com/tarungka/loom/event"
	"github.com/tarungka/loom/frontier"
)

// partitionState tracks one replayed source partition: the counts of every
// time it still holds, accumulated from the progress events it forwarded.
// A captured partition's progress history runs from {zero} to empty and
// sums to zero per time, so outstanding drains exactly when the partition
// has been fully replayed.
type partitionState[T frontier.Time[T]] struct {
	outstanding map[T]int64
	seeded      bool
	dead        bool
}

// Replay reconstructs a progress-tracked stream from one or more captured
// partitions, inside a computation whose worker count may differ from the
// capturing one. Each consumer acts as an independent producer: its
// Message events are re-emitted as batches and its Progress deltas are
// forwarded verbatim, so the merged stream - summed over all replaying
// workers - reproduces the original multiset of records and the original
// frontier behavior regardless of how partitions are distributed.
//
// A partition that ends early (transport failure, malformed record)
// retires whatever times it still held: the rest of the computation keeps
// running with whatever data arrived.
func Replay[T frontier.Time[T], D any](
	ctx context.Context,
	w *dataflow.Worker,
	name string,
	consumers []*Consumer[T, D],
) *dataflow.Stream[T, D] {
	var zero T
	states := make([]*partitionState[T], len(consumers))
	for i := range states {
		states[i] = &partitionState[T]{outstanding: make(map[T]int64)}
	}
	retired := false

	return dataflow.RawSource(w, name, func(out *dataflow.RawOutput[T, D]) (bool, bool) {
		active := false
		for i, c := range consumers {
			if states[i].dead {
				continue
			}
			if stepPartition(ctx, c, states[i], out) {
				active = true
			}
		}

		// This worker's own implicit capability is retired once every
		// partition has registered its initial capability (or died
		// before doing so); dropping it earlier could let the
		// downstream frontier advance past times a partition is about
		// to claim.
		if !retired {
			allSeeded := true
			for _, st := range states {
				if !st.seeded && !st.dead {
					allSeeded = false
					break
				}
			}
			if allSeeded {
				retired = true
				active = true
				out.Broadcast([]frontier.Delta[T]{{Time: zero, Diff: -1}})
			}
		}

		done := retired
		for _, st := range states {
			if !st.dead {
				done = false
			}
		}
		return active, done
	})
}

// stepPartition drains everything currently available from one partition.
// Returns whether it did any work.
func stepPartition[T frontier.Time[T], D any](
	ctx context.Context,
	c *Consumer[T, D],
	st *partitionState[T],
	out *dataflow.RawOutput[T, D],
) bool {
	active := false
	for {
		ev, err := c.Next(ctx)
		if err != nil {
			// End of partition, graceful or not: retire every time
			// this partition still holds so the frontier can close.
			var deltas []frontier.Delta[T]
			for t, n := range st.outstanding {
				deltas = append(deltas, frontier.Delta[T]{Time: t, Diff: -n})
			}
			out.Broadcast(deltas)
			st.outstanding = nil
			st.dead = true
			closeConsumer(c)
			return true
		}
		if ev == nil {
			return active
		}
		active = true

		switch v := ev.(type) {
		case event.Message[T, D]:
			out.SendBatch(v.Time, v.Data)
		case event.Progress[T, D]:
			out.Broadcast(v.Deltas)
			st.seeded = true
			for _, d := range v.Deltas {
				n := st.outstanding[d.Time] + d.Diff
				if n == 0 {
					delete(st.outstanding, d.Time)
				} else {
					st.outstanding[d.Time] = n
				}
			}
			if len(st.outstanding) == 0 {
				// Fully replayed: the captured history has drained to
				// an empty frontier.
				st.dead = true
				closeConsumer(c)
				return true
			}
		}
	}
}

func closeConsumer[T frontier.Time[T], D any](c *Consumer[T, D]) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Str("partition", c.Name()).Msg("failed to close replay consumer")
	}
}
