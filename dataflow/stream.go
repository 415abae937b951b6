package dataflow

import (
	"github.com/tarungka/loom/frontier"
)

// routeFn decides the destination worker for one record, for one consumer
// edge. The partitioning decision is made per edge: a stream with several
// consumers routes (and clones) each batch once per consumer.
type routeFn[T frontier.Time[T], D any] func(peers int, worker int, t T, d D) int

// consumerReg is a producer-side registration of one consumer node: its
// routing function and its per-worker mailboxes.
type consumerReg[T frontier.Time[T], D any] struct {
	route routeFn[T, D]
	boxes []*mailbox[T, D]
}

// edge is the local view of one stream's consumer set. Every worker builds
// an identical edge as part of constructing the graph.
type edge[T frontier.Time[T], D any] struct {
	consumers []*consumerReg[T, D]
}

// Stream is a progress-tracked flow of (time, batch) pairs produced by one
// operator or input. Attaching an operator to a Stream must happen during
// graph construction, before any input advances.
type Stream[T frontier.Time[T], D any] struct {
	w    *Worker
	edge *edge[T, D]
}

// outputPort is the producing end of an edge on one worker. It routes data
// batches to consumer mailboxes and broadcasts the producer's frontier
// changes to every worker. The reported frontier starts at the zero time,
// the implicit initial capability of every producer; consumers account for
// this by seeding their input frontier with one zero per producer.
type outputPort[T frontier.Time[T], D any] struct {
	w        *Worker
	edge     *edge[T, D]
	reported *frontier.Antichain[T]
}

func newOutputPort[T frontier.Time[T], D any](w *Worker) (*outputPort[T, D], *Stream[T, D]) {
	var zero T
	e := &edge[T, D]{}
	p := &outputPort[T, D]{
		w:        w,
		edge:     e,
		reported: frontier.NewAntichain(zero),
	}
	return p, &Stream[T, D]{w: w, edge: e}
}

// sendBatch routes one batch to each consumer of the edge, splitting it per
// destination worker.
func (p *outputPort[T, D]) sendBatch(t T, data []D) {
	if len(data) == 0 {
		return
	}
	for _, c := range p.edge.consumers {
		groups := make(map[int][]D)
		for _, d := range data {
			dest := c.route(p.w.peers, p.w.index, t, d)
			groups[dest] = append(groups[dest], d)
		}
		for dest, batch := range groups {
			c.boxes[dest].push(message[T, D]{
				from:   p.w.index,
				isData: true,
				time:   t,
				data:   batch,
			})
		}
	}
}

// report broadcasts the change from the previously reported frontier to
// implied, to every worker's mailbox of every consumer. Data already queued
// in a mailbox is always ahead of the broadcast that retires its time.
func (p *outputPort[T, D]) report(implied *frontier.Antichain[T]) {
	deltas := frontier.Diff(p.reported, implied)
	if len(deltas) == 0 {
		return
	}
	p.reported = implied.Clone()
	for _, c := range p.edge.consumers {
		for _, box := range c.boxes {
			box.push(message[T, D]{from: p.w.index, deltas: deltas})
		}
	}
}

// closed reports whether the producer has retired all capabilities.
func (p *outputPort[T, D]) closedOut() bool {
	return p.reported.Len() == 0
}
