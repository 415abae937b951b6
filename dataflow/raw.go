package dataflow

import (
	"github.com/rs/zerolog/log"

	"github.com/tarungka/loom/frontier"
	"github.com/tarungka/loom/pact"
)

// sinkNode consumes a stream and hands batches and consolidated frontier
// changes to callbacks. It is the attachment point for capture.
type sinkNode[T frontier.Time[T], D any] struct {
	name       string
	core       *consumerCore[T, D]
	prev       *frontier.Antichain[T]
	onBatch    func(t T, data []D) error
	onProgress func(deltas []frontier.Delta[T]) error
	onClose    func() error
	closed     bool
}

// Sink attaches a terminal consumer to a stream. onBatch observes every
// batch delivered to this worker; onProgress observes every change to the
// input frontier as unit deltas. The first report is made during
// construction and carries the initial zero capability, so the observed
// history always runs from {zero} to empty and its deltas sum to zero per
// time. onClose runs once, after the frontier has drained; it is the one
// place a node may block. Callback errors are fatal to the computation.
func Sink[T frontier.Time[T], D any](
	in *Stream[T, D],
	p pact.Pact[T, D],
	name string,
	onBatch func(t T, data []D) error,
	onProgress func(deltas []frontier.Delta[T]) error,
	onClose func() error,
) {
	w := in.w
	core := attachConsumer(w, in, p.Route)
	var zero T
	n := &sinkNode[T, D]{
		name:       name,
		core:       core,
		prev:       frontier.NewAntichain(zero),
		onBatch:    onBatch,
		onProgress: onProgress,
		onClose:    onClose,
	}
	// The initial zero capability is reported up front so that a consumer
	// of the callback stream always sees the frontier history start from
	// {zero}, ahead of any data.
	if err := onProgress([]frontier.Delta[T]{{Time: zero, Diff: 1}}); err != nil {
		log.Panic().Err(err).Str("operator", name).Msg("sink progress callback failed")
	}
	w.nodes = append(w.nodes, n)
}

func (n *sinkNode[T, D]) opName() string { return n.name }

func (n *sinkNode[T, D]) schedule() bool {
	if n.closed {
		return false
	}
	msgs := n.core.inbox.drain()
	var deltas []frontier.Delta[T]
	for _, m := range msgs {
		if m.isData {
			if err := n.onBatch(m.time, m.data); err != nil {
				log.Panic().Err(err).Str("operator", n.name).Msg("sink batch callback failed")
			}
		} else {
			deltas = append(deltas, m.deltas...)
		}
	}
	n.core.fr.UpdateAll(deltas)

	cur := n.core.fr.Frontier()
	if !cur.Equal(n.prev) {
		diff := frontier.Diff(n.prev, cur)
		n.prev = cur.Clone()
		if err := n.onProgress(diff); err != nil {
			log.Panic().Err(err).Str("operator", n.name).Msg("sink progress callback failed")
		}
	}

	if cur.Len() == 0 && n.core.inbox.empty() {
		n.closed = true
		if err := n.onClose(); err != nil {
			log.Panic().Err(err).Str("operator", n.name).Msg("sink close failed")
		}
	}
	return len(msgs) > 0
}

func (n *sinkNode[T, D]) done() bool {
	return n.closed && n.core.inbox.empty()
}

// rawNode is a source scheduled every pass; its body emits batches and raw
// progress deltas without capability checks. It is the attachment point
// for replay, which forwards a captured progress history verbatim.
type rawNode[T frontier.Time[T], D any] struct {
	name     string
	w        *Worker
	port     *outputPort[T, D]
	body     func(out *RawOutput[T, D]) (active bool, done bool)
	finished bool
}

// RawOutput is the emission surface handed to a RawSource body.
type RawOutput[T frontier.Time[T], D any] struct {
	node *rawNode[T, D]
}

// SendBatch routes one batch to the stream's consumers.
func (o *RawOutput[T, D]) SendBatch(t T, data []D) {
	o.node.port.sendBatch(t, data)
}

// Broadcast forwards raw progress deltas to every worker's instance of
// every consumer. The body is responsible for keeping the deltas
// consistent: a source that broadcasts a net negative count for a time it
// never held corrupts the downstream frontier.
func (o *RawOutput[T, D]) Broadcast(deltas []frontier.Delta[T]) {
	if len(deltas) == 0 {
		return
	}
	n := o.node
	for _, c := range n.port.edge.consumers {
		for _, box := range c.boxes {
			box.push(message[T, D]{from: n.w.index, deltas: deltas})
		}
	}
}

// RawSource builds a source whose body is polled once per scheduling pass
// until it reports done. active indicates whether the body made progress
// this pass; an idle computation backs off briefly between passes.
func RawSource[T frontier.Time[T], D any](
	w *Worker,
	name string,
	body func(out *RawOutput[T, D]) (active bool, done bool),
) *Stream[T, D] {
	port, out := newOutputPort[T, D](w)
	n := &rawNode[T, D]{name: name, w: w, port: port, body: body}
	w.nodes = append(w.nodes, n)
	return out
}

func (n *rawNode[T, D]) opName() string { return n.name }

func (n *rawNode[T, D]) schedule() bool {
	if n.finished {
		return false
	}
	active, finished := n.body(&RawOutput[T, D]{node: n})
	n.finished = finished
	return active
}

func (n *rawNode[T, D]) done() bool {
	return n.finished
}
