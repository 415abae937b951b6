package dataflow

import (
	"fmt"

	"github.com/tarungka/loom/frontier"
	"github.com/tarungka/loom/pact"
)

// queuedBatch is a delivered batch not yet taken by the operator body.
type queuedBatch[T frontier.Time[T], D any] struct {
	time T
	data []D
}

// consumerCore is the receiving end of one edge on one worker: the mailbox,
// the input frontier accumulated from every producer instance, and the
// queue of delivered batches. The frontier is seeded with one zero time per
// producer instance, matching each producer's implicit initial capability.
type consumerCore[T frontier.Time[T], D any] struct {
	inbox   *mailbox[T, D]
	fr      *frontier.MutableAntichain[T]
	queued  []queuedBatch[T, D]
	changed bool
}

// attachConsumer registers a new consumer node on a stream's edge and
// returns its core. Must be called during graph construction.
func attachConsumer[T frontier.Time[T], D any](w *Worker, s *Stream[T, D], route routeFn[T, D]) *consumerCore[T, D] {
	id := w.nextNodeID()
	boxes := boxesFor[T, D](w.fabric, id)
	s.edge.consumers = append(s.edge.consumers, &consumerReg[T, D]{route: route, boxes: boxes})

	var zero T
	fr := frontier.NewMutableAntichain[T]()
	fr.Update(zero, int64(w.peers))
	return &consumerCore[T, D]{inbox: boxes[w.index], fr: fr}
}

// drainQueue pulls everything out of the mailbox: batches join the queue,
// progress deltas are applied to the input frontier. Because each producer
// sends data ahead of the progress update retiring its time, once a time
// leaves the frontier every batch at or below it is already queued.
func (c *consumerCore[T, D]) drainQueue() bool {
	msgs := c.inbox.drain()
	if len(msgs) == 0 {
		return false
	}
	var deltas []frontier.Delta[T]
	for _, m := range msgs {
		if m.isData {
			c.queued = append(c.queued, queuedBatch[T, D]{time: m.time, data: m.data})
		} else {
			deltas = append(deltas, m.deltas...)
		}
	}
	if c.fr.UpdateAll(deltas) {
		c.changed = true
	}
	return true
}

// InputHandle gives an operator body access to the batches delivered to
// this worker, a finite sequence per activation. Next hands over ownership
// of each batch.
type InputHandle[T frontier.Time[T], D any] struct {
	core *consumerCore[T, D]
}

// Next returns the next delivered (time, batch) pair, or ok=false when the
// activation's input is exhausted.
func (h *InputHandle[T, D]) Next() (T, []D, bool) {
	if len(h.core.queued) == 0 {
		var zero T
		return zero, nil, false
	}
	b := h.core.queued[0]
	h.core.queued = h.core.queued[1:]
	return b.time, b.data, true
}

// OutputHandle lets an operator body emit records, scoped to sessions. A
// session may only be opened at a time the operator still holds a
// capability for: an input frontier element, a queued batch time, or a
// pending notification.
type OutputHandle[T frontier.Time[T], D any] struct {
	name string
	port *outputPort[T, D]
	caps *frontier.Antichain[T]
	cur  *Session[T, D]
}

// Session opens (or resumes) an append-only sink scoped to time t. Opening
// a session at a different time flushes the previous one; all sessions are
// flushed when the activation returns.
func (o *OutputHandle[T, D]) Session(t T) *Session[T, D] {
	if !o.caps.LessEqual(t) {
		panic(fmt.Sprintf("dataflow: operator %q opened a session at %v without a capability", o.name, t))
	}
	if o.cur != nil {
		if o.cur.time == t {
			return o.cur
		}
		o.cur.flush()
	}
	o.cur = &Session[T, D]{out: o, time: t}
	return o.cur
}

func (o *OutputHandle[T, D]) flushAll() {
	if o.cur != nil {
		o.cur.flush()
		o.cur = nil
	}
}

// Session buffers records for one time and flushes them as a single batch.
type Session[T frontier.Time[T], D any] struct {
	out    *OutputHandle[T, D]
	time   T
	buf    []D
	closed bool
}

// Give appends one record to the session.
func (s *Session[T, D]) Give(d D) {
	if s.closed {
		panic("dataflow: give on a flushed session")
	}
	s.buf = append(s.buf, d)
}

// GiveSlice appends a batch of records to the session.
func (s *Session[T, D]) GiveSlice(ds []D) {
	if s.closed {
		panic("dataflow: give on a flushed session")
	}
	s.buf = append(s.buf, ds...)
}

func (s *Session[T, D]) flush() {
	if s.closed {
		return
	}
	s.closed = true
	s.out.port.sendBatch(s.time, s.buf)
	s.buf = nil
}

// unaryNode is a one-input one-output operator instance.
type unaryNode[T frontier.Time[T], D1, D2 any] struct {
	w          *Worker
	name       string
	core       *consumerCore[T, D1]
	port       *outputPort[T, D2]
	not        *Notificator[T]
	bodyPlain  func(*InputHandle[T, D1], *OutputHandle[T, D2])
	bodyNotify func(*InputHandle[T, D1], *OutputHandle[T, D2], *Notificator[T])
}

// Unary builds a one-input one-output operator. The body is invoked
// whenever batches have been delivered; it drains the input handle and
// appends to output sessions.
func Unary[T frontier.Time[T], D1, D2 any](
	in *Stream[T, D1],
	p pact.Pact[T, D1],
	name string,
	body func(in *InputHandle[T, D1], out *OutputHandle[T, D2]),
) *Stream[T, D2] {
	w := in.w
	core := attachConsumer(w, in, p.Route)
	port, out := newOutputPort[T, D2](w)
	n := &unaryNode[T, D1, D2]{w: w, name: name, core: core, port: port, bodyPlain: body}
	w.nodes = append(w.nodes, n)
	return out
}

// UnaryNotify builds a one-input one-output operator with a notificator.
// initial notification requests are installed before the first invocation.
// The body is invoked when batches have been delivered or a requested
// notification has become ready.
func UnaryNotify[T frontier.Time[T], D1, D2 any](
	in *Stream[T, D1],
	p pact.Pact[T, D1],
	name string,
	initial []T,
	body func(in *InputHandle[T, D1], out *OutputHandle[T, D2], not *Notificator[T]),
) *Stream[T, D2] {
	w := in.w
	core := attachConsumer(w, in, p.Route)
	port, out := newOutputPort[T, D2](w)
	n := &unaryNode[T, D1, D2]{w: w, name: name, core: core, port: port, bodyNotify: body}
	n.not = newNotificator(core.fr, w.peers)
	for _, t := range initial {
		n.not.NotifyAt(t)
	}
	w.nodes = append(w.nodes, n)
	return out
}

func (n *unaryNode[T, D1, D2]) opName() string { return n.name }

func (n *unaryNode[T, D1, D2]) schedule() bool {
	drained := n.core.drainQueue()

	invoke := len(n.core.queued) > 0
	if n.not != nil && n.not.ready() {
		invoke = true
	}
	if invoke {
		out := &OutputHandle[T, D2]{name: n.name, port: n.port, caps: n.capabilities()}
		in := &InputHandle[T, D1]{core: n.core}
		if n.bodyNotify != nil {
			n.bodyNotify(in, out, n.not)
		} else {
			n.bodyPlain(in, out)
		}
		out.flushAll()
	}
	n.core.changed = false

	n.port.report(n.implied())
	return drained || invoke
}

// capabilities is the set of times the operator may open output sessions
// at during this activation.
func (n *unaryNode[T, D1, D2]) capabilities() *frontier.Antichain[T] {
	caps := frontier.NewAntichain(n.core.fr.Frontier().Elements()...)
	if n.not != nil {
		for _, t := range n.not.pendingTimes() {
			caps.Insert(t)
		}
	}
	for _, b := range n.core.queued {
		caps.Insert(b.time)
	}
	return caps
}

// implied is the operator's output frontier: no batch can ever leave this
// operator at a time earlier than one of its elements.
func (n *unaryNode[T, D1, D2]) implied() *frontier.Antichain[T] {
	return n.capabilities()
}

func (n *unaryNode[T, D1, D2]) done() bool {
	if !n.core.inbox.empty() || len(n.core.queued) > 0 {
		return false
	}
	if n.not != nil && len(n.not.pendingTimes()) > 0 {
		return false
	}
	return n.core.fr.Frontier().Len() == 0 && n.port.closedOut()
}
