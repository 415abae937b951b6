package dataflow

import (
	"fmt"

	"github.com/tarungka/loom/frontier"
)

// Input feeds records into a computation from outside. It is driven by the
// worker that owns it, between Step calls: Send batches, AdvanceTo to let
// downstream frontiers move, Close when no more data will ever be sent. A
// computation does not complete until every input is closed.
type Input[T frontier.Time[T], D any] struct {
	w      *Worker
	port   *outputPort[T, D]
	epoch  T
	closed bool
}

// NewInput creates an input and the stream it feeds. The input starts at
// the zero time.
func NewInput[T frontier.Time[T], D any](w *Worker) (*Input[T, D], *Stream[T, D]) {
	port, stream := newOutputPort[T, D](w)
	return &Input[T, D]{w: w, port: port}, stream
}

// Send delivers a batch of records at time t. t must be at or beyond the
// current epoch.
func (in *Input[T, D]) Send(t T, data ...D) {
	in.SendBatch(t, data)
}

// SendBatch delivers a batch of records at time t.
func (in *Input[T, D]) SendBatch(t T, data []D) {
	if in.closed {
		panic("dataflow: send on closed input")
	}
	if t.Less(in.epoch) {
		panic(fmt.Sprintf("dataflow: send at %v behind input epoch %v", t, in.epoch))
	}
	in.port.sendBatch(t, data)
}

// AdvanceTo moves the input's epoch forward: a promise that no future Send
// will carry a time before t. Downstream notifications for times before t
// become eligible to fire.
func (in *Input[T, D]) AdvanceTo(t T) {
	if in.closed {
		panic("dataflow: advance on closed input")
	}
	if t.Less(in.epoch) {
		panic(fmt.Sprintf("dataflow: advance to %v behind input epoch %v", t, in.epoch))
	}
	in.epoch = t
	in.port.report(frontier.NewAntichain(t))
}

// Epoch returns the current epoch.
func (in *Input[T, D]) Epoch() T {
	return in.epoch
}

// Close retires the input's capability entirely. No more data can be sent;
// downstream frontiers may drain to empty.
func (in *Input[T, D]) Close() {
	if in.closed {
		return
	}
	in.closed = true
	in.port.report(frontier.NewAntichain[T]())
}
