// Package dataflow implements a progress-tracked dataflow runtime: workers
// schedule operators cooperatively, records are routed between workers by a
// pact, and every operator can learn, through its notificator, exactly when
// no more input at or below a given time will arrive.
//
// All workers construct the same dataflow graph in the same order; a graph
// must be fully constructed before any input is advanced. Operator bodies
// run to completion per activation and must not block; a panic in a body
// aborts the whole computation.
package dataflow

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tarungka/loom/internal/logger"
)

// node is one schedulable operator instance on one worker.
type node interface {
	// schedule runs one activation pass: drain the inbox, run the body if
	// there is work, flush outputs and report progress. Returns whether
	// any work was done.
	schedule() bool
	// done reports whether the node can never do work again.
	done() bool
	// opName is used in logs and fatal reports.
	opName() string
}

// Worker is one unit of a computation. Workers share no memory beyond the
// message fabric; each runs a single cooperative scheduling loop.
type Worker struct {
	index  int
	peers  int
	fabric *fabric
	nodes  []node
	nextID int
	logger zerolog.Logger
}

// Index returns this worker's index in [0, Peers()).
func (w *Worker) Index() int { return w.index }

// Peers returns the number of workers in the computation.
func (w *Worker) Peers() int { return w.peers }

func (w *Worker) nextNodeID() int {
	id := w.nextID
	w.nextID++
	return id
}

// Step runs one scheduling pass over every operator, in creation order.
// Returns whether any operator did work.
func (w *Worker) Step() bool {
	any := false
	for _, n := range w.nodes {
		if n.schedule() {
			any = true
		}
	}
	return any
}

// done reports whether every node is quiescent with an empty frontier.
func (w *Worker) done() bool {
	for _, n := range w.nodes {
		if !n.done() {
			return false
		}
	}
	return true
}

// run steps the worker until the computation completes or ctx is canceled.
func (w *Worker) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		active := w.Step()
		if w.done() {
			w.logger.Debug().Int("worker", w.index).Msg("worker complete")
			return nil
		}
		if !active {
			// Quiet but not done: peers may still route data here.
			time.Sleep(time.Millisecond)
		}
	}
}

// Execute runs a computation with the given number of workers. Each worker
// runs build to construct (and optionally drive) its copy of the dataflow
// graph, then keeps stepping until every operator's frontier is empty. A
// build error on any worker cancels the rest.
func Execute(ctx context.Context, peers int, build func(w *Worker) error) error {
	if peers <= 0 {
		peers = 1
	}
	f := newFabric(peers)
	lg := logger.GetLogger("dataflow")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < peers; i++ {
		w := &Worker{index: i, peers: peers, fabric: f, logger: lg}
		g.Go(func() error {
			if err := build(w); err != nil {
				return err
			}
			return w.run(ctx)
		})
	}
	return g.Wait()
}
