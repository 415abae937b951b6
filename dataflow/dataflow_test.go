package dataflow

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarungka/loom/frontier"
	"github.com/tarungka/loom/pact"
)

func newTestWorker() *Worker {
	return &Worker{index: 0, peers: 1, fabric: newFabric(1), logger: zerolog.Nop()}
}

func TestNotificatorCoalescesAndFiresOnce(t *testing.T) {
	fr := frontier.NewMutableAntichain[frontier.Tick]()
	fr.Update(0, 1)

	n := newNotificator(fr, 1)
	n.NotifyAt(5)
	n.NotifyAt(5)
	n.NotifyAt(3)
	assert.False(t, n.ready(), "no request is satisfied while the frontier holds 0")

	fr.Update(0, -1)
	fr.Update(6, 1)
	assert.True(t, n.ready())

	var fired []frontier.Tick
	n.ForEach(func(tm frontier.Tick, count int) {
		fired = append(fired, tm)
		assert.Equal(t, 1, count)
	})
	assert.Equal(t, []frontier.Tick{3, 5}, fired, "repeated requests fire once, in time order")

	n.ForEach(func(tm frontier.Tick, count int) {
		t.Fatalf("time %v fired twice", tm)
	})
}

func TestNotificatorRegistrationDuringCallback(t *testing.T) {
	fr := frontier.NewMutableAntichain[frontier.Tick]()
	n := newNotificator(fr, 1)
	n.NotifyAt(1)

	var fired []frontier.Tick
	n.ForEach(func(tm frontier.Tick, count int) {
		fired = append(fired, tm)
		if tm == 1 {
			n.NotifyAt(2)
		}
	})
	assert.Equal(t, []frontier.Tick{1, 2}, fired, "a request made during a callback is evaluated in the same pass")
}

func TestDistinctSingleWorker(t *testing.T) {
	var mu sync.Mutex
	got := make(map[frontier.Tick][]uint64)

	err := Execute(context.Background(), 1, func(w *Worker) error {
		in, stream := NewInput[frontier.Tick, uint64](w)

		staged := make(map[frontier.Tick]map[uint64]struct{})
		distinct := UnaryNotify[frontier.Tick, uint64, uint64](
			stream, pact.Pipeline[frontier.Tick, uint64]{}, "distinct", nil,
			func(in *InputHandle[frontier.Tick, uint64], out *OutputHandle[frontier.Tick, uint64], not *Notificator[frontier.Tick]) {
				for {
					tm, data, ok := in.Next()
					if !ok {
						break
					}
					set, ok := staged[tm]
					if !ok {
						set = make(map[uint64]struct{})
						staged[tm] = set
					}
					for _, d := range data {
						set[d] = struct{}{}
					}
					not.NotifyAt(tm)
				}
				not.ForEach(func(tm frontier.Tick, count int) {
					s := out.Session(tm)
					for d := range staged[tm] {
						s.Give(d)
					}
					delete(staged, tm)
				})
			})

		Sink(distinct, pact.Pipeline[frontier.Tick, uint64]{}, "collect",
			func(tm frontier.Tick, data []uint64) error {
				mu.Lock()
				got[tm] = append(got[tm], data...)
				mu.Unlock()
				return nil
			},
			func(deltas []frontier.Delta[frontier.Tick]) error { return nil },
			func() error { return nil },
		)

		in.Send(0, 1, 1, 2)
		in.Send(1, 3)
		in.AdvanceTo(1)
		in.Send(1, 3, 4, 4)
		in.Close()
		return nil
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint64{1, 2}, got[0])
	assert.ElementsMatch(t, []uint64{3, 4}, got[1])
}

// Each worker feeds its own share of 0..N and an exchange routes every value
// to worker value mod peers. The per-residue sums come out right only if no
// notification fires before every peer's batch for the time has arrived.
func TestExchangeAggregationAcrossWorkers(t *testing.T) {
	const (
		peers = 4
		n     = 1000
	)
	sums := make([]uint64, peers)

	err := Execute(context.Background(), peers, func(w *Worker) error {
		in, stream := NewInput[frontier.Tick, uint64](w)

		staged := make(map[frontier.Tick]uint64)
		exchanged := UnaryNotify[frontier.Tick, uint64, uint64](
			stream, pact.NewExchange[frontier.Tick](func(d uint64) uint64 { return d }), "sum", nil,
			func(in *InputHandle[frontier.Tick, uint64], out *OutputHandle[frontier.Tick, uint64], not *Notificator[frontier.Tick]) {
				for {
					tm, data, ok := in.Next()
					if !ok {
						break
					}
					for _, d := range data {
						staged[tm] += d
					}
					not.NotifyAt(tm)
				}
				not.ForEach(func(tm frontier.Tick, count int) {
					out.Session(tm).Give(staged[tm])
					delete(staged, tm)
				})
			})

		Sink(exchanged, pact.Pipeline[frontier.Tick, uint64]{}, "total",
			func(tm frontier.Tick, data []uint64) error {
				for _, d := range data {
					sums[w.Index()] += d
				}
				return nil
			},
			func(deltas []frontier.Delta[frontier.Tick]) error { return nil },
			func() error { return nil },
		)

		for v := uint64(w.Index()); v < n; v += peers {
			in.Send(frontier.Tick(v/100), v)
		}
		in.Close()
		return nil
	})
	require.NoError(t, err)

	var total uint64
	for r, sum := range sums {
		var want uint64
		for v := uint64(r); v < n; v += peers {
			want += v
		}
		assert.Equal(t, want, sum, "worker %d received the wrong residue class", r)
		total += sum
	}
	assert.Equal(t, uint64(n*(n-1)/2), total)
}

// Drives a single worker by hand so that batches arrive across separate
// activations, then checks that sessions at retired times are refused.
func TestSessionCapabilityGuard(t *testing.T) {
	w := newTestWorker()
	in, stream := NewInput[frontier.Tick, uint64](w)

	activation := 0
	Unary[frontier.Tick, uint64, uint64](
		stream, pact.Pipeline[frontier.Tick, uint64]{}, "guard",
		func(in *InputHandle[frontier.Tick, uint64], out *OutputHandle[frontier.Tick, uint64]) {
			for {
				_, _, ok := in.Next()
				if !ok {
					break
				}
			}
			activation++
			if activation == 1 {
				out.Session(0).Give(1)
			} else {
				out.Session(5).Give(2)
				assert.Panics(t, func() { out.Session(0) },
					"a session at a retired time must be refused")
			}
		})

	in.Send(0, 1)
	in.AdvanceTo(5)
	w.Step()
	require.Equal(t, 1, activation)

	in.Send(5, 2)
	w.Step()
	require.Equal(t, 2, activation)

	in.Close()
	for !w.done() {
		w.Step()
	}
}

func TestInputGuards(t *testing.T) {
	err := Execute(context.Background(), 1, func(w *Worker) error {
		in, _ := NewInput[frontier.Tick, uint64](w)
		in.AdvanceTo(5)
		assert.Panics(t, func() { in.Send(3, 1) }, "sends behind the epoch must be refused")
		in.Close()
		assert.Panics(t, func() { in.Send(6, 1) }, "sends on a closed input must be refused")
		return nil
	})
	require.NoError(t, err)
}
