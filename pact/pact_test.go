package pact

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tarungka/loom/frontier"
)

func TestPipelineKeepsRecordsLocal(t *testing.T) {
	p := Pipeline[frontier.Tick, string]{}
	for worker := 0; worker < 4; worker++ {
		assert.Equal(t, worker, p.Route(4, worker, 0, "anything"))
	}
}

func TestExchangeRoutingIsStable(t *testing.T) {
	e := NewExchange[frontier.Tick, string](HashString)
	for _, peers := range []int{1, 2, 5, 16} {
		for i := 0; i < 100; i++ {
			d := fmt.Sprintf("record-%d", i)
			first := e.Route(peers, 0, 0, d)
			assert.GreaterOrEqual(t, first, 0)
			assert.Less(t, first, peers)
			for rep := 0; rep < 10; rep++ {
				// Same record, same peer count: always the same worker,
				// regardless of who is routing.
				assert.Equal(t, first, e.Route(peers, rep%peers, frontier.Tick(rep), d))
			}
		}
	}
}

func TestExchangeUsesKeyModPeers(t *testing.T) {
	e := NewExchange[frontier.Tick, uint64](func(d uint64) uint64 { return d })
	assert.Equal(t, 1, e.Route(4, 0, 0, 13))
	assert.Equal(t, 0, e.Route(4, 2, 0, 8))
}

func TestHashBytesDeterministic(t *testing.T) {
	h := HashBytes([]byte("loom"))
	assert.Equal(t, h, HashBytes([]byte("loom")))
	assert.NotEqual(t, h, HashBytes([]byte("looms")))
	assert.Equal(t, HashString("loom"), h)
}
