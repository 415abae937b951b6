package dataflow

import (
	"sync"

	"github.com/tarungka/loom/frontier"
)

// message is one unit of cross-worker delivery: either a data batch routed
// to one worker, or a progress broadcast. Within one mailbox, messages from
// the same producer preserve send order, which is what guarantees a batch
// is delivered before the progress update that retires its time.
type message[T frontier.Time[T], D any] struct {
	from   int
	isData bool
	time   T
	data   []D
	deltas []frontier.Delta[T]
}

// mailbox is an unbounded FIFO queue. Bounded channels would deadlock under
// progress broadcast fan-out, where every worker writes to every other
// worker regardless of who is currently draining.
type mailbox[T frontier.Time[T], D any] struct {
	mu    sync.Mutex
	queue []message[T, D]
}

func (m *mailbox[T, D]) push(msg message[T, D]) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
}

// drain removes and returns all queued messages.
func (m *mailbox[T, D]) drain() []message[T, D] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	out := m.queue
	m.queue = nil
	return out
}

func (m *mailbox[T, D]) empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue) == 0
}

// fabric owns the mailboxes shared by all workers of one computation. Each
// consumer node has one mailbox per worker, created once by whichever
// worker touches the node id first. Node ids are deterministic because all
// workers construct the same dataflow graph in the same order.
type fabric struct {
	mu    sync.Mutex
	peers int
	boxes map[int]any
}

func newFabric(peers int) *fabric {
	return &fabric{peers: peers, boxes: make(map[int]any)}
}

// boxesFor returns the per-worker mailboxes for a consumer node, creating
// them on first use.
func boxesFor[T frontier.Time[T], D any](f *fabric, nodeID int) []*mailbox[T, D] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.boxes[nodeID]; ok {
		return existing.([]*mailbox[T, D])
	}
	boxes := make([]*mailbox[T, D], f.peers)
	for i := range boxes {
		boxes[i] = &mailbox[T, D]{}
	}
	f.boxes[nodeID] = boxes
	return boxes
}
