// Package capture serializes the event stream of a dataflow computation
// into a durable partitioned channel, and replays captured partitions into
// a new computation whose worker count may differ from the original.
//
// The only coupling between the capturing and replaying sides is the
// partition naming scheme: worker i of a capture to topic writes partition
// PartitionName(topic, i), and a replaying computation opens the same
// names.
package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/tarungka/loom/dataflow"
	"github.com/tarungka/loom/event"
	"github.com/tarungka/loom/frontier"
	"github.com/tarungka/loom/pact"
)

// ErrEndOfPartition signals that a partition has no more records. Transport
// read failures and malformed records are reported the same way after being
// logged: a broken source partition terminates quietly rather than hanging
// the whole replaying computation.
var ErrEndOfPartition = errors.New("end of partition")

// ErrClosed is returned by operations on a closed publisher or subscriber.
var ErrClosed = errors.New("capture: closed")

// Publisher appends opaque records to one partition of a durable channel.
// Publish may acknowledge asynchronously; Close blocks until every
// published record has been acknowledged, so no captured event is lost to
// an early exit. A publish failure is fatal to the capturing computation:
// dropping an event would corrupt the progress accounting of every replay.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

// Subscriber reads opaque records from one partition. Poll never blocks
// beyond a short transport poll: it returns (nil, nil) when no record is
// currently available, and ErrEndOfPartition when the partition is
// exhausted.
type Subscriber interface {
	Poll(ctx context.Context) ([][]byte, error)
	Close() error
}

// PartitionName is the wire contract between capture and replay: worker
// index i of a capture to topic owns exactly this partition.
func PartitionName(topic string, workerIndex int) string {
	return fmt.Sprintf("%s-%d", topic, workerIndex)
}

// PartitionsFor assigns source partitions to replaying workers: worker
// index consumes partition i iff i mod peers == index. Every source
// partition is consumed by exactly one worker.
func PartitionsFor(sourcePeers, index, peers int) []int {
	var owned []int
	for i := index; i < sourcePeers; i += peers {
		owned = append(owned, i)
	}
	return owned
}

// Capture taps a stream and publishes its event stream, one encoded event
// per record, to this worker's partition. Every batch delivered to this
// worker becomes a Message event; every change of the stream's frontier
// becomes a Progress event, starting with the initial zero capability. On
// teardown the publisher is closed, blocking until all records are
// acknowledged.
func Capture[T frontier.Time[T], D any](
	ctx context.Context,
	s *dataflow.Stream[T, D],
	codec event.Codec[T, D],
	pub Publisher,
) {
	enc := event.NewEncoder(codec)
	dataflow.Sink(s, pact.Pipeline[T, D]{}, "capture",
		func(t T, data []D) error {
			payload, err := enc.Encode(event.Message[T, D]{Time: t, Data: data})
			if err != nil {
				return fmt.Errorf("failed to encode message event: %w", err)
			}
			if err := pub.Publish(ctx, payload); err != nil {
				return fmt.Errorf("failed to publish message event: %w", err)
			}
			return nil
		},
		func(deltas []frontier.Delta[T]) error {
			payload, err := enc.Encode(event.Progress[T, D]{Deltas: deltas})
			if err != nil {
				return fmt.Errorf("failed to encode progress event: %w", err)
			}
			if err := pub.Publish(ctx, payload); err != nil {
				return fmt.Errorf("failed to publish progress event: %w", err)
			}
			return nil
		},
		func() error {
			if err := pub.Close(); err != nil {
				return fmt.Errorf("failed to drain capture publisher: %w", err)
			}
			return nil
		},
	)
}
