package capture

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tarungka/loom/event"
	"github.com/tarungka/loom/frontier"
	"github.com/tarungka/loom/internal/logger"
)

// Consumer decodes the event stream of one captured partition. Transport
// read failures and malformed payloads are partition-local: they are
// logged and the partition is treated as having reached its end. Callers
// needing strict fidelity must add their own integrity checking.
type Consumer[T frontier.Time[T], D any] struct {
	name     string
	codec    event.Codec[T, D]
	sub      Subscriber
	buffered []event.Event[T, D]
	eof      bool
	logger   zerolog.Logger
}

// NewConsumer wraps a subscriber for the named partition.
func NewConsumer[T frontier.Time[T], D any](name string, codec event.Codec[T, D], sub Subscriber) *Consumer[T, D] {
	return &Consumer[T, D]{
		name:   name,
		codec:  codec,
		sub:    sub,
		logger: logger.GetLogger("replay"),
	}
}

// Name returns the partition name.
func (c *Consumer[T, D]) Name() string {
	return c.name
}

// Next returns the next captured event. A (nil, nil) return means no event
// is available yet; ErrEndOfPartition means the partition is exhausted.
func (c *Consumer[T, D]) Next(ctx context.Context) (event.Event[T, D], error) {
	if len(c.buffered) > 0 {
		ev := c.buffered[0]
		c.buffered = c.buffered[1:]
		return ev, nil
	}
	if c.eof {
		return nil, ErrEndOfPartition
	}

	payloads, err := c.sub.Poll(ctx)
	if err != nil {
		if err != ErrEndOfPartition {
			c.logger.Warn().Err(err).Str("partition", c.name).Msg("read failed, treating partition as ended")
		}
		c.eof = true
		return nil, ErrEndOfPartition
	}
	if len(payloads) == 0 {
		return nil, nil
	}

	for _, payload := range payloads {
		ev, err := c.codec.Decode(payload)
		if err != nil {
			c.logger.Warn().Err(err).Str("partition", c.name).Msg("malformed record, treating partition as ended")
			c.eof = true
			break
		}
		c.buffered = append(c.buffered, ev)
	}
	if len(c.buffered) == 0 {
		return nil, ErrEndOfPartition
	}
	ev := c.buffered[0]
	c.buffered = c.buffered[1:]
	return ev, nil
}

// Close releases the underlying subscriber.
func (c *Consumer[T, D]) Close() error {
	return c.sub.Close()
}
