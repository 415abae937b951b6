package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/tarungka/loom/internal/logger"
)

// kafkaPollWait bounds how long one Poll waits for the broker. Replay
// sources poll cooperatively; a long block here would stall the whole
// worker loop.
const kafkaPollWait = 50 * time.Millisecond

// KafkaPublisher appends records to one partition (a single-partition
// topic named by PartitionName). Produces are asynchronous; Close blocks
// until every in-flight record is acknowledged. The first produce error is
// sticky and fails every later Publish: a dropped captured event would
// corrupt replay accounting, so the capturing computation must abort.
type KafkaPublisher struct {
	client   *kgo.Client
	name     string
	inflight sync.WaitGroup
	logger   zerolog.Logger

	mu  sync.Mutex
	err error
}

// NewKafkaPublisher connects a publisher for the named partition.
func NewKafkaPublisher(brokers []string, name string) (*KafkaPublisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(name),
		kgo.AllowAutoTopicCreation(),
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer for %s: %w", name, err)
	}
	lg := logger.GetLogger("capture")
	lg.Debug().Str("partition", name).Msg("connected kafka publisher")
	return &KafkaPublisher{client: client, name: name, logger: lg}, nil
}

func (p *KafkaPublisher) fail(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
}

func (p *KafkaPublisher) sticky() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Publish appends one opaque record.
func (p *KafkaPublisher) Publish(ctx context.Context, payload []byte) error {
	if err := p.sticky(); err != nil {
		return err
	}
	p.inflight.Add(1)
	p.client.Produce(ctx, &kgo.Record{Value: payload}, func(r *kgo.Record, err error) {
		defer p.inflight.Done()
		if err != nil {
			p.logger.Error().Err(err).Str("partition", p.name).Msg("record had a produce error")
			p.fail(fmt.Errorf("produce to %s failed: %w", p.name, err))
		}
	})
	return nil
}

// Close drains: it blocks until the in-flight count reaches zero, then
// releases the client. Any produce error observed before or during the
// drain is returned.
func (p *KafkaPublisher) Close() error {
	p.inflight.Wait()
	p.client.Close()
	return p.sticky()
}

// KafkaSubscriber reads one captured partition from the beginning. There
// is no broker-side end-of-partition: a cleanly captured partition ends
// when its progress history drains, which Replay detects by itself.
// Transport errors surface as end-of-partition after being logged.
type KafkaSubscriber struct {
	client *kgo.Client
	name   string
	logger zerolog.Logger
	closed bool
}

// NewKafkaSubscriber connects a subscriber for the named partition.
func NewKafkaSubscriber(brokers []string, name string) (*KafkaSubscriber, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(name),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer for %s: %w", name, err)
	}
	lg := logger.GetLogger("replay")
	lg.Debug().Str("partition", name).Msg("connected kafka subscriber")
	return &KafkaSubscriber{client: client, name: name, logger: lg}, nil
}

// Poll fetches whatever is currently available, waiting at most
// kafkaPollWait for the broker.
func (s *KafkaSubscriber) Poll(ctx context.Context) ([][]byte, error) {
	if s.closed {
		return nil, ErrEndOfPartition
	}
	pollCtx, cancel := context.WithTimeout(ctx, kafkaPollWait)
	defer cancel()

	fetches := s.client.PollFetches(pollCtx)
	if fetches.IsClientClosed() {
		return nil, ErrEndOfPartition
	}
	for _, fe := range fetches.Errors() {
		if errors.Is(fe.Err, context.DeadlineExceeded) || errors.Is(fe.Err, context.Canceled) {
			continue
		}
		s.logger.Error().Err(fe.Err).Str("partition", s.name).Int32("kafka_partition", fe.Partition).Msg("fetch error")
		return nil, fmt.Errorf("fetch from %s failed: %w", s.name, fe.Err)
	}

	var out [][]byte
	fetches.EachRecord(func(record *kgo.Record) {
		out = append(out, record.Value)
	})
	return out, nil
}

// Close releases the client.
func (s *KafkaSubscriber) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.Close()
	return nil
}
