package capture

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLog is an in-process durable-channel stand-in: partitions live in
// memory and survive for the lifetime of the log. It backs tests and
// single-process capture/replay round trips.
type MemoryLog struct {
	mu    sync.Mutex
	parts map[string]*memPartition
}

type memPartition struct {
	mu      sync.Mutex
	records [][]byte
	closed  bool
}

// NewMemoryLog creates an empty log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{parts: make(map[string]*memPartition)}
}

func (l *MemoryLog) partition(name string) *memPartition {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.parts[name]
	if !ok {
		p = &memPartition{}
		l.parts[name] = p
	}
	return p
}

// Publisher opens the named partition for appending.
func (l *MemoryLog) Publisher(name string) Publisher {
	return &memPublisher{part: l.partition(name)}
}

// Subscriber opens the named partition for reading from the start.
func (l *MemoryLog) Subscriber(name string) Subscriber {
	return &memSubscriber{part: l.partition(name)}
}

type memPublisher struct {
	part   *memPartition
	closed bool
}

func (p *memPublisher) Publish(ctx context.Context, payload []byte) error {
	if p.closed {
		return ErrClosed
	}
	p.part.mu.Lock()
	defer p.part.mu.Unlock()
	if p.part.closed {
		return fmt.Errorf("publish to closed partition: %w", ErrClosed)
	}
	rec := make([]byte, len(payload))
	copy(rec, payload)
	p.part.records = append(p.part.records, rec)
	return nil
}

func (p *memPublisher) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.part.mu.Lock()
	p.part.closed = true
	p.part.mu.Unlock()
	return nil
}

type memSubscriber struct {
	part   *memPartition
	offset int
}

func (s *memSubscriber) Poll(ctx context.Context) ([][]byte, error) {
	s.part.mu.Lock()
	defer s.part.mu.Unlock()
	if s.offset < len(s.part.records) {
		out := s.part.records[s.offset:]
		s.offset = len(s.part.records)
		return out, nil
	}
	if s.part.closed {
		return nil, ErrEndOfPartition
	}
	return nil, nil
}

func (s *memSubscriber) Close() error {
	return nil
}
