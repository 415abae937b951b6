package capture

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/tarungka/loom/internal/logger"
)

// bucket layout: one bucket per partition holding sequence-keyed records,
// plus a meta bucket marking which partitions are sealed.
var metaBucket = []byte("__meta")

// BoltLog is a file-backed durable log: one bucket per partition, records
// keyed by a monotone sequence. It covers local capture, tests, and
// single-machine transport without a broker.
type BoltLog struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// OpenBoltLog opens (or creates) a log file.
func OpenBoltLog(path string) (*BoltLog, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create meta bucket: %w", err)
	}
	lg := logger.GetLogger("boltlog")
	lg.Debug().Str("path", path).Msg("opened file-backed event log")
	return &BoltLog{db: db, logger: lg}, nil
}

// Close closes the underlying file. Publishers and subscribers must not be
// used afterwards.
func (l *BoltLog) Close() error {
	return l.db.Close()
}

// Publisher opens the named partition for appending.
func (l *BoltLog) Publisher(name string) (Publisher, error) {
	err := l.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create partition %s: %w", name, err)
	}
	return &boltPublisher{log: l, name: name}, nil
}

// Subscriber opens the named partition for reading from the start. The
// partition need not exist yet; reads before the first publish simply
// return no data.
func (l *BoltLog) Subscriber(name string) Subscriber {
	return &boltSubscriber{log: l, name: name}
}

type boltPublisher struct {
	log    *BoltLog
	name   string
	closed bool
}

// Publish commits one record. The transaction is durable on return, so
// there are never unacknowledged in-flight records to drain on Close.
func (p *boltPublisher) Publish(ctx context.Context, payload []byte) error {
	if p.closed {
		return ErrClosed
	}
	return p.log.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(p.name))
		if b == nil {
			return fmt.Errorf("partition %s does not exist", p.name)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return b.Put(key[:], payload)
	})
}

// Close seals the partition so subscribers observe end-of-partition.
func (p *boltPublisher) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.log.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(p.name), []byte{1})
	})
}

type boltSubscriber struct {
	log  *BoltLog
	name string
	next uint64
}

const boltPollLimit = 256

func (s *boltSubscriber) Poll(ctx context.Context) ([][]byte, error) {
	var out [][]byte
	sealed := false
	err := s.log.db.View(func(tx *bolt.Tx) error {
		sealed = tx.Bucket(metaBucket).Get([]byte(s.name)) != nil
		b := tx.Bucket([]byte(s.name))
		if b == nil {
			return nil
		}
		var from [8]byte
		binary.BigEndian.PutUint64(from[:], s.next+1)
		c := b.Cursor()
		for k, v := c.Seek(from[:]); k != nil && len(out) < boltPollLimit; k, v = c.Next() {
			rec := make([]byte, len(v))
			copy(rec, v)
			out = append(out, rec)
			s.next = binary.BigEndian.Uint64(k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read partition %s: %w", s.name, err)
	}
	if len(out) == 0 && sealed {
		return nil, ErrEndOfPartition
	}
	return out, nil
}

func (s *boltSubscriber) Close() error {
	return nil
}
