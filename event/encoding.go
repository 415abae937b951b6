package event

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/tarungka/loom/frontier"
)

// ErrMalformedEvent is returned when a payload cannot be decoded as an
// event. Consumers treat it as a partition-local failure, never a crash.
var ErrMalformedEvent = errors.New("malformed event payload")

const (
	encodingVersion = byte(1)

	tagMessage  = byte(0)
	tagProgress = byte(1)

	// Sanity cap on element counts inside a single event.
	maxElements = 1 << 24
)

// TimeCodec encodes and decodes one timestamp.
type TimeCodec[T frontier.Time[T]] interface {
	EncodeTime(w io.Writer, t T) error
	DecodeTime(r io.Reader) (T, error)
}

// DataCodec encodes and decodes one record.
type DataCodec[D any] interface {
	EncodeData(w io.Writer, d D) error
	DecodeData(r io.Reader) (D, error)
}

// Codec encodes events to opaque records and back. Encoding is a pure
// function of the event value; Decode(Encode(e)) == e.
type Codec[T frontier.Time[T], D any] struct {
	Time TimeCodec[T]
	Data DataCodec[D]
}

// NewCodec builds a Codec from a time codec and a data codec.
func NewCodec[T frontier.Time[T], D any](tc TimeCodec[T], dc DataCodec[D]) Codec[T, D] {
	return Codec[T, D]{Time: tc, Data: dc}
}

// Encoder writes events into a reusable buffer. Not safe for concurrent
// use; each producer owns its encoder.
type Encoder[T frontier.Time[T], D any] struct {
	codec Codec[T, D]
	buf   bytes.Buffer
}

// NewEncoder creates an Encoder using the given codec.
func NewEncoder[T frontier.Time[T], D any](codec Codec[T, D]) *Encoder[T, D] {
	return &Encoder[T, D]{codec: codec}
}

// Encode serializes one event as an opaque record. The returned slice is a
// copy; the internal buffer is reused across calls.
func (e *Encoder[T, D]) Encode(ev Event[T, D]) ([]byte, error) {
	e.buf.Reset()
	e.buf.WriteByte(encodingVersion)

	switch v := ev.(type) {
	case Message[T, D]:
		e.buf.WriteByte(tagMessage)
		if err := e.codec.Time.EncodeTime(&e.buf, v.Time); err != nil {
			return nil, fmt.Errorf("failed to encode message time: %w", err)
		}
		if err := binary.Write(&e.buf, binary.BigEndian, int32(len(v.Data))); err != nil {
			return nil, fmt.Errorf("failed to encode message length: %w", err)
		}
		for _, d := range v.Data {
			if err := e.codec.Data.EncodeData(&e.buf, d); err != nil {
				return nil, fmt.Errorf("failed to encode record: %w", err)
			}
		}
	case Progress[T, D]:
		e.buf.WriteByte(tagProgress)
		if err := binary.Write(&e.buf, binary.BigEndian, int32(len(v.Deltas))); err != nil {
			return nil, fmt.Errorf("failed to encode progress length: %w", err)
		}
		for _, d := range v.Deltas {
			if err := e.codec.Time.EncodeTime(&e.buf, d.Time); err != nil {
				return nil, fmt.Errorf("failed to encode progress time: %w", err)
			}
			if err := binary.Write(&e.buf, binary.BigEndian, d.Diff); err != nil {
				return nil, fmt.Errorf("failed to encode progress diff: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("unknown event type %T", ev)
	}

	out := make([]byte, e.buf.Len())
	copy(out, e.buf.Bytes())
	return out, nil
}

// Decode parses one opaque record back into an event. Malformed payloads
// fail closed with an error wrapping ErrMalformedEvent.
func (c Codec[T, D]) Decode(payload []byte) (Event[T, D], error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedEvent, len(payload))
	}
	if payload[0] != encodingVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedEvent, payload[0])
	}

	r := bytes.NewReader(payload[2:])
	var ev Event[T, D]

	switch payload[1] {
	case tagMessage:
		t, err := c.Time.DecodeTime(r)
		if err != nil {
			return nil, fmt.Errorf("%w: message time: %v", ErrMalformedEvent, err)
		}
		count, err := readCount(r)
		if err != nil {
			return nil, fmt.Errorf("%w: message length: %v", ErrMalformedEvent, err)
		}
		var data []D
		if count > 0 {
			data = make([]D, 0, count)
		}
		for i := int32(0); i < count; i++ {
			d, err := c.Data.DecodeData(r)
			if err != nil {
				return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedEvent, i, err)
			}
			data = append(data, d)
		}
		ev = Message[T, D]{Time: t, Data: data}
	case tagProgress:
		count, err := readCount(r)
		if err != nil {
			return nil, fmt.Errorf("%w: progress length: %v", ErrMalformedEvent, err)
		}
		var deltas []frontier.Delta[T]
		if count > 0 {
			deltas = make([]frontier.Delta[T], 0, count)
		}
		for i := int32(0); i < count; i++ {
			t, err := c.Time.DecodeTime(r)
			if err != nil {
				return nil, fmt.Errorf("%w: progress time %d: %v", ErrMalformedEvent, i, err)
			}
			var diff int64
			if err := binary.Read(r, binary.BigEndian, &diff); err != nil {
				return nil, fmt.Errorf("%w: progress diff %d: %v", ErrMalformedEvent, i, err)
			}
			deltas = append(deltas, frontier.Delta[T]{Time: t, Diff: diff})
		}
		ev = Progress[T, D]{Deltas: deltas}
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrMalformedEvent, payload[1])
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedEvent, r.Len())
	}
	return ev, nil
}

func readCount(r io.Reader) (int32, error) {
	var count int32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return 0, err
	}
	if count < 0 || count > maxElements {
		return 0, fmt.Errorf("invalid element count: %d", count)
	}
	return count, nil
}
