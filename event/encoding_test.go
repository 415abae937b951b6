package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarungka/loom/frontier"
)

var tickU64 = NewCodec[frontier.Tick, uint64](TickTime{}, Uint64Data{})

func TestMessageRoundTrip(t *testing.T) {
	enc := NewEncoder(tickU64)
	in := Message[frontier.Tick, uint64]{Time: 42, Data: []uint64{7, 0, 1 << 60}}

	payload, err := enc.Encode(in)
	require.NoError(t, err)

	out, err := tickU64.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEmptyMessageRoundTrip(t *testing.T) {
	enc := NewEncoder(tickU64)
	payload, err := enc.Encode(Message[frontier.Tick, uint64]{Time: 3})
	require.NoError(t, err)

	out, err := tickU64.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, Message[frontier.Tick, uint64]{Time: 3}, out)
}

func TestProgressRoundTrip(t *testing.T) {
	enc := NewEncoder(tickU64)
	in := Progress[frontier.Tick, uint64]{Deltas: []frontier.Delta[frontier.Tick]{
		{Time: 0, Diff: -1},
		{Time: 9, Diff: 1},
		{Time: 5, Diff: -3},
	}}

	payload, err := enc.Encode(in)
	require.NoError(t, err)

	out, err := tickU64.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, in, out, "delta order and signs must survive the round trip")
}

func TestStringDataRoundTrip(t *testing.T) {
	codec := NewCodec[frontier.Tick, string](TickTime{}, StringData{})
	enc := NewEncoder(codec)
	in := Message[frontier.Tick, string]{Time: 1, Data: []string{"a", "", "long record value"}}

	payload, err := enc.Encode(in)
	require.NoError(t, err)

	out, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncoderBufferReuse(t *testing.T) {
	enc := NewEncoder(tickU64)
	first, err := enc.Encode(Message[frontier.Tick, uint64]{Time: 1, Data: []uint64{1}})
	require.NoError(t, err)
	snapshot := append([]byte(nil), first...)

	_, err = enc.Encode(Message[frontier.Tick, uint64]{Time: 2, Data: []uint64{2, 3, 4}})
	require.NoError(t, err)
	assert.Equal(t, snapshot, first, "an earlier payload must not be clobbered by later encodes")
}

func TestDecodeFailsClosed(t *testing.T) {
	enc := NewEncoder(tickU64)
	good, err := enc.Encode(Message[frontier.Tick, uint64]{Time: 7, Data: []uint64{1, 2}})
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":           {},
		"version only":    {1},
		"bad version":     append([]byte{9}, good[1:]...),
		"bad tag":         append([]byte{1, 7}, good[2:]...),
		"truncated":       good[:len(good)-3],
		"trailing bytes":  append(append([]byte(nil), good...), 0xFF),
		"negative count":  {1, 0, 0, 0, 0, 0, 0, 0, 0, 42, 0xFF, 0xFF, 0xFF, 0xFF},
		"oversized count": {1, 0, 0, 0, 0, 0, 0, 0, 0, 42, 0x7F, 0xFF, 0xFF, 0xFF},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tickU64.Decode(payload)
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}
