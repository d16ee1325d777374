package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginRoundTrip(t *testing.T) {
	buf := make([]byte, 256)
	f := Begin{
		RouteID:       0x10,
		StreamID:      0x11,
		TraceID:       0x42,
		Authorization: 0x99,
		Affinity:      7,
		Extension:     []byte{0xDE, 0xAD},
	}
	n := f.Encode(buf)

	v, err := WrapBegin(buf, 0, n)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x10), v.RouteID())
	assert.Equal(t, uint64(0x11), v.StreamID())
	assert.Equal(t, uint64(0x42), v.TraceID())
	assert.Equal(t, uint64(0x99), v.Authorization())
	assert.Equal(t, uint64(7), v.Affinity())
	assert.Equal(t, []byte{0xDE, 0xAD}, v.Extension())
}

func TestDataRoundTrip(t *testing.T) {
	buf := make([]byte, 256)
	f := Data{
		RouteID:       0x20,
		StreamID:      0x21,
		TraceID:       1,
		Authorization: 2,
		Flags:         DataFlagInit | DataFlagFin,
		BudgetID:      3,
		Reserved:      64,
		Payload:       []byte("payload"),
	}
	n := f.Encode(buf)

	v, err := WrapData(buf, 0, n)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x03), v.Flags())
	assert.Equal(t, uint64(3), v.BudgetID())
	assert.Equal(t, int32(64), v.Reserved())
	assert.Equal(t, []byte("payload"), v.Payload())
}

func TestWindowRoundTrip(t *testing.T) {
	buf := make([]byte, 256)
	f := Window{
		StreamID: 0x30,
		BudgetID: 9,
		Credit:   1024,
		Padding:  16,
	}
	n := f.Encode(buf)

	v, err := WrapWindow(buf, 0, n)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x30), v.StreamID())
	assert.Equal(t, int32(1024), v.Credit())
	assert.Equal(t, int32(16), v.Padding())
}

func TestFlushRoundTrip(t *testing.T) {
	buf := make([]byte, 256)
	f := Flush{StreamID: 5, BudgetID: 6, Reserved: 7}
	n := f.Encode(buf)

	v, err := WrapFlush(buf, 0, n)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), v.BudgetID())
	assert.Equal(t, int32(7), v.Reserved())
}

func TestChallengeRoundTrip(t *testing.T) {
	buf := make([]byte, 256)
	f := Challenge{StreamID: 5, Extension: []byte("nonce")}
	n := f.Encode(buf)

	v, err := WrapChallenge(buf, 0, n)
	require.NoError(t, err)
	assert.Equal(t, []byte("nonce"), v.Extension())
}

func TestWrapTruncated(t *testing.T) {
	buf := make([]byte, 256)

	_, err := WrapBegin(buf, 0, 12)
	assert.Error(t, err)

	f := Data{Payload: []byte("payload")}
	n := f.Encode(buf)
	_, err = WrapData(buf, 0, n-3)
	assert.Error(t, err)

	_, err = WrapWindow(buf, 0, frameBase)
	assert.Error(t, err)
}

func TestFrameOffsets(t *testing.T) {
	// frames addressed at a nonzero index decode identically
	buf := make([]byte, 256)
	f := End{RouteID: 1, StreamID: 2, TraceID: 3, Authorization: 4}
	n := f.Encode(buf[32:])

	v, err := WrapEnd(buf, 32, n)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v.StreamID())
}
