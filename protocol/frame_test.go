package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFrameRoundTrip verifies P7: Frame.encode ∘ Frame.decode is the
// identity.
func TestFrameRoundTrip(t *testing.T) {
	f := Frame{
		Status:    StatusActive,
		SessionID: 123456789,
		IV:        bytes.Repeat([]byte{0x42}, IVLen),
		Payload:   []byte("hello world"),
	}

	encoded, err := f.Encode()
	require.NoError(t, err)

	got, n, ok, err := TryDecode(encoded, MaxPayloadLen)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, f.Status, got.Status)
	assert.Equal(t, f.SessionID, got.SessionID)
	assert.Equal(t, f.IV, got.IV)
	assert.Equal(t, f.Payload, got.Payload)
}

func TestFrameRoundTripNoIV(t *testing.T) {
	f := Frame{Status: StatusHello, SessionID: 0, Payload: []byte("x")}
	encoded, err := f.Encode()
	require.NoError(t, err)

	got, _, ok, err := TryDecode(encoded, MaxPayloadLen)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.IV)
}

// TestTryDecodeWaitsForMoreInput verifies F1: a frame is emitted only
// once the full header plus payload have arrived.
func TestTryDecodeWaitsForMoreInput(t *testing.T) {
	f := Frame{Status: StatusHello, SessionID: 7, Payload: []byte("0123456789")}
	encoded, err := f.Encode()
	require.NoError(t, err)

	_, _, ok, err := TryDecode(encoded[:len(encoded)-1], MaxPayloadLen)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestTryDecodeBadMagic verifies F2: a bad magic is a fatal decode
// error, not a "wait for more" signal.
func TestTryDecodeBadMagic(t *testing.T) {
	f := Frame{Status: StatusHello, SessionID: 1, Payload: []byte("x")}
	encoded, err := f.Encode()
	require.NoError(t, err)
	encoded[0] = 0xFF

	_, _, ok, err := TryDecode(encoded, MaxPayloadLen)
	require.True(t, ok)
	require.ErrorIs(t, err, ErrBadMagic)
}

// TestTryDecodeOversizePayload verifies P11 / F3: a frame whose
// payloadLen exceeds the cap is rejected outright.
func TestTryDecodeOversizePayload(t *testing.T) {
	f := Frame{Status: StatusHello, SessionID: 1, Payload: make([]byte, 100)}
	encoded, err := f.Encode()
	require.NoError(t, err)

	_, _, ok, err := TryDecode(encoded, 10)
	require.True(t, ok)
	require.ErrorIs(t, err, ErrPayloadTooBig)
}

func TestEncodeActiveFrameRequiresIV(t *testing.T) {
	f := Frame{Status: StatusActive, SessionID: 1, Payload: []byte("x")}
	_, err := f.Encode()
	require.ErrorIs(t, err, ErrBadIVLen)
}

// TestMultipleFramesInOneBuffer verifies the accumulation-buffer usage
// pattern: TryDecode consumes exactly one frame and reports how many
// bytes to advance past.
func TestMultipleFramesInOneBuffer(t *testing.T) {
	f1 := Frame{Status: StatusHello, SessionID: 1, Payload: []byte("a")}
	f2 := Frame{Status: StatusHello, SessionID: 2, Payload: []byte("bb")}
	e1, _ := f1.Encode()
	e2, _ := f2.Encode()
	buf := append(append([]byte{}, e1...), e2...)

	got1, n1, ok, err := TryDecode(buf, MaxPayloadLen)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), got1.SessionID)

	got2, n2, ok, err := TryDecode(buf[n1:], MaxPayloadLen)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), got2.SessionID)
	assert.Equal(t, len(buf), n1+n2)
}
