package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPacketRoundTrip verifies P6: Packet.encode ∘ Packet.decode is the
// identity over the value-tag subset of §4.3.
func TestPacketRoundTrip(t *testing.T) {
	p := NewPacket(42, MsgMakeMove)
	p.SetU32("x", 7)
	p.SetU32("y", 11)
	p.SetBool("success", true)
	p.SetU64("roomId", 9001)
	p.SetI32("delta", -5)
	p.SetString("note", "hello, 世界")

	body := EncodePacket(p)
	got, err := DecodePacket(p.SessionID, body)
	require.NoError(t, err)

	assert.Equal(t, p.Type, got.Type)
	assert.Equal(t, p.SessionID, got.SessionID)
	assert.Equal(t, p.Params, got.Params)
}

func TestPacketRoundTripEmptyParams(t *testing.T) {
	p := NewPacket(1, MsgHeartbeat)
	body := EncodePacket(p)
	got, err := DecodePacket(1, body)
	require.NoError(t, err)
	assert.Equal(t, MsgHeartbeat, got.Type)
	assert.Empty(t, got.Params)
}

func TestDecodePacketRejectsUnknownTag(t *testing.T) {
	// Hand-build a body with an invalid tag (99) to assert N3's closed
	// tag set is enforced.
	body := []byte{
		0x01, 0x01, // msgType = 257 (arbitrary)
		0x00, 0x01, // paramCount = 1
		0x00, 0x01, 'x', // name "x"
		99, // unknown tag
	}
	_, err := DecodePacket(1, body)
	require.ErrorIs(t, err, ErrUnknownTag)
}

func TestDecodePacketTruncated(t *testing.T) {
	body := []byte{0x00, 0x65, 0x00, 0x01} // claims 1 param, has none
	_, err := DecodePacket(1, body)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestMsgTypeFamily(t *testing.T) {
	cases := []struct {
		t MsgType
		f Family
	}{
		{MsgHeartbeat, FamilyNone},
		{MsgLogin, FamilyAuth},
		{MsgCreateRoom, FamilyLobby},
		{MsgSyncSeat, FamilyRoom},
		{MsgMakeMove, FamilyGame},
		{MsgError, FamilyControl},
	}
	for _, c := range cases {
		assert.Equal(t, c.f, c.t.Family())
	}
}
