package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gomoku-server/bus"
	"gomoku-server/protocol"
)

type fakeSender struct {
	sent map[uint64][]*protocol.Packet
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[uint64][]*protocol.Packet)}
}

func (f *fakeSender) SendToSession(sessionID uint64, p *protocol.Packet) {
	f.sent[sessionID] = append(f.sent[sessionID], p)
}

type fakeDirectory struct {
	sessionByUser map[uint64]uint64
	membersByRoom map[uint64][]uint64
	online        []uint64
	rooms         map[uint64]RoomInfo
}

func (d *fakeDirectory) SessionForUser(userID uint64) (uint64, bool) {
	s, ok := d.sessionByUser[userID]
	return s, ok
}

func (d *fakeDirectory) RoomMembers(roomID uint64) []uint64 {
	return d.membersByRoom[roomID]
}

func (d *fakeDirectory) OnlineUserIDs() []uint64 { return d.online }

func (d *fakeDirectory) RoomSnapshot(roomID uint64) (RoomInfo, bool) {
	info, ok := d.rooms[roomID]
	return info, ok
}

func TestPiecePlacedBroadcastsMakeMoveToRoomMembers(t *testing.T) {
	b := bus.New()
	sender := newFakeSender()
	dir := &fakeDirectory{
		sessionByUser: map[uint64]uint64{10: 1000, 20: 2000},
		membersByRoom: map[uint64][]uint64{5: {10, 20}},
	}
	n := New(b, sender, dir, zap.NewNop())
	defer n.Close()

	b.Publish(bus.PiecePlacedEvent{RoomID: 5, UserID: 10, X: 7, Y: 7})

	require.Len(t, sender.sent[1000], 1)
	require.Len(t, sender.sent[2000], 1)
	assert.Equal(t, protocol.MsgMakeMove, sender.sent[1000][0].Type)
	roomID, err := sender.sent[1000][0].GetU64("roomId")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), roomID)
}

func TestOfflineMemberDropsSilently(t *testing.T) {
	b := bus.New()
	sender := newFakeSender()
	dir := &fakeDirectory{
		sessionByUser: map[uint64]uint64{10: 1000},
		membersByRoom: map[uint64][]uint64{5: {10, 20}},
	}
	n := New(b, sender, dir, zap.NewNop())
	defer n.Close()

	b.Publish(bus.GiveUpRequestedEvent{RoomID: 5, UserID: 10})

	assert.Len(t, sender.sent[1000], 1)
	assert.Len(t, sender.sent, 1)
}

func TestUserLoggedInBroadcastsToLobby(t *testing.T) {
	b := bus.New()
	sender := newFakeSender()
	dir := &fakeDirectory{
		sessionByUser: map[uint64]uint64{10: 1000, 20: 2000},
		online:        []uint64{10, 20},
	}
	n := New(b, sender, dir, zap.NewNop())
	defer n.Close()

	b.Publish(bus.UserLoggedInEvent{UserID: 10})

	assert.Len(t, sender.sent[1000], 1)
	assert.Len(t, sender.sent[2000], 1)
	assert.Equal(t, protocol.MsgUpdateUsersToLobby, sender.sent[1000][0].Type)
}

func TestUndoRequestedAndAcceptedBroadcastWithAction(t *testing.T) {
	b := bus.New()
	sender := newFakeSender()
	dir := &fakeDirectory{
		sessionByUser: map[uint64]uint64{10: 1000, 20: 2000},
		membersByRoom: map[uint64][]uint64{5: {10, 20}},
	}
	n := New(b, sender, dir, zap.NewNop())
	defer n.Close()

	b.Publish(bus.UndoRequestedEvent{RoomID: 5, UserID: 10})
	require.Len(t, sender.sent[2000], 1)
	assert.Equal(t, protocol.MsgUndoMove, sender.sent[2000][0].Type)
	action, err := sender.sent[2000][0].GetString("action")
	require.NoError(t, err)
	assert.Equal(t, "ask", action)

	b.Publish(bus.UndoAcceptedEvent{RoomID: 5, UserID: 20})
	require.Len(t, sender.sent[1000], 2)
	action, err = sender.sent[1000][1].GetString("action")
	require.NoError(t, err)
	assert.Equal(t, "accept", action)
}

func TestCloseStopsFurtherDelivery(t *testing.T) {
	b := bus.New()
	sender := newFakeSender()
	dir := &fakeDirectory{
		sessionByUser: map[uint64]uint64{10: 1000},
		membersByRoom: map[uint64][]uint64{5: {10}},
	}
	n := New(b, sender, dir, zap.NewNop())
	n.Close()

	b.Publish(bus.PiecePlacedEvent{RoomID: 5, UserID: 10, X: 1, Y: 1})
	assert.Empty(t, sender.sent)
}
