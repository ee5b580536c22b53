package dispatch

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gomoku-server/bus"
	"gomoku-server/db"
	"gomoku-server/protocol"
	"gomoku-server/store"
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

func newTestDeps(t *testing.T) (*Deps, *fakeSender) {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "dispatch-test-*.db")
	require.NoError(t, err)
	tmpfile.Close()
	os.Remove(tmpfile.Name())

	database, err := db.New(tmpfile.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		database.Close()
		os.Remove(tmpfile.Name())
	})

	eventBus := bus.New()
	sender := newFakeSender()
	return &Deps{
		Store:  store.New(eventBus),
		DB:     database,
		Bus:    eventBus,
		Sender: sender,
		Log:    zap.NewNop(),
	}, sender
}

func mustSuccess(t *testing.T) func(p *protocol.Packet, afterFn after) *protocol.Packet {
	return func(p *protocol.Packet, afterFn after) *protocol.Packet {
		t.Helper()
		require.NotNil(t, p)
		ok, err := p.GetBool("success")
		require.NoError(t, err)
		require.True(t, ok, "expected success packet, got %+v", p)
		if afterFn != nil {
			afterFn()
		}
		return p
	}
}

func requireError(t *testing.T) func(p *protocol.Packet, afterFn after) {
	return func(p *protocol.Packet, afterFn after) {
		t.Helper()
		require.NotNil(t, p)
		assert.Equal(t, protocol.MsgError, p.Type)
		if afterFn != nil {
			afterFn()
		}
	}
}

func TestSignInThenLoginRoundTrip(t *testing.T) {
	d, _ := newTestDeps(t)

	signUp := protocol.NewPacket(1, protocol.MsgSignIn).SetString("username", "alice").SetString("password", "s3cret")
	resp := mustSuccess(t)(Handle(1, signUp, d))
	userID, err := resp.GetU64("userId")
	require.NoError(t, err)
	assert.NotZero(t, userID)

	d.Store.UnbindSession(1)

	login := protocol.NewPacket(2, protocol.MsgLogin).SetString("username", "alice").SetString("password", "s3cret")
	resp = mustSuccess(t)(Handle(2, login, d))
	loggedInID, err := resp.GetU64("userId")
	require.NoError(t, err)
	assert.Equal(t, userID, loggedInID)
}

// TestLoginRejectsAlreadyBoundUser exercises §8 scenario S1: logging
// in as a user that already has a live session bound must be rejected,
// not silently steal the session, even with the correct password.
func TestLoginRejectsAlreadyBoundUser(t *testing.T) {
	d, _ := newTestDeps(t)

	signUp := protocol.NewPacket(1, protocol.MsgSignIn).SetString("username", "alice").SetString("password", "s3cret")
	mustSuccess(t)(Handle(1, signUp, d))

	login := protocol.NewPacket(2, protocol.MsgLogin).SetString("username", "alice").SetString("password", "s3cret")
	requireError(t)(Handle(2, login, d))
}

func TestLoginWrongPasswordFails(t *testing.T) {
	d, _ := newTestDeps(t)
	signUp := protocol.NewPacket(1, protocol.MsgSignIn).SetString("username", "alice").SetString("password", "s3cret")
	mustSuccess(t)(Handle(1, signUp, d))

	login := protocol.NewPacket(2, protocol.MsgLogin).SetString("username", "alice").SetString("password", "wrong")
	requireError(t)(Handle(2, login, d))
}

func TestCreateRoomRequiresLogin(t *testing.T) {
	d, _ := newTestDeps(t)
	requireError(t)(Handle(1, protocol.NewPacket(1, protocol.MsgCreateRoom), d))
}

func TestFullGameFlowBlackWinsOnFiveInARow(t *testing.T) {
	d, _ := newTestDeps(t)

	mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgSignIn).SetString("username", "alice").SetString("password", "s3cret"), d))
	mustSuccess(t)(Handle(2, protocol.NewPacket(2, protocol.MsgSignIn).SetString("username", "bob").SetString("password", "s3cret"), d))

	aliceID, _ := d.Store.UserForSession(1)
	bobID, _ := d.Store.UserForSession(2)

	createResp := mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgCreateRoom), d))
	roomID, err := createResp.GetU64("roomId")
	require.NoError(t, err)

	mustSuccess(t)(Handle(2, protocol.NewPacket(2, protocol.MsgJoinRoom).SetU64("roomId", roomID), d))

	mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgSyncSeat).SetU64("blackUserId", aliceID).SetU64("whiteUserId", 0), d))
	mustSuccess(t)(Handle(2, protocol.NewPacket(2, protocol.MsgSyncSeat).SetU64("blackUserId", 0).SetU64("whiteUserId", bobID), d))

	mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgGameStarted), d))

	moves := []struct {
		session uint64
		x, y    uint32
	}{
		{1, 0, 0}, {2, 1, 0},
		{1, 0, 1}, {2, 1, 1},
		{1, 0, 2}, {2, 1, 2},
		{1, 0, 3}, {2, 1, 3},
		{1, 0, 4},
	}
	for _, m := range moves {
		mustSuccess(t)(Handle(m.session, protocol.NewPacket(m.session, protocol.MsgMakeMove).SetU32("x", m.x).SetU32("y", m.y), d))
	}

	sync := mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgSyncGame), d))
	status, err := sync.GetString("status")
	require.NoError(t, err)
	assert.Equal(t, "end", status)
}

func TestDrawRejectNotifiesOriginalRequesterDirectly(t *testing.T) {
	d, sender := newTestDeps(t)

	mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgSignIn).SetString("username", "alice").SetString("password", "s3cret"), d))
	mustSuccess(t)(Handle(2, protocol.NewPacket(2, protocol.MsgSignIn).SetString("username", "bob").SetString("password", "s3cret"), d))

	aliceID, _ := d.Store.UserForSession(1)
	bobID, _ := d.Store.UserForSession(2)

	createResp := mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgCreateRoom), d))
	roomID, _ := createResp.GetU64("roomId")
	mustSuccess(t)(Handle(2, protocol.NewPacket(2, protocol.MsgJoinRoom).SetU64("roomId", roomID), d))
	mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgSyncSeat).SetU64("blackUserId", aliceID).SetU64("whiteUserId", 0), d))
	mustSuccess(t)(Handle(2, protocol.NewPacket(2, protocol.MsgSyncSeat).SetU64("blackUserId", 0).SetU64("whiteUserId", bobID), d))
	mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgGameStarted), d))

	mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgDraw).SetU64("negStatus", 0), d))
	mustSuccess(t)(Handle(2, protocol.NewPacket(2, protocol.MsgDraw).SetU64("negStatus", 2), d))

	require.Len(t, sender.sent[1], 1)
	ok, err := sender.sent[1][0].GetBool("success")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExitRoomRemovesEmptyRoom(t *testing.T) {
	d, _ := newTestDeps(t)
	mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgSignIn).SetString("username", "alice").SetString("password", "s3cret"), d))
	createResp := mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgCreateRoom), d))
	roomID, _ := createResp.GetU64("roomId")

	mustSuccess(t)(Handle(1, protocol.NewPacket(1, protocol.MsgExitRoom), d))

	_, err := d.Store.GetRoom(roomID)
	assert.Error(t, err)
}
