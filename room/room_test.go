package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomoku-server/bus"
)

func newTestRoom(id uint64) (*Room, *bus.Bus) {
	b := bus.New()
	return New(id, b), b
}

func TestAddPlayerFirstBecomesOwner(t *testing.T) {
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	assert.Equal(t, uint64(10), r.OwnerID())
	assert.ElementsMatch(t, []uint64{10}, r.Members())
}

func TestAddPlayerRoomFullAfterTwo(t *testing.T) {
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	require.NoError(t, r.AddPlayer(20))
	err := r.AddPlayer(30)
	require.Error(t, err)
	assert.Equal(t, "Room is full", r.LastError())
}

func TestAddPlayerAlreadyInRoom(t *testing.T) {
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	err := r.AddPlayer(10)
	require.Error(t, err)
}

func TestRemovePlayerReassignsOwnerAndClearsSeat(t *testing.T) {
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	require.NoError(t, r.AddPlayer(20))
	require.NoError(t, r.SyncSeat(10, 10, 0))

	require.NoError(t, r.RemovePlayer(10))
	assert.Equal(t, uint64(20), r.OwnerID())
	black, _ := r.Seats()
	assert.Equal(t, uint64(0), black)
}

func TestSyncSeatTakeBlackThenWhite(t *testing.T) {
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	require.NoError(t, r.AddPlayer(20))

	require.NoError(t, r.SyncSeat(10, 10, 0))
	require.NoError(t, r.SyncSeat(20, 0, 20))

	black, white := r.Seats()
	assert.Equal(t, uint64(10), black)
	assert.Equal(t, uint64(20), white)
}

func TestSyncSeatSwitchingSeatsMovesCaller(t *testing.T) {
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	require.NoError(t, r.AddPlayer(20))

	require.NoError(t, r.SyncSeat(10, 10, 0))
	require.NoError(t, r.SyncSeat(10, 0, 10))

	black, white := r.Seats()
	assert.Equal(t, uint64(0), black)
	assert.Equal(t, uint64(10), white)
}

func TestSyncSeatRejectsTakingSomeoneElsesSeat(t *testing.T) {
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	require.NoError(t, r.AddPlayer(20))
	require.NoError(t, r.SyncSeat(10, 10, 0))

	err := r.SyncSeat(20, 20, 0)
	require.Error(t, err)
}

func TestSyncSeatIdempotentStillPublishes(t *testing.T) {
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	require.NoError(t, r.SyncSeat(10, 10, 0))
	r.DrainEvents()

	require.NoError(t, r.SyncSeat(10, 10, 0))
	events := r.DrainEvents()

	count := 0
	for _, e := range events {
		if e.EventType() == bus.SyncSeat {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSyncSeatRejectedDuringPlaying(t *testing.T) {
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	require.NoError(t, r.AddPlayer(20))
	require.NoError(t, r.SyncSeat(10, 10, 0))
	require.NoError(t, r.SyncSeat(20, 0, 20))
	require.NoError(t, r.StartGame(10))

	err := r.SyncSeat(10, 0, 10)
	require.Error(t, err)
}

func setupPlayingRoom(t *testing.T) *Room {
	t.Helper()
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	require.NoError(t, r.AddPlayer(20))
	require.NoError(t, r.SyncSeat(10, 10, 0))
	require.NoError(t, r.SyncSeat(20, 0, 20))
	require.NoError(t, r.StartGame(10))
	return r
}

func TestStartGameRequiresBothSeats(t *testing.T) {
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	require.NoError(t, r.AddPlayer(20))
	err := r.StartGame(10)
	require.Error(t, err)
	assert.Equal(t, "Both players must choose a color", r.LastError())
}

func TestStartGameOnlyOwner(t *testing.T) {
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	require.NoError(t, r.AddPlayer(20))
	require.NoError(t, r.SyncSeat(10, 10, 0))
	require.NoError(t, r.SyncSeat(20, 0, 20))

	err := r.StartGame(20)
	require.Error(t, err)
}

func TestMakeMoveEnforcesBlackFirst(t *testing.T) {
	r := setupPlayingRoom(t)

	err := r.MakeMove(20, 7, 7)
	require.Error(t, err)
	assert.Equal(t, "Not your turn", r.LastError())

	require.NoError(t, r.MakeMove(10, 7, 7))
	err = r.MakeMove(10, 7, 8)
	require.Error(t, err)
}

func TestMakeMoveRejectsOccupiedCell(t *testing.T) {
	r := setupPlayingRoom(t)
	require.NoError(t, r.MakeMove(10, 7, 7))
	require.NoError(t, r.MakeMove(20, 7, 8))
	err := r.MakeMove(10, 7, 7)
	require.Error(t, err)
}

func TestMakeMoveDetectsFiveInARowAndEndsGame(t *testing.T) {
	r := setupPlayingRoom(t)

	// Black plays (0,0)..(0,3) horizontally on row 0 with White
	// interleaved off to the side; Black wins on the fifth stone.
	moves := []struct {
		user uint64
		x, y uint32
	}{
		{10, 0, 0}, {20, 1, 0},
		{10, 0, 1}, {20, 1, 1},
		{10, 0, 2}, {20, 1, 2},
		{10, 0, 3}, {20, 1, 3},
	}
	for _, m := range moves {
		require.NoError(t, r.MakeMove(m.user, m.x, m.y))
	}
	assert.Equal(t, Playing, r.Status())

	require.NoError(t, r.MakeMove(10, 0, 4))
	assert.Equal(t, End, r.Status())
}

func TestGiveUpEndsGameForOpponent(t *testing.T) {
	r := setupPlayingRoom(t)
	r.DrainEvents()

	require.NoError(t, r.GiveUp(10))
	assert.Equal(t, End, r.Status())

	var winner uint64
	for _, e := range r.DrainEvents() {
		if ev, ok := e.(bus.GameEndedEvent); ok {
			winner = ev.WinnerID
		}
	}
	assert.Equal(t, uint64(20), winner)
}

func TestDrawNegotiationAcceptEndsGame(t *testing.T) {
	r := setupPlayingRoom(t)

	_, err := r.RequestDraw(10, NegAsk)
	require.NoError(t, err)

	_, err = r.RequestDraw(10, NegAccept)
	require.Error(t, err, "requester cannot accept their own draw offer")

	_, err = r.RequestDraw(20, NegAccept)
	require.NoError(t, err)
	assert.Equal(t, End, r.Status())
}

func TestDrawNegotiationRejectNotifiesRequester(t *testing.T) {
	r := setupPlayingRoom(t)

	_, err := r.RequestDraw(10, NegAsk)
	require.NoError(t, err)

	notify, err := r.RequestDraw(20, NegReject)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), notify)
	assert.Equal(t, Playing, r.Status())
}

func TestUndoNegotiationAcceptRollsOnePly(t *testing.T) {
	r := setupPlayingRoom(t)
	require.NoError(t, r.MakeMove(10, 7, 7))
	require.NoError(t, r.MakeMove(20, 7, 8))

	_, err := r.RequestUndo(20, NegAsk)
	require.NoError(t, err)
	_, err = r.RequestUndo(10, NegAccept)
	require.NoError(t, err)

	assert.Equal(t, Empty, r.Board().At(7, 8))
	assert.Equal(t, Black, r.Board().At(7, 7))

	x, y := r.Board().LastMove()
	assert.Equal(t, 7, x)
	assert.Equal(t, 7, y)
}

func TestEditSettingOnlyOwnerAndNotPlaying(t *testing.T) {
	r, _ := newTestRoom(1)
	require.NoError(t, r.AddPlayer(10))
	require.NoError(t, r.AddPlayer(20))

	newSize := 19
	err := r.EditSetting(20, Settings{BoardSize: &newSize})
	require.Error(t, err)

	require.NoError(t, r.EditSetting(10, Settings{BoardSize: &newSize}))
	assert.Equal(t, 19, r.BoardSize())
}
