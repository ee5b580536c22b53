package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomoku-server/bus"
	"gomoku-server/models"
)

func newTestStore() *Store {
	return New(bus.New())
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	s := newTestStore()
	_, err := s.CreateUser("alice", "hash")
	require.NoError(t, err)

	_, err = s.CreateUser("alice", "otherhash")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestCreateGuestIDsAreDisjointFromPersistedUsers(t *testing.T) {
	s := newTestStore()
	u, err := s.CreateUser("alice", "hash")
	require.NoError(t, err)

	g := s.CreateGuest("Guest1234")
	assert.True(t, IsGuest(g.ID))
	assert.False(t, IsGuest(u.ID))
	assert.NotEqual(t, u.ID, g.ID)
}

func TestLoadUserPreservesIDAndAdvancesCounter(t *testing.T) {
	s := newTestStore()
	s.LoadUser(&models.User{ID: 500, Username: "legacy"})

	found, err := s.GetUserByUsername("legacy")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), found.ID)

	u, err := s.CreateUser("newcomer", "hash")
	require.NoError(t, err)
	assert.Greater(t, u.ID, uint64(500))
}

func TestGetUserByUsernameNotFound(t *testing.T) {
	s := newTestStore()
	_, err := s.GetUserByUsername("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRenameUserUpdatesIndex(t *testing.T) {
	s := newTestStore()
	u, err := s.CreateUser("alice", "hash")
	require.NoError(t, err)

	require.NoError(t, s.RenameUser(u.ID, "alicia"))

	_, err = s.GetUserByUsername("alice")
	assert.ErrorIs(t, err, ErrUserNotFound)

	found, err := s.GetUserByUsername("alicia")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestBindSessionEvictsPriorBinding(t *testing.T) {
	s := newTestStore()
	s.BindSession(100, 1)
	s.BindSession(200, 1)

	_, ok := s.UserForSession(100)
	assert.False(t, ok)

	userID, ok := s.UserForSession(200)
	require.True(t, ok)
	assert.Equal(t, uint64(1), userID)

	sessionID, ok := s.SessionForUser(1)
	require.True(t, ok)
	assert.Equal(t, uint64(200), sessionID)
}

func TestUnbindSessionClearsBothDirections(t *testing.T) {
	s := newTestStore()
	s.BindSession(100, 1)
	s.UnbindSession(100)

	_, ok := s.UserForSession(100)
	assert.False(t, ok)
	_, ok = s.SessionForUser(1)
	assert.False(t, ok)
}

func TestCreateRoomMintsIncreasingIDs(t *testing.T) {
	s := newTestStore()
	r1 := s.CreateRoom()
	r2 := s.CreateRoom()
	assert.Less(t, r1.ID(), r2.ID())
}

func TestRemoveRoomClearsMembershipIndex(t *testing.T) {
	s := newTestStore()
	r := s.CreateRoom()
	s.SetUserRoom(1, r.ID())

	s.RemoveRoom(r.ID())

	_, err := s.GetRoom(r.ID())
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, ok := s.RoomForUser(1)
	assert.False(t, ok)
}

func TestListUsersRespectsMaxCount(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 5; i++ {
		_, err := s.CreateUser(string(rune('a'+i)), "hash")
		require.NoError(t, err)
	}
	assert.Len(t, s.ListUsers(3), 3)
}
