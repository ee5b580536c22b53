// Package store implements the in-memory object directory described in
// §4.2 (the Go analogue of the C++ original's ObjectManager,
// original_source/src/core/ObjectManager.h): bidirectional indexes over
// users, rooms, and live sessions, all guarded by one RWMutex (R2, R3).
package store

import (
	"errors"
	"sync"

	"gomoku-server/bus"
	"gomoku-server/models"
	"gomoku-server/room"
)

var (
	ErrUserExists    = errors.New("user already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrRoomNotFound  = errors.New("room not found")
	ErrUserHasNoRoom = errors.New("user is not in a room")
)

// guestIDBase is the first id minted for guest accounts (§9 Q1): guest
// ids live in a disjoint high range from persisted-user ids so a guest
// can never collide with a row loaded from the database, regardless of
// insertion order or restart.
const guestIDBase = 1 << 40

// AIUserID is the reserved sentinel id CreateSingleRoom seats as the
// second player (§9 supplemented features: Single-player/AI room
// creation). It sits at the exact base of the guest range: the first
// guest minted by CreateGuest is guestIDBase+1, so this value is never
// handed out to a real account.
const AIUserID = guestIDBase

// Store is the single in-memory directory of live objects. Every
// index is kept consistent under one lock; cross-entity operations
// (e.g. "move user into room") never need to coordinate two locks.
type Store struct {
	mu sync.RWMutex

	users       map[uint64]*models.User
	usersByName map[string]uint64
	nextUserID  uint64
	nextGuestID uint64

	rooms      map[uint64]*room.Room
	nextRoomID uint64

	sessionToUser map[uint64]uint64
	userToSession map[uint64]uint64

	userToRoom map[uint64]uint64

	bus *bus.Bus
}

// New constructs an empty store bound to eventBus for room construction
// (rooms publish through the same bus as everything else, §9 N2).
func New(eventBus *bus.Bus) *Store {
	return &Store{
		users:         make(map[uint64]*models.User),
		usersByName:   make(map[string]uint64),
		nextGuestID:   guestIDBase,
		rooms:         make(map[uint64]*room.Room),
		sessionToUser: make(map[uint64]uint64),
		userToSession: make(map[uint64]uint64),
		userToRoom:    make(map[uint64]uint64),
		bus:           eventBus,
	}
}

// --- Users -----------------------------------------------------------

// LoadUser inserts a user row recovered from the database at startup,
// preserving its persisted id. Callers must ensure ids passed here
// never fall in the guest range.
func (s *Store) LoadUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	s.usersByName[u.Username] = u.ID
	if u.ID >= s.nextUserID {
		s.nextUserID = u.ID + 1
	}
}

// CreateUser mints a new persisted-range id and registers the user.
func (s *Store) CreateUser(username, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByName[username]; exists {
		return nil, ErrUserExists
	}

	s.nextUserID++
	u := &models.User{
		ID:           s.nextUserID,
		Username:     username,
		PasswordHash: passwordHash,
		Rank:         models.RankForScore(0),
	}
	s.users[u.ID] = u
	s.usersByName[username] = u.ID
	return u, nil
}

// CreateGuest mints a guest account in the disjoint high range (Q1) and
// registers it under displayName, used unchanged as its Username, so
// lobby listings can still key off Username uniformly.
func (s *Store) CreateGuest(displayName string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextGuestID++
	u := &models.User{
		ID:       s.nextGuestID,
		Username: displayName,
		Rank:     models.RankForScore(0),
	}
	s.users[u.ID] = u
	s.usersByName[displayName] = u.ID
	return u
}

// IsGuest reports whether userID was minted by CreateGuest.
func IsGuest(userID uint64) bool { return userID >= guestIDBase }

func (s *Store) GetUserByID(userID uint64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.users[id], nil
}

// RenameUser changes a user's username in place, updating the reverse
// index (EditUsername, §9 supplemented features).
func (s *Store) RenameUser(userID uint64, newUsername string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if _, exists := s.usersByName[newUsername]; exists {
		return ErrUserExists
	}
	delete(s.usersByName, u.Username)
	u.Username = newUsername
	s.usersByName[newUsername] = userID
	return nil
}

// UpdateUser overwrites the stored record in place (score/rank/password
// changes, win-loss bookkeeping on game completion).
func (s *Store) UpdateUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// ListUsers returns up to maxCount users for UpdateUsersToLobby (§4.4).
func (s *Store) ListUsers(maxCount int) []*models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0, maxCount)
	for _, u := range s.users {
		if len(out) >= maxCount {
			break
		}
		out = append(out, u)
	}
	return out
}

// --- Sessions ----------------------------------------------------------

// BindSession associates a live session with an authenticated user
// (R3), replacing any prior mapping for that user. This is a low-level
// index update only — it does not itself decide whether a second login
// for an already-bound user should be allowed; that policy (§8 S1:
// reject a login while the user's existing session is still live)
// belongs to dispatch.handleLogin, which checks SessionForUser before
// ever calling this.
func (s *Store) BindSession(sessionID, userID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oldSession, ok := s.userToSession[userID]; ok {
		delete(s.sessionToUser, oldSession)
	}
	s.sessionToUser[sessionID] = userID
	s.userToSession[userID] = sessionID
}

// UnbindSession removes a session's user mapping, typically on
// disconnect or logout.
func (s *Store) UnbindSession(sessionID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.sessionToUser[sessionID]
	if !ok {
		return
	}
	delete(s.sessionToUser, sessionID)
	if s.userToSession[userID] == sessionID {
		delete(s.userToSession, userID)
	}
}

func (s *Store) UserForSession(sessionID uint64) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.sessionToUser[sessionID]
	return userID, ok
}

func (s *Store) SessionForUser(userID uint64) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.userToSession[userID]
	return sessionID, ok
}

// OnlineUserIDs returns every user id currently bound to a live
// session, for lobby-wide broadcasts (UserLoggedIn, RoomListUpdated).
func (s *Store) OnlineUserIDs() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint64, 0, len(s.userToSession))
	for userID := range s.userToSession {
		out = append(out, userID)
	}
	return out
}

// --- Rooms ---------------------------------------------------------

// CreateRoom mints a room id that is never reused for the process
// lifetime (I6) and registers it in the directory. The caller is
// responsible for publishing bus.RoomCreatedEvent once it has sent its
// own response (§5 O2) — Store never publishes ahead of the handler
// that triggered the creation.
func (s *Store) CreateRoom() *room.Room {
	s.mu.Lock()
	s.nextRoomID++
	id := s.nextRoomID
	r := room.New(id, s.bus)
	s.rooms[id] = r
	s.mu.Unlock()

	return r
}

func (s *Store) GetRoom(roomID uint64) (*room.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// ListRooms returns up to maxCount rooms for UpdateRoomsToLobby (§4.4).
func (s *Store) ListRooms(maxCount int) []*room.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*room.Room, 0, maxCount)
	for _, r := range s.rooms {
		if len(out) >= maxCount {
			break
		}
		out = append(out, r)
	}
	return out
}

// RemoveRoom deletes a room from the directory (End-state cleanup, §9
// Q2: rooms are removed once every member has left rather than kept
// around indefinitely).
func (s *Store) RemoveRoom(roomID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	for userID, rid := range s.userToRoom {
		if rid == roomID {
			delete(s.userToRoom, userID)
		}
	}
}

// --- User/room membership index ------------------------------------

func (s *Store) SetUserRoom(userID, roomID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userToRoom[userID] = roomID
}

func (s *Store) ClearUserRoom(userID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userToRoom, userID)
}

func (s *Store) RoomForUser(userID uint64) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roomID, ok := s.userToRoom[userID]
	return roomID, ok
}
