package room

import (
	"errors"
	"sync"

	"gomoku-server/bus"
)

// Status is a Room's lifecycle state (§4.6): Free → Playing → End,
// with End terminal for the room instance (the core never recycles a
// room back to Free).
type Status int

const (
	Free Status = iota
	Playing
	End
)

func (s Status) String() string {
	switch s {
	case Free:
		return "free"
	case Playing:
		return "playing"
	case End:
		return "end"
	default:
		return "unknown"
	}
}

// NegStatus is the three-phase negotiation enum used by Draw and
// UndoMove (§4.6, GLOSSARY: Negotiation).
type NegStatus int

const (
	NegAsk NegStatus = iota
	NegAccept
	NegReject
)

const maxMembers = 2
const defaultBoardSize = 15

// Settings is a partial configuration edit for SyncRoomSetting; a nil
// field leaves that setting unchanged.
type Settings struct {
	BoardSize       *int
	Ranked          *bool
	TakebackAllowed *bool
	BaseTimeSeconds *int
	ByoyomiSeconds  *int
	ByoyomiCount    *int
}

type config struct {
	boardSize       int
	ranked          bool
	takebackAllowed bool
	baseTimeSeconds int
	byoyomiSeconds  int
	byoyomiCount    int
}

// Room is an in-memory game context (§3), guarded by its own mutex
// (R1) rather than any store-wide lock — cross-room operations do not
// exist in the core.
type Room struct {
	mu sync.Mutex

	id      uint64
	status  Status
	ownerID uint64
	members []uint64

	blackSeat uint64
	whiteSeat uint64

	cfg   config
	board *Board

	drawRequestedBy uint64
	undoRequestedBy uint64

	lastError string

	evMu          sync.Mutex
	pendingEvents []bus.Event
}

// New constructs a Free room. The owning store mints the id (I6: room
// ids are never reused within a process lifetime).
func New(id uint64, eventBus *bus.Bus) *Room {
	return &Room{
		id:     id,
		status: Free,
		cfg: config{
			boardSize:       defaultBoardSize,
			takebackAllowed: true,
			baseTimeSeconds: 600,
			byoyomiSeconds:  30,
			byoyomiCount:    5,
		},
		board: NewBoard(defaultBoardSize),
	}
}

func (r *Room) ID() uint64 { return r.id }

// queueEvent buffers a domain event raised by a mutation. Events are
// not published synchronously — the dispatcher drains and publishes
// them only after the triggering response has been sent, so a
// response packet always reaches its session before any push packet
// the same request caused (§5 O2).
func (r *Room) queueEvent(e bus.Event) {
	r.evMu.Lock()
	r.pendingEvents = append(r.pendingEvents, e)
	r.evMu.Unlock()
}

// DrainEvents returns every event queued since the last drain and
// clears the buffer. Callers publish the returned events themselves.
func (r *Room) DrainEvents() []bus.Event {
	r.evMu.Lock()
	defer r.evMu.Unlock()
	out := r.pendingEvents
	r.pendingEvents = nil
	return out
}

// Snapshot accessors — each takes the room lock internally; callers
// must not hold onto the returned slices across further mutation
// (defensive copies are made where it matters).

func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Room) OwnerID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownerID
}

func (r *Room) Members() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Room) Seats() (black, white uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blackSeat, r.whiteSeat
}

func (r *Room) Board() *Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board
}

func (r *Room) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastError
}

func (r *Room) IsMember(userID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isMember(userID)
}

func (r *Room) isMember(userID uint64) bool {
	for _, m := range r.members {
		if m == userID {
			return true
		}
	}
	return false
}

func (r *Room) fail(msg string) error {
	r.lastError = msg
	return errors.New(msg)
}

// AddPlayer appends userID to the member list; the first entrant
// becomes owner (§4.6 Member management).
func (r *Room) AddPlayer(userID uint64) error {
	r.mu.Lock()
	if r.isMember(userID) {
		err := r.fail("Player already in room")
		r.mu.Unlock()
		return err
	}
	if len(r.members) >= maxMembers {
		err := r.fail("Room is full")
		r.mu.Unlock()
		return err
	}
	if len(r.members) == 0 {
		r.ownerID = userID
	}
	r.members = append(r.members, userID)
	roomID := r.id
	r.mu.Unlock()

	r.queueEvent(bus.PlayerJoinedEvent{RoomID: roomID, UserID: userID})
	r.queueEvent(bus.RoomListUpdatedEvent{})
	return nil
}

// RemovePlayer removes userID from the member list, reassigning
// ownership and clearing any seat it held (§4.6).
func (r *Room) RemovePlayer(userID uint64) error {
	r.mu.Lock()
	idx := -1
	for i, m := range r.members {
		if m == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		err := r.fail("Player not in room")
		r.mu.Unlock()
		return err
	}

	r.members = append(r.members[:idx], r.members[idx+1:]...)
	if userID == r.ownerID {
		if len(r.members) > 0 {
			r.ownerID = r.members[0]
		} else {
			r.ownerID = 0
		}
	}

	seatChanged := false
	if userID == r.blackSeat {
		r.blackSeat = 0
		seatChanged = true
	}
	if userID == r.whiteSeat {
		r.whiteSeat = 0
		seatChanged = true
	}

	roomID := r.id
	black, white := r.blackSeat, r.whiteSeat
	r.mu.Unlock()

	if seatChanged {
		r.queueEvent(bus.SyncSeatEvent{RoomID: roomID, BlackUserID: black, WhiteUserID: white})
	}
	r.queueEvent(bus.PlayerLeftEvent{RoomID: roomID, UserID: userID})
	r.queueEvent(bus.RoomListUpdatedEvent{})
	return nil
}

// SyncSeat implements the seat-negotiation contract of §4.6, grounded
// directly on original_source/src/game/Room.cpp's SyncSeat (the exact
// case split below follows that implementation since the prose
// description of §4.6 is deliberately resolved by the original where
// ambiguous).
//
// callerID == 0 is a push-only sentinel: it requests the current seat
// state be (re-)published without attempting any change.
func (r *Room) SyncSeat(callerID, blackWant, whiteWant uint64) error {
	r.mu.Lock()

	if r.status == Playing {
		err := r.fail("Game already started")
		r.mu.Unlock()
		return err
	}
	if callerID != 0 && !r.isMember(callerID) {
		err := r.fail("Player not in room")
		r.mu.Unlock()
		return err
	}

	roomID := r.id

	if callerID == 0 {
		black, white := r.blackSeat, r.whiteSeat
		r.mu.Unlock()
		r.queueEvent(bus.SyncSeatEvent{RoomID: roomID, BlackUserID: black, WhiteUserID: white})
		return nil
	}

	if blackWant == 0 && whiteWant == 0 {
		if callerID == r.blackSeat {
			r.blackSeat = 0
		} else if callerID == r.whiteSeat {
			r.whiteSeat = 0
		}
		black, white := r.blackSeat, r.whiteSeat
		r.mu.Unlock()
		r.queueEvent(bus.SyncSeatEvent{RoomID: roomID, BlackUserID: black, WhiteUserID: white})
		return nil
	}

	if callerID == blackWant && whiteWant == 0 {
		if r.blackSeat == 0 || r.blackSeat == callerID {
			r.blackSeat = callerID
			if r.whiteSeat == callerID {
				r.whiteSeat = 0
			}
			black, white := r.blackSeat, r.whiteSeat
			r.mu.Unlock()
			r.queueEvent(bus.SyncSeatEvent{RoomID: roomID, BlackUserID: black, WhiteUserID: white})
			return nil
		}
	} else if callerID == whiteWant && blackWant == 0 {
		if r.whiteSeat == 0 || r.whiteSeat == callerID {
			r.whiteSeat = callerID
			if r.blackSeat == callerID {
				r.blackSeat = 0
			}
			black, white := r.blackSeat, r.whiteSeat
			r.mu.Unlock()
			r.queueEvent(bus.SyncSeatEvent{RoomID: roomID, BlackUserID: black, WhiteUserID: white})
			return nil
		}
	}

	err := r.fail("Invalid Seat")
	r.mu.Unlock()
	return err
}

// EditSetting applies a partial settings edit. Only the owner may edit,
// and only while the room is not Playing (§4.4 SyncRoomSetting).
func (r *Room) EditSetting(userID uint64, s Settings) error {
	r.mu.Lock()

	if userID != r.ownerID {
		err := r.fail("Only room owner can edit settings")
		r.mu.Unlock()
		return err
	}
	if r.status == Playing {
		err := r.fail("Cannot edit settings while playing")
		r.mu.Unlock()
		return err
	}

	if s.BoardSize != nil && *s.BoardSize > 0 {
		r.cfg.boardSize = *s.BoardSize
		r.board.Reset(r.cfg.boardSize)
	}
	if s.Ranked != nil {
		r.cfg.ranked = *s.Ranked
	}
	if s.TakebackAllowed != nil {
		r.cfg.takebackAllowed = *s.TakebackAllowed
	}
	if s.BaseTimeSeconds != nil {
		r.cfg.baseTimeSeconds = *s.BaseTimeSeconds
	}
	if s.ByoyomiSeconds != nil {
		r.cfg.byoyomiSeconds = *s.ByoyomiSeconds
	}
	if s.ByoyomiCount != nil {
		r.cfg.byoyomiCount = *s.ByoyomiCount
	}

	roomID := r.id
	r.mu.Unlock()
	r.queueEvent(bus.RoomStatusChangedEvent{RoomID: roomID, UserID: userID, Status: "settings_updated"})
	r.queueEvent(bus.RoomListUpdatedEvent{})
	return nil
}

// BoardSize returns the room's configured board size.
func (r *Room) BoardSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.boardSize
}

// StartGame transitions Free → Playing (§4.6). Only the owner may
// start, and both seats must be filled with distinct members.
func (r *Room) StartGame(userID uint64) error {
	r.mu.Lock()

	if userID != r.ownerID {
		err := r.fail("Only room owner can start the game")
		r.mu.Unlock()
		return err
	}
	if r.status == Playing {
		err := r.fail("Game already started")
		r.mu.Unlock()
		return err
	}
	if r.blackSeat == 0 || r.whiteSeat == 0 {
		err := r.fail("Both players must choose a color")
		r.mu.Unlock()
		return err
	}
	if r.blackSeat == r.whiteSeat {
		err := r.fail("Black and white seats must be distinct players")
		r.mu.Unlock()
		return err
	}
	if len(r.members) < 2 {
		err := r.fail("Not enough players")
		r.mu.Unlock()
		return err
	}

	r.status = Playing
	r.board.Reset(r.cfg.boardSize)
	r.drawRequestedBy = 0
	r.undoRequestedBy = 0
	roomID := r.id
	r.mu.Unlock()

	r.queueEvent(bus.GameStartedEvent{RoomID: roomID})
	r.queueEvent(bus.RoomStatusChangedEvent{RoomID: roomID, UserID: userID, Status: "playing"})
	r.queueEvent(bus.RoomListUpdatedEvent{})
	return nil
}

// seatColor returns the Piece color userID occupies, or (Empty, false)
// if they hold neither seat.
func (r *Room) seatColor(userID uint64) (Piece, bool) {
	switch userID {
	case r.blackSeat:
		return Black, true
	case r.whiteSeat:
		return White, true
	default:
		return Empty, false
	}
}

// expectedColorLocked implements §9 Q4: Black moves first on an empty
// board; thereafter the mover must own the color opposite the last
// move's color. Callers must hold r.mu.
func (r *Room) expectedColorLocked() Piece {
	x, y := r.board.LastMove()
	if x < 0 {
		return Black
	}
	if r.board.At(x, y) == Black {
		return White
	}
	return Black
}

// MakeMove places a stone for userID at (x, y), enforcing turn order
// and cell legality, and ends the game on five-in-a-row (§4.6, P9, P10).
func (r *Room) MakeMove(userID uint64, x, y uint32) error {
	r.mu.Lock()

	if r.status != Playing {
		err := r.fail("Game not in progress")
		r.mu.Unlock()
		return err
	}

	color, seated := r.seatColor(userID)
	if !seated {
		err := r.fail("Player is not in this game")
		r.mu.Unlock()
		return err
	}

	if color != r.expectedColorLocked() {
		err := r.fail("Not your turn")
		r.mu.Unlock()
		return err
	}

	if !r.board.PlaceMove(int(x), int(y), color) {
		err := r.fail("Illegal move")
		r.mu.Unlock()
		return err
	}

	roomID := r.id
	winner := r.board.CheckWinAt(int(x), int(y))
	ended := winner != Empty
	if ended {
		r.status = End
	}
	r.mu.Unlock()

	r.queueEvent(bus.PiecePlacedEvent{RoomID: roomID, UserID: userID, X: x, Y: y})
	if ended {
		r.queueEvent(bus.GameEndedEvent{RoomID: roomID, WinnerID: userID})
	}
	return nil
}

// RequestDraw drives the Ask/Accept/Reject negotiation for a draw
// (§4.6). notifyUserID is non-zero only for a successful Reject,
// naming the original asker who must be told directly (no DrawRejected
// event exists in the closed catalogue, §4.5 — spec says Reject is "a
// no-op beyond notifying the requester").
func (r *Room) RequestDraw(userID uint64, status NegStatus) (notifyUserID uint64, err error) {
	r.mu.Lock()

	if r.status != Playing {
		e := r.fail("Game not in progress")
		r.mu.Unlock()
		return 0, e
	}
	if _, seated := r.seatColor(userID); !seated {
		e := r.fail("Player is not in this game")
		r.mu.Unlock()
		return 0, e
	}

	roomID := r.id

	switch status {
	case NegAsk:
		r.drawRequestedBy = userID
		r.mu.Unlock()
		r.queueEvent(bus.DrawRequestedEvent{RoomID: roomID, UserID: userID})
		return 0, nil

	case NegAccept:
		if r.drawRequestedBy == 0 {
			e := r.fail("No pending draw request")
			r.mu.Unlock()
			return 0, e
		}
		if r.drawRequestedBy == userID {
			e := r.fail("Cannot accept your own draw request")
			r.mu.Unlock()
			return 0, e
		}
		r.status = End
		r.drawRequestedBy = 0
		r.mu.Unlock()
		r.queueEvent(bus.DrawAcceptedEvent{RoomID: roomID, UserID: userID})
		r.queueEvent(bus.GameEndedEvent{RoomID: roomID, WinnerID: 0})
		return 0, nil

	case NegReject:
		if r.drawRequestedBy == 0 {
			e := r.fail("No pending draw request")
			r.mu.Unlock()
			return 0, e
		}
		prev := r.drawRequestedBy
		r.drawRequestedBy = 0
		r.mu.Unlock()
		return prev, nil

	default:
		e := r.fail("Invalid negotiation status")
		r.mu.Unlock()
		return 0, e
	}
}

// RequestUndo drives the Ask/Accept/Reject negotiation for a one-ply
// takeback (§4.6, §9 Q3: negotiation carries no coordinates; Accept
// rolls exactly one ply).
func (r *Room) RequestUndo(userID uint64, status NegStatus) (notifyUserID uint64, err error) {
	r.mu.Lock()

	if !r.cfg.takebackAllowed {
		e := r.fail("Takeback disabled")
		r.mu.Unlock()
		return 0, e
	}
	if r.status != Playing {
		e := r.fail("Game not in progress")
		r.mu.Unlock()
		return 0, e
	}
	if _, seated := r.seatColor(userID); !seated {
		e := r.fail("Player is not in this game")
		r.mu.Unlock()
		return 0, e
	}

	roomID := r.id

	switch status {
	case NegAsk:
		r.undoRequestedBy = userID
		r.mu.Unlock()
		r.queueEvent(bus.UndoRequestedEvent{RoomID: roomID, UserID: userID})
		return 0, nil

	case NegAccept:
		if r.undoRequestedBy == 0 {
			e := r.fail("No pending undo request")
			r.mu.Unlock()
			return 0, e
		}
		if r.undoRequestedBy == userID {
			e := r.fail("Cannot accept your own undo request")
			r.mu.Unlock()
			return 0, e
		}
		r.board.UndoMove()
		r.undoRequestedBy = 0
		r.mu.Unlock()
		r.queueEvent(bus.UndoAcceptedEvent{RoomID: roomID, UserID: userID})
		return 0, nil

	case NegReject:
		if r.undoRequestedBy == 0 {
			e := r.fail("No pending undo request")
			r.mu.Unlock()
			return 0, e
		}
		prev := r.undoRequestedBy
		r.undoRequestedBy = 0
		r.mu.Unlock()
		return prev, nil

	default:
		e := r.fail("Invalid negotiation status")
		r.mu.Unlock()
		return 0, e
	}
}

// GiveUp unilaterally ends the game in the opponent's favor (§4.6).
func (r *Room) GiveUp(userID uint64) error {
	r.mu.Lock()

	if r.status != Playing {
		err := r.fail("Game not in progress")
		r.mu.Unlock()
		return err
	}
	color, seated := r.seatColor(userID)
	if !seated {
		err := r.fail("Player is not in this game")
		r.mu.Unlock()
		return err
	}

	var winnerID uint64
	if color == Black {
		winnerID = r.whiteSeat
	} else {
		winnerID = r.blackSeat
	}

	r.status = End
	roomID := r.id
	r.mu.Unlock()

	r.queueEvent(bus.GiveUpRequestedEvent{RoomID: roomID, UserID: userID})
	if winnerID != 0 {
		r.queueEvent(bus.GameEndedEvent{RoomID: roomID, WinnerID: winnerID})
	}
	r.queueEvent(bus.RoomStatusChangedEvent{RoomID: roomID, UserID: userID, Status: "give_up"})
	return nil
}
