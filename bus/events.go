package bus

// Each struct below is one row of the closed event catalogue in §4.5;
// the field order matches the documented payload tuple.

type PlayerJoinedEvent struct {
	RoomID uint64
	UserID uint64
}

func (PlayerJoinedEvent) EventType() Type { return PlayerJoined }

type PlayerLeftEvent struct {
	RoomID uint64
	UserID uint64
}

func (PlayerLeftEvent) EventType() Type { return PlayerLeft }

type PiecePlacedEvent struct {
	RoomID uint64
	UserID uint64
	X, Y   uint32
}

func (PiecePlacedEvent) EventType() Type { return PiecePlaced }

type GameStartedEvent struct {
	RoomID uint64
}

func (GameStartedEvent) EventType() Type { return GameStarted }

// GameEndedEvent carries WinnerID == 0 on a draw.
type GameEndedEvent struct {
	RoomID   uint64
	WinnerID uint64
}

func (GameEndedEvent) EventType() Type { return GameEnded }

type RoomStatusChangedEvent struct {
	RoomID uint64
	UserID uint64
	Status string
}

func (RoomStatusChangedEvent) EventType() Type { return RoomStatusChanged }

type DrawRequestedEvent struct {
	RoomID uint64
	UserID uint64
}

func (DrawRequestedEvent) EventType() Type { return DrawRequested }

type DrawAcceptedEvent struct {
	RoomID uint64
	UserID uint64
}

func (DrawAcceptedEvent) EventType() Type { return DrawAccepted }

type GiveUpRequestedEvent struct {
	RoomID uint64
	UserID uint64
}

func (GiveUpRequestedEvent) EventType() Type { return GiveUpRequested }

// UndoRequestedEvent / UndoAcceptedEvent implement the UndoMove
// negotiation (§9 Q3: negotiation carries no coordinates).
type UndoRequestedEvent struct {
	RoomID uint64
	UserID uint64
}

func (UndoRequestedEvent) EventType() Type { return UndoRequested }

type UndoAcceptedEvent struct {
	RoomID uint64
	UserID uint64
}

func (UndoAcceptedEvent) EventType() Type { return UndoAccepted }

type RoomCreatedEvent struct {
	RoomID  uint64
	OwnerID uint64
}

func (RoomCreatedEvent) EventType() Type { return RoomCreated }

type UserLoggedInEvent struct {
	UserID uint64
}

func (UserLoggedInEvent) EventType() Type { return UserLoggedIn }

type RoomListUpdatedEvent struct{}

func (RoomListUpdatedEvent) EventType() Type { return RoomListUpdated }

type ChatMessageRecvEvent struct {
	RoomID  uint64
	UserID  uint64
	Message string
}

func (ChatMessageRecvEvent) EventType() Type { return ChatMessageRecv }

type SyncSeatEvent struct {
	RoomID         uint64
	BlackUserID    uint64
	WhiteUserID    uint64
}

func (SyncSeatEvent) EventType() Type { return SyncSeat }
