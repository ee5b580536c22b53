// Package notify implements the Notifier described in §4.7, grounded
// on original_source/src/core/Notifier.h: it subscribes once
// to every event at startup, synthesizes push packets, and fans them
// out by resolving recipients through the user→session index. Unlike
// the C++ original's single send-packet callback, this port depends on
// an explicit Sender/Directory interface pair so it stays testable
// without a live socket.
package notify

import (
	"go.uber.org/zap"

	"gomoku-server/bus"
	"gomoku-server/protocol"
)

// Sender enqueues an already-addressed packet to a specific session,
// dropping it silently if that session is not Active (§4.3 S4). The
// server package's session table satisfies this via a thin adapter.
type Sender interface {
	SendToSession(sessionID uint64, p *protocol.Packet)
}

// Directory resolves the recipients a push packet must reach. It is
// the read-only subset of store.Store the notifier needs.
type Directory interface {
	SessionForUser(userID uint64) (uint64, bool)
	RoomMembers(roomID uint64) []uint64
	OnlineUserIDs() []uint64
	RoomSnapshot(roomID uint64) (RoomInfo, bool)
}

// RoomInfo is the subset of room state RoomCreated/SyncGame pushes
// need; the server package's adapter fills it in from a *room.Room.
type RoomInfo struct {
	OwnerID   uint64
	Members   []uint64
	BlackSeat uint64
	WhiteSeat uint64
	BoardSize int
	Status    string
}

// Notifier wires the event bus to push-packet fan-out. Construct one
// per server instance with New, which subscribes immediately; there is
// no separate Start method since subscription has no observable effect
// until events are actually published.
type Notifier struct {
	sender Sender
	dir    Directory
	log    *zap.Logger

	tokens []*bus.Token
}

func New(eventBus *bus.Bus, sender Sender, dir Directory, log *zap.Logger) *Notifier {
	n := &Notifier{sender: sender, dir: dir, log: log}
	n.subscribeAll(eventBus)
	return n
}

// Close cancels every subscription token, used in tests that construct
// a short-lived Notifier against a shared bus.
func (n *Notifier) Close() {
	for _, t := range n.tokens {
		t.Cancel()
	}
}

func (n *Notifier) subscribeAll(b *bus.Bus) {
	sub := func(t bus.Type, h bus.Handler) {
		n.tokens = append(n.tokens, b.Subscribe(t, h))
	}

	sub(bus.PlayerJoined, func(e bus.Event) { n.onRoomMembershipChanged(e.(bus.PlayerJoinedEvent).RoomID) })
	sub(bus.PlayerLeft, func(e bus.Event) { n.onRoomMembershipChanged(e.(bus.PlayerLeftEvent).RoomID) })
	sub(bus.PiecePlaced, n.onPiecePlaced)
	sub(bus.GameStarted, n.onGameStarted)
	sub(bus.GameEnded, n.onGameEnded)
	sub(bus.RoomStatusChanged, n.onRoomStatusChanged)
	sub(bus.DrawRequested, func(e bus.Event) { n.onDraw(e.(bus.DrawRequestedEvent).RoomID, e.(bus.DrawRequestedEvent).UserID, "ask") })
	sub(bus.DrawAccepted, func(e bus.Event) { n.onDraw(e.(bus.DrawAcceptedEvent).RoomID, e.(bus.DrawAcceptedEvent).UserID, "accept") })
	sub(bus.GiveUpRequested, n.onGiveUp)
	sub(bus.UndoRequested, func(e bus.Event) { n.onUndo(e.(bus.UndoRequestedEvent).RoomID, e.(bus.UndoRequestedEvent).UserID, "ask") })
	sub(bus.UndoAccepted, func(e bus.Event) { n.onUndo(e.(bus.UndoAcceptedEvent).RoomID, e.(bus.UndoAcceptedEvent).UserID, "accept") })
	sub(bus.RoomCreated, n.onRoomCreated)
	sub(bus.UserLoggedIn, n.onUserLoggedIn)
	sub(bus.RoomListUpdated, n.onRoomListUpdated)
	sub(bus.ChatMessageRecv, n.onChatMessage)
	sub(bus.SyncSeat, n.onSyncSeat)
}

// broadcastToRoom enqueues p to every member of roomID, in member-list
// order (O3), resolving each through the user→session index and
// dropping silently when offline (§4.7).
func (n *Notifier) broadcastToRoom(roomID uint64, build func(memberID uint64) *protocol.Packet) {
	for _, userID := range n.dir.RoomMembers(roomID) {
		sessionID, ok := n.dir.SessionForUser(userID)
		if !ok {
			continue
		}
		n.sender.SendToSession(sessionID, build(userID))
	}
}

func (n *Notifier) broadcastToLobby(build func(userID uint64) *protocol.Packet) {
	for _, userID := range n.dir.OnlineUserIDs() {
		sessionID, ok := n.dir.SessionForUser(userID)
		if !ok {
			continue
		}
		n.sender.SendToSession(sessionID, build(userID))
	}
}

func (n *Notifier) onRoomMembershipChanged(roomID uint64) {
	info, ok := n.dir.RoomSnapshot(roomID)
	if !ok {
		return
	}
	n.broadcastToRoom(roomID, func(uint64) *protocol.Packet {
		p := protocol.NewPacket(0, protocol.MsgSyncUsersToRoom)
		p.SetU64("roomId", roomID)
		p.SetU64("memberCount", uint64(len(info.Members)))
		return p
	})
}

func (n *Notifier) onPiecePlaced(e bus.Event) {
	ev := e.(bus.PiecePlacedEvent)
	n.broadcastToRoom(ev.RoomID, func(uint64) *protocol.Packet {
		p := protocol.NewPacket(0, protocol.MsgMakeMove)
		p.SetU64("roomId", ev.RoomID)
		p.SetU64("userId", ev.UserID)
		p.SetU32("x", ev.X)
		p.SetU32("y", ev.Y)
		return p
	})
}

func (n *Notifier) onGameStarted(e bus.Event) {
	ev := e.(bus.GameStartedEvent)
	n.broadcastToRoom(ev.RoomID, func(uint64) *protocol.Packet {
		p := protocol.NewPacket(0, protocol.MsgGameStarted)
		p.SetU64("roomId", ev.RoomID)
		return p
	})
}

func (n *Notifier) onGameEnded(e bus.Event) {
	ev := e.(bus.GameEndedEvent)
	n.broadcastToRoom(ev.RoomID, func(uint64) *protocol.Packet {
		p := protocol.NewPacket(0, protocol.MsgGameEnded)
		p.SetU64("roomId", ev.RoomID)
		p.SetU64("winnerId", ev.WinnerID)
		return p
	})
}

func (n *Notifier) onRoomStatusChanged(e bus.Event) {
	ev := e.(bus.RoomStatusChangedEvent)
	info, ok := n.dir.RoomSnapshot(ev.RoomID)
	n.broadcastToRoom(ev.RoomID, func(uint64) *protocol.Packet {
		p := protocol.NewPacket(0, protocol.MsgSyncGame)
		p.SetU64("roomId", ev.RoomID)
		p.SetString("status", ev.Status)
		if ok {
			p.SetU64("blackSeat", info.BlackSeat)
			p.SetU64("whiteSeat", info.WhiteSeat)
			p.SetU32("boardSize", uint32(info.BoardSize))
		}
		return p
	})
}

func (n *Notifier) onDraw(roomID, userID uint64, action string) {
	n.broadcastToRoom(roomID, func(uint64) *protocol.Packet {
		p := protocol.NewPacket(0, protocol.MsgDraw)
		p.SetU64("roomId", roomID)
		p.SetU64("userId", userID)
		p.SetString("action", action)
		return p
	})
}

// onUndo pushes an UndoMove notice to every room member, mirroring
// onDraw's ask/accept action tagging (§4.6, §9 Q3).
func (n *Notifier) onUndo(roomID, userID uint64, action string) {
	n.broadcastToRoom(roomID, func(uint64) *protocol.Packet {
		p := protocol.NewPacket(0, protocol.MsgUndoMove)
		p.SetU64("roomId", roomID)
		p.SetU64("userId", userID)
		p.SetString("action", action)
		return p
	})
}

func (n *Notifier) onGiveUp(e bus.Event) {
	ev := e.(bus.GiveUpRequestedEvent)
	n.broadcastToRoom(ev.RoomID, func(uint64) *protocol.Packet {
		p := protocol.NewPacket(0, protocol.MsgGiveUp)
		p.SetU64("roomId", ev.RoomID)
		p.SetU64("userId", ev.UserID)
		return p
	})
}

func (n *Notifier) onRoomCreated(e bus.Event) {
	ev := e.(bus.RoomCreatedEvent)
	info, ok := n.dir.RoomSnapshot(ev.RoomID)
	if !ok {
		return
	}
	n.broadcastToRoom(ev.RoomID, func(uint64) *protocol.Packet {
		p := protocol.NewPacket(0, protocol.MsgSyncGame)
		p.SetU64("roomId", ev.RoomID)
		p.SetU64("ownerId", info.OwnerID)
		p.SetU32("boardSize", uint32(info.BoardSize))
		p.SetU64("memberCount", uint64(len(info.Members)))
		return p
	})
}

func (n *Notifier) onUserLoggedIn(bus.Event) {
	n.broadcastToLobby(func(uint64) *protocol.Packet {
		return protocol.NewPacket(0, protocol.MsgUpdateUsersToLobby)
	})
}

func (n *Notifier) onRoomListUpdated(bus.Event) {
	n.broadcastToLobby(func(uint64) *protocol.Packet {
		return protocol.NewPacket(0, protocol.MsgUpdateRoomsToLobby)
	})
}

func (n *Notifier) onChatMessage(e bus.Event) {
	ev := e.(bus.ChatMessageRecvEvent)
	n.broadcastToRoom(ev.RoomID, func(uint64) *protocol.Packet {
		p := protocol.NewPacket(0, protocol.MsgChatMessage)
		p.SetU64("roomId", ev.RoomID)
		p.SetU64("userId", ev.UserID)
		p.SetString("message", ev.Message)
		return p
	})
}

func (n *Notifier) onSyncSeat(e bus.Event) {
	ev := e.(bus.SyncSeatEvent)
	n.broadcastToRoom(ev.RoomID, func(uint64) *protocol.Packet {
		p := protocol.NewPacket(0, protocol.MsgSyncSeat)
		p.SetU64("roomId", ev.RoomID)
		p.SetU64("blackUserId", ev.BlackUserID)
		p.SetU64("whiteUserId", ev.WhiteUserID)
		return p
	})
}
