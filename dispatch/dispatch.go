// Package dispatch implements the pure (session id, packet) → response
// routing described in §4.4: one function per packet type, a
// response-or-error pair sent back on the same connection, routed by
// protocol.MsgType's range-based Family partitioning (§9 N5) rather
// than a string-keyed packet type.
package dispatch

import (
	"fmt"

	"go.uber.org/zap"

	"gomoku-server/bus"
	"gomoku-server/db"
	"gomoku-server/protocol"
	"gomoku-server/room"
	"gomoku-server/store"
)

// Sender lets a handler push a packet directly to one session outside
// the normal response path — used only by Draw/UndoMove Reject, which
// notifies the original requester without a broadcast event (§4.6).
type Sender interface {
	SendToSession(sessionID uint64, p *protocol.Packet)
}

// Deps bundles everything a handler needs. Dispatch itself holds no
// state; every call is a pure function of (sessionID, packet, Deps).
type Deps struct {
	Store  *store.Store
	DB     *db.DB
	Bus    *bus.Bus
	Sender Sender
	Log    *zap.Logger
}

const defaultLobbyPageSize = 10

// after is whatever a handler needs to run once its response packet
// has actually been sent — publishing the domain events a mutation
// queued, or pushing a direct notification. Deferring this until the
// caller has sent the response guarantees a response always reaches
// its own session before any push packet the same request causes
// (§5 O2); nil means there is nothing left to do.
type after func()

// Handle routes one decoded packet to its family handler. It returns
// the response packet to enqueue on the calling session (§4.4 step
// 4/5) and a deferred action the caller MUST invoke only after that
// packet has actually been written out.
func Handle(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	switch p.Type.Family() {
	case protocol.FamilyAuth:
		return handleAuth(sessionID, p, d)
	case protocol.FamilyLobby:
		return handleLobby(sessionID, p, d)
	case protocol.FamilyRoom:
		return handleRoom(sessionID, p, d)
	case protocol.FamilyGame:
		return handleGame(sessionID, p, d)
	default:
		return errorPacket(p.Type, "Unknown message type"), nil
	}
}

// publishRoomEvents drains r's queued events and returns an after that
// publishes them, for handlers whose mutation succeeded.
func publishRoomEvents(d *Deps, r *room.Room) after {
	events := r.DrainEvents()
	if len(events) == 0 {
		return nil
	}
	return func() {
		for _, e := range events {
			d.Bus.Publish(e)
		}
	}
}

func successPacket(t protocol.MsgType) *protocol.Packet {
	return protocol.NewPacket(0, t).SetBool("success", true)
}

func errorPacket(t protocol.MsgType, message string) *protocol.Packet {
	return protocol.NewPacket(0, protocol.MsgError).
		SetU32("operation", uint32(t)).
		SetString("message", message)
}

// requireUser resolves the calling user from sessionID (§4.4 step 1).
func requireUser(sessionID uint64, d *Deps) (uint64, bool) {
	return d.Store.UserForSession(sessionID)
}

// requireRoom resolves the caller's current room via the user→room
// index, never from the packet body (§4.4 step 2).
func requireRoom(userID uint64, d *Deps) (*room.Room, bool) {
	roomID, ok := d.Store.RoomForUser(userID)
	if !ok {
		return nil, false
	}
	r, err := d.Store.GetRoom(roomID)
	if err != nil {
		return nil, false
	}
	return r, true
}

func formatUserLine(username string, online bool) string {
	status := "offline"
	if online {
		status = "online"
	}
	return fmt.Sprintf("%s (%s)", username, status)
}

func formatRoomLine(r *room.Room) string {
	return fmt.Sprintf("#%d, %s, %d members", r.ID(), r.Status(), len(r.Members()))
}

// storeIsGuest exposes store.IsGuest under the name the auth handlers
// already call it by; kept as a thin alias so this file doesn't need
// to import store just for one predicate.
func storeIsGuest(userID uint64) bool { return store.IsGuest(userID) }
