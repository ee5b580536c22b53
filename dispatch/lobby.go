package dispatch

import (
	"strings"

	"gomoku-server/bus"
	"gomoku-server/protocol"
	"gomoku-server/room"
	"gomoku-server/store"
)

func handleLobby(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	switch p.Type {
	case protocol.MsgCreateRoom:
		return handleCreateRoom(sessionID, p, d)
	case protocol.MsgJoinRoom:
		return handleJoinRoom(sessionID, p, d)
	case protocol.MsgQuickMatch:
		return handleQuickMatch(sessionID, p, d)
	case protocol.MsgUpdateUsersToLobby:
		return handleUpdateUsersToLobby(sessionID, p, d)
	case protocol.MsgUpdateRoomsToLobby:
		return handleUpdateRoomsToLobby(sessionID, p, d)
	case protocol.MsgCreateSingleRoom:
		return handleCreateSingleRoom(sessionID, p, d)
	default:
		return errorPacket(p.Type, "Unknown lobby message"), nil
	}
}

// joinRoomEvents builds the deferred publish for a successful room
// creation/join: the room's own queued events (PlayerJoined etc) plus
// RoomCreated when r was just minted.
func joinRoomEvents(d *Deps, r *room.Room, justCreated bool, ownerID uint64) after {
	events := r.DrainEvents()
	return func() {
		if justCreated {
			d.Bus.Publish(bus.RoomCreatedEvent{RoomID: r.ID(), OwnerID: ownerID})
		}
		for _, e := range events {
			d.Bus.Publish(e)
		}
	}
}

func handleCreateRoom(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	if _, already := d.Store.RoomForUser(userID); already {
		return errorPacket(p.Type, "Already in a room"), nil
	}

	r := d.Store.CreateRoom()
	if err := r.AddPlayer(userID); err != nil {
		d.Store.RemoveRoom(r.ID())
		return errorPacket(p.Type, err.Error()), nil
	}
	d.Store.SetUserRoom(userID, r.ID())

	resp := successPacket(p.Type).SetU64("roomId", r.ID())
	return resp, joinRoomEvents(d, r, true, userID)
}

func handleJoinRoom(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	roomID, err := p.GetU64("roomId")
	if err != nil {
		return errorPacket(p.Type, "Missing roomId"), nil
	}

	r, err := d.Store.GetRoom(roomID)
	if err != nil {
		return errorPacket(p.Type, "Room not found"), nil
	}
	if err := r.AddPlayer(userID); err != nil {
		return errorPacket(p.Type, r.LastError()), nil
	}
	d.Store.SetUserRoom(userID, roomID)

	resp := successPacket(p.Type).SetU64("roomId", roomID)
	return resp, joinRoomEvents(d, r, false, 0)
}

// handleQuickMatch scans for an existing Free room with an open seat
// before falling back to minting a new one (§9 supplemented features).
func handleQuickMatch(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	if _, already := d.Store.RoomForUser(userID); already {
		return errorPacket(p.Type, "Already in a room"), nil
	}

	var target *room.Room
	justCreated := false
	for _, r := range d.Store.ListRooms(1000) {
		if r.Status() == room.Free && len(r.Members()) < 2 {
			target = r
			break
		}
	}
	if target == nil {
		target = d.Store.CreateRoom()
		justCreated = true
	}

	if err := target.AddPlayer(userID); err != nil {
		return errorPacket(p.Type, err.Error()), nil
	}
	d.Store.SetUserRoom(userID, target.ID())

	resp := successPacket(p.Type).SetU64("roomId", target.ID())
	return resp, joinRoomEvents(d, target, justCreated, userID)
}

// handleCreateSingleRoom creates a room with the caller seated Black
// and the White seat left for a placeholder AI opponent (§9
// supplemented features: the core never implements AI move selection
// itself — it only reserves the seat so a future AI client can occupy
// it like any other player).
func handleCreateSingleRoom(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	if _, already := d.Store.RoomForUser(userID); already {
		return errorPacket(p.Type, "Already in a room"), nil
	}

	r := d.Store.CreateRoom()
	if err := r.AddPlayer(userID); err != nil {
		d.Store.RemoveRoom(r.ID())
		return errorPacket(p.Type, err.Error()), nil
	}
	d.Store.SetUserRoom(userID, r.ID())
	if err := r.AddPlayer(store.AIUserID); err != nil {
		return errorPacket(p.Type, err.Error()), nil
	}
	if err := r.SyncSeat(userID, userID, 0); err != nil {
		return errorPacket(p.Type, err.Error()), nil
	}
	if err := r.SyncSeat(store.AIUserID, 0, store.AIUserID); err != nil {
		return errorPacket(p.Type, err.Error()), nil
	}

	resp := successPacket(p.Type).SetU64("roomId", r.ID()).SetBool("singlePlayer", true)
	return resp, joinRoomEvents(d, r, true, userID)
}

func handleUpdateUsersToLobby(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	maxCount := int(p.GetU64Or("maxCount", defaultLobbyPageSize))
	users := d.Store.ListUsers(maxCount)

	lines := make([]string, 0, len(users))
	for _, u := range users {
		_, online := d.Store.SessionForUser(u.ID)
		lines = append(lines, formatUserLine(u.Username, online))
	}

	return successPacket(p.Type).SetString("users", strings.Join(lines, "\n")), nil
}

func handleUpdateRoomsToLobby(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	maxCount := int(p.GetU64Or("maxCount", defaultLobbyPageSize))
	rooms := d.Store.ListRooms(maxCount)

	lines := make([]string, 0, len(rooms))
	for _, r := range rooms {
		lines = append(lines, formatRoomLine(r))
	}

	return successPacket(p.Type).SetString("rooms", strings.Join(lines, "\n")), nil
}
