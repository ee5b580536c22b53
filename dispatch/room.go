package dispatch

import (
	"strings"

	"gomoku-server/bus"
	"gomoku-server/protocol"
	"gomoku-server/room"
)

func handleRoom(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	switch p.Type {
	case protocol.MsgSyncSeat:
		return handleSyncSeat(sessionID, p, d)
	case protocol.MsgSyncRoomSetting:
		return handleSyncRoomSetting(sessionID, p, d)
	case protocol.MsgChatMessage:
		return handleChatMessage(sessionID, p, d)
	case protocol.MsgExitRoom:
		return handleExitRoom(sessionID, p, d)
	case protocol.MsgSyncUsersToRoom:
		return handleSyncUsersToRoom(sessionID, p, d)
	default:
		return errorPacket(p.Type, "Unknown room message"), nil
	}
}

func handleSyncSeat(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	r, ok := requireRoom(userID, d)
	if !ok {
		return errorPacket(p.Type, "You are not in a room"), nil
	}

	blackWant := p.GetU64Or("blackUserId", 0)
	whiteWant := p.GetU64Or("whiteUserId", 0)

	if err := r.SyncSeat(userID, blackWant, whiteWant); err != nil {
		return errorPacket(p.Type, r.LastError()), nil
	}
	return successPacket(p.Type), publishRoomEvents(d, r)
}

func handleSyncRoomSetting(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	r, ok := requireRoom(userID, d)
	if !ok {
		return errorPacket(p.Type, "You are not in a room"), nil
	}

	var settings room.Settings
	if v, err := p.GetU32("boardSize"); err == nil {
		size := int(v)
		settings.BoardSize = &size
	}
	if v, err := p.GetBool("ranked"); err == nil {
		settings.Ranked = &v
	}
	if v, err := p.GetBool("takebackAllowed"); err == nil {
		settings.TakebackAllowed = &v
	}
	if v, err := p.GetU32("baseTimeSeconds"); err == nil {
		secs := int(v)
		settings.BaseTimeSeconds = &secs
	}
	if v, err := p.GetU32("byoyomiSeconds"); err == nil {
		secs := int(v)
		settings.ByoyomiSeconds = &secs
	}
	if v, err := p.GetU32("byoyomiCount"); err == nil {
		count := int(v)
		settings.ByoyomiCount = &count
	}

	if err := r.EditSetting(userID, settings); err != nil {
		return errorPacket(p.Type, r.LastError()), nil
	}
	return successPacket(p.Type), publishRoomEvents(d, r)
}

func handleChatMessage(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	r, ok := requireRoom(userID, d)
	if !ok {
		return errorPacket(p.Type, "You are not in a room"), nil
	}
	message, err := p.GetString("message")
	if err != nil {
		return errorPacket(p.Type, "Missing message"), nil
	}

	resp := successPacket(p.Type)
	roomID := r.ID()
	return resp, func() {
		d.Bus.Publish(bus.ChatMessageRecvEvent{RoomID: roomID, UserID: userID, Message: message})
	}
}

func handleExitRoom(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	r, ok := requireRoom(userID, d)
	if !ok {
		return errorPacket(p.Type, "You are not in a room"), nil
	}

	if err := r.RemovePlayer(userID); err != nil {
		return errorPacket(p.Type, r.LastError()), nil
	}
	d.Store.ClearUserRoom(userID)

	afterFn := publishRoomEvents(d, r)

	if len(r.Members()) == 0 {
		d.Store.RemoveRoom(r.ID())
	}

	return successPacket(p.Type), afterFn
}

func handleSyncUsersToRoom(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	r, ok := requireRoom(userID, d)
	if !ok {
		return errorPacket(p.Type, "You are not in a room"), nil
	}

	lines := make([]string, 0)
	for _, memberID := range r.Members() {
		u, err := d.Store.GetUserByID(memberID)
		if err != nil {
			continue
		}
		_, online := d.Store.SessionForUser(memberID)
		lines = append(lines, formatUserLine(u.Username, online))
	}

	return successPacket(p.Type).SetString("members", strings.Join(lines, "\n")), nil
}
