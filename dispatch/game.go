package dispatch

import (
	"gomoku-server/protocol"
	"gomoku-server/room"
)

// negStatusFromPacket decodes the three-phase negotiation enum shared
// by Draw and UndoMove (§4.6).
func negStatusFromPacket(p *protocol.Packet) room.NegStatus {
	switch p.GetU64Or("negStatus", 0) {
	case 1:
		return room.NegAccept
	case 2:
		return room.NegReject
	default:
		return room.NegAsk
	}
}

func handleGame(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	switch p.Type {
	case protocol.MsgMakeMove:
		return handleMakeMove(sessionID, p, d)
	case protocol.MsgUndoMove:
		return handleUndoMove(sessionID, p, d)
	case protocol.MsgDraw:
		return handleDraw(sessionID, p, d)
	case protocol.MsgGiveUp:
		return handleGiveUp(sessionID, p, d)
	case protocol.MsgGameStarted:
		return handleGameStarted(sessionID, p, d)
	case protocol.MsgSyncGame:
		return handleSyncGame(sessionID, p, d)
	default:
		return errorPacket(p.Type, "Unknown game message"), nil
	}
}

func handleMakeMove(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	r, ok := requireRoom(userID, d)
	if !ok {
		return errorPacket(p.Type, "You are not in a room"), nil
	}

	x, err := p.GetU32("x")
	if err != nil {
		return errorPacket(p.Type, "Missing x"), nil
	}
	y, err := p.GetU32("y")
	if err != nil {
		return errorPacket(p.Type, "Missing y"), nil
	}

	if err := r.MakeMove(userID, x, y); err != nil {
		return errorPacket(p.Type, r.LastError()), nil
	}
	return successPacket(p.Type), publishRoomEvents(d, r)
}

func handleUndoMove(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	r, ok := requireRoom(userID, d)
	if !ok {
		return errorPacket(p.Type, "You are not in a room"), nil
	}

	notifyUserID, err := r.RequestUndo(userID, negStatusFromPacket(p))
	if err != nil {
		return errorPacket(p.Type, r.LastError()), nil
	}

	afterFn := publishRoomEvents(d, r)
	if notifyUserID != 0 {
		afterFn = combineAfter(afterFn, func() {
			notifyDirectRejection(d, notifyUserID, p.Type, "Your undo request was declined")
		})
	}
	return successPacket(p.Type), afterFn
}

func handleDraw(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	r, ok := requireRoom(userID, d)
	if !ok {
		return errorPacket(p.Type, "You are not in a room"), nil
	}

	notifyUserID, err := r.RequestDraw(userID, negStatusFromPacket(p))
	if err != nil {
		return errorPacket(p.Type, r.LastError()), nil
	}

	afterFn := publishRoomEvents(d, r)
	if notifyUserID != 0 {
		afterFn = combineAfter(afterFn, func() {
			notifyDirectRejection(d, notifyUserID, p.Type, "Your draw offer was declined")
		})
	}
	return successPacket(p.Type), afterFn
}

// combineAfter chains two deferred actions, either of which may be nil,
// preserving execution order.
func combineAfter(first, second after) after {
	if first == nil {
		return second
	}
	if second == nil {
		return first
	}
	return func() {
		first()
		second()
	}
}

// notifyDirectRejection pushes a direct (non-broadcast) notice to the
// original negotiation requester when the other party rejects, since
// no *Rejected event exists in the closed catalogue (§4.5).
func notifyDirectRejection(d *Deps, userID uint64, msgType protocol.MsgType, message string) {
	sessionID, ok := d.Store.SessionForUser(userID)
	if !ok {
		return
	}
	pkt := protocol.NewPacket(0, msgType).SetBool("success", false).SetString("message", message)
	d.Sender.SendToSession(sessionID, pkt)
}

func handleGiveUp(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	r, ok := requireRoom(userID, d)
	if !ok {
		return errorPacket(p.Type, "You are not in a room"), nil
	}

	if err := r.GiveUp(userID); err != nil {
		return errorPacket(p.Type, r.LastError()), nil
	}
	return successPacket(p.Type), publishRoomEvents(d, r)
}

func handleGameStarted(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	r, ok := requireRoom(userID, d)
	if !ok {
		return errorPacket(p.Type, "You are not in a room"), nil
	}

	if err := r.StartGame(userID); err != nil {
		return errorPacket(p.Type, r.LastError()), nil
	}
	return successPacket(p.Type), publishRoomEvents(d, r)
}

// boardCellChar renders one board cell for SyncGame's flattened string
// encoding — the packet codec's closed tag set (§9 N3) has no array
// type, so a size*size run of '.'/'B'/'W' characters is the simplest
// encoding that stays inside one string param.
func boardCellChar(piece room.Piece) byte {
	switch piece {
	case room.Black:
		return 'B'
	case room.White:
		return 'W'
	default:
		return '.'
	}
}

func handleSyncGame(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	r, ok := requireRoom(userID, d)
	if !ok {
		return errorPacket(p.Type, "You are not in a room"), nil
	}

	b := r.Board()
	size := b.Size()
	cells := make([]byte, 0, size*size)
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			cells = append(cells, boardCellChar(b.At(x, y)))
		}
	}

	black, white := r.Seats()
	resp := successPacket(p.Type).
		SetString("status", r.Status().String()).
		SetU32("boardSize", uint32(size)).
		SetU64("blackSeat", black).
		SetU64("whiteSeat", white).
		SetString("cells", string(cells))
	return resp, nil
}
