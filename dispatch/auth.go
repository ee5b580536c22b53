package dispatch

import (
	"gomoku-server/bus"
	"gomoku-server/protocol"
)

func handleAuth(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	switch p.Type {
	case protocol.MsgLogin:
		return handleLogin(sessionID, p, d)
	case protocol.MsgSignIn:
		return handleSignIn(sessionID, p, d)
	case protocol.MsgLoginAsGuest:
		return handleLoginAsGuest(sessionID, p, d)
	case protocol.MsgLogOut:
		return handleLogOut(sessionID, p, d)
	case protocol.MsgGuest2User:
		return handleGuest2User(sessionID, p, d)
	case protocol.MsgEditUsername:
		return handleEditUsername(sessionID, p, d)
	case protocol.MsgEditPassword:
		return handleEditPassword(sessionID, p, d)
	default:
		return errorPacket(p.Type, "Unknown auth message"), nil
	}
}

func handleLogin(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	username, err := p.GetString("username")
	if err != nil {
		return errorPacket(p.Type, "Missing username"), nil
	}
	password, err := p.GetString("password")
	if err != nil {
		return errorPacket(p.Type, "Missing password"), nil
	}

	ok, err := d.DB.AuthenticateUser(username, password)
	if err != nil || !ok {
		return errorPacket(p.Type, "Invalid username or password"), nil
	}

	u, err := d.Store.GetUserByUsername(username)
	if err != nil {
		return errorPacket(p.Type, "Invalid username or password"), nil
	}

	if existing, ok := d.Store.SessionForUser(u.ID); ok && existing != sessionID {
		return errorPacket(p.Type, "Invalid username or password"), nil
	}

	d.Store.BindSession(sessionID, u.ID)

	resp := successPacket(p.Type).SetU64("userId", u.ID).SetString("rank", u.Rank)
	return resp, func() { d.Bus.Publish(bus.UserLoggedInEvent{UserID: u.ID}) }
}

func handleSignIn(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	username, err := p.GetString("username")
	if err != nil {
		return errorPacket(p.Type, "Missing username"), nil
	}
	password, err := p.GetString("password")
	if err != nil {
		return errorPacket(p.Type, "Missing password"), nil
	}

	if exists, _ := d.DB.UserExists(username); exists {
		return errorPacket(p.Type, "Username already taken"), nil
	}

	u, err := d.DB.CreateUser(username, password)
	if err != nil {
		return errorPacket(p.Type, "Could not create account"), nil
	}
	d.Store.LoadUser(u)
	d.Store.BindSession(sessionID, u.ID)

	resp := successPacket(p.Type).SetU64("userId", u.ID).SetString("rank", u.Rank)
	return resp, func() { d.Bus.Publish(bus.UserLoggedInEvent{UserID: u.ID}) }
}

func handleLoginAsGuest(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	displayName := p.GetStringOr("username", "Guest")

	u := d.Store.CreateGuest(displayName)
	d.Store.BindSession(sessionID, u.ID)

	resp := successPacket(p.Type).SetU64("userId", u.ID)
	return resp, func() { d.Bus.Publish(bus.UserLoggedInEvent{UserID: u.ID}) }
}

func handleLogOut(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	if _, ok := requireUser(sessionID, d); !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	d.Store.UnbindSession(sessionID)
	return successPacket(p.Type), nil
}

// handleGuest2User promotes a bound guest session to a persisted
// account: it creates a new user with a new id and rebinds the session
// to it (§9 supplemented features: Guest2User). Room membership stays
// with the guest id and is not transferred.
func handleGuest2User(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	if !storeIsGuest(userID) {
		return errorPacket(p.Type, "Account is already persisted"), nil
	}

	username, err := p.GetString("username")
	if err != nil {
		return errorPacket(p.Type, "Missing username"), nil
	}
	password, err := p.GetString("password")
	if err != nil {
		return errorPacket(p.Type, "Missing password"), nil
	}
	if exists, _ := d.DB.UserExists(username); exists {
		return errorPacket(p.Type, "Username already taken"), nil
	}

	u, err := d.DB.CreateUser(username, password)
	if err != nil {
		return errorPacket(p.Type, "Could not create account"), nil
	}
	d.Store.LoadUser(u)

	d.Store.BindSession(sessionID, u.ID)
	return successPacket(p.Type).SetU64("userId", u.ID), nil
}

func handleEditUsername(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	newUsername, err := p.GetString("username")
	if err != nil {
		return errorPacket(p.Type, "Missing username"), nil
	}
	if err := d.Store.RenameUser(userID, newUsername); err != nil {
		return errorPacket(p.Type, err.Error()), nil
	}
	if u, err := d.Store.GetUserByID(userID); err == nil && !storeIsGuest(userID) {
		_ = d.DB.UpdateUser(u)
	}
	return successPacket(p.Type), nil
}

func handleEditPassword(sessionID uint64, p *protocol.Packet, d *Deps) (*protocol.Packet, after) {
	userID, ok := requireUser(sessionID, d)
	if !ok {
		return errorPacket(p.Type, "Not logged in"), nil
	}
	if storeIsGuest(userID) {
		return errorPacket(p.Type, "Guests have no password"), nil
	}
	newPassword, err := p.GetString("password")
	if err != nil {
		return errorPacket(p.Type, "Missing password"), nil
	}
	if err := d.DB.SetPassword(userID, newPassword); err != nil {
		return errorPacket(p.Type, "Could not update password"), nil
	}
	return successPacket(p.Type), nil
}
