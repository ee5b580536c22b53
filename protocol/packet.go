package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MsgType is the application message type. Its numeric range is the
// dispatcher's routing key (§4.3): 100-199 auth, 200-299 lobby,
// 300-399 room, 400-499 game, 9900-9999 error/push. 0 is the
// heartbeat, handled before any family dispatch.
type MsgType uint16

const (
	MsgHeartbeat MsgType = 0

	// Authentication family (100-199).
	MsgLogin         MsgType = 101
	MsgSignIn        MsgType = 102
	MsgLoginAsGuest  MsgType = 103
	MsgLogOut        MsgType = 104
	MsgGuest2User    MsgType = 105
	MsgEditUsername  MsgType = 106
	MsgEditPassword  MsgType = 107

	// Lobby family (200-299).
	MsgCreateRoom          MsgType = 201
	MsgJoinRoom            MsgType = 202
	MsgQuickMatch          MsgType = 203
	MsgUpdateUsersToLobby  MsgType = 204
	MsgUpdateRoomsToLobby  MsgType = 205
	MsgCreateSingleRoom    MsgType = 206

	// Room family (300-399).
	MsgSyncSeat        MsgType = 301
	MsgSyncRoomSetting MsgType = 302
	MsgChatMessage     MsgType = 303
	MsgExitRoom        MsgType = 304
	MsgSyncUsersToRoom MsgType = 305

	// Game family (400-499).
	MsgMakeMove    MsgType = 401
	MsgUndoMove    MsgType = 402
	MsgDraw        MsgType = 403
	MsgGiveUp      MsgType = 404
	MsgGameStarted MsgType = 405
	MsgGameEnded   MsgType = 406
	MsgSyncGame    MsgType = 407

	// Error/push family (9900-9999).
	MsgError MsgType = 9901
)

// Family partitions a MsgType into the dispatcher's capability sets
// (§9 N5): handleAuth, handleLobby, handleRoom, handleGame, selected
// by msgType/100 rather than a single giant switch.
type Family int

const (
	FamilyNone Family = iota
	FamilyAuth
	FamilyLobby
	FamilyRoom
	FamilyGame
	FamilyControl
)

func (t MsgType) Family() Family {
	switch {
	case t == MsgHeartbeat:
		return FamilyNone
	case t >= 100 && t < 200:
		return FamilyAuth
	case t >= 200 && t < 300:
		return FamilyLobby
	case t >= 300 && t < 400:
		return FamilyRoom
	case t >= 400 && t < 500:
		return FamilyGame
	case t >= 9900 && t < 10000:
		return FamilyControl
	default:
		return FamilyNone
	}
}

// ValueTag identifies the wire encoding of one parameter value (§4.3).
type ValueTag uint8

const (
	TagBool   ValueTag = 1
	TagU32    ValueTag = 2
	TagU64    ValueTag = 3
	TagI32    ValueTag = 4
	TagString ValueTag = 5
)

var (
	ErrUnknownTag   = errors.New("protocol: unknown value tag")
	ErrTruncated    = errors.New("protocol: packet truncated")
	ErrWrongType    = errors.New("protocol: param has a different type than requested")
	ErrParamMissing = errors.New("protocol: required param missing")
)

// Value is a closed, self-describing tagged variant (§9 N3). No
// out-of-band extension is permitted — the decoder rejects unknown
// tags rather than passing them through.
type Value struct {
	Tag ValueTag
	B   bool
	U32 uint32
	U64 uint64
	I32 int32
	Str string
}

func BoolValue(b bool) Value     { return Value{Tag: TagBool, B: b} }
func U32Value(v uint32) Value    { return Value{Tag: TagU32, U32: v} }
func U64Value(v uint64) Value    { return Value{Tag: TagU64, U64: v} }
func I32Value(v int32) Value     { return Value{Tag: TagI32, I32: v} }
func StringValue(s string) Value { return Value{Tag: TagString, Str: s} }

// Packet is the in-memory form of an application message (§3). It
// carries the owning session id, the message type, and a typed
// parameter map.
type Packet struct {
	SessionID uint64
	Type      MsgType
	Params    map[string]Value
}

// NewPacket constructs an empty packet ready to accumulate params.
func NewPacket(sessionID uint64, t MsgType) *Packet {
	return &Packet{SessionID: sessionID, Type: t, Params: make(map[string]Value)}
}

func (p *Packet) SetBool(name string, v bool) *Packet     { p.Params[name] = BoolValue(v); return p }
func (p *Packet) SetU32(name string, v uint32) *Packet     { p.Params[name] = U32Value(v); return p }
func (p *Packet) SetU64(name string, v uint64) *Packet     { p.Params[name] = U64Value(v); return p }
func (p *Packet) SetI32(name string, v int32) *Packet      { p.Params[name] = I32Value(v); return p }
func (p *Packet) SetString(name string, v string) *Packet  { p.Params[name] = StringValue(v); return p }

func (p *Packet) GetBool(name string) (bool, error) {
	v, ok := p.Params[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrParamMissing, name)
	}
	if v.Tag != TagBool {
		return false, ErrWrongType
	}
	return v.B, nil
}

func (p *Packet) GetU32(name string) (uint32, error) {
	v, ok := p.Params[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrParamMissing, name)
	}
	if v.Tag != TagU32 {
		return 0, ErrWrongType
	}
	return v.U32, nil
}

func (p *Packet) GetU64(name string) (uint64, error) {
	v, ok := p.Params[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrParamMissing, name)
	}
	if v.Tag != TagU64 {
		return 0, ErrWrongType
	}
	return v.U64, nil
}

func (p *Packet) GetI32(name string) (int32, error) {
	v, ok := p.Params[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrParamMissing, name)
	}
	if v.Tag != TagI32 {
		return 0, ErrWrongType
	}
	return v.I32, nil
}

func (p *Packet) GetString(name string) (string, error) {
	v, ok := p.Params[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrParamMissing, name)
	}
	if v.Tag != TagString {
		return "", ErrWrongType
	}
	return v.Str, nil
}

// GetStringOr returns the named string param or def when absent or of
// the wrong type, for optional string fields (e.g. LoginAsGuest's
// display name, which defaults to "Guest").
func (p *Packet) GetStringOr(name, def string) string {
	v, ok := p.Params[name]
	if !ok || v.Tag != TagString {
		return def
	}
	return v.Str
}

func (p *Packet) GetU64Or(name string, def uint64) uint64 {
	v, ok := p.Params[name]
	if !ok || v.Tag != TagU64 {
		return def
	}
	return v.U64
}

// EncodePacket serializes a packet body (what rides inside an Active
// frame's Payload):
//
//	msgType:u16 | paramCount:u16 | param*
//
// where each param is nameLen:u16 | name | valueTag:u8 | value.
func EncodePacket(p *Packet) []byte {
	// First pass to size the buffer exactly.
	size := 2 + 2
	names := make([]string, 0, len(p.Params))
	for name, v := range p.Params {
		names = append(names, name)
		size += 2 + len(name) + 1 + valueSize(v)
	}

	buf := make([]byte, size)
	off := 0
	binary.BigEndian.PutUint16(buf[off:], uint16(p.Type))
	off += 2
	binary.BigEndian.PutUint16(buf[off:], uint16(len(names)))
	off += 2

	for _, name := range names {
		v := p.Params[name]
		binary.BigEndian.PutUint16(buf[off:], uint16(len(name)))
		off += 2
		off += copy(buf[off:], name)
		buf[off] = byte(v.Tag)
		off++
		off += encodeValue(buf[off:], v)
	}

	return buf
}

func valueSize(v Value) int {
	switch v.Tag {
	case TagBool:
		return 1
	case TagU32, TagI32:
		return 4
	case TagU64:
		return 8
	case TagString:
		return 4 + len(v.Str)
	default:
		return 0
	}
}

func encodeValue(buf []byte, v Value) int {
	switch v.Tag {
	case TagBool:
		if v.B {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
		return 1
	case TagU32:
		binary.BigEndian.PutUint32(buf, v.U32)
		return 4
	case TagU64:
		binary.BigEndian.PutUint64(buf, v.U64)
		return 8
	case TagI32:
		binary.BigEndian.PutUint32(buf, uint32(v.I32))
		return 4
	case TagString:
		binary.BigEndian.PutUint32(buf, uint32(len(v.Str)))
		copy(buf[4:], v.Str)
		return 4 + len(v.Str)
	default:
		return 0
	}
}

// DecodePacket parses a packet body produced by EncodePacket. It
// rejects unknown value tags outright (§9 N3) rather than skipping
// them.
func DecodePacket(sessionID uint64, body []byte) (*Packet, error) {
	if len(body) < 4 {
		return nil, ErrTruncated
	}
	off := 0
	msgType := MsgType(binary.BigEndian.Uint16(body[off:]))
	off += 2
	paramCount := int(binary.BigEndian.Uint16(body[off:]))
	off += 2

	params := make(map[string]Value, paramCount)
	for i := 0; i < paramCount; i++ {
		if len(body) < off+2 {
			return nil, ErrTruncated
		}
		nameLen := int(binary.BigEndian.Uint16(body[off:]))
		off += 2
		if len(body) < off+nameLen+1 {
			return nil, ErrTruncated
		}
		name := string(body[off : off+nameLen])
		off += nameLen
		tag := ValueTag(body[off])
		off++

		v, n, err := decodeValue(tag, body[off:])
		if err != nil {
			return nil, err
		}
		off += n
		params[name] = v
	}

	return &Packet{SessionID: sessionID, Type: msgType, Params: params}, nil
}

func decodeValue(tag ValueTag, body []byte) (Value, int, error) {
	switch tag {
	case TagBool:
		if len(body) < 1 {
			return Value{}, 0, ErrTruncated
		}
		return Value{Tag: TagBool, B: body[0] != 0}, 1, nil
	case TagU32:
		if len(body) < 4 {
			return Value{}, 0, ErrTruncated
		}
		return Value{Tag: TagU32, U32: binary.BigEndian.Uint32(body)}, 4, nil
	case TagU64:
		if len(body) < 8 {
			return Value{}, 0, ErrTruncated
		}
		return Value{Tag: TagU64, U64: binary.BigEndian.Uint64(body)}, 8, nil
	case TagI32:
		if len(body) < 4 {
			return Value{}, 0, ErrTruncated
		}
		return Value{Tag: TagI32, I32: int32(binary.BigEndian.Uint32(body))}, 4, nil
	case TagString:
		if len(body) < 4 {
			return Value{}, 0, ErrTruncated
		}
		strLen := int(binary.BigEndian.Uint32(body))
		if len(body) < 4+strLen {
			return Value{}, 0, ErrTruncated
		}
		return Value{Tag: TagString, Str: string(body[4 : 4+strLen])}, 4 + strLen, nil
	default:
		return Value{}, 0, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
}
