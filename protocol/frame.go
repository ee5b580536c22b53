// Package protocol implements the wire-level frame codec and the
// typed packet codec that rides inside Active frames.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Status is the frame-level handshake/session status code.
type Status uint8

const (
	StatusHello          Status = 1
	StatusNewSession     Status = 2
	StatusPending        Status = 3
	StatusActivated      Status = 4
	StatusActive         Status = 5
	StatusInactive       Status = 6
	StatusError          Status = 7
	StatusInvalidRequest Status = 8
)

func (s Status) String() string {
	switch s {
	case StatusHello:
		return "Hello"
	case StatusNewSession:
		return "NewSession"
	case StatusPending:
		return "Pending"
	case StatusActivated:
		return "Activated"
	case StatusActive:
		return "Active"
	case StatusInactive:
		return "Inactive"
	case StatusError:
		return "Error"
	case StatusInvalidRequest:
		return "InvalidRequest"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// FrameMagic identifies the start of a well-formed frame. A mismatch
// closes the connection (§4.1 F2) rather than producing a reply.
const FrameMagic uint16 = 0x4D53 // "MS"

// MaxPayloadLen is the default cap on Frame.Payload (§4.1 F3). Frames
// whose declared payloadLen exceeds this close the connection.
const MaxPayloadLen = 1 << 20 // 1 MiB

// IVLen is the only supported nonce length for Active frames.
const IVLen = 16

var (
	ErrBadMagic      = errors.New("protocol: bad frame magic")
	ErrPayloadTooBig = errors.New("protocol: payload exceeds configured maximum")
	ErrBadIVLen      = errors.New("protocol: active frame must carry a 16-byte iv")
	ErrShortBuffer   = errors.New("protocol: buffer too short for a complete frame")
)

// Frame is one length-prefixed on-wire unit:
//
//	magic:u16 | status:u8 | sessionId:u64 | ivLen:u8 | iv:ivLen |
//	payloadLen:u32 | payload:payloadLen
type Frame struct {
	Status    Status
	SessionID uint64
	IV        []byte // len 16 when Status == StatusActive, else empty
	Payload   []byte
}

// Encode serializes f into its on-wire representation.
func (f Frame) Encode() ([]byte, error) {
	if f.Status == StatusActive && len(f.IV) != IVLen {
		return nil, ErrBadIVLen
	}
	if len(f.Payload) > MaxPayloadLen {
		return nil, ErrPayloadTooBig
	}

	size := 2 + 1 + 8 + 1 + len(f.IV) + 4 + len(f.Payload)
	buf := make([]byte, size)
	off := 0

	binary.BigEndian.PutUint16(buf[off:], FrameMagic)
	off += 2
	buf[off] = byte(f.Status)
	off++
	binary.BigEndian.PutUint64(buf[off:], f.SessionID)
	off += 8
	buf[off] = byte(len(f.IV))
	off++
	off += copy(buf[off:], f.IV)
	binary.BigEndian.PutUint32(buf[off:], uint32(len(f.Payload)))
	off += 4
	copy(buf[off:], f.Payload)

	return buf, nil
}

// headerLen is the number of bytes before the variable-length iv.
const headerLen = 2 + 1 + 8 + 1

// TryDecode attempts to split one frame off the front of buf. It
// returns the decoded frame, the number of bytes consumed, and ok=false
// when buf does not yet hold a complete frame (F1) — the caller should
// wait for more input rather than treat this as an error.
//
// maxPayload enforces F3; a violating frame returns ErrPayloadTooBig
// with ok=true and ZERO consumed bytes left un-consumed — the caller
// must treat this as fatal and close the connection (T1).
func TryDecode(buf []byte, maxPayload int) (Frame, int, bool, error) {
	if len(buf) < headerLen {
		return Frame{}, 0, false, nil
	}

	off := 0
	magic := binary.BigEndian.Uint16(buf[off:])
	off += 2
	if magic != FrameMagic {
		return Frame{}, 0, true, ErrBadMagic
	}

	status := Status(buf[off])
	off++
	sessionID := binary.BigEndian.Uint64(buf[off:])
	off += 8
	ivLen := int(buf[off])
	off++

	if len(buf) < off+ivLen+4 {
		return Frame{}, 0, false, nil
	}

	iv := make([]byte, ivLen)
	copy(iv, buf[off:off+ivLen])
	off += ivLen

	payloadLen := int(binary.BigEndian.Uint32(buf[off:]))
	off += 4

	if payloadLen > maxPayload {
		return Frame{}, 0, true, ErrPayloadTooBig
	}

	if len(buf) < off+payloadLen {
		return Frame{}, 0, false, nil
	}

	payload := make([]byte, payloadLen)
	copy(payload, buf[off:off+payloadLen])
	off += payloadLen

	if status == StatusActive && ivLen != IVLen {
		return Frame{}, off, true, ErrBadIVLen
	}

	return Frame{Status: status, SessionID: sessionID, IV: iv, Payload: payload}, off, true, nil
}

// ReadFrame reads exactly one frame from r, blocking until the header
// and payload have arrived. It is a convenience wrapper over TryDecode
// for callers (tests, simple clients) that don't maintain their own
// accumulation buffer; the transport layer uses TryDecode directly
// against its per-connection buffer instead.
func ReadFrame(r io.Reader, maxPayload int) (Frame, error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, err
	}

	magic := binary.BigEndian.Uint16(header[0:])
	if magic != FrameMagic {
		return Frame{}, ErrBadMagic
	}
	status := Status(header[2])
	sessionID := binary.BigEndian.Uint64(header[3:])
	ivLen := int(header[11])

	iv := make([]byte, ivLen)
	if ivLen > 0 {
		if _, err := io.ReadFull(r, iv); err != nil {
			return Frame{}, err
		}
	}
	if status == StatusActive && ivLen != IVLen {
		return Frame{}, ErrBadIVLen
	}

	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return Frame{}, err
	}
	payloadLen := int(binary.BigEndian.Uint32(lenBuf))
	if payloadLen > maxPayload {
		return Frame{}, ErrPayloadTooBig
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}

	return Frame{Status: status, SessionID: sessionID, IV: iv, Payload: payload}, nil
}
