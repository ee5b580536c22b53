// Package session implements the per-connection handshake state
// machine and session table described in §4.1/§4.3: a Session struct
// with its last-activity bookkeeping and a server-wide sessions map, keyed
// by a numeric session id with an explicit handshake phase rather than
// by login.
package session

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"gomoku-server/crypto"
	"gomoku-server/protocol"
)

// Phase is a session's position in the handshake state machine
// (§4.1): Greeting → KeyPending → Active. There is no path back to an
// earlier phase; a session that fails handshake is simply dropped.
type Phase int

const (
	Greeting Phase = iota
	KeyPending
	Active
	Closed
)

var (
	ErrWrongPhase  = errors.New("session: frame status invalid for current phase")
	ErrNotActive   = errors.New("session: session is not active")
	ErrSendDropped = errors.New("session: outbound packet dropped, session not active")
)

// Sink is how a Session hands an encoded frame to the transport. The
// session layer never touches net.Conn directly so it can be tested
// with an in-memory stand-in.
type Sink interface {
	Write(frame protocol.Frame) error
}

// Session is one client connection's handshake/crypto/liveness state
// (§4.1, §4.3). All mutation goes through its exported methods, which
// take the internal mutex (R3 applied per-session rather than only at
// the table level).
type Session struct {
	mu sync.Mutex

	id     uint64
	phase  Phase
	cipher crypto.Cipher

	sharedKey []byte

	lastActivity time.Time
	expireTaskID uint64 // owned by the caller (timewheel), stored for Cancel

	sink Sink
	log  *zap.Logger
}

// newSession constructs a Greeting-phase session. Unexported: sessions
// are only ever minted by a Table so ids stay unique process-wide.
func newSession(id uint64, cipher crypto.Cipher, sink Sink, log *zap.Logger) *Session {
	return &Session{
		id:           id,
		phase:        Greeting,
		cipher:       cipher,
		sink:         sink,
		lastActivity: time.Now(),
		log:          log,
	}
}

func (s *Session) ID() uint64 { return s.id }

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

func (s *Session) IdleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

func (s *Session) SetExpireTask(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireTaskID = id
}

func (s *Session) ExpireTask() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expireTaskID
}

// BeginHandshake sends the NewSession frame carrying the server's
// ephemeral public key and signature, and advances Greeting →
// KeyPending (§4.1).
func (s *Session) BeginHandshake() error {
	s.mu.Lock()
	if s.phase != Greeting {
		err := ErrWrongPhase
		s.mu.Unlock()
		return err
	}
	s.phase = KeyPending
	pub := s.cipher.ServerPublicBytes()
	sig := s.cipher.Signature()
	id := s.id
	s.mu.Unlock()

	payload := append(append([]byte{}, pub...), sig...)
	return s.sink.Write(protocol.Frame{
		Status:    protocol.StatusNewSession,
		SessionID: id,
		Payload:   payload,
	})
}

// CompleteHandshake derives the shared key from the client's Pending
// frame payload (its public value) and advances KeyPending → Active,
// sending Activated (§4.1).
func (s *Session) CompleteHandshake(peerPublic []byte) error {
	s.mu.Lock()
	if s.phase != KeyPending {
		err := ErrWrongPhase
		s.mu.Unlock()
		return err
	}

	shared, err := s.cipher.Derive(peerPublic)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.sharedKey = shared
	s.phase = Active
	s.lastActivity = time.Now()
	id := s.id
	s.mu.Unlock()

	return s.sink.Write(protocol.Frame{
		Status:    protocol.StatusActivated,
		SessionID: id,
	})
}

// Encrypt seals an outbound packet payload under the session's shared
// key with the caller-supplied IV. Returns ErrNotActive if the
// handshake has not completed (S4: never enqueue to a non-Active
// session).
func (s *Session) Encrypt(plaintext []byte, iv []byte) ([]byte, error) {
	s.mu.Lock()
	if s.phase != Active {
		s.mu.Unlock()
		return nil, ErrNotActive
	}
	key := s.sharedKey
	c := s.cipher
	s.mu.Unlock()

	return c.Encrypt(key, plaintext, iv)
}

// Decrypt opens an inbound Active frame's payload.
func (s *Session) Decrypt(ciphertext []byte, iv []byte) ([]byte, error) {
	s.mu.Lock()
	if s.phase != Active {
		s.mu.Unlock()
		return nil, ErrNotActive
	}
	key := s.sharedKey
	c := s.cipher
	s.mu.Unlock()

	return c.Decrypt(key, ciphertext, iv)
}

// Send writes a pre-built frame out the session's sink, but only while
// Active — a session mid-handshake or already closed drops the frame
// (S4) and returns ErrSendDropped, which callers (the notifier in
// particular) log and otherwise treat as routine, not exceptional.
func (s *Session) Send(frame protocol.Frame) error {
	s.mu.Lock()
	active := s.phase == Active
	s.mu.Unlock()

	if !active {
		return ErrSendDropped
	}
	return s.sink.Write(frame)
}

// SendPacket encodes p, seals it under the session's shared key with a
// fresh random IV, and writes the resulting Active frame. This is the
// one path every pushed packet — dispatcher response or notifier
// broadcast — ultimately goes through, so encryption never has to be
// duplicated at the call site.
func (s *Session) SendPacket(p *protocol.Packet) error {
	plaintext := protocol.EncodePacket(p)

	iv := make([]byte, protocol.IVLen)
	if _, err := rand.Read(iv); err != nil {
		return err
	}

	ciphertext, err := s.Encrypt(plaintext, iv)
	if err != nil {
		return err
	}

	return s.Send(protocol.Frame{
		Status:    protocol.StatusActive,
		SessionID: s.id,
		IV:        iv,
		Payload:   ciphertext,
	})
}

// Close marks the session Closed. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = Closed
}
