package session

import (
	"sync"

	"go.uber.org/zap"

	"gomoku-server/crypto"
)

// Table is the process-wide registry of live sessions (R3), keyed by
// session id. The transport layer creates one Table and shares it
// across every accepted connection.
type Table struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
	nextID   uint64
	log      *zap.Logger
}

func NewTable(log *zap.Logger) *Table {
	return &Table{
		sessions: make(map[uint64]*Session),
		log:      log,
	}
}

// Create mints a new session id (never reused for the process
// lifetime, matching I6's id-reuse rule applied to sessions) and
// registers it in Greeting phase.
func (t *Table) Create(cipher crypto.Cipher, sink Sink) *Session {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	sess := newSession(id, cipher, sink, t.log)
	t.sessions[id] = sess
	t.mu.Unlock()
	return sess
}

func (t *Table) Get(id uint64) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sess, ok := t.sessions[id]
	return sess, ok
}

// Remove closes and drops a session from the table (connection
// closed, handshake failed, or TTL eviction).
func (t *Table) Remove(id uint64) {
	t.mu.Lock()
	sess, ok := t.sessions[id]
	delete(t.sessions, id)
	t.mu.Unlock()

	if ok {
		sess.Close()
	}
}

func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Each calls fn for every live session. fn must
// not call back into Table (Remove, Create) while iterating.
func (t *Table) Each(fn func(*Session)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, sess := range t.sessions {
		fn(sess)
	}
}
