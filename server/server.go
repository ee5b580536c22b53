// Package server wires the transport layer — TCP listener, per-connection
// read loop, handshake orchestration — to the session, dispatch, store,
// bus, notify, and time-wheel packages: an accept loop handing each
// connection its own goroutine, idle detection, and a sendDecodeError
// helper, built around the binary frame codec in package protocol and
// a session.Table keyed by session id rather than login.
package server

import (
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"gomoku-server/bus"
	"gomoku-server/crypto"
	"gomoku-server/db"
	"gomoku-server/dispatch"
	"gomoku-server/metrics"
	"gomoku-server/notify"
	"gomoku-server/protocol"
	"gomoku-server/session"
	"gomoku-server/store"
	"gomoku-server/timewheel"
)

// Config is everything the transport layer needs at construction time,
// the server package's slice of config.Config.
type Config struct {
	Port               int
	ReadTimeout        time.Duration // idle-session eviction TTL (S3)
	WriteTimeout       time.Duration // per-frame write deadline
	MaxFramePayloadLen int
	TimeWheelTick      time.Duration
	TimeWheelSlots     int
}

// Server owns the listener and every long-lived collaborator the
// connection handlers need. State is spread across the collaborators
// that actually own it (session.Table has its own lock, store.Store
// has its own, etc) rather than one bare map guarded by a single
// mutex — this package just holds references.
type Server struct {
	cfg Config
	log *zap.Logger

	sessions *session.Table
	store    *store.Store
	db       *db.DB
	eventBus *bus.Bus
	notifier *notify.Notifier
	wheel    *timewheel.Wheel
	metrics  *metrics.Counters

	mu       sync.Mutex
	listener net.Listener
}

// New constructs a server with all collaborators wired together but
// does not start listening; call Start for that.
func New(cfg Config, database *db.DB, log *zap.Logger) *Server {
	eventBus := bus.New()
	st := store.New(eventBus)
	sessions := session.NewTable(log)
	m := metrics.New()
	wheel := timewheel.New(cfg.TimeWheelTick, cfg.TimeWheelSlots)

	s := &Server{
		cfg:      cfg,
		log:      log,
		sessions: sessions,
		store:    st,
		db:       database,
		eventBus: eventBus,
		wheel:    wheel,
		metrics:  m,
	}

	dir := &storeDirectory{store: st}
	sender := &sessionSender{table: sessions, log: log}
	s.notifier = notify.New(eventBus, sender, dir, log)
	s.subscribeFinalizer()

	return s
}

// WarmFromDB loads every persisted user into the in-memory store so
// logins work immediately after a restart without a per-login database
// round trip.
func (s *Server) WarmFromDB() error {
	users, err := s.db.LoadAllUsers()
	if err != nil {
		return err
	}
	for _, u := range users {
		s.store.LoadUser(u)
	}
	return nil
}

// Start opens the listener and blocks accepting connections until it
// fails. The time wheel is started here too, since it has no purpose
// before the first session exists but no harm running earlier either.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.cfg.Port))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.wheel.Start()
	s.log.Info("gomoku server started", zap.Int("port", s.cfg.Port))

	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConnection(conn)
	}
}

// Shutdown stops accepting new connections and halts the time wheel.
// Live connections are left to close on their own read errors rather
// than force-closed, for a graceful shutdown.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()
	s.wheel.Stop()
}

// GetStats returns a human-readable snapshot for the control socket /
// admin tooling, in a terse key=value,key=value style.
func (s *Server) GetStats() string {
	snap := s.metrics.Snapshot()
	return "sessions=" + strconv.Itoa(s.sessions.Count()) +
		",sessionsCreated=" + strconv.FormatInt(snap.SessionsCreated, 10) +
		",sessionsExpired=" + strconv.FormatInt(snap.SessionsExpired, 10) +
		",framesReceived=" + strconv.FormatInt(snap.FramesReceived, 10) +
		",framesRejected=" + strconv.FormatInt(snap.FramesRejected, 10) +
		",packetsDispatched=" + strconv.FormatInt(snap.PacketsDispatched, 10) +
		",roomsCreated=" + strconv.FormatInt(snap.RoomsCreated, 10) +
		",gamesCompleted=" + strconv.FormatInt(snap.GamesCompleted, 10)
}

// connSink adapts a net.Conn to session.Sink: every frame a Session
// wants to write goes through Encode then a deadline-guarded Write.
type connSink struct {
	conn         net.Conn
	writeTimeout time.Duration
}

func (c *connSink) Write(frame protocol.Frame) error {
	buf, err := frame.Encode()
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	_, err = c.conn.Write(buf)
	return err
}

// handleConnection owns one socket for its lifetime: accumulate bytes,
// split into frames with protocol.TryDecode, and drive the handshake
// or dispatch pipeline depending on session phase. Idle detection rides
// the shared time wheel's re-arming eviction task (§4.8) rather than a
// per-connection ticker goroutine.
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	defer conn.Close()

	sink := &connSink{conn: conn, writeTimeout: s.cfg.WriteTimeout}
	var sess *session.Session

	buf := make([]byte, 0, 4096)
	readBuf := make([]byte, 4096)

	defer func() {
		if sess != nil {
			s.evictSession(sess)
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		n, err := conn.Read(readBuf)
		if n > 0 {
			buf = append(buf, readBuf[:n]...)
		}
		if err != nil {
			return
		}

		for {
			frame, consumed, ok, ferr := protocol.TryDecode(buf, s.cfg.MaxFramePayloadLen)
			if ferr != nil {
				// T1: bad magic or oversize frame — close without reply.
				s.metrics.IncFramesRejected()
				s.log.Warn("frame decode error, closing connection",
					zap.String("remote", remoteAddr), zap.Error(ferr))
				return
			}
			if !ok {
				break
			}
			buf = buf[consumed:]
			s.metrics.IncFramesReceived()

			sess = s.handleFrame(sess, sink, frame)
			if sess == nil && frame.Status != protocol.StatusHello {
				// handshake/decode failure destroyed the session (T2).
				return
			}
		}
	}
}

// handleFrame advances the handshake/dispatch state machine by one
// frame and returns the (possibly newly created, possibly now nil)
// session for this connection.
func (s *Server) handleFrame(sess *session.Session, sink session.Sink, frame protocol.Frame) *session.Session {
	if sess == nil {
		if frame.Status != protocol.StatusHello {
			s.log.Warn("first frame was not Hello, dropping connection")
			return nil
		}
		cipher, err := crypto.NewX25519Cipher()
		if err != nil {
			s.log.Error("cipher generation failed", zap.Error(err))
			return nil
		}
		sess = s.sessions.Create(cipher, sink)
		s.metrics.IncSessionsCreated()
		if err := sess.BeginHandshake(); err != nil {
			s.log.Error("handshake begin failed", zap.Error(err))
			s.sessions.Remove(sess.ID())
			return nil
		}
		s.armExpiry(sess)
		return sess
	}

	sess.Touch()

	switch frame.Status {
	case protocol.StatusPending:
		if err := sess.CompleteHandshake(frame.Payload); err != nil {
			// T2: handshake error — destroy the session.
			s.log.Warn("handshake completion failed", zap.Uint64("session", sess.ID()), zap.Error(err))
			s.evictSession(sess)
			return nil
		}
		return sess

	case protocol.StatusActive:
		s.handleActiveFrame(sess, frame)
		return sess

	default:
		s.log.Warn("unexpected frame status for established session",
			zap.Uint64("session", sess.ID()), zap.Any("status", frame.Status))
		return sess
	}
}

// handleActiveFrame decrypts, decodes, and routes one Active frame
// through the dispatcher, writing the response before draining any
// events the handler queued (§5 O2).
func (s *Server) handleActiveFrame(sess *session.Session, frame protocol.Frame) {
	plaintext, err := sess.Decrypt(frame.Payload, frame.IV)
	if err != nil {
		// S2/T3: decrypt/decode failure → Error frame, no state change.
		s.sendDecodeError(sess, "Decryption failed")
		return
	}

	pkt, err := protocol.DecodePacket(sess.ID(), plaintext)
	if err != nil {
		s.sendDecodeError(sess, "Malformed packet")
		return
	}

	if pkt.Type == protocol.MsgHeartbeat {
		return // §4.3: heartbeat only refreshes TTL, already done by Touch.
	}

	deps := &dispatch.Deps{
		Store:  s.store,
		DB:     s.db,
		Bus:    s.eventBus,
		Sender: &sessionSender{table: s.sessions, log: s.log},
		Log:    s.log,
	}

	resp, afterFn := dispatch.Handle(sess.ID(), pkt, deps)
	s.metrics.IncPacketsDispatched()

	if err := sess.SendPacket(resp); err != nil {
		s.log.Debug("response send dropped", zap.Uint64("session", sess.ID()), zap.Error(err))
	}

	// O2: the response above must already be enqueued before any event
	// this request caused can reach the same (or any) session.
	if afterFn != nil {
		afterFn()
	}
}

func (s *Server) sendDecodeError(sess *session.Session, message string) {
	pkt := protocol.NewPacket(0, protocol.MsgError).SetString("message", message)
	_ = sess.SendPacket(pkt)
}

// armExpiry schedules (or re-schedules) a session's idle-eviction check
// on the shared time wheel (§4.8, S3). Each firing either re-arms for
// the remaining idle budget or evicts, matching the wheel's "single-
// shot, explicit re-arm" contract.
func (s *Server) armExpiry(sess *session.Session) {
	taskID := s.wheel.Schedule(s.cfg.ReadTimeout, func() { s.checkExpiry(sess) })
	sess.SetExpireTask(taskID)
}

func (s *Server) checkExpiry(sess *session.Session) {
	if sess.Phase() == session.Closed {
		return
	}
	idle := sess.IdleSince()
	if idle < s.cfg.ReadTimeout {
		remaining := s.cfg.ReadTimeout - idle
		taskID := s.wheel.Schedule(remaining, func() { s.checkExpiry(sess) })
		sess.SetExpireTask(taskID)
		return
	}

	s.log.Info("evicting idle session", zap.Uint64("session", sess.ID()))
	s.metrics.IncSessionsExpired()
	s.evictSession(sess)
}

// evictSession tears down every index entry referencing sess (S3: no
// event published on eviction) and closes it. Idempotent.
func (s *Server) evictSession(sess *session.Session) {
	if id := sess.ExpireTask(); id != 0 {
		s.wheel.Cancel(id)
	}
	if userID, ok := s.store.UserForSession(sess.ID()); ok {
		if roomID, ok := s.store.RoomForUser(userID); ok {
			if r, err := s.store.GetRoom(roomID); err == nil {
				_ = r.RemovePlayer(userID)
				r.DrainEvents() // S3: eviction publishes nothing.
			}
			s.store.ClearUserRoom(userID)
		}
	}
	s.store.UnbindSession(sess.ID())
	s.sessions.Remove(sess.ID())
}

// sessionSender adapts session.Table to both dispatch.Sender and
// notify.Sender: resolve the session, drop silently if it no longer
// exists or is not Active (S4).
type sessionSender struct {
	table *session.Table
	log   *zap.Logger
}

func (s *sessionSender) SendToSession(sessionID uint64, p *protocol.Packet) {
	sess, ok := s.table.Get(sessionID)
	if !ok {
		return
	}
	if err := sess.SendPacket(p); err != nil {
		s.log.Warn("push to session dropped", zap.Uint64("session", sessionID), zap.Error(err))
	}
}

// storeDirectory adapts store.Store (plus room.Room accessors reached
// through it) to notify.Directory.
type storeDirectory struct {
	store *store.Store
}

func (d *storeDirectory) SessionForUser(userID uint64) (uint64, bool) {
	return d.store.SessionForUser(userID)
}

func (d *storeDirectory) OnlineUserIDs() []uint64 {
	return d.store.OnlineUserIDs()
}

func (d *storeDirectory) RoomMembers(roomID uint64) []uint64 {
	r, err := d.store.GetRoom(roomID)
	if err != nil {
		return nil
	}
	return r.Members()
}

func (d *storeDirectory) RoomSnapshot(roomID uint64) (notify.RoomInfo, bool) {
	r, err := d.store.GetRoom(roomID)
	if err != nil {
		return notify.RoomInfo{}, false
	}
	black, white := r.Seats()
	return notify.RoomInfo{
		OwnerID:   r.OwnerID(),
		Members:   r.Members(),
		BlackSeat: black,
		WhiteSeat: white,
		BoardSize: r.BoardSize(),
		Status:    r.Status().String(),
	}, true
}
