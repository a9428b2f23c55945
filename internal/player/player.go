/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player orchestrates playback sessions. One scheduler goroutine
// owns every room's state; the exported API posts closures onto it and
// waits, so callers never touch session state concurrently. Resolver and
// recommender calls run off the scheduler and re-join through posted
// commits that re-validate state before acting.
package player

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/audio"
	"github.com/friendsincode/bragi/internal/config"
	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/history"
	"github.com/friendsincode/bragi/internal/media"
	"github.com/friendsincode/bragi/internal/session"
	"github.com/friendsincode/bragi/internal/settings"
	"github.com/friendsincode/bragi/internal/snapshot"
	"github.com/friendsincode/bragi/internal/telemetry"
	"github.com/friendsincode/bragi/internal/track"
)

// Sink consumes producer frames for one room, typically at real-time
// pace. Start replaces any active pump; done fires exactly once per
// Start, with nil on end-of-stream or Stop.
type Sink interface {
	Start(src audio.Producer, done func(err error))
	Stop()
	Pause()
	Resume()
}

// SinkFactory builds the sink for a room when its session opens.
type SinkFactory func(roomID string) (Sink, error)

// EventPublisher is satisfied by events.Bus and eventbus.RedisBus.
type EventPublisher interface {
	Publish(events.EventType, events.Payload)
}

// Consecutive start failures before a session stops trying to advance.
const maxConsecutiveFailures = 10

const (
	resolveTimeout   = 30 * time.Second
	snapshotInterval = 30 * time.Second
)

// Deps wires the controller's collaborators. Resolver, Sinks and Config
// are required; the rest degrade gracefully when nil.
type Deps struct {
	Config      *config.Config
	Resolver    media.Resolver
	Recommender media.Recommender
	Sinks       SinkFactory
	Snapshots   *snapshot.Store
	Settings    *settings.Store
	History     *history.Service
	Bus         EventPublisher
	Logger      zerolog.Logger
}

// Controller runs the playback scheduler.
type Controller struct {
	cfg       *config.Config
	resolver  media.Resolver
	recommend media.Recommender
	sinks     SinkFactory
	snaps     *snapshot.Store
	settings  *settings.Store
	history   *history.Service
	bus       EventPublisher
	log       zerolog.Logger

	ops    chan func()
	quit   chan struct{}
	closed chan struct{}

	// Owned by the scheduler goroutine.
	rooms map[string]*roomSession
}

type roomSession struct {
	state    *session.State
	sink     Sink
	stream   media.Stream
	producer audio.Producer

	// gen invalidates in-flight async work: every intentional playback
	// transition bumps it, and commits or callbacks carrying an older
	// value are discarded.
	gen int

	failCount      int
	crossfadeTimer *time.Timer
	idleTimer      *time.Timer
	pausedAt       time.Time

	// One-shot resume position from a rehydrated snapshot, applied when
	// the matching track next reaches the front of playback.
	resumeSeek    float64
	resumeLocator string
}

// New builds a controller. Call Run on its own goroutine, then Close.
func New(d Deps) *Controller {
	bus := d.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	return &Controller{
		cfg:       d.Config,
		resolver:  d.Resolver,
		recommend: d.Recommender,
		sinks:     d.Sinks,
		snaps:     d.Snapshots,
		settings:  d.Settings,
		history:   d.History,
		bus:       bus,
		log:       d.Logger.With().Str("component", "player").Logger(),
		ops:       make(chan func(), 256),
		quit:      make(chan struct{}),
		closed:    make(chan struct{}),
		rooms:     make(map[string]*roomSession),
	}
}

// Run executes the scheduler loop until Close is called.
func (c *Controller) Run() {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case op := <-c.ops:
			op()
		case <-ticker.C:
			for _, rs := range c.rooms {
				c.saveSnapshot(rs)
			}
		case <-c.quit:
			c.shutdown()
			close(c.closed)
			return
		}
	}
}

// Close stops the scheduler, snapshotting and tearing down every session.
func (c *Controller) Close() {
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
	<-c.closed
}

func (c *Controller) shutdown() {
	for roomID, rs := range c.rooms {
		c.saveSnapshot(rs)
		c.stopTimers(rs)
		rs.gen++
		rs.sink.Stop()
		if rs.producer != nil {
			rs.producer.Close()
		}
		if c.settings != nil {
			if err := c.settings.Save(rs.state); err != nil {
				c.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to persist settings on shutdown")
			}
		}
		telemetry.ActiveSessions.Dec()
	}
	c.rooms = make(map[string]*roomSession)
}

// do runs fn on the scheduler and waits for it.
func (c *Controller) do(fn func()) error {
	done := make(chan struct{})
	select {
	case c.ops <- func() { fn(); close(done) }:
	case <-c.closed:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

// post queues fn without waiting; used by timers, sink callbacks and
// async commits, which must never block.
func (c *Controller) post(fn func()) {
	select {
	case c.ops <- fn:
	case <-c.closed:
	}
}

// ensureRoom returns the room's session, opening one if needed.
func (c *Controller) ensureRoom(roomID string) (*roomSession, error) {
	if rs, ok := c.rooms[roomID]; ok {
		return rs, nil
	}

	state := session.New(roomID, rand.New(rand.NewSource(time.Now().UnixNano())))
	state.MaxQueueSize = c.cfg.DefaultMaxQueueSize
	state.CrossfadeSeconds = c.cfg.DefaultCrossfadeSeconds
	state.StayConnected = c.cfg.DefaultStayConnected
	if c.settings != nil {
		if err := c.settings.Apply(state); err != nil {
			c.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to load room settings")
		}
	}

	sink, err := c.sinks(roomID)
	if err != nil {
		return nil, err
	}

	rs := &roomSession{state: state, sink: sink}
	c.rehydrate(rs)
	c.rooms[roomID] = rs
	telemetry.ActiveSessions.Inc()
	c.log.Info().Str("room_id", roomID).Msg("session opened")
	return rs, nil
}

// rehydrate restores queue contents and loop mode from a crash snapshot.
// The interrupted track goes back to the queue front with its position
// remembered; playback never auto-starts.
func (c *Controller) rehydrate(rs *roomSession) {
	if c.snaps == nil {
		return
	}
	roomID := rs.state.RoomID
	snap, err := c.snaps.Load(roomID)
	if err != nil {
		c.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to load snapshot")
		return
	}
	if snap == nil {
		return
	}
	rs.state.Queue = snap.Queue
	rs.state.LoopMode = snap.LoopMode
	if snap.Current != nil {
		rs.state.Queue = append([]track.Track{*snap.Current}, rs.state.Queue...)
		rs.resumeSeek = snap.Elapsed
		rs.resumeLocator = snap.Current.Locator
	}
	c.log.Info().Str("room_id", roomID).Int("queue_len", len(rs.state.Queue)).Msg("session rehydrated from snapshot")
}

// closeRoom tears a session down. The snapshot is deleted: a room closed
// on purpose has nothing to resume after a restart.
func (c *Controller) closeRoom(rs *roomSession, reason string) {
	roomID := rs.state.RoomID
	c.stopTimers(rs)
	rs.gen++
	rs.sink.Stop()
	if rs.producer != nil {
		rs.producer.Close()
		rs.producer = nil
	}
	if c.settings != nil {
		if err := c.settings.Save(rs.state); err != nil {
			c.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to persist settings")
		}
	}
	if c.snaps != nil {
		if err := c.snaps.Delete(roomID); err != nil {
			c.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to delete snapshot")
		}
	}
	delete(c.rooms, roomID)
	telemetry.ActiveSessions.Dec()
	telemetry.QueueSize.DeleteLabelValues(roomID)
	c.bus.Publish(events.EventSessionClosed, events.Payload{"room_id": roomID, "reason": reason})
	c.log.Info().Str("room_id", roomID).Str("reason", reason).Msg("session closed")
}

func (c *Controller) stopTimers(rs *roomSession) {
	if rs.crossfadeTimer != nil {
		rs.crossfadeTimer.Stop()
		rs.crossfadeTimer = nil
	}
	if rs.idleTimer != nil {
		rs.idleTimer.Stop()
		rs.idleTimer = nil
	}
}

func (c *Controller) saveSnapshot(rs *roomSession) {
	if c.snaps == nil {
		return
	}
	roomID := rs.state.RoomID
	if rs.state.Current == nil && len(rs.state.Queue) == 0 {
		if err := c.snaps.Delete(roomID); err != nil {
			c.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to delete snapshot")
		}
		return
	}
	snap := snapshot.Snapshot{
		RoomID:   roomID,
		Queue:    append([]track.Track(nil), rs.state.Queue...),
		Current:  rs.state.Current,
		LoopMode: rs.state.LoopMode,
		Elapsed:  float64(rs.state.Elapsed(time.Now())),
	}
	if err := c.snaps.Save(snap); err != nil {
		c.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to save snapshot")
		return
	}
	telemetry.SnapshotWrites.Inc()
}

// RecoverSessions reopens every room with a persisted snapshot so their
// queues survive a process restart. Rehydration restores data only; the
// interrupted track plays again, from its saved position, when the room
// next starts playback. Call once Run is active.
func (c *Controller) RecoverSessions() error {
	if c.snaps == nil {
		return nil
	}
	snaps, err := c.snaps.LoadAll()
	if err != nil {
		return err
	}
	return c.do(func() {
		for _, snap := range snaps {
			if _, err := c.ensureRoom(snap.RoomID); err != nil {
				c.log.Warn().Err(err).Str("room_id", snap.RoomID).Msg("failed to reopen room for recovery")
			}
		}
	})
}

func (c *Controller) resolveCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), resolveTimeout)
}
