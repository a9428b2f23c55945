/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"time"

	"github.com/friendsincode/bragi/internal/audio"
	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/media"
	"github.com/friendsincode/bragi/internal/session"
	"github.com/friendsincode/bragi/internal/telemetry"
	"github.com/friendsincode/bragi/internal/track"
)

const refillBatch = 5

func openOptions(st *session.State, seek float64, live bool) media.Options {
	return media.Options{
		Volume:      st.Volume,
		Speed:       st.Speed,
		Normalize:   st.Normalize,
		FilterName:  st.FilterName,
		EQGains:     st.EQGains,
		SeekSeconds: seek,
		IsLive:      live,
	}
}

func nowPlayingPayload(st *session.State, resumed bool) events.Payload {
	p := events.Payload{"room_id": st.RoomID, "resumed": resumed}
	if st.Current != nil {
		p["title"] = st.Current.Title
		p["locator"] = st.Current.Locator
		p["duration"] = st.Current.DurationSeconds
		p["requester_id"] = st.Current.RequesterID
	}
	return p
}

// startTrack begins playback of state.Current at seek source-seconds.
// Resolution runs off the scheduler; commitStart re-joins it.
func (c *Controller) startTrack(rs *roomSession, seek float64, resumed bool) {
	t := rs.state.Current
	if t == nil {
		return
	}
	rs.state.Restarting = true
	c.stopTimers(rs)
	rs.gen++
	token := rs.gen
	rs.sink.Stop()
	if rs.producer != nil {
		rs.producer.Close()
		rs.producer = nil
	}
	rs.pausedAt = time.Time{}

	tr := *t
	opts := openOptions(rs.state, seek, tr.IsLive)
	roomID := rs.state.RoomID

	go func() {
		ctx, cancel := c.resolveCtx()
		defer cancel()
		stream, err := c.resolver.Resolve(ctx, tr)
		var prod audio.Producer
		if err == nil {
			prod, err = stream.Open(ctx, opts)
		}
		c.post(func() { c.commitStart(roomID, token, stream, prod, seek, resumed, err) })
	}()
}

// restartPlayback stops the current pump and reopens the same track at
// seek, preferring the cached stream ref over a full re-resolve.
func (c *Controller) restartPlayback(rs *roomSession, seek float64) {
	t := rs.state.Current
	if t == nil {
		return
	}
	rs.state.Restarting = true
	c.stopTimers(rs)
	rs.gen++
	token := rs.gen
	rs.sink.Stop()
	if rs.producer != nil {
		rs.producer.Close()
		rs.producer = nil
	}
	rs.pausedAt = time.Time{}

	cachedRef := ""
	if rs.stream != nil {
		cachedRef = rs.stream.CachedRef()
	}
	tr := *t
	opts := openOptions(rs.state, seek, tr.IsLive)
	roomID := rs.state.RoomID

	go func() {
		ctx, cancel := c.resolveCtx()
		defer cancel()

		open := func(stream media.Stream, err error) (media.Stream, audio.Producer, error) {
			if err != nil {
				return nil, nil, err
			}
			prod, err := stream.Open(ctx, opts)
			return stream, prod, err
		}

		var stream media.Stream
		var prod audio.Producer
		var err error
		if cachedRef != "" {
			stream, prod, err = open(c.resolver.Rebuild(ctx, tr, cachedRef))
		}
		if cachedRef == "" || err != nil {
			// Cached refs expire; fall back to a full resolve.
			stream, prod, err = open(c.resolver.Resolve(ctx, tr))
		}
		c.post(func() { c.commitStart(roomID, token, stream, prod, seek, true, err) })
	}()
}

func (c *Controller) commitStart(roomID string, token int, stream media.Stream, prod audio.Producer, seek float64, resumed bool, err error) {
	rs, ok := c.rooms[roomID]
	if !ok || rs.gen != token {
		if prod != nil {
			prod.Close()
		}
		return
	}
	rs.state.Restarting = false

	if err != nil {
		telemetry.PlaybackErrors.WithLabelValues(roomID).Inc()
		c.log.Warn().Err(err).Str("room_id", roomID).Msg("track start failed")
		c.bus.Publish(events.EventPlaybackError, events.Payload{"room_id": roomID, "error": err.Error()})
		if c.history != nil && rs.state.Current != nil {
			if herr := c.history.Record(roomID, *rs.state.Current, true); herr != nil {
				c.log.Warn().Err(herr).Str("room_id", roomID).Msg("failed to record history")
			}
		}
		rs.failCount++
		if rs.failCount >= maxConsecutiveFailures {
			c.log.Error().Str("room_id", roomID).Int("failures", rs.failCount).Msg("too many consecutive failures, halting playback")
			c.bus.Publish(events.EventNotice, events.Payload{"room_id": roomID, "notice": "playback halted after repeated failures"})
			rs.state.Current = nil
			c.goIdle(rs)
			return
		}
		c.advance(rs)
		return
	}

	rs.failCount = 0
	rs.stream = stream
	rs.producer = prod
	now := time.Now()
	rs.state.PlayStart = now.Add(-time.Duration(seek / rs.state.Speed * float64(time.Second)))

	gen := rs.gen
	rs.sink.Start(prod, func(e error) {
		c.post(func() { c.onPlaybackDone(roomID, gen, e) })
	})

	c.scheduleCrossfade(rs)
	telemetry.QueueSize.WithLabelValues(roomID).Set(float64(len(rs.state.Queue)))
	if !resumed {
		telemetry.TracksPlayed.WithLabelValues(roomID).Inc()
	}
	c.bus.Publish(events.EventNowPlaying, nowPlayingPayload(rs.state, resumed))
	c.saveSnapshot(rs)
}

// onPlaybackDone fires when a pump ends. Stale generations and
// orchestrator-initiated stops are ignored; only a genuine end of stream
// advances the queue.
func (c *Controller) onPlaybackDone(roomID string, gen int, err error) {
	rs, ok := c.rooms[roomID]
	if !ok || rs.gen != gen || rs.state.Restarting {
		return
	}
	if err != nil {
		telemetry.PlaybackErrors.WithLabelValues(roomID).Inc()
		c.log.Warn().Err(err).Str("room_id", roomID).Msg("playback ended with error")
		c.bus.Publish(events.EventPlaybackError, events.Payload{"room_id": roomID, "error": err.Error()})
	}
	if rs.state.Current != nil {
		if c.history != nil {
			if herr := c.history.Record(roomID, *rs.state.Current, false); herr != nil {
				c.log.Warn().Err(herr).Str("room_id", roomID).Msg("failed to record history")
			}
		}
		c.bus.Publish(events.EventTrackFinished, events.Payload{"room_id": roomID, "locator": rs.state.Current.Locator})
	}
	if rs.producer != nil {
		rs.producer.Close()
		rs.producer = nil
	}
	c.stopCrossfadeTimer(rs)
	c.advance(rs)
}

// advance moves to the next track per loop mode, refilling from the
// recommender in radio or autoplay mode when the queue runs dry.
func (c *Controller) advance(rs *roomSession) {
	next := rs.state.NextTrack()
	if next == nil {
		if (rs.state.RadioMode || rs.state.Autoplay) && c.recommend != nil {
			c.refill(rs)
			return
		}
		c.goIdle(rs)
		return
	}
	seek := 0.0
	resumed := false
	if rs.resumeSeek > 0 && next.Locator == rs.resumeLocator {
		seek = rs.resumeSeek
		resumed = true
	}
	rs.resumeSeek = 0
	rs.resumeLocator = ""
	c.startTrack(rs, seek, resumed)
}

func (c *Controller) refill(rs *roomSession) {
	// Radio seeds from the station track; autoplay follows whatever
	// played last.
	var seed *track.Track
	if rs.state.RadioMode && rs.state.RadioSeed != "" {
		seed = &track.Track{Locator: rs.state.RadioSeed}
	} else {
		seed = rs.state.Previous
	}
	if seed == nil {
		c.goIdle(rs)
		return
	}
	seen := make(map[string]struct{}, len(rs.state.RadioSeen))
	for k := range rs.state.RadioSeen {
		seen[k] = struct{}{}
	}
	roomID := rs.state.RoomID
	token := rs.gen
	seedTrack := *seed

	go func() {
		ctx, cancel := c.resolveCtx()
		defer cancel()
		recs, err := c.recommend.Recommend(ctx, seedTrack, seen, refillBatch)
		c.post(func() { c.commitRefill(roomID, token, recs, err) })
	}()
}

func (c *Controller) commitRefill(roomID string, token int, recs []track.Track, err error) {
	rs, ok := c.rooms[roomID]
	if !ok || rs.gen != token || rs.state.Current != nil || len(rs.state.Queue) > 0 {
		return
	}
	if err != nil || len(recs) == 0 {
		c.log.Warn().Err(err).Str("room_id", roomID).Msg("recommendation refill came back empty")
		c.goIdle(rs)
		return
	}
	for _, t := range recs {
		if _, aerr := rs.state.Add(t); aerr != nil {
			break
		}
		rs.state.RadioSeen[t.Locator] = struct{}{}
	}
	c.queueChanged(rs)
	c.advance(rs)
}

// goIdle parks the session with nothing playing and arms the idle timer
// unless the room asked to stay connected.
func (c *Controller) goIdle(rs *roomSession) {
	rs.state.Current = nil
	rs.state.PlayStart = time.Time{}
	rs.pausedAt = time.Time{}
	telemetry.QueueSize.WithLabelValues(rs.state.RoomID).Set(0)
	c.bus.Publish(events.EventNowPlaying, nowPlayingPayload(rs.state, false))
	c.saveSnapshot(rs)

	if rs.state.StayConnected {
		return
	}
	roomID := rs.state.RoomID
	if rs.idleTimer != nil {
		rs.idleTimer.Stop()
	}
	rs.idleTimer = time.AfterFunc(c.cfg.IdleTimeout, func() {
		c.post(func() { c.idleCheck(roomID) })
	})
}

// idleCheck re-validates at fire time; activity since arming cancels the
// teardown even if the timer could not be stopped.
func (c *Controller) idleCheck(roomID string) {
	rs, ok := c.rooms[roomID]
	if !ok {
		return
	}
	if rs.state.Current != nil || len(rs.state.Queue) > 0 || rs.state.StayConnected {
		return
	}
	c.bus.Publish(events.EventSessionIdle, events.Payload{"room_id": roomID})
	c.closeRoom(rs, "idle")
}

func (c *Controller) stopCrossfadeTimer(rs *roomSession) {
	if rs.crossfadeTimer != nil {
		rs.crossfadeTimer.Stop()
		rs.crossfadeTimer = nil
	}
}

// scheduleCrossfade arms the transition timer at the moment the fade must
// begin: remaining source seconds divided by speed, minus the window.
func (c *Controller) scheduleCrossfade(rs *roomSession) {
	c.stopCrossfadeTimer(rs)
	st := rs.state
	t := st.Current
	if t == nil || st.CrossfadeSeconds <= 0 || t.IsLive || t.DurationSeconds <= 0 {
		return
	}
	remaining := float64(t.DurationSeconds - st.Elapsed(time.Now()))
	wall := remaining/st.Speed - float64(st.CrossfadeSeconds)
	if wall <= 0 {
		// Too little track left; let it end with a hard transition.
		return
	}
	roomID := st.RoomID
	token := rs.gen
	rs.crossfadeTimer = time.AfterFunc(time.Duration(wall*float64(time.Second)), func() {
		c.post(func() { c.crossfadeTick(roomID, token) })
	})
}

// crossfadeTick pre-resolves the upcoming track so the fade can start
// from already-open producers. The commit re-validates everything that
// can change while resolving.
func (c *Controller) crossfadeTick(roomID string, token int) {
	rs, ok := c.rooms[roomID]
	if !ok || rs.gen != token || rs.state.Restarting || !rs.pausedAt.IsZero() {
		return
	}
	st := rs.state
	if st.CrossfadeSeconds <= 0 || st.Current == nil {
		return
	}

	var next track.Track
	switch {
	case st.LoopMode == session.LoopSingle:
		next = *st.Current
	case len(st.Queue) > 0:
		next = st.Queue[0]
	default:
		// Nothing queued; natural end handles refill or idle.
		return
	}

	opts := openOptions(st, 0, next.IsLive)
	go func() {
		ctx, cancel := c.resolveCtx()
		defer cancel()
		stream, err := c.resolver.Resolve(ctx, next)
		var prod audio.Producer
		if err == nil {
			prod, err = stream.Open(ctx, opts)
		}
		c.post(func() { c.commitCrossfade(roomID, token, next.Locator, stream, prod, err) })
	}()
}

func (c *Controller) commitCrossfade(roomID string, token int, expectLocator string, stream media.Stream, prod audio.Producer, err error) {
	rs, ok := c.rooms[roomID]
	if !ok {
		if prod != nil {
			prod.Close()
		}
		return
	}
	st := rs.state

	stale := rs.gen != token || st.Restarting || !rs.pausedAt.IsZero() || st.CrossfadeSeconds <= 0 || st.Current == nil
	if !stale {
		if st.LoopMode == session.LoopSingle {
			stale = st.Current.Locator != expectLocator
		} else {
			stale = len(st.Queue) == 0 || st.Queue[0].Locator != expectLocator
		}
	}
	if stale {
		if prod != nil {
			prod.Close()
		}
		return
	}
	if err != nil {
		// Fall back to a hard transition when the outgoing track ends.
		telemetry.PlaybackErrors.WithLabelValues(roomID).Inc()
		c.log.Warn().Err(err).Str("room_id", roomID).Msg("crossfade pre-resolve failed")
		return
	}

	if c.history != nil {
		if herr := c.history.Record(roomID, *st.Current, false); herr != nil {
			c.log.Warn().Err(herr).Str("room_id", roomID).Msg("failed to record history")
		}
	}

	st.Restarting = true
	old := rs.producer
	st.NextTrack()
	rs.stream = stream
	if old != nil {
		rs.producer = audio.NewCrossfade(old, prod, st.CrossfadeSeconds)
	} else {
		rs.producer = prod
	}
	rs.gen++
	gen := rs.gen
	rs.sink.Start(rs.producer, func(e error) {
		c.post(func() { c.onPlaybackDone(roomID, gen, e) })
	})
	st.Restarting = false
	st.PlayStart = time.Now()

	telemetry.Crossfades.Inc()
	telemetry.TracksPlayed.WithLabelValues(roomID).Inc()
	telemetry.QueueSize.WithLabelValues(roomID).Set(float64(len(st.Queue)))
	c.bus.Publish(events.EventNowPlaying, nowPlayingPayload(st, false))
	c.scheduleCrossfade(rs)
	c.saveSnapshot(rs)
}

// skipCurrent tears down the active pump and advances. Loop-single
// deliberately replays the same track, matching queue semantics.
func (c *Controller) skipCurrent(rs *roomSession) {
	if c.history != nil && rs.state.Current != nil {
		if err := c.history.Record(rs.state.RoomID, *rs.state.Current, true); err != nil {
			c.log.Warn().Err(err).Str("room_id", rs.state.RoomID).Msg("failed to record history")
		}
	}
	c.stopCrossfadeTimer(rs)
	rs.gen++
	rs.sink.Stop()
	if rs.producer != nil {
		rs.producer.Close()
		rs.producer = nil
	}
	rs.pausedAt = time.Time{}
	c.advance(rs)
}

// queueChanged publishes the queue update and refreshes gauge + snapshot.
func (c *Controller) queueChanged(rs *roomSession) {
	telemetry.QueueSize.WithLabelValues(rs.state.RoomID).Set(float64(len(rs.state.Queue)))
	c.bus.Publish(events.EventQueueUpdated, events.Payload{"room_id": rs.state.RoomID, "queue_len": len(rs.state.Queue)})
	c.saveSnapshot(rs)
}
