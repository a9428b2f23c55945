/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"time"

	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/session"
	"github.com/friendsincode/bragi/internal/track"
)

// withRoom runs fn on the scheduler against an existing session.
func (c *Controller) withRoom(roomID string, fn func(*roomSession) error) error {
	var err error
	derr := c.do(func() {
		rs, ok := c.rooms[roomID]
		if !ok {
			err = ErrRoomNotFound
			return
		}
		err = fn(rs)
	})
	if derr != nil {
		return derr
	}
	return err
}

func (c *Controller) persistSettings(rs *roomSession) {
	if c.settings == nil {
		return
	}
	if err := c.settings.Save(rs.state); err != nil {
		c.log.Warn().Err(err).Str("room_id", rs.state.RoomID).Msg("failed to persist settings")
	}
}

// Pause suspends playback.
func (c *Controller) Pause(roomID string) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		if rs.state.Current == nil {
			return ErrNothingPlaying
		}
		if !rs.pausedAt.IsZero() {
			return ErrAlreadyPaused
		}
		rs.pausedAt = time.Now()
		c.stopCrossfadeTimer(rs)
		rs.sink.Pause()
		return nil
	})
}

// Resume continues paused playback, shifting the elapsed anchor so pause
// time does not count as play time.
func (c *Controller) Resume(roomID string) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		if rs.pausedAt.IsZero() {
			return ErrNotPaused
		}
		rs.state.PlayStart = rs.state.PlayStart.Add(time.Since(rs.pausedAt))
		rs.pausedAt = time.Time{}
		rs.sink.Resume()
		c.scheduleCrossfade(rs)
		return nil
	})
}

// Skip ends the current track immediately.
func (c *Controller) Skip(roomID string) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		if rs.state.Current == nil {
			return ErrNothingPlaying
		}
		c.skipCurrent(rs)
		return nil
	})
}

// VoteResult reports a skip vote tally.
type VoteResult struct {
	Votes   int
	Needed  int
	Skipped bool
}

// VoteSkip registers one user's skip vote; the track skips once votes
// reach a majority of listeners.
func (c *Controller) VoteSkip(roomID, userID string, listeners int) (VoteResult, error) {
	var res VoteResult
	err := c.withRoom(roomID, func(rs *roomSession) error {
		if rs.state.Current == nil {
			return ErrNothingPlaying
		}
		if _, voted := rs.state.SkipVotes[userID]; voted {
			return ErrAlreadyVoted
		}
		rs.state.SkipVotes[userID] = struct{}{}

		needed := (listeners + 1) / 2
		if needed < 1 {
			needed = 1
		}
		res = VoteResult{Votes: len(rs.state.SkipVotes), Needed: needed}
		if res.Votes >= needed {
			res.Skipped = true
			c.skipCurrent(rs)
		}
		return nil
	})
	return res, err
}

// Stop halts playback and clears all transient state; the session stays
// open and idles out normally.
func (c *Controller) Stop(roomID string) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		c.stopCrossfadeTimer(rs)
		rs.gen++
		rs.sink.Stop()
		if rs.producer != nil {
			rs.producer.Close()
			rs.producer = nil
		}
		rs.pausedAt = time.Time{}
		rs.state.Clear()
		c.queueChanged(rs)
		c.goIdle(rs)
		return nil
	})
}

// Leave closes the room's session immediately.
func (c *Controller) Leave(roomID string) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		c.closeRoom(rs, "requested")
		return nil
	})
}

// Seek restarts the current track at position source-seconds.
func (c *Controller) Seek(roomID string, position float64) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		t := rs.state.Current
		if t == nil {
			return ErrNothingPlaying
		}
		if t.IsLive || position < 0 || (t.DurationSeconds > 0 && position >= float64(t.DurationSeconds)) {
			return ErrInvalidValue
		}
		c.restartPlayback(rs, position)
		return nil
	})
}

// Replay restarts the current track from the beginning.
func (c *Controller) Replay(roomID string) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		if rs.state.Current == nil {
			return ErrNothingPlaying
		}
		c.restartPlayback(rs, 0)
		return nil
	})
}

// Back returns to the previously played track. The current track goes to
// the queue head so it plays again after the previous one finishes.
func (c *Controller) Back(roomID string) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		prev := rs.state.Previous
		if prev == nil {
			return ErrNoPrevious
		}
		if rs.state.Current != nil {
			if _, err := rs.state.AddFront(*rs.state.Current); err != nil {
				return err
			}
		}
		rs.state.Previous = nil
		rs.state.Current = prev
		c.queueChanged(rs)
		c.startTrack(rs, 0, false)
		return nil
	})
}

// restartIfPlaying re-opens the current track at its present position so
// a changed audio parameter takes effect mid-track.
func (c *Controller) restartIfPlaying(rs *roomSession, elapsed float64) {
	if rs.state.Current == nil || rs.state.Restarting {
		return
	}
	c.restartPlayback(rs, elapsed)
}

// SetVolume sets playback volume in [0, 1].
func (c *Controller) SetVolume(roomID string, volume float64) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		if volume < 0 || volume > 1 {
			return ErrInvalidValue
		}
		elapsed := float64(rs.state.Elapsed(time.Now()))
		rs.state.Volume = volume
		c.persistSettings(rs)
		c.restartIfPlaying(rs, elapsed)
		return nil
	})
}

// SetSpeed sets the playback rate in [0.5, 2].
func (c *Controller) SetSpeed(roomID string, speed float64) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		if speed < 0.5 || speed > 2 {
			return ErrInvalidValue
		}
		// Elapsed must be taken under the old speed.
		elapsed := float64(rs.state.Elapsed(time.Now()))
		rs.state.Speed = speed
		c.persistSettings(rs)
		c.restartIfPlaying(rs, elapsed)
		return nil
	})
}

// SetFilter selects a named filter preset; empty clears it.
func (c *Controller) SetFilter(roomID, name string) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		elapsed := float64(rs.state.Elapsed(time.Now()))
		rs.state.FilterName = name
		c.persistSettings(rs)
		c.restartIfPlaying(rs, elapsed)
		return nil
	})
}

// SetEQBand sets one equalizer band's gain in dB, within [-12, 12].
func (c *Controller) SetEQBand(roomID string, band int, gain float64) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		if band < 0 || band >= session.EQBandCount || gain < -12 || gain > 12 {
			return ErrInvalidValue
		}
		elapsed := float64(rs.state.Elapsed(time.Now()))
		rs.state.EQGains[band] = gain
		c.persistSettings(rs)
		c.restartIfPlaying(rs, elapsed)
		return nil
	})
}

// SetNormalize toggles loudness normalization.
func (c *Controller) SetNormalize(roomID string, on bool) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		elapsed := float64(rs.state.Elapsed(time.Now()))
		rs.state.Normalize = on
		c.persistSettings(rs)
		c.restartIfPlaying(rs, elapsed)
		return nil
	})
}

// SetCrossfade sets the fade window in seconds, within [0, 10], and
// re-arms the transition timer for the playing track.
func (c *Controller) SetCrossfade(roomID string, seconds int) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		if seconds < 0 || seconds > 10 {
			return ErrInvalidValue
		}
		rs.state.CrossfadeSeconds = seconds
		c.persistSettings(rs)
		c.scheduleCrossfade(rs)
		return nil
	})
}

// SetLoopMode sets the loop mode directly.
func (c *Controller) SetLoopMode(roomID string, mode session.LoopMode) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		rs.state.LoopMode = mode
		c.persistSettings(rs)
		return nil
	})
}

// CycleLoopMode advances off -> single -> queue -> off and returns the
// new mode.
func (c *Controller) CycleLoopMode(roomID string) (session.LoopMode, error) {
	var mode session.LoopMode
	err := c.withRoom(roomID, func(rs *roomSession) error {
		rs.state.LoopMode = rs.state.LoopMode.Next()
		mode = rs.state.LoopMode
		c.persistSettings(rs)
		return nil
	})
	return mode, err
}

// SetStayConnected keeps the session open while idle.
func (c *Controller) SetStayConnected(roomID string, on bool) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		rs.state.StayConnected = on
		if on && rs.idleTimer != nil {
			rs.idleTimer.Stop()
			rs.idleTimer = nil
		}
		if !on && rs.state.Current == nil && len(rs.state.Queue) == 0 {
			c.goIdle(rs)
		}
		c.persistSettings(rs)
		return nil
	})
}

// SetAutoplay toggles recommender refills when the queue empties.
func (c *Controller) SetAutoplay(roomID string, on bool) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		rs.state.Autoplay = on
		c.persistSettings(rs)
		return nil
	})
}

// StartRadio enters radio mode seeded by a track; the seed plays first
// and the recommender keeps the queue fed.
func (c *Controller) StartRadio(roomID string, seed track.Track) error {
	var err error
	derr := c.do(func() {
		rs, rerr := c.ensureRoom(roomID)
		if rerr != nil {
			err = rerr
			return
		}
		rs.state.RadioMode = true
		rs.state.RadioSeed = seed.Locator
		rs.state.RadioSeen[seed.Locator] = struct{}{}
		if _, aerr := rs.state.Add(seed); aerr != nil {
			err = aerr
			return
		}
		c.queueChanged(rs)
		if rs.state.Current == nil && !rs.state.Restarting {
			c.advance(rs)
		}
	})
	if derr != nil {
		return derr
	}
	return err
}

// StopRadio leaves radio mode; already-queued recommendations remain.
func (c *Controller) StopRadio(roomID string) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		rs.state.RadioMode = false
		rs.state.RadioSeed = ""
		rs.state.RadioSeen = make(map[string]struct{})
		return nil
	})
}

// SetDJQueueMode toggles approval-gated queueing.
func (c *Controller) SetDJQueueMode(roomID string, on bool) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		rs.state.DJQueueMode = on
		if !on {
			// Flush pending requests straight into the queue.
			for _, p := range rs.state.Pending {
				if _, err := rs.state.Add(p.Track); err != nil {
					break
				}
			}
			rs.state.Pending = nil
			c.queueChanged(rs)
			if rs.state.Current == nil && !rs.state.Restarting && len(rs.state.Queue) > 0 {
				c.advance(rs)
			}
		}
		c.persistSettings(rs)
		return nil
	})
}

// SetDJRole records which role counts as DJ for approval decisions.
func (c *Controller) SetDJRole(roomID, roleID string) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		rs.state.DJRoleID = roleID
		c.persistSettings(rs)
		return nil
	})
}

// SetMaxQueueSize caps how many tracks a room may queue.
func (c *Controller) SetMaxQueueSize(roomID string, size int) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		if size < 1 {
			return ErrInvalidValue
		}
		rs.state.MaxQueueSize = size
		c.persistSettings(rs)
		return nil
	})
}

// SetPerRequesterLimit caps queued tracks per requester; zero disables.
func (c *Controller) SetPerRequesterLimit(roomID string, limit int) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		if limit < 0 {
			return ErrInvalidValue
		}
		rs.state.MaxPerRequester = limit
		c.persistSettings(rs)
		return nil
	})
}

// Status is a point-in-time copy of a room's playback state.
type Status struct {
	RoomID           string
	Current          *track.Track
	Elapsed          int
	Paused           bool
	Queue            []track.Track
	Pending          []session.PendingRequest
	LoopMode         session.LoopMode
	Volume           float64
	Speed            float64
	FilterName       string
	CrossfadeSeconds int
	RadioMode        bool
	Autoplay         bool
	SkipVotes        int
}

// Status returns a consistent snapshot of the room.
func (c *Controller) Status(roomID string) (Status, error) {
	var st Status
	err := c.withRoom(roomID, func(rs *roomSession) error {
		s := rs.state
		st = Status{
			RoomID:           roomID,
			Queue:            append([]track.Track(nil), s.Queue...),
			Pending:          append([]session.PendingRequest(nil), s.Pending...),
			LoopMode:         s.LoopMode,
			Volume:           s.Volume,
			Speed:            s.Speed,
			FilterName:       s.FilterName,
			CrossfadeSeconds: s.CrossfadeSeconds,
			RadioMode:        s.RadioMode,
			Autoplay:         s.Autoplay,
			SkipVotes:        len(s.SkipVotes),
			Paused:           !rs.pausedAt.IsZero(),
		}
		if s.Current != nil {
			cur := *s.Current
			st.Current = &cur
			if st.Paused {
				st.Elapsed = s.Elapsed(rs.pausedAt)
			} else {
				st.Elapsed = s.Elapsed(time.Now())
			}
		}
		return nil
	})
	return st, err
}

// Rooms lists the open session IDs.
func (c *Controller) Rooms() []string {
	var ids []string
	_ = c.do(func() {
		for id := range c.rooms {
			ids = append(ids, id)
		}
	})
	return ids
}

// Publish lets callers raise engine events through the controller's bus.
func (c *Controller) Publish(eventType events.EventType, payload events.Payload) {
	c.bus.Publish(eventType, payload)
}
