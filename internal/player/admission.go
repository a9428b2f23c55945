/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"github.com/google/uuid"

	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/session"
	"github.com/friendsincode/bragi/internal/track"
)

// EnqueueRequest describes one track admission attempt.
type EnqueueRequest struct {
	Track    track.Track
	PlayNext bool
	// IsDJ bypasses DJ-queue approval and the per-requester cap. Role
	// membership is the caller's concern; the engine only honors the flag.
	IsDJ bool
}

// EnqueueResult reports what admission did with the track.
type EnqueueResult struct {
	Position  int
	Pending   bool
	PendingID string
	Started   bool
	Duplicate bool
}

// Enqueue admits a track into a room, opening the session on first use.
// Admission order: DJ-queue gating, per-requester cap, queue capacity.
func (c *Controller) Enqueue(roomID string, req EnqueueRequest) (EnqueueResult, error) {
	var res EnqueueResult
	var err error
	derr := c.do(func() {
		rs, rerr := c.ensureRoom(roomID)
		if rerr != nil {
			err = rerr
			return
		}
		st := rs.state
		res.Duplicate = st.HasDuplicate(req.Track)

		if st.DJQueueMode && !req.IsDJ {
			if len(st.Pending) >= session.MaxPendingRequests {
				err = ErrPendingFull
				return
			}
			id := uuid.NewString()
			st.Pending = append(st.Pending, session.PendingRequest{ID: id, Track: req.Track})
			res.Pending = true
			res.PendingID = id
			c.bus.Publish(events.EventPendingAdded, events.Payload{
				"room_id":      roomID,
				"pending_id":   id,
				"title":        req.Track.Title,
				"requester_id": req.Track.RequesterID,
			})
			return
		}

		if st.MaxPerRequester > 0 && !req.IsDJ &&
			st.CountByRequester(req.Track.RequesterID) >= st.MaxPerRequester {
			err = ErrPerRequesterLimit
			return
		}

		if req.PlayNext {
			res.Position, err = st.AddFront(req.Track)
		} else {
			res.Position, err = st.Add(req.Track)
		}
		if err != nil {
			return
		}

		c.queueChanged(rs)
		if st.Current == nil && !st.Restarting {
			c.advance(rs)
			res.Started = true
		}
	})
	if derr != nil {
		return res, derr
	}
	return res, err
}

// takePending removes and returns the pending request with the given ID.
// The removal is the race guard: of two concurrent decisions on the same
// request, exactly one finds it.
func takePending(st *session.State, pendingID string) (session.PendingRequest, bool) {
	for i, p := range st.Pending {
		if p.ID == pendingID {
			st.Pending = append(st.Pending[:i], st.Pending[i+1:]...)
			return p, true
		}
	}
	return session.PendingRequest{}, false
}

// ApprovePending moves an approved request into the queue.
func (c *Controller) ApprovePending(roomID, pendingID string) (track.Track, error) {
	var approved track.Track
	err := c.withRoom(roomID, func(rs *roomSession) error {
		p, ok := takePending(rs.state, pendingID)
		if !ok {
			return ErrNotPending
		}
		if _, err := rs.state.Add(p.Track); err != nil {
			return err
		}
		approved = p.Track
		c.queueChanged(rs)
		if rs.state.Current == nil && !rs.state.Restarting {
			c.advance(rs)
		}
		return nil
	})
	return approved, err
}

// RejectPending discards a pending request.
func (c *Controller) RejectPending(roomID, pendingID string) (track.Track, error) {
	var rejected track.Track
	err := c.withRoom(roomID, func(rs *roomSession) error {
		p, ok := takePending(rs.state, pendingID)
		if !ok {
			return ErrNotPending
		}
		rejected = p.Track
		return nil
	})
	return rejected, err
}
