/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"github.com/friendsincode/bragi/internal/track"
)

// RemoveTrack deletes the queue entry at a 0-based index.
func (c *Controller) RemoveTrack(roomID string, index int) (track.Track, error) {
	var removed track.Track
	err := c.withRoom(roomID, func(rs *roomSession) error {
		rs.state.Snapshot("remove")
		t, rerr := rs.state.RemoveAt(index)
		if rerr != nil {
			return rerr
		}
		removed = t
		c.queueChanged(rs)
		return nil
	})
	return removed, err
}

// MoveTrack relocates a queue entry.
func (c *Controller) MoveTrack(roomID string, from, to int) (track.Track, error) {
	var moved track.Track
	err := c.withRoom(roomID, func(rs *roomSession) error {
		rs.state.Snapshot("move")
		t, merr := rs.state.Move(from, to)
		if merr != nil {
			return merr
		}
		moved = t
		c.queueChanged(rs)
		return nil
	})
	return moved, err
}

// SkipToIndex drops everything before the 0-based index and skips the
// current track, so the chosen entry plays next.
func (c *Controller) SkipToIndex(roomID string, index int) (track.Track, error) {
	var target track.Track
	err := c.withRoom(roomID, func(rs *roomSession) error {
		if rs.state.Current == nil {
			return ErrNothingPlaying
		}
		rs.state.Snapshot("skip to")
		t, serr := rs.state.SkipTo(index)
		if serr != nil {
			return serr
		}
		target = t
		c.queueChanged(rs)
		c.skipCurrent(rs)
		return nil
	})
	return target, err
}

// ShuffleQueue applies a uniform random permutation.
func (c *Controller) ShuffleQueue(roomID string) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		rs.state.Snapshot("shuffle")
		rs.state.Shuffle()
		c.queueChanged(rs)
		return nil
	})
}

// SmartShuffleQueue shuffles while spreading same-artist tracks apart.
func (c *Controller) SmartShuffleQueue(roomID string) error {
	return c.withRoom(roomID, func(rs *roomSession) error {
		rs.state.Snapshot("smart shuffle")
		rs.state.SmartShuffle()
		c.queueChanged(rs)
		return nil
	})
}

// UndoQueue reverts the most recent destructive queue operation and
// returns its description.
func (c *Controller) UndoQueue(roomID string) (string, error) {
	var desc string
	err := c.withRoom(roomID, func(rs *roomSession) error {
		d, ok := rs.state.Undo()
		if !ok {
			return ErrNothingToUndo
		}
		desc = d
		c.queueChanged(rs)
		return nil
	})
	return desc, err
}

// ClearQueue empties the queue; the current track keeps playing.
func (c *Controller) ClearQueue(roomID string) (int, error) {
	var n int
	err := c.withRoom(roomID, func(rs *roomSession) error {
		rs.state.Snapshot("clear")
		n = len(rs.state.Queue)
		rs.state.Queue = nil
		c.queueChanged(rs)
		return nil
	})
	return n, err
}
