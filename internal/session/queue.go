/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"fmt"

	"github.com/friendsincode/bragi/internal/track"
)

// Add appends a track and returns its 1-based position, or ErrQueueFull
// when the queue is at MaxQueueSize.
func (s *State) Add(t track.Track) (int, error) {
	if len(s.Queue) >= s.MaxQueueSize {
		return 0, ErrQueueFull
	}
	s.Queue = append(s.Queue, t)
	return len(s.Queue), nil
}

// AddFront inserts a track at the head of the queue ("play next").
func (s *State) AddFront(t track.Track) (int, error) {
	if len(s.Queue) >= s.MaxQueueSize {
		return 0, ErrQueueFull
	}
	s.Queue = append([]track.Track{t}, s.Queue...)
	return 1, nil
}

// RemoveAt removes and returns the track at a 0-based index.
func (s *State) RemoveAt(index int) (track.Track, error) {
	if index < 0 || index >= len(s.Queue) {
		return track.Track{}, ErrOutOfRange
	}
	removed := s.Queue[index]
	s.Queue = append(s.Queue[:index], s.Queue[index+1:]...)
	return removed, nil
}

// Move relocates the track at from to position to. The destination is
// clamped into [0, len] after removal.
func (s *State) Move(from, to int) (track.Track, error) {
	if from < 0 || from >= len(s.Queue) {
		return track.Track{}, ErrOutOfRange
	}
	moved := s.Queue[from]
	rest := append(s.Queue[:from:from], s.Queue[from+1:]...)
	if to < 0 {
		to = 0
	}
	if to > len(rest) {
		to = len(rest)
	}
	s.Queue = append(rest[:to:to], append([]track.Track{moved}, rest[to:]...)...)
	return moved, nil
}

// SkipTo drops all queue entries before the 0-based index and returns the
// new head. Current is not touched; the caller decides when to advance.
func (s *State) SkipTo(index int) (track.Track, error) {
	if index < 0 || index >= len(s.Queue) {
		return track.Track{}, ErrOutOfRange
	}
	s.Queue = s.Queue[index:]
	return s.Queue[0], nil
}

// Shuffle applies a uniform random permutation to the queue.
func (s *State) Shuffle() {
	s.rng.Shuffle(len(s.Queue), func(i, j int) {
		s.Queue[i], s.Queue[j] = s.Queue[j], s.Queue[i]
	})
}

// HasDuplicate reports whether the locator is already playing or queued.
func (s *State) HasDuplicate(t track.Track) bool {
	if s.Current != nil && s.Current.SameLocator(t) {
		return true
	}
	for _, q := range s.Queue {
		if q.SameLocator(t) {
			return true
		}
	}
	return false
}

// CountByRequester returns how many queued tracks belong to a requester.
func (s *State) CountByRequester(requesterID string) int {
	n := 0
	for _, t := range s.Queue {
		if t.RequesterID == requesterID {
			n++
		}
	}
	return n
}

// NextTrack advances playback respecting the loop mode and returns the new
// current track, or nil when the queue is exhausted.
func (s *State) NextTrack() *track.Track {
	s.SkipVotes = make(map[string]struct{})

	if s.LoopMode == LoopSingle && s.Current != nil {
		return s.Current
	}

	s.Previous = s.Current

	if s.LoopMode == LoopQueue && s.Current != nil {
		s.Queue = append(s.Queue, *s.Current)
	}

	if len(s.Queue) == 0 {
		s.Current = nil
		return nil
	}

	head := s.Queue[0]
	s.Queue = s.Queue[1:]
	s.Current = &head
	return s.Current
}

// Snapshot pushes a copy of the queue onto the undo stack, evicting the
// oldest entry past UndoDepth.
func (s *State) Snapshot(description string) {
	entry := undoEntry{
		queue:       append([]track.Track(nil), s.Queue...),
		description: description,
	}
	s.undo = append(s.undo, entry)
	if len(s.undo) > UndoDepth {
		s.undo = s.undo[1:]
	}
}

// Undo restores the most recent queue snapshot and returns its
// description. Current is not touched.
func (s *State) Undo() (string, bool) {
	if len(s.undo) == 0 {
		return "", false
	}
	entry := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.Queue = entry.queue
	return entry.description, true
}

// SmartShuffle reorders the queue to avoid back-to-back tracks by the same
// artist. Tracks are grouped by artist key, each group is shuffled, then
// the result is built by repeatedly taking from the largest remaining
// group whose key differs from the previously placed one; the same key is
// reused only when no other group has tracks left. Deterministic for a
// fixed rng seed.
func (s *State) SmartShuffle() {
	if len(s.Queue) < 2 {
		return
	}

	type group struct {
		key    string
		tracks []track.Track
	}

	index := make(map[string]int)
	var groups []*group
	for i, t := range s.Queue {
		key := t.ArtistKey()
		if key == "" {
			// Ungroupable tracks each form their own group.
			key = fmt.Sprintf("\x00solo-%d", i)
		}
		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, &group{key: key})
		}
		groups[gi].tracks = append(groups[gi].tracks, t)
	}

	for _, g := range groups {
		s.rng.Shuffle(len(g.tracks), func(i, j int) {
			g.tracks[i], g.tracks[j] = g.tracks[j], g.tracks[i]
		})
	}

	result := make([]track.Track, 0, len(s.Queue))
	lastKey := ""
	for {
		var best *group
		for _, g := range groups {
			if len(g.tracks) == 0 || g.key == lastKey {
				continue
			}
			if best == nil || len(g.tracks) > len(best.tracks) {
				best = g
			}
		}
		if best == nil {
			// Only the last-placed key (or nothing) remains.
			for _, g := range groups {
				if len(g.tracks) > 0 {
					best = g
					break
				}
			}
		}
		if best == nil {
			break
		}
		result = append(result, best.tracks[0])
		best.tracks = best.tracks[1:]
		lastKey = best.key
	}

	s.Queue = result
}
