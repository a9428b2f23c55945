/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package session holds the per-room mutable playback state and the pure
// queue operations on it. A State is owned by exactly one scheduler
// goroutine (the playback controller); nothing in this package locks.
package session

import (
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/friendsincode/bragi/internal/track"
)

// LoopMode controls how NextTrack advances the queue.
type LoopMode int

const (
	LoopOff LoopMode = iota
	LoopSingle
	LoopQueue
)

// Next cycles Off -> Single -> Queue -> Off.
func (m LoopMode) Next() LoopMode {
	return (m + 1) % 3
}

func (m LoopMode) String() string {
	switch m {
	case LoopSingle:
		return "single"
	case LoopQueue:
		return "queue"
	default:
		return "off"
	}
}

// ParseLoopMode maps a persisted label back to a LoopMode.
func ParseLoopMode(s string) LoopMode {
	switch s {
	case "single":
		return LoopSingle
	case "queue":
		return LoopQueue
	default:
		return LoopOff
	}
}

// MarshalJSON persists the mode as its label, not the internal ordinal.
func (m LoopMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *LoopMode) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	*m = ParseLoopMode(label)
	return nil
}

var (
	// ErrQueueFull is returned by Add when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")
	// ErrOutOfRange is returned for an invalid queue index.
	ErrOutOfRange = errors.New("index out of range")
)

// Defaults applied to a freshly created State before any persisted
// settings are layered on.
const (
	DefaultVolume       = 0.5
	DefaultSpeed        = 1.0
	DefaultMaxQueueSize = 50
	MaxPendingRequests  = 50
	EQBandCount         = 10
	UndoDepth           = 10
)

// PendingRequest is a track awaiting DJ approval in DJ queue mode.
type PendingRequest struct {
	ID    string
	Track track.Track
}

type undoEntry struct {
	queue       []track.Track
	description string
}

// State is the per-room playback record. All fields are mutated only on
// the controller scheduler.
type State struct {
	RoomID string

	Queue    []track.Track
	Current  *track.Track
	Previous *track.Track

	LoopMode   LoopMode
	Volume     float64
	Speed      float64
	Normalize  bool
	FilterName string
	EQGains    [EQBandCount]float64

	CrossfadeSeconds int
	MaxQueueSize     int
	MaxPerRequester  int

	DJRoleID    string
	DJQueueMode bool
	Pending     []PendingRequest

	RadioMode bool
	RadioSeed string
	RadioSeen map[string]struct{}
	Autoplay  bool

	StayConnected bool

	SkipVotes map[string]struct{}

	// Restarting is true only while an orchestrator-initiated stop is in
	// flight; the sink's resulting "finished" callback must not advance
	// the queue.
	Restarting bool

	// PlayStart anchors elapsed time: elapsed = (now - PlayStart) * Speed.
	PlayStart time.Time

	undo []undoEntry
	rng  *rand.Rand
}

// New creates a State with defaults for a room. The rng seeds shuffle and
// smart shuffle; pass a fixed-seed source in tests for determinism.
func New(roomID string, rng *rand.Rand) *State {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &State{
		RoomID:       roomID,
		Volume:       DefaultVolume,
		Speed:        DefaultSpeed,
		MaxQueueSize: DefaultMaxQueueSize,
		RadioSeen:    make(map[string]struct{}),
		SkipVotes:    make(map[string]struct{}),
		rng:          rng,
	}
}

// Elapsed returns seconds of play time at now, accounting for speed.
func (s *State) Elapsed(now time.Time) int {
	if s.PlayStart.IsZero() {
		return 0
	}
	return int(now.Sub(s.PlayStart).Seconds() * s.Speed)
}

// EQActive reports whether any EQ band deviates from flat.
func (s *State) EQActive() bool {
	for _, g := range s.EQGains {
		if g != 0 {
			return true
		}
	}
	return false
}

// Clear resets all transient playback state. Persisted tunables (volume,
// speed, filters, DJ role, ...) are left untouched; they outlive sessions.
func (s *State) Clear() {
	s.Queue = nil
	s.Current = nil
	s.Previous = nil
	s.LoopMode = LoopOff
	s.RadioMode = false
	s.RadioSeed = ""
	s.RadioSeen = make(map[string]struct{})
	s.SkipVotes = make(map[string]struct{})
	s.Pending = nil
	s.PlayStart = time.Time{}
	s.Restarting = false
	s.undo = nil
}
