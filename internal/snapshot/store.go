/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package snapshot persists per-room playback state to disk so a restart
// can resume queues and seek positions. Writes go through a temp file and
// atomic rename; a crash mid-write never corrupts the previous snapshot.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/session"
	"github.com/friendsincode/bragi/internal/track"
)

// Snapshot is the persisted shape of a room's playback state. Elapsed is
// the playback position of Current in source seconds at capture time.
type Snapshot struct {
	RoomID   string           `json:"room_id"`
	Queue    []track.Track    `json:"queue"`
	Current  *track.Track     `json:"current,omitempty"`
	LoopMode session.LoopMode `json:"loop_mode"`
	Elapsed  float64          `json:"elapsed"`
}

// Store reads and writes one snapshot file per room under a base dir.
type Store struct {
	dir string
	log zerolog.Logger
}

func NewStore(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot dir: %w", err)
	}
	return &Store{dir: dir, log: log.With().Str("component", "snapshot").Logger()}, nil
}

func (s *Store) path(roomID string) string {
	return filepath.Join(s.dir, sanitize(roomID)+".json")
}

// sanitize keeps room IDs filesystem-safe without losing uniqueness for
// the plain numeric/alphanumeric IDs rooms actually use.
func sanitize(roomID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, roomID)
}

// Save writes the snapshot for its room atomically.
func (s *Store) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := renameio.WriteFile(s.path(snap.RoomID), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.log.Debug().Str("room_id", snap.RoomID).Int("queue_len", len(snap.Queue)).Msg("snapshot saved")
	return nil
}

// Load returns the snapshot for a room, or (nil, nil) when none exists.
func (s *Store) Load(roomID string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(roomID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// LoadAll returns every readable snapshot in the store. Corrupt files are
// logged and skipped so one bad room cannot block recovery of the rest.
func (s *Store) LoadAll() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	var snaps []Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unreadable snapshot")
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			s.log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping corrupt snapshot")
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Delete removes a room's snapshot. Missing files are not an error.
func (s *Store) Delete(roomID string) error {
	err := os.Remove(s.path(roomID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
