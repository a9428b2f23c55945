/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history records finished playbacks and answers listening-stat
// queries (top tracks, per-user and per-room aggregates).
package history

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi/internal/models"
	"github.com/friendsincode/bragi/internal/track"
)

// Service wraps the play_records table.
type Service struct {
	db      *gorm.DB
	perRoom int
	log     zerolog.Logger
}

// NewService builds a history service. perRoom caps how many records are
// retained per room; older rows are pruned on insert.
func NewService(db *gorm.DB, perRoom int, log zerolog.Logger) *Service {
	return &Service{db: db, perRoom: perRoom, log: log.With().Str("component", "history").Logger()}
}

// Record stores one playback and prunes the room past the retention cap.
func (s *Service) Record(roomID string, t track.Track, skipped bool) error {
	rec := models.PlayRecord{
		RoomID:      roomID,
		Locator:     t.Locator,
		Title:       t.Title,
		Artist:      t.Artist,
		RequesterID: t.RequesterID,
		Duration:    t.DurationSeconds,
		PlayedAt:    time.Now().UTC(),
		Skipped:     skipped,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("record play: %w", err)
	}
	return s.prune(roomID)
}

func (s *Service) prune(roomID string) error {
	if s.perRoom <= 0 {
		return nil
	}
	var count int64
	if err := s.db.Model(&models.PlayRecord{}).Where("room_id = ?", roomID).Count(&count).Error; err != nil {
		return fmt.Errorf("count history: %w", err)
	}
	excess := count - int64(s.perRoom)
	if excess <= 0 {
		return nil
	}
	var ids []uint
	if err := s.db.Model(&models.PlayRecord{}).
		Where("room_id = ?", roomID).
		Order("played_at asc, id asc").
		Limit(int(excess)).
		Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("find prunable history: %w", err)
	}
	if err := s.db.Delete(&models.PlayRecord{}, ids).Error; err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

// Recent returns the latest plays for a room, newest first.
func (s *Service) Recent(roomID string, limit int) ([]models.PlayRecord, error) {
	var recs []models.PlayRecord
	err := s.db.Where("room_id = ?", roomID).
		Order("played_at desc, id desc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	return recs, nil
}

// TrackCount aggregates play counts per locator.
type TrackCount struct {
	Locator string
	Title   string
	Count   int64
}

// Top returns the most-played tracks in a room.
func (s *Service) Top(roomID string, limit int) ([]TrackCount, error) {
	var rows []TrackCount
	err := s.db.Model(&models.PlayRecord{}).
		Select("locator, max(title) as title, count(*) as count").
		Where("room_id = ? AND skipped = ?", roomID, false).
		Group("locator").
		Order("count desc").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top tracks: %w", err)
	}
	return rows, nil
}

// UserStats summarizes one requester's listening in a room.
type UserStats struct {
	Plays        int64
	TotalSeconds int64
}

// StatsForUser aggregates a requester's plays in a room.
func (s *Service) StatsForUser(roomID, requesterID string) (UserStats, error) {
	var stats UserStats
	err := s.db.Model(&models.PlayRecord{}).
		Select("count(*) as plays, coalesce(sum(duration), 0) as total_seconds").
		Where("room_id = ? AND requester_id = ? AND skipped = ?", roomID, requesterID, false).
		Scan(&stats).Error
	if err != nil {
		return UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return stats, nil
}

// RoomStats summarizes a room's listening.
type RoomStats struct {
	Plays        int64
	Skips        int64
	TotalSeconds int64
}

// StatsForRoom aggregates all plays in a room.
func (s *Service) StatsForRoom(roomID string) (RoomStats, error) {
	var stats RoomStats
	err := s.db.Model(&models.PlayRecord{}).
		Select("count(*) as plays, coalesce(sum(case when skipped then 1 else 0 end), 0) as skips, coalesce(sum(duration), 0) as total_seconds").
		Where("room_id = ?", roomID).
		Scan(&stats).Error
	if err != nil {
		return RoomStats{}, fmt.Errorf("room stats: %w", err)
	}
	return stats, nil
}
