/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package settings persists per-room playback tunables so volume, loop
// mode, filters and admission limits survive process restarts.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/bragi/internal/models"
	"github.com/friendsincode/bragi/internal/session"
)

// Store reads and writes RoomSettings rows.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "settings").Logger()}
}

// Apply loads the persisted settings for a room into the session state.
// A room with no row keeps the state's defaults.
func (s *Store) Apply(state *session.State) error {
	var row models.RoomSettings
	err := s.db.First(&row, "room_id = ?", state.RoomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	state.Volume = row.Volume
	state.Speed = row.Speed
	state.Normalize = row.Normalize
	state.FilterName = row.FilterName
	state.CrossfadeSeconds = row.CrossfadeSeconds
	state.MaxQueueSize = row.MaxQueueSize
	state.MaxPerRequester = row.MaxPerRequester
	state.DJRoleID = row.DJRoleID
	state.DJQueueMode = row.DJQueueMode
	state.Autoplay = row.Autoplay
	state.StayConnected = row.StayConnected

	state.LoopMode = session.ParseLoopMode(row.LoopMode)
	if row.EQGains != "" {
		var gains [session.EQBandCount]float64
		if err := json.Unmarshal([]byte(row.EQGains), &gains); err != nil {
			s.log.Warn().Err(err).Str("room_id", state.RoomID).Msg("discarding malformed eq gains")
		} else {
			state.EQGains = gains
		}
	}
	return nil
}

// Save upserts the room's tunables from the session state.
func (s *Store) Save(state *session.State) error {
	gains, err := json.Marshal(state.EQGains)
	if err != nil {
		return fmt.Errorf("encode eq gains: %w", err)
	}
	row := models.RoomSettings{
		RoomID:           state.RoomID,
		Volume:           state.Volume,
		Speed:            state.Speed,
		LoopMode:         state.LoopMode.String(),
		Normalize:        state.Normalize,
		FilterName:       state.FilterName,
		EQGains:          string(gains),
		CrossfadeSeconds: state.CrossfadeSeconds,
		MaxQueueSize:     state.MaxQueueSize,
		MaxPerRequester:  state.MaxPerRequester,
		DJRoleID:         state.DJRoleID,
		DJQueueMode:      state.DJQueueMode,
		Autoplay:         state.Autoplay,
		StayConnected:    state.StayConnected,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		UpdateAll: true,
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Delete removes a room's persisted settings.
func (s *Store) Delete(roomID string) error {
	if err := s.db.Delete(&models.RoomSettings{}, "room_id = ?", roomID).Error; err != nil {
		return fmt.Errorf("delete settings: %w", err)
	}
	return nil
}
