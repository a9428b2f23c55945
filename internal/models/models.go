/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models defines the persistent database models.
package models

import "time"

// RoomSettings stores per-room playback tunables that survive restarts.
// One row per room, keyed by the room's external ID.
type RoomSettings struct {
	RoomID           string  `gorm:"primaryKey;type:varchar(64)"`
	Volume           float64 `gorm:"default:0.5"`
	Speed            float64 `gorm:"default:1.0"`
	LoopMode         string  `gorm:"type:varchar(16);default:'off'"`
	Normalize        bool    `gorm:"default:false"`
	FilterName       string  `gorm:"type:varchar(32)"`
	EQGains          string  `gorm:"type:varchar(255)"` // JSON-encoded [10]float64
	CrossfadeSeconds int     `gorm:"default:0"`
	MaxQueueSize     int     `gorm:"default:50"`
	MaxPerRequester  int     `gorm:"default:0"`
	DJRoleID         string  `gorm:"type:varchar(64)"`
	DJQueueMode      bool    `gorm:"default:false"`
	Autoplay         bool    `gorm:"default:false"`
	StayConnected    bool    `gorm:"default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName returns the table name for GORM.
func (RoomSettings) TableName() string {
	return "room_settings"
}

// PlayRecord is one completed (or skipped) playback, kept for history and
// listening stats. Rows per room are capped; the oldest are pruned.
type PlayRecord struct {
	ID          uint   `gorm:"primaryKey"`
	RoomID      string `gorm:"index:idx_play_room_time;type:varchar(64)"`
	Locator     string `gorm:"index;type:varchar(512)"`
	Title       string `gorm:"type:varchar(512)"`
	Artist      string `gorm:"type:varchar(255)"`
	RequesterID string `gorm:"index;type:varchar(64)"`
	Duration    int
	PlayedAt    time.Time `gorm:"index:idx_play_room_time"`
	Skipped     bool      `gorm:"default:false"`
}

// TableName returns the table name for GORM.
func (PlayRecord) TableName() string {
	return "play_records"
}
