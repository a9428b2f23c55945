/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package track defines the immutable track value carried through queues,
// history and snapshots. Tracks are resolved to an audio stream
// just-in-time by the media resolver.
package track

import (
	"regexp"
	"strings"
)

// artistSepRE splits "Artist - Title" style strings on the usual
// separators (hyphen, en/em dash, pipe).
var artistSepRE = regexp.MustCompile(`\s+[-–—|]\s+`)

// Track describes one playable item. Copied by value into queues and
// history; never mutated after creation.
type Track struct {
	Title           string `json:"title"`
	Locator         string `json:"locator"`
	DurationSeconds int    `json:"duration_seconds"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	RequesterID     string `json:"requester_id,omitempty"`
	Artist          string `json:"artist,omitempty"`
	IsLive          bool   `json:"is_live,omitempty"`
}

// ArtistKey returns the grouping key used by smart shuffle: the explicit
// artist if set, else the artist parsed from an "Artist - Title" style
// title, else "" (ungroupable).
func (t Track) ArtistKey() string {
	if t.Artist != "" {
		return strings.ToLower(strings.TrimSpace(t.Artist))
	}
	parts := artistSepRE.Split(t.Title, 2)
	if len(parts) > 1 {
		return strings.ToLower(strings.TrimSpace(parts[0]))
	}
	return ""
}

// SameLocator reports whether two tracks point at the same source.
func (t Track) SameLocator(other Track) bool {
	return t.Locator == other.Locator
}
