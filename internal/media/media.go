/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media defines the boundary between the playback engine and the
// outside world: resolving a track locator into a decodable stream, and
// recommending follow-up tracks for radio and autoplay refills.
package media

import (
	"context"
	"fmt"

	"github.com/friendsincode/bragi/internal/audio"
	"github.com/friendsincode/bragi/internal/track"
)

// Options carries the per-playback audio shaping parameters a resolver
// bakes into the decoded stream.
type Options struct {
	Volume      float64
	Speed       float64
	Normalize   bool
	FilterName  string
	EQGains     [10]float64
	SeekSeconds float64
	IsLive      bool
}

// Stream is a resolved, decodable source. CachedRef returns an opaque
// reference (typically a direct media URL) that lets the engine rebuild
// the stream with different Options without re-resolving the locator;
// refs expire, so a rebuild may still fail and force a full re-resolve.
type Stream interface {
	Open(ctx context.Context, opts Options) (audio.Producer, error)
	CachedRef() string
	Track() track.Track
}

// Resolver turns a track locator into a Stream. Rebuild recreates a
// Stream from a previously obtained CachedRef, used on the restart fast
// path to skip the resolve round trip.
type Resolver interface {
	Resolve(ctx context.Context, t track.Track) (Stream, error)
	Rebuild(ctx context.Context, t track.Track, cachedRef string) (Stream, error)
}

// Recommender suggests tracks related to a seed, excluding locators the
// session has already seen. Used for radio mode and autoplay refills.
type Recommender interface {
	Recommend(ctx context.Context, seed track.Track, seen map[string]struct{}, limit int) ([]track.Track, error)
}

// ResolveError wraps a resolver failure with the locator that caused it
// so playback advance can count and report per-track failures.
type ResolveError struct {
	Locator string
	Err     error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Locator, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }
