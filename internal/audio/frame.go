/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audio defines the fixed PCM frame geometry shared by producers,
// sinks and the crossfade mixer, plus the sample-level mixing primitives.
package audio

import "time"

// All audio in the engine is signed 16-bit little-endian PCM at a fixed
// rate; one frame covers a 20ms time slice.
const (
	SampleRate      = 48000
	Channels        = 2
	BytesPerSample  = 2
	FrameDuration   = 20 * time.Millisecond
	FramesPerSecond = int(time.Second / FrameDuration)
	SamplesPerFrame = SampleRate / FramesPerSecond
	FrameBytes      = SamplesPerFrame * Channels * BytesPerSample
)

// Producer yields fixed-size audio frames on demand until exhausted.
// ReadFrame returns io.EOF once the stream has ended; frames may be
// shorter than FrameBytes on the final read.
type Producer interface {
	ReadFrame() ([]byte, error)
	Close() error
}

// MixS16LE mixes two S16LE sample buffers with the given gains into a new
// buffer, clamping to int16 range to avoid overflow wraparound. Inputs of
// unequal length are padded with silence.
func MixS16LE(a, b []byte, aGain, bGain float64) []byte {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i+1 < n; i += 2 {
		var as, bs int16
		if i+1 < len(a) {
			as = int16(uint16(a[i]) | uint16(a[i+1])<<8)
		}
		if i+1 < len(b) {
			bs = int16(uint16(b[i]) | uint16(b[i+1])<<8)
		}
		m := int32(float64(as)*aGain + float64(bs)*bGain)
		if m > 32767 {
			m = 32767
		} else if m < -32768 {
			m = -32768
		}
		u := uint16(int16(m))
		out[i] = byte(u)
		out[i+1] = byte(u >> 8)
	}
	return out
}
