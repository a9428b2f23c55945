/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import "io"

// Crossfade blends an outgoing producer into an incoming one over a fixed
// window of frames with a linear gain ramp in the int16 sample domain.
// Once the ramp completes (or the outgoing stream ends early) all reads
// pass through the incoming producer directly.
type Crossfade struct {
	outgoing Producer
	incoming Producer
	window   int
	count    int
	finished bool
}

// NewCrossfade builds a mixer over a window of seconds*FramesPerSecond
// frames. A non-positive window finishes on the first read.
func NewCrossfade(outgoing, incoming Producer, seconds int) *Crossfade {
	return &Crossfade{
		outgoing: outgoing,
		incoming: incoming,
		window:   seconds * FramesPerSecond,
	}
}

// ReadFrame implements Producer.
func (c *Crossfade) ReadFrame() ([]byte, error) {
	if c.finished {
		return c.incoming.ReadFrame()
	}

	outFrame, outErr := c.outgoing.ReadFrame()
	inFrame, inErr := c.incoming.ReadFrame()

	switch {
	case outErr != nil && inErr != nil:
		return nil, io.EOF
	case outErr != nil:
		// Outgoing ended early: abort the ramp, hand over immediately.
		c.finished = true
		return inFrame, nil
	case inErr != nil:
		// Incoming ended during the ramp. Correct pre-fetch should make
		// this unreachable; treat it as a hard stop.
		c.finished = true
		return nil, io.EOF
	}

	progress := 1.0
	if c.window > 0 {
		progress = float64(c.count) / float64(c.window)
	}
	c.count++

	if progress >= 1.0 {
		c.finished = true
		return inFrame, nil
	}
	return MixS16LE(outFrame, inFrame, 1.0-progress, progress), nil
}

// Close releases both underlying producers.
func (c *Crossfade) Close() error {
	outErr := c.outgoing.Close()
	if err := c.incoming.Close(); err != nil {
		return err
	}
	return outErr
}
