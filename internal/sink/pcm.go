/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package sink delivers producer frames to an output writer at real-time
// pace, one 20ms frame per tick, and reports end-of-stream to the player.
package sink

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/audio"
)

// PCM pumps frames from a producer into a writer. Start may be called
// again after Stop to begin a new pump with a different producer.
type PCM struct {
	out io.Writer
	log zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	gen     int
	paused  bool
}

func NewPCM(out io.Writer, log zerolog.Logger) *PCM {
	return &PCM{out: out, log: log.With().Str("component", "sink").Logger()}
}

// Start begins pumping from src. done is invoked exactly once from the
// pump goroutine when the stream ends or the pump stops: with nil on
// io.EOF or Stop, with the underlying error otherwise.
//
// A replaced pump is cancelled, and the new pump waits for it to exit
// before the first read: on a crossfade handover src wraps the old
// pump's producer, and two goroutines must never read it at once.
func (p *PCM) Start(src audio.Producer, done func(err error)) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	prev := p.stopped
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	p.cancel = cancel
	p.stopped = stopped
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	go func() {
		defer close(stopped)
		if prev != nil {
			<-prev
		}
		p.pump(ctx, gen, src, done)
	}()
}

// Stop halts the active pump without invoking done with an error, and
// returns only once the pump goroutine has exited, so the caller can
// safely close the producer afterwards.
func (p *PCM) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	prev := p.stopped
	p.stopped = nil
	p.mu.Unlock()
	if prev != nil {
		<-prev
	}
}

// Pause suspends frame delivery; the decoder stays alive.
func (p *PCM) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

// Resume continues frame delivery after Pause.
func (p *PCM) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
}

func (p *PCM) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// pump never closes src: the player owns producer lifetimes, since a
// producer handed over to a crossfade must outlive the pump reading it.
func (p *PCM) pump(ctx context.Context, gen int, src audio.Producer, done func(err error)) {
	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			done(nil)
			return
		case <-ticker.C:
		}
		// The tick can race cancellation; never read past a cancel.
		if ctx.Err() != nil {
			done(nil)
			return
		}

		if p.isPaused() {
			continue
		}

		frame, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			done(nil)
			return
		}
		if err != nil {
			p.log.Warn().Err(err).Int("gen", gen).Msg("producer read failed")
			done(err)
			return
		}
		if _, err := p.out.Write(frame); err != nil {
			if ctx.Err() != nil {
				done(nil)
				return
			}
			done(err)
			return
		}
	}
}
