/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sink

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/audio"
)

// slowProducer holds each read open for delay and records whether two
// goroutines ever read it at the same time.
type slowProducer struct {
	mu      sync.Mutex
	delay   time.Duration
	frames  int
	active  int
	reads   int
	overlap bool
}

func (p *slowProducer) ReadFrame() ([]byte, error) {
	p.mu.Lock()
	p.active++
	if p.active > 1 {
		p.overlap = true
	}
	p.mu.Unlock()

	time.Sleep(p.delay)

	p.mu.Lock()
	p.active--
	p.reads++
	eof := p.frames > 0 && p.reads >= p.frames
	p.mu.Unlock()
	if eof {
		return nil, io.EOF
	}
	return make([]byte, audio.FrameBytes), nil
}

func (p *slowProducer) Close() error { return nil }

func (p *slowProducer) overlapped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overlap
}

func (p *slowProducer) readCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

func TestStartHandoverSerializesProducerReads(t *testing.T) {
	p := NewPCM(io.Discard, zerolog.Nop())
	outgoing := &slowProducer{delay: 30 * time.Millisecond}
	incoming := &slowProducer{delay: time.Millisecond}

	var firstDone atomic.Int32
	p.Start(outgoing, func(err error) {
		firstDone.Add(1)
		if err != nil {
			t.Errorf("replaced pump reported error: %v", err)
		}
	})
	time.Sleep(50 * time.Millisecond)

	// The fade handover wraps the still-live outgoing producer; the old
	// pump may be mid-read when the replacement starts.
	p.Start(audio.NewCrossfade(outgoing, incoming, 1), func(err error) {})
	time.Sleep(100 * time.Millisecond)
	p.Stop()

	if outgoing.overlapped() {
		t.Fatal("outgoing producer was read by two pumps at once")
	}
	if got := firstDone.Load(); got != 1 {
		t.Fatalf("replaced pump's done fired %d times", got)
	}
}

func TestStopWaitsForPumpExit(t *testing.T) {
	p := NewPCM(io.Discard, zerolog.Nop())
	src := &slowProducer{delay: 10 * time.Millisecond}

	p.Start(src, func(err error) {})
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	n := src.readCount()
	time.Sleep(60 * time.Millisecond)
	if src.readCount() != n {
		t.Fatal("producer read after Stop returned")
	}
}

func TestDoneFiresOnceOnEOF(t *testing.T) {
	p := NewPCM(io.Discard, zerolog.Nop())
	src := &slowProducer{frames: 3}

	var calls atomic.Int32
	var gotErr atomic.Value
	p.Start(src, func(err error) {
		calls.Add(1)
		if err != nil {
			gotErr.Store(err)
		}
	})

	deadline := time.Now().Add(time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() != 1 {
		t.Fatalf("done fired %d times", calls.Load())
	}
	if gotErr.Load() != nil {
		t.Fatalf("end of stream reported error: %v", gotErr.Load())
	}
}
