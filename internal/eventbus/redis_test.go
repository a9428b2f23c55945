/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/events"
)

// unreachableConfig points at a port nothing listens on, with timeouts
// short enough for tests. Connection refused fails fast, no live Redis
// is needed.
func unreachableConfig() RedisConfig {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 200 * time.Millisecond
	cfg.ReadTimeout = 200 * time.Millisecond
	cfg.WriteTimeout = 200 * time.Millisecond
	cfg.CheckInterval = time.Hour
	return cfg
}

func TestFallbackDeliversLocalEvents(t *testing.T) {
	rb, err := NewRedisBus(unreachableConfig(), "node-a", zerolog.Nop())
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	defer rb.Close()

	sub := rb.Subscribe(events.EventNowPlaying)
	rb.Publish(events.EventNowPlaying, events.Payload{"room_id": "room-1"})

	select {
	case payload := <-sub:
		if payload["room_id"] != "room-1" {
			t.Fatalf("unexpected payload: %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("local event not delivered in fallback mode")
	}
}

func TestTryReconnectFailsWhileUnreachable(t *testing.T) {
	rb, err := NewRedisBus(unreachableConfig(), "node-a", zerolog.Nop())
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	defer rb.Close()

	if err := rb.TryReconnect(); err == nil {
		t.Fatal("expected reconnect to fail against an unreachable address")
	}

	// Still in fallback; local delivery keeps working.
	sub := rb.Subscribe(events.EventNotice)
	rb.Publish(events.EventNotice, events.Payload{"text": "hello"})
	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("local delivery broken after failed reconnect")
	}
}

func TestTryReconnectRateLimited(t *testing.T) {
	rb, err := NewRedisBus(unreachableConfig(), "node-a", zerolog.Nop())
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	defer rb.Close()

	if err := rb.TryReconnect(); err == nil {
		t.Fatal("expected first probe to fail")
	}
	// CheckInterval is an hour, so the second probe must be refused
	// without dialing at all.
	start := time.Now()
	if err := rb.TryReconnect(); err == nil {
		t.Fatal("expected second probe to be rate-limited")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("rate-limited probe should not dial")
	}
}

func TestUnsubscribeClosesSubscriber(t *testing.T) {
	rb, err := NewRedisBus(unreachableConfig(), "node-a", zerolog.Nop())
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	defer rb.Close()

	sub := rb.Subscribe(events.EventQueueUpdated)
	rb.Unsubscribe(events.EventQueueUpdated, sub)

	select {
	case _, ok := <-sub:
		if ok {
			t.Fatal("expected closed channel, got payload")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed")
	}
}
