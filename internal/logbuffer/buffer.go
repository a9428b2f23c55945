/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer keeps the most recent log lines in a ring buffer so
// they can be served over the diagnostics endpoint without touching disk.
package logbuffer

import (
	"encoding/json"
	"sync"
	"time"
)

// Entry is one captured log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer is a fixed-capacity ring of log entries.
type Buffer struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	head     int
	count    int
}

// New creates a buffer holding up to capacity entries.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Buffer{entries: make([]Entry, capacity), capacity: capacity}
}

func (b *Buffer) add(e Entry) {
	b.mu.Lock()
	b.entries[b.head] = e
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
	b.mu.Unlock()
}

// Recent returns up to n entries in chronological order.
func (b *Buffer) Recent(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n > b.count {
		n = b.count
	}
	out := make([]Entry, 0, n)
	start := (b.head - n + b.capacity) % b.capacity
	for i := 0; i < n; i++ {
		out = append(out, b.entries[(start+i)%b.capacity])
	}
	return out
}

// Write implements io.Writer for zerolog's JSON output; malformed lines
// are stored with the raw text as the message.
func (b *Buffer) Write(p []byte) (int, error) {
	var raw map[string]any
	entry := Entry{Timestamp: time.Now()}
	if err := json.Unmarshal(p, &raw); err != nil {
		entry.Message = string(p)
		b.add(entry)
		return len(p), nil
	}

	if lvl, ok := raw["level"].(string); ok {
		entry.Level = lvl
		delete(raw, "level")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}
	if comp, ok := raw["component"].(string); ok {
		entry.Component = comp
		delete(raw, "component")
	}
	if ts, ok := raw["time"].(float64); ok {
		entry.Timestamp = time.Unix(int64(ts), 0)
		delete(raw, "time")
	}
	if len(raw) > 0 {
		entry.Fields = raw
	}
	b.add(entry)
	return len(p), nil
}
