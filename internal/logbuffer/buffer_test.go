/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logbuffer

import (
	"fmt"
	"testing"
)

func TestWriteParsesZerologLine(t *testing.T) {
	b := New(10)
	line := []byte(`{"level":"info","component":"player","room_id":"r1","time":1700000000,"message":"session opened"}`)
	if _, err := b.Write(line); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := b.Recent(1)
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	e := got[0]
	if e.Level != "info" || e.Message != "session opened" || e.Component != "player" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Fields["room_id"] != "r1" {
		t.Fatalf("expected room_id field, got %v", e.Fields)
	}
}

func TestWriteKeepsMalformedLines(t *testing.T) {
	b := New(10)
	if _, err := b.Write([]byte("not json\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := b.Recent(1)
	if len(got) != 1 || got[0].Message != "not json\n" {
		t.Fatalf("malformed line not kept: %+v", got)
	}
}

func TestRingWrapsAndStaysOrdered(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		line := fmt.Sprintf(`{"level":"info","message":"msg-%d"}`, i)
		if _, err := b.Write([]byte(line)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	got := b.Recent(0)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i, e := range got {
		want := fmt.Sprintf("msg-%d", i+2)
		if e.Message != want {
			t.Fatalf("entry %d: got %q, want %q", i, e.Message, want)
		}
	}
}
