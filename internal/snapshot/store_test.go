package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/session"
	"github.com/friendsincode/bragi/internal/track"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	cur := track.Track{Title: "now playing", Locator: "https://example.test/a", DurationSeconds: 180}
	snap := Snapshot{
		RoomID:   "123456",
		Queue:    []track.Track{{Title: "next", Locator: "https://example.test/b"}},
		Current:  &cur,
		LoopMode: session.LoopQueue,
		Elapsed:  42.5,
	}
	if err := store.Save(snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load("123456")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatal("load returned nil for existing snapshot")
	}
	if got.Current == nil || got.Current.Locator != cur.Locator {
		t.Fatalf("current mismatch: %+v", got.Current)
	}
	if got.LoopMode != session.LoopQueue || got.Elapsed != 42.5 {
		t.Fatalf("fields mismatch: %+v", got)
	}
	if len(got.Queue) != 1 || got.Queue[0].Title != "next" {
		t.Fatalf("queue mismatch: %+v", got.Queue)
	}
}

func TestStore_LoopModePersistsAsLabel(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save(Snapshot{RoomID: "r1", LoopMode: session.LoopSingle}); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "r1.json"))
	if err != nil {
		t.Fatalf("read raw file: %v", err)
	}
	if !strings.Contains(string(raw), `"loop_mode": "single"`) {
		t.Fatalf("loop mode not stored as label:\n%s", raw)
	}

	got, err := store.Load("r1")
	if err != nil || got == nil {
		t.Fatalf("load: %+v %v", got, err)
	}
	if got.LoopMode != session.LoopSingle {
		t.Fatalf("loop mode mismatch: %v", got.LoopMode)
	}
}

func TestStore_LoadMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Load("nope")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestStore_LoadAllSkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save(Snapshot{RoomID: "good"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}

	snaps, err := store.LoadAll()
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(snaps) != 1 || snaps[0].RoomID != "good" {
		t.Fatalf("expected only the good snapshot, got %+v", snaps)
	}
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save(Snapshot{RoomID: "r1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete("r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete("r1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	got, err := store.Load("r1")
	if err != nil || got != nil {
		t.Fatalf("snapshot survived delete: %+v %v", got, err)
	}
}

func TestSanitize_KeepsSafeCharacters(t *testing.T) {
	if got := sanitize("room/..\\evil"); got != "room___evil" {
		t.Fatalf("sanitize: %q", got)
	}
	if got := sanitize("123-abc_XYZ"); got != "123-abc_XYZ" {
		t.Fatalf("sanitize changed safe id: %q", got)
	}
}
