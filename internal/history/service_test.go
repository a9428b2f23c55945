package history

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/bragi/internal/models"
	"github.com/friendsincode/bragi/internal/track"
)

func newTestService(t *testing.T, perRoom int) *Service {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "history.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.PlayRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(db, perRoom, zerolog.Nop())
}

func TestRecordAndRecent(t *testing.T) {
	svc := newTestService(t, 500)
	for i := 0; i < 3; i++ {
		err := svc.Record("room-1", track.Track{
			Title:           fmt.Sprintf("track %d", i),
			Locator:         fmt.Sprintf("https://example.test/%d", i),
			DurationSeconds: 120,
			RequesterID:     "user-1",
		}, false)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	recs, err := svc.Recent("room-1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("recent length: %d", len(recs))
	}
	if recs[0].Title != "track 2" {
		t.Fatalf("newest first expected, got %s", recs[0].Title)
	}
}

func TestRecordPrunesPastCap(t *testing.T) {
	svc := newTestService(t, 5)
	for i := 0; i < 8; i++ {
		err := svc.Record("room-1", track.Track{
			Title:   fmt.Sprintf("track %d", i),
			Locator: fmt.Sprintf("https://example.test/%d", i),
		}, false)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	recs, err := svc.Recent("room-1", 100)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("retention cap not applied: %d", len(recs))
	}
	// The oldest three were pruned.
	for _, rec := range recs {
		if rec.Title == "track 0" || rec.Title == "track 1" || rec.Title == "track 2" {
			t.Fatalf("pruned record survived: %s", rec.Title)
		}
	}
}

func TestTopExcludesSkips(t *testing.T) {
	svc := newTestService(t, 500)
	for i := 0; i < 3; i++ {
		if err := svc.Record("room-1", track.Track{Title: "hit", Locator: "https://example.test/hit"}, false); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := svc.Record("room-1", track.Track{Title: "meh", Locator: "https://example.test/meh"}, false); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record("room-1", track.Track{Title: "skipped", Locator: "https://example.test/skip"}, true); err != nil {
		t.Fatalf("record: %v", err)
	}

	top, err := svc.Top("room-1", 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("top length: %d", len(top))
	}
	if top[0].Locator != "https://example.test/hit" || top[0].Count != 3 {
		t.Fatalf("top entry: %+v", top[0])
	}
}

func TestStats(t *testing.T) {
	svc := newTestService(t, 500)
	if err := svc.Record("room-1", track.Track{Locator: "a", DurationSeconds: 100, RequesterID: "u1"}, false); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record("room-1", track.Track{Locator: "b", DurationSeconds: 50, RequesterID: "u1"}, false); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record("room-1", track.Track{Locator: "c", DurationSeconds: 30, RequesterID: "u2"}, true); err != nil {
		t.Fatalf("record: %v", err)
	}

	user, err := svc.StatsForUser("room-1", "u1")
	if err != nil {
		t.Fatalf("user stats: %v", err)
	}
	if user.Plays != 2 || user.TotalSeconds != 150 {
		t.Fatalf("user stats: %+v", user)
	}

	room, err := svc.StatsForRoom("room-1")
	if err != nil {
		t.Fatalf("room stats: %v", err)
	}
	if room.Plays != 3 || room.Skips != 1 || room.TotalSeconds != 180 {
		t.Fatalf("room stats: %+v", room)
	}
}
