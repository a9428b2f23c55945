package settings

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/bragi/internal/models"
	"github.com/friendsincode/bragi/internal/session"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "settings.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.RoomSettings{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestStoreSaveApplyRoundTrip(t *testing.T) {
	store := NewStore(newTestDB(t), zerolog.Nop())

	state := session.New("room-9", rand.New(rand.NewSource(1)))
	state.Volume = 0.8
	state.Speed = 1.25
	state.LoopMode = session.LoopQueue
	state.FilterName = "nightcore"
	state.EQGains[0] = 3.5
	state.CrossfadeSeconds = 4
	state.MaxPerRequester = 5
	state.DJQueueMode = true

	if err := store.Save(state); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := session.New("room-9", rand.New(rand.NewSource(1)))
	if err := store.Apply(restored); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if restored.Volume != 0.8 || restored.Speed != 1.25 {
		t.Fatalf("volume/speed: %v %v", restored.Volume, restored.Speed)
	}
	if restored.LoopMode != session.LoopQueue {
		t.Fatalf("loop mode: %v", restored.LoopMode)
	}
	if restored.FilterName != "nightcore" || restored.EQGains[0] != 3.5 {
		t.Fatalf("filter/eq: %q %v", restored.FilterName, restored.EQGains[0])
	}
	if restored.CrossfadeSeconds != 4 || restored.MaxPerRequester != 5 || !restored.DJQueueMode {
		t.Fatalf("admission fields lost: %+v", restored)
	}
}

func TestStoreApplyMissingRowKeepsDefaults(t *testing.T) {
	store := NewStore(newTestDB(t), zerolog.Nop())
	state := session.New("unknown", rand.New(rand.NewSource(1)))
	if err := store.Apply(state); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if state.Volume != session.DefaultVolume {
		t.Fatalf("defaults disturbed: %v", state.Volume)
	}
}

func TestStoreSaveIsUpsert(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, zerolog.Nop())
	state := session.New("room-1", rand.New(rand.NewSource(1)))

	if err := store.Save(state); err != nil {
		t.Fatalf("first save: %v", err)
	}
	state.Volume = 0.3
	if err := store.Save(state); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var count int64
	db.Model(&models.RoomSettings{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one row, got %d", count)
	}
	var row models.RoomSettings
	db.First(&row, "room_id = ?", "room-1")
	if row.Volume != 0.3 {
		t.Fatalf("update lost: %v", row.Volume)
	}
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(newTestDB(t), zerolog.Nop())
	state := session.New("room-1", rand.New(rand.NewSource(1)))
	if err := store.Save(state); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete("room-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	fresh := session.New("room-1", rand.New(rand.NewSource(1)))
	fresh.Volume = 0.123
	if err := store.Apply(fresh); err != nil {
		t.Fatalf("apply after delete: %v", err)
	}
	if fresh.Volume != 0.123 {
		t.Fatal("apply touched state after delete")
	}
}
