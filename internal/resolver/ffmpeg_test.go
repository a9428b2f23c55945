package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/media"
	"github.com/friendsincode/bragi/internal/track"
)

func TestBuildFilterChainOrdering(t *testing.T) {
	opts := media.Options{
		Volume:     0.5,
		Speed:      1.5,
		Normalize:  true,
		FilterName: "bassboost",
	}
	opts.EQGains[2] = 4.0

	chain := buildFilterChain(opts)
	parts := strings.Split(chain, ",")
	if len(parts) != 5 {
		t.Fatalf("expected 5 filters, got %d: %s", len(parts), chain)
	}
	wantOrder := []string{"equalizer=", "bass=", "loudnorm=", "atempo=", "volume="}
	for i, prefix := range wantOrder {
		if !strings.HasPrefix(parts[i], prefix) {
			t.Fatalf("filter %d: got %s want prefix %s", i, parts[i], prefix)
		}
	}
}

func TestBuildFilterChainEmptyForDefaults(t *testing.T) {
	chain := buildFilterChain(media.Options{Volume: 1.0, Speed: 1.0})
	if chain != "" {
		t.Fatalf("expected empty chain, got %s", chain)
	}
}

func TestTempoFiltersStaysInStageRange(t *testing.T) {
	cases := []struct {
		speed  float64
		stages int
	}{
		{1.5, 1},
		{3.0, 2},
		{5.0, 3},
		{0.3, 2},
	}
	for _, tc := range cases {
		stages := tempoFilters(tc.speed)
		if len(stages) != tc.stages {
			t.Fatalf("speed %v: %d stages, want %d (%v)", tc.speed, len(stages), tc.stages, stages)
		}
	}
}

func TestResolveRejectsEmptyLocator(t *testing.T) {
	r := New("ffmpeg", zerolog.Nop())
	_, err := r.Resolve(context.Background(), track.Track{})
	if err == nil {
		t.Fatal("expected error")
	}
	var re *media.ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("expected ResolveError, got %T", err)
	}
}

func TestResolveUsesLocatorAsCachedRef(t *testing.T) {
	r := New("", zerolog.Nop())
	stream, err := r.Resolve(context.Background(), track.Track{Locator: "https://example.test/a.mp3"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if stream.CachedRef() != "https://example.test/a.mp3" {
		t.Fatalf("cached ref: %s", stream.CachedRef())
	}

	rebuilt, err := r.Rebuild(context.Background(), stream.Track(), stream.CachedRef())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rebuilt.CachedRef() != stream.CachedRef() {
		t.Fatalf("rebuild ref: %s", rebuilt.CachedRef())
	}
}
