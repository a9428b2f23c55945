package track

import "testing"

func TestArtistKey_ExplicitArtistWins(t *testing.T) {
	tr := Track{Title: "Someone Else - Song", Artist: "The Band"}
	if got := tr.ArtistKey(); got != "the band" {
		t.Fatalf("artist key mismatch: got %q", got)
	}
}

func TestArtistKey_ParsedFromTitle(t *testing.T) {
	cases := map[string]string{
		"Daft Punk - Around the World": "daft punk",
		"Kraftwerk – The Model":        "kraftwerk",
		"Boards of Canada | Roygbiv":   "boards of canada",
		"No Separator Here":            "",
		"Hyphen-Without-Spaces":        "",
	}
	for title, want := range cases {
		tr := Track{Title: title}
		if got := tr.ArtistKey(); got != want {
			t.Fatalf("title %q: got %q want %q", title, got, want)
		}
	}
}
