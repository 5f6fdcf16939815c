package suggest

import (
	"testing"
)

func findEvidence(ev []Evidence, field Field, source Source) []Evidence {
	var out []Evidence
	for _, e := range ev {
		if e.Field == field && e.Source == source {
			out = append(out, e)
		}
	}
	return out
}

// The 2-segment template deliberately maps the FIRST segment to title and the
// SECOND to artist. For "05 - Artist - Title.mp3" that means title="Artist"
// and artist="Title": a fixed ordering choice, not semantic parsing. These
// tests pin that behavior.
func TestCollectFilename_Templates(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantTrack  string
		wantTitle  string
		wantArtist string
		wantAlbum  string
	}{
		{
			name:       "track plus two segments",
			path:       "/music/05 - Artist - Title.mp3",
			wantTrack:  "05",
			wantTitle:  "Artist",
			wantArtist: "Title",
		},
		{
			name:      "single segment",
			path:      "/music/Bohemian Rhapsody.flac",
			wantTitle: "Bohemian Rhapsody",
		},
		{
			name:       "two segments no track",
			path:       "/music/Queen - Bohemian Rhapsody.mp3",
			wantTitle:  "Queen",
			wantArtist: "Bohemian Rhapsody",
		},
		{
			name:       "three segments joins album remainder",
			path:       "/music/Song - Band - Part One - Part Two.ogg",
			wantTitle:  "Song",
			wantArtist: "Band",
			wantAlbum:  "Part One Part Two",
		},
		{
			name:      "track with period separator",
			path:      "/music/01.Intro.mp3",
			wantTrack: "01",
			wantTitle: "Intro",
		},
		{
			name:       "underscore delimiters",
			path:       "/music/Title_Artist.m4a",
			wantTitle:  "Title",
			wantArtist: "Artist",
		},
		{
			name:      "four digit year is not a track number",
			path:      "/music/1999.mp3",
			wantTitle: "1999",
		},
		{
			name:      "track only",
			path:      "/music/07.mp3",
			wantTrack: "07",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := collectFilename(tt.path)

			check := func(field Field, want string) {
				t.Helper()
				got := findEvidence(ev, field, SourceFilename)
				if want == "" {
					if len(got) != 0 {
						t.Errorf("%s: unexpected evidence %v", field, got)
					}
					return
				}
				if len(got) != 1 {
					t.Fatalf("%s: expected 1 evidence record, got %d", field, len(got))
				}
				if got[0].Value != want {
					t.Errorf("%s = %q, want %q", field, got[0].Value, want)
				}
			}

			check(FieldTrack, tt.wantTrack)
			check(FieldTitle, tt.wantTitle)
			check(FieldArtist, tt.wantArtist)
			check(FieldAlbum, tt.wantAlbum)
		})
	}
}

func TestCollectFilename_TrackWeightIsHigh(t *testing.T) {
	ev := collectFilename("/music/05 - Artist - Title.mp3")

	track := findEvidence(ev, FieldTrack, SourceFilename)
	if len(track) != 1 {
		t.Fatalf("expected track evidence, got %v", ev)
	}
	if track[0].Weight != weightFilenameTrack {
		t.Errorf("track weight = %v, want %v", track[0].Weight, weightFilenameTrack)
	}

	title := findEvidence(ev, FieldTitle, SourceFilename)
	if len(title) != 1 || title[0].Weight != weightFilename {
		t.Errorf("title weight should be %v, got %v", weightFilename, title)
	}
}

func TestCollectFilename_MalformedYieldsNothing(t *testing.T) {
	for _, path := range []string{"/music/.mp3", "/music/ .mp3", "/music/---.mp3"} {
		if ev := collectFilename(path); len(ev) != 0 {
			t.Errorf("collectFilename(%q) = %v, want no evidence", path, ev)
		}
	}
}

func TestCollectFolder(t *testing.T) {
	tests := []struct {
		name       string
		folder     string
		wantArtist string
		wantAlbum  string
	}{
		{name: "single segment is album", folder: "Abbey Road", wantAlbum: "Abbey Road"},
		{name: "two segments are artist and album", folder: "The Beatles - Abbey Road", wantArtist: "The Beatles", wantAlbum: "Abbey Road"},
		{name: "generic name ignored", folder: "Downloads"},
		{name: "generic name case insensitive", folder: "MUSIC"},
		{name: "empty ignored", folder: ""},
		{name: "dot ignored", folder: "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := collectFolder(tt.folder)

			artist := findEvidence(ev, FieldArtist, SourceFolder)
			album := findEvidence(ev, FieldAlbum, SourceFolder)

			if tt.wantArtist == "" && len(artist) != 0 {
				t.Errorf("unexpected artist evidence: %v", artist)
			}
			if tt.wantArtist != "" && (len(artist) != 1 || artist[0].Value != tt.wantArtist) {
				t.Errorf("artist = %v, want %q", artist, tt.wantArtist)
			}
			if tt.wantAlbum == "" && len(album) != 0 {
				t.Errorf("unexpected album evidence: %v", album)
			}
			if tt.wantAlbum != "" && (len(album) != 1 || album[0].Value != tt.wantAlbum) {
				t.Errorf("album = %v, want %q", album, tt.wantAlbum)
			}
			for _, e := range ev {
				if e.Weight != weightFolder {
					t.Errorf("folder evidence weight = %v, want %v", e.Weight, weightFolder)
				}
			}
		})
	}
}

// Scenario: two of three siblings agree on the album, so the consensus weight
// is the agreement ratio 2/3.
func TestCollectSiblings_Consensus(t *testing.T) {
	siblings := []Sibling{
		{Path: "a.mp3", Tags: map[Field]string{FieldAlbum: "Foo", FieldArtist: "X"}},
		{Path: "b.mp3", Tags: map[Field]string{FieldAlbum: "Foo"}},
		{Path: "c.mp3", Tags: map[Field]string{FieldAlbum: "Bar"}},
	}

	ev := collectSiblings(siblings)

	album := findEvidence(ev, FieldAlbum, SourceSiblingConsensus)
	if len(album) != 1 {
		t.Fatalf("expected 1 album consensus record, got %v", album)
	}
	if album[0].Value != "Foo" {
		t.Errorf("album consensus = %q, want %q", album[0].Value, "Foo")
	}
	want := 2.0 / 3.0
	if album[0].Weight != want {
		t.Errorf("album consensus weight = %v, want %v", album[0].Weight, want)
	}

	// A value held by only one sibling never becomes consensus.
	if artist := findEvidence(ev, FieldArtist, SourceSiblingConsensus); len(artist) != 0 {
		t.Errorf("unexpected artist consensus: %v", artist)
	}
}

func TestCollectSiblings_SpellingVariantsAgree(t *testing.T) {
	siblings := []Sibling{
		{Path: "a.mp3", Tags: map[Field]string{FieldAlbum: "Foo  Bar"}},
		{Path: "b.mp3", Tags: map[Field]string{FieldAlbum: "foo bar"}},
	}

	ev := collectSiblings(siblings)
	album := findEvidence(ev, FieldAlbum, SourceSiblingConsensus)
	if len(album) != 1 {
		t.Fatalf("expected variants to merge into 1 consensus record, got %v", album)
	}
	if album[0].Weight != 1.0 {
		t.Errorf("weight = %v, want 1.0", album[0].Weight)
	}
}

func TestCollectSiblings_TooFew(t *testing.T) {
	if ev := collectSiblings([]Sibling{{Path: "a.mp3", Tags: map[Field]string{FieldAlbum: "Foo"}}}); ev != nil {
		t.Errorf("single sibling should give no consensus, got %v", ev)
	}
}

func TestCollectExisting(t *testing.T) {
	ev := collectExisting(map[Field]string{
		FieldArtist: "X",
		FieldTitle:  "  ", // whitespace only, ignored
	})

	if len(ev) != 1 {
		t.Fatalf("expected 1 evidence record, got %v", ev)
	}
	got := ev[0]
	if got.Field != FieldArtist || got.Value != "X" {
		t.Errorf("evidence = %+v, want artist X", got)
	}
	if got.Source != SourceExistingTag {
		t.Errorf("source = %v, want %v", got.Source, SourceExistingTag)
	}
	if got.Weight != weightExistingTag {
		t.Errorf("weight = %v, want %v", got.Weight, weightExistingTag)
	}
}

func TestCollect_WeightsInRange(t *testing.T) {
	req := Request{
		Path: "/music/The Beatles - Abbey Road/05 - Here Comes The Sun.mp3",
		Tags: map[Field]string{FieldArtist: "The Beatles"},
		Folder: FolderContext{
			Name: "The Beatles - Abbey Road",
			Siblings: []Sibling{
				{Path: "a.mp3", Tags: map[Field]string{FieldAlbum: "Abbey Road"}},
				{Path: "b.mp3", Tags: map[Field]string{FieldAlbum: "Abbey Road"}},
			},
		},
	}

	for _, e := range Collect(req) {
		if e.Weight < 0 || e.Weight > 1 {
			t.Errorf("evidence weight out of range: %+v", e)
		}
		if e.Value == "" {
			t.Errorf("empty evidence value: %+v", e)
		}
	}
}
