package suggest

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Fixed evidence weights for the local sources. Existing tags are the
// full-confidence baseline; filename-derived hints are weaker, folder hints
// weaker still. Sibling consensus weight is computed from the agreement ratio.
const (
	weightExistingTag   = 1.0
	weightFilenameTrack = 0.8
	weightFilename      = 0.5
	weightFolder        = 0.25
)

// Sibling is one other audio file from the same folder with its tags.
type Sibling struct {
	Path string
	Tags map[Field]string
}

// FolderContext describes the folder a file lives in: its base name and the
// sibling audio files (same directory, non-recursive).
type FolderContext struct {
	Name     string
	Siblings []Sibling
}

// Request is the input to Engine.Infer.
type Request struct {
	Path   string
	Fields []Field
	Tags   map[Field]string // existing tags of the file itself
	Folder FolderContext
}

// Leading track-number token: 1-3 digits with an optional trailing period,
// followed by optional separator noise ("05 - ", "01.", "3 ").
var trackPrefixPattern = regexp.MustCompile(`^(\d{1,3})\b\.?\s*[-_|]?\s*`)

// Segment delimiters for filename and folder names.
var segmentDelimiters = regexp.MustCompile(`[-_|]+`)

// Folder names that are generic containers rather than album/artist hints.
var genericFolderNames = map[string]bool{
	"music": true, "audio": true, "mp3": true, "mp3s": true,
	"downloads": true, "download": true, "tracks": true, "songs": true,
	"files": true, "media": true, "itunes": true, "new folder": true,
	"unknown": true, "various": true, "various artists": true,
}

// Collect derives all local evidence for a request: filename tokens, folder
// name, sibling-tag consensus, and the file's existing tags. It never fails;
// a filename that fits no pattern simply yields fewer hints.
func Collect(req Request) []Evidence {
	var ev []Evidence
	ev = append(ev, collectFilename(req.Path)...)
	ev = append(ev, collectFolder(req.Folder.Name)...)
	ev = append(ev, collectSiblings(req.Folder.Siblings)...)
	ev = append(ev, collectExisting(req.Tags)...)
	return ev
}

// collectFilename parses the base filename into track/title/artist/album
// hints using the fixed segment template:
//
//	1 segment  -> title
//	2 segments -> title, artist (in that order)
//	3+segments -> title, artist, album (rest rejoined as the album)
//
// The 2-segment ordering is a deliberate fixed choice, not semantic parsing.
func collectFilename(path string) []Evidence {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	var ev []Evidence
	if m := trackPrefixPattern.FindStringSubmatch(name); m != nil {
		ev = append(ev, Evidence{
			Field:  FieldTrack,
			Value:  m[1],
			Source: SourceFilename,
			Weight: weightFilenameTrack,
		})
		name = name[len(m[0]):]
	}

	segs := splitSegments(name)
	emit := func(field Field, value string) {
		ev = append(ev, Evidence{Field: field, Value: value, Source: SourceFilename, Weight: weightFilename})
	}
	switch {
	case len(segs) == 1:
		emit(FieldTitle, segs[0])
	case len(segs) == 2:
		emit(FieldTitle, segs[0])
		emit(FieldArtist, segs[1])
	case len(segs) >= 3:
		emit(FieldTitle, segs[0])
		emit(FieldArtist, segs[1])
		emit(FieldAlbum, strings.Join(segs[2:], " "))
	}
	return ev
}

// collectFolder turns a non-generic folder name into low-weight album/artist
// hints: a single segment is an album hint, two or more become artist + album.
func collectFolder(folder string) []Evidence {
	folder = strings.TrimSpace(folder)
	if folder == "" || folder == "." || genericFolderNames[strings.ToLower(folder)] {
		return nil
	}

	segs := splitSegments(folder)
	if len(segs) == 0 {
		return nil
	}

	emit := func(field Field, value string) Evidence {
		return Evidence{Field: field, Value: value, Source: SourceFolder, Weight: weightFolder}
	}
	if len(segs) == 1 {
		return []Evidence{emit(FieldAlbum, segs[0])}
	}
	return []Evidence{
		emit(FieldArtist, segs[0]),
		emit(FieldAlbum, strings.Join(segs[1:], " ")),
	}
}

// collectSiblings emits consensus evidence: any value shared by at least two
// siblings, weighted by the agreement ratio (matching / total siblings).
func collectSiblings(siblings []Sibling) []Evidence {
	if len(siblings) < 2 {
		return nil
	}

	// Count identical non-empty values per field, keyed by normalized form so
	// spelling variants of the same value agree.
	type tally struct {
		display string
		count   int
	}
	counts := make(map[Field]map[string]*tally)
	for _, sib := range siblings {
		for field, value := range sib.Tags {
			if strings.TrimSpace(value) == "" {
				continue
			}
			if counts[field] == nil {
				counts[field] = make(map[string]*tally)
			}
			key := normalizeValue(value)
			if t := counts[field][key]; t != nil {
				t.count++
			} else {
				counts[field][key] = &tally{display: value, count: 1}
			}
		}
	}

	total := float64(len(siblings))
	var ev []Evidence
	for _, field := range AllFields {
		for _, t := range counts[field] {
			if t.count < 2 {
				continue
			}
			ev = append(ev, Evidence{
				Field:  field,
				Value:  t.display,
				Source: SourceSiblingConsensus,
				Weight: float64(t.count) / total,
			})
		}
	}
	return ev
}

// collectExisting emits the file's own tag values at full baseline weight.
func collectExisting(tags map[Field]string) []Evidence {
	var ev []Evidence
	for _, field := range AllFields {
		value := strings.TrimSpace(tags[field])
		if value == "" {
			continue
		}
		ev = append(ev, Evidence{
			Field:  field,
			Value:  value,
			Source: SourceExistingTag,
			Weight: weightExistingTag,
		})
	}
	return ev
}

func splitSegments(s string) []string {
	var segs []string
	for _, seg := range segmentDelimiters.Split(s, -1) {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}
