// Package suggest implements the metadata suggestion engine: it reconciles
// filename parsing, folder hints, sibling-tag consensus, existing tags, and
// an external lookup service into ranked, confidence-scored suggestions per
// metadata field.
package suggest

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
)

// Field identifies a metadata field suggestions are produced for.
type Field string

const (
	FieldTitle       Field = "title"
	FieldArtist      Field = "artist"
	FieldAlbum       Field = "album"
	FieldAlbumArtist Field = "albumartist"
	FieldTrack       Field = "track"
	FieldYear        Field = "year"
	FieldGenre       Field = "genre"
)

// AllFields lists the fields the engine knows about, in canonical order.
var AllFields = []Field{
	FieldTitle, FieldArtist, FieldAlbum, FieldAlbumArtist,
	FieldTrack, FieldYear, FieldGenre,
}

// ParseField maps a user-supplied field name to a known Field.
func ParseField(s string) (Field, bool) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllFields {
		if f == known {
			return known, true
		}
	}
	return "", false
}

// Source identifies where a piece of evidence came from. The order is the
// fixed tie-break priority: lower values win ties.
type Source int

const (
	SourceExistingTag Source = iota
	SourceSiblingConsensus
	SourceFilename
	SourceFolder
	SourceExternalLookup
)

func (s Source) String() string {
	switch s {
	case SourceExistingTag:
		return "existing-tag"
	case SourceSiblingConsensus:
		return "sibling-consensus"
	case SourceFilename:
		return "filename"
	case SourceFolder:
		return "folder"
	case SourceExternalLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// Evidence is a single weighted hint about a field's value from one source.
// Weight is always in [0,1].
type Evidence struct {
	Field  Field
	Value  string
	Source Source
	Weight float64
}

// Candidate is a deduplicated, weight-aggregated value for a field prior to
// scoring. Sources is ordered by priority, strongest first, no duplicates.
type Candidate struct {
	Field   Field
	Value   string // normalized form, used as the merge key
	Display string // original spelling from the strongest contributor
	Weight  float64
	Sources []Source
}

// Suggestion is a final ranked output value for a field.
type Suggestion struct {
	Value      string `json:"value"`
	Confidence int    `json:"confidence"` // 0-100
	Source     string `json:"source"`     // strongest contributing source
}

// Query carries the search terms sent to the external lookup service.
type Query struct {
	Title  string
	Artist string
	Album  string
}

// Empty reports whether the query has nothing worth searching for.
func (q Query) Empty() bool {
	return q.Title == "" && q.Artist == ""
}

// Record is one candidate match returned by the external lookup service.
// Score is the service's own match confidence, scaled to [0,1].
type Record struct {
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	Album  string  `json:"album"`
	Track  int     `json:"track"`
	Year   int     `json:"year"`
	Score  float64 `json:"score"`
}

// Result is the raw outcome of one external lookup, the unit stored in the
// result cache.
type Result struct {
	Records []Record `json:"records"`
}

// Lookup is implemented by external metadata lookup clients.
//
// Search returns ErrLookupUnavailable for soft failures (rate limiting that
// outlasted the retry budget, timeouts, malformed responses); the engine
// degrades to local evidence in that case. Context errors are returned as-is.
type Lookup interface {
	Name() string
	Search(ctx context.Context, query Query) (Result, error)
}

// ErrInvalidRequest is returned for caller-contract violations: an empty file
// path or an empty field set. It is the only hard failure Infer produces
// besides context cancellation.
var ErrInvalidRequest = errors.New("invalid suggestion request")

// ErrLookupUnavailable marks a soft external failure. Never surfaced past the
// engine; suggestions simply fall back to local evidence.
var ErrLookupUnavailable = errors.New("lookup service unavailable")

// normalizeValue produces the canonical form used for deduplication and cache
// fingerprints: Unicode case folding plus whitespace collapsing.
func normalizeValue(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// Fingerprint derives the cache key for a query: case-folded,
// whitespace-collapsed concatenation of the query terms.
func Fingerprint(q Query) string {
	return normalizeValue(q.Title) + "|" + normalizeValue(q.Artist) + "|" + normalizeValue(q.Album)
}
