// Package library is the metadata store collaborator: it reads existing tags
// from audio files and assembles the folder context (sibling files and their
// tags) a suggestion request needs. It never writes tag bytes.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.senan.xyz/taglib"

	"tagscout/internal/logger"
	"tagscout/internal/suggest"
	"tagscout/pkg/utils"
)

// taglib tag keys for each suggestion field.
var fieldTags = map[suggest.Field]string{
	suggest.FieldTitle:       taglib.Title,
	suggest.FieldArtist:      taglib.Artist,
	suggest.FieldAlbum:       taglib.Album,
	suggest.FieldAlbumArtist: taglib.AlbumArtist,
	suggest.FieldTrack:       taglib.TrackNumber,
	suggest.FieldYear:        taglib.Date,
	suggest.FieldGenre:       taglib.Genre,
}

// Store reads tags through taglib.
type Store struct {
	log *logger.Logger
}

// NewStore creates a Store.
func NewStore(log *logger.Logger) *Store {
	if log == nil {
		log = logger.New(false)
	}
	return &Store{log: log}
}

// ReadTags returns the file's existing tag values mapped to suggestion
// fields. Missing or multi-value tags collapse to their first value.
func (s *Store) ReadTags(path string) (map[suggest.Field]string, error) {
	raw, err := taglib.ReadTags(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}
	return mapTags(raw), nil
}

// ListSiblings returns the other audio files in the same folder with their
// tags (non-recursive). Files whose tags cannot be read are skipped, they
// just contribute nothing to the consensus.
func (s *Store) ListSiblings(path string) ([]suggest.Sibling, error) {
	dir := filepath.Dir(path)
	files, err := utils.ListAudioFiles(dir)
	if err != nil {
		return nil, err
	}

	var siblings []suggest.Sibling
	for _, file := range files {
		if file == path {
			continue
		}
		raw, err := taglib.ReadTags(file)
		if err != nil {
			s.log.Debug("skipping unreadable sibling %s: %v", file, err)
			continue
		}
		siblings = append(siblings, suggest.Sibling{Path: file, Tags: mapTags(raw)})
	}
	return siblings, nil
}

// BuildRequest assembles a full suggestion request for a file: its existing
// tags plus the folder context. A missing file is a caller-contract
// violation and maps to suggest.ErrInvalidRequest.
func (s *Store) BuildRequest(path string, fields []suggest.Field) (suggest.Request, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return suggest.Request{}, fmt.Errorf("%w: unknown file path %s", suggest.ErrInvalidRequest, path)
	}

	tags, err := s.ReadTags(path)
	if err != nil {
		// Unreadable tags are not fatal: the file may be freshly ripped with
		// no tag block at all. Suggestions then come from the other sources.
		s.log.Debug("no existing tags for %s: %v", path, err)
		tags = nil
	}

	siblings, err := s.ListSiblings(path)
	if err != nil {
		s.log.Debug("no folder context for %s: %v", path, err)
		siblings = nil
	}

	return suggest.Request{
		Path:   path,
		Fields: fields,
		Tags:   tags,
		Folder: suggest.FolderContext{
			Name:     filepath.Base(filepath.Dir(path)),
			Siblings: siblings,
		},
	}, nil
}

func mapTags(raw map[string][]string) map[suggest.Field]string {
	tags := make(map[suggest.Field]string, len(fieldTags))
	for field, key := range fieldTags {
		if vals, ok := raw[key]; ok && len(vals) > 0 {
			if v := strings.TrimSpace(vals[0]); v != "" {
				tags[field] = v
			}
		}
	}
	return tags
}
