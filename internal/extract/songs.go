// Package extract turns input files into warehouse rows.
//
// Songs handles song metadata files (one JSON object each) and Logs handles
// event logs (newline-delimited JSON). Both hand their rows to a
// loader.Loader. Database failures become report outcomes and never stop the
// run; only unreadable or malformed input files are returned as errors.
package extract

import (
	"context"
	"fmt"
	"os"

	"sparkify/internal/loader"
	pjson "sparkify/internal/parser/json"
	"sparkify/internal/schema"
)

// FileKindSong and FileKindLog label processed files in the run summary.
const (
	FileKindSong = "song"
	FileKindLog  = "log"
)

// Songs loads the songs and artists dimensions.
type Songs struct {
	Loader *loader.Loader
}

// ProcessFile reads one song file and inserts its song and artist rows,
// ignoring keys that already exist. A failed song insert does not prevent
// the artist insert.
func (s *Songs) ProcessFile(ctx context.Context, path string) error {
	rec, err := readSong(path)
	if err != nil {
		return err
	}

	cat := s.Loader.Catalog
	s.Loader.Insert(ctx, path, schema.Songs, cat.SongInsert,
		rec.SongID, rec.Title, rec.ArtistID, rec.Year, rec.Duration)
	s.Loader.Insert(ctx, path, schema.Artists, cat.ArtistInsert,
		rec.ArtistID, rec.ArtistName, deref(rec.ArtistLocation), deref(rec.ArtistLatitude), deref(rec.ArtistLongitude))

	if s.Loader.Summary != nil {
		s.Loader.Summary.FileDone(FileKindSong)
	}
	return nil
}

func readSong(path string) (SongRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return SongRecord{}, fmt.Errorf("songs: open: %w", err)
	}
	defer f.Close()

	var rec SongRecord
	if err := pjson.DecodeObject(f, &rec); err != nil {
		return SongRecord{}, fmt.Errorf("songs: %s: %w", path, err)
	}
	return rec, nil
}
