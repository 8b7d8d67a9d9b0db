package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"sparkify/internal/loader"
	pjson "sparkify/internal/parser/json"
	"sparkify/internal/report"
	"sparkify/internal/schema"
	"sparkify/internal/storage"
)

// Logs loads the time and users dimensions and the songplays fact table.
type Logs struct {
	Loader *loader.Loader

	// Location is the zone used for the time breakdown. Nil means UTC.
	Location *time.Location

	// StageSongplays copies songplays through temp_songplays and merges them,
	// skipping ids that are already loaded. When false the batch is copied
	// straight into songplays, and a re-run fails on the primary key.
	StageSongplays bool
}

var (
	timeColumns     = mustColumns(schema.Time)
	userColumns     = mustColumns(schema.Users)
	songplayColumns = mustColumns(schema.Songplays)
)

// ProcessFile loads one event log.
//
// Only NextSong events are used. Each one yields a time row and a songplay
// row; users are reduced to one row per user_id, keeping the event with the
// highest ts (the later one in the file on a tie). Time and users go through
// their staging tables and merges. Songplay song_id/artist_id come from an
// exact-match catalog lookup and are NULL on a miss.
func (l *Logs) ProcessFile(ctx context.Context, path string) error {
	events, err := readNextSongs(ctx, path)
	if err != nil {
		return err
	}

	parts := make([]TimeParts, len(events))
	times := loader.Frame{Columns: timeColumns}
	for i, ev := range events {
		parts[i] = TimeOf(ev.TS, l.Location)
		times.Append(parts[i].row()...)
	}
	l.Loader.CopyFrame(ctx, path, times, schema.TimeStaging, l.Loader.Catalog.TimeMerge)

	l.Loader.CopyFrame(ctx, path, l.userFrame(path, events), schema.UsersStaging, l.Loader.Catalog.UserMerge)

	fileID := FileID(path)
	plays := loader.Frame{Columns: songplayColumns}
	for i, ev := range events {
		songID, artistID := l.lookup(ctx, path, ev)
		plays.Append(
			songplayID(fileID, i),
			parts[i].StartTime,
			ev.UserID.value(),
			ev.Level,
			songID,
			artistID,
			ev.SessionID,
			deref(ev.Location),
			deref(ev.UserAgent),
		)
	}
	if l.StageSongplays {
		l.Loader.CopyFrame(ctx, path, plays, schema.SongplaysStaging, l.Loader.Catalog.SongplayMerge)
	} else {
		l.Loader.CopyFrame(ctx, path, plays, schema.Songplays, "")
	}

	if l.Loader.Summary != nil {
		l.Loader.Summary.FileDone(FileKindLog)
	}
	return nil
}

// userFrame keeps the latest event per user, in order of first appearance.
// Events without a usable user id are skipped with a warning.
func (l *Logs) userFrame(path string, events []LogEvent) loader.Frame {
	latest := make(map[int64]int, len(events))
	var order []int64
	for i, ev := range events {
		if !ev.UserID.Valid {
			l.Loader.Log.Warn().
				Str("file", path).
				Str("user_id", ev.UserID.Raw).
				Int64("ts", ev.TS).
				Msg("skipping user row without a numeric id")
			continue
		}
		prev, seen := latest[ev.UserID.ID]
		if !seen {
			order = append(order, ev.UserID.ID)
			latest[ev.UserID.ID] = i
			continue
		}
		if ev.TS >= events[prev].TS {
			latest[ev.UserID.ID] = i
		}
	}

	users := loader.Frame{Columns: userColumns}
	for _, id := range order {
		ev := events[latest[id]]
		users.Append(id, deref(ev.FirstName), deref(ev.LastName), deref(ev.Gender), ev.Level)
	}
	return users
}

// lookup resolves (song, artist, length) against the catalog. Any failure is
// a miss; errors other than "no rows" are also recorded.
func (l *Logs) lookup(ctx context.Context, path string, ev LogEvent) (songID, artistID any) {
	sum := l.Loader.Summary
	miss := func() (any, any) {
		if sum != nil {
			sum.Lookup(false)
		}
		return nil, nil
	}

	if ev.Song == nil || ev.Artist == nil || ev.Length == nil {
		return miss()
	}

	var sid, aid string
	err := l.Loader.WH.QueryRow(ctx, l.Loader.Catalog.SongSelect, *ev.Song, *ev.Artist, *ev.Length).Scan(&sid, &aid)
	switch {
	case err == nil:
		if sum != nil {
			sum.Lookup(true)
		}
		return sid, aid
	case errors.Is(err, storage.ErrNoRows):
		return miss()
	default:
		l.Loader.Record(report.Outcome{Source: path, Table: schema.Songs, Stage: report.StageLookup, Err: err})
		return miss()
	}
}

func readNextSongs(ctx context.Context, path string) ([]LogEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("logs: open: %w", err)
	}
	defer f.Close()

	var events []LogEvent
	err = pjson.StreamObjects(ctx, f, func(_ int, ev LogEvent) error {
		if ev.Page == PageNextSong {
			events = append(events, ev)
		}
		return nil
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("logs: %s: %w", path, err)
	}
	return events, nil
}

func mustColumns(table string) []string {
	t, ok := schema.Lookup(table)
	if !ok {
		panic("extract: unknown table " + table)
	}
	return t.ColumnNames()
}
