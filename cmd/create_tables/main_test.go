package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"sparkify/internal/schema"
	"sparkify/internal/storage"
	"sparkify/internal/storage/sqlite"
)

func TestResetSchema_IsRepeatableAndEmptiesTables(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	wh, err := sqlite.Open(ctx, storage.Config{Kind: schema.SQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = wh.Close() })

	if err := resetSchema(ctx, wh, zerolog.Nop()); err != nil {
		t.Fatalf("first reset: %v", err)
	}
	if _, err := wh.Exec(ctx, `INSERT INTO artists (artist_id, name) VALUES ('AR1', 'Elena')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := resetSchema(ctx, wh, zerolog.Nop()); err != nil {
		t.Fatalf("second reset: %v", err)
	}

	for _, table := range []string{
		schema.Songs, schema.Artists, schema.Users, schema.Time, schema.Songplays,
		schema.UsersStaging, schema.TimeStaging, schema.SongplaysStaging,
	} {
		var n int64
		if err := wh.QueryRow(ctx, `SELECT COUNT(*) FROM "`+table+`"`).Scan(&n); err != nil {
			t.Fatalf("%s: %v", table, err)
		}
		if n != 0 {
			t.Fatalf("%s has %d rows after reset", table, n)
		}
	}
}
