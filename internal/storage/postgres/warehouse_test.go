package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"sparkify/internal/storage"
)

func TestBuildCopySQL_QuotesTableAndColumns(t *testing.T) {
	t.Parallel()

	cases := []struct {
		table   string
		columns []string
		want    string
	}{
		{"temp_time", []string{"start_time", "hour"}, `COPY "temp_time" ("start_time", "hour") FROM STDIN`},
		{"public.songplays", []string{"songplay_id"}, `COPY "public"."songplays" ("songplay_id") FROM STDIN`},
		{"time", nil, `COPY "time" FROM STDIN`},
		{`we"ird`, []string{`c"ol`}, `COPY "we""ird" ("c""ol") FROM STDIN`},
	}
	for _, tc := range cases {
		if got := buildCopySQL(tc.table, tc.columns); got != tc.want {
			t.Fatalf("buildCopySQL(%q, %v):\n got %q\nwant %q", tc.table, tc.columns, got, tc.want)
		}
	}
}

func TestWrapErr_KeepsServerFields(t *testing.T) {
	t.Parallel()

	if wrapErr("exec", nil) != nil {
		t.Fatalf("wrapErr(nil) must be nil")
	}

	pgErr := &pgconn.PgError{Code: "23505", Message: `duplicate key value violates unique constraint "songplays_pkey"`, Detail: "Key (songplay_id)=(123) already exists."}
	err := wrapErr("copy songplays", pgErr)

	de, ok := storage.AsDBError(err)
	if !ok {
		t.Fatalf("expected *storage.DBError, got %T", err)
	}
	if de.Code != "23505" || de.Detail == "" || de.Op != "copy songplays" {
		t.Fatalf("unexpected DBError: %+v", de)
	}
	if !errors.Is(err, pgErr) {
		t.Fatalf("expected original error in chain")
	}

	plain := wrapErr("connect", errors.New("dial tcp: refused"))
	if de, ok := storage.AsDBError(plain); !ok || de.Code != "" || de.Message != "dial tcp: refused" {
		t.Fatalf("unexpected plain wrap: %+v", de)
	}
}
