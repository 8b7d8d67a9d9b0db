// Package sqlite implements storage.Warehouse on modernc.org/sqlite.
//
// SQLite has no bulk-copy protocol. CopyFrom decodes the COPY text buffer and
// replays it through one prepared INSERT inside a transaction, which keeps the
// all-or-nothing behaviour of a server-side COPY.
//
// Used for local runs and as the in-process warehouse in tests
// (DSN "file::memory:" or ":memory:").
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	sqlitedrv "modernc.org/sqlite"

	"sparkify/internal/schema"
	"sparkify/internal/storage"
	"sparkify/internal/storage/copytext"
)

func init() {
	storage.Register(schema.SQLite, Open)
}

// Warehouse implements storage.Warehouse for SQLite.
type Warehouse struct {
	db *sql.DB
}

// Open opens the database and verifies it with a ping.
//
// The pool is pinned to one connection. Besides matching the single
// connection model of the loader, this keeps ":memory:" databases alive and
// shared: every new pooled connection would otherwise see an empty database.
func Open(ctx context.Context, cfg storage.Config) (storage.Warehouse, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, wrapErr("open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrapErr("connect", err)
	}
	return &Warehouse{db: db}, nil
}

func (w *Warehouse) Dialect() string { return schema.SQLite }

func (w *Warehouse) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := w.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapErr("exec", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr("exec", err)
	}
	return n, nil
}

func (w *Warehouse) QueryRow(ctx context.Context, query string, args ...any) storage.Row {
	row := w.db.QueryRowContext(ctx, query, args...)
	return storage.RowFunc(func(dest ...any) error {
		err := row.Scan(dest...)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNoRows
		}
		return wrapErr("query", err)
	})
}

// CopyFrom inserts every decoded row of r into table in one transaction.
// Text fields are bound as strings; column affinity converts them back to
// INTEGER or REAL on insert.
func (w *Warehouse) CopyFrom(ctx context.Context, table string, columns []string, r io.Reader) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: copy %s: no columns", table)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr("copy "+table, err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, buildInsertSQL(table, columns))
	if err != nil {
		return 0, wrapErr("copy "+table, err)
	}
	defer stmt.Close()

	dec := copytext.NewReader(r)
	var n int64
	for {
		rec, err := dec.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, wrapErr("copy "+table, err)
		}
		if len(rec) != len(columns) {
			return 0, &storage.DBError{
				Op:      "copy " + table,
				Message: fmt.Sprintf("line %d: got %d fields, want %d", dec.Line(), len(rec), len(columns)),
			}
		}
		if _, err := stmt.ExecContext(ctx, rec...); err != nil {
			return 0, wrapErr(fmt.Sprintf("copy %s line %d", table, dec.Line()), err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapErr("copy "+table, err)
	}
	return n, nil
}

func (w *Warehouse) Close() error { return w.db.Close() }

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// buildInsertSQL renders the single-row INSERT used to replay a copy.
func buildInsertSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
	}
	b.WriteString(")")
	return b.String()
}

// wrapErr converts driver errors into *storage.DBError. SQLite errors carry
// their extended result code (e.g. 1555 for a primary key violation).
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		return &storage.DBError{
			Op:      op,
			Code:    strconv.Itoa(se.Code()),
			Message: se.Error(),
			Err:     err,
		}
	}
	return &storage.DBError{Op: op, Message: err.Error(), Err: err}
}

var _ storage.Warehouse = (*Warehouse)(nil)
