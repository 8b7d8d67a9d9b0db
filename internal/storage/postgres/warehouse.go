// Package postgres implements storage.Warehouse on a single pgx connection.
//
// Bulk loads use the native COPY protocol: the text-format buffer produced by
// package copytext is streamed as-is to COPY ... FROM STDIN.
package postgres

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sparkify/internal/schema"
	"sparkify/internal/storage"
)

func init() {
	storage.Register(schema.Postgres, Open)
}

// Warehouse implements storage.Warehouse for Postgres.
//
// It holds one *pgx.Conn rather than a pool: the loader is strictly sequential
// and every statement runs in autocommit mode on that connection.
type Warehouse struct {
	conn *pgx.Conn
}

// Open connects to Postgres. cfg.DSN accepts both URL and keyword/value forms
// ("host=127.0.0.1 dbname=sparkifydb user=student password=student").
func Open(ctx context.Context, cfg storage.Config) (storage.Warehouse, error) {
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, wrapErr("connect", err)
	}
	return &Warehouse{conn: conn}, nil
}

func (w *Warehouse) Dialect() string { return schema.Postgres }

func (w *Warehouse) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := w.conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, wrapErr("exec", err)
	}
	return tag.RowsAffected(), nil
}

func (w *Warehouse) QueryRow(ctx context.Context, query string, args ...any) storage.Row {
	row := w.conn.QueryRow(ctx, query, args...)
	return storage.RowFunc(func(dest ...any) error {
		err := row.Scan(dest...)
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrNoRows
		}
		return wrapErr("query", err)
	})
}

// CopyFrom streams r to COPY <table> (<columns>) FROM STDIN in text format.
func (w *Warehouse) CopyFrom(ctx context.Context, table string, columns []string, r io.Reader) (int64, error) {
	tag, err := w.conn.PgConn().CopyFrom(ctx, r, buildCopySQL(table, columns))
	if err != nil {
		return 0, wrapErr("copy "+table, err)
	}
	return tag.RowsAffected(), nil
}

// Close closes the connection, waiting at most a few seconds for the server
// to acknowledge.
func (w *Warehouse) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.conn.Close(ctx)
}

// buildCopySQL renders the COPY statement. It is pure so the quoting can be
// unit tested without a server.
func buildCopySQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("COPY ")
	b.WriteString(pgx.Identifier(strings.Split(table, ".")).Sanitize())
	if len(columns) > 0 {
		b.WriteString(" (")
		for i, c := range columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pgx.Identifier{c}.Sanitize())
		}
		b.WriteString(")")
	}
	b.WriteString(" FROM STDIN")
	return b.String()
}

// wrapErr converts pgx errors into *storage.DBError, keeping the server's
// message, detail and SQLSTATE.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &storage.DBError{
			Op:      op,
			Code:    pgErr.SQLState(),
			Message: pgErr.Message,
			Detail:  pgErr.Detail,
			Err:     err,
		}
	}
	return &storage.DBError{Op: op, Message: err.Error(), Err: err}
}

var _ storage.Warehouse = (*Warehouse)(nil)
