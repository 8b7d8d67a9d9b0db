// Package mssql implements storage.Warehouse for Microsoft SQL Server.
//
// CopyFrom decodes the COPY text buffer and loads it with chunked multi-row
// INSERT ... VALUES statements inside one transaction. Chunks are sized to
// stay under SQL Server's 2100 parameter limit.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"

	"sparkify/internal/schema"
	"sparkify/internal/storage"
	"sparkify/internal/storage/copytext"
)

// maxParams leaves headroom below the 2100 parameters SQL Server accepts per
// request.
const maxParams = 2000

func init() {
	storage.Register(schema.MSSQL, Open)
}

// Warehouse implements storage.Warehouse for SQL Server.
type Warehouse struct {
	db dbConn
}

// Open opens a "sqlserver" connection and validates it via PingContext.
func Open(ctx context.Context, cfg storage.Config) (storage.Warehouse, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, wrapErr("open", err)
	}
	raw.SetMaxOpenConns(1)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, wrapErr("connect", err)
	}
	return &Warehouse{db: &sqlDB{db: raw}}, nil
}

func (w *Warehouse) Dialect() string { return schema.MSSQL }

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

// CopyFrom loads every decoded row of r into table in one transaction.
func (w *Warehouse) CopyFrom(ctx context.Context, table string, columns []string, r io.Reader) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mssql: copy %s: no columns", table)
	}
	rowsPerChunk := max(1, maxParams/len(columns))

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr("copy "+table, err)
	}
	defer tx.Rollback() //nolint:errcheck

	dec := copytext.NewReader(r)
	chunk := make([][]any, 0, rowsPerChunk)
	var total int64

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		q, args := buildBulkInsertSQL(table, columns, chunk)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		total += n
		chunk = chunk[:0]
		return nil
	}

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
		chunk = append(chunk, rec)
		if len(chunk) == rowsPerChunk {
			if err := flush(); err != nil {
				return 0, wrapErr("copy "+table, err)
			}
		}
	}
	if err := flush(); err != nil {
		return 0, wrapErr("copy "+table, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapErr("copy "+table, err)
	}
	return total, nil
}

func (w *Warehouse) Close() error { return w.db.Close() }

// buildBulkInsertSQL builds a single INSERT ... VALUES statement for all rows.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.songplays" -> [dbo].[songplays]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// wrapErr converts driver errors into *storage.DBError using the server's
// error number and message.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var me mssqldb.Error
	if errors.As(err, &me) {
		return &storage.DBError{
			Op:      op,
			Code:    strconv.Itoa(int(me.Number)),
			Message: me.Message,
			Err:     err,
		}
	}
	return &storage.DBError{Op: op, Message: err.Error(), Err: err}
}

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB used to make this package testable.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) rowScanner
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is the transactional subset CopyFrom needs.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// rowScanner is a narrow adapter over *sql.Row.Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

// sqlDB wraps *sql.DB to implement dbConn.
type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) QueryRowContext(ctx context.Context, query string, args ...any) rowScanner {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

// compile-time sanity checks (no runtime cost).
var (
	_ dbConn            = (*sqlDB)(nil)
	_ txConn            = (*sql.Tx)(nil)
	_ storage.Warehouse = (*Warehouse)(nil)
)
