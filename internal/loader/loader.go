// Package loader bulk-loads in-memory row batches into warehouse tables.
package loader

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"sparkify/internal/report"
	"sparkify/internal/schema"
	"sparkify/internal/storage"
	"sparkify/internal/storage/copytext"
)

// Frame is a batch of rows with named columns. Every row has one value per
// column, in column order. A nil value (or nil pointer) is loaded as NULL.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (f Frame) Len() int { return len(f.Rows) }

// Append adds one row.
func (f *Frame) Append(row ...any) { f.Rows = append(f.Rows, row) }

// Loader copies frames into the warehouse.
type Loader struct {
	WH      storage.Warehouse
	Catalog *schema.Catalog
	Log     zerolog.Logger
	Summary *report.Summary
}

// CopyFrame loads frame into table.
//
// The frame is serialised in COPY text format (tab-delimited, no header, no
// index column) and bulk-copied into table. When merge is non-empty it runs
// right after the copy, followed by DELETE FROM table so the next batch
// starts from an empty staging table.
//
// Errors are not returned. Each stage records an Outcome in the Summary and
// failures are logged with the database-reported text. The returned Outcome
// is the first failure, or the copy outcome when every stage succeeded.
//
// There is no transaction around the sequence. A failed copy skips the merge;
// a failed merge leaves the staged rows in place for the next batch to pick
// up.
//
// An empty frame is a no-op and records nothing.
func (l *Loader) CopyFrame(ctx context.Context, source string, frame Frame, table, merge string) report.Outcome {
	copied := report.Outcome{Source: source, Table: table, Stage: report.StageCopy}
	if frame.Len() == 0 {
		return copied
	}

	buf, err := encode(frame)
	if err != nil {
		copied.Err = err
		l.Record(copied)
		return copied
	}

	copied.Rows, copied.Err = l.WH.CopyFrom(ctx, table, frame.Columns, buf)
	l.Record(copied)
	if !copied.OK() {
		return copied
	}
	if merge == "" {
		return copied
	}

	merged := report.Outcome{Source: source, Table: table, Stage: report.StageMerge}
	merged.Rows, merged.Err = l.WH.Exec(ctx, merge)
	l.Record(merged)
	if !merged.OK() {
		return merged
	}

	cleared := report.Outcome{Source: source, Table: table, Stage: report.StageCleanup}
	cleared.Rows, cleared.Err = l.WH.Exec(ctx, l.Catalog.Clear(table))
	l.Record(cleared)
	if !cleared.OK() {
		return cleared
	}
	return copied
}

// Insert runs a single-row insert statement and records it under table with
// stage insert. Like CopyFrame it never returns the error.
func (l *Loader) Insert(ctx context.Context, source, table, stmt string, args ...any) report.Outcome {
	o := report.Outcome{Source: source, Table: table, Stage: report.StageInsert}
	o.Rows, o.Err = l.WH.Exec(ctx, stmt, args...)
	l.Record(o)
	return o
}

// Record adds o to the summary and logs it: failures at error level with
// the database error text, successes at debug level.
func (l *Loader) Record(o report.Outcome) {
	if l.Summary != nil {
		l.Summary.Add(o)
	}
	if o.Err != nil {
		l.Log.Error().
			Err(o.Err).
			Str("file", o.Source).
			Str("table", o.Table).
			Str("stage", string(o.Stage)).
			Msg("load step failed")
		return
	}
	l.Log.Debug().
		Str("file", o.Source).
		Str("table", o.Table).
		Str("stage", string(o.Stage)).
		Int64("rows", o.Rows).
		Msg("load step ok")
}

func encode(frame Frame) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	w := copytext.NewWriter(&buf)
	for i, row := range frame.Rows {
		if len(row) != len(frame.Columns) {
			return nil, fmt.Errorf("loader: row %d has %d values, want %d", i, len(row), len(frame.Columns))
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("loader: row %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return &buf, nil
}
