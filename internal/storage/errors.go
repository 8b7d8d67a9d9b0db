package storage

import (
	"errors"
	"fmt"
	"strings"
)

// DBError is a driver error normalised across backends.
//
// Code is the backend's own error code (SQLSTATE for Postgres, the extended
// result code for SQLite, the error number for SQL Server). Message is the
// database-reported text. Err is the original driver error.
type DBError struct {
	Op      string
	Code    string
	Message string
	Detail  string
	Err     error
}

func (e *DBError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [code %s]", e.Code)
	}
	return b.String()
}

func (e *DBError) Unwrap() error { return e.Err }

// AsDBError returns the DBError in err's chain, if any.
func AsDBError(err error) (*DBError, bool) {
	var de *DBError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
