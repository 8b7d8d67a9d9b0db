package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Config is the minimal configuration needed to open a warehouse connection.
//
// When to use:
//   - Use Config when constructing a Warehouse via Open.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//
// Errors:
//   - Open returns an error if Kind is empty or unsupported.
type Config struct {
	Kind string
	DSN  string
}

// ErrNoRows is returned by Row.Scan when a query matched nothing.
var ErrNoRows = errors.New("storage: no rows in result set")

// Row is a single query result. Scan returns ErrNoRows when the query
// matched nothing.
type Row interface {
	Scan(dest ...any) error
}

// RowFunc adapts a scan function to Row.
type RowFunc func(dest ...any) error

// Scan implements Row.
func (f RowFunc) Scan(dest ...any) error { return f(dest...) }

// Warehouse is one open connection to the target database.
//
// IMPORTANT: every statement runs in autocommit mode. A Warehouse never opens
// a transaction that spans calls, so each Exec and each CopyFrom takes effect
// on its own and a failure leaves earlier statements in place.
//
// Implementations are not safe for concurrent use; the loader runs on a
// single goroutine with a single connection.
type Warehouse interface {
	// Dialect names the SQL dialect (schema.Postgres, schema.SQLite, ...).
	Dialect() string

	// Exec runs a statement and reports the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// QueryRow runs a query expected to return at most one row.
	QueryRow(ctx context.Context, query string, args ...any) Row

	// CopyFrom bulk-loads tab-delimited rows in COPY text format (see package
	// copytext) into table. columns names the target columns in row order.
	//
	// Edge cases:
	//   - An empty reader copies zero rows and is not an error.
	//   - Backends without a native bulk protocol load the rows inside one
	//     transaction, so a bad row fails the whole copy like COPY does.
	CopyFrom(ctx context.Context, table string, columns []string, r io.Reader) (int64, error)

	// Close releases the connection. Treat Close as "call once".
	Close() error
}

// Factory opens a Warehouse for cfg.
type Factory func(ctx context.Context, cfg Config) (Warehouse, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by Open.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. Registering twice is a wiring bug and
//     should fail at startup rather than pick a backend arbitrarily.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// Open constructs a Warehouse using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns (for example a
//     failed connection or authentication).
func Open(ctx context.Context, cfg Config) (Warehouse, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s (registered: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
