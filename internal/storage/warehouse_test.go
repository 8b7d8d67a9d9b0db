package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type fakeWarehouse struct {
	dialect    string
	closeCalls int
}

func (f *fakeWarehouse) Dialect() string { return f.dialect }
func (f *fakeWarehouse) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return 0, nil
}
func (f *fakeWarehouse) QueryRow(ctx context.Context, query string, args ...any) Row {
	return RowFunc(func(dest ...any) error { return ErrNoRows })
}
func (f *fakeWarehouse) CopyFrom(ctx context.Context, table string, columns []string, r io.Reader) (int64, error) {
	return 0, nil
}
func (f *fakeWarehouse) Close() error { f.closeCalls++; return nil }

func TestOpen_UsesRegisteredFactory(t *testing.T) {
	var gotDSN string
	Register("fake-open", func(ctx context.Context, cfg Config) (Warehouse, error) {
		gotDSN = cfg.DSN
		return &fakeWarehouse{dialect: "fake"}, nil
	})

	wh, err := Open(context.Background(), Config{Kind: "fake-open", DSN: "mem://x"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if wh.Dialect() != "fake" {
		t.Fatalf("Dialect() = %q", wh.Dialect())
	}
	if gotDSN != "mem://x" {
		t.Fatalf("factory saw DSN %q", gotDSN)
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}

	_, err := Open(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil || !strings.Contains(err.Error(), "unsupported kind=does-not-exist") {
		t.Fatalf("expected unsupported kind error, got %v", err)
	}

	boom := errors.New("connection refused")
	Register("fake-fail", func(ctx context.Context, cfg Config) (Warehouse, error) {
		return nil, boom
	})
	if _, err := Open(context.Background(), Config{Kind: "fake-fail"}); !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
}

func TestRegister_PanicsOnMisuse(t *testing.T) {
	f := func(ctx context.Context, cfg Config) (Warehouse, error) { return nil, nil }
	Register("fake-dup", f)

	cases := map[string]func(){
		"empty kind":  func() { Register("", f) },
		"nil factory": func() { Register("fake-nil", nil) },
		"duplicate":   func() { Register("fake-dup", f) },
	}
	for name, fn := range cases {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("%s: expected panic", name)
				}
			}()
			fn()
		}()
	}
}

func TestDBError_FormatsAndUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("driver")
	err := error(&DBError{Op: "copy temp_users", Code: "23505", Message: "duplicate key value", Detail: "Key (user_id)=(8) already exists.", Err: cause})

	want := "copy temp_users: duplicate key value (Key (user_id)=(8) already exists.) [code 23505]"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected Unwrap to expose cause")
	}
	de, ok := AsDBError(err)
	if !ok || de.Code != "23505" {
		t.Fatalf("AsDBError = %+v, %v", de, ok)
	}
}
