// Package pipeline drives a full load: discover input files, hand each one
// to an extractor, and report progress and the run summary.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileFunc processes one input file.
type FileFunc func(ctx context.Context, path string) error

// Discover returns the absolute paths of every regular file under root whose
// base name matches pattern, in directory walk order.
//
// A missing or unreadable root is an error. Directories that match the
// pattern are not returned.
func Discover(root, pattern string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolve %s: %w", root, err)
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("pipeline: pattern %q: %w", pattern, err)
	}

	var files []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, _ := filepath.Match(pattern, d.Name())
		if ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: walk %s: %w", root, err)
	}
	return files, nil
}

// ProcessData discovers every matching file under root, then calls fn for
// each one in order, printing progress to out.
//
// The full list is collected before the first file is processed so the
// total is exact. The first error from fn stops the run and is returned
// wrapped with the file path, along with the number of files completed.
func ProcessData(ctx context.Context, out io.Writer, root, pattern string, fn FileFunc) (int, error) {
	if out == nil {
		out = os.Stdout
	}

	files, err := Discover(root, pattern)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(out, "%d files found in %s\n", len(files), root)

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := fn(ctx, path); err != nil {
			return i, fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(out, "%d/%d files processed.\n", i+1, len(files))
	}
	return len(files), nil
}
