// Package json decodes the two JSON layouts found in the input trees: a single
// object per file (song metadata) and newline-delimited objects (event logs).
package json

import (
	"context"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// DecodeObject reads all of r and decodes it as one JSON document into v.
func DecodeObject(r io.Reader, v any) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("json: read: %w", err)
	}
	if len(b) == 0 {
		return errors.New("json: empty document")
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("json: decode object: %w", err)
	}
	return nil
}

// StreamObjects decodes consecutive JSON objects from r and passes each to
// emit together with its 1-based record number.
//
// Records may be separated by any whitespace, so both NDJSON and plain
// concatenated objects are accepted. Decoding stops at the first malformed
// record: onParseErr (if set) is told which record failed and the error is
// returned. An error from emit stops the stream and is returned unchanged.
func StreamObjects[T any](
	ctx context.Context,
	r io.Reader,
	emit func(line int, rec T) error,
	onParseErr func(line int, err error),
) error {
	dec := json.NewDecoder(r)

	line := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var rec T
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if onParseErr != nil {
				onParseErr(line+1, err)
			}
			return fmt.Errorf("json: decode record %d: %w", line+1, err)
		}
		line++

		if err := emit(line, rec); err != nil {
			return err
		}
	}
}
