// Package copytext encodes and decodes rows in the PostgreSQL COPY text
// format: one row per line, columns separated by a tab, NULL written as \N,
// and backslash, tab, newline and carriage return escaped with a backslash.
//
// There is no header line and no row index column.
//
// The Postgres backend streams encoded buffers straight to COPY FROM STDIN.
// Backends without a COPY protocol decode the same buffer and insert the rows
// themselves, so every backend accepts the same input.
package copytext

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Null is the text-format representation of SQL NULL.
const Null = `\N`

// Writer encodes rows.
type Writer struct {
	w    *bufio.Writer
	rows int64
}

// NewWriter returns a Writer that encodes to w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes one row.
func (w *Writer) Write(row []any) error {
	for i, v := range row {
		if i > 0 {
			if err := w.w.WriteByte('\t'); err != nil {
				return err
			}
		}
		s, ok, err := FormatValue(v)
		if err != nil {
			return fmt.Errorf("copytext: column %d: %w", i, err)
		}
		if !ok {
			if _, err := w.w.WriteString(Null); err != nil {
				return err
			}
			continue
		}
		if _, err := w.w.WriteString(escape(s)); err != nil {
			return err
		}
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 { return w.rows }

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error { return w.w.Flush() }

// FormatValue renders v as unescaped text. ok is false when v is NULL (nil
// or a nil pointer).
//
// Floats use the shortest representation that round-trips, so a value read
// back from the database compares equal to the one written.
func FormatValue(v any) (s string, ok bool, err error) {
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return t, true, nil
	case *string:
		if t == nil {
			return "", false, nil
		}
		return *t, true, nil
	case []byte:
		return string(t), true, nil
	case bool:
		if t {
			return "t", true, nil
		}
		return "f", true, nil
	case int:
		return strconv.Itoa(t), true, nil
	case int32:
		return strconv.FormatInt(int64(t), 10), true, nil
	case int64:
		return strconv.FormatInt(t, 10), true, nil
	case *int64:
		if t == nil {
			return "", false, nil
		}
		return strconv.FormatInt(*t, 10), true, nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true, nil
	case *float64:
		if t == nil {
			return "", false, nil
		}
		return strconv.FormatFloat(*t, 'f', -1, 64), true, nil
	case time.Time:
		return t.Format(time.RFC3339Nano), true, nil
	case fmt.Stringer:
		return t.String(), true, nil
	default:
		return "", false, fmt.Errorf("unsupported value type %T", v)
	}
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
)

func escape(s string) string {
	if !strings.ContainsAny(s, "\\\t\n\r") {
		return s
	}
	return escaper.Replace(s)
}

// Reader decodes rows.
type Reader struct {
	r    *bufio.Reader
	line int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read returns the next row. Each field is either nil (NULL) or a string.
// It returns io.EOF after the last row. A "\." end-of-data marker also ends
// the stream.
func (r *Reader) Read() ([]any, error) {
	line, err := r.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	if line == "" && err == io.EOF {
		return nil, io.EOF
	}
	r.line++

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if line == `\.` {
		return nil, io.EOF
	}

	fields := strings.Split(line, "\t")
	out := make([]any, len(fields))
	for i, f := range fields {
		if f == Null {
			continue
		}
		v, uerr := unescape(f)
		if uerr != nil {
			return nil, fmt.Errorf("copytext: line %d column %d: %w", r.line, i, uerr)
		}
		out[i] = v
	}
	return out, nil
}

// Line returns the number of lines read so far.
func (r *Reader) Line() int { return r.line }

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("trailing backslash")
		}
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		default:
			// "\\" and any other escaped byte stand for themselves.
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}
