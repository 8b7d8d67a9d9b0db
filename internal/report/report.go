// Package report records what happened to every statement the loader ran.
//
// Each insert, bulk copy, merge, cleanup or failed lookup produces an Outcome.
// Outcomes are accumulated into a Summary, which is printed at the end of the
// run. Errors never stop processing; they only show up here and in the log.
package report

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stage identifies which step of a load produced an Outcome.
type Stage string

const (
	StageInsert  Stage = "insert"
	StageCopy    Stage = "copy"
	StageMerge   Stage = "merge"
	StageCleanup Stage = "cleanup"
	StageLookup  Stage = "lookup"
)

// Outcome is the result of one statement against the warehouse.
type Outcome struct {
	// Source is the input file the rows came from.
	Source string
	Table  string
	Stage  Stage
	// Rows is the number of rows affected (copied, merged, inserted, deleted).
	Rows int64
	Err  error
}

// OK reports whether the statement succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s %s [%s]: %v", o.Stage, o.Table, o.Source, o.Err)
	}
	return fmt.Sprintf("%s %s [%s]: %d rows", o.Stage, o.Table, o.Source, o.Rows)
}

// TableStats aggregates outcomes for one table and stage.
type TableStats struct {
	Table     string
	Stage     Stage
	Succeeded int
	Failed    int
	Rows      int64
}

type statKey struct {
	table string
	stage Stage
}

// Summary accumulates outcomes for a run. The zero value is not usable; call
// NewSummary.
type Summary struct {
	mu sync.Mutex

	stats    map[statKey]*TableStats
	failures []Outcome
	files    map[string]int

	lookupHits   int64
	lookupMisses int64

	observers []func(Outcome)
}

// NewSummary returns an empty Summary. Observers are called for every Add,
// in order, after the outcome is recorded.
func NewSummary(observers ...func(Outcome)) *Summary {
	return &Summary{
		stats:     make(map[statKey]*TableStats),
		files:     make(map[string]int),
		observers: observers,
	}
}

// Add records an outcome.
func (s *Summary) Add(o Outcome) {
	s.mu.Lock()
	k := statKey{table: o.Table, stage: o.Stage}
	st := s.stats[k]
	if st == nil {
		st = &TableStats{Table: o.Table, Stage: o.Stage}
		s.stats[k] = st
	}
	if o.Err != nil {
		st.Failed++
		s.failures = append(s.failures, o)
	} else {
		st.Succeeded++
		st.Rows += o.Rows
	}
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(o)
	}
}

// FileDone counts a processed input file under kind ("song", "log").
func (s *Summary) FileDone(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[kind]++
}

// Lookup counts a song/artist lookup result.
func (s *Summary) Lookup(matched bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if matched {
		s.lookupHits++
	} else {
		s.lookupMisses++
	}
}

// Stats returns the stats for one table and stage.
func (s *Summary) Stats(table string, stage Stage) TableStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.stats[statKey{table: table, stage: stage}]; st != nil {
		return *st
	}
	return TableStats{Table: table, Stage: stage}
}

// Tables returns every table/stage pair seen, sorted by table then stage.
func (s *Summary) Tables() []TableStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TableStats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Stage < out[j].Stage
	})
	return out
}

// Failures returns the failed outcomes in the order they happened.
func (s *Summary) Failures() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Outcome(nil), s.failures...)
}

// Lookups returns the matched and unmatched lookup counts.
func (s *Summary) Lookups() (matched, unmatched int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupHits, s.lookupMisses
}

// Files returns the number of processed files of kind.
func (s *Summary) Files(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[kind]
}

// Write prints a human-readable report, ending with the elapsed time.
func (s *Summary) Write(w io.Writer, elapsed time.Duration) error {
	p := message.NewPrinter(language.English)

	tables := s.Tables()
	failures := s.Failures()
	hits, misses := s.Lookups()

	s.mu.Lock()
	kinds := make([]string, 0, len(s.files))
	for k := range s.files {
		kinds = append(kinds, k)
	}
	files := make(map[string]int, len(s.files))
	for k, v := range s.files {
		files[k] = v
	}
	s.mu.Unlock()
	sort.Strings(kinds)

	if _, err := p.Fprintf(w, "--- run summary ---\n"); err != nil {
		return err
	}
	for _, k := range kinds {
		if _, err := p.Fprintf(w, "%-8s files: %d\n", k, files[k]); err != nil {
			return err
		}
	}
	for _, st := range tables {
		if _, err := p.Fprintf(w, "%-16s %-8s ok=%d failed=%d rows=%d\n", st.Table, st.Stage, st.Succeeded, st.Failed, st.Rows); err != nil {
			return err
		}
	}
	if hits+misses > 0 {
		if _, err := p.Fprintf(w, "song lookups: %d matched, %d unmatched\n", hits, misses); err != nil {
			return err
		}
	}
	if len(failures) > 0 {
		if _, err := p.Fprintf(w, "failures: %d\n", len(failures)); err != nil {
			return err
		}
		for _, f := range failures {
			if _, err := p.Fprintf(w, "  %s\n", f.String()); err != nil {
				return err
			}
		}
	}
	_, err := p.Fprintf(w, "--- %.3f seconds ---\n", elapsed.Seconds())
	return err
}
