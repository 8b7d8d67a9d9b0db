package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"sparkify/internal/extract"
	"sparkify/internal/loader"
	"sparkify/internal/metrics"
	"sparkify/internal/report"
	"sparkify/internal/schema"
	"sparkify/internal/storage"
)

// Step names, used as the metrics step label.
const (
	StepSongs = "songs"
	StepLogs  = "logs"
)

// Options configures a run.
type Options struct {
	WH      storage.Warehouse
	Catalog *schema.Catalog
	Log     zerolog.Logger
	// Out receives progress lines. Nil means os.Stdout.
	Out io.Writer

	SongPath string
	LogPath  string
	// Pattern is matched against file base names. Empty means "*.json".
	Pattern string

	// Location is the zone for the time breakdown. Nil means UTC.
	Location       *time.Location
	StageSongplays bool

	// Job labels the metrics of this run.
	Job string
}

// Result describes a finished (or aborted) run.
type Result struct {
	Elapsed time.Duration
	Summary *report.Summary
	// SongFiles and LogFiles count the files fully processed in each step.
	SongFiles int
	LogFiles  int
}

// Run processes every song file, then every log file.
//
// Database failures never stop the run; they are collected in the returned
// Summary and counted in metrics. An unreadable or malformed input file
// aborts the run: the error is returned together with the partial Result.
func Run(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()

	if opts.WH == nil {
		return Result{}, errors.New("pipeline: missing warehouse")
	}
	cat := opts.Catalog
	if cat == nil {
		var err error
		if cat, err = schema.For(opts.WH.Dialect()); err != nil {
			return Result{}, fmt.Errorf("pipeline: %w", err)
		}
	}
	pattern := opts.Pattern
	if pattern == "" {
		pattern = "*.json"
	}

	job := opts.Job
	sum := report.NewSummary(func(o report.Outcome) {
		metrics.RecordStatement(job, o.Table, string(o.Stage), o.Err, o.Rows)
	})
	res := Result{Summary: sum}

	ld := &loader.Loader{WH: opts.WH, Catalog: cat, Log: opts.Log, Summary: sum}
	songs := &extract.Songs{Loader: ld}
	logs := &extract.Logs{Loader: ld, Location: opts.Location, StageSongplays: opts.StageSongplays}

	steps := []struct {
		name  string
		root  string
		fn    FileFunc
		count *int
	}{
		{StepSongs, opts.SongPath, songs.ProcessFile, &res.SongFiles},
		{StepLogs, opts.LogPath, logs.ProcessFile, &res.LogFiles},
	}

	for _, s := range steps {
		stepStart := time.Now()
		opts.Log.Info().Str("step", s.name).Str("root", s.root).Msg("step started")

		n, err := ProcessData(ctx, opts.Out, s.root, pattern, s.fn)
		*s.count = n
		d := time.Since(stepStart)
		metrics.RecordStep(job, s.name, err, d)

		if err != nil {
			res.Elapsed = time.Since(start)
			opts.Log.Error().Err(err).Str("step", s.name).Int("files", n).Msg("step aborted")
			return res, fmt.Errorf("pipeline: %s: %w", s.name, err)
		}
		opts.Log.Info().
			Str("step", s.name).
			Int("files", n).
			Dur("elapsed", d).
			Msg("step finished")
	}

	res.Elapsed = time.Since(start)
	return res, nil
}
