// Command etl loads the song and event-log JSON trees into the warehouse.
//
// Configuration comes from defaults, an optional YAML file and ETL_*
// environment variables (see internal/config). Progress and the run summary
// go to stdout, logs go to stderr. The exit code is 1 when the configuration
// is invalid, the warehouse cannot be reached, or an input file cannot be
// read.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sparkify/internal/config"
	"sparkify/internal/logging"
	"sparkify/internal/metrics"
	"sparkify/internal/metrics/datadog"
	"sparkify/internal/metrics/prompush"
	"sparkify/internal/pipeline"
	"sparkify/internal/storage"

	// register all backends with the storage factory; config picks one.
	_ "sparkify/internal/storage/all"
)

// appDeps are the seams runMain is tested through.
type appDeps struct {
	loadConfig    func() (*config.Config, error)
	openWarehouse func(ctx context.Context, cfg storage.Config) (storage.Warehouse, error)
	initMetrics   func(ctx context.Context, cfg config.MetricsConfig, log zerolog.Logger) (func(), error)
	run           func(ctx context.Context, opts pipeline.Options) (pipeline.Result, error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:    config.Load,
		openWarehouse: storage.Open,
		initMetrics:   initMetrics,
		run:           pipeline.Run,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

func runMain(ctx context.Context, stdout, stderr io.Writer, deps appDeps) int {
	cfg, err := deps.loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	lc := cfg.Logging()
	lc.Output = stderr
	logging.Init(lc)
	log := logging.Logger().With().Str("run_id", uuid.NewString()).Logger()

	wh, err := deps.openWarehouse(ctx, storage.Config{Kind: cfg.Database.Kind, DSN: cfg.Database.DSN})
	if err != nil {
		log.Error().Err(err).Str("kind", cfg.Database.Kind).Msg("connect to warehouse")
		return 1
	}
	defer func() {
		if err := wh.Close(); err != nil {
			log.Warn().Err(err).Msg("close warehouse")
		}
	}()

	cleanup, err := deps.initMetrics(ctx, cfg.Metrics, log)
	if err != nil {
		log.Warn().Err(err).Str("backend", cfg.Metrics.Backend).Msg("metrics disabled")
	}
	if cleanup != nil {
		defer cleanup()
	}

	log.Info().
		Str("kind", cfg.Database.Kind).
		Str("songs", cfg.Data.SongPath).
		Str("logs", cfg.Data.LogPath).
		Bool("stage_songplays", cfg.Load.StageSongplays).
		Msg("run started")

	res, err := deps.run(ctx, pipeline.Options{
		WH:             wh,
		Log:            log,
		Out:            stdout,
		SongPath:       cfg.Data.SongPath,
		LogPath:        cfg.Data.LogPath,
		Pattern:        cfg.Data.Pattern,
		Location:       cfg.Location(),
		StageSongplays: cfg.Load.StageSongplays,
		Job:            cfg.Metrics.Job,
	})
	if res.Summary != nil {
		if werr := res.Summary.Write(stdout, res.Elapsed); werr != nil {
			log.Warn().Err(werr).Msg("write summary")
		}
	}
	if err != nil {
		log.Error().Err(err).Dur("elapsed", res.Elapsed).Msg("run aborted")
		return 1
	}

	log.Info().
		Int("song_files", res.SongFiles).
		Int("log_files", res.LogFiles).
		Int("failures", len(res.Summary.Failures())).
		Dur("elapsed", res.Elapsed).
		Msg("run finished")
	return 0
}

// metricsBackend is what initMetrics needs from a concrete backend.
type metricsBackend interface {
	metrics.Backend
	Close() error
}

var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	newPushBackend = func(job, url string) (metrics.Backend, error) {
		return prompush.NewBackend(job, url)
	}
	setMetricsBackend = metrics.SetBackend
)

// initMetrics installs the configured backend. The returned cleanup is
// never nil; it flushes the backend and logs (never returns) flush errors.
func initMetrics(ctx context.Context, cfg config.MetricsConfig, log zerolog.Logger) (func(), error) {
	noop := func() {}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", config.MetricsNone:
		return noop, nil

	case config.MetricsDatadog:
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    cfg.Job,
			Tags:       datadog.ParseTagsCSV(strings.Join(cfg.Tags, ",")),
			FlushEvery: cfg.FlushEvery,
		})
		if err != nil {
			return noop, err
		}
		setMetricsBackend(b)
		log.Info().Str("backend", cfg.Backend).Str("job", cfg.Job).Strs("tags", cfg.Tags).Msg("metrics enabled")
		return func() {
			if err := b.Close(); err != nil {
				log.Warn().Err(err).Msg("metrics: datadog close error")
			}
		}, nil

	case config.MetricsPushgateway:
		b, err := newPushBackend(cfg.Job, cfg.PushgatewayURL)
		if err != nil {
			return noop, err
		}
		setMetricsBackend(b)
		log.Info().Str("backend", cfg.Backend).Str("url", cfg.PushgatewayURL).Str("job", cfg.Job).Msg("metrics enabled")
		return func() {
			if err := b.Flush(); err != nil {
				log.Warn().Err(err).Msg("metrics: pushgateway push error")
			}
		}, nil

	default:
		return noop, fmt.Errorf("unknown metrics backend %q (want none|datadog|pushgateway)", cfg.Backend)
	}
}
