package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sparkify/internal/config"
	"sparkify/internal/metrics"
	"sparkify/internal/metrics/datadog"
	"sparkify/internal/pipeline"
	"sparkify/internal/report"
	"sparkify/internal/schema"
	"sparkify/internal/storage"
)

type fakeWarehouse struct {
	closed atomic.Int64
}

func (w *fakeWarehouse) Dialect() string { return schema.SQLite }
func (w *fakeWarehouse) Exec(context.Context, string, ...any) (int64, error) {
	return 0, nil
}
func (w *fakeWarehouse) QueryRow(context.Context, string, ...any) storage.Row {
	return storage.RowFunc(func(...any) error { return storage.ErrNoRows })
}
func (w *fakeWarehouse) CopyFrom(context.Context, string, []string, io.Reader) (int64, error) {
	return 0, nil
}
func (w *fakeWarehouse) Close() error {
	w.closed.Add(1)
	return nil
}

// fakeMetricsBackend satisfies metricsBackend and counts Close calls.
type fakeMetricsBackend struct {
	closeErr error
	closed   atomic.Int64
}

func (b *fakeMetricsBackend) IncCounter(string, float64, metrics.Labels)       {}
func (b *fakeMetricsBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (b *fakeMetricsBackend) Flush() error                                     { return nil }
func (b *fakeMetricsBackend) Close() error {
	b.closed.Add(1)
	return b.closeErr
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Kind = schema.SQLite
	cfg.Database.DSN = ":memory:"
	cfg.Load.StageSongplays = false
	cfg.Metrics.Job = "job1"
	return cfg
}

func TestRunMain_Flow(t *testing.T) {
	// runMain replaces the global logger, so these cases run sequentially.
	tests := []struct {
		name           string
		configErr      error
		openErr        error
		initMetricsErr error
		runErr         error
		wantCode       int
		wantStderrSub  string
		wantStdoutSub  string
		wantOpen       int
		wantRuns       int
		wantCleanups   int64
		wantClosed     int64
	}{
		{
			name:          "config_error",
			configErr:     errors.New("database.dsn: required"),
			wantCode:      1,
			wantStderrSub: "load config: database.dsn: required",
		},
		{
			name:          "connection_error",
			openErr:       errors.New("connection refused"),
			wantCode:      1,
			wantStderrSub: "connection refused",
			wantOpen:      1,
		},
		{
			name:           "metrics_error_does_not_stop_the_run",
			initMetricsErr: errors.New("no api key"),
			wantCode:       0,
			wantStderrSub:  "metrics disabled",
			wantStdoutSub:  "--- run summary ---",
			wantOpen:       1,
			wantRuns:       1,
			wantClosed:     1,
		},
		{
			name:          "run_error_prints_summary_and_cleans_up",
			runErr:        errors.New("pipeline: logs: bad.json: json: decode record 2"),
			wantCode:      1,
			wantStderrSub: "run aborted",
			wantStdoutSub: "--- 1.250 seconds ---",
			wantOpen:      1,
			wantRuns:      1,
			wantCleanups:  1,
			wantClosed:    1,
		},
		{
			name:          "success",
			wantCode:      0,
			wantStdoutSub: "--- run summary ---",
			wantOpen:      1,
			wantRuns:      1,
			wantCleanups:  1,
			wantClosed:    1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			wh := &fakeWarehouse{}
			var opens, runs int
			var cleanups atomic.Int64
			var gotOpts pipeline.Options
			var gotStorage storage.Config

			deps := appDeps{
				loadConfig: func() (*config.Config, error) {
					if tc.configErr != nil {
						return nil, tc.configErr
					}
					return testConfig(), nil
				},
				openWarehouse: func(ctx context.Context, cfg storage.Config) (storage.Warehouse, error) {
					opens++
					gotStorage = cfg
					if tc.openErr != nil {
						return nil, tc.openErr
					}
					return wh, nil
				},
				initMetrics: func(ctx context.Context, cfg config.MetricsConfig, log zerolog.Logger) (func(), error) {
					if tc.initMetricsErr != nil {
						return nil, tc.initMetricsErr
					}
					return func() { cleanups.Add(1) }, nil
				},
				run: func(ctx context.Context, opts pipeline.Options) (pipeline.Result, error) {
					runs++
					gotOpts = opts
					return pipeline.Result{Elapsed: 1250 * time.Millisecond, Summary: report.NewSummary()}, tc.runErr
				},
			}

			code := runMain(context.Background(), &stdout, &stderr, deps)

			if code != tc.wantCode {
				t.Fatalf("exit code=%d, want %d; stderr=%q", code, tc.wantCode, stderr.String())
			}
			if tc.wantStderrSub != "" && !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if tc.wantStdoutSub != "" && !strings.Contains(stdout.String(), tc.wantStdoutSub) {
				t.Fatalf("stdout=%q, want contains %q", stdout.String(), tc.wantStdoutSub)
			}
			if opens != tc.wantOpen || runs != tc.wantRuns {
				t.Fatalf("opens=%d runs=%d, want %d and %d", opens, runs, tc.wantOpen, tc.wantRuns)
			}
			if got := cleanups.Load(); got != tc.wantCleanups {
				t.Fatalf("metrics cleanups=%d, want %d", got, tc.wantCleanups)
			}
			if got := wh.closed.Load(); got != tc.wantClosed {
				t.Fatalf("warehouse closed=%d, want %d", got, tc.wantClosed)
			}

			if tc.wantOpen > 0 && gotStorage.Kind != schema.SQLite {
				t.Fatalf("storage kind=%q", gotStorage.Kind)
			}
			if runs > 0 {
				if gotOpts.WH != wh || gotOpts.Job != "job1" || gotOpts.StageSongplays || gotOpts.Pattern != "*.json" {
					t.Fatalf("options not forwarded: %+v", gotOpts)
				}
				if gotOpts.Location != time.UTC {
					t.Fatalf("location=%v", gotOpts.Location)
				}
			}
		})
	}
}

func TestInitMetrics_NoneDoesNotMutateGlobalState(t *testing.T) {
	oldSet := setMetricsBackend
	defer func() { setMetricsBackend = oldSet }()
	setMetricsBackend = func(metrics.Backend) {
		t.Fatalf("setMetricsBackend must not be called for none")
	}

	for _, backend := range []string{"", config.MetricsNone} {
		cleanup, err := initMetrics(context.Background(), config.MetricsConfig{Backend: backend}, zerolog.Nop())
		if err != nil {
			t.Fatalf("initMetrics(%q) err=%v", backend, err)
		}
		if cleanup == nil {
			t.Fatalf("cleanup=nil, want non-nil")
		}
		cleanup()
	}
}

func TestInitMetrics_DatadogWiresBackendAndCloses(t *testing.T) {
	b := &fakeMetricsBackend{}
	var gotOpts datadog.Options
	var setCalls int

	oldNew, oldSet := newDatadogBackend, setMetricsBackend
	defer func() { newDatadogBackend, setMetricsBackend = oldNew, oldSet }()
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		gotOpts = opts
		return b, nil
	}
	setMetricsBackend = func(metrics.Backend) { setCalls++ }

	var logged bytes.Buffer
	cleanup, err := initMetrics(context.Background(), config.MetricsConfig{
		Backend:    config.MetricsDatadog,
		Job:        "jobA",
		Tags:       []string{" team:data ", "", "env:ci"},
		FlushEvery: 5 * time.Second,
	}, zerolog.New(&logged))
	if err != nil {
		t.Fatalf("initMetrics err=%v", err)
	}
	if gotOpts.JobName != "jobA" || gotOpts.FlushEvery != 5*time.Second {
		t.Fatalf("options=%+v", gotOpts)
	}
	if len(gotOpts.Tags) != 2 || gotOpts.Tags[0] != "team:data" || gotOpts.Tags[1] != "env:ci" {
		t.Fatalf("tags=%q", gotOpts.Tags)
	}
	if setCalls != 1 {
		t.Fatalf("setMetricsBackend calls=%d, want 1", setCalls)
	}

	logged.Reset()
	cleanup()
	if b.closed.Load() != 1 {
		t.Fatalf("closed=%d, want 1", b.closed.Load())
	}
	if logged.Len() != 0 {
		t.Fatalf("unexpected log output: %q", logged.String())
	}
}

func TestInitMetrics_DatadogCloseErrorIsLogged(t *testing.T) {
	b := &fakeMetricsBackend{closeErr: errors.New("flush failed")}

	oldNew, oldSet := newDatadogBackend, setMetricsBackend
	defer func() { newDatadogBackend, setMetricsBackend = oldNew, oldSet }()
	newDatadogBackend = func(context.Context, datadog.Options) (metricsBackend, error) { return b, nil }
	setMetricsBackend = func(metrics.Backend) {}

	var logged bytes.Buffer
	cleanup, err := initMetrics(context.Background(), config.MetricsConfig{Backend: config.MetricsDatadog}, zerolog.New(&logged))
	if err != nil {
		t.Fatalf("initMetrics err=%v", err)
	}
	cleanup()

	if !strings.Contains(logged.String(), "metrics: datadog close error") || !strings.Contains(logged.String(), "flush failed") {
		t.Fatalf("log=%q", logged.String())
	}
}

func TestInitMetrics_PushgatewayFlushesOnCleanup(t *testing.T) {
	b := &fakeMetricsBackend{}
	var gotJob, gotURL string

	oldNew, oldSet := newPushBackend, setMetricsBackend
	defer func() { newPushBackend, setMetricsBackend = oldNew, oldSet }()
	newPushBackend = func(job, url string) (metrics.Backend, error) {
		gotJob, gotURL = job, url
		return b, nil
	}
	var installed metrics.Backend
	setMetricsBackend = func(m metrics.Backend) { installed = m }

	cleanup, err := initMetrics(context.Background(), config.MetricsConfig{
		Backend:        config.MetricsPushgateway,
		Job:            "sparkify_etl",
		PushgatewayURL: "http://localhost:9091",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("initMetrics err=%v", err)
	}
	if gotJob != "sparkify_etl" || gotURL != "http://localhost:9091" || installed != b {
		t.Fatalf("job=%q url=%q installed=%v", gotJob, gotURL, installed)
	}
	cleanup()
}

func TestInitMetrics_UnknownBackendErrors(t *testing.T) {
	t.Parallel()

	cleanup, err := initMetrics(context.Background(), config.MetricsConfig{Backend: "nope"}, zerolog.Nop())
	if err == nil {
		t.Fatalf("initMetrics err=nil, want error")
	}
	if cleanup == nil {
		t.Fatalf("cleanup=nil, want non-nil")
	}
	cleanup()
	if !strings.Contains(err.Error(), "unknown metrics backend") || !strings.Contains(err.Error(), "none|datadog|pushgateway") {
		t.Fatalf("err=%q", err)
	}
}
