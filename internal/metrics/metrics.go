// Package metrics records operational metrics for warehouse loads behind a
// small pluggable Backend.
//
// The default backend is a no-op, so the recording helpers are always safe to
// call. cmd/etl installs a concrete backend (Datadog or a Prometheus
// Pushgateway) from configuration and flushes it at exit.
package metrics

import (
	"sync"
	"time"
)

// Metric names understood by the backends.
const (
	StepTotal       = "etl_step_total"
	StepDuration    = "etl_step_duration_seconds"
	StatementsTotal = "etl_statements_total"
	RowsTotal       = "etl_rows_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or submits buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. Passing nil restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep counts one run of a pipeline step (for example "songs" or
// "logs") and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err),
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordStatement counts one warehouse statement (insert, copy, merge,
// cleanup, lookup) against table and, when it succeeded, the rows it touched.
func RecordStatement(job, table, stage string, err error, rows int64) {
	b := current()
	b.IncCounter(StatementsTotal, 1, Labels{
		"job":    job,
		"table":  table,
		"stage":  stage,
		"status": status(err),
	})
	if err != nil || rows <= 0 {
		return
	}
	b.IncCounter(RowsTotal, float64(rows), Labels{
		"job":   job,
		"table": table,
		"stage": stage,
	})
}
