// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the trip loader.
//
// A global, pluggable backend defaults to a no-op implementation, so metrics
// are always safe to call even when no real backend is configured. Concrete
// systems (Prometheus Pushgateway, DogStatsD) live in subpackages.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the loader.
const (
	StepTotal       = "tlc_step_total"
	StepDuration    = "tlc_step_duration_seconds"
	RowsTotal       = "tlc_rows_total"
	BatchesTotal    = "tlc_batches_total"
	BatchDuration   = "tlc_batch_duration_seconds"
	ProcessRSSBytes = "tlc_process_rss_bytes"
)

// Row kinds used with RecordRows.
const (
	RowsRead        = "read"
	RowsInserted    = "inserted"
	RowsRejected    = "rejected"
	RowsCoercedNull = "coerced_null"
	RowsSkipped     = "skipped"
)

// Batch statuses used with RecordBatch.
const (
	BatchLoaded  = "loaded"
	BatchFailed  = "failed"
	BatchSkipped = "skipped"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// SetGauge sets a point-in-time value.
	SetGauge(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) SetGauge(name string, value float64, labels Labels)         {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Reset restores the no-op backend.
func Reset() {
	mu.Lock()
	backend = nopBackend{}
	mu.Unlock()
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

// RecordStep measures latency and success/failure of one run phase
// (fetch, read, load, verify, backup, migrate).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows increments the row counter for kind. Non-positive deltas are
// ignored.
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatch counts one batch outcome and its wall time.
func RecordBatch(job, status string, d time.Duration) {
	lbls := Labels{"job": job, "status": status}
	b := current()
	b.IncCounter(BatchesTotal, 1, lbls)
	b.ObserveHistogram(BatchDuration, d.Seconds(), lbls)
}

// SetRSS publishes the current resident set size.
func SetRSS(job string, bytes uint64) {
	current().SetGauge(ProcessRSSBytes, float64(bytes), Labels{"job": job})
}
