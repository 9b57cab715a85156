// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. The loader is a batch job, so metrics are collected in a
// private registry and pushed on Flush instead of being scraped.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec   // tlc_step_total
	stepDuration  *prometheus.SummaryVec   // tlc_step_duration_seconds
	rowCounter    *prometheus.CounterVec   // tlc_rows_total
	batchCounter  *prometheus.CounterVec   // tlc_batches_total
	batchDuration *prometheus.HistogramVec // tlc_batch_duration_seconds
	rssGauge      prometheus.Gauge         // tlc_process_rss_bytes
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as ETL_JOB).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "tlc_ingest"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Run phase executions, partitioned by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of run phases in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Row counts per kind (read, inserted, rejected, coerced_null, skipped).",
		}, []string{"kind"}),
		batchCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Batches processed, partitioned by outcome.",
		}, []string{"status"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.BatchDuration,
			Help:    "Wall time per batch in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"status"}),
		rssGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metrics.ProcessRSSBytes,
			Help: "Resident set size of the loader after the last batch.",
		}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":   b.stepCounter,
		"step summary":   b.stepDuration,
		"row counter":    b.rowCounter,
		"batch counter":  b.batchCounter,
		"batch duration": b.batchDuration,
		"rss gauge":      b.rssGauge,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rowCounter != nil {
			b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.BatchesTotal:
		if b.batchCounter != nil {
			b.batchCounter.WithLabelValues(labels["status"]).Add(delta)
		}
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		if b.stepDuration != nil {
			b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
		}
	case metrics.BatchDuration:
		if b.batchDuration != nil {
			b.batchDuration.WithLabelValues(labels["status"]).Observe(value)
		}
	}
}

// SetGauge implements metrics.Backend.
func (b *Backend) SetGauge(name string, value float64, labels metrics.Labels) {
	if name == metrics.ProcessRSSBytes && b.rssGauge != nil {
		b.rssGauge.Set(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
