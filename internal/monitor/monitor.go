// Package monitor observes an ingestion run: per-batch throughput, process
// memory and elapsed time. It never touches the data being loaded.
package monitor

import (
	"math"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/metrics"
)

// Status is the outcome of one batch.
type Status string

const (
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped" // chunk dropped by the reader
)

// BatchStat describes one finished batch.
type BatchStat struct {
	Index       int
	FirstLine   int
	Read        int   // CSV records consumed by the chunk
	Rejected    int   // rows dropped by the normalizer
	Inserted    int64 // rows acknowledged by the database
	CoercedNull int
	Attempts    int
	Status      Status
	Elapsed     time.Duration
	Fingerprint string
	Err         error
}

// Summary aggregates every observed batch.
type Summary struct {
	Batches     int
	Loaded      int
	Failed      int
	Skipped     int
	Read        int64
	Rejected    int64
	Inserted    int64
	CoercedNull int64
	Elapsed     time.Duration
	RowsPerSec  float64
	LastRSS     uint64
	PeakRSS     uint64
}

// Monitor records BatchStats. It is safe for concurrent use although the
// loader drives it from one goroutine.
type Monitor struct {
	job    string
	logger *zap.Logger

	now     func() time.Time
	rss     func() (uint64, error)
	peakRSS func() (uint64, error)

	mu    sync.Mutex
	start time.Time
	sum   Summary
}

// New returns a Monitor whose clock starts now.
func New(job string, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		job:     job,
		logger:  logger,
		now:     time.Now,
		rss:     processRSS,
		peakRSS: maxRSS,
	}
	m.start = m.now()
	return m
}

// Observe records one batch and writes its log line.
func (m *Monitor) Observe(s BatchStat) {
	rss, err := m.rss()
	if err != nil {
		m.logger.Debug("monitor: rss sample failed", zap.Error(err))
	}
	rps := rate(s.Inserted, s.Elapsed)

	m.mu.Lock()
	m.sum.Batches++
	switch s.Status {
	case StatusLoaded:
		m.sum.Loaded++
	case StatusFailed:
		m.sum.Failed++
	case StatusSkipped:
		m.sum.Skipped++
	}
	m.sum.Read += int64(s.Read)
	m.sum.Rejected += int64(s.Rejected)
	m.sum.Inserted += s.Inserted
	m.sum.CoercedNull += int64(s.CoercedNull)
	if rss > 0 {
		m.sum.LastRSS = rss
		if rss > m.sum.PeakRSS {
			m.sum.PeakRSS = rss
		}
	}
	m.mu.Unlock()

	fields := []zap.Field{
		zap.Int("batch", s.Index),
		zap.Int("first_line", s.FirstLine),
		zap.String("status", string(s.Status)),
		zap.Int("read", s.Read),
		zap.Int("rejected", s.Rejected),
		zap.Int64("inserted", s.Inserted),
		zap.Int("coerced_null", s.CoercedNull),
		zap.Int("attempts", s.Attempts),
		zap.Duration("elapsed", s.Elapsed),
		zap.Float64("rows_per_sec", round1(rps)),
		zap.Float64("rss_mb", round1(float64(rss)/(1<<20))),
	}
	if s.Fingerprint != "" {
		fields = append(fields, zap.String("fingerprint", s.Fingerprint))
	}
	if s.Err != nil {
		fields = append(fields, zap.Error(s.Err))
		m.logger.Warn("batch", fields...)
	} else {
		m.logger.Info("batch", fields...)
	}

	metrics.RecordBatch(m.job, string(s.Status), s.Elapsed)
	metrics.RecordRows(m.job, metrics.RowsRead, int64(s.Read))
	metrics.RecordRows(m.job, metrics.RowsRejected, int64(s.Rejected))
	metrics.RecordRows(m.job, metrics.RowsInserted, s.Inserted)
	metrics.RecordRows(m.job, metrics.RowsCoercedNull, int64(s.CoercedNull))
	if s.Status == StatusSkipped {
		metrics.RecordRows(m.job, metrics.RowsSkipped, int64(s.Read))
	}
	if rss > 0 {
		metrics.SetRSS(m.job, rss)
	}
}

// Summary returns totals since New. PeakRSS prefers the kernel's high-water
// mark when it is available.
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	s := m.sum
	m.mu.Unlock()

	s.Elapsed = m.now().Sub(m.start)
	s.RowsPerSec = rate(s.Inserted, s.Elapsed)
	if peak, err := m.peakRSS(); err == nil && peak > s.PeakRSS {
		s.PeakRSS = peak
	}
	return s
}

// LogSummary writes the end-of-run line and returns the summary.
func (m *Monitor) LogSummary() Summary {
	s := m.Summary()
	m.logger.Info("ingest summary",
		zap.Int("batches", s.Batches),
		zap.Int("loaded", s.Loaded),
		zap.Int("failed", s.Failed),
		zap.Int("skipped", s.Skipped),
		zap.Int64("read", s.Read),
		zap.Int64("rejected", s.Rejected),
		zap.Int64("inserted", s.Inserted),
		zap.Int64("coerced_null", s.CoercedNull),
		zap.Duration("elapsed", s.Elapsed),
		zap.Float64("rows_per_sec", round1(s.RowsPerSec)),
		zap.Float64("peak_rss_mb", round1(float64(s.PeakRSS)/(1<<20))),
	)
	return s
}

func rate(n int64, d time.Duration) float64 {
	if d <= 0 || n <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }

// processRSS samples the current resident set size of this process.
func processRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	mi, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mi.RSS, nil
}
