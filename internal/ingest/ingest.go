// Package ingest drives one load of a TLC trip file into the trips table:
// read a chunk, normalize it, insert it, observe it, and verify the totals
// once the file is exhausted.
//
// A run is strictly sequential. Chunk-level parse errors, rejected rows and
// failed batches are counted and logged but never stop the run; a missing
// table, an unreachable source or an unreadable header do.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/datasource"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/metrics"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/monitor"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/parser/csv"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/schema"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/transformer"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/verify"
)

// Options configures a run. Zero values get the package defaults of the
// component they configure.
type Options struct {
	// Location is a local path or http(s) URL.
	Location string
	// ChunkSize is the number of CSV rows per batch.
	ChunkSize int

	// Kind is the storage kind of repo; used only with CreateTable.
	Kind string
	// Table is the target table (default trips_raw).
	Table string
	// CreateTable creates Table when it does not exist instead of failing.
	CreateTable bool

	Source     datasource.Options
	Normalizer transformer.Options
	Loader     storage.LoaderConfig

	// Tolerance bounds the accepted difference on verified sums.
	Tolerance float64
	// HourlySample is the number of hour-of-pickup rows logged after the
	// load; negative disables the report.
	HourlySample int

	// Job labels metrics.
	Job    string
	Logger *zap.Logger
}

// FailedBatch identifies a batch that was not written.
type FailedBatch struct {
	Index       int
	FirstLine   int
	Rows        int
	Fingerprint string
	Err         error
}

// SkippedChunk identifies a chunk dropped by the reader.
type SkippedChunk struct {
	Index    int
	Line     int
	LastLine int
	Rows     int
	Err      error
}

// Summary is the outcome of Run.
type Summary struct {
	RunID string
	State State

	monitor.Summary
	Tally  verify.Tally
	Report *verify.Report

	FailedBatches []FailedBatch
	SkippedChunks []SkippedChunk
}

// Partial reports whether any batch or chunk was not loaded.
func (s Summary) Partial() bool { return len(s.FailedBatches) > 0 || len(s.SkippedChunks) > 0 }

// Run loads opt.Location into repo. The returned error is non-nil only when
// the run ends in FAILED; the Summary is always populated with what happened
// up to that point.
func Run(ctx context.Context, repo storage.Repository, opt Options) (Summary, error) {
	if opt.Table == "" {
		opt.Table = schema.TripsTable
	}
	if opt.Job == "" {
		opt.Job = "tlc_ingest"
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Tolerance <= 0 {
		opt.Tolerance = verify.DefaultTolerance
	}
	if opt.HourlySample == 0 {
		opt.HourlySample = verify.DefaultHourlySample
	}

	r := &run{
		repo: repo,
		opt:  opt,
		sum:  Summary{RunID: uuid.NewString()},
	}
	r.log = opt.Logger.With(zap.String("run_id", r.sum.RunID))
	r.mon = monitor.New(opt.Job, r.log)
	r.sm = NewMachine(func(from, to State) {
		if from != to {
			r.log.Debug("ingest: state", zap.Stringer("from", from), zap.Stringer("to", to))
		}
	})

	err := r.execute(ctx)
	r.sum.State = r.sm.State()
	r.sum.Summary = r.mon.LogSummary()
	if err != nil {
		r.log.Error("ingest: run failed", zap.Stringer("state", r.sum.State), zap.Error(err))
	}
	return r.sum, err
}

type run struct {
	repo storage.Repository
	opt  Options
	log  *zap.Logger
	mon  *monitor.Monitor
	sm   *Machine
	sum  Summary
}

func (r *run) fail(err error) error {
	_ = r.sm.To(StateFailed)
	return err
}

func (r *run) execute(ctx context.Context) error {
	opt := r.opt
	r.log.Info("ingest: start",
		zap.String("location", opt.Location),
		zap.String("table", opt.Table),
		zap.Int("chunksize", opt.ChunkSize),
	)

	if opt.CreateTable {
		if err := storage.EnsureTripsTable(ctx, opt.Kind, r.repo, opt.Table); err != nil {
			return r.fail(err)
		}
	}
	if err := storage.RequireTable(ctx, r.repo, opt.Table); err != nil {
		return r.fail(err)
	}

	vopts := []verify.Option{verify.WithTolerance(opt.Tolerance), verify.WithLogger(r.log)}
	if opt.HourlySample < 0 {
		vopts = append(vopts, verify.WithHourlySample(0))
	} else {
		vopts = append(vopts, verify.WithHourlySample(opt.HourlySample))
	}
	verifier := verify.New(r.repo, vopts...)
	baseline, err := verifier.Baseline(ctx)
	if err != nil {
		return r.fail(err)
	}

	if err := r.sm.To(StateReading); err != nil {
		return r.fail(err)
	}
	src := opt.Source
	if src.Logger == nil {
		src.Logger = r.log
	}
	fetchStart := time.Now()
	rc, err := datasource.Open(ctx, opt.Location, src)
	metrics.RecordStep(opt.Job, "fetch", err, time.Since(fetchStart))
	if err != nil {
		return r.fail(err)
	}
	defer rc.Close()

	br, err := csv.NewBatchReader(rc, csv.Options{ChunkSize: opt.ChunkSize})
	if err != nil {
		return r.fail(err)
	}
	norm, err := transformer.NewNormalizer(br.Header(), opt.Normalizer)
	if err != nil {
		return r.fail(&csv.ParseError{Chunk: csv.HeaderChunk, Line: 1, Err: err})
	}
	r.log.Debug("ingest: header", zap.Strings("raw", br.RawHeader()), zap.Strings("canonical", br.Header()))

	lcfg := opt.Loader
	if lcfg.Logger == nil {
		lcfg.Logger = r.log
	}
	loader := storage.NewLoader(r.repo, lcfg)

	loadStart := time.Now()
	err = r.loadAll(ctx, br, norm, loader)
	metrics.RecordStep(opt.Job, "load", err, time.Since(loadStart))
	if err != nil {
		return r.fail(err)
	}

	if err := r.sm.To(StateVerifying); err != nil {
		return r.fail(err)
	}
	verifyStart := time.Now()
	rep, err := verifier.Verify(ctx, baseline, r.sum.Tally)
	metrics.RecordStep(opt.Job, "verify", err, time.Since(verifyStart))
	if err != nil {
		// Verification is advisory.
		r.log.Warn("ingest: verification skipped", zap.Error(err))
	} else {
		r.sum.Report = &rep
	}
	return r.sm.To(StateDone)
}

func (r *run) loadAll(ctx context.Context, br *csv.BatchReader, norm *transformer.Normalizer, loader *storage.Loader) error {
	for {
		start := time.Now()
		b, err := br.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				r.skip(pe, time.Since(start))
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &datasource.FetchError{Location: r.opt.Location, Err: err}
		}

		if err := r.sm.To(StateLoading); err != nil {
			return err
		}
		if err := r.loadBatch(ctx, b, norm, loader, start); err != nil {
			return err
		}
	}
}

func (r *run) skip(pe *csv.ParseError, elapsed time.Duration) {
	r.sum.SkippedChunks = append(r.sum.SkippedChunks, SkippedChunk{Index: pe.Chunk, Line: pe.Line, LastLine: pe.EndLine, Rows: pe.Rows, Err: pe.Err})
	r.mon.Observe(monitor.BatchStat{
		Index:     pe.Chunk,
		FirstLine: pe.Line,
		Read:      pe.Rows,
		Status:    monitor.StatusSkipped,
		Elapsed:   elapsed,
		Err:       pe,
	})
}

// loadBatch normalizes and inserts one batch. Only cancellation is returned;
// a failed insert is recorded and the run moves on.
func (r *run) loadBatch(ctx context.Context, b *csv.Batch, norm *transformer.Normalizer, loader *storage.Loader, start time.Time) error {
	res := norm.NormalizeBatch(b)
	for _, rej := range res.Rejects {
		r.log.Debug("ingest: row rejected",
			zap.Int("batch", b.Index),
			zap.Int("line", rej.Line),
			zap.String("field", rej.Field),
			zap.String("reason", rej.Reason),
		)
	}

	stat := monitor.BatchStat{
		Index:       b.Index,
		FirstLine:   b.FirstLine,
		Read:        b.Len(),
		Rejected:    len(res.Rejects),
		CoercedNull: res.CoercedNulls,
		Fingerprint: b.FingerprintHex(),
	}

	lr, err := loader.Load(ctx, b.Index, res.Trips)
	stat.Attempts = lr.Attempts
	stat.Elapsed = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stat.Status = monitor.StatusFailed
		stat.Err = err
		r.sum.FailedBatches = append(r.sum.FailedBatches, FailedBatch{
			Index:       b.Index,
			FirstLine:   b.FirstLine,
			Rows:        len(res.Trips),
			Fingerprint: stat.Fingerprint,
			Err:         err,
		})
		r.mon.Observe(stat)
		return nil
	}

	stat.Status = monitor.StatusLoaded
	stat.Inserted = lr.Inserted
	r.sum.Tally.Add(res.Trips)
	r.mon.Observe(stat)
	return nil
}

// String renders the summary for terminal output.
func (s Summary) String() string {
	verdict := "n/a"
	if s.Report != nil {
		verdict = "match"
		if !s.Report.Match() {
			verdict = "MISMATCH"
		}
	}
	return fmt.Sprintf(
		"run %s %s: batches=%d loaded=%d failed=%d skipped=%d read=%d rejected=%d inserted=%d elapsed=%s rows/sec=%.1f peak_rss=%.1fMB verify=%s",
		s.RunID, s.State, s.Batches, s.Loaded, s.Failed, s.Skipped, s.Read, s.Rejected, s.Inserted,
		s.Elapsed.Round(time.Millisecond), s.RowsPerSec, float64(s.PeakRSS)/(1<<20), verdict,
	)
}
