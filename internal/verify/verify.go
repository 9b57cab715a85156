// Package verify compares what the loader believes it inserted with what the
// target table reports afterwards.
package verify

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/schema"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
)

// DefaultTolerance bounds the accepted difference on monetary sums.
const DefaultTolerance = 0.01

// DefaultHourlySample is how many hour-of-pickup rows are logged.
const DefaultHourlySample = 5

// Tally accumulates rows acknowledged as inserted.
type Tally struct {
	Count    int64
	SumFare  float64
	SumTotal float64
}

// Add folds trips of a successfully loaded batch into the tally.
func (t *Tally) Add(trips []schema.Trip) {
	for i := range trips {
		t.Count++
		t.SumFare += trips[i].Fare()
		t.SumTotal += trips[i].Total()
	}
}

// Aggregates returns the tally in storage form.
func (t Tally) Aggregates() storage.Aggregates {
	return storage.Aggregates{Count: t.Count, SumFare: t.SumFare, SumTotal: t.SumTotal}
}

// Report is the outcome of one verification.
type Report struct {
	Baseline storage.Aggregates
	After    storage.Aggregates
	Delta    storage.Aggregates // After - Baseline
	Expected storage.Aggregates // from the tally
	Hourly   []storage.HourlyFare

	CountOK bool
	FareOK  bool
	TotalOK bool
}

// Match reports whether every check passed.
func (r Report) Match() bool { return r.CountOK && r.FareOK && r.TotalOK }

// Verifier runs the post-load checks.
type Verifier struct {
	repo      storage.Repository
	tolerance float64
	sample    int
	logger    *zap.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTolerance sets the accepted absolute difference on sums.
func WithTolerance(tol float64) Option {
	return func(v *Verifier) {
		if tol >= 0 {
			v.tolerance = tol
		}
	}
}

// WithHourlySample sets how many hour-of-pickup rows are fetched; 0 disables
// the report.
func WithHourlySample(n int) Option { return func(v *Verifier) { v.sample = n } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// New returns a Verifier over repo.
func New(repo storage.Repository, opts ...Option) *Verifier {
	v := &Verifier{
		repo:      repo,
		tolerance: DefaultTolerance,
		sample:    DefaultHourlySample,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Baseline snapshots the table before loading.
func (v *Verifier) Baseline(ctx context.Context) (storage.Aggregates, error) {
	a, err := v.repo.Aggregates(ctx)
	if err != nil {
		return storage.Aggregates{}, fmt.Errorf("verify: baseline: %w", err)
	}
	return a, nil
}

// Verify compares the table growth since baseline with tally. A mismatch is
// logged as a warning and reflected in the Report; only query failures are
// returned as errors.
func (v *Verifier) Verify(ctx context.Context, baseline storage.Aggregates, tally Tally) (Report, error) {
	after, err := v.repo.Aggregates(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("verify: aggregates: %w", err)
	}
	delta := after.Sub(baseline)
	exp := tally.Aggregates()

	r := Report{
		Baseline: baseline,
		After:    after,
		Delta:    delta,
		Expected: exp,
		CountOK:  delta.Count == exp.Count,
		FareOK:   math.Abs(delta.SumFare-exp.SumFare) <= v.tolerance,
		TotalOK:  math.Abs(delta.SumTotal-exp.SumTotal) <= v.tolerance,
	}

	fields := []zap.Field{
		zap.Int64("table_count", after.Count),
		zap.Int64("delta_count", delta.Count),
		zap.Int64("expected_count", exp.Count),
		zap.Float64("delta_sum_fare", delta.SumFare),
		zap.Float64("expected_sum_fare", exp.SumFare),
		zap.Float64("delta_sum_total", delta.SumTotal),
		zap.Float64("expected_sum_total", exp.SumTotal),
		zap.Float64("tolerance", v.tolerance),
	}
	if r.Match() {
		v.logger.Info("verify: aggregates match", fields...)
	} else {
		v.logger.Warn("verify: aggregate mismatch",
			append(fields,
				zap.Bool("count_ok", r.CountOK),
				zap.Bool("fare_ok", r.FareOK),
				zap.Bool("total_ok", r.TotalOK),
			)...)
	}

	if v.sample > 0 {
		hf, err := v.repo.HourlyFares(ctx, v.sample)
		if err != nil {
			v.logger.Warn("verify: hourly fare sample failed", zap.Error(err))
		} else {
			r.Hourly = hf
			for _, h := range hf {
				v.logger.Info("verify: avg fare by pickup hour",
					zap.Int("hour", h.Hour),
					zap.Float64("avg_fare", math.Round(h.AvgFare*100)/100),
					zap.Int64("trips", h.Trips),
				)
			}
		}
	}
	return r, nil
}
