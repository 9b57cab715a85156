// Package retry runs an operation again after transient failures, waiting an
// exponentially growing delay between attempts.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Classifier decides whether an error is worth another attempt.
type Classifier interface {
	IsTransient(err error) bool
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(err error) bool

// IsTransient implements Classifier.
func (f ClassifierFunc) IsTransient(err error) bool { return f(err) }

// Backoff computes delays between attempts.
type Backoff struct {
	attempts     int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       float64
	jitterFunc   func() float64
}

// Option configures a Backoff.
type Option func(*Backoff)

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option { return func(b *Backoff) { b.initialDelay = d } }

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) Option { return func(b *Backoff) { b.maxDelay = d } }

// WithMultiplier sets the growth factor between consecutive delays.
func WithMultiplier(m float64) Option { return func(b *Backoff) { b.multiplier = m } }

// WithJitter spreads each delay by +/- j (0.0-1.0) of its value.
func WithJitter(j float64) Option { return func(b *Backoff) { b.jitter = j } }

// WithJitterFunc replaces the random source used for jitter; values are in
// [0, 1).
func WithJitterFunc(f func() float64) Option { return func(b *Backoff) { b.jitterFunc = f } }

// NewBackoff returns a strategy allowing attempts total tries (the first try
// included). Defaults: 200ms initial delay, x2 growth, 5s cap, no jitter.
func NewBackoff(attempts int, opts ...Option) *Backoff {
	if attempts < 1 {
		attempts = 1
	}
	b := &Backoff{
		attempts:     attempts,
		initialDelay: 200 * time.Millisecond,
		maxDelay:     5 * time.Second,
		multiplier:   2.0,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Attempts returns the total number of tries.
func (b *Backoff) Attempts() int { return b.attempts }

// Delay returns the wait before retry n (0-based).
func (b *Backoff) Delay(n int) time.Duration {
	d := float64(b.initialDelay) * math.Pow(b.multiplier, float64(n))
	if d > float64(b.maxDelay) {
		d = float64(b.maxDelay)
	}
	if b.jitter > 0 {
		f := b.jitterFunc
		if f == nil {
			f = rand.Float64
		}
		d *= 1.0 + b.jitter*(f()-0.5)*2.0
	}
	return time.Duration(d)
}

// Executor runs operations under a Backoff and a Classifier.
type Executor struct {
	classifier Classifier
	backoff    *Backoff
	onRetry    func(attempt int, err error, delay time.Duration)
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewExecutor panics if classifier or backoff is nil.
func NewExecutor(classifier Classifier, backoff *Backoff) *Executor {
	if classifier == nil {
		panic("retry: classifier cannot be nil")
	}
	if backoff == nil {
		panic("retry: backoff cannot be nil")
	}
	return &Executor{classifier: classifier, backoff: backoff, sleep: sleepCtx}
}

// WithOnRetry returns a copy of e that calls fn before each retry. attempt is
// the 1-based number of the attempt that just failed.
func (e *Executor) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = fn
	return &clone
}

// Execute calls op until it succeeds, returns a non-transient error, the
// attempts are exhausted, or ctx is done. It returns the number of attempts
// made and the last error.
func (e *Executor) Execute(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	var err error
	for attempt := 1; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err == nil {
				err = cerr
			}
			return attempt - 1, err
		}
		err = op(ctx)
		if err == nil {
			return attempt, nil
		}
		if attempt >= e.backoff.Attempts() || !e.classifier.IsTransient(err) {
			return attempt, err
		}
		delay := e.backoff.Delay(attempt - 1)
		if e.onRetry != nil {
			e.onRetry(attempt, err, delay)
		}
		if serr := e.sleep(ctx, delay); serr != nil {
			return attempt, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
