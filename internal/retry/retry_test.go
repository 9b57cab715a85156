package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func classify(err error) bool { return errors.Is(err, errTransient) }

func noSleep(e *Executor) *Executor {
	e.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return e
}

func TestBackoff_Delays(t *testing.T) {
	t.Parallel()

	b := NewBackoff(3)
	assert.Equal(t, 3, b.Attempts())
	assert.Equal(t, 200*time.Millisecond, b.Delay(0))
	assert.Equal(t, 400*time.Millisecond, b.Delay(1))
	assert.Equal(t, 800*time.Millisecond, b.Delay(2))
	assert.Equal(t, 5*time.Second, b.Delay(10))
}

func TestBackoff_Options(t *testing.T) {
	t.Parallel()

	b := NewBackoff(0,
		WithInitialDelay(time.Second),
		WithMaxDelay(3*time.Second),
		WithMultiplier(3),
		WithJitter(0.5),
		WithJitterFunc(func() float64 { return 1.0 }),
	)
	assert.Equal(t, 1, b.Attempts())
	// 1s * (1 + 0.5*1.0)
	assert.Equal(t, 1500*time.Millisecond, b.Delay(0))
	// capped at 3s before jitter
	assert.Equal(t, 4500*time.Millisecond, b.Delay(1))
}

func TestExecute_SucceedsFirstTry(t *testing.T) {
	t.Parallel()

	e := noSleep(NewExecutor(ClassifierFunc(classify), NewBackoff(3)))
	n, err := e.Execute(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExecute_RetriesTransientUntilExhausted(t *testing.T) {
	t.Parallel()

	var retries []int
	e := noSleep(NewExecutor(ClassifierFunc(classify), NewBackoff(3))).
		WithOnRetry(func(attempt int, err error, delay time.Duration) { retries = append(retries, attempt) })

	calls := 0
	n, err := e.Execute(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestExecute_RecoversAfterTransient(t *testing.T) {
	t.Parallel()

	e := noSleep(NewExecutor(ClassifierFunc(classify), NewBackoff(3)))
	calls := 0
	n, err := e.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExecute_FatalStopsImmediately(t *testing.T) {
	t.Parallel()

	fatal := errors.New("syntax error")
	e := noSleep(NewExecutor(ClassifierFunc(classify), NewBackoff(3)))
	n, err := e.Execute(context.Background(), func(context.Context) error { return fatal })
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, n)
}

func TestExecute_ContextCanceledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	e := NewExecutor(ClassifierFunc(classify), NewBackoff(5, WithInitialDelay(time.Hour)))

	n, err := e.Execute(ctx, func(context.Context) error {
		cancel()
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, n)
}

func TestNewExecutor_PanicsOnNil(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewExecutor(nil, NewBackoff(1)) })
	assert.Panics(t, func() { NewExecutor(ClassifierFunc(classify), nil) })
}
