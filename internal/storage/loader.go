package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/retry"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/schema"
)

// LoaderConfig tunes a Loader. Zero values get defaults.
type LoaderConfig struct {
	// Attempts is the total number of tries per batch (default 3).
	Attempts int
	// InitialBackoff and MaxBackoff bound the wait between attempts
	// (defaults 200ms and 5s; the wait doubles each retry).
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// InsertTimeout bounds each attempt (default 2m).
	InsertTimeout time.Duration
	Logger        *zap.Logger
}

// LoadResult describes one successful batch insert.
type LoadResult struct {
	Inserted int64
	Attempts int
	Elapsed  time.Duration
}

// errAttemptTimeout marks an attempt cut off by InsertTimeout while the
// run itself is still live; such attempts are retried.
var errAttemptTimeout = errors.New("insert attempt timed out")

// Loader writes batches of trips through a Repository, retrying transient
// failures.
type Loader struct {
	repo    Repository
	cfg     LoaderConfig
	exec    *retry.Executor
	columns []string
	logger  *zap.Logger
}

// NewLoader returns a Loader for repo.
func NewLoader(repo Repository, cfg LoaderConfig) *Loader {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	classifier := retry.ClassifierFunc(func(err error) bool {
		return errors.Is(err, errAttemptTimeout) || repo.IsTransient(err)
	})
	backoff := retry.NewBackoff(cfg.Attempts,
		retry.WithInitialDelay(cfg.InitialBackoff),
		retry.WithMaxDelay(cfg.MaxBackoff),
	)
	return &Loader{
		repo:    repo,
		cfg:     cfg,
		exec:    retry.NewExecutor(classifier, backoff),
		columns: schema.TripColumns,
		logger:  cfg.Logger,
	}
}

// Load inserts trips as one statement. A transient failure is retried up to
// the configured attempts; exhaustion yields *TransientLoadError. Other
// errors fail the batch on the first attempt. Because an attempt that timed
// out may still have committed, a retried batch can be written twice.
func (l *Loader) Load(ctx context.Context, batch int, trips []schema.Trip) (LoadResult, error) {
	start := time.Now()
	if len(trips) == 0 {
		return LoadResult{}, nil
	}

	rows := make([][]any, len(trips))
	for i := range trips {
		rows[i] = trips[i].Values()
	}

	log := l.logger.With(zap.Int("batch", batch))
	exec := l.exec.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		log.Warn("loader: transient insert failure, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
	})

	var inserted int64
	attempts, err := exec.Execute(ctx, func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, l.cfg.InsertTimeout)
		defer cancel()

		n, err := l.repo.CopyFrom(actx, l.columns, rows)
		if err != nil {
			if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("%w after %s: %v", errAttemptTimeout, l.cfg.InsertTimeout, err)
			}
			return err
		}
		inserted = n
		return nil
	})
	res := LoadResult{Inserted: inserted, Attempts: attempts, Elapsed: time.Since(start)}
	if err == nil {
		return res, nil
	}

	res.Inserted = 0
	if ctx.Err() != nil {
		return res, fmt.Errorf("batch %d: %w", batch, ctx.Err())
	}
	if attempts >= l.cfg.Attempts && (errors.Is(err, errAttemptTimeout) || l.repo.IsTransient(err)) {
		return res, &TransientLoadError{Batch: batch, Attempts: attempts, Err: err}
	}
	return res, fmt.Errorf("batch %d: %w", batch, err)
}
