// Package storage defines the backend-agnostic repository contract, a registry
// of backend factories, and the retrying batch Loader.
//
// Backends (mysql, postgres, sqlite) register themselves in init; import
// internal/storage/all to enable every built-in kind.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is the contract every backend implements.
type Repository interface {
	// CopyFrom inserts rows aligned to columns into the configured table and
	// returns the number of rows the backend reports as written. The rows of
	// one call are written by a single statement (or a single transaction).
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// Exec runs an arbitrary statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	// TableExists reports whether table is visible to the connection.
	TableExists(ctx context.Context, table string) (bool, error)

	// Aggregates returns COUNT(*), SUM(fare_amount) and SUM(total_amount) of
	// the configured table.
	Aggregates(ctx context.Context) (Aggregates, error)

	// HourlyFares returns the average fare per pickup hour, ordered by hour.
	HourlyFares(ctx context.Context, limit int) ([]HourlyFare, error)

	// IsTransient reports whether err, returned by this backend, is worth
	// retrying.
	IsTransient(err error) bool

	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind  string // "mysql", "postgres", "sqlite"
	DSN   string
	Table string
}

// Aggregates is a point-in-time summary of the trips table.
type Aggregates struct {
	Count    int64
	SumFare  float64
	SumTotal float64
}

// Sub returns a - b.
func (a Aggregates) Sub(b Aggregates) Aggregates {
	return Aggregates{
		Count:    a.Count - b.Count,
		SumFare:  a.SumFare - b.SumFare,
		SumTotal: a.SumTotal - b.SumTotal,
	}
}

// HourlyFare is one row of the hour-of-pickup report.
type HourlyFare struct {
	Hour    int
	AvgFare float64
	Trips   int64
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
