// Package sqlite implements storage.Repository on modernc.org/sqlite (pure
// Go, no cgo). It is used for local runs and for tests that need a real SQL
// engine.
//
// A batch is written inside one transaction with a prepared single-row
// INSERT, which keeps every statement far below SQLite's variable limit.
// Timestamps are stored as "YYYY-MM-DD HH:MM:SS" UTC text so SQLite's date
// functions can read them.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/ddl"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
)

// TimeLayout is the text form of stored timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Repository is a SQLite-backed storage.Repository.
type Repository struct {
	db      *sql.DB
	cfg     Config
	fqTable string
}

// NewRepository opens a single-connection SQLite handle and returns the
// Repository plus a close function. A single connection also keeps a
// ":memory:" database alive for the life of the repository.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("sqlite: table must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg, fqTable: ddl.QuoteFQN(cfg.Table, quoteIdent)}, closeFn, nil
}

// DB exposes the handle for callers that need raw SQL (migrations, tests).
func (r *Repository) DB() *sql.DB { return r.db }

// CopyFrom inserts rows in one transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = quoteIdent(c)
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.fqTable,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	var inserted int64
	for i, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: CopyFrom: row %d length %d != columns length %d", i, len(row), len(columns))
		}
		for j, v := range row {
			args[j] = toSQLiteVal(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: insert: %w", err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// Exec executes an arbitrary statement.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// TableExists checks sqlite_master. A "main." prefix is ignored.
func (r *Repository) TableExists(ctx context.Context, table string) (bool, error) {
	name := table
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: table exists: %w", err)
	}
	return n > 0, nil
}

// Aggregates implements storage.Repository.
func (r *Repository) Aggregates(ctx context.Context) (storage.Aggregates, error) {
	return storage.QueryAggregates(ctx, r.db, r.fqTable)
}

// HourlyFares implements storage.Repository.
func (r *Repository) HourlyFares(ctx context.Context, limit int) ([]storage.HourlyFare, error) {
	return storage.QueryHourlyFares(ctx, r.db, r.fqTable,
		`CAST(strftime('%H', "pickup_datetime") AS INTEGER)`, limit)
}

// IsTransient treats SQLITE_BUSY and SQLITE_LOCKED as retryable.
func (r *Repository) IsTransient(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	return storage.IsNetworkTransient(err)
}

func toSQLiteVal(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(TimeLayout)
	}
	return v
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
