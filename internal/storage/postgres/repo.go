// Package postgres implements storage.Repository on pgx v5. A batch is written
// with the COPY protocol through a one-connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // "trips_raw" or "public.trips_raw"
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("postgres: table must not be empty")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: parse DSN: %w", err)
	}
	pcfg.MaxConns = 1
	pcfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// CopyFrom streams rows with COPY FROM STDIN.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, splitFQN(r.cfg.Table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("postgres: copy: %s (%s): %w", pgErr.Detail, pgErr.SQLState(), err)
		}
		return 0, fmt.Errorf("postgres: copy: %w", err)
	}
	return n, nil
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// TableExists resolves table with to_regclass, so search_path applies.
func (r *Repository) TableExists(ctx context.Context, table string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", pgFQN(table)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("postgres: table exists: %w", err)
	}
	return ok, nil
}

// Aggregates implements storage.Repository.
func (r *Repository) Aggregates(ctx context.Context) (storage.Aggregates, error) {
	var a storage.Aggregates
	q := fmt.Sprintf(
		"SELECT COUNT(*), COALESCE(SUM(fare_amount), 0)::float8, COALESCE(SUM(total_amount), 0)::float8 FROM %s",
		pgFQN(r.cfg.Table),
	)
	if err := r.pool.QueryRow(ctx, q).Scan(&a.Count, &a.SumFare, &a.SumTotal); err != nil {
		return storage.Aggregates{}, fmt.Errorf("aggregates: %w", err)
	}
	return a, nil
}

// HourlyFares implements storage.Repository.
func (r *Repository) HourlyFares(ctx context.Context, limit int) ([]storage.HourlyFare, error) {
	if limit <= 0 {
		limit = 24
	}
	q := fmt.Sprintf(
		"SELECT %[1]s AS hr, AVG(fare_amount)::float8, COUNT(*) FROM %[2]s GROUP BY %[1]s ORDER BY hr LIMIT %[3]d",
		hourExpr, pgFQN(r.cfg.Table), limit,
	)
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("hourly fares: %w", err)
	}
	defer rows.Close()

	var out []storage.HourlyFare
	for rows.Next() {
		var (
			h   storage.HourlyFare
			avg *float64
		)
		if err := rows.Scan(&h.Hour, &avg, &h.Trips); err != nil {
			return nil, fmt.Errorf("hourly fares: scan: %w", err)
		}
		if avg != nil {
			h.AvgFare = *avg
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// IsTransient implements storage.Repository.
func (r *Repository) IsTransient(err error) bool { return isTransient(err) }

const hourExpr = `EXTRACT(HOUR FROM "pickup_datetime")::int`

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.trips_raw" to
// "public"."trips_raw".
func pgFQN(name string) string {
	parts := splitFQN(name)
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = pgIdent(p)
	}
	return strings.Join(out, ".")
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
