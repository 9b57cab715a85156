// Package mysql implements storage.Repository for MySQL using
// go-sql-driver/mysql.
//
// The pool is capped at one connection and the DSN always enables client-side
// parameter interpolation, so a whole batch goes to the server as a single
// multi-row INSERT without hitting the 65535 placeholder limit of server-side
// prepared statements.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
)

// Config holds MySQL repository configuration derived from storage.Config.
type Config struct {
	DSN   string
	Table string // "trips_raw" or "schema.trips_raw"
}

// Repository is a MySQL-backed storage.Repository.
type Repository struct {
	db      *sql.DB
	cfg     Config
	fqTable string
}

// NewRepository opens and pings a single-connection pool and returns the
// Repository plus a close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("mysql: table must not be empty")
	}
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}

	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg, fqTable: myFQN(cfg.Table)}, closeFn, nil
}

// normalizeDSN forces the driver options the repository relies on.
func normalizeDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: parse DSN: %w", err)
	}
	c.InterpolateParams = true
	c.ParseTime = true
	if c.Loc == nil {
		c.Loc = time.UTC
	}
	return c.FormatDSN(), nil
}

// CopyFrom inserts rows with one multi-row INSERT statement.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("mysql: CopyFrom: row %d length %d != columns length %d", i, len(row), len(columns))
		}
		args = append(args, row...)
	}

	res, err := r.db.ExecContext(ctx, buildInsert(r.fqTable, columns, len(rows)), args...)
	if err != nil {
		return 0, fmt.Errorf("mysql: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return int64(len(rows)), nil
	}
	return n, nil
}

// Exec executes an arbitrary statement.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// TableExists looks the table up in information_schema. An unqualified name
// is resolved in the connection's current database.
func (r *Repository) TableExists(ctx context.Context, table string) (bool, error) {
	schema, name := splitTable(table)
	var (
		n   int
		err error
	)
	if schema == "" {
		err = r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
			name).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?",
			schema, name).Scan(&n)
	}
	if err != nil {
		return false, fmt.Errorf("mysql: table exists: %w", err)
	}
	return n > 0, nil
}

// Aggregates implements storage.Repository.
func (r *Repository) Aggregates(ctx context.Context) (storage.Aggregates, error) {
	return storage.QueryAggregates(ctx, r.db, r.fqTable)
}

// HourlyFares implements storage.Repository.
func (r *Repository) HourlyFares(ctx context.Context, limit int) ([]storage.HourlyFare, error) {
	return storage.QueryHourlyFares(ctx, r.db, r.fqTable, "HOUR(`pickup_datetime`)", limit)
}

// IsTransient implements storage.Repository.
func (r *Repository) IsTransient(err error) bool { return isTransient(err) }

// buildInsert returns INSERT INTO t (c1,c2) VALUES (?,?),(?,?)...
func buildInsert(fqTable string, columns []string, nRows int) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = myIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.Grow(32 + len(fqTable) + 16*len(columns) + nRows*(len(tuple)+1))
	b.WriteString("INSERT INTO ")
	b.WriteString(fqTable)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ","))
	b.WriteString(") VALUES ")
	for i := 0; i < nRows; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(tuple)
	}
	return b.String()
}

// myIdent backtick-quotes a single identifier, doubling embedded backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// myFQN quotes a possibly schema-qualified name segment by segment.
func myFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = myIdent(p)
	}
	return strings.Join(parts, ".")
}

// splitTable separates "schema.table"; schema is empty when unqualified.
func splitTable(name string) (schema, table string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
