// Package migrate applies versioned schema changes and records them in
// schema_versions.
//
// Each migration runs inside a transaction together with the insert of its
// version row. MySQL commits DDL implicitly, so there a failed migration can
// leave its earlier statements applied while its version stays unrecorded.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/schema"
)

// ErrUnknownVersion is returned by Apply for a version with no migration.
var ErrUnknownVersion = errors.New("unknown migration version")

const createVersionsSQL = `CREATE TABLE IF NOT EXISTS ` + schema.VersionsTable + ` (
  version VARCHAR(64) PRIMARY KEY,
  applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
  description TEXT
)`

// AppliedVersion is one schema_versions row.
type AppliedVersion struct {
	Version     string
	AppliedAt   string
	Description string
}

// StatusEntry pairs a known migration with its applied state.
type StatusEntry struct {
	Migration
	Applied   bool
	AppliedAt string
}

// Migrator applies migrations through a database/sql handle. Queries use '?'
// placeholders (MySQL, SQLite).
type Migrator struct {
	db         *sql.DB
	migrations []Migration
	logger     *zap.Logger
}

// New returns a Migrator over migrations.
func New(db *sql.DB, migrations []Migration, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, migrations: migrations, logger: logger}
}

// EnsureVersionTable creates schema_versions when missing.
func (m *Migrator) EnsureVersionTable(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createVersionsSQL); err != nil {
		return fmt.Errorf("migrate: create %s: %w", schema.VersionsTable, err)
	}
	return nil
}

// Applied lists recorded versions ordered by version.
func (m *Migrator) Applied(ctx context.Context) ([]AppliedVersion, error) {
	if err := m.EnsureVersionTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx,
		"SELECT version, applied_at, description FROM "+schema.VersionsTable+" ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("migrate: list applied: %w", err)
	}
	defer rows.Close()

	var out []AppliedVersion
	for rows.Next() {
		var (
			v        AppliedVersion
			at, desc sql.NullString
		)
		if err := rows.Scan(&v.Version, &at, &desc); err != nil {
			return nil, fmt.Errorf("migrate: scan: %w", err)
		}
		v.AppliedAt, v.Description = at.String, desc.String
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return versionLess(out[i].Version, out[j].Version) })
	return out, nil
}

func (m *Migrator) appliedSet(ctx context.Context) (map[string]AppliedVersion, error) {
	list, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]AppliedVersion, len(list))
	for _, v := range list {
		set[v.Version] = v
	}
	return set, nil
}

func (m *Migrator) find(version string) (Migration, bool) {
	for _, mg := range m.migrations {
		if mg.Version == version {
			return mg, true
		}
	}
	return Migration{}, false
}

// Apply runs version unless it is already recorded and reports whether it
// ran. description, when non-empty, overrides the migration's own.
func (m *Migrator) Apply(ctx context.Context, version, description string) (bool, error) {
	mg, ok := m.find(version)
	if !ok {
		return false, fmt.Errorf("migrate: %w: %s", ErrUnknownVersion, version)
	}
	applied, err := m.appliedSet(ctx)
	if err != nil {
		return false, err
	}
	if _, done := applied[version]; done {
		m.logger.Info("migrate: already applied, skipping", zap.String("version", version))
		return false, nil
	}
	if description == "" {
		description = mg.Description
	}
	if err := m.apply(ctx, mg, description); err != nil {
		return false, err
	}
	m.logger.Info("migrate: applied", zap.String("version", version), zap.String("description", description))
	return true, nil
}

func (m *Migrator) apply(ctx context.Context, mg Migration, description string) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin %s: %w", mg.Version, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				m.logger.Warn("migrate: rollback", zap.String("version", mg.Version), zap.Error(rbErr))
			}
		}
	}()

	for i, stmt := range mg.Statements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %s statement %d: %w", mg.Version, i+1, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO "+schema.VersionsTable+" (version, description) VALUES (?, ?)",
		mg.Version, description); err != nil {
		return fmt.Errorf("migrate: record %s: %w", mg.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit %s: %w", mg.Version, err)
	}
	return nil
}

// ApplyPending applies every unrecorded migration in version order and
// returns the versions it ran. It stops at the first failure.
func (m *Migrator) ApplyPending(ctx context.Context) ([]string, error) {
	applied, err := m.appliedSet(ctx)
	if err != nil {
		return nil, err
	}
	var ran []string
	for _, mg := range m.migrations {
		if _, done := applied[mg.Version]; done {
			continue
		}
		if err := m.apply(ctx, mg, mg.Description); err != nil {
			return ran, err
		}
		m.logger.Info("migrate: applied", zap.String("version", mg.Version))
		ran = append(ran, mg.Version)
	}
	return ran, nil
}

// Status reports every known migration and whether it has been applied.
// Recorded versions with no matching migration are appended at the end.
func (m *Migrator) Status(ctx context.Context) ([]StatusEntry, error) {
	list, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]AppliedVersion, len(list))
	for _, v := range list {
		applied[v.Version] = v
	}
	out := make([]StatusEntry, 0, len(m.migrations))
	known := make(map[string]bool, len(m.migrations))
	for _, mg := range m.migrations {
		known[mg.Version] = true
		e := StatusEntry{Migration: mg}
		if v, ok := applied[mg.Version]; ok {
			e.Applied, e.AppliedAt = true, v.AppliedAt
			if v.Description != "" {
				e.Description = v.Description
			}
		}
		out = append(out, e)
	}
	for _, v := range list {
		if !known[v.Version] {
			out = append(out, StatusEntry{
				Migration: Migration{Version: v.Version, Description: v.Description},
				Applied:   true,
				AppliedAt: v.AppliedAt,
			})
		}
	}
	return out, nil
}
