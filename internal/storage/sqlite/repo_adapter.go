package sqlite

import (
	"context"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/ddl"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/schema"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo adds Close to *Repository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("sqlite", func(ctx context.Context, repo storage.Repository, table string) error {
		stmt, err := ddl.BuildCreateTableSQL(ddl.TripsTableDef(table, mapType), quoteIdent)
		if err != nil {
			return err
		}
		return repo.Exec(ctx, stmt)
	})
}

// mapType maps a trip column kind to a SQLite type affinity. Timestamps are
// TEXT in TimeLayout form.
func mapType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "INTEGER"
	case schema.KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}
