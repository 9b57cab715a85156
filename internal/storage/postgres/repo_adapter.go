package postgres

import (
	"context"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/ddl"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/schema"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to the concrete
// *postgres.Repository while providing a Close method that calls the close
// function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Ensure wrappedRepo satisfies storage.Repository at compile time.
var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres", func(ctx context.Context, repo storage.Repository, table string) error {
		stmt, err := createTripsSQL(table)
		if err != nil {
			return err
		}
		return repo.Exec(ctx, stmt)
	})
}

// mapType maps a trip column kind to a Postgres type.
func mapType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE PRECISION"
	case schema.KindTime:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

func createTripsSQL(table string) (string, error) {
	def := ddl.TripsTableDef(table, mapType)
	def.Columns = append([]ddl.ColumnDef{{Name: "id", SQLType: "BIGINT GENERATED ALWAYS AS IDENTITY", PrimaryKey: true}}, def.Columns...)
	return ddl.BuildCreateTableSQL(def, pgIdent)
}
