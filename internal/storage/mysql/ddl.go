package mysql

import (
	"context"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/ddl"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/schema"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
)

func init() {
	storage.RegisterDDL("mysql", func(ctx context.Context, repo storage.Repository, table string) error {
		stmt, err := createTripsSQL(table)
		if err != nil {
			return err
		}
		return repo.Exec(ctx, stmt)
	})
}

// mapType maps a trip column kind to a MySQL type.
func mapType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE"
	case schema.KindTime:
		return "DATETIME"
	default:
		return "VARCHAR(8)"
	}
}

// createTripsSQL matches the v0_create_trips_raw migration; indexes come from
// later migrations.
func createTripsSQL(table string) (string, error) {
	def := ddl.TripsTableDef(table, mapType)
	def.Columns = append([]ddl.ColumnDef{{Name: "id", SQLType: "BIGINT AUTO_INCREMENT", PrimaryKey: true}}, def.Columns...)
	return ddl.BuildCreateTableSQL(def, myIdent)
}
