package ddl

import (
	"fmt"
	"strings"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/schema"
)

// Quoter quotes one identifier segment for a dialect.
type Quoter func(ident string) string

// QuoteFQN quotes each dot-separated segment of name with q. Empty segments
// are dropped.
func QuoteFQN(name string, q Quoter) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, q(p))
		}
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders
//
//	CREATE TABLE IF NOT EXISTS <fqn> (
//	  <col> <type> [NOT NULL] [DEFAULT expr],
//	  ...
//	  [PRIMARY KEY (<pk cols>)]
//	)
//
// Primary-key columns are always NOT NULL. extra lines (indexes, table
// constraints) are appended after the columns verbatim.
func BuildCreateTableSQL(t TableDef, q Quoter, extra ...string) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	lines := make([]string, 0, len(t.Columns)+1+len(extra))
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(q(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		lines = append(lines, sb.String())
		if c.PrimaryKey {
			pks = append(pks, q(name))
		}
	}
	if len(pks) > 0 {
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	lines = append(lines, extra...)

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		QuoteFQN(fqn, q), strings.Join(lines, ",\n  ")), nil
}

// TripsTableDef returns the trips table with SQL types from mapType. Only
// pickup_datetime is NOT NULL.
func TripsTableDef(fqn string, mapType func(schema.Kind) string) TableDef {
	cols := make([]ColumnDef, len(schema.TripColumns))
	for i, name := range schema.TripColumns {
		cols[i] = ColumnDef{
			Name:     name,
			SQLType:  mapType(schema.TripColumnKinds[i]),
			Nullable: name != "pickup_datetime",
		}
	}
	return TableDef{FQN: fqn, Columns: cols}
}
