// Package ddl holds a small dialect-neutral table model and renders CREATE
// TABLE statements from it. Backends supply identifier quoting and the
// mapping from logical column kinds to SQL types.
package ddl

// ColumnDef describes one column. Name is unquoted; quoting happens at
// render time. Default is emitted as raw SQL.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef is a table name in dotted form ("schema.table") plus ordered
// columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}
