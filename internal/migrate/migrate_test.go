package migrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/schema"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage/sqlite"
)

// testFS holds SQLite-compatible migrations.
var testFS = fstest.MapFS{
	"v0_create_trips.sql": {Data: []byte("-- description: create trips\nCREATE TABLE trips (id INTEGER PRIMARY KEY, fare REAL);\n")},
	"v1_add_summary.sql": {Data: []byte(`-- description: add summary
-- two statements
CREATE TABLE summary (day TEXT, n INTEGER);
CREATE INDEX idx_summary_day ON summary (day);
`)},
}

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	r, closeFn, err := sqlite.NewRepository(context.Background(), sqlite.Config{DSN: ":memory:", Table: schema.TripsTable})
	require.NoError(t, err)
	t.Cleanup(closeFn)
	return r.DB()
}

func newMigrator(t *testing.T, fsys fstest.MapFS) (*Migrator, *sql.DB) {
	t.Helper()
	ms, err := Load(fsys)
	require.NoError(t, err)
	db := newDB(t)
	return New(db, ms, nil), db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = ?", name).Scan(&n))
	return n > 0
}

func TestBuiltin(t *testing.T) {
	t.Parallel()
	ms, err := Builtin()
	require.NoError(t, err)

	var versions []string
	for _, m := range ms {
		versions = append(versions, m.Version)
		assert.NotEmpty(t, m.Description, m.Version)
		assert.NotEmpty(t, m.Statements(), m.Version)
	}
	assert.Equal(t, []string{"v0_create_trips_raw", "v1_add_summary_table", "v2_add_pickup_index"}, versions)
	assert.Equal(t, "add daily_fare_summary table", ms[1].Description)
	assert.Contains(t, ms[0].SQL, schema.TripsTable)
}

func TestStatements(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"single", "CREATE TABLE a (x INT);", []string{"CREATE TABLE a (x INT)"}},
		{"no trailing semicolon", "SELECT 1", []string{"SELECT 1"}},
		{"comments dropped", "-- description: d\n-- note; with semicolon\nSELECT 1;\n  -- indented\nSELECT 2;", []string{"SELECT 1", "SELECT 2"}},
		{"blank statements", ";;\n;SELECT 1;;", []string{"SELECT 1"}},
		{"only comments", "-- nothing here\n", nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Migration{SQL: tt.sql}.Statements())
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	_, err := Load(fstest.MapFS{})
	assert.Error(t, err)

	_, err = Load(fstest.MapFS{"v0.sql": {Data: []byte("-- description: empty\n")}})
	assert.Error(t, err)
}

func TestLoad_OrderAndDescription(t *testing.T) {
	t.Parallel()
	ms, err := Load(fstest.MapFS{
		"v2.sql": {Data: []byte("SELECT 2;")},
		"v1.sql": {Data: []byte("--   description:   first one  \nSELECT 1;")},
		"x.txt":  {Data: []byte("ignored")},
	})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "v1", ms[0].Version)
	assert.Equal(t, "first one", ms[0].Description)
	assert.Equal(t, "v2", ms[1].Version)
	assert.Empty(t, ms[1].Description)
}

func TestLoad_NumericVersionOrder(t *testing.T) {
	t.Parallel()
	ms, err := Load(fstest.MapFS{
		"v10_late.sql":  {Data: []byte("SELECT 10;")},
		"v2_middle.sql": {Data: []byte("SELECT 2;")},
		"v1_first.sql":  {Data: []byte("SELECT 1;")},
		"seed.sql":      {Data: []byte("SELECT 0;")},
	})
	require.NoError(t, err)

	var got []string
	for _, m := range ms {
		got = append(got, m.Version)
	}
	assert.Equal(t, []string{"v1_first", "v2_middle", "v10_late", "seed"}, got)
}

func TestVersionLess(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b string
		want bool
	}{
		{"v2_x", "v10_y", true},
		{"v10_y", "v2_x", false},
		{"v1_a", "v1_b", true},
		{"v9", "other", true},
		{"other", "v9", false},
		{"alpha", "beta", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, versionLess(tt.a, tt.b), "%s < %s", tt.a, tt.b)
	}
}

func TestApply(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, db := newMigrator(t, testFS)

	ran, err := m.Apply(ctx, "v0_create_trips", "")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, tableExists(t, db, "trips"))

	ran, err = m.Apply(ctx, "v0_create_trips", "")
	require.NoError(t, err)
	assert.False(t, ran, "second apply is a no-op")

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "v0_create_trips", applied[0].Version)
	assert.Equal(t, "create trips", applied[0].Description)
	assert.NotEmpty(t, applied[0].AppliedAt)
}

func TestApply_DescriptionOverride(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, _ := newMigrator(t, testFS)

	_, err := m.Apply(ctx, "v1_add_summary", "hand written")
	require.NoError(t, err)
	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "hand written", applied[0].Description)
}

func TestApply_UnknownVersion(t *testing.T) {
	t.Parallel()
	m, _ := newMigrator(t, testFS)
	_, err := m.Apply(context.Background(), "v9_nope", "")
	assert.True(t, errors.Is(err, ErrUnknownVersion))
}

func TestApply_RollsBackOnFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, db := newMigrator(t, fstest.MapFS{
		"v0_broken.sql": {Data: []byte("CREATE TABLE half (x INT);\nCREATE TABLE half (x INT);\n")},
	})

	ran, err := m.Apply(ctx, "v0_broken", "")
	require.Error(t, err)
	assert.False(t, ran)
	assert.Contains(t, err.Error(), "statement 2")
	assert.False(t, tableExists(t, db, "half"), "first statement rolled back")

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestApplyPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, db := newMigrator(t, testFS)

	_, err := m.Apply(ctx, "v0_create_trips", "")
	require.NoError(t, err)

	ran, err := m.ApplyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1_add_summary"}, ran)
	assert.True(t, tableExists(t, db, "summary"))
	assert.True(t, tableExists(t, db, "idx_summary_day"))

	ran, err = m.ApplyPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, ran)
}

func TestApplyPending_StopsAtFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, _ := newMigrator(t, fstest.MapFS{
		"v0_ok.sql":    {Data: []byte("CREATE TABLE ok (x INT);")},
		"v1_bad.sql":   {Data: []byte("CREATE TABLE ok (x INT);")},
		"v2_never.sql": {Data: []byte("CREATE TABLE never (x INT);")},
	})

	ran, err := m.ApplyPending(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"v0_ok"}, ran)

	st, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, st, 3)
	assert.True(t, st[0].Applied)
	assert.False(t, st[1].Applied)
	assert.False(t, st[2].Applied)
}

func TestStatus_IncludesUnknownRecorded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, db := newMigrator(t, testFS)

	require.NoError(t, m.EnsureVersionTable(ctx))
	_, err := db.ExecContext(ctx, "INSERT INTO "+schema.VersionsTable+" (version, description) VALUES (?, ?)", "v5_manual", "applied by hand")
	require.NoError(t, err)

	st, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, st, 3)
	assert.Equal(t, "v0_create_trips", st[0].Version)
	assert.False(t, st[0].Applied)
	assert.Equal(t, "v5_manual", st[2].Version)
	assert.True(t, st[2].Applied)
	assert.Equal(t, "applied by hand", st[2].Description)
}

func TestStatus_ReportsRecordedDescription(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, _ := newMigrator(t, testFS)

	_, err := m.Apply(ctx, "v0_create_trips", "hand written")
	require.NoError(t, err)

	st, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, st, 2)
	assert.True(t, st[0].Applied)
	assert.Equal(t, "hand written", st[0].Description)
	assert.False(t, st[1].Applied)
	assert.Equal(t, "add summary", st[1].Description)
}
