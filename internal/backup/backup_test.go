package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestHelperProcess stands in for mysqldump. It is only active when invoked
// by fakeCommand.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	if strings.Contains(strings.Join(args, " "), "broken_table") {
		fmt.Fprintln(os.Stderr, "mysqldump: Couldn't find table: \"broken_table\"")
		os.Exit(6)
	}
	fmt.Fprintln(os.Stderr, "mysqldump: [Warning] Using a password on the command line interface can be insecure.")
	fmt.Printf("-- args: %s\n", strings.Join(args[1:], " "))
	fmt.Printf("-- pwd: %s\n", os.Getenv("MYSQL_PWD"))
	fmt.Println("CREATE TABLE `trips_raw` (`id` bigint NOT NULL AUTO_INCREMENT);")
	os.Exit(0)
}

func fakeCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

func newTestBackuper(t *testing.T, cfg Config) *Backuper {
	t.Helper()
	if cfg.OutDir == "" {
		cfg.OutDir = t.TempDir()
	}
	if cfg.Database == "" {
		cfg.Database = "nyc_taxi"
	}
	cfg.Host, cfg.Port, cfg.User = "db.local", 3306, "loader"
	b, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	b.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	b.command = fakeCommand
	b.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return b
}

func readAll(t *testing.T, path string, c Compression) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var r io.Reader = f
	switch c {
	case CompressGzip:
		zr, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	case CompressZstd:
		zr, err := zstd.NewReader(f)
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	}
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestRun_WritesDump(t *testing.T) {
	t.Parallel()

	for _, c := range []Compression{CompressNone, CompressGzip, CompressZstd} {
		t.Run(string(c), func(t *testing.T) {
			t.Parallel()
			b := newTestBackuper(t, Config{Password: "s3cret", Compress: c, Table: "trips_raw"})

			res, err := b.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, "nyc_taxi_backup_20240506T070809Z.sql"+c.Ext(), filepath.Base(res.Path))
			assert.Positive(t, res.Size)

			body := readAll(t, res.Path, c)
			assert.Contains(t, body, "CREATE TABLE `trips_raw`")
			assert.Contains(t, body, "-- pwd: s3cret")
			assert.Contains(t, body, "-- args: -h db.local -P 3306 -u loader --single-transaction --quick nyc_taxi trips_raw")
			assert.NotContains(t, strings.Split(body, "\n")[0], "s3cret")
		})
	}
}

func TestRun_FailedDumpLeavesNoFile(t *testing.T) {
	t.Parallel()
	b := newTestBackuper(t, Config{Table: "broken_table"})

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Couldn't find table")

	entries, err := os.ReadDir(b.cfg.OutDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_MissingBinary(t *testing.T) {
	t.Parallel()
	b := newTestBackuper(t, Config{})
	b.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	_, err := b.Run(context.Background())
	require.ErrorIs(t, err, ErrDumpNotFound)

	entries, err := os.ReadDir(b.cfg.OutDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no placeholder file is written")
}

func TestRun_PrunesOldBackups(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{
		"nyc_taxi_backup_20240101T000000Z.sql",
		"nyc_taxi_backup_20240201T000000Z.sql.gz",
		"nyc_taxi_backup_20240301T000000Z.sql",
		"other_backup_20200101T000000Z.sql",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	b := newTestBackuper(t, Config{OutDir: dir, Keep: 3})
	res, err := b.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Removed, 1)
	assert.Equal(t, "nyc_taxi_backup_20240101T000000Z.sql", filepath.Base(res.Removed[0]))

	for _, keep := range []string{
		filepath.Base(res.Path),
		"nyc_taxi_backup_20240301T000000Z.sql",
		"nyc_taxi_backup_20240201T000000Z.sql.gz",
		"other_backup_20200101T000000Z.sql",
		"notes.txt",
	} {
		_, err := os.Stat(filepath.Join(dir, keep))
		assert.NoError(t, err, keep)
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	names := []string{
		"db_backup_20240105T000000Z.sql",
		"db_backup_20240104T000000Z.sql",
		"db_backup_20240103T000000Z.sql",
		"db_backup_20240102T000000Z.sql.zst",
		"db_backup_20240101T000000Z.sql",
		"db_backup_20240106T000000Z.sql.partial",
		"db_backup_garbage.sql",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o600))
	}

	removed, err := Prune(dir, "db", 2)
	require.NoError(t, err)
	got := make([]string, len(removed))
	for i, p := range removed {
		got[i] = filepath.Base(p)
	}
	assert.Equal(t, []string{
		"db_backup_20240103T000000Z.sql",
		"db_backup_20240102T000000Z.sql.zst",
		"db_backup_20240101T000000Z.sql",
	}, got)

	removed, err = Prune(dir, "db", 5)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	_, err := New(Config{}, nil)
	require.Error(t, err)

	_, err = New(Config{Database: "d", Compress: "lz4"}, nil)
	require.Error(t, err)

	b, err := New(Config{Database: "d"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mysqldump", b.cfg.DumpPath)
	assert.Equal(t, DefaultKeep, b.cfg.Keep)
	assert.Equal(t, "backups", b.cfg.OutDir)
}

func TestParseCompression(t *testing.T) {
	t.Parallel()
	tests := map[string]Compression{"": CompressNone, "none": CompressNone, "GZ": CompressGzip, "zstd": CompressZstd, "zst": CompressZstd}
	for in, want := range tests {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCompression("bzip2")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrDumpNotFound))
}
