// Package backup produces timestamped logical dumps of the database with
// mysqldump and prunes old ones.
package backup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TimestampLayout is the UTC timestamp embedded in backup file names.
const TimestampLayout = "20060102T150405Z"

// DefaultKeep is the number of backups retained.
const DefaultKeep = 3

// Config describes one backup.
type Config struct {
	// DumpPath is the mysqldump executable (default "mysqldump").
	DumpPath string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	// Table limits the dump to one table.
	Table string

	OutDir   string
	Keep     int
	Compress Compression
}

// Result describes a finished backup.
type Result struct {
	Path    string
	Size    int64
	Removed []string
	Elapsed time.Duration
}

// ErrDumpNotFound is returned when the dump executable cannot be located.
var ErrDumpNotFound = errors.New("mysqldump not found")

// Backuper runs backups. The zero value is not usable; call New.
type Backuper struct {
	cfg    Config
	logger *zap.Logger

	now      func() time.Time
	lookPath func(string) (string, error)
	command  func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// New validates cfg and returns a Backuper.
func New(cfg Config, logger *zap.Logger) (*Backuper, error) {
	if cfg.DumpPath == "" {
		cfg.DumpPath = "mysqldump"
	}
	if cfg.Keep <= 0 {
		cfg.Keep = DefaultKeep
	}
	if cfg.Compress == "" {
		cfg.Compress = CompressNone
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "backups"
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("backup: database name is required")
	}
	if _, err := newWriter(io.Discard, cfg.Compress); err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backuper{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		lookPath: exec.LookPath,
		command:  exec.CommandContext,
	}, nil
}

// args returns the mysqldump argument list. The password is never part of
// it; it travels in MYSQL_PWD.
func (b *Backuper) args() []string {
	a := []string{
		"-h", b.cfg.Host,
		"-P", strconv.Itoa(b.cfg.Port),
		"-u", b.cfg.User,
		"--single-transaction",
		"--quick",
		b.cfg.Database,
	}
	if b.cfg.Table != "" {
		a = append(a, b.cfg.Table)
	}
	return a
}

// FileName returns the backup name for t.
func (b *Backuper) FileName(t time.Time) string {
	return fmt.Sprintf("%s_backup_%s.sql%s", b.cfg.Database, t.UTC().Format(TimestampLayout), b.cfg.Compress.Ext())
}

// Run dumps the database into OutDir, then prunes old backups. A failed dump
// leaves no file behind.
func (b *Backuper) Run(ctx context.Context) (Result, error) {
	start := b.now()
	bin, err := b.lookPath(b.cfg.DumpPath)
	if err != nil {
		return Result{}, fmt.Errorf("backup: %w: %s: %v", ErrDumpNotFound, b.cfg.DumpPath, err)
	}
	if err := os.MkdirAll(b.cfg.OutDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("backup: create outdir: %w", err)
	}

	final := filepath.Join(b.cfg.OutDir, b.FileName(start))
	tmp := final + ".partial"
	b.logger.Info("backup: running dump",
		zap.String("bin", bin),
		zap.String("database", b.cfg.Database),
		zap.String("table", b.cfg.Table),
		zap.String("compress", string(b.cfg.Compress)),
	)

	if err := b.dump(ctx, bin, tmp); err != nil {
		_ = os.Remove(tmp)
		return Result{}, err
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return Result{}, fmt.Errorf("backup: rename: %w", err)
	}
	fi, err := os.Stat(final)
	if err != nil {
		return Result{}, fmt.Errorf("backup: stat: %w", err)
	}
	res := Result{Path: final, Size: fi.Size()}
	b.logger.Info("backup: successful", zap.String("path", final), zap.Int64("bytes", res.Size))

	removed, err := Prune(b.cfg.OutDir, b.cfg.Database, b.cfg.Keep)
	for _, p := range removed {
		b.logger.Info("backup: removed old backup", zap.String("path", p))
	}
	res.Removed = removed
	res.Elapsed = b.now().Sub(start)
	if err != nil {
		b.logger.Warn("backup: prune", zap.Error(err))
	}
	return res, nil
}

func (b *Backuper) dump(ctx context.Context, bin, path string) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("backup: create: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("backup: close: %w", cerr)
		}
	}()
	w, err := newWriter(f, b.cfg.Compress)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	cmd := b.command(ctx, bin, b.args()...)
	cmd.Env = append(cmd.Environ(), "MYSQL_PWD="+b.cfg.Password)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("backup: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("backup: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("backup: start %s: %w", bin, err)
	}

	var tail []string
	var g errgroup.Group
	g.Go(func() error {
		if _, err := io.Copy(w, stdout); err != nil {
			return fmt.Errorf("backup: copy dump output: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			line := sc.Text()
			b.logger.Warn("backup: mysqldump", zap.String("stderr", line))
			if tail = append(tail, line); len(tail) > 5 {
				tail = tail[1:]
			}
		}
		return sc.Err()
	})
	copyErr := g.Wait()
	waitErr := cmd.Wait()

	if waitErr != nil {
		if len(tail) > 0 {
			return fmt.Errorf("backup: mysqldump: %w: %s", waitErr, strings.Join(tail, "; "))
		}
		return fmt.Errorf("backup: mysqldump: %w", waitErr)
	}
	if copyErr != nil {
		return copyErr
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("backup: flush compressor: %w", err)
	}
	return nil
}

// Prune removes all but the newest keep backups of database in dir and
// returns the removed paths. Newness is taken from the timestamp in the file
// name.
func Prune(dir, database string, keep int) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, database+"_backup_*"))
	if err != nil {
		return nil, err
	}
	prefix := database + "_backup_"
	var files []string
	for _, m := range matches {
		base := filepath.Base(m)
		if strings.HasSuffix(base, ".partial") || !strings.Contains(base, ".sql") {
			continue
		}
		if _, err := time.Parse(TimestampLayout, strings.SplitN(strings.TrimPrefix(base, prefix), ".", 2)[0]); err != nil {
			continue
		}
		files = append(files, m)
	}
	if len(files) <= keep {
		return nil, nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	var removed []string
	var errs []error
	for _, old := range files[keep:] {
		if err := os.Remove(old); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, old)
	}
	return removed, errors.Join(errs...)
}
