package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/backup"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/config"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/metrics"
)

type backupFlags struct {
	outDir   string
	keep     int
	compress string
	table    string
}

// NewBackupCmd returns the standalone backup command.
func NewBackupCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := newBackupCmd(g)
	addGlobalFlags(cmd, g)
	return cmd
}

func newBackupCmd(g *globalFlags) *cobra.Command {
	f := &backupFlags{}
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Dump the database with mysqldump and prune old backups",
		Long: `Runs mysqldump against the configured MySQL database and writes
<outdir>/<db>_backup_<UTC timestamp>.sql, optionally compressed.
Only the newest --keep backups are retained.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			comp, err := backup.ParseCompression(f.compress)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUsage, err)
			}
			if f.keep <= 0 {
				return fmt.Errorf("%w: --keep must be positive, got %d", ErrUsage, f.keep)
			}
			return runBackup(cmd, g, f, comp)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.outDir, "outdir", "backups", "Directory receiving backup files")
	fl.IntVar(&f.keep, "keep", backup.DefaultKeep, "Number of backups to retain")
	fl.StringVar(&f.compress, "compress", string(backup.CompressNone), "Compression: none, gzip or zstd")
	fl.StringVar(&f.table, "table", "", "Dump only this table")
	return cmd
}

func runBackup(cmd *cobra.Command, g *globalFlags, f *backupFlags, comp backup.Compression) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	db := a.cfg.DB
	if db.Driver != config.DriverMySQL {
		return fmt.Errorf("%w: backup requires DB_DRIVER=mysql, got %q", ErrInvalidConfig, db.Driver)
	}

	b, err := backup.New(backup.Config{
		DumpPath: a.cfg.Backup.DumpPath,
		Host:     db.Host,
		Port:     db.Port,
		User:     db.User,
		Password: db.Password,
		Database: db.Name,
		Table:    f.table,
		OutDir:   f.outDir,
		Keep:     f.keep,
		Compress: comp,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	start := time.Now()
	res, err := b.Run(ctx)
	metrics.RecordStep(a.cfg.Job, "backup", err, time.Since(start))
	if err != nil {
		return err
	}
	a.logger.Info("backup: done", zap.String("path", res.Path), zap.Int("pruned", len(res.Removed)))
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", res.Path, res.Size)
	return nil
}
