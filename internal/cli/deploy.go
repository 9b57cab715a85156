package cli

import (
	"context"
	"database/sql"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/config"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/metrics"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/migrate"
)

type deployFlags struct {
	version     string
	description string
	all         bool
	status      bool
}

// NewDeployCmd returns the standalone deploy command.
func NewDeployCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := newDeployCmd(g)
	addGlobalFlags(cmd, g)
	return cmd
}

// loadMigrations is replaced in tests with SQLite-compatible migrations.
var loadMigrations = migrate.Builtin

func newDeployCmd(g *globalFlags) *cobra.Command {
	f := &deployFlags{}
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Apply versioned schema changes recorded in schema_versions",
		Long: `Applies embedded schema migrations. Each applied version is recorded in
schema_versions and never runs twice.`,
		Example: `  deploy --status
  deploy --version v1_add_summary_table
  deploy --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDeploy(cmd, g, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.version, "version", "", "Apply one migration version")
	fl.StringVar(&f.description, "description", "", "Override the recorded description (with --version)")
	fl.BoolVar(&f.all, "all", false, "Apply every pending migration")
	fl.BoolVar(&f.status, "status", false, "List migrations and whether they are applied")
	cmd.MarkFlagsMutuallyExclusive("version", "all", "status")
	cmd.MarkFlagsOneRequired("version", "all", "status")
	return cmd
}

// sqlDriverName maps DB_DRIVER to a database/sql driver. Migrations use '?'
// placeholders, which rules out postgres.
func sqlDriverName(driver string) (string, error) {
	switch driver {
	case config.DriverMySQL:
		return "mysql", nil
	case config.DriverSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("%w: deploy does not support DB_DRIVER=%q", ErrInvalidConfig, driver)
	}
}

func (a *app) openSQL(ctx context.Context) (*sql.DB, error) {
	name, err := sqlDriverName(a.cfg.DB.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := a.cfg.DB.ConnString()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionFailed, a.cfg.DB.Redacted(), err)
	}
	return db, nil
}

func runDeploy(cmd *cobra.Command, g *globalFlags, f *deployFlags) error {
	if f.description != "" && f.version == "" {
		return fmt.Errorf("%w: --description requires --version", ErrUsage)
	}
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	ms, err := loadMigrations()
	if err != nil {
		return err
	}
	db, err := a.openSQL(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	m := migrate.New(db, ms, a.logger)
	out := cmd.OutOrStdout()
	start := time.Now()

	switch {
	case f.status:
		st, err := m.Status(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tDESCRIPTION")
		for _, e := range st {
			state := "pending"
			if e.Applied {
				state = "applied"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Version, state, e.AppliedAt, e.Description)
		}
		return tw.Flush()

	case f.all:
		ran, err := m.ApplyPending(ctx)
		metrics.RecordStep(a.cfg.Job, "deploy", err, time.Since(start))
		for _, v := range ran {
			fmt.Fprintf(out, "applied %s\n", v)
		}
		if err != nil {
			return err
		}
		if len(ran) == 0 {
			fmt.Fprintln(out, "nothing to apply")
		}
		return nil

	default:
		ran, err := m.Apply(ctx, f.version, f.description)
		metrics.RecordStep(a.cfg.Job, "deploy", err, time.Since(start))
		if err != nil {
			return err
		}
		if ran {
			fmt.Fprintf(out, "applied %s\n", f.version)
		} else {
			fmt.Fprintf(out, "%s already applied\n", f.version)
		}
		return nil
	}
}
