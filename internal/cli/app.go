package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/config"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/logging"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/metrics"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/metrics/datadog"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/metrics/prompush"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
	_ "github.com/Altaf-Khan-Jk/Database-Automation/internal/storage/all"
)

// globalFlags are shared by every command.
type globalFlags struct {
	envFiles []string
	verbose  bool
}

func addGlobalFlags(cmd *cobra.Command, g *globalFlags) {
	cmd.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", nil, "Load environment from these files (default ./.env when present)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
}

// app carries the per-process state built from the environment.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

// newApp loads .env files, reads and validates the configuration, builds the
// logger and installs the metrics backend.
func newApp(g *globalFlags) (*app, error) {
	if err := config.LoadEnvFiles(g.envFiles...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	issues := config.Validate(cfg)
	if config.HasErrors(issues) {
		var errs []error
		for _, iss := range issues {
			if iss.Severity == config.SeverityError {
				errs = append(errs, iss)
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	logger, err := logging.New(logging.Options{Verbose: g.verbose, Format: cfg.LogFormat})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, iss := range issues {
		logger.Warn("config: "+iss.Message, zap.String("var", iss.Path))
	}

	a := &app{cfg: cfg, logger: logger.With(zap.String("job", cfg.Job))}
	if err := a.installMetrics(); err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func (a *app) installMetrics() error {
	m := a.cfg.Metrics
	switch m.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(a.cfg.Job, m.PushGatewayURL)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		metrics.SetBackend(b)
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       m.DatadogAddr,
			GlobalTags: []string{"job:" + a.cfg.Job},
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		metrics.SetBackend(b)
	default:
		return nil
	}
	a.logger.Debug("metrics: backend installed", zap.String("backend", m.Backend))
	return nil
}

// close flushes metrics and the logger.
func (a *app) close() {
	if err := metrics.Flush(); err != nil {
		a.logger.Warn("metrics: flush", zap.Error(err))
	}
	metrics.Reset()
	_ = a.logger.Sync()
}

// openRepo connects to the configured database.
func (a *app) openRepo(ctx context.Context, table string) (storage.Repository, error) {
	dsn, err := a.cfg.DB.ConnString()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	repo, err := storage.New(ctx, storage.Config{Kind: a.cfg.DB.Driver, DSN: dsn, Table: table})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionFailed, a.cfg.DB.Redacted(), err)
	}
	a.logger.Info("db: connected", zap.String("driver", a.cfg.DB.Driver), zap.String("dsn", a.cfg.DB.Redacted()))
	return repo, nil
}
