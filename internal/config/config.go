// Package config defines the process-wide configuration of the loader.
//
// Configuration comes from environment variables, optionally seeded from a
// .env file. It is loaded once at process start and treated as read-only
// afterwards. Every command (ingest, backup, deploy) shares the same model.
//
// Recognized variables and defaults:
//
//	DB_DRIVER        mysql            (mysql | postgres | sqlite)
//	DB_HOST          localhost
//	DB_PORT          3306
//	DB_USER          root
//	DB_PASS          ""
//	DB_NAME          nyc_taxi
//	DB_DSN           ""               (overrides the DSN built from the fields above)
//	MYSQLDUMP_PATH   mysqldump
//	ETL_JOB          tlc_ingest
//	METRICS_BACKEND  none             (none | pushgateway | datadog)
//	PUSHGATEWAY_URL  http://localhost:9091
//	DD_AGENT_ADDR    127.0.0.1:8125
//	LOG_FORMAT       json             (json | console)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Supported DB_DRIVER values.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the full process configuration.
type Config struct {
	DB      DBConfig
	Backup  BackupConfig
	Metrics MetricsConfig

	// Job labels metrics and log lines for this run.
	Job string
	// LogFormat selects the zap encoder ("json" or "console").
	LogFormat string
}

// DBConfig describes the database connection.
type DBConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// DSN, when set, is used verbatim instead of building one from the fields
	// above. For sqlite it is the database file (or ":memory:").
	DSN string
}

// BackupConfig configures the backup command.
type BackupConfig struct {
	// DumpPath is the mysqldump executable (name or absolute path).
	DumpPath string
}

// MetricsConfig selects and configures the metrics backend.
type MetricsConfig struct {
	Backend        string
	PushGatewayURL string
	DatadogAddr    string
}

// LoadEnvFiles seeds the process environment from .env style files. Existing
// variables are never overwritten. With no arguments it loads ./.env and
// silently ignores its absence.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("load env files %v: %w", paths, err)
	}
	return nil
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from an arbitrary lookup function. Unset variables
// fall back to defaults; malformed numeric values are an error.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok {
			return strings.TrimSpace(v)
		}
		return def
	}

	driver := strings.ToLower(get("DB_DRIVER", DriverMySQL))

	defPort := "3306"
	if driver == DriverPostgres {
		defPort = "5432"
	}
	port, err := strconv.Atoi(get("DB_PORT", defPort))
	if err != nil {
		return Config{}, fmt.Errorf("DB_PORT: %w", err)
	}

	return Config{
		DB: DBConfig{
			Driver: driver,
			Host:   get("DB_HOST", "localhost"),
			Port:   port,
			User:   get("DB_USER", "root"),
			// Passwords may legitimately carry surrounding whitespace.
			Password: rawGet(lookup, "DB_PASS"),
			Name:     get("DB_NAME", "nyc_taxi"),
			DSN:      get("DB_DSN", ""),
		},
		Backup: BackupConfig{
			DumpPath: get("MYSQLDUMP_PATH", "mysqldump"),
		},
		Metrics: MetricsConfig{
			Backend:        strings.ToLower(get("METRICS_BACKEND", "none")),
			PushGatewayURL: get("PUSHGATEWAY_URL", "http://localhost:9091"),
			DatadogAddr:    get("DD_AGENT_ADDR", "127.0.0.1:8125"),
		},
		Job:       get("ETL_JOB", "tlc_ingest"),
		LogFormat: get("LOG_FORMAT", "json"),
	}, nil
}

func rawGet(lookup func(string) (string, bool), key string) string {
	v, _ := lookup(key)
	return v
}

// Addr returns host:port.
func (d DBConfig) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// ConnString returns the driver-specific DSN.
//
// For MySQL the DSN is built with the driver's own Config so that quoting of
// credentials is handled correctly. InterpolateParams is enabled so that a
// whole batch can be sent as one multi-row INSERT without hitting the
// server-side placeholder limit of prepared statements.
func (d DBConfig) ConnString() (string, error) {
	if d.DSN != "" {
		return d.DSN, nil
	}
	switch d.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = d.Addr()
		mc.DBName = d.Name
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.InterpolateParams = true
		mc.Timeout = 10 * time.Second
		mc.ReadTimeout = 5 * time.Minute
		mc.WriteTimeout = 5 * time.Minute
		return mc.FormatDSN(), nil
	case DriverPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   d.Addr(),
			Path:   "/" + d.Name,
		}
		return u.String(), nil
	case DriverSQLite:
		return d.Name + ".db", nil
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER %q", d.Driver)
	}
}

// Redacted returns a DSN that is safe to log.
func (d DBConfig) Redacted() string {
	switch d.Driver {
	case DriverSQLite:
		s, _ := d.ConnString()
		return s
	default:
		return fmt.Sprintf("%s://%s@%s/%s", d.Driver, d.User, d.Addr(), d.Name)
	}
}
