package config

import (
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path names the environment variable the finding refers to.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate lints a Config. It does not mutate c.
func Validate(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ETL_JOB",
			Message:  "job must not be empty; it labels metrics and log lines",
		})
	}
	issues = append(issues, validateDB(c.DB)...)
	issues = append(issues, validateMetrics(c.Metrics)...)

	switch strings.ToLower(c.LogFormat) {
	case "", "json", "console":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "LOG_FORMAT",
			Message:  fmt.Sprintf("unknown log format %q (want json or console)", c.LogFormat),
		})
	}

	return issues
}

func validateDB(d DBConfig) []Issue {
	var issues []Issue

	switch d.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "DB_DRIVER",
			Message:  fmt.Sprintf("unsupported driver %q (want mysql, postgres or sqlite)", d.Driver),
		})
	}

	// An explicit DSN replaces the individual fields.
	if d.DSN != "" {
		return issues
	}

	if strings.TrimSpace(d.Name) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "DB_NAME",
			Message:  "database name must not be empty",
		})
	}
	if d.Driver == DriverSQLite {
		return issues
	}

	if strings.TrimSpace(d.Host) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "DB_HOST",
			Message:  "database host must not be empty",
		})
	}
	if d.Port <= 0 || d.Port > 65535 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "DB_PORT",
			Message:  fmt.Sprintf("port %d out of range", d.Port),
		})
	}
	if strings.TrimSpace(d.User) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "DB_USER",
			Message:  "database user must not be empty",
		})
	}
	if d.Password == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "DB_PASS",
			Message:  "empty database password",
		})
	}
	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		u, err := url.Parse(m.PushGatewayURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "PUSHGATEWAY_URL",
				Message:  fmt.Sprintf("invalid Pushgateway URL %q", m.PushGatewayURL),
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "DD_AGENT_ADDR",
				Message:  "datadog backend requires an agent address",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "METRICS_BACKEND",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics disabled", m.Backend),
		})
	}
	return issues
}
