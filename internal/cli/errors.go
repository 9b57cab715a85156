package cli

import (
	"errors"
	"strings"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/backup"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/datasource"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/migrate"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/parser/csv"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
)

// Process exit codes.
const (
	ExitSuccess         = 0  // Run completed
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // Invalid arguments or flags
	ExitConfigError     = 10 // Invalid configuration
	ExitConnectionError = 11 // Database connection failed
	ExitFetchError      = 12 // Source unreachable or unreadable
	ExitSchemaError     = 13 // Target table missing or unusable
	ExitPartialLoad     = 14 // Some batches failed (--fail-on-batch-error)
)

var (
	// ErrInvalidConfig indicates the environment or flags are invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the database could not be reached.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrPartialLoad indicates a run finished with failed batches or
	// skipped chunks.
	ErrPartialLoad = errors.New("partial load")

	// ErrUsage indicates invalid flag values.
	ErrUsage = errors.New("usage")
)

// usagePatterns are the messages cobra and pflag produce for bad invocations.
var usagePatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"flag needs an argument",
	"invalid argument",
	"required flag",
	"accepts ",
	"if any flags in the group",
	"at least one of the flags in the group",
}

// ExitCodeForError returns the exit code for err. Nil maps to ExitSuccess
// and unclassified errors to ExitGeneralError.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		schemaErr *storage.SchemaError
		fetchErr  *datasource.FetchError
	)
	switch {
	case errors.Is(err, ErrUsage), errors.Is(err, migrate.ErrUnknownVersion):
		return ExitUsageError
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, backup.ErrDumpNotFound):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.As(err, &schemaErr):
		return ExitSchemaError
	case errors.As(err, &fetchErr), csv.IsHeaderError(err):
		return ExitFetchError
	case errors.Is(err, ErrPartialLoad):
		return ExitPartialLoad
	}

	msg := err.Error()
	for _, p := range usagePatterns {
		if strings.Contains(msg, p) {
			return ExitUsageError
		}
	}
	return ExitGeneralError
}
