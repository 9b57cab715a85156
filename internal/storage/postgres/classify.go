package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
)

// SQLSTATE codes outside the fully transient classes.
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeLockNotAvailable     = "55P03"
)

// isTransient classifies pg errors by SQLSTATE class: 08 connection
// exception, 53 insufficient resources and 57 operator intervention are
// retried, as are serialization failures, deadlocks and lock timeouts.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		for _, class := range []string{"08", "53", "57"} {
			if strings.HasPrefix(code, class) {
				return true
			}
		}
		switch code {
		case pgCodeSerializationFailure, pgCodeDeadlockDetected, pgCodeLockNotAvailable:
			return true
		}
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	return storage.IsNetworkTransient(err)
}
