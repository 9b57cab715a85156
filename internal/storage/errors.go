package storage

import (
	"context"
	"errors"
	"fmt"
)

// TransientLoadError is returned when a batch still fails with a transient
// error after every attempt.
type TransientLoadError struct {
	Batch    int
	Attempts int
	Err      error
}

func (e *TransientLoadError) Error() string {
	return fmt.Sprintf("batch %d: gave up after %d attempts: %v", e.Batch, e.Attempts, e.Err)
}

func (e *TransientLoadError) Unwrap() error { return e.Err }

// SchemaError reports a missing or unusable target table. It is fatal before
// any row is loaded.
type SchemaError struct {
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: table %s: %v", e.Table, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ErrTableMissing is wrapped by SchemaError when the table does not exist.
var ErrTableMissing = errors.New("does not exist")

// RequireTable returns a *SchemaError unless table exists.
func RequireTable(ctx context.Context, repo Repository, table string) error {
	ok, err := repo.TableExists(ctx, table)
	if err != nil {
		return &SchemaError{Table: table, Err: err}
	}
	if !ok {
		return &SchemaError{Table: table, Err: ErrTableMissing}
	}
	return nil
}
