package storage

import (
	"context"
	"fmt"
	"sync"
)

// DDLBootstrapper creates the trips table for one backend via repo.Exec.
type DDLBootstrapper func(ctx context.Context, repo Repository, table string) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the bootstrapper for kind. Backends
// call it from init.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTripsTable creates table with the trips layout unless it exists.
func EnsureTripsTable(ctx context.Context, kind string, repo Repository, table string) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	if err := fn(ctx, repo, table); err != nil {
		return &SchemaError{Table: table, Err: err}
	}
	return nil
}
