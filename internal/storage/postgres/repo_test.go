package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
)

func TestPgFQN(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"trips_raw":        `"trips_raw"`,
		"public.trips_raw": `"public"."trips_raw"`,
		`we"ird`:           `"we""ird"`,
	}
	for in, want := range cases {
		if got := pgFQN(in); got != want {
			t.Errorf("pgFQN(%q) = %s; want %s", in, got, want)
		}
	}
}

func TestSplitFQN(t *testing.T) {
	t.Parallel()
	got := splitFQN("public.trips_raw")
	want := pgx.Identifier{"public", "trips_raw"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("splitFQN = %v; want %v", got, want)
	}
	if got := splitFQN("trips_raw"); len(got) != 1 {
		t.Fatalf("splitFQN single = %v", got)
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"wrapped deadlock", fmt.Errorf("copy: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"econnreset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"plain", errors.New("syntax"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := isTransient(tc.err); got != tc.want {
				t.Fatalf("isTransient(%v) = %v; want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestCreateTripsSQL(t *testing.T) {
	t.Parallel()
	stmt, err := createTripsSQL("public.trips_raw")
	if err != nil {
		t.Fatalf("createTripsSQL: %v", err)
	}
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "public"."trips_raw"`,
		`"id" BIGINT GENERATED ALWAYS AS IDENTITY NOT NULL`,
		`"pickup_datetime" TIMESTAMPTZ NOT NULL`,
		`"fare_amount" DOUBLE PRECISION`,
		`"store_and_fwd_flag" TEXT`,
		`PRIMARY KEY ("id")`,
	} {
		if !strings.Contains(stmt, want) {
			t.Errorf("DDL missing %q:\n%s", want, stmt)
		}
	}
}

// These tests swap the package-level newRepository hook and must not run in
// parallel.

func TestFactory_RegistersPostgres(t *testing.T) {
	var got Config
	closed := false
	orig := newRepository
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{cfg: cfg}, func() { closed = true }, nil
	}
	t.Cleanup(func() { newRepository = orig })

	repo, err := storage.New(context.Background(), storage.Config{Kind: "postgres", DSN: "postgres://x/db", Table: "trips_raw"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if got.DSN != "postgres://x/db" || got.Table != "trips_raw" {
		t.Fatalf("config not forwarded: %+v", got)
	}
	repo.Close()
	if !closed {
		t.Fatalf("Close did not call closeFn")
	}
}

func TestFactory_PropagatesError(t *testing.T) {
	want := errors.New("dial failed")
	orig := newRepository
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		return nil, nil, want
	}
	t.Cleanup(func() { newRepository = orig })

	if _, err := storage.New(context.Background(), storage.Config{Kind: "postgres"}); !errors.Is(err, want) {
		t.Fatalf("err = %v; want %v", err, want)
	}
}

func TestNewRepository_Validation(t *testing.T) {
	ctx := context.Background()
	if _, _, err := NewRepository(ctx, Config{Table: "t"}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
	if _, _, err := NewRepository(ctx, Config{DSN: "postgres://x/db"}); err == nil {
		t.Fatalf("expected error for empty table")
	}
}
