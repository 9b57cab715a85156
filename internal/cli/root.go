// Package cli wires the ingest, backup and deploy commands.
//
// Every command reads its configuration from the environment (optionally
// seeded from .env files), logs with zap and reports failures through
// ExitCodeForError.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const exitCodesHelp = `
Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  10 - Invalid configuration
  11 - Database connection failed
  12 - Source fetch failed
  13 - Schema error (target table missing)
  14 - Partial load (with --fail-on-batch-error)`

// NewRootCmd returns a command exposing ingest, backup and deploy as
// subcommands.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "tlc",
		Short: "Load NYC TLC trip records into SQL and manage the target schema",
		Long:  "Load NYC TLC trip records into SQL and manage the target schema.\n" + exitCodesHelp,
	}
	addGlobalFlags(root, g)
	root.AddCommand(newIngestCmd(g), newBackupCmd(g), newDeployCmd(g))
	return root
}

// Main executes cmd with os.Args and returns the process exit code.
func Main(cmd *cobra.Command) int {
	return run(context.Background(), cmd, os.Args[1:])
}

func run(ctx context.Context, cmd *cobra.Command, args []string) int {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return ExitCodeForError(err)
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
