package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(cli.ExitGeneralError)
		}
	}()

	os.Exit(cli.Main(cli.NewBackupCmd()))
}
