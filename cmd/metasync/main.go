// Command metasync reconciles pending exports and stages corrective exports
// for drift against a SQLite state database.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/metasync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Subcommands report their own errors; flag and argument errors
		// from cobra are printed here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
