// Command ephvault manages ephemeral delegated trading vaults on a local
// SQLite ledger.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ephvault/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.WasReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
