/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the reconciliation engine. Subcommands:
    serve   Run the HTTP API with graceful shutdown
    stats   Print the financial figures as JSON and exit

CONFIGURATION:
  --config PATH   optional TOML file; see config/config.go for layering
                  and the REPLEDGER_* environment overrides

EXAMPLES:
  # Run with a file database
  REPLEDGER_SQLITE_PATH=./data/repledger.db repledger serve

  # Run with the in-memory store
  REPLEDGER_STORE=memory repledger serve --port 3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration layers
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
