// Command ghfetch enumerates and fetches files matching a GitHub code search.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/ghfetch/internal/adapters/driving/cli"
	"github.com/custodia-labs/ghfetch/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	err := cli.Execute(context.Background(), version, openServices)
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
