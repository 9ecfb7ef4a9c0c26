// Package cli implements the ghfetch command tree with cobra.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ghfetch/internal/config"
	"github.com/custodia-labs/ghfetch/internal/logger"
)

var (
	version = "dev"

	// Global flags.
	outputDir  string
	configPath string
	verbose    bool
	statusAddr string

	// cfg is loaded before any command runs.
	cfg *config.Config

	// newServices opens the services a command uses.
	newServices ServiceFactory
)

var rootCmd = &cobra.Command{
	Use:   "ghfetch",
	Short: "Enumerate and fetch files matching a GitHub code search",
	Long: `ghfetch enumerates every file matching a GitHub code search query,
working around the 1000-result cap by scanning file-size ranges, then
fetches the files' content, repository metadata and commit history.

Responses are cached on disk and progress is checkpointed, so every
command can be interrupted and re-run.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&outputDir, "output-dir", "", `directory for the database and content (default "results")`)
	pf.StringVar(&configPath, "config", "", "config file (default ~/.config/ghfetch/config.toml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&statusAddr, "status-addr", "", "serve live progress on this address, e.g. 127.0.0.1:8089")
}

// Execute runs the root command.
func Execute(ctx context.Context, v string, factory ServiceFactory) error {
	version = v
	newServices = factory
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if cmd == versionCmd {
		return nil
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("output-dir") {
		loaded.OutputDir = outputDir
	}
	if cmd.Flags().Changed("status-addr") {
		loaded.StatusAddr = statusAddr
	}
	if !verbose {
		if err := logger.SetLevel(loaded.LogLevel); err != nil {
			return err
		}
	}
	cfg = loaded
	return nil
}

// openServices resolves default paths and opens the services for one command.
func openServices(ctx context.Context, opts Options) (*Services, error) {
	if newServices == nil {
		return nil, errors.New("services not configured")
	}
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}
	opts.Config = cfg
	if opts.Store && opts.DBPath == "" {
		opts.DBPath = cfg.DBPath()
	}
	svc, err := newServices(ctx, opts)
	if err != nil {
		return nil, err
	}
	return svc, nil
}
