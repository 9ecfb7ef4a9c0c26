package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

var (
	pathsDB        string
	pathsSkipCache bool
)

var fetchFilePathsCmd = &cobra.Command{
	Use:   "fetch-file-paths <query>",
	Short: "Discover every file matching a code search query",
	Long: `Enumerates every file matching a GitHub code search query by scanning
size ranges small enough to stay under the 1000-result search cap.
Progress is checkpointed per query; an interrupted scan resumes where it
stopped and a completed scan is not repeated unless --skip-cache is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetchFilePaths,
}

func init() {
	fetchFilePathsCmd.Flags().StringVar(&pathsDB, "db", "", "database path (default <output-dir>/files.db)")
	fetchFilePathsCmd.Flags().BoolVar(&pathsSkipCache, "skip-cache", false, "rescan a completed query and ignore cached responses")
	rootCmd.AddCommand(fetchFilePathsCmd)
}

func runFetchFilePaths(cmd *cobra.Command, args []string) error {
	query := args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openServices(ctx, Options{Store: true, DBPath: pathsDB, SkipCache: pathsSkipCache})
	if err != nil {
		return err
	}
	defer svc.close()
	if svc.Discovery == nil {
		return errors.New("discovery service not configured")
	}

	cmd.Printf("Scanning: %s\n", query)

	var result *domain.ScanResult
	err = runWithProgress(ctx, cmd, cmd.Name(), svc.Discovery.Progress, svc, func(ctx context.Context) error {
		var err error
		result, err = svc.Discovery.Discover(ctx, query, domain.DiscoveryOptions{Force: pathsSkipCache})
		return err
	})

	if result != nil {
		switch {
		case result.AlreadyCompleted:
			cmd.Printf("Scan already completed (%d files). Use --skip-cache to rescan.\n", result.Collected)
		default:
			cmd.Printf("Done. Collected %d / %d (%d new, %d buckets)\n",
				result.Collected, result.EstimatedTotal, result.NewFiles, result.Buckets)
			if result.StoppedOnEmpty {
				cmd.Println("Stopped after consecutive empty size ranges; larger files may be missing.")
			}
		}
	}
	printClientStats(cmd, svc.stats())

	if err != nil {
		return fmt.Errorf("fetch file paths: %w", err)
	}
	return nil
}
