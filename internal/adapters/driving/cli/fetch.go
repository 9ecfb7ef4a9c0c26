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
	"github.com/custodia-labs/ghfetch/internal/core/ports/driving"
	"github.com/custodia-labs/ghfetch/internal/core/services"
)

// fetchFlags are shared by the content, metadata and history commands.
type fetchFlags struct {
	db         string
	contentDir string
	graphql    bool
	batchSize  int
	skipCache  bool
}

var (
	contentFlags  fetchFlags
	metadataFlags fetchFlags
	historyFlags  fetchFlags
)

var fetchFileContentCmd = &cobra.Command{
	Use:   "fetch-file-content",
	Short: "Download the content of every discovered file",
	Long: `Downloads every discovered file without a content status into the
content directory, mirroring the GitHub URL layout. Files already on disk
are recorded without a request. With --graphql, files are fetched in
batches over the GraphQL API; truncated blobs fall back to REST.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runFetch(cmd, &contentFlags, func(s *Services) driving.FetchService { return s.Content })
	},
}

var fetchRepoMetadataCmd = &cobra.Command{
	Use:   "fetch-repo-metadata",
	Short: "Fetch metadata for every repository with discovered files",
	Long: `Fetches stars, forks, watchers, language, topics, timestamps, default
branch, license and description for every repository that has discovered
files but no metadata yet.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runFetch(cmd, &metadataFlags, func(s *Services) driving.FetchService { return s.Metadata })
	},
}

var fetchFileHistoryCmd = &cobra.Command{
	Use:   "fetch-file-history",
	Short: "Fetch recent commit history for every discovered file",
	Long: `Fetches up to 100 recent commits touching each discovered file that has
no history yet. Each commit is stored as a short SHA, author, date and the
first line of its message.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runFetch(cmd, &historyFlags, func(s *Services) driving.FetchService { return s.History })
	},
}

func init() {
	addFetchFlags(fetchFileContentCmd, &contentFlags, services.DefaultContentBatchSize)
	fetchFileContentCmd.Flags().StringVar(&contentFlags.contentDir, "content-dir", "",
		"content directory (default <output-dir>/content)")
	addFetchFlags(fetchRepoMetadataCmd, &metadataFlags, services.DefaultMetadataBatchSize)
	addFetchFlags(fetchFileHistoryCmd, &historyFlags, services.DefaultHistoryBatchSize)

	rootCmd.AddCommand(fetchFileContentCmd, fetchRepoMetadataCmd, fetchFileHistoryCmd)
}

func addFetchFlags(cmd *cobra.Command, f *fetchFlags, batchSize int) {
	cmd.Flags().StringVar(&f.db, "db", "", "database path (default <output-dir>/files.db)")
	cmd.Flags().BoolVar(&f.graphql, "graphql", false, "fetch in batches over the GraphQL API")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", batchSize, "items per GraphQL query (requires --graphql)")
	cmd.Flags().BoolVar(&f.skipCache, "skip-cache", false, "ignore cached responses")
}

func runFetch(cmd *cobra.Command, f *fetchFlags, pick func(*Services) driving.FetchService) error {
	if f.batchSize <= 0 {
		return fmt.Errorf("%w: --batch-size must be positive", domain.ErrInvalidInput)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := Options{Store: true, DBPath: f.db, SkipCache: f.skipCache}
	if f == &contentFlags {
		opts.ContentDir = f.contentDir
		if opts.ContentDir == "" {
			opts.ContentDir = cfg.ContentDir()
		}
	}

	svc, err := openServices(ctx, opts)
	if err != nil {
		return err
	}
	defer svc.close()

	fetcher := pick(svc)
	if fetcher == nil {
		return errors.New(cmd.Name() + " service not configured")
	}

	var stats *domain.FetchStats
	err = runWithProgress(ctx, cmd, cmd.Name(), fetcher.Progress, svc, func(ctx context.Context) error {
		var err error
		stats, err = fetcher.Fetch(ctx, domain.FetchOptions{Batched: f.graphql, BatchSize: f.batchSize})
		return err
	})

	if stats != nil {
		printFetchStats(cmd, stats, f.graphql)
	}
	printClientStats(cmd, svc.stats())

	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	return nil
}

func printFetchStats(cmd *cobra.Command, s *domain.FetchStats, batched bool) {
	cmd.Printf("Done: %d fetched, %d errors", s.Fetched, s.Errors)
	if s.Skipped > 0 {
		cmd.Printf(", %d already on disk", s.Skipped)
	}
	if s.NotFound > 0 {
		cmd.Printf(", %d not found", s.NotFound)
	}
	if batched {
		cmd.Printf(", %d REST fallback, %d queries", s.Fallback, s.Queries)
	}
	cmd.Println()
}
