package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchHitsDB   string
	searchHitsJSON bool
)

var searchHitsCmd = &cobra.Command{
	Use:   "search-hits",
	Short: "List files returned for more than one size range",
	Long: `Reports files the search service returned under more than one size
range. A file seen under overlapping or disjoint ranges points at size
reporting inconsistencies in the search index.`,
	Args: cobra.NoArgs,
	RunE: runSearchHits,
}

func init() {
	searchHitsCmd.Flags().StringVar(&searchHitsDB, "db", "", "database path (default <output-dir>/files.db)")
	searchHitsCmd.Flags().BoolVar(&searchHitsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(searchHitsCmd)
}

func runSearchHits(cmd *cobra.Command, _ []string) error {
	svc, err := openServices(cmd.Context(), Options{Store: true, DBPath: searchHitsDB})
	if err != nil {
		return err
	}
	defer svc.close()
	if svc.Audit == nil {
		return errors.New("audit service not configured")
	}

	hits, err := svc.Audit.MultiRangeHits(cmd.Context())
	if err != nil {
		return fmt.Errorf("search hits: %w", err)
	}

	if searchHitsJSON {
		type rangeJSON struct {
			Min int64 `json:"min"`
			Max int64 `json:"max"`
		}
		type hitJSON struct {
			URL    string      `json:"url"`
			Ranges []rangeJSON `json:"ranges"`
		}
		out := make([]hitJSON, len(hits))
		for i, h := range hits {
			out[i] = hitJSON{URL: h.URL, Ranges: make([]rangeJSON, len(h.Ranges))}
			for j, r := range h.Ranges {
				out[i].Ranges[j] = rangeJSON{Min: r.Min, Max: r.Max}
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if len(hits) == 0 {
		cmd.Println("No files were returned for more than one size range.")
		return nil
	}
	for _, h := range hits {
		ranges := make([]string, len(h.Ranges))
		for i, r := range h.Ranges {
			ranges[i] = fmt.Sprintf("%d..%d", r.Min, r.Max)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", len(h.Ranges), h.URL, strings.Join(ranges, ","))
	}
	return nil
}
