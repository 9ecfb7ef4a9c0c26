package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

var (
	apiParams    []string
	apiMethod    string
	apiSkipCache bool
	apiPaginate  bool
	apiGraphQL   bool
	apiQuery     string
)

var apiCmd = &cobra.Command{
	Use:   "api [endpoint]",
	Short: "Make a cached GitHub API call",
	Long: `Calls a REST endpoint (e.g. repos/owner/repo/contents/path) and prints
the JSON response body. GET responses are cached like every other request.
With --graphql, the --query string (or the positional argument) is sent to
the GraphQL API instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAPI,
}

func init() {
	apiCmd.Flags().StringArrayVar(&apiParams, "param", nil, "query parameter KEY=VALUE (repeatable)")
	apiCmd.Flags().StringVar(&apiMethod, "method", "GET", "HTTP method")
	apiCmd.Flags().BoolVar(&apiSkipCache, "skip-cache", false, "ignore cached responses")
	apiCmd.Flags().BoolVar(&apiPaginate, "paginate", false, "follow Link headers and print every page")
	apiCmd.Flags().BoolVar(&apiGraphQL, "graphql", false, "send a GraphQL query")
	apiCmd.Flags().StringVar(&apiQuery, "query", "", "GraphQL query string (requires --graphql)")
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	svc, err := openServices(cmd.Context(), Options{SkipCache: apiSkipCache})
	if err != nil {
		return err
	}
	defer svc.close()
	if svc.API == nil {
		return errors.New("api service not configured")
	}

	if apiGraphQL {
		query := apiQuery
		if query == "" && len(args) > 0 {
			query = args[0]
		}
		if query == "" {
			return fmt.Errorf("%w: --graphql needs --query", domain.ErrInvalidInput)
		}
		data, err := svc.API.GraphQL(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("graphql: %w", err)
		}
		return writeIndented(cmd, data)
	}

	if len(args) == 0 {
		return fmt.Errorf("%w: endpoint required", domain.ErrInvalidInput)
	}
	params, err := parseParams(apiParams)
	if err != nil {
		return err
	}

	req := domain.APIRequest{Method: strings.ToUpper(apiMethod), Endpoint: args[0], Params: params}
	responses, err := svc.API.Call(cmd.Context(), req, apiPaginate)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if len(responses) == 0 {
		return errors.New("api: no response")
	}
	if !apiPaginate {
		return writeIndented(cmd, responses[0].Body)
	}
	return writeIndented(cmd, mergePages(responses))
}

func parseParams(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(raw))
	for _, p := range raw {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: --param %q is not KEY=VALUE", domain.ErrInvalidInput, p)
		}
		params[k] = v
	}
	return params, nil
}

// mergePages concatenates pages whose bodies are all JSON arrays and
// otherwise returns the bodies as an array.
func mergePages(responses []*domain.APIResponse) json.RawMessage {
	var merged []json.RawMessage
	for _, r := range responses {
		var items []json.RawMessage
		if err := json.Unmarshal(r.Body, &items); err != nil {
			merged = nil
			break
		}
		merged = append(merged, items...)
	}
	if merged == nil {
		merged = make([]json.RawMessage, len(responses))
		for i, r := range responses {
			merged[i] = r.Body
		}
	}
	out, _ := json.Marshal(merged)
	return out
}

func writeIndented(cmd *cobra.Command, data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("formatting response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := cmd.OutOrStdout().Write(buf.Bytes())
	return err
}
