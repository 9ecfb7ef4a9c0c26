package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

// resetFlags restores every flag to its default so tests do not leak
// values into each other through the package-level command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args against factory and returns
// everything written to stdout and stderr.
func execute(t *testing.T, factory ServiceFactory, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GHFETCH_STATUS_ADDR", "")

	oldFactory, oldCfg := newServices, cfg
	newServices = factory
	t.Cleanup(func() {
		newServices, cfg = oldFactory, oldCfg
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// recordingFactory returns svc and remembers the options it was opened with.
func recordingFactory(svc *Services, got *Options) ServiceFactory {
	return func(_ context.Context, opts Options) (*Services, error) {
		*got = opts
		return svc, nil
	}
}

type mockDiscovery struct {
	result *domain.ScanResult
	err    error
	query  string
	opts   domain.DiscoveryOptions
}

func (m *mockDiscovery) Discover(_ context.Context, query string, opts domain.DiscoveryOptions) (*domain.ScanResult, error) {
	m.query, m.opts = query, opts
	return m.result, m.err
}

func (m *mockDiscovery) Progress() domain.ProgressSnapshot {
	return domain.ProgressSnapshot{Phase: "scanning"}
}

type mockFetch struct {
	stats *domain.FetchStats
	err   error
	opts  domain.FetchOptions
}

func (m *mockFetch) Fetch(_ context.Context, opts domain.FetchOptions) (*domain.FetchStats, error) {
	m.opts = opts
	return m.stats, m.err
}

func (m *mockFetch) Progress() domain.ProgressSnapshot {
	return domain.ProgressSnapshot{Phase: "fetching"}
}

type mockAPI struct {
	responses []*domain.APIResponse
	req       domain.APIRequest
	paginate  bool
	query     string
}

func (m *mockAPI) Call(_ context.Context, req domain.APIRequest, paginate bool) ([]*domain.APIResponse, error) {
	m.req, m.paginate = req, paginate
	return m.responses, nil
}

func (m *mockAPI) GraphQL(_ context.Context, query string) (json.RawMessage, error) {
	m.query = query
	return json.RawMessage(`{"viewer":{"login":"octocat"}}`), nil
}

type mockAudit struct {
	hits []domain.MultiRangeHit
}

func (m *mockAudit) MultiRangeHits(context.Context) ([]domain.MultiRangeHit, error) {
	return m.hits, nil
}
