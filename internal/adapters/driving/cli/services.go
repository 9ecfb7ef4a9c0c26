package cli

import (
	"context"

	"github.com/custodia-labs/ghfetch/internal/config"
	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driving"
)

// Options selects what a command needs opened.
type Options struct {
	Config *config.Config

	// Store opens the database at DBPath.
	Store  bool
	DBPath string

	// ContentDir, when set, is where fetched content is written.
	ContentDir string

	// SkipCache disables cache reads. Fresh responses are still cached.
	SkipCache bool
}

// Services holds what one command invocation uses. Services that need the
// database are nil unless Options.Store was set.
type Services struct {
	Discovery driving.DiscoveryService
	Content   driving.FetchService
	Metadata  driving.FetchService
	History   driving.FetchService
	API       driving.APIService
	Audit     driving.AuditService

	// ClientStats reports request counters per client name.
	ClientStats func() map[string]domain.ClientStats

	// Close releases the database and flushes logs.
	Close func() error
}

// ServiceFactory opens the services for one command invocation.
type ServiceFactory func(ctx context.Context, opts Options) (*Services, error)

func (s *Services) close() {
	if s.Close != nil {
		_ = s.Close()
	}
}

func (s *Services) stats() map[string]domain.ClientStats {
	if s.ClientStats == nil {
		return nil
	}
	return s.ClientStats()
}
