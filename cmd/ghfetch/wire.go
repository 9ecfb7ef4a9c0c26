package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/ghfetch/internal/adapters/driven/cache/filecache"
	"github.com/custodia-labs/ghfetch/internal/adapters/driven/storage/contentdir"
	"github.com/custodia-labs/ghfetch/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ghfetch/internal/adapters/driving/cli"
	"github.com/custodia-labs/ghfetch/internal/config"
	"github.com/custodia-labs/ghfetch/internal/connectors/github"
	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/services"
	"github.com/custodia-labs/ghfetch/internal/logger"
)

// openServices builds the clients, stores and services for one command.
func openServices(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	cfg := opts.Config
	if err := cfg.RequireToken(); err != nil {
		return nil, err
	}

	cache, err := openCache(cfg, opts.SkipCache)
	if err != nil {
		return nil, err
	}

	rest, err := github.NewClientWithToken(ctx, cfg.Token, cache, restConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating REST client: %w", err)
	}
	gql, err := github.NewGraphQLClientWithToken(ctx, cfg.Token, cache, graphQLConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating GraphQL client: %w", err)
	}

	svc := &cli.Services{
		API: services.NewAPIService(rest, gql),
		ClientStats: func() map[string]domain.ClientStats {
			return map[string]domain.ClientStats{"rest": rest.Stats(), "graphql": gql.Stats()}
		},
		Close: func() error {
			logger.Debug("cache hits: %d", cache.Hits())
			logger.Sync()
			return nil
		},
	}
	if !opts.Store {
		return svc, nil
	}

	store, err := sqlite.NewStore(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	closeLogs := svc.Close
	svc.Close = func() error {
		return errors.Join(store.Close(), closeLogs())
	}

	svc.Discovery = services.NewDiscoveryService(
		rest, store.FileStore(), store.SearchHitStore(), store.ScanProgressStore(), services.DefaultScanConfig(),
	)
	svc.Metadata = services.NewMetadataService(store.MetadataStore(), rest, gql)
	svc.History = services.NewHistoryService(store.HistoryStore(), rest, gql)
	svc.Audit = services.NewAuditService(store.SearchHitStore())

	if opts.ContentDir != "" {
		content, err := contentdir.New(opts.ContentDir)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		svc.Content = services.NewContentService(store.ContentStatusStore(), content, rest, gql, cfg.Workers)
	}
	return svc, nil
}

func openCache(cfg *config.Config, skipReads bool) (*filecache.Cache, error) {
	dir := cfg.CacheDir
	if dir == "" {
		d, err := filecache.DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	cache, err := filecache.New(dir, cfg.CacheTTL())
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	if skipReads {
		cache = cache.WithReadDisabled()
	}
	return cache, nil
}

func restConfig(cfg *config.Config) github.ClientConfig {
	c := github.DefaultRESTConfig()
	c.RequestsPerSecond = cfg.REST.RequestsPerSecond
	c.MaxRetries = cfg.REST.MaxRetries
	c.Factor = cfg.REST.BackoffFactor
	return c
}

func graphQLConfig(cfg *config.Config) github.ClientConfig {
	c := github.DefaultGraphQLConfig()
	c.RequestsPerSecond = cfg.GraphQL.QueriesPerSecond
	c.MaxRetries = cfg.GraphQL.MaxRetries
	c.Factor = cfg.GraphQL.BackoffFactor
	return c
}
