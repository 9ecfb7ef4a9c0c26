package github

import (
	"context"
	"fmt"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

const metadataEndpoint = "repo_metadata"

type metadataPayload struct {
	domain.RepoMetadata
	sentinel
}

func metadataParams(repoKey string) map[string]any {
	return map[string]any{"repo_key": repoKey}
}

// GetRepoMetadata fetches attributes of the repository "owner/repo".
func (c *Client) GetRepoMetadata(ctx context.Context, repoKey string) (*domain.RepoMetadata, error) {
	owner, repo, err := domain.ParseRepoKey(repoKey)
	if err != nil {
		return nil, err
	}

	payload, err := cachedFetch(c.cache, metadataEndpoint, metadataParams(repoKey), func() (fetched[metadataPayload], error) {
		return c.fetchMetadata(ctx, owner, repo)
	})
	if err != nil {
		return nil, err
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("%s: %w", repoKey, domain.SentinelError(payload.Error))
	}

	md := payload.RepoMetadata
	md.RepoKey = repoKey
	return &md, nil
}

func (c *Client) fetchMetadata(ctx context.Context, owner, repo string) (fetched[metadataPayload], error) {
	var r *gh.Repository
	err := c.call(ctx, "get repo", resourceCore, func(ctx context.Context) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		r, resp, err = c.gh.Repositories.Get(ctx, owner, repo)
		return resp, err
	})
	if err != nil {
		if IsNotFound(err) {
			return fetched[metadataPayload]{
				value:     metadataPayload{sentinel: sentinel{Error: domain.SentinelNotFound}},
				cacheable: true,
			}, nil
		}
		return fetched[metadataPayload]{}, c.wrapError(err, "get repo")
	}

	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}
	return fetched[metadataPayload]{
		value: metadataPayload{RepoMetadata: domain.RepoMetadata{
			Stars:         r.GetStargazersCount(),
			Forks:         r.GetForksCount(),
			Watchers:      r.GetSubscribersCount(),
			Language:      r.GetLanguage(),
			Topics:        topics,
			CreatedAt:     formatTimestamp(r.GetCreatedAt()),
			UpdatedAt:     formatTimestamp(r.GetUpdatedAt()),
			PushedAt:      formatTimestamp(r.GetPushedAt()),
			DefaultBranch: r.GetDefaultBranch(),
			License:       r.GetLicense().GetSPDXID(),
			Description:   r.GetDescription(),
		}},
		cacheable: true,
	}, nil
}

func formatTimestamp(ts gh.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
