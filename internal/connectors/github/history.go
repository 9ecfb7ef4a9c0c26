package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

const historyEndpoint = "file_history"

type historyPayload struct {
	Commits []domain.CommitSummary `json:"commits,omitempty"`
	sentinel
}

// historyParams omits the ref: history is keyed by path within the repo.
func historyParams(ref domain.FileRef) map[string]any {
	return map[string]any{"owner": ref.Owner, "repo": ref.Repo, "path": ref.Path}
}

// GetFileHistory returns the most recent commits touching the file.
func (c *Client) GetFileHistory(ctx context.Context, ref domain.FileRef) ([]domain.CommitSummary, error) {
	payload, err := cachedFetch(c.cache, historyEndpoint, historyParams(ref), func() (fetched[historyPayload], error) {
		return c.fetchHistory(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("%s: %w", ref.URL(), domain.SentinelError(payload.Error))
	}
	if payload.Commits == nil {
		return []domain.CommitSummary{}, nil
	}
	return payload.Commits, nil
}

func (c *Client) fetchHistory(ctx context.Context, ref domain.FileRef) (fetched[historyPayload], error) {
	opts := &gh.CommitsListOptions{
		SHA:         ref.Ref,
		Path:        ref.Path,
		ListOptions: gh.ListOptions{PerPage: domain.MaxHistoryCommits},
	}

	var commits []*gh.RepositoryCommit
	err := c.call(ctx, "list commits", resourceCore, func(ctx context.Context) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		commits, resp, err = c.gh.Repositories.ListCommits(ctx, ref.Owner, ref.Repo, opts)
		return resp, err
	})
	if err != nil {
		if IsNotFound(err) {
			return fetched[historyPayload]{
				value:     historyPayload{sentinel: sentinel{Error: domain.SentinelNotFound}},
				cacheable: true,
			}, nil
		}
		return fetched[historyPayload]{}, c.wrapError(err, "list commits")
	}

	summaries := make([]domain.CommitSummary, 0, len(commits))
	for _, rc := range commits {
		commit := rc.GetCommit()
		summaries = append(summaries, domain.NewCommitSummary(
			rc.GetSHA(),
			commit.GetAuthor().GetName(),
			formatTimestamp(commit.GetCommitter().GetDate()),
			commit.GetMessage(),
		))
	}
	return fetched[historyPayload]{value: historyPayload{Commits: summaries}, cacheable: true}, nil
}
