package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"path"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/logger"
)

type blobNode struct {
	Text        *string `json:"text"`
	ByteSize    *int    `json:"byteSize"`
	IsTruncated *bool   `json:"isTruncated"`
}

func (b blobNode) empty() bool {
	return b.Text == nil && b.ByteSize == nil && b.IsTruncated == nil
}

type repoNode struct {
	StargazerCount int `json:"stargazerCount"`
	ForkCount      int `json:"forkCount"`
	Watchers       struct {
		TotalCount int `json:"totalCount"`
	} `json:"watchers"`
	PrimaryLanguage *struct {
		Name string `json:"name"`
	} `json:"primaryLanguage"`
	RepositoryTopics struct {
		Nodes []struct {
			Topic struct {
				Name string `json:"name"`
			} `json:"topic"`
		} `json:"nodes"`
	} `json:"repositoryTopics"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
	PushedAt         string `json:"pushedAt"`
	DefaultBranchRef *struct {
		Name string `json:"name"`
	} `json:"defaultBranchRef"`
	LicenseInfo *struct {
		SpdxID string `json:"spdxId"`
	} `json:"licenseInfo"`
	Description string `json:"description"`
}

func (n *repoNode) metadata(repoKey string) *domain.RepoMetadata {
	md := &domain.RepoMetadata{
		RepoKey:     repoKey,
		Stars:       n.StargazerCount,
		Forks:       n.ForkCount,
		Watchers:    n.Watchers.TotalCount,
		Topics:      make([]string, 0, len(n.RepositoryTopics.Nodes)),
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
		PushedAt:    n.PushedAt,
		Description: n.Description,
	}
	if n.PrimaryLanguage != nil {
		md.Language = n.PrimaryLanguage.Name
	}
	for _, t := range n.RepositoryTopics.Nodes {
		md.Topics = append(md.Topics, t.Topic.Name)
	}
	if n.DefaultBranchRef != nil {
		md.DefaultBranch = n.DefaultBranchRef.Name
	}
	if n.LicenseInfo != nil {
		md.License = n.LicenseInfo.SpdxID
	}
	return md
}

type historyNode struct {
	Nodes []struct {
		OID             string `json:"oid"`
		MessageHeadline string `json:"messageHeadline"`
		CommittedDate   string `json:"committedDate"`
		Author          *struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"nodes"`
}

func (n *historyNode) commits() []domain.CommitSummary {
	out := make([]domain.CommitSummary, 0, len(n.Nodes))
	for _, c := range n.Nodes {
		author := ""
		if c.Author != nil {
			author = c.Author.Name
		}
		out = append(out, domain.NewCommitSummary(c.OID, author, c.CommittedDate, c.MessageHeadline))
	}
	return out
}

func (c *GraphQLClient) store(endpoint string, params map[string]any, payload any) {
	if err := c.cache.Set(endpoint, params, payload); err != nil {
		logger.Warn("cache: store %s: %v", endpoint, err)
	}
}

// FetchContentBatch fetches file contents in one query. Items already in the
// response cache are answered without a request. Truncated items are left
// for the caller to fetch one at a time.
func (c *GraphQLClient) FetchContentBatch(ctx context.Context, refs []domain.FileRef) ([]domain.ContentResult, error) {
	results := make([]domain.ContentResult, len(refs))
	var pending []int
	for i, ref := range refs {
		results[i].Ref = ref
		if raw, ok := c.cache.Get(contentsEndpoint, contentParams(ref)); ok {
			if outcome, content, ok := decodeCachedContent(raw); ok {
				results[i].Outcome, results[i].Content = outcome, content
				continue
			}
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return results, nil
	}

	items := make([]batchItem, len(pending))
	for k, idx := range pending {
		ref := refs[idx]
		items[k] = batchItem{owner: ref.Owner, repo: ref.Repo, ref: ref.Ref, path: ref.Path}
	}
	plan := planBatch(items, planFiles)

	data, err := c.execute(ctx, plan.contentQuery(), nil)
	if err != nil {
		return nil, err
	}

	resp := newBatchResponse(plan, data)
	for k, idx := range pending {
		ref := refs[idx]
		params := contentParams(ref)

		var blob blobNode
		raw, _ := resp.node(k)
		if raw != nil {
			_ = json.Unmarshal(raw, &blob)
		}

		switch {
		case raw == nil || blob.empty():
			c.store(contentsEndpoint, params, sentinel{Error: domain.SentinelNotFound})
			results[idx].Outcome = domain.OutcomeNotFound
		case blob.IsTruncated != nil && *blob.IsTruncated:
			results[idx].Outcome = domain.OutcomeTruncated
		case blob.Text == nil:
			c.store(contentsEndpoint, params, sentinel{Error: domain.SentinelNoContent})
			results[idx].Outcome = domain.OutcomeNoContent
		default:
			content := domain.FileContent{
				Content:  base64.StdEncoding.EncodeToString([]byte(*blob.Text)),
				Encoding: "base64",
				Name:     path.Base(ref.Path),
				Path:     ref.Path,
			}
			if blob.ByteSize != nil {
				content.Size = *blob.ByteSize
			}
			c.store(contentsEndpoint, params, contentPayload{FileContent: content})
			results[idx].Outcome = domain.OutcomeOK
			results[idx].Content = &content
		}
	}
	return results, nil
}

func decodeCachedContent(raw json.RawMessage) (domain.FetchOutcome, *domain.FileContent, bool) {
	var payload contentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil, false
	}
	switch payload.Error {
	case "":
		content := payload.FileContent
		return domain.OutcomeOK, &content, true
	case domain.SentinelNoContent:
		return domain.OutcomeNoContent, nil, true
	default:
		return domain.OutcomeNotFound, nil, true
	}
}

// FetchMetadataBatch fetches repository metadata in one query.
// Duplicate keys share one alias.
func (c *GraphQLClient) FetchMetadataBatch(ctx context.Context, repoKeys []string) ([]domain.MetadataResult, error) {
	results := make([]domain.MetadataResult, len(repoKeys))
	var pending []int
	var items []batchItem
	for i, key := range repoKeys {
		results[i].RepoKey = key
		owner, repo, err := domain.ParseRepoKey(key)
		if err != nil {
			results[i].Outcome, results[i].Err = domain.OutcomeError, err
			continue
		}
		if raw, ok := c.cache.Get(metadataEndpoint, metadataParams(key)); ok {
			var payload metadataPayload
			if json.Unmarshal(raw, &payload) == nil {
				if payload.Error != "" {
					results[i].Outcome = domain.OutcomeNotFound
				} else {
					md := payload.RepoMetadata
					md.RepoKey = key
					results[i].Outcome, results[i].Metadata = domain.OutcomeOK, &md
				}
				continue
			}
		}
		pending = append(pending, i)
		items = append(items, batchItem{owner: owner, repo: repo})
	}
	if len(pending) == 0 {
		return results, nil
	}

	plan := planBatch(items, planRepos)
	data, err := c.execute(ctx, plan.metadataQuery(), nil)
	if err != nil {
		return nil, err
	}

	resp := newBatchResponse(plan, data)
	for k, idx := range pending {
		key := repoKeys[idx]
		raw, _ := resp.node(k)
		var node repoNode
		if raw == nil || json.Unmarshal(raw, &node) != nil {
			c.store(metadataEndpoint, metadataParams(key), sentinel{Error: domain.SentinelNotFound})
			results[idx].Outcome = domain.OutcomeNotFound
			continue
		}
		md := node.metadata(key)
		c.store(metadataEndpoint, metadataParams(key), metadataPayload{RepoMetadata: *md})
		results[idx].Outcome, results[idx].Metadata = domain.OutcomeOK, md
	}
	return results, nil
}

// FetchHistoryBatch fetches commit history in one query, grouping files by
// repository and ref.
func (c *GraphQLClient) FetchHistoryBatch(ctx context.Context, refs []domain.FileRef) ([]domain.HistoryResult, error) {
	results := make([]domain.HistoryResult, len(refs))
	var pending []int
	for i, ref := range refs {
		results[i].Ref = ref
		if raw, ok := c.cache.Get(historyEndpoint, historyParams(ref)); ok {
			var payload historyPayload
			if json.Unmarshal(raw, &payload) == nil {
				results[i].Outcome = historyOutcome(payload.Error)
				if payload.Error == "" {
					results[i].Commits = payload.Commits
				}
				continue
			}
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return results, nil
	}

	items := make([]batchItem, len(pending))
	for k, idx := range pending {
		ref := refs[idx]
		items[k] = batchItem{owner: ref.Owner, repo: ref.Repo, ref: ref.Ref, path: ref.Path}
	}
	plan := planBatch(items, planFilesByRef)

	data, err := c.execute(ctx, plan.historyQuery(domain.MaxHistoryCommits), nil)
	if err != nil {
		return nil, err
	}

	resp := newBatchResponse(plan, data)
	for k, idx := range pending {
		ref := refs[idx]
		params := historyParams(ref)

		raw, depth := resp.node(k)
		var node historyNode
		if raw != nil && json.Unmarshal(raw, &node) != nil {
			raw, depth = nil, 2
		}
		if raw == nil {
			tag := domain.SentinelNoHistory
			switch depth {
			case 0:
				tag = domain.SentinelNotFound
			case 1:
				tag = domain.SentinelBadRef
			}
			c.store(historyEndpoint, params, sentinel{Error: tag})
			results[idx].Outcome = historyOutcome(tag)
			continue
		}

		commits := node.commits()
		c.store(historyEndpoint, params, historyPayload{Commits: commits})
		results[idx].Outcome, results[idx].Commits = domain.OutcomeOK, commits
	}
	return results, nil
}

func historyOutcome(tag string) domain.FetchOutcome {
	switch tag {
	case "":
		return domain.OutcomeOK
	case domain.SentinelBadRef:
		return domain.OutcomeBadRef
	case domain.SentinelNoHistory:
		return domain.OutcomeNoHistory
	default:
		return domain.OutcomeNotFound
	}
}
