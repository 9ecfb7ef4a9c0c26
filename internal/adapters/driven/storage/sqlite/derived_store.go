package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
)

// ==================== Content Status Store ====================

// contentStatusStore implements driven.ContentStatusStore.
type contentStatusStore struct {
	store *Store
}

var _ driven.ContentStatusStore = (*contentStatusStore)(nil)

// ListFilesWithoutContentStatus returns file URLs with no status record.
func (s *contentStatusStore) ListFilesWithoutContentStatus(ctx context.Context) ([]string, error) {
	return s.store.queryStrings(ctx, "listing files without content status", `
		SELECT f.url FROM files f
		LEFT JOIN content_status c ON f.url = c.url
		WHERE c.url IS NULL
		ORDER BY f.rowid
	`)
}

// SaveContentStatuses upserts status records in one transaction.
func (s *contentStatusStore) SaveContentStatuses(ctx context.Context, records []domain.ContentStatusRecord) error {
	if len(records) == 0 {
		return nil
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO content_status (url, status, fetched_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(url) DO UPDATE SET
				status = excluded.status,
				fetched_at = excluded.fetched_at
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, r.URL, string(r.Status)); err != nil {
				return fmt.Errorf("saving content status: %w", err)
			}
		}
		return nil
	})
}

// ==================== Metadata Store ====================

// metadataStore implements driven.MetadataStore.
type metadataStore struct {
	store *Store
}

var _ driven.MetadataStore = (*metadataStore)(nil)

const upsertMetadataSQL = `
	INSERT INTO repo_metadata (repo_key, stars, forks, watchers, language, topics,
		created_at, updated_at, pushed_at, default_branch, license, description, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(repo_key) DO UPDATE SET
		stars = excluded.stars,
		forks = excluded.forks,
		watchers = excluded.watchers,
		language = excluded.language,
		topics = excluded.topics,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		pushed_at = excluded.pushed_at,
		default_branch = excluded.default_branch,
		license = excluded.license,
		description = excluded.description,
		fetched_at = excluded.fetched_at
`

// ListReposWithoutMetadata returns repo keys with no metadata record.
func (s *metadataStore) ListReposWithoutMetadata(ctx context.Context) ([]string, error) {
	return s.store.queryStrings(ctx, "listing repos without metadata", `
		SELECT repo_key FROM file_repos
		WHERE repo_key NOT IN (SELECT repo_key FROM repo_metadata)
		GROUP BY repo_key
		ORDER BY MIN(file_rowid)
	`)
}

// SaveRepoMetadata upserts one record.
func (s *metadataStore) SaveRepoMetadata(ctx context.Context, metadata domain.RepoMetadata) error {
	return s.SaveRepoMetadataBatch(ctx, []domain.RepoMetadata{metadata})
}

// SaveRepoMetadataBatch upserts records in one transaction.
func (s *metadataStore) SaveRepoMetadataBatch(ctx context.Context, metadata []domain.RepoMetadata) error {
	if len(metadata) == 0 {
		return nil
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertMetadataSQL)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, m := range metadata {
			topics := m.Topics
			if topics == nil {
				topics = []string{}
			}
			topicsJSON, err := json.Marshal(topics)
			if err != nil {
				return fmt.Errorf("marshalling topics: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, m.RepoKey, m.Stars, m.Forks, m.Watchers,
				nullString(m.Language), string(topicsJSON),
				nullString(m.CreatedAt), nullString(m.UpdatedAt), nullString(m.PushedAt),
				nullString(m.DefaultBranch), nullString(m.License), nullString(m.Description)); err != nil {
				return fmt.Errorf("saving repo metadata: %w", err)
			}
		}
		return nil
	})
}

// GetRepoMetadata returns the record for a repo key.
func (s *metadataStore) GetRepoMetadata(ctx context.Context, repoKey string) (*domain.RepoMetadata, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT repo_key, stars, forks, watchers, language, topics,
			created_at, updated_at, pushed_at, default_branch, license, description
		FROM repo_metadata WHERE repo_key = ?
	`, repoKey)

	var m domain.RepoMetadata
	var language, topics, createdAt, updatedAt, pushedAt, branch, license, description sql.NullString
	if err := row.Scan(&m.RepoKey, &m.Stars, &m.Forks, &m.Watchers, &language, &topics,
		&createdAt, &updatedAt, &pushedAt, &branch, &license, &description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning repo metadata: %w", err)
	}

	if topics.Valid && topics.String != "" {
		if err := json.Unmarshal([]byte(topics.String), &m.Topics); err != nil {
			return nil, fmt.Errorf("unmarshalling topics: %w", err)
		}
	}
	m.Language = language.String
	m.CreatedAt = createdAt.String
	m.UpdatedAt = updatedAt.String
	m.PushedAt = pushedAt.String
	m.DefaultBranch = branch.String
	m.License = license.String
	m.Description = description.String
	return &m, nil
}

// ==================== History Store ====================

// historyStore implements driven.HistoryStore.
type historyStore struct {
	store *Store
}

var _ driven.HistoryStore = (*historyStore)(nil)

// ListFilesWithoutHistory returns file URLs with no history record.
func (s *historyStore) ListFilesWithoutHistory(ctx context.Context) ([]string, error) {
	return s.store.queryStrings(ctx, "listing files without history", `
		SELECT f.url FROM files f
		LEFT JOIN file_history h ON f.url = h.url
		WHERE h.url IS NULL
		ORDER BY f.rowid
	`)
}

// SaveFileHistory upserts one record.
func (s *historyStore) SaveFileHistory(ctx context.Context, history domain.FileHistory) error {
	return s.SaveFileHistoryBatch(ctx, []domain.FileHistory{history})
}

// SaveFileHistoryBatch upserts records in one transaction.
func (s *historyStore) SaveFileHistoryBatch(ctx context.Context, histories []domain.FileHistory) error {
	if len(histories) == 0 {
		return nil
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO file_history (url, commits, fetched_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(url) DO UPDATE SET
				commits = excluded.commits,
				fetched_at = excluded.fetched_at
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, h := range histories {
			commits := h.Commits
			if commits == nil {
				commits = []domain.CommitSummary{}
			}
			commitsJSON, err := json.Marshal(commits)
			if err != nil {
				return fmt.Errorf("marshalling commits: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, h.URL, string(commitsJSON)); err != nil {
				return fmt.Errorf("saving file history: %w", err)
			}
		}
		return nil
	})
}

// GetFileHistory returns the record for a file URL.
func (s *historyStore) GetFileHistory(ctx context.Context, url string) (*domain.FileHistory, error) {
	var commitsJSON sql.NullString
	err := s.store.db.QueryRowContext(ctx,
		`SELECT commits FROM file_history WHERE url = ?`, url).Scan(&commitsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning file history: %w", err)
	}

	h := &domain.FileHistory{URL: url}
	if commitsJSON.Valid && commitsJSON.String != "" {
		if err := json.Unmarshal([]byte(commitsJSON.String), &h.Commits); err != nil {
			return nil, fmt.Errorf("unmarshalling commits: %w", err)
		}
	}
	return h, nil
}
