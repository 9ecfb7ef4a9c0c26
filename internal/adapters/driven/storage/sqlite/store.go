package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ghfetch/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
	"github.com/custodia-labs/ghfetch/internal/logger"
)

// DefaultPath is the database location when none is given.
const DefaultPath = "results/files.db"

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database at dbPath and applies
// pending migrations. If dbPath is empty, DefaultPath is used.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = DefaultPath
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// FileStore returns a FileStore interface backed by this store.
func (s *Store) FileStore() driven.FileStore {
	return &fileStore{store: s}
}

// SearchHitStore returns a SearchHitStore interface backed by this store.
func (s *Store) SearchHitStore() driven.SearchHitStore {
	return &searchHitStore{store: s}
}

// ScanProgressStore returns a ScanProgressStore interface backed by this store.
func (s *Store) ScanProgressStore() driven.ScanProgressStore {
	return &scanProgressStore{store: s}
}

// ContentStatusStore returns a ContentStatusStore interface backed by this store.
func (s *Store) ContentStatusStore() driven.ContentStatusStore {
	return &contentStatusStore{store: s}
}

// MetadataStore returns a MetadataStore interface backed by this store.
func (s *Store) MetadataStore() driven.MetadataStore {
	return &metadataStore{store: s}
}

// HistoryStore returns a HistoryStore interface backed by this store.
func (s *Store) HistoryStore() driven.HistoryStore {
	return &historyStore{store: s}
}

// migrate runs all pending migrations. The migrate instance is not closed
// because closing it would close the shared *sql.DB.
func (s *Store) migrate(fsys fs.FS) error {
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	driver, err := sqlitemigrate.WithInstance(s.db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("sqlite: schema up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Debug("sqlite: applied migrations up to version %d", version)
	return nil
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ==================== File Store ====================

// fileStore implements driven.FileStore.
type fileStore struct {
	store *Store
}

var _ driven.FileStore = (*fileStore)(nil)

// InsertFiles stores files, ignoring URLs that already exist.
func (s *fileStore) InsertFiles(ctx context.Context, files []domain.DiscoveredFile) (int, error) {
	if len(files) == 0 {
		return 0, nil
	}

	inserted := 0
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO files (url, sha, size_bytes, discovered_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(url) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, f := range files {
			discovered := f.DiscoveredAt
			if discovered.IsZero() {
				discovered = now
			}
			res, err := stmt.ExecContext(ctx, f.URL, nullString(f.SHA), nullInt64(f.Size), discovered)
			if err != nil {
				return fmt.Errorf("inserting file: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("counting inserted files: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListFileURLs returns every known file URL in insertion order.
func (s *fileStore) ListFileURLs(ctx context.Context) ([]string, error) {
	return s.store.queryStrings(ctx, "listing files", `SELECT url FROM files ORDER BY rowid`)
}

// CountFiles returns the number of known files.
func (s *fileStore) CountFiles(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting files: %w", err)
	}
	return n, nil
}

// ListRepoKeys returns distinct owner/repo keys in first-seen order.
func (s *fileStore) ListRepoKeys(ctx context.Context) ([]string, error) {
	return s.store.queryStrings(ctx, "listing repos", `
		SELECT repo_key FROM file_repos
		GROUP BY repo_key
		ORDER BY MIN(file_rowid)
	`)
}

// ==================== Search Hit Store ====================

// searchHitStore implements driven.SearchHitStore.
type searchHitStore struct {
	store *Store
}

var _ driven.SearchHitStore = (*searchHitStore)(nil)

// AppendSearchHits appends hits in one transaction.
func (s *searchHitStore) AppendSearchHits(ctx context.Context, hits []domain.SearchHit) error {
	if len(hits) == 0 {
		return nil
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO search_hits (url, query, size_min, size_max, run_id, hit_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, h := range hits {
			hitAt := h.HitAt
			if hitAt.IsZero() {
				hitAt = now
			}
			if _, err := stmt.ExecContext(ctx, h.URL, h.Query, h.SizeMin, h.SizeMax,
				nullString(h.RunID), hitAt); err != nil {
				return fmt.Errorf("inserting search hit: %w", err)
			}
		}
		return nil
	})
}

// ListMultiRangeHits returns files returned for more than one distinct size
// range, most ranges first.
func (s *searchHitStore) ListMultiRangeHits(ctx context.Context) ([]domain.MultiRangeHit, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT url, size_min, size_max FROM search_hits
		WHERE url IN (
			SELECT url FROM search_hits
			GROUP BY url
			HAVING COUNT(DISTINCT size_min || '-' || size_max) > 1
		)
		GROUP BY url, size_min, size_max
		ORDER BY url, size_min, size_max
	`)
	if err != nil {
		return nil, fmt.Errorf("querying search hits: %w", err)
	}
	defer rows.Close()

	var hits []domain.MultiRangeHit
	for rows.Next() {
		var url string
		var r domain.SizeRange
		if err := rows.Scan(&url, &r.Min, &r.Max); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		if n := len(hits); n > 0 && hits[n-1].URL == url {
			hits[n-1].Ranges = append(hits[n-1].Ranges, r)
			continue
		}
		hits = append(hits, domain.MultiRangeHit{URL: url, Ranges: []domain.SizeRange{r}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search hits: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return len(hits[i].Ranges) > len(hits[j].Ranges)
	})
	return hits, nil
}

// ==================== Scan Progress Store ====================

// scanProgressStore implements driven.ScanProgressStore.
type scanProgressStore struct {
	store *Store
}

var _ driven.ScanProgressStore = (*scanProgressStore)(nil)

// GetScanProgress returns the checkpoint for a query.
func (s *scanProgressStore) GetScanProgress(ctx context.Context, query string) (*domain.ScanProgress, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT query, last_lo, max_size, collected, completed_at, updated_at
		FROM scan_progress WHERE query = ?
	`, query)

	var p domain.ScanProgress
	var completedAt, updatedAt sql.NullTime
	if err := row.Scan(&p.Query, &p.LastLo, &p.MaxSize, &p.Collected, &completedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning scan progress: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return &p, nil
}

// SaveScanProgress creates or replaces the checkpoint for progress.Query.
func (s *scanProgressStore) SaveScanProgress(ctx context.Context, progress domain.ScanProgress) error {
	var completedAt sql.NullTime
	if progress.CompletedAt != nil {
		completedAt = sql.NullTime{Time: progress.CompletedAt.UTC(), Valid: true}
	}
	updatedAt := progress.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO scan_progress (query, last_lo, max_size, collected, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET
			last_lo = excluded.last_lo,
			max_size = excluded.max_size,
			collected = excluded.collected,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`, progress.Query, progress.LastLo, progress.MaxSize, progress.Collected, completedAt, updatedAt.UTC())

	if err != nil {
		return fmt.Errorf("saving scan progress: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

// queryStrings runs a single-column query and collects the results.
func (s *Store) queryStrings(ctx context.Context, what, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%s: scanning: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return out, nil
}

// nullString converts empty strings to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullInt64 converts nil pointers to NULL.
func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
