// Package contentdir stores fetched file content under a directory tree that
// mirrors the GitHub URL layout: <root>/<owner>/<repo>/blob/<ref>/<path>.
package contentdir

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.ContentStore = (*Store)(nil)

// Store writes content files below a root directory.
type Store struct {
	root string
}

// New creates a content store rooted at root.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating content directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the content directory.
func (s *Store) Root() string {
	return s.root
}

// Existing walks the content directory once and returns every regular file
// as a slash-separated path relative to the root.
func (s *Store) Existing(ctx context.Context) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		existing[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning content directory: %w", err)
	}
	return existing, nil
}

// Path returns the file path for ref's content.
func (s *Store) Path(ref domain.FileRef) (string, error) {
	rel := filepath.FromSlash(ref.ContentPath())
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: content path %q escapes root", domain.ErrInvalidInput, ref.ContentPath())
	}
	return filepath.Join(s.root, rel), nil
}

// Write stores data for ref, creating parent directories.
func (s *Store) Write(ref domain.FileRef, data []byte) error {
	p, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("creating content directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	return nil
}
