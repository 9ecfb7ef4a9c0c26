package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const githubPrefix = "https://github.com/"

// FileRef locates one file on GitHub at a specific revision.
type FileRef struct {
	Owner string
	Repo  string
	Ref   string
	Path  string
}

// ParseFileURL parses a https://github.com/<owner>/<repo>/blob/<ref>/<path> URL.
// The ref is the first segment after "blob"; everything after it is the path.
func ParseFileURL(url string) (FileRef, error) {
	if !strings.HasPrefix(url, githubPrefix) {
		return FileRef{}, fmt.Errorf("%w: %q", ErrInvalidFileURL, url)
	}
	parts := strings.Split(strings.TrimPrefix(url, githubPrefix), "/")
	if len(parts) < 5 || parts[2] != "blob" {
		return FileRef{}, fmt.Errorf("%w: %q", ErrInvalidFileURL, url)
	}
	ref := FileRef{
		Owner: parts[0],
		Repo:  parts[1],
		Ref:   parts[3],
		Path:  strings.Join(parts[4:], "/"),
	}
	if ref.Owner == "" || ref.Repo == "" || ref.Ref == "" || ref.Path == "" {
		return FileRef{}, fmt.Errorf("%w: %q", ErrInvalidFileURL, url)
	}
	return ref, nil
}

// URL returns the canonical blob URL for the file.
func (f FileRef) URL() string {
	return fmt.Sprintf("%s%s/%s/blob/%s/%s", githubPrefix, f.Owner, f.Repo, f.Ref, f.Path)
}

// RepoKey returns "owner/repo".
func (f FileRef) RepoKey() string {
	return f.Owner + "/" + f.Repo
}

// ContentPath is the slash-separated location of the file's content
// relative to a content directory: owner/repo/blob/ref/path.
func (f FileRef) ContentPath() string {
	return path.Join(f.Owner, f.Repo, "blob", f.Ref, f.Path)
}

// ParseRepoKey splits "owner/repo".
func ParseRepoKey(key string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(key, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%w: repo key %q", ErrInvalidInput, key)
	}
	return owner, repo, nil
}

// DiscoveredFile is a file observed by the enumeration scanner.
// Files are created on first observation and never mutated afterwards.
type DiscoveredFile struct {
	URL string
	SHA string
	// Size as reported by the search index. Nil when unknown.
	Size         *int64
	DiscoveredAt time.Time
}

// FileContent is a file's content as returned by the contents API.
// Content is base64 encoded.
type FileContent struct {
	Content  string `json:"content,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	SHA      string `json:"sha,omitempty"`
	Size     int    `json:"size"`
	Name     string `json:"name,omitempty"`
	Path     string `json:"path,omitempty"`
}
