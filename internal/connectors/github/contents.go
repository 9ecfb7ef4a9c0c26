package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

const (
	contentsEndpoint = "contents"

	// maxSymlinkDepth bounds chains of relative symlinks.
	maxSymlinkDepth = 8
)

type contentPayload struct {
	domain.FileContent
	sentinel
}

func contentParams(ref domain.FileRef) map[string]any {
	return map[string]any{"owner": ref.Owner, "repo": ref.Repo, "path": ref.Path, "ref": ref.Ref}
}

// GetFileContent fetches a file's base64 content at ref.Ref.
// Relative symlinks are followed within the repository.
func (c *Client) GetFileContent(ctx context.Context, ref domain.FileRef) (*domain.FileContent, error) {
	return c.getFileContent(ctx, ref, 0)
}

func (c *Client) getFileContent(ctx context.Context, ref domain.FileRef, depth int) (*domain.FileContent, error) {
	payload, err := cachedFetch(c.cache, contentsEndpoint, contentParams(ref), func() (fetched[contentPayload], error) {
		return c.fetchContent(ctx, ref, depth)
	})
	if err != nil {
		return nil, err
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("%s: %w", ref.URL(), domain.SentinelError(payload.Error))
	}
	content := payload.FileContent
	return &content, nil
}

func missing(tag string) (fetched[contentPayload], error) {
	return fetched[contentPayload]{value: contentPayload{sentinel: sentinel{Error: tag}}, cacheable: true}, nil
}

func (c *Client) fetchContent(ctx context.Context, ref domain.FileRef, depth int) (fetched[contentPayload], error) {
	opts := &gh.RepositoryContentGetOptions{Ref: ref.Ref}

	var file *gh.RepositoryContent
	err := c.call(ctx, "get contents", resourceCore, func(ctx context.Context) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		file, _, resp, err = c.gh.Repositories.GetContents(ctx, ref.Owner, ref.Repo, ref.Path, opts)
		return resp, err
	})
	if err != nil {
		if IsNotFound(err) {
			return missing(domain.SentinelNotFound)
		}
		return fetched[contentPayload]{}, c.wrapError(err, "get contents")
	}

	if file == nil {
		return fetched[contentPayload]{}, fmt.Errorf("%s: %w: %w", ref.URL(), domain.ErrNotFound, ErrIsDirectory)
	}

	if file.GetType() == "symlink" {
		return c.followSymlink(ctx, ref, file.GetTarget(), depth)
	}

	if file.Content == nil {
		return missing(domain.SentinelNoContent)
	}

	// The raw field keeps GitHub's base64; GetContent would decode it.
	content := *file.Content
	if file.GetEncoding() == "none" || (content == "" && file.GetSize() > 0) {
		// Too large for the contents API; download the raw bytes.
		data, err := c.download(ctx, ref)
		if err != nil {
			if IsNotFound(err) {
				return missing(domain.SentinelNotFound)
			}
			return fetched[contentPayload]{}, err
		}
		content = base64.StdEncoding.EncodeToString(data)
	}

	return fetched[contentPayload]{
		value: contentPayload{FileContent: domain.FileContent{
			Content:  strings.ReplaceAll(content, "\n", ""),
			Encoding: "base64",
			SHA:      file.GetSHA(),
			Size:     file.GetSize(),
			Name:     file.GetName(),
			Path:     file.GetPath(),
		}},
		cacheable: true,
	}, nil
}

// followSymlink resolves a relative target against the link's directory and
// fetches the target. The result is cached under the link's own key.
func (c *Client) followSymlink(ctx context.Context, ref domain.FileRef, target string, depth int) (fetched[contentPayload], error) {
	if target == "" || strings.HasPrefix(target, "/") || depth >= maxSymlinkDepth {
		return missing(domain.SentinelUnresolvableSymlink)
	}
	resolved := path.Clean(path.Join(path.Dir(ref.Path), target))
	if resolved == "." || resolved == ".." || strings.HasPrefix(resolved, "../") {
		return missing(domain.SentinelUnresolvableSymlink)
	}

	next := ref
	next.Path = resolved
	content, err := c.getFileContent(ctx, next, depth+1)
	switch {
	case errors.Is(err, domain.ErrNoContent):
		return missing(domain.SentinelNoContent)
	case errors.Is(err, domain.ErrUnresolvableSymlink):
		return missing(domain.SentinelUnresolvableSymlink)
	case errors.Is(err, domain.ErrNotFound) && !errors.Is(err, ErrIsDirectory):
		return missing(domain.SentinelNotFound)
	case err != nil:
		return fetched[contentPayload]{}, err
	}
	return fetched[contentPayload]{value: contentPayload{FileContent: *content}, cacheable: true}, nil
}

// download fetches a file's raw bytes via its download URL.
func (c *Client) download(ctx context.Context, ref domain.FileRef) ([]byte, error) {
	opts := &gh.RepositoryContentGetOptions{Ref: ref.Ref}

	var data []byte
	err := c.call(ctx, "download contents", resourceCore, func(ctx context.Context) (*gh.Response, error) {
		rc, resp, err := c.gh.Repositories.DownloadContents(ctx, ref.Owner, ref.Repo, ref.Path, opts)
		if err != nil {
			return resp, err
		}
		defer rc.Close()
		data, err = io.ReadAll(rc)
		return resp, err
	})
	if err != nil {
		return nil, c.wrapError(err, "download contents")
	}
	return data, nil
}
