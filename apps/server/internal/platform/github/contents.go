package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	gogithub "github.com/google/go-github/v75/github"

	"github.com/tilsley/dirpack/apps/server/internal/download"
)

// Compile-time check: *Adapter implements download.Remote.
var _ download.Remote = (*Adapter)(nil)

// Adapter serves directory listings and raw downloads through a go-github
// client, so both carry the client's auth transport.
type Adapter struct {
	gh *gogithub.Client
}

// New creates an Adapter from an authenticated *github.Client.
func New(gh *gogithub.Client) *Adapter {
	return &Adapter{gh: gh}
}

// ListDir lists path through the contents API. The ref query parameter is
// only sent for branches other than the default.
func (a *Adapter) ListDir(ctx context.Context, owner, repo, path, ref string) ([]download.Entry, error) {
	var opts *gogithub.RepositoryContentGetOptions
	if ref != "" && ref != download.DefaultBranch {
		opts = &gogithub.RepositoryContentGetOptions{Ref: ref}
	}

	file, dir, _, err := a.gh.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, classify(fmt.Sprintf("list %s/%s/%s", owner, repo, path), err)
	}
	if file != nil {
		return nil, download.NotDirectoryError{Path: path}
	}

	entries := make([]download.Entry, 0, len(dir))
	for _, c := range dir {
		e := download.Entry{
			Name:        c.GetName(),
			Type:        download.EntryType(c.GetType()),
			Size:        int64(c.GetSize()),
			DownloadURL: c.GetDownloadURL(),
		}
		if c.Content != nil {
			content := *c.Content
			e.InlineContent = &content
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Download opens the raw file behind a download URL. Any 2xx is success.
func (a *Adapter) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := a.gh.Client().Do(req)
	if err != nil {
		return nil, download.RemoteAPIError{Kind: download.RemoteAPI, Op: "GET " + url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close() //nolint:errcheck // body is discarded
		return nil, download.RemoteAPIError{
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Op:         "GET " + url,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	return resp.Body, nil
}

// classify maps go-github errors onto download.RemoteAPIError.
func classify(op string, err error) error {
	var rateLimit *gogithub.RateLimitError
	if errors.As(err, &rateLimit) {
		return download.RemoteAPIError{Kind: download.RemoteForbidden, StatusCode: http.StatusForbidden, Op: op, Err: err}
	}
	var abuse *gogithub.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return download.RemoteAPIError{Kind: download.RemoteForbidden, StatusCode: http.StatusForbidden, Op: op, Err: err}
	}
	var resp *gogithub.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		return download.RemoteAPIError{Kind: kindForStatus(resp.Response.StatusCode), StatusCode: resp.Response.StatusCode, Op: op, Err: err}
	}
	return download.RemoteAPIError{Kind: download.RemoteAPI, Op: op, Err: err}
}

func kindForStatus(code int) download.RemoteErrorKind {
	switch code {
	case http.StatusNotFound:
		return download.RemoteNotFound
	case http.StatusForbidden:
		return download.RemoteForbidden
	default:
		return download.RemoteAPI
	}
}
