package download

import (
	"context"
	"io"
)

// Remote is the hosting API the fetcher walks. The platform/github adapter
// provides the concrete implementation.
type Remote interface {
	// ListDir returns the immediate children of path at ref. A path that names
	// a single file yields NotDirectoryError; HTTP failures yield RemoteAPIError.
	ListDir(ctx context.Context, owner, repo, path, ref string) ([]Entry, error)
	// Download opens the raw bytes behind an entry's download URL.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// JobStore persists summaries of finished download jobs.
type JobStore interface {
	Save(ctx context.Context, rec JobRecord) error
	// Get returns nil, nil when no record exists for id.
	Get(ctx context.Context, id string) (*JobRecord, error)
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]JobRecord, error)
}
