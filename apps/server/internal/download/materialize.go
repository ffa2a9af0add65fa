package download

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// materialize writes one file entry to dst following the size/inline-content
// policy and returns the number of bytes written.
func (f *Fetcher) materialize(ctx context.Context, e Entry, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create parent dir: %w", err)
	}

	if e.Size == 0 {
		file, err := os.Create(dst)
		if err != nil {
			return 0, fmt.Errorf("create empty file: %w", err)
		}
		return 0, file.Close()
	}

	if e.Size > f.largeFileThreshold || e.InlineContent == nil {
		return f.downloadTo(ctx, e, dst)
	}

	// StdEncoding skips the line breaks GitHub inserts every 60 characters.
	data, err := base64.StdEncoding.DecodeString(*e.InlineContent)
	if err != nil {
		f.log.Warn("inline content decode failed, falling back to download URL", "path", dst, "error", err)
		return f.downloadTo(ctx, e, dst)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return 0, fmt.Errorf("write file: %w", err)
	}
	return int64(len(data)), nil
}

var errNoDownloadURL = errors.New("no download URL available")

func (f *Fetcher) downloadTo(ctx context.Context, e Entry, dst string) (int64, error) {
	if e.DownloadURL == "" {
		return 0, errNoDownloadURL
	}

	if err := f.acquire(ctx); err != nil {
		return 0, err
	}
	defer f.release()

	ctx, cancel := f.callContext(ctx)
	defer cancel()

	body, err := f.remote.Download(ctx, e.DownloadURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck // close errors on a fully read body are non-actionable

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst) //nolint:errcheck // best effort, the failure is already reported
		return 0, fmt.Errorf("write file: %w", err)
	}
	return n, nil
}
