package download_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tilsley/dirpack/apps/server/internal/download"
)

// ─── Stubs ────────────────────────────────────────────────────────────────────

// stubRemote is an in-memory download.Remote. Directories are keyed by
// repository path ("" is the root) and files by download URL.
type stubRemote struct {
	mu        sync.Mutex
	dirs      map[string][]download.Entry
	listErr   map[string]error
	blobs     map[string][]byte
	blobErr   map[string]error
	downloads map[string]int
	refs      []string
	// hang holds listing paths and download URLs whose calls block until
	// the call context is done.
	hang map[string]bool

	delay       time.Duration
	inflight    int
	maxInflight int
}

func newStubRemote() *stubRemote {
	return &stubRemote{
		dirs:      map[string][]download.Entry{"": {}},
		listErr:   make(map[string]error),
		blobs:     make(map[string][]byte),
		blobErr:   make(map[string]error),
		downloads: make(map[string]int),
		hang:      make(map[string]bool),
	}
}

func rawURL(path string) string { return "https://raw.test/" + path }

// addFile seeds a file. Inline content is embedded unless inline is false or
// the file is empty.
func (s *stubRemote) addFile(path string, content []byte, inline bool) {
	dir, name := splitPath(path)
	s.ensureDir(dir)
	e := download.Entry{
		Name:        name,
		Type:        download.EntryFile,
		Size:        int64(len(content)),
		DownloadURL: rawURL(path),
	}
	if inline && len(content) > 0 {
		enc := base64.StdEncoding.EncodeToString(content)
		e.InlineContent = &enc
	}
	s.dirs[dir] = append(s.dirs[dir], e)
	s.blobs[e.DownloadURL] = content
}

func (s *stubRemote) addEntry(dir string, e download.Entry) {
	s.ensureDir(dir)
	s.dirs[dir] = append(s.dirs[dir], e)
}

func (s *stubRemote) ensureDir(dir string) {
	if _, ok := s.dirs[dir]; ok {
		return
	}
	s.dirs[dir] = []download.Entry{}
	parent, name := splitPath(dir)
	s.ensureDir(parent)
	s.dirs[parent] = append(s.dirs[parent], download.Entry{Name: name, Type: download.EntryDir})
}

func (s *stubRemote) enter() {
	s.mu.Lock()
	s.inflight++
	if s.inflight > s.maxInflight {
		s.maxInflight = s.inflight
	}
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
}

// block waits for ctx when key is marked as hanging.
func (s *stubRemote) block(ctx context.Context, key string) error {
	s.mu.Lock()
	hang := s.hang[key]
	s.mu.Unlock()
	if !hang {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubRemote) leave() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}

func (s *stubRemote) ListDir(ctx context.Context, _, _, path, ref string) ([]download.Entry, error) {
	s.enter()
	defer s.leave()
	if err := s.block(ctx, path); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = append(s.refs, ref)
	if err, ok := s.listErr[path]; ok {
		return nil, err
	}
	entries, ok := s.dirs[path]
	if !ok {
		if _, isFile := s.blobs[rawURL(path)]; isFile {
			return nil, download.NotDirectoryError{Path: path}
		}
		return nil, download.RemoteAPIError{Kind: download.RemoteNotFound, StatusCode: http.StatusNotFound, Op: "list " + path, Err: errors.New("Not Found")}
	}
	out := make([]download.Entry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *stubRemote) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	s.enter()
	defer s.leave()
	if err := s.block(ctx, url); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads[url]++
	if err, ok := s.blobErr[url]; ok {
		return nil, err
	}
	data, ok := s.blobs[url]
	if !ok {
		return nil, download.RemoteAPIError{Kind: download.RemoteNotFound, StatusCode: http.StatusNotFound, Op: "GET " + url, Err: errors.New("Not Found")}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubRemote) downloadCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[rawURL(path)]
}

func forbidden(path string) error {
	return download.RemoteAPIError{Kind: download.RemoteForbidden, StatusCode: http.StatusForbidden, Op: "list " + path, Err: errors.New("rate limit exceeded")}
}

func splitPath(p string) (dir, name string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
