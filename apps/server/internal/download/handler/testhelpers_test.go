package handler_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/dirpack/apps/server/internal/download"
	"github.com/tilsley/dirpack/apps/server/internal/download/handler"
	"github.com/tilsley/dirpack/apps/server/internal/download/store"
	"github.com/tilsley/dirpack/apps/server/internal/platform/github"
	"github.com/tilsley/dirpack/apps/server/internal/platform/validation"
	"github.com/tilsley/dirpack/pkg/ghfake"
	"github.com/tilsley/dirpack/schemas"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const ghToken = "ghp_test"

type testEnv struct {
	router *gin.Engine
	fake   *ghfake.Server
	store  *store.MemoryStore
	work   string
}

// newEnv wires the real service, adapter and middleware against a ghfake
// server. mutate may adjust the service config before construction.
func newEnv(t *testing.T, mutate func(*download.Config)) *testEnv {
	t.Helper()
	fake := ghfake.New()
	fake.RequireToken(ghToken)
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	remote := github.New(github.NewTokenClient(ghToken, srv.URL, 5*time.Second))
	fetcher := download.NewFetcher(remote, log, download.FetcherConfig{Concurrency: 2})

	env := &testEnv{fake: fake, store: store.NewMemoryStore(0), work: t.TempDir()}
	cfg := download.Config{ServerToken: ghToken, WorkDir: env.work, AllowPartial: true}
	if mutate != nil {
		mutate(&cfg)
	}
	svc := download.NewService(cfg, fetcher, env.store, log)

	mw, err := validation.New(schemas.OpenAPISpec)
	require.NoError(t, err)
	env.router = gin.New()
	env.router.Use(mw)
	handler.RegisterRoutes(env.router, svc, log)
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) download(t *testing.T, url, token string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{"url": url, "token": token})
	require.NoError(t, err)
	return e.do(http.MethodPost, "/download", string(body))
}

// workDirEmpty reports whether every staging tree and archive is gone.
func (e *testEnv) workDirEmpty() bool {
	entries, err := os.ReadDir(e.work)
	return err == nil && len(entries) == 0
}

func unzip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = string(b)
	}
	return out
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error
}
