package ghfake_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/dirpack/pkg/ghfake"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return w
}

func TestContents_DirectoryListing(t *testing.T) {
	s := ghfake.New()
	s.AddFile("acme", "widgets", "main", "docs/b.md", []byte("b"))
	s.AddFile("acme", "widgets", "main", "docs/a/x.md", []byte("x"))

	w := get(t, s.Handler(), "/repos/acme/widgets/contents/docs")

	require.Equal(t, http.StatusOK, w.Code)
	var entries []ghfake.ContentEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "dir", entries[0].Type)
	assert.Equal(t, "b.md", entries[1].Name)
	require.NotNil(t, entries[1].Content)
	decoded, err := base64.StdEncoding.DecodeString(*entries[1].Content)
	require.NoError(t, err)
	assert.Equal(t, "b", string(decoded))
	assert.Equal(t, 1, s.Listings("acme", "widgets", "docs"))
}

func TestContents_InlineContentIsWrapped(t *testing.T) {
	s := ghfake.New()
	s.AddFile("acme", "widgets", "main", "long.txt", []byte(strings.Repeat("z", 100)))

	w := get(t, s.Handler(), "/repos/acme/widgets/contents/long.txt")

	var e ghfake.ContentEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	require.NotNil(t, e.Content)
	assert.Contains(t, *e.Content, "\n")
	assert.Equal(t, "file", e.Type)
}

func TestContents_RefSelectsBranch(t *testing.T) {
	s := ghfake.New()
	s.AddFile("acme", "widgets", "dev", "only-dev.txt", []byte("d"))

	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/repos/acme/widgets/contents/").Code)
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/repos/acme/widgets/contents/?ref=dev").Code)
	assert.Equal(t, []string{"", "dev"}, s.Refs())
}

func TestRaw_CountsAndFailures(t *testing.T) {
	s := ghfake.New()
	s.AddFile("acme", "widgets", "main", "f.bin", []byte("bytes"))
	h := s.Handler()

	w := get(t, h, "/raw/acme/widgets/main/f.bin")
	assert.Equal(t, "bytes", w.Body.String())

	s.FailDownload("acme", "widgets", "f.bin", http.StatusBadGateway)
	assert.Equal(t, http.StatusBadGateway, get(t, h, "/raw/acme/widgets/main/f.bin").Code)
	assert.Equal(t, 2, s.Downloads("acme", "widgets", "f.bin"))
}

func TestRequireToken(t *testing.T) {
	s := ghfake.New()
	s.RequireToken("t0k")
	s.AddFile("acme", "widgets", "main", "a", []byte("a"))
	h := s.Handler()

	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/repos/acme/widgets/contents/").Code)

	req := httptest.NewRequest(http.MethodGet, "/repos/acme/widgets/contents/", http.NoBody)
	req.Header.Set("Authorization", "Bearer t0k")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code, "health is never authenticated")
}

func TestAdmin_SeedAndFail(t *testing.T) {
	s := ghfake.New()
	h := s.Handler()

	put := httptest.NewRequest(http.MethodPut, "/_fake/files/acme/widgets/main/docs/new.md", strings.NewReader("new"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, put)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/repos/acme/widgets/contents/docs").Code)

	fail := httptest.NewRequest(http.MethodPost, "/_fake/failures",
		strings.NewReader(`{"owner":"acme","repo":"widgets","path":"docs","on":"listing","status":403}`))
	fail.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, fail)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusForbidden, get(t, h, "/repos/acme/widgets/contents/docs").Code)

	bad := httptest.NewRequest(http.MethodPost, "/_fake/failures",
		strings.NewReader(`{"owner":"acme","repo":"widgets","on":"elsewhere","status":403}`))
	bad.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
