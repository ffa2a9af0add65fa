// Package ghfake is an in-memory emulation of the GitHub contents API and raw
// download host. It backs the mock-github app and the HTTP-level tests.
package ghfake

import (
	"encoding/base64"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// InlineLimit is the largest file whose content is embedded in listings.
const InlineLimit = 1 << 20

// ContentEntry mirrors one element of a contents API response.
type ContentEntry struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	Type        string  `json:"type"`
	Size        int     `json:"size"`
	DownloadURL *string `json:"download_url"`
	Encoding    string  `json:"encoding,omitempty"`
	Content     *string `json:"content,omitempty"`
}

// Server holds repository trees keyed by "owner/repo" and ref.
type Server struct {
	mu        sync.RWMutex
	trees     map[string]map[string]map[string][]byte // repo key -> ref -> path -> content
	listFail  map[string]int                          // "owner/repo/path" -> status for listings
	rawFail   map[string]int                          // "owner/repo/path" -> status for raw downloads
	corrupt   map[string]bool                         // "owner/repo/path" -> invalid inline base64
	noInline  bool
	token     string
	downloads map[string]int // "owner/repo/path" -> raw download count
	listings  map[string]int // "owner/repo/path" -> listing count
	refs      []string       // ref query values seen, in order
}

// New returns an empty Server.
func New() *Server {
	return &Server{
		trees:     make(map[string]map[string]map[string][]byte),
		listFail:  make(map[string]int),
		rawFail:   make(map[string]int),
		corrupt:   make(map[string]bool),
		downloads: make(map[string]int),
		listings:  make(map[string]int),
	}
}

// AddFile seeds a file on ref.
func (s *Server) AddFile(owner, repo, ref, path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := owner + "/" + repo
	if s.trees[key] == nil {
		s.trees[key] = make(map[string]map[string][]byte)
	}
	if s.trees[key][ref] == nil {
		s.trees[key][ref] = make(map[string][]byte)
	}
	s.trees[key][ref][strings.Trim(path, "/")] = content
}

// FailListing makes listings of path answer with status.
func (s *Server) FailListing(owner, repo, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listFail[owner+"/"+repo+"/"+path] = status
}

// FailDownload makes raw downloads of path answer with status.
func (s *Server) FailDownload(owner, repo, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawFail[owner+"/"+repo+"/"+path] = status
}

// CorruptInline makes listings embed undecodable content for path.
func (s *Server) CorruptInline(owner, repo, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt[owner+"/"+repo+"/"+path] = true
}

// DisableInline stops listings from embedding file content, as the real
// directory listing endpoint does.
func (s *Server) DisableInline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noInline = true
}

// RequireToken makes every request without "Bearer token" answer 401.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Downloads returns how many times path was fetched from the raw host.
func (s *Server) Downloads(owner, repo, path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.downloads[owner+"/"+repo+"/"+path]
}

// Listings returns how many times path was listed.
func (s *Server) Listings(owner, repo, path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listings[owner+"/"+repo+"/"+path]
}

// Refs returns the ref query values received by the contents endpoint,
// with "" for requests that sent none.
func (s *Server) Refs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.refs))
	copy(out, s.refs)
	return out
}

// Handler returns the HTTP handler serving the fake API. Routes under
// /_fake/ seed content and inject failures at runtime and bypass the token
// check.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	admin := r.Group("/_fake")
	admin.PUT("/files/:owner/:repo/:ref/*path", s.putFile)
	admin.POST("/failures", s.postFailure)
	admin.GET("/stats", s.stats)

	api := r.Group("/", s.auth)
	api.GET("/repos/:owner/:repo/contents/*path", s.contents)
	api.GET("/raw/:owner/:repo/:ref/*path", s.raw)
	return r
}

// Failure injects an error status for a listing or raw download.
type Failure struct {
	Owner  string `json:"owner"  binding:"required"`
	Repo   string `json:"repo"   binding:"required"`
	Path   string `json:"path"`
	On     string `json:"on"     binding:"required,oneof=listing download"`
	Status int    `json:"status" binding:"required,min=400,max=599"`
}

func (s *Server) putFile(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.AddFile(c.Param("owner"), c.Param("repo"), c.Param("ref"), c.Param("path"), body)
	c.Status(http.StatusNoContent)
}

func (s *Server) postFailure(c *gin.Context) {
	var f Failure
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	path := strings.Trim(f.Path, "/")
	if f.On == "listing" {
		s.FailListing(f.Owner, f.Repo, path, f.Status)
	} else {
		s.FailDownload(f.Owner, f.Repo, path, f.Status)
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) stats(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{"listings": s.listings, "downloads": s.downloads})
}

func (s *Server) auth(c *gin.Context) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token != "" && c.GetHeader("Authorization") != "Bearer "+token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Bad credentials"})
		return
	}
	c.Next()
}

func (s *Server) contents(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")
	dir := strings.Trim(c.Param("path"), "/")
	ref, hasRef := c.GetQuery("ref")
	key := owner + "/" + repo + "/" + dir

	s.mu.Lock()
	s.listings[key]++
	if hasRef {
		s.refs = append(s.refs, ref)
	} else {
		s.refs = append(s.refs, "")
	}
	status, failed := s.listFail[key]
	s.mu.Unlock()

	if failed {
		c.JSON(status, gin.H{"message": http.StatusText(status)})
		return
	}
	if !hasRef || ref == "" {
		ref = "main"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	files := s.trees[owner+"/"+repo][ref]
	if content, ok := files[dir]; ok && dir != "" {
		c.JSON(http.StatusOK, s.fileEntry(c, owner, repo, ref, dir, content))
		return
	}

	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	seen := make(map[string]bool)
	entries := []ContentEntry{}
	for p, content := range files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		name, _, isDir := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		if isDir {
			entries = append(entries, ContentEntry{Name: name, Path: prefix + name, Type: "dir"})
			continue
		}
		entries = append(entries, s.fileEntry(c, owner, repo, ref, p, content))
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	c.JSON(http.StatusOK, entries)
}

// fileEntry must be called with s.mu held.
func (s *Server) fileEntry(c *gin.Context, owner, repo, ref, path string, content []byte) ContentEntry {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	dl := scheme + "://" + c.Request.Host + "/raw/" + owner + "/" + repo + "/" + ref + "/" + path

	name := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		name = path[i+1:]
	}
	e := ContentEntry{Name: name, Path: path, Type: "file", Size: len(content), DownloadURL: &dl}
	if !s.noInline && len(content) > 0 && len(content) <= InlineLimit {
		enc := wrap(base64.StdEncoding.EncodeToString(content))
		if s.corrupt[owner+"/"+repo+"/"+path] {
			enc = "!!not base64!!"
		}
		e.Encoding = "base64"
		e.Content = &enc
	}
	return e
}

func (s *Server) raw(c *gin.Context) {
	owner, repo, ref := c.Param("owner"), c.Param("repo"), c.Param("ref")
	path := strings.Trim(c.Param("path"), "/")
	key := owner + "/" + repo + "/" + path

	s.mu.Lock()
	s.downloads[key]++
	status, failed := s.rawFail[key]
	content, ok := s.trees[owner+"/"+repo][ref][path]
	s.mu.Unlock()

	switch {
	case failed:
		c.String(status, http.StatusText(status))
	case !ok:
		c.String(http.StatusNotFound, "404: Not Found")
	default:
		c.Data(http.StatusOK, "application/octet-stream", content)
	}
}

// wrap inserts a newline every 60 characters, as GitHub does.
func wrap(s string) string {
	var b strings.Builder
	for len(s) > 60 {
		b.WriteString(s[:60])
		b.WriteByte('\n')
		s = s[60:]
	}
	b.WriteString(s)
	b.WriteByte('\n')
	return b.String()
}
