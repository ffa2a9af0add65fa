package download

import (
	"sort"
	"strings"
	"time"
)

// DefaultBranch is assumed when a URL names no branch. Listing calls omit the
// ref query parameter for it.
const DefaultBranch = "main"

// LargeFileThreshold is the size above which inline listing content is ignored
// and the file is fetched through its download URL.
const LargeFileThreshold = 1 << 20

// RepoLocation identifies a directory inside a repository on a given branch.
// Path is empty for the repository root and never starts or ends with "/".
type RepoLocation struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Path   string `json:"path"`
}

// ArchiveName returns the file name offered to clients for this location,
// e.g. "owner_repo_src_cmd.zip" or "owner_repo_root.zip".
func (l RepoLocation) ArchiveName() string {
	suffix := "root"
	if l.Path != "" {
		suffix = strings.ReplaceAll(l.Path, "/", "_")
	}
	return l.Owner + "_" + l.Repo + "_" + suffix + ".zip"
}

// Child returns the location of the named entry below l.
func (l RepoLocation) Child(name string) RepoLocation {
	c := l
	if l.Path == "" {
		c.Path = name
	} else {
		c.Path = l.Path + "/" + name
	}
	return c
}

// EntryType is the kind of a directory listing entry.
type EntryType string

// Entry types reported by the contents API. Only files and directories are
// materialized; symlinks and submodules are skipped.
const (
	EntryFile      EntryType = "file"
	EntryDir       EntryType = "dir"
	EntrySymlink   EntryType = "symlink"
	EntrySubmodule EntryType = "submodule"
)

// Entry is one child of a directory listing.
type Entry struct {
	Name          string
	Type          EntryType
	Size          int64
	DownloadURL   string // empty when the API reported none
	InlineContent *string
}

// FailureKind classifies a per-path failure recorded during a walk.
type FailureKind string

// Failure kinds.
const (
	FailureListing      FailureKind = "listing"
	FailureNotDirectory FailureKind = "not_directory"
	FailureFile         FailureKind = "file"
)

// Failure records one path that could not be fetched.
type Failure struct {
	Path string      `json:"path"`
	Kind FailureKind `json:"kind"`
	Err  error       `json:"-"`
}

// FetchResult is the outcome of a tree walk. Files and Bytes count what was
// written to the staging tree; Failures lists every path that was not.
type FetchResult struct {
	Files    int
	Bytes    int64
	Failures []Failure
	// RootErr is set when the requested directory itself could not be listed.
	RootErr error
}

// AllSucceeded reports whether every file and subdirectory was fetched.
func (r *FetchResult) AllSucceeded() bool {
	return len(r.Failures) == 0
}

// FailedPaths returns the paths of all failures in order.
func (r *FetchResult) FailedPaths() []string {
	out := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Path
	}
	return out
}

func (r *FetchResult) sortFailures() {
	sort.SliceStable(r.Failures, func(i, j int) bool {
		return r.Failures[i].Path < r.Failures[j].Path
	})
}

// JobStatus is the terminal state of a download job.
type JobStatus string

// Job statuses.
const (
	JobSucceeded JobStatus = "succeeded"
	JobPartial   JobStatus = "partial"
	JobFailed    JobStatus = "failed"
)

// FailureRecord is the serialisable form of a Failure kept in job history.
type FailureRecord struct {
	Path  string      `json:"path"`
	Kind  FailureKind `json:"kind"`
	Error string      `json:"error"`
}

// JobRecord summarises one download job. It never carries file content.
type JobRecord struct {
	ID         string          `json:"id"`
	URL        string          `json:"url"`
	Location   *RepoLocation   `json:"location,omitempty"`
	Status     JobStatus       `json:"status"`
	Files      int             `json:"files"`
	Bytes      int64           `json:"bytes"`
	Failures   []FailureRecord `json:"failures,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	DurationMs int64           `json:"durationMs"`
}

func failureRecords(fs []Failure) []FailureRecord {
	if len(fs) == 0 {
		return nil
	}
	out := make([]FailureRecord, len(fs))
	for i, f := range fs {
		rec := FailureRecord{Path: f.Path, Kind: f.Kind}
		if f.Err != nil {
			rec.Error = f.Err.Error()
		}
		out[i] = rec
	}
	return out
}
