package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Config is the process-wide configuration a Service is built with.
type Config struct {
	// ServerToken is the GitHub credential the server calls the API with.
	// Callers authenticate with its SHA-256 digest. Empty fails every job.
	ServerToken string
	// WorkDir holds staging trees and archives. Defaults to os.TempDir().
	WorkDir string
	// AllowPartial delivers an archive of whatever was fetched when some
	// paths failed. When false, any failure fails the job.
	AllowPartial bool
}

// Request is one job submission from the HTTP boundary.
type Request struct {
	URL   string
	Token string
}

// Archive is a finished zip handed to the caller. The caller owns the file
// and must call Service.Discard once it has been delivered.
type Archive struct {
	JobID    string
	Path     string
	Filename string
	Location RepoLocation
	Result   *FetchResult
}

// Partial reports whether some paths were missing from the archive.
func (a *Archive) Partial() bool {
	return !a.Result.AllSucceeded()
}

// Service runs download jobs: validate, resolve, fetch, archive.
// It depends only on the Remote and JobStore ports.
type Service struct {
	cfg     Config
	fetcher *Fetcher
	store   JobStore
	log     *slog.Logger

	tracer      trace.Tracer
	jobDuration metric.Float64Histogram
}

// NewService creates a new Service. store may be nil to disable job history.
func NewService(cfg Config, fetcher *Fetcher, store JobStore, log *slog.Logger) *Service {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	duration, _ := otel.Meter(instrName).Float64Histogram("dirpack.job.duration",
		metric.WithDescription("Download job duration in milliseconds"),
		metric.WithUnit("ms"))
	return &Service{
		cfg:         cfg,
		fetcher:     fetcher,
		store:       store,
		log:         log,
		tracer:      otel.Tracer(instrName),
		jobDuration: duration,
	}
}

// Download runs one job end to end. The staging tree is always removed before
// Download returns; on success the archive is left for the caller.
func (s *Service) Download(ctx context.Context, req Request) (*Archive, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "Download", trace.WithAttributes(attribute.String("url", req.URL)))
	defer span.End()

	if err := s.authorize(req.Token); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rec := JobRecord{ID: uuid.New().String(), URL: req.URL, CreatedAt: start.UTC()}
	archive, err := s.run(ctx, rec.ID, req.URL, &rec)

	elapsed := time.Since(start)
	rec.DurationMs = elapsed.Milliseconds()
	status := JobSucceeded
	switch {
	case err != nil:
		status = JobFailed
		rec.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case archive.Partial():
		status = JobPartial
	}
	rec.Status = status
	s.jobDuration.Record(ctx, float64(elapsed.Milliseconds()),
		metric.WithAttributes(attribute.String("status", string(status))))
	s.record(ctx, rec)

	return archive, err
}

func (s *Service) authorize(token string) error {
	if s.cfg.ServerToken == "" {
		return ServerMisconfiguredError{Missing: "GitHub token"}
	}
	return CheckToken(s.cfg.ServerToken, token)
}

func (s *Service) run(ctx context.Context, jobID, rawURL string, rec *JobRecord) (*Archive, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, InvalidURLError{URL: rawURL, Reason: "URL is required"}
	}
	loc, err := Resolve(rawURL)
	if err != nil {
		return nil, err
	}
	rec.Location = &loc

	s.log.Info("downloading", "jobId", jobID, "owner", loc.Owner, "repo", loc.Repo, "branch", loc.Branch, "path", loc.Path)

	staging, err := os.MkdirTemp(s.cfg.WorkDir, "dirpack-stage-*")
	if err != nil {
		return nil, InternalError{Op: "create staging dir", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			s.log.Error("failed to remove staging dir", "jobId", jobID, "dir", staging, "error", err)
		}
	}()

	res := s.fetcher.FetchTree(ctx, loc, staging)
	rec.Files = res.Files
	rec.Bytes = res.Bytes
	rec.Failures = failureRecords(res.Failures)

	if res.RootErr != nil {
		return nil, rootError(loc, res.RootErr)
	}
	if res.Files == 0 {
		return nil, NotFoundError{Location: loc, Reason: "no files found or directory is empty"}
	}
	if !res.AllSucceeded() {
		if !s.cfg.AllowPartial {
			return nil, RemoteAPIError{
				Kind: RemoteAPI,
				Op:   "fetch tree",
				Err:  fmt.Errorf("%d of %d paths failed", len(res.Failures), len(res.Failures)+res.Files),
			}
		}
		s.log.Warn("delivering partial archive", "jobId", jobID, "files", res.Files, "failed", len(res.Failures))
	}

	path := filepath.Join(s.cfg.WorkDir, "dirpack-"+jobID+"-"+loc.ArchiveName())
	if _, err := ZipDir(staging, path); err != nil {
		_ = os.Remove(path) //nolint:errcheck // best effort, the archive is incomplete
		return nil, InternalError{Op: "archive", Err: err}
	}

	s.log.Info("download complete", "jobId", jobID, "files", res.Files, "bytes", res.Bytes, "archive", path)
	return &Archive{
		JobID:    jobID,
		Path:     path,
		Filename: loc.ArchiveName(),
		Location: loc,
		Result:   res,
	}, nil
}

// rootError turns a failed listing of the requested directory into a job error.
func rootError(loc RepoLocation, err error) error {
	var nd NotDirectoryError
	if errors.As(err, &nd) {
		return NotFoundError{Location: loc, Reason: "path is a file, not a directory"}
	}
	var remote RemoteAPIError
	if errors.As(err, &remote) && remote.Kind == RemoteNotFound {
		return NotFoundError{Location: loc, Reason: "directory not found or no access permissions"}
	}
	if errors.As(err, &remote) {
		return remote
	}
	return RemoteAPIError{Kind: RemoteAPI, Op: "list " + loc.Path, Err: err}
}

// Discard removes a delivered archive. It is safe to call from a goroutine
// after the response has been written.
func (s *Service) Discard(a *Archive) {
	if a == nil {
		return
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		s.log.Error("failed to remove archive", "jobId", a.JobID, "archive", a.Path, "error", err)
		return
	}
	s.log.Debug("removed archive", "jobId", a.JobID, "archive", a.Path)
}

// Job returns the history record for id, or nil if none exists.
func (s *Service) Job(ctx context.Context, id string) (*JobRecord, error) {
	if s.store == nil {
		return nil, nil //nolint:nilnil // history disabled reads as "not found"
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %q: %w", id, err)
	}
	return rec, nil
}

// Jobs returns up to limit recent job records, newest first.
func (s *Service) Jobs(ctx context.Context, limit int) ([]JobRecord, error) {
	if s.store == nil {
		return []JobRecord{}, nil
	}
	recs, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return recs, nil
}

func (s *Service) record(ctx context.Context, rec JobRecord) {
	if s.store == nil {
		return
	}
	// The job outcome is already decided; history is best effort.
	if err := s.store.Save(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Error("failed to record job", "jobId", rec.ID, "error", err)
	}
}
