package download

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const instrName = "github.com/tilsley/dirpack"

// FetcherConfig tunes a Fetcher. Zero values select the defaults.
type FetcherConfig struct {
	// Concurrency bounds in-flight remote calls across the whole walk.
	// 1 reproduces a strictly serial walk. Default 4.
	Concurrency int
	// CallTimeout bounds each listing or download call. Default 30s.
	CallTimeout time.Duration
	// LargeFileThreshold overrides LargeFileThreshold, mainly for tests.
	LargeFileThreshold int64
	// Progress, when set, is called once per file written with its path
	// relative to the requested directory and its size.
	Progress func(relPath string, n int64)
}

// Fetcher mirrors a remote directory tree into a local staging directory.
// A single Fetcher may serve many concurrent jobs; the concurrency bound is
// applied per FetchTree call.
type Fetcher struct {
	remote             Remote
	log                *slog.Logger
	concurrency        int64
	callTimeout        time.Duration
	largeFileThreshold int64
	progress           func(string, int64)

	tracer       trace.Tracer
	filesFetched metric.Int64Counter
	filesFailed  metric.Int64Counter

	// sem is set per walk; see FetchTree.
	sem *semaphore.Weighted
}

// NewFetcher creates a Fetcher reading from remote.
func NewFetcher(remote Remote, log *slog.Logger, cfg FetcherConfig) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.LargeFileThreshold <= 0 {
		cfg.LargeFileThreshold = LargeFileThreshold
	}

	m := otel.Meter(instrName)
	fetched, _ := m.Int64Counter("dirpack.files.fetched",
		metric.WithDescription("Files written to a staging tree"))
	failed, _ := m.Int64Counter("dirpack.files.failed",
		metric.WithDescription("Files or directories that could not be fetched"))

	return &Fetcher{
		remote:             remote,
		log:                log,
		concurrency:        int64(cfg.Concurrency),
		callTimeout:        cfg.CallTimeout,
		largeFileThreshold: cfg.LargeFileThreshold,
		progress:           cfg.Progress,
		tracer:             otel.Tracer(instrName),
		filesFetched:       fetched,
		filesFailed:        failed,
	}
}

// FetchTree walks loc and writes every file below it under stagingRoot,
// preserving relative paths. It never fails as a whole: listing and file
// failures are collected in the result and the walk continues with the
// remaining entries. RootErr is set when loc itself could not be listed.
func (f *Fetcher) FetchTree(ctx context.Context, loc RepoLocation, stagingRoot string) *FetchResult {
	// Copy so concurrent jobs on one Fetcher get independent bounds.
	walker := *f
	walker.sem = semaphore.NewWeighted(f.concurrency)

	w := &walk{f: &walker, base: loc.Path, res: &FetchResult{}}
	w.dir(ctx, loc, stagingRoot, true)
	w.wg.Wait()

	w.res.sortFailures()
	return w.res
}

type walk struct {
	f    *Fetcher
	base string

	wg  sync.WaitGroup
	mu  sync.Mutex
	res *FetchResult
}

func (w *walk) dir(ctx context.Context, loc RepoLocation, localDir string, root bool) {
	entries, err := w.f.list(ctx, loc)
	if err != nil {
		kind := FailureListing
		var nd NotDirectoryError
		if errors.As(err, &nd) {
			kind = FailureNotDirectory
		}
		w.fail(loc.Path, kind, err, root)
		return
	}

	for _, e := range entries {
		child := loc.Child(e.Name)
		if !safeName(e.Name) {
			w.fail(child.Path, FailureFile, errors.New("unsafe entry name"), false)
			continue
		}
		local := filepath.Join(localDir, e.Name)

		switch e.Type {
		case EntryFile:
			n, err := w.f.materialize(ctx, e, local)
			if err != nil {
				w.fail(child.Path, FailureFile, err, false)
				continue
			}
			w.ok(child.Path, n)
		case EntryDir:
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.dir(ctx, child, local, false)
			}()
		default:
			w.f.log.Debug("skipping entry", "path", child.Path, "type", e.Type)
		}
	}
}

func (w *walk) ok(path string, n int64) {
	w.f.filesFetched.Add(context.Background(), 1)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.res.Files++
	w.res.Bytes += n
	if w.f.progress != nil {
		w.f.progress(w.rel(path), n)
	}
}

func (w *walk) fail(path string, kind FailureKind, err error, root bool) {
	w.f.log.Warn("fetch failed", "path", path, "kind", kind, "error", err)
	w.f.filesFailed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", string(kind))))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.res.Failures = append(w.res.Failures, Failure{Path: path, Kind: kind, Err: err})
	if root {
		w.res.RootErr = err
	}
}

// rel strips the requested directory from a repository path.
func (w *walk) rel(path string) string {
	if w.base == "" {
		return path
	}
	return strings.TrimPrefix(path, w.base+"/")
}

func (f *Fetcher) list(ctx context.Context, loc RepoLocation) ([]Entry, error) {
	ctx, span := f.tracer.Start(ctx, "ListDir",
		trace.WithAttributes(
			attribute.String("repo", loc.Owner+"/"+loc.Repo),
			attribute.String("path", loc.Path),
			attribute.String("ref", loc.Branch),
		),
	)
	defer span.End()

	if err := f.acquire(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer f.release()

	ctx, cancel := f.callContext(ctx)
	defer cancel()

	entries, err := f.remote.ListDir(ctx, loc.Owner, loc.Repo, loc.Path, loc.Branch)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("entries", len(entries)))
	return entries, nil
}

// callContext bounds a single remote call. Callers acquire the semaphore
// first so queueing time is not charged to the call.
func (f *Fetcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, f.callTimeout)
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.sem == nil {
		return nil
	}
	return f.sem.Acquire(ctx, 1)
}

func (f *Fetcher) release() {
	if f.sem != nil {
		f.sem.Release(1)
	}
}

// safeName rejects names that would escape the directory they are listed in.
func safeName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`)
}
