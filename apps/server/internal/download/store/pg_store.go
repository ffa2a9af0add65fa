package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tilsley/dirpack/apps/server/internal/download"
)

// Compile-time check: *PGStore implements download.JobStore.
var _ download.JobStore = (*PGStore)(nil)

// PGStore implements download.JobStore using PostgreSQL. The schema lives in
// pgmigrations and is applied by platform/postgres.Open.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a new PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const jobColumns = `id, url, owner, repo, branch, path, status, files, bytes, failures, error, created_at, duration_ms`

// Save upserts a job record.
func (s *PGStore) Save(ctx context.Context, rec download.JobRecord) error {
	var failuresJSON []byte
	if len(rec.Failures) > 0 {
		var err error
		failuresJSON, err = json.Marshal(rec.Failures)
		if err != nil {
			return fmt.Errorf("marshal failures: %w", err)
		}
	}

	var owner, repo, branch, path *string
	if l := rec.Location; l != nil {
		owner, repo, branch, path = &l.Owner, &l.Repo, &l.Branch, &l.Path
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO download_jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			files = EXCLUDED.files,
			bytes = EXCLUDED.bytes,
			failures = EXCLUDED.failures,
			error = EXCLUDED.error,
			duration_ms = EXCLUDED.duration_ms`,
		rec.ID, rec.URL, owner, repo, branch, path, string(rec.Status),
		rec.Files, rec.Bytes, failuresJSON, nilIfEmpty(rec.Error), rec.CreatedAt, rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert download_job %q: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a job by ID. Returns nil, nil if not found.
func (s *PGStore) Get(ctx context.Context, id string) (*download.JobRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM download_jobs WHERE id = $1`, id)
	rec, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns up to limit records, newest first.
func (s *PGStore) List(ctx context.Context, limit int) ([]download.JobRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM download_jobs ORDER BY created_at DESC LIMIT $1`, normLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list download_jobs: %w", err)
	}
	defer rows.Close()

	result := []download.JobRecord{}
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

func scanJob(row pgx.Row) (*download.JobRecord, error) {
	var (
		rec                       download.JobRecord
		owner, repo, branch, path *string
		status                    string
		failuresJSON              []byte
		errText                   *string
	)
	err := row.Scan(&rec.ID, &rec.URL, &owner, &repo, &branch, &path, &status,
		&rec.Files, &rec.Bytes, &failuresJSON, &errText, &rec.CreatedAt, &rec.DurationMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan download_job: %w", err)
	}

	rec.Status = download.JobStatus(status)
	rec.CreatedAt = rec.CreatedAt.UTC()
	if owner != nil && repo != nil {
		rec.Location = &download.RepoLocation{Owner: *owner, Repo: *repo, Branch: deref(branch), Path: deref(path)}
	}
	if errText != nil {
		rec.Error = *errText
	}
	if failuresJSON != nil {
		if err := json.Unmarshal(failuresJSON, &rec.Failures); err != nil {
			return nil, fmt.Errorf("unmarshal failures for %q: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
