package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/dirpack/apps/server/internal/download"
)

var baseJob = download.JobRecord{
	ID:  "job-1",
	URL: "https://github.com/acme/widgets/tree/main/docs",
	Location: &download.RepoLocation{
		Owner: "acme", Repo: "widgets", Branch: "main", Path: "docs",
	},
	Status:     download.JobPartial,
	Files:      3,
	Bytes:      1024,
	Failures:   []download.FailureRecord{{Path: "docs/private", Kind: download.FailureListing, Error: "HTTP 403"}},
	CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	DurationMs: 42,
}

// jobAt returns baseJob with the given id, created n minutes after baseJob.
func jobAt(id string, n int) download.JobRecord {
	j := baseJob
	j.ID = id
	j.CreatedAt = baseJob.CreatedAt.Add(time.Duration(n) * time.Minute)
	return j
}

// runJobStoreContract exercises behaviour every backend must share.
func runJobStoreContract(t *testing.T, newStore func(t *testing.T) download.JobStore) {
	t.Run("SaveGet", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(context.Background(), baseJob))

		got, err := s.Get(context.Background(), baseJob.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, baseJob, *got)
	})

	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		s := newStore(t)

		got, err := s.Get(context.Background(), "nonexistent")

		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("FailedJobWithoutLocation", func(t *testing.T) {
		s := newStore(t)
		j := jobAt("bad-url", 0)
		j.Location = nil
		j.Status = download.JobFailed
		j.Files, j.Bytes, j.Failures = 0, 0, nil
		j.Error = "invalid GitHub URL"
		require.NoError(t, s.Save(context.Background(), j))

		got, err := s.Get(context.Background(), j.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Nil(t, got.Location)
		assert.Equal(t, "invalid GitHub URL", got.Error)
		assert.Empty(t, got.Failures)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		s := newStore(t)
		for i := range 5 {
			require.NoError(t, s.Save(context.Background(), jobAt(fmt.Sprintf("job-%d", i), i)))
		}

		got, err := s.List(context.Background(), 3)

		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"job-4", "job-3", "job-2"}, []string{got[0].ID, got[1].ID, got[2].ID})
	})

	t.Run("ListEmpty", func(t *testing.T) {
		s := newStore(t)

		got, err := s.List(context.Background(), 10)

		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
