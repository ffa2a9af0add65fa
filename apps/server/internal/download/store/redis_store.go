package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tilsley/dirpack/apps/server/internal/download"
)

const (
	redisIndexKey  = "dirpack:jobs"
	redisKeyPrefix = "dirpack:job:"
)

// Compile-time check: *RedisStore implements download.JobStore.
var _ download.JobStore = (*RedisStore)(nil)

// RedisStore keeps job records in Redis. Each record expires after ttl; the
// index is a sorted set scored by creation time.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a new RedisStore. A zero ttl keeps records forever.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Save writes rec and indexes it. Index entries older than ttl are pruned.
func (s *RedisStore) Save(ctx context.Context, rec download.JobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+rec.ID, data, s.ttl)
	pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: rec.ID})
	if s.ttl > 0 {
		cutoff := time.Now().Add(-s.ttl).UnixMilli()
		pipe.ZRemRangeByScore(ctx, redisIndexKey, "-inf", fmt.Sprintf("(%d", cutoff))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save job %q: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a job by ID, returning nil if not found or expired.
func (s *RedisStore) Get(ctx context.Context, id string) (*download.JobRecord, error) {
	val, err := s.rdb.Get(ctx, redisKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get job %q: %w", id, err)
	}
	var rec download.JobRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal job %q: %w", id, err)
	}
	return &rec, nil
}

// List returns up to limit records, newest first. Index entries whose record
// has expired are skipped.
func (s *RedisStore) List(ctx context.Context, limit int) ([]download.JobRecord, error) {
	ids, err := s.rdb.ZRevRange(ctx, redisIndexKey, 0, int64(normLimit(limit)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list index: %w", err)
	}
	result := make([]download.JobRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			result = append(result, *rec)
		}
	}
	return result, nil
}
