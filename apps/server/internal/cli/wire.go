package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tilsley/dirpack/apps/server/internal/download"
	"github.com/tilsley/dirpack/apps/server/internal/download/store"
	"github.com/tilsley/dirpack/apps/server/internal/download/store/pgmigrations"
	"github.com/tilsley/dirpack/apps/server/internal/platform/config"
	"github.com/tilsley/dirpack/apps/server/internal/platform/github"
	pgplatform "github.com/tilsley/dirpack/apps/server/internal/platform/postgres"
)

func newRemote(cfg *config.Config) (*github.Adapter, error) {
	opts := github.Options{
		Token:   cfg.GitHub.Token,
		BaseURL: cfg.GitHub.APIURL,
		Timeout: cfg.GitHub.Timeout,
	}
	if cfg.GitHub.UsesApp() {
		opts.AppID = cfg.GitHub.AppID
		opts.InstallationID = cfg.GitHub.InstallationID
		opts.PrivateKeyPath = cfg.GitHub.PrivateKeyPath
	}
	gh, err := github.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("github client: %w", err)
	}
	return github.New(gh), nil
}

func newFetcher(cfg *config.Config, remote download.Remote, log *slog.Logger, progress func(string, int64)) *download.Fetcher {
	return download.NewFetcher(remote, log, download.FetcherConfig{
		Concurrency: cfg.Fetch.Concurrency,
		CallTimeout: cfg.Fetch.CallTimeout,
		Progress:    progress,
	})
}

// openJobStore returns the configured history backend and a func releasing
// its connections.
func openJobStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (download.JobStore, func(), error) {
	switch cfg.History.Backend() {
	case "postgres":
		pool, err := pgplatform.Open(ctx, pgplatform.Options{URL: cfg.History.PostgresURL}, pgmigrations.FS)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres job store: %w", err)
		}
		log.Info("job history in postgres")
		return store.NewPGStore(pool), pool.Close, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.History.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close() //nolint:errcheck
			return nil, nil, fmt.Errorf("redis job store: %w", err)
		}
		log.Info("job history in redis", "addr", cfg.History.RedisAddr, "ttl", cfg.History.TTL)
		return store.NewRedisStore(rdb, cfg.History.TTL), func() { _ = rdb.Close() }, nil //nolint:errcheck

	default:
		log.Info("job history in memory", "capacity", cfg.History.MemoryCapacity)
		return store.NewMemoryStore(cfg.History.MemoryCapacity), func() {}, nil
	}
}
