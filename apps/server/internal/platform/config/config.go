// Package config loads dirpack server settings from an optional YAML file
// and the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Port      string          `yaml:"port"`
	GitHub    GitHubConfig    `yaml:"github"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Download  DownloadConfig  `yaml:"download"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GitHubConfig selects how the server authenticates against the API.
// A token and an App installation are alternatives; the App wins when both
// are set. The token is still required for caller authentication.
type GitHubConfig struct {
	Token          string        `yaml:"token"`
	APIURL         string        `yaml:"api_url"`
	AppID          int64         `yaml:"app_id"`
	InstallationID int64         `yaml:"installation_id"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	Timeout        time.Duration `yaml:"timeout"`
}

// UsesApp reports whether GitHub App installation auth is configured.
func (g GitHubConfig) UsesApp() bool {
	return g.AppID != 0 && g.InstallationID != 0 && g.PrivateKeyPath != ""
}

// FetchConfig tunes the tree walk.
type FetchConfig struct {
	Concurrency int           `yaml:"concurrency"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// DownloadConfig controls staging and delivery.
type DownloadConfig struct {
	WorkDir      string `yaml:"work_dir"`
	AllowPartial bool   `yaml:"allow_partial"`
}

// HistoryConfig picks the job history backend: Postgres when PostgresURL is
// set, else Redis when RedisAddr is set, else process memory.
type HistoryConfig struct {
	RedisAddr      string        `yaml:"redis_addr"`
	PostgresURL    string        `yaml:"postgres_url"`
	TTL            time.Duration `yaml:"ttl"`
	MemoryCapacity int           `yaml:"memory_capacity"`
}

// Backend names the selected history backend.
func (h HistoryConfig) Backend() string {
	switch {
	case h.PostgresURL != "":
		return "postgres"
	case h.RedisAddr != "":
		return "redis"
	default:
		return "memory"
	}
}

// TelemetryConfig mirrors telemetry.Options.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port: "7860",
		GitHub: GitHubConfig{
			Timeout: 60 * time.Second,
		},
		Fetch: FetchConfig{
			Concurrency: 4,
			CallTimeout: 30 * time.Second,
		},
		Download: DownloadConfig{
			WorkDir:      os.TempDir(),
			AllowPartial: true,
		},
		History: HistoryConfig{
			TTL:            24 * time.Hour,
			MemoryCapacity: 1000,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "dirpack-server",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// DIRPACK_CONFIG (if any), then environment overrides. A missing GitHub
// token is not an error here; jobs report it instead.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("DIRPACK_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = envOr("PORT", c.Port)
	c.GitHub.Token = envOr("GITHUB_TOKEN", c.GitHub.Token)
	c.GitHub.APIURL = envOr("GITHUB_API_URL", c.GitHub.APIURL)
	c.GitHub.PrivateKeyPath = envOr("GITHUB_APP_PRIVATE_KEY_PATH", c.GitHub.PrivateKeyPath)
	c.Download.WorkDir = envOr("DIRPACK_WORK_DIR", c.Download.WorkDir)
	c.History.RedisAddr = envOr("REDIS_ADDR", c.History.RedisAddr)
	c.History.PostgresURL = envOr("POSTGRES_URL", c.History.PostgresURL)
	c.Telemetry.Endpoint = envOr("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.Endpoint)
	c.Telemetry.ServiceName = envOr("OTEL_SERVICE_NAME", c.Telemetry.ServiceName)

	var errs []error
	parse := func(key string, fn func(string) error) {
		if v := os.Getenv(key); v != "" {
			if err := fn(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}
	parse("GITHUB_APP_ID", func(v string) (err error) {
		c.GitHub.AppID, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	parse("GITHUB_APP_INSTALLATION_ID", func(v string) (err error) {
		c.GitHub.InstallationID, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	parse("FETCH_CONCURRENCY", func(v string) (err error) {
		c.Fetch.Concurrency, err = strconv.Atoi(v)
		return err
	})
	parse("FETCH_CALL_TIMEOUT", func(v string) (err error) {
		c.Fetch.CallTimeout, err = time.ParseDuration(v)
		return err
	})
	parse("ALLOW_PARTIAL", func(v string) (err error) {
		c.Download.AllowPartial, err = strconv.ParseBool(v)
		return err
	})
	parse("HISTORY_TTL", func(v string) (err error) {
		c.History.TTL, err = time.ParseDuration(v)
		return err
	})
	parse("OTEL_ENABLED", func(v string) (err error) {
		c.Telemetry.Enabled, err = strconv.ParseBool(v)
		return err
	})
	return errors.Join(errs...)
}

func (c *Config) validate() error {
	if c.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch.concurrency must be at least 1, got %d", c.Fetch.Concurrency)
	}
	if c.Fetch.CallTimeout <= 0 {
		return fmt.Errorf("fetch.call_timeout must be positive, got %s", c.Fetch.CallTimeout)
	}
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	if g := c.GitHub; !g.UsesApp() && (g.AppID != 0 || g.InstallationID != 0 || g.PrivateKeyPath != "") {
		return errors.New("github app auth needs app_id, installation_id and private_key_path " +
			"(GITHUB_APP_ID, GITHUB_APP_INSTALLATION_ID, GITHUB_APP_PRIVATE_KEY_PATH) together")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
