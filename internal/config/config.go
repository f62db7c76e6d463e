// Package config loads server configuration from the environment. A .env
// file in the working directory is honored when present, matching how the
// server is run on small field deployments.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	JWT       JWTConfig
	Sync      SyncConfig
	RateLimit RateLimitConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// StorageConfig configures the owner registry and the regional stores.
// One sqlite database is opened per region under DataDir.
type StorageConfig struct {
	DataDir string
	// Regions is the set of data-sovereignty partitions this deployment
	// serves. A record is only ever stored in its owner's region.
	Regions []string
}

// JWTConfig configures access and refresh tokens.
type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// SyncConfig tunes the sync surface.
type SyncConfig struct {
	// PullPageSize is the max records returned per delta page.
	PullPageSize int
	// MaxPushBatch is the max entries accepted per push request.
	MaxPushBatch int
	// TombstoneRetention is how long deleted records are kept before
	// physical purge. Must cover the longest supported offline stretch.
	TombstoneRetention time.Duration
	// PurgeInterval is how often the tombstone purge runs.
	PurgeInterval time.Duration
}

// RateLimitConfig configures per-IP rate limiting on auth endpoints.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from the environment, loading .env first if
// one exists.
func Load() (*Config, error) {
	// Missing .env is fine; env vars may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("AGRISYNC_ADDR", ":8080"),
			ShutdownTimeout: getDuration("AGRISYNC_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			DataDir: getEnv("AGRISYNC_DATA_DIR", "./data"),
			Regions: getList("AGRISYNC_REGIONS", []string{"west-africa", "east-africa", "southern-africa", "north-africa", "central-africa"}),
		},
		JWT: JWTConfig{
			Secret:          os.Getenv("AGRISYNC_JWT_SECRET"),
			AccessTokenTTL:  getDuration("AGRISYNC_ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getDuration("AGRISYNC_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		},
		Sync: SyncConfig{
			PullPageSize:       getInt("AGRISYNC_PULL_PAGE_SIZE", 100),
			MaxPushBatch:       getInt("AGRISYNC_MAX_PUSH_BATCH", 200),
			TombstoneRetention: getDuration("AGRISYNC_TOMBSTONE_RETENTION", 30*24*time.Hour),
			PurgeInterval:      getDuration("AGRISYNC_PURGE_INTERVAL", 6*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Requests: getInt("AGRISYNC_RATE_LIMIT", 30),
			Window:   getDuration("AGRISYNC_RATE_WINDOW", time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("AGRISYNC_JWT_SECRET is required")
	}
	if len(c.Storage.Regions) == 0 {
		return fmt.Errorf("AGRISYNC_REGIONS must list at least one region")
	}
	if c.Sync.PullPageSize <= 0 {
		return fmt.Errorf("AGRISYNC_PULL_PAGE_SIZE must be positive")
	}
	if c.Sync.MaxPushBatch <= 0 {
		return fmt.Errorf("AGRISYNC_MAX_PUSH_BATCH must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
