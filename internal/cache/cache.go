// Package cache holds short-lived, loss-tolerant state shared between
// requests: per-attempt timing series and per-group event counters.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrCacheMiss = errors.New("cache: key not found")

// KeyValueCache is the capability every backend provides. Callers never know
// which backend is active.
type KeyValueCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Increment adds one to the counter at key and refreshes its TTL.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// SetIfAbsent stores value only when key is missing and reports whether it
	// did. An existing key keeps its value and TTL.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

type Config struct {
	Driver     string
	RedisAddr  string
	RedisPass  string
	RedisDB    int
	MemorySize int
	MaxTTL     time.Duration
}

// New selects the backend at startup. An unreachable redis degrades to the
// in-process cache instead of failing the service.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (KeyValueCache, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		logger.Info().Int("size", cfg.MemorySize).Msg("Using in-process ephemeral cache")
		return NewMemoryCache(cfg.MemorySize, cfg.MaxTTL), nil
	case "redis":
		rc := NewRedisCache(RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, falling back to in-process cache")
			_ = rc.Close()
			return NewMemoryCache(cfg.MemorySize, cfg.MaxTTL), nil
		}

		logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis ephemeral cache")
		return rc, nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Driver)
	}
}
