// Package storage persists cache entries as two-field records keyed by string.
package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/pkg/utils"
	"go.uber.org/zap"
)

// Record is one stored entry. A field that was never written is reported as
// absent rather than empty, so partially written entries can be detected.
type Record struct {
	Key          string
	Text         string
	HasText      bool
	Embedding    []byte
	HasEmbedding bool
}

// Store is a key/value store of Records. Put writes both fields in a single
// atomic operation and overwrites any existing record.
type Store interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Put(ctx context.Context, key, text string, embedding []byte) error
	// Scan calls fn for every record whose key starts with prefix. Returning
	// an error from fn stops the scan and returns that error.
	Scan(ctx context.Context, prefix string, fn func(Record) error) error
	Count(ctx context.Context, prefix string) (int64, error)
	Close() error
}

// Open creates the Store selected by cfg.Backend. It returns nil, nil when
// caching is disabled.
func Open(cfg config.CacheConfig, logger *zap.Logger) (Store, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	logger = utils.OrNop(logger)
	switch cfg.Backend {
	case config.CacheMemory:
		return NewMemoryStore(cfg.Capacity), nil
	case config.CacheSQLite:
		return NewSQLiteStore(cfg.Path)
	case config.CacheBadger:
		return NewBadgerStore(cfg.Path, false, logger)
	case config.CacheRedis:
		return NewRedisStore(context.Background(), RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Path returns the on-disk location used by cfg, or "" for non-file backends.
func Path(cfg config.CacheConfig) string {
	switch cfg.Backend {
	case config.CacheSQLite, config.CacheBadger:
		return cfg.Path
	default:
		return ""
	}
}
