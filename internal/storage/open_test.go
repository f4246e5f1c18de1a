package storage

import (
	"path/filepath"
	"testing"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	s, err := Open(config.CacheConfig{Backend: config.CacheNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(config.CacheConfig{Backend: config.CacheMemory, Capacity: 3}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	require.NoError(t, s.Close())

	path := filepath.Join(t.TempDir(), "e.db")
	s, err = Open(config.CacheConfig{Backend: config.CacheSQLite, Path: path}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(config.CacheConfig{Backend: "memcached"}, nil)
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "/x/e.db", Path(config.CacheConfig{Backend: config.CacheSQLite, Path: "/x/e.db"}))
	assert.Equal(t, "", Path(config.CacheConfig{Backend: config.CacheRedis, Path: "/x"}))
}
