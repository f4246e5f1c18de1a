// Package cache memoizes embeddings by content hash in a persistent store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hyperjump/kensaku/internal/contentkey"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/pkg/searcherr"
	"github.com/hyperjump/kensaku/pkg/utils"
	"go.uber.org/zap"
)

// Cache maps text to its embedding through a storage.Store. Keys depend only
// on the text, so a file's path plays no part in lookups.
type Cache struct {
	store     storage.Store
	namespace string
	logger    *zap.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithNamespace sets the key prefix (default "embedding").
func WithNamespace(ns string) Option {
	return func(c *Cache) { c.namespace = ns }
}

// WithLogger sets a logger for hit/miss debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New returns a Cache backed by store.
func New(store storage.Store, opts ...Option) *Cache {
	c := &Cache{store: store, namespace: contentkey.DefaultNamespace}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c
}

// Stats reports how a GetOrEmbed call was served.
type Stats struct {
	Hits     int
	Misses   int
	Embedded int
}

// Key returns the store key for text.
func (c *Cache) Key(text string) string {
	return contentkey.Key(c.namespace, text)
}

// GetOrEmbed returns one vector per text, in order. Cached vectors are reused;
// all distinct misses are embedded with a single call to e and written back
// before returning. A text that appears several times is embedded once.
func (c *Cache) GetOrEmbed(ctx context.Context, texts []string, e embedding.Embedder) ([][]float32, Stats, error) {
	var stats Stats
	keys := make([]string, len(texts))
	resolved := make(map[string][]float32, len(texts))
	missIndex := make(map[string]bool)
	var missKeys, missTexts []string

	for i, text := range texts {
		key := c.Key(text)
		keys[i] = key
		if _, done := resolved[key]; done {
			stats.Hits++
			continue
		}
		if missIndex[key] {
			continue
		}
		vec, hit, err := c.lookup(ctx, key, text, e.Dimensions())
		if err != nil {
			return nil, stats, err
		}
		if hit {
			resolved[key] = vec
			stats.Hits++
			continue
		}
		missIndex[key] = true
		missKeys = append(missKeys, key)
		missTexts = append(missTexts, text)
	}
	stats.Misses = len(missKeys)

	if len(missTexts) > 0 {
		vecs, err := embedding.Batch(ctx, e, missTexts)
		if err != nil {
			return nil, stats, err
		}
		stats.Embedded = len(vecs)
		for i, key := range missKeys {
			if err := c.put(ctx, key, missTexts[i], vecs[i]); err != nil {
				return nil, stats, err
			}
			resolved[key] = vecs[i]
		}
	}

	out := make([][]float32, len(texts))
	for i, key := range keys {
		out[i] = resolved[key]
	}
	c.logger.Debug("cache lookup",
		zap.Int("texts", len(texts)),
		zap.Int("hits", stats.Hits),
		zap.Int("misses", stats.Misses))
	return out, stats, nil
}

// lookup reports a hit only for a complete entry holding the same text.
// Entries missing a field are treated as misses and rewritten.
func (c *Cache) lookup(ctx context.Context, key, text string, dim int) ([]float32, bool, error) {
	rec, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, searcherr.Wrap(err, searcherr.CodeCacheStoreFailure, "cache read failed", searcherr.FieldKey(key))
	}
	if !ok {
		return nil, false, nil
	}
	if !rec.HasEmbedding || !rec.HasText {
		c.logger.Debug("incomplete cache entry, re-embedding", zap.String("key", key))
		return nil, false, nil
	}
	if rec.Text != text {
		c.logger.Warn("cache key collision, re-embedding", zap.String("key", key))
		return nil, false, nil
	}
	vec, err := decodeVector(key, rec.Embedding, dim)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (c *Cache) put(ctx context.Context, key, text string, vec []float32) error {
	raw, err := json.Marshal(vec)
	if err != nil {
		return searcherr.Wrap(err, searcherr.CodeCacheEntryInvalid, "encode embedding", searcherr.FieldKey(key))
	}
	if err := c.store.Put(ctx, key, text, raw); err != nil {
		return searcherr.Wrap(err, searcherr.CodeCacheStoreFailure, "cache write failed", searcherr.FieldKey(key))
	}
	return nil
}

// List returns every complete entry in the namespace, sorted by key.
// Incomplete entries are skipped. When dim is positive every vector must have
// that dimension.
func (c *Cache) List(ctx context.Context, dim int) ([]models.CacheEntry, error) {
	var entries []models.CacheEntry
	err := c.store.Scan(ctx, contentkey.Prefix(c.namespace), func(rec storage.Record) error {
		if !rec.HasText || !rec.HasEmbedding {
			c.logger.Debug("skipping incomplete cache entry", zap.String("key", rec.Key))
			return nil
		}
		vec, err := decodeVector(rec.Key, rec.Embedding, dim)
		if err != nil {
			return err
		}
		if dim <= 0 && len(entries) > 0 && len(vec) != len(entries[0].Embedding) {
			return searcherr.New(searcherr.CodeCacheEntryInvalid,
				fmt.Sprintf("cached vector has dimension %d, others have %d", len(vec), len(entries[0].Embedding)),
				searcherr.FieldKey(rec.Key))
		}
		entries = append(entries, models.CacheEntry{Key: rec.Key, Text: rec.Text, Embedding: vec})
		return nil
	})
	if err != nil {
		if searcherr.IsCache(err) {
			return nil, err
		}
		return nil, searcherr.Wrap(err, searcherr.CodeCacheStoreFailure, "cache enumeration failed")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Corpus rebuilds an embedded corpus from every stored entry. Each item's
// Path is its cache key.
func (c *Cache) Corpus(ctx context.Context, dim int) (models.Corpus, error) {
	entries, err := c.List(ctx, dim)
	if err != nil {
		return nil, err
	}
	corpus := make(models.Corpus, len(entries))
	for i, e := range entries {
		corpus[i] = models.CorpusItem{Path: e.Key, Content: e.Text, Embedding: e.Embedding}
	}
	return corpus, nil
}

// Count returns the number of keys in the namespace, complete or not.
func (c *Cache) Count(ctx context.Context) (int64, error) {
	n, err := c.store.Count(ctx, contentkey.Prefix(c.namespace))
	if err != nil {
		return 0, searcherr.Wrap(err, searcherr.CodeCacheStoreFailure, "cache count failed")
	}
	return n, nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

func decodeVector(key string, raw []byte, dim int) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, searcherr.Wrap(err, searcherr.CodeCacheEntryInvalid, "cached embedding is not a JSON number array", searcherr.FieldKey(key))
	}
	if len(vec) == 0 {
		return nil, searcherr.New(searcherr.CodeCacheEntryInvalid, "cached embedding is empty", searcherr.FieldKey(key))
	}
	if dim > 0 && len(vec) != dim {
		return nil, searcherr.New(searcherr.CodeCacheEntryInvalid,
			fmt.Sprintf("cached embedding has dimension %d, want %d", len(vec), dim),
			searcherr.FieldKey(key))
	}
	return vec, nil
}
