package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis hash field names.
const (
	fieldText      = "text"
	fieldEmbedding = "embedding"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 500

// RedisOptions configures the connection to a Redis server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps every record as a Redis hash with fields text and embedding.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client}, nil
}

// Get reads the hash stored under key.
func (r *RedisStore) Get(ctx context.Context, key string) (Record, bool, error) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to get entry %s: %w", key, err)
	}
	if len(fields) == 0 {
		return Record{}, false, nil
	}
	return redisRecord(key, fields), true, nil
}

// Put sets both hash fields with one HSET.
func (r *RedisStore) Put(ctx context.Context, key, text string, embedding []byte) error {
	if err := r.client.HSet(ctx, key, fieldText, text, fieldEmbedding, string(embedding)).Err(); err != nil {
		return fmt.Errorf("failed to put entry %s: %w", key, err)
	}
	return nil
}

// Scan walks matching keys with SCAN and reads each hash. Order is unspecified.
func (r *RedisStore) Scan(ctx context.Context, prefix string, fn func(Record) error) error {
	seen := map[string]bool{}
	iter := r.client.Scan(ctx, 0, matchPattern(prefix), scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		// SCAN may return a key more than once.
		if seen[key] {
			continue
		}
		seen[key] = true
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to read entry %s: %w", key, err)
		}
		if len(fields) == 0 {
			continue
		}
		if err := fn(redisRecord(key, fields)); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan entries: %w", err)
	}
	return nil
}

// Count returns how many keys match prefix.
func (r *RedisStore) Count(ctx context.Context, prefix string) (int64, error) {
	seen := map[string]bool{}
	iter := r.client.Scan(ctx, 0, matchPattern(prefix), scanBatch).Iterator()
	for iter.Next(ctx) {
		seen[iter.Val()] = true
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return int64(len(seen)), nil
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// matchPattern escapes glob metacharacters in prefix and appends "*".
func matchPattern(prefix string) string {
	var b strings.Builder
	for _, c := range prefix {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	b.WriteByte('*')
	return b.String()
}

func redisRecord(key string, fields map[string]string) Record {
	rec := Record{Key: key}
	rec.Text, rec.HasText = fields[fieldText]
	if emb, ok := fields[fieldEmbedding]; ok {
		rec.Embedding, rec.HasEmbedding = []byte(emb), true
	}
	return rec
}
