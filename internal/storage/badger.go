package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/hyperjump/kensaku/pkg/utils"
	"go.uber.org/zap"
)

// BadgerStore keeps each record as one JSON value in an embedded Badger database.
type BadgerStore struct {
	db *badger.DB
}

// badgerValue is the stored form. Absent fields decode as nil. Text that is
// not valid UTF-8 goes into RawText, which JSON carries as base64.
type badgerValue struct {
	Text      *string         `json:"text,omitempty"`
	RawText   []byte          `json:"raw_text,omitempty"`
	Embedding json.RawMessage `json:"embedding,omitempty"`
}

// badgerLogger adapts zap to badger.Logger.
type badgerLogger struct {
	s *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, args ...any)   { l.s.Errorf(msg, args...) }
func (l *badgerLogger) Warningf(msg string, args ...any) { l.s.Warnf(msg, args...) }
func (l *badgerLogger) Infof(msg string, args ...any)    { l.s.Debugf(msg, args...) }
func (l *badgerLogger) Debugf(msg string, args ...any)   { l.s.Debugf(msg, args...) }

// NewBadgerStore opens a Badger database in dir, creating it if needed.
// With inMemory set dir is ignored and nothing is written to disk.
func NewBadgerStore(dir string, inMemory bool, logger *zap.Logger) (*BadgerStore, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		info, err := os.Stat(dir)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{s: utils.OrNop(logger).Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get returns the record stored under key.
func (b *BadgerStore) Get(_ context.Context, key string) (Record, bool, error) {
	var rec Record
	err := b.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err = decodeBadgerValue(key, raw)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to get entry %s: %w", key, err)
	}
	return rec, true, nil
}

// Put writes the record as a single value.
func (b *BadgerStore) Put(_ context.Context, key, text string, embedding []byte) error {
	v := badgerValue{Embedding: embedding}
	if utf8.ValidString(text) {
		v.Text = &text
	} else {
		v.RawText = []byte(text)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode entry %s: %w", key, err)
	}
	if err := b.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(key), raw)
	}); err != nil {
		return fmt.Errorf("failed to put entry %s: %w", key, err)
	}
	return nil
}

// Scan visits matching records in key order.
func (b *BadgerStore) Scan(ctx context.Context, prefix string, fn func(Record) error) error {
	return b.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			key := string(item.KeyCopy(nil))
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read entry %s: %w", key, err)
			}
			rec, err := decodeBadgerValue(key, raw)
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns how many keys start with prefix.
func (b *BadgerStore) Count(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := b.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func decodeBadgerValue(key string, raw []byte) (Record, error) {
	var v badgerValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return Record{}, fmt.Errorf("failed to decode entry %s: %w", key, err)
	}
	rec := Record{Key: key}
	switch {
	case v.RawText != nil:
		rec.Text, rec.HasText = string(v.RawText), true
	case v.Text != nil:
		rec.Text, rec.HasText = *v.Text, true
	}
	if len(v.Embedding) > 0 {
		rec.Embedding, rec.HasEmbedding = []byte(v.Embedding), true
	}
	return rec, nil
}
