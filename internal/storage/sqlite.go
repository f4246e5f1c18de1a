package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps records in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		text TEXT,
		embedding TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`)
	return err
}

// Get returns the record stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Record, bool, error) {
	var text, emb sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT text, embedding FROM cache_entries WHERE key = ?`, key,
	).Scan(&text, &emb)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to get entry %s: %w", key, err)
	}
	return sqlRecord(key, text, emb), true, nil
}

// Put upserts both fields in one statement.
func (s *SQLiteStore) Put(ctx context.Context, key, text string, embedding []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, text, embedding, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET text = excluded.text, embedding = excluded.embedding, updated_at = excluded.updated_at`,
		key, text, string(embedding), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to put entry %s: %w", key, err)
	}
	return nil
}

// Scan visits matching records in key order.
func (s *SQLiteStore) Scan(ctx context.Context, prefix string, fn func(Record) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, text, embedding FROM cache_entries WHERE substr(key, 1, ?) = ? ORDER BY key`,
		utf8.RuneCountInString(prefix), prefix,
	)
	if err != nil {
		return fmt.Errorf("failed to scan entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var text, emb sql.NullString
		if err := rows.Scan(&key, &text, &emb); err != nil {
			return fmt.Errorf("failed to read entry: %w", err)
		}
		if err := fn(sqlRecord(key, text, emb)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns how many keys start with prefix.
func (s *SQLiteStore) Count(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE substr(key, 1, ?) = ?`,
		utf8.RuneCountInString(prefix), prefix,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqlRecord(key string, text, emb sql.NullString) Record {
	r := Record{Key: key, Text: text.String, HasText: text.Valid, HasEmbedding: emb.Valid}
	if emb.Valid {
		r.Embedding = []byte(emb.String)
	}
	return r
}
