package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kensaku/pkg/searcherr"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kensaku.yaml")
	content := `
embedding:
  provider: mock
  dimensions: 16
cache:
  backend: sqlite
  path: "./cache/embeddings.db"
search:
  threshold: 0.25
  show_score: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.Provider != ProviderMock || cfg.Embedding.Dimensions != 16 {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	wantCache := filepath.Join(dir, "cache", "embeddings.db")
	if cfg.Cache.Path != wantCache {
		t.Errorf("cache path = %s, want %s", cfg.Cache.Path, wantCache)
	}
	if got := cfg.Search.ThresholdOrDefault(); got != 0.25 {
		t.Errorf("threshold = %v, want 0.25", got)
	}
	if !cfg.Search.ShowScore {
		t.Error("show_score should be true")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_zeroThresholdIsKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kensaku.yaml")
	if err := os.WriteFile(path, []byte("search:\n  threshold: 0\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Search.ThresholdOrDefault(); got != 0 {
		t.Errorf("threshold = %v, want 0", got)
	}
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !searcherr.HasCode(err, searcherr.CodeConfigLoadFailure) {
		t.Errorf("code = %q, want %q", searcherr.CodeOf(err), searcherr.CodeConfigLoadFailure)
	}
}

func TestLoad_invalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown provider", "embedding:\n  provider: word2vec\n"},
		{"unknown backend", "cache:\n  backend: memcached\n"},
		{"negative dimensions", "embedding:\n  dimensions: -1\n"},
		{"negative timeout", "embedding:\n  timeout_secs: -5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "kensaku.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if searcherr.ExitCode(err) != 2 {
				t.Errorf("exit code = %d, want 2", searcherr.ExitCode(err))
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Embedding.Provider != ProviderONNX {
		t.Errorf("default provider: got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("default dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Cache.Backend != CacheNone || cfg.Cache.Enabled() {
		t.Errorf("cache should be disabled by default, got %q", cfg.Cache.Backend)
	}
	if cfg.Cache.Namespace != "embedding" {
		t.Errorf("default namespace: got %s", cfg.Cache.Namespace)
	}
	if cfg.Search.ThresholdOrDefault() != DefaultThreshold {
		t.Errorf("default threshold: got %v", cfg.Search.ThresholdOrDefault())
	}
	if cfg.Scan.Workers != 8 {
		t.Errorf("default workers: got %d", cfg.Scan.Workers)
	}
	if cfg.Watch.DebounceMillis != 400 {
		t.Errorf("default debounce: got %d", cfg.Watch.DebounceMillis)
	}
}

func TestApplyDefaults_cachePathPerBackend(t *testing.T) {
	sqlite := &Config{Cache: CacheConfig{Backend: CacheSQLite}}
	ApplyDefaults(sqlite)
	if sqlite.Cache.Path == "" {
		t.Error("sqlite backend should get a default path")
	}
	redis := &Config{Cache: CacheConfig{Backend: CacheRedis}}
	ApplyDefaults(redis)
	if redis.Cache.Path != "" {
		t.Errorf("redis backend should not get a path, got %q", redis.Cache.Path)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if !filepath.IsAbs(cfg.Embedding.ModelPath) {
		t.Errorf("model path should be absolute, got %s", cfg.Embedding.ModelPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	th := 0.7
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 9090},
		Search: SearchConfig{Threshold: &th},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Search.ThresholdOrDefault() != 0.7 {
		t.Errorf("loaded threshold: got %v", loaded.Search.ThresholdOrDefault())
	}
}

func TestSetCacheBackend(t *testing.T) {
	cfg := Default()
	if err := cfg.SetCacheBackend(CacheSQLite); err != nil {
		t.Fatalf("SetCacheBackend: %v", err)
	}
	if !filepath.IsAbs(cfg.Cache.Path) || filepath.Base(cfg.Cache.Path) != "embeddings.db" {
		t.Errorf("cache path = %q, want absolute default sqlite path", cfg.Cache.Path)
	}
	if !cfg.Cache.Enabled() {
		t.Error("cache should be enabled")
	}

	if err := cfg.SetCacheBackend("etcd"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSetCacheBackend_replacesDefaultedPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kensaku.yaml")
	content := `
embedding:
  provider: mock
  dimensions: 16
cache:
  backend: sqlite
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if filepath.Base(cfg.Cache.Path) != "embeddings.db" {
		t.Fatalf("sqlite path = %q", cfg.Cache.Path)
	}

	if err := cfg.SetCacheBackend(CacheBadger); err != nil {
		t.Fatalf("SetCacheBackend: %v", err)
	}
	if filepath.Base(cfg.Cache.Path) != "badger" || !filepath.IsAbs(cfg.Cache.Path) {
		t.Errorf("badger path = %q, want absolute default badger directory", cfg.Cache.Path)
	}

	if err := cfg.SetCacheBackend(CacheMemory); err != nil {
		t.Fatalf("SetCacheBackend: %v", err)
	}
	if cfg.Cache.Path != "" {
		t.Errorf("memory backend should carry no path, got %q", cfg.Cache.Path)
	}
}

func TestSetCacheBackend_keepsConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kensaku.yaml")
	content := `
embedding:
  provider: mock
  dimensions: 16
cache:
  backend: sqlite
  path: "./store"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.SetCacheBackend(CacheBadger); err != nil {
		t.Fatalf("SetCacheBackend: %v", err)
	}
	if want := filepath.Join(dir, "store"); cfg.Cache.Path != want {
		t.Errorf("cache path = %q, want %q", cfg.Cache.Path, want)
	}
}
