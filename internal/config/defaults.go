package config

// DefaultThreshold is the minimum relevance a result must exceed.
const DefaultThreshold = 0.5

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderONNX
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = ".local/share/kensaku/models/all-MiniLM-L12-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-minilm"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "KENSAKU_API_KEY"
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheNone
	}
	if cfg.Cache.Namespace == "" {
		cfg.Cache.Namespace = "embedding"
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = 10000
	}
	if cfg.Cache.Path == "" {
		switch cfg.Cache.Backend {
		case CacheSQLite:
			cfg.Cache.Path = ".cache/kensaku/embeddings.db"
		case CacheBadger:
			cfg.Cache.Path = ".cache/kensaku/badger"
		}
		cfg.Cache.defaultPath = cfg.Cache.Path != ""
	}
	if cfg.Cache.RedisAddr == "" {
		cfg.Cache.RedisAddr = "localhost:6379"
	}
	if cfg.Scan.Workers == 0 {
		cfg.Scan.Workers = 8
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Watch.DebounceMillis == 0 {
		cfg.Watch.DebounceMillis = 400
	}
}
