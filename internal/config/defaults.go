package config

import "time"

// Default value constants. Every threshold consumed by the pipeline is
// declared here and overridable via file or environment.
const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultMinLineTokens     = 3
	DefaultRepeatRatio       = 0.5
	DefaultMinPagesForRepeat = 3

	DefaultMinChars = 100
	DefaultMinWords = 20

	DefaultBackendURL      = "http://localhost:11434"
	DefaultEmbeddingModel  = "nomic-embed-text"
	DefaultEmbedderTimeout = 30 * time.Second
	DefaultBatchSize       = 32
	DefaultCacheBackend    = "memory"

	DefaultTopK     = 5
	DefaultMinScore = 0.35
	DefaultIndex    = "brute"

	DefaultRedisAddr  = "localhost:6379"
	DefaultRedisTTL   = 7 * 24 * time.Hour
	DefaultKeyPrefix  = "esglens:"
	DefaultMilvusAddr = "localhost:19530"

	DefaultAnalysisModel   = "llama3"
	DefaultAnalysisTimeout = 2 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsPath = "/metrics"
)

// ApplyDefaults fills every zero-value field in cfg with its default.
// Fields already set by the caller are left unchanged so explicit
// configuration always wins. It must run after unmarshalling and before
// Validate so optional-but-defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Cleaner.MinLineTokens == 0 {
		cfg.Cleaner.MinLineTokens = DefaultMinLineTokens
	}
	if cfg.Cleaner.RepeatRatio == 0 {
		cfg.Cleaner.RepeatRatio = DefaultRepeatRatio
	}
	if cfg.Cleaner.MinPagesForRepeat == 0 {
		cfg.Cleaner.MinPagesForRepeat = DefaultMinPagesForRepeat
	}

	if cfg.Segmenter.MinChars == 0 {
		cfg.Segmenter.MinChars = DefaultMinChars
	}
	if cfg.Segmenter.MinWords == 0 {
		cfg.Segmenter.MinWords = DefaultMinWords
	}

	if cfg.Embedder.BackendURL == "" {
		cfg.Embedder.BackendURL = DefaultBackendURL
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = DefaultEmbeddingModel
	}
	if cfg.Embedder.Timeout == 0 {
		cfg.Embedder.Timeout = DefaultEmbedderTimeout
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = DefaultBatchSize
	}
	if cfg.Embedder.CacheBackend == "" {
		cfg.Embedder.CacheBackend = DefaultCacheBackend
	}

	if cfg.Matcher.TopK == 0 {
		cfg.Matcher.TopK = DefaultTopK
	}
	if cfg.Matcher.MinScore == 0 {
		cfg.Matcher.MinScore = DefaultMinScore
	}
	if cfg.Matcher.Index == "" {
		cfg.Matcher.Index = DefaultIndex
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}

	if cfg.Milvus.Addr == "" {
		cfg.Milvus.Addr = DefaultMilvusAddr
	}
	if cfg.Milvus.CollectionPrefix == "" {
		cfg.Milvus.CollectionPrefix = "esglens_"
	}
	if cfg.Milvus.SearchTimeout == 0 {
		cfg.Milvus.SearchTimeout = 10 * time.Second
	}
	if cfg.Milvus.InsertBatchSize == 0 {
		cfg.Milvus.InsertBatchSize = 500
	}

	if cfg.Analysis.Model == "" {
		cfg.Analysis.Model = DefaultAnalysisModel
	}
	if cfg.Analysis.Timeout == 0 {
		cfg.Analysis.Timeout = DefaultAnalysisTimeout
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
