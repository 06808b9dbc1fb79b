// Package config defines all configuration structures for esglens.
// No I/O or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP results-server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CleanerConfig holds layout-noise filtering thresholds for raw page text.
// All thresholds are run-level configuration; nothing is hard-coded in the
// cleaning logic.
type CleanerConfig struct {
	// MinLineTokens is the minimum token count for an isolated line to
	// survive cleaning when it is not part of a larger paragraph.
	MinLineTokens int `mapstructure:"min_line_tokens"`

	// RepeatRatio is the fraction of pages on which a normalized line must
	// repeat verbatim to be classified as a header/footer.
	RepeatRatio float64 `mapstructure:"repeat_ratio"`

	// MinPagesForRepeat is the minimum page count before repetition-based
	// header/footer detection activates.
	MinPagesForRepeat int `mapstructure:"min_pages_for_repeat"`

	// NoisePatterns is an optional list of regular expressions; lines
	// matching any of them are dropped as boilerplate.
	NoisePatterns []string `mapstructure:"noise_patterns"`
}

// SegmenterConfig holds paragraph segmentation thresholds.
type SegmenterConfig struct {
	// MinChars is the minimum character count below which a fragment is
	// merged into the following paragraph.
	MinChars int `mapstructure:"min_chars"`

	// MinWords is the minimum word count for a merged paragraph to be kept.
	MinWords int `mapstructure:"min_words"`
}

// EmbedderConfig holds embedding backend and cache parameters.
type EmbedderConfig struct {
	// BackendURL is the base URL of the HTTP embedding service.
	BackendURL string `mapstructure:"backend_url"`

	// Model is the embedding model identifier passed to the backend.
	Model string `mapstructure:"model"`

	// Timeout is the per-request timeout for backend calls.
	Timeout time.Duration `mapstructure:"timeout"`

	// BatchSize is the maximum number of texts encoded per backend batch.
	BatchSize int `mapstructure:"batch_size"`

	// CacheBackend selects the vector cache: "memory" | "redis".
	CacheBackend string `mapstructure:"cache_backend"`

	// CachePath is an optional file path; when set, the in-memory cache is
	// persisted there between runs. Best-effort only.
	CachePath string `mapstructure:"cache_path"`
}

// MatcherConfig holds ranking policy parameters.
type MatcherConfig struct {
	// TopK is the maximum number of matches returned per requirement.
	TopK int `mapstructure:"top_k"`

	// MinScore is the cosine similarity threshold in [-1, 1]; matches below
	// it are dropped.
	MinScore float64 `mapstructure:"min_score"`

	// Index selects the paragraph index implementation: "brute" | "milvus".
	Index string `mapstructure:"index"`
}

// RedisConfig holds redis vector-cache connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// MilvusConfig holds ANN paragraph-index connection parameters.
type MilvusConfig struct {
	Addr             string        `mapstructure:"addr"`
	CollectionPrefix string        `mapstructure:"collection_prefix"`
	SearchTimeout    time.Duration `mapstructure:"search_timeout"`
	InsertBatchSize  int           `mapstructure:"insert_batch_size"`
}

// AnalysisConfig holds parameters for the external LLM commentary service.
type AnalysisConfig struct {
	// BaseURL is the text-generation endpoint root; empty disables analysis.
	BaseURL string `mapstructure:"base_url"`

	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
}

// MetricsConfig holds prometheus exposition parameters.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Cleaner   CleanerConfig   `mapstructure:"cleaner"`
	Segmenter SegmenterConfig `mapstructure:"segmenter"`
	Embedder  EmbedderConfig  `mapstructure:"embedder"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Milvus    MilvusConfig    `mapstructure:"milvus"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// Validate checks every field for consistency and returns the first error found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Cleaner.MinLineTokens < 0 {
		return fmt.Errorf("config: cleaner.min_line_tokens must be >= 0, got %d", c.Cleaner.MinLineTokens)
	}
	if c.Cleaner.RepeatRatio <= 0 || c.Cleaner.RepeatRatio > 1 {
		return fmt.Errorf("config: cleaner.repeat_ratio %v is out of range (0, 1]", c.Cleaner.RepeatRatio)
	}

	if c.Segmenter.MinChars < 0 {
		return fmt.Errorf("config: segmenter.min_chars must be >= 0, got %d", c.Segmenter.MinChars)
	}
	if c.Segmenter.MinWords < 0 {
		return fmt.Errorf("config: segmenter.min_words must be >= 0, got %d", c.Segmenter.MinWords)
	}

	if c.Embedder.BackendURL == "" {
		return fmt.Errorf("config: embedder.backend_url is required")
	}
	if c.Embedder.Model == "" {
		return fmt.Errorf("config: embedder.model is required")
	}
	if c.Embedder.BatchSize < 1 {
		return fmt.Errorf("config: embedder.batch_size must be >= 1, got %d", c.Embedder.BatchSize)
	}
	switch c.Embedder.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: embedder.cache_backend %q is invalid; expected memory|redis", c.Embedder.CacheBackend)
	}
	if c.Embedder.CacheBackend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when embedder.cache_backend is redis")
	}

	if c.Matcher.TopK < 1 {
		return fmt.Errorf("config: matcher.top_k must be >= 1, got %d", c.Matcher.TopK)
	}
	if c.Matcher.MinScore < -1 || c.Matcher.MinScore > 1 {
		return fmt.Errorf("config: matcher.min_score %v is out of range [-1, 1]", c.Matcher.MinScore)
	}
	switch c.Matcher.Index {
	case "brute", "milvus":
	default:
		return fmt.Errorf("config: matcher.index %q is invalid; expected brute|milvus", c.Matcher.Index)
	}
	if c.Matcher.Index == "milvus" && c.Milvus.Addr == "" {
		return fmt.Errorf("config: milvus.addr is required when matcher.index is milvus")
	}

	return nil
}
