package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for all esglens settings.
const envPrefix = "ESGLENS"

// configKeys lists every known configuration key. Unmarshal only considers
// keys viper has seen, so each is bound explicitly to make pure-environment
// loading work without a config file.
var configKeys = []string{
	"server.port", "server.mode", "server.read_timeout", "server.write_timeout", "server.shutdown_timeout",
	"cleaner.min_line_tokens", "cleaner.repeat_ratio", "cleaner.min_pages_for_repeat", "cleaner.noise_patterns",
	"segmenter.min_chars", "segmenter.min_words",
	"embedder.backend_url", "embedder.model", "embedder.timeout", "embedder.batch_size",
	"embedder.cache_backend", "embedder.cache_path",
	"matcher.top_k", "matcher.min_score", "matcher.index",
	"redis.addr", "redis.password", "redis.db", "redis.pool_size",
	"redis.dial_timeout", "redis.read_timeout", "redis.write_timeout",
	"redis.default_ttl", "redis.key_prefix",
	"milvus.addr", "milvus.collection_prefix", "milvus.search_timeout", "milvus.insert_batch_size",
	"analysis.base_url", "analysis.model", "analysis.timeout",
	"log.level", "log.format",
	"metrics.enabled", "metrics.path",
}

// newViper builds a pre-configured Viper instance: YAML file type, ESGLENS_
// env prefix, automatic env binding, and a key replacer mapping "." → "_" so
// nested keys like "matcher.top_k" resolve to "ESGLENS_MATCHER_TOP_K".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range configKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the YAML file at configPath, merges ESGLENS_* environment
// overrides, applies defaults for unset fields, and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from ESGLENS_* environment variables
// and defaults, with no config file required. Preferred for containerised
// deployments.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the newly parsed Config
// whenever the file changes on disk. Intended for hot-reloading non-critical
// settings such as log level and matching thresholds; callers apply only the
// safe subset at runtime. Non-blocking; a change that fails to parse or
// validate is skipped without invoking onChange.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
}

// MustLoad wraps Load and panics on error. For use in main() where a
// config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
