// Package redis provides a redis-backed vector cache, for sharing embedding
// vectors across processes and runs. The cache degrades gracefully: every
// redis error is treated as a miss, because a miss is always recoverable by
// re-encoding while a failed run is not.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/pkg/errors"
)

// Config holds the redis connection settings.
type Config struct {
	Addr         string        `mapstructure:"addr"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// Prefix namespaces the cache keys (default "esglens:vec:").
	Prefix string `mapstructure:"prefix"`

	// TTL expires entries; zero keeps them indefinitely.
	TTL time.Duration `mapstructure:"ttl"`

	// OpTimeout bounds each cache operation (default 2s).
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

const (
	defaultPrefix    = "esglens:vec:"
	defaultOpTimeout = 2 * time.Second
)

// VectorCache implements the embedder's VectorCache over redis. Vectors are
// stored as JSON arrays keyed by content hash.
type VectorCache struct {
	rdb     redis.UniversalClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  logging.Logger
	sf      singleflight.Group
}

// NewVectorCache connects to redis and verifies the connection.
func NewVectorCache(cfg Config, logger logging.Logger) (*VectorCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	c := newWithClient(rdb, cfg, logger)
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "redis ping failed").
			WithDetail("addr=" + cfg.Addr)
	}
	return c, nil
}

// newWithClient wires a cache around an existing client; tests inject mocks
// through it.
func newWithClient(rdb redis.UniversalClient, cfg Config, logger logging.Logger) *VectorCache {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.OpTimeout == 0 {
		cfg.OpTimeout = defaultOpTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &VectorCache{
		rdb:     rdb,
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
		timeout: cfg.OpTimeout,
		logger:  logger.Named("redis-cache"),
	}
}

func (c *VectorCache) key(hash string) string { return c.prefix + hash }

// Get fetches the vector for the content hash. Concurrent gets for the same
// key are collapsed into one round trip.
func (c *VectorCache) Get(hash string) ([]float32, bool) {
	v, err, _ := c.sf.Do(hash, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		return c.rdb.Get(ctx, c.key(hash)).Bytes()
	})
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed, treating as miss", logging.Err(err))
		}
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(v.([]byte), &vec); err != nil {
		c.logger.Warn("cache entry corrupt, treating as miss",
			logging.String("hash", hash), logging.Err(err))
		return nil, false
	}
	return vec, true
}

// Put stores the vector under the content hash. Errors are logged, not
// returned: the cache never decides a run's fate.
func (c *VectorCache) Put(hash string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		c.logger.Warn("cache encode failed", logging.Err(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.rdb.Set(ctx, c.key(hash), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache put failed", logging.Err(err))
	}
}

// Len counts the cache's entries with a prefix scan. Informational only.
func (c *VectorCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	n := 0
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("cache scan failed", logging.Err(err))
	}
	return n
}

// Close releases the connection pool.
func (c *VectorCache) Close() error {
	if err := c.rdb.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "close redis client")
	}
	return nil
}
