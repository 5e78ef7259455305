package settings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/arnavshah/limits-settings-go/pkg/config"
	"github.com/arnavshah/limits-settings-go/pkg/models"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKey = "limits:settings"

// ErrCacheMiss is returned by a Cache when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// Cache is the byte cache CachedStore reads through
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RedisCache implements Cache on redis
type RedisCache struct {
	rdb *goredis.Client
}

// NewRedisCache connects to redis and pings it
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "connect redis")
	}
	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// Close closes the redis connection
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// CachedStore serves reads from a cache and writes through to it. A fill
// that raced with a write is dropped. Cache failures degrade to the inner
// store.
type CachedStore struct {
	inner  Store
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger

	// mu orders cache fills against writes; gen counts writes
	mu  sync.Mutex
	gen uint64
}

// NewCachedStore wraps inner with a read cache
func NewCachedStore(inner Store, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedStore {
	return &CachedStore{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (s *CachedStore) Read(ctx context.Context) (*models.Settings, error) {
	b, err := s.cache.Get(ctx, cacheKey)
	if err == nil {
		var doc models.Settings
		if err := json.Unmarshal(b, &doc); err == nil {
			return &doc, nil
		}
		s.logger.Warn("dropping undecodable cached settings")
	} else if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("settings cache read failed", zap.Error(err))
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	doc, err := s.inner.Read(ctx)
	if err != nil {
		return nil, err
	}
	b, err = json.Marshal(doc)
	if err != nil {
		return doc, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return doc, nil
	}
	if err := s.cache.Set(ctx, cacheKey, b, s.ttl); err != nil {
		s.logger.Warn("settings cache fill failed", zap.Error(err))
	}
	return doc, nil
}

func (s *CachedStore) Write(ctx context.Context, doc *models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.inner.Write(ctx, doc); err != nil {
		return err
	}
	s.gen++

	b, err := json.Marshal(doc)
	if err == nil {
		err = s.cache.Set(ctx, cacheKey, b, s.ttl)
	}
	if err != nil {
		s.logger.Warn("settings cache update failed, invalidating", zap.Error(err))
		if err := s.cache.Del(ctx, cacheKey); err != nil {
			s.logger.Warn("settings cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}
