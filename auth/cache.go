package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Token is a bearer credential and the instant it stops being valid.
type Token struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenCache stores at most one token. ttl is how long the token stays
// valid, measured on the caller's clock.
type TokenCache interface {
	Get(ctx context.Context) (Token, bool)
	Set(ctx context.Context, token Token, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// MemoryCache keeps the token in process memory.
type MemoryCache struct {
	mu    sync.RWMutex
	token Token
	ok    bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(_ context.Context) (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.ok
}

func (c *MemoryCache) Set(_ context.Context, token Token, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token, c.ok = token, true
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token, c.ok = Token{}, false
	return nil
}

// RedisCache shares the token between processes through a redis key that
// expires together with the token.
type RedisCache struct {
	rdb *redis.Client
	key string
}

// NewRedisCache stores the token under key, e.g. "travelbook:sheet_token:<app id>".
func NewRedisCache(rdb *redis.Client, key string) *RedisCache {
	return &RedisCache{rdb: rdb, key: key}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (c *RedisCache) Get(ctx context.Context) (Token, bool) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		return Token{}, false
	}
	var token Token
	if err := json.Unmarshal(raw, &token); err != nil || token.Value == "" {
		return Token{}, false
	}
	return token, true
}

func (c *RedisCache) Set(ctx context.Context, token Token, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("token already expired")
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key, raw, ttl).Err()
}

func (c *RedisCache) Clear(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}
