package priceFeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stakewell/stakedash/internal/config"
)

// PriceCache keeps the last good quote per symbol. Entries are returned regardless of age;
// the client decides whether a quote is fresh.
type PriceCache interface {
	Get(ctx context.Context, symbol string) (*PriceQuote, bool, error)
	Set(ctx context.Context, quote *PriceQuote) error
}

type MemoryCache struct {
	mu     sync.RWMutex
	quotes map[string]*PriceQuote
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{quotes: make(map[string]*PriceQuote)}
}

func (mc *MemoryCache) Get(ctx context.Context, symbol string) (*PriceQuote, bool, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	q, ok := mc.quotes[strings.ToUpper(symbol)]
	if !ok {
		return nil, false, nil
	}
	cp := *q
	return &cp, true, nil
}

func (mc *MemoryCache) Set(ctx context.Context, quote *PriceQuote) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	cp := *quote
	mc.quotes[strings.ToUpper(quote.Symbol)] = &cp
	return nil
}

const redisKeyPrefix = "stakedash:price:"

// Stale quotes are still useful as a fallback, so redis keeps them well past the freshness ttl.
const redisRetention = 7 * 24 * time.Hour

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func NewRedisClientFromConfig(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.Db,
	})
}

func redisKey(symbol string) string {
	return redisKeyPrefix + strings.ToUpper(symbol)
}

func (rc *RedisCache) Get(ctx context.Context, symbol string) (*PriceQuote, bool, error) {
	raw, err := rc.client.Get(ctx, redisKey(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached price: %w", err)
	}
	quote := &PriceQuote{}
	if err := json.Unmarshal(raw, quote); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached price: %w", err)
	}
	return quote, true, nil
}

func (rc *RedisCache) Set(ctx context.Context, quote *PriceQuote) error {
	raw, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, redisKey(quote.Symbol), raw, redisRetention).Err()
}
