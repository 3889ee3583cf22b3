package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func NewRedisCache(client *redis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 30 * 24 * time.Hour,
		logger:  logger,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
	logger  *zap.Logger
}

// Get returns ErrCacheMiss for an absent key. A malformed payload decodes to
// an empty cart rather than an error: a corrupt local copy must not break the
// session.
func (r RedisCache) Get(ctx context.Context, session string) (*domain.Cart, error) {
	key := cacheKey(session)

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	if !json.Valid(data) {
		r.logger.Warn("discarding malformed cached cart", zap.String("session", session))
	}
	return domain.DecodeCart(data), nil
}

func (r RedisCache) Set(ctx context.Context, session string, cart *domain.Cart) error {
	key := cacheKey(session)
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Minute
	ttl := r.baseTTL + jitter
	if ret := r.client.Set(ctx, key, string(jsonCart), ttl); ret.Err() != nil {
		return fmt.Errorf("redis set failed: %w", ret.Err())
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, session string) error {
	key := cacheKey(session)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func cacheKey(session string) string {
	return fmt.Sprintf("cart:%s", session)
}
