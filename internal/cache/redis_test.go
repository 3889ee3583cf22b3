package cache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client, zap.NewNop())

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func testCart() *domain.Cart {
	cart := domain.NewCart()
	cart.Lines["42"] = domain.CartLine{
		ProductID: "42",
		Name:      "Dress",
		Quantity:  2,
		UnitPrice: decimal.NewFromInt(80),
	}
	return cart
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	session := "session123"

	cartJSON, _ := json.Marshal(testCart())
	mr.Set(cacheKey(session), string(cartJSON))

	result, err := cache.Get(ctx, session)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	line := result.Lines["42"]
	assert.Equal(t, "Dress", line.Name)
	assert.Equal(t, 2, line.Quantity)
	assert.True(t, line.UnitPrice.Equal(decimal.NewFromInt(80)))
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_MalformedPayloadDecodesToEmptyCart(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Set(cacheKey("session123"), "{definitely not json")

	result, err := cache.Get(context.Background(), "session123")
	require.NoError(t, err)
	assert.True(t, result.IsEmpty())
}

func TestGet_NormalizesStoredLines(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	// a line persisted by an older client without quantity or name
	mr.Set(cacheKey("session123"), `{"lines":{"7":{"product_id":"7"}}}`)

	result, err := cache.Get(context.Background(), "session123")
	require.NoError(t, err)
	line := result.Lines["7"]
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, domain.PlaceholderName, line.Name)
}

func TestSetThenGet_RoundTrip(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "session123", testCart()))

	result, err := cache.Get(ctx, "session123")
	require.NoError(t, err)
	assert.Len(t, result.Lines, 1)
}

func TestDelete(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "session123", testCart()))
	require.NoError(t, cache.Delete(ctx, "session123"))

	_, err := cache.Get(ctx, "session123")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
