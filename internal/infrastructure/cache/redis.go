package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

const maxJitterMinutes = 5

// setIfNotOlder stores ARGV[1] unless the cached cart has a higher version
// than ARGV[2]. Unreadable entries are overwritten. Returns 1 when written.
var setIfNotOlder = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local ok, doc = pcall(cjson.decode, current)
	if ok and type(doc) == 'table' and tonumber(doc.version) and tonumber(doc.version) > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisCartCache is the cart read cache. Entries expire after the base TTL
// plus up to five minutes of jitter so a burst of writes does not expire
// together.
type RedisCartCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

func NewRedisCartCache(client redis.UniversalClient, baseTTL time.Duration) *RedisCartCache {
	if baseTTL <= 0 {
		baseTTL = 15 * time.Minute
	}
	return &RedisCartCache{client: client, baseTTL: baseTTL}
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisCartCache) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &c, nil
}

// Set caches c unless a newer version of the cart is already cached.
func (r *RedisCartCache) Set(ctx context.Context, userID string, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL + time.Duration(rand.Intn(maxJitterMinutes))*time.Minute
	err = setIfNotOlder.Run(ctx, r.client, []string{cacheKey(userID)}, data, c.Version, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCartCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return "cart:" + userID
}
