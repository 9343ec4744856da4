package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	listedKeyPrefix   = "listed:"
	idempotencyKeyTTL = 24 * time.Hour
)

// Reserves quantity against the cached listed amount. A missing key returns
// -1 so the caller falls through to the authoritative store.
var decrementListedScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return -1
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

// Restores a reservation, but never resurrects a key that was evicted or
// removed by a delisting in between.
var incrementListedScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.call('INCRBY', KEYS[1], ARGV[1])
end
return 0
`)

// RedisAdapter caches listed amounts per mint and deduplicates purchase
// requests. The cache is a non-authoritative mirror of the store.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetListed(ctx context.Context, mint string, amount uint64) error {
	return r.client.Set(ctx, listedKeyPrefix+mint, amount, 0).Err()
}

func (r *RedisAdapter) Listed(ctx context.Context, mint string) (uint64, bool, error) {
	amount, err := r.client.Get(ctx, listedKeyPrefix+mint).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return amount, true, nil
}

func (r *RedisAdapter) DecrementListed(ctx context.Context, mint string, quantity uint64) (bool, error) {
	result, err := decrementListedScript.Run(ctx, r.client, []string{listedKeyPrefix + mint}, quantity).Int()
	if err != nil {
		return false, err
	}
	return result != 0, nil
}

func (r *RedisAdapter) IncrementListed(ctx context.Context, mint string, quantity uint64) error {
	return incrementListedScript.Run(ctx, r.client, []string{listedKeyPrefix + mint}, quantity).Err()
}

func (r *RedisAdapter) RemoveListed(ctx context.Context, mint string) error {
	return r.client.Del(ctx, listedKeyPrefix+mint).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
