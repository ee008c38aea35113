// Package quota reports remaining balances per rate limiter. The gateway
// only reads balances to include them in the end-of-stream event; the
// limiters themselves are maintained elsewhere.
package quota

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Reader returns the remaining balance for every configured limiter.
type Reader interface {
	Remaining(ctx context.Context, userID string) (map[string]int64, error)
}

// StaticReader serves fixed balances. Used when no quota backend is
// configured so the end event always carries the available_quotas field.
type StaticReader struct {
	balances map[string]int64
}

// NewStaticReader copies the given balances.
func NewStaticReader(balances map[string]int64) *StaticReader {
	copied := make(map[string]int64, len(balances))
	for name, value := range balances {
		copied[name] = value
	}
	return &StaticReader{balances: copied}
}

func (r *StaticReader) Remaining(ctx context.Context, userID string) (map[string]int64, error) {
	out := make(map[string]int64, len(r.balances))
	for name, value := range r.balances {
		out[name] = value
	}
	return out, nil
}

const redisQuotaPrefix = "modelgate:quota:"

// RedisReader reads limiter balances from Redis. Each limiter stores one
// integer per user at "modelgate:quota:<limiter>:<user>"; a missing key
// means the user has not consumed anything yet, so the full limit remains.
type RedisReader struct {
	client redis.Cmdable
	limits map[string]int64
}

// NewRedisReader creates a reader over the given limiter limits.
func NewRedisReader(client redis.Cmdable, limits map[string]int64) *RedisReader {
	copied := make(map[string]int64, len(limits))
	for name, value := range limits {
		copied[name] = value
	}
	return &RedisReader{client: client, limits: copied}
}

func (r *RedisReader) Remaining(ctx context.Context, userID string) (map[string]int64, error) {
	out := make(map[string]int64, len(r.limits))
	for name, limit := range r.limits {
		key := redisQuotaPrefix + name + ":" + userID
		raw, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			out[name] = limit
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read quota %s: %w", name, err)
		}
		used, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("quota %s holds a non-integer value %q: %w", name, raw, err)
		}
		remaining := limit - used
		if remaining < 0 {
			remaining = 0
		}
		out[name] = remaining
	}
	return out, nil
}
