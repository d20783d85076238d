package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore is the subset used by the Idempotency-Key middleware and
// the processed-event ledgers.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

var (
	// KEYS[1] counter, ARGV[1] window in ms. The window starts on the first hit.
	fixedWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

	// KEYS[1] lock, ARGV[1] owner token.
	compareAndDeleteScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)
)

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.rdb == nil {
		return "", ErrNotConnected
	}
	return c.rdb.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.rdb == nil {
		return ErrNotConnected
	}
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX reports whether key was created.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, ErrNotConnected
	}
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.rdb == nil {
		return ErrNotConnected
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// FixedWindowAllow counts one hit against scope and reports whether the
// count is still within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c == nil || c.rdb == nil {
		return false, 0, ErrNotConnected
	}
	count, err := fixedWindowScript.Run(ctx, c.rdb, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// CompareAndDelete deletes key only while it still holds expected.
func (c *Client) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, ErrNotConnected
	}
	deleted, err := compareAndDeleteScript.Run(ctx, c.rdb, []string{key}, expected).Int64()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

// AppendList pushes values, keeps the newest maxLen entries and refreshes the
// TTL in one MULTI block.
func (c *Client) AppendList(ctx context.Context, key string, maxLen int64, ttl time.Duration, values ...string) error {
	if c == nil || c.rdb == nil {
		return ErrNotConnected
	}
	if len(values) == 0 {
		return nil
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, args...)
		if maxLen > 0 {
			pipe.LTrim(ctx, key, -maxLen, -1)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

// ListRange returns every entry of a list, oldest first.
func (c *Client) ListRange(ctx context.Context, key string) ([]string, error) {
	if c == nil || c.rdb == nil {
		return nil, ErrNotConnected
	}
	return c.rdb.LRange(ctx, key, 0, -1).Result()
}

// GetDel reads and removes key in one round trip. A missing key returns
// redis.Nil.
func (c *Client) GetDel(ctx context.Context, key string) (string, error) {
	if c == nil || c.rdb == nil {
		return "", ErrNotConnected
	}
	return c.rdb.GetDel(ctx, key).Result()
}
