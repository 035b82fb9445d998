package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript atomically increments the day bucket only while it is below
// capacity. Returns -1 when the bucket is already full.
var incrScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local capacity = tonumber(ARGV[1])
if count >= capacity then
	return -1
end
count = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return count
`)

// decrScript decrements the day bucket without going below zero.
var decrScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count <= 0 then
	return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisLedger stores day buckets in Redis so multiple replicas share one
// capacity view. Atomicity comes from running the conditional increment as a
// single Lua script.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLedger creates a Redis-backed ledger. Buckets expire after ttl;
// anything beyond the pruning retention is garbage anyway.
func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisLedger{client: client, ttl: ttl}
}

func bucketName(agentID string, day Day) string {
	return fmt.Sprintf("ledger:%s:%s", agentID, day)
}

func (l *RedisLedger) Count(ctx context.Context, agentID string, day Day) (int, error) {
	val, err := l.client.Get(ctx, bucketName(agentID, day)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger count: %w", err)
	}
	return val, nil
}

func (l *RedisLedger) Remaining(ctx context.Context, agentID string, day Day, capacity int) (int, error) {
	count, err := l.Count(ctx, agentID, day)
	if err != nil {
		return 0, err
	}
	if remaining := capacity - count; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

func (l *RedisLedger) Increment(ctx context.Context, agentID string, day Day, capacity int) (int, error) {
	ttlSeconds := int(l.ttl / time.Second)
	res, err := incrScript.Run(ctx, l.client, []string{bucketName(agentID, day)}, capacity, ttlSeconds).Int()
	if err != nil {
		return 0, fmt.Errorf("ledger increment: %w", err)
	}
	if res < 0 {
		return 0, ErrCapacityExceeded
	}
	return res, nil
}

func (l *RedisLedger) Decrement(ctx context.Context, agentID string, day Day) error {
	if err := decrScript.Run(ctx, l.client, []string{bucketName(agentID, day)}).Err(); err != nil {
		return fmt.Errorf("ledger decrement: %w", err)
	}
	return nil
}

func (l *RedisLedger) SetCount(ctx context.Context, agentID string, day Day, count int) error {
	if count < 0 {
		count = 0
	}
	if err := l.client.Set(ctx, bucketName(agentID, day), count, l.ttl).Err(); err != nil {
		return fmt.Errorf("ledger set: %w", err)
	}
	return nil
}

// PruneBefore scans ledger keys and deletes buckets older than the given day.
// TTLs already bound the key space; this keeps manual cleanup deterministic.
func (l *RedisLedger) PruneBefore(ctx context.Context, day Day) (int, error) {
	var cursor uint64
	pruned := 0

	for {
		keys, next, err := l.client.Scan(ctx, cursor, "ledger:*", 100).Result()
		if err != nil {
			return pruned, fmt.Errorf("ledger prune scan: %w", err)
		}

		var stale []string
		for _, key := range keys {
			// ledger:<agentID>:<day>
			idx := strings.LastIndex(key, ":")
			if idx < 0 {
				continue
			}
			if Day(key[idx+1:]) < day {
				stale = append(stale, key)
			}
		}

		if len(stale) > 0 {
			if err := l.client.Del(ctx, stale...).Err(); err != nil {
				return pruned, fmt.Errorf("ledger prune delete: %w", err)
			}
			pruned += len(stale)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return pruned, nil
}
