package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "ratelimit:"

// slidingLogScript keeps one ZSET per key scored by request time in
// milliseconds.
// KEYS[1] = key
// ARGV[1] = now (ms)
// ARGV[2] = window (ms)
// ARGV[3] = limit
// ARGV[4] = unique member for this request
// Returns: {allowed (0|1), count before admission, oldest score or -1}
var slidingLogScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)

	local count = redis.call('ZCARD', key)
	local oldest = -1
	if count > 0 then
		local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		oldest = tonumber(first[2])
	end

	local allowed = 0
	if count < limit then
		redis.call('ZADD', key, now, ARGV[4])
		allowed = 1
	end

	redis.call('PEXPIRE', key, window_ms)

	return {allowed, count, oldest}
`)

// RedisStore shares the sliding log across API replicas. Keys expire one
// window after their last hit so no explicit pruning is needed.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Snapshot, error) {
	result, err := slidingLogScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Snapshot{}, fmt.Errorf("run sliding log script: %w", err)
	}
	if len(result) != 3 {
		return Snapshot{}, fmt.Errorf("unexpected sliding log result: %v", result)
	}

	snap := Snapshot{
		Allowed: result[0] == 1,
		Count:   int(result[1]),
	}
	if result[2] >= 0 {
		snap.Oldest = time.UnixMilli(result[2]).UTC()
	}
	return snap, nil
}
