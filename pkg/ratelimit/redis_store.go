package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// takeScript prunes the admission log, then either records an admission or
// returns the wait in microseconds.
//
// KEYS[1] admission log (sorted set, score = admission time in µs)
// KEYS[2] suspension deadline in µs
// ARGV[1] now µs, ARGV[2] capacity, ARGV[3] period µs, ARGV[4] member
var takeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local period = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - period)

local blocked = tonumber(redis.call('GET', KEYS[2]) or '0')
if blocked > now then
	return blocked - now
end

local count = redis.call('ZCARD', KEYS[1])
if count >= capacity then
	local oldest = redis.call('ZRANGE', KEYS[1], count - capacity, count - capacity, 'WITHSCORES')
	return tonumber(oldest[2]) + period - now
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], math.ceil(period / 1000))
return 0
`)

// blockScript raises the suspension deadline, never lowering it.
//
// KEYS[1] suspension deadline in µs
// ARGV[1] deadline µs, ARGV[2] ttl ms
var blockScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local deadline = tonumber(ARGV[1])
if deadline > current then
	redis.call('SET', KEYS[1], deadline, 'PX', ARGV[2])
end
return 0
`)

// RedisStore shares one bucket between every process using the same prefix.
// Admission times come from the callers' clocks, so hosts sharing a store
// should be NTP-synchronized.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. prefix namespaces the keys,
// typically one per remote API.
func NewRedisStore(redisClient *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) keys() []string {
	return []string{s.prefix + RedisKeyAdmissions, s.prefix + RedisKeyBlockedUntil}
}

// Take implements Store.
func (s *RedisStore) Take(ctx context.Context, now time.Time, capacity int, period time.Duration) (time.Duration, error) {
	wait, err := takeScript.Run(ctx, s.redis, s.keys(),
		now.UnixMicro(), capacity, period.Microseconds(), uuid.NewString(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis take: %w", err)
	}
	return time.Duration(wait) * time.Microsecond, nil
}

// Block implements Store.
func (s *RedisStore) Block(ctx context.Context, until time.Time) error {
	ttl := time.Until(until).Milliseconds() + 1
	if ttl <= 0 {
		return nil
	}

	if err := blockScript.Run(ctx, s.redis, s.keys()[1:], until.UnixMicro(), ttl).Err(); err != nil {
		return fmt.Errorf("redis block: %w", err)
	}
	return nil
}

// Snapshot implements Store. LastRefill is not tracked in Redis.
func (s *RedisStore) Snapshot(ctx context.Context, now time.Time, capacity int, period time.Duration) (State, error) {
	keys := s.keys()

	pipe := s.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, keys[0], "-inf", fmt.Sprintf("%d", now.Add(-period).UnixMicro()))
	count := pipe.ZCard(ctx, keys[0])
	blocked := pipe.Get(ctx, keys[1])

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return State{}, fmt.Errorf("redis snapshot: %w", err)
	}

	state := State{
		Tokens:   capacity - int(count.Val()),
		Capacity: capacity,
		Period:   period,
	}
	if state.Tokens < 0 {
		state.Tokens = 0
	}

	if us, err := blocked.Int64(); err == nil && us > 0 {
		state.BlockedUntil = time.UnixMicro(us)
	}

	return state, nil
}
