package ratelimit

import (
	"context"
	"strconv"
	"time"

	"livebid/internal/apperr"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rl:"

// hitScript trims the window, counts it and records the attempt in one
// step. KEYS: rl:<action>:<key>. ARGV: now_ms, window_ms, max, member.
// Returns {1, 0} when recorded or {0, retry_after_ms} when denied.
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  return {0, tonumber(oldest[2]) + window - now}
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return {1, 0}
`)

// Redis shares limiter state between instances through one sorted set per
// action and key, scored by unix milliseconds. Keys expire on their own,
// so ClearOldEntries has nothing to do.
type Redis struct {
	rdc redis.Cmdable
	cfg Config
}

var _ Limiter = (*Redis)(nil)

func NewRedis(rdc redis.Cmdable, cfg Config) *Redis {
	return &Redis{rdc: rdc, cfg: cfg.withDefaults()}
}

func redisKey(a Action, key string) string {
	return redisKeyPrefix + string(a) + ":" + key
}

func (r *Redis) CanBid(ctx context.Context, userID string, now time.Time) error {
	return r.hit(ctx, ActionBid, userID, now)
}

func (r *Redis) CanLogin(ctx context.Context, phone string, now time.Time) error {
	return r.hit(ctx, ActionLogin, phone, now)
}

func (r *Redis) CanWatch(ctx context.Context, userID string, now time.Time) error {
	return r.hit(ctx, ActionWatch, userID, now)
}

func (r *Redis) ResetLoginAttempts(ctx context.Context, phone string) error {
	return apperr.Store("ratelimit.reset", r.rdc.Del(ctx, redisKey(ActionLogin, phone)).Err())
}

func (r *Redis) ClearOldEntries(context.Context, time.Time) error { return nil }

func (r *Redis) hit(ctx context.Context, a Action, key string, now time.Time) error {
	rl := r.cfg.rule(a)
	res, err := hitScript.Run(ctx, r.rdc, []string{redisKey(a, key)},
		now.UnixMilli(),
		rl.window.Milliseconds(),
		rl.max,
		strconv.FormatInt(now.UnixNano(), 10),
	).Int64Slice()
	if err != nil {
		return apperr.Store("ratelimit.hit", err)
	}
	if len(res) != 2 || res[0] == 1 {
		return nil
	}
	return &DeniedError{Action: a, RetryAfter: time.Duration(res[1]) * time.Millisecond}
}
