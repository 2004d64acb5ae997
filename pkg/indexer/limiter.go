package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/chaitanya1-coder/docufy/pkg/digest"
)

// Blockfrost free-tier envelope: 10 requests/s with a 500 request burst.
const (
	DefaultRate  = 10
	DefaultBurst = 500
)

// Limiter gates outbound indexer requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// LocalLimiter is an in-process token bucket.
type LocalLimiter struct {
	lim *rate.Limiter
}

// NewLocalLimiter builds a token bucket refilling rps tokens per second.
func NewLocalLimiter(rps float64, burst int) *LocalLimiter {
	if rps <= 0 {
		rps = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &LocalLimiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *LocalLimiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// tokenBucketScript refills and consumes atomically.
// KEYS[1] = bucket key
// ARGV[1] = refill rate (tokens per second)
// ARGV[2] = capacity
// ARGV[3] = cost
// ARGV[4] = now (unix seconds, microsecond precision)
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 120)

return allowed
`)

// RedisLimiter shares one indexer budget between every process using the
// same Redis and project key.
type RedisLimiter struct {
	client redis.UniversalClient
	key    string
	rps    float64
	burst  int
	poll   time.Duration
}

// BucketName scopes a shared bucket to one indexer project on one network.
// The key itself never reaches Redis, only a short fingerprint of it.
func BucketName(network, apiKey string) string {
	return network + ":" + digest.SumBytes([]byte(apiKey)).String()[:12]
}

// NewRedisLimiter scopes the bucket by name, normally from BucketName.
func NewRedisLimiter(client redis.UniversalClient, name string, rps float64, burst int) *RedisLimiter {
	if rps <= 0 {
		rps = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &RedisLimiter{
		client: client,
		key:    "docufy:indexer:" + name,
		rps:    rps,
		burst:  burst,
		poll:   time.Duration(float64(time.Second) / rps),
	}
}

// Allow takes one token if available.
func (l *RedisLimiter) Allow(ctx context.Context) (bool, error) {
	now := float64(time.Now().UnixMicro()) / 1e6
	res, err := tokenBucketScript.Run(ctx, l.client, []string{l.key}, l.rps, l.burst, 1, now).Int64()
	if err != nil {
		return false, fmt.Errorf("redis limiter: %w", err)
	}
	return res == 1, nil
}

// Wait polls until a token is granted or ctx ends.
func (l *RedisLimiter) Wait(ctx context.Context) error {
	for {
		ok, err := l.Allow(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		t := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
