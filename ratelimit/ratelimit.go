// Package ratelimit enforces per-origin politeness delays with a Redis-backed
// token bucket, falling back to in-process limiters when Redis is down.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/irislabs/iris/logger"
)

const keyPrefix = "iris:ratelimit:"

// tokenBucketScript atomically refills and consumes one token for an origin.
// It returns 1 when a token was taken, or the negated wait in milliseconds
// until the next token becomes available. Bucket state expires an hour after
// the last request so idle origins cost nothing.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(data[1])
local last_refill = tonumber(data[2])

if tokens == nil then
    tokens = burst
    last_refill = now
end

local elapsed = now - last_refill
tokens = math.min(burst, tokens + elapsed * rate)

if tokens >= 1 then
    tokens = tokens - 1
    redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
    redis.call('EXPIRE', key, 3600)
    return 1
else
    local wait = (1 - tokens) / rate
    redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
    redis.call('EXPIRE', key, 3600)
    return -wait * 1000
end
`)

// Limiter rate-limits fetches per origin. Tokens refill continuously at
// 1000/minDelayMS per second with a fixed burst, so short bursts go through
// immediately and sustained traffic settles at one request per minimum delay.
type Limiter struct {
	client *redis.Client
	rate   float64
	burst  int
	log    logger.Logger

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// New creates a limiter. client may be nil, in which case only the in-process
// fallback is used.
func New(client *redis.Client, minDelayMS, burst int, log logger.Logger) *Limiter {
	if log == nil {
		log = logger.Noop()
	}
	r := 100.0
	if minDelayMS > 0 {
		r = 1000.0 / float64(minDelayMS)
	}
	return &Limiter{
		client: client,
		rate:   r,
		burst:  burst,
		log:    log,
		sleep:  sleepCtx,
		local:  make(map[string]*rate.Limiter),
	}
}

// Rate returns the refill rate in tokens per second.
func (l *Limiter) Rate() float64 {
	return l.rate
}

// Acquire blocks until a token is available for origin or ctx is done. The
// origin should be scheme://host[:port] so different subdomains get separate
// buckets.
func (l *Limiter) Acquire(ctx context.Context, origin string) error {
	if l.client != nil {
		return l.acquireRedis(ctx, origin)
	}
	return l.acquireLocal(ctx, origin)
}

func (l *Limiter) acquireRedis(ctx context.Context, origin string) error {
	key := keyPrefix + origin

	for {
		now := float64(time.Now().UnixNano()) / 1e9
		res, err := tokenBucketScript.Run(ctx, l.client, []string{key}, now, l.rate, l.burst).Int64()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.Debug("redis rate limit unavailable, using in-process fallback", "origin", origin, "error", err)
			return l.acquireLocal(ctx, origin)
		}

		if res == 1 {
			return nil
		}

		waitMS := -res
		if waitMS <= 0 {
			waitMS = 1
		}
		l.log.Info("rate limiting", "origin", origin, "wait_ms", waitMS)
		if err := l.sleep(ctx, time.Duration(waitMS)*time.Millisecond); err != nil {
			return err
		}
	}
}

func (l *Limiter) acquireLocal(ctx context.Context, origin string) error {
	l.mu.Lock()
	lim, ok := l.local[origin]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.rate), l.burst)
		l.local[origin] = lim
	}
	l.mu.Unlock()

	return lim.Wait(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
