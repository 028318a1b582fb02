package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/phamhoa2416/ticket-booking/internal/config"
)

const rateKeyPrefix = "ratelimit:"

// bucketScript refills continuously at rate tokens per second up to burst and
// takes one token. It returns {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local burst = tonumber(ARGV[3])
	local ttl_seconds = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'ts')
	local tokens = tonumber(state[1])
	local ts = tonumber(state[2])
	if tokens == nil or ts == nil then
		tokens = burst
		ts = now_ms
	end

	local elapsed = math.max(0, now_ms - ts)
	tokens = math.min(burst, tokens + elapsed * rate / 1000)

	local allowed = 0
	local retry_after_ms = 0
	if tokens >= 1 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.ceil((1 - tokens) * 1000 / rate)
	end

	redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', now_ms)
	redis.call('EXPIRE', key, ttl_seconds)
	return { allowed, math.floor(tokens), retry_after_ms }
`)

// NewRateLimiter applies a token bucket per caller. Buckets live in Redis
// when rdb is set so every instance shares them; otherwise they are kept
// in process. A Redis failure lets the request through.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if logger == nil {
		logger = slog.Default()
	}
	var local *localBuckets
	if rdb == nil {
		local = newLocalBuckets(cfg)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKeyPrefix + clientKey(c)
			var (
				allowed   bool
				remaining int64
				retry     time.Duration
			)
			if local != nil {
				allowed, remaining, retry = local.take(key, time.Now())
			} else {
				vals, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
					time.Now().UnixMilli(), cfg.Rate, cfg.Burst, int64(cfg.TTL/time.Second)).Int64Slice()
				if err != nil || len(vals) != 3 {
					logger.Warn("rate limiter unavailable", "key", key, "error", err)
					return next(c)
				}
				allowed, remaining, retry = vals[0] == 1, vals[1], time.Duration(vals[2])*time.Millisecond
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if !allowed {
				secs := int(math.Ceil(retry.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "RATE_LIMITED",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localBuckets keeps one limiter per key and forgets keys idle for longer
// than the configured TTL.
type localBuckets struct {
	mu        sync.Mutex
	cfg       config.RateLimitConfig
	buckets   map[string]*localBucket
	lastSweep time.Time
}

func newLocalBuckets(cfg config.RateLimitConfig) *localBuckets {
	return &localBuckets{cfg: cfg, buckets: make(map[string]*localBucket)}
}

func (l *localBuckets) take(key string, now time.Time) (bool, int64, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) > l.cfg.TTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.cfg.TTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, delay
	}
	return true, int64(b.limiter.TokensAt(now)), 0
}
