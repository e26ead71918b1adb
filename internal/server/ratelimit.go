package server

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	GlobalRPS   float64
	GlobalBurst int
	// WriteLimit caps mutating /api requests per caller within WriteWindow.
	WriteLimit  int
	WriteWindow time.Duration

	TrustForwardedHeaders bool
	TrustedProxies        []string

	// Redis, when set, shares write windows across replicas. The caller owns
	// the client.
	Redis          redis.UniversalClient
	RedisKeyPrefix string
	RedisTimeout   time.Duration
}

type rateLimiter struct {
	global *rate.Limiter

	writeLimit  int
	writeWindow time.Duration
	store       windowStore

	mu      sync.Mutex
	buckets map[string]*writeBucket
	sweptAt time.Time
	now     func() time.Time
}

type writeBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// windowStore counts hits per key in fixed windows shared between processes.
type windowStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
	Ping(ctx context.Context) error
}

func newRateLimiter(cfg RateLimitConfig) (*rateLimiter, error) {
	rl := &rateLimiter{
		writeLimit:  cfg.WriteLimit,
		writeWindow: cfg.WriteWindow,
		buckets:     make(map[string]*writeBucket),
		now:         time.Now,
	}
	if cfg.GlobalRPS < 0 || cfg.GlobalBurst < 0 || cfg.WriteLimit < 0 {
		return nil, fmt.Errorf("rate limits must not be negative")
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(math.Max(1, math.Ceil(cfg.GlobalRPS)))
		}
		rl.global = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), burst)
	}
	if rl.writeWindow <= 0 {
		rl.writeWindow = time.Minute
	}
	if cfg.Redis != nil && rl.writeLimit > 0 {
		prefix := strings.TrimSpace(cfg.RedisKeyPrefix)
		if prefix == "" {
			prefix = "vidtube:ratelimit:"
		}
		timeout := cfg.RedisTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		rl.store = &redisWindowStore{client: cfg.Redis, prefix: prefix, timeout: timeout}
	}
	return rl, nil
}

// AllowRequest reports whether the process-wide budget has room for one more
// request.
func (r *rateLimiter) AllowRequest() bool {
	if r == nil || r.global == nil {
		return true
	}
	return r.global.Allow()
}

// AllowWrite charges one mutating request against key and returns how long
// the caller should wait when the budget is spent.
func (r *rateLimiter) AllowWrite(ctx context.Context, key string) (bool, time.Duration, error) {
	if r == nil || r.writeLimit <= 0 {
		return true, 0, nil
	}
	if key == "" {
		key = "unknown"
	}
	if r.store != nil {
		return r.store.Allow(ctx, key, r.writeLimit, r.writeWindow)
	}

	now := r.now()
	r.mu.Lock()
	bucket, ok := r.buckets[key]
	if !ok {
		every := rate.Limit(float64(r.writeLimit) / r.writeWindow.Seconds())
		bucket = &writeBucket{limiter: rate.NewLimiter(every, r.writeLimit)}
		r.buckets[key] = bucket
	}
	bucket.lastSeen = now
	r.sweepLocked(now)
	r.mu.Unlock()

	if bucket.limiter.AllowN(now, 1) {
		return true, 0, nil
	}
	missing := 1 - bucket.limiter.TokensAt(now)
	retryAfter := time.Duration(missing / float64(bucket.limiter.Limit()) * float64(time.Second))
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return false, retryAfter, nil
}

// sweepLocked drops buckets idle for two windows, at most once per window.
func (r *rateLimiter) sweepLocked(now time.Time) {
	if now.Sub(r.sweptAt) < r.writeWindow {
		return
	}
	r.sweptAt = now
	cutoff := now.Add(-2 * r.writeWindow)
	for key, bucket := range r.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(r.buckets, key)
		}
	}
}

// Ping checks the shared window store, if any.
func (r *rateLimiter) Ping(ctx context.Context) error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Ping(ctx)
}

type redisWindowStore struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

func (s *redisWindowStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	redisKey := s.prefix + key
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("redis rate window %s: %w", key, err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := s.client.PExpire(ctx, redisKey, window).Err(); err != nil {
			return false, 0, fmt.Errorf("redis rate window expiry %s: %w", key, err)
		}
		remaining = window
	}
	if incr.Val() > int64(limit) {
		return false, remaining, nil
	}
	return true, 0, nil
}

func (s *redisWindowStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func isMutatingAPIRequest(r *http.Request) bool {
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func setRetryAfter(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
}
