package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultRateLimitPrefix = "enquiry:ratelimit:"
	redisOpTimeout         = 500 * time.Millisecond
)

// RateLimitRule is a fixed-window limit
type RateLimitRule struct {
	Scope  string
	Limit  int
	Window time.Duration
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed    bool
	Count      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter counts requests per key in Redis, falling back to process memory
// when Redis is not configured or unavailable
type RateLimiter struct {
	redisClient *redis.Client
	logger      *logrus.Logger
	prefix      string
	now         func() time.Time

	localMu sync.Mutex
	local   map[string]*windowState
}

type windowState struct {
	count     int
	expiresAt time.Time
}

// NewRateLimiter creates a new rate limiter. redisClient may be nil.
func NewRateLimiter(redisClient *redis.Client, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		prefix:      defaultRateLimitPrefix,
		now:         time.Now,
		local:       make(map[string]*windowState),
	}
}

// Allow records one hit for key under rule and reports whether it is within the limit
func (r *RateLimiter) Allow(ctx context.Context, rule RateLimitRule, key string) RateLimitResult {
	redisKey := r.key(rule.Scope, key)

	count, ttl, err := r.incrementRedis(ctx, redisKey, rule.Window)
	if err != nil {
		if r.redisClient != nil {
			r.logger.WithError(err).Warn("Redis rate limit failed, using local fallback")
		}
		count, ttl = r.incrementLocal(redisKey, rule.Window)
	}

	result := RateLimitResult{
		Allowed:   count <= rule.Limit,
		Count:     count,
		Remaining: max(0, rule.Limit-count),
	}
	if !result.Allowed {
		result.RetryAfter = ttl
	}
	return result
}

func (r *RateLimiter) incrementRedis(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if r.redisClient == nil {
		return 0, 0, redis.ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	pipe := r.redisClient.Pipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		// first hit of the window, or a key that lost its expiry
		if err := r.redisClient.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		remaining = window
	}
	return int(incr.Val()), remaining, nil
}

func (r *RateLimiter) incrementLocal(key string, window time.Duration) (int, time.Duration) {
	r.localMu.Lock()
	defer r.localMu.Unlock()

	now := r.now()
	state, exists := r.local[key]
	if !exists || !now.Before(state.expiresAt) {
		state = &windowState{expiresAt: now.Add(window)}
		r.local[key] = state
	}
	state.count++
	return state.count, state.expiresAt.Sub(now)
}

// key hashes the client key so raw IPs never reach Redis
func (r *RateLimiter) key(scope, key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s%s:%s", r.prefix, scope, hex.EncodeToString(hash[:16]))
}

// Middleware limits requests per client IP. onLimited, when set, runs before the 429 is written.
func (r *RateLimiter) Middleware(rule RateLimitRule, onLimited func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := r.Allow(c.Request.Context(), rule, c.ClientIP())

		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if result.Allowed {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		r.logger.WithFields(logrus.Fields{
			"scope":       rule.Scope,
			"request_id":  c.GetString(ContextRequestID),
			"count":       result.Count,
			"retry_after": retryAfter,
		}).Warn("Rate limit exceeded")
		if onLimited != nil {
			onLimited(c)
		}
		abortWithError(c, http.StatusTooManyRequests, "RATE_LIMITED",
			fmt.Sprintf("too many requests, retry after %d seconds", retryAfter))
	}
}
