package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/finlink-next/internal/http/handlers/shared"
	"github.com/finlink-next/internal/http/response"
	"github.com/finlink-next/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 固定窗口限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
}

func (r RateLimitRule) enabled() bool {
	return r.WindowSeconds > 0 && r.MaxRequests > 0
}

// windowCounter 固定窗口计数，返回窗口内累计次数与剩余秒数
type windowCounter interface {
	hit(ctx context.Context, key string, windowSeconds int) (count, ttl int64, err error)
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("TTL", KEYS[1])}
`)

type redisWindowCounter struct {
	client *redis.Client
}

func (r redisWindowCounter) hit(ctx context.Context, key string, windowSeconds int) (int64, int64, error) {
	values, err := fixedWindowScript.Run(ctx, r.client, []string{key}, windowSeconds).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(values) < 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit reply: %v", values)
	}
	return values[0], values[1], nil
}

// RateLimitMiddleware 基于 Redis 的固定窗口限流
// Redis 未启用或出错时放行，限流故障不能影响点击记录
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	if client == nil || !rule.enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return rateLimit(redisWindowCounter{client: client}, rule, keyFunc)
}

func rateLimit(counter windowCounter, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c, rule.Prefix, keyFunc)
		count, ttl, err := counter.hit(c.Request.Context(), key, rule.WindowSeconds)
		if err != nil {
			logger.Warnw("rate_limit_unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		remaining := int64(rule.MaxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if count <= int64(rule.MaxRequests) {
			c.Next()
			return
		}

		wait := retryAfterSeconds(ttl, rule.WindowSeconds)
		c.Header("Retry-After", strconv.Itoa(wait))
		logger.Debugw("rate_limit_exceeded", "key", key, "count", count)
		response.Abort(c, response.CodeTooManyRequests, fmt.Sprintf(shared.MsgRateLimited, wait))
	}
}

func rateLimitKey(c *gin.Context, prefix string, keyFunc RateLimitKeyFunc) string {
	key := ""
	if keyFunc != nil {
		key = strings.TrimSpace(keyFunc(c))
	}
	if key == "" {
		key = c.ClientIP()
	}
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// retryAfterSeconds TTL 已失效时按整个窗口计算，至少 1 秒
func retryAfterSeconds(ttlSeconds int64, windowSeconds int) int {
	switch {
	case ttlSeconds >= 1:
		return int(ttlSeconds)
	case windowSeconds >= 1:
		return windowSeconds
	default:
		return 1
	}
}
