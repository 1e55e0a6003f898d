package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/finlink-next/internal/config"
	"github.com/finlink-next/internal/logger"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "fl"

var (
	redisClient *redis.Client
	redisPrefix = defaultPrefix
)

// InitRedis 初始化 Redis 客户端，未启用时所有读写退化为空操作
func InitRedis(cfg *config.RedisConfig) error {
	redisPrefix = defaultPrefix
	if cfg == nil || !cfg.Enabled {
		redisClient = nil
		return nil
	}
	if prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), ":"); prefix != "" {
		redisPrefix = prefix
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:     redisAddr(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return nil
}

func redisAddr(host string, port int) string {
	host = strings.TrimSpace(host)
	if host == "" {
		host = "127.0.0.1"
	}
	if port <= 0 {
		port = 6379
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Enabled 判断缓存是否启用
func Enabled() bool {
	return redisClient != nil
}

// Client 限流中间件复用的客户端，未启用时为 nil
func Client() *redis.Client {
	return redisClient
}

// Ping 健康检查，未启用时直接返回 nil
func Ping(ctx context.Context) error {
	if !Enabled() {
		return nil
	}
	return redisClient.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func Close() error {
	if redisClient == nil {
		return nil
	}
	err := redisClient.Close()
	redisClient = nil
	return err
}

// Key 以全局前缀拼接缓存键，空片段被忽略
func Key(parts ...string) string {
	segments := []string{redisPrefix}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}

// GetJSON 读取 JSON 缓存，未命中返回 false
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !Enabled() {
		return false, nil
	}
	raw, err := redisClient.Get(ctx, Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 写入 JSON 缓存，ttl 非正数时不写
func SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !Enabled() || ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return redisClient.Set(ctx, Key(key), payload, ttl).Err()
}

// Remember 先读缓存，未命中或 refresh 时调用 load 并回写
// 缓存读写失败只记录日志，不影响 load 的结果
func Remember[T any](ctx context.Context, key string, ttl time.Duration, refresh bool, load func() (T, error)) (T, error) {
	if !refresh {
		var cached T
		hit, err := GetJSON(ctx, key, &cached)
		if err != nil {
			logger.Warnw("cache_read_failed", "key", key, "error", err)
		}
		if hit {
			return cached, nil
		}
	}
	value, err := load()
	if err != nil {
		return value, err
	}
	if err := SetJSON(ctx, key, value, ttl); err != nil {
		logger.Warnw("cache_write_failed", "key", key, "error", err)
	}
	return value, nil
}
