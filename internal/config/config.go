package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/finlink-next/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Queue        QueueConfig        `mapstructure:"queue"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Security     SecurityConfig     `mapstructure:"security"`
	Tracking     TrackingConfig     `mapstructure:"tracking"`
	Fraud        FraudConfig        `mapstructure:"fraud"`
	Notification NotificationConfig `mapstructure:"notification"`
	Retention    RetentionConfig    `mapstructure:"retention"`
	Analytics    AnalyticsConfig    `mapstructure:"analytics"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host                string `mapstructure:"host"`
	Port                string `mapstructure:"port"`
	Mode                string `mapstructure:"mode"` // debug / release
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `mapstructure:"idle_timeout_seconds"`
}

// Addr 监听地址
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strings.TrimSpace(c.Port))
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Level,
		Console:    c.Console,
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig 管理端令牌校验配置（令牌由外部身份服务签发）
type JWTConfig struct {
	SecretKey string `mapstructure:"secret"`
	Issuer    string `mapstructure:"issuer"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	TrackingRateLimit RateLimitConfig `mapstructure:"tracking_rate_limit"`
}

// RateLimitConfig 固定窗口限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// TrackingConfig 点击追踪配置
type TrackingConfig struct {
	NodeID                   int64  `mapstructure:"node_id"`                    // snowflake 节点号（0-1023）
	LinkBaseURL              string `mapstructure:"link_base_url"`              // 产品未配置落地页时的兜底地址
	DefaultAttributionWindow int    `mapstructure:"default_attribution_window"` // 合作方未配置时的归因窗口（天）
	ExpiryDays               int    `mapstructure:"expiry_days"`                // 未转化点击视为过期的天数
	GeoIPDBPath              string `mapstructure:"geoip_db_path"`              // GeoLite2 数据库路径，留空不启用
	WebhookToken             string `mapstructure:"webhook_token"`              // 转化回调令牌，留空不校验
}

// FraudConfig 反作弊阈值配置
type FraudConfig struct {
	IPClickThreshold         int64    `mapstructure:"ip_click_threshold"`
	IPLookbackHours          int      `mapstructure:"ip_lookback_hours"`
	FastConversionSeconds    int      `mapstructure:"fast_conversion_seconds"`
	BotUserAgentPatterns     []string `mapstructure:"bot_user_agent_patterns"`
	FraudulentScoreThreshold int      `mapstructure:"fraudulent_score_threshold"` // 风险分严格大于该值判定为可疑
}

// NotificationConfig 合作方通知配置
type NotificationConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	MaxRetry       int  `mapstructure:"max_retry"`
}

// Timeout 通知请求超时时间
func (c NotificationConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetentionConfig 点击数据保留配置
type RetentionConfig struct {
	HorizonDays          int `mapstructure:"horizon_days"`
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes"`
	BatchSize            int `mapstructure:"batch_size"`
}

// AnalyticsConfig 报表配置
type AnalyticsConfig struct {
	CacheTTLSeconds  int `mapstructure:"cache_ttl_seconds"`
	MaxRangeDays     int `mapstructure:"max_range_days"`
	TopProductsLimit int `mapstructure:"top_products_limit"`
}

// Load 依次读取 .env、config.yml 与环境变量
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		logger.Infow("config_dotenv_loaded")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../")
	v.AddConfigPath("./etc")
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // server.port -> SERVER_PORT

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 30)
	v.SetDefault("server.idle_timeout_seconds", 60)
	v.SetDefault("log.level", "")
	v.SetDefault("log.console", false)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "tracking.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/tracking.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "fl")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":       5,
		"notifications": 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Webhook-Token",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.tracking_rate_limit.window_seconds", 60)
	v.SetDefault("security.tracking_rate_limit.max_requests", 120)
	v.SetDefault("tracking.node_id", 1)
	v.SetDefault("tracking.link_base_url", "")
	v.SetDefault("tracking.default_attribution_window", 30)
	v.SetDefault("tracking.expiry_days", 30)
	v.SetDefault("tracking.geoip_db_path", "")
	v.SetDefault("tracking.webhook_token", "")
	v.SetDefault("fraud.ip_click_threshold", 10)
	v.SetDefault("fraud.ip_lookback_hours", 24)
	v.SetDefault("fraud.fast_conversion_seconds", 30)
	v.SetDefault("fraud.bot_user_agent_patterns", []string{"bot", "crawler", "spider", "scraper"})
	v.SetDefault("fraud.fraudulent_score_threshold", 50)
	v.SetDefault("notification.enabled", true)
	v.SetDefault("notification.timeout_seconds", 5)
	v.SetDefault("notification.max_retry", 3)
	v.SetDefault("retention.horizon_days", 730)
	v.SetDefault("retention.sweep_interval_minutes", 1440)
	v.SetDefault("retention.batch_size", 500)
	v.SetDefault("analytics.cache_ttl_seconds", 60)
	v.SetDefault("analytics.max_range_days", 366)
	v.SetDefault("analytics.top_products_limit", 10)
}
