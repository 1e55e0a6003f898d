package router

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/finlink-next/internal/config"

	"github.com/gin-gonic/gin"
)

var (
	defaultCORSMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Content-Type", "Authorization", requestIDHeader, webhookTokenHeader}
)

// originPolicy 跨域来源判定，允许列表在启动时转为小写集合
type originPolicy struct {
	wildcard    bool
	credentials bool
	allowed     map[string]struct{}
}

func newOriginPolicy(origins []string, credentials bool) originPolicy {
	policy := originPolicy{credentials: credentials, allowed: make(map[string]struct{}, len(origins))}
	if len(origins) == 0 {
		policy.wildcard = true
	}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			policy.wildcard = true
			continue
		}
		if origin != "" {
			policy.allowed[strings.ToLower(origin)] = struct{}{}
		}
	}
	return policy
}

// resolve 返回 Access-Control-Allow-Origin 的值，空串表示不放行
// 携带凭证时浏览器不接受 *，通配模式改为回显请求来源
func (p originPolicy) resolve(origin string) string {
	if p.wildcard {
		if p.credentials && origin != "" {
			return origin
		}
		return "*"
	}
	if _, ok := p.allowed[strings.ToLower(origin)]; ok && origin != "" {
		return origin
	}
	return ""
}

// CORSMiddleware 跨域中间件，预检请求直接返回 204
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	policy := newOriginPolicy(cfg.AllowedOrigins, cfg.AllowCredentials)
	methods := strings.Join(orDefault(cfg.AllowedMethods, defaultCORSMethods), ", ")
	headers := strings.Join(orDefault(cfg.AllowedHeaders, defaultCORSHeaders), ", ")
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		if allowed := policy.resolve(c.GetHeader("Origin")); allowed != "" {
			h.Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)
		if maxAge != "" {
			h.Set("Access-Control-Max-Age", maxAge)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}
