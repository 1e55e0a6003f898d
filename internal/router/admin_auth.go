package router

import (
	"strings"

	"github.com/finlink-next/internal/authz"
	"github.com/finlink-next/internal/config"
	"github.com/finlink-next/internal/http/handlers/shared"
	"github.com/finlink-next/internal/http/response"
	"github.com/finlink-next/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims 管理端令牌声明，由外部身份服务以 HS256 签发
type AdminClaims struct {
	Roles   []string `json:"roles"`
	IsSuper bool     `json:"is_super"`
	jwt.RegisteredClaims
}

// bearerToken 解析 Authorization 头，格式不符返回空串
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || scheme != "Bearer" {
		return ""
	}
	return strings.TrimSpace(token)
}

// AdminJWTAuthMiddleware 校验令牌签名、有效期、签发方与 subject，并把身份写入上下文
func AdminJWTAuthMiddleware(cfg config.JWTConfig) gin.HandlerFunc {
	secret := []byte(strings.TrimSpace(cfg.SecretKey))
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer := strings.TrimSpace(cfg.Issuer); issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(options...)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(c *gin.Context) {
		if len(secret) == 0 {
			logger.Errorw("admin_jwt_secret_missing")
			response.Abort(c, response.CodeUnauthorized, shared.MsgUnauthorized)
			return
		}
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			response.Abort(c, response.CodeUnauthorized, shared.MsgUnauthorized)
			return
		}

		var claims AdminClaims
		token, err := parser.ParseWithClaims(raw, &claims, keyFunc)
		if err != nil || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
			logger.Debugw("admin_jwt_rejected", "request_id", getRequestID(c), "error", err)
			response.Abort(c, response.CodeUnauthorized, shared.MsgUnauthorized)
			return
		}

		c.Set(shared.ContextSubjectKey, claims.Subject)
		c.Set(shared.ContextRolesKey, claims.Roles)
		c.Set(shared.ContextIsSuperKey, claims.IsSuper)
		c.Next()
	}
}

// AdminRBACMiddleware 按路由模板与方法校验令牌角色，超级管理员跳过校验
func AdminRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if shared.ContextIsSuper(c) {
			c.Next()
			return
		}

		resource := c.FullPath()
		if resource == "" {
			resource = c.Request.URL.Path
		}
		roles := shared.ContextRoles(c)
		allowed, err := authzService.EnforceRoles(roles, resource, c.Request.Method)
		switch {
		case err != nil:
			logger.Errorw("admin_rbac_enforce_failed",
				"roles", roles,
				"method", c.Request.Method,
				"resource", resource,
				"error", err,
			)
		case !allowed:
			logger.Warnw("admin_rbac_permission_denied",
				"subject", c.GetString(shared.ContextSubjectKey),
				"roles", roles,
				"method", c.Request.Method,
				"resource", authz.NormalizeObject(resource),
			)
		default:
			c.Next()
			return
		}
		response.Abort(c, response.CodeForbidden, shared.MsgForbidden)
	}
}
