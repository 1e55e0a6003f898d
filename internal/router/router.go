package router

import (
	"context"
	"fmt"
	"time"

	"github.com/finlink-next/internal/cache"
	"github.com/finlink-next/internal/config"
	adminhandlers "github.com/finlink-next/internal/http/handlers/admin"
	publichandlers "github.com/finlink-next/internal/http/handlers/public"
	"github.com/finlink-next/internal/http/response"
	"github.com/finlink-next/internal/logger"
	"github.com/finlink-next/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	trackingRule := RateLimitRule{
		Prefix:        cache.Key("rate", "tracking"),
		WindowSeconds: cfg.Security.TrackingRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.TrackingRateLimit.MaxRequests,
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(logger.Z()))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", healthHandler(c.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := r.Group("/api/v1")
	{
		tracking := apiV1.Group("/tracking")
		tracking.Use(RateLimitMiddleware(cache.Client(), trackingRule, KeyByIP))
		{
			tracking.POST("/links", publicHandler.GenerateLink)
			tracking.POST("/clicks", publicHandler.TrackClick)
			tracking.POST("/conversions", publicHandler.RecordConversion)
			tracking.PUT("/clicks/:tracking_id/status", publicHandler.UpdateClickStatus)
			tracking.GET("/go/:partner_id/:product_id", publicHandler.Redirect)
		}

		admin := apiV1.Group("/admin")
		admin.Use(AdminJWTAuthMiddleware(cfg.JWT))
		{
			admin.GET("/authz/me", adminHandler.GetAuthzMe)
		}

		authorized := admin.Group("")
		authorized.Use(AdminRBACMiddleware(c.AuthzService))
		{
			authorized.GET("/analytics/summary", adminHandler.GetAnalyticsSummary)
			authorized.GET("/analytics/performance", adminHandler.GetAnalyticsPerformance)
			authorized.GET("/analytics/conversions", adminHandler.GetAnalyticsConversions)
			authorized.GET("/analytics/commissions", adminHandler.GetAnalyticsCommissions)

			authorized.GET("/clicks", adminHandler.ListClicks)
			authorized.GET("/clicks/:tracking_id", adminHandler.GetClick)
			authorized.GET("/clicks/:tracking_id/fraud", adminHandler.GetClickFraud)

			authorized.GET("/partners", adminHandler.ListPartners)
			authorized.POST("/partners", adminHandler.CreatePartner)
			authorized.PUT("/partners/:id", adminHandler.UpdatePartner)
			authorized.GET("/products", adminHandler.ListProducts)
			authorized.POST("/products", adminHandler.CreateProduct)
			authorized.PUT("/products/:id", adminHandler.UpdateProduct)

			authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
			authorized.GET("/authz/policies", adminHandler.GetAuthzRolePolicies)
			authorized.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
			authorized.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
		}
	}

	return r
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		database, redisState := "ok", "disabled"
		if err := pingDB(ctx, db); err != nil {
			logger.Warnw("healthz_db_ping_failed", "error", err)
			database = "error"
		}
		if cache.Enabled() {
			redisState = "ok"
			if err := cache.Ping(ctx); err != nil {
				logger.Warnw("healthz_redis_ping_failed", "error", err)
				redisState = "error"
			}
		}
		response.Success(c, gin.H{
			"status":   "ok",
			"database": database,
			"redis":    redisState,
		})
	}
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
