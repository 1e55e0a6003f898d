package provider

import (
	"github.com/finlink-next/internal/authz"
	"github.com/finlink-next/internal/cache"
	"github.com/finlink-next/internal/config"
	"github.com/finlink-next/internal/geo"
	"github.com/finlink-next/internal/logger"
	"github.com/finlink-next/internal/notify"
	"github.com/finlink-next/internal/queue"
	"github.com/finlink-next/internal/repository"
	"github.com/finlink-next/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client

	// Infrastructure
	GeoResolver  geo.Resolver
	Notifier     notify.Notifier
	NotifySender *notify.Sender

	// Repositories
	PartnerRepo   repository.PartnerRepository
	ProductRepo   repository.ProductRepository
	ClickRepo     repository.ClickRepository
	AnalyticsRepo repository.AnalyticsRepository

	// Services
	AuthzService       *authz.Service
	AttributionService *service.AttributionService
	ClickService       *service.ClickService
	FraudService       *service.FraudService
	AnalyticsService   *service.AnalyticsService
	PartnerService     *service.PartnerService
}

// NewContainer 初始化容器，db 由调用方打开并负责关闭
func NewContainer(cfg *config.Config, db *gorm.DB) (*Container, error) {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	c := &Container{
		Config:       cfg,
		DB:           db,
		NotifySender: notify.NewSender(cfg.Notification.Timeout()),
	}

	// 1. 初始化基础设施
	c.initInfrastructure()

	// 2. 初始化 Repositories
	c.initRepositories()

	// 3. 初始化 Services
	if err := c.initServices(); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func (c *Container) initInfrastructure() {
	c.GeoResolver = geo.NopResolver{}
	if path := c.Config.Tracking.GeoIPDBPath; path != "" {
		resolver, err := geo.Open(path)
		if err != nil {
			logger.Warnw("provider_open_geoip_failed", "path", path, "error", err)
		} else {
			c.GeoResolver = resolver
		}
	}

	c.Notifier = notify.NopNotifier{}
	if !c.Config.Notification.Enabled || !c.Config.Queue.Enabled {
		return
	}
	qc, err := queue.NewClient(&c.Config.Queue, c.Config.Notification.MaxRetry)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		return
	}
	c.QueueClient = qc
	c.Notifier = notify.NewQueueNotifier(qc)
}

func (c *Container) initRepositories() {
	c.PartnerRepo = repository.NewPartnerRepository(c.DB)
	c.ProductRepo = repository.NewProductRepository(c.DB)
	c.ClickRepo = repository.NewClickRepository(c.DB)
	c.AnalyticsRepo = repository.NewAnalyticsRepository(c.DB)
}

func (c *Container) initServices() error {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		return err
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		return err
	}
	c.AuthzService = authzService

	idGen, err := service.NewTrackingIDGenerator(c.Config.Tracking.NodeID)
	if err != nil {
		logger.Errorw("provider_init_tracking_id_failed", "node_id", c.Config.Tracking.NodeID, "error", err)
		return err
	}

	c.AttributionService = service.NewAttributionService(c.ClickRepo, c.PartnerRepo, c.Notifier, c.Config.Tracking)
	c.ClickService = service.NewClickService(
		c.ClickRepo,
		c.PartnerRepo,
		c.ProductRepo,
		c.AttributionService,
		idGen,
		c.GeoResolver,
		c.Notifier,
		c.Config.Tracking,
	)
	c.FraudService = service.NewFraudService(c.ClickRepo, c.Config.Fraud)
	c.AnalyticsService = service.NewAnalyticsService(c.AnalyticsRepo, c.Config.Analytics)
	c.PartnerService = service.NewPartnerService(c.PartnerRepo, c.ProductRepo)
	return nil
}

// Close 释放容器持有的外部连接（数据库除外）
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	if closer, ok := c.GeoResolver.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warnw("provider_close_geoip_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
