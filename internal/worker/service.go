package worker

import (
	"context"
	"errors"
	"time"

	"github.com/finlink-next/internal/config"
	"github.com/finlink-next/internal/logger"
	"github.com/finlink-next/internal/metrics"
	"github.com/finlink-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultRetentionHorizonDays  = 730
	defaultRetentionSweepMinutes = 1440
	defaultRetentionBatchSize    = 500
)

// Service 异步队列服务，附带点击保留期清理
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
	nowFn    func() time.Time
}

// NewService 创建异步队列服务，队列未启用时仅运行保留期清理
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if consumer == nil || consumer.Container == nil {
		return nil, errors.New("consumer is nil")
	}
	svc := &Service{
		name:     "worker",
		consumer: consumer,
		nowFn:    time.Now,
	}
	if cfg != nil && cfg.Enabled {
		opt, serverCfg := queue.BuildServerConfig(cfg)
		svc.server = asynq.NewServer(opt, serverCfg)
		svc.mux = asynq.NewServeMux()
		consumer.Register(svc.mux)
	} else {
		logger.Warnw("worker_queue_disabled", "retention_only", true)
	}
	return svc, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer.ClickService != nil {
		go s.runRetentionLoop(ctx)
	}
	if s.server == nil || s.mux == nil {
		<-ctx.Done()
		return nil
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

func (s *Service) runRetentionLoop(ctx context.Context) {
	interval := time.Duration(defaultRetentionSweepMinutes) * time.Minute
	if minutes := s.retentionConfig().SweepIntervalMinutes; minutes > 0 {
		interval = time.Duration(minutes) * time.Minute
	}
	s.sweepRetention(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepRetention(ctx)
		}
	}
}

// sweepRetention 删除超过保留期的点击
func (s *Service) sweepRetention(ctx context.Context) int64 {
	if s == nil || s.consumer == nil || s.consumer.ClickService == nil {
		return 0
	}
	cfg := s.retentionConfig()
	horizonDays := cfg.HorizonDays
	if horizonDays <= 0 {
		horizonDays = defaultRetentionHorizonDays
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultRetentionBatchSize
	}
	cutoff := s.nowFn().AddDate(0, 0, -horizonDays)

	deleted, err := s.consumer.ClickService.PurgeClickedBefore(ctx, cutoff, batchSize)
	if deleted > 0 {
		metrics.RetentionDeletedTotal.Add(float64(deleted))
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warnw("worker_retention_sweep_failed", "cutoff", cutoff, "deleted", deleted, "error", err)
		}
		return deleted
	}
	if deleted > 0 {
		logger.Infow("worker_retention_sweep_done", "cutoff", cutoff, "deleted", deleted)
	}
	return deleted
}

func (s *Service) retentionConfig() config.RetentionConfig {
	if s.consumer.Config == nil {
		return config.RetentionConfig{}
	}
	return s.consumer.Config.Retention
}
