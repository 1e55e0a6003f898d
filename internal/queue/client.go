package queue

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/finlink-next/internal/config"
	"github.com/finlink-next/internal/constants"
	"github.com/finlink-next/internal/logger"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// NotificationQueue 合作方通知队列名称
	NotificationQueue = constants.QueueNotifications

	defaultConcurrency = 10
	// 同一事件的任务在该时间内去重，避免重复回调合作方
	taskRetention = 24 * time.Hour
)

// Client 合作方通知任务投递，队列未启用时所有投递为空操作
type Client struct {
	client   *asynq.Client
	maxRetry int
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig, maxRetry int) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	return &Client{
		client:   asynq.NewClient(redisOpt(cfg)),
		maxRetry: maxRetry,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// EnqueuePartnerClick 投递点击通知，同一 tracking_id 只投递一次
func (c *Client) EnqueuePartnerClick(payload PartnerClickPayload) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewPartnerClickTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, "click:"+payload.TrackingID)
}

// EnqueuePartnerConversion 投递转化通知，按 tracking_id 与转化类型去重
func (c *Client) EnqueuePartnerConversion(payload PartnerConversionPayload) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewPartnerConversionTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, "conversion:"+payload.TrackingID+":"+payload.ConversionType)
}

func (c *Client) enqueue(task *asynq.Task, taskID string) error {
	options := []asynq.Option{
		asynq.Queue(NotificationQueue),
		asynq.TaskID(taskID),
		asynq.Retention(taskRetention),
	}
	if c.maxRetry > 0 {
		options = append(options, asynq.MaxRetry(c.maxRetry))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := c.client.EnqueueContext(ctx, task, options...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Debugw("queue_task_duplicate", "task_id", taskID, "type", task.Type())
		return nil
	}
	return err
}

// BuildServerConfig 生成 worker 的队列连接与消费配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	concurrency := defaultConcurrency
	queues := map[string]int{DefaultQueue: 1, NotificationQueue: 1}
	if cfg != nil {
		if cfg.Concurrency > 0 {
			concurrency = cfg.Concurrency
		}
		if len(cfg.Queues) > 0 {
			queues = cfg.Queues
		}
	}
	return redisOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Warnw("queue_task_failed",
				"type", task.Type(),
				"retried", retried,
				"max_retry", maxRetry,
				"error", err,
			)
		}),
	}
}

func redisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host, port := "127.0.0.1", 6379
	opt := asynq.RedisClientOpt{}
	if cfg != nil {
		if trimmed := strings.TrimSpace(cfg.Host); trimmed != "" {
			host = trimmed
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		opt.Password = cfg.Password
		opt.DB = cfg.DB
	}
	opt.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	return opt
}
