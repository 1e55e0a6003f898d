package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/finlink-next/internal/logger"
	"github.com/finlink-next/internal/metrics"
	"github.com/finlink-next/internal/models"
	"github.com/finlink-next/internal/queue"
)

// Notifier 合作方通知出口，调用方不感知失败
type Notifier interface {
	NotifyClick(ctx context.Context, click *models.Click)
	NotifyConversion(ctx context.Context, click *models.Click)
}

// Enqueuer 通知任务投递接口
type Enqueuer interface {
	EnqueuePartnerClick(payload queue.PartnerClickPayload) error
	EnqueuePartnerConversion(payload queue.PartnerConversionPayload) error
}

// NopNotifier 不做任何通知
type NopNotifier struct{}

// NotifyClick 忽略点击通知
func (NopNotifier) NotifyClick(context.Context, *models.Click) {}

// NotifyConversion 忽略转化通知
func (NopNotifier) NotifyConversion(context.Context, *models.Click) {}

// QueueNotifier 通过异步队列投递合作方通知
type QueueNotifier struct {
	enqueuer Enqueuer
}

// NewQueueNotifier 创建队列通知器
func NewQueueNotifier(enqueuer Enqueuer) *QueueNotifier {
	return &QueueNotifier{enqueuer: enqueuer}
}

// NotifyClick 投递点击通知任务，投递失败仅记录日志
func (n *QueueNotifier) NotifyClick(ctx context.Context, click *models.Click) {
	if n == nil || n.enqueuer == nil || click == nil {
		return
	}
	payload := queue.PartnerClickPayload{
		PartnerID:   click.PartnerID,
		ProductID:   click.ProductID,
		TrackingID:  click.TrackingID,
		ClickedAt:   click.ClickedAt,
		UTMSource:   click.UTMSource,
		UTMMedium:   click.UTMMedium,
		UTMCampaign: click.UTMCampaign,
	}
	if err := n.enqueuer.EnqueuePartnerClick(payload); err != nil {
		metrics.NotificationsTotal.WithLabelValues(metrics.NotifyKindClick, metrics.OutcomeEnqueueFailed).Inc()
		logger.Warnw("notify_enqueue_click_failed",
			"tracking_id", click.TrackingID,
			"partner_id", click.PartnerID,
			"error", err,
		)
		return
	}
	metrics.NotificationsTotal.WithLabelValues(metrics.NotifyKindClick, metrics.OutcomeEnqueued).Inc()
}

// NotifyConversion 投递转化通知任务，投递失败仅记录日志
func (n *QueueNotifier) NotifyConversion(ctx context.Context, click *models.Click) {
	if n == nil || n.enqueuer == nil || click == nil || !click.Converted {
		return
	}
	payload := BuildConversionPayload(click)
	if err := n.enqueuer.EnqueuePartnerConversion(payload); err != nil {
		metrics.NotificationsTotal.WithLabelValues(metrics.NotifyKindConversion, metrics.OutcomeEnqueueFailed).Inc()
		logger.Warnw("notify_enqueue_conversion_failed",
			"tracking_id", click.TrackingID,
			"partner_id", click.PartnerID,
			"error", err,
		)
		return
	}
	metrics.NotificationsTotal.WithLabelValues(metrics.NotifyKindConversion, metrics.OutcomeEnqueued).Inc()
}

// BuildConversionPayload 根据已转化点击构造通知载荷
func BuildConversionPayload(click *models.Click) queue.PartnerConversionPayload {
	payload := queue.PartnerConversionPayload{
		PartnerID:      click.PartnerID,
		TrackingID:     click.TrackingID,
		ConversionType: click.ConversionType,
	}
	if click.ConversionDate != nil {
		payload.ConversionDate = *click.ConversionDate
	} else {
		payload.ConversionDate = time.Now()
	}
	if click.CommissionAmount != nil {
		payload.CommissionAmount = click.CommissionAmount.String()
	}
	if raw, err := json.Marshal(click.Metadata()); err == nil {
		payload.Metadata = raw
	}
	return payload
}
