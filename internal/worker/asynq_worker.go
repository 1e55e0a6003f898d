package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/finlink-next/internal/logger"
	"github.com/finlink-next/internal/metrics"
	"github.com/finlink-next/internal/notify"
	"github.com/finlink-next/internal/provider"
	"github.com/finlink-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// partnerClickBody 推送给合作方的点击通知
type partnerClickBody struct {
	TrackingID  string    `json:"trackingId"`
	ProductID   uint      `json:"productId"`
	ClickedAt   time.Time `json:"clickedAt"`
	UTMSource   string    `json:"utmSource,omitempty"`
	UTMMedium   string    `json:"utmMedium,omitempty"`
	UTMCampaign string    `json:"utmCampaign,omitempty"`
}

// partnerConversionBody 推送给合作方的转化通知
type partnerConversionBody struct {
	TrackingID       string          `json:"trackingId"`
	ConversionType   string          `json:"conversionType"`
	ConversionDate   time.Time       `json:"conversionDate"`
	CommissionAmount string          `json:"commissionAmount"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPartnerNotifyClick, c.handlePartnerNotifyClick)
	mux.HandleFunc(queue.TaskPartnerNotifyConversion, c.handlePartnerNotifyConversion)
}

func (c *Consumer) handlePartnerNotifyClick(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_partner_notify_click_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PartnerClickPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_partner_notify_click_unmarshal_failed", "error", err)
		return err
	}
	body := partnerClickBody{
		TrackingID:  payload.TrackingID,
		ProductID:   payload.ProductID,
		ClickedAt:   payload.ClickedAt,
		UTMSource:   payload.UTMSource,
		UTMMedium:   payload.UTMMedium,
		UTMCampaign: payload.UTMCampaign,
	}
	return c.deliver(ctx, metrics.NotifyKindClick, payload.PartnerID, payload.TrackingID, notify.PathTrackClick, body)
}

func (c *Consumer) handlePartnerNotifyConversion(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_partner_notify_conversion_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PartnerConversionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_partner_notify_conversion_unmarshal_failed", "error", err)
		return err
	}
	body := partnerConversionBody{
		TrackingID:       payload.TrackingID,
		ConversionType:   payload.ConversionType,
		ConversionDate:   payload.ConversionDate,
		CommissionAmount: payload.CommissionAmount,
		Metadata:         payload.Metadata,
	}
	return c.deliver(ctx, metrics.NotifyKindConversion, payload.PartnerID, payload.TrackingID, notify.PathConversion, body)
}

// deliver 返回 error 时由 asynq 按 MaxRetry 重试
func (c *Consumer) deliver(ctx context.Context, kind string, partnerID uint, trackingID, path string, body interface{}) error {
	if partnerID == 0 || strings.TrimSpace(trackingID) == "" {
		logger.Debugw("worker_partner_notify_skip_invalid_payload", "kind", kind, "partner_id", partnerID, "tracking_id", trackingID)
		return nil
	}
	partner, err := c.PartnerRepo.GetByID(partnerID)
	if err != nil {
		logger.Warnw("worker_partner_notify_fetch_partner_failed", "kind", kind, "partner_id", partnerID, "error", err)
		return err
	}
	if partner == nil || strings.TrimSpace(partner.APIEndpoint) == "" {
		metrics.NotificationsTotal.WithLabelValues(kind, metrics.OutcomeSkipped).Inc()
		logger.Debugw("worker_partner_notify_skip_no_endpoint", "kind", kind, "partner_id", partnerID, "tracking_id", trackingID)
		return nil
	}
	if c.NotifySender == nil {
		logger.Warnw("worker_partner_notify_skip_sender_nil", "kind", kind, "partner_id", partnerID)
		return nil
	}
	if err := c.NotifySender.Send(ctx, partner.APIEndpoint, path, body); err != nil {
		metrics.NotificationsTotal.WithLabelValues(kind, metrics.OutcomeFailed).Inc()
		logger.Warnw("worker_partner_notify_failed",
			"kind", kind,
			"partner_id", partnerID,
			"tracking_id", trackingID,
			"error", err,
		)
		if errors.Is(err, notify.ErrEndpointInvalid) {
			return nil
		}
		return err
	}
	metrics.NotificationsTotal.WithLabelValues(kind, metrics.OutcomeDelivered).Inc()
	logger.Debugw("worker_partner_notify_delivered", "kind", kind, "partner_id", partnerID, "tracking_id", trackingID)
	return nil
}
