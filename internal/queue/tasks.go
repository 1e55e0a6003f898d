package queue

import (
	"encoding/json"
	"time"

	"github.com/finlink-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPartnerNotifyClick 合作方点击通知任务
	TaskPartnerNotifyClick = constants.TaskPartnerNotifyClick
	// TaskPartnerNotifyConversion 合作方转化通知任务
	TaskPartnerNotifyConversion = constants.TaskPartnerNotifyConversion
)

// PartnerClickPayload 点击通知任务载荷
type PartnerClickPayload struct {
	PartnerID   uint      `json:"partner_id"`
	ProductID   uint      `json:"product_id"`
	TrackingID  string    `json:"tracking_id"`
	ClickedAt   time.Time `json:"clicked_at"`
	UTMSource   string    `json:"utm_source,omitempty"`
	UTMMedium   string    `json:"utm_medium,omitempty"`
	UTMCampaign string    `json:"utm_campaign,omitempty"`
}

// PartnerConversionPayload 转化通知任务载荷
type PartnerConversionPayload struct {
	PartnerID        uint            `json:"partner_id"`
	TrackingID       string          `json:"tracking_id"`
	ConversionType   string          `json:"conversion_type"`
	ConversionDate   time.Time       `json:"conversion_date"`
	CommissionAmount string          `json:"commission_amount"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
}

// NewPartnerClickTask 创建点击通知任务
func NewPartnerClickTask(payload PartnerClickPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPartnerNotifyClick, body), nil
}

// NewPartnerConversionTask 创建转化通知任务
func NewPartnerConversionTask(payload PartnerConversionPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPartnerNotifyConversion, body), nil
}
