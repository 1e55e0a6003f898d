package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrClickInvariant 点击记录转化字段不一致
var ErrClickInvariant = errors.New("click conversion fields inconsistent")

// Click 推广点击记录，每次追踪事件一条
type Click struct {
	ID               uint                                   `gorm:"primarykey" json:"id"`                                     // 主键
	TrackingID       string                                 `gorm:"type:varchar(64);not null;uniqueIndex" json:"tracking_id"` // 追踪ID
	PartnerID        uint                                   `gorm:"not null;index" json:"partner_id"`                         // 合作方ID
	ProductID        uint                                   `gorm:"not null;index" json:"product_id"`                         // 产品ID
	UserID           *string                                `gorm:"type:varchar(64);index" json:"user_id,omitempty"`          // 外部用户ID
	ClickedAt        time.Time                              `gorm:"not null;index" json:"clicked_at"`                         // 点击时间
	IPAddress        string                                 `gorm:"type:varchar(64);index" json:"ip_address"`                 // 客户端IP
	UserAgent        string                                 `gorm:"type:varchar(1024)" json:"user_agent"`                     // 客户端UA
	Referrer         string                                 `gorm:"type:varchar(1024)" json:"referrer"`                       // 来源地址
	SessionID        string                                 `gorm:"type:varchar(128)" json:"session_id"`                      // 会话ID
	UTMSource        string                                 `gorm:"type:varchar(128)" json:"utm_source,omitempty"`            // utm_source
	UTMMedium        string                                 `gorm:"type:varchar(128)" json:"utm_medium,omitempty"`            // utm_medium
	UTMCampaign      string                                 `gorm:"type:varchar(128)" json:"utm_campaign,omitempty"`          // utm_campaign
	Country          string                                 `gorm:"type:varchar(8)" json:"country,omitempty"`                 // IP 归属国家（ISO）
	Converted        bool                                   `gorm:"not null;default:false;index" json:"converted"`            // 是否已转化
	ConversionDate   *time.Time                             `json:"conversion_date,omitempty"`                                // 转化时间
	CommissionAmount *Money                                 `gorm:"type:decimal(20,2)" json:"commission_amount,omitempty"`    // 佣金金额
	ConversionType   string                                 `gorm:"type:varchar(64)" json:"conversion_type,omitempty"`        // 转化类型
	ConversionData   datatypes.JSONType[ConversionMetadata] `gorm:"not null" json:"conversion_data"`                          // 转化元数据

	ApplicationInitiated    bool       `gorm:"not null;default:false" json:"application_initiated"`  // 已发起申请
	ApplicationInitiatedAt  *time.Time `json:"application_initiated_at,omitempty"`                   // 发起申请时间
	ApplicationRedirected   bool       `gorm:"not null;default:false" json:"application_redirected"` // 已跳转申请页
	ApplicationRedirectedAt *time.Time `json:"application_redirected_at,omitempty"`                  // 跳转时间
	DocumentsSubmitted      bool       `gorm:"not null;default:false" json:"documents_submitted"`    // 已提交材料
	DocumentsSubmittedAt    *time.Time `json:"documents_submitted_at,omitempty"`                     // 提交材料时间
	UnderReview             bool       `gorm:"not null;default:false" json:"under_review"`           // 审核中
	UnderReviewAt           *time.Time `json:"under_review_at,omitempty"`                            // 进入审核时间
	ApplicationApproved     bool       `gorm:"not null;default:false" json:"application_approved"`   // 已批核
	ApplicationApprovedAt   *time.Time `json:"application_approved_at,omitempty"`                    // 批核时间
	ApplicationRejected     bool       `gorm:"not null;default:false" json:"application_rejected"`   // 已拒绝
	ApplicationRejectedAt   *time.Time `json:"application_rejected_at,omitempty"`                    // 拒绝时间
	RejectionReason         string     `gorm:"type:varchar(512)" json:"rejection_reason,omitempty"`  // 拒绝原因
	FirstTransaction        bool       `gorm:"not null;default:false" json:"first_transaction"`      // 已完成首笔交易
	FirstTransactionAt      *time.Time `json:"first_transaction_at,omitempty"`                       // 首笔交易时间

	CreatedAt time.Time `json:"created_at"` // 创建时间
	UpdatedAt time.Time `json:"updated_at"` // 更新时间
}

// TableName 指定表名
func (Click) TableName() string {
	return "clicks"
}

// BeforeSave 时间统一转为 UTC 后校验转化字段
// 仅对 Create/Save 结构体写入有效；Updates(map) 时钩子拿到的是空模型，条件更新的取值由仓储层校验
func (c *Click) BeforeSave(tx *gorm.DB) error {
	c.toUTC()
	return c.CheckConversionInvariant()
}

// toUTC SQLite 按文本比较时间，入库前统一时区
func (c *Click) toUTC() {
	if c == nil {
		return
	}
	c.ClickedAt = c.ClickedAt.UTC()
	for _, at := range []**time.Time{
		&c.ConversionDate,
		&c.ApplicationInitiatedAt,
		&c.ApplicationRedirectedAt,
		&c.DocumentsSubmittedAt,
		&c.UnderReviewAt,
		&c.ApplicationApprovedAt,
		&c.ApplicationRejectedAt,
		&c.FirstTransactionAt,
	} {
		if *at != nil {
			utc := (*at).UTC()
			*at = &utc
		}
	}
}

// CheckConversionInvariant 校验转化相关字段一致性
func (c *Click) CheckConversionInvariant() error {
	if c == nil {
		return nil
	}
	if c.Converted != (c.CommissionAmount != nil) || c.Converted != (c.ConversionDate != nil) {
		return ErrClickInvariant
	}
	if c.CommissionAmount != nil && c.CommissionAmount.IsNegative() {
		return ErrClickInvariant
	}
	if c.ConversionDate != nil && c.ConversionDate.Before(c.ClickedAt) {
		return ErrClickInvariant
	}
	return nil
}

// Metadata 返回转化元数据副本
func (c *Click) Metadata() ConversionMetadata {
	if c == nil {
		return ConversionMetadata{}
	}
	return c.ConversionData.Data()
}
