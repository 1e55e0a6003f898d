package models

import "time"

// Partner 合作方（贷款机构、信用卡发卡方、券商）
type Partner struct {
	ID                    uint        `gorm:"primarykey" json:"id"`                                             // 主键
	Name                  string      `gorm:"type:varchar(128);not null;uniqueIndex" json:"name"`               // 合作方名称
	Type                  string      `gorm:"type:varchar(20);not null;index" json:"type"`                      // 类型（loan/credit_card/broker）
	IsActive              bool        `gorm:"not null;index" json:"is_active"`                                  // 是否启用
	CommissionType        string      `gorm:"type:varchar(20);not null;default:'fixed'" json:"commission_type"` // 佣金类型（fixed/percentage）
	CommissionAmount      Money       `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"`   // 固定金额或百分比数值
	Currency              string      `gorm:"type:varchar(8);not null;default:'INR'" json:"currency"`           // 币种
	ConversionGoals       StringArray `gorm:"type:json" json:"conversion_goals"`                                // 转化目标集合
	AttributionWindowDays int         `gorm:"not null;default:30" json:"attribution_window_days"`               // 归因窗口（天）
	APIEndpoint           string      `gorm:"type:varchar(512)" json:"api_endpoint,omitempty"`                  // 通知回调地址
	CreatedAt             time.Time   `gorm:"index" json:"created_at"`                                          // 创建时间
	UpdatedAt             time.Time   `json:"updated_at"`                                                       // 更新时间
}

// TableName 指定表名
func (Partner) TableName() string {
	return "partners"
}

// CommissionStructure 佣金结构快照
type CommissionStructure struct {
	Type     string `json:"type"`
	Amount   Money  `json:"amount"`
	Currency string `json:"currency"`
}

// Commission 返回合作方的佣金结构
func (p *Partner) Commission() CommissionStructure {
	if p == nil {
		return CommissionStructure{}
	}
	return CommissionStructure{
		Type:     p.CommissionType,
		Amount:   p.CommissionAmount,
		Currency: p.Currency,
	}
}
