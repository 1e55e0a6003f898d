package models

import "time"

// Product 合作方产品（贷款、信用卡、开户等）
type Product struct {
	ID             uint      `gorm:"primarykey" json:"id"`                               // 主键
	PartnerID      uint      `gorm:"not null;index" json:"partner_id"`                   // 所属合作方ID
	Name           string    `gorm:"type:varchar(128);not null" json:"name"`             // 产品名称
	Type           string    `gorm:"type:varchar(32);not null;index" json:"type"`        // 产品类型
	IsActive       bool      `gorm:"not null;index" json:"is_active"`                    // 是否上架
	ApplicationURL string    `gorm:"type:varchar(1024);not null" json:"application_url"` // 申请落地页
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt      time.Time `json:"updated_at"`                                         // 更新时间

	Partner *Partner `gorm:"foreignKey:PartnerID" json:"partner,omitempty"` // 合作方
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
