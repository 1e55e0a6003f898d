package repository

import "time"

// PartnerListFilter 合作方列表过滤条件
type PartnerListFilter struct {
	Page       int
	PageSize   int
	Type       string
	OnlyActive bool
}

// ProductListFilter 产品列表过滤条件
type ProductListFilter struct {
	Page       int
	PageSize   int
	PartnerID  uint
	OnlyActive bool
}

// ClickListFilter 点击列表过滤条件
type ClickListFilter struct {
	Page        int
	PageSize    int
	PartnerID   uint
	ProductID   uint
	Converted   *bool
	ClickedFrom *time.Time
	ClickedTo   *time.Time
}

// AnalyticsFilter 报表统计范围，clicked_at 落在 [StartAt, EndAt)
type AnalyticsFilter struct {
	StartAt   time.Time
	EndAt     time.Time
	PartnerID uint
	// UTCOffsetSeconds 按天/按月分桶使用的时区偏移
	UTCOffsetSeconds int
}
