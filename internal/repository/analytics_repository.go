package repository

import (
	"fmt"
	"time"

	"github.com/finlink-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AnalyticsRepository 推广报表聚合查询接口
// 说明：仅聚合点击数据，不承载业务规则。
type AnalyticsRepository interface {
	GetTotals(filter AnalyticsFilter) (AnalyticsTotalsRow, error)
	GetPartnerBreakdown(filter AnalyticsFilter) ([]AnalyticsPartnerRow, error)
	GetDailyTrend(filter AnalyticsFilter) ([]AnalyticsDailyRow, error)
	GetTopProducts(filter AnalyticsFilter, limit int) ([]AnalyticsProductRow, error)
	GetUserAgentCounts(filter AnalyticsFilter) ([]AnalyticsUserAgentRow, error)
	GetFunnelCounts(filter AnalyticsFilter) (AnalyticsFunnelRow, error)
	ListConversionTimings(filter AnalyticsFilter) ([]AnalyticsConversionTimingRow, error)
	GetMonthlyCommissions(filter AnalyticsFilter) ([]AnalyticsMonthlyRow, error)
	GetProductCommissions(filter AnalyticsFilter) ([]AnalyticsProductRow, error)
}

// AnalyticsTotalsRow 点击总量统计
type AnalyticsTotalsRow struct {
	ClickCount      int64
	ConversionCount int64
	CommissionTotal decimal.Decimal
}

// AnalyticsPartnerRow 合作方维度统计
type AnalyticsPartnerRow struct {
	PartnerID       uint
	PartnerName     string
	ClickCount      int64
	ConversionCount int64
	CommissionTotal decimal.Decimal
}

// AnalyticsDailyRow 按天趋势
type AnalyticsDailyRow struct {
	Day             string
	ClickCount      int64
	ConversionCount int64
}

// AnalyticsProductRow 产品维度统计
type AnalyticsProductRow struct {
	ProductID       uint
	ProductName     string
	PartnerID       uint
	ClickCount      int64
	ConversionCount int64
	CommissionTotal decimal.Decimal
}

// AnalyticsUserAgentRow 按 UA 聚合的点击数
type AnalyticsUserAgentRow struct {
	UserAgent  string
	ClickCount int64
}

// AnalyticsFunnelRow 漏斗各阶段计数
type AnalyticsFunnelRow struct {
	Clicked            int64
	Redirected         int64
	Initiated          int64
	DocumentsSubmitted int64
	UnderReview        int64
	Approved           int64
	Rejected           int64
	FirstTransaction   int64
	Converted          int64
}

// AnalyticsConversionTimingRow 单条转化的点击与转化时间
type AnalyticsConversionTimingRow struct {
	ClickedAt      time.Time
	ConversionDate time.Time
}

// AnalyticsMonthlyRow 按月佣金统计
type AnalyticsMonthlyRow struct {
	Month           string
	ConversionCount int64
	CommissionTotal decimal.Decimal
}

// GormAnalyticsRepository GORM 报表聚合实现
type GormAnalyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository 创建报表仓库
func NewAnalyticsRepository(db *gorm.DB) *GormAnalyticsRepository {
	return &GormAnalyticsRepository{db: db}
}

func (r *GormAnalyticsRepository) clickBase(filter AnalyticsFilter) *gorm.DB {
	query := r.db.Model(&models.Click{}).
		Where("clicks.clicked_at >= ? AND clicks.clicked_at < ?", filter.StartAt.UTC(), filter.EndAt.UTC())
	if filter.PartnerID != 0 {
		query = query.Where("clicks.partner_id = ?", filter.PartnerID)
	}
	return query
}

func flagCountExpr(column, alias string) string {
	return fmt.Sprintf("COALESCE(SUM(CASE WHEN clicks.%s = ? THEN 1 ELSE 0 END), 0) AS %s", column, alias)
}

// GetTotals 获取点击、转化与佣金总量
func (r *GormAnalyticsRepository) GetTotals(filter AnalyticsFilter) (AnalyticsTotalsRow, error) {
	var row AnalyticsTotalsRow
	err := r.clickBase(filter).
		Select("COUNT(*) AS click_count, "+
			flagCountExpr("converted", "conversion_count")+
			", COALESCE(SUM(clicks.commission_amount), 0) AS commission_total", true).
		Scan(&row).Error
	return row, err
}

// GetPartnerBreakdown 按合作方拆分统计
func (r *GormAnalyticsRepository) GetPartnerBreakdown(filter AnalyticsFilter) ([]AnalyticsPartnerRow, error) {
	var rows []AnalyticsPartnerRow
	err := r.clickBase(filter).
		Joins("LEFT JOIN partners ON partners.id = clicks.partner_id").
		Select("clicks.partner_id AS partner_id, COALESCE(partners.name, '') AS partner_name, COUNT(*) AS click_count, "+
			flagCountExpr("converted", "conversion_count")+
			", COALESCE(SUM(clicks.commission_amount), 0) AS commission_total", true).
		Group("clicks.partner_id, partners.name").
		Order("click_count desc, partner_id asc").
		Scan(&rows).Error
	return rows, err
}

// GetDailyTrend 获取按天点击与转化趋势
func (r *GormAnalyticsRepository) GetDailyTrend(filter AnalyticsFilter) ([]AnalyticsDailyRow, error) {
	var rows []AnalyticsDailyRow
	expr := dayBucket(dialectOf(r.db), "clicks.clicked_at", filter.UTCOffsetSeconds)
	err := r.clickBase(filter).
		Select(fmt.Sprintf("%s AS day, COUNT(*) AS click_count, ", expr)+flagCountExpr("converted", "conversion_count"), true).
		Group(expr).
		Order("day asc").
		Scan(&rows).Error
	return rows, err
}

// GetTopProducts 按点击量获取产品排行
func (r *GormAnalyticsRepository) GetTopProducts(filter AnalyticsFilter, limit int) ([]AnalyticsProductRow, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []AnalyticsProductRow
	err := r.productGrouped(filter).
		Order("click_count desc, product_id asc").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// GetProductCommissions 按产品统计佣金
func (r *GormAnalyticsRepository) GetProductCommissions(filter AnalyticsFilter) ([]AnalyticsProductRow, error) {
	var rows []AnalyticsProductRow
	err := r.productGrouped(filter).
		Where("clicks.converted = ?", true).
		Order("commission_total desc, product_id asc").
		Scan(&rows).Error
	return rows, err
}

func (r *GormAnalyticsRepository) productGrouped(filter AnalyticsFilter) *gorm.DB {
	return r.clickBase(filter).
		Joins("LEFT JOIN products ON products.id = clicks.product_id").
		Select("clicks.product_id AS product_id, COALESCE(products.name, '') AS product_name, clicks.partner_id AS partner_id, "+
			"COUNT(*) AS click_count, "+
			flagCountExpr("converted", "conversion_count")+
			", COALESCE(SUM(clicks.commission_amount), 0) AS commission_total", true).
		Group("clicks.product_id, products.name, clicks.partner_id")
}

// GetUserAgentCounts 按 UA 聚合点击数，供设备拆分使用
func (r *GormAnalyticsRepository) GetUserAgentCounts(filter AnalyticsFilter) ([]AnalyticsUserAgentRow, error) {
	var rows []AnalyticsUserAgentRow
	err := r.clickBase(filter).
		Select("clicks.user_agent AS user_agent, COUNT(*) AS click_count").
		Group("clicks.user_agent").
		Scan(&rows).Error
	return rows, err
}

// GetFunnelCounts 获取漏斗各阶段计数
func (r *GormAnalyticsRepository) GetFunnelCounts(filter AnalyticsFilter) (AnalyticsFunnelRow, error) {
	var row AnalyticsFunnelRow
	columns := []struct {
		column string
		alias  string
	}{
		{"application_redirected", "redirected"},
		{"application_initiated", "initiated"},
		{"documents_submitted", "documents_submitted"},
		{"under_review", "under_review"},
		{"application_approved", "approved"},
		{"application_rejected", "rejected"},
		{"first_transaction", "first_transaction"},
		{"converted", "converted"},
	}
	selectSQL := "COUNT(*) AS clicked"
	args := make([]interface{}, 0, len(columns))
	for _, item := range columns {
		selectSQL += ", " + flagCountExpr(item.column, item.alias)
		args = append(args, true)
	}
	err := r.clickBase(filter).Select(selectSQL, args...).Scan(&row).Error
	return row, err
}

// ListConversionTimings 列出已转化点击的点击时间与转化时间
func (r *GormAnalyticsRepository) ListConversionTimings(filter AnalyticsFilter) ([]AnalyticsConversionTimingRow, error) {
	var rows []AnalyticsConversionTimingRow
	err := r.clickBase(filter).
		Select("clicks.clicked_at AS clicked_at, clicks.conversion_date AS conversion_date").
		Where("clicks.converted = ? AND clicks.conversion_date IS NOT NULL", true).
		Scan(&rows).Error
	return rows, err
}

// GetMonthlyCommissions 按转化月份统计佣金
func (r *GormAnalyticsRepository) GetMonthlyCommissions(filter AnalyticsFilter) ([]AnalyticsMonthlyRow, error) {
	var rows []AnalyticsMonthlyRow
	expr := monthBucket(dialectOf(r.db), "clicks.conversion_date", filter.UTCOffsetSeconds)
	err := r.clickBase(filter).
		Select(fmt.Sprintf("%s AS month, COUNT(*) AS conversion_count, COALESCE(SUM(clicks.commission_amount), 0) AS commission_total", expr)).
		Where("clicks.converted = ? AND clicks.conversion_date IS NOT NULL", true).
		Group(expr).
		Order("month asc").
		Scan(&rows).Error
	return rows, err
}
