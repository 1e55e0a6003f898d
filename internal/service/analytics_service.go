package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/finlink-next/internal/cache"
	"github.com/finlink-next/internal/config"
	"github.com/finlink-next/internal/models"
	"github.com/finlink-next/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAnalyticsCacheTTL   = 60 * time.Second
	defaultAnalyticsMaxDays    = 366
	defaultAnalyticsTopProduct = 10
)

var mobileUserAgentPattern = regexp.MustCompile(`(?i)mobile|android|iphone|ipad|ipod|blackberry|iemobile|opera mini|windows phone`)

// AnalyticsService 推广报表服务
// 说明：所有报表按 clicked_at 落在 [from, to) 的点击实时聚合。
type AnalyticsService struct {
	repo     repository.AnalyticsRepository
	cacheTTL time.Duration
	maxDays  int
	topLimit int
	nowFn    func() time.Time
}

// NewAnalyticsService 创建报表服务
func NewAnalyticsService(repo repository.AnalyticsRepository, cfg config.AnalyticsConfig) *AnalyticsService {
	svc := &AnalyticsService{
		repo:     repo,
		cacheTTL: time.Duration(cfg.CacheTTLSeconds) * time.Second,
		maxDays:  cfg.MaxRangeDays,
		topLimit: cfg.TopProductsLimit,
		nowFn:    time.Now,
	}
	if svc.cacheTTL <= 0 {
		svc.cacheTTL = defaultAnalyticsCacheTTL
	}
	if svc.maxDays <= 0 {
		svc.maxDays = defaultAnalyticsMaxDays
	}
	if svc.topLimit <= 0 {
		svc.topLimit = defaultAnalyticsTopProduct
	}
	return svc
}

// AnalyticsQueryInput 报表查询输入
type AnalyticsQueryInput struct {
	Range        string
	From         *time.Time
	To           *time.Time
	Timezone     string
	PartnerID    uint
	ForceRefresh bool
}

// AnalyticsWindow 报表时间范围
type AnalyticsWindow struct {
	Range     string `json:"range"`
	From      string `json:"from"`
	To        string `json:"to"`
	Timezone  string `json:"timezone"`
	PartnerID uint   `json:"partner_id,omitempty"`
}

// AnalyticsSummaryResponse 汇总报表
type AnalyticsSummaryResponse struct {
	AnalyticsWindow
	TotalClicks      int64                     `json:"total_clicks"`
	TotalConversions int64                     `json:"total_conversions"`
	ConversionRate   float64                   `json:"conversion_rate"`
	TotalCommissions models.Money              `json:"total_commissions"`
	Partners         []AnalyticsPartnerSummary `json:"partners"`
}

// AnalyticsPartnerSummary 合作方汇总
type AnalyticsPartnerSummary struct {
	PartnerID      uint         `json:"partner_id"`
	PartnerName    string       `json:"partner_name"`
	Clicks         int64        `json:"clicks"`
	Conversions    int64        `json:"conversions"`
	ConversionRate float64      `json:"conversion_rate"`
	Commissions    models.Money `json:"commissions"`
}

// AnalyticsPerformanceResponse 表现报表
type AnalyticsPerformanceResponse struct {
	AnalyticsWindow
	Daily       []AnalyticsTrendPoint     `json:"daily"`
	TopProducts []AnalyticsProductSummary `json:"top_products"`
	Devices     AnalyticsDeviceSplit      `json:"devices"`
}

// AnalyticsTrendPoint 按天趋势点
type AnalyticsTrendPoint struct {
	Date        string `json:"date"`
	Clicks      int64  `json:"clicks"`
	Conversions int64  `json:"conversions"`
}

// AnalyticsProductSummary 产品汇总
type AnalyticsProductSummary struct {
	ProductID      uint         `json:"product_id"`
	ProductName    string       `json:"product_name"`
	PartnerID      uint         `json:"partner_id"`
	Clicks         int64        `json:"clicks"`
	Conversions    int64        `json:"conversions"`
	ConversionRate float64      `json:"conversion_rate"`
	Commissions    models.Money `json:"commissions"`
}

// AnalyticsDeviceSplit 设备拆分
type AnalyticsDeviceSplit struct {
	Mobile      int64   `json:"mobile"`
	Desktop     int64   `json:"desktop"`
	MobileShare float64 `json:"mobile_share"`
}

// AnalyticsConversionsResponse 转化漏斗报表
type AnalyticsConversionsResponse struct {
	AnalyticsWindow
	Funnel           AnalyticsFunnel           `json:"funnel"`
	TimeToConversion AnalyticsTimeToConversion `json:"time_to_conversion"`
}

// AnalyticsFunnel 漏斗各阶段计数
type AnalyticsFunnel struct {
	Clicked            int64 `json:"clicked"`
	Redirected         int64 `json:"redirected"`
	Initiated          int64 `json:"initiated"`
	DocumentsSubmitted int64 `json:"documents_submitted"`
	UnderReview        int64 `json:"under_review"`
	Approved           int64 `json:"approved"`
	Rejected           int64 `json:"rejected"`
	FirstTransaction   int64 `json:"first_transaction"`
	Converted          int64 `json:"converted"`
}

// AnalyticsTimeToConversion 点击到转化耗时（天）
type AnalyticsTimeToConversion struct {
	Samples     int     `json:"samples"`
	AverageDays float64 `json:"average_days"`
	MinDays     float64 `json:"min_days"`
	MaxDays     float64 `json:"max_days"`
}

// AnalyticsCommissionsResponse 佣金报表
type AnalyticsCommissionsResponse struct {
	AnalyticsWindow
	TotalCommissions models.Money              `json:"total_commissions"`
	ByPartner        []AnalyticsPartnerSummary `json:"by_partner"`
	ByMonth          []AnalyticsMonthSummary   `json:"by_month"`
	ByProduct        []AnalyticsProductSummary `json:"by_product"`
}

// AnalyticsMonthSummary 月度佣金
type AnalyticsMonthSummary struct {
	Month       string       `json:"month"`
	Conversions int64        `json:"conversions"`
	Commissions models.Money `json:"commissions"`
}

type analyticsWindow struct {
	rangeKey string
	startAt  time.Time
	endAt    time.Time
	timezone string
}

// GetSummary 汇总：点击、转化、转化率、佣金及合作方拆分
func (s *AnalyticsService) GetSummary(ctx context.Context, input AnalyticsQueryInput) (*AnalyticsSummaryResponse, error) {
	window, err := s.resolveWindow(input)
	if err != nil {
		return nil, err
	}
	key := analyticsCacheKey("summary", window, input.PartnerID)
	return cache.Remember(ctx, key, s.cacheTTL, input.ForceRefresh, func() (*AnalyticsSummaryResponse, error) {
		filter := window.filter(input.PartnerID)
		totals, err := s.repo.GetTotals(filter)
		if err != nil {
			return nil, err
		}
		partnerRows, err := s.repo.GetPartnerBreakdown(filter)
		if err != nil {
			return nil, err
		}

		response := &AnalyticsSummaryResponse{
			AnalyticsWindow:  window.view(input.PartnerID),
			TotalClicks:      totals.ClickCount,
			TotalConversions: totals.ConversionCount,
			ConversionRate:   calcConversionRate(totals.ConversionCount, totals.ClickCount),
			TotalCommissions: models.NewMoneyFromDecimal(totals.CommissionTotal),
			Partners:         buildPartnerSummaries(partnerRows),
		}
		return response, nil
	})
}

// GetPerformance 表现：按天趋势、产品排行与设备拆分
func (s *AnalyticsService) GetPerformance(ctx context.Context, input AnalyticsQueryInput) (*AnalyticsPerformanceResponse, error) {
	window, err := s.resolveWindow(input)
	if err != nil {
		return nil, err
	}
	key := analyticsCacheKey("performance", window, input.PartnerID, s.topLimit)
	return cache.Remember(ctx, key, s.cacheTTL, input.ForceRefresh, func() (*AnalyticsPerformanceResponse, error) {
		filter := window.filter(input.PartnerID)
		var (
			dailyRows   []repository.AnalyticsDailyRow
			productRows []repository.AnalyticsProductRow
			agentRows   []repository.AnalyticsUserAgentRow
		)
		var group errgroup.Group
		group.Go(func() error {
			rows, err := s.repo.GetDailyTrend(filter)
			dailyRows = rows
			return err
		})
		group.Go(func() error {
			rows, err := s.repo.GetTopProducts(filter, s.topLimit)
			productRows = rows
			return err
		})
		group.Go(func() error {
			rows, err := s.repo.GetUserAgentCounts(filter)
			agentRows = rows
			return err
		})
		if err := group.Wait(); err != nil {
			return nil, err
		}

		dailyMap := make(map[string]repository.AnalyticsDailyRow, len(dailyRows))
		for _, item := range dailyRows {
			dailyMap[item.Day] = item
		}
		points := make([]AnalyticsTrendPoint, 0)
		for cursor := time.Date(window.startAt.Year(), window.startAt.Month(), window.startAt.Day(), 0, 0, 0, 0, window.startAt.Location()); cursor.Before(window.endAt); cursor = cursor.AddDate(0, 0, 1) {
			day := cursor.Format("2006-01-02")
			item := dailyMap[day]
			points = append(points, AnalyticsTrendPoint{
				Date:        day,
				Clicks:      item.ClickCount,
				Conversions: item.ConversionCount,
			})
		}

		response := &AnalyticsPerformanceResponse{
			AnalyticsWindow: window.view(input.PartnerID),
			Daily:           points,
			TopProducts:     buildProductSummaries(productRows),
			Devices:         splitDevices(agentRows),
		}
		return response, nil
	})
}

// GetConversions 转化漏斗与转化耗时
func (s *AnalyticsService) GetConversions(ctx context.Context, input AnalyticsQueryInput) (*AnalyticsConversionsResponse, error) {
	window, err := s.resolveWindow(input)
	if err != nil {
		return nil, err
	}
	key := analyticsCacheKey("conversions", window, input.PartnerID)
	return cache.Remember(ctx, key, s.cacheTTL, input.ForceRefresh, func() (*AnalyticsConversionsResponse, error) {
		filter := window.filter(input.PartnerID)
		funnel, err := s.repo.GetFunnelCounts(filter)
		if err != nil {
			return nil, err
		}
		timings, err := s.repo.ListConversionTimings(filter)
		if err != nil {
			return nil, err
		}

		response := &AnalyticsConversionsResponse{
			AnalyticsWindow: window.view(input.PartnerID),
			Funnel: AnalyticsFunnel{
				Clicked:            funnel.Clicked,
				Redirected:         funnel.Redirected,
				Initiated:          funnel.Initiated,
				DocumentsSubmitted: funnel.DocumentsSubmitted,
				UnderReview:        funnel.UnderReview,
				Approved:           funnel.Approved,
				Rejected:           funnel.Rejected,
				FirstTransaction:   funnel.FirstTransaction,
				Converted:          funnel.Converted,
			},
			TimeToConversion: summarizeConversionTimings(timings),
		}
		return response, nil
	})
}

// GetCommissions 佣金：按合作方、月份、产品汇总
func (s *AnalyticsService) GetCommissions(ctx context.Context, input AnalyticsQueryInput) (*AnalyticsCommissionsResponse, error) {
	window, err := s.resolveWindow(input)
	if err != nil {
		return nil, err
	}
	key := analyticsCacheKey("commissions", window, input.PartnerID)
	return cache.Remember(ctx, key, s.cacheTTL, input.ForceRefresh, func() (*AnalyticsCommissionsResponse, error) {
		filter := window.filter(input.PartnerID)
		var (
			partnerRows []repository.AnalyticsPartnerRow
			monthRows   []repository.AnalyticsMonthlyRow
			productRows []repository.AnalyticsProductRow
		)
		var group errgroup.Group
		group.Go(func() error {
			rows, err := s.repo.GetPartnerBreakdown(filter)
			partnerRows = rows
			return err
		})
		group.Go(func() error {
			rows, err := s.repo.GetMonthlyCommissions(filter)
			monthRows = rows
			return err
		})
		group.Go(func() error {
			rows, err := s.repo.GetProductCommissions(filter)
			productRows = rows
			return err
		})
		if err := group.Wait(); err != nil {
			return nil, err
		}

		total := decimal.Zero
		months := make([]AnalyticsMonthSummary, 0, len(monthRows))
		for _, item := range monthRows {
			total = total.Add(item.CommissionTotal)
			months = append(months, AnalyticsMonthSummary{
				Month:       strings.TrimSpace(item.Month),
				Conversions: item.ConversionCount,
				Commissions: models.NewMoneyFromDecimal(item.CommissionTotal),
			})
		}

		response := &AnalyticsCommissionsResponse{
			AnalyticsWindow:  window.view(input.PartnerID),
			TotalCommissions: models.NewMoneyFromDecimal(total),
			ByPartner:        buildPartnerSummaries(partnerRows),
			ByMonth:          months,
			ByProduct:        buildProductSummaries(productRows),
		}
		return response, nil
	})
}

func (s *AnalyticsService) resolveWindow(input AnalyticsQueryInput) (analyticsWindow, error) {
	return resolveAnalyticsWindow(input, s.nowFn(), s.maxDays)
}

func resolveAnalyticsWindow(input AnalyticsQueryInput, now time.Time, maxDays int) (analyticsWindow, error) {
	rangeKey := strings.ToLower(strings.TrimSpace(input.Range))
	if rangeKey == "" {
		rangeKey = "30d"
	}

	timezone := strings.TrimSpace(input.Timezone)
	location := time.Local
	if timezone != "" {
		if parsed, err := time.LoadLocation(timezone); err == nil {
			location = parsed
		} else {
			timezone = ""
		}
	}
	if timezone == "" {
		timezone = location.String()
	}

	localNow := now.In(location)
	todayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, location)
	window := analyticsWindow{rangeKey: rangeKey, timezone: timezone}

	switch rangeKey {
	case "today":
		window.startAt = todayStart
	case "7d":
		window.startAt = todayStart.AddDate(0, 0, -6)
	case "30d":
		window.startAt = todayStart.AddDate(0, 0, -29)
	case "90d":
		window.startAt = todayStart.AddDate(0, 0, -89)
	case "custom":
		if input.From == nil || input.To == nil {
			return analyticsWindow{}, ErrAnalyticsRangeInvalid
		}
		startAt := input.From.In(location)
		endAt := input.To.In(location)
		if !endAt.After(startAt) {
			return analyticsWindow{}, ErrAnalyticsRangeInvalid
		}
		if endAt.Sub(startAt) > time.Duration(maxDays)*24*time.Hour {
			return analyticsWindow{}, fmt.Errorf("%w: range exceeds %d days", ErrAnalyticsRangeInvalid, maxDays)
		}
		window.startAt = startAt
		window.endAt = endAt
		return window, nil
	default:
		return analyticsWindow{}, ErrAnalyticsRangeInvalid
	}
	window.endAt = todayStart.AddDate(0, 0, 1)
	return window, nil
}

// filter 时间边界转为 UTC 与库内存储一致，分桶沿用窗口起点所在时区的偏移
func (w analyticsWindow) filter(partnerID uint) repository.AnalyticsFilter {
	_, offset := w.startAt.Zone()
	return repository.AnalyticsFilter{
		StartAt:          w.startAt.UTC(),
		EndAt:            w.endAt.UTC(),
		PartnerID:        partnerID,
		UTCOffsetSeconds: offset,
	}
}

func (w analyticsWindow) view(partnerID uint) AnalyticsWindow {
	return AnalyticsWindow{
		Range:     w.rangeKey,
		From:      w.startAt.Format(time.RFC3339),
		To:        w.endAt.Format(time.RFC3339),
		Timezone:  w.timezone,
		PartnerID: partnerID,
	}
}

func analyticsCacheKey(report string, window analyticsWindow, partnerID uint, extra ...int) string {
	key := fmt.Sprintf("analytics:%s:%s:%d:%d:%s:%d", report, window.rangeKey, window.startAt.Unix(), window.endAt.Unix(), window.timezone, partnerID)
	for _, item := range extra {
		key += fmt.Sprintf(":%d", item)
	}
	return key
}

func buildPartnerSummaries(rows []repository.AnalyticsPartnerRow) []AnalyticsPartnerSummary {
	result := make([]AnalyticsPartnerSummary, 0, len(rows))
	for _, item := range rows {
		name := strings.TrimSpace(item.PartnerName)
		if name == "" {
			name = "-"
		}
		result = append(result, AnalyticsPartnerSummary{
			PartnerID:      item.PartnerID,
			PartnerName:    name,
			Clicks:         item.ClickCount,
			Conversions:    item.ConversionCount,
			ConversionRate: calcConversionRate(item.ConversionCount, item.ClickCount),
			Commissions:    models.NewMoneyFromDecimal(item.CommissionTotal),
		})
	}
	return result
}

func buildProductSummaries(rows []repository.AnalyticsProductRow) []AnalyticsProductSummary {
	result := make([]AnalyticsProductSummary, 0, len(rows))
	for _, item := range rows {
		name := strings.TrimSpace(item.ProductName)
		if name == "" {
			name = "-"
		}
		result = append(result, AnalyticsProductSummary{
			ProductID:      item.ProductID,
			ProductName:    name,
			PartnerID:      item.PartnerID,
			Clicks:         item.ClickCount,
			Conversions:    item.ConversionCount,
			ConversionRate: calcConversionRate(item.ConversionCount, item.ClickCount),
			Commissions:    models.NewMoneyFromDecimal(item.CommissionTotal),
		})
	}
	return result
}

func splitDevices(rows []repository.AnalyticsUserAgentRow) AnalyticsDeviceSplit {
	split := AnalyticsDeviceSplit{}
	for _, item := range rows {
		if mobileUserAgentPattern.MatchString(item.UserAgent) {
			split.Mobile += item.ClickCount
		} else {
			split.Desktop += item.ClickCount
		}
	}
	split.MobileShare = calcConversionRate(split.Mobile, split.Mobile+split.Desktop)
	return split
}

func summarizeConversionTimings(rows []repository.AnalyticsConversionTimingRow) AnalyticsTimeToConversion {
	result := AnalyticsTimeToConversion{Samples: len(rows)}
	if len(rows) == 0 {
		return result
	}
	var sum float64
	result.MinDays = math.MaxFloat64
	for _, item := range rows {
		days := item.ConversionDate.Sub(item.ClickedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		sum += days
		result.MinDays = math.Min(result.MinDays, days)
		result.MaxDays = math.Max(result.MaxDays, days)
	}
	result.AverageDays = roundTwo(sum / float64(len(rows)))
	result.MinDays = roundTwo(result.MinDays)
	result.MaxDays = roundTwo(result.MaxDays)
	return result
}

func calcConversionRate(conversions, clicks int64) float64 {
	if clicks <= 0 || conversions <= 0 {
		return 0
	}
	return roundTwo(float64(conversions) / float64(clicks) * 100)
}

func roundTwo(value float64) float64 {
	return math.Round(value*100) / 100
}
