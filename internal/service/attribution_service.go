package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/finlink-next/internal/config"
	"github.com/finlink-next/internal/constants"
	"github.com/finlink-next/internal/logger"
	"github.com/finlink-next/internal/metrics"
	"github.com/finlink-next/internal/models"
	"github.com/finlink-next/internal/notify"
	"github.com/finlink-next/internal/repository"

	"github.com/shopspring/decimal"
)

const defaultAttributionWindowDays = 30

// AttributionService 转化归因服务
// 说明：校验归因窗口并以条件更新保证每个点击至多计佣一次。
type AttributionService struct {
	clickRepo     repository.ClickRepository
	partnerRepo   repository.PartnerRepository
	notifier      notify.Notifier
	defaultWindow int
	nowFn         func() time.Time
}

// NewAttributionService 创建归因服务
func NewAttributionService(
	clickRepo repository.ClickRepository,
	partnerRepo repository.PartnerRepository,
	notifier notify.Notifier,
	cfg config.TrackingConfig,
) *AttributionService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	window := cfg.DefaultAttributionWindow
	if window <= 0 {
		window = defaultAttributionWindowDays
	}
	return &AttributionService{
		clickRepo:     clickRepo,
		partnerRepo:   partnerRepo,
		notifier:      notifier,
		defaultWindow: window,
		nowFn:         time.Now,
	}
}

// RecordConversionInput 转化上报输入
type RecordConversionInput struct {
	TrackingID      string
	ConversionType  string
	ConversionValue *decimal.Decimal
	Metadata        models.ConversionMetadata
	markApproved    bool
}

// IsWithinAttributionWindow 点击距今是否仍在合作方归因窗口内
func (s *AttributionService) IsWithinAttributionWindow(click *models.Click, partner *models.Partner) bool {
	if click == nil {
		return false
	}
	return s.withinWindow(click, partner, s.nowFn())
}

func (s *AttributionService) withinWindow(click *models.Click, partner *models.Partner, at time.Time) bool {
	windowDays := s.defaultWindow
	if partner != nil && partner.AttributionWindowDays > 0 {
		windowDays = partner.AttributionWindowDays
	}
	elapsed := at.Sub(click.ClickedAt)
	return elapsed <= time.Duration(windowDays)*24*time.Hour
}

// RecordConversion 记录转化并计算佣金
// 已转化与不存在同样返回 ErrTrackingNotFound。
func (s *AttributionService) RecordConversion(ctx context.Context, input RecordConversionInput) (*models.Click, error) {
	trackingID := strings.TrimSpace(input.TrackingID)
	if trackingID == "" {
		return nil, ErrTrackingNotFound
	}
	conversionValue := decimal.Zero
	if input.ConversionValue != nil {
		conversionValue = *input.ConversionValue
	} else if input.Metadata.ConversionValue != nil {
		conversionValue = input.Metadata.ConversionValue.Decimal
	}
	if conversionValue.IsNegative() {
		metrics.ConversionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, ErrInvalidConversionValue
	}
	metadata := input.Metadata.Normalize()
	if err := metadata.Validate(); err != nil {
		metrics.ConversionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, fmt.Errorf("%w: %v", ErrConversionMetadataInvalid, err)
	}

	click, err := s.clickRepo.GetByTrackingID(trackingID)
	if err != nil {
		return nil, err
	}
	if click == nil || click.Converted || click.ApplicationRejected {
		metrics.ConversionsTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return nil, ErrTrackingNotFound
	}
	partner, err := s.partnerRepo.GetByID(click.PartnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrPartnerNotFoundOrInactive
	}

	now := s.nowFn()
	if !s.withinWindow(click, partner, now) {
		metrics.ConversionsTotal.WithLabelValues(metrics.OutcomeWindowExpired).Inc()
		return nil, ErrAttributionWindowExpired
	}
	// 转化时间固定为服务端当前时间
	conversionDate := now.UTC()
	if conversionDate.Before(click.ClickedAt) {
		metrics.ConversionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, ErrInvalidConversionDate
	}

	conversionType := strings.ToLower(strings.TrimSpace(input.ConversionType))
	commission, err := CalculateCommission(partner.Commission(), conversionValue, ConversionTypeMultiplier(conversionType))
	if err != nil {
		metrics.ConversionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}

	if input.ConversionValue != nil {
		metadata.ConversionValue = models.MoneyPtr(conversionValue)
	}
	merged := click.Metadata().Merge(metadata)
	if merged.Currency == "" {
		merged.Currency = partner.Currency
	}

	updated, err := s.clickRepo.MarkConverted(trackingID, repository.ClickConversionUpdate{
		ConversionDate:   conversionDate,
		CommissionAmount: models.NewMoneyFromDecimal(commission),
		ConversionType:   conversionType,
		Metadata:         merged,
		MarkApproved:     input.markApproved || conversionType == constants.ConversionTypeApplicationApproved,
	})
	if err != nil {
		return nil, err
	}
	if !updated {
		metrics.ConversionsTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return nil, ErrTrackingNotFound
	}

	metrics.ConversionsTotal.WithLabelValues(metrics.OutcomeRecorded).Inc()
	metrics.CommissionTotal.Add(commission.InexactFloat64())
	logger.Infow("tracking_conversion_recorded",
		"tracking_id", trackingID,
		"partner_id", partner.ID,
		"conversion_type", conversionType,
		"commission_amount", commission.StringFixed(2),
	)

	converted, err := s.clickRepo.GetByTrackingID(trackingID)
	if err != nil {
		return nil, err
	}
	if converted == nil {
		return nil, ErrTrackingNotFound
	}
	s.notifier.NotifyConversion(ctx, converted)
	return converted, nil
}
