package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/finlink-next/internal/config"
	"github.com/finlink-next/internal/constants"
	"github.com/finlink-next/internal/geo"
	"github.com/finlink-next/internal/logger"
	"github.com/finlink-next/internal/metrics"
	"github.com/finlink-next/internal/models"
	"github.com/finlink-next/internal/notify"
	"github.com/finlink-next/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultClickExpiryDays  = 30
	trackingIDCreateRetries = 3
	clickListMaxPageSize    = 100
)

var funnelStageColumns = map[string]repository.FunnelStageColumns{
	constants.FunnelStageInitiated:          {Flag: "application_initiated", At: "application_initiated_at"},
	constants.FunnelStageRedirected:         {Flag: "application_redirected", At: "application_redirected_at"},
	constants.FunnelStageDocumentsSubmitted: {Flag: "documents_submitted", At: "documents_submitted_at"},
	constants.FunnelStageUnderReview:        {Flag: "under_review", At: "under_review_at"},
	constants.FunnelStageApproved:           {Flag: "application_approved", At: "application_approved_at"},
}

// ClickService 点击追踪服务
type ClickService struct {
	clickRepo   repository.ClickRepository
	partnerRepo repository.PartnerRepository
	productRepo repository.ProductRepository
	attribution *AttributionService
	idGen       *TrackingIDGenerator
	geo         geo.Resolver
	notifier    notify.Notifier
	cfg         config.TrackingConfig
	nowFn       func() time.Time
}

// NewClickService 创建点击追踪服务
func NewClickService(
	clickRepo repository.ClickRepository,
	partnerRepo repository.PartnerRepository,
	productRepo repository.ProductRepository,
	attribution *AttributionService,
	idGen *TrackingIDGenerator,
	resolver geo.Resolver,
	notifier notify.Notifier,
	cfg config.TrackingConfig,
) *ClickService {
	if resolver == nil {
		resolver = geo.NopResolver{}
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &ClickService{
		clickRepo:   clickRepo,
		partnerRepo: partnerRepo,
		productRepo: productRepo,
		attribution: attribution,
		idGen:       idGen,
		geo:         resolver,
		notifier:    notifier,
		cfg:         cfg,
		nowFn:       time.Now,
	}
}

// CreateClickInput 点击记录输入
type CreateClickInput struct {
	PartnerID   uint
	ProductID   uint
	UserID      string
	SessionID   string
	IPAddress   string
	UserAgent   string
	Referrer    string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
}

// GenerateLinkInput 生成追踪链接输入
type GenerateLinkInput struct {
	CreateClickInput
	BaseURL string
}

// TrackingLink 追踪链接
type TrackingLink struct {
	TrackingID  string        `json:"tracking_id"`
	TrackingURL string        `json:"tracking_url"`
	Click       *models.Click `json:"-"`
}

// FunnelStageInput 漏斗阶段更新输入
type FunnelStageInput struct {
	Stage     string
	Timestamp *time.Time
	Extra     models.ConversionMetadata
}

// ClickListInput 后台点击列表查询
type ClickListInput struct {
	Page        int
	PageSize    int
	PartnerID   uint
	ProductID   uint
	Status      string
	ClickedFrom *time.Time
	ClickedTo   *time.Time
}

// ClickView 点击详情（附带派生状态）
type ClickView struct {
	*models.Click
	Status string `json:"status"`
}

// CreateClick 校验合作方与产品后记录点击
func (s *ClickService) CreateClick(ctx context.Context, input CreateClickInput) (*models.Click, error) {
	click, _, err := s.createClick(ctx, input)
	return click, err
}

// GenerateLink 记录点击并返回带 ref 参数的追踪链接
func (s *ClickService) GenerateLink(ctx context.Context, input GenerateLinkInput) (*TrackingLink, error) {
	click, product, err := s.createClick(ctx, input.CreateClickInput)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSpace(product.ApplicationURL)
	if base == "" {
		base = strings.TrimSpace(input.BaseURL)
	}
	if base == "" {
		base = strings.TrimSpace(s.cfg.LinkBaseURL)
	}
	trackingURL, err := BuildTrackingURL(base, click.TrackingID, input.UTMSource, input.UTMMedium, input.UTMCampaign)
	if err != nil {
		return nil, err
	}
	return &TrackingLink{
		TrackingID:  click.TrackingID,
		TrackingURL: trackingURL,
		Click:       click,
	}, nil
}

func (s *ClickService) createClick(ctx context.Context, input CreateClickInput) (*models.Click, *models.Product, error) {
	if input.PartnerID == 0 {
		return nil, nil, ErrInvalidPartnerID
	}
	if input.ProductID == 0 {
		return nil, nil, ErrInvalidProductID
	}
	partner, err := s.partnerRepo.GetByID(input.PartnerID)
	if err != nil {
		return nil, nil, err
	}
	if partner == nil || !partner.IsActive {
		return nil, nil, ErrPartnerNotFoundOrInactive
	}
	product, err := s.productRepo.GetByID(input.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if product == nil || !product.IsActive || product.PartnerID != partner.ID {
		return nil, nil, ErrProductNotFoundOrInactive
	}

	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	var userID *string
	if trimmed := strings.TrimSpace(input.UserID); trimmed != "" {
		userID = &trimmed
	}
	ip := strings.TrimSpace(input.IPAddress)

	click := &models.Click{
		PartnerID:   partner.ID,
		ProductID:   product.ID,
		UserID:      userID,
		ClickedAt:   s.nowFn(),
		IPAddress:   ip,
		UserAgent:   truncateRunes(strings.TrimSpace(input.UserAgent), 1024),
		Referrer:    truncateRunes(strings.TrimSpace(input.Referrer), 1024),
		SessionID:   truncateRunes(sessionID, 128),
		UTMSource:   truncateRunes(strings.TrimSpace(input.UTMSource), 128),
		UTMMedium:   truncateRunes(strings.TrimSpace(input.UTMMedium), 128),
		UTMCampaign: truncateRunes(strings.TrimSpace(input.UTMCampaign), 128),
		Country:     s.geo.Country(ip),
	}
	for attempt := 0; attempt < trackingIDCreateRetries; attempt++ {
		trackingID, genErr := s.idGen.Generate()
		if genErr != nil {
			return nil, nil, genErr
		}
		click.ID = 0
		click.TrackingID = trackingID
		err = s.clickRepo.Create(click)
		if err == nil || !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return nil, nil, err
	}

	metrics.ClicksTotal.Inc()
	logger.Infow("tracking_click_created",
		"tracking_id", click.TrackingID,
		"partner_id", click.PartnerID,
		"product_id", click.ProductID,
	)
	s.notifier.NotifyClick(ctx, click)
	return click, product, nil
}

// FindByTrackingID 按追踪ID获取点击
func (s *ClickService) FindByTrackingID(trackingID string) (*models.Click, error) {
	click, err := s.clickRepo.GetByTrackingID(trackingID)
	if err != nil {
		return nil, err
	}
	if click == nil {
		return nil, ErrTrackingNotFound
	}
	return click, nil
}

// View 返回带派生状态的点击详情
func (s *ClickService) View(click *models.Click) ClickView {
	return ClickView{Click: click, Status: s.Status(click)}
}

// Status 计算点击派生状态
func (s *ClickService) Status(click *models.Click) string {
	return ResolveClickStatus(click, s.nowFn(), s.expiryDays())
}

// ResolveClickStatus pending/converted/rejected/expired，expired 仅在读取时计算
func ResolveClickStatus(click *models.Click, now time.Time, expiryDays int) string {
	if click == nil {
		return ""
	}
	switch {
	case click.Converted:
		return constants.ClickStatusConverted
	case click.ApplicationRejected:
		return constants.ClickStatusRejected
	case now.Sub(click.ClickedAt) > time.Duration(expiryDays)*24*time.Hour:
		return constants.ClickStatusExpired
	default:
		return constants.ClickStatusPending
	}
}

func (s *ClickService) expiryDays() int {
	if s.cfg.ExpiryDays > 0 {
		return s.cfg.ExpiryDays
	}
	return defaultClickExpiryDays
}

// UpdateFunnelStage 更新漏斗阶段
func (s *ClickService) UpdateFunnelStage(ctx context.Context, trackingID string, input FunnelStageInput) (*models.Click, error) {
	stage := strings.ToLower(strings.TrimSpace(input.Stage))
	if !isKnownFunnelStage(stage) {
		return nil, ErrInvalidStatus
	}
	extra := input.Extra.Normalize()
	if err := extra.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionMetadataInvalid, err)
	}
	click, err := s.FindByTrackingID(trackingID)
	if err != nil {
		return nil, err
	}
	now := s.nowFn().UTC()
	at := now
	if input.Timestamp != nil {
		at = input.Timestamp.UTC()
	}
	if at.Before(click.ClickedAt) || at.After(now) {
		return nil, ErrInvalidConversionDate
	}

	switch stage {
	case constants.FunnelStageApproved:
		if click.ApplicationRejected {
			return nil, ErrInvalidStatus
		}
		if !click.Converted {
			converted, err := s.attribution.RecordConversion(ctx, RecordConversionInput{
				TrackingID:     click.TrackingID,
				ConversionType: constants.ConversionTypeApplicationApproved,
				Metadata:       extra,
				markApproved:   true,
			})
			if err != nil {
				return nil, err
			}
			return converted, nil
		}
		if _, err := s.clickRepo.MarkFunnelStage(click.TrackingID, funnelStageColumns[stage], at); err != nil {
			return nil, err
		}
	case constants.FunnelStageRejected:
		if click.Converted {
			return nil, ErrInvalidStatus
		}
		if extra.RejectionReason == "" {
			extra.RejectionReason = extra.Notes
		}
		updated, err := s.clickRepo.MarkRejected(click.TrackingID, at, click.Metadata().Merge(extra))
		if err != nil {
			return nil, err
		}
		if !updated {
			current, err := s.FindByTrackingID(click.TrackingID)
			if err != nil {
				return nil, err
			}
			if current.Converted {
				return nil, ErrInvalidStatus
			}
		}
	case constants.FunnelStageFirstTransaction:
		if !click.Converted {
			return nil, ErrInvalidStatus
		}
		if err := s.markFirstTransaction(click, at, extra); err != nil {
			return nil, err
		}
	default:
		if _, err := s.clickRepo.MarkFunnelStage(click.TrackingID, funnelStageColumns[stage], at); err != nil {
			return nil, err
		}
	}

	logger.Infow("tracking_funnel_stage_updated",
		"tracking_id", click.TrackingID,
		"stage", stage,
	)
	return s.FindByTrackingID(click.TrackingID)
}

func (s *ClickService) markFirstTransaction(click *models.Click, at time.Time, extra models.ConversionMetadata) error {
	partner, err := s.partnerRepo.GetByID(click.PartnerID)
	if err != nil {
		return err
	}
	bonus := models.NewMoneyFromInt(0)
	if partner != nil && partner.ConversionGoals.Contains(constants.ConversionGoalFirstTransaction) && extra.FirstTransactionValue != nil {
		amount, err := FirstTransactionBonus(extra.FirstTransactionValue.Decimal)
		if err != nil {
			return err
		}
		bonus = models.NewMoneyFromDecimal(amount)
		extra.FirstTransactionBonus = &bonus
	}
	updated, err := s.clickRepo.MarkFirstTransaction(click.TrackingID, at, bonus, click.Metadata().Merge(extra))
	if err != nil {
		return err
	}
	if updated && bonus.IsPositive() {
		metrics.CommissionTotal.Add(bonus.InexactFloat64())
		logger.Infow("tracking_first_transaction_bonus",
			"tracking_id", click.TrackingID,
			"bonus", bonus.String(),
		)
	}
	return nil
}

// List 后台点击列表，status 支持 converted/pending
func (s *ClickService) List(input ClickListInput) ([]ClickView, int64, error) {
	filter := repository.ClickListFilter{
		Page:        input.Page,
		PageSize:    normalizePageSize(input.PageSize, clickListMaxPageSize),
		PartnerID:   input.PartnerID,
		ProductID:   input.ProductID,
		ClickedFrom: input.ClickedFrom,
		ClickedTo:   input.ClickedTo,
	}
	switch strings.ToLower(strings.TrimSpace(input.Status)) {
	case "":
	case constants.ClickStatusConverted:
		converted := true
		filter.Converted = &converted
	case constants.ClickStatusPending:
		converted := false
		filter.Converted = &converted
	default:
		return nil, 0, ErrInvalidStatus
	}
	rows, total, err := s.clickRepo.List(filter)
	if err != nil {
		return nil, 0, err
	}
	views := make([]ClickView, 0, len(rows))
	for i := range rows {
		views = append(views, s.View(&rows[i]))
	}
	return views, total, nil
}

// PurgeClickedBefore 分批删除早于 cutoff 的点击，返回删除总数
func (s *ClickService) PurgeClickedBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		deleted, err := s.clickRepo.DeleteClickedBefore(cutoff, batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted == 0 || (batchSize > 0 && deleted < int64(batchSize)) {
			return total, nil
		}
	}
}

// BuildTrackingURL 在落地页地址上追加 ref 与 utm 参数，保留已有参数
func BuildTrackingURL(base, trackingID, utmSource, utmMedium, utmCampaign string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(base))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", ErrTrackingURLInvalid
	}
	query := parsed.Query()
	query.Set("ref", trackingID)
	for key, value := range map[string]string{
		"utm_source":   utmSource,
		"utm_medium":   utmMedium,
		"utm_campaign": utmCampaign,
	} {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			query.Set(key, trimmed)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func isKnownFunnelStage(stage string) bool {
	switch stage {
	case constants.FunnelStageRejected, constants.FunnelStageFirstTransaction:
		return true
	}
	_, ok := funnelStageColumns[stage]
	return ok
}

func normalizePageSize(pageSize, max int) int {
	if pageSize <= 0 {
		return 20
	}
	if pageSize > max {
		return max
	}
	return pageSize
}

func truncateRunes(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
