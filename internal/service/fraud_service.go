package service

import (
	"strings"
	"time"

	"github.com/finlink-next/internal/config"
	"github.com/finlink-next/internal/logger"
	"github.com/finlink-next/internal/metrics"
	"github.com/finlink-next/internal/models"
	"github.com/finlink-next/internal/repository"
)

// 反作弊默认阈值与权重
const (
	defaultIPClickThreshold      = 10
	defaultIPLookbackHours       = 24
	defaultFastConversionSeconds = 30
	defaultFraudulentScore       = 50

	fraudWeightSameIP          = 30
	fraudWeightBotUserAgent    = 25
	fraudWeightFastConversion  = 25
	fraudWeightMissingReferrer = 20

	FraudReasonSameIP          = "Multiple clicks from same IP address"
	FraudReasonBotUserAgent    = "Bot-like user agent detected"
	FraudReasonFastConversion  = "Suspiciously fast conversion"
	FraudReasonMissingReferrer = "Missing referrer information"
)

var defaultBotUserAgentPatterns = []string{"bot", "crawler", "spider", "scraper"}

// FraudService 点击风险评分服务（仅供人工复核，不阻断归因）
type FraudService struct {
	clickRepo repository.ClickRepository
	policy    FraudPolicy
	nowFn     func() time.Time
}

// FraudPolicy 反作弊阈值
type FraudPolicy struct {
	IPClickThreshold     int64
	IPLookback           time.Duration
	FastConversion       time.Duration
	BotUserAgentPatterns []string
	FraudulentScore      int
}

// FraudReport 风险评分结果
type FraudReport struct {
	TrackingID   string    `json:"tracking_id"`
	IsFraudulent bool      `json:"is_fraudulent"`
	RiskScore    int       `json:"risk_score"`
	Reasons      []string  `json:"reasons"`
	IPClickCount int64     `json:"ip_click_count"`
	CheckedAt    time.Time `json:"checked_at"`
}

// NewFraudService 创建反作弊服务
func NewFraudService(clickRepo repository.ClickRepository, cfg config.FraudConfig) *FraudService {
	return &FraudService{
		clickRepo: clickRepo,
		policy:    NewFraudPolicy(cfg),
		nowFn:     time.Now,
	}
}

// NewFraudPolicy 由配置生成阈值，未配置项取默认值
func NewFraudPolicy(cfg config.FraudConfig) FraudPolicy {
	policy := FraudPolicy{
		IPClickThreshold:     cfg.IPClickThreshold,
		IPLookback:           time.Duration(cfg.IPLookbackHours) * time.Hour,
		FastConversion:       time.Duration(cfg.FastConversionSeconds) * time.Second,
		BotUserAgentPatterns: make([]string, 0, len(cfg.BotUserAgentPatterns)),
		FraudulentScore:      cfg.FraudulentScoreThreshold,
	}
	if policy.IPClickThreshold <= 0 {
		policy.IPClickThreshold = defaultIPClickThreshold
	}
	if policy.IPLookback <= 0 {
		policy.IPLookback = defaultIPLookbackHours * time.Hour
	}
	if policy.FastConversion <= 0 {
		policy.FastConversion = defaultFastConversionSeconds * time.Second
	}
	if policy.FraudulentScore <= 0 {
		policy.FraudulentScore = defaultFraudulentScore
	}
	for _, pattern := range cfg.BotUserAgentPatterns {
		if normalized := strings.ToLower(strings.TrimSpace(pattern)); normalized != "" {
			policy.BotUserAgentPatterns = append(policy.BotUserAgentPatterns, normalized)
		}
	}
	if len(policy.BotUserAgentPatterns) == 0 {
		policy.BotUserAgentPatterns = append(policy.BotUserAgentPatterns, defaultBotUserAgentPatterns...)
	}
	return policy
}

// DetectFraud 对单个点击计算风险评分
func (s *FraudService) DetectFraud(trackingID string) (*FraudReport, error) {
	click, err := s.clickRepo.GetByTrackingID(trackingID)
	if err != nil {
		return nil, err
	}
	if click == nil {
		return nil, ErrTrackingNotFound
	}
	now := s.nowFn()
	ipCount, err := s.clickRepo.CountByIPSince(click.IPAddress, now.Add(-s.policy.IPLookback))
	if err != nil {
		return nil, err
	}

	report := ScoreClick(click, ipCount, s.policy)
	report.CheckedAt = now
	if report.IsFraudulent {
		metrics.FraudChecksTotal.WithLabelValues(metrics.VerdictFraudulent).Inc()
		logger.Warnw("fraud_click_flagged",
			"tracking_id", click.TrackingID,
			"risk_score", report.RiskScore,
			"reasons", report.Reasons,
		)
	} else {
		metrics.FraudChecksTotal.WithLabelValues(metrics.VerdictClean).Inc()
	}
	return report, nil
}

// ScoreClick 按启发式规则累加风险分，ipCount 为回溯窗口内同 IP 点击数（含自身）
func ScoreClick(click *models.Click, ipCount int64, policy FraudPolicy) *FraudReport {
	report := &FraudReport{
		TrackingID:   click.TrackingID,
		Reasons:      make([]string, 0, 4),
		IPClickCount: ipCount,
	}
	if ipCount > policy.IPClickThreshold {
		report.RiskScore += fraudWeightSameIP
		report.Reasons = append(report.Reasons, FraudReasonSameIP)
	}
	if matchesBotPattern(click.UserAgent, policy.BotUserAgentPatterns) {
		report.RiskScore += fraudWeightBotUserAgent
		report.Reasons = append(report.Reasons, FraudReasonBotUserAgent)
	}
	if click.Converted && click.ConversionDate != nil && click.ConversionDate.Sub(click.ClickedAt) < policy.FastConversion {
		report.RiskScore += fraudWeightFastConversion
		report.Reasons = append(report.Reasons, FraudReasonFastConversion)
	}
	if strings.TrimSpace(click.Referrer) == "" {
		report.RiskScore += fraudWeightMissingReferrer
		report.Reasons = append(report.Reasons, FraudReasonMissingReferrer)
	}
	if report.RiskScore > 100 {
		report.RiskScore = 100
	}
	report.IsFraudulent = report.RiskScore > policy.FraudulentScore
	return report
}

func matchesBotPattern(userAgent string, patterns []string) bool {
	ua := strings.ToLower(userAgent)
	if strings.TrimSpace(ua) == "" {
		return false
	}
	for _, pattern := range patterns {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
