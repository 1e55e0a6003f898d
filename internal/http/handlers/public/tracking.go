package public

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/finlink-next/internal/http/handlers/shared"
	"github.com/finlink-next/internal/http/response"
	"github.com/finlink-next/internal/models"
	"github.com/finlink-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const webhookTokenHeader = "X-Webhook-Token"

type trackingClickRequest struct {
	PartnerID   uint   `json:"partner_id"`
	ProductID   uint   `json:"product_id"`
	BaseURL     string `json:"base_url"`
	UserID      string `json:"user_id"`
	SessionID   string `json:"session_id"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
}

type conversionRequest struct {
	TrackingID      string                    `json:"tracking_id" binding:"required"`
	ConversionType  string                    `json:"conversion_type" binding:"required"`
	ConversionValue *decimal.Decimal          `json:"conversion_value"`
	Metadata        models.ConversionMetadata `json:"metadata"`
}

type funnelStageRequest struct {
	Stage     string                    `json:"stage" binding:"required"`
	Timestamp *time.Time                `json:"timestamp"`
	Extra     models.ConversionMetadata `json:"extra"`
}

func (req trackingClickRequest) toInput(c *gin.Context) service.CreateClickInput {
	return service.CreateClickInput{
		PartnerID:   req.PartnerID,
		ProductID:   req.ProductID,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		Referrer:    c.Request.Referer(),
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
	}
}

// GenerateLink 记录点击并返回追踪链接
func (h *Handler) GenerateLink(c *gin.Context) {
	var req trackingClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	link, err := h.ClickService.GenerateLink(c.Request.Context(), service.GenerateLinkInput{
		CreateClickInput: req.toInput(c),
		BaseURL:          req.BaseURL,
	})
	if err != nil {
		respondClickCreateError(c, err)
		return
	}
	response.Success(c, link)
}

// TrackClick 记录点击
func (h *Handler) TrackClick(c *gin.Context) {
	var req trackingClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	click, err := h.ClickService.CreateClick(c.Request.Context(), req.toInput(c))
	if err != nil {
		respondClickCreateError(c, err)
		return
	}
	response.Success(c, gin.H{"tracking_id": click.TrackingID})
}

// RecordConversion 转化回调
func (h *Handler) RecordConversion(c *gin.Context) {
	if !h.checkWebhookToken(c) {
		return
	}
	var req conversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	_, err := h.AttributionService.RecordConversion(c.Request.Context(), service.RecordConversionInput{
		TrackingID:      req.TrackingID,
		ConversionType:  req.ConversionType,
		ConversionValue: req.ConversionValue,
		Metadata:        req.Metadata,
	})
	if err != nil {
		respondConversionError(c, err)
		return
	}
	response.Success(c, gin.H{"success": true})
}

// UpdateClickStatus 更新申请漏斗阶段
func (h *Handler) UpdateClickStatus(c *gin.Context) {
	if !h.checkWebhookToken(c) {
		return
	}
	var req funnelStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	click, err := h.ClickService.UpdateFunnelStage(c.Request.Context(), c.Param("tracking_id"), service.FunnelStageInput{
		Stage:     req.Stage,
		Timestamp: req.Timestamp,
		Extra:     req.Extra,
	})
	if err != nil {
		respondFunnelStageError(c, err)
		return
	}
	response.Success(c, h.ClickService.View(click))
}

// Redirect 记录点击后跳转到产品申请页
func (h *Handler) Redirect(c *gin.Context) {
	partnerID, _ := strconv.ParseUint(strings.TrimSpace(c.Param("partner_id")), 10, 64)
	productID, _ := strconv.ParseUint(strings.TrimSpace(c.Param("product_id")), 10, 64)
	req := trackingClickRequest{
		PartnerID:   uint(partnerID),
		ProductID:   uint(productID),
		UserID:      c.Query("user_id"),
		SessionID:   c.Query("session_id"),
		UTMSource:   c.Query("utm_source"),
		UTMMedium:   c.Query("utm_medium"),
		UTMCampaign: c.Query("utm_campaign"),
	}
	link, err := h.ClickService.GenerateLink(c.Request.Context(), service.GenerateLinkInput{
		CreateClickInput: req.toInput(c),
	})
	if err != nil {
		respondClickCreateError(c, err)
		return
	}
	c.Redirect(http.StatusFound, link.TrackingURL)
}

func (h *Handler) checkWebhookToken(c *gin.Context) bool {
	expected := ""
	if h.Config != nil {
		expected = strings.TrimSpace(h.Config.Tracking.WebhookToken)
	}
	if expected == "" {
		return true
	}
	provided := strings.TrimSpace(c.GetHeader(webhookTokenHeader))
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1 {
		return true
	}
	shared.RequestLog(c).Warnw("tracking_webhook_token_rejected", "client_ip", c.ClientIP())
	respondError(c, response.CodeUnauthorized, shared.MsgWebhookTokenInvalid, nil)
	return false
}
