package admin

import (
	"strings"

	"github.com/finlink-next/internal/http/handlers/shared"
	"github.com/finlink-next/internal/http/response"
	"github.com/finlink-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetAnalyticsSummary 汇总报表
func (h *Handler) GetAnalyticsSummary(c *gin.Context) {
	input, ok := parseAnalyticsQuery(c)
	if !ok {
		return
	}
	data, err := h.AnalyticsService.GetSummary(c.Request.Context(), input)
	if err != nil {
		respondMappedError(c, err, analyticsErrorRules, shared.MsgAnalyticsFetchFailed)
		return
	}
	response.Success(c, data)
}

// GetAnalyticsPerformance 趋势、产品排行与设备分布
func (h *Handler) GetAnalyticsPerformance(c *gin.Context) {
	input, ok := parseAnalyticsQuery(c)
	if !ok {
		return
	}
	data, err := h.AnalyticsService.GetPerformance(c.Request.Context(), input)
	if err != nil {
		respondMappedError(c, err, analyticsErrorRules, shared.MsgAnalyticsFetchFailed)
		return
	}
	response.Success(c, data)
}

// GetAnalyticsConversions 转化漏斗与转化耗时
func (h *Handler) GetAnalyticsConversions(c *gin.Context) {
	input, ok := parseAnalyticsQuery(c)
	if !ok {
		return
	}
	data, err := h.AnalyticsService.GetConversions(c.Request.Context(), input)
	if err != nil {
		respondMappedError(c, err, analyticsErrorRules, shared.MsgAnalyticsFetchFailed)
		return
	}
	response.Success(c, data)
}

// GetAnalyticsCommissions 佣金汇总
func (h *Handler) GetAnalyticsCommissions(c *gin.Context) {
	input, ok := parseAnalyticsQuery(c)
	if !ok {
		return
	}
	data, err := h.AnalyticsService.GetCommissions(c.Request.Context(), input)
	if err != nil {
		respondMappedError(c, err, analyticsErrorRules, shared.MsgAnalyticsFetchFailed)
		return
	}
	response.Success(c, data)
}

func parseAnalyticsQuery(c *gin.Context) (service.AnalyticsQueryInput, bool) {
	from, err := shared.ParseTimeNullable(c.Query("from"))
	if err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgRangeInvalid, nil)
		return service.AnalyticsQueryInput{}, false
	}
	to, err := shared.ParseTimeNullable(c.Query("to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgRangeInvalid, nil)
		return service.AnalyticsQueryInput{}, false
	}
	partnerID, err := shared.ParseUintQuery(c, "partner_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgInvalidID, nil)
		return service.AnalyticsQueryInput{}, false
	}
	forceRefresh, err := shared.ParseBoolQuery(c, "force_refresh")
	if err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return service.AnalyticsQueryInput{}, false
	}

	input := service.AnalyticsQueryInput{
		Range:     strings.TrimSpace(c.DefaultQuery("range", "30d")),
		From:      from,
		To:        to,
		Timezone:  strings.TrimSpace(c.Query("tz")),
		PartnerID: partnerID,
	}
	if input.Timezone == "" {
		input.Timezone = strings.TrimSpace(c.Query("timezone"))
	}
	if forceRefresh != nil {
		input.ForceRefresh = *forceRefresh
	}
	return input, true
}
