package admin

import (
	"strings"

	"github.com/finlink-next/internal/http/handlers/shared"
	"github.com/finlink-next/internal/http/response"
	"github.com/finlink-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListClicks 点击记录列表
func (h *Handler) ListClicks(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	partnerID, err := shared.ParseUintQuery(c, "partner_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgInvalidID, nil)
		return
	}
	productID, err := shared.ParseUintQuery(c, "product_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgInvalidID, nil)
		return
	}
	from, err := shared.ParseTimeNullable(c.Query("from"))
	if err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	to, err := shared.ParseTimeNullable(c.Query("to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}

	clicks, total, err := h.ClickService.List(service.ClickListInput{
		Page:        page,
		PageSize:    pageSize,
		PartnerID:   partnerID,
		ProductID:   productID,
		Status:      c.Query("status"),
		ClickedFrom: from,
		ClickedTo:   to,
	})
	if err != nil {
		respondMappedError(c, err, clickErrorRules, shared.MsgClickFetchFailed)
		return
	}
	response.SuccessWithPage(c, clicks, response.NewPagination(page, pageSize, total))
}

// GetClick 点击详情
func (h *Handler) GetClick(c *gin.Context) {
	click, err := h.ClickService.FindByTrackingID(strings.TrimSpace(c.Param("tracking_id")))
	if err != nil {
		respondMappedError(c, err, clickErrorRules, shared.MsgClickFetchFailed)
		return
	}
	response.Success(c, h.ClickService.View(click))
}

// GetClickFraud 单条点击风险评估
func (h *Handler) GetClickFraud(c *gin.Context) {
	report, err := h.FraudService.DetectFraud(strings.TrimSpace(c.Param("tracking_id")))
	if err != nil {
		respondMappedError(c, err, clickErrorRules, shared.MsgFraudCheckFailed)
		return
	}
	response.Success(c, report)
}
