package admin

import (
	"github.com/finlink-next/internal/http/handlers/shared"
	"github.com/finlink-next/internal/http/response"
	"github.com/finlink-next/internal/repository"
	"github.com/finlink-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type partnerPayload struct {
	Name                  string          `json:"name" binding:"required"`
	Type                  string          `json:"type" binding:"required"`
	IsActive              *bool           `json:"is_active"`
	CommissionType        string          `json:"commission_type" binding:"required"`
	CommissionAmount      decimal.Decimal `json:"commission_amount"`
	Currency              string          `json:"currency"`
	ConversionGoals       []string        `json:"conversion_goals"`
	AttributionWindowDays int             `json:"attribution_window_days"`
	APIEndpoint           string          `json:"api_endpoint"`
}

type productPayload struct {
	PartnerID      uint   `json:"partner_id"`
	Name           string `json:"name" binding:"required"`
	Type           string `json:"type" binding:"required"`
	IsActive       *bool  `json:"is_active"`
	ApplicationURL string `json:"application_url"`
}

func (p partnerPayload) toInput() service.PartnerInput {
	return service.PartnerInput{
		Name:                  p.Name,
		Type:                  p.Type,
		IsActive:              p.IsActive,
		CommissionType:        p.CommissionType,
		CommissionAmount:      p.CommissionAmount,
		Currency:              p.Currency,
		ConversionGoals:       p.ConversionGoals,
		AttributionWindowDays: p.AttributionWindowDays,
		APIEndpoint:           p.APIEndpoint,
	}
}

func (p productPayload) toInput() service.ProductInput {
	return service.ProductInput{
		PartnerID:      p.PartnerID,
		Name:           p.Name,
		Type:           p.Type,
		IsActive:       p.IsActive,
		ApplicationURL: p.ApplicationURL,
	}
}

// ListPartners 合作方列表
func (h *Handler) ListPartners(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	onlyActive, err := shared.ParseBoolQuery(c, "only_active")
	if err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	filter := repository.PartnerListFilter{
		Page:     page,
		PageSize: pageSize,
		Type:     c.Query("type"),
	}
	if onlyActive != nil {
		filter.OnlyActive = *onlyActive
	}
	partners, total, err := h.PartnerService.ListPartners(filter)
	if err != nil {
		respondError(c, response.CodeInternal, shared.MsgPartnerFetchFailed, err)
		return
	}
	response.SuccessWithPage(c, partners, response.NewPagination(page, pageSize, total))
}

// CreatePartner 创建合作方
func (h *Handler) CreatePartner(c *gin.Context) {
	var req partnerPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	partner, err := h.PartnerService.CreatePartner(req.toInput())
	if err != nil {
		respondMappedError(c, err, partnerErrorRules, shared.MsgPartnerSaveFailed)
		return
	}
	response.Success(c, partner)
}

// UpdatePartner 更新合作方
func (h *Handler) UpdatePartner(c *gin.Context) {
	id, ok := shared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req partnerPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	partner, err := h.PartnerService.UpdatePartner(id, req.toInput())
	if err != nil {
		respondMappedError(c, err, partnerErrorRules, shared.MsgPartnerSaveFailed)
		return
	}
	response.Success(c, partner)
}

// ListProducts 产品列表
func (h *Handler) ListProducts(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	partnerID, err := shared.ParseUintQuery(c, "partner_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgInvalidID, nil)
		return
	}
	onlyActive, err := shared.ParseBoolQuery(c, "only_active")
	if err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	filter := repository.ProductListFilter{
		Page:      page,
		PageSize:  pageSize,
		PartnerID: partnerID,
	}
	if onlyActive != nil {
		filter.OnlyActive = *onlyActive
	}
	products, total, err := h.PartnerService.ListProducts(filter)
	if err != nil {
		respondError(c, response.CodeInternal, shared.MsgPartnerFetchFailed, err)
		return
	}
	response.SuccessWithPage(c, products, response.NewPagination(page, pageSize, total))
}

// CreateProduct 创建产品
func (h *Handler) CreateProduct(c *gin.Context) {
	var req productPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	product, err := h.PartnerService.CreateProduct(req.toInput())
	if err != nil {
		respondMappedError(c, err, productErrorRules, shared.MsgProductSaveFailed)
		return
	}
	response.Success(c, product)
}

// UpdateProduct 更新产品
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := shared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req productPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, shared.MsgBadRequest, nil)
		return
	}
	product, err := h.PartnerService.UpdateProduct(id, req.toInput())
	if err != nil {
		respondMappedError(c, err, productErrorRules, shared.MsgProductSaveFailed)
		return
	}
	response.Success(c, product)
}
