package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/finlink-next/internal/constants"
	"github.com/finlink-next/internal/models"
	"github.com/finlink-next/internal/repository"

	"github.com/shopspring/decimal"
)

const partnerListMaxPageSize = 100

// PartnerService 合作方与产品配置服务
type PartnerService struct {
	partnerRepo repository.PartnerRepository
	productRepo repository.ProductRepository
}

// NewPartnerService 创建合作方服务
func NewPartnerService(partnerRepo repository.PartnerRepository, productRepo repository.ProductRepository) *PartnerService {
	return &PartnerService{partnerRepo: partnerRepo, productRepo: productRepo}
}

// PartnerInput 合作方创建/更新输入
type PartnerInput struct {
	Name                  string
	Type                  string
	IsActive              *bool
	CommissionType        string
	CommissionAmount      decimal.Decimal
	Currency              string
	ConversionGoals       []string
	AttributionWindowDays int
	APIEndpoint           string
}

// ProductInput 产品创建/更新输入
type ProductInput struct {
	PartnerID      uint
	Name           string
	Type           string
	IsActive       *bool
	ApplicationURL string
}

// CreatePartner 创建合作方
func (s *PartnerService) CreatePartner(input PartnerInput) (*models.Partner, error) {
	partner := &models.Partner{IsActive: true}
	if err := applyPartnerInput(partner, input); err != nil {
		return nil, err
	}
	if err := s.partnerRepo.Create(partner); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: name already exists", ErrPartnerInvalid)
		}
		return nil, err
	}
	return partner, nil
}

// UpdatePartner 更新合作方，已记录的点击不受影响
func (s *PartnerService) UpdatePartner(id uint, input PartnerInput) (*models.Partner, error) {
	partner, err := s.partnerRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrNotFound
	}
	if err := applyPartnerInput(partner, input); err != nil {
		return nil, err
	}
	if err := s.partnerRepo.Update(partner); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: name already exists", ErrPartnerInvalid)
		}
		return nil, err
	}
	return partner, nil
}

// ListPartners 合作方列表
func (s *PartnerService) ListPartners(filter repository.PartnerListFilter) ([]models.Partner, int64, error) {
	filter.PageSize = normalizePageSize(filter.PageSize, partnerListMaxPageSize)
	return s.partnerRepo.List(filter)
}

// CreateProduct 创建产品
func (s *PartnerService) CreateProduct(input ProductInput) (*models.Product, error) {
	product := &models.Product{IsActive: true}
	if err := s.applyProductInput(product, input); err != nil {
		return nil, err
	}
	if err := s.productRepo.Create(product); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct 更新产品
func (s *PartnerService) UpdateProduct(id uint, input ProductInput) (*models.Product, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrNotFound
	}
	if err := s.applyProductInput(product, input); err != nil {
		return nil, err
	}
	if err := s.productRepo.Update(product); err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts 产品列表
func (s *PartnerService) ListProducts(filter repository.ProductListFilter) ([]models.Product, int64, error) {
	filter.PageSize = normalizePageSize(filter.PageSize, partnerListMaxPageSize)
	return s.productRepo.List(filter)
}

func applyPartnerInput(partner *models.Partner, input PartnerInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > 128 {
		return fmt.Errorf("%w: name required", ErrPartnerInvalid)
	}
	partnerType := strings.ToLower(strings.TrimSpace(input.Type))
	switch partnerType {
	case constants.PartnerTypeLoan, constants.PartnerTypeCreditCard, constants.PartnerTypeBroker:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrPartnerInvalid, input.Type)
	}
	commissionType := strings.ToLower(strings.TrimSpace(input.CommissionType))
	switch commissionType {
	case constants.CommissionTypeFixed:
	case constants.CommissionTypePercentage:
		if input.CommissionAmount.GreaterThan(hundred) {
			return fmt.Errorf("%w: percentage above 100", ErrPartnerInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown commission type %q", ErrPartnerInvalid, input.CommissionType)
	}
	if input.CommissionAmount.IsNegative() {
		return fmt.Errorf("%w: negative commission amount", ErrPartnerInvalid)
	}
	if input.AttributionWindowDays <= 0 {
		return fmt.Errorf("%w: attribution window must be positive", ErrPartnerInvalid)
	}
	endpoint := strings.TrimSpace(input.APIEndpoint)
	if endpoint != "" && !isHTTPURL(endpoint) {
		return fmt.Errorf("%w: api endpoint must be http(s) url", ErrPartnerInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "INR"
	}

	goals := make(models.StringArray, 0, len(input.ConversionGoals))
	for _, goal := range input.ConversionGoals {
		normalized := strings.ToLower(strings.TrimSpace(goal))
		if normalized == "" || goals.Contains(normalized) {
			continue
		}
		goals = append(goals, normalized)
	}

	partner.Name = name
	partner.Type = partnerType
	if input.IsActive != nil {
		partner.IsActive = *input.IsActive
	}
	partner.CommissionType = commissionType
	partner.CommissionAmount = models.NewMoneyFromDecimal(input.CommissionAmount)
	partner.Currency = currency
	partner.ConversionGoals = goals
	partner.AttributionWindowDays = input.AttributionWindowDays
	partner.APIEndpoint = endpoint
	return nil
}

func (s *PartnerService) applyProductInput(product *models.Product, input ProductInput) error {
	if input.PartnerID == 0 {
		return ErrInvalidPartnerID
	}
	partner, err := s.partnerRepo.GetByID(input.PartnerID)
	if err != nil {
		return err
	}
	if partner == nil {
		return ErrPartnerNotFoundOrInactive
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > 128 {
		return fmt.Errorf("%w: name required", ErrProductInvalid)
	}
	productType := strings.ToLower(strings.TrimSpace(input.Type))
	if productType == "" || len(productType) > 32 {
		return fmt.Errorf("%w: type required", ErrProductInvalid)
	}
	applicationURL := strings.TrimSpace(input.ApplicationURL)
	if !isHTTPURL(applicationURL) {
		return fmt.Errorf("%w: application url must be http(s) url", ErrProductInvalid)
	}
	product.PartnerID = partner.ID
	product.Name = name
	product.Type = productType
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	product.ApplicationURL = applicationURL
	return nil
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
