package repository

import (
	"errors"

	"github.com/finlink-next/internal/models"

	"gorm.io/gorm"
)

// ProductRepository 产品数据访问接口
type ProductRepository interface {
	GetByID(id uint) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	List(filter ProductListFilter) ([]models.Product, int64, error)
}

// GormProductRepository GORM 产品仓储
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建产品仓储
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// GetByID 按 ID 获取产品，不存在时返回 nil, nil
func (r *GormProductRepository) GetByID(id uint) (*models.Product, error) {
	if id == 0 {
		return nil, nil
	}
	var product models.Product
	err := r.db.First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Create 创建产品
func (r *GormProductRepository) Create(product *models.Product) error {
	return r.db.Omit("Partner").Create(product).Error
}

// Update 更新产品
func (r *GormProductRepository) Update(product *models.Product) error {
	return r.db.Omit("Partner").Save(product).Error
}

// List 查询产品列表，按 ID 倒序
func (r *GormProductRepository) List(filter ProductListFilter) ([]models.Product, int64, error) {
	query := r.db.Model(&models.Product{}).Scopes(filter.scope)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Product
	err := paginate(query, filter.Page, filter.PageSize).Order("id desc").Find(&rows).Error
	return rows, total, err
}

func (f ProductListFilter) scope(db *gorm.DB) *gorm.DB {
	if f.PartnerID != 0 {
		db = db.Where("partner_id = ?", f.PartnerID)
	}
	if f.OnlyActive {
		db = db.Where("is_active = ?", true)
	}
	return db
}
