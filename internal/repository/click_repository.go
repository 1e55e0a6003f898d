package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/finlink-next/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ClickRepository 点击记录数据访问接口
type ClickRepository interface {
	Create(click *models.Click) error
	GetByTrackingID(trackingID string) (*models.Click, error)
	MarkConverted(trackingID string, update ClickConversionUpdate) (bool, error)
	MarkFunnelStage(trackingID string, stage FunnelStageColumns, at time.Time) (bool, error)
	MarkRejected(trackingID string, at time.Time, metadata models.ConversionMetadata) (bool, error)
	MarkFirstTransaction(trackingID string, at time.Time, bonus models.Money, metadata models.ConversionMetadata) (bool, error)
	CountByIPSince(ip string, since time.Time) (int64, error)
	List(filter ClickListFilter) ([]models.Click, int64, error)
	DeleteClickedBefore(cutoff time.Time, limit int) (int64, error)
}

// ClickConversionUpdate 转化写入参数
type ClickConversionUpdate struct {
	ConversionDate   time.Time
	CommissionAmount models.Money
	ConversionType   string
	Metadata         models.ConversionMetadata
	MarkApproved     bool // 同时标记漏斗批核阶段
}

// FunnelStageColumns 漏斗阶段对应的标记列与时间列
type FunnelStageColumns struct {
	Flag string
	At   string
}

// GormClickRepository GORM 点击记录仓储
type GormClickRepository struct {
	db *gorm.DB
}

// NewClickRepository 创建点击记录仓储
func NewClickRepository(db *gorm.DB) *GormClickRepository {
	return &GormClickRepository{db: db}
}

// Create 创建点击记录
func (r *GormClickRepository) Create(click *models.Click) error {
	return r.db.Create(click).Error
}

// GetByTrackingID 按追踪ID获取点击记录
func (r *GormClickRepository) GetByTrackingID(trackingID string) (*models.Click, error) {
	normalized := strings.TrimSpace(trackingID)
	if normalized == "" {
		return nil, nil
	}
	var click models.Click
	if err := r.db.Where("tracking_id = ?", normalized).First(&click).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &click, nil
}

// MarkConverted 条件更新为已转化，仅对未转化、未拒绝且点击时间不晚于转化时间的记录生效
// 返回 false 表示没有记录被更新（不存在或已被并发请求转化）
func (r *GormClickRepository) MarkConverted(trackingID string, update ClickConversionUpdate) (bool, error) {
	// 模型钩子看不到 map 中的写入值，这里自行校验
	if update.ConversionDate.IsZero() || update.CommissionAmount.IsNegative() {
		return false, models.ErrClickInvariant
	}
	convertedAt := update.ConversionDate.UTC()
	updates := map[string]interface{}{
		"converted":         true,
		"conversion_date":   convertedAt,
		"commission_amount": update.CommissionAmount,
		"conversion_type":   strings.TrimSpace(update.ConversionType),
		"conversion_data":   datatypes.NewJSONType(update.Metadata),
		"updated_at":        convertedAt,
	}
	if update.MarkApproved {
		updates["application_approved"] = true
		updates["application_approved_at"] = convertedAt
	}
	result := r.db.Model(&models.Click{}).
		Where("tracking_id = ? AND converted = ? AND application_rejected = ? AND clicked_at <= ?",
			strings.TrimSpace(trackingID),
			false,
			false,
			convertedAt,
		).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkFunnelStage 标记漏斗阶段，已标记的阶段保留首次时间
func (r *GormClickRepository) MarkFunnelStage(trackingID string, stage FunnelStageColumns, at time.Time) (bool, error) {
	if stage.Flag == "" || stage.At == "" {
		return false, errors.New("funnel stage columns required")
	}
	result := r.db.Model(&models.Click{}).
		Where("tracking_id = ? AND "+stage.Flag+" = ?", strings.TrimSpace(trackingID), false).
		Updates(map[string]interface{}{
			stage.Flag:   true,
			stage.At:     at.UTC(),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkRejected 标记申请被拒绝，仅对未转化且未拒绝的记录生效
func (r *GormClickRepository) MarkRejected(trackingID string, at time.Time, metadata models.ConversionMetadata) (bool, error) {
	result := r.db.Model(&models.Click{}).
		Where("tracking_id = ? AND converted = ? AND application_rejected = ?", strings.TrimSpace(trackingID), false, false).
		Updates(map[string]interface{}{
			"application_rejected":    true,
			"application_rejected_at": at.UTC(),
			"rejection_reason":        metadata.RejectionReason,
			"conversion_data":         datatypes.NewJSONType(metadata),
			"updated_at":              time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkFirstTransaction 标记首笔交易并在原佣金上累加奖励，仅对已转化记录生效一次
func (r *GormClickRepository) MarkFirstTransaction(trackingID string, at time.Time, bonus models.Money, metadata models.ConversionMetadata) (bool, error) {
	if at.IsZero() || bonus.IsNegative() {
		return false, models.ErrClickInvariant
	}
	updates := map[string]interface{}{
		"first_transaction":    true,
		"first_transaction_at": at.UTC(),
		"conversion_data":      datatypes.NewJSONType(metadata),
		"updated_at":           time.Now(),
	}
	if bonus.IsPositive() {
		updates["commission_amount"] = gorm.Expr("COALESCE(commission_amount, 0) + ?", bonus)
	}
	result := r.db.Model(&models.Click{}).
		Where("tracking_id = ? AND converted = ? AND first_transaction = ?", strings.TrimSpace(trackingID), true, false).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CountByIPSince 统计同一 IP 自 since 起的点击数
func (r *GormClickRepository) CountByIPSince(ip string, since time.Time) (int64, error) {
	normalized := strings.TrimSpace(ip)
	if normalized == "" {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.Click{}).
		Where("ip_address = ? AND clicked_at >= ?", normalized, since.UTC()).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// List 查询点击列表
func (r *GormClickRepository) List(filter ClickListFilter) ([]models.Click, int64, error) {
	query := r.db.Model(&models.Click{})
	if filter.PartnerID != 0 {
		query = query.Where("partner_id = ?", filter.PartnerID)
	}
	if filter.ProductID != 0 {
		query = query.Where("product_id = ?", filter.ProductID)
	}
	if filter.Converted != nil {
		query = query.Where("converted = ?", *filter.Converted)
	}
	if filter.ClickedFrom != nil {
		query = query.Where("clicked_at >= ?", filter.ClickedFrom.UTC())
	}
	if filter.ClickedTo != nil {
		query = query.Where("clicked_at < ?", filter.ClickedTo.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = paginate(query, filter.Page, filter.PageSize)

	var rows []models.Click
	if err := query.Order("clicked_at desc, id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// DeleteClickedBefore 删除点击时间早于 cutoff 的记录，单次最多 limit 条
func (r *GormClickRepository) DeleteClickedBefore(cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	ids := r.db.Model(&models.Click{}).
		Select("id").
		Where("clicked_at < ?", cutoff.UTC()).
		Order("id asc").
		Limit(limit)
	result := r.db.Where("id IN (?)", ids).Delete(&models.Click{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
