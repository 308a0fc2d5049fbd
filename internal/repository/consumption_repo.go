package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/common/database"
	"github.com/dumeirei/member-ledger/internal/models"
)

// ConsumptionRepository 消费记录仓储
type ConsumptionRepository struct {
	db *gorm.DB
}

// NewConsumptionRepository 创建消费记录仓储
func NewConsumptionRepository(db *gorm.DB) *ConsumptionRepository {
	return &ConsumptionRepository{db: db}
}

// Create 在事务中创建消费记录
func (r *ConsumptionRepository) Create(ctx context.Context, tx *gorm.DB, consumption *models.Consumption) error {
	return tx.WithContext(ctx).Create(consumption).Error
}

// GetByID 根据 ID 获取消费记录（含会员）
func (r *ConsumptionRepository) GetByID(ctx context.Context, id int64) (*models.Consumption, error) {
	var consumption models.Consumption
	err := r.db.WithContext(ctx).Preload("Member").First(&consumption, id).Error
	if err != nil {
		return nil, err
	}
	return &consumption, nil
}

// GetByIDTx 在事务中获取消费记录
func (r *ConsumptionRepository) GetByIDTx(ctx context.Context, tx *gorm.DB, id int64) (*models.Consumption, error) {
	var consumption models.Consumption
	err := tx.WithContext(ctx).First(&consumption, id).Error
	if err != nil {
		return nil, err
	}
	return &consumption, nil
}

// UpdateFields 更新可编辑字段
func (r *ConsumptionRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Consumption{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 在事务中删除消费记录（软删除）
func (r *ConsumptionRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	return tx.WithContext(ctx).Delete(&models.Consumption{}, id).Error
}

// List 获取消费记录列表
func (r *ConsumptionRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Consumption, int64, error) {
	var consumptions []*models.Consumption
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Consumption{})

	if memberID, ok := filters["member_id"].(int64); ok && memberID > 0 {
		query = query.Where("member_id = ?", memberID)
	}
	if rechargeID, ok := filters["recharge_id"].(int64); ok && rechargeID > 0 {
		query = query.Where("recharge_id = ?", rechargeID)
	}
	if packageID, ok := filters["package_id"].(int64); ok && packageID > 0 {
		query = query.Where("package_id = ?", packageID)
	}
	if paymentMethod, ok := filters["payment_method"].(string); ok && paymentMethod != "" {
		query = query.Where("payment_method = ?", paymentMethod)
	}
	if search, ok := filters["search"].(string); ok && search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"consumption_no LIKE ? OR package_name LIKE ? OR description LIKE ? OR member_id IN (?)",
			like, like, like,
			r.db.Model(&models.Member{}).Select("id").Where("name LIKE ? OR phone LIKE ?", like, like),
		)
	}
	if start, ok := filters["start"].(time.Time); ok {
		query = query.Where("consumption_at >= ?", start)
	}
	if end, ok := filters["end"].(time.Time); ok {
		query = query.Where("consumption_at < ?", end)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Preload("Member").
		Order("consumption_at DESC").Order("id DESC").
		Scopes(database.Paginate(offset, limit)).
		Find(&consumptions).Error; err != nil {
		return nil, 0, err
	}

	return consumptions, total, nil
}

// SumAmount 统计区间 [start, end) 内的消费金额
func (r *ConsumptionRepository) SumAmount(ctx context.Context, start, end *time.Time, memberID *int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Consumption{}).
		Scopes(database.Between("consumption_at", start, end), database.MemberOf(memberID)).
		Select("COALESCE(SUM(amount), 0)").
		Row().Scan(&sum)
	return sum, err
}

// CountBetween 统计区间 [start, end) 内的消费笔数
func (r *ConsumptionRepository) CountBetween(ctx context.Context, start, end *time.Time, memberID *int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Consumption{}).
		Scopes(database.Between("consumption_at", start, end), database.MemberOf(memberID)).
		Count(&count).Error
	return count, err
}

// Recent 最近的消费记录
func (r *ConsumptionRepository) Recent(ctx context.Context, n int) ([]*models.Consumption, error) {
	var consumptions []*models.Consumption
	err := r.db.WithContext(ctx).Preload("Member").
		Order("consumption_at DESC, id DESC").Limit(n).Find(&consumptions).Error
	return consumptions, err
}
