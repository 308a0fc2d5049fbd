package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/common/database"
	"github.com/dumeirei/member-ledger/internal/models"
)

// 派生状态，与 ledger.DeriveStatus 的取值一致
const (
	statusActive    = "active"
	statusUsed      = "used"
	statusExpired   = "expired"
	statusCompleted = "completed"
	statusDisabled  = "disabled"
)

// RechargeRepository 充值记录仓储
type RechargeRepository struct {
	db *gorm.DB
}

// NewRechargeRepository 创建充值记录仓储
func NewRechargeRepository(db *gorm.DB) *RechargeRepository {
	return &RechargeRepository{db: db}
}

// Create 在事务中创建充值记录
func (r *RechargeRepository) Create(ctx context.Context, tx *gorm.DB, recharge *models.Recharge) error {
	return tx.WithContext(ctx).Create(recharge).Error
}

// GetByID 根据 ID 获取充值记录（含会员）
func (r *RechargeRepository) GetByID(ctx context.Context, id int64) (*models.Recharge, error) {
	var recharge models.Recharge
	err := r.db.WithContext(ctx).Preload("Member").First(&recharge, id).Error
	if err != nil {
		return nil, err
	}
	return &recharge, nil
}

// GetByIDTx 在事务中获取充值记录
func (r *RechargeRepository) GetByIDTx(ctx context.Context, tx *gorm.DB, id int64) (*models.Recharge, error) {
	var recharge models.Recharge
	err := tx.WithContext(ctx).First(&recharge, id).Error
	if err != nil {
		return nil, err
	}
	return &recharge, nil
}

// UpdateFields 更新可编辑字段
func (r *RechargeRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Recharge{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 在事务中删除充值记录（软删除）
func (r *RechargeRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	return tx.WithContext(ctx).Delete(&models.Recharge{}, id).Error
}

// List 获取充值记录列表
// status 过滤按派生状态计算，now 为判定过期的时间点
func (r *RechargeRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}, now time.Time) ([]*models.Recharge, int64, error) {
	var recharges []*models.Recharge
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Recharge{})

	if memberID, ok := filters["member_id"].(int64); ok && memberID > 0 {
		query = query.Where("member_id = ?", memberID)
	}
	if packageID, ok := filters["package_id"].(int64); ok && packageID > 0 {
		query = query.Where("package_id = ?", packageID)
	}
	if typ, ok := filters["type"].(string); ok && typ != "" {
		query = query.Where("type = ?", typ)
	}
	if state, ok := filters["state"].(string); ok && state != "" {
		query = query.Where("state = ?", state)
	}
	if paymentMethod, ok := filters["payment_method"].(string); ok && paymentMethod != "" {
		query = query.Where("payment_method = ?", paymentMethod)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Scopes(statusScope(status, now))
	}
	if search, ok := filters["search"].(string); ok && search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"recharge_no LIKE ? OR package_name LIKE ? OR member_id IN (?)",
			like, like,
			r.db.Model(&models.Member{}).Select("id").Where("name LIKE ? OR phone LIKE ?", like, like),
		)
	}
	if start, ok := filters["start"].(time.Time); ok {
		query = query.Where("recharge_at >= ?", start)
	}
	if end, ok := filters["end"].(time.Time); ok {
		query = query.Where("recharge_at < ?", end)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Preload("Member").
		Order("recharge_at DESC").Order("id DESC").
		Scopes(database.Paginate(offset, limit)).
		Find(&recharges).Error; err != nil {
		return nil, 0, err
	}

	return recharges, total, nil
}

// statusScope 派生状态的 SQL 表达
func statusScope(status string, now time.Time) func(db *gorm.DB) *gorm.DB {
	const used = "((pack_type IN ('times','normal') AND used_times >= total_times) OR (pack_type = 'amount' AND remaining_amount <= 0))"

	return func(db *gorm.DB) *gorm.DB {
		switch status {
		case statusDisabled:
			return db.Where("state = ?", models.RechargeStateDisabled)
		case statusCompleted:
			return db.Where("state <> ? AND type = ?", models.RechargeStateDisabled, models.RechargeTypeBalance)
		case statusExpired:
			return db.Where("state <> ? AND type = ? AND end_date < ?", models.RechargeStateDisabled, models.RechargeTypePackage, now)
		case statusUsed:
			return db.Where("state <> ? AND type = ? AND end_date >= ? AND "+used, models.RechargeStateDisabled, models.RechargeTypePackage, now)
		case statusActive:
			return db.Where("state <> ? AND type = ? AND end_date >= ? AND NOT "+used, models.RechargeStateDisabled, models.RechargeTypePackage, now)
		default:
			return db.Where("1 = 0")
		}
	}
}

// HasConsumptions 充值记录是否已有消费
func (r *RechargeRepository) HasConsumptions(ctx context.Context, tx *gorm.DB, id int64) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&models.Consumption{}).Where("recharge_id = ?", id).Count(&count).Error
	return count > 0, err
}

// IncrUsedTimes 计次套餐核销一次
// 仅当次数未用完、未过期且未停用时更新，返回是否成功
func (r *RechargeRepository) IncrUsedTimes(ctx context.Context, tx *gorm.DB, id int64, now time.Time) (bool, error) {
	result := tx.WithContext(ctx).Model(&models.Recharge{}).
		Where("id = ? AND used_times < total_times AND end_date >= ? AND state <> ?", id, now, models.RechargeStateDisabled).
		UpdateColumn("used_times", gorm.Expr("used_times + 1"))
	return result.RowsAffected > 0, result.Error
}

// DecrUsedTimes 撤销一次核销，已完成状态恢复为正常
func (r *RechargeRepository) DecrUsedTimes(ctx context.Context, tx *gorm.DB, id int64) (bool, error) {
	result := tx.WithContext(ctx).Model(&models.Recharge{}).
		Where("id = ? AND used_times > 0", id).
		UpdateColumns(map[string]interface{}{
			"used_times": gorm.Expr("used_times - 1"),
			"state":      gorm.Expr("CASE WHEN state = ? THEN ? ELSE state END", models.RechargeStateCompleted, models.RechargeStateActive),
		})
	return result.RowsAffected > 0, result.Error
}

// DebitRemainingAmount 储值套餐扣减剩余金额
func (r *RechargeRepository) DebitRemainingAmount(ctx context.Context, tx *gorm.DB, id int64, amount decimal.Decimal, now time.Time) (bool, error) {
	result := tx.WithContext(ctx).Model(&models.Recharge{}).
		Where("id = ? AND remaining_amount >= ? AND end_date >= ? AND state <> ?", id, amount, now, models.RechargeStateDisabled).
		UpdateColumn("remaining_amount", gorm.Expr("remaining_amount - ?", amount))
	return result.RowsAffected > 0, result.Error
}

// CreditRemainingAmount 储值套餐退回剩余金额
func (r *RechargeRepository) CreditRemainingAmount(ctx context.Context, tx *gorm.DB, id int64, amount decimal.Decimal) error {
	return tx.WithContext(ctx).Model(&models.Recharge{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"remaining_amount": gorm.Expr("remaining_amount + ?", amount),
			"state":            gorm.Expr("CASE WHEN state = ? THEN ? ELSE state END", models.RechargeStateCompleted, models.RechargeStateActive),
		}).Error
}

// SumRechargeAmount 统计区间 [start, end) 内的充值实收金额
func (r *RechargeRepository) SumRechargeAmount(ctx context.Context, start, end *time.Time, memberID *int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Recharge{}).
		Scopes(database.Between("recharge_at", start, end), database.MemberOf(memberID)).
		Select("COALESCE(SUM(recharge_amount), 0)").
		Row().Scan(&sum)
	return sum, err
}

// CountBetween 统计区间 [start, end) 内的充值笔数
func (r *RechargeRepository) CountBetween(ctx context.Context, start, end *time.Time, memberID *int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Recharge{}).
		Scopes(database.Between("recharge_at", start, end), database.MemberOf(memberID)).
		Count(&count).Error
	return count, err
}

// Recent 最近的充值记录
func (r *RechargeRepository) Recent(ctx context.Context, n int) ([]*models.Recharge, error) {
	var recharges []*models.Recharge
	err := r.db.WithContext(ctx).Preload("Member").
		Order("recharge_at DESC, id DESC").Limit(n).Find(&recharges).Error
	return recharges, err
}

// MarkExpired 将已过期的套餐充值标记为 expired，返回更新条数
func (r *RechargeRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Recharge{}).
		Where("type = ? AND state = ? AND end_date < ?", models.RechargeTypePackage, models.RechargeStateActive, now).
		UpdateColumn("state", models.RechargeStateExpired)
	return result.RowsAffected, result.Error
}

// MarkExhausted 将次数已用完的计次套餐标记为 completed，返回更新条数
func (r *RechargeRepository) MarkExhausted(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Recharge{}).
		Where("type = ? AND state = ? AND pack_type IN ? AND used_times >= total_times",
			models.RechargeTypePackage, models.RechargeStateActive,
			[]string{models.PackTypeTimes, models.PackTypeNormal}).
		UpdateColumn("state", models.RechargeStateCompleted)
	return result.RowsAffected, result.Error
}

// ListExpiring 获取在 [from, to) 内到期且仍可用的套餐充值（含会员）
func (r *RechargeRepository) ListExpiring(ctx context.Context, from, to time.Time) ([]*models.Recharge, error) {
	var recharges []*models.Recharge
	err := r.db.WithContext(ctx).Preload("Member").
		Where("type = ? AND state = ? AND end_date >= ? AND end_date < ?",
			models.RechargeTypePackage, models.RechargeStateActive, from, to).
		Order("end_date ASC").
		Find(&recharges).Error
	return recharges, err
}
