// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/common/database"
	"github.com/dumeirei/member-ledger/internal/common/utils"
	"github.com/dumeirei/member-ledger/internal/models"
)

// MemberSortFields 会员列表允许的排序字段
var MemberSortFields = map[string]string{
	"createdAt":  "created_at",
	"registerAt": "register_at",
	"balance":    "balance",
	"points":     "points",
	"name":       "name",
}

// MemberRepository 会员仓储
type MemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository 创建会员仓储
func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Create 创建会员
func (r *MemberRepository) Create(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// GetByID 根据 ID 获取会员
func (r *MemberRepository) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).First(&member, id).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// GetByIDTx 在事务中获取会员
func (r *MemberRepository) GetByIDTx(ctx context.Context, tx *gorm.DB, id int64) (*models.Member, error) {
	var member models.Member
	err := tx.WithContext(ctx).First(&member, id).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// GetByMemberNo 根据会员编号获取会员
func (r *MemberRepository) GetByMemberNo(ctx context.Context, memberNo string) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).Where("member_no = ?", memberNo).First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// UpdateFields 更新指定字段
func (r *MemberRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 删除会员（软删除）
func (r *MemberRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Member{}, id).Error
}

// List 获取会员列表
func (r *MemberRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}, sort utils.Sort) ([]*models.Member, int64, error) {
	var members []*models.Member
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Member{})

	if search, ok := filters["search"].(string); ok && search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR phone LIKE ? OR member_no LIKE ?", like, like, like)
	}
	if state, ok := filters["state"].(string); ok && state != "" {
		query = query.Where("state = ?", state)
	}
	if level, ok := filters["level"].(string); ok && level != "" {
		query = query.Where("level = ?", level)
	}
	if gender, ok := filters["gender"].(string); ok && gender != "" {
		query = query.Where("gender = ?", gender)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order(sort.Clause()).Order("id DESC").
		Scopes(database.Paginate(offset, limit)).Find(&members).Error; err != nil {
		return nil, 0, err
	}

	return members, total, nil
}

// ExistsByPhone 检查手机号是否已被其他会员使用
func (r *MemberRepository) ExistsByPhone(ctx context.Context, phone string, excludeID int64) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Member{}).Where("phone = ?", phone)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// HasLedgerRecords 会员是否存在充值或消费记录
func (r *MemberRepository) HasLedgerRecords(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Recharge{}).Where("member_id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := r.db.WithContext(ctx).Model(&models.Consumption{}).Where("member_id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Count 会员总数
func (r *MemberRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Member{}).Count(&count).Error
	return count, err
}

// CountRegistered 统计区间 [start, end) 内注册的会员数
func (r *MemberRepository) CountRegistered(ctx context.Context, start, end *time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Member{}).
		Scopes(database.Between("register_at", start, end)).
		Count(&count).Error
	return count, err
}

// Latest 最近注册的会员
func (r *MemberRepository) Latest(ctx context.Context, n int) ([]*models.Member, error) {
	var members []*models.Member
	err := r.db.WithContext(ctx).Order("register_at DESC, id DESC").Limit(n).Find(&members).Error
	return members, err
}

// CreditBalance 增加余额
func (r *MemberRepository) CreditBalance(ctx context.Context, tx *gorm.DB, id int64, amount decimal.Decimal) (bool, error) {
	result := tx.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", amount))
	return result.RowsAffected > 0, result.Error
}

// DebitBalance 扣减余额，余额不足时不更新并返回 false
func (r *MemberRepository) DebitBalance(ctx context.Context, tx *gorm.DB, id int64, amount decimal.Decimal) (bool, error) {
	result := tx.WithContext(ctx).Model(&models.Member{}).
		Where("id = ? AND balance >= ?", id, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	return result.RowsAffected > 0, result.Error
}

// AddPoints 增加积分
func (r *MemberRepository) AddPoints(ctx context.Context, tx *gorm.DB, id int64, points int64) error {
	if points == 0 {
		return nil
	}
	return tx.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		Update("points", gorm.Expr("points + ?", points)).Error
}

// DeductPoints 扣减积分，最低为 0
func (r *MemberRepository) DeductPoints(ctx context.Context, tx *gorm.DB, id int64, points int64) error {
	if points <= 0 {
		return nil
	}
	return tx.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		Update("points", gorm.Expr("CASE WHEN points > ? THEN points - ? ELSE 0 END", points, points)).Error
}
