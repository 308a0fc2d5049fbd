package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/common/database"
	"github.com/dumeirei/member-ledger/internal/common/utils"
	"github.com/dumeirei/member-ledger/internal/models"
)

// PackageSortFields 套餐列表允许的排序字段
var PackageSortFields = map[string]string{
	"position":   "position",
	"price":      "price",
	"salesCount": "sales_count",
	"createdAt":  "created_at",
}

// PackageRepository 套餐仓储
type PackageRepository struct {
	db *gorm.DB
}

// NewPackageRepository 创建套餐仓储
func NewPackageRepository(db *gorm.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

// Create 创建套餐
func (r *PackageRepository) Create(ctx context.Context, pkg *models.Package) error {
	return r.db.WithContext(ctx).Create(pkg).Error
}

// GetByID 根据 ID 获取套餐
func (r *PackageRepository) GetByID(ctx context.Context, id int64) (*models.Package, error) {
	var pkg models.Package
	err := r.db.WithContext(ctx).First(&pkg, id).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// GetByIDTx 在事务中获取套餐
func (r *PackageRepository) GetByIDTx(ctx context.Context, tx *gorm.DB, id int64) (*models.Package, error) {
	var pkg models.Package
	err := tx.WithContext(ctx).First(&pkg, id).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// Update 保存套餐资料，销量只由充值变动维护
func (r *PackageRepository) Update(ctx context.Context, pkg *models.Package) error {
	return r.db.WithContext(ctx).Omit("sales_count", "created_at").Save(pkg).Error
}

// Delete 删除套餐（软删除）
func (r *PackageRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Package{}, id).Error
}

// List 获取套餐列表
func (r *PackageRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}, sort utils.Sort) ([]*models.Package, int64, error) {
	var packages []*models.Package
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Package{})

	if search, ok := filters["search"].(string); ok && search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}
	if state, ok := filters["state"].(string); ok && state != "" {
		query = query.Where("state = ?", state)
	}
	if packType, ok := filters["pack_type"].(string); ok && packType != "" {
		query = query.Where("pack_type = ?", packType)
	}
	if category, ok := filters["category"].(string); ok && category != "" {
		query = query.Where("category = ?", category)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order(sort.Clause()).Order("id DESC").
		Scopes(database.Paginate(offset, limit)).Find(&packages).Error; err != nil {
		return nil, 0, err
	}

	return packages, total, nil
}

// HasRecharges 套餐是否存在充值记录
func (r *PackageRepository) HasRecharges(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Recharge{}).Where("package_id = ?", id).Count(&count).Error
	return count > 0, err
}

// Count 套餐总数
func (r *PackageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Package{}).Count(&count).Error
	return count, err
}

// CountByState 按状态统计套餐数
func (r *PackageRepository) CountByState(ctx context.Context, state string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Package{}).Where("state = ?", state).Count(&count).Error
	return count, err
}

// Popular 按销量排行
func (r *PackageRepository) Popular(ctx context.Context, n int) ([]*models.Package, error) {
	var packages []*models.Package
	err := r.db.WithContext(ctx).Order("sales_count DESC, position ASC, id ASC").Limit(n).Find(&packages).Error
	return packages, err
}

// IncrSalesCount 销量加一
func (r *PackageRepository) IncrSalesCount(ctx context.Context, tx *gorm.DB, id int64) error {
	return tx.WithContext(ctx).Model(&models.Package{}).
		Where("id = ?", id).
		UpdateColumn("sales_count", gorm.Expr("sales_count + 1")).Error
}

// DecrSalesCount 销量减一，最低为 0
func (r *PackageRepository) DecrSalesCount(ctx context.Context, tx *gorm.DB, id int64) error {
	return tx.WithContext(ctx).Model(&models.Package{}).
		Where("id = ? AND sales_count > 0", id).
		UpdateColumn("sales_count", gorm.Expr("sales_count - 1")).Error
}
