package admin

import (
	"context"
	stderrors "errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/common/utils"
	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/repository"
)

var (
	minPrice = decimal.RequireFromString("0.01")
	maxPrice = decimal.RequireFromString("999999.99")
)

// 套餐规则
const (
	maxTotalTimes = 9999
	maxValidDay   = 3650
)

// PackageService 套餐管理服务
type PackageService struct {
	packageRepo *repository.PackageRepository
}

// NewPackageService 创建套餐管理服务
func NewPackageService(packageRepo *repository.PackageRepository) *PackageService {
	return &PackageService{packageRepo: packageRepo}
}

// CreatePackageRequest 创建套餐请求
type CreatePackageRequest struct {
	Name        string                 `json:"name" binding:"required,max=100"`
	Description *string                `json:"description"`
	PackType    string                 `json:"packType" binding:"required,oneof=amount times normal"`
	Category    string                 `json:"category" binding:"omitempty,oneof=fitness beauty entertainment other"`
	Price       decimal.Decimal        `json:"price"`
	MemberPrice *decimal.Decimal       `json:"memberPrice"`
	SalePrice   *decimal.Decimal       `json:"salePrice"`
	TotalTimes  *int                   `json:"totalTimes"`
	ValidDay    int                    `json:"validDay" binding:"required"`
	State       string                 `json:"state" binding:"omitempty,oneof=saling closed"`
	Position    int                    `json:"position"`
	Icon        *string                `json:"icon" binding:"omitempty,max=255"`
	Payload     map[string]interface{} `json:"payload"`
}

// UpdatePackageRequest 更新套餐请求
type UpdatePackageRequest struct {
	Name        *string                `json:"name" binding:"omitempty,max=100"`
	Description *string                `json:"description"`
	PackType    *string                `json:"packType" binding:"omitempty,oneof=amount times normal"`
	Category    *string                `json:"category" binding:"omitempty,oneof=fitness beauty entertainment other"`
	Price       *decimal.Decimal       `json:"price"`
	MemberPrice *decimal.Decimal       `json:"memberPrice"`
	SalePrice   *decimal.Decimal       `json:"salePrice"`
	TotalTimes  *int                   `json:"totalTimes"`
	ValidDay    *int                   `json:"validDay"`
	State       *string                `json:"state" binding:"omitempty,oneof=saling closed"`
	Position    *int                   `json:"position"`
	Icon        *string                `json:"icon" binding:"omitempty,max=255"`
	Payload     map[string]interface{} `json:"payload"`
}

// Create 创建套餐
func (s *PackageService) Create(ctx context.Context, req *CreatePackageRequest) (*models.Package, error) {
	pkg := &models.Package{
		Name:        req.Name,
		Description: req.Description,
		PackType:    req.PackType,
		Category:    valueOr(req.Category, models.PackageCategoryOther),
		Price:       req.Price,
		TotalTimes:  req.TotalTimes,
		ValidDay:    req.ValidDay,
		State:       valueOr(req.State, models.PackageStateSaling),
		Position:    req.Position,
		Icon:        req.Icon,
		Payload:     req.Payload,
	}
	if req.MemberPrice != nil {
		pkg.MemberPrice = decimal.NewNullDecimal(*req.MemberPrice)
	}
	if req.SalePrice != nil {
		pkg.SalePrice = decimal.NewNullDecimal(*req.SalePrice)
	}

	if err := normalizePackage(pkg); err != nil {
		return nil, err
	}

	if err := s.packageRepo.Create(ctx, pkg); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	logger.Info("package created", logger.PackageID(pkg.ID), logger.String("name", pkg.Name))
	return pkg, nil
}

// Get 获取套餐详情
func (s *PackageService) Get(ctx context.Context, id int64) (*models.Package, error) {
	pkg, err := s.packageRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPackageNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return pkg, nil
}

// List 套餐列表
func (s *PackageService) List(ctx context.Context, offset, limit int, filters map[string]interface{}, sort utils.Sort) ([]*models.Package, int64, error) {
	packages, total, err := s.packageRepo.List(ctx, offset, limit, filters, sort)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return packages, total, nil
}

// Update 更新套餐，已售出的充值记录保留购买时的快照
func (s *PackageService) Update(ctx context.Context, id int64, req *UpdatePackageRequest) (*models.Package, error) {
	pkg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		pkg.Name = *req.Name
	}
	if req.Description != nil {
		pkg.Description = req.Description
	}
	if req.PackType != nil {
		pkg.PackType = *req.PackType
	}
	if req.Category != nil {
		pkg.Category = *req.Category
	}
	if req.Price != nil {
		pkg.Price = *req.Price
	}
	if req.MemberPrice != nil {
		pkg.MemberPrice = decimal.NewNullDecimal(*req.MemberPrice)
	}
	if req.SalePrice != nil {
		pkg.SalePrice = decimal.NewNullDecimal(*req.SalePrice)
	}
	if req.TotalTimes != nil {
		pkg.TotalTimes = req.TotalTimes
	}
	if req.ValidDay != nil {
		pkg.ValidDay = *req.ValidDay
	}
	if req.State != nil {
		pkg.State = *req.State
	}
	if req.Position != nil {
		pkg.Position = *req.Position
	}
	if req.Icon != nil {
		pkg.Icon = req.Icon
	}
	if req.Payload != nil {
		pkg.Payload = req.Payload
	}

	if err := normalizePackage(pkg); err != nil {
		return nil, err
	}

	if err := s.packageRepo.Update(ctx, pkg); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return s.Get(ctx, id)
}

// Delete 删除套餐，存在充值记录时拒绝
func (s *PackageService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	has, err := s.packageRepo.HasRecharges(ctx, id)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if has {
		return errors.ErrPackageInUse
	}

	if err := s.packageRepo.Delete(ctx, id); err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	logger.Info("package deleted", logger.PackageID(id))
	return nil
}

// normalizePackage 校验价格、次数与有效期；储值型不保留次数
func normalizePackage(pkg *models.Package) error {
	var details []errors.FieldError
	add := func(field, msg string) {
		details = append(details, errors.FieldError{Field: field, Message: msg})
	}

	if !validPrice(pkg.Price) {
		add("price", "价格需在 0.01 到 999999.99 之间")
	}
	if pkg.MemberPrice.Valid && !validPrice(pkg.MemberPrice.Decimal) {
		add("memberPrice", "会员价需在 0.01 到 999999.99 之间")
	}
	if pkg.SalePrice.Valid && !validPrice(pkg.SalePrice.Decimal) {
		add("salePrice", "优惠价需在 0.01 到 999999.99 之间")
	}
	if pkg.ValidDay < 1 || pkg.ValidDay > maxValidDay {
		add("validDay", "有效天数需在 1 到 3650 之间")
	}

	if models.IsCounted(pkg.PackType) {
		if pkg.TotalTimes == nil || *pkg.TotalTimes < 1 || *pkg.TotalTimes > maxTotalTimes {
			add("totalTimes", "计次套餐的次数需在 1 到 9999 之间")
		}
	} else {
		pkg.TotalTimes = nil
	}

	if len(details) > 0 {
		return errors.ErrInvalidParams.WithMessage("参数校验失败").WithDetails(details...)
	}
	return nil
}

func validPrice(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(minPrice) && d.LessThanOrEqual(maxPrice) && d.Exponent() >= -2
}
