package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Package 服务套餐
type Package struct {
	ID          int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string              `gorm:"type:varchar(100);not null" json:"name"`
	Description *string             `gorm:"type:text" json:"description,omitempty"`
	PackType    string              `gorm:"type:varchar(20);not null;index" json:"packType"`
	Category    string              `gorm:"type:varchar(20);not null;default:'other';index" json:"category"`
	Price       decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"price"`
	MemberPrice decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"memberPrice"`
	SalePrice   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"salePrice"`
	TotalTimes  *int                `json:"totalTimes,omitempty"`
	ValidDay    int                 `gorm:"not null" json:"validDay"`
	State       string              `gorm:"type:varchar(20);not null;default:'saling';index" json:"state"`
	Position    int                 `gorm:"not null;default:0" json:"position"`
	SalesCount  int64               `gorm:"not null;default:0" json:"salesCount"`
	Icon        *string             `gorm:"type:varchar(255)" json:"icon,omitempty"`
	Payload     datatypes.JSONMap   `json:"payload,omitempty"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time           `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt   gorm.DeletedAt      `gorm:"index" json:"-"`
}

// TableName 表名
func (Package) TableName() string {
	return "packages"
}

// PackType 套餐类型
const (
	PackTypeAmount = "amount" // 储值型
	PackTypeTimes  = "times"  // 计次型
	PackTypeNormal = "normal" // 普通型，按次计
)

// PackageCategory 套餐分类
const (
	PackageCategoryFitness       = "fitness"
	PackageCategoryBeauty        = "beauty"
	PackageCategoryEntertainment = "entertainment"
	PackageCategoryOther         = "other"
)

// PackageState 套餐状态
const (
	PackageStateSaling = "saling" // 在售
	PackageStateClosed = "closed" // 停售
)

// IsCounted 是否按次计数
func IsCounted(packType string) bool {
	return packType == PackTypeTimes || packType == PackTypeNormal
}

// IsSaling 是否在售
func (p *Package) IsSaling() bool {
	return p.State == PackageStateSaling
}

// EffectivePrice 实际售价：优惠价 > 会员价 > 原价
func (p *Package) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	if p.MemberPrice.Valid {
		return p.MemberPrice.Decimal
	}
	return p.Price
}
