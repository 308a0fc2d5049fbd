package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Consumption 消费记录
type Consumption struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ConsumptionNo string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"consumptionNo"`
	MemberID      *int64          `gorm:"index" json:"memberId,omitempty"`
	RechargeID    *int64          `gorm:"index" json:"rechargeId,omitempty"`
	PackageID     *int64          `gorm:"index" json:"packageId,omitempty"`
	PackageName   *string         `gorm:"type:varchar(100)" json:"packageName,omitempty"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	PaymentMethod string          `gorm:"type:varchar(20);not null" json:"paymentMethod"`
	Description   *string         `gorm:"type:varchar(200)" json:"description,omitempty"`
	ConsumptionAt time.Time       `gorm:"not null;index" json:"consumptionAt"`
	OperatorID    *int64          `json:"operatorId,omitempty"`
	OperatorName  *string         `gorm:"type:varchar(50)" json:"operatorName,omitempty"`
	PointsEarned  int64           `gorm:"not null;default:0" json:"pointsEarned"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`

	// 关联
	Member *Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
}

// TableName 表名
func (Consumption) TableName() string {
	return "consumptions"
}
