package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Recharge 充值记录
// 套餐充值在创建时快照套餐条款，之后不再回读套餐
type Recharge struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RechargeNo     string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"rechargeNo"`
	MemberID       int64           `gorm:"index;not null" json:"memberId"`
	Type           string          `gorm:"type:varchar(20);not null;index" json:"type"`
	RechargeAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"rechargeAmount"`
	BonusAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"bonusAmount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"totalAmount"`
	PaymentMethod  string          `gorm:"type:varchar(20);not null" json:"paymentMethod"`
	RechargeAt     time.Time       `gorm:"not null;index" json:"rechargeAt"`
	State          string          `gorm:"type:varchar(20);not null;default:'active';index" json:"state"`

	// 套餐快照
	PackageID       *int64              `gorm:"index" json:"packageId,omitempty"`
	PackageName     *string             `gorm:"type:varchar(100)" json:"packageName,omitempty"`
	PackType        *string             `gorm:"type:varchar(20)" json:"packType,omitempty"`
	TotalTimes      *int                `json:"totalTimes,omitempty"`
	UsedTimes       int                 `gorm:"not null;default:0" json:"usedTimes"`
	ValidDay        *int                `json:"validDay,omitempty"`
	StartDate       *time.Time          `json:"startDate,omitempty"`
	EndDate         *time.Time          `gorm:"index" json:"endDate,omitempty"`
	RemainingAmount decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"remainingAmount"`

	OperatorID   *int64         `json:"operatorId,omitempty"`
	OperatorName *string        `gorm:"type:varchar(50)" json:"operatorName,omitempty"`
	Remark       *string        `gorm:"type:varchar(500)" json:"remark,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// 读视图字段
	Status         string `gorm:"-" json:"status,omitempty"`
	RemainingTimes *int   `gorm:"-" json:"remainingTimes,omitempty"`

	// 关联
	Member *Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
}

// TableName 表名
func (Recharge) TableName() string {
	return "recharges"
}

// RechargeType 充值类型
const (
	RechargeTypeBalance = "balance" // 余额充值
	RechargeTypePackage = "package" // 套餐充值
)

// RechargeState 充值记录存储状态
const (
	RechargeStateActive    = "active"
	RechargeStateCompleted = "completed"
	RechargeStateExpired   = "expired"
	RechargeStateDisabled  = "disabled"
)

// PaymentMethod 支付方式
const (
	PaymentMethodCash    = "cash"
	PaymentMethodCard    = "card"
	PaymentMethodAlipay  = "alipay"
	PaymentMethodWechat  = "wechat"
	PaymentMethodBalance = "balance" // 仅消费可用
)

// IsPackage 是否套餐充值
func (r *Recharge) IsPackage() bool {
	return r.Type == RechargeTypePackage
}

// PackTypeValue 返回快照的套餐类型
func (r *Recharge) PackTypeValue() string {
	if r.PackType == nil {
		return ""
	}
	return *r.PackType
}

// Remaining 剩余次数，非计次套餐返回 nil
func (r *Recharge) Remaining() *int {
	if !r.IsPackage() || !IsCounted(r.PackTypeValue()) || r.TotalTimes == nil {
		return nil
	}
	n := *r.TotalTimes - r.UsedTimes
	if n < 0 {
		n = 0
	}
	return &n
}
