// Package models 定义数据模型
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// 金额以数字形式输出
	decimal.MarshalJSONWithoutQuotes = true
}

// Member 会员模型
type Member struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberNo   string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"memberNo"`
	Name       string          `gorm:"type:varchar(50);not null" json:"name"`
	Phone      string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone"`
	Email      *string         `gorm:"type:varchar(100)" json:"email,omitempty"`
	Gender     string          `gorm:"type:varchar(10);not null;default:'other'" json:"gender"`
	Level      string          `gorm:"type:varchar(20);not null;default:'normal';index" json:"level"`
	Birthday   *time.Time      `gorm:"type:date" json:"birthday,omitempty"`
	RegisterAt time.Time       `gorm:"not null" json:"registerAt"`
	State      string          `gorm:"type:varchar(20);not null;default:'active';index" json:"state"`
	Balance    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	Points     int64           `gorm:"not null;default:0" json:"points"`
	Avatar     *string         `gorm:"type:varchar(255)" json:"avatar,omitempty"`
	Remark     *string         `gorm:"type:varchar(500)" json:"remark,omitempty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName 表名
func (Member) TableName() string {
	return "members"
}

// MemberState 会员状态
const (
	MemberStateActive   = "active"   // 正常
	MemberStateDisabled = "disabled" // 禁用
)

// MemberLevel 会员等级
const (
	MemberLevelNormal  = "normal"  // 普通
	MemberLevelVIP     = "vip"     // VIP
	MemberLevelDiamond = "diamond" // 钻石
)

// Gender 性别
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// IsActive 是否正常
func (m *Member) IsActive() bool {
	return m.State == MemberStateActive
}
