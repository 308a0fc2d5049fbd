package models

import (
	"time"
)

// Admin 管理员模型
type Admin struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Name         string     `gorm:"type:varchar(50);not null" json:"name"`
	Phone        *string    `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Email        *string    `gorm:"type:varchar(100)" json:"email,omitempty"`
	Role         string     `gorm:"type:varchar(30);not null;default:'operator'" json:"role"`
	Status       int8       `gorm:"type:smallint;not null;default:1" json:"status"`
	OTPSecret    *string    `gorm:"type:varchar(255)" json:"-"`
	OTPEnabled   bool       `gorm:"not null;default:false" json:"otpEnabled"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	LastLoginIP  *string    `gorm:"type:varchar(45)" json:"lastLoginIp,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 表名
func (Admin) TableName() string {
	return "admins"
}

// AdminStatus 管理员状态
const (
	AdminStatusDisabled = 0 // 禁用
	AdminStatusActive   = 1 // 正常
)

// AdminRole 管理员角色
const (
	RoleSuperAdmin = "super_admin" // 超级管理员
	RoleOperator   = "operator"    // 前台操作员
)

// IsActive 是否正常
func (a *Admin) IsActive() bool {
	return a.Status == AdminStatusActive
}
