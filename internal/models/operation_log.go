package models

import (
	"time"

	"gorm.io/datatypes"
)

// OperationLog 操作日志
type OperationLog struct {
	ID          int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	AdminID     int64             `gorm:"index;not null" json:"adminId"`
	Module      string            `gorm:"type:varchar(50);not null;index" json:"module"`
	Action      string            `gorm:"type:varchar(50);not null" json:"action"`
	TargetType  *string           `gorm:"type:varchar(50)" json:"targetType,omitempty"`
	TargetID    *int64            `json:"targetId,omitempty"`
	RequestBody datatypes.JSONMap `json:"requestBody,omitempty"`
	StatusCode  int               `gorm:"not null;default:0" json:"statusCode"`
	IP          string            `gorm:"type:varchar(45);not null" json:"ip"`
	UserAgent   *string           `gorm:"type:varchar(255)" json:"userAgent,omitempty"`
	CreatedAt   time.Time         `gorm:"autoCreateTime;index" json:"createdAt"`

	// 关联
	Admin *Admin `gorm:"foreignKey:AdminID" json:"admin,omitempty"`
}

// TableName 表名
func (OperationLog) TableName() string {
	return "operation_logs"
}
