// Package ledger 会员账务：充值、消费与计次规则
package ledger

import (
	"time"

	"github.com/dumeirei/member-ledger/internal/models"
)

// 充值记录派生状态
const (
	StatusActive    = "active"
	StatusUsed      = "used"
	StatusExpired   = "expired"
	StatusCompleted = "completed"
	StatusDisabled  = "disabled"
)

// DeriveStatus 计算充值记录的对外状态
// 优先级：停用 > 余额充值 > 过期 > 用完 > 正常，存储的 completed/expired 不参与判断
func DeriveStatus(now time.Time, r *models.Recharge) string {
	if r.State == models.RechargeStateDisabled {
		return StatusDisabled
	}
	if !r.IsPackage() {
		return StatusCompleted
	}
	if r.EndDate != nil && r.EndDate.Before(now) {
		return StatusExpired
	}
	if models.IsCounted(r.PackTypeValue()) {
		if remaining := r.Remaining(); remaining != nil && *remaining == 0 {
			return StatusUsed
		}
	} else if r.RemainingAmount.Valid && !r.RemainingAmount.Decimal.IsPositive() {
		return StatusUsed
	}
	return StatusActive
}

// ApplyView 填充读视图字段
func ApplyView(now time.Time, r *models.Recharge) *models.Recharge {
	if r == nil {
		return nil
	}
	r.Status = DeriveStatus(now, r)
	r.RemainingTimes = r.Remaining()
	return r
}

// ApplyViews 批量填充读视图字段
func ApplyViews(now time.Time, rs []*models.Recharge) []*models.Recharge {
	for _, r := range rs {
		ApplyView(now, r)
	}
	return rs
}

// IsValidStatus 是否合法的派生状态
func IsValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusUsed, StatusExpired, StatusCompleted, StatusDisabled:
		return true
	}
	return false
}
