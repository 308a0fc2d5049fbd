package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/models"
)

var seq int

func nextSeq() int {
	seq++
	return seq
}

func createTestMember(t *testing.T, db *gorm.DB, balance string) *models.Member {
	t.Helper()
	n := nextSeq()
	m := &models.Member{
		MemberNo:   fmt.Sprintf("M%06d", n),
		Name:       fmt.Sprintf("会员%d", n),
		Phone:      fmt.Sprintf("138%08d", n),
		Gender:     models.GenderOther,
		Level:      models.MemberLevelNormal,
		RegisterAt: time.Now(),
		State:      models.MemberStateActive,
		Balance:    decimal.RequireFromString(balance),
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func createTestPackage(t *testing.T, db *gorm.DB, packType string, totalTimes int) *models.Package {
	t.Helper()
	p := &models.Package{
		Name:     fmt.Sprintf("套餐%d", nextSeq()),
		PackType: packType,
		Category: models.PackageCategoryFitness,
		Price:    decimal.RequireFromString("100"),
		ValidDay: 30,
		State:    models.PackageStateSaling,
	}
	if models.IsCounted(packType) {
		p.TotalTimes = &totalTimes
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// createTestRecharge 创建套餐充值，endDate 由 rechargeAt + validDay 推算
func createTestRecharge(t *testing.T, db *gorm.DB, member *models.Member, pkg *models.Package, rechargeAt time.Time) *models.Recharge {
	t.Helper()
	end := rechargeAt.AddDate(0, 0, pkg.ValidDay)
	packType := pkg.PackType
	r := &models.Recharge{
		RechargeNo:     fmt.Sprintf("R%06d", nextSeq()),
		MemberID:       member.ID,
		Type:           models.RechargeTypePackage,
		RechargeAmount: pkg.Price,
		TotalAmount:    pkg.Price,
		PaymentMethod:  models.PaymentMethodCash,
		RechargeAt:     rechargeAt,
		State:          models.RechargeStateActive,
		PackageID:      &pkg.ID,
		PackageName:    &pkg.Name,
		PackType:       &packType,
		TotalTimes:     pkg.TotalTimes,
		ValidDay:       &pkg.ValidDay,
		StartDate:      &rechargeAt,
		EndDate:        &end,
	}
	if packType == models.PackTypeAmount {
		r.RemainingAmount = decimal.NewNullDecimal(pkg.Price)
	}
	require.NoError(t, db.Create(r).Error)
	return r
}

func createTestBalanceRecharge(t *testing.T, db *gorm.DB, member *models.Member, amount string, at time.Time) *models.Recharge {
	t.Helper()
	v := decimal.RequireFromString(amount)
	r := &models.Recharge{
		RechargeNo:     fmt.Sprintf("R%06d", nextSeq()),
		MemberID:       member.ID,
		Type:           models.RechargeTypeBalance,
		RechargeAmount: v,
		TotalAmount:    v,
		PaymentMethod:  models.PaymentMethodWechat,
		RechargeAt:     at,
		State:          models.RechargeStateActive,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}

func createTestConsumption(t *testing.T, db *gorm.DB, memberID *int64, amount string, at time.Time) *models.Consumption {
	t.Helper()
	c := &models.Consumption{
		ConsumptionNo: fmt.Sprintf("C%06d", nextSeq()),
		MemberID:      memberID,
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: models.PaymentMethodCash,
		ConsumptionAt: at,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}
