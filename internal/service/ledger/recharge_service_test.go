package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/member-ledger/internal/common/cache"
	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/testutil"
	"github.com/dumeirei/member-ledger/pkg/mqtt"
	"github.com/dumeirei/member-ledger/pkg/sms"
)

func TestRechargeService_CreateBalance(t *testing.T) {
	env := setupLedger(t)
	member := createMember(t, env.db, "0")

	spec := &BalanceRecharge{
		RechargeBase: RechargeBase{
			MemberID:       member.ID,
			RechargeAmount: dec("100"),
			PaymentMethod:  models.PaymentMethodWechat,
			Remark:         strPtr("开卡"),
		},
		BonusAmount: dec("20.5"),
	}
	r, err := env.recharges.Create(testContext(), testOperator, spec)
	require.NoError(t, err)

	assert.NotEmpty(t, r.RechargeNo)
	assert.Equal(t, models.RechargeTypeBalance, r.Type)
	assertDecimal(t, "120.5", r.TotalAmount)
	assert.Equal(t, StatusCompleted, r.Status)
	require.NotNil(t, r.OperatorID)
	assert.Equal(t, testOperator.ID, *r.OperatorID)
	assert.Equal(t, "admin", *r.OperatorName)
	assert.Nil(t, r.PackageID)

	assertDecimal(t, "120.5", reloadMember(t, env.db, member.ID).Balance)

	// 立即可按会员查询
	list, total, err := env.recharges.List(testContext(), 0, 10, map[string]interface{}{"member_id": member.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, r.ID, list[0].ID)
	assert.Equal(t, StatusCompleted, list[0].Status)

	env.notifier.Wait()
	events := env.publisher.ByTopic("test/" + mqtt.TopicRechargeCreated)
	require.Len(t, events, 1)
	event := events[0].Payload.(*mqtt.Event)
	assert.Equal(t, EventRechargeCreated, event.Type)
	assert.Equal(t, r.RechargeNo, event.Data.(*RechargeEvent).RechargeNo)

	msg := env.sender.LastMessage()
	require.NotNil(t, msg)
	assert.Equal(t, member.Phone, msg.Phone)
	assert.Equal(t, sms.TemplateRechargeSuccess, msg.Template)
	assert.Equal(t, "120.50", msg.Params["amount"])
	assert.Equal(t, "120.50", msg.Params["balance"])
}

func TestRechargeService_CreatePackage(t *testing.T) {
	env := setupLedger(t)
	member := createMember(t, env.db, "0")

	t.Run("计次套餐快照", func(t *testing.T) {
		pkg := createPackage(t, env.db, models.PackTypeTimes, 10)
		at := time.Now().Add(-time.Hour).Truncate(time.Second)

		r := packageRecharge(t, env, member, pkg, &at)

		assert.Equal(t, models.RechargeTypePackage, r.Type)
		assert.Equal(t, pkg.ID, *r.PackageID)
		assert.Equal(t, pkg.Name, *r.PackageName)
		assert.Equal(t, models.PackTypeTimes, *r.PackType)
		assert.Equal(t, 10, *r.TotalTimes)
		assert.Equal(t, 30, *r.ValidDay)
		assert.True(t, at.Equal(*r.StartDate))
		assert.True(t, at.AddDate(0, 0, 30).Equal(*r.EndDate))
		// 未填金额按套餐售价
		assertDecimal(t, "100", r.RechargeAmount)
		assertDecimal(t, "100", r.TotalAmount)
		assert.False(t, r.RemainingAmount.Valid)
		assert.Equal(t, StatusActive, r.Status)
		assert.Equal(t, 10, *r.RemainingTimes)

		var reloaded models.Package
		require.NoError(t, env.db.First(&reloaded, pkg.ID).Error)
		assert.Equal(t, int64(1), reloaded.SalesCount)

		// 立即可按套餐查询，余额不变
		_, total, err := env.recharges.List(testContext(), 0, 10, map[string]interface{}{"package_id": pkg.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assertDecimal(t, "0", reloadMember(t, env.db, member.ID).Balance)
	})

	t.Run("快照不随套餐变化", func(t *testing.T) {
		pkg := createPackage(t, env.db, models.PackTypeTimes, 5)
		r := packageRecharge(t, env, member, pkg, nil)

		require.NoError(t, env.db.Model(pkg).Updates(map[string]interface{}{"total_times": 99, "name": "改名"}).Error)

		got, err := env.recharges.Get(testContext(), r.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, *got.TotalTimes)
		assert.Equal(t, pkg.Name, *got.PackageName)
		require.NotNil(t, got.Member)
		assert.Equal(t, member.ID, got.Member.ID)
	})

	t.Run("储值套餐剩余金额", func(t *testing.T) {
		pkg := createPackage(t, env.db, models.PackTypeAmount, 0)
		spec := &PackageRecharge{
			RechargeBase: RechargeBase{MemberID: member.ID, RechargeAmount: dec("80.5"), PaymentMethod: models.PaymentMethodCard},
			PackageID:    pkg.ID,
		}
		r, err := env.recharges.Create(testContext(), testOperator, spec)
		require.NoError(t, err)
		require.True(t, r.RemainingAmount.Valid)
		assertDecimal(t, "80.5", r.RemainingAmount.Decimal)
		assert.Nil(t, r.TotalTimes)
		assert.Nil(t, r.RemainingTimes)
	})
}

func TestRechargeService_CreateErrors(t *testing.T) {
	env := setupLedger(t)
	member := createMember(t, env.db, "0")
	pkg := createPackage(t, env.db, models.PackTypeTimes, 3)

	countRecharges := func() int64 {
		var n int64
		require.NoError(t, env.db.Model(&models.Recharge{}).Count(&n).Error)
		return n
	}

	t.Run("会员不存在", func(t *testing.T) {
		_, err := env.recharges.Create(testContext(), testOperator, &BalanceRecharge{
			RechargeBase: RechargeBase{MemberID: 99999, RechargeAmount: dec("10"), PaymentMethod: "cash"},
		})
		assert.ErrorIs(t, err, errors.ErrMemberNotFound)
	})

	t.Run("会员已禁用", func(t *testing.T) {
		disabled := createMember(t, env.db, "0")
		require.NoError(t, env.db.Model(disabled).Update("state", models.MemberStateDisabled).Error)
		_, err := env.recharges.Create(testContext(), testOperator, &BalanceRecharge{
			RechargeBase: RechargeBase{MemberID: disabled.ID, RechargeAmount: dec("10"), PaymentMethod: "cash"},
		})
		assert.ErrorIs(t, err, errors.ErrMemberDisabled)
		assert.Equal(t, 409, errors.GetAppError(err).Status())
		assertDecimal(t, "0", reloadMember(t, env.db, disabled.ID).Balance)
	})

	t.Run("套餐不存在", func(t *testing.T) {
		_, err := env.recharges.Create(testContext(), testOperator, &PackageRecharge{
			RechargeBase: RechargeBase{MemberID: member.ID, PaymentMethod: "cash"},
			PackageID:    99999,
		})
		assert.ErrorIs(t, err, errors.ErrPackageNotFound)
	})

	t.Run("套餐已停售", func(t *testing.T) {
		require.NoError(t, env.db.Model(pkg).Update("state", models.PackageStateClosed).Error)
		_, err := env.recharges.Create(testContext(), testOperator, &PackageRecharge{
			RechargeBase: RechargeBase{MemberID: member.ID, PaymentMethod: "cash"},
			PackageID:    pkg.ID,
		})
		assert.ErrorIs(t, err, errors.ErrPackageClosed)

		var reloaded models.Package
		require.NoError(t, env.db.First(&reloaded, pkg.ID).Error)
		assert.Equal(t, int64(0), reloaded.SalesCount)
	})

	t.Run("套餐售价为零时拒绝补全金额", func(t *testing.T) {
		free := createPackage(t, env.db, models.PackTypeAmount, 0)
		require.NoError(t, env.db.Model(free).Update("price", dec("0")).Error)

		_, err := env.recharges.Create(testContext(), testOperator, &PackageRecharge{
			RechargeBase: RechargeBase{MemberID: member.ID, PaymentMethod: "cash"},
			PackageID:    free.ID,
		})
		require.ErrorIs(t, err, errors.ErrInvalidParams)
		appErr := errors.GetAppError(err)
		assert.Equal(t, 400, appErr.Status())
		require.Len(t, appErr.Details, 1)
		assert.Equal(t, "rechargeAmount", appErr.Details[0].Field)

		var reloaded models.Package
		require.NoError(t, env.db.First(&reloaded, free.ID).Error)
		assert.Equal(t, int64(0), reloaded.SalesCount)
	})

	t.Run("参数校验", func(t *testing.T) {
		_, err := env.recharges.Create(testContext(), testOperator, &BalanceRecharge{
			RechargeBase: RechargeBase{MemberID: member.ID, PaymentMethod: "cash"},
		})
		require.Error(t, err)
		assert.Equal(t, errors.KindValidation, errors.GetAppError(err).Kind)
	})

	assert.Equal(t, int64(0), countRecharges())
}

func TestRechargeService_Update(t *testing.T) {
	env := setupLedger(t)
	member := createMember(t, env.db, "0")
	pkg := createPackage(t, env.db, models.PackTypeTimes, 3)
	r := packageRecharge(t, env, member, pkg, nil)

	t.Run("修改备注与支付方式", func(t *testing.T) {
		pm := models.PaymentMethodAlipay
		got, err := env.recharges.Update(testContext(), r.ID, &UpdateRechargeRequest{Remark: strPtr("补录"), PaymentMethod: &pm})
		require.NoError(t, err)
		assert.Equal(t, "补录", *got.Remark)
		assert.Equal(t, models.PaymentMethodAlipay, got.PaymentMethod)
	})

	t.Run("财务字段只读", func(t *testing.T) {
		_, err := env.recharges.Update(testContext(), r.ID, &UpdateRechargeRequest{TotalAmount: decPtr("1")})
		assert.ErrorIs(t, err, errors.ErrRechargeFieldReadonly)
		assert.Equal(t, "totalAmount", errors.GetAppError(err).Details[0].Field)
		assertDecimal(t, "100", reloadRecharge(t, env.db, r.ID).TotalAmount)
	})

	t.Run("停用与启用", func(t *testing.T) {
		disabled := models.RechargeStateDisabled
		got, err := env.recharges.Update(testContext(), r.ID, &UpdateRechargeRequest{State: &disabled})
		require.NoError(t, err)
		assert.Equal(t, StatusDisabled, got.Status)

		active := models.RechargeStateActive
		got, err = env.recharges.Update(testContext(), r.ID, &UpdateRechargeRequest{State: &active})
		require.NoError(t, err)
		assert.Equal(t, StatusActive, got.Status)
	})

	t.Run("不存在", func(t *testing.T) {
		_, err := env.recharges.Update(testContext(), 99999, &UpdateRechargeRequest{Remark: strPtr("x")})
		assert.ErrorIs(t, err, errors.ErrRechargeNotFound)
	})
}

func TestRechargeService_Delete(t *testing.T) {
	env := setupLedger(t)

	t.Run("余额充值冲回", func(t *testing.T) {
		member := createMember(t, env.db, "5")
		r, err := env.recharges.Create(testContext(), testOperator, &BalanceRecharge{
			RechargeBase: RechargeBase{MemberID: member.ID, RechargeAmount: dec("50"), PaymentMethod: "cash"},
			BonusAmount:  dec("10"),
		})
		require.NoError(t, err)
		assertDecimal(t, "65", reloadMember(t, env.db, member.ID).Balance)

		require.NoError(t, env.recharges.Delete(testContext(), r.ID))
		assertDecimal(t, "5", reloadMember(t, env.db, member.ID).Balance)

		_, err = env.recharges.Get(testContext(), r.ID)
		assert.ErrorIs(t, err, errors.ErrRechargeNotFound)

		env.notifier.Wait()
		assert.Len(t, env.publisher.ByTopic("test/"+mqtt.TopicRechargeDeleted), 1)
	})

	t.Run("余额已被使用", func(t *testing.T) {
		member := createMember(t, env.db, "0")
		r, err := env.recharges.Create(testContext(), testOperator, &BalanceRecharge{
			RechargeBase: RechargeBase{MemberID: member.ID, RechargeAmount: dec("30"), PaymentMethod: "cash"},
		})
		require.NoError(t, err)

		_, err = env.consumptions.Create(testContext(), testOperator, &CreateConsumptionRequest{
			MemberID:      &member.ID,
			Amount:        decPtr("10"),
			PaymentMethod: models.PaymentMethodBalance,
		})
		require.NoError(t, err)

		err = env.recharges.Delete(testContext(), r.ID)
		assert.ErrorIs(t, err, errors.ErrRechargeBalanceSpent)
		assertDecimal(t, "20", reloadMember(t, env.db, member.ID).Balance)
		reloadRecharge(t, env.db, r.ID)
	})

	t.Run("已有消费不可删除", func(t *testing.T) {
		member := createMember(t, env.db, "0")
		pkg := createPackage(t, env.db, models.PackTypeTimes, 3)
		r := packageRecharge(t, env, member, pkg, nil)

		_, err := env.consumptions.Create(testContext(), testOperator, &CreateConsumptionRequest{
			RechargeID:    &r.ID,
			PaymentMethod: models.PaymentMethodCash,
		})
		require.NoError(t, err)

		err = env.recharges.Delete(testContext(), r.ID)
		assert.ErrorIs(t, err, errors.ErrRechargeHasConsumed)
	})

	t.Run("套餐充值扣回销量", func(t *testing.T) {
		member := createMember(t, env.db, "0")
		pkg := createPackage(t, env.db, models.PackTypeTimes, 3)
		r := packageRecharge(t, env, member, pkg, nil)

		require.NoError(t, env.recharges.Delete(testContext(), r.ID))

		var reloaded models.Package
		require.NoError(t, env.db.First(&reloaded, pkg.ID).Error)
		assert.Equal(t, int64(0), reloaded.SalesCount)
	})

	t.Run("不存在", func(t *testing.T) {
		assert.ErrorIs(t, env.recharges.Delete(testContext(), 99999), errors.ErrRechargeNotFound)
	})
}

func TestRechargeService_ListStatusFilter(t *testing.T) {
	env := setupLedger(t)
	member := createMember(t, env.db, "0")
	pkg := createPackage(t, env.db, models.PackTypeTimes, 1)

	active := packageRecharge(t, env, member, pkg, nil)
	old := time.Now().AddDate(0, 0, -40)
	expired := packageRecharge(t, env, member, pkg, &old)

	list, total, err := env.recharges.List(testContext(), 0, 10, map[string]interface{}{"status": StatusExpired})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, expired.ID, list[0].ID)
	assert.Equal(t, StatusExpired, list[0].Status)

	list, _, err = env.recharges.List(testContext(), 0, 10, map[string]interface{}{"status": StatusActive})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)
}

func TestRechargeService_InvalidatesStatsCache(t *testing.T) {
	env := setupLedger(t)
	_, mr := testutil.NewRedis(t)
	member := createMember(t, env.db, "0")

	require.NoError(t, cache.Set(testContext(), cache.BuildKey(cache.KeyPrefixStats, "dashboard"), map[string]int{"x": 1}, time.Minute))
	require.True(t, mr.Exists("stats:dashboard"))

	_, err := env.recharges.Create(testContext(), testOperator, &BalanceRecharge{
		RechargeBase: RechargeBase{MemberID: member.ID, RechargeAmount: dec("10"), PaymentMethod: "cash"},
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("stats:dashboard"))
}
