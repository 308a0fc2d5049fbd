package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/utils"
	"github.com/dumeirei/member-ledger/internal/models"
)

func TestPackageService_Create(t *testing.T) {
	env := setupAdmin(t, 0)
	ctx := context.Background()

	t.Run("计次套餐", func(t *testing.T) {
		pkg, err := env.packages.Create(ctx, &CreatePackageRequest{
			Name:        "私教十次卡",
			PackType:    models.PackTypeTimes,
			Price:       dec("1000"),
			MemberPrice: decPtr("900"),
			TotalTimes:  intPtr(10),
			ValidDay:    90,
			Payload:     map[string]interface{}{"coach": "A"},
		})
		require.NoError(t, err)
		assert.Equal(t, models.PackageCategoryOther, pkg.Category)
		assert.Equal(t, models.PackageStateSaling, pkg.State)
		assert.True(t, dec("900").Equal(pkg.EffectivePrice()))

		got, err := env.packages.Get(ctx, pkg.ID)
		require.NoError(t, err)
		assert.Equal(t, "A", got.Payload["coach"])
	})

	t.Run("储值套餐忽略次数", func(t *testing.T) {
		pkg, err := env.packages.Create(ctx, &CreatePackageRequest{
			Name:       "储值卡",
			PackType:   models.PackTypeAmount,
			Price:      dec("500"),
			TotalTimes: intPtr(3),
			ValidDay:   365,
		})
		require.NoError(t, err)
		assert.Nil(t, pkg.TotalTimes)
	})

	t.Run("价格不能为零", func(t *testing.T) {
		_, err := env.packages.Create(ctx, &CreatePackageRequest{
			Name:        "免费体验",
			PackType:    models.PackTypeAmount,
			Price:       dec("0"),
			MemberPrice: decPtr("0"),
			ValidDay:    30,
		})
		require.ErrorIs(t, err, errors.ErrInvalidParams)

		var fields []string
		for _, d := range errors.GetAppError(err).Details {
			fields = append(fields, d.Field)
		}
		assert.ElementsMatch(t, []string{"price", "memberPrice"}, fields)
	})

	t.Run("校验失败汇总字段", func(t *testing.T) {
		_, err := env.packages.Create(ctx, &CreatePackageRequest{
			Name:      "坏套餐",
			PackType:  models.PackTypeNormal,
			Price:     dec("-1"),
			SalePrice: decPtr("1.234"),
			ValidDay:  0,
		})
		require.ErrorIs(t, err, errors.ErrInvalidParams)

		var fields []string
		for _, d := range errors.GetAppError(err).Details {
			fields = append(fields, d.Field)
		}
		assert.ElementsMatch(t, []string{"price", "salePrice", "validDay", "totalTimes"}, fields)
	})
}

func TestPackageService_Update(t *testing.T) {
	env := setupAdmin(t, 0)
	ctx := context.Background()
	pkg := insertPackage(t, env.db, models.PackageStateSaling, 7)

	updated, err := env.packages.Update(ctx, pkg.ID, &UpdatePackageRequest{
		Name:      strPtr("新名字"),
		State:     strPtr(models.PackageStateClosed),
		SalePrice: decPtr("66"),
	})
	require.NoError(t, err)
	assert.Equal(t, "新名字", updated.Name)
	assert.False(t, updated.IsSaling())
	assert.True(t, dec("66").Equal(updated.EffectivePrice()))
	assert.Equal(t, int64(7), updated.SalesCount, "销量不受资料更新影响")

	_, err = env.packages.Update(ctx, pkg.ID, &UpdatePackageRequest{TotalTimes: intPtr(0)})
	assert.ErrorIs(t, err, errors.ErrInvalidParams)

	_, err = env.packages.Update(ctx, 99999, &UpdatePackageRequest{Name: strPtr("x")})
	assert.ErrorIs(t, err, errors.ErrPackageNotFound)
}

func TestPackageService_Delete(t *testing.T) {
	env := setupAdmin(t, 0)
	ctx := context.Background()

	used := insertPackage(t, env.db, models.PackageStateSaling, 1)
	member := insertMember(t, env.db, time.Now())
	r := insertBalanceRecharge(t, env.db, member.ID, "100", time.Now())
	require.NoError(t, env.db.Model(r).Updates(map[string]interface{}{"type": models.RechargeTypePackage, "package_id": used.ID}).Error)
	assert.ErrorIs(t, env.packages.Delete(ctx, used.ID), errors.ErrPackageInUse)

	unused := insertPackage(t, env.db, models.PackageStateSaling, 0)
	require.NoError(t, env.packages.Delete(ctx, unused.ID))
	_, err := env.packages.Get(ctx, unused.ID)
	assert.ErrorIs(t, err, errors.ErrPackageNotFound)
}

func TestPackageService_List(t *testing.T) {
	env := setupAdmin(t, 0)
	ctx := context.Background()

	insertPackage(t, env.db, models.PackageStateSaling, 1)
	top := insertPackage(t, env.db, models.PackageStateSaling, 9)
	insertPackage(t, env.db, models.PackageStateClosed, 5)

	list, total, err := env.packages.List(ctx, 0, 10,
		map[string]interface{}{"state": models.PackageStateSaling},
		utils.Sort{Field: "sales_count", Desc: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, top.ID, list[0].ID)
}
