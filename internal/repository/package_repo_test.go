package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/member-ledger/internal/common/utils"
	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/testutil"
)

func TestPackageRepository_List(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPackageRepository(db)
	ctx := context.Background()

	p1 := createTestPackage(t, db, models.PackTypeTimes, 10)
	p2 := createTestPackage(t, db, models.PackTypeAmount, 0)
	p3 := createTestPackage(t, db, models.PackTypeNormal, 5)
	require.NoError(t, db.Model(p2).Updates(map[string]interface{}{"state": models.PackageStateClosed, "sales_count": 7}).Error)
	require.NoError(t, db.Model(p3).Updates(map[string]interface{}{"sales_count": 3, "category": models.PackageCategoryBeauty}).Error)

	bySales := utils.ParseSort("salesCount", "desc", PackageSortFields, utils.Sort{Field: "position"})

	t.Run("按销量排序", func(t *testing.T) {
		list, total, err := repo.List(ctx, 0, 10, map[string]interface{}{}, bySales)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, list, 3)
		assert.Equal(t, []int64{p2.ID, p3.ID, p1.ID}, []int64{list[0].ID, list[1].ID, list[2].ID})
	})

	t.Run("按状态过滤", func(t *testing.T) {
		list, total, err := repo.List(ctx, 0, 10, map[string]interface{}{"state": models.PackageStateSaling}, bySales)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, p := range list {
			assert.Equal(t, models.PackageStateSaling, p.State)
		}
	})

	t.Run("按类型与分类过滤", func(t *testing.T) {
		_, total, err := repo.List(ctx, 0, 10, map[string]interface{}{"pack_type": models.PackTypeAmount}, bySales)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)

		list, total, err := repo.List(ctx, 0, 10, map[string]interface{}{"category": models.PackageCategoryBeauty}, bySales)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, p3.ID, list[0].ID)
	})

	t.Run("按名称搜索", func(t *testing.T) {
		list, total, err := repo.List(ctx, 0, 10, map[string]interface{}{"search": p1.Name}, bySales)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, p1.ID, list[0].ID)
	})
}

func TestPackageRepository_SalesCount(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPackageRepository(db)
	ctx := context.Background()

	p := createTestPackage(t, db, models.PackTypeTimes, 10)

	require.NoError(t, repo.IncrSalesCount(ctx, db, p.ID))
	require.NoError(t, repo.IncrSalesCount(ctx, db, p.ID))
	require.NoError(t, repo.DecrSalesCount(ctx, db, p.ID))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.SalesCount)

	require.NoError(t, repo.DecrSalesCount(ctx, db, p.ID))
	require.NoError(t, repo.DecrSalesCount(ctx, db, p.ID))
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.SalesCount)
}

func TestPackageRepository_CountsAndPopular(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPackageRepository(db)
	ctx := context.Background()

	p1 := createTestPackage(t, db, models.PackTypeTimes, 10)
	p2 := createTestPackage(t, db, models.PackTypeTimes, 10)
	require.NoError(t, db.Model(p2).Updates(map[string]interface{}{"state": models.PackageStateClosed, "sales_count": 4}).Error)

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	saling, err := repo.CountByState(ctx, models.PackageStateSaling)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saling)

	popular, err := repo.Popular(ctx, 5)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, p2.ID, popular[0].ID)
	assert.Equal(t, p1.ID, popular[1].ID)
}

func TestPackageRepository_HasRecharges(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPackageRepository(db)
	ctx := context.Background()

	m := createTestMember(t, db, "0")
	used := createTestPackage(t, db, models.PackTypeTimes, 10)
	unused := createTestPackage(t, db, models.PackTypeTimes, 10)
	createTestRecharge(t, db, m, used, time.Now())

	has, err := repo.HasRecharges(ctx, used.ID)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasRecharges(ctx, unused.ID)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, repo.Delete(ctx, unused.ID))
	_, err = repo.GetByID(ctx, unused.ID)
	assert.Error(t, err)
}
