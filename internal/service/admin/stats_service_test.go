package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/member-ledger/internal/common/cache"
	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/service/ledger"
	"github.com/dumeirei/member-ledger/internal/testutil"
)

// 固定的本地时间：2026-03-15 12:00
var statsNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.Local)

func at(month time.Month, day, hour int) time.Time {
	return time.Date(2026, month, day, hour, 0, 0, 0, time.Local)
}

func seedStats(t *testing.T, env *adminEnv) *models.Member {
	t.Helper()
	m := insertMember(t, env.db, at(3, 15, 9))
	insertMember(t, env.db, at(3, 2, 9))
	insertMember(t, env.db, at(1, 10, 9))

	insertBalanceRecharge(t, env.db, m.ID, "100", at(3, 15, 10))
	insertBalanceRecharge(t, env.db, m.ID, "50", at(3, 14, 10))
	insertBalanceRecharge(t, env.db, m.ID, "25", at(3, 12, 10))
	insertBalanceRecharge(t, env.db, m.ID, "40", at(2, 20, 10))
	// 次日零点不计入当日
	insertBalanceRecharge(t, env.db, m.ID, "8", at(3, 16, 0))

	insertConsumption(t, env.db, m.ID, "30", at(3, 15, 11))
	insertConsumption(t, env.db, m.ID, "20", at(3, 1, 11))

	insertPackage(t, env.db, models.PackageStateSaling, 3)
	insertPackage(t, env.db, models.PackageStateClosed, 1)
	return m
}

func TestStatsService_Revenues(t *testing.T) {
	env := setupAdmin(t, 0)
	seedStats(t, env)
	ctx := context.Background()

	start, end := at(3, 1, 0), at(3, 16, 0)
	r, err := env.stats.Revenues(ctx, &start, &end, nil)
	require.NoError(t, err)

	assert.True(t, dec("175").Equal(r.RechargeTotal), r.RechargeTotal.String())
	assert.True(t, dec("50").Equal(r.ConsumptionTotal), r.ConsumptionTotal.String())
	assert.Equal(t, int64(3), r.RechargeCount)
	assert.Equal(t, int64(2), r.ConsumptionCount)
	assert.Equal(t, int64(2), r.NewMembers)
	assert.Equal(t, int64(3), r.MemberCount)
	assert.Equal(t, int64(2), r.PackageCount)

	all, err := env.stats.Revenues(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, dec("223").Equal(all.RechargeTotal), all.RechargeTotal.String())
	assert.Equal(t, int64(5), all.RechargeCount)
}

func TestStatsService_RevenuesByMember(t *testing.T) {
	env := setupAdmin(t, 0)
	other := seedStats(t, env)
	ctx := context.Background()

	m := insertMember(t, env.db, at(3, 1, 9))
	insertBalanceRecharge(t, env.db, m.ID, "500", at(3, 15, 10))
	insertConsumption(t, env.db, m.ID, "12.5", at(3, 15, 11))

	start, end := at(3, 15, 0), at(3, 16, 0)
	r, err := env.stats.Revenues(ctx, &start, &end, &m.ID)
	require.NoError(t, err)
	require.NotNil(t, r.MemberID)
	assert.Equal(t, m.ID, *r.MemberID)
	assert.True(t, dec("500").Equal(r.RechargeTotal), r.RechargeTotal.String())
	assert.True(t, dec("12.5").Equal(r.ConsumptionTotal), r.ConsumptionTotal.String())
	assert.Equal(t, int64(1), r.RechargeCount)
	assert.Equal(t, int64(1), r.ConsumptionCount)

	r, err = env.stats.Revenues(ctx, &start, &end, &other.ID)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(r.RechargeTotal), r.RechargeTotal.String())

	r, err = env.stats.Revenues(ctx, &start, &end, nil)
	require.NoError(t, err)
	assert.Nil(t, r.MemberID)
	assert.True(t, dec("600").Equal(r.RechargeTotal), r.RechargeTotal.String())

	missing := int64(99999)
	_, err = env.stats.Revenues(ctx, &start, &end, &missing)
	assert.ErrorIs(t, err, errors.ErrMemberNotFound)
}

func TestStatsService_WeeklyRevenues(t *testing.T) {
	env := setupAdmin(t, 0)
	seedStats(t, env)

	days, err := env.stats.WeeklyRevenues(context.Background(), statsNow)
	require.NoError(t, err)
	require.Len(t, days, 7)

	assert.Equal(t, "2026-03-09", days[0].Date)
	assert.Equal(t, "2026-03-15", days[6].Date)

	want := map[string]string{"2026-03-15": "100", "2026-03-14": "50", "2026-03-12": "25"}
	for _, d := range days {
		expected, ok := want[d.Date]
		if !ok {
			expected = "0"
		}
		assert.True(t, dec(expected).Equal(d.Revenue), "%s: %s", d.Date, d.Revenue)
	}
}

func TestStatsService_Dashboard(t *testing.T) {
	env := setupAdmin(t, 0)
	m := seedStats(t, env)

	d, err := env.stats.Dashboard(context.Background(), statsNow)
	require.NoError(t, err)

	o := d.Overview
	assert.True(t, dec("100").Equal(o.TodayRevenue), o.TodayRevenue.String())
	assert.True(t, dec("175").Equal(o.MonthlyRevenue), o.MonthlyRevenue.String())
	assert.Equal(t, int64(3), o.TotalMembers)
	assert.Equal(t, int64(1), o.TodayRecharge)
	assert.Equal(t, int64(1), o.TodayConsumption)
	assert.Equal(t, int64(1), o.ActivePackages)

	assert.Len(t, d.LatestMembers, 3)
	assert.Equal(t, m.ID, d.LatestMembers[0].ID)
	require.Len(t, d.RecentRecharges, 5)
	for _, r := range d.RecentRecharges {
		assert.Equal(t, ledger.StatusCompleted, r.Status)
		require.NotNil(t, r.Member)
	}
	assert.Len(t, d.RecentConsumptions, 2)
	require.Len(t, d.PopularPackages, 2)
	assert.Equal(t, int64(3), d.PopularPackages[0].SalesCount)
}

func TestStatsService_DashboardCache(t *testing.T) {
	_, mr := testutil.NewRedis(t)
	env := setupAdmin(t, time.Minute)
	m := seedStats(t, env)
	ctx := context.Background()

	first, err := env.stats.Dashboard(ctx, statsNow)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.BuildKey(cache.KeyPrefixStats, dashboardCacheName)))

	insertBalanceRecharge(t, env.db, m.ID, "1", at(3, 15, 11))

	cached, err := env.stats.Dashboard(ctx, statsNow)
	require.NoError(t, err)
	assert.Equal(t, first.Overview.TodayRecharge, cached.Overview.TodayRecharge)
	require.NotEmpty(t, cached.RecentRecharges)
	assert.Equal(t, ledger.StatusCompleted, cached.RecentRecharges[0].Status)

	require.NoError(t, cache.DeleteByPrefix(ctx, cache.KeyPrefixStats))

	fresh, err := env.stats.Dashboard(ctx, statsNow)
	require.NoError(t, err)
	assert.Equal(t, first.Overview.TodayRecharge+1, fresh.Overview.TodayRecharge)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(cache.BuildKey(cache.KeyPrefixStats, dashboardCacheName)))
}
