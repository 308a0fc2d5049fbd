package admin

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/common/cache"
	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/common/metrics"
	"github.com/dumeirei/member-ledger/internal/common/utils"
	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/repository"
	"github.com/dumeirei/member-ledger/internal/service/ledger"
)

// dashboardTopN 仪表盘各列表条数
const dashboardTopN = 5

const dashboardCacheName = "dashboard"

// StatsService 营收统计与仪表盘服务
type StatsService struct {
	memberRepo      *repository.MemberRepository
	packageRepo     *repository.PackageRepository
	rechargeRepo    *repository.RechargeRepository
	consumptionRepo *repository.ConsumptionRepository
	cacheTTL        time.Duration
}

// NewStatsService 创建统计服务，cacheTTL<=0 时不缓存仪表盘
func NewStatsService(
	memberRepo *repository.MemberRepository,
	packageRepo *repository.PackageRepository,
	rechargeRepo *repository.RechargeRepository,
	consumptionRepo *repository.ConsumptionRepository,
	cacheTTL time.Duration,
) *StatsService {
	return &StatsService{
		memberRepo:      memberRepo,
		packageRepo:     packageRepo,
		rechargeRepo:    rechargeRepo,
		consumptionRepo: consumptionRepo,
		cacheTTL:        cacheTTL,
	}
}

// Revenues 区间营收
type Revenues struct {
	MemberID         *int64          `json:"memberId,omitempty"`
	RechargeTotal    decimal.Decimal `json:"rechargeTotal"`
	ConsumptionTotal decimal.Decimal `json:"consumptionTotal"`
	RechargeCount    int64           `json:"rechargeCount"`
	ConsumptionCount int64           `json:"consumptionCount"`
	NewMembers       int64           `json:"newMembers"`
	MemberCount      int64           `json:"memberCount"`
	PackageCount     int64           `json:"packageCount"`
}

// DailyRevenue 单日营收
type DailyRevenue struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Overview 仪表盘概览
type Overview struct {
	TodayRevenue     decimal.Decimal `json:"todayRevenue"`
	MonthlyRevenue   decimal.Decimal `json:"monthlyRevenue"`
	TotalMembers     int64           `json:"totalMembers"`
	TodayRecharge    int64           `json:"todayRecharge"`
	TodayConsumption int64           `json:"todayConsumption"`
	ActivePackages   int64           `json:"activePackages"`
}

// Dashboard 仪表盘
type Dashboard struct {
	Overview           Overview              `json:"overview"`
	LatestMembers      []*models.Member      `json:"latestMembers"`
	RecentConsumptions []*models.Consumption `json:"recentConsumptions"`
	RecentRecharges    []*models.Recharge    `json:"recentRecharges"`
	PopularPackages    []*models.Package     `json:"popularPackages"`
}

// Revenues 统计 [start, end) 区间营收，nil 表示不限
// memberID 非空时充值与消费只统计该会员，会员与套餐总数不受影响
func (s *StatsService) Revenues(ctx context.Context, start, end *time.Time, memberID *int64) (*Revenues, error) {
	var (
		r   Revenues
		err error
	)

	if memberID != nil {
		if _, err := s.memberRepo.GetByID(ctx, *memberID); err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.ErrMemberNotFound
			}
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		r.MemberID = memberID
	}

	if r.RechargeTotal, err = s.rechargeRepo.SumRechargeAmount(ctx, start, end, memberID); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if r.ConsumptionTotal, err = s.consumptionRepo.SumAmount(ctx, start, end, memberID); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if r.RechargeCount, err = s.rechargeRepo.CountBetween(ctx, start, end, memberID); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if r.ConsumptionCount, err = s.consumptionRepo.CountBetween(ctx, start, end, memberID); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if r.NewMembers, err = s.memberRepo.CountRegistered(ctx, start, end); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if r.MemberCount, err = s.memberRepo.Count(ctx); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if r.PackageCount, err = s.packageRepo.Count(ctx); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return &r, nil
}

// WeeklyRevenues 最近 7 个自然日（含今天）的充值营收，按日期升序
func (s *StatsService) WeeklyRevenues(ctx context.Context, now time.Time) ([]DailyRevenue, error) {
	today := utils.StartOfDay(now)
	days := make([]DailyRevenue, 0, 7)
	for i := 6; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		end := start.AddDate(0, 0, 1)
		sum, err := s.rechargeRepo.SumRechargeAmount(ctx, &start, &end, nil)
		if err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		days = append(days, DailyRevenue{Date: start.Format(dateLayout), Revenue: sum})
	}
	return days, nil
}

// Dashboard 仪表盘数据，账务写入后缓存失效
func (s *StatsService) Dashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	key := cache.BuildKey(cache.KeyPrefixStats, dashboardCacheName)
	cacheable := s.cacheTTL > 0 && cache.GetClient() != nil

	if cacheable {
		var cached Dashboard
		err := cache.Get(ctx, key, &cached)
		switch {
		case err == nil:
			metrics.GetMetrics().RecordCacheHit(dashboardCacheName)
			// 状态按当前时间重新推导
			ledger.ApplyViews(now, cached.RecentRecharges)
			return &cached, nil
		case cache.IsMiss(err):
			metrics.GetMetrics().RecordCacheMiss(dashboardCacheName)
		default:
			logger.Warn("读取仪表盘缓存失败", logger.Err(err))
		}
	}

	d, err := s.buildDashboard(ctx, now)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := cache.Set(ctx, key, d, s.cacheTTL); err != nil {
			logger.Warn("写入仪表盘缓存失败", logger.Err(err))
		}
	}
	return d, nil
}

func (s *StatsService) buildDashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	dayStart, dayEnd := utils.DayWindow(now)
	monthStart := utils.StartOfMonth(now)

	var (
		d   Dashboard
		err error
	)
	o := &d.Overview

	if o.TodayRevenue, err = s.rechargeRepo.SumRechargeAmount(ctx, &dayStart, &dayEnd, nil); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if o.MonthlyRevenue, err = s.rechargeRepo.SumRechargeAmount(ctx, &monthStart, &dayEnd, nil); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if o.TotalMembers, err = s.memberRepo.Count(ctx); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if o.TodayRecharge, err = s.rechargeRepo.CountBetween(ctx, &dayStart, &dayEnd, nil); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if o.TodayConsumption, err = s.consumptionRepo.CountBetween(ctx, &dayStart, &dayEnd, nil); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if o.ActivePackages, err = s.packageRepo.CountByState(ctx, models.PackageStateSaling); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if d.LatestMembers, err = s.memberRepo.Latest(ctx, dashboardTopN); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if d.RecentConsumptions, err = s.consumptionRepo.Recent(ctx, dashboardTopN); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if d.RecentRecharges, err = s.rechargeRepo.Recent(ctx, dashboardTopN); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if d.PopularPackages, err = s.packageRepo.Popular(ctx, dashboardTopN); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	ledger.ApplyViews(now, d.RecentRecharges)
	return &d, nil
}
