package admin

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/repository"
	"github.com/dumeirei/member-ledger/internal/service/upload"
	"github.com/dumeirei/member-ledger/internal/testutil"
	"github.com/dumeirei/member-ledger/pkg/oss"
)

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

type adminEnv struct {
	db       *gorm.DB
	members  *MemberService
	packages *PackageService
	stats    *StatsService
	logs     *OperationLogService
	uploader *oss.MockUploader
	logRepo  *repository.OperationLogRepository
}

func setupAdmin(t *testing.T, cacheTTL time.Duration) *adminEnv {
	t.Helper()
	db := testutil.NewDB(t)

	memberRepo := repository.NewMemberRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	rechargeRepo := repository.NewRechargeRepository(db)
	consumptionRepo := repository.NewConsumptionRepository(db)
	logRepo := repository.NewOperationLogRepository(db)
	uploader := oss.NewMockUploader()

	return &adminEnv{
		db:       db,
		members:  NewMemberService(memberRepo, upload.NewUploadService(uploader)),
		packages: NewPackageService(packageRepo),
		stats:    NewStatsService(memberRepo, packageRepo, rechargeRepo, consumptionRepo, cacheTTL),
		logs:     NewOperationLogService(logRepo),
		uploader: uploader,
		logRepo:  logRepo,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string {
	return &s
}

func intPtr(v int) *int {
	return &v
}

func uniquePhone() string {
	return fmt.Sprintf("137%08d", nextSeq())
}

func insertMember(t *testing.T, db *gorm.DB, registerAt time.Time) *models.Member {
	t.Helper()
	n := nextSeq()
	m := &models.Member{
		MemberNo:   fmt.Sprintf("M%06d", n),
		Name:       fmt.Sprintf("会员%d", n),
		Phone:      fmt.Sprintf("138%08d", n),
		Gender:     models.GenderOther,
		Level:      models.MemberLevelNormal,
		RegisterAt: registerAt,
		State:      models.MemberStateActive,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func insertPackage(t *testing.T, db *gorm.DB, state string, sales int64) *models.Package {
	t.Helper()
	times := 10
	p := &models.Package{
		Name:       fmt.Sprintf("套餐%d", nextSeq()),
		PackType:   models.PackTypeTimes,
		Category:   models.PackageCategoryFitness,
		Price:      dec("100"),
		TotalTimes: &times,
		ValidDay:   30,
		State:      state,
		SalesCount: sales,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func insertBalanceRecharge(t *testing.T, db *gorm.DB, memberID int64, amount string, at time.Time) *models.Recharge {
	t.Helper()
	r := &models.Recharge{
		RechargeNo:     fmt.Sprintf("R%06d", nextSeq()),
		MemberID:       memberID,
		Type:           models.RechargeTypeBalance,
		RechargeAmount: dec(amount),
		TotalAmount:    dec(amount),
		PaymentMethod:  models.PaymentMethodCash,
		RechargeAt:     at,
		State:          models.RechargeStateActive,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}

func insertConsumption(t *testing.T, db *gorm.DB, memberID int64, amount string, at time.Time) *models.Consumption {
	t.Helper()
	c := &models.Consumption{
		ConsumptionNo: fmt.Sprintf("C%06d", nextSeq()),
		MemberID:      &memberID,
		Amount:        dec(amount),
		PaymentMethod: models.PaymentMethodCash,
		ConsumptionAt: at,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

// 最小 PNG 文件头
var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func pngImage(name string) *upload.ImageFile {
	return &upload.ImageFile{Filename: name, Size: int64(len(pngHeader)), Reader: bytes.NewReader(pngHeader)}
}
