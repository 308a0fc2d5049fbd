package ledger

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/repository"
	"github.com/dumeirei/member-ledger/internal/testutil"
	"github.com/dumeirei/member-ledger/pkg/mqtt"
	"github.com/dumeirei/member-ledger/pkg/sms"
)

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

type ledgerEnv struct {
	db           *gorm.DB
	recharges    *RechargeService
	consumptions *ConsumptionService
	notifier     *Notifier
	publisher    *mqtt.MockPublisher
	sender       *sms.MockSender
}

func setupLedger(t *testing.T) *ledgerEnv {
	t.Helper()
	return newLedgerEnv(testutil.NewDB(t))
}

func newLedgerEnv(db *gorm.DB) *ledgerEnv {
	memberRepo := repository.NewMemberRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	rechargeRepo := repository.NewRechargeRepository(db)
	consumptionRepo := repository.NewConsumptionRepository(db)

	publisher := mqtt.NewMockPublisher()
	sender := sms.NewMockSender()
	notifier := NewNotifier(publisher, sender, "test/")

	return &ledgerEnv{
		db:           db,
		recharges:    NewRechargeService(db, memberRepo, packageRepo, rechargeRepo, notifier),
		consumptions: NewConsumptionService(db, memberRepo, packageRepo, rechargeRepo, consumptionRepo, notifier, 1),
		notifier:     notifier,
		publisher:    publisher,
		sender:       sender,
	}
}

var testOperator = Operator{ID: 1, Name: "admin"}

// setClock 固定两个服务的当前时间
func (e *ledgerEnv) setClock(now time.Time) {
	clock := func() time.Time { return now }
	e.recharges.now = clock
	e.consumptions.now = clock
}

func testContext() context.Context {
	return context.Background()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func int64Ptr(v int64) *int64 {
	return &v
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func createMember(t *testing.T, db *gorm.DB, balance string) *models.Member {
	t.Helper()
	n := nextSeq()
	m := &models.Member{
		MemberNo:   fmt.Sprintf("M%06d", n),
		Name:       fmt.Sprintf("会员%d", n),
		Phone:      fmt.Sprintf("139%08d", n),
		Gender:     models.GenderOther,
		Level:      models.MemberLevelNormal,
		RegisterAt: time.Now(),
		State:      models.MemberStateActive,
		Balance:    dec(balance),
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func createPackage(t *testing.T, db *gorm.DB, packType string, totalTimes int) *models.Package {
	t.Helper()
	p := &models.Package{
		Name:     fmt.Sprintf("套餐%d", nextSeq()),
		PackType: packType,
		Category: models.PackageCategoryFitness,
		Price:    dec("100"),
		ValidDay: 30,
		State:    models.PackageStateSaling,
	}
	if models.IsCounted(packType) {
		p.TotalTimes = &totalTimes
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func reloadMember(t *testing.T, db *gorm.DB, id int64) *models.Member {
	t.Helper()
	var m models.Member
	require.NoError(t, db.First(&m, id).Error)
	return &m
}

func reloadRecharge(t *testing.T, db *gorm.DB, id int64) *models.Recharge {
	t.Helper()
	var r models.Recharge
	require.NoError(t, db.First(&r, id).Error)
	return &r
}

func packageRecharge(t *testing.T, env *ledgerEnv, member *models.Member, pkg *models.Package, at *time.Time) *models.Recharge {
	t.Helper()
	spec := &PackageRecharge{
		RechargeBase: RechargeBase{
			MemberID:      member.ID,
			PaymentMethod: models.PaymentMethodCash,
			RechargeAt:    at,
		},
		PackageID: pkg.ID,
	}
	r, err := env.recharges.Create(testContext(), testOperator, spec)
	require.NoError(t, err)
	return r
}
