package ledger

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/common/cache"
	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/idgen"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/common/metrics"
	"github.com/dumeirei/member-ledger/internal/common/tracing"
	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/repository"
)

// RechargeService 充值服务
type RechargeService struct {
	db           *gorm.DB
	memberRepo   *repository.MemberRepository
	packageRepo  *repository.PackageRepository
	rechargeRepo *repository.RechargeRepository
	notifier     *Notifier
	now          func() time.Time
}

// NewRechargeService 创建充值服务
func NewRechargeService(
	db *gorm.DB,
	memberRepo *repository.MemberRepository,
	packageRepo *repository.PackageRepository,
	rechargeRepo *repository.RechargeRepository,
	notifier *Notifier,
) *RechargeService {
	return &RechargeService{
		db:           db,
		memberRepo:   memberRepo,
		packageRepo:  packageRepo,
		rechargeRepo: rechargeRepo,
		notifier:     notifier,
		now:          time.Now,
	}
}

// Create 创建充值记录
// 插入记录、套餐快照与销量、余额入账在同一事务内完成
func (s *RechargeService) Create(ctx context.Context, op Operator, spec RechargeSpec) (recharge *models.Recharge, err error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	b := spec.base()

	ctx, span := tracing.StartSpan(ctx, "ledger.CreateRecharge",
		tracing.WithMemberID(b.MemberID),
		tracing.AttrRechargeType.String(spec.kind()),
		tracing.AttrAdminID.Int64(op.ID),
	)
	defer func() { tracing.EndSpan(span, err) }()

	now := s.now()
	var member *models.Member

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		member, recharge, txErr = s.CreateTx(ctx, tx, op, spec, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	ApplyView(now, recharge)
	metrics.GetMetrics().RecordRecharge(recharge.Type, recharge.RechargeAmount.InexactFloat64())
	logger.Info("recharge created",
		logger.RechargeNo(recharge.RechargeNo),
		logger.MemberID(recharge.MemberID),
		logger.Amount(recharge.TotalAmount),
		logger.AdminID(op.ID),
	)
	invalidateStats(ctx)
	if s.notifier != nil {
		s.notifier.RechargeCreated(recharge, member)
	}
	return recharge, nil
}

// CreateTx 在已有事务中创建充值记录，返回入账后的会员
func (s *RechargeService) CreateTx(ctx context.Context, tx *gorm.DB, op Operator, spec RechargeSpec, now time.Time) (*models.Member, *models.Recharge, error) {
	b := spec.base()

	member, err := s.memberRepo.GetByIDTx(ctx, tx, b.MemberID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.ErrMemberNotFound
		}
		return nil, nil, errors.ErrDatabaseError.WithError(err)
	}
	if !member.IsActive() {
		return nil, nil, errors.ErrMemberDisabled
	}

	rechargeAt := now
	if b.RechargeAt != nil && !b.RechargeAt.IsZero() {
		rechargeAt = *b.RechargeAt
	}

	recharge := &models.Recharge{
		RechargeNo:     idgen.RechargeNo(),
		MemberID:       member.ID,
		Type:           spec.kind(),
		RechargeAmount: b.RechargeAmount,
		PaymentMethod:  b.PaymentMethod,
		RechargeAt:     rechargeAt,
		State:          models.RechargeStateActive,
		OperatorID:     op.idPtr(),
		OperatorName:   op.namePtr(),
		Remark:         b.Remark,
	}

	switch v := spec.(type) {
	case *BalanceRecharge:
		recharge.BonusAmount = v.BonusAmount
		recharge.TotalAmount = v.TotalAmount()

	case *PackageRecharge:
		pkg, err := s.packageRepo.GetByIDTx(ctx, tx, v.PackageID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, errors.ErrPackageNotFound
			}
			return nil, nil, errors.ErrDatabaseError.WithError(err)
		}
		if !pkg.IsSaling() {
			return nil, nil, errors.ErrPackageClosed
		}
		if recharge.RechargeAmount.IsZero() {
			recharge.RechargeAmount = pkg.EffectivePrice()
			if err := checkRechargeAmount(recharge.RechargeAmount); err != nil {
				return nil, nil, err
			}
		}
		snapshotPackage(recharge, pkg)

		if err := s.packageRepo.IncrSalesCount(ctx, tx, pkg.ID); err != nil {
			return nil, nil, errors.ErrDatabaseError.WithError(err)
		}

	default:
		return nil, nil, errors.ErrInvalidParams.WithMessage("不支持的充值类型")
	}

	if err := s.rechargeRepo.Create(ctx, tx, recharge); err != nil {
		return nil, nil, errors.ErrDatabaseError.WithError(err)
	}

	if recharge.Type == models.RechargeTypeBalance {
		ok, err := s.memberRepo.CreditBalance(ctx, tx, member.ID, recharge.TotalAmount)
		if err != nil {
			return nil, nil, errors.ErrDatabaseError.WithError(err)
		}
		if !ok {
			return nil, nil, errors.ErrMemberNotFound
		}
		member.Balance = member.Balance.Add(recharge.TotalAmount)
	}

	recharge.Member = member
	return member, recharge, nil
}

// snapshotPackage 复制套餐条款，有效期自充值时间起算
func snapshotPackage(r *models.Recharge, pkg *models.Package) {
	packType := pkg.PackType
	name := pkg.Name
	validDay := pkg.ValidDay
	start := r.RechargeAt
	end := start.AddDate(0, 0, validDay)

	r.PackageID = &pkg.ID
	r.PackageName = &name
	r.PackType = &packType
	r.ValidDay = &validDay
	r.StartDate = &start
	r.EndDate = &end
	r.TotalAmount = r.RechargeAmount

	if models.IsCounted(packType) && pkg.TotalTimes != nil {
		total := *pkg.TotalTimes
		r.TotalTimes = &total
	}
	if packType == models.PackTypeAmount {
		r.RemainingAmount = decimal.NewNullDecimal(r.TotalAmount)
	}
}

// List 获取充值记录列表
func (s *RechargeService) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Recharge, int64, error) {
	now := s.now()
	recharges, total, err := s.rechargeRepo.List(ctx, offset, limit, filters, now)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return ApplyViews(now, recharges), total, nil
}

// Get 获取充值记录详情
func (s *RechargeService) Get(ctx context.Context, id int64) (*models.Recharge, error) {
	recharge, err := s.rechargeRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrRechargeNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return ApplyView(s.now(), recharge), nil
}

// Update 更新充值记录，仅备注、支付方式与停用状态可改
func (s *RechargeService) Update(ctx context.Context, id int64, req *UpdateRechargeRequest) (*models.Recharge, error) {
	if details := req.readonlyFields(); len(details) > 0 {
		return nil, errors.ErrRechargeFieldReadonly.WithDetails(details...)
	}

	recharge, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Remark != nil {
		fields["remark"] = *req.Remark
	}
	if req.PaymentMethod != nil {
		fields["payment_method"] = *req.PaymentMethod
	}
	if req.State != nil {
		switch *req.State {
		case models.RechargeStateDisabled:
			fields["state"] = models.RechargeStateDisabled
		case models.RechargeStateActive:
			// 重新启用，过期与用完由定时任务再次标记
			if recharge.State == models.RechargeStateDisabled {
				fields["state"] = models.RechargeStateActive
			}
		}
	}
	if len(fields) == 0 {
		return recharge, nil
	}

	if err := s.rechargeRepo.UpdateFields(ctx, id, fields); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if _, ok := fields["state"]; ok {
		invalidateStats(ctx)
	}
	return s.Get(ctx, id)
}

// Delete 删除充值记录并冲回其影响
// 已有消费的记录不可删除；余额充值需会员余额足以扣回
func (s *RechargeService) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.DeleteRecharge", tracing.WithRechargeID(id))
	defer func() { tracing.EndSpan(span, err) }()

	var recharge *models.Recharge
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		recharge, txErr = s.DeleteTx(ctx, tx, id)
		return txErr
	})
	if err != nil {
		return err
	}

	ApplyView(s.now(), recharge)
	logger.Info("recharge deleted", logger.RechargeNo(recharge.RechargeNo), logger.MemberID(recharge.MemberID))
	invalidateStats(ctx)
	if s.notifier != nil {
		s.notifier.RechargeDeleted(recharge)
	}
	return nil
}

// DeleteTx 在已有事务中删除充值记录
func (s *RechargeService) DeleteTx(ctx context.Context, tx *gorm.DB, id int64) (*models.Recharge, error) {
	recharge, err := s.rechargeRepo.GetByIDTx(ctx, tx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrRechargeNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	used, err := s.rechargeRepo.HasConsumptions(ctx, tx, id)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if used {
		return nil, errors.ErrRechargeHasConsumed
	}

	if recharge.IsPackage() {
		if recharge.PackageID != nil {
			if err := s.packageRepo.DecrSalesCount(ctx, tx, *recharge.PackageID); err != nil {
				return nil, errors.ErrDatabaseError.WithError(err)
			}
		}
	} else {
		ok, err := s.memberRepo.DebitBalance(ctx, tx, recharge.MemberID, recharge.TotalAmount)
		if err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		if !ok {
			return nil, errors.ErrRechargeBalanceSpent
		}
	}

	if err := s.rechargeRepo.Delete(ctx, tx, id); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return recharge, nil
}

// invalidateStats 账务变更后清除统计缓存
func invalidateStats(ctx context.Context) {
	if cache.GetClient() == nil {
		return
	}
	if err := cache.DeleteByPrefix(ctx, cache.KeyPrefixStats); err != nil {
		logger.Warn("invalidate stats cache failed", logger.Err(err))
	}
}
