package ledger

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/idgen"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/common/metrics"
	"github.com/dumeirei/member-ledger/internal/common/tracing"
	"github.com/dumeirei/member-ledger/internal/models"
	"github.com/dumeirei/member-ledger/internal/repository"
)

// 消费被拒原因，用于指标
const (
	rejectDisabled     = "disabled"
	rejectExpired      = "expired"
	rejectExhausted    = "exhausted"
	rejectAmountShort  = "amount_short"
	rejectUnavailable  = "unavailable"
	rejectBalanceShort = "balance_insufficient"
)

// ConsumptionService 消费服务
type ConsumptionService struct {
	db              *gorm.DB
	memberRepo      *repository.MemberRepository
	packageRepo     *repository.PackageRepository
	rechargeRepo    *repository.RechargeRepository
	consumptionRepo *repository.ConsumptionRepository
	notifier        *Notifier
	pointsRate      int
	now             func() time.Time
}

// NewConsumptionService 创建消费服务，pointsRate 为每元消费积分
func NewConsumptionService(
	db *gorm.DB,
	memberRepo *repository.MemberRepository,
	packageRepo *repository.PackageRepository,
	rechargeRepo *repository.RechargeRepository,
	consumptionRepo *repository.ConsumptionRepository,
	notifier *Notifier,
	pointsRate int,
) *ConsumptionService {
	return &ConsumptionService{
		db:              db,
		memberRepo:      memberRepo,
		packageRepo:     packageRepo,
		rechargeRepo:    rechargeRepo,
		consumptionRepo: consumptionRepo,
		notifier:        notifier,
		pointsRate:      pointsRate,
		now:             time.Now,
	}
}

// consumeResult 事务内产生的结果
type consumeResult struct {
	consumption *models.Consumption
	recharge    *models.Recharge
	member      *models.Member
}

// Create 创建消费记录
// 核销计次、扣减储值、余额支付与积分累计在同一事务内完成
func (s *ConsumptionService) Create(ctx context.Context, op Operator, req *CreateConsumptionRequest) (consumption *models.Consumption, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "ledger.CreateConsumption",
		tracing.AttrPaymentMethod.String(req.PaymentMethod),
		tracing.AttrAdminID.Int64(op.ID),
	)
	defer func() { tracing.EndSpan(span, err) }()

	now := s.now()
	var res *consumeResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		res, txErr = s.CreateTx(ctx, tx, op, req, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	consumption = res.consumption
	if res.recharge != nil {
		ApplyView(now, res.recharge)
	}
	metrics.GetMetrics().RecordConsumption(consumption.PaymentMethod)
	logger.Info("consumption created",
		logger.ConsumptionNo(consumption.ConsumptionNo),
		logger.Amount(consumption.Amount),
		logger.AdminID(op.ID),
	)
	invalidateStats(ctx)
	if s.notifier != nil {
		s.notifier.ConsumptionCreated(consumption, res.recharge, res.member)
	}
	return consumption, nil
}

// CreateTx 在已有事务中创建消费记录
func (s *ConsumptionService) CreateTx(ctx context.Context, tx *gorm.DB, op Operator, req *CreateConsumptionRequest, now time.Time) (*consumeResult, error) {
	res := &consumeResult{}

	consumption := &models.Consumption{
		ConsumptionNo: idgen.ConsumptionNo(),
		MemberID:      req.MemberID,
		PackageID:     req.PackageID,
		PaymentMethod: req.PaymentMethod,
		Description:   req.Description,
		ConsumptionAt: now,
		OperatorID:    op.idPtr(),
		OperatorName:  op.namePtr(),
	}
	if req.ConsumptionAt != nil && !req.ConsumptionAt.IsZero() {
		consumption.ConsumptionAt = *req.ConsumptionAt
	}
	if req.Amount != nil {
		consumption.Amount = *req.Amount
	}

	if req.RechargeID != nil {
		recharge, err := s.consumeRecharge(ctx, tx, req, consumption, now)
		if err != nil {
			return nil, err
		}
		res.recharge = recharge
	} else if req.PackageID != nil {
		pkg, err := s.packageRepo.GetByIDTx(ctx, tx, *req.PackageID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.ErrPackageNotFound
			}
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		name := pkg.Name
		consumption.PackageName = &name
	}

	if consumption.MemberID != nil {
		member, err := s.memberRepo.GetByIDTx(ctx, tx, *consumption.MemberID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.ErrMemberNotFound
			}
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		res.member = member
	}

	if consumption.PaymentMethod == models.PaymentMethodBalance {
		if res.member == nil {
			return nil, errors.ErrInvalidParams.WithMessage("余额支付必须指定会员").
				WithDetails(errors.FieldError{Field: "memberId", Message: "不能为空"})
		}
		if consumption.Amount.IsPositive() {
			ok, err := s.memberRepo.DebitBalance(ctx, tx, res.member.ID, consumption.Amount)
			if err != nil {
				return nil, errors.ErrDatabaseError.WithError(err)
			}
			if !ok {
				metrics.GetMetrics().RecordConsumptionRejected(rejectBalanceShort)
				return nil, errors.ErrBalanceInsufficient
			}
			res.member.Balance = res.member.Balance.Sub(consumption.Amount)
		}
	}

	if res.member != nil {
		consumption.PointsEarned = s.pointsFor(consumption.Amount)
		if consumption.PointsEarned > 0 {
			if err := s.memberRepo.AddPoints(ctx, tx, res.member.ID, consumption.PointsEarned); err != nil {
				return nil, errors.ErrDatabaseError.WithError(err)
			}
			res.member.Points += consumption.PointsEarned
		}
	}

	if err := s.consumptionRepo.Create(ctx, tx, consumption); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	consumption.Member = res.member
	res.consumption = consumption
	return res, nil
}

// consumeRecharge 核销关联的套餐充值
func (s *ConsumptionService) consumeRecharge(ctx context.Context, tx *gorm.DB, req *CreateConsumptionRequest, c *models.Consumption, now time.Time) (*models.Recharge, error) {
	recharge, err := s.rechargeRepo.GetByIDTx(ctx, tx, *req.RechargeID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrRechargeNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if req.MemberID != nil && *req.MemberID != recharge.MemberID {
		return nil, errors.ErrRechargeNotOwned
	}
	if !recharge.IsPackage() {
		return nil, errors.ErrRechargeIsBalance
	}
	if req.PackageID != nil && (recharge.PackageID == nil || *req.PackageID != *recharge.PackageID) {
		return nil, errors.ErrInvalidParams.WithMessage("套餐与充值记录不一致").
			WithDetails(errors.FieldError{Field: "packageId", Message: "与充值记录不一致"})
	}

	memberID := recharge.MemberID
	c.MemberID = &memberID
	c.RechargeID = &recharge.ID
	c.PackageID = recharge.PackageID
	c.PackageName = recharge.PackageName

	if models.IsCounted(recharge.PackTypeValue()) {
		ok, err := s.rechargeRepo.IncrUsedTimes(ctx, tx, recharge.ID, now)
		if err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		if !ok {
			return nil, rejectRecharge(now, recharge)
		}
		recharge.UsedTimes++
		return recharge, nil
	}

	// 储值型套餐按金额扣减
	if !c.Amount.IsPositive() {
		return nil, errors.ErrAmountRequired.WithMessage("储值套餐消费必须填写金额").
			WithDetails(errors.FieldError{Field: "amount", Message: "必须大于 0"})
	}
	ok, err := s.rechargeRepo.DebitRemainingAmount(ctx, tx, recharge.ID, c.Amount, now)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if !ok {
		return nil, rejectRecharge(now, recharge)
	}
	if recharge.RemainingAmount.Valid {
		recharge.RemainingAmount = decimal.NewNullDecimal(recharge.RemainingAmount.Decimal.Sub(c.Amount))
	}
	return recharge, nil
}

// rejectRecharge 根据核销前读取的记录判断拒绝原因
func rejectRecharge(now time.Time, r *models.Recharge) error {
	reason, err := rejectRechargeReason(now, r)
	metrics.GetMetrics().RecordConsumptionRejected(reason)
	return err
}

func rejectRechargeReason(now time.Time, r *models.Recharge) (string, error) {
	switch {
	case r.State == models.RechargeStateDisabled:
		return rejectDisabled, errors.ErrRechargeDisabled
	case r.EndDate != nil && r.EndDate.Before(now):
		return rejectExpired, errors.ErrRechargeExpired
	case models.IsCounted(r.PackTypeValue()):
		// 含读取之后被并发核销完的情况
		return rejectExhausted, errors.ErrRechargeExhausted
	case r.PackTypeValue() == models.PackTypeAmount:
		return rejectAmountShort, errors.ErrRechargeAmountShort
	default:
		return rejectUnavailable, errors.ErrRechargeUnavailable
	}
}

// pointsFor 积分 = floor(金额 × 积分比例)
func (s *ConsumptionService) pointsFor(amount decimal.Decimal) int64 {
	if s.pointsRate <= 0 || !amount.IsPositive() {
		return 0
	}
	return amount.Mul(decimal.NewFromInt(int64(s.pointsRate))).Floor().IntPart()
}

// List 获取消费记录列表
func (s *ConsumptionService) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Consumption, int64, error) {
	consumptions, total, err := s.consumptionRepo.List(ctx, offset, limit, filters)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return consumptions, total, nil
}

// Get 获取消费记录详情
func (s *ConsumptionService) Get(ctx context.Context, id int64) (*models.Consumption, error) {
	consumption, err := s.consumptionRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrConsumptionNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return consumption, nil
}

// Update 更新消费描述
func (s *ConsumptionService) Update(ctx context.Context, id int64, req *UpdateConsumptionRequest) (*models.Consumption, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if req.Description != nil {
		if err := s.consumptionRepo.UpdateFields(ctx, id, map[string]interface{}{
			"description": *req.Description,
		}); err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
	}
	return s.Get(ctx, id)
}

// Delete 删除消费记录并冲回其影响
func (s *ConsumptionService) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.DeleteConsumption", tracing.WithOperation("delete"))
	defer func() { tracing.EndSpan(span, err) }()

	var consumption *models.Consumption
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		consumption, txErr = s.DeleteTx(ctx, tx, id)
		return txErr
	})
	if err != nil {
		return err
	}

	logger.Info("consumption deleted", logger.ConsumptionNo(consumption.ConsumptionNo))
	invalidateStats(ctx)
	if s.notifier != nil {
		s.notifier.ConsumptionDeleted(consumption)
	}
	return nil
}

// DeleteTx 在已有事务中删除消费记录
func (s *ConsumptionService) DeleteTx(ctx context.Context, tx *gorm.DB, id int64) (*models.Consumption, error) {
	consumption, err := s.consumptionRepo.GetByIDTx(ctx, tx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrConsumptionNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if consumption.RechargeID != nil {
		recharge, err := s.rechargeRepo.GetByIDTx(ctx, tx, *consumption.RechargeID)
		switch {
		case err == nil:
			if err := s.restoreRecharge(ctx, tx, recharge, consumption); err != nil {
				return nil, err
			}
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			// 充值记录已不存在，无需冲回
		default:
			return nil, errors.ErrDatabaseError.WithError(err)
		}
	}

	if consumption.MemberID != nil {
		memberID := *consumption.MemberID
		if consumption.PaymentMethod == models.PaymentMethodBalance && consumption.Amount.IsPositive() {
			if _, err := s.memberRepo.CreditBalance(ctx, tx, memberID, consumption.Amount); err != nil {
				return nil, errors.ErrDatabaseError.WithError(err)
			}
		}
		if consumption.PointsEarned > 0 {
			if err := s.memberRepo.DeductPoints(ctx, tx, memberID, consumption.PointsEarned); err != nil {
				return nil, errors.ErrDatabaseError.WithError(err)
			}
		}
	}

	if err := s.consumptionRepo.Delete(ctx, tx, id); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return consumption, nil
}

func (s *ConsumptionService) restoreRecharge(ctx context.Context, tx *gorm.DB, r *models.Recharge, c *models.Consumption) error {
	if models.IsCounted(r.PackTypeValue()) {
		if _, err := s.rechargeRepo.DecrUsedTimes(ctx, tx, r.ID); err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		return nil
	}
	if r.PackTypeValue() == models.PackTypeAmount && c.Amount.IsPositive() {
		if err := s.rechargeRepo.CreditRemainingAmount(ctx, tx, r.ID, c.Amount); err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
	}
	return nil
}
