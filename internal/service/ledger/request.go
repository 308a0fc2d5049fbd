package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/models"
)

var (
	minAmount = decimal.RequireFromString("0.01")
	maxAmount = decimal.RequireFromString("999999.99")
)

// Operator 经办管理员
type Operator struct {
	ID   int64
	Name string
}

func (o Operator) idPtr() *int64 {
	if o.ID == 0 {
		return nil
	}
	id := o.ID
	return &id
}

func (o Operator) namePtr() *string {
	if o.Name == "" {
		return nil
	}
	name := o.Name
	return &name
}

// RechargeSpec 充值请求，仅有 BalanceRecharge 与 PackageRecharge 两种实现
type RechargeSpec interface {
	kind() string
	base() *RechargeBase
	Validate() error
}

// RechargeBase 两类充值的公共字段
type RechargeBase struct {
	MemberID       int64
	RechargeAmount decimal.Decimal
	PaymentMethod  string
	RechargeAt     *time.Time
	Remark         *string
}

func (b *RechargeBase) validate(amountRequired bool) []errors.FieldError {
	var details []errors.FieldError
	if b.MemberID <= 0 {
		details = append(details, errors.FieldError{Field: "memberId", Message: "不能为空"})
	}
	if amountRequired || !b.RechargeAmount.IsZero() {
		if d := amountDetail("rechargeAmount", b.RechargeAmount); d != nil {
			details = append(details, *d)
		}
	}
	switch b.PaymentMethod {
	case models.PaymentMethodCash, models.PaymentMethodCard, models.PaymentMethodAlipay, models.PaymentMethodWechat:
	default:
		details = append(details, errors.FieldError{Field: "paymentMethod", Message: "取值必须是 cash card alipay wechat 之一"})
	}
	return details
}

// BalanceRecharge 余额充值
type BalanceRecharge struct {
	RechargeBase
	BonusAmount decimal.Decimal
}

func (BalanceRecharge) kind() string { return models.RechargeTypeBalance }

func (r *BalanceRecharge) base() *RechargeBase { return &r.RechargeBase }

// Validate 校验余额充值
func (r *BalanceRecharge) Validate() error {
	details := r.validate(true)
	if r.BonusAmount.IsNegative() {
		details = append(details, errors.FieldError{Field: "bonusAmount", Message: "不能小于 0"})
	} else if r.BonusAmount.GreaterThan(maxAmount) {
		details = append(details, errors.FieldError{Field: "bonusAmount", Message: "不能大于 999999.99"})
	}
	return detailsError(details)
}

// TotalAmount 到账金额
func (r *BalanceRecharge) TotalAmount() decimal.Decimal {
	return r.RechargeAmount.Add(r.BonusAmount)
}

// PackageRecharge 套餐充值，金额为零时按套餐有效售价收取
type PackageRecharge struct {
	RechargeBase
	PackageID int64
}

func (PackageRecharge) kind() string { return models.RechargeTypePackage }

func (r *PackageRecharge) base() *RechargeBase { return &r.RechargeBase }

// Validate 校验套餐充值
func (r *PackageRecharge) Validate() error {
	details := r.validate(false)
	if r.PackageID <= 0 {
		details = append(details, errors.FieldError{Field: "packageId", Message: "不能为空"})
	}
	return detailsError(details)
}

// amountDetail 金额需在 0.01 到 999999.99 之间
func amountDetail(field string, v decimal.Decimal) *errors.FieldError {
	switch {
	case v.LessThan(minAmount):
		return &errors.FieldError{Field: field, Message: "不能小于 0.01"}
	case v.GreaterThan(maxAmount):
		return &errors.FieldError{Field: field, Message: "不能大于 999999.99"}
	}
	return nil
}

// checkRechargeAmount 校验按套餐售价补全后的充值金额
func checkRechargeAmount(v decimal.Decimal) error {
	if d := amountDetail("rechargeAmount", v); d != nil {
		return detailsError([]errors.FieldError{*d})
	}
	return nil
}

func detailsError(details []errors.FieldError) error {
	if len(details) == 0 {
		return nil
	}
	return errors.ErrInvalidParams.WithMessage("参数校验失败").WithDetails(details...)
}

// CreateRechargeRequest 创建充值请求
type CreateRechargeRequest struct {
	MemberID       int64           `json:"memberId" binding:"required,gt=0"`
	Type           string          `json:"type" binding:"required,oneof=balance package"`
	PackageID      *int64          `json:"packageId"`
	RechargeAmount decimal.Decimal `json:"rechargeAmount"`
	BonusAmount    decimal.Decimal `json:"bonusAmount"`
	PaymentMethod  string          `json:"paymentMethod" binding:"required,oneof=cash card alipay wechat"`
	RechargeAt     *time.Time      `json:"rechargeAt"`
	Remark         *string         `json:"remark" binding:"omitempty,max=500"`
}

// Spec 转换为具体的充值类型
func (req *CreateRechargeRequest) Spec() (RechargeSpec, error) {
	base := RechargeBase{
		MemberID:       req.MemberID,
		RechargeAmount: req.RechargeAmount,
		PaymentMethod:  req.PaymentMethod,
		RechargeAt:     req.RechargeAt,
		Remark:         req.Remark,
	}

	switch req.Type {
	case models.RechargeTypeBalance:
		if req.PackageID != nil {
			return nil, detailsError([]errors.FieldError{{Field: "packageId", Message: "余额充值不能指定套餐"}})
		}
		return &BalanceRecharge{RechargeBase: base, BonusAmount: req.BonusAmount}, nil
	case models.RechargeTypePackage:
		if !req.BonusAmount.IsZero() {
			return nil, detailsError([]errors.FieldError{{Field: "bonusAmount", Message: "套餐充值不支持赠送金额"}})
		}
		spec := &PackageRecharge{RechargeBase: base}
		if req.PackageID != nil {
			spec.PackageID = *req.PackageID
		}
		return spec, nil
	default:
		return nil, detailsError([]errors.FieldError{{Field: "type", Message: "取值必须是 balance package 之一"}})
	}
}

// UpdateRechargeRequest 更新充值请求
// 财务字段出现即拒绝
type UpdateRechargeRequest struct {
	Remark        *string `json:"remark" binding:"omitempty,max=500"`
	PaymentMethod *string `json:"paymentMethod" binding:"omitempty,oneof=cash card alipay wechat"`
	State         *string `json:"state" binding:"omitempty,oneof=active disabled"`

	MemberID        *int64           `json:"memberId"`
	Type            *string          `json:"type"`
	PackageID       *int64           `json:"packageId"`
	RechargeAmount  *decimal.Decimal `json:"rechargeAmount"`
	BonusAmount     *decimal.Decimal `json:"bonusAmount"`
	TotalAmount     *decimal.Decimal `json:"totalAmount"`
	TotalTimes      *int             `json:"totalTimes"`
	UsedTimes       *int             `json:"usedTimes"`
	RemainingAmount *decimal.Decimal `json:"remainingAmount"`
	RechargeAt      *time.Time       `json:"rechargeAt"`
	EndDate         *time.Time       `json:"endDate"`
}

func (req *UpdateRechargeRequest) readonlyFields() []errors.FieldError {
	var details []errors.FieldError
	add := func(set bool, field string) {
		if set {
			details = append(details, errors.FieldError{Field: field, Message: "不可修改"})
		}
	}
	add(req.MemberID != nil, "memberId")
	add(req.Type != nil, "type")
	add(req.PackageID != nil, "packageId")
	add(req.RechargeAmount != nil, "rechargeAmount")
	add(req.BonusAmount != nil, "bonusAmount")
	add(req.TotalAmount != nil, "totalAmount")
	add(req.TotalTimes != nil, "totalTimes")
	add(req.UsedTimes != nil, "usedTimes")
	add(req.RemainingAmount != nil, "remainingAmount")
	add(req.RechargeAt != nil, "rechargeAt")
	add(req.EndDate != nil, "endDate")
	return details
}

// CreateConsumptionRequest 创建消费请求
type CreateConsumptionRequest struct {
	MemberID      *int64           `json:"memberId" binding:"omitempty,gt=0"`
	RechargeID    *int64           `json:"rechargeId" binding:"omitempty,gt=0"`
	PackageID     *int64           `json:"packageId" binding:"omitempty,gt=0"`
	Amount        *decimal.Decimal `json:"amount"`
	PaymentMethod string           `json:"paymentMethod" binding:"required,oneof=cash card alipay wechat balance"`
	Description   *string          `json:"description" binding:"omitempty,max=200"`
	ConsumptionAt *time.Time       `json:"consumptionAt"`
}

// Validate 校验金额；仅关联充值且未填金额时按 0 记录
func (req *CreateConsumptionRequest) Validate() error {
	if req.Amount == nil {
		if req.RechargeID == nil {
			return errors.ErrAmountRequired.WithDetails(errors.FieldError{Field: "amount", Message: "不能为空"})
		}
		return nil
	}
	if d := amountDetail("amount", *req.Amount); d != nil {
		return detailsError([]errors.FieldError{*d})
	}
	return nil
}

// UpdateConsumptionRequest 更新消费请求，仅备注类字段可改
type UpdateConsumptionRequest struct {
	Description *string `json:"description" binding:"omitempty,max=200"`
}
