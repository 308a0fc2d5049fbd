// Package errors 定义业务错误码和错误处理
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind 错误类别，对外稳定
type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindTokenExpired Kind = "TOKEN_EXPIRED"
	KindForbidden    Kind = "FORBIDDEN"
	KindRateLimited  Kind = "RATE_LIMITED"
	KindInternal     Kind = "INTERNAL_ERROR"
)

// Status 返回错误类别对应的 HTTP 状态码
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized, KindTokenExpired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// FieldError 字段级校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError 应用错误
type AppError struct {
	Code    int          `json:"code"`
	Kind    Kind         `json:"kind"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	Err     error        `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，便于 errors.Is 匹配哨兵错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Status 返回 HTTP 状态码
func (e *AppError) Status() int {
	return e.Kind.Status()
}

// New 创建新的应用错误
func New(code int, kind Kind, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code int, kind Kind, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func (e *AppError) clone() *AppError {
	c := *e
	if e.Details != nil {
		c.Details = append([]FieldError(nil), e.Details...)
	}
	return &c
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	c := e.clone()
	c.Message = message
	return c
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	c := e.clone()
	c.Err = err
	return c
}

// WithDetails 添加字段错误明细
func (e *AppError) WithDetails(details ...FieldError) *AppError {
	c := e.clone()
	c.Details = append(c.Details, details...)
	return c
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = New(1000, KindInternal, "未知错误")
	ErrInvalidParams   = New(1001, KindValidation, "参数错误")
	ErrNotFound        = New(1002, KindNotFound, "资源不存在")
	ErrAlreadyExists   = New(1003, KindConflict, "资源已存在")
	ErrDatabaseError   = New(1004, KindInternal, "数据库错误")
	ErrCacheError      = New(1005, KindInternal, "缓存错误")
	ErrInternalError   = New(1006, KindInternal, "内部错误")
	ErrExternalService = New(1007, KindInternal, "外部服务错误")
	ErrRateLimitExceed = New(1008, KindRateLimited, "请求过于频繁")
	ErrHasDependents   = New(1009, KindConflict, "存在关联数据，无法删除")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, KindUnauthorized, "未登录")
	ErrTokenExpired     = New(2001, KindTokenExpired, "登录已过期")
	ErrTokenInvalid     = New(2002, KindUnauthorized, "无效的令牌")
	ErrTokenRefreshFail = New(2003, KindUnauthorized, "刷新令牌失败")
	ErrPermissionDenied = New(2004, KindForbidden, "权限不足")
	ErrAccountDisabled  = New(2005, KindForbidden, "账号已禁用")
	ErrAccountLocked    = New(2006, KindForbidden, "账号已锁定")
	ErrPasswordError    = New(2007, KindUnauthorized, "用户名或密码错误")
	ErrOTPRequired      = New(2008, KindUnauthorized, "需要动态验证码")
	ErrOTPInvalid       = New(2009, KindUnauthorized, "动态验证码错误")
	ErrOTPNotSetup      = New(2010, KindConflict, "尚未生成动态验证码密钥")
	ErrOTPAlreadyOn     = New(2011, KindConflict, "动态验证码已启用")
)

// 会员错误码 (3000-3999)
var (
	ErrMemberNotFound      = New(3000, KindNotFound, "会员不存在")
	ErrPhoneExists         = New(3001, KindConflict, "手机号已被注册")
	ErrMemberDisabled      = New(3002, KindConflict, "会员已禁用")
	ErrBalanceInsufficient = New(3003, KindConflict, "余额不足")
	ErrMemberHasRecords    = New(3004, KindConflict, "会员存在充值或消费记录，无法删除")
)

// 套餐错误码 (4000-4999)
var (
	ErrPackageNotFound = New(4000, KindNotFound, "套餐不存在")
	ErrPackageClosed   = New(4001, KindConflict, "套餐已停售")
	ErrPackageInUse    = New(4002, KindConflict, "套餐存在充值记录，无法删除")
)

// 充值错误码 (5000-5999)
var (
	ErrRechargeNotFound      = New(5000, KindNotFound, "充值记录不存在")
	ErrRechargeExhausted     = New(5001, KindConflict, "套餐次数已用完")
	ErrRechargeExpired       = New(5002, KindConflict, "套餐已过期")
	ErrRechargeDisabled      = New(5003, KindConflict, "充值记录已停用")
	ErrRechargeUnavailable   = New(5004, KindConflict, "套餐不可用（已用完、已过期或已停用）")
	ErrRechargeAmountShort   = New(5005, KindConflict, "套餐剩余金额不足")
	ErrRechargeNotOwned      = New(5006, KindValidation, "充值记录不属于该会员")
	ErrRechargeIsBalance     = New(5007, KindValidation, "余额充值不可直接核销，请使用余额支付")
	ErrRechargeHasConsumed   = New(5008, KindConflict, "充值记录已有消费，无法删除")
	ErrRechargeBalanceSpent  = New(5009, KindConflict, "充值余额已被使用，无法删除")
	ErrRechargeFieldReadonly = New(5010, KindValidation, "充值金额等财务字段不可修改")
)

// 消费错误码 (6000-6999)
var (
	ErrConsumptionNotFound = New(6000, KindNotFound, "消费记录不存在")
	ErrAmountRequired      = New(6001, KindValidation, "未关联充值记录时必须填写金额")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}
