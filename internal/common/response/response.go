// Package response 提供统一的 API 响应格式
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/errors"
)

// Response API 统一响应结构
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// ErrorBody 错误信息
type ErrorBody struct {
	Code    string              `json:"code"`
	BizCode int                 `json:"bizCode"`
	Message string              `json:"message"`
	Details []errors.FieldError `json:"details,omitempty"`
}

// PageData 分页数据结构
type PageData struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

// TotalPages 计算总页数
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: now(),
	})
}

// SuccessWithMessage 成功响应（带消息）
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: now(),
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success:   true,
		Data:      data,
		Message:   "创建成功",
		Timestamp: now(),
	})
}

// SuccessPage 分页成功响应
func SuccessPage(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: PageData{
			Items:      items,
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: TotalPages(total, limit),
		},
		Timestamp: now(),
	})
}

// Fail 根据应用错误输出错误响应
func Fail(c *gin.Context, err *errors.AppError) {
	c.JSON(err.Status(), Response{
		Success: false,
		Error: &ErrorBody{
			Code:    string(err.Kind),
			BizCode: err.Code,
			Message: err.Message,
			Details: err.Details,
		},
		Timestamp: now(),
	})
}

// AbortFail 输出错误响应并中止后续处理
func AbortFail(c *gin.Context, err *errors.AppError) {
	Fail(c, err)
	c.Abort()
}

// BadRequest 请求参数错误
func BadRequest(c *gin.Context, message string) {
	Fail(c, errors.ErrInvalidParams.WithMessage(message))
}

// Unauthorized 未授权
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "unauthorized"
	}
	Fail(c, errors.ErrUnauthorized.WithMessage(message))
}

// Forbidden 禁止访问
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "forbidden"
	}
	Fail(c, errors.ErrPermissionDenied.WithMessage(message))
}

// NotFound 资源不存在
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "not found"
	}
	Fail(c, errors.ErrNotFound.WithMessage(message))
}

// InternalError 服务器内部错误
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "internal server error"
	}
	Fail(c, errors.ErrInternalError.WithMessage(message))
}

// TooManyRequests 请求过于频繁
func TooManyRequests(c *gin.Context, message string) {
	if message == "" {
		message = "too many requests"
	}
	Fail(c, errors.ErrRateLimitExceed.WithMessage(message))
}
