// Package handler 提供 API Handler 的通用辅助函数
// 用于减少 Handler 层的代码重复，统一错误处理、认证检查、参数解析等操作
package handler

import (
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/common/response"
	"github.com/dumeirei/member-ledger/internal/common/utils"
	"github.com/dumeirei/member-ledger/internal/middleware"
)

// ============================================================================
// 统一错误处理
// ============================================================================

// HandleError 处理错误并发送适当的响应
// 如果 err 为 nil，返回 false（表示无错误需要处理）
// 如果 err 不为 nil，发送错误响应并返回 true（表示已处理错误，调用方应该 return）
//
// 使用示例:
//
//	result, err := service.DoSomething()
//	if HandleError(c, err) {
//	    return
//	}
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		if appErr.Kind == errors.KindInternal {
			logger.Error("request failed",
				logger.String("path", c.FullPath()),
				logger.Err(err),
			)
			// 内部错误不向调用方暴露细节
			response.Fail(c, appErr.WithError(nil))
			return true
		}
		response.Fail(c, appErr)
		return true
	}
	logger.Error("unexpected error", logger.String("path", c.FullPath()), logger.Err(err))
	response.InternalError(c, "")
	return true
}

// MustSucceed 便捷封装：如果有错误则返回错误响应，否则返回成功响应
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Success(c, data)
}

// MustSucceedWithMessage 便捷封装：带自定义成功消息
func MustSucceedWithMessage(c *gin.Context, err error, message string, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.SuccessWithMessage(c, message, data)
}

// MustCreate 便捷封装：创建成功返回 201
func MustCreate(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Created(c, data)
}

// MustSucceedPage 便捷封装：分页响应版本
//
// 使用示例:
//
//	list, total, err := service.List(ctx, p.GetOffset(), p.Limit, filters)
//	MustSucceedPage(c, err, list, total, p.Page, p.Limit)
func MustSucceedPage(c *gin.Context, err error, list interface{}, total int64, page, limit int) {
	if HandleError(c, err) {
		return
	}
	response.SuccessPage(c, list, total, page, limit)
}

// ============================================================================
// 请求体绑定
// ============================================================================

// BindJSON 绑定 JSON 请求体，失败时输出带字段明细的校验错误
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		response.Fail(c, ValidationError(err))
		return false
	}
	return true
}

// ValidationError 将绑定错误转换为校验类应用错误
func ValidationError(err error) *errors.AppError {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.ErrInvalidParams.WithMessage("请求参数格式错误")
	}
	details := make([]errors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, errors.FieldError{
			Field:   lowerFirst(fe.Field()),
			Message: fieldMessage(fe),
		})
	}
	return errors.ErrInvalidParams.WithMessage("参数校验失败").WithDetails(details...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "min":
		return "不能小于 " + fe.Param()
	case "max":
		return "不能大于 " + fe.Param()
	case "gt", "gte":
		return "必须大于 " + fe.Param()
	case "lte":
		return "不能大于 " + fe.Param()
	case "oneof":
		return "取值必须是 " + fe.Param() + " 之一"
	case "email":
		return "邮箱格式不正确"
	case "phone":
		return "手机号格式不正确"
	case "url":
		return "URL 格式不正确"
	default:
		return "校验失败: " + fe.Tag()
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// ============================================================================
// 管理员认证检查
// ============================================================================

// RequireAdminID 获取当前管理员ID，如果未登录则返回401响应
func RequireAdminID(c *gin.Context) (int64, bool) {
	adminID := middleware.GetAdminID(c)
	if adminID == 0 {
		response.Unauthorized(c, "请先登录")
		return 0, false
	}
	return adminID, true
}

// ============================================================================
// ID 参数解析
// ============================================================================

// ParseID 解析路径参数 "id" 为 int64
// 返回 (0, false) 表示解析失败（已发送400响应，调用方应该 return）
func ParseID(c *gin.Context, resourceName string) (int64, bool) {
	return ParseParamID(c, "id", resourceName)
}

// ParseParamID 解析指定路径参数为 int64
func ParseParamID(c *gin.Context, paramName, resourceName string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(paramName), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return 0, false
	}
	return id, true
}

// ParseQueryID 解析查询参数中的可选 ID
// 如果参数为空返回 (nil, true)
// 如果解析失败返回 (nil, false)（已发送400响应）
func ParseQueryID(c *gin.Context, paramName, resourceName string) (*int64, bool) {
	idStr := c.Query(paramName)
	if idStr == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return nil, false
	}
	return &id, true
}

// ============================================================================
// 时间解析辅助
// ============================================================================

// DateFormat 日期格式
const DateFormat = "2006-01-02"

// ParseDate 按本地时区解析日期字符串 (YYYY-MM-DD)
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateFormat, s, time.Local)
}

// ParseQueryDateRange 从查询参数 startDate/endDate 解析左闭右开区间
// 结束日期会调整为次日零点
// 返回 (nil, nil, true) 如果两个参数都为空
// 返回 (nil, nil, false) 如果解析失败（已发送400响应）
func ParseQueryDateRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	var start, end *time.Time

	if s := c.Query("startDate"); s != "" {
		t, err := ParseDate(s)
		if err != nil {
			response.BadRequest(c, "无效的开始日期格式")
			return nil, nil, false
		}
		start = &t
	}

	if s := c.Query("endDate"); s != "" {
		t, err := ParseDate(s)
		if err != nil {
			response.BadRequest(c, "无效的结束日期格式")
			return nil, nil, false
		}
		next := t.AddDate(0, 0, 1)
		end = &next
	}

	if start != nil && end != nil && !start.Before(*end) {
		response.BadRequest(c, "开始日期不能晚于结束日期")
		return nil, nil, false
	}

	return start, end, true
}

// ============================================================================
// 分页与排序
// ============================================================================

// BindPagination 从查询参数绑定并规范化分页参数
// 默认 page=1, limit=10, 最大 limit=100
func BindPagination(c *gin.Context) utils.Pagination {
	var p utils.Pagination
	p.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	p.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	p.Normalize()
	return p
}

// BindSort 从查询参数 sortBy/sortOrder 解析白名单排序
func BindSort(c *gin.Context, allowed map[string]string, def utils.Sort) utils.Sort {
	return utils.ParseSort(c.Query("sortBy"), c.Query("sortOrder"), allowed, def)
}
