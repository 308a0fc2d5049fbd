// Package auth 提供管理员认证相关的 HTTP Handler
package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/handler"
	"github.com/dumeirei/member-ledger/internal/middleware"
	authService "github.com/dumeirei/member-ledger/internal/service/auth"
)

// Handler 认证处理器
type Handler struct {
	authService *authService.AuthService
}

// NewHandler 创建认证处理器
func NewHandler(authSvc *authService.AuthService) *Handler {
	return &Handler{
		authService: authSvc,
	}
}

// Login 管理员登录
// @Summary 管理员登录
// @Description 开启两步验证的账号需同时提交 otpCode
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body authService.LoginRequest true "请求参数"
// @Success 200 {object} response.Response{data=authService.LoginResponse}
// @Failure 401 {object} response.Response
// @Router /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req authService.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	req.IP = c.ClientIP()

	result, err := h.authService.Login(c.Request.Context(), &req)
	if handler.HandleError(c, err) {
		return
	}

	// 登录前上下文中没有管理员，供操作日志记录
	c.Set(middleware.ContextKeyAdminID, result.Admin.ID)
	handler.MustSucceed(c, nil, result)
}

// Logout 退出登录
// @Summary 退出登录
// @Description 注销当前访问令牌，可同时提交刷新令牌一并注销
// @Tags 认证
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body authService.LogoutRequest false "请求参数"
// @Success 200 {object} response.Response
// @Router /api/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	var req authService.LogoutRequest
	// 请求体可选
	if c.Request.ContentLength > 0 && !handler.BindJSON(c, &req) {
		return
	}

	err := h.authService.Logout(c.Request.Context(), middleware.GetClaims(c), &req)
	handler.MustSucceedWithMessage(c, err, "已退出登录", nil)
}

// Refresh 刷新令牌
// @Summary 刷新令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body authService.RefreshRequest true "请求参数"
// @Success 200 {object} response.Response{data=jwt.TokenPair}
// @Router /api/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var req authService.RefreshRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	pair, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	handler.MustSucceed(c, err, pair)
}

// Profile 当前管理员信息
// @Summary 获取当前管理员信息
// @Tags 认证
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=authService.AdminInfo}
// @Router /api/auth/profile [get]
func (h *Handler) Profile(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}

	info, err := h.authService.Profile(c.Request.Context(), adminID)
	handler.MustSucceed(c, err, info)
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Tags 认证
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body authService.ChangePasswordRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /api/auth/password [put]
func (h *Handler) ChangePassword(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}
	var req authService.ChangePasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), adminID, &req)
	handler.MustSucceedWithMessage(c, err, "密码已修改", nil)
}

// SetupOTP 生成两步验证密钥
// @Summary 生成两步验证密钥
// @Description 返回密钥与二维码，需调用 enable 校验后生效
// @Tags 认证
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=authService.OTPSetup}
// @Router /api/auth/2fa/setup [post]
func (h *Handler) SetupOTP(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}

	setup, err := h.authService.SetupOTP(c.Request.Context(), adminID)
	handler.MustSucceed(c, err, setup)
}

// EnableOTP 启用两步验证
// @Summary 启用两步验证
// @Tags 认证
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body authService.OTPCodeRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /api/auth/2fa/enable [post]
func (h *Handler) EnableOTP(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}
	var req authService.OTPCodeRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	err := h.authService.EnableOTP(c.Request.Context(), adminID, req.Code)
	handler.MustSucceedWithMessage(c, err, "两步验证已启用", nil)
}

// DisableOTP 关闭两步验证
// @Summary 关闭两步验证
// @Tags 认证
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body authService.DisableOTPRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /api/auth/2fa/disable [post]
func (h *Handler) DisableOTP(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}
	var req authService.DisableOTPRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	err := h.authService.DisableOTP(c.Request.Context(), adminID, &req)
	handler.MustSucceedWithMessage(c, err, "两步验证已关闭", nil)
}
