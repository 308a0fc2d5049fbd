// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/jwt"
	"github.com/dumeirei/member-ledger/internal/common/logger"
	"github.com/dumeirei/member-ledger/internal/common/response"
)

// TokenBlacklist 令牌黑名单（注销后的 jti）
type TokenBlacklist interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTManager *jwt.Manager
	Blacklist  TokenBlacklist
}

// 上下文键
const (
	ContextKeyAdminID  = "admin_id"
	ContextKeyUsername = "username"
	ContextKeyRole     = "role"
	ContextKeyClaims   = "claims"
)

// Auth 认证中间件
func Auth(config *AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.AbortFail(c, errors.ErrUnauthorized.WithMessage("请先登录"))
			return
		}

		claims, err := config.JWTManager.ParseAccessToken(token)
		if err != nil {
			if stderrors.Is(err, jwt.ErrTokenExpired) {
				response.AbortFail(c, errors.ErrTokenExpired)
			} else {
				response.AbortFail(c, errors.ErrTokenInvalid)
			}
			return
		}

		if config.Blacklist != nil && claims.ID != "" {
			revoked, err := config.Blacklist.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				// 黑名单不可用时放行，仅记录
				logger.Warn("check token blacklist failed", logger.Err(err))
			} else if revoked {
				response.AbortFail(c, errors.ErrTokenInvalid.WithMessage("令牌已注销，请重新登录"))
				return
			}
		}

		c.Set(ContextKeyAdminID, claims.AdminID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyClaims, claims)

		c.Next()
	}
}

// AdminAuth 管理员认证中间件
func AdminAuth(jwtManager *jwt.Manager, blacklist TokenBlacklist) gin.HandlerFunc {
	return Auth(&AuthConfig{
		JWTManager: jwtManager,
		Blacklist:  blacklist,
	})
}

// extractToken 从请求中提取令牌
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// 二维码图片等 <img> 直链无法带请求头
	return c.Query("token")
}

// GetAdminID 从上下文获取管理员 ID
func GetAdminID(c *gin.Context) int64 {
	v, exists := c.Get(ContextKeyAdminID)
	if !exists {
		return 0
	}
	id, _ := v.(int64)
	return id
}

// GetUsername 从上下文获取管理员用户名
func GetUsername(c *gin.Context) string {
	return c.GetString(ContextKeyUsername)
}

// GetRole 从上下文获取角色
func GetRole(c *gin.Context) string {
	return c.GetString(ContextKeyRole)
}

// GetClaims 从上下文获取完整的 Claims
func GetClaims(c *gin.Context) *jwt.Claims {
	v, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, _ := v.(*jwt.Claims)
	return claims
}
