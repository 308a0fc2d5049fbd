package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/member-ledger/internal/common/errors"
	"github.com/dumeirei/member-ledger/internal/common/response"
	"github.com/dumeirei/member-ledger/internal/models"
)

// RequireRoles 要求指定角色
func RequireRoles(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			response.AbortFail(c, errors.ErrUnauthorized.WithMessage("请先登录"))
			return
		}

		if _, ok := roleSet[role]; !ok {
			response.AbortFail(c, errors.ErrPermissionDenied)
			return
		}

		c.Next()
	}
}

// RequireSuperAdmin 要求超级管理员权限
func RequireSuperAdmin() gin.HandlerFunc {
	return RequireRoles(models.RoleSuperAdmin)
}
