package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"notika/backend/internal/domain"
)

// RequireRole 要求调用方具备指定角色，需放在 RequireAuth 之后
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			abortUnauthorized(c, "Oturum açmanız gerekiyor")
			return
		}
		if !id.Roles.Has(role) {
			abort(c, http.StatusForbidden, "Bu işlem için yetkiniz yok")
			return
		}
		c.Next()
	}
}

// RequireAdmin 要求管理员权限
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin)
}
