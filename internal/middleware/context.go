package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"notika/backend/internal/domain"
)

// 上下文键
const (
	ContextUserID    = "userID"
	ContextEmail     = "email"
	ContextUsername  = "username"
	ContextRoles     = "roles"
	ContextRequestID = "requestID"
)

// Identity 当前请求的调用方
type Identity struct {
	UserID   string
	Email    string
	Username string
	Roles    domain.Roles
}

// CurrentIdentity 读取 JWT 中间件写入的身份信息
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	userID := c.GetString(ContextUserID)
	if userID == "" {
		return Identity{}, false
	}

	id := Identity{
		UserID:   userID,
		Email:    c.GetString(ContextEmail),
		Username: c.GetString(ContextUsername),
	}
	if roles, ok := c.Get(ContextRoles); ok {
		id.Roles, _ = roles.(domain.Roles)
	}
	return id, true
}

// abort 以统一响应结构终止请求
func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code": status,
		"msg":  msg,
	})
}

func abortUnauthorized(c *gin.Context, msg string) {
	abort(c, http.StatusUnauthorized, msg)
}
