package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"notika/backend/internal/middleware"
	"notika/backend/internal/service"
)

// requireIdentity 读取当前调用方，缺失时写入 401
func requireIdentity(c *gin.Context) (middleware.Identity, bool) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return middleware.Identity{}, false
	}
	return id, true
}

// recipientOf 通知读取方
func recipientOf(id middleware.Identity) service.Recipient {
	return service.Recipient{Email: id.Email, Roles: id.Roles}
}

// parseID 解析路径中的无符号整数 ID，失败时写入 400
func parseID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		BadRequest(c, MsgInvalidID)
		return 0, false
	}
	return uint(v), true
}

// queryInt 读取整数查询参数，缺失或非法时返回默认值
func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
