package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notika/backend/internal/auth"
)

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	auth *auth.Service
	log  *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, log: log.Named("auth_handler")}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Register 用户注册，成功后直接返回令牌
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Created(c, result)
}

// Login 用户登录，响应中带有落地页
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, result)
}

// Refresh 使用刷新令牌换取新的访问令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.auth.Refresh(req.RefreshToken)
	if err != nil {
		Unauthorized(c, MsgTokenInvalid)
		return
	}
	Success(c, gin.H{"accessToken": accessToken})
}

// Me 当前登录用户
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	user, err := h.auth.GetUserByID(c.Request.Context(), id.UserID)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, user)
}
