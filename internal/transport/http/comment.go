package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notika/backend/internal/service"
)

// CommentHandler 评论接口（用户端与管理端）
type CommentHandler struct {
	comments *service.CommentService
	log      *zap.Logger
}

// NewCommentHandler 创建评论处理器
func NewCommentHandler(comments *service.CommentService, log *zap.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, log: log.Named("comment_handler")}
}

type commentRequest struct {
	Detail string `json:"detail"`
}

// Create 提交评论，审核后进入待审核或直接下架
func (h *CommentHandler) Create(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if _, err := h.comments.CreateComment(c.Request.Context(), id.Username, req.Detail); err != nil {
		handleError(c, h.log, err)
		return
	}
	CreatedWithMsg(c, "Yorumunuz alındı", nil)
}

// Mine 当前用户的评论
func (h *CommentHandler) Mine(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	comments, err := h.comments.GetUserComments(c.Request.Context(), id.Username)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, comments)
}

// AdminList 管理端评论列表
func (h *CommentHandler) AdminList(c *gin.Context) {
	comments, err := h.comments.ListComments(c.Request.Context())
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, comments)
}

// Toggle 切换评论状态
func (h *CommentHandler) Toggle(c *gin.Context) {
	commentID, ok := parseID(c, "id")
	if !ok {
		return
	}

	status, err := h.comments.ToggleStatus(c.Request.Context(), commentID)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, gin.H{"status": status})
}

// Translate 翻译评论；翻译不可用时 translation 为 null
func (h *CommentHandler) Translate(c *gin.Context) {
	commentID, ok := parseID(c, "id")
	if !ok {
		return
	}

	tr, err := h.comments.TranslateComment(c.Request.Context(), commentID)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, gin.H{"translation": tr})
}
