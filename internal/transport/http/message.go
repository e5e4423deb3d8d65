package httptransport

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notika/backend/internal/domain"
	"notika/backend/internal/service"
)

// MessageHandler 站内消息接口
type MessageHandler struct {
	messages *service.MessageService
	log      *zap.Logger
}

// NewMessageHandler 创建消息处理器
func NewMessageHandler(messages *service.MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, log: log.Named("message_handler")}
}

type composeRequest struct {
	ReceiverEmail string `json:"receiverEmail"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	CategoryID    uint   `json:"categoryId"`
	IsDraft       bool   `json:"isDraft"`
}

// messageDetail 消息详情，附带分类名
type messageDetail struct {
	*domain.Message
	Status       domain.MessageStatus `json:"status"`
	CategoryName string               `json:"categoryName"`
}

type folderFunc func(ctx context.Context, userEmail, query string) ([]domain.MessageView, error)

// folder 邮箱文件夹列表，支持 ?q= 搜索
func (h *MessageHandler) folder(list folderFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := requireIdentity(c)
		if !ok {
			return
		}

		views, err := list(c.Request.Context(), id.Email, c.Query("q"))
		if err != nil {
			handleError(c, h.log, err)
			return
		}
		Success(c, views)
	}
}

// Inbox 收件箱
func (h *MessageHandler) Inbox() gin.HandlerFunc { return h.folder(h.messages.GetInbox) }

// Sendbox 已发送
func (h *MessageHandler) Sendbox() gin.HandlerFunc { return h.folder(h.messages.GetSendbox) }

// Drafts 草稿箱
func (h *MessageHandler) Drafts() gin.HandlerFunc { return h.folder(h.messages.GetDrafts) }

// Trash 回收站
func (h *MessageHandler) Trash() gin.HandlerFunc { return h.folder(h.messages.GetTrash) }

// ByCategory 按分类查看收件箱
func (h *MessageHandler) ByCategory(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	categoryID, ok := parseID(c, "id")
	if !ok {
		return
	}

	views, err := h.messages.GetByCategory(c.Request.Context(), id.Email, categoryID)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, views)
}

// Navbar 导航栏最新消息与未读数
func (h *MessageHandler) Navbar(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	views, err := h.messages.NavbarMessages(ctx, id.Email)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	unread, err := h.messages.UnreadCount(ctx, id.Email)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, gin.H{"messages": views, "unread": unread})
}

// UnreadCount 未读消息数
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	n, err := h.messages.UnreadCount(c.Request.Context(), id.Email)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, gin.H{"count": n})
}

// Get 消息详情；接收方打开时标记已读
func (h *MessageHandler) Get(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	messageID, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	msg, err := h.messages.OpenMessage(ctx, messageID, id.Email)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, messageDetail{
		Message:      msg,
		Status:       msg.Status(),
		CategoryName: h.messages.CategoryName(ctx, msg.CategoryID),
	})
}

// Compose 写信或保存草稿
func (h *MessageHandler) Compose(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req composeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	msg, err := h.messages.ComposeMessage(c.Request.Context(), domain.ComposeInput{
		SenderEmail:   id.Email,
		ReceiverEmail: req.ReceiverEmail,
		Subject:       req.Subject,
		Body:          req.Body,
		CategoryID:    req.CategoryID,
		IsDraft:       req.IsDraft,
	})
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Created(c, msg)
}

// MoveToTrash 移入回收站
func (h *MessageHandler) MoveToTrash(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	messageID, ok := parseID(c, "id")
	if !ok {
		return
	}

	msg, err := h.messages.MoveToTrash(c.Request.Context(), messageID, id.Email)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, msg)
}

// Reply 回复预填充
func (h *MessageHandler) Reply(c *gin.Context) {
	h.draft(c, h.messages.BuildReplyModel)
}

// Forward 转发预填充
func (h *MessageHandler) Forward(c *gin.Context) {
	h.draft(c, h.messages.BuildForwardModel)
}

func (h *MessageHandler) draft(c *gin.Context, build func(context.Context, uint, string) (*domain.DraftModel, error)) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	messageID, ok := parseID(c, "id")
	if !ok {
		return
	}

	model, err := build(c.Request.Context(), messageID, id.Email)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, model)
}

// CategorySelect 写信时可选的启用分类
func (h *MessageHandler) CategorySelect(c *gin.Context) {
	categories, err := h.messages.CategorySelectList(c.Request.Context())
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, categories)
}
