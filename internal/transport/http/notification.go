package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notika/backend/internal/service"
)

// NotificationHandler 站内通知接口
type NotificationHandler struct {
	notifications *service.NotificationService
	log           *zap.Logger
}

// NewNotificationHandler 创建通知处理器
func NewNotificationHandler(notifications *service.NotificationService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, log: log.Named("notification_handler")}
}

// List 最新通知与未读数，?limit= 默认 5
func (h *NotificationHandler) List(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	r := recipientOf(id)
	items, err := h.notifications.Latest(ctx, r, queryInt(c, "limit", service.DefaultNotificationLimit))
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	unread, err := h.notifications.UnreadCount(ctx, r)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, gin.H{"items": items, "unread": unread})
}

// MarkRead 标记已读
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	notificationID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), notificationID, recipientOf(id)); err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, nil)
}
