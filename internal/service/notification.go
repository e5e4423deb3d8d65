package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"notika/backend/internal/domain"
	"notika/backend/internal/storage"
)

// DefaultNotificationLimit 导航栏默认展示的通知数
const DefaultNotificationLimit = 5

// Recipient 通知的读取方
type Recipient struct {
	Email string
	Roles []domain.Role
}

// NotificationService 站内通知查询与已读
type NotificationService struct {
	store storage.NotificationRepository
	log   *zap.Logger
}

// NewNotificationService 创建通知服务
func NewNotificationService(store storage.NotificationRepository, log *zap.Logger) *NotificationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationService{store: store, log: log.Named("notification")}
}

// Latest 最新通知，包含直接发给用户和按角色广播的
func (s *NotificationService) Latest(ctx context.Context, r Recipient, limit int) ([]domain.Notification, error) {
	email := domain.NormalizeEmail(r.Email)
	if email == "" {
		return nil, domain.ErrUnauthorized
	}
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	return s.store.ListNotifications(ctx, domain.NotificationQuery{
		Email: email,
		Roles: r.Roles,
		Limit: limit,
	})
}

// UnreadCount 未读通知数
func (s *NotificationService) UnreadCount(ctx context.Context, r Recipient) (int64, error) {
	email := domain.NormalizeEmail(r.Email)
	if email == "" {
		return 0, domain.ErrUnauthorized
	}

	return s.store.CountNotifications(ctx, domain.NotificationQuery{
		Email:      email,
		Roles:      r.Roles,
		UnreadOnly: true,
	})
}

// MarkRead 标记通知已读；不是发给调用方的通知视为不存在
func (s *NotificationService) MarkRead(ctx context.Context, id uint, r Recipient) error {
	email := domain.NormalizeEmail(r.Email)
	if email == "" {
		return domain.ErrUnauthorized
	}

	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if !n.AddressedTo(email, r.Roles) {
		return domain.ErrNotFound
	}

	flipped, err := s.store.MarkNotificationRead(ctx, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if flipped {
		s.log.Debug("notification read", zap.Uint("notification_id", id), zap.String("email", email))
	}
	return nil
}
