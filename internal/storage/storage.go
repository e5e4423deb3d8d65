package storage

import (
	"context"
	"time"

	"notika/backend/internal/domain"
)

// MessageRepository 定义消息数据存取操作。
//
// 仅做数据访问，不包含授权等业务规则；标志位翻转均为原子的条件更新。
type MessageRepository interface {
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessage(ctx context.Context, id uint) (*domain.Message, error)
	ListMailbox(ctx context.Context, query domain.MailboxQuery) ([]domain.MessageView, error)
	// MarkMessageRead 仅在 is_read = false 且接收方匹配时置为已读，返回是否发生了翻转
	MarkMessageRead(ctx context.Context, id uint, receiverEmail string) (bool, error)
	// TrashMessage 仅在 is_deleted = false 时软删除，返回是否发生了翻转
	TrashMessage(ctx context.Context, id uint, deletedAt time.Time) (bool, error)
	CountUnread(ctx context.Context, receiverEmail string) (int64, error)
	RecentMessages(ctx context.Context, limit int) ([]domain.MessageView, error)
}

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}

// CategoryRepository 定义分类数据存取操作。
type CategoryRepository interface {
	CreateCategory(ctx context.Context, category *domain.Category) error
	GetCategory(ctx context.Context, id uint) (*domain.Category, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, category *domain.Category) error
	DeleteCategory(ctx context.Context, id uint) error
}

// CommentRepository 定义评论数据存取操作。
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *domain.Comment) error
	GetComment(ctx context.Context, id uint) (*domain.Comment, error)
	UpdateCommentStatus(ctx context.Context, id uint, status domain.CommentStatus) error
	ListCommentsByUser(ctx context.Context, userID string) ([]domain.Comment, error)
	// ListComments 按时间倒序返回评论，limit <= 0 表示不限制
	ListComments(ctx context.Context, limit int) ([]domain.CommentView, error)
}

// NotificationRepository 定义通知数据存取操作。
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *domain.Notification) error
	GetNotification(ctx context.Context, id uint) (*domain.Notification, error)
	ListNotifications(ctx context.Context, query domain.NotificationQuery) ([]domain.Notification, error)
	CountNotifications(ctx context.Context, query domain.NotificationQuery) (int64, error)
	// MarkNotificationRead 仅在 is_read = false 时置为已读
	MarkNotificationRead(ctx context.Context, id uint) (bool, error)
}

// StatsRepository 定义仪表盘统计查询。
type StatsRepository interface {
	DashboardCounts(ctx context.Context) (*domain.DashboardCounts, error)
	CategoryStats(ctx context.Context, limit int) ([]domain.CategoryStat, error)
}

// Store 聚合所有存储接口
type Store interface {
	MessageRepository
	UserRepository
	CategoryRepository
	CommentRepository
	NotificationRepository
	StatsRepository

	Health(ctx context.Context) error
	Close() error
}
