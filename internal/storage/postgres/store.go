package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"notika/backend/internal/config"
	"notika/backend/internal/domain"
	"notika/backend/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Options 连接池与迁移选项
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// Store 关系型存储实现（PostgreSQL 或 MySQL，经由 GORM）
//
// 邮箱视图等多表查询由 squirrel 拼装，统一使用 ? 占位符，由 GORM 按方言重新绑定。
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open 按配置选择方言
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	opts := Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		AutoMigrate:     true,
	}

	switch strings.ToLower(cfg.Type) {
	case config.DatabaseMySQL:
		return NewMySQLStore(cfg.DSN, opts, log)
	case config.DatabasePostgres, "postgresql":
		return NewStore(cfg.DSN, opts, log)
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: mysql, postgres)", cfg.Type)
	}
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string, opts Options, log *zap.Logger) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn), opts, log)
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string, opts Options, log *zap.Logger) (*Store, error) {
	normalized, err := NormalizeMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}
	return NewStoreWithDialector(mysql.Open(normalized), opts, log)
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, opts Options, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	store := &Store{db: db, log: log.Named("store")}

	if opts.AutoMigrate {
		if err := store.migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	log.Info("database store ready", zap.String("dialect", dialector.Name()))
	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Category{},
		&domain.Message{},
		&domain.Comment{},
		&domain.Notification{},
	)
}

// Health 检查数据库连通性
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// ========== Message Repository ==========

// CreateMessage 保存新消息
func (s *Store) CreateMessage(ctx context.Context, message *domain.Message) error {
	return s.db.WithContext(ctx).Create(message).Error
}

// GetMessage 根据 ID 获取消息
func (s *Store) GetMessage(ctx context.Context, id uint) (*domain.Message, error) {
	var message domain.Message
	if err := s.db.WithContext(ctx).First(&message, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &message, nil
}

// ListMailbox 返回指定视图的消息投影，按发送时间倒序
func (s *Store) ListMailbox(ctx context.Context, query domain.MailboxQuery) ([]domain.MessageView, error) {
	folder, err := folderCondition(query)
	if err != nil {
		return nil, err
	}

	builder := messageViewSelect().Where(folder)
	if query.CategoryID != nil {
		builder = builder.Where(sq.Eq{"m.category_id": *query.CategoryID})
	}
	if needle := strings.ToLower(strings.TrimSpace(query.Search)); needle != "" {
		builder = builder.Where(searchCondition(query.Folder, needle))
	}
	if query.Limit > 0 {
		builder = builder.Limit(uint64(query.Limit))
	}

	return s.scanViews(ctx, builder)
}

// MarkMessageRead 条件更新：仅未读且接收方匹配时翻转
func (s *Store) MarkMessageRead(ctx context.Context, id uint, receiverEmail string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND receiver_email = ? AND is_read = ?", id, domain.NormalizeEmail(receiverEmail), false).
		Update("is_read", true)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	return false, s.messageExists(ctx, id)
}

// TrashMessage 条件更新：仅未删除时软删除
func (s *Store) TrashMessage(ctx context.Context, id uint, deletedAt time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": deletedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	return false, s.messageExists(ctx, id)
}

func (s *Store) messageExists(ctx context.Context, id uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Message{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountUnread 统计收件箱未读数
func (s *Store) CountUnread(ctx context.Context, receiverEmail string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Message{}).
		Where("receiver_email = ? AND is_read = ? AND is_draft = ? AND is_deleted = ?",
			domain.NormalizeEmail(receiverEmail), false, false, false).
		Count(&count).Error
	return count, err
}

// RecentMessages 返回最近的消息（不区分用户，仪表盘使用）
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]domain.MessageView, error) {
	builder := messageViewSelect()
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return s.scanViews(ctx, builder)
}

func (s *Store) scanViews(ctx context.Context, builder sq.SelectBuilder) ([]domain.MessageView, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build mailbox query: %w", err)
	}

	views := make([]domain.MessageView, 0)
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("query mailbox: %w", err)
	}
	for i := range views {
		views[i].ApplyFallbacks()
	}
	return views, nil
}

// ========== User Repository ==========

// CreateUser 创建用户，邮箱和用户名均不可重复
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	user.Email = domain.NormalizeEmail(user.Email)

	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrEmailExists
	}
	if err := s.db.WithContext(ctx).Model(&domain.User{}).
		Where("LOWER(username) = ?", strings.ToLower(user.Username)).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrUsernameExists
	}

	return s.db.WithContext(ctx).Create(user).Error
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUserByEmail 根据邮箱获取用户（不区分大小写）
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).Where("email = ?", domain.NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUserByUsername 根据用户名获取用户（不区分大小写）
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).
		First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	result := s.db.WithContext(ctx).Model(user).Select("*").Omit("created_at").Updates(user)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ========== Category Repository ==========

// CreateCategory 创建分类
func (s *Store) CreateCategory(ctx context.Context, category *domain.Category) error {
	return s.db.WithContext(ctx).Create(category).Error
}

// GetCategory 根据 ID 获取分类
func (s *Store) GetCategory(ctx context.Context, id uint) (*domain.Category, error) {
	var category domain.Category
	if err := s.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &category, nil
}

// ListCategories 按 ID 升序返回分类
func (s *Store) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	categories := make([]domain.Category, 0)
	db := s.db.WithContext(ctx).Order("id ASC")
	if activeOnly {
		db = db.Where("status = ?", true)
	}
	if err := db.Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// UpdateCategory 更新分类（包括 Status=false 这样的零值）
func (s *Store) UpdateCategory(ctx context.Context, category *domain.Category) error {
	result := s.db.WithContext(ctx).Model(&domain.Category{}).Where("id = ?", category.ID).
		Updates(map[string]interface{}{
			"name":     category.Name,
			"icon_url": category.IconURL,
			"status":   category.Status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetCategory(ctx, category.ID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCategory 删除分类
func (s *Store) DeleteCategory(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&domain.Category{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ========== Comment Repository ==========

// CreateComment 保存评论
func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) error {
	return s.db.WithContext(ctx).Create(comment).Error
}

// GetComment 根据 ID 获取评论
func (s *Store) GetComment(ctx context.Context, id uint) (*domain.Comment, error) {
	var comment domain.Comment
	if err := s.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &comment, nil
}

// UpdateCommentStatus 更新评论状态
func (s *Store) UpdateCommentStatus(ctx context.Context, id uint, status domain.CommentStatus) error {
	if _, err := s.GetComment(ctx, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&domain.Comment{}).Where("id = ?", id).Update("status", status).Error
}

// ListCommentsByUser 返回用户的评论，时间倒序
func (s *Store) ListCommentsByUser(ctx context.Context, userID string) ([]domain.Comment, error) {
	comments := make([]domain.Comment, 0)
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("comment_date DESC").Order("id DESC").
		Find(&comments).Error
	return comments, err
}

// ListComments 返回带作者信息的评论，时间倒序
func (s *Store) ListComments(ctx context.Context, limit int) ([]domain.CommentView, error) {
	builder := sq.Select(
		"c.*",
		"COALESCE(u.name, '') AS author_name",
		"COALESCE(u.surname, '') AS author_surname",
		"COALESCE(u.username, '') AS author_username",
		"COALESCE(u.image_url, '') AS author_image_url",
	).
		From("comments c").
		LeftJoin("users u ON u.id = c.user_id").
		OrderBy("c.comment_date DESC", "c.id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build comment query: %w", err)
	}

	views := make([]domain.CommentView, 0)
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	return views, nil
}

// ========== Notification Repository ==========

// CreateNotification 保存通知
func (s *Store) CreateNotification(ctx context.Context, notification *domain.Notification) error {
	if err := notification.Validate(); err != nil {
		return err
	}
	notification.RecipientEmail = domain.NormalizeEmail(notification.RecipientEmail)
	return s.db.WithContext(ctx).Create(notification).Error
}

// GetNotification 根据 ID 获取通知
func (s *Store) GetNotification(ctx context.Context, id uint) (*domain.Notification, error) {
	var n domain.Notification
	if err := s.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

// ListNotifications 返回发给用户（直接或按角色）的通知，时间倒序
func (s *Store) ListNotifications(ctx context.Context, query domain.NotificationQuery) ([]domain.Notification, error) {
	out := make([]domain.Notification, 0)
	db := s.db.WithContext(ctx).Scopes(addressedTo(query)).Order("created_at DESC").Order("id DESC")
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if err := db.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CountNotifications 统计符合条件的通知数
func (s *Store) CountNotifications(ctx context.Context, query domain.NotificationQuery) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Notification{}).Scopes(addressedTo(query)).Count(&count).Error
	return count, err
}

// MarkNotificationRead 条件更新：仅未读时翻转
func (s *Store) MarkNotificationRead(ctx context.Context, id uint) (bool, error) {
	result := s.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		Update("is_read", true)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	if _, err := s.GetNotification(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func addressedTo(query domain.NotificationQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		email := domain.NormalizeEmail(query.Email)
		if len(query.Roles) > 0 {
			roles := make([]string, 0, len(query.Roles))
			for _, r := range query.Roles {
				roles = append(roles, string(r))
			}
			db = db.Where("((recipient_email = ? AND recipient_email <> '') OR recipient_role IN ?)", email, roles)
		} else {
			db = db.Where("recipient_email = ? AND recipient_email <> ''", email)
		}
		if query.UnreadOnly {
			db = db.Where("is_read = ?", false)
		}
		return db
	}
}

// ========== Stats Repository ==========

// DashboardCounts 汇总仪表盘计数
func (s *Store) DashboardCounts(ctx context.Context) (*domain.DashboardCounts, error) {
	var counts domain.DashboardCounts
	db := s.db.WithContext(ctx)

	steps := []struct {
		model interface{}
		where string
		args  []interface{}
		dest  *int64
	}{
		{&domain.Category{}, "", nil, &counts.Categories},
		{&domain.Message{}, "", nil, &counts.Messages},
		{&domain.Message{}, "is_read = ? AND is_deleted = ?", []interface{}{false, false}, &counts.Unread},
		{&domain.Message{}, "is_draft = ?", []interface{}{true}, &counts.Drafts},
		{&domain.Message{}, "is_deleted = ?", []interface{}{true}, &counts.Trash},
		{&domain.Notification{}, "recipient_role = ?", []interface{}{string(domain.RoleAdmin)}, &counts.Notifications},
		{&domain.Comment{}, "", nil, &counts.Comments},
		{&domain.Comment{}, "is_toxic = ?", []interface{}{true}, &counts.ToxicComments},
		{&domain.User{}, "", nil, &counts.Users},
	}
	for _, step := range steps {
		q := db.Model(step.model)
		if step.where != "" {
			q = q.Where(step.where, step.args...)
		}
		if err := q.Count(step.dest).Error; err != nil {
			return nil, fmt.Errorf("dashboard count: %w", err)
		}
	}
	return &counts, nil
}

// CategoryStats 按分类名聚合消息数，数量倒序
func (s *Store) CategoryStats(ctx context.Context, limit int) ([]domain.CategoryStat, error) {
	builder := sq.Select(categoryNameExpr+" AS category_name", "COUNT(*) AS count").
		From("messages m").
		LeftJoin("categories c ON c.id = m.category_id").
		GroupBy(categoryNameExpr).
		OrderBy("count DESC", "category_name ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build category stats query: %w", err)
	}

	stats := make([]domain.CategoryStat, 0)
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&stats).Error; err != nil {
		return nil, fmt.Errorf("query category stats: %w", err)
	}
	return stats, nil
}
