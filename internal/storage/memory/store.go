package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"notika/backend/internal/domain"
)

var (
	ErrEmailExists    = domain.ErrEmailExists
	ErrUsernameExists = domain.ErrUsernameExists
)

// Store 使用内存保存全部数据，主要用于开发验证与测试。
type Store struct {
	mu sync.RWMutex

	messages      map[uint]*domain.Message
	users         map[string]*domain.User // userID -> user
	byEmail       map[string]string       // email -> userID
	byUsername    map[string]string       // username -> userID
	categories    map[uint]*domain.Category
	comments      map[uint]*domain.Comment
	notifications map[uint]*domain.Notification

	nextMessageID      uint
	nextCategoryID     uint
	nextCommentID      uint
	nextNotificationID uint
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		messages:      make(map[uint]*domain.Message),
		users:         make(map[string]*domain.User),
		byEmail:       make(map[string]string),
		byUsername:    make(map[string]string),
		categories:    make(map[uint]*domain.Category),
		comments:      make(map[uint]*domain.Comment),
		notifications: make(map[uint]*domain.Notification),
	}
}

// Health 内存存储始终可用
func (s *Store) Health(ctx context.Context) error {
	return ctx.Err()
}

// Close 无需释放资源
func (s *Store) Close() error {
	return nil
}

// ========== Message Repository ==========

// CreateMessage 保存新消息并分配 ID
func (s *Store) CreateMessage(ctx context.Context, message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMessageID++
	message.ID = s.nextMessageID
	clone := *message
	s.messages[message.ID] = &clone
	return nil
}

// GetMessage 根据 ID 获取消息
func (s *Store) GetMessage(ctx context.Context, id uint) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *msg
	return &clone, nil
}

// ListMailbox 返回指定视图的消息投影，按发送时间倒序
func (s *Store) ListMailbox(ctx context.Context, query domain.MailboxQuery) ([]domain.MessageView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query.Search))
	views := make([]domain.MessageView, 0)
	for _, msg := range s.messages {
		if !query.Matches(msg) {
			continue
		}

		// 只搜索实际联表得到的值，默认显示值不参与匹配
		view := s.viewLocked(msg)
		if needle != "" && !containsAny(query.SearchFields(&view), needle) {
			continue
		}
		view.ApplyFallbacks()
		views = append(views, view)
	}

	sortViews(views)
	if query.Limit > 0 && len(views) > query.Limit {
		views = views[:query.Limit]
	}
	return views, nil
}

// MarkMessageRead 条件更新：仅未读且接收方匹配时翻转
func (s *Store) MarkMessageRead(ctx context.Context, id uint, receiverEmail string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if msg.IsRead || !msg.IsReceiver(receiverEmail) {
		return false, nil
	}
	msg.IsRead = true
	return true, nil
}

// TrashMessage 条件更新：仅未删除时软删除
func (s *Store) TrashMessage(ctx context.Context, id uint, deletedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if msg.IsDeleted {
		return false, nil
	}
	at := deletedAt
	msg.IsDeleted = true
	msg.DeletedAt = &at
	return true, nil
}

// CountUnread 统计收件箱未读数
func (s *Store) CountUnread(ctx context.Context, receiverEmail string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, msg := range s.messages {
		if msg.IsReceiver(receiverEmail) && msg.IsActive() && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

// RecentMessages 返回最近的消息（不区分用户，仪表盘使用）
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]domain.MessageView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]domain.MessageView, 0, len(s.messages))
	for _, msg := range s.messages {
		view := s.viewLocked(msg)
		view.ApplyFallbacks()
		views = append(views, view)
	}
	sortViews(views)
	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	return views, nil
}

// viewLocked 组装消息投影（不含默认显示值），调用方需持有读锁
func (s *Store) viewLocked(msg *domain.Message) domain.MessageView {
	view := domain.MessageView{Message: *msg}
	if sender := s.userByEmailLocked(msg.SenderEmail); sender != nil {
		view.SenderName = sender.Name
		view.SenderSurname = sender.Surname
		view.SenderImageURL = sender.ImageURL
	}
	if receiver := s.userByEmailLocked(msg.ReceiverEmail); receiver != nil {
		view.ReceiverName = receiver.Name
		view.ReceiverSurname = receiver.Surname
	}
	if category, ok := s.categories[msg.CategoryID]; ok {
		view.CategoryName = category.Name
	}
	return view
}

func (s *Store) userByEmailLocked(email string) *domain.User {
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil
	}
	return s.users[id]
}

func sortViews(views []domain.MessageView) {
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].SendDate.Equal(views[j].SendDate) {
			return views[i].ID > views[j].ID
		}
		return views[i].SendDate.After(views[j].SendDate)
	})
}

func containsAny(fields []string, needle string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// ========== User Repository ==========

// CreateUser 创建用户
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	username := strings.ToLower(user.Username)
	if _, exists := s.byEmail[email]; exists {
		return ErrEmailExists
	}
	if _, exists := s.byUsername[username]; exists {
		return ErrUsernameExists
	}

	clone := *user
	s.users[user.ID] = &clone
	s.byEmail[email] = user.ID
	s.byUsername[username] = user.ID
	return nil
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

// GetUserByEmail 根据邮箱获取用户
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user := s.userByEmailLocked(email)
	if user == nil {
		return nil, domain.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

// GetUserByUsername 根据用户名获取用户
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *s.users[id]
	return &clone, nil
}

// UpdateUser 更新用户资料（邮箱与用户名不可修改）
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	clone := *user
	clone.Email = existing.Email
	clone.Username = existing.Username
	s.users[user.ID] = &clone
	return nil
}

// ========== Category Repository ==========

// CreateCategory 创建分类
func (s *Store) CreateCategory(ctx context.Context, category *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCategoryID++
	category.ID = s.nextCategoryID
	clone := *category
	s.categories[category.ID] = &clone
	return nil
}

// GetCategory 根据 ID 获取分类
func (s *Store) GetCategory(ctx context.Context, id uint) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, ok := s.categories[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *category
	return &clone, nil
}

// ListCategories 按 ID 升序返回分类
func (s *Store) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, 0, len(s.categories))
	for _, category := range s.categories {
		if activeOnly && !category.Status {
			continue
		}
		out = append(out, *category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateCategory 更新分类
func (s *Store) UpdateCategory(ctx context.Context, category *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[category.ID]; !ok {
		return domain.ErrNotFound
	}
	clone := *category
	s.categories[category.ID] = &clone
	return nil
}

// DeleteCategory 删除分类
func (s *Store) DeleteCategory(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

// ========== Comment Repository ==========

// CreateComment 保存评论
func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCommentID++
	comment.ID = s.nextCommentID
	clone := *comment
	s.comments[comment.ID] = &clone
	return nil
}

// GetComment 根据 ID 获取评论
func (s *Store) GetComment(ctx context.Context, id uint) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *comment
	return &clone, nil
}

// UpdateCommentStatus 更新评论状态
func (s *Store) UpdateCommentStatus(ctx context.Context, id uint, status domain.CommentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[id]
	if !ok {
		return domain.ErrNotFound
	}
	comment.Status = status
	return nil
}

// ListCommentsByUser 返回用户的评论，时间倒序
func (s *Store) ListCommentsByUser(ctx context.Context, userID string) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Comment, 0)
	for _, comment := range s.comments {
		if comment.UserID == userID {
			out = append(out, *comment)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CommentDate.Equal(out[j].CommentDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].CommentDate.After(out[j].CommentDate)
	})
	return out, nil
}

// ListComments 返回带作者信息的评论，时间倒序
func (s *Store) ListComments(ctx context.Context, limit int) ([]domain.CommentView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CommentView, 0, len(s.comments))
	for _, comment := range s.comments {
		view := domain.CommentView{Comment: *comment}
		if author, ok := s.users[comment.UserID]; ok {
			view.AuthorName = author.Name
			view.AuthorSurname = author.Surname
			view.AuthorUsername = author.Username
			view.AuthorImageURL = author.ImageURL
		}
		out = append(out, view)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CommentDate.Equal(out[j].CommentDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].CommentDate.After(out[j].CommentDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ========== Notification Repository ==========

// CreateNotification 保存通知
func (s *Store) CreateNotification(ctx context.Context, notification *domain.Notification) error {
	if err := notification.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextNotificationID++
	notification.ID = s.nextNotificationID
	clone := *notification
	s.notifications[notification.ID] = &clone
	return nil
}

// GetNotification 根据 ID 获取通知
func (s *Store) GetNotification(ctx context.Context, id uint) (*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

// ListNotifications 返回发给用户（直接或按角色）的通知，时间倒序
func (s *Store) ListNotifications(ctx context.Context, query domain.NotificationQuery) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.filterNotificationsLocked(query)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// CountNotifications 统计符合条件的通知数
func (s *Store) CountNotifications(ctx context.Context, query domain.NotificationQuery) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.filterNotificationsLocked(query))), nil
}

func (s *Store) filterNotificationsLocked(query domain.NotificationQuery) []domain.Notification {
	out := make([]domain.Notification, 0)
	for _, n := range s.notifications {
		if !n.AddressedTo(query.Email, query.Roles) {
			continue
		}
		if query.UnreadOnly && n.IsRead {
			continue
		}
		out = append(out, *n)
	}
	return out
}

// MarkNotificationRead 条件更新：仅未读时翻转
func (s *Store) MarkNotificationRead(ctx context.Context, id uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if n.IsRead {
		return false, nil
	}
	n.IsRead = true
	return true, nil
}

// ========== Stats Repository ==========

// DashboardCounts 汇总仪表盘计数
func (s *Store) DashboardCounts(ctx context.Context) (*domain.DashboardCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := &domain.DashboardCounts{
		Categories: int64(len(s.categories)),
		Messages:   int64(len(s.messages)),
		Comments:   int64(len(s.comments)),
		Users:      int64(len(s.users)),
	}
	for _, msg := range s.messages {
		if !msg.IsRead && !msg.IsDeleted {
			counts.Unread++
		}
		if msg.IsDraft {
			counts.Drafts++
		}
		if msg.IsDeleted {
			counts.Trash++
		}
	}
	for _, n := range s.notifications {
		if n.RecipientRole == domain.RoleAdmin {
			counts.Notifications++
		}
	}
	for _, c := range s.comments {
		if c.IsToxic {
			counts.ToxicComments++
		}
	}
	return counts, nil
}

// CategoryStats 按分类名聚合消息数，数量倒序
func (s *Store) CategoryStats(ctx context.Context, limit int) ([]domain.CategoryStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, msg := range s.messages {
		name := domain.UncategorizedName
		if category, ok := s.categories[msg.CategoryID]; ok {
			name = category.Name
		}
		counts[name]++
	}

	out := make([]domain.CategoryStat, 0, len(counts))
	for name, count := range counts {
		out = append(out, domain.CategoryStat{CategoryName: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].CategoryName < out[j].CategoryName
		}
		return out[i].Count > out[j].Count
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
