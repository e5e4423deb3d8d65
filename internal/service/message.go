package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"notika/backend/internal/cache"
	"notika/backend/internal/domain"
	"notika/backend/internal/logger"
	"notika/backend/internal/notify"
	"notika/backend/internal/storage"
)

// 导航栏展示的最新邮件数
const navbarMessageLimit = 5

// MessageStore 邮件服务依赖的存储
type MessageStore interface {
	storage.MessageRepository
	storage.UserRepository
	storage.CategoryRepository
	storage.NotificationRepository
}

// MessageService 邮件生命周期引擎
//
// 负责收发件人授权、状态流转、分类名解析与搜索过滤。服务本身无状态，
// 每次操作都经由存储读写；实时推送在写入提交之后入队，失败不影响结果。
type MessageService struct {
	store     MessageStore
	sanitizer Sanitizer
	events    EventSink
	metrics   Recorder
	log       *zap.Logger
	now       func() time.Time

	categoryNames *cache.LocalCache[string]
}

// MessageOption 可选项
type MessageOption func(*MessageService)

// WithMessageRecorder 设置指标记录
func WithMessageRecorder(r Recorder) MessageOption {
	return func(s *MessageService) { s.metrics = r }
}

// WithMessageClock 替换时钟
func WithMessageClock(now func() time.Time) MessageOption {
	return func(s *MessageService) { s.now = now }
}

// NewMessageService 创建邮件业务服务
func NewMessageService(store MessageStore, sanitizer Sanitizer, events EventSink, log *zap.Logger, opts ...MessageOption) *MessageService {
	if events == nil {
		events = nopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &MessageService{
		store:         store,
		sanitizer:     sanitizer,
		events:        events,
		metrics:       nopRecorder{},
		log:           log.Named("message"),
		now:           time.Now,
		categoryNames: cache.NewLocalCache[string](256, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close 释放本地缓存
func (s *MessageService) Close() {
	s.categoryNames.Close()
}

// GetInbox 收件箱：接收方为当前用户的活动邮件
func (s *MessageService) GetInbox(ctx context.Context, userEmail, query string) ([]domain.MessageView, error) {
	return s.list(ctx, domain.FolderInbox, userEmail, query, nil, 0)
}

// GetSendbox 发件箱：发送方为当前用户的活动邮件（不含草稿）
func (s *MessageService) GetSendbox(ctx context.Context, userEmail, query string) ([]domain.MessageView, error) {
	return s.list(ctx, domain.FolderSendbox, userEmail, query, nil, 0)
}

// GetDrafts 草稿箱：发送方为当前用户、未删除的草稿
func (s *MessageService) GetDrafts(ctx context.Context, userEmail, query string) ([]domain.MessageView, error) {
	return s.list(ctx, domain.FolderDrafts, userEmail, query, nil, 0)
}

// GetTrash 垃圾箱：当前用户为发送方或接收方的已删除邮件
func (s *MessageService) GetTrash(ctx context.Context, userEmail, query string) ([]domain.MessageView, error) {
	return s.list(ctx, domain.FolderTrash, userEmail, query, nil, 0)
}

// GetByCategory 收件箱中属于指定分类的邮件
func (s *MessageService) GetByCategory(ctx context.Context, userEmail string, categoryID uint) ([]domain.MessageView, error) {
	return s.list(ctx, domain.FolderInbox, userEmail, "", &categoryID, 0)
}

// NavbarMessages 导航栏展示的最新收件
func (s *MessageService) NavbarMessages(ctx context.Context, userEmail string) ([]domain.MessageView, error) {
	return s.list(ctx, domain.FolderInbox, userEmail, "", nil, navbarMessageLimit)
}

// UnreadCount 收件箱未读数
func (s *MessageService) UnreadCount(ctx context.Context, userEmail string) (int64, error) {
	email := domain.NormalizeEmail(userEmail)
	if email == "" {
		return 0, domain.ErrUnauthorized
	}
	return s.store.CountUnread(ctx, email)
}

func (s *MessageService) list(ctx context.Context, folder domain.Folder, userEmail, query string, categoryID *uint, limit int) ([]domain.MessageView, error) {
	email := domain.NormalizeEmail(userEmail)
	if email == "" {
		return nil, domain.ErrUnauthorized
	}

	views, err := s.store.ListMailbox(ctx, domain.MailboxQuery{
		Folder:     folder,
		Owner:      email,
		Search:     normalizeQuery(query),
		CategoryID: categoryID,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	return views, nil
}

// GetMessageForUser 邮件详情的唯一授权入口
//
// 调用方必须是发送方或接收方且邮件未删除，否则一律返回 ErrNotFound。
func (s *MessageService) GetMessageForUser(ctx context.Context, id uint, userEmail string) (*domain.Message, error) {
	email := domain.NormalizeEmail(userEmail)
	if email == "" {
		return nil, domain.ErrUnauthorized
	}

	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted || !msg.IsParticipant(email) {
		return nil, domain.ErrNotFound
	}
	return msg, nil
}

// OpenMessage 打开邮件详情；接收方首次打开时标记为已读
func (s *MessageService) OpenMessage(ctx context.Context, id uint, userEmail string) (*domain.Message, error) {
	msg, err := s.GetMessageForUser(ctx, id, userEmail)
	if err != nil {
		return nil, err
	}
	if _, err := s.MarkAsRead(ctx, msg, userEmail); err != nil {
		return nil, err
	}
	return msg, nil
}

// ComposeMessage 写信或保存草稿
//
// 非草稿发送时收件人必须存在，否则返回 ErrReceiverNotFound 且不落库。
// 正文在落库前清洗一次。发送成功后推送新邮件事件并生成通知。
func (s *MessageService) ComposeMessage(ctx context.Context, input domain.ComposeInput) (*domain.Message, error) {
	input.SenderEmail = domain.NormalizeEmail(input.SenderEmail)
	input.ReceiverEmail = domain.NormalizeEmail(input.ReceiverEmail)
	if input.SenderEmail == "" {
		return nil, domain.ErrUnauthorized
	}

	if err := domain.ValidateCompose(input); err != nil {
		return nil, err
	}

	if !input.IsDraft {
		if _, err := s.store.GetUserByEmail(ctx, input.ReceiverEmail); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrReceiverNotFound
			}
			return nil, fmt.Errorf("lookup receiver: %w", err)
		}
	}

	body := input.Body
	if s.sanitizer != nil {
		body = s.sanitizer.Sanitize(body)
	}

	msg := &domain.Message{
		SenderEmail:   input.SenderEmail,
		ReceiverEmail: input.ReceiverEmail,
		Subject:       strings.TrimSpace(input.Subject),
		Body:          body,
		SendDate:      s.now(),
		CategoryID:    input.CategoryID,
		IsDraft:       input.IsDraft,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	scope := logger.MessageScopeOf(msg, s.CategoryName(ctx, msg.CategoryID))
	if msg.IsDraft {
		s.log.Info("message draft saved", append(scope, zap.Uint("message_id", msg.ID))...)
		s.metrics.RecordMessageEvent(MessageEventDraft)
		return msg, nil
	}

	s.log.Info("message sent", append(scope, zap.Uint("message_id", msg.ID))...)
	s.metrics.RecordMessageEvent(MessageEventSent)
	s.afterSend(ctx, msg)
	return msg, nil
}

// afterSend 新邮件的通知与推送：收件人收到新邮件事件和一条通知，管理员组收到流量通知
func (s *MessageService) afterSend(ctx context.Context, msg *domain.Message) {
	sender := s.lookupUser(ctx, msg.SenderEmail)
	senderName := displayName(sender, msg.SenderEmail)

	events := []notify.Event{{
		Group: msg.ReceiverEmail,
		Name:  notify.EventNewMessage,
		Payload: map[string]interface{}{
			"senderEmail":   msg.SenderEmail,
			"receiverEmail": msg.ReceiverEmail,
			"subject":       msg.Subject,
			"sendDate":      formatDisplayTime(msg.SendDate),
			"messageId":     msg.ID,
		},
	}}

	if ev, ok := s.persistNotification(ctx, &domain.Notification{
		Title:          "Yeni Mesaj",
		Detail:         fmt.Sprintf("%s size \"%s\" mesajı gönderdi.", senderName, msg.Subject),
		ImageURL:       imageOf(sender),
		RecipientEmail: msg.ReceiverEmail,
	}, msg.ReceiverEmail); ok {
		events = append(events, ev)
	}

	if ev, ok := s.persistNotification(ctx, &domain.Notification{
		Title:         "Yeni Mesaj Trafiği",
		Detail:        fmt.Sprintf("%s → %s: %s", msg.SenderEmail, msg.ReceiverEmail, msg.Subject),
		ImageURL:      imageOf(sender),
		RecipientRole: domain.RoleAdmin,
	}, domain.AdminsGroup); ok {
		events = append(events, ev)
	}

	s.events.Enqueue(events...)
}

// MarkAsRead 接收方首次阅读时置为已读
//
// 已读、调用方不是接收方、或邮件不处于活动状态时静默忽略。并发调用时只有
// 一次会真正发生翻转，也只有这一次会推送已读回执。返回是否发生了翻转。
func (s *MessageService) MarkAsRead(ctx context.Context, msg *domain.Message, readerEmail string) (bool, error) {
	reader := domain.NormalizeEmail(readerEmail)
	if msg == nil || msg.IsRead || !msg.IsActive() || !msg.IsReceiver(reader) {
		return false, nil
	}

	flipped, err := s.store.MarkMessageRead(ctx, msg.ID, reader)
	if err != nil {
		return false, fmt.Errorf("mark message read: %w", err)
	}
	if !flipped {
		msg.IsRead = true
		return false, nil
	}
	msg.IsRead = true

	s.log.Info("message read", append(logger.MessageScopeOf(msg, s.CategoryName(ctx, msg.CategoryID)),
		zap.Uint("message_id", msg.ID))...)
	s.metrics.RecordMessageEvent(MessageEventRead)

	readerUser := s.lookupUser(ctx, reader)
	senderGroup := domain.NormalizeEmail(msg.SenderEmail)

	events := []notify.Event{{
		Group: senderGroup,
		Name:  notify.EventMessageRead,
		Payload: map[string]interface{}{
			"messageId":   msg.ID,
			"readerEmail": reader,
			"subject":     msg.Subject,
		},
	}}
	if ev, ok := s.persistNotification(ctx, &domain.Notification{
		Title:          "Mesaj Okundu",
		Detail:         fmt.Sprintf("%s, \"%s\" mesajını okudu.", displayName(readerUser, reader), msg.Subject),
		ImageURL:       imageOf(readerUser),
		RecipientEmail: senderGroup,
	}, senderGroup); ok {
		events = append(events, ev)
	}

	s.events.Enqueue(events...)
	return true, nil
}

// MoveToTrash 软删除邮件，发送方和接收方都可以操作
func (s *MessageService) MoveToTrash(ctx context.Context, id uint, userEmail string) (*domain.Message, error) {
	msg, err := s.GetMessageForUser(ctx, id, userEmail)
	if err != nil {
		return nil, err
	}

	now := s.now()
	flipped, err := s.store.TrashMessage(ctx, msg.ID, now)
	if err != nil {
		return nil, fmt.Errorf("trash message: %w", err)
	}
	if !flipped {
		// 并发删除：另一方已经先删除了
		return nil, domain.ErrNotFound
	}

	msg.IsDeleted = true
	msg.DeletedAt = &now

	s.log.Info("message moved to trash", append(logger.MessageScopeOf(msg, s.CategoryName(ctx, msg.CategoryID)),
		zap.Uint("message_id", msg.ID),
		zap.String("actor", domain.NormalizeEmail(userEmail)))...)
	s.metrics.RecordMessageEvent(MessageEventTrashed)
	return msg, nil
}

// BuildReplyModel 回复：只有接收方可以回复
func (s *MessageService) BuildReplyModel(ctx context.Context, id uint, userEmail string) (*domain.DraftModel, error) {
	msg, err := s.GetMessageForUser(ctx, id, userEmail)
	if err != nil {
		return nil, err
	}
	if !msg.IsReceiver(domain.NormalizeEmail(userEmail)) {
		return nil, domain.ErrNotFound
	}

	return &domain.DraftModel{
		ReceiverEmail: msg.SenderEmail,
		Subject:       "Re: " + msg.Subject,
		CategoryID:    msg.CategoryID,
	}, nil
}

// BuildForwardModel 转发：任一方都可以转发，正文原样带上（已清洗过）
func (s *MessageService) BuildForwardModel(ctx context.Context, id uint, userEmail string) (*domain.DraftModel, error) {
	msg, err := s.GetMessageForUser(ctx, id, userEmail)
	if err != nil {
		return nil, err
	}

	return &domain.DraftModel{
		Subject:    "Fwd: " + msg.Subject,
		Body:       msg.Body,
		CategoryID: msg.CategoryID,
	}, nil
}

// CategorySelectList 写信界面可选的分类
func (s *MessageService) CategorySelectList(ctx context.Context) ([]domain.Category, error) {
	return s.store.ListCategories(ctx, true)
}

// CategoryName 解析分类名，未分类或分类不存在时返回默认名
func (s *MessageService) CategoryName(ctx context.Context, id uint) string {
	if id == domain.UncategorizedID {
		return domain.UncategorizedName
	}

	key := fmt.Sprint(id)
	if name, ok := s.categoryNames.Get(key); ok {
		return name
	}

	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("category lookup failed", zap.Uint("category_id", id), zap.Error(err))
		}
		return domain.UncategorizedName
	}

	s.categoryNames.Set(key, category.Name, 0)
	return category.Name
}

// ForgetCategory 分类变更后清除本地缓存的分类名
func (s *MessageService) ForgetCategory(id uint) {
	s.categoryNames.Delete(fmt.Sprint(id))
}

func (s *MessageService) lookupUser(ctx context.Context, email string) *domain.User {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("user lookup failed", zap.String("email", email), zap.Error(err))
		}
		return nil
	}
	return user
}

// persistNotification 写入通知并返回对应的推送事件；写入失败只记录日志
func (s *MessageService) persistNotification(ctx context.Context, n *domain.Notification, group string) (notify.Event, bool) {
	n.CreatedAt = s.now()
	if err := s.store.CreateNotification(ctx, n); err != nil {
		s.log.Warn("notification not persisted",
			zap.String("title", n.Title),
			zap.String("recipient_email", n.RecipientEmail),
			zap.String("recipient_role", string(n.RecipientRole)),
			zap.Error(err))
		return notify.Event{}, false
	}
	s.metrics.RecordNotificationCreated()
	return notificationEvent(n, group), true
}

func notificationEvent(n *domain.Notification, group string) notify.Event {
	return notify.Event{
		Group: group,
		Name:  notify.EventNewNotification,
		Payload: map[string]interface{}{
			"id":        n.ID,
			"title":     n.Title,
			"detail":    n.Detail,
			"imageUrl":  n.ImageURL,
			"createdAt": formatDisplayTime(n.CreatedAt),
		},
	}
}
