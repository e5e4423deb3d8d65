package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"notika/backend/internal/cache"
	"notika/backend/internal/domain"
	"notika/backend/internal/storage"
)

// CommentStore 评论服务依赖的存储
type CommentStore interface {
	storage.CommentRepository
	storage.UserRepository
}

// ToxicityAnalyzer 有害内容判定，失败时返回 nil
type ToxicityAnalyzer interface {
	AnalyzeToxicity(ctx context.Context, text string) *domain.ToxicityVerdict
}

// Translator 评论翻译，失败时返回 nil
type Translator interface {
	Translate(ctx context.Context, text string) *domain.Translation
}

// CommentService 评论提交与审核
type CommentService struct {
	store      CommentStore
	analyzer   ToxicityAnalyzer
	translator Translator
	metrics    Recorder
	log        *zap.Logger
	now        func() time.Time

	ratePerMinute int
	limiterMu     sync.Mutex
	limiters      *cache.LocalCache[*rate.Limiter]
}

// CommentOption 可选项
type CommentOption func(*CommentService)

// WithCommentRecorder 设置指标记录
func WithCommentRecorder(r Recorder) CommentOption {
	return func(s *CommentService) { s.metrics = r }
}

// WithCommentRateLimit 每个用户每分钟最多提交 n 条评论，0 表示不限制
func WithCommentRateLimit(n int) CommentOption {
	return func(s *CommentService) { s.ratePerMinute = n }
}

// WithCommentClock 替换时钟
func WithCommentClock(now func() time.Time) CommentOption {
	return func(s *CommentService) { s.now = now }
}

// NewCommentService 创建评论服务
func NewCommentService(store CommentStore, analyzer ToxicityAnalyzer, translator Translator, log *zap.Logger, opts ...CommentOption) *CommentService {
	if log == nil {
		log = zap.NewNop()
	}

	s := &CommentService{
		store:      store,
		analyzer:   analyzer,
		translator: translator,
		metrics:    nopRecorder{},
		log:        log.Named("comment"),
		now:        time.Now,
		limiters:   cache.NewLocalCache[*rate.Limiter](10000, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close 释放限流器缓存
func (s *CommentService) Close() {
	s.limiters.Close()
}

// CreateComment 提交评论
//
// 同步调用审核服务后落库。判定有害直接置为 Pasif，否则进入待审核；
// 审核失败不影响提交。用户名无法解析时返回 ErrUnauthorized。
func (s *CommentService) CreateComment(ctx context.Context, username, text string) (bool, error) {
	user, err := s.resolveUser(ctx, username)
	if err != nil {
		return false, err
	}

	if err := domain.ValidateCommentDetail(text); err != nil {
		return false, err
	}

	if !s.allow(user.ID) {
		s.log.Warn("comment rate limited", zap.String("user_id", user.ID))
		return false, ErrTooManyComments
	}

	var verdict *domain.ToxicityVerdict
	if s.analyzer != nil {
		verdict = s.analyzer.AnalyzeToxicity(ctx, text)
	}

	comment := &domain.Comment{
		Detail:      text,
		CommentDate: s.now(),
		UserID:      user.ID,
	}
	comment.ApplyVerdict(verdict)

	if err := s.store.CreateComment(ctx, comment); err != nil {
		return false, fmt.Errorf("create comment: %w", err)
	}

	s.metrics.RecordCommentCreated(string(comment.Status))
	s.log.Info("comment created",
		zap.Uint("comment_id", comment.ID),
		zap.String("user_id", user.ID),
		zap.String("status", string(comment.Status)),
		zap.Bool("toxic", comment.IsToxic),
		zap.Float64("score", comment.ToxicityScore),
		zap.String("label", comment.ToxicityLabel))
	return true, nil
}

// GetUserComments 当前用户自己的评论，审核结果对作者不可见
func (s *CommentService) GetUserComments(ctx context.Context, username string) ([]domain.AuthorComment, error) {
	user, err := s.resolveUser(ctx, username)
	if err != nil {
		return nil, err
	}

	comments, err := s.store.ListCommentsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.AuthorComment, 0, len(comments))
	for i := range comments {
		out = append(out, comments[i].ForAuthor())
	}
	return out, nil
}

// ListComments 管理端评论列表（含作者信息）
func (s *CommentService) ListComments(ctx context.Context) ([]domain.CommentView, error) {
	return s.store.ListComments(ctx, 0)
}

// ToggleStatus 管理员切换评论状态：Aktif 与 Pasif 互换，待审核直接激活
func (s *CommentService) ToggleStatus(ctx context.Context, id uint) (domain.CommentStatus, error) {
	comment, err := s.store.GetComment(ctx, id)
	if err != nil {
		return "", err
	}

	next := comment.ToggledStatus()
	if err := s.store.UpdateCommentStatus(ctx, id, next); err != nil {
		return "", fmt.Errorf("update comment status: %w", err)
	}

	s.log.Info("comment status changed",
		zap.Uint("comment_id", id),
		zap.String("from", string(comment.Status)),
		zap.String("to", string(next)))
	return next, nil
}

// TranslateComment 翻译评论；翻译服务不可用时返回 nil 而不是错误
func (s *CommentService) TranslateComment(ctx context.Context, id uint) (*domain.Translation, error) {
	comment, err := s.store.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.translator == nil {
		return nil, nil
	}
	return s.translator.Translate(ctx, comment.Detail), nil
}

func (s *CommentService) resolveUser(ctx context.Context, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.ErrUnauthorized
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// allow 按用户限流
func (s *CommentService) allow(userID string) bool {
	if s.ratePerMinute <= 0 {
		return true
	}

	s.limiterMu.Lock()
	limiter, ok := s.limiters.Get(userID)
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.ratePerMinute)), s.ratePerMinute)
		s.limiters.Set(userID, limiter, 0)
	}
	s.limiterMu.Unlock()

	return limiter.Allow()
}
