package hybrid

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"notika/backend/internal/domain"
	"notika/backend/internal/storage"
)

// CategoryCache 分类二级缓存，未命中返回 domain.ErrNotFound
type CategoryCache interface {
	Get(ctx context.Context, id uint) (*domain.Category, error)
	Set(ctx context.Context, category *domain.Category) error
	GetActiveList(ctx context.Context) ([]domain.Category, error)
	SetActiveList(ctx context.Context, categories []domain.Category) error
	Invalidate(ctx context.Context, id uint) error
}

// Store 混合存储：数据库为准，分类读取经过 Redis 缓存
//
// 缓存读写失败只记录日志并回落到数据库。
type Store struct {
	storage.Store
	cache CategoryCache
	log   *zap.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建混合存储实例
func NewStore(db storage.Store, cache CategoryCache, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{Store: db, cache: cache, log: log.Named("hybrid")}
}

// GetCategory 先读缓存，未命中再读数据库并回填
func (s *Store) GetCategory(ctx context.Context, id uint) (*domain.Category, error) {
	if category, err := s.cache.Get(ctx, id); err == nil {
		return category, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("category cache read failed", zap.Uint("category_id", id), zap.Error(err))
	}

	category, err := s.Store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, category); err != nil {
		s.log.Warn("category cache write failed", zap.Uint("category_id", id), zap.Error(err))
	}
	return category, nil
}

// ListCategories 启用分类列表走缓存，全量列表直接读数据库
func (s *Store) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	if !activeOnly {
		return s.Store.ListCategories(ctx, false)
	}

	if categories, err := s.cache.GetActiveList(ctx); err == nil {
		return categories, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("category list cache read failed", zap.Error(err))
	}

	categories, err := s.Store.ListCategories(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetActiveList(ctx, categories); err != nil {
		s.log.Warn("category list cache write failed", zap.Error(err))
	}
	return categories, nil
}

// CreateCategory 创建分类并清除列表缓存
func (s *Store) CreateCategory(ctx context.Context, category *domain.Category) error {
	if err := s.Store.CreateCategory(ctx, category); err != nil {
		return err
	}
	s.invalidate(ctx, category.ID)
	return nil
}

// UpdateCategory 更新分类并清除缓存
func (s *Store) UpdateCategory(ctx context.Context, category *domain.Category) error {
	if err := s.Store.UpdateCategory(ctx, category); err != nil {
		return err
	}
	s.invalidate(ctx, category.ID)
	return nil
}

// DeleteCategory 删除分类并清除缓存
func (s *Store) DeleteCategory(ctx context.Context, id uint) error {
	if err := s.Store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Store) invalidate(ctx context.Context, id uint) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn("category cache invalidate failed", zap.Uint("category_id", id), zap.Error(err))
	}
}
