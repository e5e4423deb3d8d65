package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"notika/backend/internal/domain"
	"notika/backend/internal/storage"
)

// CategoryInput 分类创建与更新参数
type CategoryInput struct {
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
	Status  *bool  `json:"status"`
}

// CategoryService 分类管理
type CategoryService struct {
	store    storage.CategoryRepository
	log      *zap.Logger
	onChange []func(id uint)
}

// NewCategoryService 创建分类服务
func NewCategoryService(store storage.CategoryRepository, log *zap.Logger) *CategoryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CategoryService{store: store, log: log.Named("category")}
}

// OnChange 注册分类变更回调（用于清除本地缓存的分类名）
func (s *CategoryService) OnChange(fn func(id uint)) {
	s.onChange = append(s.onChange, fn)
}

// List 分类列表，activeOnly 时只返回启用的分类
func (s *CategoryService) List(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	return s.store.ListCategories(ctx, activeOnly)
}

// Get 获取分类
func (s *CategoryService) Get(ctx context.Context, id uint) (*domain.Category, error) {
	return s.store.GetCategory(ctx, id)
}

// Create 创建分类，默认启用
func (s *CategoryService) Create(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	if err := domain.ValidateCategoryName(input.Name); err != nil {
		return nil, err
	}

	category := &domain.Category{
		Name:    strings.TrimSpace(input.Name),
		IconURL: strings.TrimSpace(input.IconURL),
		Status:  true,
	}
	if input.Status != nil {
		category.Status = *input.Status
	}

	if err := s.store.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.log.Info("category created", zap.Uint("category_id", category.ID), zap.String("name", category.Name))
	return category, nil
}

// Update 更新分类
func (s *CategoryService) Update(ctx context.Context, id uint, input CategoryInput) (*domain.Category, error) {
	if err := domain.ValidateCategoryName(input.Name); err != nil {
		return nil, err
	}

	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	category.Name = strings.TrimSpace(input.Name)
	category.IconURL = strings.TrimSpace(input.IconURL)
	if input.Status != nil {
		category.Status = *input.Status
	}

	if err := s.store.UpdateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	s.changed(id)
	s.log.Info("category updated", zap.Uint("category_id", id), zap.String("name", category.Name))
	return category, nil
}

// ToggleStatus 启用与停用互换
func (s *CategoryService) ToggleStatus(ctx context.Context, id uint) (*domain.Category, error) {
	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	category.Status = !category.Status
	if err := s.store.UpdateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("toggle category: %w", err)
	}

	s.changed(id)
	s.log.Info("category status changed", zap.Uint("category_id", id), zap.Bool("status", category.Status))
	return category, nil
}

// Delete 删除分类；引用它的邮件之后显示为未分类
func (s *CategoryService) Delete(ctx context.Context, id uint) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}

	s.changed(id)
	s.log.Info("category deleted", zap.Uint("category_id", id))
	return nil
}

func (s *CategoryService) changed(id uint) {
	for _, fn := range s.onChange {
		fn(id)
	}
}
