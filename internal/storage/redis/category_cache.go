package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"notika/backend/internal/domain"
)

const (
	categoryKeyPrefix = "notika:category:"
	categoryListKey   = "notika:categories:active"
)

// CategoryCache 分类缓存（L2）
//
// 写信界面和邮件视图频繁读取分类名，分类本身极少变化。
type CategoryCache struct {
	client *Client
	ttl    time.Duration
}

// NewCategoryCache 创建分类缓存
func NewCategoryCache(client *Client, ttl time.Duration) *CategoryCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CategoryCache{client: client, ttl: ttl}
}

// Get 读取单个分类，未命中返回 domain.ErrNotFound
func (c *CategoryCache) Get(ctx context.Context, id uint) (*domain.Category, error) {
	data, err := c.client.rdb.Get(ctx, categoryKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get cached category: %w", err)
	}

	var category domain.Category
	if err := json.Unmarshal(data, &category); err != nil {
		return nil, fmt.Errorf("decode cached category: %w", err)
	}
	return &category, nil
}

// Set 写入单个分类
func (c *CategoryCache) Set(ctx context.Context, category *domain.Category) error {
	data, err := json.Marshal(category)
	if err != nil {
		return err
	}
	return c.client.rdb.Set(ctx, categoryKey(category.ID), data, c.ttl).Err()
}

// GetActiveList 读取启用的分类列表
func (c *CategoryCache) GetActiveList(ctx context.Context) ([]domain.Category, error) {
	data, err := c.client.rdb.Get(ctx, categoryListKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get cached categories: %w", err)
	}

	var categories []domain.Category
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("decode cached categories: %w", err)
	}
	return categories, nil
}

// SetActiveList 写入启用的分类列表
func (c *CategoryCache) SetActiveList(ctx context.Context, categories []domain.Category) error {
	data, err := json.Marshal(categories)
	if err != nil {
		return err
	}
	return c.client.rdb.Set(ctx, categoryListKey, data, c.ttl).Err()
}

// Invalidate 分类变更后清除相关缓存
func (c *CategoryCache) Invalidate(ctx context.Context, id uint) error {
	return c.client.rdb.Del(ctx, categoryKey(id), categoryListKey).Err()
}

func categoryKey(id uint) string {
	return fmt.Sprintf("%s%d", categoryKeyPrefix, id)
}
