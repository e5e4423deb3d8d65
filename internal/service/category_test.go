package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notika/backend/internal/domain"
	"notika/backend/internal/storage/memory"
)

func TestCategoryService(t *testing.T) {
	ctx := context.Background()
	svc := NewCategoryService(memory.NewStore(), nil)

	var changed []uint
	svc.OnChange(func(id uint) { changed = append(changed, id) })

	t.Run("创建时校验名称", func(t *testing.T) {
		_, err := svc.Create(ctx, CategoryInput{Name: "  "})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = svc.Create(ctx, CategoryInput{Name: strings.Repeat("k", domain.MaxCategoryNameLength+1)})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	work, err := svc.Create(ctx, CategoryInput{Name: " İş ", IconURL: "/icons/work.svg"})
	require.NoError(t, err)
	disabled := false
	archive, err := svc.Create(ctx, CategoryInput{Name: "Arşiv", Status: &disabled})
	require.NoError(t, err)

	t.Run("默认启用", func(t *testing.T) {
		assert.Equal(t, "İş", work.Name)
		assert.True(t, work.Status)
		assert.False(t, archive.Status)
	})

	t.Run("只列出启用的分类", func(t *testing.T) {
		active, err := svc.List(ctx, true)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, work.ID, active[0].ID)

		all, err := svc.List(ctx, false)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("切换状态并触发回调", func(t *testing.T) {
		toggled, err := svc.ToggleStatus(ctx, archive.ID)
		require.NoError(t, err)
		assert.True(t, toggled.Status)
		assert.Contains(t, changed, archive.ID)
	})

	t.Run("更新", func(t *testing.T) {
		updated, err := svc.Update(ctx, work.ID, CategoryInput{Name: "Çalışma"})
		require.NoError(t, err)
		assert.Equal(t, "Çalışma", updated.Name)
		assert.True(t, updated.Status)

		_, err = svc.Update(ctx, 999, CategoryInput{Name: "Yok"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("删除", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, work.ID))
		_, err := svc.Get(ctx, work.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, svc.Delete(ctx, work.ID), domain.ErrNotFound)
	})
}
