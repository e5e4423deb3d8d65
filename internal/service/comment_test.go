package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"notika/backend/internal/domain"
	"notika/backend/internal/storage/memory"
)

// MockModeration 模拟审核客户端
type MockModeration struct {
	mock.Mock
}

func (m *MockModeration) AnalyzeToxicity(ctx context.Context, text string) *domain.ToxicityVerdict {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*domain.ToxicityVerdict)
}

func (m *MockModeration) Translate(ctx context.Context, text string) *domain.Translation {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*domain.Translation)
}

func newCommentFixture(t *testing.T, opts ...CommentOption) (*CommentService, *memory.Store, *MockModeration) {
	t.Helper()

	store := memory.NewStore()
	seedUsers(t, store)
	moderation := new(MockModeration)

	opts = append([]CommentOption{WithCommentClock(fixedClock)}, opts...)
	svc := NewCommentService(store, moderation, moderation, nil, opts...)
	t.Cleanup(svc.Close)
	return svc, store, moderation
}

func TestCreateComment(t *testing.T) {
	ctx := context.Background()

	t.Run("有害评论直接置为 Pasif", func(t *testing.T) {
		recorder := newCountingRecorder()
		svc, store, moderation := newCommentFixture(t, WithCommentRecorder(recorder))
		moderation.On("AnalyzeToxicity", mock.Anything, "berbat biri").
			Return(&domain.ToxicityVerdict{Label: "Zararlı İçerik", RawName: "toxic", Score: 0.93, IsToxic: true})

		ok, err := svc.CreateComment(ctx, "alice", "berbat biri")
		require.NoError(t, err)
		assert.True(t, ok)

		comments, err := store.ListCommentsByUser(ctx, "u-alice")
		require.NoError(t, err)
		require.Len(t, comments, 1)
		assert.Equal(t, domain.CommentInactive, comments[0].Status)
		assert.True(t, comments[0].IsToxic)
		assert.InDelta(t, 0.93, comments[0].ToxicityScore, 1e-9)
		assert.Equal(t, "Zararlı İçerik", comments[0].ToxicityLabel)
		assert.Equal(t, fixedNow, comments[0].CommentDate)
		assert.Equal(t, 1, recorder.comments[string(domain.CommentInactive)])
		moderation.AssertExpectations(t)
	})

	t.Run("无害评论进入待审核", func(t *testing.T) {
		svc, store, moderation := newCommentFixture(t)
		moderation.On("AnalyzeToxicity", mock.Anything, "harika").
			Return(&domain.ToxicityVerdict{Label: "Zararsız İçerik", Score: 0.02})

		ok, err := svc.CreateComment(ctx, "alice", "harika")
		require.NoError(t, err)
		assert.True(t, ok)

		comments, err := store.ListCommentsByUser(ctx, "u-alice")
		require.NoError(t, err)
		require.Len(t, comments, 1)
		assert.Equal(t, domain.CommentPending, comments[0].Status)
		assert.False(t, comments[0].IsToxic)
	})

	t.Run("审核不可用时照常保存", func(t *testing.T) {
		svc, store, moderation := newCommentFixture(t)
		moderation.On("AnalyzeToxicity", mock.Anything, "merhaba").Return(nil)

		ok, err := svc.CreateComment(ctx, "alice", "merhaba")
		require.NoError(t, err)
		assert.True(t, ok)

		comments, err := store.ListCommentsByUser(ctx, "u-alice")
		require.NoError(t, err)
		require.Len(t, comments, 1)
		assert.Equal(t, domain.CommentPending, comments[0].Status)
		assert.Equal(t, domain.UnknownToxicityLabel, comments[0].ToxicityLabel)
		assert.Zero(t, comments[0].ToxicityScore)
	})

	t.Run("未知用户", func(t *testing.T) {
		svc, _, moderation := newCommentFixture(t)

		ok, err := svc.CreateComment(ctx, "ghost", "merhaba")
		assert.False(t, ok)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		ok, err = svc.CreateComment(ctx, "", "merhaba")
		assert.False(t, ok)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		moderation.AssertNotCalled(t, "AnalyzeToxicity", mock.Anything, mock.Anything)
	})

	t.Run("空评论", func(t *testing.T) {
		svc, _, moderation := newCommentFixture(t)

		ok, err := svc.CreateComment(ctx, "alice", "   ")
		assert.False(t, ok)
		assert.ErrorIs(t, err, domain.ErrValidation)
		moderation.AssertNotCalled(t, "AnalyzeToxicity", mock.Anything, mock.Anything)
	})

	t.Run("超过频率限制", func(t *testing.T) {
		svc, _, moderation := newCommentFixture(t, WithCommentRateLimit(2))
		moderation.On("AnalyzeToxicity", mock.Anything, mock.Anything).Return(nil)

		for i := 0; i < 2; i++ {
			ok, err := svc.CreateComment(ctx, "alice", "yorum")
			require.NoError(t, err)
			assert.True(t, ok)
		}

		ok, err := svc.CreateComment(ctx, "alice", "yorum")
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrTooManyComments)
		moderation.AssertNumberOfCalls(t, "AnalyzeToxicity", 2)

		// 其他用户不受影响
		ok, err = svc.CreateComment(ctx, "bob", "yorum")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestCommentModeration(t *testing.T) {
	ctx := context.Background()

	t.Run("切换状态", func(t *testing.T) {
		svc, store, _ := newCommentFixture(t)
		comment := &domain.Comment{Detail: "bekleyen", UserID: "u-bob", Status: domain.CommentPending}
		require.NoError(t, store.CreateComment(ctx, comment))

		status, err := svc.ToggleStatus(ctx, comment.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CommentActive, status)

		status, err = svc.ToggleStatus(ctx, comment.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CommentInactive, status)

		status, err = svc.ToggleStatus(ctx, comment.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CommentActive, status)

		_, err = svc.ToggleStatus(ctx, 404)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("管理端列表带作者信息", func(t *testing.T) {
		svc, store, _ := newCommentFixture(t)
		require.NoError(t, store.CreateComment(ctx, &domain.Comment{Detail: "a", UserID: "u-bob", Status: domain.CommentPending}))

		views, err := svc.ListComments(ctx)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "bob", views[0].AuthorUsername)
		assert.Equal(t, "Kaya", views[0].AuthorSurname)
	})

	t.Run("只返回自己的评论", func(t *testing.T) {
		svc, store, _ := newCommentFixture(t)
		require.NoError(t, store.CreateComment(ctx, &domain.Comment{Detail: "a", UserID: "u-bob"}))
		require.NoError(t, store.CreateComment(ctx, &domain.Comment{Detail: "b", UserID: "u-alice"}))

		mine, err := svc.GetUserComments(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "a", mine[0].Detail)
	})

	t.Run("作者看不到有害判定", func(t *testing.T) {
		svc, _, moderation := newCommentFixture(t)
		moderation.On("AnalyzeToxicity", mock.Anything, "berbat biri").
			Return(&domain.ToxicityVerdict{Label: "Zararlı İçerik", RawName: "toxic", Score: 0.93, IsToxic: true})

		_, err := svc.CreateComment(ctx, "alice", "berbat biri")
		require.NoError(t, err)

		mine, err := svc.GetUserComments(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, domain.CommentPending, mine[0].Status)
		assert.Equal(t, "berbat biri", mine[0].Detail)

		views, err := svc.ListComments(ctx)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, domain.CommentInactive, views[0].Status)
		assert.True(t, views[0].IsToxic)
	})

	t.Run("翻译", func(t *testing.T) {
		svc, store, moderation := newCommentFixture(t)
		comment := &domain.Comment{Detail: "çok güzel", UserID: "u-bob"}
		require.NoError(t, store.CreateComment(ctx, comment))
		moderation.On("Translate", mock.Anything, "çok güzel").
			Return(&domain.Translation{Direction: "tr-en", Text: "very nice"})

		tr, err := svc.TranslateComment(ctx, comment.ID)
		require.NoError(t, err)
		require.NotNil(t, tr)
		assert.Equal(t, "very nice", tr.Text)
	})

	t.Run("翻译失败返回空结果", func(t *testing.T) {
		svc, store, moderation := newCommentFixture(t)
		comment := &domain.Comment{Detail: "hello", UserID: "u-bob"}
		require.NoError(t, store.CreateComment(ctx, comment))
		moderation.On("Translate", mock.Anything, "hello").Return(nil)

		tr, err := svc.TranslateComment(ctx, comment.ID)
		require.NoError(t, err)
		assert.Nil(t, tr)
	})
}
