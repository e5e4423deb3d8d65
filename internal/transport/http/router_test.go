package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notika/backend/internal/auth"
	jwtpkg "notika/backend/internal/auth/jwt"
	"notika/backend/internal/config"
	"notika/backend/internal/domain"
	"notika/backend/internal/health"
	"notika/backend/internal/monitoring"
	"notika/backend/internal/security"
	"notika/backend/internal/service"
	"notika/backend/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router *gin.Engine
	store  *memory.Store
	tokens *jwtpkg.Manager
	bearer map[string]string
}

// envelope 统一响应，data 延迟解析
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := zap.NewNop()
	store := memory.NewStore()
	tokens := jwtpkg.NewManager(strings.Repeat("k", 32), "test", time.Hour, 24*time.Hour)

	messages := service.NewMessageService(store, security.NewHTMLSanitizer(), nil, log)
	comments := service.NewCommentService(store, nil, nil, log, service.WithCommentRateLimit(2))
	categories := service.NewCategoryService(store, log)
	categories.OnChange(messages.ForgetCategory)
	t.Cleanup(messages.Close)
	t.Cleanup(comments.Close)

	hc := health.NewHealthChecker(log)
	hc.AddReadinessCheck("store", store.Health)

	f := &fixture{
		store:  store,
		tokens: tokens,
		bearer: map[string]string{},
		router: NewRouter(RouterDependencies{
			Config:              &config.Config{},
			AuthService:         auth.NewService(store, tokens, log),
			MessageService:      messages,
			CommentService:      comments,
			NotificationService: service.NewNotificationService(store, log),
			DashboardService:    service.NewDashboardService(store, log),
			CategoryService:     categories,
			JWTManager:          tokens,
			Metrics:             monitoring.NewMetrics(nil),
			Health:              hc,
			Logger:              log,
		}),
	}

	f.seed(t, "alice", "Alice", "Yılmaz", domain.RoleUser)
	f.seed(t, "bob", "Bob", "Kaya", domain.RoleUser)
	f.seed(t, "carol", "Carol", "Demir", domain.RoleUser)
	f.seed(t, "admin", "Admin", "", domain.RoleAdmin)
	return f
}

func (f *fixture) seed(t *testing.T, username, name, surname string, role domain.Role) {
	t.Helper()

	hash, err := auth.HashPassword("gizli-sifre")
	require.NoError(t, err)

	user := &domain.User{
		ID:           "u-" + username,
		Name:         name,
		Surname:      surname,
		Username:     username,
		Email:        username + "@notika.com",
		PasswordHash: hash,
		Roles:        domain.Roles{role},
		IsActive:     true,
	}
	require.NoError(t, f.store.CreateUser(context.Background(), user))

	pair, err := f.tokens.GenerateTokenPair(user)
	require.NoError(t, err)
	f.bearer[username] = pair.AccessToken
}

func (f *fixture) do(t *testing.T, method, path, as string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+f.bearer[as])
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestAuthRoutes(t *testing.T) {
	f := newFixture(t)

	t.Run("注册后返回令牌与落地页", func(t *testing.T) {
		w, env := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"name": "Deniz", "surname": "Ak", "username": "deniz",
			"email": "Deniz@Notika.com", "password": "uzun-bir-sifre",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		result := decode[struct {
			User        domain.User      `json:"user"`
			Tokens      jwtpkg.TokenPair `json:"tokens"`
			Destination string           `json:"destination"`
		}](t, env)
		assert.Equal(t, "deniz@notika.com", result.User.Email)
		assert.NotEmpty(t, result.Tokens.AccessToken)
		assert.Equal(t, "user_inbox", result.Destination)
	})

	t.Run("重复邮箱返回 409", func(t *testing.T) {
		w, _ := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"username": "alice2", "email": "alice@notika.com", "password": "uzun-bir-sifre",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("用户名登录", func(t *testing.T) {
		w, env := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"identifier": "admin", "password": "gizli-sifre",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		result := decode[struct {
			Destination string `json:"destination"`
		}](t, env)
		assert.Equal(t, "admin_dashboard", result.Destination)
	})

	t.Run("密码错误返回 401", func(t *testing.T) {
		w, _ := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"identifier": "bob@notika.com", "password": "yanlis-sifre",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("当前用户", func(t *testing.T) {
		w, env := f.do(t, http.MethodGet, "/api/v1/auth/me", "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "bob@notika.com", decode[domain.User](t, env).Email)

		w, _ = f.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestMessageRoutes(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodPost, "/api/v1/messages", "alice", map[string]interface{}{
		"receiverEmail": "BOB@notika.com",
		"subject":       "Toplantı",
		"body":          "<p>Yarın 10:00</p><script>alert(1)</script>",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sent := decode[domain.Message](t, env)
	assert.Equal(t, "bob@notika.com", sent.ReceiverEmail)
	assert.NotContains(t, sent.Body, "script")
	path := "/api/v1/messages/" + jsonID(sent.ID)

	t.Run("收件箱与未读数", func(t *testing.T) {
		w, env := f.do(t, http.MethodGet, "/api/v1/messages/inbox?q=toplant", "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)
		views := decode[[]domain.MessageView](t, env)
		require.Len(t, views, 1)
		assert.Equal(t, "Alice", views[0].SenderName)

		_, env = f.do(t, http.MethodGet, "/api/v1/messages/unread-count", "bob", nil)
		assert.Equal(t, int64(1), decode[struct {
			Count int64 `json:"count"`
		}](t, env).Count)
	})

	t.Run("非参与方看不到消息", func(t *testing.T) {
		w, _ := f.do(t, http.MethodGet, path, "carol", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("发送方打开不标记已读", func(t *testing.T) {
		w, env := f.do(t, http.MethodGet, path, "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decode[domain.Message](t, env).IsRead)
	})

	t.Run("接收方打开后标记已读", func(t *testing.T) {
		w, env := f.do(t, http.MethodGet, path, "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)

		detail := decode[struct {
			IsRead       bool   `json:"isRead"`
			CategoryName string `json:"categoryName"`
		}](t, env)
		assert.True(t, detail.IsRead)
		assert.Equal(t, domain.UncategorizedName, detail.CategoryName)

		_, env = f.do(t, http.MethodGet, "/api/v1/messages/unread-count", "bob", nil)
		assert.Zero(t, decode[struct {
			Count int64 `json:"count"`
		}](t, env).Count)
	})

	t.Run("回复预填充", func(t *testing.T) {
		w, env := f.do(t, http.MethodGet, path+"/reply", "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)
		model := decode[domain.DraftModel](t, env)
		assert.Equal(t, "Re: Toplantı", model.Subject)
		assert.Equal(t, "alice@notika.com", model.ReceiverEmail)

		w, _ = f.do(t, http.MethodGet, path+"/reply", "alice", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("收件人不存在", func(t *testing.T) {
		w, _ := f.do(t, http.MethodPost, "/api/v1/messages", "alice", map[string]interface{}{
			"receiverEmail": "yok@notika.com", "subject": "Merhaba",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("草稿不检查收件人是否存在", func(t *testing.T) {
		w, _ := f.do(t, http.MethodPost, "/api/v1/messages", "alice", map[string]interface{}{
			"receiverEmail": "yok@notika.com", "subject": "Taslak", "isDraft": true,
		})
		require.Equal(t, http.StatusCreated, w.Code)

		_, env := f.do(t, http.MethodGet, "/api/v1/messages/drafts", "alice", nil)
		assert.Len(t, decode[[]domain.MessageView](t, env), 1)
	})

	t.Run("移入回收站", func(t *testing.T) {
		w, _ := f.do(t, http.MethodPost, path+"/trash", "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)

		_, env := f.do(t, http.MethodGet, "/api/v1/messages/inbox", "bob", nil)
		assert.Empty(t, decode[[]domain.MessageView](t, env))

		_, env = f.do(t, http.MethodGet, "/api/v1/messages/trash", "alice", nil)
		assert.Len(t, decode[[]domain.MessageView](t, env), 1)

		w, _ = f.do(t, http.MethodPost, path+"/trash", "alice", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("非法 ID", func(t *testing.T) {
		w, _ := f.do(t, http.MethodGet, "/api/v1/messages/abc/reply", "bob", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("未登录", func(t *testing.T) {
		w, _ := f.do(t, http.MethodGet, "/api/v1/messages/inbox", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestNotificationRoutes(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPost, "/api/v1/messages", "alice", map[string]interface{}{
		"receiverEmail": "bob@notika.com", "subject": "Rapor",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	type listing struct {
		Items  []domain.Notification `json:"items"`
		Unread int64                 `json:"unread"`
	}

	w, env := f.do(t, http.MethodGet, "/api/v1/notifications", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[listing](t, env)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Yeni Mesaj", got.Items[0].Title)
	assert.Equal(t, int64(1), got.Unread)
	path := "/api/v1/notifications/" + jsonID(got.Items[0].ID) + "/read"

	t.Run("管理员收到流量通知", func(t *testing.T) {
		_, env := f.do(t, http.MethodGet, "/api/v1/notifications", "admin", nil)
		items := decode[listing](t, env).Items
		require.Len(t, items, 1)
		assert.Equal(t, "Yeni Mesaj Trafiği", items[0].Title)
	})

	t.Run("他人的通知视为不存在", func(t *testing.T) {
		w, _ := f.do(t, http.MethodPost, path, "carol", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("标记已读", func(t *testing.T) {
		w, _ := f.do(t, http.MethodPost, path, "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)

		_, env := f.do(t, http.MethodGet, "/api/v1/notifications", "bob", nil)
		assert.Zero(t, decode[listing](t, env).Unread)
	})
}

func TestCommentRoutes(t *testing.T) {
	f := newFixture(t)

	t.Run("超过频率限制返回 429", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			w, _ := f.do(t, http.MethodPost, "/api/v1/comments", "bob", map[string]string{"detail": "Harika bir uygulama"})
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		}
		w, _ := f.do(t, http.MethodPost, "/api/v1/comments", "bob", map[string]string{"detail": "Bir tane daha"})
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("空评论返回 400", func(t *testing.T) {
		w, _ := f.do(t, http.MethodPost, "/api/v1/comments", "alice", map[string]string{"detail": "   "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("我的评论进入待审核", func(t *testing.T) {
		_, env := f.do(t, http.MethodGet, "/api/v1/comments/mine", "bob", nil)
		comments := decode[[]domain.AuthorComment](t, env)
		require.Len(t, comments, 2)
		for _, c := range comments {
			assert.Equal(t, domain.CommentPending, c.Status)
		}
	})

	t.Run("有害评论对作者显示为待审核", func(t *testing.T) {
		require.NoError(t, f.store.CreateComment(context.Background(), &domain.Comment{
			Detail:        "berbat biri",
			UserID:        "u-carol",
			Status:        domain.CommentInactive,
			IsToxic:       true,
			ToxicityScore: 0.93,
			ToxicityLabel: "Zararlı İçerik",
		}))

		w, env := f.do(t, http.MethodGet, "/api/v1/comments/mine", "carol", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, string(env.Data), "isToxic")
		assert.NotContains(t, string(env.Data), "toxicity")
		assert.NotContains(t, string(env.Data), "Pasif")

		comments := decode[[]domain.AuthorComment](t, env)
		require.Len(t, comments, 1)
		assert.Equal(t, domain.CommentPending, comments[0].Status)
	})

	t.Run("普通用户不能访问管理端", func(t *testing.T) {
		w, _ := f.do(t, http.MethodGet, "/api/v1/admin/comments", "bob", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("管理员切换状态与翻译", func(t *testing.T) {
		w, env := f.do(t, http.MethodGet, "/api/v1/admin/comments", "admin", nil)
		require.Equal(t, http.StatusOK, w.Code)
		views := decode[[]domain.CommentView](t, env)
		require.NotEmpty(t, views)
		path := "/api/v1/admin/comments/" + jsonID(views[0].ID)

		w, env = f.do(t, http.MethodPost, path+"/toggle", "admin", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.CommentActive, decode[struct {
			Status domain.CommentStatus `json:"status"`
		}](t, env).Status)

		w, env = f.do(t, http.MethodGet, path+"/translate", "admin", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, decode[struct {
			Translation *domain.Translation `json:"translation"`
		}](t, env).Translation)

		w, _ = f.do(t, http.MethodPost, "/api/v1/admin/comments/999/toggle", "admin", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodPost, "/api/v1/admin/categories", "admin", map[string]string{"name": "İş"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	category := decode[domain.Category](t, env)
	assert.True(t, category.Status)
	path := "/api/v1/admin/categories/" + jsonID(category.ID)

	t.Run("写信时可选分类", func(t *testing.T) {
		_, env := f.do(t, http.MethodGet, "/api/v1/categories/select", "bob", nil)
		assert.Len(t, decode[[]domain.Category](t, env), 1)

		w, _ := f.do(t, http.MethodPost, path+"/toggle", "admin", nil)
		require.Equal(t, http.StatusOK, w.Code)

		_, env = f.do(t, http.MethodGet, "/api/v1/categories/select", "bob", nil)
		assert.Empty(t, decode[[]domain.Category](t, env))
	})

	t.Run("分类名校验", func(t *testing.T) {
		w, _ := f.do(t, http.MethodPost, "/api/v1/admin/categories", "admin", map[string]string{"name": ""})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("仪表盘", func(t *testing.T) {
		w, env := f.do(t, http.MethodGet, "/api/v1/admin/dashboard", "admin", nil)
		require.Equal(t, http.StatusOK, w.Code)
		dash := decode[domain.Dashboard](t, env)
		assert.Equal(t, int64(1), dash.Counts.Categories)
		assert.Equal(t, int64(4), dash.Counts.Users)
	})

	t.Run("删除分类", func(t *testing.T) {
		w, _ := f.do(t, http.MethodDelete, path, "admin", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w, _ = f.do(t, http.MethodGet, path, "admin", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestOpsRoutes(t *testing.T) {
	f := newFixture(t)

	t.Run("健康检查", func(t *testing.T) {
		for _, path := range []string{"/health", "/health/live", "/health/ready"} {
			w, _ := f.do(t, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusOK, w.Code, path)
		}
	})

	t.Run("指标", func(t *testing.T) {
		f.do(t, http.MethodGet, "/api/v1/messages/inbox", "bob", nil)

		w, _ := f.do(t, http.MethodGet, "/metrics", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "notika_http_requests_total")
	})
}

func jsonID(id uint) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
