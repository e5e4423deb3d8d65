package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notika/backend/internal/auth/jwt"
	"notika/backend/internal/domain"
	"notika/backend/internal/monitoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTokens() *jwt.Manager {
	return jwt.NewManager(strings.Repeat("s", 32), "test", time.Minute, time.Hour)
}

func tokenFor(t *testing.T, m *jwt.Manager, roles ...domain.Role) string {
	t.Helper()
	pair, err := m.GenerateTokenPair(&domain.User{
		ID: "u-1", Email: "Bob@Notika.com", Username: "bob", Roles: roles,
	})
	require.NoError(t, err)
	return pair.AccessToken
}

func TestJWTAuth(t *testing.T) {
	tokens := newTokens()
	auth := NewJWTAuth(tokens, nil)

	r := gin.New()
	r.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"email": id.Email, "admin": id.Roles.Has(domain.RoleAdmin)})
	})
	r.GET("/admin", auth.RequireAuth(), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	t.Run("缺少令牌", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"code":401`)
	})

	t.Run("无效令牌", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("刷新令牌不能访问接口", func(t *testing.T) {
		pair, err := tokens.GenerateTokenPair(&domain.User{ID: "u-1", Email: "bob@notika.com", Roles: domain.Roles{domain.RoleUser}})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("从 Cookie 读取令牌并规范化邮箱", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: tokenFor(t, tokens, domain.RoleUser)})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"email":"bob@notika.com","admin":false}`, w.Body.String())
	})

	t.Run("普通用户访问管理接口", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, tokens, domain.RoleUser))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("管理员访问管理接口", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, tokens, domain.RoleAdmin))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestMonitoringMiddleware(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	mm := NewMonitoringMiddleware(metrics, nil)

	r := gin.New()
	r.Use(RequestID(), mm.PanicRecovery(), mm.HTTPMetrics())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	t.Run("记录请求并返回请求 ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/ok", "200")))
	})

	t.Run("沿用客户端请求 ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	})

	t.Run("panic 转为 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PanicsTotal))
	})
}

func TestBodySizeLimit(t *testing.T) {
	r := gin.New()
	r.POST("/echo", BodySizeLimit(8), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("0123")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "8", w.Header().Get("X-Max-Body-Size"))
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(), RequestLogger(nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
