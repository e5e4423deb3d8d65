package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notika/backend/internal/auth"
	jwtpkg "notika/backend/internal/auth/jwt"
	"notika/backend/internal/config"
	"notika/backend/internal/health"
	"notika/backend/internal/middleware"
	"notika/backend/internal/monitoring"
	"notika/backend/internal/service"
	"notika/backend/internal/websocket"
)

// 默认请求体上限
const defaultBodyLimit = 1 << 20

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config              *config.Config
	AuthService         *auth.Service
	MessageService      *service.MessageService
	CommentService      *service.CommentService
	NotificationService *service.NotificationService
	DashboardService    *service.DashboardService
	CategoryService     *service.CategoryService
	JWTManager          *jwtpkg.Manager
	WebSocketHub        *websocket.Hub        // 为空时不注册 /ws
	Metrics             *monitoring.Metrics   // 为空时不注册 /metrics
	Health              *health.HealthChecker // 为空时 /health 只返回进程状态
	Logger              *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, log)
		router.Use(mm.PanicRecovery())
		router.Use(mm.HTTPMetrics())
	} else {
		router.Use(gin.Recovery())
	}
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(defaultBodyLimit))
	router.Use(gincors.New(corsConfig(deps.Config)))

	authHandler := NewAuthHandler(deps.AuthService, log)
	messageHandler := NewMessageHandler(deps.MessageService, log)
	commentHandler := NewCommentHandler(deps.CommentService, log)
	notificationHandler := NewNotificationHandler(deps.NotificationService, log)
	adminHandler := NewAdminHandler(deps.DashboardService, deps.CategoryService, log)

	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, log)

	registerHealthRoutes(router, deps.Health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}
	if deps.WebSocketHub != nil {
		router.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	v1 := router.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
		}

		messageRoutes := v1.Group("/messages", jwtAuth.RequireAuth())
		{
			messageRoutes.GET("/inbox", messageHandler.Inbox())
			messageRoutes.GET("/sendbox", messageHandler.Sendbox())
			messageRoutes.GET("/drafts", messageHandler.Drafts())
			messageRoutes.GET("/trash", messageHandler.Trash())
			messageRoutes.GET("/category/:id", messageHandler.ByCategory)
			messageRoutes.GET("/navbar", messageHandler.Navbar)
			messageRoutes.GET("/unread-count", messageHandler.UnreadCount)
			messageRoutes.POST("", messageHandler.Compose)
			messageRoutes.GET("/:id", messageHandler.Get)
			messageRoutes.POST("/:id/trash", messageHandler.MoveToTrash)
			messageRoutes.GET("/:id/reply", messageHandler.Reply)
			messageRoutes.GET("/:id/forward", messageHandler.Forward)
		}

		v1.GET("/categories/select", jwtAuth.RequireAuth(), messageHandler.CategorySelect)

		notificationRoutes := v1.Group("/notifications", jwtAuth.RequireAuth())
		{
			notificationRoutes.GET("", notificationHandler.List)
			notificationRoutes.POST("/:id/read", notificationHandler.MarkRead)
		}

		commentRoutes := v1.Group("/comments", jwtAuth.RequireAuth())
		{
			commentRoutes.POST("", commentHandler.Create)
			commentRoutes.GET("/mine", commentHandler.Mine)
		}

		adminRoutes := v1.Group("/admin", jwtAuth.RequireAuth(), middleware.RequireAdmin())
		{
			adminRoutes.GET("/dashboard", adminHandler.Dashboard)

			adminRoutes.GET("/comments", commentHandler.AdminList)
			adminRoutes.POST("/comments/:id/toggle", commentHandler.Toggle)
			adminRoutes.GET("/comments/:id/translate", commentHandler.Translate)

			adminRoutes.GET("/categories", adminHandler.ListCategories)
			adminRoutes.POST("/categories", adminHandler.CreateCategory)
			adminRoutes.GET("/categories/:id", adminHandler.GetCategory)
			adminRoutes.PUT("/categories/:id", adminHandler.UpdateCategory)
			adminRoutes.DELETE("/categories/:id", adminHandler.DeleteCategory)
			adminRoutes.POST("/categories/:id/toggle", adminHandler.ToggleCategory)
		}
	}

	return router
}

// corsConfig CORS 配置；允许所有来源时关闭凭证支持
func corsConfig(cfg *config.Config) gincors.Config {
	origins := []string{"*"}
	if cfg != nil && len(cfg.CORS.AllowedOrigins) > 0 {
		origins = cfg.CORS.AllowedOrigins
	}

	c := gincors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range c.AllowOrigins {
		if origin == "*" {
			c.AllowCredentials = false
			break
		}
	}
	return c
}

// registerHealthRoutes 健康检查：/health 汇总，/health/live 与 /health/ready 供探针使用
func registerHealthRoutes(router *gin.Engine, hc *health.HealthChecker) {
	if hc == nil {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return
	}

	router.GET("/health", func(c *gin.Context) {
		results := hc.CheckHealth(c.Request.Context())
		status := http.StatusOK
		if !health.Healthy(results) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, results)
	})
	router.GET("/health/live", gin.WrapF(hc.LiveHandler()))
	router.GET("/health/ready", gin.WrapF(hc.ReadyHandler()))
}
