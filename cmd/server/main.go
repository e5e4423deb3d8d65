package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"notika/backend/internal/auth"
	jwtpkg "notika/backend/internal/auth/jwt"
	"notika/backend/internal/config"
	"notika/backend/internal/domain"
	"notika/backend/internal/health"
	"notika/backend/internal/logger"
	"notika/backend/internal/moderation"
	"notika/backend/internal/monitoring"
	"notika/backend/internal/notify"
	"notika/backend/internal/pool"
	"notika/backend/internal/security"
	"notika/backend/internal/service"
	"notika/backend/internal/storage"
	"notika/backend/internal/storage/hybrid"
	"notika/backend/internal/storage/memory"
	"notika/backend/internal/storage/postgres"
	"notika/backend/internal/storage/redis"
	httptransport "notika/backend/internal/transport/http"
	"notika/backend/internal/websocket"
)

// main 启动 HTTP API、WebSocket 网关与实时推送
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting notika server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("database_type", cfg.Database.Type),
		zap.Bool("redis", cfg.Redis.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics(nil)
	healthChecker := health.NewHealthChecker(log)

	// Redis 可选：分类缓存与跨实例实时转发
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(cfg.Redis, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		healthChecker.AddReadinessCheck("redis", redisClient.Ping)
	}

	store, err := openStore(ctx, cfg, redisClient, healthChecker, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer store.Close()
	healthChecker.AddReadinessCheck("database", store.Health)

	if cfg.Log.Development {
		createDefaultAdmin(ctx, store, log)
	}

	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)

	// 实时推送：Hub 负责本地连接，启用 Redis 时经频道转发到所有实例
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, jwtManager, log,
		websocket.WithConnectionGauge(metrics.WebSocketConnections))

	var publisher notify.Publisher = wsHub
	var relay *redis.Relay
	if redisClient != nil {
		relay = redis.NewRelay(redisClient, wsHub, log)
		publisher = relay
	}

	workers := pool.NewWorkerPool(cfg.Realtime.Workers, cfg.Realtime.QueueSize, log)
	workers.OnPanic = func(interface{}) { metrics.RecordPanic() }
	notifier := notify.NewNotifier(publisher, notify.Options{
		EnqueueTimeout: cfg.Realtime.EnqueueTimeout,
		PushTimeout:    cfg.Realtime.PushTimeout,
	}, log,
		notify.WithPool(workers),
		notify.WithRecorder(metrics),
		notify.WithIgnorable(websocket.ErrNoSubscribers),
	)

	moderator := moderation.NewClient(moderationOptions(cfg.Moderation), log, moderation.WithObserver(metrics))
	if !moderator.Enabled() {
		log.Warn("moderation api key not configured, comments will wait for manual review")
	}

	// 服务层
	messageService := service.NewMessageService(store, security.NewHTMLSanitizer(), notifier, log,
		service.WithMessageRecorder(metrics))
	defer messageService.Close()
	commentService := service.NewCommentService(store, moderator, moderator, log,
		service.WithCommentRecorder(metrics),
		service.WithCommentRateLimit(cfg.Comment.RatePerMinute))
	defer commentService.Close()
	categoryService := service.NewCategoryService(store, log)
	categoryService.OnChange(messageService.ForgetCategory)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:              cfg,
		AuthService:         auth.NewService(store, jwtManager, log),
		MessageService:      messageService,
		CommentService:      commentService,
		NotificationService: service.NewNotificationService(store, log),
		DashboardService:    service.NewDashboardService(store, log),
		CategoryService:     categoryService,
		JWTManager:          jwtManager,
		WebSocketHub:        wsHub,
		Metrics:             metrics,
		Health:              healthChecker,
		Logger:              log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	workers.Start(groupCtx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	if relay != nil {
		group.Go(func() error {
			log.Info("starting realtime relay", zap.String("channel", redis.RealtimeChannel))
			return relay.Run(groupCtx)
		})
	}

	// 优雅关闭
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		workers.Stop()

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", zap.Error(err))
		return
	}
	log.Info("server exited cleanly")
}

// openStore 按配置选择存储：未配置数据库时使用内存存储，
// 启用 Redis 时数据库之上叠加分类缓存
func openStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, hc *health.HealthChecker, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	db, err := postgres.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	// PostgreSQL 额外使用 pgx 连接池做就绪探测，避免探针占用 gorm 连接
	if cfg.Database.Type == config.DatabasePostgres {
		pgClient, err := postgres.New(ctx, cfg.Database, log)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		hc.AddReadinessCheck("postgres", pgClient.Ping)
		go func() {
			<-ctx.Done()
			pgClient.Close()
		}()
	}

	if redisClient == nil {
		return db, nil
	}
	log.Info("using hybrid storage (database + redis category cache)")
	return hybrid.NewStore(db, redis.NewCategoryCache(redisClient, 10*time.Minute), log), nil
}

// moderationOptions 审核客户端配置
func moderationOptions(cfg config.ModerationConfig) moderation.Options {
	return moderation.Options{
		APIKey:             cfg.APIKey,
		BaseURL:            cfg.BaseURL,
		ToxicityModel:      cfg.ToxicityModel,
		Threshold:          cfg.Threshold,
		TranslateENTRModel: cfg.TranslateENTRModel,
		TranslateTRENModel: cfg.TranslateTRENModel,
		Timeout:            cfg.Timeout,
		MaxAttempts:        cfg.MaxAttempts,
		RetryBackoff:       cfg.RetryBackoff,
		RatePerSecond:      cfg.RatePerSecond,
		Burst:              cfg.Burst,
	}
}

// createDefaultAdmin 创建默认管理员（仅开发环境）
func createDefaultAdmin(ctx context.Context, store storage.Store, log *zap.Logger) {
	const (
		email    = "admin@notika.local"
		username = "admin"
		password = "Admin123456!"
	)

	if _, err := store.GetUserByEmail(ctx, email); err == nil {
		log.Info("default admin already exists, skipping", zap.String("email", email))
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Error("failed to hash password", zap.Error(err))
		return
	}

	now := time.Now()
	user := &domain.User{
		ID:           "admin-0001",
		Name:         "Sistem",
		Surname:      "Yöneticisi",
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        domain.Roles{domain.RoleAdmin},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		log.Error("failed to create default admin", zap.Error(err))
		return
	}

	log.Warn("default admin created (development only)",
		zap.String("email", email),
		zap.String("password", password))
}
