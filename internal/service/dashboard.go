package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"notika/backend/internal/domain"
	"notika/backend/internal/storage"
)

const (
	dashboardRecentLimit   = 6
	dashboardCategoryLimit = 5
)

// DashboardStore 仪表盘依赖的存储
type DashboardStore interface {
	storage.StatsRepository
	storage.MessageRepository
	storage.CommentRepository
}

// DashboardService 管理端仪表盘
type DashboardService struct {
	store DashboardStore
	log   *zap.Logger
}

// NewDashboardService 创建仪表盘服务
func NewDashboardService(store DashboardStore, log *zap.Logger) *DashboardService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DashboardService{store: store, log: log.Named("dashboard")}
}

// Get 汇总计数、最新邮件与评论、分类统计，各项并发查询
func (s *DashboardService) Get(ctx context.Context) (*domain.Dashboard, error) {
	var (
		out    domain.Dashboard
		counts *domain.DashboardCounts
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.store.DashboardCounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.RecentMessages, err = s.store.RecentMessages(gctx, dashboardRecentLimit)
		return err
	})
	g.Go(func() error {
		var err error
		out.RecentComments, err = s.store.ListComments(gctx, dashboardRecentLimit)
		return err
	})
	g.Go(func() error {
		var err error
		out.CategoryStats, err = s.store.CategoryStats(gctx, dashboardCategoryLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		s.log.Error("dashboard query failed", zap.Error(err))
		return nil, err
	}

	if counts != nil {
		out.Counts = *counts
	}
	return &out, nil
}
