package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// PingFunc 依赖的连通性检查
type PingFunc func(ctx context.Context) error

// HealthChecker 健康检查器
//
// 存活检查只看进程本身；就绪检查逐个探测数据库、Redis 等依赖。
type HealthChecker struct {
	health  healthcheck.Handler
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]PingFunc
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}

	hc := &HealthChecker{
		health:  healthcheck.NewHandler(),
		logger:  logger,
		timeout: 3 * time.Second,
		checks:  make(map[string]PingFunc),
	}

	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	return hc
}

// AddReadinessCheck 注册依赖检查
func (hc *HealthChecker) AddReadinessCheck(name string, ping PingFunc) {
	hc.mu.Lock()
	hc.checks[name] = ping
	hc.mu.Unlock()

	hc.health.AddReadinessCheck(name, healthcheck.Timeout(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
		defer cancel()
		return ping(ctx)
	}, hc.timeout))
}

// LiveHandler 存活检查
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 就绪检查
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// CheckHealth 执行所有依赖检查并返回可读的结果
func (hc *HealthChecker) CheckHealth(ctx context.Context) map[string]string {
	hc.mu.RLock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	hc.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]string, len(names)+1)
	for _, name := range names {
		hc.mu.RLock()
		ping := hc.checks[name]
		hc.mu.RUnlock()

		checkCtx, cancel := context.WithTimeout(ctx, hc.timeout)
		err := ping(checkCtx)
		cancel()

		if err != nil {
			results[name] = fmt.Sprintf("ERROR: %v", err)
			hc.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		results[name] = "OK"
	}
	results["timestamp"] = time.Now().Format(time.RFC3339)
	return results
}

// Healthy 所有依赖检查是否都通过
func Healthy(results map[string]string) bool {
	for name, v := range results {
		if name == "timestamp" {
			continue
		}
		if v != "OK" {
			return false
		}
	}
	return true
}
