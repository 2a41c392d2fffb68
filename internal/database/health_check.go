package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthChecker 数据库健康检查器
type HealthChecker struct {
	db            *sql.DB
	logger        *logrus.Logger
	checkInterval time.Duration
	pingTimeout   time.Duration

	mu        sync.RWMutex
	healthy   bool
	lastCheck time.Time
	lastError error
	latency   time.Duration

	stop chan struct{}
	done chan struct{}
}

// HealthCheckResult 健康检查结果
type HealthCheckResult struct {
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime string    `json:"response_time,omitempty"`
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(db *sql.DB, logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		db:            db,
		logger:        logger,
		checkInterval: 30 * time.Second,
		pingTimeout:   5 * time.Second,
	}
}

// SetCheckInterval 设置检查间隔，需在 Start 之前调用
func (hc *HealthChecker) SetCheckInterval(interval time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkInterval = interval
}

// Start 在后台周期性检查，重复调用无副作用
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.Lock()
	if hc.stop != nil {
		hc.mu.Unlock()
		return
	}
	hc.stop = make(chan struct{})
	hc.done = make(chan struct{})
	interval := hc.checkInterval
	stop, done := hc.stop, hc.done
	hc.mu.Unlock()

	hc.logger.Info("Starting database health checker")

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		_ = hc.Check(ctx)
		for {
			select {
			case <-ctx.Done():
				hc.logger.Info("Database health checker stopped")
				return
			case <-stop:
				hc.logger.Info("Database health checker stopped")
				return
			case <-ticker.C:
				_ = hc.Check(ctx)
			}
		}
	}()
}

// Stop 停止后台检查并等待退出
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	stop, done := hc.stop, hc.done
	hc.stop, hc.done = nil, nil
	hc.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Check 执行单次健康检查
func (hc *HealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, hc.pingTimeout)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(ctx)
	elapsed := time.Since(start)

	hc.mu.Lock()
	wasHealthy := hc.healthy
	hc.lastCheck = time.Now()
	hc.latency = elapsed
	hc.lastError = err
	hc.healthy = err == nil
	hc.mu.Unlock()

	if err != nil {
		hc.logger.WithFields(logrus.Fields{
			"error":         err.Error(),
			"response_time": elapsed,
		}).Warn("Database health check failed")
		return err
	}

	if !wasHealthy {
		hc.logger.WithField("response_time", elapsed).Info("Database connection restored")
	}
	return nil
}

// IsHealthy 获取当前健康状态
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.healthy
}

// GetHealthResult 获取健康检查结果
func (hc *HealthChecker) GetHealthResult() HealthCheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := HealthCheckResult{
		Healthy:   hc.healthy,
		LastCheck: hc.lastCheck,
	}
	if hc.lastError != nil {
		result.LastError = hc.lastError.Error()
	}
	if !hc.lastCheck.IsZero() {
		result.ResponseTime = hc.latency.String()
	}
	return result
}
