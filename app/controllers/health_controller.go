package controllers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ragatool/backend-go/internal/database"
	"github.com/ragatool/backend-go/internal/dispatcher"
)

// DatabaseHealth 数据库健康状态
type DatabaseHealth interface {
	GetHealthStatus() database.HealthCheckResult
}

// DispatcherStats 调度器运行状态
type DispatcherStats interface {
	Stats() dispatcher.Stats
}

// RootController 根控制器
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]string{"message": "RAG tool backend"})
}

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
	DB         DatabaseHealth
	Dispatcher DispatcherStats
}

// Health 数据库不健康时返回 503
func (c *HealthController) Health() {
	status := http.StatusOK
	body := map[string]interface{}{"status": "healthy"}

	if c.DB != nil {
		db := c.DB.GetHealthStatus()
		body["database"] = db
		if !db.Healthy && !db.LastCheck.IsZero() {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
		}
	}
	if c.Dispatcher != nil {
		body["dispatcher"] = c.Dispatcher.Stats()
	}
	c.JSON(status, body)
}

// MetricsController 指标控制器
type MetricsController struct {
	BaseController
}

// Metrics 返回Prometheus格式的指标
func (c *MetricsController) Metrics() {
	c.EnableRender = false
	promhttp.Handler().ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
}
