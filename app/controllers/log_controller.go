package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ragatool/backend-go/internal/logger"
	"github.com/ragatool/backend-go/internal/metrics"
	"github.com/ragatool/backend-go/internal/models"
	"go.uber.org/zap"
)

// LogAPI 日志接口依赖的服务
type LogAPI interface {
	Latest(ctx context.Context, n int) ([]models.Message, error)
	Stream(ctx context.Context, emit func(models.Message) error) error
}

// LogController 日志查询与 SSE 实时推送
type LogController struct {
	BaseController
	Logs LogAPI
}

// Latest 返回最新 n 条日志
func (c *LogController) Latest() {
	n, err := c.GetInt("n", 10)
	if err != nil {
		n = 10
	}
	logs, err := c.Logs.Latest(c.Ctx.Request.Context(), n)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// Stream 以 text/event-stream 推送消息总线，直到客户端断开
func (c *LogController) Stream() {
	c.EnableRender = false
	w := c.Ctx.ResponseWriter
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	metrics.SSEStreams.Inc()
	defer metrics.SSEStreams.Dec()

	err := c.Logs.Stream(c.Ctx.Request.Context(), func(msg models.Message) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		w.Flush()
		return nil
	})
	if err != nil {
		logger.Debug("log stream closed", zap.Error(err))
	}
}
