package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	apperrors "github.com/ragatool/backend-go/internal/errors"
	"github.com/ragatool/backend-go/internal/extension"
	"github.com/ragatool/backend-go/internal/logger"
	"go.uber.org/zap"
)

// DefaultToolCallTimeout call_tool 接口等待扩展响应的默认时长
const DefaultToolCallTimeout = 10 * time.Second

// ExtensionAPI 扩展接口依赖的管理器
type ExtensionAPI interface {
	ServeConn(ctx context.Context, conn *websocket.Conn)
	ConnectedTools() []extension.ExtensionTool
	Call(ctx context.Context, clientID, command string, input any, timeout time.Duration) (map[string]any, error)
}

// ExtensionController 浏览器扩展接入与远程命令调用
type ExtensionController struct {
	BaseController
	Extensions  ExtensionAPI
	CallTimeout time.Duration
}

type callToolRequest struct {
	ExtensionID string         `json:"extension_id" validate:"required"`
	CommandName string         `json:"command_name" validate:"required"`
	Arguments   map[string]any `json:"arguments"`
}

// Connect 升级为 WebSocket 并阻塞到连接结束
func (c *ExtensionController) Connect() {
	c.EnableRender = false
	conn, err := extension.Upgrader.Upgrade(c.Ctx.ResponseWriter, c.Ctx.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", apperrors.ClientIP(c.Ctx.Request)),
			zap.Error(err))
		return
	}
	c.Extensions.ServeConn(c.Ctx.Request.Context(), conn)
}

// ConnectedTools 列出已完成握手的扩展
func (c *ExtensionController) ConnectedTools() {
	c.JSON(http.StatusOK, c.Extensions.ConnectedTools())
}

// CallTool 向指定扩展发送命令并等待关联响应
func (c *ExtensionController) CallTool() {
	var req callToolRequest
	if !c.bindJSON(&req) {
		return
	}
	if req.Arguments == nil {
		req.Arguments = map[string]any{}
	}

	timeout := c.CallTimeout
	if timeout <= 0 {
		timeout = DefaultToolCallTimeout
	}
	reply, err := c.Extensions.Call(c.Ctx.Request.Context(), req.ExtensionID, req.CommandName, req.Arguments, timeout)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"result": reply["payload"],
	})
}
