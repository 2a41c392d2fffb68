package extension

import (
	"context"
	"time"

	"github.com/ragatool/backend-go/internal/logger"
	"go.uber.org/zap"
)

// Options 扩展管理器配置
type Options struct {
	HeartbeatInterval time.Duration
	CallTimeout       time.Duration
	Extractor         TextExtractor
	Logger            *zap.Logger
}

// Manager 组合注册表、关联代理与心跳监控
type Manager struct {
	registry  *Registry
	broker    *Broker
	heartbeat *Heartbeat
	logger    *zap.Logger
}

// NewManager 创建扩展管理器，HeartbeatInterval <= 0 时心跳不启动
func NewManager(publisher Publisher, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logger.Named("extension")
	}
	registry := NewRegistry(publisher, opts.Logger)
	return &Manager{
		registry: registry,
		broker: NewBroker(registry, BrokerOptions{
			Timeout:   opts.CallTimeout,
			Extractor: opts.Extractor,
			Logger:    opts.Logger.Named("broker"),
		}),
		heartbeat: NewHeartbeat(registry, opts.HeartbeatInterval),
		logger:    opts.Logger,
	}
}

// Registry 客户端注册表
func (m *Manager) Registry() *Registry { return m.registry }

// Broker 关联代理
func (m *Manager) Broker() *Broker { return m.broker }

// Start 启动心跳，心跳已关闭时返回 false
func (m *Manager) Start() bool {
	return m.heartbeat.Start()
}

// Call 调用指定客户端的命令
func (m *Manager) Call(ctx context.Context, clientID, command string, input any, timeout time.Duration) (map[string]any, error) {
	return m.broker.Call(ctx, clientID, command, input, timeout)
}

// ConnectedTools 已完成握手的客户端列表
func (m *Manager) ConnectedTools() []ExtensionTool {
	return m.registry.RegisteredClients(true)
}

// Shutdown 停止心跳并断开所有客户端
func (m *Manager) Shutdown(ctx context.Context) {
	m.heartbeat.Stop()
	m.registry.CloseAll(ctx)
	m.logger.Info("扩展管理器已关闭", zap.Int("pending_requests", m.broker.PendingCount()))
}
