package extension

import (
	"sync"
	"time"

	"github.com/ragatool/backend-go/internal/metrics"
	"go.uber.org/zap"
)

// Heartbeat 定期向所有扩展客户端广播 ping
type Heartbeat struct {
	registry *Registry
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewHeartbeat 创建心跳监控，interval <= 0 表示关闭心跳
func NewHeartbeat(registry *Registry, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		registry: registry,
		interval: interval,
		logger:   registry.logger.Named("heartbeat"),
	}
}

// Start 启动心跳循环，心跳已关闭或已在运行时返回 false
func (h *Heartbeat) Start() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.interval <= 0 {
		h.logger.Info("心跳监控已关闭", zap.Duration("interval", h.interval))
		return false
	}
	if h.running {
		return false
	}
	h.running = true
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})
	go h.loop(h.stopCh, h.doneCh)

	h.logger.Info("心跳监控已启动", zap.Duration("interval", h.interval))
	return true
}

// Stop 停止心跳循环并等待其退出，可重复调用
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.stopCh)
	done := h.doneCh
	h.mu.Unlock()

	<-done
	h.logger.Info("心跳监控已停止")
}

// Running 心跳是否在运行
func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *Heartbeat) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.beat()
		}
	}
}

func (h *Heartbeat) beat() {
	if h.registry.Count() == 0 {
		return
	}
	delivered := h.registry.Broadcast(newServerMessage("", TopicPing, "ping", ""))
	metrics.HeartbeatsSent.Add(float64(delivered))
	h.logger.Debug("已广播心跳", zap.Int("clients", delivered))
}
