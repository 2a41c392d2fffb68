package extension

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ragatool/backend-go/internal/logger"
	"github.com/ragatool/backend-go/internal/metrics"
	"github.com/ragatool/backend-go/internal/models"
	"github.com/ragatool/backend-go/internal/queue"
	"go.uber.org/zap"
)

// hubCollection 扩展相关消息在总线上使用的 collectionId
const hubCollection = "extension"

// Publisher 连接/断开事件的发布者
type Publisher interface {
	Publish(ctx context.Context, collectionID string, topic models.Topic, text string)
}

type client struct {
	id          string
	outbound    *queue.Unbounded[ServerMessage]
	state       ClientState
	tool        *ExtensionTool
	connectedAt time.Time
	lastSeen    time.Time
}

func (c *client) snapshot() ExtensionTool {
	tool := ExtensionTool{ClientID: c.id}
	if c.tool != nil {
		tool = *c.tool
		tool.SupportedCommands = append([]SupportedCommand(nil), c.tool.SupportedCommands...)
	}
	tool.State = c.state
	tool.ConnectedAt = c.connectedAt
	tool.LastSeen = c.lastSeen
	return tool
}

// Registry 扩展客户端注册表，每个客户端一个出站队列
type Registry struct {
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu           sync.RWMutex
	clients      map[string]*client
	onDisconnect []func(clientID string)
}

// NewRegistry 创建注册表，publisher 可为 nil
func NewRegistry(publisher Publisher, log *zap.Logger) *Registry {
	if log == nil {
		log = logger.Named("extension")
	}
	return &Registry{
		publisher: publisher,
		logger:    log,
		now:       time.Now,
		clients:   make(map[string]*client),
	}
}

// RegisterClient 注册新客户端，返回客户端ID与其出站队列
func (r *Registry) RegisterClient(ctx context.Context) (string, *queue.Unbounded[ServerMessage]) {
	now := r.now()
	c := &client{
		id:          uuid.NewString(),
		outbound:    queue.New[ServerMessage](0),
		state:       StateConnected,
		connectedAt: now,
		lastSeen:    now,
	}

	r.mu.Lock()
	r.clients[c.id] = c
	r.mu.Unlock()

	metrics.ExtensionClients.Inc()
	r.logger.Info("扩展客户端已连接", zap.String("client_id", c.id))

	r.Send(c.id, newServerMessage("", TopicExtensionConnected,
		fmt.Sprintf("Extension client %s connected.", c.id), ""))
	if r.publisher != nil {
		r.publisher.Publish(ctx, hubCollection, models.TopicInfo, "ExtensionTool connected")
	}
	return c.id, c.outbound
}

// UnregisterClient 注销客户端并关闭其出站队列，客户端不存在时返回 false
func (r *Registry) UnregisterClient(ctx context.Context, clientID string) bool {
	r.mu.Lock()
	c, ok := r.clients[clientID]
	if ok {
		delete(r.clients, clientID)
		c.state = StateDisconnected
	}
	hooks := r.onDisconnect
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("注销未知的扩展客户端", zap.String("client_id", clientID))
		return false
	}

	c.outbound.Close()
	for _, fn := range hooks {
		fn(clientID)
	}
	metrics.ExtensionClients.Dec()
	r.logger.Info("扩展客户端已断开", zap.String("client_id", clientID))
	if r.publisher != nil {
		r.publisher.Publish(ctx, hubCollection, models.TopicInfo, "ExtensionTool disconnected")
	}
	return true
}

// Send 向指定客户端的出站队列投递消息
func (r *Registry) Send(clientID string, msg ServerMessage) bool {
	r.mu.RLock()
	c, ok := r.clients[clientID]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("客户端不存在，无法发送消息",
			zap.String("client_id", clientID),
			zap.String("topic", msg.Topic),
		)
		return false
	}
	if _, err := c.outbound.Push(msg); err != nil {
		r.logger.Warn("客户端出站队列已关闭", zap.String("client_id", clientID), zap.Error(err))
		return false
	}
	r.logger.Debug("消息已投递到客户端",
		zap.String("client_id", clientID),
		zap.String("topic", msg.Topic),
	)
	return true
}

// Broadcast 向所有客户端发送消息，投递失败的客户端会被注销。返回成功投递数
func (r *Registry) Broadcast(msg ServerMessage) int {
	r.mu.RLock()
	targets := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if _, err := c.outbound.Push(msg); err != nil {
			r.logger.Warn("广播失败，注销客户端", zap.String("client_id", c.id), zap.Error(err))
			r.UnregisterClient(context.Background(), c.id)
			continue
		}
		delivered++
	}
	return delivered
}

// Connected 客户端是否在线
func (r *Registry) Connected(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[clientID]
	return ok
}

// Count 在线客户端数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// RegisteredClients 获取客户端元数据快照，readyOnly 为 true 时只返回已完成握手的客户端
func (r *Registry) RegisteredClients(readyOnly bool) []ExtensionTool {
	r.mu.RLock()
	tools := make([]ExtensionTool, 0, len(r.clients))
	for _, c := range r.clients {
		if readyOnly && c.state != StateReady {
			continue
		}
		tools = append(tools, c.snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].ConnectedAt.Before(tools[j].ConnectedAt)
	})
	return tools
}

// setMetadata 记录握手元数据并将客户端置为 READY
func (r *Registry) setMetadata(clientID string, tool ExtensionTool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[clientID]
	if !ok {
		return false
	}
	c.tool = &tool
	c.state = StateReady
	c.lastSeen = r.now()
	return true
}

// touch 更新最后活跃时间
func (r *Registry) touch(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[clientID]; ok {
		c.lastSeen = r.now()
	}
}

// OnDisconnect 注册客户端注销后的回调
func (r *Registry) OnDisconnect(fn func(clientID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDisconnect = append(r.onDisconnect, fn)
}

// CloseAll 注销所有客户端
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.UnregisterClient(ctx, id)
	}
}
