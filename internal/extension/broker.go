package extension

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	apperrors "github.com/ragatool/backend-go/internal/errors"
	"github.com/ragatool/backend-go/internal/logger"
	"github.com/ragatool/backend-go/internal/metrics"
	"go.uber.org/zap"
)

// DefaultCallTimeout 远程调用默认超时
const DefaultCallTimeout = 20 * time.Second

// TextExtractor 从 HTML 中提取正文，用于 apply_filter 后处理
type TextExtractor interface {
	ExtractText(content string) (string, error)
}

// BrokerOptions 关联代理配置
type BrokerOptions struct {
	Timeout   time.Duration
	Extractor TextExtractor
	Logger    *zap.Logger
}

type pendingRequest struct {
	correlationID string
	clientID      string
	reply         chan map[string]any
	gone          chan struct{}
	createdAt     time.Time
}

// Broker 基于 correlation_id 的请求/响应代理
type Broker struct {
	registry   *Registry
	extractor  TextExtractor
	logger     *zap.Logger
	timeout    time.Duration
	validate   *validator.Validate
	translator *apperrors.ErrorTranslator

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// NewBroker 创建关联代理
func NewBroker(registry *Registry, opts BrokerOptions) *Broker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("broker")
	}
	b := &Broker{
		registry:   registry,
		extractor:  opts.Extractor,
		logger:     opts.Logger,
		timeout:    opts.Timeout,
		validate:   validator.New(),
		translator: apperrors.NewErrorTranslator(),
		pending:    make(map[string]*pendingRequest),
	}
	registry.OnDisconnect(b.failClient)
	return b
}

// HandleIncoming 处理客户端发来的一条原始消息
func (b *Broker) HandleIncoming(ctx context.Context, clientID string, raw []byte) {
	b.registry.touch(clientID)

	var full map[string]any
	var msg ClientMessage
	if err := json.Unmarshal(raw, &full); err != nil {
		b.reject(clientID, apperrors.NewValidationError("Invalid message: "+err.Error()))
		return
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		b.reject(clientID, apperrors.NewValidationError("Invalid message: "+err.Error()))
		return
	}

	if msg.CorrelationID != "" && b.resolve(clientID, msg.CorrelationID, full) {
		return
	}

	switch msg.Type {
	case "":
		b.reject(clientID, apperrors.NewInvalidInputError("type", "is required"))
	case TypePing:
		b.handlePing(clientID, msg.Payload)
	case TypePong:
		b.logger.Debug("收到客户端pong", zap.String("client_id", clientID))
	case TypeCommandResponse:
		// 超时后到达或未知的关联ID，直接丢弃
		b.logger.Info("丢弃无匹配请求的命令响应",
			zap.String("client_id", clientID),
			zap.String("correlation_id", msg.CorrelationID),
		)
	case TypeCommand:
		b.logger.Info("收到客户端命令", zap.String("client_id", clientID), zap.ByteString("payload", msg.Payload))
	default:
		b.reject(clientID, apperrors.NewBusinessError(apperrors.ErrCodeBadRequest,
			fmt.Sprintf("Unknown command type: %s", msg.Type)))
	}
}

func (b *Broker) handlePing(clientID string, raw json.RawMessage) {
	if tool, err := b.parseHandshake(clientID, raw); err != nil {
		b.logger.Warn("握手payload格式错误",
			zap.String("client_id", clientID),
			zap.Error(b.translator.Translate(err)),
		)
	} else {
		b.registry.setMetadata(clientID, tool)
		b.logger.Info("扩展客户端握手完成",
			zap.String("client_id", clientID),
			zap.String("application", tool.ApplicationName),
			zap.Int("commands", len(tool.SupportedCommands)),
		)
	}

	b.registry.Send(clientID, newServerMessage("", TopicPong, "pong", ""))
}

func (b *Broker) parseHandshake(clientID string, raw json.RawMessage) (ExtensionTool, error) {
	var payload pingPayload
	if err := json.Unmarshal(raw, &payload.Commands); err != nil {
		var obj pingObject
		if objErr := json.Unmarshal(raw, &obj); objErr != nil {
			return ExtensionTool{}, apperrors.NewValidationError("ping payload must be a list of commands or an object with commands").WithCause(err)
		}
		payload.Commands = obj.expand()
	}
	if err := b.validate.Struct(payload); err != nil {
		return ExtensionTool{}, err
	}

	first := payload.Commands[0]
	tool := ExtensionTool{
		ClientID:          clientID,
		ApplicationName:   first.App,
		UserEntityName:    first.EntityName,
		SupportedCommands: make([]SupportedCommand, 0, len(payload.Commands)),
	}
	for _, cmd := range payload.Commands {
		tool.SupportedCommands = append(tool.SupportedCommands, cmd.toSupported())
	}
	return tool, nil
}

// reject 只向出错的客户端回复 error 消息
func (b *Broker) reject(clientID string, appErr *apperrors.AppError) {
	b.logger.Warn("客户端消息处理失败", zap.String("client_id", clientID), zap.Error(appErr))
	b.registry.Send(clientID, newServerMessage("", TopicError, appErr.Message, ""))
}

// resolve 将响应交给等待中的调用方，返回是否匹配到请求
func (b *Broker) resolve(clientID, correlationID string, reply map[string]any) bool {
	b.mu.Lock()
	req, ok := b.pending[correlationID]
	if ok && req.clientID != clientID {
		b.mu.Unlock()
		b.logger.Warn("响应来自非目标客户端，已忽略",
			zap.String("correlation_id", correlationID),
			zap.String("expected", req.clientID),
			zap.String("actual", clientID),
		)
		return true
	}
	if ok {
		delete(b.pending, correlationID)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}

	metrics.PendingRequests.Dec()
	req.reply <- reply
	b.logger.Debug("已匹配命令响应",
		zap.String("correlation_id", correlationID),
		zap.Duration("latency", time.Since(req.createdAt)),
	)
	return true
}

// remove 删除等待中的请求，返回是否由本次调用删除
func (b *Broker) remove(correlationID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[correlationID]; !ok {
		return false
	}
	delete(b.pending, correlationID)
	metrics.PendingRequests.Dec()
	return true
}

// failClient 客户端断开后立即结束其所有等待中的请求
func (b *Broker) failClient(clientID string) {
	b.mu.Lock()
	var failed []*pendingRequest
	for id, req := range b.pending {
		if req.clientID == clientID {
			delete(b.pending, id)
			failed = append(failed, req)
		}
	}
	b.mu.Unlock()

	for _, req := range failed {
		metrics.PendingRequests.Dec()
		close(req.gone)
	}
	if len(failed) > 0 {
		b.logger.Warn("客户端断开，等待中的请求已失败",
			zap.String("client_id", clientID),
			zap.Int("requests", len(failed)),
		)
	}
}

// Call 向扩展客户端发送命令并等待关联响应
// 客户端未连接或等待期间断开返回 ConnectionError，超时返回 TimeoutError，ctx 结束返回 ctx.Err()
func (b *Broker) Call(ctx context.Context, clientID, commandName string, input any, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = b.timeout
	}
	if !b.registry.Connected(clientID) {
		metrics.ExtensionCalls.WithLabelValues(metrics.OutcomeNotConnected).Inc()
		return nil, apperrors.NewConnectionError(clientID)
	}

	req := &pendingRequest{
		correlationID: uuid.NewString(),
		clientID:      clientID,
		reply:         make(chan map[string]any, 1),
		gone:          make(chan struct{}),
		createdAt:     time.Now(),
	}
	b.mu.Lock()
	b.pending[req.correlationID] = req
	b.mu.Unlock()
	metrics.PendingRequests.Inc()

	if !b.registry.Send(clientID, newServerMessage(commandName, TopicCallCommand, input, req.correlationID)) {
		b.remove(req.correlationID)
		metrics.ExtensionCalls.WithLabelValues(metrics.OutcomeNotConnected).Inc()
		return nil, apperrors.NewConnectionError(clientID)
	}

	b.logger.Info("已发送远程命令",
		zap.String("client_id", clientID),
		zap.String("command", commandName),
		zap.String("correlation_id", req.correlationID),
	)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-req.reply:
		return b.finish(req, reply), nil
	case <-req.gone:
		metrics.ExtensionCalls.WithLabelValues(metrics.OutcomeNotConnected).Inc()
		return nil, apperrors.NewConnectionError(clientID)
	case <-timer.C:
		if !b.remove(req.correlationID) {
			// 响应或断开与超时同时到达，请求已先被取走
			return b.settled(req)
		}
		metrics.ExtensionCalls.WithLabelValues(metrics.OutcomeTimeout).Inc()
		b.logger.Warn("远程命令超时",
			zap.String("client_id", clientID),
			zap.String("command", commandName),
			zap.Duration("timeout", timeout),
		)
		return nil, apperrors.NewTimeoutError(clientID, timeout)
	case <-ctx.Done():
		if !b.remove(req.correlationID) {
			return b.settled(req)
		}
		metrics.ExtensionCalls.WithLabelValues(metrics.OutcomeCancelled).Inc()
		return nil, ctx.Err()
	}
}

// settled 读取已被 resolve 或 failClient 取走的请求结果
func (b *Broker) settled(req *pendingRequest) (map[string]any, error) {
	select {
	case reply := <-req.reply:
		return b.finish(req, reply), nil
	case <-req.gone:
		metrics.ExtensionCalls.WithLabelValues(metrics.OutcomeNotConnected).Inc()
		return nil, apperrors.NewConnectionError(req.clientID)
	}
}

func (b *Broker) finish(req *pendingRequest, reply map[string]any) map[string]any {
	metrics.ExtensionCalls.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.ExtensionCallDuration.Observe(time.Since(req.createdAt).Seconds())
	b.applyFilter(reply)
	return reply
}

// applyFilter 当 payload.apply_filter 指定字段时，对 payload.message[0] 中该字段做正文提取
func (b *Broker) applyFilter(reply map[string]any) {
	if b.extractor == nil {
		return
	}
	payload, ok := reply["payload"].(map[string]any)
	if !ok {
		return
	}
	field, ok := payload["apply_filter"].(string)
	if !ok || field == "" {
		return
	}
	items, ok := payload["message"].([]any)
	if !ok || len(items) == 0 {
		return
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return
	}
	content, ok := first[field].(string)
	if !ok || content == "" {
		return
	}

	text, err := b.extractor.ExtractText(content)
	if err != nil {
		b.logger.Warn("apply_filter 正文提取失败", zap.String("field", field), zap.Error(err))
		return
	}
	first[field] = text
}

// PendingCount 等待响应的请求数量
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
