package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ragatool/backend-go/internal/logger"
	"github.com/ragatool/backend-go/internal/metrics"
	"github.com/ragatool/backend-go/internal/models"
	"github.com/ragatool/backend-go/internal/queue"
	"go.uber.org/zap"
)

// ErrClosed 消息总线或订阅已关闭
var ErrClosed = errors.New("message hub closed")

// LogStore LOG 主题消息的持久化
type LogStore interface {
	CreateLog(ctx context.Context, collectionID *string, topic models.Topic, text string) (models.Message, error)
}

// Sink 外部消息转发目标
type Sink interface {
	Send(ctx context.Context, msg models.Message) error
}

// Options 消息总线配置
type Options struct {
	// MaxBacklog Subscribe 订阅队列的积压上限，<= 0 表示不限制
	MaxBacklog int
	Logger     *zap.Logger
	Now        func() time.Time
}

// MessageHub 发布订阅消息总线
// 每个订阅者拥有独立队列，Publish 将消息复制到所有订阅队列
type MessageHub struct {
	store      LogStore
	logger     *zap.Logger
	now        func() time.Time
	maxBacklog int

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	def   *Subscription
	sinks sync.WaitGroup
}

// NewMessageHub 创建消息总线。store 为 nil 时 LOG 消息只在内存中传递
func NewMessageHub(store LogStore, opts Options) *MessageHub {
	if opts.Logger == nil {
		opts.Logger = logger.Named("hub")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &MessageHub{
		store:      store,
		logger:     opts.Logger,
		now:        opts.Now,
		maxBacklog: opts.MaxBacklog,
		subs:       make(map[uint64]*Subscription),
	}
}

// Publish 发布消息，永不向调用方返回错误
// LOG 主题先落库再入队，落库失败时仍投递一条内存消息
func (h *MessageHub) Publish(ctx context.Context, collectionID string, topic models.Topic, text string) {
	var cid *string
	if collectionID != "" {
		cid = &collectionID
	}

	var msg models.Message
	persisted := false
	if topic == models.TopicLog && h.store != nil {
		// 任务被取消后仍需记录日志，落库不跟随调用方的取消
		stored, err := h.store.CreateLog(context.WithoutCancel(ctx), cid, topic, text)
		if err != nil {
			metrics.LogPersistFailures.Inc()
			h.logger.Error("日志持久化失败，仅内存投递",
				zap.String("collection_id", collectionID),
				zap.String("message", text),
				zap.Error(err),
			)
		} else {
			msg = stored
			persisted = true
		}
	}
	if !persisted {
		msg = models.Message{
			ID:           uuid.NewString(),
			Timestamp:    h.now().UTC(),
			CollectionID: cid,
			Topic:        topic,
			Text:         text,
		}
	}

	metrics.MessagesPublished.WithLabelValues(string(topic)).Inc()
	h.fanOut(msg)
}

func (h *MessageHub) fanOut(msg models.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		h.logger.Debug("消息总线已关闭，丢弃消息", zap.String("topic", string(msg.Topic)))
		return
	}
	for id, sub := range h.subs {
		dropped, err := sub.q.Push(msg)
		if err != nil {
			continue
		}
		if dropped {
			metrics.MessagesDropped.Inc()
			h.logger.Warn("订阅队列积压已满，丢弃最旧消息", zap.Uint64("subscription", id))
		}
	}
}

// Consume 从默认队列阻塞读取下一条消息，按发布顺序返回
// 默认队列在首次 Consume 时创建且不限长度，之前发布的消息不会进入该队列
func (h *MessageHub) Consume(ctx context.Context) (models.Message, error) {
	return h.defaultSub().Next(ctx)
}

func (h *MessageHub) defaultSub() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.def == nil {
		h.def = h.subscribeLocked(0)
	}
	return h.def
}

// Subscribe 注册新的订阅者，只接收注册之后发布的消息
func (h *MessageHub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribeLocked(h.maxBacklog)
}

func (h *MessageHub) subscribeLocked(limit int) *Subscription {
	h.nextID++
	sub := &Subscription{
		id:  h.nextID,
		hub: h,
		q:   queue.New[models.Message](limit),
	}
	if h.closed {
		sub.q.Close()
		return sub
	}
	h.subs[sub.id] = sub
	metrics.Subscribers.Inc()
	return sub
}

func (h *MessageHub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[id]; ok {
		delete(h.subs, id)
		metrics.Subscribers.Dec()
	}
}

// AttachSink 启动协程把消息转发到外部 Sink，直到 ctx 结束或总线关闭
func (h *MessageHub) AttachSink(ctx context.Context, name string, sink Sink) {
	sub := h.Subscribe()
	log := h.logger.With(zap.String("sink", name))

	h.sinks.Add(1)
	go func() {
		defer h.sinks.Done()
		defer sub.Close()

		log.Info("消息转发已启动")
		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				log.Info("消息转发已停止", zap.Error(err))
				return
			}
			if err := sink.Send(ctx, msg); err != nil {
				metrics.SinkErrors.WithLabelValues(name).Inc()
				log.Warn("消息转发失败", zap.String("message_id", msg.ID), zap.Error(err))
			}
		}
	}()
}

// Close 关闭总线，唤醒所有订阅者并等待转发协程退出
func (h *MessageHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		sub.q.Close()
		delete(h.subs, id)
		metrics.Subscribers.Dec()
	}
	h.mu.Unlock()

	h.sinks.Wait()
}

// Subscription 独立的订阅队列
type Subscription struct {
	id   uint64
	hub  *MessageHub
	q    *queue.Unbounded[models.Message]
	once sync.Once
}

// Next 阻塞读取下一条消息，订阅关闭且队列取空后返回 ErrClosed
func (s *Subscription) Next(ctx context.Context) (models.Message, error) {
	msg, err := s.q.Pop(ctx)
	if errors.Is(err, queue.ErrClosed) {
		return msg, ErrClosed
	}
	return msg, err
}

// Pending 队列中尚未读取的消息数
func (s *Subscription) Pending() int {
	return s.q.Len()
}

// Close 取消订阅
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s.id)
		s.q.Close()
	})
}
