package extension

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ragatool/backend-go/internal/queue"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 << 20
)

// Upgrader 扩展客户端 websocket 升级器
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeConn 驱动一个扩展客户端连接直到断开
// 读循环将消息交给 broker，写循环从客户端出站队列取消息写出
func (m *Manager) ServeConn(ctx context.Context, conn *websocket.Conn) {
	clientID, outbound := m.registry.RegisterClient(ctx)
	log := m.logger.With(zap.String("client_id", clientID))

	conn.SetReadLimit(maxMessageSize)

	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		m.writeLoop(conn, outbound, log)
		closeConn()
	}()

	m.readLoop(ctx, conn, clientID, log)

	m.registry.UnregisterClient(context.WithoutCancel(ctx), clientID)
	<-writerDone
	closeConn()
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn, clientID string, log *zap.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("扩展客户端连接异常断开", zap.Error(err))
			} else {
				log.Debug("扩展客户端连接已关闭", zap.Error(err))
			}
			return
		}
		m.broker.HandleIncoming(ctx, clientID, data)
	}
}

func (m *Manager) writeLoop(conn *websocket.Conn, outbound *queue.Unbounded[ServerMessage], log *zap.Logger) {
	for {
		msg, err := outbound.Pop(context.Background())
		if err != nil {
			if !errors.Is(err, queue.ErrClosed) {
				log.Error("读取出站队列失败", zap.Error(err))
			}
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Warn("写入扩展客户端失败", zap.String("topic", msg.Topic), zap.Error(err))
			return
		}
	}
}
