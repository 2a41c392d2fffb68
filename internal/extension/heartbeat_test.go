package extension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHeartbeatBroadcastsPing(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop())
	_, q := connect(t, r)

	hb := NewHeartbeat(r, 20*time.Millisecond)
	require.True(t, hb.Start())
	defer hb.Stop()

	msg := nextMessage(t, q)
	assert.Equal(t, TopicPing, msg.Topic)
	assert.Equal(t, "ping", msg.Message)
}

func TestHeartbeatStartStopIdempotent(t *testing.T) {
	hb := NewHeartbeat(NewRegistry(nil, zap.NewNop()), 10*time.Millisecond)

	assert.True(t, hb.Start())
	assert.False(t, hb.Start())
	assert.True(t, hb.Running())

	hb.Stop()
	hb.Stop()
	assert.False(t, hb.Running())

	// 停止后可再次启动
	assert.True(t, hb.Start())
	hb.Stop()
}

func TestHeartbeatStopsSending(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop())
	_, q := connect(t, r)

	hb := NewHeartbeat(r, 10*time.Millisecond)
	hb.Start()
	nextMessage(t, q)
	hb.Stop()

	// 丢弃停止前可能已入队的心跳
	for {
		if _, ok := q.TryPop(); !ok {
			break
		}
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, q.Len())
}

func TestHeartbeatDoesNotEvictSilentClients(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop())
	id, _ := connect(t, r)

	hb := NewHeartbeat(r, 5*time.Millisecond)
	hb.Start()
	time.Sleep(40 * time.Millisecond)
	hb.Stop()

	assert.True(t, r.Connected(id))
}

func TestHeartbeatDisabledWithoutInterval(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop())
	_, q := connect(t, r)

	for _, interval := range []time.Duration{0, -time.Second} {
		hb := NewHeartbeat(r, interval)
		assert.False(t, hb.Start())
		assert.False(t, hb.Running())
		hb.Stop()
	}

	m := NewManager(nil, Options{Logger: zap.NewNop()})
	assert.False(t, m.Start())
	m.Shutdown(context.Background())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, q.Len())
}

func TestManagerShutdownDisconnectsClients(t *testing.T) {
	m := NewManager(nil, Options{HeartbeatInterval: time.Hour, Logger: zap.NewNop()})
	m.Start()
	id, q := m.Registry().RegisterClient(context.Background())

	m.Shutdown(context.Background())
	assert.False(t, m.Registry().Connected(id))
	assert.True(t, q.Closed())
	assert.False(t, m.heartbeat.Running())
	assert.Empty(t, m.ConnectedTools())
}
