package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ragatool/backend-go/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel 默认发布频道
const DefaultRedisChannel = "ragatool:messages"

// RedisPublisher go-redis 客户端中 sink 用到的部分
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink 通过 Redis pub/sub 广播总线消息，供其他实例订阅
type RedisSink struct {
	client  RedisPublisher
	channel string
}

// NewRedisSink 创建 Redis sink
func NewRedisSink(client RedisPublisher, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{client: client, channel: channel}
}

// Send 发布一条消息
func (s *RedisSink) Send(ctx context.Context, msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}
