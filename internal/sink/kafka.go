package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/ragatool/backend-go/internal/models"
	"go.uber.org/zap"
)

// KafkaSink 将总线消息镜像到 Kafka
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	topics   map[models.Topic]bool
	logger   *zap.Logger
}

// NewSyncProducer 按默认参数创建 sarama 同步生产者
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}
	return producer, nil
}

// NewKafkaSink 创建 Kafka sink，topics 为空时转发所有主题
func NewKafkaSink(producer sarama.SyncProducer, topic string, log *zap.Logger, topics ...models.Topic) *KafkaSink {
	s := &KafkaSink{
		producer: producer,
		topic:    topic,
		logger:   log,
	}
	if len(topics) > 0 {
		s.topics = make(map[models.Topic]bool, len(topics))
		for _, t := range topics {
			s.topics[t] = true
		}
	}
	return s
}

// Send 发送一条消息，key 为 collectionId
func (s *KafkaSink) Send(_ context.Context, msg models.Message) error {
	if s.topics != nil && !s.topics[msg.Topic] {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	record := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("topic"), Value: []byte(msg.Topic)},
		},
	}
	if msg.CollectionID != nil {
		record.Key = sarama.StringEncoder(*msg.CollectionID)
	}

	partition, offset, err := s.producer.SendMessage(record)
	if err != nil {
		return fmt.Errorf("发送Kafka消息失败: %w", err)
	}

	s.logger.Debug("Kafka消息发送成功",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("message_id", msg.ID))
	return nil
}

// Close 关闭生产者
func (s *KafkaSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}
