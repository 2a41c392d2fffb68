package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	"github.com/ragatool/backend-go/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMessage(topic models.Topic) models.Message {
	cid := "c-1"
	return models.Message{
		ID:           "m-1",
		Timestamp:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		CollectionID: &cid,
		Topic:        topic,
		Text:         "Task created",
	}
}

func TestKafkaSinkSendsJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got map[string]any
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got["topic"] != "TASK" || got["message"] != "Task created" || got["collectionId"] != "c-1" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	s := NewKafkaSink(producer, "ragatool.messages", zap.NewNop())
	require.NoError(t, s.Send(context.Background(), testMessage(models.TopicTask)))
	require.NoError(t, s.Close())
}

func TestKafkaSinkTopicFilter(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()

	s := NewKafkaSink(producer, "ragatool.messages", zap.NewNop(), models.TopicLog)
	// INFO 被过滤，不会调用生产者
	require.NoError(t, s.Send(context.Background(), testMessage(models.TopicInfo)))
	require.NoError(t, s.Send(context.Background(), testMessage(models.TopicLog)))
	require.NoError(t, s.Close())
}

func TestKafkaSinkPropagatesError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(errors.New("broker down"))

	s := NewKafkaSink(producer, "ragatool.messages", zap.NewNop())
	err := s.Send(context.Background(), testMessage(models.TopicLog))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	require.NoError(t, s.Close())
}

type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisSinkPublishes(t *testing.T) {
	client := &fakeRedis{}
	s := NewRedisSink(client, "")

	require.NoError(t, s.Send(context.Background(), testMessage(models.TopicInfo)))
	assert.Equal(t, DefaultRedisChannel, client.channel)

	var got models.Message
	require.NoError(t, json.Unmarshal(client.payload, &got))
	assert.Equal(t, "m-1", got.ID)
	assert.Equal(t, models.TopicInfo, got.Topic)
}

func TestRedisSinkError(t *testing.T) {
	s := NewRedisSink(&fakeRedis{err: errors.New("conn refused")}, "custom")
	err := s.Send(context.Background(), testMessage(models.TopicInfo))
	assert.ErrorContains(t, err, "conn refused")
}
