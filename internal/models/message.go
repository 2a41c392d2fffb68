package models

import "time"

// Topic 消息主题
type Topic string

const (
	TopicLog    Topic = "LOG"
	TopicInfo   Topic = "INFO"
	TopicLock   Topic = "LOCK"
	TopicUnlock Topic = "UNLOCK"
	TopicTask   Topic = "TASK"
)

// Valid 是否为已知主题
func (t Topic) Valid() bool {
	switch t {
	case TopicLog, TopicInfo, TopicLock, TopicUnlock, TopicTask:
		return true
	}
	return false
}

// Message 消息总线上的消息，LOG 主题会落库
type Message struct {
	ID           string    `gorm:"primaryKey;column:id;size:36" json:"id"`
	Timestamp    time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`
	CollectionID *string   `gorm:"column:collection_id;size:64" json:"collectionId"`
	Topic        Topic     `gorm:"column:topic;size:16;not null" json:"topic"`
	Text         string    `gorm:"column:message;type:text;not null" json:"message"`
}

func (Message) TableName() string {
	return "logs"
}
