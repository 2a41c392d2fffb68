package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ragatool/backend-go/internal/models"
	"gorm.io/gorm"
)

// logRepository 日志仓库实现
type logRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLogRepository 创建日志仓库
func NewLogRepository(db *gorm.DB) LogRepository {
	return &logRepository{db: db, now: time.Now}
}

// GetDB 获取数据库连接
func (r *logRepository) GetDB() *gorm.DB {
	return r.db
}

// CreateLog 写入一条日志并返回落库后的消息
func (r *logRepository) CreateLog(ctx context.Context, collectionID *string, topic models.Topic, text string) (models.Message, error) {
	msg := models.Message{
		ID:           uuid.NewString(),
		Timestamp:    r.now().UTC(),
		CollectionID: collectionID,
		Topic:        topic,
		Text:         text,
	}
	if err := r.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Latest 获取最新的 n 条日志，按时间倒序
func (r *logRepository) Latest(ctx context.Context, n int) ([]models.Message, error) {
	if n <= 0 {
		return []models.Message{}, nil
	}
	var logs []models.Message
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(n).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
