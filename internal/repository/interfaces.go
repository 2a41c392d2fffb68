package repository

import (
	"context"

	"github.com/ragatool/backend-go/internal/models"
	"gorm.io/gorm"
)

// Repository 基础仓库接口
type Repository interface {
	GetDB() *gorm.DB
}

// TaskRepository 后台任务记录仓库
type TaskRepository interface {
	Repository
	Create(ctx context.Context, task *models.Task) error
	UpdateStatus(ctx context.Context, id string, status models.TaskStatus) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Task, error)
	ListAll(ctx context.Context) ([]models.Task, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// LogRepository LOG 主题消息持久化仓库
type LogRepository interface {
	Repository
	CreateLog(ctx context.Context, collectionID *string, topic models.Topic, text string) (models.Message, error)
	Latest(ctx context.Context, n int) ([]models.Message, error)
}
