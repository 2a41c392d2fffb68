package repository

import (
	"context"
	"errors"

	apperrors "github.com/ragatool/backend-go/internal/errors"
	"github.com/ragatool/backend-go/internal/models"
	"gorm.io/gorm"
)

// taskRepository 任务仓库实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓库
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// GetDB 获取数据库连接
func (r *taskRepository) GetDB() *gorm.DB {
	return r.db
}

// Create 创建任务记录
func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// UpdateStatus 更新任务状态，记录不存在时返回 NotFound
func (r *taskRepository) UpdateStatus(ctx context.Context, id string, status models.TaskStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("Task " + id)
	}
	return nil
}

// Delete 删除任务记录
func (r *taskRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Task{}).Error
}

// Get 根据ID获取任务
func (r *taskRepository) Get(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("Task " + id)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListAll 按开始时间列出所有任务
func (r *taskRepository) ListAll(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).Order("start_time").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// DeleteAll 清空任务表，返回删除条数
func (r *taskRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.Task{})
	return result.RowsAffected, result.Error
}
