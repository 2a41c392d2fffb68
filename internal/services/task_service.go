package services

import (
	"context"

	apperrors "github.com/ragatool/backend-go/internal/errors"
	"github.com/ragatool/backend-go/internal/models"
)

// TaskLister 任务记录查询
type TaskLister interface {
	ListAll(ctx context.Context) ([]models.Task, error)
}

// TaskCanceller 任务取消
type TaskCanceller interface {
	Cancel(ctx context.Context, taskID string) bool
}

// TaskService 任务服务
type TaskService struct {
	repo      TaskLister
	canceller TaskCanceller
}

// NewTaskService 创建任务服务实例
func NewTaskService(repo TaskLister, canceller TaskCanceller) *TaskService {
	return &TaskService{repo: repo, canceller: canceller}
}

// List 获取全部在册任务，按开始时间排序
func (s *TaskService) List(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, apperrors.NewErrorTranslator().Wrap(err, apperrors.ErrCodeDatabaseError, "failed to list tasks")
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

// Cancel 请求取消任务，任务不在等待或运行中时返回 NotFound
func (s *TaskService) Cancel(ctx context.Context, taskID string) error {
	if taskID == "" {
		return apperrors.NewInvalidInputError("task_id", "is required")
	}
	if !s.canceller.Cancel(ctx, taskID) {
		return apperrors.NewNotFoundError("Task " + taskID)
	}
	return nil
}
