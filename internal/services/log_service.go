package services

import (
	"context"
	"errors"

	apperrors "github.com/ragatool/backend-go/internal/errors"
	"github.com/ragatool/backend-go/internal/hub"
	"github.com/ragatool/backend-go/internal/models"
)

const (
	defaultLatestLogs = 10
	maxLatestLogs     = 1000
)

// LatestLogs 最新日志查询
type LatestLogs interface {
	Latest(ctx context.Context, n int) ([]models.Message, error)
}

// LogService 日志查询与实时消息流
type LogService struct {
	repo LatestLogs
	hub  *hub.MessageHub
}

// NewLogService 创建日志服务
func NewLogService(repo LatestLogs, h *hub.MessageHub) *LogService {
	return &LogService{repo: repo, hub: h}
}

// Latest 获取最新 n 条日志，n <= 0 时取默认值
func (s *LogService) Latest(ctx context.Context, n int) ([]models.Message, error) {
	if n <= 0 {
		n = defaultLatestLogs
	}
	if n > maxLatestLogs {
		n = maxLatestLogs
	}
	logs, err := s.repo.Latest(ctx, n)
	if err != nil {
		return nil, apperrors.NewErrorTranslator().Wrap(err, apperrors.ErrCodeDatabaseError, "failed to read logs")
	}
	return logs, nil
}

// Stream 订阅消息总线并逐条回调，直到 ctx 结束、总线关闭或回调返回错误
func (s *LogService) Stream(ctx context.Context, emit func(models.Message) error) error {
	sub := s.hub.Subscribe()
	defer sub.Close()

	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, hub.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := emit(msg); err != nil {
			return err
		}
	}
}
