package services

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/ragatool/backend-go/internal/errors"
	"github.com/ragatool/backend-go/internal/hub"
	"github.com/ragatool/backend-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockTaskRepo struct {
	mock.Mock
}

func (m *MockTaskRepo) ListAll(ctx context.Context) ([]models.Task, error) {
	args := m.Called(ctx)
	tasks, _ := args.Get(0).([]models.Task)
	return tasks, args.Error(1)
}

type MockCanceller struct {
	mock.Mock
}

func (m *MockCanceller) Cancel(ctx context.Context, id string) bool {
	return m.Called(ctx, id).Bool(0)
}

type MockLogRepo struct {
	mock.Mock
}

func (m *MockLogRepo) Latest(ctx context.Context, n int) ([]models.Message, error) {
	args := m.Called(ctx, n)
	logs, _ := args.Get(0).([]models.Message)
	return logs, args.Error(1)
}

func TestTaskServiceList(t *testing.T) {
	repo := new(MockTaskRepo)
	repo.On("ListAll", mock.Anything).Return(nil, nil).Once()
	repo.On("ListAll", mock.Anything).Return(nil, errors.New("db down")).Once()

	svc := NewTaskService(repo, new(MockCanceller))

	tasks, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)

	_, err = svc.List(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDatabaseError))
	repo.AssertExpectations(t)
}

func TestTaskServiceCancel(t *testing.T) {
	canceller := new(MockCanceller)
	canceller.On("Cancel", mock.Anything, "t-1").Return(true)
	canceller.On("Cancel", mock.Anything, "missing").Return(false)

	svc := NewTaskService(new(MockTaskRepo), canceller)

	assert.NoError(t, svc.Cancel(context.Background(), "t-1"))

	err := svc.Cancel(context.Background(), "missing")
	assert.Equal(t, 404, apperrors.GetAppError(err).HTTPCode)

	err = svc.Cancel(context.Background(), "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
}

func TestLogServiceLatestClampsN(t *testing.T) {
	repo := new(MockLogRepo)
	repo.On("Latest", mock.Anything, 10).Return([]models.Message{{ID: "a"}}, nil).Once()
	repo.On("Latest", mock.Anything, 1000).Return([]models.Message{}, nil).Once()

	svc := NewLogService(repo, nil)

	logs, err := svc.Latest(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	_, err = svc.Latest(context.Background(), 5000)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestLogServiceStream(t *testing.T) {
	h := hub.NewMessageHub(nil, hub.Options{Logger: zap.NewNop()})
	defer h.Close()
	svc := NewLogService(new(MockLogRepo), h)

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan models.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- svc.Stream(ctx, func(msg models.Message) error {
			received <- msg
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		h.Publish(context.Background(), "c", models.TopicInfo, "hello")
		select {
		case msg := <-received:
			return msg.Text == "hello"
		case <-time.After(10 * time.Millisecond):
			return false
		}
	}, time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stream未在取消后退出")
	}
}

func TestLogServiceStreamStopsOnEmitError(t *testing.T) {
	h := hub.NewMessageHub(nil, hub.Options{Logger: zap.NewNop()})
	defer h.Close()
	svc := NewLogService(new(MockLogRepo), h)

	boom := errors.New("client gone")
	done := make(chan error, 1)
	go func() {
		done <- svc.Stream(context.Background(), func(models.Message) error { return boom })
	}()

	require.Eventually(t, func() bool {
		h.Publish(context.Background(), "", models.TopicTask, "x")
		select {
		case err := <-done:
			return errors.Is(err, boom)
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
