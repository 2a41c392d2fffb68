package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/ragatool/backend-go/internal/errors"
	"github.com/ragatool/backend-go/internal/logger"
	"github.com/ragatool/backend-go/internal/metrics"
	"github.com/ragatool/backend-go/internal/models"
	"github.com/ragatool/backend-go/internal/queue"
	"go.uber.org/zap"
)

// ErrDispatcherClosed 调度器已关闭，不再接受任务
var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// DefaultWorkers 默认工作协程数量
const DefaultWorkers = 4

// Job 后台任务函数。ctx 在任务被取消时结束，token 供任务轮询
type Job func(ctx context.Context, token *CancelToken) error

// TaskStore 任务记录存储
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	UpdateStatus(ctx context.Context, id string, status models.TaskStatus) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}

// Publisher 任务状态消息发布者
type Publisher interface {
	Publish(ctx context.Context, collectionID string, topic models.Topic, text string)
}

// Options 调度器配置
type Options struct {
	Workers int
	Logger  *zap.Logger
	Now     func() time.Time
}

// Stats 调度器当前状态
type Stats struct {
	Workers int `json:"workers"`
	Waiting int `json:"waiting"`
	Running int `json:"running"`
}

type entry struct {
	task  models.Task
	job   Job
	token *CancelToken

	// statusMu 串行化取消与终态写入，保证 CANCELLING 先于终态
	statusMu sync.Mutex
	finished bool
}

// Dispatcher 固定大小的后台任务工作池
type Dispatcher struct {
	store     TaskStore
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
	workers   int

	ids *queue.Unbounded[string]

	mu      sync.Mutex
	waiting map[string]*entry
	running map[string]*entry
	closed  bool

	wg   sync.WaitGroup
	done chan struct{}
}

// New 创建调度器并启动工作协程
func New(store TaskStore, publisher Publisher, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("dispatcher")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}

	d := &Dispatcher{
		store:     store,
		publisher: publisher,
		logger:    opts.Logger,
		now:       opts.Now,
		workers:   opts.Workers,
		ids:       queue.New[string](0),
		waiting:   make(map[string]*entry),
		running:   make(map[string]*entry),
		done:      make(chan struct{}),
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
	go func() {
		d.wg.Wait()
		close(d.done)
	}()

	d.logger.Info("任务调度器已启动", zap.Int("workers", d.workers))
	return d
}

// Submit 创建任务记录并排队，立即返回任务ID
func (d *Dispatcher) Submit(ctx context.Context, collectionID, name string, job Job) (string, error) {
	if job == nil {
		return "", apperrors.NewValidationError("job must not be nil")
	}

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return "", ErrDispatcherClosed
	}

	task := models.Task{
		ID:           uuid.NewString(),
		CollectionID: collectionID,
		Name:         name,
		StartTime:    d.now().Unix(),
		Status:       models.TaskStatusNew,
	}
	if err := d.store.Create(ctx, &task); err != nil {
		return "", fmt.Errorf("create task record: %w", err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.deleteRecord(task.ID)
		return "", ErrDispatcherClosed
	}
	d.waiting[task.ID] = &entry{task: task, job: job, token: newCancelToken()}
	_, _ = d.ids.Push(task.ID)
	d.mu.Unlock()

	metrics.TasksSubmitted.Inc()
	metrics.TasksWaiting.Inc()
	d.logger.Debug("任务已提交",
		zap.String("task_id", task.ID),
		zap.String("collection_id", collectionID),
		zap.String("name", name),
	)
	d.publisher.Publish(ctx, collectionID, models.TopicTask, "Task created")
	return task.ID, nil
}

// Cancel 取消任务。排队中的任务不会再执行，运行中的任务仅设置取消令牌
func (d *Dispatcher) Cancel(ctx context.Context, taskID string) bool {
	d.mu.Lock()
	if e, ok := d.waiting[taskID]; ok {
		delete(d.waiting, taskID)
		d.mu.Unlock()

		e.token.Cancel()
		metrics.TasksWaiting.Dec()
		metrics.TasksFinished.WithLabelValues(string(models.TaskStatusCancelled)).Inc()

		d.updateStatus(taskID, models.TaskStatusCancelling)
		d.updateStatus(taskID, models.TaskStatusCancelled)
		d.deleteRecord(taskID)
		d.logger.Info("排队中的任务已取消", zap.String("task_id", taskID))
		d.publisher.Publish(ctx, e.task.CollectionID, models.TopicTask, "Task cancelled")
		return true
	}

	e, ok := d.running[taskID]
	d.mu.Unlock()
	if !ok {
		return false
	}

	e.statusMu.Lock()
	finished := e.finished
	if !finished {
		d.updateStatus(taskID, models.TaskStatusCancelling)
	}
	e.token.Cancel()
	e.statusMu.Unlock()

	if !finished {
		d.logger.Info("已请求取消运行中的任务", zap.String("task_id", taskID))
		d.publisher.Publish(ctx, e.task.CollectionID, models.TopicTask, "Task cancelling")
	}
	return true
}

// Shutdown 停止接收新任务，等待已排队与运行中的任务结束
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		// 每个工作协程一个哨兵，排在所有已提交任务之后
		for i := 0; i < d.workers; i++ {
			_, _ = d.ids.Push("")
		}
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		d.ids.Close()
		d.logger.Info("任务调度器已关闭")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearStale 删除上次进程遗留的任务记录
func (d *Dispatcher) ClearStale(ctx context.Context) error {
	n, err := d.store.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("clear stale tasks: %w", err)
	}
	if n > 0 {
		d.logger.Warn("已清理遗留任务记录", zap.Int64("count", n))
	}
	return nil
}

// Stats 获取排队与运行中的任务数量
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Workers: d.workers, Waiting: len(d.waiting), Running: len(d.running)}
}

func (d *Dispatcher) work(n int) {
	defer d.wg.Done()
	log := d.logger.With(zap.Int("worker", n))

	for {
		id, err := d.ids.Pop(context.Background())
		if err != nil || id == "" {
			log.Debug("工作协程退出")
			return
		}

		d.mu.Lock()
		e, ok := d.waiting[id]
		if ok {
			delete(d.waiting, id)
			d.running[id] = e
		}
		d.mu.Unlock()
		if !ok {
			// 排队期间已被取消
			continue
		}

		metrics.TasksWaiting.Dec()
		metrics.TasksRunning.Inc()
		d.execute(log, e)
		metrics.TasksRunning.Dec()
	}
}

func (d *Dispatcher) execute(log *zap.Logger, e *entry) {
	id := e.task.ID
	d.updateStatus(id, models.TaskStatusRunning)
	log.Info("任务开始执行", zap.String("task_id", id), zap.String("name", e.task.Name))

	start := d.now()
	err := d.invoke(e)
	elapsed := d.now().Sub(start)

	e.statusMu.Lock()
	e.finished = true
	status := terminalStatus(e.token, err)
	d.updateStatus(id, status)
	e.statusMu.Unlock()

	metrics.TasksFinished.WithLabelValues(string(status)).Inc()
	metrics.TaskDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())

	ctx := context.Background()
	switch status {
	case models.TaskStatusFailed:
		log.Error("任务执行失败", zap.String("task_id", id), zap.Error(err))
		d.publisher.Publish(ctx, e.task.CollectionID, models.TopicLog,
			fmt.Sprintf("Task %s failed: %v", e.task.Name, err))
	case models.TaskStatusCancelled:
		log.Info("任务已取消", zap.String("task_id", id), zap.Duration("elapsed", elapsed))
	default:
		log.Info("任务执行完成", zap.String("task_id", id), zap.Duration("elapsed", elapsed))
	}

	d.mu.Lock()
	delete(d.running, id)
	d.mu.Unlock()

	d.deleteRecord(id)
	d.publisher.Publish(ctx, e.task.CollectionID, models.TopicTask, "Task deleted")
}

// invoke 执行任务函数，panic 转换为 JobFailure
func (d *Dispatcher) invoke(e *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("任务发生panic", zap.String("task_id", e.task.ID), zap.Any("panic", r), zap.Stack("stack"))
			err = apperrors.NewJobFailure(e.task.ID, fmt.Errorf("panic: %v", r))
		}
	}()
	return e.job(e.token.Context(), e.token)
}

func terminalStatus(token *CancelToken, err error) models.TaskStatus {
	if token.Cancelled() && (err == nil || errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)) {
		return models.TaskStatusCancelled
	}
	if err != nil {
		return models.TaskStatusFailed
	}
	return models.TaskStatusCompleted
}

func (d *Dispatcher) updateStatus(id string, status models.TaskStatus) {
	if err := d.store.UpdateStatus(context.Background(), id, status); err != nil {
		d.logger.Warn("更新任务状态失败",
			zap.String("task_id", id),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) deleteRecord(id string) {
	if err := d.store.Delete(context.Background(), id); err != nil {
		d.logger.Warn("删除任务记录失败", zap.String("task_id", id), zap.Error(err))
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, models.Topic, string) {}
