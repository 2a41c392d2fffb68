package models

// TaskStatus 后台任务状态
type TaskStatus string

const (
	TaskStatusNew        TaskStatus = "NEW"
	TaskStatusRunning    TaskStatus = "RUNNING"
	TaskStatusCancelling TaskStatus = "CANCELLING"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// IsTerminal 是否为终止状态
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCancelled, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// Task 后台任务表
type Task struct {
	ID           string     `gorm:"primaryKey;column:id;size:36" json:"id"`
	CollectionID string     `gorm:"column:collection_id;size:64;index" json:"collection_id"`
	Name         string     `gorm:"column:name;size:255;not null" json:"name"`
	StartTime    int64      `gorm:"column:start_time;not null" json:"start_time"`
	Status       TaskStatus `gorm:"column:status;size:20;not null" json:"status"`
}

func (Task) TableName() string {
	return "tasks"
}
