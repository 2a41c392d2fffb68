package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ragatool/backend-go/internal/models"
)

// TaskAPI 任务接口依赖的服务
type TaskAPI interface {
	List(ctx context.Context) ([]models.Task, error)
	Cancel(ctx context.Context, taskID string) error
}

// TaskController 后台任务控制器
type TaskController struct {
	BaseController
	Tasks TaskAPI
}

// List 列出等待和运行中的任务
func (c *TaskController) List() {
	tasks, err := c.Tasks.List(c.Ctx.Request.Context())
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// Cancel 取消任务
func (c *TaskController) Cancel() {
	taskID := c.Ctx.Input.Param(":id")
	if err := c.Tasks.Cancel(c.Ctx.Request.Context(), taskID); err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(http.StatusOK, map[string]string{"message": fmt.Sprintf("Task %s cancelled", taskID)})
}
