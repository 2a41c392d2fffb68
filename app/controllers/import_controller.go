package controllers

import (
	"context"
	"net/http"

	"github.com/ragatool/backend-go/internal/knowledge"
	"github.com/ragatool/backend-go/internal/services"
)

// ImportAPI 导入接口依赖的服务
type ImportAPI interface {
	ImportURL(ctx context.Context, collectionID string, req services.ImportURLRequest) (string, error)
	ImportText(ctx context.Context, collectionID string, req services.ImportTextRequest) (string, error)
	ChunkTypes() []knowledge.ChunkType
}

// ImportController 知识导入控制器
type ImportController struct {
	BaseController
	Imports ImportAPI
}

// ImportURL 提交网页抓取导入任务
func (c *ImportController) ImportURL() {
	var req services.ImportURLRequest
	if !c.bindJSON(&req) {
		return
	}
	c.submitted(c.Imports.ImportURL(c.Ctx.Request.Context(), c.Ctx.Input.Param(":collection_id"), req))
}

// ImportText 提交纯文本导入任务
func (c *ImportController) ImportText() {
	var req services.ImportTextRequest
	if !c.bindJSON(&req) {
		return
	}
	c.submitted(c.Imports.ImportText(c.Ctx.Request.Context(), c.Ctx.Input.Param(":collection_id"), req))
}

// ChunkTypes 列出支持的分块方式
func (c *ImportController) ChunkTypes() {
	c.JSON(http.StatusOK, c.Imports.ChunkTypes())
}

func (c *ImportController) submitted(taskID string, err error) {
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(http.StatusAccepted, map[string]string{"task_id": taskID})
}
