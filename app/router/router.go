package router

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/ragatool/backend-go/app/controllers"
	"github.com/ragatool/backend-go/app/middleware"
)

// Build 构建全部路由
func Build(c *controllers.Controllers) *RouteGroup {
	root := NewRouteGroup("")
	root.Use(middleware.CORSMiddleware)

	root.GET("/", &controllers.RootController{}, "Index", "根路径")
	root.GET("/health", c.Health, "Health", "健康检查")
	root.GET("/metrics", &controllers.MetricsController{}, "Metrics", "Prometheus 指标")

	api := root.Group("/api")

	logs := api.Group("/logs")
	logs.GET("", c.Logs, "Latest", "最新日志，?n=10")
	logs.GET("/stream", c.Logs, "Stream", "SSE 消息流")

	tasks := api.Group("/tasks")
	tasks.GET("", c.Tasks, "List", "任务列表")
	tasks.DELETE("/:id", c.Tasks, "Cancel", "取消任务")

	imports := api.Group("/imports")
	imports.GET("/chunktypes", c.Imports, "ChunkTypes", "分块方式")
	imports.POST("/url/:collection_id", c.Imports, "ImportURL", "网页导入")
	imports.POST("/text/:collection_id", c.Imports, "ImportText", "文本导入")

	ext := api.Group("/extensions")
	ext.GET("/ws", c.Extension, "Connect", "扩展 WebSocket")
	ext.GET("/connected_tools", c.Extension, "ConnectedTools", "已连接扩展")
	ext.POST("/call_tool", c.Extension, "CallTool", "调用扩展命令")

	return root
}

// Init registers all routes on the given server. Must be called after config is loaded.
func Init(server *web.HttpServer, c *controllers.Controllers) *RouteGroup {
	server.Cfg.CopyRequestBody = true
	root := Build(c)
	root.Register(server)
	return root
}
