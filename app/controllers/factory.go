package controllers

import (
	"go.uber.org/dig"

	"github.com/ragatool/backend-go/internal/config"
	"github.com/ragatool/backend-go/internal/database"
	"github.com/ragatool/backend-go/internal/dispatcher"
	"github.com/ragatool/backend-go/internal/extension"
	"github.com/ragatool/backend-go/internal/services"
)

// ControllerFactory 控制器工厂
type ControllerFactory struct {
	container *dig.Container
}

// NewControllerFactory 创建控制器工厂
func NewControllerFactory(container *dig.Container) *ControllerFactory {
	return &ControllerFactory{
		container: container,
	}
}

// Controllers 路由注册所需的全部控制器
type Controllers struct {
	Health    *HealthController
	Tasks     *TaskController
	Logs      *LogController
	Imports   *ImportController
	Extension *ExtensionController
}

// Create 从容器中取出服务并组装控制器
func (f *ControllerFactory) Create() (*Controllers, error) {
	var out *Controllers
	err := f.container.Invoke(func(
		cfg *config.Config,
		db *database.Database,
		d *dispatcher.Dispatcher,
		tasks *services.TaskService,
		logs *services.LogService,
		imports *services.ImportService,
		manager *extension.Manager,
	) {
		out = &Controllers{
			Health:    &HealthController{DB: db, Dispatcher: d},
			Tasks:     &TaskController{Tasks: tasks},
			Logs:      &LogController{Logs: logs},
			Imports:   &ImportController{Imports: imports},
			Extension: &ExtensionController{Extensions: manager, CallTimeout: cfg.Extension.HTTPCallTimeout},
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
