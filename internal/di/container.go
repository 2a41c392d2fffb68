package di

import (
	"github.com/ragatool/backend-go/internal/config"
	"go.uber.org/dig"
)

// Container 是依赖注入容器的全局实例
var Container *dig.Container

// InitContainer 初始化依赖注入容器
func InitContainer() *dig.Container {
	Container = dig.New()
	return Container
}

// BuildContainer 初始化容器并注册全部提供者
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	c := InitContainer()
	if err := RegisterProviders(c, cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// GetContainer 获取依赖注入容器实例
func GetContainer() *dig.Container {
	return Container
}

// Invoke 封装dig.Invoke
func Invoke(function interface{}, opts ...dig.InvokeOption) error {
	return Container.Invoke(function, opts...)
}

// Resolve 从容器中取出单个类型的实例
func Resolve[T any]() (T, error) {
	var out T
	err := Container.Invoke(func(v T) { out = v })
	return out, err
}
