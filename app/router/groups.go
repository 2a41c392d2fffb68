package router

import (
	"strings"

	"github.com/beego/beego/v2/server/web"
)

// RouteGroup 路由组
type RouteGroup struct {
	prefix      string
	middlewares []web.FilterFunc
	parent      *RouteGroup
	children    []*RouteGroup
	routes      []Route
}

// Route 路由定义
type Route struct {
	Method     string
	Path       string
	Handler    string
	Comment    string
	Controller web.ControllerInterface
}

// NewRouteGroup 创建路由组
func NewRouteGroup(prefix string) *RouteGroup {
	return &RouteGroup{prefix: prefix}
}

// Group 创建子路由组
func (rg *RouteGroup) Group(prefix string) *RouteGroup {
	child := NewRouteGroup(prefix)
	child.parent = rg
	rg.children = append(rg.children, child)
	return child
}

// Use 添加中间件，作用于组前缀下的全部路径
func (rg *RouteGroup) Use(middlewares ...web.FilterFunc) *RouteGroup {
	rg.middlewares = append(rg.middlewares, middlewares...)
	return rg
}

// Add 添加路由
func (rg *RouteGroup) Add(method, path string, controller web.ControllerInterface, handler string, comment ...string) *RouteGroup {
	route := Route{
		Method:     method,
		Path:       path,
		Handler:    handler,
		Controller: controller,
	}
	if len(comment) > 0 {
		route.Comment = comment[0]
	}
	rg.routes = append(rg.routes, route)
	return rg
}

// GET 添加GET路由
func (rg *RouteGroup) GET(path string, controller web.ControllerInterface, handler string, comment ...string) *RouteGroup {
	return rg.Add("GET", path, controller, handler, comment...)
}

// POST 添加POST路由
func (rg *RouteGroup) POST(path string, controller web.ControllerInterface, handler string, comment ...string) *RouteGroup {
	return rg.Add("POST", path, controller, handler, comment...)
}

// DELETE 添加DELETE路由
func (rg *RouteGroup) DELETE(path string, controller web.ControllerInterface, handler string, comment ...string) *RouteGroup {
	return rg.Add("DELETE", path, controller, handler, comment...)
}

// Register 把整棵路由树注册到 beego 服务
func (rg *RouteGroup) Register(server *web.HttpServer) {
	rg.register(server, "")
}

func (rg *RouteGroup) register(server *web.HttpServer, pathPrefix string) {
	currentPrefix := pathPrefix + rg.prefix

	for _, mw := range rg.middlewares {
		pattern := currentPrefix + "/*"
		if currentPrefix == "" {
			pattern = "/*"
		}
		server.InsertFilter(pattern, web.BeforeRouter, mw)
	}
	for _, route := range rg.routes {
		mapping := strings.ToLower(route.Method) + ":" + route.Handler
		server.Router(currentPrefix+route.Path, route.Controller, mapping)
	}
	for _, child := range rg.children {
		child.register(server, currentPrefix)
	}
}

// GetAllRoutes 获取所有路由定义（用于调试和文档）
func (rg *RouteGroup) GetAllRoutes() []RouteDefinition {
	var routes []RouteDefinition
	rg.collectRoutes("", &routes)
	return routes
}

func (rg *RouteGroup) collectRoutes(prefix string, routes *[]RouteDefinition) {
	currentPrefix := prefix + rg.prefix

	for _, route := range rg.routes {
		*routes = append(*routes, RouteDefinition{
			Method:  route.Method,
			Path:    currentPrefix + route.Path,
			Handler: route.Handler,
			Comment: route.Comment,
		})
	}

	for _, child := range rg.children {
		child.collectRoutes(currentPrefix, routes)
	}
}

// RouteDefinition 路由定义
type RouteDefinition struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Handler string `json:"handler"`
	Comment string `json:"comment,omitempty"`
}
