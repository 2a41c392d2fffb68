package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"github.com/ragatool/backend-go/app/bootstrap"
	"github.com/ragatool/backend-go/internal/logger"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	port, err := strconv.Atoi(app.Config.Server.Port)
	if err != nil {
		log.Fatalf("invalid server port %q: %v", app.Config.Server.Port, err)
	}
	web.BConfig.AppName = "RAG Tool Backend"
	web.BConfig.Listen.HTTPPort = port
	web.BConfig.Listen.Graceful = false
	if app.Config.Server.Env == "production" {
		web.BConfig.RunMode = web.PROD
	}

	logger.Info("Starting RAG tool backend", zap.Int("port", port), zap.Int("routes", len(app.Routes.GetAllRoutes())))
	web.Run()
}
