package bootstrap

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/beego/beego/v2/server/web"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ragatool/backend-go/app/controllers"
	"github.com/ragatool/backend-go/app/router"
	"github.com/ragatool/backend-go/internal/config"
	"github.com/ragatool/backend-go/internal/database"
	"github.com/ragatool/backend-go/internal/di"
	"github.com/ragatool/backend-go/internal/dispatcher"
	"github.com/ragatool/backend-go/internal/extension"
	"github.com/ragatool/backend-go/internal/hub"
	"github.com/ragatool/backend-go/internal/logger"
	"github.com/ragatool/backend-go/internal/models"
	"github.com/ragatool/backend-go/internal/sink"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// shutdownTimeout 等待运行中任务结束的最长时间
const shutdownTimeout = 30 * time.Second

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	Config    *config.Config
	Container *dig.Container
	Routes    *router.RouteGroup

	cleanupTasks []func(ctx context.Context) error
}

// core 启动阶段用到的单例组件
type core struct {
	dig.In

	DB         *database.Database
	Hub        *hub.MessageHub
	Dispatcher *dispatcher.Dispatcher
	Extensions *extension.Manager
}

// Init bootstraps configuration, logger, database connections and other shared
// infrastructure components required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig

	if err := logger.InitLogger(cfg.Server.Env, cfg.Log.Level, logger.FileOutput{
		Filename:   cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		return nil, err
	}

	container, err := di.BuildContainer(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Container: container}
	if err := container.Invoke(app.start); err != nil {
		app.Shutdown()
		return nil, err
	}

	ctrls, err := controllers.NewControllerFactory(container).Create()
	if err != nil {
		app.Shutdown()
		return nil, err
	}
	app.Routes = router.Init(web.BeeApp, ctrls)

	return app, nil
}

// start 按依赖顺序启动核心组件，清理任务按相反顺序执行
func (a *App) start(c core) error {
	cfg := a.Config
	ctx, cancel := context.WithCancel(context.Background())

	a.onShutdown(func(context.Context) error { return c.DB.Close() })
	c.DB.StartMonitoring(ctx)
	a.onShutdown(func(context.Context) error {
		cancel()
		return nil
	})

	if cfg.Prometheus.Enabled {
		if err := prometheus.Register(c.DB.Collector()); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				logger.Warn("Failed to register database pool collector", zap.Error(err))
			}
		}
	}

	// 上次进程遗留的任务记录已无对应协程
	if err := c.Dispatcher.ClearStale(ctx); err != nil {
		logger.Warn("Failed to clear stale tasks", zap.Error(err))
	}

	a.attachSinks(ctx, c.Hub)

	a.onShutdown(func(context.Context) error {
		c.Hub.Close()
		return nil
	})
	a.onShutdown(c.Dispatcher.Shutdown)
	a.onShutdown(func(ctx context.Context) error {
		c.Extensions.Shutdown(ctx)
		return nil
	})

	c.Extensions.Start()
	logger.Info("Core components started",
		zap.Int("workers", cfg.Dispatcher.Workers),
		zap.Duration("heartbeat_interval", cfg.Extension.HeartbeatInterval))
	return nil
}

// attachSinks 按配置把总线消息镜像到 Kafka 与 Redis，失败不阻塞启动
func (a *App) attachSinks(ctx context.Context, h *hub.MessageHub) {
	cfg := a.Config

	if cfg.Kafka.Enabled {
		producer, err := sink.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			logger.Warn("Failed to initialize Kafka producer", zap.Error(err))
		} else {
			kafkaSink := sink.NewKafkaSink(producer, cfg.Kafka.Topic, logger.Named("kafka"), models.TopicLog, models.TopicTask)
			h.AttachSink(ctx, "kafka", kafkaSink)
			a.onShutdown(func(context.Context) error { return kafkaSink.Close() })
		}
	}

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Failed to initialize Redis", zap.Error(err))
		} else {
			h.AttachSink(ctx, "redis", sink.NewRedisSink(rdb, cfg.Redis.Channel))
			a.onShutdown(func(context.Context) error { return rdb.Close() })
		}
	}
}

func (a *App) onShutdown(fn func(ctx context.Context) error) {
	a.cleanupTasks = append(a.cleanupTasks, fn)
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](ctx); err != nil {
			logger.Warn("Cleanup error", zap.Error(err))
		}
	}
	a.cleanupTasks = nil

	logger.Sync()
}
