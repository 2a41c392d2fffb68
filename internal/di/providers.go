package di

import (
	"context"
	"os"

	"github.com/ragatool/backend-go/internal/config"
	"github.com/ragatool/backend-go/internal/database"
	"github.com/ragatool/backend-go/internal/dispatcher"
	"github.com/ragatool/backend-go/internal/extension"
	"github.com/ragatool/backend-go/internal/extract"
	"github.com/ragatool/backend-go/internal/hub"
	"github.com/ragatool/backend-go/internal/knowledge"
	"github.com/ragatool/backend-go/internal/logger"
	"github.com/ragatool/backend-go/internal/repository"
	"github.com/ragatool/backend-go/internal/services"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container, cfg *config.Config) error {
	if err := RegisterInfrastructure(container, cfg); err != nil {
		return err
	}
	return RegisterServices(container)
}

// RegisterInfrastructure 注册配置、日志与数据库
func RegisterInfrastructure(container *dig.Container, cfg *config.Config) error {
	providers := []interface{}{
		func() *config.Config { return cfg },
		func() *zap.Logger { return logger.GetLogger() },
		newLogrusLogger,
		func(c *config.Config, log *logrus.Logger) (*database.Database, error) {
			return database.Open(c.Database, log)
		},
	}
	return provideAll(container, providers)
}

// RegisterServices 注册核心组件与业务服务，依赖 *config.Config、*zap.Logger 与 *database.Database
func RegisterServices(container *dig.Container) error {
	providers := []interface{}{
		func(db *database.Database) *gorm.DB { return db.GetDB() },
		repository.NewTaskRepository,
		repository.NewLogRepository,
		newMessageHub,
		newDispatcher,
		extract.NewExtractor,
		newCrawler,
		newEmbedder,
		newVectorStore,
		newExtensionManager,
		newImportService,
		func(repo repository.TaskRepository, d *dispatcher.Dispatcher) *services.TaskService {
			return services.NewTaskService(repo, d)
		},
		func(repo repository.LogRepository, h *hub.MessageHub) *services.LogService {
			return services.NewLogService(repo, h)
		},
	}
	return provideAll(container, providers)
}

func provideAll(container *dig.Container, providers []interface{}) error {
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

func newLogrusLogger(cfg *config.Config) *logrus.Logger {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	return &logrus.Logger{
		Out:       os.Stdout,
		Formatter: &logrus.JSONFormatter{},
		Hooks:     make(logrus.LevelHooks),
		Level:     level,
	}
}

func newMessageHub(cfg *config.Config, repo repository.LogRepository, log *zap.Logger) *hub.MessageHub {
	return hub.NewMessageHub(repo, hub.Options{
		MaxBacklog: cfg.Hub.MaxBacklog,
		Logger:     log.Named("hub"),
	})
}

func newDispatcher(cfg *config.Config, repo repository.TaskRepository, h *hub.MessageHub, log *zap.Logger) *dispatcher.Dispatcher {
	return dispatcher.New(repo, h, dispatcher.Options{
		Workers: cfg.Dispatcher.Workers,
		Logger:  log.Named("dispatcher"),
	})
}

func newCrawler(cfg *config.Config, log *zap.Logger) *extract.Crawler {
	return extract.NewCrawler(cfg.Knowledge.FetchTimeout, log.Named("crawler"))
}

// newEmbedder 配置了 API key 时使用 OpenAI，否则使用本地哈希向量
func newEmbedder(cfg *config.Config, log *zap.Logger) knowledge.Embedder {
	emb := cfg.Knowledge.Embedding
	if emb.APIKey != "" {
		e, err := knowledge.NewOpenAIEmbedder(emb.APIKey, emb.BaseURL, emb.Model)
		if err == nil {
			return e
		}
		log.Warn("OpenAI embedder 初始化失败，使用本地向量", zap.Error(err))
	}
	return knowledge.NewHashEmbedder(cfg.Knowledge.VectorStore.Milvus.VectorSize)
}

func newVectorStore(cfg *config.Config, embedder knowledge.Embedder, log *zap.Logger) (knowledge.VectorStore, error) {
	vs := cfg.Knowledge.VectorStore
	if vs.Provider != "milvus" {
		return knowledge.NewMemoryVectorStore(), nil
	}
	return knowledge.NewMilvusVectorStore(context.Background(), knowledge.MilvusOptions{
		Address:          vs.Milvus.Address,
		Username:         vs.Milvus.Username,
		Password:         vs.Milvus.Password,
		CollectionPrefix: vs.Milvus.Collection,
		VectorSize:       embedder.Dimensions(),
		Logger:           log.Named("milvus"),
	})
}

func newExtensionManager(cfg *config.Config, h *hub.MessageHub, extractor *extract.Extractor, log *zap.Logger) *extension.Manager {
	return extension.NewManager(h, extension.Options{
		HeartbeatInterval: cfg.Extension.HeartbeatInterval,
		CallTimeout:       cfg.Extension.CallTimeout,
		Extractor:         extractor,
		Logger:            log.Named("extension"),
	})
}

func newImportService(cfg *config.Config, d *dispatcher.Dispatcher, h *hub.MessageHub, crawler *extract.Crawler,
	embedder knowledge.Embedder, store knowledge.VectorStore, log *zap.Logger) *services.ImportService {
	return services.NewImportService(d, h, crawler, embedder, store, cfg.Knowledge, log.Named("import"))
}
