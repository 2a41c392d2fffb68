package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ragatool/backend-go/internal/config"
	"github.com/ragatool/backend-go/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database 封装 gorm 连接、健康检查与连接池指标
type Database struct {
	db            *gorm.DB
	sqlDB         *sql.DB
	healthChecker *HealthChecker
	collector     *PoolCollector
}

// Open 连接 PostgreSQL 并按配置设置连接池
func Open(cfg config.DatabaseConfig, logger *logrus.Logger) (*Database, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	wrapped, err := wrap(db, logger)
	if err != nil {
		return nil, err
	}

	wrapped.sqlDB.SetMaxIdleConns(10)
	wrapped.sqlDB.SetMaxOpenConns(50)
	wrapped.sqlDB.SetConnMaxLifetime(time.Hour)
	wrapped.sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if cfg.AutoMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
	}

	logger.Info("Database connected successfully")
	return wrapped, nil
}

// OpenWithConn 基于已有的 *sql.DB 创建（测试中配合 sqlmock 使用）
func OpenWithConn(conn *sql.DB, logger *logrus.Logger) (*Database, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm with existing connection: %w", err)
	}
	return wrap(db, logger)
}

func wrap(db *gorm.DB, logger *logrus.Logger) (*Database, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return &Database{
		db:            db,
		sqlDB:         sqlDB,
		healthChecker: NewHealthChecker(sqlDB, logger),
		collector:     NewPoolCollector(sqlDB, "postgres"),
	}, nil
}

// AutoMigrate 创建任务表与日志表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Task{}, &models.Message{})
}

// GetDB 获取 gorm 连接
func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// SQL 获取底层 *sql.DB
func (d *Database) SQL() *sql.DB {
	return d.sqlDB
}

// Collector 连接池指标收集器
func (d *Database) Collector() *PoolCollector {
	return d.collector
}

// StartMonitoring 启动后台健康检查
func (d *Database) StartMonitoring(ctx context.Context) {
	d.healthChecker.Start(ctx)
}

// HealthCheck 立即执行一次健康检查
func (d *Database) HealthCheck(ctx context.Context) error {
	return d.healthChecker.Check(ctx)
}

// GetHealthStatus 获取最近一次健康检查结果
func (d *Database) GetHealthStatus() HealthCheckResult {
	return d.healthChecker.GetHealthResult()
}

// Close 停止健康检查并关闭连接
func (d *Database) Close() error {
	d.healthChecker.Stop()
	return d.sqlDB.Close()
}
