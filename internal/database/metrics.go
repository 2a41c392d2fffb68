package database

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolCollector 以 Prometheus Collector 形式导出连接池统计
// 每次抓取时读取 sql.DBStats，不需要后台协程
type PoolCollector struct {
	db *sql.DB

	connections  *prometheus.Desc
	waitCount    *prometheus.Desc
	waitDuration *prometheus.Desc
	closed       *prometheus.Desc
}

// NewPoolCollector 创建连接池指标收集器
func NewPoolCollector(db *sql.DB, dbName string) *PoolCollector {
	labels := prometheus.Labels{"db": dbName}
	return &PoolCollector{
		db: db,
		connections: prometheus.NewDesc(
			"ragatool_db_connections",
			"Number of database connections by state",
			[]string{"state"}, labels,
		),
		waitCount: prometheus.NewDesc(
			"ragatool_db_wait_count_total",
			"Total number of connections waited for",
			nil, labels,
		),
		waitDuration: prometheus.NewDesc(
			"ragatool_db_wait_duration_seconds_total",
			"Total time blocked waiting for a new connection",
			nil, labels,
		),
		closed: prometheus.NewDesc(
			"ragatool_db_closed_total",
			"Total number of connections closed by reason",
			[]string{"reason"}, labels,
		),
	}
}

// Describe 实现 prometheus.Collector
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connections
	ch <- c.waitCount
	ch <- c.waitDuration
	ch <- c.closed
}

// Collect 实现 prometheus.Collector
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.db.Stats()

	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(stats.Idle), "idle")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(stats.InUse), "in_use")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(stats.OpenConnections), "open")
	ch <- prometheus.MustNewConstMetric(c.waitCount, prometheus.CounterValue, float64(stats.WaitCount))
	ch <- prometheus.MustNewConstMetric(c.waitDuration, prometheus.CounterValue, stats.WaitDuration.Seconds())
	ch <- prometheus.MustNewConstMetric(c.closed, prometheus.CounterValue, float64(stats.MaxIdleClosed), "max_idle")
	ch <- prometheus.MustNewConstMetric(c.closed, prometheus.CounterValue, float64(stats.MaxIdleTimeClosed), "max_idle_time")
	ch <- prometheus.MustNewConstMetric(c.closed, prometheus.CounterValue, float64(stats.MaxLifetimeClosed), "max_lifetime")
}
