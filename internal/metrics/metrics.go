package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ragatool"

// 后台任务
var (
	TasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "tasks_submitted_total",
		Help:      "Total number of submitted background tasks",
	})

	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "tasks_finished_total",
		Help:      "Total number of background tasks by terminal status",
	}, []string{"status"})

	TasksWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "tasks_waiting",
		Help:      "Number of tasks waiting for a worker",
	})

	TasksRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "tasks_running",
		Help:      "Number of tasks currently running",
	})

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "task_duration_seconds",
		Help:      "Duration of background task execution",
		Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300, 900},
	}, []string{"status"})
)

// 消息总线
var (
	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hub",
		Name:      "messages_published_total",
		Help:      "Total number of messages published by topic",
	}, []string{"topic"})

	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hub",
		Name:      "messages_dropped_total",
		Help:      "Messages dropped because a subscriber backlog was full",
	})

	LogPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hub",
		Name:      "log_persist_failures_total",
		Help:      "LOG messages that could not be persisted",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "hub",
		Name:      "subscribers",
		Help:      "Number of active message subscriptions",
	})

	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hub",
		Name:      "sink_errors_total",
		Help:      "Errors while forwarding messages to external sinks",
	}, []string{"sink"})
)

// 扩展客户端
var (
	ExtensionClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "extension",
		Name:      "clients",
		Help:      "Number of connected extension clients",
	})

	ExtensionCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "extension",
		Name:      "calls_total",
		Help:      "Remote command calls by outcome",
	}, []string{"outcome"})

	ExtensionCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "extension",
		Name:      "call_duration_seconds",
		Help:      "Latency of remote command calls",
		Buckets:   prometheus.DefBuckets,
	})

	PendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "extension",
		Name:      "pending_requests",
		Help:      "Number of calls waiting for a correlated reply",
	})

	HeartbeatsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "extension",
		Name:      "heartbeats_total",
		Help:      "Heartbeat ping broadcasts",
	})
)

// 调用结果标签
const (
	OutcomeSuccess      = "success"
	OutcomeTimeout      = "timeout"
	OutcomeNotConnected = "not_connected"
	OutcomeCancelled    = "cancelled"
)

// HTTP 接口
var (
	HTTPErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "errors_total",
		Help:      "Error responses by code and type",
	}, []string{"code", "type"})

	SSEStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "sse_streams",
		Help:      "Number of open log streams",
	})
)
