package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	registry prometheus.Gatherer

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮件生命周期指标
	MessagesSent    prometheus.Counter
	MessageDrafts   prometheus.Counter
	MessagesRead    prometheus.Counter
	MessagesTrashed prometheus.Counter

	NotificationsCreated prometheus.Counter

	// 审核与评论
	ModerationRequests *prometheus.CounterVec
	ModerationDuration prometheus.Histogram
	CommentsCreated    *prometheus.CounterVec

	// 实时推送
	RealtimePushes       *prometheus.CounterVec
	RealtimePushFailures *prometheus.CounterVec
	RealtimeDropped      prometheus.Counter
	WebSocketConnections prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标并注册到 reg；reg 为 nil 时使用新的独立注册表
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notika_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notika_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "notika_messages_sent_total",
			Help: "Total number of messages sent",
		}),
		MessageDrafts: factory.NewCounter(prometheus.CounterOpts{
			Name: "notika_message_drafts_total",
			Help: "Total number of drafts saved",
		}),
		MessagesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "notika_messages_read_total",
			Help: "Total number of unread to read transitions",
		}),
		MessagesTrashed: factory.NewCounter(prometheus.CounterOpts{
			Name: "notika_messages_trashed_total",
			Help: "Total number of messages moved to trash",
		}),

		NotificationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "notika_notifications_created_total",
			Help: "Total number of persisted notifications",
		}),

		ModerationRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notika_moderation_requests_total",
				Help: "Toxicity analysis calls by outcome",
			},
			[]string{"outcome"},
		),
		ModerationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "notika_moderation_duration_seconds",
			Help:    "Toxicity analysis latency including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}),
		CommentsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notika_comments_created_total",
				Help: "Comments created by initial status",
			},
			[]string{"status"},
		),

		RealtimePushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notika_realtime_pushes_total",
				Help: "Realtime events pushed",
			},
			[]string{"event"},
		),
		RealtimePushFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notika_realtime_push_failures_total",
				Help: "Realtime events that failed to push",
			},
			[]string{"event"},
		),
		RealtimeDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "notika_realtime_dropped_total",
			Help: "Realtime events dropped because the outbound queue was full",
		}),
		WebSocketConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "notika_websocket_connections",
			Help: "Open websocket connections on this instance",
		}),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notika_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),
		PanicsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "notika_panics_total",
			Help: "Total number of recovered panics",
		}),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveModeration 记录一次审核调用（实现 moderation.Observer）
func (m *Metrics) ObserveModeration(outcome string, duration time.Duration) {
	m.ModerationRequests.WithLabelValues(outcome).Inc()
	m.ModerationDuration.Observe(duration.Seconds())
}

// RecordCommentCreated 记录评论创建
func (m *Metrics) RecordCommentCreated(status string) {
	m.CommentsCreated.WithLabelValues(status).Inc()
}

// RecordPush 记录推送结果
func (m *Metrics) RecordPush(event string, err error) {
	if err != nil {
		m.RealtimePushFailures.WithLabelValues(event).Inc()
		return
	}
	m.RealtimePushes.WithLabelValues(event).Inc()
}

// RecordDropped 记录因队列已满而丢弃的事件
func (m *Metrics) RecordDropped() {
	m.RealtimeDropped.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordMessageEvent 记录邮件生命周期事件：sent、draft、read、trashed
func (m *Metrics) RecordMessageEvent(kind string) {
	switch kind {
	case "sent":
		m.MessagesSent.Inc()
	case "draft":
		m.MessageDrafts.Inc()
	case "read":
		m.MessagesRead.Inc()
	case "trashed":
		m.MessagesTrashed.Inc()
	}
}

// RecordNotificationCreated 记录通知写入
func (m *Metrics) RecordNotificationCreated() {
	m.NotificationsCreated.Inc()
}
