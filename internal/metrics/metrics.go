package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "finlink"

// 标签取值
const (
	OutcomeRecorded      = "recorded"
	OutcomeNotFound      = "not_found"
	OutcomeWindowExpired = "window_expired"
	OutcomeInvalid       = "invalid"
	OutcomeEnqueued      = "enqueued"
	OutcomeEnqueueFailed = "enqueue_failed"
	OutcomeDelivered     = "delivered"
	OutcomeFailed        = "failed"
	OutcomeSkipped       = "skipped"

	NotifyKindClick      = "click"
	NotifyKindConversion = "conversion"

	VerdictFraudulent = "fraudulent"
	VerdictClean      = "clean"
)

var (
	// ClicksTotal 已记录点击数
	ClicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracking",
		Name:      "clicks_total",
		Help:      "Number of tracked clicks persisted.",
	})

	// ConversionsTotal 转化请求结果
	ConversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracking",
		Name:      "conversions_total",
		Help:      "Conversion attempts by outcome.",
	}, []string{"outcome"})

	// CommissionTotal 累计佣金金额
	CommissionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracking",
		Name:      "commission_amount_total",
		Help:      "Sum of commission credited by recorded conversions.",
	})

	// FraudChecksTotal 反作弊检查结果
	FraudChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fraud",
		Name:      "checks_total",
		Help:      "Fraud checks by verdict.",
	}, []string{"verdict"})

	// NotificationsTotal 合作方通知结果
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "partner",
		Name:      "notifications_total",
		Help:      "Partner notifications by kind and outcome.",
	}, []string{"kind", "outcome"})

	// RetentionDeletedTotal 保留策略删除的点击数
	RetentionDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "retention",
		Name:      "clicks_deleted_total",
		Help:      "Clicks removed by the retention sweep.",
	})

	// HTTPRequestsTotal 按路由模板统计请求数
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route template and status.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration 请求耗时分布
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route template.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)
