package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter HTTP请求计数
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rentdesk",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDurationHistogram HTTP请求耗时
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rentdesk",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// PaymentsCounter 租金支付结果计数（result: success / rejected / failed）
	PaymentsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rentdesk",
			Name:      "rent_payments_total",
			Help:      "Rent payment requests by result",
		},
		[]string{"result"},
	)

	// PaymentAmountCounter 已入账金额（kind: applied / excess）
	PaymentAmountCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rentdesk",
			Name:      "rent_payment_amount_total",
			Help:      "Whole currency units received, split into applied and excess-to-balance",
		},
		[]string{"kind"},
	)

	// ChargesCreatedCounter 生成的账单数（source: initial / roll_forward / schedule_next）
	ChargesCreatedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rentdesk",
			Name:      "rent_charges_created_total",
			Help:      "Charges created by source",
		},
		[]string{"source"},
	)

	// RollForwardLeasesCounter 月度滚动处理的租约数（outcome: created / covered / skipped / failed）
	RollForwardLeasesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rentdesk",
			Name:      "rent_roll_forward_leases_total",
			Help:      "Leases processed by the monthly roll-forward, by outcome",
		},
		[]string{"outcome"},
	)

	// NotificationFailures 通知发送失败计数
	NotificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rentdesk",
			Name:      "notification_failures_total",
			Help:      "Payment confirmation notifications that could not be delivered",
		},
	)

	registerOnce sync.Once
)

// Register 注册全部指标，重复调用安全
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDurationHistogram,
			PaymentsCounter,
			PaymentAmountCounter,
			ChargesCreatedCounter,
			RollForwardLeasesCounter,
			NotificationFailures,
		)
	})
}

// Middleware gin中间件，记录请求数与耗时
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// 使用路由模板而非实际路径，避免标签基数膨胀
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		RequestCounter.WithLabelValues(c.Request.Method, path, status).Inc()
		RequestDurationHistogram.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler Prometheus 抓取端点
func Handler() http.Handler {
	return promhttp.Handler()
}
