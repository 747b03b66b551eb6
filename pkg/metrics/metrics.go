// Package metrics 提供 Prometheus 指标集合与 HTTP 暴露助手
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 理赔服务指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 接收的理赔计数
	ClaimsReceivedTotal prometheus.Counter
	// 按最终状态的裁决计数
	ClaimsDecidedTotal *prometheus.CounterVec
	// 欺诈标记计数（高风险）
	FraudFlaggedTotal prometheus.Counter
	// 阶段重试计数
	StageRetriesTotal *prometheus.CounterVec
	// 进行中的理赔管线数
	PipelinesActive prometheus.Gauge
	// 从接收到裁决的耗时
	DecisionLatency prometheus.Histogram
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claims",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "claims",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		ClaimsReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "claims",
			Subsystem: serviceName,
			Name:      "received_total",
			Help:      "Total incident reports accepted",
		}),
		ClaimsDecidedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claims",
			Subsystem: serviceName,
			Name:      "decided_total",
			Help:      "Total decisions by final status",
		}, []string{"status"}),
		FraudFlaggedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "claims",
			Subsystem: serviceName,
			Name:      "fraud_flagged_total",
			Help:      "Claims scored at high fraud risk",
		}),
		StageRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claims",
			Subsystem: serviceName,
			Name:      "stage_retries_total",
			Help:      "Collaborator call retries by workflow stage",
		}, []string{"stage"}),
		PipelinesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "claims",
			Subsystem: serviceName,
			Name:      "pipelines_active",
			Help:      "Claim pipelines currently in flight",
		}),
		DecisionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "claims",
			Subsystem: serviceName,
			Name:      "decision_latency_seconds",
			Help:      "Latency from claim receipt to terminal decision",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ClaimsReceivedTotal,
		m.ClaimsDecidedTotal,
		m.FraudFlaggedTotal,
		m.StageRetriesTotal,
		m.PipelinesActive,
		m.DecisionLatency,
	}
	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler 返回 Prometheus 暴露端点的 gin 处理函数
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
