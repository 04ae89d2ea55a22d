// Package metrics 定义服务的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AccessDecisions 访问决策次数, outcome 为 allow/deny
	AccessDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileshare_access_decisions_total",
			Help: "访问决策次数",
		},
		[]string{"outcome", "reason"},
	)

	// ShareConsumptions 分享链接额度消耗结果
	ShareConsumptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileshare_share_consumptions_total",
			Help: "分享链接额度消耗次数",
		},
		[]string{"result"},
	)

	// PreviewCache 预览缓存命中情况, result 为 hit/miss/error
	PreviewCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileshare_preview_cache_total",
			Help: "预览缓存查询次数",
		},
		[]string{"result"},
	)

	// PreviewRenderDuration 水印渲染耗时
	PreviewRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fileshare_preview_render_duration_seconds",
			Help:    "水印预览渲染耗时",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// SweeperItems 过期清理的逐项结果
	SweeperItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileshare_sweeper_items_total",
			Help: "过期文件清理条目数",
		},
		[]string{"result"},
	)

	// HTTPRequests HTTP 请求数
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileshare_http_requests_total",
			Help: "HTTP 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration HTTP 请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fileshare_http_request_duration_seconds",
			Help:    "HTTP 请求耗时",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
