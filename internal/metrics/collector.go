// Package metrics 定义服务的 prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector 指标收集器
type Collector struct {
	qaTotal          *prometheus.CounterVec
	qaDuration       prometheus.Histogram
	retrievalHits    prometheus.Histogram
	retrievalLatency prometheus.Histogram
	rerankFallbacks  prometheus.Counter
	cacheEntries     prometheus.Gauge
	graphBuilds      prometheus.Counter
	graphBuildTime   prometheus.Histogram
}

// NewCollector 创建并注册全部指标
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		qaTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragkb",
			Name:      "qa_requests_total",
			Help:      "QA requests by outcome (hit, generated, no_context, error).",
		}, []string{"outcome"}),
		qaDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragkb",
			Name:      "qa_duration_seconds",
			Help:      "End-to-end QA pipeline latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		retrievalHits: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragkb",
			Name:      "retrieval_hits",
			Help:      "Number of chunks returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		retrievalLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragkb",
			Name:      "retrieval_duration_seconds",
			Help:      "Embedding plus index search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		rerankFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragkb",
			Name:      "rerank_fallbacks_total",
			Help:      "Reranks that fell back to retrieval order.",
		}),
		cacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragkb",
			Name:      "qa_cache_entries",
			Help:      "Current QA cache size.",
		}),
		graphBuilds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragkb",
			Name:      "graph_builds_total",
			Help:      "Knowledge graph rebuilds.",
		}),
		graphBuildTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragkb",
			Name:      "graph_build_duration_seconds",
			Help:      "Knowledge graph rebuild latency.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
}

// ObserveQA 记录一次问答请求
func (c *Collector) ObserveQA(outcome string, elapsed time.Duration) {
	c.qaTotal.WithLabelValues(outcome).Inc()
	c.qaDuration.Observe(elapsed.Seconds())
}

// ObserveRetrieval 记录一次检索
func (c *Collector) ObserveRetrieval(hits int, elapsed time.Duration) {
	c.retrievalHits.Observe(float64(hits))
	c.retrievalLatency.Observe(elapsed.Seconds())
}

// RerankFallback 记录一次重排退化
func (c *Collector) RerankFallback() {
	c.rerankFallbacks.Inc()
}

// SetCacheEntries 更新缓存大小
func (c *Collector) SetCacheEntries(n int) {
	c.cacheEntries.Set(float64(n))
}

// ObserveGraphBuild 记录一次图谱重建
func (c *Collector) ObserveGraphBuild(elapsed time.Duration) {
	c.graphBuilds.Inc()
	c.graphBuildTime.Observe(elapsed.Seconds())
}
