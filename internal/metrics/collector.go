// 包 metrics 提供 Prometheus 指标收集。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector 运行指标收集器。
// 同时满足补全层与调度层的记录接口。
type Collector struct {
	completionCalls   *prometheus.CounterVec
	completionLatency prometheus.Histogram
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	agentResults      *prometheus.CounterVec
	degradations      *prometheus.CounterVec
	runs              *prometheus.CounterVec
	runDuration       prometheus.Histogram
}

// NewCollector 创建并注册全部指标。
// registerer 为 nil 时使用默认注册表。
func NewCollector(registerer prometheus.Registerer) *Collector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Collector{
		completionCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "completion",
			Name:      "calls_total",
			Help:      "Completion calls by final status.",
		}, []string{"status"}),
		completionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parley",
			Subsystem: "completion",
			Name:      "call_duration_seconds",
			Help:      "Completion call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Completion cache hits.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Completion cache misses.",
		}),
		agentResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "scheduler",
			Name:      "agent_results_total",
			Help:      "Agent results by role and status.",
		}, []string{"role", "status"}),
		degradations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "scheduler",
			Name:      "degradations_total",
			Help:      "Degradation phase transitions.",
		}, []string{"from", "to"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Finished runs by final degradation phase.",
		}, []string{"final_phase"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parley",
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Wall clock duration of a full run.",
			Buckets:   []float64{1, 2, 5, 10, 15, 20, 25, 30, 60},
		}),
	}
}

// RecordCompletionCall 实现 llm.CallRecorder。
func (c *Collector) RecordCompletionCall(status string, latency time.Duration) {
	c.completionCalls.WithLabelValues(status).Inc()
	c.completionLatency.Observe(latency.Seconds())
}

// RecordCacheHit 实现 llm.CallRecorder。
func (c *Collector) RecordCacheHit() { c.cacheHits.Inc() }

// RecordCacheMiss 实现 llm.CallRecorder。
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Inc() }

// RecordAgentResult 实现 scheduler.Recorder。
func (c *Collector) RecordAgentResult(role, status string) {
	c.agentResults.WithLabelValues(role, status).Inc()
}

// RecordDegradation 实现 scheduler.Recorder。
func (c *Collector) RecordDegradation(from, to string) {
	c.degradations.WithLabelValues(from, to).Inc()
}

// RecordRun 实现 scheduler.Recorder。
func (c *Collector) RecordRun(finalPhase string, elapsed time.Duration) {
	c.runs.WithLabelValues(finalPhase).Inc()
	c.runDuration.Observe(elapsed.Seconds())
}
