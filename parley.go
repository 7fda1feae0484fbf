// 包 parley 是入口门面：把无状态的补全原语升级为
// 带预算、并发与降级控制的多角色协商引擎。
//
// 最小用法：
//
//	engine, err := parley.New(parley.WithCompleter(fn))
//	if err != nil { ... }
//	defer engine.Close()
//
//	result, err := engine.Run(ctx, "should we rewrite the billing service?",
//	    []string{"architect", "sre"}, parley.SensitivityCanWait, parley.DepthStructuredPlan)
package parley

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/parley/config"
	"github.com/BaSui01/parley/internal/metrics"
	"github.com/BaSui01/parley/llm"
	"github.com/BaSui01/parley/llm/cache"
	"github.com/BaSui01/parley/orchestrator"
	"github.com/BaSui01/parley/scheduler"
	"github.com/BaSui01/parley/tokenizer"
	"github.com/BaSui01/parley/types"
)

// 常用类型与常量的再导出，调用方通常只需要导入本包。
type (
	// TimeSensitivity 调用方的时间敏感度。
	TimeSensitivity = types.TimeSensitivity
	// Depth 期望的分析深度。
	Depth = types.Depth
	// SynthesisResult 一次运行的最终产出。
	SynthesisResult = types.SynthesisResult
	// AgentResult 单个角色的结果。
	AgentResult = types.AgentResult
	// Event 运行期事件。
	Event = scheduler.Event
	// CompletionFunc 无状态补全原语。
	CompletionFunc = llm.CompletionFunc
)

const (
	SensitivityImmediate    = types.SensitivityImmediate
	SensitivityFewSecondsOK = types.SensitivityFewSecondsOK
	SensitivityCanWait      = types.SensitivityCanWait

	DepthQuickInsights  = types.DepthQuickInsights
	DepthStructuredPlan = types.DepthStructuredPlan
	DepthComprehensive  = types.DepthComprehensive
)

// Engine 装配完毕的协商引擎。
type Engine struct {
	orch   *orchestrator.Orchestrator
	rdb    *redis.Client
	logger *zap.Logger
}

type engineOptions struct {
	fn         llm.CompletionFunc
	cfg        *config.Config
	logger     *zap.Logger
	sink       scheduler.EventSink
	registerer prometheus.Registerer
}

// Option 引擎装配选项。
type Option func(*engineOptions)

// WithCompleter 设置补全原语。必填。
func WithCompleter(fn llm.CompletionFunc) Option {
	return func(o *engineOptions) { o.fn = fn }
}

// WithConfig 使用现成配置，未设置时用默认值。
func WithConfig(cfg *config.Config) Option {
	return func(o *engineOptions) { o.cfg = cfg }
}

// WithLogger 覆盖日志器（默认按配置构建）。
func WithLogger(logger *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithEventSink 订阅运行期事件。
func WithEventSink(sink scheduler.EventSink) Option {
	return func(o *engineOptions) { o.sink = sink }
}

// WithMetricsRegisterer 覆盖指标注册表（默认全局注册表）。
func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(o *engineOptions) { o.registerer = r }
}

// New 装配引擎。
func New(opts ...Option) (*Engine, error) {
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.fn == nil {
		return nil, types.NewError(types.ErrCompleterNotSet, "parley.New requires WithCompleter")
	}
	if o.cfg == nil {
		o.cfg = config.DefaultConfig()
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		built, err := o.cfg.Log.BuildLogger()
		if err != nil {
			return nil, err
		}
		logger = built
	}

	collector := metrics.NewCollector(o.registerer)

	var rdb *redis.Client
	if o.cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     o.cfg.Redis.Addr,
			Password: o.cfg.Redis.Password,
			DB:       o.cfg.Redis.DB,
			PoolSize: o.cfg.Redis.PoolSize,
		})
	}

	adapter := llm.NewAdapter(o.fn, llm.AdapterConfig{
		RateLimitRPS:   o.cfg.LLM.RateLimitRPS,
		RateLimitBurst: o.cfg.LLM.RateLimitBurst,
	}, logger).WithRecorder(collector)

	if o.cfg.Cache.Enabled || rdb != nil {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.EnableLocal = o.cfg.Cache.Enabled
		cacheCfg.LocalMaxSize = o.cfg.Cache.LocalMaxSize
		cacheCfg.LocalTTL = o.cfg.Cache.LocalTTL
		cacheCfg.RedisTTL = o.cfg.Cache.RedisTTL
		adapter = adapter.WithCache(cache.New(rdb, cacheCfg, logger))
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithRecorder(collector),
		orchestrator.WithGlobalBudget(o.cfg.Orchestrator.GlobalBudget),
		orchestrator.WithSynthesisTimeout(o.cfg.Orchestrator.SynthesisTimeout),
		orchestrator.WithEstimator(tokenizer.New(o.cfg.Orchestrator.TokenizerModel, logger)),
	}
	if o.sink != nil {
		orchOpts = append(orchOpts, orchestrator.WithEventSink(o.sink))
	}

	return &Engine{
		orch:   orchestrator.New(adapter, orchOpts...),
		rdb:    rdb,
		logger: logger,
	}, nil
}

// Run 执行一次完整运行。输入非法时返回 error，
// 否则总是带着一个 SynthesisResult 返回。
func (e *Engine) Run(ctx context.Context, problem string, roles []string, sensitivity TimeSensitivity, depth Depth) (*SynthesisResult, error) {
	return e.orch.Orchestrate(ctx, problem, roles, sensitivity, depth)
}

// Close 释放引擎持有的连接。
func (e *Engine) Close() error {
	_ = e.logger.Sync()
	if e.rdb != nil {
		return e.rdb.Close()
	}
	return nil
}
