// 包 orchestrator 串联完整流水线：
// 分解 → 计划 → 调度（含降级）→ 合成。
//
// Orchestrate 只在输入非法时返回 error；一旦开始执行，
// 运行必然以一个 SynthesisResult 收场。
package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/parley/aggregate"
	"github.com/BaSui01/parley/builder"
	"github.com/BaSui01/parley/llm"
	"github.com/BaSui01/parley/planner"
	"github.com/BaSui01/parley/scheduler"
	"github.com/BaSui01/parley/tokenizer"
	"github.com/BaSui01/parley/types"
)

// Orchestrator 流水线编排器。
type Orchestrator struct {
	builder     *builder.Builder
	planner     *planner.Planner
	scheduler   *scheduler.Scheduler
	synthesizer *aggregate.Synthesizer
	logger      *zap.Logger
	tracer      trace.Tracer
}

// options 装配期参数。
type options struct {
	logger           *zap.Logger
	recorder         scheduler.Recorder
	estimator        tokenizer.Estimator
	sink             scheduler.EventSink
	globalBudget     time.Duration
	synthesisTimeout time.Duration
}

// Option 编排器选项。
type Option func(*options)

// WithLogger 设置日志器。
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder 设置指标记录器。
func WithRecorder(r scheduler.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithEstimator 设置 token 估算器。
func WithEstimator(e tokenizer.Estimator) Option {
	return func(o *options) { o.estimator = e }
}

// WithEventSink 订阅运行期事件。
func WithEventSink(sink scheduler.EventSink) Option {
	return func(o *options) { o.sink = sink }
}

// WithGlobalBudget 覆盖全局墙钟预算。
func WithGlobalBudget(d time.Duration) Option {
	return func(o *options) { o.globalBudget = d }
}

// WithSynthesisTimeout 覆盖合成调用超时。
func WithSynthesisTimeout(d time.Duration) Option {
	return func(o *options) { o.synthesisTimeout = d }
}

// New 装配编排器。completer 是唯一的硬依赖。
func New(completer llm.Completer, opts ...Option) *Orchestrator {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.estimator == nil {
		o.estimator = tokenizer.NewHeuristic()
	}

	plannerOpts := []planner.Option{}
	if o.globalBudget > 0 {
		plannerOpts = append(plannerOpts, planner.WithGlobalBudget(o.globalBudget))
	}

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(o.logger),
		scheduler.WithEstimator(o.estimator),
	}
	if o.recorder != nil {
		schedOpts = append(schedOpts, scheduler.WithRecorder(o.recorder))
	}
	if o.sink != nil {
		schedOpts = append(schedOpts, scheduler.WithEventSink(o.sink))
	}

	synthOpts := []aggregate.Option{aggregate.WithLogger(o.logger)}
	if o.synthesisTimeout > 0 {
		synthOpts = append(synthOpts, aggregate.WithTimeout(o.synthesisTimeout))
	}

	return &Orchestrator{
		builder:     builder.New(o.logger).WithEstimator(o.estimator),
		planner:     planner.New(o.logger, plannerOpts...),
		scheduler:   scheduler.New(completer, schedOpts...),
		synthesizer: aggregate.New(completer, synthOpts...),
		logger:      o.logger.With(zap.String("component", "orchestrator")),
		tracer:      otel.Tracer("github.com/BaSui01/parley/orchestrator"),
	}
}

// Orchestrate 执行一次完整运行。
func (o *Orchestrator) Orchestrate(ctx context.Context, problem string, roles []string, sensitivity types.TimeSensitivity, depth types.Depth) (*types.SynthesisResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.run",
		trace.WithAttributes(
			attribute.String("sensitivity", string(sensitivity)),
			attribute.String("depth", string(depth)),
			attribute.Int("roles", len(roles)),
		))
	defer span.End()

	batch, err := o.builder.Build(problem, roles, depth)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With(zap.String("run_id", batch.RunID))
	span.SetAttributes(attribute.String("run_id", batch.RunID))

	start := time.Now()
	plan := o.planner.Plan(len(batch.Requests), sensitivity, start)
	logger.Info("run started",
		zap.String("strategy", string(plan.Strategy)),
		zap.Int("requests", len(batch.Requests)),
		zap.Time("deadline", plan.GlobalDeadline),
	)

	out, err := o.scheduler.Run(ctx, batch.Problem, batch.Requests, plan)
	if err != nil {
		return nil, err
	}

	result := o.synthesizer.Synthesize(ctx, batch.Problem, batch.Requests, out, plan.GlobalDeadline)

	logger.Info("run synthesized",
		zap.Bool("degraded", result.Degraded),
		zap.Int("successes", result.SuccessCount()),
		zap.String("final_phase", out.Final.Phase.String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &result, nil
}
