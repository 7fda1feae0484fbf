// 包 planner 将时间敏感度与请求数量映射为执行计划。
//
// 决策表：
//
//	immediate        → Sequential
//	few_seconds_ok   → MicroBatch(2)
//	can_wait, n ≤ 3  → MicroBatch(2)
//	can_wait, n > 3  → FullParallelWithFallback
//
// 计划同时给出全局截止时刻与单次调用超时；
// 单次调用超时永远不会超过全局预算。
package planner

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/parley/types"
)

const (
	// DefaultGlobalBudget 默认全局墙钟预算。
	DefaultGlobalBudget = 25 * time.Second

	// minPerCallTimeout 单次调用超时下限。
	minPerCallTimeout = 2 * time.Second

	// microBatchSize 微批固定宽度。
	microBatchSize = 2
)

// Planner 执行计划器。
type Planner struct {
	budget time.Duration
	logger *zap.Logger
}

// Option 计划器选项。
type Option func(*Planner)

// WithGlobalBudget 覆盖全局预算。非正值被忽略。
func WithGlobalBudget(budget time.Duration) Option {
	return func(p *Planner) {
		if budget > 0 {
			p.budget = budget
		}
	}
}

// New 创建计划器。
func New(logger *zap.Logger, opts ...Option) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Planner{
		budget: DefaultGlobalBudget,
		logger: logger.With(zap.String("component", "planner")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Budget 返回配置的全局预算。
func (p *Planner) Budget() time.Duration { return p.budget }

// Plan 为一组请求生成执行计划。now 是运行起点，
// 全局截止时刻 = now + 预算。
func (p *Planner) Plan(count int, sensitivity types.TimeSensitivity, now time.Time) types.ExecutionPlan {
	if count < 1 {
		count = 1
	}

	plan := types.ExecutionPlan{
		GlobalDeadline: now.Add(p.budget),
	}

	switch {
	case sensitivity == types.SensitivityImmediate:
		plan.Strategy = types.StrategySequential
		plan.BatchSize = 1
	case sensitivity == types.SensitivityCanWait && count > 3:
		plan.Strategy = types.StrategyFullParallel
		plan.BatchSize = count
	default:
		// few_seconds_ok，以及 can_wait 的小批量。
		plan.Strategy = types.StrategyMicroBatch
		plan.BatchSize = microBatchSize
		if plan.BatchSize > count {
			plan.BatchSize = count
		}
	}

	plan.PerCallTimeout = p.perCallTimeout(plan.Strategy, count)

	p.logger.Debug("plan selected",
		zap.String("strategy", string(plan.Strategy)),
		zap.Int("requests", count),
		zap.String("sensitivity", string(sensitivity)),
		zap.Duration("per_call_timeout", plan.PerCallTimeout),
	)
	return plan
}

// perCallTimeout 按策略切分预算。
// 串行为每次调用均分并预留一份合成余量；
// 并发形态按三分之一预算，留出重试与合成空间。
func (p *Planner) perCallTimeout(strategy types.Strategy, count int) time.Duration {
	var t time.Duration
	switch strategy {
	case types.StrategySequential:
		t = p.budget / time.Duration(count+1)
	default:
		t = p.budget / 3
	}

	if t < minPerCallTimeout {
		t = minPerCallTimeout
	}
	if t > p.budget {
		t = p.budget
	}
	return t
}
