package types

import "time"

// Strategy 派发策略。
type Strategy string

const (
	// StrategySequential 逐个顺序派发，每次派发前检查剩余预算。
	StrategySequential Strategy = "sequential"
	// StrategyMicroBatch 按原始顺序分成 ≤BatchSize 的连续小组，组内并发。
	StrategyMicroBatch Strategy = "micro_batch"
	// StrategyFullParallel 全量并发（受全局宽度上限约束），
	// 超时则整体作废并回退到降级计划重新派发。
	StrategyFullParallel Strategy = "full_parallel"
)

// ExecutionPlan 一次运行的派发计划。
// 由 planner 创建后只读；降级控制器以新计划取代它，从不原地修改
// （见 Derive*），因此可以安全按值传递。
type ExecutionPlan struct {
	// Strategy 并发形态。
	Strategy Strategy `json:"strategy"`

	// BatchSize 小批大小（仅 StrategyMicroBatch 使用），1 ≤ BatchSize ≤ 请求数。
	BatchSize int `json:"batch_size"`

	// PerCallTimeout 单次补全调用的超时上限。
	PerCallTimeout time.Duration `json:"per_call_timeout"`

	// GlobalDeadline 全局墙钟截止时刻，任何新调用都不得在其之后发起。
	GlobalDeadline time.Time `json:"global_deadline"`
}

// Remaining 返回距全局截止的剩余预算，已过期时为 0。
func (p ExecutionPlan) Remaining(now time.Time) time.Duration {
	if !now.Before(p.GlobalDeadline) {
		return 0
	}
	return p.GlobalDeadline.Sub(now)
}

// Expired 报告全局截止是否已过。
func (p ExecutionPlan) Expired(now time.Time) bool {
	return !now.Before(p.GlobalDeadline)
}

// DeriveMicroBatch 返回一个取代本计划的小批计划，保持全局截止不变。
// batchSize 下限为 1；perCallTimeout 为 0 时沿用原值。
func (p ExecutionPlan) DeriveMicroBatch(batchSize int, perCallTimeout time.Duration) ExecutionPlan {
	if batchSize < 1 {
		batchSize = 1
	}
	next := p
	next.Strategy = StrategyMicroBatch
	next.BatchSize = batchSize
	if perCallTimeout > 0 {
		next.PerCallTimeout = perCallTimeout
	}
	return next
}
