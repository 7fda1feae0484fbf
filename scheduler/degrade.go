package scheduler

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/parley/tokenizer"
	"github.com/BaSui01/parley/types"
)

const (
	// attemptsPerPhase 每个阶段允许的失败次数。
	attemptsPerPhase = 3

	// emergencyFloor 剩余预算低于该值时直接进入应急阶段。
	emergencyFloor = 3 * time.Second

	// scopeTokenCap 范围收缩后单个提示词的 token 上限。
	scopeTokenCap = 400
)

// Controller 单调降级控制器。
//
// 阶段只前进不后退：Normal → ReducedConcurrency → ReducedScope → Emergency。
// 每个阶段自带失败容忍额度（attemptsPerPhase），额度耗尽推进一档；
// 预算压力可以跨档直达应急阶段。
type Controller struct {
	state     types.DegradationState
	estimator tokenizer.Estimator
	logger    *zap.Logger
	onAdvance func(from, to types.DegradationPhase)
}

// NewController 创建控制器，初始阶段 Normal。
func NewController(estimator tokenizer.Estimator, logger *zap.Logger) *Controller {
	if estimator == nil {
		estimator = tokenizer.NewHeuristic()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		state:     types.NewDegradationState(attemptsPerPhase),
		estimator: estimator,
		logger:    logger.With(zap.String("component", "degradation_controller")),
	}
}

// OnAdvance 注册阶段推进回调。
func (c *Controller) OnAdvance(fn func(from, to types.DegradationPhase)) {
	c.onAdvance = fn
}

// State 返回当前降级状态的副本。
func (c *Controller) State() types.DegradationState { return c.state }

// Phase 返回当前阶段。
func (c *Controller) Phase() types.DegradationPhase { return c.state.Phase }

// ObserveResult 记录一次调用结果。
// 失败消耗一次容忍额度，额度耗尽时推进一档并重置额度。
// 返回是否发生了阶段推进。
func (c *Controller) ObserveResult(res types.AgentResult) bool {
	if res.OK() {
		return false
	}

	c.state.ConsumeAttempt()
	if c.state.AttemptsRemaining > 0 {
		c.logger.Debug("failure tolerated",
			zap.String("request_id", res.RequestID),
			zap.String("status", string(res.Status)),
			zap.Int("attempts_remaining", c.state.AttemptsRemaining),
		)
		return false
	}
	return c.advanceTo(c.state.Phase + 1)
}

// ObserveBudget 根据剩余预算评估压力。
// 剩不下一次完整调用时推进一档；逼近应急下限时直达应急阶段。
func (c *Controller) ObserveBudget(remaining, perCall time.Duration) bool {
	if remaining <= emergencyFloor {
		return c.advanceTo(types.PhaseEmergency)
	}
	if remaining < perCall {
		return c.advanceTo(c.state.Phase + 1)
	}
	return false
}

// ForceAdvance 外部强制推进（并行波次放弃重启时使用）。
func (c *Controller) ForceAdvance(next types.DegradationPhase) bool {
	return c.advanceTo(next)
}

func (c *Controller) advanceTo(next types.DegradationPhase) bool {
	if next > types.PhaseEmergency {
		next = types.PhaseEmergency
	}
	from := c.state.Phase
	if next <= from {
		return false
	}

	if err := c.state.Advance(next); err != nil {
		// Advance 只对回退报错，到这里 next > from，不可能发生。
		c.logger.Error("degradation transition rejected", zap.Error(err))
		return false
	}
	c.state.AttemptsRemaining = attemptsPerPhase

	c.logger.Warn("degradation advanced",
		zap.String("from", from.String()),
		zap.String("to", next.String()),
	)
	if c.onAdvance != nil {
		c.onAdvance(from, next)
	}
	return true
}

// ReduceScope 实施范围收缩：保留剩余预算装得下的最高优先级子集
// （串行计，上限为前半、向上取整），其余请求返回给调用方标记为 Skipped；
// 保留的提示词截断到 token 上限。
// 输入按优先级升序（数值小者更重要），与构建器输出一致。
func (c *Controller) ReduceScope(pending []types.AgentRequest, remaining, perCall time.Duration) (kept, dropped []types.AgentRequest) {
	if len(pending) == 0 {
		return nil, nil
	}

	keep := int(math.Ceil(float64(len(pending)) / 2))
	if perCall > 0 {
		if fits := int(remaining / perCall); fits < keep {
			keep = fits
		}
	}
	if keep < 1 {
		keep = 1
	}
	kept = make([]types.AgentRequest, keep)
	copy(kept, pending[:keep])
	dropped = pending[keep:]

	for i := range kept {
		before := c.estimator.Count(kept[i].Prompt)
		if before > scopeTokenCap {
			kept[i].Prompt = c.estimator.Truncate(kept[i].Prompt, scopeTokenCap)
			c.logger.Debug("prompt truncated",
				zap.String("request_id", kept[i].ID),
				zap.Int("tokens_before", before),
				zap.Int("token_cap", scopeTokenCap),
			)
		}
	}
	return kept, dropped
}
