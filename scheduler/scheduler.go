// 包 scheduler 按执行计划分派代理请求，并在失败与预算压力下
// 单调降级：Normal → ReducedConcurrency → ReducedScope → Emergency。
//
// 调度器保证每个请求恰好产出一个结果（未执行即 Skipped），
// 且任何路径都不会超出全局墙钟截止时刻。
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/parley/llm"
	"github.com/BaSui01/parley/tokenizer"
	"github.com/BaSui01/parley/types"
)

const (
	// maxParallelWidth 全并行策略的并发上限。
	maxParallelWidth = 3

	// EmergencyRequestID 应急合并调用的合成请求 ID。
	EmergencyRequestID = "emergency"
)

// Recorder 调度层指标接口。
type Recorder interface {
	// RecordAgentResult 记录单个请求的最终状态。
	RecordAgentResult(role, status string)
	// RecordDegradation 记录一次阶段推进。
	RecordDegradation(from, to string)
	// RecordRun 记录一次完整运行。
	RecordRun(finalPhase string, elapsed time.Duration)
}

// EventKind 事件类型。
type EventKind string

const (
	// EventResult 单个请求产出结果。
	EventResult EventKind = "result"
	// EventPhaseChange 降级阶段推进。
	EventPhaseChange EventKind = "phase_change"
	// EventEmergency 应急合并调用完成。
	EventEmergency EventKind = "emergency"
)

// Event 运行期事件，通过 EventSink 推送给调用方。
type Event struct {
	Kind      EventKind              `json:"kind"`
	RequestID string                 `json:"request_id,omitempty"`
	Role      string                 `json:"role,omitempty"`
	Status    types.ResultStatus     `json:"status,omitempty"`
	From      types.DegradationPhase `json:"from,omitempty"`
	To        types.DegradationPhase `json:"to,omitempty"`
	At        time.Time              `json:"at"`
}

// EventSink 事件回调。必须快速返回，调度器在热路径上同步调用它。
type EventSink func(Event)

// Outcome 一次调度运行的完整产出。
type Outcome struct {
	// Results 请求 ID → 结果，每个输入请求恰好一项。
	Results map[string]types.AgentResult
	// Emergency 应急合并调用的结果，未触发时为 nil。
	Emergency *types.AgentResult
	// Final 运行结束时的降级状态。
	Final types.DegradationState
}

// Scheduler 批次调度器。
type Scheduler struct {
	completer llm.Completer
	estimator tokenizer.Estimator
	recorder  Recorder
	sink      EventSink
	logger    *zap.Logger
	tracer    trace.Tracer
}

// Option 调度器选项。
type Option func(*Scheduler)

// WithLogger 设置日志器。
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder 设置指标记录器。
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithEstimator 设置 token 估算器（范围收缩时截断提示词用）。
func WithEstimator(e tokenizer.Estimator) Option {
	return func(s *Scheduler) { s.estimator = e }
}

// WithEventSink 设置事件回调。
func WithEventSink(sink EventSink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// New 创建调度器。
func New(completer llm.Completer, opts ...Option) *Scheduler {
	s := &Scheduler{
		completer: completer,
		estimator: tokenizer.NewHeuristic(),
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("github.com/BaSui01/parley/scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "scheduler"))
	return s
}

// Run 按计划执行一组请求。
//
// 返回的 Outcome 对每个输入请求都含有恰好一个结果；
// 只有输入本身非法（空请求集、未知策略、缺补全器）才返回 error。
func (s *Scheduler) Run(ctx context.Context, problem string, requests []types.AgentRequest, plan types.ExecutionPlan) (*Outcome, error) {
	if s.completer == nil {
		return nil, types.NewError(types.ErrCompleterNotSet, "scheduler has no completer")
	}
	if len(requests) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "empty request set")
	}
	switch plan.Strategy {
	case types.StrategySequential, types.StrategyMicroBatch, types.StrategyFullParallel:
	default:
		return nil, types.NewError(types.ErrInvalidPlan, fmt.Sprintf("unknown strategy %q", plan.Strategy))
	}

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "scheduler.run",
		trace.WithAttributes(
			attribute.String("strategy", string(plan.Strategy)),
			attribute.Int("requests", len(requests)),
		))
	defer span.End()

	runCtx, cancel := context.WithDeadline(ctx, plan.GlobalDeadline)
	defer cancel()

	out := &Outcome{Results: make(map[string]types.AgentResult, len(requests))}

	ctrl := NewController(s.estimator, s.logger)
	ctrl.OnAdvance(func(from, to types.DegradationPhase) {
		if s.recorder != nil {
			s.recorder.RecordDegradation(from.String(), to.String())
		}
		span.AddEvent("degradation", trace.WithAttributes(
			attribute.String("from", from.String()),
			attribute.String("to", to.String()),
		))
		s.emit(Event{Kind: EventPhaseChange, From: from, To: to, At: time.Now()})
	})

	pending := make([]types.AgentRequest, len(requests))
	copy(pending, requests)
	restarted := make(map[string]bool)
	scoped := false

	for len(pending) > 0 {
		remaining := plan.Remaining(time.Now())
		if remaining <= 0 {
			break
		}
		ctrl.ObserveBudget(remaining, plan.PerCallTimeout)

		phase := ctrl.Phase()
		if phase == types.PhaseEmergency {
			break
		}
		if phase >= types.PhaseReducedConcurrency && !(plan.Strategy == types.StrategyMicroBatch && plan.BatchSize == 1) {
			// 降并发：用宽度 1 的新计划取代剩余部分，截止时刻不变。
			plan = plan.DeriveMicroBatch(1, 0)
		}
		if phase >= types.PhaseReducedScope && !scoped {
			var dropped []types.AgentRequest
			pending, dropped = ctrl.ReduceScope(pending, remaining, plan.PerCallTimeout)
			for _, req := range dropped {
				s.record(out, skippedResult(req))
			}
			scoped = true
			if len(pending) == 0 {
				break
			}
		}

		width := effectiveWidth(plan, len(pending))
		batch := pending[:width]
		pending = pending[width:]

		timeout := plan.PerCallTimeout
		if remaining < timeout {
			timeout = remaining
		}

		if width == 1 {
			res := s.call(runCtx, batch[0], timeout)
			s.record(out, res)
			ctrl.ObserveResult(res)
			continue
		}

		results := s.runWave(runCtx, batch, timeout, width)
		for _, req := range batch {
			res := results[req.ID]
			if plan.Strategy == types.StrategyFullParallel &&
				res.Status == types.StatusTimedOut &&
				!restarted[req.ID] &&
				plan.Remaining(time.Now()) > emergencyFloor {
				// 丢弃被放弃的并行调用，降并发后整单重试一次。
				restarted[req.ID] = true
				pending = append(pending, req)
				ctrl.ForceAdvance(types.PhaseReducedConcurrency)
				continue
			}
			s.record(out, res)
			ctrl.ObserveResult(res)
		}
	}

	if ctrl.Phase() == types.PhaseEmergency {
		if remaining := plan.Remaining(time.Now()); remaining > 0 {
			out.Emergency = s.emergencyCall(runCtx, problem, requests, remaining)
		}
	}

	// 没有结果的请求一律补记 Skipped，保证一请求一结果。
	for _, req := range requests {
		if _, ok := out.Results[req.ID]; !ok {
			s.record(out, skippedResult(req))
		}
	}

	out.Final = ctrl.State()
	span.SetAttributes(attribute.String("final_phase", out.Final.Phase.String()))
	if s.recorder != nil {
		s.recorder.RecordRun(out.Final.Phase.String(), time.Since(start))
	}

	s.logger.Info("run finished",
		zap.String("strategy", string(plan.Strategy)),
		zap.String("final_phase", out.Final.Phase.String()),
		zap.Int("requests", len(requests)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// effectiveWidth 由当前生效计划得出本轮并发宽度。
// 降级造成的收缩不在这里体现：控制器推进后计划已被取代。
func effectiveWidth(plan types.ExecutionPlan, pending int) int {
	width := 1
	switch plan.Strategy {
	case types.StrategyMicroBatch:
		width = plan.BatchSize
	case types.StrategyFullParallel:
		width = maxParallelWidth
	}
	if width < 1 {
		width = 1
	}
	if width > pending {
		width = pending
	}
	return width
}

// call 执行单个请求并转换为结果。
func (s *Scheduler) call(ctx context.Context, req types.AgentRequest, timeout time.Duration) types.AgentResult {
	cr := s.completer.Complete(ctx, req.Prompt, timeout)
	return types.AgentResult{
		RequestID: req.ID,
		Role:      req.Role,
		Status:    cr.Status,
		Text:      cr.Text,
		Latency:   cr.Latency,
	}
}

// runWave 并发执行一批请求，宽度受 width 限制。
func (s *Scheduler) runWave(ctx context.Context, batch []types.AgentRequest, timeout time.Duration, width int) map[string]types.AgentResult {
	var mu sync.Mutex
	results := make(map[string]types.AgentResult, len(batch))

	g := new(errgroup.Group)
	g.SetLimit(width)
	for _, req := range batch {
		req := req
		g.Go(func() error {
			res := s.call(ctx, req, timeout)
			mu.Lock()
			results[req.ID] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// emergencyCall 应急合并调用：全部角色压缩为一次提问。
func (s *Scheduler) emergencyCall(ctx context.Context, problem string, requests []types.AgentRequest, remaining time.Duration) *types.AgentResult {
	cr := s.completer.Complete(ctx, emergencyPrompt(problem, requests), remaining)
	res := &types.AgentResult{
		RequestID: EmergencyRequestID,
		Role:      EmergencyRequestID,
		Status:    cr.Status,
		Text:      cr.Text,
		Latency:   cr.Latency,
	}

	s.emit(Event{Kind: EventEmergency, RequestID: res.RequestID, Status: res.Status, At: time.Now()})
	if s.recorder != nil {
		s.recorder.RecordAgentResult(res.Role, string(res.Status))
	}
	s.logger.Warn("emergency call finished", zap.String("status", string(res.Status)))
	return res
}

// emergencyPrompt 渲染应急提示词。
func emergencyPrompt(problem string, requests []types.AgentRequest) string {
	roles := make([]string, 0, len(requests))
	for _, req := range requests {
		roles = append(roles, req.Role)
	}

	var sb strings.Builder
	sb.WriteString("Time budget is nearly exhausted. Answer once, combining these perspectives: ")
	sb.WriteString(strings.Join(roles, ", "))
	sb.WriteString(".\n\nProblem:\n")
	sb.WriteString(problem)
	sb.WriteString("\n\nIn at most 120 words state: (1) the core issue, (2) the single best action, (3) the main risk.")
	return sb.String()
}

func (s *Scheduler) record(out *Outcome, res types.AgentResult) {
	out.Results[res.RequestID] = res
	if s.recorder != nil {
		s.recorder.RecordAgentResult(res.Role, string(res.Status))
	}
	s.emit(Event{
		Kind:      EventResult,
		RequestID: res.RequestID,
		Role:      res.Role,
		Status:    res.Status,
		At:        time.Now(),
	})
}

func (s *Scheduler) emit(ev Event) {
	if s.sink != nil {
		s.sink(ev)
	}
}

func skippedResult(req types.AgentRequest) types.AgentResult {
	return types.AgentResult{
		RequestID: req.ID,
		Role:      req.Role,
		Status:    types.StatusSkipped,
	}
}
