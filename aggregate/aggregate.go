// 包 aggregate 将一次运行的全部结果合成为最终答案。
//
// 合成永远成功：合成调用失败时退回按角色拼接，
// 零可用结果时退回应急文本或固定说明。运行从不以失败收场。
package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/parley/llm"
	"github.com/BaSui01/parley/scheduler"
	"github.com/BaSui01/parley/types"
)

const (
	// DefaultSynthesisTimeout 合成调用的默认超时，受剩余预算钳制。
	DefaultSynthesisTimeout = 8 * time.Second

	// NoUsableResponseText 零可用结果且无应急文本时的最终回答。
	NoUsableResponseText = "no agent produced a usable response"
)

// Synthesizer 结果合成器。
type Synthesizer struct {
	completer llm.Completer
	timeout   time.Duration
	logger    *zap.Logger
}

// Option 合成器选项。
type Option func(*Synthesizer)

// WithTimeout 覆盖合成调用超时。非正值被忽略。
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger 设置日志器。
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New 创建合成器。completer 为 nil 时只做拼接回退。
func New(completer llm.Completer, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		completer: completer,
		timeout:   DefaultSynthesisTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "synthesizer"))
	return s
}

// Synthesize 聚合一次运行的产出。deadline 是全局截止时刻，
// 合成调用的超时会被钳制到剩余预算内。
func (s *Synthesizer) Synthesize(ctx context.Context, problem string, requests []types.AgentRequest, out *scheduler.Outcome, deadline time.Time) types.SynthesisResult {
	perRequest := orderedResults(requests, out)
	result := types.SynthesisResult{
		SourceResults: perRequest,
		Degraded:      out.Final.Phase > types.PhaseNormal || anyNotOK(perRequest),
	}
	if out.Emergency != nil {
		result.SourceResults = append(result.SourceResults, *out.Emergency)
	}

	usable := usableResults(perRequest)

	if len(usable) == 0 {
		// 个体结果全军覆没：应急文本是最后的可用产出。
		if out.Emergency != nil && out.Emergency.OK() {
			result.Text = out.Emergency.Text
			return result
		}
		result.Text = NoUsableResponseText
		return result
	}

	if text, ok := s.synthesisCall(ctx, problem, usable, deadline); ok {
		result.Text = text
		return result
	}

	result.Text = concatFallback(usable)
	return result
}

// synthesisCall 尝试一次合成调用。预算不足或调用失败返回 ok=false。
func (s *Synthesizer) synthesisCall(ctx context.Context, problem string, usable []types.AgentResult, deadline time.Time) (string, bool) {
	if s.completer == nil {
		return "", false
	}
	timeout := s.timeout
	if remaining := time.Until(deadline); remaining < timeout {
		timeout = remaining
	}
	if timeout <= 0 {
		s.logger.Debug("no budget left for synthesis, using concat fallback")
		return "", false
	}

	cr := s.completer.Complete(ctx, synthesisPrompt(problem, usable), timeout)
	if cr.Status != types.StatusSuccess || strings.TrimSpace(cr.Text) == "" {
		s.logger.Warn("synthesis call failed, using concat fallback",
			zap.String("status", string(cr.Status)),
		)
		return "", false
	}
	return cr.Text, true
}

// synthesisPrompt 渲染合成提示词。
func synthesisPrompt(problem string, usable []types.AgentResult) string {
	var sb strings.Builder
	sb.WriteString("Multiple specialists analyzed the same problem. Merge their answers into one ")
	sb.WriteString("coherent response. Resolve contradictions explicitly and do not repeat yourself.\n\n")
	sb.WriteString("Problem:\n")
	sb.WriteString(problem)
	sb.WriteString("\n\n")
	for _, res := range usable {
		fmt.Fprintf(&sb, "[%s]\n%s\n\n", res.Role, res.Text)
	}
	sb.WriteString("Unified answer:")
	return sb.String()
}

// concatFallback 按角色拼接可用结果。
func concatFallback(usable []types.AgentResult) string {
	sections := make([]string, 0, len(usable))
	for _, res := range usable {
		sections = append(sections, fmt.Sprintf("%s:\n%s", res.Role, res.Text))
	}
	return strings.Join(sections, "\n\n")
}

// orderedResults 按原始请求顺序排列逐请求结果。
func orderedResults(requests []types.AgentRequest, out *scheduler.Outcome) []types.AgentResult {
	ordered := make([]types.AgentResult, 0, len(requests))
	for _, req := range requests {
		if res, ok := out.Results[req.ID]; ok {
			ordered = append(ordered, res)
		}
	}
	return ordered
}

// anyNotOK 只要有一个结果不是成功，本次运行就算降级。
func anyNotOK(results []types.AgentResult) bool {
	for _, res := range results {
		if !res.OK() {
			return true
		}
	}
	return false
}

// usableResults 过滤出成功且非空的结果。
func usableResults(results []types.AgentResult) []types.AgentResult {
	usable := make([]types.AgentResult, 0, len(results))
	for _, res := range results {
		if res.OK() && strings.TrimSpace(res.Text) != "" {
			usable = append(usable, res)
		}
	}
	return usable
}
