// 包 builder 将一个认知任务分解为一组角色限定的代理请求。
//
// 每个角色产出恰好一个 AgentRequest：提示词只包含该角色视角的
// 指令与字数上限，请求 ID 在单次运行内连续（"agent-0"、"agent-1"…），
// 优先级默认等于角色在输入中的序号（越靠前越重要）。
package builder

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/parley/tokenizer"
	"github.com/BaSui01/parley/types"
)

// Batch 一次运行要执行的全部请求。
type Batch struct {
	// RunID 本次运行的唯一标识。
	RunID string `json:"run_id"`
	// Problem 原始问题描述。
	Problem string `json:"problem"`
	// Depth 期望的分析深度。
	Depth types.Depth `json:"depth"`
	// Requests 按优先级升序排列的请求。
	Requests []types.AgentRequest `json:"requests"`
	// PromptTokens 全部提示词的估算 token 总量。
	PromptTokens int `json:"prompt_tokens"`
}

// Builder 请求构建器。
type Builder struct {
	estimator tokenizer.Estimator
	logger    *zap.Logger
}

// New 创建构建器。
func New(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		estimator: tokenizer.NewHeuristic(),
		logger:    logger.With(zap.String("component", "builder")),
	}
}

// WithEstimator 替换 token 估算器。
func (b *Builder) WithEstimator(e tokenizer.Estimator) *Builder {
	if e != nil {
		b.estimator = e
	}
	return b
}

// Build 分解问题：每个非空角色一个请求。
// 问题为空返回 ErrEmptyProblem，角色列表有效项为零返回 ErrEmptyRoles。
func (b *Builder) Build(problem string, roles []string, depth types.Depth) (*Batch, error) {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return nil, types.NewError(types.ErrEmptyProblem, "problem description is empty")
	}

	wordLimit := depth.DefaultWordLimit()

	requests := make([]types.AgentRequest, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(role)]; dup {
			continue
		}
		seen[strings.ToLower(role)] = struct{}{}

		idx := len(requests)
		requests = append(requests, types.AgentRequest{
			ID:        fmt.Sprintf("agent-%d", idx),
			Role:      role,
			Prompt:    rolePrompt(role, problem, wordLimit),
			WordLimit: wordLimit,
			Priority:  idx,
		})
	}

	if len(requests) == 0 {
		return nil, types.NewError(types.ErrEmptyRoles, "no usable roles in input")
	}

	tokens := 0
	for i := range requests {
		tokens += b.estimator.Count(requests[i].Prompt)
	}

	batch := &Batch{
		RunID:        uuid.NewString(),
		Problem:      problem,
		Depth:        depth,
		Requests:     requests,
		PromptTokens: tokens,
	}

	b.logger.Debug("batch built",
		zap.String("run_id", batch.RunID),
		zap.Int("requests", len(requests)),
		zap.Int("prompt_tokens", tokens),
		zap.String("depth", string(depth)),
	)
	return batch, nil
}

// rolePrompt 渲染单角色提示词。
// 模板刻意收紧视角：角色只从自身职责出发回答。
func rolePrompt(role, problem string, wordLimit int) string {
	var sb strings.Builder
	sb.WriteString("You are acting strictly as: ")
	sb.WriteString(role)
	sb.WriteString(".\n")
	sb.WriteString("Analyze the problem below from that perspective only. ")
	sb.WriteString("Do not cover concerns that belong to other roles.\n\n")
	sb.WriteString("Problem:\n")
	sb.WriteString(problem)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Answer in at most %d words. Be direct and concrete.", wordLimit)
	return sb.String()
}
