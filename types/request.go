package types

// AgentRequest 是一次角色视角子查询 —— 提交给补全原语的最小工作单元。
// 由 builder 创建后不可变；运行结束即废弃。
type AgentRequest struct {
	// ID 在单次运行内唯一且稳定（密集编号，如 "agent-0"），
	// 结果始终按 ID 关联，与完成顺序无关。
	ID string `json:"id"`

	// Role 角色短标签（如 "analyst"、"critic"）。
	Role string `json:"role"`

	// Prompt 完整提示词文本。
	Prompt string `json:"prompt"`

	// WordLimit 期望的回答长度上限（词数，正整数）。
	// ReducedScope 降级阶段可能在派发前对其下调。
	WordLimit int `json:"word_limit"`

	// Priority 序数优先级，0 为最高。
	// 预算收紧时低优先级请求先被跳过。
	Priority int `json:"priority"`
}

// TimeSensitivity 调用方声明的时间敏感度，决定初始派发策略。
type TimeSensitivity string

const (
	// SensitivityImmediate 立即要结果：顺序执行，随时可以截断。
	SensitivityImmediate TimeSensitivity = "immediate"
	// SensitivityFewSecondsOK 可等数秒：小批并发。
	SensitivityFewSecondsOK TimeSensitivity = "few_seconds_ok"
	// SensitivityCanWait 可以等待：允许全量并发。
	SensitivityCanWait TimeSensitivity = "can_wait"
)

// Depth 期望的回答深度，影响默认 WordLimit。
type Depth string

const (
	DepthQuickInsights  Depth = "quick_insights"
	DepthStructuredPlan Depth = "structured_plan"
	DepthComprehensive  Depth = "comprehensive"
)

// DefaultWordLimit 返回深度对应的默认回答词数上限。
func (d Depth) DefaultWordLimit() int {
	switch d {
	case DepthQuickInsights:
		return 80
	case DepthStructuredPlan:
		return 150
	case DepthComprehensive:
		return 250
	default:
		return 150
	}
}
