package types

import "time"

// ResultStatus 单个 AgentRequest 的终态。
type ResultStatus string

const (
	// StatusSuccess 在预算内收到响应。
	StatusSuccess ResultStatus = "success"
	// StatusTimedOut 在单调用/批/全局预算内未收到响应，调用已被放弃。
	StatusTimedOut ResultStatus = "timed_out"
	// StatusServiceError 补全原语报告了传输或服务级失败。
	StatusServiceError ResultStatus = "service_error"
	// StatusSkipped 因预算耗尽或范围收缩而从未发起。
	StatusSkipped ResultStatus = "skipped"
)

// AgentResult 一个 AgentRequest 的执行结果。
// 由调度器为每个请求恰好创建一次，创建后不再修改。
type AgentResult struct {
	// RequestID 关联的 AgentRequest.ID。
	RequestID string `json:"request_id"`

	// Role 冗余携带请求角色，便于日志与合成提示词。
	Role string `json:"role,omitempty"`

	// Status 终态。
	Status ResultStatus `json:"status"`

	// Text 响应文本；非 Success 时为空。
	Text string `json:"text,omitempty"`

	// Latency 实测耗时；Skipped 时为 0。
	Latency time.Duration `json:"latency"`
}

// OK 报告结果是否为成功。
func (r AgentResult) OK() bool {
	return r.Status == StatusSuccess
}

// SynthesisResult 一次运行的最终产出，返回给调用方后核心不再保留。
type SynthesisResult struct {
	// SourceResults 按原始请求顺序排列的全部 AgentResult。
	SourceResults []AgentResult `json:"source_results"`

	// Degraded 只要有任一来源不是 Success 即为 true。
	Degraded bool `json:"degraded"`

	// Text 最终答案。即使所有来源都失败也非空
	// （此时为显式的降级说明文本）。
	Text string `json:"text"`
}

// SuccessCount 返回来源中 Success 的数量。
func (s SynthesisResult) SuccessCount() int {
	n := 0
	for _, r := range s.SourceResults {
		if r.OK() {
			n++
		}
	}
	return n
}
