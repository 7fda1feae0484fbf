package llm

import (
	"context"
	"time"

	"github.com/BaSui01/parley/types"
)

// CompletionFunc 是外部补全原语的接口边界：
// 单参数、无会话、延迟未知且无上界。
type CompletionFunc func(ctx context.Context, prompt string) (string, error)

// CallResult 单次补全调用的结果记录。
// 适配器总是返回结果记录，从不抛出。
type CallResult struct {
	// Text 响应文本；非 Success 时为空。
	Text string `json:"text,omitempty"`

	// Status 调用终态：Success / TimedOut / ServiceError。
	Status types.ResultStatus `json:"status"`

	// Latency 实测耗时。
	Latency time.Duration `json:"latency"`

	// Err 失败原因（诊断用，不参与控制流）。
	Err error `json:"-"`
}

// Completer 补全客户端的统一接口，便于调度器与合成器注入模拟实现。
type Completer interface {
	// Complete 发起一次补全调用，以 timeout 为单调用上限。
	Complete(ctx context.Context, prompt string, timeout time.Duration) CallResult
}

// Cache 补全结果缓存接口（可选）。
// 原语被假定为无副作用且无状态，相同 prompt 的响应可以安全复用。
type Cache interface {
	// Get 查询缓存，未命中返回 false。
	Get(ctx context.Context, prompt string) (string, bool)
	// Set 写入缓存。
	Set(ctx context.Context, prompt, text string)
}

// CallRecorder 接收调用级观测数据（由 internal/metrics 实现，可选）。
type CallRecorder interface {
	RecordCompletionCall(status string, latency time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
}
