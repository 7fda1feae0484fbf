// 包 mocks 提供测试用的补全器替身。
package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/parley/llm"
	"github.com/BaSui01/parley/types"
)

// MockCompleter 可编排的补全器替身，实现 llm.Completer。
//
// 默认对任何提示词返回固定文本；可按提示词子串注入
// 延迟、失败或定制响应，并记录全部调用供断言。
type MockCompleter struct {
	mu sync.Mutex

	// DefaultText 默认响应文本。
	DefaultText string
	// Delay 每次调用的人工延迟。
	Delay time.Duration

	scripts []script
	calls   []string
}

type script struct {
	substr string
	text   string
	status types.ResultStatus
	delay  time.Duration
}

// NewMockCompleter 创建替身，默认响应 "ok"。
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{DefaultText: "ok"}
}

// Script 为包含 substr 的提示词注入定制响应。
func (m *MockCompleter) Script(substr, text string, status types.ResultStatus) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, script{substr: substr, text: text, status: status})
	return m
}

// ScriptDelay 为包含 substr 的提示词注入延迟（状态按超时与否决定）。
func (m *MockCompleter) ScriptDelay(substr string, delay time.Duration) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, script{substr: substr, status: types.StatusSuccess, delay: delay})
	return m
}

// Complete 实现 llm.Completer。
func (m *MockCompleter) Complete(ctx context.Context, prompt string, timeout time.Duration) llm.CallResult {
	start := time.Now()

	m.mu.Lock()
	m.calls = append(m.calls, prompt)
	text := m.DefaultText
	status := types.StatusSuccess
	delay := m.Delay
	for _, sc := range m.scripts {
		if sc.substr != "" && strings.Contains(prompt, sc.substr) {
			if sc.text != "" {
				text = sc.text
			}
			status = sc.status
			if sc.delay > 0 {
				delay = sc.delay
			}
			break
		}
	}
	m.mu.Unlock()

	if timeout <= 0 {
		return llm.CallResult{
			Status:  types.StatusTimedOut,
			Latency: time.Since(start),
			Err:     types.NewError(types.ErrBudgetExhausted, "no budget for call"),
		}
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		limit := time.NewTimer(timeout)
		defer limit.Stop()
		select {
		case <-timer.C:
		case <-limit.C:
			return llm.CallResult{
				Status:  types.StatusTimedOut,
				Latency: time.Since(start),
				Err:     types.NewError(types.ErrTimeout, "mock call timed out"),
			}
		case <-ctx.Done():
			return llm.CallResult{
				Status:  types.StatusTimedOut,
				Latency: time.Since(start),
				Err:     types.NewError(types.ErrTimeout, "context done").WithCause(ctx.Err()),
			}
		}
	}

	switch status {
	case types.StatusSuccess:
		return llm.CallResult{Text: text, Status: types.StatusSuccess, Latency: time.Since(start)}
	case types.StatusTimedOut:
		return llm.CallResult{
			Status:  types.StatusTimedOut,
			Latency: time.Since(start),
			Err:     types.NewError(types.ErrTimeout, "scripted timeout"),
		}
	default:
		return llm.CallResult{
			Status:  types.StatusServiceError,
			Latency: time.Since(start),
			Err:     types.NewError(types.ErrServiceError, "scripted service error"),
		}
	}
}

// Calls 返回截至目前记录的全部提示词。
func (m *MockCompleter) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数。
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
