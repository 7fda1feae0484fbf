package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/parley/types"
)

// AdapterConfig 配置补全适配器。
type AdapterConfig struct {
	// RateLimitRPS 出站调用的每秒上限，0 表示不限流。
	RateLimitRPS float64 `json:"rate_limit_rps"`

	// RateLimitBurst 限流突发额度，仅在 RateLimitRPS > 0 时生效。
	RateLimitBurst int `json:"rate_limit_burst"`
}

// DefaultAdapterConfig 返回合理默认值。
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		RateLimitRPS:   0,
		RateLimitBurst: 1,
	}
}

// Adapter 将 CompletionFunc 包装为 Completer。
// 持有单调用超时控制、可选限流器与可选缓存；自身无状态可并发使用。
type Adapter struct {
	fn       CompletionFunc
	limiter  *rate.Limiter
	cache    Cache
	recorder CallRecorder
	logger   *zap.Logger
}

// NewAdapter 创建补全适配器。logger 为 nil 时使用 Nop。
func NewAdapter(fn CompletionFunc, cfg AdapterConfig, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return &Adapter{
		fn:      fn,
		limiter: limiter,
		logger:  logger.With(zap.String("component", "completion_adapter")),
	}
}

// WithCache 设置补全缓存。
func (a *Adapter) WithCache(cache Cache) *Adapter {
	a.cache = cache
	return a
}

// WithRecorder 设置调用观测记录器。
func (a *Adapter) WithRecorder(r CallRecorder) *Adapter {
	a.recorder = r
	return a
}

// callOutcome 在后台 goroutine 与超时竞速时传递原语的返回值。
type callOutcome struct {
	text string
	err  error
}

// Complete 实现 Completer。
// 恰好调用原语一次；超时后调用被取消并放弃，迟到的结果被丢弃。
func (a *Adapter) Complete(ctx context.Context, prompt string, timeout time.Duration) CallResult {
	start := time.Now()

	if a.fn == nil {
		return a.finish(CallResult{
			Status:  types.StatusServiceError,
			Latency: time.Since(start),
			Err:     types.NewError(types.ErrCompleterNotSet, "no completion function configured"),
		})
	}
	if timeout <= 0 {
		return a.finish(CallResult{
			Status:  types.StatusTimedOut,
			Latency: time.Since(start),
			Err:     types.NewError(types.ErrBudgetExhausted, "no budget left for call"),
		})
	}

	// 缓存命中直接返回（原语无副作用，复用安全）。
	if a.cache != nil {
		if text, ok := a.cache.Get(ctx, prompt); ok {
			if a.recorder != nil {
				a.recorder.RecordCacheHit()
			}
			a.logger.Debug("completion cache hit", zap.Int("prompt_len", len(prompt)))
			return a.finish(CallResult{Text: text, Status: types.StatusSuccess, Latency: time.Since(start)})
		}
		if a.recorder != nil {
			a.recorder.RecordCacheMiss()
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 限流等待同样受单调用超时约束。
	if a.limiter != nil {
		if err := a.limiter.Wait(callCtx); err != nil {
			return a.finish(CallResult{
				Status:  types.StatusTimedOut,
				Latency: time.Since(start),
				Err:     types.NewError(types.ErrRateLimitWait, "rate limit wait exceeded call budget").WithCause(err),
			})
		}
	}

	// 缓冲为 1：超时放弃后 goroutine 仍能写入并退出，不泄漏。
	outcomeCh := make(chan callOutcome, 1)
	go func() {
		text, err := a.fn(callCtx, prompt)
		outcomeCh <- callOutcome{text: text, err: err}
	}()

	select {
	case out := <-outcomeCh:
		latency := time.Since(start)
		if out.err != nil {
			if isDeadline(out.err) {
				return a.timedOut(latency, out.err)
			}
			a.logger.Warn("completion call failed",
				zap.Duration("latency", latency),
				zap.Error(out.err),
			)
			return a.finish(CallResult{
				Status:  types.StatusServiceError,
				Latency: latency,
				Err:     types.NewError(types.ErrServiceError, "completion primitive failed").WithCause(out.err),
			})
		}
		return a.finish(a.success(ctx, prompt, out.text, latency))

	case <-callCtx.Done():
		// 放弃在途调用；它若最终完成，结果进入带缓冲通道后被垃圾回收。
		return a.timedOut(time.Since(start), callCtx.Err())
	}
}

func (a *Adapter) success(ctx context.Context, prompt, text string, latency time.Duration) CallResult {
	if a.cache != nil {
		a.cache.Set(ctx, prompt, text)
	}
	a.logger.Debug("completion call succeeded",
		zap.Duration("latency", latency),
		zap.Int("response_len", len(text)),
	)
	return CallResult{Text: text, Status: types.StatusSuccess, Latency: latency}
}

func (a *Adapter) timedOut(latency time.Duration, cause error) CallResult {
	a.logger.Warn("completion call timed out, abandoning",
		zap.Duration("latency", latency),
	)
	return a.finish(CallResult{
		Status:  types.StatusTimedOut,
		Latency: latency,
		Err:     types.NewError(types.ErrTimeout, "no response within call budget").WithCause(cause),
	})
}

func (a *Adapter) finish(res CallResult) CallResult {
	if a.recorder != nil {
		a.recorder.RecordCompletionCall(string(res.Status), res.Latency)
	}
	return res
}

// isDeadline 判断错误是否源于超时/取消。
func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
