// 包 tokenizer 提供提示词的 token 估算与按 token 截断，
// 供范围收缩（ReducedScope）阶段压缩剩余请求使用。
//
// 优先使用 tiktoken 精确计数；编码数据不可用时回退到
// CJK 感知的字符估算，不需要任何外部下载。
package tokenizer

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Estimator 统一的 token 估算接口。
type Estimator interface {
	// Count 返回文本的估算 token 数。
	Count(text string) int
	// Truncate 将文本截断到约 maxTokens 个 token。
	Truncate(text string, maxTokens int) string
	// Name 返回估算器名称。
	Name() string
}

// New 返回 model 对应的估算器。
// tiktoken 编码加载失败时回退到字符估算并记录警告。
func New(model string, logger *zap.Logger) Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, falling back to heuristic estimator",
			zap.String("model", model),
			zap.Error(err),
		)
		return NewHeuristic()
	}
	return &tiktokenEstimator{enc: enc}
}

// --- tiktoken 实现 ---

type tiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

func (t *tiktokenEstimator) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

func (t *tiktokenEstimator) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.enc.Decode(tokens[:maxTokens])
}

func (t *tiktokenEstimator) Name() string { return "tiktoken" }

// --- 字符估算实现 ---

// HeuristicEstimator 基于字符计数的估算器。
// 区分 CJK 与 ASCII 字符，比朴素 len/4 更准确。
type HeuristicEstimator struct{}

// NewHeuristic 创建字符估算器。
func NewHeuristic() *HeuristicEstimator {
	return &HeuristicEstimator{}
}

func (e *HeuristicEstimator) Count(text string) int {
	if text == "" {
		return 0
	}

	totalChars := utf8.RuneCountInString(text)
	cjkCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		}
	}

	// CJK 约 1.5 字符/token，ASCII 约 4 字符/token。
	estimated := int(float64(cjkCount)/1.5 + float64(totalChars-cjkCount)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated
}

func (e *HeuristicEstimator) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if e.Count(text) <= maxTokens {
		return text
	}

	// 逐 rune 累计估算量，到达上限即截断。
	budget := float64(maxTokens)
	used := 0.0
	for i, r := range text {
		if isCJK(r) {
			used += 1.0 / 1.5
		} else {
			used += 1.0 / 4.0
		}
		if used > budget {
			return text[:i]
		}
	}
	return text
}

func (e *HeuristicEstimator) Name() string { return "heuristic" }

// isCJK 判断是否为 CJK 字符。
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0xF900 && r <= 0xFAFF) || // CJK Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols and Punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // Halfwidth and Fullwidth Forms
}
