package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristic_Count(t *testing.T) {
	e := NewHeuristic()

	assert.Equal(t, 0, e.Count(""))
	assert.Equal(t, 1, e.Count("a"), "non-empty text estimates at least one token")

	// 100 个 ASCII 字符 ≈ 25 token。
	ascii := strings.Repeat("abcd", 25)
	assert.InDelta(t, 25, e.Count(ascii), 2)

	// 30 个汉字 ≈ 20 token。
	cjk := strings.Repeat("中文分词", 10)[:90] // 30 runes
	got := e.Count(cjk)
	assert.InDelta(t, 20, got, 3)
}

func TestHeuristic_CJKDenserThanASCII(t *testing.T) {
	e := NewHeuristic()

	cjk := strings.Repeat("思", 40)
	ascii := strings.Repeat("t", 40)
	assert.Greater(t, e.Count(cjk), e.Count(ascii))
}

func TestHeuristic_Truncate(t *testing.T) {
	e := NewHeuristic()

	text := strings.Repeat("word ", 100) // ≈ 125 token
	short := e.Truncate(text, 20)
	assert.Less(t, len(short), len(text))
	assert.LessOrEqual(t, e.Count(short), 21, "truncated text stays near the budget")

	assert.Equal(t, "", e.Truncate(text, 0))
	assert.Equal(t, "abc", e.Truncate("abc", 100), "text within budget is unchanged")
}

func TestHeuristic_TruncateUTF8Safe(t *testing.T) {
	e := NewHeuristic()

	text := strings.Repeat("混合mixed文本", 30)
	out := e.Truncate(text, 10)
	// 截断必须落在 rune 边界上。
	assert.True(t, len(out) == 0 || strings.ToValidUTF8(out, "") == out)
}

func TestNew_FallsBackWithoutEncoding(t *testing.T) {
	e := New("no-such-model", nil)
	assert.Equal(t, "heuristic", e.Name())
	assert.Positive(t, e.Count("hello world"))
}
