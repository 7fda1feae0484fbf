package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/parley/scheduler"
	"github.com/BaSui01/parley/testutil"
	"github.com/BaSui01/parley/testutil/mocks"
	"github.com/BaSui01/parley/types"
)

func TestOrchestrate_EndToEnd(t *testing.T) {
	mc := mocks.NewMockCompleter()
	mc.Script("Unified answer", "the merged answer", types.StatusSuccess)
	o := New(mc)

	res, err := o.Orchestrate(testutil.TestContext(t), "should we adopt kubernetes?",
		[]string{"architect", "sre"}, types.SensitivityCanWait, types.DepthStructuredPlan)
	require.NoError(t, err)

	assert.Equal(t, "the merged answer", res.Text)
	assert.False(t, res.Degraded)
	assert.Equal(t, 2, res.SuccessCount())
	require.Len(t, res.SourceResults, 2)
	assert.Equal(t, "architect", res.SourceResults[0].Role)
	assert.Equal(t, 3, mc.CallCount(), "two agent calls plus one synthesis call")
}

func TestOrchestrate_FiveRolesCanWaitGoFullParallel(t *testing.T) {
	mc := mocks.NewMockCompleter()
	mc.Script("Unified answer", "combined", types.StatusSuccess)
	o := New(mc)

	res, err := o.Orchestrate(context.Background(), "p",
		[]string{"a", "b", "c", "d", "e"}, types.SensitivityCanWait, types.DepthComprehensive)
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.Equal(t, 5, res.SuccessCount())
	assert.Equal(t, "combined", res.Text, "synthesis call runs when everything resolves")
	assert.Equal(t, 6, mc.CallCount(), "five agent calls plus one synthesis call")
}

func TestOrchestrate_InvalidInput(t *testing.T) {
	o := New(mocks.NewMockCompleter())

	_, err := o.Orchestrate(context.Background(), "", []string{"r"},
		types.SensitivityImmediate, types.DepthQuickInsights)
	assert.Equal(t, types.ErrEmptyProblem, types.GetErrorCode(err))

	_, err = o.Orchestrate(context.Background(), "p", nil,
		types.SensitivityImmediate, types.DepthQuickInsights)
	assert.Equal(t, types.ErrEmptyRoles, types.GetErrorCode(err))
}

func TestOrchestrate_NeverFailsAfterStart(t *testing.T) {
	mc := mocks.NewMockCompleter()
	mc.Script("perspective only", "", types.StatusServiceError) // 所有代理调用失败

	o := New(mc)
	res, err := o.Orchestrate(context.Background(), "p", []string{"a", "b", "c", "d"},
		types.SensitivityImmediate, types.DepthQuickInsights)
	require.NoError(t, err, "a run that started always ends with a result")

	assert.True(t, res.Degraded)
	assert.NotEmpty(t, res.Text)
	assert.Len(t, res.SourceResults, 4)
}

func TestOrchestrate_TinyBudgetStillAnswers(t *testing.T) {
	mc := mocks.NewMockCompleter()
	o := New(mc, WithGlobalBudget(time.Second))

	res, err := o.Orchestrate(context.Background(), "p", []string{"a", "b"},
		types.SensitivityCanWait, types.DepthQuickInsights)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Text)
	assert.True(t, res.Degraded, "a one second budget cannot run at full service")
}

func TestOrchestrate_EventSinkObservesRun(t *testing.T) {
	mc := mocks.NewMockCompleter()

	var mu sync.Mutex
	var kinds []scheduler.EventKind
	o := New(mc, WithEventSink(func(ev scheduler.Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	}))

	_, err := o.Orchestrate(context.Background(), "p", []string{"a", "b"},
		types.SensitivityFewSecondsOK, types.DepthQuickInsights)
	require.NoError(t, err)

	count := 0
	for _, k := range kinds {
		if k == scheduler.EventResult {
			count++
		}
	}
	assert.Equal(t, 2, count)
}
