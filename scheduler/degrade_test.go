package scheduler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/parley/types"
)

func failedResult(id string) types.AgentResult {
	return types.AgentResult{RequestID: id, Status: types.StatusServiceError}
}

func TestController_InitialState(t *testing.T) {
	c := NewController(nil, nil)
	assert.Equal(t, types.PhaseNormal, c.Phase())
	assert.Equal(t, attemptsPerPhase, c.State().AttemptsRemaining)
}

func TestController_SuccessIsFree(t *testing.T) {
	c := NewController(nil, nil)
	for i := 0; i < 20; i++ {
		advanced := c.ObserveResult(types.AgentResult{Status: types.StatusSuccess})
		assert.False(t, advanced)
	}
	assert.Equal(t, types.PhaseNormal, c.Phase())
	assert.Equal(t, attemptsPerPhase, c.State().AttemptsRemaining)
}

func TestController_FailuresExhaustAttemptsThenAdvance(t *testing.T) {
	c := NewController(nil, nil)

	assert.False(t, c.ObserveResult(failedResult("a")))
	assert.False(t, c.ObserveResult(failedResult("b")))
	assert.True(t, c.ObserveResult(failedResult("c")), "third failure advances the phase")

	assert.Equal(t, types.PhaseReducedConcurrency, c.Phase())
	assert.Equal(t, attemptsPerPhase, c.State().AttemptsRemaining, "attempts reset per phase")
}

func TestController_BudgetPressureAdvancesOneStep(t *testing.T) {
	c := NewController(nil, nil)

	advanced := c.ObserveBudget(4*time.Second, 8*time.Second)
	assert.True(t, advanced, "less than one full call left")
	assert.Equal(t, types.PhaseReducedConcurrency, c.Phase())
}

func TestController_EmergencyFloorJumpsToEmergency(t *testing.T) {
	c := NewController(nil, nil)

	advanced := c.ObserveBudget(2*time.Second, 8*time.Second)
	assert.True(t, advanced)
	assert.Equal(t, types.PhaseEmergency, c.Phase())
	assert.True(t, c.State().Terminal())
}

func TestController_NeverRegresses(t *testing.T) {
	c := NewController(nil, nil)
	require.True(t, c.ForceAdvance(types.PhaseReducedScope))

	assert.False(t, c.ForceAdvance(types.PhaseNormal))
	assert.False(t, c.ForceAdvance(types.PhaseReducedConcurrency))
	assert.Equal(t, types.PhaseReducedScope, c.Phase())
}

func TestController_OnAdvanceCallback(t *testing.T) {
	c := NewController(nil, nil)
	var transitions [][2]types.DegradationPhase
	c.OnAdvance(func(from, to types.DegradationPhase) {
		transitions = append(transitions, [2]types.DegradationPhase{from, to})
	})

	c.ForceAdvance(types.PhaseReducedConcurrency)
	c.ForceAdvance(types.PhaseEmergency)

	require.Len(t, transitions, 2)
	assert.Equal(t, [2]types.DegradationPhase{types.PhaseNormal, types.PhaseReducedConcurrency}, transitions[0])
	assert.Equal(t, [2]types.DegradationPhase{types.PhaseReducedConcurrency, types.PhaseEmergency}, transitions[1])
}

func TestReduceScope_KeepsTopHalf(t *testing.T) {
	c := NewController(nil, nil)
	reqs := makeRequests(5)

	kept, dropped := c.ReduceScope(reqs, time.Minute, 5*time.Second)
	require.Len(t, kept, 3, "ceil(5/2) requests survive when budget allows")
	require.Len(t, dropped, 2)
	assert.Equal(t, "agent-0", kept[0].ID, "highest priority first")
	assert.Equal(t, "agent-3", dropped[0].ID)
}

func TestReduceScope_TightBudgetKeepsOnlyWhatFits(t *testing.T) {
	c := NewController(nil, nil)
	reqs := makeRequests(6)

	// 半数是 3，但剩余预算只装得下 2 次串行调用。
	kept, dropped := c.ReduceScope(reqs, 11*time.Second, 5*time.Second)
	require.Len(t, kept, 2)
	require.Len(t, dropped, 4)
	assert.Equal(t, "agent-0", kept[0].ID)
	assert.Equal(t, "agent-1", kept[1].ID)
}

func TestReduceScope_AlwaysKeepsAtLeastOne(t *testing.T) {
	c := NewController(nil, nil)
	reqs := makeRequests(4)

	kept, dropped := c.ReduceScope(reqs, time.Second, 5*time.Second)
	require.Len(t, kept, 1, "scope reduction never empties the run outright")
	require.Len(t, dropped, 3)
}

func TestReduceScope_TruncatesLongPrompts(t *testing.T) {
	c := NewController(nil, nil)
	reqs := makeRequests(2)
	long := strings.Repeat("lengthy analysis instructions ", 200)
	reqs[0].Prompt = long

	kept, _ := c.ReduceScope(reqs, time.Minute, 5*time.Second)
	require.Len(t, kept, 1)
	assert.Less(t, len(kept[0].Prompt), len(long))
	assert.LessOrEqual(t, c.estimator.Count(kept[0].Prompt), scopeTokenCap+1)
}

func TestReduceScope_Empty(t *testing.T) {
	c := NewController(nil, nil)
	kept, dropped := c.ReduceScope(nil, time.Minute, 5*time.Second)
	assert.Nil(t, kept)
	assert.Nil(t, dropped)
}

// 任意观察序列下阶段单调不减且不越过 Emergency。
func TestController_MonotonicityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := NewController(nil, nil)
		prev := c.Phase()

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				c.ObserveResult(types.AgentResult{Status: types.StatusSuccess})
			case 1:
				c.ObserveResult(types.AgentResult{Status: types.StatusServiceError})
			case 2:
				remaining := time.Duration(rapid.IntRange(0, 30).Draw(t, "remaining")) * time.Second
				c.ObserveBudget(remaining, 8*time.Second)
			case 3:
				next := types.DegradationPhase(rapid.IntRange(0, 3).Draw(t, "next"))
				c.ForceAdvance(next)
			}

			cur := c.Phase()
			if cur < prev {
				t.Fatalf("phase regressed: %v -> %v", prev, cur)
			}
			if cur > types.PhaseEmergency {
				t.Fatalf("phase beyond emergency: %v", cur)
			}
			if c.State().AttemptsRemaining < 0 {
				t.Fatalf("negative attempts")
			}
			prev = cur
		}
	})
}
