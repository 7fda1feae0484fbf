package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecutionPlan_Remaining(t *testing.T) {
	now := time.Now()
	p := ExecutionPlan{
		Strategy:       StrategyMicroBatch,
		BatchSize:      2,
		PerCallTimeout: 5 * time.Second,
		GlobalDeadline: now.Add(10 * time.Second),
	}

	assert.Equal(t, 10*time.Second, p.Remaining(now))
	assert.Equal(t, time.Duration(0), p.Remaining(now.Add(10*time.Second)))
	assert.Equal(t, time.Duration(0), p.Remaining(now.Add(time.Minute)))

	assert.False(t, p.Expired(now))
	assert.True(t, p.Expired(now.Add(10*time.Second)))
}

func TestExecutionPlan_DeriveMicroBatch(t *testing.T) {
	now := time.Now()
	p := ExecutionPlan{
		Strategy:       StrategyFullParallel,
		BatchSize:      5,
		PerCallTimeout: 8 * time.Second,
		GlobalDeadline: now.Add(25 * time.Second),
	}

	next := p.DeriveMicroBatch(2, 4*time.Second)
	assert.Equal(t, StrategyMicroBatch, next.Strategy)
	assert.Equal(t, 2, next.BatchSize)
	assert.Equal(t, 4*time.Second, next.PerCallTimeout)
	assert.Equal(t, p.GlobalDeadline, next.GlobalDeadline, "global deadline carries over")

	// 原计划不受影响（值语义）
	assert.Equal(t, StrategyFullParallel, p.Strategy)
	assert.Equal(t, 8*time.Second, p.PerCallTimeout)
}

func TestExecutionPlan_DeriveMicroBatchFloors(t *testing.T) {
	p := ExecutionPlan{Strategy: StrategyMicroBatch, BatchSize: 1, PerCallTimeout: 3 * time.Second}

	next := p.DeriveMicroBatch(0, 0)
	assert.Equal(t, 1, next.BatchSize, "batch size floors at 1")
	assert.Equal(t, 3*time.Second, next.PerCallTimeout, "zero timeout keeps previous value")
}

func TestSynthesisResult_SuccessCount(t *testing.T) {
	s := SynthesisResult{
		SourceResults: []AgentResult{
			{RequestID: "agent-0", Status: StatusSuccess, Text: "a"},
			{RequestID: "agent-1", Status: StatusTimedOut},
			{RequestID: "agent-2", Status: StatusSkipped},
		},
	}
	assert.Equal(t, 1, s.SuccessCount())
	assert.True(t, s.SourceResults[0].OK())
	assert.False(t, s.SourceResults[1].OK())
}
