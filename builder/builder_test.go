package builder

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/parley/types"
)

func TestBuild_OneRequestPerRole(t *testing.T) {
	b := New(nil)

	batch, err := b.Build("should we migrate to microservices?",
		[]string{"architect", "sre", "product manager"}, types.DepthStructuredPlan)
	require.NoError(t, err)

	require.Len(t, batch.Requests, 3)
	assert.NotEmpty(t, batch.RunID)

	for i, req := range batch.Requests {
		assert.Equal(t, fmt.Sprintf("agent-%d", i), req.ID, "ids must be dense")
		assert.Equal(t, i, req.Priority, "priority follows input order")
		assert.Equal(t, 150, req.WordLimit)
		assert.Contains(t, req.Prompt, req.Role)
		assert.Contains(t, req.Prompt, "at most 150 words")
	}
	assert.Equal(t, "architect", batch.Requests[0].Role)
	assert.Positive(t, batch.PromptTokens)
}

func TestBuild_WordLimitTracksDepth(t *testing.T) {
	b := New(nil)

	tests := []struct {
		depth types.Depth
		limit int
	}{
		{types.DepthQuickInsights, 80},
		{types.DepthStructuredPlan, 150},
		{types.DepthComprehensive, 250},
	}
	for _, tt := range tests {
		batch, err := b.Build("p", []string{"r"}, tt.depth)
		require.NoError(t, err)
		assert.Equal(t, tt.limit, batch.Requests[0].WordLimit, string(tt.depth))
	}
}

func TestBuild_EmptyProblem(t *testing.T) {
	b := New(nil)

	_, err := b.Build("   ", []string{"architect"}, types.DepthQuickInsights)
	assert.Equal(t, types.ErrEmptyProblem, types.GetErrorCode(err))
}

func TestBuild_EmptyRoles(t *testing.T) {
	b := New(nil)

	_, err := b.Build("p", nil, types.DepthQuickInsights)
	assert.Equal(t, types.ErrEmptyRoles, types.GetErrorCode(err))

	_, err = b.Build("p", []string{"", "  "}, types.DepthQuickInsights)
	assert.Equal(t, types.ErrEmptyRoles, types.GetErrorCode(err))
}

func TestBuild_DeduplicatesRoles(t *testing.T) {
	b := New(nil)

	batch, err := b.Build("p", []string{"SRE", "sre", "architect"}, types.DepthQuickInsights)
	require.NoError(t, err)
	require.Len(t, batch.Requests, 2)
	assert.Equal(t, "agent-1", batch.Requests[1].ID, "ids stay dense after dedup")
}

func TestBuild_PromptScopedToRole(t *testing.T) {
	b := New(nil)

	batch, err := b.Build("p", []string{"security reviewer"}, types.DepthQuickInsights)
	require.NoError(t, err)
	prompt := batch.Requests[0].Prompt
	assert.True(t, strings.Contains(prompt, "security reviewer"))
	assert.Contains(t, prompt, "that perspective only")
}
