package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsEverything(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCompletionCall("success", 200*time.Millisecond)
	c.RecordCompletionCall("timed_out", 5*time.Second)
	c.RecordCacheHit()
	c.RecordCacheMiss()
	c.RecordCacheMiss()
	c.RecordAgentResult("architect", "success")
	c.RecordDegradation("normal", "reduced_concurrency")
	c.RecordRun("emergency", 24*time.Second)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.completionCalls.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.cacheHits))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.cacheMisses))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.agentResults.WithLabelValues("architect", "success")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.degradations.WithLabelValues("normal", "reduced_concurrency")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.runs.WithLabelValues("emergency")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewCollector_SeparateRegistriesDoNotCollide(t *testing.T) {
	a := NewCollector(prometheus.NewRegistry())
	b := NewCollector(prometheus.NewRegistry())
	a.RecordCacheHit()
	assert.Equal(t, float64(0), testutil.ToFloat64(b.cacheHits))
}
