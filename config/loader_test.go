package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 25*time.Second, cfg.Orchestrator.GlobalBudget)
	assert.Equal(t, 8*time.Second, cfg.Orchestrator.SynthesisTimeout)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoader_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
orchestrator:
  global_budget: 40s
llm:
  model: gpt-4o
redis:
  enabled: true
  addr: redis:6379
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 40*time.Second, cfg.Orchestrator.GlobalBudget)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	// 未覆盖的字段保持默认值。
	assert.Equal(t, 8*time.Second, cfg.Orchestrator.SynthesisTimeout)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	t.Setenv("PARLEY_ORCHESTRATOR_GLOBAL_BUDGET", "12s")
	t.Setenv("PARLEY_LLM_RATE_LIMIT_RPS", "2.5")
	t.Setenv("PARLEY_CACHE_ENABLED", "false")
	t.Setenv("PARLEY_LOG_OUTPUT_PATHS", "stdout, /tmp/parley.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 12*time.Second, cfg.Orchestrator.GlobalBudget)
	assert.Equal(t, 2.5, cfg.LLM.RateLimitRPS)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{"stdout", "/tmp/parley.log"}, cfg.Log.OutputPaths)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().LLM.Model, cfg.LLM.Model)
}

func TestLoader_ValidatorRejects(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return assert.AnError }).
		Load()
	assert.Error(t, err)
}

func TestValidate_CatchesBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Orchestrator.GlobalBudget = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Orchestrator.SynthesisTimeout = cfg.Orchestrator.GlobalBudget
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.OTLPEndpoint = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = ""
	assert.Error(t, cfg.Validate())
}

func TestBuildLogger(t *testing.T) {
	logger, err := DefaultLogConfig().BuildLogger()
	require.NoError(t, err)
	logger.Sync()

	bad := DefaultLogConfig()
	bad.Level = "shouting"
	_, err = bad.BuildLogger()
	assert.Error(t, err)
}
