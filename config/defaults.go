// =============================================================================
// 📦 Parley 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		LLM:          DefaultLLMConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
		Cache:        DefaultCacheConfig(),
		Redis:        DefaultRedisConfig(),
		Metrics:      DefaultMetricsConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultLLMConfig 返回默认补全服务配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:        "https://api.openai.com/v1",
		APIKey:         "",
		Model:          "gpt-4o-mini",
		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}
}

// DefaultOrchestratorConfig 返回默认编排配置
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		GlobalBudget:     25 * time.Second,
		SynthesisTimeout: 8 * time.Second,
		TokenizerModel:   "gpt-4o-mini",
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      true,
		LocalMaxSize: 512,
		LocalTTL:     5 * time.Minute,
		RedisTTL:     30 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  false,
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
		PoolSize: 10,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: false,
		Addr:    ":9091",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stderr"},
		EnableCaller: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "parley",
		SampleRate:   1.0,
	}
}
