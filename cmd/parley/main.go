// =============================================================================
// Parley 主入口
// =============================================================================
// 命令行入口点：一次完整的多角色协商运行
//
// 使用方法:
//
//	parley run --problem "..." --roles architect,sre       # 执行一次运行
//	parley run --config config.yaml --problem "..." ...    # 指定配置文件
//	parley version                                         # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/parley"
	"github.com/BaSui01/parley/config"
	"github.com/BaSui01/parley/internal/telemetry"
	"github.com/BaSui01/parley/types"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runOnce(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ run 命令
// =============================================================================

func runOnce(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	problem := fs.String("problem", "", "Problem statement to analyze")
	roles := fs.String("roles", "", "Comma separated list of roles")
	sensitivity := fs.String("sensitivity", string(types.SensitivityCanWait),
		"Time sensitivity: immediate, few_seconds_ok, can_wait")
	depth := fs.String("depth", string(types.DepthStructuredPlan),
		"Depth: quick_insights, structured_plan, comprehensive")
	fs.Parse(args)

	// 加载配置
	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Parley",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// Initialize OpenTelemetry
	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// 指标端点（可选）
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	// 装配引擎：补全原语是唯一对外依赖
	completer := newOpenAICompleter(cfg.LLM, logger)
	engine, err := parley.New(
		parley.WithCompleter(completer.Complete),
		parley.WithConfig(cfg),
		parley.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("Failed to assemble engine", zap.Error(err))
	}
	defer engine.Close()

	roleList := splitRoles(*roles)
	result, err := engine.Run(context.Background(), *problem, roleList,
		types.TimeSensitivity(*sensitivity), types.Depth(*depth))
	if err != nil {
		logger.Fatal("Run rejected", zap.Error(err))
	}

	printResult(result)
}

func splitRoles(s string) []string {
	parts := strings.Split(s, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	return roles
}

func printResult(result *parley.SynthesisResult) {
	fmt.Println("=== Answer ===")
	fmt.Println(result.Text)
	fmt.Println()
	fmt.Printf("degraded=%v successes=%d/%d\n",
		result.Degraded, result.SuccessCount(), len(result.SourceResults))
	for _, res := range result.SourceResults {
		fmt.Printf("  [%s] %s (%.2fs)\n", res.Role, res.Status, res.Latency.Seconds())
	}
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics endpoint stopped", zap.Error(err))
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("Parley %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`Parley - budgeted multi-role LLM orchestration

Usage:
  parley <command> [options]

Commands:
  run       Execute one orchestration run
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>        Path to configuration file (YAML)
  --problem <text>       Problem statement to analyze
  --roles <a,b,c>        Comma separated role list
  --sensitivity <value>  immediate | few_seconds_ok | can_wait
  --depth <value>        quick_insights | structured_plan | comprehensive

Examples:
  parley run --problem "should we shard the database?" --roles architect,dba,sre
  parley run --config /etc/parley/config.yaml --problem "..." --roles a,b --sensitivity immediate
  parley version`)
}
