package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/vinodismyname/mcpreports/config"
	"github.com/vinodismyname/mcpreports/internal/datasets"
	"github.com/vinodismyname/mcpreports/internal/registry"
	"github.com/vinodismyname/mcpreports/internal/runtime"
	"github.com/vinodismyname/mcpreports/internal/security"
	"github.com/vinodismyname/mcpreports/internal/telemetry"
	"github.com/vinodismyname/mcpreports/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		useStdio        bool
		shutdownTimeout time.Duration
	)

	flag.BoolVar(&useStdio, "stdio", false, "Run server over stdio transport")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	logger := zlog.With().Str("service", "mcpreports-server").Logger()
	ctx := logger.WithContext(context.Background())

	// Security: validate allow-list directories on startup (fail-safe on error)
	secMgr, err := security.NewManagerFromConfig(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("security: failed to initialize manager")
		fmt.Fprintln(os.Stderr, "invalid security configuration; set MCPREPORTS_ALLOWED_DIRS")
		os.Exit(1)
	}
	if err := secMgr.ValidateConfig(); err != nil {
		logger.Error().Err(err).Msg("security: invalid allow-list configuration")
		fmt.Fprintln(os.Stderr, "no allowed directories configured; set MCPREPORTS_ALLOWED_DIRS")
		os.Exit(1)
	}
	logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")

	limits := runtime.LimitsFromConfig(cfg)
	runtimeController := runtime.NewController(limits)
	runtimeMW := runtime.NewMiddleware(runtimeController)

	dsMgr := datasets.NewManager(cfg.DatasetIdleTTL, config.DefaultDatasetCleanupPeriod, runtimeController, time.Now,
		datasets.WithValidator(secMgr))
	dsMgr.Start()
	defer func() {
		sctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := dsMgr.Close(sctx); err != nil {
			logger.Warn().Err(err).Msg("dataset manager close")
		}
	}()

	toolRegistry := registry.New()
	toolRegistry.WithSummaryBudget(cfg.SummaryModel, cfg.SummaryTokens)
	writeFilter := registry.NewWriteToolFilter(cfg)
	hooks := telemetry.NewHooks(logger)

	srv := server.NewMCPServer(
		"MCP Survey Report Server",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks.Server()),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
		server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool { return writeFilter.FilterTools(ctx, tools) }),
	)

	registry.NewTools(toolRegistry, registry.Deps{
		Datasets: dsMgr,
		Security: secMgr,
		Limits:   runtimeController.LimitsSnapshot(),
		Config:   cfg,
	}).Register(srv)

	logger.Info().
		Ctx(ctx).
		Str("version", version.Read().String()).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_open_datasets", limits.MaxOpenDatasets).
		Dur("operation_timeout", limits.OperationTimeout).
		Str("null_keys", cfg.NullKeys).
		Bool("writes_enabled", cfg.EnableWrites).
		Int("model_context_size", toolRegistry.ModelContextSize(cfg.SummaryModel)).
		Bool("stdio", useStdio).
		Msg("server bootstrap configured")

	if useStdio {
		err := server.ServeStdio(srv)
		hooks.LogSummary()
		if err != nil {
			// Use stderr for transport errors so clients don't misinterpret output
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// If no transport flags provided, print usage and exit non-zero
	fmt.Fprintln(os.Stderr, "no transport selected; use --stdio to run over stdio")
	os.Exit(2)
}
